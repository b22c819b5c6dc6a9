package infra

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"

	kms "cloud.google.com/go/kms/apiv1"
	kmspb "cloud.google.com/go/kms/apiv1/kmspb"
	"google.golang.org/protobuf/types/known/wrapperspb"

	"clawd-connector/internal/domain"
)

var errChecksumMismatch = errors.New("KMS response checksum mismatch")

// KMSClient はCloud KMSクライアントをラップする。共有シークレットの保存時暗号化に使う。
// 暗号文は設定名を追加認証データとして束縛する。
type KMSClient struct {
	client  *kms.KeyManagementClient
	keyName string
	aad     []byte
}

// NewKMSClient は指定されたキー名でKMSClientを生成する。
func NewKMSClient(ctx context.Context, keyName string) (*KMSClient, error) {
	if keyName == "" {
		return nil, fmt.Errorf("KMS key name is required")
	}

	client, err := kms.NewKeyManagementClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating KMS client: %w", err)
	}

	return &KMSClient{
		client:  client,
		keyName: keyName,
		aad:     []byte(domain.SettingSecretKey),
	}, nil
}

func checksum(data []byte) *wrapperspb.Int64Value {
	return wrapperspb.Int64(int64(crc32.Checksum(data, crc32.MakeTable(crc32.Castagnoli))))
}

// Encrypt は平文をCloud KMSで暗号化する。
func (c *KMSClient) Encrypt(ctx context.Context, plaintext []byte) ([]byte, error) {
	req := &kmspb.EncryptRequest{
		Name:                              c.keyName,
		Plaintext:                         plaintext,
		PlaintextCrc32C:                   checksum(plaintext),
		AdditionalAuthenticatedData:       c.aad,
		AdditionalAuthenticatedDataCrc32C: checksum(c.aad),
	}
	resp, err := c.client.Encrypt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("encrypting: %w", err)
	}
	if !resp.VerifiedPlaintextCrc32C || !resp.VerifiedAdditionalAuthenticatedDataCrc32C ||
		resp.CiphertextCrc32C.GetValue() != checksum(resp.Ciphertext).GetValue() {
		return nil, fmt.Errorf("encrypting: %w", errChecksumMismatch)
	}
	return resp.Ciphertext, nil
}

// Decrypt は暗号文をCloud KMSで復号する。
func (c *KMSClient) Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error) {
	req := &kmspb.DecryptRequest{
		Name:                              c.keyName,
		Ciphertext:                        ciphertext,
		CiphertextCrc32C:                  checksum(ciphertext),
		AdditionalAuthenticatedData:       c.aad,
		AdditionalAuthenticatedDataCrc32C: checksum(c.aad),
	}
	resp, err := c.client.Decrypt(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("decrypting: %w", err)
	}
	if resp.PlaintextCrc32C.GetValue() != checksum(resp.Plaintext).GetValue() {
		return nil, fmt.Errorf("decrypting: %w", errChecksumMismatch)
	}
	return resp.Plaintext, nil
}

// Close はKMSクライアントを閉じる。
func (c *KMSClient) Close() error {
	return c.client.Close()
}

// PlainCipher はKMS未設定時に使う無変換の実装。
type PlainCipher struct{}

// Encrypt は入力をそのまま返す。
func (PlainCipher) Encrypt(_ context.Context, plaintext []byte) ([]byte, error) {
	return plaintext, nil
}

// Decrypt は入力をそのまま返す。
func (PlainCipher) Decrypt(_ context.Context, ciphertext []byte) ([]byte, error) {
	return ciphertext, nil
}

// Close は何もしない。
func (PlainCipher) Close() error {
	return nil
}

// SecretCipher はシークレットの暗号化/復号を行い、終了時に閉じられる。
type SecretCipher interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
	Close() error
}

// NewSecretCipher はキー名が設定されていればKMS、無ければ無変換の実装を返す。
func NewSecretCipher(ctx context.Context, keyName string) (SecretCipher, error) {
	if keyName == "" {
		return PlainCipher{}, nil
	}
	return NewKMSClient(ctx, keyName)
}
