package usecase

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"

	"clawd-connector/internal/domain"
)

// SettingRepository は設定値の保存先のインターフェース。
type SettingRepository interface {
	Get(ctx context.Context, name string) ([]byte, error)
	Set(ctx context.Context, name string, value []byte) error
}

// KMSClient は暗号化/復号のインターフェース。
type KMSClient interface {
	Encrypt(ctx context.Context, plaintext []byte) ([]byte, error)
	Decrypt(ctx context.Context, ciphertext []byte) ([]byte, error)
}

// CredentialService はAPIキーと共有シークレットの生成・取得・再発行を提供する。
// シークレットはKMSで暗号化して保存する。
type CredentialService struct {
	repo      SettingRepository
	kmsClient KMSClient
	rand      io.Reader
}

// NewCredentialService は新しいCredentialServiceを生成する。
func NewCredentialService(repo SettingRepository, kmsClient KMSClient) *CredentialService {
	return &CredentialService{
		repo:      repo,
		kmsClient: kmsClient,
		rand:      rand.Reader,
	}
}

// RotateOptions は再発行する値を指定する。両方 false の場合は両方を再発行する。
type RotateOptions struct {
	APIKey bool
	Secret bool
}

func (s *CredentialService) generate(n int) (string, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(s.rand, b); err != nil {
		return "", fmt.Errorf("generating random bytes: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Ensure は認証情報を返す。未生成の値はその場で生成して保存する。
func (s *CredentialService) Ensure(ctx context.Context) (*domain.Credentials, error) {
	apiKey, err := s.loadAPIKey(ctx)
	if err != nil {
		return nil, err
	}
	secret, err := s.loadSecret(ctx)
	if err != nil {
		return nil, err
	}

	if apiKey == "" {
		if apiKey, err = s.generate(domain.APIKeyBytes); err != nil {
			return nil, err
		}
		if err := s.storeAPIKey(ctx, apiKey); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "api key generated", "operation", "ensure_credentials")
	}
	if secret == "" {
		if secret, err = s.generate(domain.SecretBytes); err != nil {
			return nil, err
		}
		if err := s.storeSecret(ctx, secret); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "shared secret generated", "operation", "ensure_credentials")
	}

	return &domain.Credentials{APIKey: apiKey, Secret: secret}, nil
}

// Load は保存済みの認証情報を返す。どちらかが未生成なら domain.ErrCredentialsNotFound。
func (s *CredentialService) Load(ctx context.Context) (*domain.Credentials, error) {
	apiKey, err := s.loadAPIKey(ctx)
	if err != nil {
		return nil, err
	}
	secret, err := s.loadSecret(ctx)
	if err != nil {
		return nil, err
	}

	creds := &domain.Credentials{APIKey: apiKey, Secret: secret}
	if !creds.Complete() {
		return nil, domain.ErrCredentialsNotFound
	}
	return creds, nil
}

// Rotate は指定された値を再発行して保存し、新しい認証情報を返す。
func (s *CredentialService) Rotate(ctx context.Context, opts RotateOptions) (*domain.Credentials, error) {
	if !opts.APIKey && !opts.Secret {
		opts = RotateOptions{APIKey: true, Secret: true}
	}

	creds, err := s.Ensure(ctx)
	if err != nil {
		return nil, err
	}

	if opts.APIKey {
		if creds.APIKey, err = s.generate(domain.APIKeyBytes); err != nil {
			return nil, err
		}
		if err := s.storeAPIKey(ctx, creds.APIKey); err != nil {
			return nil, err
		}
	}
	if opts.Secret {
		if creds.Secret, err = s.generate(domain.SecretBytes); err != nil {
			return nil, err
		}
		if err := s.storeSecret(ctx, creds.Secret); err != nil {
			return nil, err
		}
	}

	slog.InfoContext(ctx, "credentials rotated",
		"operation", "rotate_credentials",
		"api_key", opts.APIKey,
		"secret", opts.Secret,
	)
	return creds, nil
}

func (s *CredentialService) loadAPIKey(ctx context.Context) (string, error) {
	v, err := s.repo.Get(ctx, domain.SettingAPIKey)
	if err != nil {
		return "", fmt.Errorf("loading api key: %w", err)
	}
	return string(v), nil
}

func (s *CredentialService) loadSecret(ctx context.Context) (string, error) {
	v, err := s.repo.Get(ctx, domain.SettingSecretKey)
	if err != nil {
		return "", fmt.Errorf("loading secret: %w", err)
	}
	if len(v) == 0 {
		return "", nil
	}
	plain, err := s.kmsClient.Decrypt(ctx, v)
	if err != nil {
		return "", fmt.Errorf("decrypting secret: %w", err)
	}
	return string(plain), nil
}

func (s *CredentialService) storeAPIKey(ctx context.Context, apiKey string) error {
	if err := s.repo.Set(ctx, domain.SettingAPIKey, []byte(apiKey)); err != nil {
		return fmt.Errorf("storing api key: %w", err)
	}
	return nil
}

func (s *CredentialService) storeSecret(ctx context.Context, secret string) error {
	encrypted, err := s.kmsClient.Encrypt(ctx, []byte(secret))
	if err != nil {
		return fmt.Errorf("encrypting secret: %w", err)
	}
	if err := s.repo.Set(ctx, domain.SettingSecretKey, encrypted); err != nil {
		return fmt.Errorf("storing secret: %w", err)
	}
	return nil
}

// CredentialHolder はプロセス内で共有する認証情報のスナップショットを保持する。
type CredentialHolder struct {
	current atomic.Pointer[domain.Credentials]
}

// NewCredentialHolder は新しいCredentialHolderを生成する。
func NewCredentialHolder(creds *domain.Credentials) *CredentialHolder {
	h := &CredentialHolder{}
	h.Store(creds)
	return h
}

// Credentials は現在の認証情報を返す。未設定なら nil。
func (h *CredentialHolder) Credentials() *domain.Credentials {
	return h.current.Load()
}

// Store は認証情報を差し替える。
func (h *CredentialHolder) Store(creds *domain.Credentials) {
	h.current.Store(creds)
}

// Reload は保存先から認証情報を読み直して差し替える。
func (h *CredentialHolder) Reload(ctx context.Context, svc *CredentialService) error {
	creds, err := svc.Load(ctx)
	if err != nil {
		return err
	}
	h.Store(creds)
	slog.InfoContext(ctx, "credentials reloaded", "operation", "reload_credentials")
	return nil
}
