// Package usecase はアプリケーションのユースケースを実装する。
package usecase

import (
	"clawd-connector/internal/domain"
	"clawd-connector/pkg/signature"
)

// CredentialProvider は現在有効な認証情報を返す。
type CredentialProvider interface {
	Credentials() *domain.Credentials
}

// Authenticator はAPIキーと本文署名でリクエストを検証する。
// 状態を持たないため並行に呼び出してよい。
type Authenticator struct {
	creds CredentialProvider
	sign  func(secret string, body []byte) string
}

// NewAuthenticator は新しいAuthenticatorを生成する。
func NewAuthenticator(creds CredentialProvider) *Authenticator {
	return &Authenticator{
		creds: creds,
		sign:  signature.Sign,
	}
}

// Authenticate はヘッダー欠落、APIキー、署名の順に検証する。
// 失敗時は domain.ErrMissingCredentials / ErrInvalidKey / ErrInvalidSignature を返す。
func (a *Authenticator) Authenticate(apiKey, sig string, body []byte) error {
	if apiKey == "" || sig == "" {
		return domain.ErrMissingCredentials
	}

	creds := a.creds.Credentials()
	if !creds.Complete() {
		return domain.ErrInvalidKey
	}
	if !signature.Equal(creds.APIKey, apiKey) {
		return domain.ErrInvalidKey
	}

	expected := a.sign(creds.Secret, body)
	if !signature.Equal(expected, sig) {
		return domain.ErrInvalidSignature
	}
	return nil
}
