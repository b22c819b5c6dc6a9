package usecase

import (
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clawd-connector/internal/domain"
	"clawd-connector/pkg/signature"
)

const (
	testAPIKey = "0123456789abcdef0123456789abcdef"
	testSecret = "00112233445566778899aabbccddeeff00112233445566778899aabbccddeeff"
)

func newTestAuthenticator(creds *domain.Credentials) (*Authenticator, *int) {
	calls := 0
	a := NewAuthenticator(NewCredentialHolder(creds))
	a.sign = func(secret string, body []byte) string {
		calls++
		return signature.Sign(secret, body)
	}
	return a, &calls
}

func TestAuthenticator_Accepts(t *testing.T) {
	a, _ := newTestAuthenticator(&domain.Credentials{APIKey: testAPIKey, Secret: testSecret})
	body := []byte(`{"title":"Hello"}`)

	err := a.Authenticate(testAPIKey, signature.Sign(testSecret, body), body)
	assert.NoError(t, err)
}

func TestAuthenticator_AcceptsEmptyBody(t *testing.T) {
	a, _ := newTestAuthenticator(&domain.Credentials{APIKey: testAPIKey, Secret: testSecret})

	assert.NoError(t, a.Authenticate(testAPIKey, signature.Sign(testSecret, nil), nil))
	assert.NoError(t, a.Authenticate(testAPIKey, signature.Sign(testSecret, []byte{}), []byte{}))
}

func TestAuthenticator_MissingHeaders(t *testing.T) {
	a, calls := newTestAuthenticator(&domain.Credentials{APIKey: testAPIKey, Secret: testSecret})
	body := []byte(`{}`)
	sig := signature.Sign(testSecret, body)

	tests := []struct {
		name string
		key  string
		sig  string
	}{
		{name: "no key", key: "", sig: sig},
		{name: "no signature", key: testAPIKey, sig: ""},
		{name: "neither", key: "", sig: ""},
		{name: "wrong key and no signature", key: "wrong", sig: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authenticate(tt.key, tt.sig, body)
			assert.ErrorIs(t, err, domain.ErrMissingCredentials)
		})
	}
	assert.Zero(t, *calls, "no HMAC must be computed when headers are missing")
}

func TestAuthenticator_InvalidKey(t *testing.T) {
	a, calls := newTestAuthenticator(&domain.Credentials{APIKey: testAPIKey, Secret: testSecret})
	body := []byte(`{"title":"x"}`)

	// 署名が正しくてもキーが違えば invalid_key
	err := a.Authenticate(strings.ToUpper(testAPIKey), signature.Sign(testSecret, body), body)
	assert.ErrorIs(t, err, domain.ErrInvalidKey)

	err = a.Authenticate("garbage", "garbage", body)
	assert.ErrorIs(t, err, domain.ErrInvalidKey)

	assert.Zero(t, *calls, "key mismatch must short-circuit before signing")
}

func TestAuthenticator_InvalidSignature(t *testing.T) {
	a, _ := newTestAuthenticator(&domain.Credentials{APIKey: testAPIKey, Secret: testSecret})
	body := []byte(`{"title":"Hello"}`)
	sig := signature.Sign(testSecret, body)

	tests := []struct {
		name string
		sig  string
		body []byte
	}{
		{name: "signature for other body", sig: sig, body: []byte(`{"title":"Hello!"}`)},
		{name: "uppercase hex", sig: strings.ToUpper(sig), body: body},
		{name: "truncated", sig: sig[:len(sig)-2], body: body},
		{name: "signed with other secret", sig: signature.Sign("other", body), body: body},
		{name: "not hex", sig: "zz", body: body},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := a.Authenticate(testAPIKey, tt.sig, tt.body)
			assert.ErrorIs(t, err, domain.ErrInvalidSignature)
		})
	}
}

func TestAuthenticator_NoCredentialsLoaded(t *testing.T) {
	for _, creds := range []*domain.Credentials{nil, {APIKey: testAPIKey}, {Secret: testSecret}} {
		a, calls := newTestAuthenticator(creds)
		err := a.Authenticate(testAPIKey, "abc", []byte(`{}`))
		assert.ErrorIs(t, err, domain.ErrInvalidKey)
		assert.Zero(t, *calls)
	}
}

func TestAuthenticator_FollowsHolder(t *testing.T) {
	holder := NewCredentialHolder(&domain.Credentials{APIKey: testAPIKey, Secret: testSecret})
	a := NewAuthenticator(holder)
	body := []byte(`{"a":1}`)

	require.NoError(t, a.Authenticate(testAPIKey, signature.Sign(testSecret, body), body))

	rotated := &domain.Credentials{APIKey: "ffffffffffffffffffffffffffffffff", Secret: "new-secret"}
	holder.Store(rotated)

	assert.ErrorIs(t, a.Authenticate(testAPIKey, signature.Sign(testSecret, body), body), domain.ErrInvalidKey)
	assert.NoError(t, a.Authenticate(rotated.APIKey, signature.Sign(rotated.Secret, body), body))
}

func TestAuthenticator_Concurrent(t *testing.T) {
	a := NewAuthenticator(NewCredentialHolder(&domain.Credentials{APIKey: testAPIKey, Secret: testSecret}))
	body := []byte(`{"title":"concurrent"}`)
	sig := signature.Sign(testSecret, body)

	var wg sync.WaitGroup
	errs := make(chan error, 50)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- a.Authenticate(testAPIKey, sig, body)
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
}
