package middleware

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"clawd-connector/internal/domain"
	"clawd-connector/pkg/httputil"
	"clawd-connector/pkg/signature"
)

// RequestAuthenticator はヘッダーと本文からリクエストを検証する。
type RequestAuthenticator interface {
	Authenticate(apiKey, sig string, body []byte) error
}

// 認証失敗時のエラーコード。
const (
	CodeMissingAuth      = "missing_auth"
	CodeInvalidKey       = "invalid_key"
	CodeInvalidSignature = "invalid_signature"
	CodeBodyTooLarge     = "body_too_large"
)

// RequireSignature は X-Clawd-API-Key と X-Clawd-Signature を検証するミドルウェアを返す。
// 署名は受信した本文そのものに対して検証し、後続のハンドラには同じ本文を渡す。
func RequireSignature(auth RequestAuthenticator, maxBodyBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			apiKey := r.Header.Get(signature.HeaderAPIKey)
			sig := r.Header.Get(signature.HeaderSignature)

			// ヘッダーが欠けていれば本文は読まない
			if apiKey == "" || sig == "" {
				reject(w, r, domain.ErrMissingCredentials)
				return
			}

			var body []byte
			if r.Body != nil {
				var err error
				body, err = io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
				if err != nil {
					var maxErr *http.MaxBytesError
					if errors.As(err, &maxErr) {
						httputil.Error(w, http.StatusRequestEntityTooLarge, CodeBodyTooLarge, "Request body too large")
						return
					}
					httputil.Error(w, http.StatusBadRequest, "invalid_body", "Could not read request body")
					return
				}
				r.Body = io.NopCloser(bytes.NewReader(body))
			}

			if err := auth.Authenticate(apiKey, sig, body); err != nil {
				reject(w, r, err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// reject は認証失敗を記録して401を返す。
func reject(w http.ResponseWriter, r *http.Request, err error) {
	code, message := authErrorCode(err)
	authRejections.WithLabelValues(code).Inc()
	slog.WarnContext(r.Context(), "request authentication failed",
		"code", code,
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
	)
	WriteAuditLog(r.Context(), "AUTHENTICATE", 0, code)
	httputil.Error(w, http.StatusUnauthorized, code, message)
}

func authErrorCode(err error) (string, string) {
	switch {
	case errors.Is(err, domain.ErrMissingCredentials):
		return CodeMissingAuth, "Missing authentication headers"
	case errors.Is(err, domain.ErrInvalidKey):
		return CodeInvalidKey, "Invalid API key"
	default:
		return CodeInvalidSignature, "Invalid signature"
	}
}
