package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"clawd-connector/pkg/signature"
)

// apiClient は送信する本文に署名して連携APIを呼び出す。
type apiClient struct {
	baseURL    string
	apiKey     string
	secret     string
	httpClient *http.Client
}

func newAPIClient(baseURL, apiKey, secret string, timeout time.Duration) (*apiClient, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("--api-url is required (or set CLAWDCTL_API_URL)")
	}
	if apiKey == "" || secret == "" {
		return nil, fmt.Errorf("--api-key and --secret are required (or set CLAWDCTL_API_KEY and CLAWDCTL_SECRET)")
	}
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		secret:  secret,
		httpClient: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}, nil
}

// clientFromFlags はグローバルフラグからクライアントを生成する。
func clientFromFlags() (*apiClient, error) {
	return newAPIClient(apiURL, apiKey, secret, timeout)
}

// do はリクエストを送り、ステータスと本文を返す。署名は送信する本文そのものに対して計算する。
func (c *apiClient) do(ctx context.Context, method, path string, query url.Values, body []byte) (int, []byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bytes.NewReader(body))
	if err != nil {
		return 0, nil, fmt.Errorf("creating request: %w", err)
	}
	if len(body) > 0 {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(signature.HeaderAPIKey, c.apiKey)
	req.Header.Set(signature.HeaderSignature, signature.Sign(c.secret, body))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, fmt.Errorf("reading response: %w", err)
	}
	return resp.StatusCode, respBody, nil
}

// call は 200 以外をエラーとして扱う。
func (c *apiClient) call(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	status, respBody, err := c.do(ctx, method, path, query, body)
	if err != nil {
		return nil, err
	}
	if status != http.StatusOK {
		return nil, handleErrorResponse(status, respBody)
	}
	return respBody, nil
}
