package infra

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"net/url"
	"path"
	"strings"
	"syscall"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"clawd-connector/internal/domain"
)

const maxMediaRedirects = 5

// MediaFetcher は外部URLから画像を取得する。
// 内部ネットワーク宛ての接続はダイヤル時に拒否する。
type MediaFetcher struct {
	client   *http.Client
	maxBytes int64
}

type mediaFetcherOptions struct {
	allowPrivate bool
}

// MediaFetcherOption はMediaFetcherの挙動を変更する。
type MediaFetcherOption func(*mediaFetcherOptions)

// AllowPrivateNetworks はループバック・プライベート宛ての接続を許可する。テスト用。
func AllowPrivateNetworks() MediaFetcherOption {
	return func(o *mediaFetcherOptions) {
		o.allowPrivate = true
	}
}

// NewMediaFetcher は新しいMediaFetcherを生成する。
func NewMediaFetcher(timeout time.Duration, maxBytes int64, opts ...MediaFetcherOption) *MediaFetcher {
	var o mediaFetcherOptions
	for _, opt := range opts {
		opt(&o)
	}

	dialer := &net.Dialer{Timeout: timeout}
	if !o.allowPrivate {
		dialer.Control = rejectInternalAddress
	}
	transport := &http.Transport{
		Proxy:                 nil,
		DialContext:           dialer.DialContext,
		TLSHandshakeTimeout:   timeout,
		ResponseHeaderTimeout: timeout,
		MaxIdleConns:          4,
		IdleConnTimeout:       30 * time.Second,
	}

	return &MediaFetcher{
		client: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(transport),
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxMediaRedirects {
					return fmt.Errorf("%w: too many redirects", domain.ErrMediaRejected)
				}
				return checkMediaURL(req.URL)
			},
		},
		maxBytes: maxBytes,
	}
}

// Fetch は画像を取得し、内容から判定したMIMEタイプとファイル名を返す。
func (f *MediaFetcher) Fetch(ctx context.Context, rawURL string) (*domain.FetchedMedia, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMediaRejected, err)
	}
	if err := checkMediaURL(u); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("building media request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d", domain.ErrMediaRejected, resp.StatusCode)
	}
	if resp.ContentLength > f.maxBytes {
		return nil, fmt.Errorf("%w: content length %d exceeds %d bytes", domain.ErrMediaRejected, resp.ContentLength, f.maxBytes)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("reading media: %w", err)
	}
	if int64(len(data)) > f.maxBytes {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", domain.ErrMediaRejected, f.maxBytes)
	}

	mt := mimetype.Detect(data)
	mimeType, _, _ := strings.Cut(mt.String(), ";")
	if !strings.HasPrefix(mimeType, "image/") {
		return nil, fmt.Errorf("%w: content type %s is not an image", domain.ErrMediaRejected, mimeType)
	}

	return &domain.FetchedMedia{
		FileName: mediaFileName(u.Path, mt.Extension()),
		MIMEType: mimeType,
		Data:     data,
	}, nil
}

func checkMediaURL(u *url.URL) error {
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: scheme %q is not allowed", domain.ErrMediaRejected, u.Scheme)
	}
	if u.Hostname() == "" {
		return fmt.Errorf("%w: missing host", domain.ErrMediaRejected)
	}
	return nil
}

// rejectInternalAddress は名前解決後の接続先アドレスを検査する。
func rejectInternalAddress(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMediaRejected, err)
	}
	addr, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrMediaRejected, err)
	}
	if isInternalAddr(addr.Unmap()) {
		return fmt.Errorf("%w: address %s is not reachable", domain.ErrMediaRejected, addr)
	}
	return nil
}

func isInternalAddr(addr netip.Addr) bool {
	return addr.IsLoopback() ||
		addr.IsPrivate() ||
		addr.IsLinkLocalUnicast() ||
		addr.IsLinkLocalMulticast() ||
		addr.IsInterfaceLocalMulticast() ||
		addr.IsMulticast() ||
		addr.IsUnspecified()
}

// mediaFileName はURLのパスから保存用のファイル名を作る。拡張子が無ければ検出結果で補う。
func mediaFileName(urlPath, ext string) string {
	base := path.Base(urlPath)
	var b strings.Builder
	for _, r := range base {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteByte('-')
		}
	}
	name := strings.Trim(b.String(), ".-")
	if name == "" {
		name = "image"
	}
	if path.Ext(name) == "" {
		name += ext
	}
	return name
}
