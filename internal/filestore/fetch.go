package filestore

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	appErr "github.com/xxxsen/discovery/internal/pkg/errors"
)

const defaultMaxDocumentBytes = 32 << 20

type bucketed interface {
	Bucket() string
}

// Fetcher loads document text from an http(s) URL, an s3:// URL
// pointing at the configured bucket, or a plain key in the store.
type Fetcher struct {
	store    Store
	client   *http.Client
	maxBytes int64
}

type FetchOption func(f *Fetcher)

func WithHTTPClient(c *http.Client) FetchOption {
	return func(f *Fetcher) {
		f.client = c
	}
}

func WithMaxBytes(n int64) FetchOption {
	return func(f *Fetcher) {
		if n > 0 {
			f.maxBytes = n
		}
	}
}

func NewFetcher(store Store, opts ...FetchOption) *Fetcher {
	f := &Fetcher{
		store:    store,
		client:   &http.Client{Timeout: 30 * time.Second},
		maxBytes: defaultMaxDocumentBytes,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func (f *Fetcher) FetchText(ctx context.Context, documentURL string) (string, error) {
	documentURL = strings.TrimSpace(documentURL)
	if documentURL == "" {
		return "", fmt.Errorf("%w: empty document url", appErr.ErrDocumentFetch)
	}
	rc, err := f.open(ctx, documentURL)
	if err != nil {
		return "", fmt.Errorf("%w: %v", appErr.ErrDocumentFetch, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(io.LimitReader(rc, f.maxBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: read: %v", appErr.ErrDocumentFetch, err)
	}
	if int64(len(data)) > f.maxBytes {
		return "", fmt.Errorf("%w: document exceeds %d bytes", appErr.ErrDocumentFetch, f.maxBytes)
	}
	return strings.ToValidUTF8(string(data), ""), nil
}

func (f *Fetcher) open(ctx context.Context, documentURL string) (io.ReadCloser, error) {
	u, err := url.Parse(documentURL)
	if err != nil || u.Scheme == "" {
		return f.openKey(ctx, documentURL)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return f.openHTTP(ctx, documentURL)
	case "s3":
		if b, ok := f.store.(bucketed); !ok || b.Bucket() != u.Host {
			return nil, fmt.Errorf("bucket %q is not configured", u.Host)
		}
		return f.openKey(ctx, strings.TrimPrefix(u.Path, "/"))
	case "file":
		return f.openKey(ctx, strings.TrimPrefix(u.Path, "/"))
	default:
		return nil, fmt.Errorf("unsupported scheme %q", u.Scheme)
	}
}

func (f *Fetcher) openKey(ctx context.Context, key string) (io.ReadCloser, error) {
	if f.store == nil {
		return nil, fmt.Errorf("file store is not configured")
	}
	return f.store.Open(ctx, key)
}

func (f *Fetcher) openHTTP(ctx context.Context, target string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		return nil, fmt.Errorf("download status %d", resp.StatusCode)
	}
	return resp.Body, nil
}
