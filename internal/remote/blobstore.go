package remote

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// BlobStore proxies blob reads and writes to a peer's /api/blobs endpoints,
// letting a thin instance run without local persistence.
type BlobStore struct {
	baseURL string
	http    *http.Client
}

func NewBlobStore(baseURL string, timeout time.Duration) *BlobStore {
	return &BlobStore{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

func (b *BlobStore) Load(ctx context.Context, key string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, b.blobURL(key), nil)
	if err != nil {
		return nil, false, fmt.Errorf("build request: %w", err)
	}

	resp, err := b.http.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("load blob %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("load blob %s: unexpected status %d", key, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("read blob %s: %w", key, err)
	}
	return raw, true, nil
}

func (b *BlobStore) Save(ctx context.Context, key string, value []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, b.blobURL(key), strings.NewReader(string(value)))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.http.Do(req)
	if err != nil {
		return fmt.Errorf("save blob %s: %w", key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("save blob %s: unexpected status %d", key, resp.StatusCode)
	}
	return nil
}

func (b *BlobStore) Close() error { return nil }

func (b *BlobStore) blobURL(key string) string {
	return b.baseURL + "/api/blobs/" + url.PathEscape(key)
}
