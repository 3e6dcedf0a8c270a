package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
)

// DefaultUserAgent identifies the tool to remote hosts. SEC EDGAR rejects
// anonymous clients.
const DefaultUserAgent = "statement-stitch/1.0 (ops@example.com)"

// maxFetchBytes caps a remote document.
const maxFetchBytes = 64 << 20

// Fetcher downloads remote sources, optionally caching them on disk.
type Fetcher struct {
	client    *http.Client
	UserAgent string
	CacheDir  string
}

// NewFetcher creates a fetcher. An empty cacheDir disables caching.
func NewFetcher(cacheDir string) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: 60 * time.Second},
		UserAgent: DefaultUserAgent,
		CacheDir:  cacheDir,
	}
}

// IsRemote reports whether p is an http(s) URL.
func IsRemote(p string) bool {
	return strings.HasPrefix(p, "http://") || strings.HasPrefix(p, "https://")
}

// Fetch returns the document body, from the cache when present.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	cachePath := f.cachePath(url)
	if cachePath != "" {
		if data, err := os.ReadFile(cachePath); err == nil && len(data) > 0 {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to create request for %s", url)
	}
	req.Header.Set("User-Agent", f.UserAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "failed to fetch %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, eris.New(fmt.Sprintf("%s returned status %d", url, resp.StatusCode))
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBytes))
	if err != nil {
		return nil, eris.Wrapf(err, "failed to read %s", url)
	}

	if cachePath != "" {
		if err := os.MkdirAll(filepath.Dir(cachePath), 0o755); err == nil {
			_ = os.WriteFile(cachePath, data, 0o644)
		}
	}
	return data, nil
}

// cachePath keys the cache on a stable hash of the URL, keeping the
// extension so cached files stay recognizable.
func (f *Fetcher) cachePath(url string) string {
	if f.CacheDir == "" {
		return ""
	}
	ext := path.Ext(strings.SplitN(url, "?", 2)[0])
	return filepath.Join(f.CacheDir, "sources", FilingID(url)+ext)
}
