// Package fetch downloads remote media into the content cache.
package fetch

import (
	"context"
	"fmt"
	"io"
	"log"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path"
	"strings"
	"time"

	"github.com/bobarin/facelessrender/internal/cache"
	"github.com/bobarin/facelessrender/internal/retry"
)

// MaxBytes bounds a single download.
const MaxBytes = 512 << 20

// HTTPFetcher downloads http(s) URLs with retry and stores them in the cache,
// keyed by URL. Repeated fetches of a URL reuse the cached file.
type HTTPFetcher struct {
	cache    *cache.Store
	client   *http.Client
	attempts int
}

func New(store *cache.Store) *HTTPFetcher {
	return &HTTPFetcher{
		cache:    store,
		client:   &http.Client{Timeout: 120 * time.Second},
		attempts: retry.DefaultAttempts,
	}
}

// Fetch returns a local path for rawURL.
func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid media URL %q", rawURL)
	}

	key := cache.Key("fetch", rawURL)
	ext := strings.ToLower(path.Ext(u.Path))
	if ext == "" || len(ext) > 6 {
		ext = ".bin"
	}

	p, hit, err := f.cache.GetOrFill(key, ext, func(tmp string) error {
		return f.download(ctx, rawURL, tmp)
	})
	if err != nil {
		return "", err
	}
	if hit {
		log.Printf("[Fetch] Cache hit for %s", rawURL)
	}
	return p, nil
}

func (f *HTTPFetcher) download(ctx context.Context, rawURL, dst string) error {
	var lastErr error
	for attempt := 0; attempt < f.attempts; attempt++ {
		if attempt > 0 {
			delay := retry.Delay(attempt)
			log.Printf("[Fetch] Retry %d/%d for %s (waiting %v): %v", attempt, f.attempts-1, rawURL, delay, lastErr)
			select {
			case <-ctx.Done():
				return fmt.Errorf("download cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		status, err := f.get(ctx, rawURL, dst)
		if err == nil {
			return nil
		}
		lastErr = err
		if !(retry.IsRetryableStatus(status) || (status == 0 && retry.IsRetryableError(err))) {
			return err
		}
	}
	return fmt.Errorf("download failed after %d attempts: %w", f.attempts, lastErr)
}

func (f *HTTPFetcher) get(ctx context.Context, rawURL, dst string) (int, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", rawURL, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to download %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return resp.StatusCode, fmt.Errorf("download %s returned status %d", rawURL, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err == nil && (mt == "text/html" || mt == "application/json") {
			return resp.StatusCode, fmt.Errorf("download %s returned %s, not media", rawURL, mt)
		}
	}

	out, err := os.Create(dst)
	if err != nil {
		return 0, fmt.Errorf("failed to create file: %w", err)
	}
	n, err := io.Copy(out, io.LimitReader(resp.Body, MaxBytes+1))
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return 0, fmt.Errorf("failed to save %s: %w", rawURL, err)
	}
	if n == 0 {
		return resp.StatusCode, fmt.Errorf("download %s returned an empty body", rawURL)
	}
	if n > MaxBytes {
		return resp.StatusCode, fmt.Errorf("download %s exceeds %d bytes", rawURL, MaxBytes)
	}
	return resp.StatusCode, nil
}
