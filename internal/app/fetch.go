package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Series pages are rendered for browsers; a bare Go user agent gets blocked or
// served a challenge page on some hosts.
const (
	browserUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"
	browserAccept    = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"

	defaultFetchTimeout = 20 * time.Second
)

// PageFetcher retrieves the raw text of a series page. A timeout or HTTP error
// is a plain error: callers treat every fetch failure the same way.
type PageFetcher interface {
	Fetch(ctx context.Context, pageURL string) (string, error)
}

type HTTPPageFetcher struct {
	client *http.Client
}

func NewHTTPPageFetcher(timeout time.Duration) *HTTPPageFetcher {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	// Redirects are followed by default.
	return &HTTPPageFetcher{client: &http.Client{Timeout: timeout}}
}

func (f *HTTPPageFetcher) Fetch(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	req.Header.Set("Accept", browserAccept)
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("page fetch http error: %s", resp.Status)
	}

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
