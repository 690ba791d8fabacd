package server

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
)

// Fetcher downloads a URL to a local file.
type Fetcher interface {
	Fetch(ctx context.Context, url, dest string) error
}

// HTTPFetcher downloads over HTTP(S).
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a Fetcher using http.DefaultClient.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: http.DefaultClient}
}

// Fetch writes the body at url to dest. dest is removed if the copy fails.
func (h *HTTPFetcher) Fetch(ctx context.Context, url, dest string) error {
	resp, err := h.get(ctx, url)
	if err != nil {
		return fmt.Errorf("downloading %s: %w", url, err)
	}
	defer resp.Body.Close()

	f, err := os.Create(dest)
	if err != nil {
		return fmt.Errorf("creating %s: %w", dest, err)
	}

	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		os.Remove(dest)
		return fmt.Errorf("writing %s: %w", dest, err)
	}
	return f.Close()
}

func (h *HTTPFetcher) get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	client := h.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("HTTP %d from %s", resp.StatusCode, url)
	}
	return resp, nil
}

func (h *HTTPFetcher) getBody(ctx context.Context, url string) ([]byte, error) {
	resp, err := h.get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}
