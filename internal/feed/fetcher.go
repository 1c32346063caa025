package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// FetchResult is the outcome of one conditional fetch. NotModified means the
// server confirmed the cached copy is still current and Body is empty.
type FetchResult struct {
	NotModified  bool
	Body         []byte
	LastModified string
}

type Fetcher struct {
	client *http.Client
}

func NewFetcher(timeout time.Duration) *Fetcher {
	return &Fetcher{
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch performs a single conditional GET. ifModifiedSince is the validator
// from the previous fetch; pass an empty string for an unconditional fetch.
// Transport failures and unexpected status codes surface as errors and are
// never retried here, the next scheduled tick retries naturally.
func (f *Fetcher) Fetch(ctx context.Context, url, ifModifiedSince string) (*FetchResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	if ifModifiedSince != "" {
		req.Header.Set("If-Modified-Since", ifModifiedSince)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error while doing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{NotModified: true}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d - status: %s", resp.StatusCode, resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading resp.Body: %w", err)
	}

	return &FetchResult{
		Body:         body,
		LastModified: resp.Header.Get("Last-Modified"),
	}, nil
}
