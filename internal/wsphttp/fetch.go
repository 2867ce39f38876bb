package wsphttp

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPFetcher is the default Fetcher: a thin wrapper around
// net/http.Client. No third-party HTTP client is used here — nothing
// in the corpus this core is grounded on wraps one either, so the
// standard library is the right tool for this specific boundary (see
// DESIGN.md).
type HTTPFetcher struct {
	Client *http.Client
}

// NewHTTPFetcher returns a Fetcher with a sensible request timeout.
func NewHTTPFetcher() *HTTPFetcher {
	return &HTTPFetcher{Client: &http.Client{Timeout: 15 * time.Second}}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, req Request) (Response, error) {
	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.URL, body)
	if err != nil {
		return Response{}, fmt.Errorf("wsphttp: building request: %w", err)
	}

	resp, err := f.Client.Do(httpReq)
	if err != nil {
		return Response{}, fmt.Errorf("wsphttp: request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("wsphttp: reading response body: %w", err)
	}

	return Response{Status: resp.StatusCode, Body: respBody}, nil
}
