// Package feed fetches earthquake event lists from public feeds and maps them
// to domain records.
package feed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// UserAgent identifies the service to feed operators.
const UserAgent = "quake-map-etl/1.0 (+https://github.com/couchcryptid/quake-map-etl)"

// maxBodyBytes caps a single feed response.
const maxBodyBytes = 32 << 20

func newHTTPClient(timeout time.Duration) *http.Client {
	return &http.Client{Timeout: timeout}
}

// get fetches url and returns the body. Non-2xx responses are errors that
// include the status and the start of the body.
func get(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("feed error: status %d: %s", resp.StatusCode, body)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	return body, nil
}
