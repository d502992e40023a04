package http

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client is a bounded HTTP client used for remote resources such as images
// referenced from rich content.
type Client struct {
	httpClient *http.Client
	maxBytes   int64
}

func NewClient(timeout time.Duration, maxBytes int64) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		maxBytes: maxBytes,
	}
}

// Fetch downloads url and returns the body with its declared content type.
// Bodies larger than the configured limit are rejected.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("fetch %s: unexpected status %d", url, resp.StatusCode)
	}

	reader := io.Reader(resp.Body)
	if c.maxBytes > 0 {
		reader = io.LimitReader(resp.Body, c.maxBytes+1)
	}
	body, err := io.ReadAll(reader)
	if err != nil {
		return nil, "", fmt.Errorf("read %s: %w", url, err)
	}
	if c.maxBytes > 0 && int64(len(body)) > c.maxBytes {
		return nil, "", fmt.Errorf("fetch %s: body exceeds %d bytes", url, c.maxBytes)
	}

	return body, resp.Header.Get("Content-Type"), nil
}
