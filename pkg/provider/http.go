package provider

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPClient posts a request body and returns the raw response body.
// A non-2xx response is returned as *StatusError.
type HTTPClient interface {
	Post(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error)
}

// HTTPClientFunc adapts a function to HTTPClient.
type HTTPClientFunc func(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error)

// Post calls f.
func (f HTTPClientFunc) Post(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	return f(ctx, url, headers, body)
}

// StatusError is returned for non-2xx provider responses
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.StatusCode, e.Body)
}

const maxErrorBody = 4 * 1024

type httpClient struct {
	client *http.Client
}

// NewHTTPClient returns an HTTPClient backed by net/http.
// A zero timeout leaves deadlines to the request context.
func NewHTTPClient(timeout time.Duration) HTTPClient {
	return &httpClient{client: &http.Client{Timeout: timeout}}
}

func (c *httpClient) Post(ctx context.Context, url string, headers map[string]string, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(data)}
	}

	return data, nil
}
