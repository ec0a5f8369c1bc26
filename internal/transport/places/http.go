// Package places implements place providers over the Google Places (New) and
// Foursquare Places HTTP APIs.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/kailas-cloud/venuefinder/internal/domain"
)

// DefaultTimeout bounds a single HTTP call.
const DefaultTimeout = 10 * time.Second

const maxErrorBody = 4 << 10

// apiClient is the JSON-over-HTTP plumbing shared by the providers.
type apiClient struct {
	name    string
	baseURL string
	http    *http.Client
	headers http.Header
}

func newAPIClient(name, baseURL string, timeout time.Duration, headers http.Header) apiClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return apiClient{
		name:    name,
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
		headers: headers,
	}
}

// do sends body (if non-nil) as JSON and decodes the response into out.
func (c apiClient) do(ctx context.Context, method, path string, extra http.Header, body, out any) error {
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		rd = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	for k, vs := range c.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	for k, vs := range extra {
		for _, v := range vs {
			req.Header.Set(k, v)
		}
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return classifyTransportError(c.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return parseAPIError(c.name, resp.StatusCode, raw)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s decode response: %w: %w", c.name, err, domain.ErrProviderError)
	}
	return nil
}

// classifyTransportError maps network timeouts to transient failures.
// Caller cancellation is returned as-is.
func classifyTransportError(name string, err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%s request timed out: %w", name, domain.ErrProviderTransient)
	}
	return fmt.Errorf("%s request failed: %v: %w", name, err, domain.ErrProviderTransient)
}

// parseAPIError extracts a human-readable error from the response body.
// 408, 429 and 5xx are transient, everything else is permanent.
func parseAPIError(name string, status int, body []byte) error {
	wrap := domain.ErrProviderError
	if isTransientStatus(status) {
		wrap = domain.ErrProviderTransient
	}
	if status == http.StatusNotFound {
		wrap = domain.ErrNotFound
	}
	if detail := extractDetail(body); detail != "" {
		return fmt.Errorf("%s API error %d: %s: %w", name, status, detail, wrap)
	}
	return fmt.Errorf("%s API error %d: %w", name, status, wrap)
}

func isTransientStatus(status int) bool {
	return status == http.StatusRequestTimeout ||
		status == http.StatusTooManyRequests ||
		status >= http.StatusInternalServerError
}

// extractDetail reads {"error":{"message":...}} (Google) or {"message":...} (Foursquare).
func extractDetail(body []byte) string {
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &parsed) != nil {
		return ""
	}
	if parsed.Error.Message != "" {
		return parsed.Error.Message
	}
	return parsed.Message
}
