package acquire

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// HTTPCamera captures frames from a snapshot URL, such as an IP camera or
// a phone camera bridge. A 204 No Content response means the capture was
// cancelled on the device.
type HTTPCamera struct {
	url    string
	client *http.Client
}

// NewHTTPCamera creates an HTTPCamera with the given request timeout.
func NewHTTPCamera(url string, timeout time.Duration) *HTTPCamera {
	return &HTTPCamera{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Capture fetches a single frame.
func (c *HTTPCamera) Capture(ctx context.Context) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("build snapshot request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch snapshot: %w", err)
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return resp.Body, nil
	case http.StatusNoContent:
		resp.Body.Close()
		return nil, nil
	default:
		resp.Body.Close()
		return nil, fmt.Errorf("fetch snapshot: unexpected status %d", resp.StatusCode)
	}
}
