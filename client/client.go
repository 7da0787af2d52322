// Package client calls a remote detection service.
package client

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/nvr-ai/go-detect/server"
)

// DefaultTimeout bounds every request.
const DefaultTimeout = 5 * time.Second

// Client is a typed client of the detection service.
type Client struct {
	http *resty.Client
}

// New creates a Client.
//
// Arguments:
//   - baseURL: The service root, e.g. "http://127.0.0.1:8080".
//   - timeout: The per-request timeout; zero uses DefaultTimeout.
//
// Returns:
//   - *Client: The client.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		http: resty.New().
			SetBaseURL(baseURL).
			SetTimeout(timeout).
			SetHeader("Content-Type", "application/json"),
	}
}

// Error is a non-2xx answer of the service.
type Error struct {
	StatusCode int
	Body       server.ErrorResponse
}

func (e *Error) Error() string {
	if e.Body.Stage != "" {
		return fmt.Sprintf("detect service: %d at %s: %s", e.StatusCode, e.Body.Stage, e.Body.Error)
	}
	return fmt.Sprintf("detect service: %d: %s", e.StatusCode, e.Body.Error)
}

// Decode sends raw output tensors for decoding.
func (c *Client) Decode(ctx context.Context, req server.DecodeRequest) (*server.Response, error) {
	return c.post(ctx, "/v1/decode", req)
}

// Detect sends an encoded image (JPEG, PNG, ...) for inference and decoding.
func (c *Client) Detect(ctx context.Context, encoded []byte) (*server.Response, error) {
	return c.post(ctx, "/v1/detect", server.DetectRequest{
		Image: base64.StdEncoding.EncodeToString(encoded),
	})
}

func (c *Client) post(ctx context.Context, path string, body any) (*server.Response, error) {
	var result server.Response
	var failure server.ErrorResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(body).
		SetResult(&result).
		SetError(&failure).
		Post(path)
	if err != nil {
		return nil, err
	}
	if resp.IsError() {
		return nil, &Error{StatusCode: resp.StatusCode(), Body: failure}
	}
	return &result, nil
}
