package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"
)

// DefaultTimeout is used when neither the client config nor the request
// sets a deadline.
const DefaultTimeout = 10 * time.Second

// Config holds the immutable client settings. One Config (and one
// Client built from it) per process or per test; there is no package
// state.
type Config struct {
	// BaseURL is the backend origin every relative path is resolved
	// against, e.g. "http://backend:8000".
	BaseURL string
	// Timeout is the default per-request deadline. Zero means
	// DefaultTimeout.
	Timeout time.Duration
	// Headers are sent on every request; per-call headers win on
	// conflict.
	Headers map[string]string
}

// Client issues requests against a single backend origin. Concurrent
// use is safe: all fields are read-only after New.
type Client struct {
	httpClient *http.Client
	base       *url.URL
	timeout    time.Duration
	headers    map[string]string
	logger     *slog.Logger
}

// New creates a Client with connection pooling. The base URL must be an
// absolute http(s) origin.
func New(cfg Config, logger *slog.Logger) (*Client, error) {
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("base URL must be http or https; got %q", cfg.BaseURL)
	}
	if base.Host == "" {
		return nil, fmt.Errorf("base URL %q has no host", cfg.BaseURL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	headers := make(map[string]string, len(cfg.Headers))
	for k, v := range cfg.Headers {
		headers[k] = v
	}

	transport := &http.Transport{
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &Client{
		// No client-level timeout: the per-request context enforces
		// the deadline and releases the connection when it fires.
		httpClient: &http.Client{Transport: transport},
		base:       base,
		timeout:    timeout,
		headers:    headers,
		logger:     logger.With("component", "api_client"),
	}, nil
}

// Request describes a single call. Constructed per call and discarded
// after the request completes.
type Request struct {
	Method string
	// Path is relative to the configured origin and must start with
	// "/". Absolute URLs are rejected with a FailureRequest envelope.
	Path string
	// Body is either a JSON-encodable value or an *Upload.
	Body    any
	Headers map[string]string
	// Timeout overrides the client default when non-zero.
	Timeout time.Duration
}

// Get issues a GET request.
func Get[T any](ctx context.Context, c *Client, path string) Envelope[T] {
	return Do[T](ctx, c, Request{Method: http.MethodGet, Path: path})
}

// Post issues a POST request with a JSON body.
func Post[T any](ctx context.Context, c *Client, path string, body any) Envelope[T] {
	return Do[T](ctx, c, Request{Method: http.MethodPost, Path: path, Body: body})
}

// Put issues a PUT request with a JSON body.
func Put[T any](ctx context.Context, c *Client, path string, body any) Envelope[T] {
	return Do[T](ctx, c, Request{Method: http.MethodPut, Path: path, Body: body})
}

// Patch issues a PATCH request with a JSON body.
func Patch[T any](ctx context.Context, c *Client, path string, body any) Envelope[T] {
	return Do[T](ctx, c, Request{Method: http.MethodPatch, Path: path, Body: body})
}

// Delete issues a DELETE request.
func Delete[T any](ctx context.Context, c *Client, path string) Envelope[T] {
	return Do[T](ctx, c, Request{Method: http.MethodDelete, Path: path})
}

// UploadFile sends the upload as a multipart/form-data POST. The file
// travels under the reserved field name and each entry of up.Fields as
// a sibling part with its value coerced to a string.
func UploadFile[T any](ctx context.Context, c *Client, path string, up Upload) Envelope[T] {
	return Do[T](ctx, c, Request{Method: http.MethodPost, Path: path, Body: &up})
}

// Do executes one request and classifies the outcome. It never returns
// a Go error; exactly one of the success path and the four failure
// kinds (plus FailureRequest for construction problems) produces the
// envelope.
func Do[T any](ctx context.Context, c *Client, req Request) Envelope[T] {
	target, err := c.resolve(req.Path)
	if err != nil {
		return failure[T](FailureRequest, 0, err.Error(), "")
	}

	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return failure[T](FailureRequest, 0, err.Error(), "")
	}

	timeout := req.Timeout
	if timeout == 0 {
		timeout = c.timeout
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(tctx, req.Method, target, body)
	if err != nil {
		return failure[T](FailureRequest, 0, fmt.Sprintf("build request: %v", err), "")
	}

	// Defaults first, then the encoder's content type, then per-call
	// overrides; later writes win.
	for k, v := range c.headers {
		httpReq.Header.Set(k, v)
	}
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}

	c.logger.Debug("request", "method", req.Method, "path", req.Path)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return classifyTransport[T](ctx, tctx, timeout, err)
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return classifyTransport[T](ctx, tctx, timeout, err)
	}

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return decodeSuccess[T](resp.StatusCode, raw)
	}

	errMsg, message := serverError(resp.StatusCode, raw)
	return failure[T](FailureHTTP, resp.StatusCode, errMsg, message)
}

// resolve turns a relative path into the full backend URL. Absolute
// URLs are rejected so callers cannot smuggle requests to a different
// origin through the shared client.
func (c *Client) resolve(path string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %v", path, err)
	}
	if ref.IsAbs() || ref.Host != "" {
		return "", fmt.Errorf("absolute URLs are not allowed; got %q", path)
	}
	return c.base.ResolveReference(ref).String(), nil
}

// encodeBody converts the request body into a reader and content type.
func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Upload:
		// Content type comes from the multipart writer so the
		// boundary is included.
		return b.encode()
	case Upload:
		return b.encode()
	default:
		data, err := json.Marshal(body)
		if err != nil {
			return nil, "", fmt.Errorf("encode body: %v", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func classifyTransport[T any](ctx, tctx context.Context, timeout time.Duration, err error) Envelope[T] {
	if errors.Is(tctx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
		return failure[T](FailureTimeout, 0,
			fmt.Sprintf("request timed out after %s", timeout), "")
	}
	return failure[T](FailureNetwork, 0, fmt.Sprintf("network error: %v", err), "")
}

func decodeSuccess[T any](status int, raw []byte) Envelope[T] {
	var data T
	if len(bytes.TrimSpace(raw)) == 0 {
		// 204-style responses succeed with the zero value.
		return succeed(data, "", status)
	}
	if err := json.Unmarshal(raw, &data); err != nil {
		return failure[T](FailureParse, status,
			fmt.Sprintf("parse response body: %v", err), "")
	}
	return succeed(data, serverMessage(raw), status)
}

// serverMessage pulls an optional top-level "message" string out of a
// JSON body. Best effort; anything undecodable yields "".
func serverMessage(raw []byte) string {
	var probe struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &probe); err != nil {
		return ""
	}
	return probe.Message
}

// serverError extracts the server-supplied error text from an error
// response body, falling back to the status line.
func serverError(status int, raw []byte) (errMsg, message string) {
	var probe struct {
		Error   string `json:"error"`
		Message string `json:"message"`
		Detail  string `json:"detail"`
	}
	if err := json.Unmarshal(raw, &probe); err == nil {
		switch {
		case probe.Error != "":
			return probe.Error, probe.Message
		case probe.Message != "":
			return probe.Message, probe.Message
		case probe.Detail != "":
			return probe.Detail, ""
		}
	}
	return fmt.Sprintf("HTTP %d %s", status, http.StatusText(status)), ""
}
