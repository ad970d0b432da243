package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"time"

	"go.uber.org/zap"
)

const maxErrorBody = 64 << 10

// Client calls the upstream marketplace API through the named endpoint table.
// A Client returned by WithSession carries its own cookie jar, so every
// request it sends is credentialed for that session only.
type Client struct {
	baseURL        string
	endpoints      Endpoints
	http           *http.Client
	logger         *zap.Logger
	onUnauthorized func()
}

// New creates a client without a cookie jar; use WithSession per user session.
func New(baseURL string, endpoints Endpoints, timeout time.Duration, logger *zap.Logger) *Client {
	if endpoints == nil {
		endpoints = DefaultEndpoints()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL:   baseURL,
		endpoints: endpoints,
		http:      &http.Client{Timeout: timeout},
		logger:    logger,
	}
}

// WithSession returns a copy of c with a fresh cookie jar. onUnauthorized,
// when non-nil, runs after any 401 response.
func (c *Client) WithSession(onUnauthorized func()) *Client {
	jar, _ := cookiejar.New(nil)
	return &Client{
		baseURL:   c.baseURL,
		endpoints: c.endpoints,
		http: &http.Client{
			Timeout:   c.http.Timeout,
			Transport: c.http.Transport,
			Jar:       jar,
		},
		logger:         c.logger,
		onUnauthorized: onUnauthorized,
	}
}

// Caller is the call surface feature modules depend on.
type Caller interface {
	Call(ctx context.Context, name string, params map[string]string, body, out any, opts ...CallOption) error
}

// CallOption customises a single request.
type CallOption func(*http.Request)

// WithHeader sets a request header.
func WithHeader(key, value string) CallOption {
	return func(r *http.Request) { r.Header.Set(key, value) }
}

// Call sends body (JSON encoded, may be nil) to the named endpoint and decodes
// the response into out (may be nil).
func (c *Client) Call(ctx context.Context, name string, params map[string]string, body, out any, opts ...CallOption) error {
	ep, ok := c.endpoints[name]
	if !ok {
		return fmt.Errorf("remote: unknown endpoint %q", name)
	}
	path, err := ep.Expand(params)
	if err != nil {
		return err
	}

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("remote: encoding %s request: %w", name, err)
		}
		reader = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, ep.Method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("remote: building %s request: %w", name, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("upstream call failed", zap.String("endpoint", name), zap.Error(err))
		return &Error{Kind: KindTransport, Endpoint: name, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("upstream call",
		zap.String("endpoint", name),
		zap.String("method", ep.Method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))

	if resp.StatusCode >= http.StatusBadRequest {
		rerr := &Error{
			Kind:     KindServer,
			Endpoint: name,
			Status:   resp.StatusCode,
			Message:  serverMessage(resp.Body),
		}
		if resp.StatusCode == http.StatusUnauthorized && c.onUnauthorized != nil {
			c.onUnauthorized()
		}
		return rerr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
		return &Error{Kind: KindDecode, Endpoint: name, Status: resp.StatusCode, Err: err}
	}
	return nil
}

// serverMessage pulls "message" or "error" from a JSON error body.
func serverMessage(r io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(r, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return ""
	}
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(raw, &body) != nil {
		return ""
	}
	if body.Message != "" {
		return body.Message
	}
	return body.Error
}
