// Package appserver is the HTTP client for the dental CRM application
// server. It owns the transport policy: bounded timeouts, read retries with
// exponential backoff, and the method-override fallback for servers that do
// not accept PATCH/DELETE directly.
package appserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dentalops/assistant/pkg/logging"
)

const (
	readAttempts   = 3
	backoffBase    = 500 * time.Millisecond
	defaultTimeout = 30 * time.Second
	connectTimeout = 5 * time.Second
)

// Config describes how to reach the application server.
type Config struct {
	BaseURL        string
	Token          string
	Timeout        time.Duration
	ConnectTimeout time.Duration
	Logger         *logging.Logger
}

// Client talks to the application server.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *logging.Logger
}

// APIError carries a non-2xx response so callers can surface status and body.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("appserver: status %d: %s", e.StatusCode, strings.TrimSpace(e.Body))
}

// New validates the configuration and returns a ready-to-use client.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("appserver: base URL required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	connect := cfg.ConnectTimeout
	if connect <= 0 {
		connect = connectTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.Token,
		logger:  logger,
		http: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{Timeout: connect}).DialContext,
			},
		},
	}, nil
}

// getJSON issues a GET with up to three attempts. Only transport errors are
// retried; HTTP error statuses are returned to the caller immediately.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	backoff := backoffBase
	var lastErr error
	for attempt := 1; attempt <= readAttempts; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
		if err != nil {
			return nil, fmt.Errorf("appserver: request build failed: %w", err)
		}
		c.setHeaders(req)

		data, err := c.do(req)
		if err == nil {
			return data, nil
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, err
		}
		lastErr = err
		if attempt < readAttempts {
			c.logger.Warn("read retry", "path", path, "attempt", attempt, "error", err)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		}
	}
	return nil, fmt.Errorf("appserver: GET %s failed after %d attempts: %w", path, readAttempts, lastErr)
}

// mutate issues a write. The native verb is tried first; on a transport
// failure the same payload is re-sent once as a POST carrying the verb in a
// "_method" field. Both attempts are logged.
func (c *Client) mutate(ctx context.Context, method, path string, payload map[string]any) ([]byte, error) {
	payload = pruneEmpty(payload)

	data, err := c.sendJSON(ctx, method, path, payload)
	if err == nil {
		return data, nil
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return nil, err
	}

	c.logger.Warn("mutation transport failed, retrying with method override",
		"method", method, "path", path, "error", err)

	override := make(map[string]any, len(payload)+1)
	for k, v := range payload {
		override[k] = v
	}
	override["_method"] = method

	data, err = c.sendJSON(ctx, http.MethodPost, path, override)
	if err != nil {
		return nil, fmt.Errorf("appserver: %s %s failed on both native and override attempts: %w", method, path, err)
	}
	c.logger.Debug("mutation succeeded via method override", "method", method, "path", path)
	return data, nil
}

func (c *Client) sendJSON(ctx context.Context, method, path string, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("appserver: failed to encode payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("appserver: request build failed: %w", err)
	}
	c.setHeaders(req)
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("appserver: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("appserver: read response failed: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(data)}
	}
	return data, nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func decodeObject(data []byte) (map[string]any, error) {
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("appserver: decode response failed: %w", err)
	}
	return out, nil
}
