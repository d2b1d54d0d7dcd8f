// Package callrail reads call metadata and recordings from the call-tracking
// provider. Calls are listed through the application server's relay endpoint;
// recordings are fetched from the provider directly.
package callrail

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/dentalops/assistant/pkg/logging"
)

const (
	defaultTimeout = 60 * time.Second

	// recordings are audio blobs; cap reads so a misbehaving endpoint cannot
	// exhaust memory
	maxRecordingBytes = 64 << 20
)

// Call is one tracked phone call.
type Call struct {
	ID           string `json:"id"`
	ClientID     int64  `json:"client_id"`
	PhoneNumber  string `json:"phone_number"`
	RecordingURL string `json:"recording_url"`
	Date         string `json:"date"`
	Status       string `json:"status"`
	Duration     int    `json:"duration"`
	CallerName   string `json:"caller_name"`
	City         string `json:"city"`
	State        string `json:"state"`
	Country      string `json:"country"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// OccurredAt returns the best available timestamp for chronological ordering:
// date, then created_at, then updated_at.
func (c Call) OccurredAt() string {
	for _, v := range []string{c.Date, c.CreatedAt, c.UpdatedAt} {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

// Client talks to the call-tracking endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	logger     *logging.Logger
}

// Config holds call-tracking client settings.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
}

// New constructs a call-tracking client. Redirects are followed because
// recording endpoints commonly hand back a signed storage URL.
func New(cfg Config, logger *logging.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, fmt.Errorf("callrail: base URL is required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		token:      cfg.Token,
		logger:     logger,
	}, nil
}

// Calls lists calls, optionally filtered to specific ids.
func (c *Client) Calls(ctx context.Context, callIDs []string) ([]Call, error) {
	q := url.Values{}
	if len(callIDs) > 0 {
		q.Set("ids", strings.Join(callIDs, ","))
	}
	path := "/calls"
	if encoded := q.Encode(); encoded != "" {
		path += "?" + encoded
	}

	var wrapped struct {
		Calls []Call `json:"calls"`
		Data  []Call `json:"data"`
	}
	if err := c.doJSON(ctx, path, &wrapped); err != nil {
		return nil, fmt.Errorf("callrail: list calls: %w", err)
	}
	if len(wrapped.Calls) > 0 {
		return wrapped.Calls, nil
	}
	return wrapped.Data, nil
}

// CallsForTenant lists calls belonging to one tenant.
func (c *Client) CallsForTenant(ctx context.Context, tenantID int64) ([]Call, error) {
	q := url.Values{}
	q.Set("client_id", strconv.FormatInt(tenantID, 10))

	var wrapped struct {
		Calls []Call `json:"calls"`
		Data  []Call `json:"data"`
	}
	if err := c.doJSON(ctx, "/calls?"+q.Encode(), &wrapped); err != nil {
		return nil, fmt.Errorf("callrail: list tenant calls: %w", err)
	}
	if len(wrapped.Calls) > 0 {
		return wrapped.Calls, nil
	}
	return wrapped.Data, nil
}

// recordingWrapper is the JSON shape some recording endpoints return instead
// of raw audio.
type recordingWrapper struct {
	URL string `json:"url"`
}

// Recording fetches the audio blob for a call. The endpoint either serves the
// bytes directly or a JSON wrapper holding the real audio URL, which is then
// fetched in a second hop.
func (c *Client) Recording(ctx context.Context, call Call) ([]byte, error) {
	if strings.TrimSpace(call.RecordingURL) == "" {
		return nil, fmt.Errorf("callrail: call %s has no recording", call.ID)
	}

	body, contentType, err := c.fetch(ctx, call.RecordingURL)
	if err != nil {
		return nil, fmt.Errorf("callrail: fetch recording: %w", err)
	}

	if looksLikeJSON(body, contentType) {
		var wrapper recordingWrapper
		if err := json.Unmarshal(body, &wrapper); err != nil || wrapper.URL == "" {
			return nil, fmt.Errorf("callrail: recording endpoint returned JSON without an audio url for call %s", call.ID)
		}
		body, _, err = c.fetch(ctx, wrapper.URL)
		if err != nil {
			return nil, fmt.Errorf("callrail: fetch wrapped recording: %w", err)
		}
	}

	if len(body) == 0 {
		return nil, fmt.Errorf("callrail: empty recording for call %s", call.ID)
	}
	return body, nil
}

func looksLikeJSON(body []byte, contentType string) bool {
	if strings.Contains(contentType, "application/json") {
		return true
	}
	trimmed := strings.TrimSpace(string(body[:min(len(body), 16)]))
	return strings.HasPrefix(trimmed, "{")
}

func (c *Client) fetch(ctx context.Context, rawURL string) ([]byte, string, error) {
	target := rawURL
	if strings.HasPrefix(target, "/") {
		target = c.baseURL + target
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, "", fmt.Errorf("build request: %w", err)
	}
	c.authorize(req, target)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("recording endpoint returned %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRecordingBytes))
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return body, resp.Header.Get("Content-Type"), nil
}

func (c *Client) doJSON(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	c.authorize(req, c.baseURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := string(body)
		if len(msg) > 300 {
			msg = msg[:300]
		}
		c.logger.Warn("call-tracking non-2xx response", "status", resp.StatusCode, "path", path, "body", msg)
		return fmt.Errorf("call-tracking API returned %d: %s", resp.StatusCode, msg)
	}
	if len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// authorize attaches the bearer token only to same-origin requests; signed
// storage URLs reject foreign Authorization headers.
func (c *Client) authorize(req *http.Request, target string) {
	if c.token == "" {
		return
	}
	if strings.HasPrefix(target, c.baseURL) {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}
