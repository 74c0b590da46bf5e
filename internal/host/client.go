package host

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	// DefaultURL is where a local OpenCode server listens.
	DefaultURL     = "http://127.0.0.1:4096"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 512
)

// Client calls the OpenCode server API.
type Client struct {
	baseURL string
	http    *http.Client
}

// ClientOption customizes Client construction.
type ClientOption func(*Client)

// WithHTTPClient overrides the transport, mostly for tests.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient returns a Client rooted at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultURL
	}
	c := &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// BaseURL reports the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// ShowToast displays toast in the host TUI.
func (c *Client) ShowToast(ctx context.Context, toast Toast) error {
	if err := c.post(ctx, "/tui/show-toast", toast); err != nil {
		return fmt.Errorf("host: show toast: %w", err)
	}
	return nil
}

// Prompt sends parts into sessionID as a new message.
func (c *Client) Prompt(ctx context.Context, sessionID string, parts []Part) error {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return fmt.Errorf("host: prompt: session id is required")
	}
	body := struct {
		Parts []Part `json:"parts"`
	}{Parts: parts}
	path := "/session/" + url.PathEscape(sessionID) + "/message"
	if err := c.post(ctx, path, body); err != nil {
		return fmt.Errorf("host: prompt %s: %w", sessionID, err)
	}
	return nil
}

func (c *Client) post(ctx context.Context, path string, payload any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	buf, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(buf))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}
