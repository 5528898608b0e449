// Package folio is a Go client for the folio contact API.
package folio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
)

// SessionCookie is the cookie the server uses to identify a contact session.
const SessionCookie = "folio_session"

// Config configures a Client.
type Config struct {
	// BaseURL is the root URL of the folio server.
	// Examples: "https://contact.example.com" or "https://contact.example.com/api/v1"
	// The "/api/v1" suffix is appended automatically if missing.
	BaseURL string

	// HTTPClient is an optional custom HTTP client. A cookie jar is attached
	// when it has none, since the session lives in a cookie.
	// Default: 30s timeout, which covers the server's delivery timeout.
	HTTPClient *http.Client
}

func (c *Config) defaults() {
	jar, _ := cookiejar.New(nil)
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: 30 * time.Second}
	}
	if c.HTTPClient.Jar == nil {
		hc := *c.HTTPClient
		hc.Jar = jar
		c.HTTPClient = &hc
	}
	c.BaseURL = strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasSuffix(c.BaseURL, "/api/v1") {
		c.BaseURL = c.BaseURL + "/api/v1"
	}
}

// Client talks to one contact session. The session is created on the first
// call and kept in the client's cookie jar.
type Client struct {
	cfg Config
}

// NewClient creates a new folio client with the given configuration.
func NewClient(cfg Config) *Client {
	cfg.defaults()
	return &Client{cfg: cfg}
}

// SessionID returns the current session id, or "" before the first call.
func (c *Client) SessionID() string {
	u, err := url.Parse(c.cfg.BaseURL)
	if err != nil {
		return ""
	}
	for _, ck := range c.cfg.HTTPClient.Jar.Cookies(u) {
		if ck.Name == SessionCookie {
			return ck.Value
		}
	}
	return ""
}

// CreateSession mounts a contact form on the server.
func (c *Client) CreateSession(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.call(ctx, http.MethodPost, "/contact/session", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// State returns the current form, cooldown and pending flag.
func (c *Client) State(ctx context.Context) (*Session, error) {
	var s Session
	if err := c.call(ctx, http.MethodGet, "/contact/state", nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// SetField replaces one form field: "name", "email" or "message".
func (c *Client) SetField(ctx context.Context, field, value string) (*Session, error) {
	var s Session
	if err := c.call(ctx, http.MethodPatch, "/contact/form", fieldChange{Field: field, Value: value}, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// Submit sends the form. Non-empty fields in form replace the server-side
// values first. A rejection is returned as an *APIError matching one of the
// package's sentinel errors, with the notification attached.
func (c *Client) Submit(ctx context.Context, form Form) (*SubmitResult, error) {
	var r SubmitResult
	if err := c.call(ctx, http.MethodPost, "/contact/submit", form, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// EndSession tears the contact form down on the server.
func (c *Client) EndSession(ctx context.Context) error {
	return c.call(ctx, http.MethodDelete, "/contact/session", nil, nil)
}

// Notifications streams the session's notifications until ctx is done or
// the server closes the stream. The session must already exist.
func (c *Client) Notifications(ctx context.Context) (<-chan Notification, error) {
	wsURL := "ws" + strings.TrimPrefix(c.cfg.BaseURL, "http") + "/contact/notifications"
	// The stream is long-lived; ctx bounds it instead of the client timeout
	hc := *c.cfg.HTTPClient
	hc.Timeout = 0
	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPClient: &hc,
	})
	if err != nil {
		return nil, fmt.Errorf("folio: failed to open notification stream: %w", err)
	}

	ch := make(chan Notification)
	go func() {
		defer close(ch)
		defer conn.CloseNow()
		for {
			var n Notification
			if err := wsjson.Read(ctx, conn, &n); err != nil {
				return
			}
			select {
			case ch <- n:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// call sends a request to the folio API and decodes a successful response into out.
func (c *Client) call(ctx context.Context, method, path string, payload interface{}, out interface{}) error {
	var bodyReader io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("folio: failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.cfg.BaseURL+path, bodyReader)
	if err != nil {
		return fmt.Errorf("folio: failed to create request: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.cfg.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("folio: request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("folio: failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return parseAPIError(resp.StatusCode, resp.Header, body)
	}
	if out == nil || len(body) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("folio: failed to parse response: %w", err)
	}
	return nil
}
