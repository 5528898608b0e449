package email

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/folio/folio/internal/contact"
)

// DefaultEmailJSEndpoint is the EmailJS REST send endpoint.
const DefaultEmailJSEndpoint = "https://api.emailjs.com/api/v1.0/email/send"

// EmailJSConfig holds the configuration for the EmailJS client.
type EmailJSConfig struct {
	// Endpoint overrides DefaultEmailJSEndpoint.
	Endpoint string
	// AccessToken is the account private key, required when the EmailJS
	// account enforces strict mode for non-browser calls.
	AccessToken string
	// Origin is sent as the Origin header; EmailJS checks it against the
	// account's allowed domains.
	Origin  string
	Timeout time.Duration
}

// APIError is a non-2xx response from EmailJS.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("emailjs: status %d: %s", e.StatusCode, e.Body)
}

// EmailJSClient delivers contact messages through the EmailJS REST API.
type EmailJSClient struct {
	cfg    EmailJSConfig
	client *http.Client
}

type emailJSRequest struct {
	ServiceID      string            `json:"service_id"`
	TemplateID     string            `json:"template_id"`
	UserID         string            `json:"user_id"`
	TemplateParams map[string]string `json:"template_params"`
	AccessToken    string            `json:"accessToken,omitempty"`
}

// NewEmailJSClient creates a new EmailJSClient.
func NewEmailJSClient(cfg EmailJSConfig) *EmailJSClient {
	if cfg.Endpoint == "" {
		cfg.Endpoint = DefaultEmailJSEndpoint
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &EmailJSClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// Deliver implements contact.Deliverer. The template params carry the form
// field names unchanged.
func (c *EmailJSClient) Deliver(ctx context.Context, req contact.DeliveryRequest) error {
	payload, err := json.Marshal(emailJSRequest{
		ServiceID:  req.ServiceID,
		TemplateID: req.TemplateID,
		UserID:     req.PublicKey,
		TemplateParams: map[string]string{
			contact.FieldName:    req.Fields.Name,
			contact.FieldEmail:   req.Fields.Email,
			contact.FieldMessage: req.Fields.Message,
		},
		AccessToken: c.cfg.AccessToken,
	})
	if err != nil {
		return fmt.Errorf("emailjs: encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("emailjs: build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.cfg.Origin != "" {
		httpReq.Header.Set("Origin", c.cfg.Origin)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("emailjs: send: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(body))}
	}
	return nil
}
