package email

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// GmailConfig holds the configuration for the Gmail email sender.
type GmailConfig struct {
	// CredentialsJSON is the service account credentials JSON with domain-wide delegation.
	CredentialsJSON string
	// ClientID, ClientSecret and RefreshToken authorize a personal mailbox instead.
	ClientID     string
	ClientSecret string
	RefreshToken string
	// SenderAddress is the email address emails are sent from.
	SenderAddress string
	// SenderName is the display name for the sender.
	SenderName string
}

// GmailSender implements Sender using the Gmail API.
type GmailSender struct {
	service       *gmail.Service
	senderAddress string
	senderName    string
}

// NewGmailSender creates a new GmailSender. A refresh token selects the
// OAuth2 flow for personal accounts; otherwise CredentialsJSON must hold a
// service account with domain-wide delegation.
func NewGmailSender(ctx context.Context, cfg GmailConfig) (*GmailSender, error) {
	if cfg.SenderAddress == "" {
		return nil, fmt.Errorf("gmail: sender address is required")
	}

	var opt option.ClientOption
	switch {
	case cfg.RefreshToken != "":
		oauthCfg := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{gmail.GmailSendScope},
		}
		opt = option.WithHTTPClient(oauthCfg.Client(ctx, &oauth2.Token{RefreshToken: cfg.RefreshToken}))
	case cfg.CredentialsJSON != "":
		jwtConfig, err := google.JWTConfigFromJSON([]byte(cfg.CredentialsJSON), gmail.GmailSendScope)
		if err != nil {
			return nil, fmt.Errorf("gmail: failed to parse credentials: %w", err)
		}
		// Impersonate the sender mailbox
		jwtConfig.Subject = cfg.SenderAddress
		opt = option.WithHTTPClient(jwtConfig.Client(ctx))
	default:
		return nil, fmt.Errorf("gmail: credentials JSON or refresh token is required")
	}

	svc, err := gmail.NewService(ctx, opt)
	if err != nil {
		return nil, fmt.Errorf("gmail: failed to create service: %w", err)
	}

	return &GmailSender{
		service:       svc,
		senderAddress: cfg.SenderAddress,
		senderName:    cfg.SenderName,
	}, nil
}

// Send sends an email via the Gmail API.
func (g *GmailSender) Send(ctx context.Context, msg Message) error {
	raw := buildMIME(formatAddress(g.senderName, g.senderAddress), msg, time.Now())

	gmailMsg := &gmail.Message{
		Raw: base64.URLEncoding.EncodeToString(raw),
	}

	if _, err := g.service.Users.Messages.Send("me", gmailMsg).Context(ctx).Do(); err != nil {
		return fmt.Errorf("gmail: failed to send email: %w", err)
	}
	return nil
}
