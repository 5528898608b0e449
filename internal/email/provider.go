package email

import (
	"context"
	"fmt"

	"github.com/folio/folio/internal/config"
	"github.com/folio/folio/internal/contact"
	"github.com/folio/folio/internal/logger"
)

// NewDeliverer builds the delivery service selected by cfg.Email.Provider.
// Self-hosted providers are registered in a Dispatcher under the configured
// contact service and template ids.
func NewDeliverer(ctx context.Context, cfg *config.Config, log *logger.Logger) (contact.Deliverer, error) {
	if cfg.Email.Provider == config.ProviderEmailJS {
		return NewEmailJSClient(EmailJSConfig{
			Endpoint:    cfg.Email.EmailJS.Endpoint,
			AccessToken: cfg.Email.EmailJS.AccessToken,
			Origin:      cfg.Email.EmailJS.Origin,
			Timeout:     cfg.Contact.DeliveryTimeout,
		}), nil
	}

	var sender Sender
	switch cfg.Email.Provider {
	case config.ProviderGmail:
		g := cfg.Email.Gmail
		s, err := NewGmailSender(ctx, GmailConfig{
			CredentialsJSON: g.CredentialsJSON,
			ClientID:        g.ClientID,
			ClientSecret:    g.ClientSecret,
			RefreshToken:    g.RefreshToken,
			SenderAddress:   g.SenderAddress,
			SenderName:      g.SenderName,
		})
		if err != nil {
			return nil, err
		}
		sender = s
	case config.ProviderSMTP:
		sc := cfg.Email.SMTP
		signer, err := LoadDKIMSigner(sc.DKIM.Domain, sc.DKIM.Selector, sc.DKIM.KeyFile)
		if err != nil {
			return nil, err
		}
		s, err := NewSMTPSender(SMTPConfig{
			Host:     sc.Host,
			Port:     sc.Port,
			Username: sc.Username,
			Password: sc.Password,
			From:     sc.From,
			FromName: sc.FromName,
		}, signer)
		if err != nil {
			return nil, err
		}
		sender = s
	case config.ProviderLog:
		sender = NewLogSender(log)
	default:
		return nil, fmt.Errorf("unknown email provider %q", cfg.Email.Provider)
	}

	d := NewDispatcher(cfg.Contact.PublicKey, cfg.Email.Recipient, cfg.Email.AppName, log)
	d.RegisterSender(cfg.Contact.ServiceID, sender)
	d.RegisterTemplate(cfg.Contact.TemplateID, ContactTemplate())
	if cfg.Contact.TemplateID != ContactTemplateID {
		d.RegisterTemplate(ContactTemplateID, ContactTemplate())
	}
	return d, nil
}
