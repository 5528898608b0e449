package email

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/folio/folio/internal/contact"
	"github.com/folio/folio/internal/logger"
)

// Dispatcher errors
var (
	ErrUnauthorized    = errors.New("public key rejected")
	ErrUnknownService  = errors.New("unknown email service")
	ErrUnknownTemplate = errors.New("unknown email template")
	ErrInvalidReplyTo  = errors.New("reply-to address contains line breaks")
)

// Dispatcher is a self-hosted email delivery service. It resolves a service
// id to a Sender and a template id to a Template, and mails the rendered
// result to the site owner.
type Dispatcher struct {
	publicKey string
	recipient string
	appName   string
	log       *logger.Logger

	mu        sync.RWMutex
	senders   map[string]Sender
	templates map[string]*Template
}

// NewDispatcher creates a Dispatcher that accepts requests signed with
// publicKey and delivers them to recipient.
func NewDispatcher(publicKey, recipient, appName string, log *logger.Logger) *Dispatcher {
	if appName == "" {
		appName = "Portfolio"
	}
	return &Dispatcher{
		publicKey: publicKey,
		recipient: recipient,
		appName:   appName,
		log:       log.WithComponent("email_dispatcher"),
		senders:   make(map[string]Sender),
		templates: make(map[string]*Template),
	}
}

// RegisterSender makes s available under serviceID.
func (d *Dispatcher) RegisterSender(serviceID string, s Sender) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.senders[serviceID] = s
}

// RegisterTemplate makes t available under templateID.
func (d *Dispatcher) RegisterTemplate(templateID string, t *Template) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.templates[templateID] = t
}

// Deliver implements contact.Deliverer.
func (d *Dispatcher) Deliver(ctx context.Context, req contact.DeliveryRequest) error {
	if subtle.ConstantTimeCompare([]byte(req.PublicKey), []byte(d.publicKey)) != 1 {
		return ErrUnauthorized
	}
	if strings.ContainsAny(req.Fields.Email, "\r\n") {
		return ErrInvalidReplyTo
	}

	d.mu.RLock()
	sender, ok := d.senders[req.ServiceID]
	tmpl, tok := d.templates[req.TemplateID]
	d.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownService, req.ServiceID)
	}
	if !tok {
		return fmt.Errorf("%w: %q", ErrUnknownTemplate, req.TemplateID)
	}

	msg, err := tmpl.Render(TemplateData{
		AppName: d.appName,
		Name:    req.Fields.Name,
		Email:   req.Fields.Email,
		Message: req.Fields.Message,
	})
	if err != nil {
		return fmt.Errorf("failed to render template %q: %w", req.TemplateID, err)
	}
	msg.To = d.recipient
	msg.ReplyTo = req.Fields.Email

	if err := sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("failed to send contact email: %w", err)
	}

	d.log.Debug().
		Str("service_id", req.ServiceID).
		Str("template_id", req.TemplateID).
		Msg("contact email dispatched")
	return nil
}
