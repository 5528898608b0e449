package email

import "context"

// Sender is the interface that all email providers must implement.
// This abstraction allows swapping email providers (Gmail, SMTP, logging)
// without changing the contact pipeline.
type Sender interface {
	// Send sends an email to the specified recipient.
	Send(ctx context.Context, msg Message) error
}

// Message represents an email message to be sent.
type Message struct {
	To       string // recipient email address
	ReplyTo  string // optional Reply-To address, the visitor for contact mail
	Subject  string // email subject
	HTMLBody string // HTML email body
	TextBody string // plain-text fallback body
}
