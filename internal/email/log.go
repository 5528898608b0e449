package email

import (
	"context"

	"github.com/folio/folio/internal/logger"
)

// LogSender logs messages instead of sending them. It is meant for local
// development where no mail provider is configured.
type LogSender struct {
	log *logger.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(log *logger.Logger) *LogSender {
	return &LogSender{log: log.WithComponent("email_log")}
}

// Send logs msg and always succeeds.
func (l *LogSender) Send(_ context.Context, msg Message) error {
	l.log.Info().
		Str("to", msg.To).
		Str("reply_to", msg.ReplyTo).
		Str("subject", msg.Subject).
		Str("body", msg.TextBody).
		Msg("email not sent (log provider)")
	return nil
}
