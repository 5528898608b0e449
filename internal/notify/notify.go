// Package notify is the notification surface: transient status messages
// shown to a visitor after each contact form action.
package notify

import (
	"context"
	"sync"
	"time"

	"github.com/folio/folio/internal/logger"
)

// Kind classifies a notification.
type Kind string

const (
	KindInfo    Kind = "info"
	KindSuccess Kind = "success"
	KindError   Kind = "error"
)

// Notification is a single transient message.
type Notification struct {
	Message string    `json:"message"`
	Kind    Kind      `json:"kind"`
	Time    time.Time `json:"time"`
}

// New creates a Notification stamped with the current time.
func New(kind Kind, message string) Notification {
	return Notification{Message: message, Kind: kind, Time: time.Now().UTC()}
}

// Notifier displays notifications. Implementations must not block the caller
// for long.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f.
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

// Multi fans a notification out to every non-nil notifier.
func Multi(notifiers ...Notifier) Notifier {
	return NotifierFunc(func(ctx context.Context, n Notification) {
		for _, nf := range notifiers {
			if nf != nil {
				nf.Notify(ctx, n)
			}
		}
	})
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	log *logger.Logger
}

// NewLogNotifier creates a LogNotifier.
func NewLogNotifier(log *logger.Logger) *LogNotifier {
	return &LogNotifier{log: log.WithComponent("notify")}
}

// Notify logs n at a level matching its kind.
func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	event := l.log.Info()
	if n.Kind == KindError {
		event = l.log.Warn()
	}
	event.Str("kind", string(n.Kind)).Msg(n.Message)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu    sync.Mutex
	items []Notification
}

// Notify records n.
func (r *Recorder) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded notifications.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Notification, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns the most recent notification.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Notification{}, false
	}
	return r.items[len(r.items)-1], true
}

// Reset forgets every recorded notification.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = nil
}
