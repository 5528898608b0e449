package contact

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/folio/folio/internal/logger"
	"github.com/folio/folio/internal/notify"
	"github.com/folio/folio/internal/validation"
)

// Form field names accepted by HandleFieldChange.
const (
	FieldName    = "name"
	FieldEmail   = "email"
	FieldMessage = "message"
)

// User-facing notification texts.
const (
	msgMissingFields = "Please fill in all fields"
	msgInvalidEmail  = "Invalid email address"
	msgSent          = "Email Sent!"
	msgSendFailed    = "Failed to send email"
	msgPending       = "Your message is already being sent"
	msgClosed        = "This form has expired, please reload the page"
)

// Outcome returns the notification shown for a Submit rejection or a
// delivery result. A nil error is a successful send.
func Outcome(err error) notify.Notification {
	var rl *RateLimitedError
	switch {
	case err == nil:
		return notify.New(notify.KindSuccess, msgSent)
	case errors.As(err, &rl):
		return notify.New(notify.KindInfo, fmt.Sprintf("Please wait %d seconds", rl.Remaining))
	case errors.Is(err, ErrMissingFields):
		return notify.New(notify.KindError, msgMissingFields)
	case errors.Is(err, ErrInvalidEmail):
		return notify.New(notify.KindError, msgInvalidEmail)
	case errors.Is(err, ErrPending):
		return notify.New(notify.KindInfo, msgPending)
	case errors.Is(err, ErrClosed):
		return notify.New(notify.KindError, msgClosed)
	default:
		return notify.New(notify.KindError, msgSendFailed)
	}
}

// Form holds the three user-editable fields of an outbound message.
type Form struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Message string `json:"message"`
}

func (f Form) complete() bool {
	return f.Name != "" && f.Email != "" && f.Message != ""
}

// DeliveryRequest is what the email delivery service receives for one send.
type DeliveryRequest struct {
	ServiceID  string
	TemplateID string
	PublicKey  string
	Fields     Form
}

// Deliverer forwards a contact message to an email delivery service.
type Deliverer interface {
	Deliver(ctx context.Context, req DeliveryRequest) error
}

// Settings configures a Submission.
type Settings struct {
	ServiceID       string
	TemplateID      string
	PublicKey       string
	CooldownSeconds int
	TickInterval    time.Duration
	DeliveryTimeout time.Duration
}

func (s Settings) withDefaults() Settings {
	if s.CooldownSeconds <= 0 {
		s.CooldownSeconds = DefaultCooldownSeconds
	}
	if s.TickInterval <= 0 {
		s.TickInterval = time.Second
	}
	if s.DeliveryTimeout <= 0 {
		s.DeliveryTimeout = 15 * time.Second
	}
	return s
}

// State is a point-in-time snapshot of a Submission.
type State struct {
	Form      Form     `json:"form"`
	Cooldown  Cooldown `json:"cooldown"`
	Remaining int      `json:"remainingSeconds"`
	Pending   bool     `json:"pending"`
}

// Option customizes a Submission.
type Option func(*Submission)

// WithTicker replaces the wall-clock cooldown ticker.
func WithTicker(fn TickerFunc) Option {
	return func(s *Submission) { s.newTicker = fn }
}

// WithEmailCheck replaces the well-formed email check.
func WithEmailCheck(fn func(string) bool) Option {
	return func(s *Submission) { s.isEmail = fn }
}

// Submission gates, validates and forwards a single visitor's contact message.
// All state is guarded by mu; the cooldown ticker and HTTP handlers share it.
type Submission struct {
	settings  Settings
	deliverer Deliverer
	notifier  notify.Notifier
	log       *logger.Logger
	newTicker TickerFunc
	isEmail   func(string) bool

	mu         sync.Mutex
	form       Form
	cooldown   Cooldown
	pending    bool
	closed     bool
	stopTick   chan struct{}
	lastActive time.Time

	inflight sync.WaitGroup
}

// New creates a Submission with an empty form and no cooldown running.
func New(settings Settings, deliverer Deliverer, notifier notify.Notifier, log *logger.Logger, opts ...Option) *Submission {
	s := &Submission{
		settings:   settings.withDefaults(),
		deliverer:  deliverer,
		notifier:   notifier,
		log:        log.WithComponent("contact"),
		newTicker:  NewTimeTicker,
		isEmail:    validation.IsEmail,
		lastActive: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleFieldChange replaces one form field. No validation happens here.
func (s *Submission) HandleFieldChange(field, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return ErrClosed
	}

	switch field {
	case FieldName:
		s.form.Name = value
	case FieldEmail:
		s.form.Email = value
	case FieldMessage:
		s.form.Message = value
	default:
		return fmt.Errorf("%w: %q", ErrUnknownField, field)
	}
	s.lastActive = time.Now()
	return nil
}

// Submit runs the submission gate against the current form and cooldown.
// A rejection is returned synchronously. Otherwise the pending flag is set
// before delivery starts and the returned channel yields the delivery outcome
// exactly once.
func (s *Submission) Submit(ctx context.Context) (<-chan error, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	if s.pending {
		s.mu.Unlock()
		return nil, ErrPending
	}
	s.lastActive = time.Now()

	var rejected error
	form := s.form
	switch {
	case s.cooldown.Running:
		rejected = &RateLimitedError{Remaining: s.cooldown.remaining(s.settings.CooldownSeconds)}
	case !form.complete():
		rejected = ErrMissingFields
	case !s.isEmail(form.Email):
		rejected = ErrInvalidEmail
	}
	if rejected != nil {
		s.mu.Unlock()
		s.notify(ctx, rejected)
		return nil, rejected
	}

	s.pending = true
	s.inflight.Add(1)
	s.mu.Unlock()

	done := make(chan error, 1)
	go s.deliver(context.WithoutCancel(ctx), form, done)
	return done, nil
}

func (s *Submission) deliver(ctx context.Context, form Form, done chan<- error) {
	defer s.inflight.Done()
	defer close(done)

	dctx, cancel := context.WithTimeout(ctx, s.settings.DeliveryTimeout)
	defer cancel()

	err := s.deliverer.Deliver(dctx, DeliveryRequest{
		ServiceID:  s.settings.ServiceID,
		TemplateID: s.settings.TemplateID,
		PublicKey:  s.settings.PublicKey,
		Fields:     form,
	})

	s.mu.Lock()
	if err == nil {
		s.activateCooldownLocked()
	}
	s.pending = false
	s.lastActive = time.Now()
	s.mu.Unlock()

	if err != nil {
		err = fmt.Errorf("%w: %w", ErrDeliveryFailed, err)
		s.log.Warn().Err(err).Str("template_id", s.settings.TemplateID).Msg("contact message delivery failed")
	} else {
		s.log.Info().Str("template_id", s.settings.TemplateID).Msg("contact message delivered")
	}
	s.notify(ctx, err)
	done <- err
}

// activateCooldownLocked resets the cooldown to {true, 0} and starts the
// owned ticker. No ticker is started once the Submission is closed.
func (s *Submission) activateCooldownLocked() {
	s.stopTickerLocked()
	s.cooldown = Cooldown{Running: true}
	if s.closed {
		return
	}

	stop := make(chan struct{})
	s.stopTick = stop
	go s.runCooldown(s.newTicker(s.settings.TickInterval), stop)
}

func (s *Submission) runCooldown(t Ticker, stop <-chan struct{}) {
	defer t.Stop()
	for {
		select {
		case <-stop:
			return
		case <-t.C():
			if !s.Tick() {
				return
			}
		}
	}
}

// Tick advances the cooldown by one second and reports whether it is still
// running. The tick that ends the cooldown also stops the ticker.
func (s *Submission) Tick() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.cooldown.Running {
		return false
	}
	s.cooldown = s.cooldown.tick(s.settings.CooldownSeconds)
	if !s.cooldown.Running {
		s.stopTickerLocked()
		s.log.Debug().Msg("cooldown finished")
	}
	return s.cooldown.Running
}

func (s *Submission) stopTickerLocked() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

// State returns a snapshot of the form, cooldown and pending flag.
func (s *Submission) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		Form:      s.form,
		Cooldown:  s.cooldown,
		Remaining: s.cooldown.remaining(s.settings.CooldownSeconds),
		Pending:   s.pending,
	}
}

// Close tears the Submission down and stops its cooldown ticker. An in-flight
// delivery still completes and reports on its channel.
func (s *Submission) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	s.stopTickerLocked()
}

// Wait blocks until every in-flight delivery has completed.
func (s *Submission) Wait() {
	s.inflight.Wait()
}

// idle reports when the Submission was last touched and whether a delivery is
// in flight.
func (s *Submission) idle() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive, s.pending
}

// notify shows exactly one notification for a submission attempt.
func (s *Submission) notify(ctx context.Context, outcome error) {
	if s.notifier == nil {
		return
	}
	s.notifier.Notify(context.WithoutCancel(ctx), Outcome(outcome))
}
