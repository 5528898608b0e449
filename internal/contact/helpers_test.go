package contact

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/folio/folio/internal/logger"
	"github.com/folio/folio/internal/notify"
)

// fakeDeliverer records calls. When gate is non-nil each call waits for a
// value on it before returning err.
type fakeDeliverer struct {
	mu    sync.Mutex
	calls []DeliveryRequest
	ctxs  []context.Context
	err   error
	gate  chan struct{}
}

func (f *fakeDeliverer) Deliver(ctx context.Context, req DeliveryRequest) error {
	f.mu.Lock()
	f.calls = append(f.calls, req)
	f.ctxs = append(f.ctxs, ctx)
	gate, err := f.gate, f.err
	f.mu.Unlock()

	if gate != nil {
		<-gate
	}
	return err
}

func (f *fakeDeliverer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// manualTicker never fires; tests drive the cooldown with Tick.
type manualTicker struct {
	stopped atomic.Bool
}

func (m *manualTicker) C() <-chan time.Time { return nil }
func (m *manualTicker) Stop()               { m.stopped.Store(true) }

type tickerFactory struct {
	mu      sync.Mutex
	tickers []*manualTicker
}

func (f *tickerFactory) New(time.Duration) Ticker {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &manualTicker{}
	f.tickers = append(f.tickers, t)
	return t
}

func (f *tickerFactory) created() []*manualTicker {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*manualTicker(nil), f.tickers...)
}

var testSettings = Settings{
	ServiceID:  "service_main",
	TemplateID: "template_contact",
	PublicKey:  "pk_live",
}

type harness struct {
	sub       *Submission
	deliverer *fakeDeliverer
	notes     *notify.Recorder
	tickers   *tickerFactory
}

func newHarness(deliverer *fakeDeliverer) *harness {
	h := &harness{
		deliverer: deliverer,
		notes:     &notify.Recorder{},
		tickers:   &tickerFactory{},
	}
	h.sub = New(testSettings, deliverer, h.notes, logger.Nop(), WithTicker(h.tickers.New))
	return h
}

func (h *harness) fill(name, email, message string) {
	_ = h.sub.HandleFieldChange(FieldName, name)
	_ = h.sub.HandleFieldChange(FieldEmail, email)
	_ = h.sub.HandleFieldChange(FieldMessage, message)
}

// sendOK fills a valid form, submits it and waits for delivery.
func (h *harness) sendOK() error {
	h.fill("Ada", "ada@example.com", "Hello!")
	done, err := h.sub.Submit(context.Background())
	if err != nil {
		return err
	}
	return <-done
}
