package contact

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/folio/folio/internal/logger"
	"github.com/folio/folio/internal/notify"
)

const evictInterval = time.Minute

// NotifierFactory returns the notification surface for one session.
type NotifierFactory func(sessionID string) notify.Notifier

// Registry owns one Submission per browser session. Creating an entry mounts
// the form; removing or evicting it tears the form down.
type Registry struct {
	settings  Settings
	deliverer Deliverer
	notifiers NotifierFactory
	idleTTL   time.Duration
	log       *logger.Logger
	opts      []Option

	mu         sync.Mutex
	sessions   map[string]*Submission
	onTeardown func(id string)
}

// NewRegistry creates an empty Registry.
func NewRegistry(settings Settings, deliverer Deliverer, notifiers NotifierFactory, idleTTL time.Duration, log *logger.Logger, opts ...Option) *Registry {
	if idleTTL <= 0 {
		idleTTL = 30 * time.Minute
	}
	return &Registry{
		settings:  settings,
		deliverer: deliverer,
		notifiers: notifiers,
		idleTTL:   idleTTL,
		log:       log,
		opts:      opts,
		sessions:  make(map[string]*Submission),
	}
}

// OnTeardown registers fn to run after a session is removed, evicted or
// closed with the Registry.
func (r *Registry) OnTeardown(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onTeardown = fn
}

func (r *Registry) teardown(id string, sub *Submission) {
	sub.Close()
	r.mu.Lock()
	fn := r.onTeardown
	r.mu.Unlock()
	if fn != nil {
		fn(id)
	}
}

// Create mounts a new Submission under a fresh session id.
func (r *Registry) Create() (string, *Submission) {
	id := uuid.New().String()

	r.mu.Lock()
	defer r.mu.Unlock()
	sub := r.newSubmissionLocked(id)
	return id, sub
}

// Get looks up the Submission for a session.
func (r *Registry) Get(id string) (*Submission, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sub, ok := r.sessions[id]
	return sub, ok
}

// GetOrCreate returns the Submission for id, mounting one if the session is
// unknown or id is not a valid session id. The returned id may differ from
// the one passed in.
func (r *Registry) GetOrCreate(id string) (string, *Submission, bool) {
	if _, err := uuid.Parse(id); err != nil {
		newID, sub := r.Create()
		return newID, sub, true
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if sub, ok := r.sessions[id]; ok {
		return id, sub, false
	}
	return id, r.newSubmissionLocked(id), true
}

func (r *Registry) newSubmissionLocked(id string) *Submission {
	var n notify.Notifier
	if r.notifiers != nil {
		n = r.notifiers(id)
	}
	sub := New(r.settings, r.deliverer, n, r.log.WithSessionID(id), r.opts...)
	r.sessions[id] = sub
	r.log.Debug().Str("session_id", id).Msg("contact form mounted")
	return sub
}

// Remove tears down and forgets a session. It reports whether it existed.
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	sub, ok := r.sessions[id]
	delete(r.sessions, id)
	r.mu.Unlock()

	if ok {
		r.teardown(id, sub)
		r.log.Debug().Str("session_id", id).Msg("contact form torn down")
	}
	return ok
}

// Len returns the number of mounted sessions.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// Run evicts idle sessions until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := r.evictIdle(now); n > 0 {
				r.log.Info().Int("evicted", n).Msg("evicted idle contact sessions")
			}
		}
	}
}

// evictIdle removes sessions idle for longer than idleTTL. Sessions with a
// delivery in flight are kept.
func (r *Registry) evictIdle(now time.Time) int {
	r.mu.Lock()
	stale := make(map[string]*Submission)
	for id, sub := range r.sessions {
		last, pending := sub.idle()
		if pending || now.Sub(last) < r.idleTTL {
			continue
		}
		stale[id] = sub
		delete(r.sessions, id)
	}
	r.mu.Unlock()

	for id, sub := range stale {
		r.teardown(id, sub)
	}
	return len(stale)
}

// Close tears down every session and waits for in-flight deliveries.
func (r *Registry) Close() {
	r.mu.Lock()
	subs := r.sessions
	r.sessions = make(map[string]*Submission)
	r.mu.Unlock()

	for id, sub := range subs {
		r.teardown(id, sub)
	}
	for _, sub := range subs {
		sub.Wait()
	}
}
