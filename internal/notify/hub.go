package notify

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/folio/folio/internal/logger"
)

const (
	subscriberBuffer = 16
	writeTimeout     = 5 * time.Second
)

// Subscription receives notifications for one session until it is
// unsubscribed or the session is dropped.
type Subscription struct {
	C <-chan Notification

	session string
	ch      chan Notification
}

// Hub routes notifications to the live subscribers of each session.
type Hub struct {
	log *logger.Logger

	mu   sync.Mutex
	subs map[string]map[*Subscription]struct{}
}

// NewHub creates an empty Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		log:  log.WithComponent("notify_hub"),
		subs: make(map[string]map[*Subscription]struct{}),
	}
}

// For returns the Notifier for a single session.
func (h *Hub) For(sessionID string) Notifier {
	return NotifierFunc(func(_ context.Context, n Notification) {
		h.Publish(sessionID, n)
	})
}

// Publish hands n to every subscriber of the session and returns how many
// received it. A subscriber whose buffer is full misses the notification.
func (h *Hub) Publish(sessionID string, n Notification) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	delivered := 0
	for sub := range h.subs[sessionID] {
		select {
		case sub.ch <- n:
			delivered++
		default:
			h.log.Warn().Str("session_id", sessionID).Msg("dropping notification for slow subscriber")
		}
	}
	return delivered
}

// Subscribe registers a new subscriber for the session.
func (h *Hub) Subscribe(sessionID string) *Subscription {
	ch := make(chan Notification, subscriberBuffer)
	sub := &Subscription{C: ch, session: sessionID, ch: ch}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.subs[sessionID] == nil {
		h.subs[sessionID] = make(map[*Subscription]struct{})
	}
	h.subs[sessionID][sub] = struct{}{}
	return sub
}

// Unsubscribe removes sub and closes its channel. It is safe to call more
// than once.
func (h *Hub) Unsubscribe(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, ok := h.subs[sub.session]
	if !ok {
		return
	}
	if _, ok := set[sub]; !ok {
		return
	}
	delete(set, sub)
	close(sub.ch)
	if len(set) == 0 {
		delete(h.subs, sub.session)
	}
}

// Drop closes every subscription of the session.
func (h *Hub) Drop(sessionID string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subs[sessionID] {
		close(sub.ch)
	}
	delete(h.subs, sessionID)
}

// Subscribers returns the number of live subscribers for the session.
func (h *Hub) Subscribers(sessionID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs[sessionID])
}

// ServeWS upgrades the request and streams the session's notifications as
// JSON text frames until the client disconnects or the session is dropped.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request, sessionID string, originPatterns []string) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: originPatterns,
	})
	if err != nil {
		h.log.Warn().Err(err).Str("session_id", sessionID).Msg("websocket upgrade failed")
		return
	}
	defer conn.CloseNow()

	sub := h.Subscribe(sessionID)
	defer h.Unsubscribe(sub)

	// Notifications only flow server to client; CloseRead handles control frames.
	ctx := conn.CloseRead(r.Context())

	for {
		select {
		case <-ctx.Done():
			return
		case n, ok := <-sub.C:
			if !ok {
				conn.Close(websocket.StatusNormalClosure, "session closed")
				return
			}
			wctx, cancel := context.WithTimeout(ctx, writeTimeout)
			err := wsjson.Write(wctx, conn, n)
			cancel()
			if err != nil {
				h.log.Debug().Err(err).Str("session_id", sessionID).Msg("websocket write failed")
				return
			}
		}
	}
}
