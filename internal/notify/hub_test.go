package notify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/folio/internal/logger"
)

func TestHubPublishSubscribe(t *testing.T) {
	hub := NewHub(logger.Nop())

	a := hub.Subscribe("s1")
	b := hub.Subscribe("s1")
	other := hub.Subscribe("s2")
	assert.Equal(t, 2, hub.Subscribers("s1"))

	n := New(KindSuccess, "Email Sent!")
	assert.Equal(t, 2, hub.Publish("s1", n))

	assert.Equal(t, n, <-a.C)
	assert.Equal(t, n, <-b.C)
	select {
	case got := <-other.C:
		t.Fatalf("unexpected notification for other session: %v", got)
	default:
	}

	assert.Zero(t, hub.Publish("nobody", n))
}

func TestHubFor(t *testing.T) {
	hub := NewHub(logger.Nop())
	sub := hub.Subscribe("s1")

	hub.For("s1").Notify(context.Background(), New(KindInfo, "Please wait 3 seconds"))

	got := <-sub.C
	assert.Equal(t, KindInfo, got.Kind)
	assert.Equal(t, "Please wait 3 seconds", got.Message)
}

func TestHubUnsubscribe(t *testing.T) {
	hub := NewHub(logger.Nop())
	sub := hub.Subscribe("s1")

	hub.Unsubscribe(sub)
	hub.Unsubscribe(sub)

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Zero(t, hub.Subscribers("s1"))
}

func TestHubDrop(t *testing.T) {
	hub := NewHub(logger.Nop())
	a := hub.Subscribe("s1")
	b := hub.Subscribe("s1")

	hub.Drop("s1")

	_, ok := <-a.C
	assert.False(t, ok)
	_, ok = <-b.C
	assert.False(t, ok)
	assert.Zero(t, hub.Subscribers("s1"))

	// Unsubscribing after a drop is a no-op.
	hub.Unsubscribe(a)
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub(logger.Nop())
	sub := hub.Subscribe("s1")

	for i := 0; i < subscriberBuffer; i++ {
		require.Equal(t, 1, hub.Publish("s1", New(KindInfo, "x")))
	}

	done := make(chan int)
	go func() { done <- hub.Publish("s1", New(KindInfo, "overflow")) }()

	select {
	case delivered := <-done:
		assert.Zero(t, delivered)
	case <-time.After(time.Second):
		t.Fatal("Publish blocked on a full subscriber")
	}
	assert.Len(t, sub.C, subscriberBuffer)
}

func TestHubServeWS(t *testing.T) {
	hub := NewHub(logger.Nop())
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, "s1", nil)
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return hub.Subscribers("s1") == 1 }, time.Second, 5*time.Millisecond)

	hub.Publish("s1", New(KindError, "Failed to send email"))

	var got Notification
	require.NoError(t, wsjson.Read(ctx, conn, &got))
	assert.Equal(t, KindError, got.Kind)
	assert.Equal(t, "Failed to send email", got.Message)

	// Client going away unsubscribes.
	conn.Close(websocket.StatusNormalClosure, "")
	assert.Eventually(t, func() bool { return hub.Subscribers("s1") == 0 }, time.Second, 5*time.Millisecond)
}
