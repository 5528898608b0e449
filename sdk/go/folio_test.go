package folio_test

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/folio/internal/config"
	"github.com/folio/folio/internal/contact"
	"github.com/folio/folio/internal/handler"
	"github.com/folio/folio/internal/logger"
	"github.com/folio/folio/internal/middleware"
	"github.com/folio/folio/internal/notify"
	"github.com/folio/folio/internal/router"
	folio "github.com/folio/folio/sdk/go"
)

type deliverFunc func(context.Context, contact.DeliveryRequest) error

func (f deliverFunc) Deliver(ctx context.Context, req contact.DeliveryRequest) error {
	return f(ctx, req)
}

func newServer(t *testing.T, deliver deliverFunc) (*httptest.Server, *notify.Hub) {
	t.Helper()

	cfg := &config.Config{}
	log := logger.Nop()
	hub := notify.NewHub(log)
	registry := contact.NewRegistry(contact.Settings{
		ServiceID:    "service_main",
		TemplateID:   "template_contact",
		PublicKey:    "pk_live",
		TickInterval: time.Hour,
	}, deliver, hub.For, time.Minute, log)
	registry.OnTeardown(hub.Drop)

	h := handler.New(registry, hub, nil, log, cfg)
	srv := httptest.NewServer(router.New(h, middleware.New(nil, log, cfg), cfg))
	t.Cleanup(func() {
		srv.Close()
		registry.Close()
	})
	return srv, hub
}

func ok(context.Context, contact.DeliveryRequest) error { return nil }

func TestClientSubmit(t *testing.T) {
	srv, _ := newServer(t, ok)
	client := folio.NewClient(folio.Config{BaseURL: srv.URL})
	ctx := context.Background()

	assert.Empty(t, client.SessionID())
	sess, err := client.CreateSession(ctx)
	require.NoError(t, err)
	assert.Equal(t, sess.SessionID, client.SessionID())

	_, err = client.SetField(ctx, "name", "Ada")
	require.NoError(t, err)

	res, err := client.Submit(ctx, folio.Form{Email: "ada@example.com", Message: "Hello!"})
	require.NoError(t, err)
	assert.Equal(t, "Email Sent!", res.Notification.Message)
	assert.Equal(t, "success", res.Notification.Kind)
	assert.Equal(t, folio.Form{Name: "Ada", Email: "ada@example.com", Message: "Hello!"}, res.State.Form)
	assert.True(t, res.State.Cooldown.Running)

	_, err = client.Submit(ctx, folio.Form{})
	require.ErrorIs(t, err, folio.ErrRateLimited)
	apiErr, isAPI := folio.IsAPIError(err)
	require.True(t, isAPI)
	assert.Equal(t, 429, apiErr.StatusCode)
	assert.Equal(t, 60*time.Second, apiErr.RetryAfter)
	require.NotNil(t, apiErr.Result)
	assert.Equal(t, "Please wait 60 seconds", apiErr.Result.Notification.Message)
}

func TestClientRejections(t *testing.T) {
	srv, _ := newServer(t, func(context.Context, contact.DeliveryRequest) error {
		return errors.New("quota exceeded")
	})
	client := folio.NewClient(folio.Config{BaseURL: srv.URL + "/api/v1/"})
	ctx := context.Background()

	_, err := client.Submit(ctx, folio.Form{Name: "Ada", Message: "hi"})
	assert.ErrorIs(t, err, folio.ErrMissingFields)

	_, err = client.Submit(ctx, folio.Form{Email: "nope"})
	assert.ErrorIs(t, err, folio.ErrInvalidEmail)

	_, err = client.Submit(ctx, folio.Form{Email: "ada@example.com"})
	assert.ErrorIs(t, err, folio.ErrDeliveryFailed)
	assert.NotErrorIs(t, err, folio.ErrRateLimited)

	state, err := client.State(ctx)
	require.NoError(t, err)
	assert.False(t, state.State.Cooldown.Running)
	assert.False(t, state.State.Pending)
}

func TestClientNotifications(t *testing.T) {
	srv, hub := newServer(t, ok)
	client := folio.NewClient(folio.Config{BaseURL: srv.URL})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sess, err := client.CreateSession(ctx)
	require.NoError(t, err)

	notes, err := client.Notifications(ctx)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.Subscribers(sess.SessionID) == 1 }, time.Second, 5*time.Millisecond)

	_, err = client.Submit(ctx, folio.Form{Name: "Ada", Email: "ada@example.com", Message: "Hello!"})
	require.NoError(t, err)

	n, open := <-notes
	require.True(t, open)
	assert.Equal(t, "Email Sent!", n.Message)

	require.NoError(t, client.EndSession(ctx))
	_, open = <-notes
	assert.False(t, open)
	assert.Empty(t, client.SessionID())
}
