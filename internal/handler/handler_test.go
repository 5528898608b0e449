package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/folio/folio/internal/config"
	"github.com/folio/folio/internal/contact"
	"github.com/folio/folio/internal/handler"
	"github.com/folio/folio/internal/logger"
	"github.com/folio/folio/internal/middleware"
	"github.com/folio/folio/internal/notify"
	"github.com/folio/folio/internal/router"
)

type stubDeliverer struct {
	mu    sync.Mutex
	calls []contact.DeliveryRequest
	err   error
}

func (s *stubDeliverer) Deliver(_ context.Context, req contact.DeliveryRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	return s.err
}

func (s *stubDeliverer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

type testServer struct {
	srv       *httptest.Server
	client    *http.Client
	registry  *contact.Registry
	hub       *notify.Hub
	deliverer *stubDeliverer
}

func newTestServer(t *testing.T, deliverer *stubDeliverer) *testServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.AllowedOrigins = []string{"https://portfolio.example"}

	log := logger.Nop()
	hub := notify.NewHub(log)
	registry := contact.NewRegistry(contact.Settings{
		ServiceID:  "service_main",
		TemplateID: "template_contact",
		PublicKey:  "pk_live",
		// Keep the cooldown still for the duration of a test
		TickInterval: time.Hour,
	}, deliverer, hub.For, time.Minute, log)
	registry.OnTeardown(hub.Drop)

	h := handler.New(registry, hub, nil, log, cfg)
	mw := middleware.New(nil, log, cfg)
	srv := httptest.NewServer(router.New(h, mw, cfg))

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		srv.Close()
		registry.Close()
	})

	return &testServer{
		srv:       srv,
		client:    &http.Client{Jar: jar},
		registry:  registry,
		hub:       hub,
		deliverer: deliverer,
	}
}

func (ts *testServer) do(t *testing.T, method, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, ts.srv.URL+path, &buf)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := ts.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]interface{}
	if resp.StatusCode != http.StatusNoContent {
		_ = json.NewDecoder(resp.Body).Decode(&out)
	}
	return resp, out
}

func (ts *testServer) fill(t *testing.T, name, email, message string) {
	t.Helper()
	for field, value := range map[string]string{"name": name, "email": email, "message": message} {
		resp, _ := ts.do(t, http.MethodPatch, "/api/v1/contact/form", handler.FieldChangeRequest{Field: field, Value: value})
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}
}

func notification(t *testing.T, body map[string]interface{}) (string, string) {
	t.Helper()
	n, ok := body["notification"].(map[string]interface{})
	require.True(t, ok, "response has no notification: %v", body)
	return n["message"].(string), n["kind"].(string)
}

func errorCode(body map[string]interface{}) string {
	e, _ := body["error"].(map[string]interface{})
	code, _ := e["code"].(string)
	return code
}

func TestCreateSession(t *testing.T) {
	ts := newTestServer(t, &stubDeliverer{})

	resp, body := ts.do(t, http.MethodPost, "/api/v1/contact/session", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id, _ := body["sessionId"].(string)
	require.NotEmpty(t, id)

	var cookie *http.Cookie
	for _, c := range resp.Cookies() {
		if c.Name == handler.SessionCookie {
			cookie = c
		}
	}
	require.NotNil(t, cookie)
	assert.Equal(t, id, cookie.Value)
	assert.True(t, cookie.HttpOnly)

	// The cookie mounts the same form on later calls.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/contact/session", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, id, body["sessionId"])
	assert.Equal(t, 1, ts.registry.Len())
}

func TestSubmitFlow(t *testing.T) {
	d := &stubDeliverer{}
	ts := newTestServer(t, d)

	ts.fill(t, "Ada", "ada@example.com", "Hello!")

	resp, body := ts.do(t, http.MethodPost, "/api/v1/contact/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msg, kind := notification(t, body)
	assert.Equal(t, "Email Sent!", msg)
	assert.Equal(t, "success", kind)
	require.Equal(t, 1, d.count())
	assert.Equal(t, contact.Form{Name: "Ada", Email: "ada@example.com", Message: "Hello!"}, d.calls[0].Fields)

	state := body["state"].(map[string]interface{})
	cooldown := state["cooldown"].(map[string]interface{})
	assert.Equal(t, true, cooldown["isRunning"])
	assert.Equal(t, float64(0), cooldown["elapsedSeconds"])

	// Second submit inside the cooldown is rejected without a delivery call.
	resp, body = ts.do(t, http.MethodPost, "/api/v1/contact/submit", nil)
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))
	assert.Equal(t, "rate_limited", errorCode(body))
	msg, kind = notification(t, body)
	assert.Equal(t, "Please wait 60 seconds", msg)
	assert.Equal(t, "info", kind)
	assert.Equal(t, 1, d.count())
}

func TestSubmitWithBodyFields(t *testing.T) {
	d := &stubDeliverer{}
	ts := newTestServer(t, d)

	resp, body := ts.do(t, http.MethodPost, "/api/v1/contact/submit", map[string]string{
		"name":    "Ada",
		"email":   "ada@example.com",
		"message": "Hi",
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	msg, _ := notification(t, body)
	assert.Equal(t, "Email Sent!", msg)
	assert.Equal(t, 1, d.count())
}

func TestSubmitRejections(t *testing.T) {
	tests := []struct {
		name    string
		form    [3]string
		status  int
		code    string
		message string
	}{
		{"missing fields", [3]string{"Ada", "", "Hi"}, http.StatusBadRequest, "missing_fields", "Please fill in all fields"},
		{"invalid email", [3]string{"Ada", "not-an-email", "Hi"}, http.StatusBadRequest, "invalid_email", "Invalid email address"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &stubDeliverer{}
			ts := newTestServer(t, d)
			ts.fill(t, tt.form[0], tt.form[1], tt.form[2])

			resp, body := ts.do(t, http.MethodPost, "/api/v1/contact/submit", nil)
			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, errorCode(body))
			msg, kind := notification(t, body)
			assert.Equal(t, tt.message, msg)
			assert.Equal(t, "error", kind)
			assert.Zero(t, d.count())
		})
	}
}

func TestSubmitDeliveryFailure(t *testing.T) {
	d := &stubDeliverer{err: errors.New("upstream 500")}
	ts := newTestServer(t, d)
	ts.fill(t, "Ada", "ada@example.com", "Hello!")

	resp, body := ts.do(t, http.MethodPost, "/api/v1/contact/submit", nil)
	require.Equal(t, http.StatusBadGateway, resp.StatusCode)
	assert.Equal(t, "delivery_failed", errorCode(body))
	msg, _ := notification(t, body)
	assert.Equal(t, "Failed to send email", msg)

	state := body["state"].(map[string]interface{})
	assert.Equal(t, false, state["pending"])
	assert.Equal(t, false, state["cooldown"].(map[string]interface{})["isRunning"])
}

func TestUpdateFieldErrors(t *testing.T) {
	ts := newTestServer(t, &stubDeliverer{})

	resp, body := ts.do(t, http.MethodPatch, "/api/v1/contact/form", handler.FieldChangeRequest{Field: "phone", Value: "1"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "unknown_field", errorCode(body))

	resp, body = ts.do(t, http.MethodPatch, "/api/v1/contact/form", map[string]string{"bogus": "x"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid_request", errorCode(body))
}

func TestGetStateReflectsFieldChanges(t *testing.T) {
	ts := newTestServer(t, &stubDeliverer{})
	ts.fill(t, "Ada", "ada@example.com", "Hello!")

	resp, body := ts.do(t, http.MethodGet, "/api/v1/contact/state", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	form := body["state"].(map[string]interface{})["form"].(map[string]interface{})
	assert.Equal(t, "Ada", form["name"])
	assert.Equal(t, "ada@example.com", form["email"])
	assert.Equal(t, "Hello!", form["message"])
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t, &stubDeliverer{})
	ts.fill(t, "Ada", "ada@example.com", "Hello!")
	require.Equal(t, 1, ts.registry.Len())

	resp, _ := ts.do(t, http.MethodDelete, "/api/v1/contact/session", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Zero(t, ts.registry.Len())

	// The cleared cookie means the next call mounts an empty form.
	_, body := ts.do(t, http.MethodGet, "/api/v1/contact/state", nil)
	form := body["state"].(map[string]interface{})["form"].(map[string]interface{})
	assert.Equal(t, "", form["name"])
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, &stubDeliverer{})
	ts.do(t, http.MethodPost, "/api/v1/contact/session", nil)

	resp, body := ts.do(t, http.MethodGet, "/health", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "healthy", body["status"])
	assert.Equal(t, float64(1), body["sessions"])

	resp, _ = ts.do(t, http.MethodGet, "/ready", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestNotificationsWebSocket(t *testing.T) {
	ts := newTestServer(t, &stubDeliverer{})

	_, body := ts.do(t, http.MethodPost, "/api/v1/contact/session", nil)
	id := body["sessionId"].(string)
	ts.fill(t, "Ada", "ada@example.com", "Hello!")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	header := http.Header{}
	header.Set("Cookie", handler.SessionCookie+"="+id)
	conn, _, err := websocket.Dial(ctx, "ws"+ts.srv.URL[len("http"):]+"/api/v1/contact/notifications", &websocket.DialOptions{
		HTTPHeader: header,
	})
	require.NoError(t, err)
	defer conn.CloseNow()

	require.Eventually(t, func() bool { return ts.hub.Subscribers(id) == 1 }, time.Second, 5*time.Millisecond)

	resp, _ := ts.do(t, http.MethodPost, "/api/v1/contact/submit", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var n notify.Notification
	require.NoError(t, wsjson.Read(ctx, conn, &n))
	assert.Equal(t, "Email Sent!", n.Message)
	assert.Equal(t, notify.KindSuccess, n.Kind)

	// Tearing the session down closes the stream.
	ts.do(t, http.MethodDelete, "/api/v1/contact/session", nil)
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusNormalClosure, websocket.CloseStatus(err))
}
