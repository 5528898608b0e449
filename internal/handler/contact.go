package handler

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/folio/folio/internal/contact"
	"github.com/folio/folio/internal/notify"
)

// SessionCookie names the cookie carrying the contact session id
const SessionCookie = "folio_session"

// ContactResponse is returned by every contact endpoint
type ContactResponse struct {
	SessionID    string               `json:"sessionId,omitempty"`
	Notification *notify.Notification `json:"notification,omitempty"`
	State        contact.State        `json:"state"`
}

// FieldChangeRequest replaces one form field
type FieldChangeRequest struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// SubmitRequest optionally carries field values to apply before submitting.
// Absent fields keep their current value.
type SubmitRequest struct {
	Name    *string `json:"name,omitempty"`
	Email   *string `json:"email,omitempty"`
	Message *string `json:"message,omitempty"`
}

// session resolves the caller's contact form from the session cookie,
// mounting a new one when needed.
func (h *Handler) session(w http.ResponseWriter, r *http.Request) (string, *contact.Submission, bool) {
	var id string
	if c, err := r.Cookie(SessionCookie); err == nil {
		id = c.Value
	}

	id, sub, created := h.registry.GetOrCreate(id)
	if created {
		h.setSessionCookie(w, id, 0)
	}
	return id, sub, created
}

func (h *Handler) setSessionCookie(w http.ResponseWriter, value string, maxAge int) {
	c := &http.Cookie{
		Name:     SessionCookie,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	// Cross-site front-ends need SameSite=None, which browsers only accept with Secure
	if h.cfg.Server.SecureCookies {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	}
	http.SetCookie(w, c)
}

// CreateSession mounts a contact form for the caller
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	id, sub, created := h.session(w, r)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, ContactResponse{SessionID: id, State: sub.State()})
}

// GetState returns the caller's form, cooldown and pending flag
func (h *Handler) GetState(w http.ResponseWriter, r *http.Request) {
	id, sub, _ := h.session(w, r)
	writeJSON(w, http.StatusOK, ContactResponse{SessionID: id, State: sub.State()})
}

// UpdateField replaces one form field
func (h *Handler) UpdateField(w http.ResponseWriter, r *http.Request) {
	var req FieldChangeRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	id, sub, _ := h.session(w, r)
	if err := sub.HandleFieldChange(req.Field, req.Value); err != nil {
		switch {
		case errors.Is(err, contact.ErrUnknownField):
			writeError(w, http.StatusBadRequest, "unknown_field", "Unknown field: "+req.Field)
		case errors.Is(err, contact.ErrClosed):
			writeError(w, http.StatusGone, "session_closed", "Contact session has ended")
		default:
			h.log.Error().Err(err).Str("session_id", id).Msg("field change failed")
			writeError(w, http.StatusInternalServerError, "internal_error", "An unexpected error occurred")
		}
		return
	}

	writeJSON(w, http.StatusOK, ContactResponse{SessionID: id, State: sub.State()})
}

// Submit applies any supplied fields, runs the submission and waits for the
// delivery outcome. A client that disconnects early does not abort delivery.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if _, err := readOptionalJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "Invalid request body")
		return
	}

	id, sub, _ := h.session(w, r)
	for field, value := range map[string]*string{
		contact.FieldName:    req.Name,
		contact.FieldEmail:   req.Email,
		contact.FieldMessage: req.Message,
	} {
		if value == nil {
			continue
		}
		if err := sub.HandleFieldChange(field, *value); err != nil {
			h.writeOutcome(w, id, sub, err)
			return
		}
	}

	done, err := sub.Submit(r.Context())
	if err == nil {
		select {
		case err = <-done:
		case <-r.Context().Done():
			return
		}
	}
	h.writeOutcome(w, id, sub, err)
}

// DeleteSession tears down the caller's contact form
func (h *Handler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	if c, err := r.Cookie(SessionCookie); err == nil {
		h.registry.Remove(c.Value)
	}
	h.setSessionCookie(w, "", -1)
	w.WriteHeader(http.StatusNoContent)
}

// Notifications streams the caller's notifications over a WebSocket
func (h *Handler) Notifications(w http.ResponseWriter, r *http.Request) {
	id, _, _ := h.session(w, r)
	h.hub.ServeWS(w, r, id, h.originPatterns())
}

// writeOutcome reports a submission result with the same text the
// notification surface shows.
func (h *Handler) writeOutcome(w http.ResponseWriter, id string, sub *contact.Submission, err error) {
	n := contact.Outcome(err)
	status, code := outcomeStatus(err)

	var rl *contact.RateLimitedError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(rl.Remaining))
	}
	if status >= http.StatusInternalServerError {
		h.log.Warn().Err(err).Str("session_id", id).Int("status", status).Msg("contact submission failed")
	}

	body := map[string]interface{}{
		"sessionId":    id,
		"notification": n,
		"state":        sub.State(),
	}
	if err != nil {
		body["error"] = map[string]interface{}{
			"code":    code,
			"message": n.Message,
		}
	}
	writeJSON(w, status, body)
}

func outcomeStatus(err error) (int, string) {
	switch {
	case err == nil:
		return http.StatusOK, ""
	case errors.Is(err, contact.ErrRateLimited):
		return http.StatusTooManyRequests, "rate_limited"
	case errors.Is(err, contact.ErrMissingFields):
		return http.StatusBadRequest, "missing_fields"
	case errors.Is(err, contact.ErrInvalidEmail):
		return http.StatusBadRequest, "invalid_email"
	case errors.Is(err, contact.ErrPending):
		return http.StatusConflict, "pending"
	case errors.Is(err, contact.ErrClosed):
		return http.StatusGone, "session_closed"
	case errors.Is(err, contact.ErrDeliveryFailed):
		return http.StatusBadGateway, "delivery_failed"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// originPatterns turns the allowed origins into host patterns for the
// WebSocket origin check.
func (h *Handler) originPatterns() []string {
	patterns := make([]string, 0, len(h.cfg.Server.AllowedOrigins))
	for _, origin := range h.cfg.Server.AllowedOrigins {
		u, err := url.Parse(origin)
		if err != nil || u.Host == "" {
			continue
		}
		patterns = append(patterns, u.Host)
	}
	return patterns
}
