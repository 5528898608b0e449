package folio

import "time"

// Form holds the three contact form fields.
type Form struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	Message string `json:"message,omitempty"`
}

// Cooldown reports the wait that follows a successful send.
type Cooldown struct {
	Running bool `json:"isRunning"`
	Elapsed int  `json:"elapsedSeconds"`
}

// State is the server's view of one visitor's contact form.
type State struct {
	Form      Form     `json:"form"`
	Cooldown  Cooldown `json:"cooldown"`
	Remaining int      `json:"remainingSeconds"`
	Pending   bool     `json:"pending"`
}

// Notification is the status message shown after a contact form action.
// Kind is one of "info", "success" or "error".
type Notification struct {
	Message string    `json:"message"`
	Kind    string    `json:"kind"`
	Time    time.Time `json:"time"`
}

// Session is returned by the session, state and field endpoints.
type Session struct {
	SessionID string `json:"sessionId"`
	State     State  `json:"state"`
}

// SubmitResult is the outcome of a submission. It is also attached to the
// APIError of a rejected submission.
type SubmitResult struct {
	SessionID    string       `json:"sessionId"`
	Notification Notification `json:"notification"`
	State        State        `json:"state"`
}

type fieldChange struct {
	Field string `json:"field"`
	Value string `json:"value"`
}
