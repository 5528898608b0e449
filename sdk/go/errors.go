package folio

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"
)

// Sentinel errors matched by APIError codes.
var (
	// ErrRateLimited is returned while the cooldown after a send is running,
	// or when the server's per-IP limit is exceeded.
	ErrRateLimited = errors.New("folio: rate limited")

	// ErrMissingFields is returned when a field is empty at submit time.
	ErrMissingFields = errors.New("folio: missing fields")

	// ErrInvalidEmail is returned when the email field is not well formed.
	ErrInvalidEmail = errors.New("folio: invalid email")

	// ErrPending is returned while a previous submission is still in flight.
	ErrPending = errors.New("folio: submission pending")

	// ErrDeliveryFailed is returned when the email service rejected the message.
	ErrDeliveryFailed = errors.New("folio: delivery failed")

	// ErrSessionClosed is returned when the contact session ended mid-request.
	ErrSessionClosed = errors.New("folio: session closed")
)

var codeErrors = map[string]error{
	"rate_limited":        ErrRateLimited,
	"rate_limit_exceeded": ErrRateLimited,
	"missing_fields":      ErrMissingFields,
	"invalid_email":       ErrInvalidEmail,
	"pending":             ErrPending,
	"delivery_failed":     ErrDeliveryFailed,
	"session_closed":      ErrSessionClosed,
}

// APIError represents an error response from the folio API.
type APIError struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`

	// RetryAfter is set from the Retry-After header of 429 responses.
	RetryAfter time.Duration `json:"-"`

	// Result carries the notification and state of a rejected submission.
	Result *SubmitResult `json:"-"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("folio: API error %d [%s]: %s", e.StatusCode, e.Code, e.Message)
}

// Is matches the sentinel error for the response code.
func (e *APIError) Is(target error) bool {
	return codeErrors[e.Code] == target && target != nil
}

// apiErrorWrapper matches the folio API error envelope.
type apiErrorWrapper struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func parseAPIError(statusCode int, header http.Header, body []byte) error {
	apiErr := &APIError{
		StatusCode: statusCode,
		Code:       "unknown",
		Message:    string(body),
	}

	var wrapper apiErrorWrapper
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Error.Code != "" {
		apiErr.Code = wrapper.Error.Code
		apiErr.Message = wrapper.Error.Message
	}

	if secs, err := strconv.Atoi(header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}

	var result SubmitResult
	if err := json.Unmarshal(body, &result); err == nil && result.Notification.Message != "" {
		apiErr.Result = &result
	}

	return apiErr
}

// IsAPIError checks whether err is an APIError and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
