package contact

import (
	"errors"
	"fmt"
)

// Submission errors
var (
	ErrRateLimited    = errors.New("submission is cooling down")
	ErrMissingFields  = errors.New("all fields are required")
	ErrInvalidEmail   = errors.New("invalid email address")
	ErrDeliveryFailed = errors.New("email delivery failed")
	ErrPending        = errors.New("a submission is already in progress")
	ErrClosed         = errors.New("submission has been torn down")
	ErrUnknownField   = errors.New("unknown form field")
)

// RateLimitedError is returned while the cooldown is running.
type RateLimitedError struct {
	Remaining int // seconds left in the cooldown window
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("please wait %d seconds", e.Remaining)
}

// Is lets errors.Is match ErrRateLimited.
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
