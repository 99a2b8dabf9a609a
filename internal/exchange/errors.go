package exchange

import (
	"errors"
	"fmt"
)

// TransportError is a network-level failure where the venue may or may not
// have seen the request. Safe to retry with the same client order id.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string { return fmt.Sprintf("%s: %v", e.Op, e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// RejectionError is a definitive refusal from the venue. Never retried.
type RejectionError struct {
	Op     string
	Reason string
}

func (e *RejectionError) Error() string { return fmt.Sprintf("%s rejected: %s", e.Op, e.Reason) }

// RateLimitError signals HTTP 429. Callers back off before any other call.
type RateLimitError struct {
	RetryAfter string
}

func (e *RateLimitError) Error() string { return "rate limited" }

func IsTransient(err error) bool {
	var te *TransportError
	var rl *RateLimitError
	return errors.As(err, &te) || errors.As(err, &rl)
}

func IsRejection(err error) bool {
	var re *RejectionError
	return errors.As(err, &re)
}
