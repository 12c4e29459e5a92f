package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"
)

var (
	// ErrUnauthenticated is returned when no bearer token is available or the
	// billing API rejects the one supplied.
	ErrUnauthenticated = errors.New("billing: unauthenticated")

	// ErrInvalidInvoiceID is returned when an invoice id is empty.
	ErrInvalidInvoiceID = errors.New("billing: invoice id is required")

	// ErrNotFound matches fetch errors with status 404.
	ErrNotFound = errors.New("billing: not found")
)

// FetchError is returned when the billing API answers with a non-success status.
type FetchError struct {
	Op         string
	StatusCode int
	Reason     string
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("billing %s: fetch failed (status %d): %s", e.Op, e.StatusCode, e.Reason)
}

// Is lets callers match auth and not-found failures with errors.Is.
func (e *FetchError) Is(target error) bool {
	switch target {
	case ErrUnauthenticated:
		return e.StatusCode == http.StatusUnauthorized || e.StatusCode == http.StatusForbidden
	case ErrNotFound:
		return e.StatusCode == http.StatusNotFound
	}
	return false
}

// DecodeError is returned when a response does not match the expected schema.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("billing %s: decode failed: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// UnreachableError is returned when the billing API cannot be reached.
type UnreachableError struct {
	Op  string
	Err error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("billing %s: unreachable: %v", e.Op, e.Err)
}

func (e *UnreachableError) Unwrap() error { return e.Err }

// TimeoutError is returned when a call exceeds the client's deadline.
type TimeoutError struct {
	Op    string
	After time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("billing %s: timed out after %s", e.Op, e.After)
}

func (e *TimeoutError) Unwrap() error { return context.DeadlineExceeded }
