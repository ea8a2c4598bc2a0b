package basket

import "errors"

// Sentinel errors returned by the projection core and its stores.
var (
	// ErrInvalidInput marks an event that can never be applied, however often it is retried.
	ErrInvalidInput = errors.New("invalid basket event")

	// ErrTooManyProducts is returned when a basket exceeds the expander's product bound.
	ErrTooManyProducts = errors.New("too many related products")

	// ErrCanceled marks a merge that stopped because its context was canceled.
	ErrCanceled = errors.New("merge canceled")

	// ErrAnchorMismatch is returned when a lookup yields a summary for another product.
	ErrAnchorMismatch = errors.New("summary anchor does not match event")

	// ErrConcurrentUpdate is returned by a store when the summary changed since it was read.
	ErrConcurrentUpdate = errors.New("summary modified concurrently")
)

// canceledError matches both ErrCanceled and the context error that caused it.
type canceledError struct {
	cause error
}

func (e canceledError) Error() string { return ErrCanceled.Error() + ": " + e.cause.Error() }

func (e canceledError) Unwrap() []error { return []error{ErrCanceled, e.cause} }
