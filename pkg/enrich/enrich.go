// Package enrich runs an external per-key lookup over a table, one new
// attribute per run, tolerating partial failure and resuming interrupted
// runs from their own output.
package enrich

import (
	"context"
	"errors"
)

// ErrNotFound signals that the lookup completed and the key has no value.
// Not-found is a final answer: it is recorded and never retried on resume.
var ErrNotFound = errors.New("not found")

// Lookup resolves one key against an external service.
//
// Outcomes: (value, nil) on success; ErrNotFound when the key definitively
// has no value; a TransientError (or net timeout) when the attempt may be
// retried; any other error is treated as permanent for that key.
type Lookup interface {
	Lookup(ctx context.Context, key string) (string, error)
}

// LookupFunc adapts a function to the Lookup interface.
type LookupFunc func(ctx context.Context, key string) (string, error)

func (f LookupFunc) Lookup(ctx context.Context, key string) (string, error) {
	return f(ctx, key)
}

// TransientError marks an error as retryable with backoff.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *TransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// LimitedTransientError is a transient error that caps its own retry budget
// below the run-wide maximum (e.g. an explicit rate-limit response).
type LimitedTransientError struct {
	Err error
	// ExtraRetries is the number of retries allowed beyond the first
	// attempt.
	ExtraRetries int
}

func (e *LimitedTransientError) Error() string {
	if e == nil || e.Err == nil {
		return "transient error"
	}
	return e.Err.Error()
}

func (e *LimitedTransientError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func (e *LimitedTransientError) MaxExtraRetries() int {
	if e == nil {
		return 0
	}
	return e.ExtraRetries
}

// PermanentError marks a per-key failure that will never succeed (e.g. a
// malformed key). It is recorded against the row and not re-attempted.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e == nil || e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}
