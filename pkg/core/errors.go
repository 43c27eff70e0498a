package core

import (
	"errors"
	"fmt"
	"time"
)

// Configuration errors
var (
	ErrUnknownEndpoint  = errors.New("mapper: unknown endpoint")
	ErrOutdatedEndpoint = errors.New("mapper: outdated endpoint name")
	ErrEmptyInput       = errors.New("mapper: empty input")
	ErrMissingKey       = errors.New("mapper: application key is required")
	ErrMissingSink      = errors.New("mapper: sink path is required")
)

// ErrorKind classifies a failed query.
type ErrorKind string

const (
	KindTransport        ErrorKind = "transport"
	KindTimeout          ErrorKind = "timeout"
	KindUnauthorized     ErrorKind = "unauthorized"
	KindRemoteValidation ErrorKind = "remote_validation"
	KindRateLimited      ErrorKind = "rate_limited"
)

// Sentinels matched with errors.Is against a *QueryError.
var (
	ErrTransport        = errors.New("mapper: transport failure")
	ErrTimeout          = errors.New("mapper: request timed out")
	ErrUnauthorized     = errors.New("mapper: unauthorized")
	ErrRemoteValidation = errors.New("mapper: input rejected by remote service")
	ErrRateLimited      = errors.New("mapper: rate limited")
)

// Retryable reports whether failures of this kind may succeed on another attempt.
func (k ErrorKind) Retryable() bool {
	switch k {
	case KindTransport, KindTimeout, KindRateLimited:
		return true
	}
	return false
}

func (k ErrorKind) sentinel() error {
	switch k {
	case KindTransport:
		return ErrTransport
	case KindTimeout:
		return ErrTimeout
	case KindUnauthorized:
		return ErrUnauthorized
	case KindRemoteValidation:
		return ErrRemoteValidation
	case KindRateLimited:
		return ErrRateLimited
	}
	return nil
}

// QueryError describes why an item could not be mapped.
type QueryError struct {
	Kind   ErrorKind
	Detail string
	// Status is the HTTP status code, zero when no response was received.
	Status int
	// RetryAfter overrides the policy backoff before the next attempt.
	RetryAfter time.Duration
}

func (e *QueryError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Detail)
}

func (e *QueryError) Unwrap() error {
	return e.Kind.sentinel()
}

// NewQueryError builds a QueryError of the given kind.
func NewQueryError(kind ErrorKind, format string, args ...any) *QueryError {
	return &QueryError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of err, or "" if err is not a *QueryError.
func KindOf(err error) ErrorKind {
	var qe *QueryError
	if errors.As(err, &qe) {
		return qe.Kind
	}
	return ""
}
