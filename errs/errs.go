// Package errs provides structured error types shared across Hyperwatch.
package errs

import (
	"errors"
	"strconv"
	"strings"
	"time"
)

// Code identifies a failure category observed while talking to an upstream service.
type Code string

const (
	// CodeNetwork indicates a transport failure (dial, timeout, dropped connection).
	CodeNetwork Code = "network"
	// CodeExchange indicates an upstream-side failure (non-2xx, malformed envelope).
	CodeExchange Code = "exchange_error"
	// CodeDecode indicates a record that could not be decoded into its schema type.
	CodeDecode Code = "decode"
	// CodeRateLimited indicates the request exceeded upstream rate limits.
	CodeRateLimited Code = "rate_limited"
	// CodeInvalid indicates invalid input provided by the caller.
	CodeInvalid Code = "invalid_request"
	// CodeNotFound indicates a missing resource.
	CodeNotFound Code = "not_found"
	// CodeUnavailable indicates the upstream is temporarily unavailable.
	CodeUnavailable Code = "unavailable"
)

// E captures structured error information produced across the Hyperwatch stack.
type E struct {
	Venue      string
	Code       Code
	HTTP       int
	Message    string
	RetryAfter time.Duration

	cause error
}

// Option configures an error envelope.
type Option func(*E)

// New constructs an error envelope for the venue and failure code.
func New(venue string, code Code, opts ...Option) *E {
	e := &E{
		Venue:      strings.TrimSpace(venue),
		Code:       code,
		HTTP:       0,
		Message:    "",
		RetryAfter: 0,
		cause:      nil,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	return e
}

// WithMessage attaches a human-readable message to the error.
func WithMessage(message string) Option {
	trimmed := strings.TrimSpace(message)
	return func(e *E) {
		e.Message = trimmed
	}
}

// WithHTTP records the associated HTTP status code.
func WithHTTP(status int) Option {
	return func(e *E) {
		e.HTTP = status
	}
}

// WithRetryAfter records the server-specified delay before the request may be retried.
func WithRetryAfter(d time.Duration) Option {
	return func(e *E) {
		if d > 0 {
			e.RetryAfter = d
		}
	}
}

// WithCause sets the underlying cause error.
func WithCause(err error) Option {
	return func(e *E) {
		e.cause = err
	}
}

func (e *E) Error() string {
	if e == nil {
		return "<nil>"
	}
	var parts []string

	venue := strings.TrimSpace(e.Venue)
	if venue == "" {
		venue = "unknown"
	}
	parts = append(parts, "venue="+venue)

	code := strings.TrimSpace(string(e.Code))
	if code == "" {
		code = "unknown"
	}
	parts = append(parts, "code="+code)

	if e.HTTP > 0 {
		parts = append(parts, "http="+strconv.Itoa(e.HTTP))
	}
	if e.RetryAfter > 0 {
		parts = append(parts, "retry_after="+e.RetryAfter.String())
	}
	if e.Message != "" {
		parts = append(parts, "message="+strconv.Quote(e.Message))
	}
	if e.cause != nil {
		parts = append(parts, "cause="+strconv.Quote(e.cause.Error()))
	}

	return strings.Join(parts, " ")
}

func (e *E) Unwrap() error { return e.cause }

// RateLimited reports whether err carries a rate-limit code, returning the
// server-specified retry delay when present.
func RateLimited(err error) (time.Duration, bool) {
	var e *E
	if !errors.As(err, &e) {
		return 0, false
	}
	if e.Code != CodeRateLimited {
		return 0, false
	}
	return e.RetryAfter, true
}

// HasCode reports whether err carries the given failure code.
func HasCode(err error, code Code) bool {
	var e *E
	if !errors.As(err, &e) {
		return false
	}
	return e.Code == code
}
