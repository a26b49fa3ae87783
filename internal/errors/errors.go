// Package errors provides the fault taxonomy and cleanup utilities for mzprof.
//
// Faults fall into two classes that must stay distinguishable all the way to
// the process exit code: transport faults (the connection to the Materialize
// endpoint failed or the SUBSCRIBE protocol desynchronized) and internal
// defects (an encoding invariant was violated, which signals a bug rather
// than expected skew between snapshots).
package errors

import (
	"errors"
	"fmt"
	"io"

	"github.com/rs/zerolog"
)

// Kind classifies a fault for exit-code mapping.
type Kind int

const (
	// KindTransport marks connection and protocol faults. Never retried:
	// a reconnected subscription cannot reconstruct prior state consistently.
	KindTransport Kind = iota + 1
	// KindInternal marks programming-error-class faults, e.g. an encoding
	// invariant violation.
	KindInternal
)

// Exit codes reported by cmd/mzprof.
const (
	ExitTransport = 1
	ExitInternal  = 2
	ExitUsage     = 3
)

// Error wraps an underlying error with its fault kind.
type Error struct {
	kind Kind
	err  error
}

func (e *Error) Error() string { return e.err.Error() }

// Unwrap exposes the underlying error to errors.Is/As.
func (e *Error) Unwrap() error { return e.err }

// Kind returns the fault classification.
func (e *Error) Kind() Kind { return e.kind }

// Transport wraps err as a transport fault.
func Transport(err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: KindTransport, err: err}
}

// Transportf formats a new transport fault.
func Transportf(format string, args ...any) error {
	return &Error{kind: KindTransport, err: fmt.Errorf(format, args...)}
}

// Internal wraps err as an internal defect.
func Internal(err error) error {
	if err == nil {
		return nil
	}
	return &Error{kind: KindInternal, err: err}
}

// Internalf formats a new internal defect.
func Internalf(format string, args ...any) error {
	return &Error{kind: KindInternal, err: fmt.Errorf(format, args...)}
}

// IsTransport reports whether err is classified as a transport fault.
func IsTransport(err error) bool { return kindOf(err) == KindTransport }

// IsInternal reports whether err is classified as an internal defect.
func IsInternal(err error) bool { return kindOf(err) == KindInternal }

func kindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.kind
	}
	return 0
}

// ExitCode maps err to the process exit code. Unclassified errors (bad flags,
// unwriteable output files) count as usage errors.
func ExitCode(err error) int {
	switch kindOf(err) {
	case KindTransport:
		return ExitTransport
	case KindInternal:
		return ExitInternal
	default:
		return ExitUsage
	}
}

// DeferClose properly closes an io.Closer with logging.
// Use this in defer statements to avoid suppressing close errors.
func DeferClose(logger zerolog.Logger, closer io.Closer, msg string) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logger.Warn().Err(err).Msg(msg)
	}
}
