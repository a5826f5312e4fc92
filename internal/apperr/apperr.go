// Package apperr defines the error taxonomy shared by the collector service.
//
// Every error crossing a package boundary that callers need to branch on is an
// *Error carrying a Kind. The stack of the point of creation is captured with
// go-errors so that logs keep the origin even after several %w wraps.
package apperr

import (
	"errors"
	"fmt"

	goerrors "github.com/go-errors/errors"
)

// Kind classifies an error for retry and transport mapping decisions.
type Kind string

const (
	KindTransport       Kind = "TRANSPORT"
	KindUpstreamLogical Kind = "UPSTREAM_LOGICAL"
	KindData            Kind = "DATA"
	KindPersistence     Kind = "PERSISTENCE"
	KindRateLimit       Kind = "RATE_LIMIT"
	KindInvalidInput    Kind = "INVALID_INPUT"
	KindNotFound        Kind = "NOT_FOUND"
	KindConflict        Kind = "CONFLICT"
	KindInternal        Kind = "INTERNAL"
)

// Error is the concrete error type of this package.
type Error struct {
	Kind    Kind
	Message string
	Err     error
	Stack   []byte
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// StackTrace returns the stack captured when the error was created.
func (e *Error) StackTrace() []byte {
	return e.Stack
}

// New builds an *Error of the given kind.
func New(kind Kind, message string, err error) *Error {
	var stack []byte
	if err != nil {
		var ge *goerrors.Error
		if errors.As(err, &ge) {
			stack = ge.Stack()
		} else {
			stack = goerrors.Wrap(err, 2).Stack()
		}
	} else {
		stack = goerrors.New(message).Stack()
	}

	return &Error{
		Kind:    kind,
		Message: message,
		Err:     err,
		Stack:   stack,
	}
}

func Transport(message string, err error) *Error {
	return New(KindTransport, message, err)
}

func UpstreamLogical(message string, err error) *Error {
	return New(KindUpstreamLogical, message, err)
}

func Data(message string, err error) *Error {
	return New(KindData, message, err)
}

func Persistence(message string, err error) *Error {
	return New(KindPersistence, message, err)
}

func RateLimit(message string, err error) *Error {
	return New(KindRateLimit, message, err)
}

func InvalidInput(message string, err error) *Error {
	return New(KindInvalidInput, message, err)
}

func NotFound(message string, err error) *Error {
	return New(KindNotFound, message, err)
}

func Conflict(message string, err error) *Error {
	return New(KindConflict, message, err)
}

func Internal(message string, err error) *Error {
	return New(KindInternal, message, err)
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal
// when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// IsKind reports whether err's chain contains an *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

// Retryable reports whether a failed upstream call may be attempted again.
// Upstream logical errors are not retried by the client itself, but they are
// charged to the same attempt budget by the collector, so they count here.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTransport, KindUpstreamLogical, KindRateLimit:
		return true
	}
	return false
}

// Message returns the human readable message of err, without kind prefix.
func Message(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Err != nil {
			return fmt.Sprintf("%s: %v", e.Message, e.Err)
		}
		return e.Message
	}
	return err.Error()
}
