package taskstore

import (
	"errors"
	"fmt"

	"github.com/kazz187/agileboard/pkg/cerr"
)

type Kind int

const (
	KindAuthRequired Kind = iota + 1
	KindRemoteFailure
	KindSubscriptionFailure
	KindInvalidArgument
	KindNotFound
	KindFailedPrecondition
)

func (k Kind) String() string {
	switch k {
	case KindAuthRequired:
		return "auth required"
	case KindRemoteFailure:
		return "remote failure"
	case KindSubscriptionFailure:
		return "subscription failure"
	case KindInvalidArgument:
		return "invalid argument"
	case KindNotFound:
		return "not found"
	case KindFailedPrecondition:
		return "failed precondition"
	}
	return "unknown"
}

// Error is returned by every store operation and kept as the latest error.
type Error struct {
	Kind   Kind
	Op     string
	TaskID string
	Err    error
}

func (e *Error) Error() string {
	target := e.Op
	if e.TaskID != "" {
		target += " " + e.TaskID
	}
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", target, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", target, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func IsKind(err error, kind Kind) bool {
	var e *Error
	return errors.As(err, &e) && e.Kind == kind
}

func newError(kind Kind, op, id string, err error) *Error {
	return &Error{Kind: kind, Op: op, TaskID: id, Err: err}
}

func errorf(kind Kind, op, id, format string, args ...any) *Error {
	return newError(kind, op, id, fmt.Errorf(format, args...))
}

// remoteError classifies a failed remote call. An expired or rejected token
// means the user has to sign in again.
func remoteError(op, id string, err error) *Error {
	if cerr.IsCode(err, cerr.Unauthenticated) {
		return newError(KindAuthRequired, op, id, err)
	}
	return newError(KindRemoteFailure, op, id, err)
}

// validationError keeps the violation details of a cerr validation failure.
func validationError(op, id string, err error) *Error {
	return newError(KindInvalidArgument, op, id, err)
}
