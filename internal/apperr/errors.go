package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindUnauthorized
	KindForbidden
	KindConflict
	KindIntegration
	KindUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindUnauthorized:
		return "unauthorized"
	case KindForbidden:
		return "forbidden"
	case KindConflict:
		return "conflict"
	case KindIntegration:
		return "integration"
	case KindUnavailable:
		return "unavailable"
	default:
		return "internal"
	}
}

// Error is the application error carried from services to handlers.
// Msg is safe to show to clients; Err is the underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	switch {
	case e.Op != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Op, e.Msg, e.Err)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	default:
		return e.Msg
	}
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches two application errors by kind and message so that sentinel
// values survive being re-wrapped with a different Op.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Msg == e.Msg
}

func newErr(k Kind, op, msg string) *Error { return &Error{Kind: k, Op: op, Msg: msg} }

func Validation(op, msg string) *Error   { return newErr(KindValidation, op, msg) }
func NotFound(op, msg string) *Error     { return newErr(KindNotFound, op, msg) }
func Unauthorized(op, msg string) *Error { return newErr(KindUnauthorized, op, msg) }
func Forbidden(op, msg string) *Error    { return newErr(KindForbidden, op, msg) }
func Conflict(op, msg string) *Error     { return newErr(KindConflict, op, msg) }
func Integration(op, msg string) *Error  { return newErr(KindIntegration, op, msg) }

// Unavailable marks a downstream collaborator failure (gateway, provider).
func Unavailable(op, msg string, err error) *Error {
	return &Error{Kind: KindUnavailable, Op: op, Msg: msg, Err: err}
}

// Internal wraps an unexpected error. The cause is never shown to clients.
func Internal(op string, err error) *Error {
	return &Error{Kind: KindInternal, Op: op, Msg: "internal error", Err: err}
}

// WithOp returns a copy of e tagged with op.
func (e *Error) WithOp(op string) *Error {
	c := *e
	c.Op = op
	return &c
}

// KindOf reports the kind of the first *Error in err's chain.
func KindOf(err error) Kind {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind
	}
	return KindInternal
}

// Message returns the client-facing message for err.
func Message(err error) string {
	var ae *Error
	if errors.As(err, &ae) && ae.Kind != KindInternal {
		return ae.Msg
	}
	return "internal error"
}

func HTTPStatus(k Kind) int {
	switch k {
	case KindValidation, KindIntegration:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	case KindUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
