package invite

import (
	"errors"
	"net/http"
)

type Kind int

const (
	KindInternal Kind = iota
	KindBadRequest
	KindUnauthorized
	KindForbidden
	KindConflict
)

// sentinels for errors.Is
var (
	ErrBadRequest   = errors.New("bad request")
	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("forbidden")
	ErrConflict     = errors.New("conflict")
	ErrInternal     = errors.New("internal error")
)

const (
	MsgMissingAuth        = "Missing or invalid authorization header"
	MsgInvalidToken       = "Invalid token"
	MsgAccessDenied       = "Project not found or access denied"
	MsgInsufficient       = "Insufficient permissions"
	MsgAlreadySent        = "Invitation already sent"
	MsgCreateFailed       = "Failed to create invitation"
	MsgEmailNotConfigured = "Email service not configured"
	MsgInvalidBody        = "Invalid request body"
	MsgInternal           = "Internal server error"
)

// Error is a failure with a caller-facing message. Err is kept for logs only.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}

	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	switch e.Kind {
	case KindBadRequest:
		return target == ErrBadRequest
	case KindUnauthorized:
		return target == ErrUnauthorized
	case KindForbidden:
		return target == ErrForbidden
	case KindConflict:
		return target == ErrConflict
	case KindInternal:
		return target == ErrInternal
	}

	return false
}

func (e *Error) Status() int {
	switch e.Kind {
	case KindBadRequest:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindForbidden:
		return http.StatusForbidden
	case KindConflict:
		return http.StatusConflict
	}

	return http.StatusInternalServerError
}

func BadRequest(msg string) *Error {
	return &Error{Kind: KindBadRequest, Message: msg}
}

func Unauthorized(msg string, err error) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg, Err: err}
}

func Forbidden(msg string, err error) *Error {
	return &Error{Kind: KindForbidden, Message: msg, Err: err}
}

func Conflict(msg string, err error) *Error {
	return &Error{Kind: KindConflict, Message: msg, Err: err}
}

func Internal(msg string, err error) *Error {
	return &Error{Kind: KindInternal, Message: msg, Err: err}
}
