package service

import (
	"errors"
	"fmt"
)

// ErrorKind classifies domain failures so callers can react without parsing messages
type ErrorKind string

const (
	KindValidation        ErrorKind = "validation"
	KindInsufficientFunds ErrorKind = "insufficient_funds"
	KindNotFound          ErrorKind = "not_found"
	KindUnauthorized      ErrorKind = "unauthorized"
	KindWrongState        ErrorKind = "wrong_state"
	KindAlreadyResolved   ErrorKind = "already_resolved"
)

// Error is a domain error carrying its kind and a user facing message
type Error struct {
	Kind ErrorKind
	Msg  string
	Err  error
}

// Sentinels for errors.Is checks, e.g. errors.Is(err, service.ErrNotFound)
var (
	ErrValidation        = &Error{Kind: KindValidation}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrNotFound          = &Error{Kind: KindNotFound}
	ErrUnauthorized      = &Error{Kind: KindUnauthorized}
	ErrWrongState        = &Error{Kind: KindWrongState}
	ErrAlreadyResolved   = &Error{Kind: KindAlreadyResolved}
)

func (e *Error) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		return msg + ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any error of the same kind when the target is a bare sentinel
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	if t.Msg == "" && t.Err == nil {
		return t.Kind == e.Kind
	}
	return t == e
}

// KindOf returns the kind of the first domain error in the chain, or "" for infrastructure errors
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func validationError(format string, args ...any) error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func insufficientFunds(have, need int64) error {
	return &Error{Kind: KindInsufficientFunds, Msg: fmt.Sprintf("insufficient balance: have %d, need %d", have, need)}
}

func notFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func unauthorized(format string, args ...any) error {
	return &Error{Kind: KindUnauthorized, Msg: fmt.Sprintf(format, args...)}
}

func wrongState(format string, args ...any) error {
	return &Error{Kind: KindWrongState, Msg: fmt.Sprintf(format, args...)}
}

func alreadyResolved(format string, args ...any) error {
	return &Error{Kind: KindAlreadyResolved, Msg: fmt.Sprintf(format, args...)}
}
