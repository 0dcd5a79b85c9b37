// Package apperr holds the error kinds shared by the stores, services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Kind string

const (
	KindNotFound        Kind = "not_found"
	KindExpired         Kind = "expired"
	KindConflict        Kind = "conflict"
	KindUnconfigured    Kind = "unconfigured"
	KindUpstreamFailure Kind = "upstream_failure"
	KindValidation      Kind = "validation_error"
	KindEmptyAttendance Kind = "empty_attendance"
)

// Sentinels for errors.Is; any *Error of the same kind matches.
var (
	ErrNotFound        = &Error{Kind: KindNotFound}
	ErrExpired         = &Error{Kind: KindExpired}
	ErrConflict        = &Error{Kind: KindConflict}
	ErrUnconfigured    = &Error{Kind: KindUnconfigured}
	ErrUpstreamFailure = &Error{Kind: KindUpstreamFailure}
	ErrValidation      = &Error{Kind: KindValidation}
	ErrEmptyAttendance = &Error{Kind: KindEmptyAttendance}
)

type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Message != "":
		return e.Message
	case e.Err != nil:
		return e.Err.Error()
	default:
		return string(e.Kind)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Err == nil
}

func NotFound(format string, args ...any) error {
	return &Error{Kind: KindNotFound, Message: fmt.Sprintf(format, args...)}
}

func Expired(format string, args ...any) error {
	return &Error{Kind: KindExpired, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) error {
	return &Error{Kind: KindConflict, Message: fmt.Sprintf(format, args...)}
}

func Unconfigured(format string, args ...any) error {
	return &Error{Kind: KindUnconfigured, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

func EmptyAttendance(format string, args ...any) error {
	return &Error{Kind: KindEmptyAttendance, Message: fmt.Sprintf(format, args...)}
}

// Upstream wraps a failure of the storage network or the chain.
func Upstream(message string, err error) error {
	return &Error{Kind: KindUpstreamFailure, Message: message, Err: err}
}

// Wrap attaches a kind to an existing error.
func Wrap(kind Kind, message string, err error) error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first *Error in the chain, or "" when there is none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindNotFound:
		return http.StatusNotFound
	case KindExpired, KindValidation, KindEmptyAttendance:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	case KindUnconfigured:
		return http.StatusServiceUnavailable
	case KindUpstreamFailure:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
