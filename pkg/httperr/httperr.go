package httperr

import (
	"errors"
	"net/http"
)

// Error is a caller-facing failure that already knows its HTTP status.
type Error struct {
	status int
	msg    string
}

func (e *Error) Error() string { return e.msg }

func (e *Error) Status() int { return e.status }

func NewBadRequest(msg string) error { return &Error{status: http.StatusBadRequest, msg: msg} }

func NewUnauthorized(msg string) error { return &Error{status: http.StatusUnauthorized, msg: msg} }

func NewForbidden(msg string) error { return &Error{status: http.StatusForbidden, msg: msg} }

func IsBadRequest(err error) bool { return StatusOf(err) == http.StatusBadRequest }

func IsUnauthorized(err error) bool { return StatusOf(err) == http.StatusUnauthorized }

func IsForbidden(err error) bool { return StatusOf(err) == http.StatusForbidden }

// StatusOf returns the status carried by err, or 0 when err is not an *Error.
func StatusOf(err error) int {
	e, ok := errors.AsType[*Error](err)
	if !ok {
		return 0
	}
	return e.status
}
