// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package store

import (
	"context"
	"errors"
	"fmt"
)

// Code classifies store failures.
type Code string

const (
	// CodeUnavailable means the store could not be reached. Transient.
	CodeUnavailable Code = "unavailable"
	// CodePermissionDenied means the store refused the operation. Retrying
	// or reconnecting will not help.
	CodePermissionDenied Code = "permission_denied"
	// CodeInvalidArgument means the request was malformed, e.g. a bad path.
	CodeInvalidArgument Code = "invalid_argument"
)

// Error is a classified store failure.
type Error struct {
	Code  Code
	Op    string
	Path  string
	Cause error
}

func (e *Error) Error() string {
	msg := "store"
	if e.Op != "" {
		msg += " " + e.Op
	}
	if e.Path != "" {
		msg += " " + e.Path
	}
	msg += ": " + string(e.Code)
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches any *Error with the same code.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// Sentinels for errors.Is.
var (
	ErrUnavailable      = &Error{Code: CodeUnavailable}
	ErrPermissionDenied = &Error{Code: CodePermissionDenied}
	ErrInvalidArgument  = &Error{Code: CodeInvalidArgument}
)

// Unavailable wraps cause as a CodeUnavailable error.
func Unavailable(op, path string, cause error) error {
	return &Error{Code: CodeUnavailable, Op: op, Path: path, Cause: cause}
}

// PermissionDenied wraps cause as a CodePermissionDenied error.
func PermissionDenied(op, path string, cause error) error {
	return &Error{Code: CodePermissionDenied, Op: op, Path: path, Cause: cause}
}

// InvalidPath reports a malformed path.
func InvalidPath(op, path string) error {
	return &Error{Code: CodeInvalidArgument, Op: op, Path: path, Cause: fmt.Errorf("invalid path %q", path)}
}

// ContextError converts a finished context into the error a store operation
// returns: a deadline is an unreachable store, a cancellation is passed
// through unchanged.
func ContextError(op, path string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return Unavailable(op, path, err)
	}
	return err
}
