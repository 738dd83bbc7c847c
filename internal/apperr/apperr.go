// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package apperr defines the typed failures reported by the pipeline. Every
// failure carries a Kind so adapters can tell caller mistakes, missing
// configuration, and provider runtime failures apart.
package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure.
type Kind string

const (
	KindValidation      Kind = "validation_error"
	KindNotFound        Kind = "not_found"
	KindConflict        Kind = "conflict"
	KindPayloadTooLarge Kind = "payload_too_large"
	KindConfiguration   Kind = "configuration_error"
	KindIndexing        Kind = "indexing_error"
	KindEmptyIndex      Kind = "empty_index"
	KindGeneration      Kind = "generation_error"
	KindInternal        Kind = "internal_error"
)

// Error is a classified failure. Op names the operation that failed
// (e.g. "project.CreateBucket"); Err is the underlying cause, if any.
type Error struct {
	Kind Kind
	Op   string
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Msg
	if msg == "" {
		msg = string(e.Kind)
	}
	if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// Message returns the human-readable cause without the operation prefix.
func (e *Error) Message() string {
	if e.Err != nil && e.Msg != "" {
		return e.Msg + ": " + e.Err.Error()
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Msg
}

// E builds an Error. Use the kind-specific helpers where possible.
func E(kind Kind, op, msg string, err error) *Error {
	return &Error{Kind: kind, Op: op, Msg: msg, Err: err}
}

func Validation(op, format string, args ...any) *Error {
	return E(KindValidation, op, fmt.Sprintf(format, args...), nil)
}

func NotFound(op, format string, args ...any) *Error {
	return E(KindNotFound, op, fmt.Sprintf(format, args...), nil)
}

func Conflict(op, format string, args ...any) *Error {
	return E(KindConflict, op, fmt.Sprintf(format, args...), nil)
}

func PayloadTooLarge(op string, size, limit int64) *Error {
	return E(KindPayloadTooLarge, op,
		fmt.Sprintf("content is %d bytes; maximum size is %d bytes (%dMB)", size, limit, limit/(1024*1024)), nil)
}

func Configuration(op, format string, args ...any) *Error {
	return E(KindConfiguration, op, fmt.Sprintf(format, args...), nil)
}

func Indexing(op, msg string, cause error) *Error {
	return E(KindIndexing, op, msg, cause)
}

func EmptyIndex(op, projectID string) *Error {
	return E(KindEmptyIndex, op, fmt.Sprintf("project %s has no indexed documents", projectID), nil)
}

func Generation(op, msg string, cause error) *Error {
	return E(KindGeneration, op, msg, cause)
}

// KindOf returns the Kind of the outermost classified error in err's chain,
// or KindInternal when err is not classified. It returns "" for nil.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller may reasonably retry the same request.
// Configuration and caller errors are never retryable.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindIndexing, KindGeneration, KindInternal:
		return true
	}
	return false
}
