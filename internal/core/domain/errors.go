package domain

import (
	"errors"
	"fmt"
)

// ErrorKind classifies every failure the core can surface. Controllers and
// the realtime gateway map kinds to HTTP statuses or outbound error events;
// they never recover anything themselves.
type ErrorKind string

const (
	// KindAuthRequired: no session or an invalid/expired one.
	KindAuthRequired ErrorKind = "authentication_required"
	// KindForbidden: role or resource mismatch.
	KindForbidden ErrorKind = "authorization_denied"
	// KindNotFound: the referenced entity does not exist.
	KindNotFound ErrorKind = "not_found"
	// KindConflict: stale transfer source, duplicate identity, closed room.
	KindConflict ErrorKind = "conflict"
	// KindCapacity: agent already at max concurrent chats.
	KindCapacity ErrorKind = "capacity_exceeded"
	// KindValidation: malformed input.
	KindValidation ErrorKind = "validation_error"
	// KindTransient: cache/store timeout. Safe for the caller to retry.
	KindTransient ErrorKind = "transient"
	// KindFatal: unexpected/unclassified.
	KindFatal ErrorKind = "fatal"
)

// Error is the typed error carried across the core boundary.
type Error struct {
	Kind    ErrorKind
	Message string
	Err     error
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

// E builds a classified error.
func E(kind ErrorKind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap classifies an underlying error.
func Wrap(kind ErrorKind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// KindOf extracts the classification of err, defaulting to KindFatal for
// anything that did not pass through the taxonomy.
func KindOf(err error) ErrorKind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindFatal
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind ErrorKind) bool {
	return err != nil && KindOf(err) == kind
}

// Retryable reports whether the caller may safely retry the operation.
func Retryable(err error) bool {
	return IsKind(err, KindTransient)
}
