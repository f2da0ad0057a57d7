package api

import (
	"errors"
	"strings"
)

// Kind classifies a normalized API failure.
type Kind int

const (
	// KindNetwork means no response was received at all.
	KindNetwork Kind = iota
	// KindRejected means the server answered with a non-2xx status.
	KindRejected
	// KindSessionExpired means the server rejected the bearer credential.
	KindSessionExpired
	// KindConflict means the server disagreed about the punch state
	// (already punched in, or not punched in yet).
	KindConflict
)

// Error is the single error type every client operation returns. Message is
// always safe to show to the user.
type Error struct {
	Kind    Kind
	Message string
	Status  int // HTTP status, 0 when no response was received
}

func (e *Error) Error() string { return e.Message }

// IsConflict reports whether err is a punch-state conflict.
func IsConflict(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindConflict
}

// IsSessionExpired reports whether err is an authentication rejection.
func IsSessionExpired(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Kind == KindSessionExpired
}

// conflictMessage recognizes the backend's punch-state conflict wording, for
// servers that report it as a plain 400 instead of 409.
func conflictMessage(msg string) bool {
	m := strings.ToLower(msg)
	return strings.Contains(m, "already punched in") ||
		strings.Contains(m, "already checked in") ||
		strings.Contains(m, "not punched in") ||
		strings.Contains(m, "not checked in")
}
