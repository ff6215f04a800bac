package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind represents the category of error.
type Kind string

const (
	// KindInvalidKey is a missing or empty room key.
	KindInvalidKey Kind = "invalid_key"
	// KindInvalidMessage is a malformed or rejected inbound payload.
	KindInvalidMessage Kind = "invalid_message"
	// KindPersistence is a message log read or write failure.
	KindPersistence Kind = "persistence"
	// KindTransport is a failed send to a single session.
	KindTransport Kind = "transport"
	// KindRoomFull is a connect attempt over the room's session limit.
	KindRoomFull Kind = "room_full"
	// KindGraphNotFound is a room key with no matching graph.
	KindGraphNotFound Kind = "graph_not_found"
	// KindUnavailable is a room or collaborator that stopped serving.
	KindUnavailable Kind = "unavailable"
	// KindInternal is anything unclassified.
	KindInternal Kind = "internal"
)

// Error is the base error type carried across package boundaries.
type Error struct {
	Kind    Kind
	Message string
	Err     error // Wrapped error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Kind, e.Message)
}

// Unwrap returns the wrapped error for error unwrapping.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches another *Error of the same kind and message, so package-level
// sentinels work with errors.Is even after wrapping.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Kind == t.Kind && e.Message == t.Message
}

// New creates an error of the given kind.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

var (
	ErrInvalidKey         = New(KindInvalidKey, "room key is required", nil)
	ErrIdentityRequired   = New(KindInvalidMessage, "identity is required", nil)
	ErrContentRequired    = New(KindInvalidMessage, "message content is required", nil)
	ErrContentTooLong     = New(KindInvalidMessage, "message content too long", nil)
	ErrInvalidFormat      = New(KindInvalidMessage, "invalid message format", nil)
	ErrRoomFull           = New(KindRoomFull, "room is full", nil)
	ErrRoomClosed         = New(KindUnavailable, "room is closed", nil)
	ErrSessionUnavailable = New(KindTransport, "session is not accepting messages", nil)
	ErrGraphNotFound      = New(KindGraphNotFound, "graph not found", nil)
)

// NewPersistence wraps a storage failure.
func NewPersistence(op string, err error) *Error {
	return New(KindPersistence, op, err)
}

// NewTransport wraps a send failure for one session.
func NewTransport(sessionID string, err error) *Error {
	return New(KindTransport, fmt.Sprintf("send to session %s failed", sessionID), err)
}

// KindOf returns the kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// MessageOf returns the client-facing message of the first *Error in err's
// chain, falling back to err.Error().
func MessageOf(err error) string {
	var e *Error
	if stderrors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
