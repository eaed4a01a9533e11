// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package storage

// =============================================================================
// ERRORS
// =============================================================================

// ErrConversationNotFound is returned when a conversation id is unknown.
// Use errors.Is(err, ErrConversationNotFound) to check for this error.
var ErrConversationNotFound = &ConversationError{Message: "conversation not found"}

// ErrCorruptHistory is returned when the history file exists but cannot be
// decoded. The concrete error carries the path and the decoder failure.
var ErrCorruptHistory = &ConversationError{Message: "corrupt history file"}

// ConversationError represents a storage error.
// It implements the error interface and can be compared using errors.Is.
type ConversationError struct {
	Message string
	ID      string
	Path    string
	Cause   error
}

// Error implements the error interface.
func (e *ConversationError) Error() string {
	msg := e.Message
	if e.ID != "" {
		msg += " (" + e.ID + ")"
	}
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause, if any.
func (e *ConversationError) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is support for comparing storage errors.
func (e *ConversationError) Is(target error) bool {
	t, ok := target.(*ConversationError)
	if !ok {
		return false
	}
	return e.Message == t.Message
}

func notFound(id string) error {
	return &ConversationError{Message: ErrConversationNotFound.Message, ID: id}
}
