package engine

import (
	"errors"
	"fmt"
)

// EditorError reports an edit the editor could not carry out. Rejections
// by the composition rules are returned as compose.RejectedError instead.
type EditorError struct {
	// Code identifies the error category.
	Code EditorErrorCode

	// Message is a human-readable description.
	Message string

	// KeyMapID identifies the affected key map, if any.
	KeyMapID string

	// Revision is the revision involved, for replay errors.
	Revision int64

	// Err is the underlying cause.
	Err error
}

// EditorErrorCode categorizes editor errors.
type EditorErrorCode string

const (
	// ErrCodeEditorStopped means the editor no longer accepts edits.
	ErrCodeEditorStopped EditorErrorCode = "EDITOR_STOPPED"

	// ErrCodeKeyMapNotFound means the edited key map is not in the library.
	ErrCodeKeyMapNotFound EditorErrorCode = "KEYMAP_NOT_FOUND"

	// ErrCodeLoadFailed means the key map or its siblings could not be read.
	ErrCodeLoadFailed EditorErrorCode = "LOAD_FAILED"

	// ErrCodePersistFailed means the edited key map could not be stored.
	ErrCodePersistFailed EditorErrorCode = "PERSIST_FAILED"

	// ErrCodeReplayDiverged means a replayed edit produced a different hash
	// than the one recorded.
	ErrCodeReplayDiverged EditorErrorCode = "REPLAY_DIVERGED"
)

// Error implements the error interface.
func (e *EditorError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.KeyMapID != "" {
		msg = fmt.Sprintf("%s (keymap=%s)", msg, e.KeyMapID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *EditorError) Unwrap() error {
	return e.Err
}

// IsEditorError reports whether err wraps an EditorError with the given
// code.
func IsEditorError(err error, code EditorErrorCode) bool {
	var ee *EditorError
	if errors.As(err, &ee) {
		return ee.Code == code
	}
	return false
}

func errStopped() *EditorError {
	return &EditorError{Code: ErrCodeEditorStopped, Message: "editor is not accepting edits"}
}
