package compose

import (
	"errors"
	"fmt"
)

// ErrRejected matches every *RejectedError via errors.Is.
var ErrRejected = errors.New("edit rejected")

// RejectionCode categorizes why an edit was refused.
type RejectionCode string

const (
	// RejectUnsupportedClickType: a key cannot be actuated with the
	// requested click type.
	RejectUnsupportedClickType RejectionCode = "UNSUPPORTED_CLICK_TYPE"

	// RejectEmptyTrigger: the edit needs at least one key.
	RejectEmptyTrigger RejectionCode = "EMPTY_TRIGGER"

	// RejectTooManyKeys: the edit needs one key or none.
	RejectTooManyKeys RejectionCode = "TOO_MANY_KEYS"

	// RejectKeyNotFound: no key has the given uid.
	RejectKeyNotFound RejectionCode = "KEY_NOT_FOUND"

	// RejectIndexOutOfRange: a key index is outside the trigger.
	RejectIndexOutOfRange RejectionCode = "INDEX_OUT_OF_RANGE"

	// RejectWrongKeyKind: the edit does not apply to this key variant.
	RejectWrongKeyKind RejectionCode = "WRONG_KEY_KIND"

	// RejectDuplicateAssistant: an assistant key of the same type exists.
	RejectDuplicateAssistant RejectionCode = "DUPLICATE_ASSISTANT"

	// RejectScanCodeNotConfigurable: the key has no scan code or no key
	// code to fall back to.
	RejectScanCodeNotConfigurable RejectionCode = "SCAN_CODE_NOT_CONFIGURABLE"

	// RejectNotApplicable: the option has no effect on this trigger.
	RejectNotApplicable RejectionCode = "NOT_APPLICABLE"

	// RejectInvalidValue: a parameter is out of range.
	RejectInvalidValue RejectionCode = "INVALID_VALUE"
)

// RejectedError reports an edit that was refused. The trigger returned
// alongside it is the unchanged input.
type RejectedError struct {
	// Op names the edit, e.g. "set_long_press".
	Op string

	// Code identifies the reason category.
	Code RejectionCode

	// Message is a human-readable description.
	Message string

	// KeyUID identifies the addressed key, if any.
	KeyUID string
}

// Error implements the error interface.
func (e *RejectedError) Error() string {
	if e.KeyUID != "" {
		return fmt.Sprintf("%s: %s: %s (key=%s)", e.Op, e.Code, e.Message, e.KeyUID)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Message)
}

// Is makes errors.Is(err, ErrRejected) true for any RejectedError.
func (e *RejectedError) Is(target error) bool {
	return target == ErrRejected
}

// IsRejected reports whether err is a rejection, and returns it.
// Uses errors.As to handle wrapped errors.
func IsRejected(err error) (*RejectedError, bool) {
	var re *RejectedError
	if errors.As(err, &re) {
		return re, true
	}
	return nil, false
}

func reject(op string, code RejectionCode, format string, args ...any) *RejectedError {
	return &RejectedError{Op: op, Code: code, Message: fmt.Sprintf(format, args...)}
}

func rejectKey(op string, code RejectionCode, uid string, format string, args ...any) *RejectedError {
	return &RejectedError{Op: op, Code: code, KeyUID: uid, Message: fmt.Sprintf(format, args...)}
}
