package compiler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/trigger"
)

// Validation error codes (E100-E199)
const (
	// General errors (E100)
	ErrUnsupportedType = "E100" // unsupported value for validation, or undecodable document

	// Trigger structure errors (E101-E109)
	ErrMixedFamilies      = "E101" // low-level and standard keys in one trigger
	ErrDuplicateAssistant = "E102" // more than one assistant key where only one may exist
	ErrIllegalClickType   = "E103" // click type a key cannot honor
	ErrTooManyKeysForMode = "E104" // undefined mode with more than one key
	ErrParallelClickType  = "E105" // key click type differs from the parallel click type
	ErrParallelConflict   = "E106" // the same input twice in a parallel trigger
	ErrDuplicateUID       = "E107" // missing or repeated key uid
	ErrInvalidDuration    = "E108" // negative option duration
	ErrTooFewKeysForMode  = "E109" // parallel or sequence mode without enough keys

	// Document errors (E120-E129)
	ErrSchema          = "E120" // document does not match the trigger schema
	ErrDuplicateKeyMap = "E121" // two key maps with the same name
	ErrUnknownFormat   = "E122" // unsupported document format
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate checks a trigger or compiled key map against the structural
// rules every trigger produced by package compose satisfies.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch x := v.(type) {
	case trigger.Trigger:
		return validateTrigger(x)
	case *trigger.Trigger:
		return validateTrigger(*x)
	case KeyMapSpec:
		return validateKeyMap(&x)
	case *KeyMapSpec:
		return validateKeyMap(x)
	case trigger.Document:
		t, err := x.Trigger()
		if err != nil {
			return []ValidationError{{Field: "document", Message: err.Error(), Code: ErrUnsupportedType}}
		}
		return validateTrigger(t)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported type for validation: %T", v),
			Code:    ErrUnsupportedType,
		}}
	}
}

// validateKeyMap validates the trigger and attaches source lines to
// per-key errors.
func validateKeyMap(spec *KeyMapSpec) []ValidationError {
	errs := validateTrigger(spec.Trigger)
	for i := range errs {
		if idx, ok := keyIndex(errs[i].Field); ok && idx < len(spec.KeyPos) && spec.KeyPos[idx].IsValid() {
			errs[i].Line = spec.KeyPos[idx].Line()
		} else if spec.Pos.IsValid() {
			errs[i].Line = spec.Pos.Line()
		}
	}
	return errs
}

func validateTrigger(t trigger.Trigger) []ValidationError {
	var errs []ValidationError
	mode := trigger.ModeOf(t)
	n := len(t.Keys)

	// E101: family homogeneity
	lowLevel := t.LowLevelKeys()
	if lowLevel > 0 && lowLevel < n {
		errs = append(errs, ValidationError{
			Field:   "keys",
			Message: fmt.Sprintf("%d low-level and %d standard keys cannot share a trigger", lowLevel, n-lowLevel),
			Code:    ErrMixedFamilies,
		})
	}

	// E104, E109: key count for mode
	switch mode.(type) {
	case trigger.Undefined:
		if n > 1 {
			errs = append(errs, ValidationError{
				Field:   "mode",
				Message: fmt.Sprintf("undefined mode holds %d keys, at most 1 allowed", n),
				Code:    ErrTooManyKeysForMode,
			})
		}
	case trigger.Parallel:
		if n < 2 {
			errs = append(errs, ValidationError{
				Field:   "mode",
				Message: fmt.Sprintf("parallel mode holds %d keys, at least 2 required", n),
				Code:    ErrTooFewKeysForMode,
			})
		}
	case trigger.Sequence:
		if n < 2 {
			errs = append(errs, ValidationError{
				Field:   "mode",
				Message: fmt.Sprintf("sequence mode holds %d keys, at least 2 required", n),
				Code:    ErrTooFewKeysForMode,
			})
		}
	}

	// E107: uids
	seen := make(map[string]int, n)
	for i, k := range t.Keys {
		uid := k.KeyUID()
		if uid == "" {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("keys[%d].uid", i),
				Message: "key uid is required",
				Code:    ErrDuplicateUID,
			})
			continue
		}
		if first, dup := seen[uid]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("keys[%d].uid", i),
				Message: fmt.Sprintf("uid %q already used by keys[%d]", uid, first),
				Code:    ErrDuplicateUID,
			})
			continue
		}
		seen[uid] = i
	}

	// E103: per-key click legality
	for i, k := range t.Keys {
		if !trigger.SupportsClickType(k, k.ClickType()) {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("keys[%d].click_type", i),
				Message: fmt.Sprintf("%s key cannot be a %s", keyKind(k), k.ClickType()),
				Code:    ErrIllegalClickType,
			})
		}
	}

	// E102: assistants
	assistants := make(map[trigger.AssistantType]int)
	for i, k := range t.Keys {
		a, ok := k.(trigger.AssistantKey)
		if !ok {
			continue
		}
		if first, dup := assistants[a.Assistant]; dup {
			errs = append(errs, ValidationError{
				Field:   fmt.Sprintf("keys[%d]", i),
				Message: fmt.Sprintf("assistant %q already used by keys[%d]", a.Assistant, first),
				Code:    ErrDuplicateAssistant,
			})
			continue
		}
		assistants[a.Assistant] = i
	}

	if p, ok := mode.(trigger.Parallel); ok {
		if count := t.AssistantKeys(); count > 1 {
			errs = append(errs, ValidationError{
				Field:   "keys",
				Message: fmt.Sprintf("parallel trigger holds %d assistant keys, at most 1 allowed", count),
				Code:    ErrDuplicateAssistant,
			})
		}
		for i, k := range t.Keys {
			// E105: shared click type
			if k.ClickType() != p.ClickType {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("keys[%d].click_type", i),
					Message: fmt.Sprintf("key is a %s in a parallel %s trigger", k.ClickType(), p.ClickType),
					Code:    ErrParallelClickType,
				})
			}
			// E106: duplicates
			for j := 0; j < i; j++ {
				if compose.Conflicts(t.Keys[j], k) {
					errs = append(errs, ValidationError{
						Field:   fmt.Sprintf("keys[%d]", i),
						Message: fmt.Sprintf("same input as keys[%d], cannot be pressed together", j),
						Code:    ErrParallelConflict,
					})
					break
				}
			}
		}
	}

	// E108: durations
	for _, d := range []struct {
		field string
		value int
	}{
		{"options.long_press_delay", t.Options.LongPressDelay},
		{"options.double_press_delay", t.Options.DoublePressDelay},
		{"options.vibrate_duration", t.Options.VibrateDuration},
		{"options.sequence_timeout", t.Options.SequenceTimeout},
	} {
		if d.value < 0 {
			errs = append(errs, ValidationError{
				Field:   d.field,
				Message: fmt.Sprintf("duration %dms is negative", d.value),
				Code:    ErrInvalidDuration,
			})
		}
	}

	return errs
}

func keyKind(k trigger.Key) string {
	switch k.(type) {
	case trigger.PhysicalKey:
		return trigger.KeyTypePhysical
	case trigger.LowLevelKey:
		return trigger.KeyTypeLowLevel
	case trigger.GestureKey:
		return trigger.KeyTypeGesture
	case trigger.AssistantKey:
		return trigger.KeyTypeAssistant
	case trigger.OnScreenKey:
		return trigger.KeyTypeOnScreen
	default:
		return "unknown"
	}
}

// keyIndex extracts i from a field starting with "keys[i]".
func keyIndex(field string) (int, bool) {
	rest, ok := strings.CutPrefix(field, "keys[")
	if !ok {
		return 0, false
	}
	end := strings.IndexByte(rest, ']')
	if end < 0 {
		return 0, false
	}
	i, err := strconv.Atoi(rest[:end])
	return i, err == nil
}
