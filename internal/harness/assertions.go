package harness

import (
	"fmt"
	"strings"

	"github.com/roach88/keytrigger/internal/classify"
	"github.com/roach88/keytrigger/internal/trigger"
)

// AssertionError is returned when an assertion fails.
// It includes the final trigger to help debug the failure.
type AssertionError struct {
	Type     string   // Assertion type for categorization
	Expected string   // Human-readable expected outcome
	Actual   string   // Human-readable actual outcome
	Mode     string   // Final mode
	Keys     []string // Final keys, one line each
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	fmt.Fprintf(&buf, "\nFinal trigger: %s\n", e.Mode)
	for i, k := range e.Keys {
		fmt.Fprintf(&buf, "  [%d] %s\n", i, k)
	}
	return buf.String()
}

// EvaluateAssertions checks every assertion against the result and returns
// the failure messages. All assertions are evaluated.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var msgs []string
	for _, a := range assertions {
		if err := evaluateAssertion(result, a); err != nil {
			msgs = append(msgs, err.Error())
		}
	}
	return msgs
}

func evaluateAssertion(result *Result, a Assertion) error {
	t := result.Final
	fail := func(expected, actual string) error {
		return &AssertionError{
			Type:     a.Type,
			Expected: expected,
			Actual:   actual,
			Mode:     trigger.ModeOf(t).String(),
			Keys:     DescribeKeys(t),
		}
	}

	switch a.Type {
	case AssertMode:
		if got := trigger.ModeOf(t).String(); got != a.Mode {
			return fail("mode "+a.Mode, "mode "+got)
		}

	case AssertKeyCount:
		if len(t.Keys) != a.Count {
			return fail(fmt.Sprintf("%d keys", a.Count), fmt.Sprintf("%d keys", len(t.Keys)))
		}

	case AssertKey:
		if a.Index < 0 || a.Index >= len(t.Keys) {
			return fail(fmt.Sprintf("key at index %d", a.Index), fmt.Sprintf("%d keys", len(t.Keys)))
		}
		fields := keyFields(t.Keys[a.Index])
		for name, want := range a.Expect {
			got, ok := fields[name]
			if !ok {
				return fail(fmt.Sprintf("key[%d].%s = %v", a.Index, name, want), "no such field")
			}
			if !matchValue(name, got, want) {
				return fail(fmt.Sprintf("key[%d].%s = %v", a.Index, name, want), fmt.Sprintf("%v", got))
			}
		}

	case AssertKeyError:
		got, ok := keyError(result.KeyErrors, a.Index)
		if !ok {
			return fail(fmt.Sprintf("key[%d] error %s", a.Index, a.Error), "no error")
		}
		if got != a.Error {
			return fail(fmt.Sprintf("key[%d] error %s", a.Index, a.Error), string(got))
		}

	case AssertNoErrors:
		if len(result.KeyErrors) > 0 {
			var parts []string
			for _, ke := range result.KeyErrors {
				parts = append(parts, fmt.Sprintf("key[%d] %s", ke.Index, ke.Error))
			}
			return fail("no key errors", strings.Join(parts, ", "))
		}

	case AssertOption:
		got, ok := optionValue(t, a.Option)
		if !ok {
			return fail("option "+a.Option, "unknown option")
		}
		if fmt.Sprint(got) != fmt.Sprint(a.Value) {
			return fail(fmt.Sprintf("%s = %v", a.Option, a.Value), fmt.Sprintf("%v", got))
		}

	default:
		return fmt.Errorf("unknown assertion type: %s", a.Type)
	}
	return nil
}

func keyError(errs []classify.KeyError, index int) (classify.TriggerError, bool) {
	for _, ke := range errs {
		if ke.Index == index {
			return ke.Error, true
		}
	}
	return "", false
}

// keyFields exposes the assertable fields of a key.
func keyFields(k trigger.Key) map[string]any {
	fields := map[string]any{
		"click_type": k.ClickType().String(),
	}
	switch key := k.(type) {
	case trigger.PhysicalKey:
		fields["type"] = trigger.KeyTypePhysical
		fields["key_code"] = key.KeyCode
		fields["scan_code_detection"] = key.ScanCodeDetection
		fields["consume_event"] = key.ConsumeEvent
	case trigger.LowLevelKey:
		fields["type"] = trigger.KeyTypeLowLevel
		fields["key_code"] = key.KeyCode
		fields["scan_code_detection"] = key.ScanCodeDetection
	case trigger.GestureKey:
		fields["type"] = trigger.KeyTypeGesture
	case trigger.AssistantKey:
		fields["type"] = trigger.KeyTypeAssistant
	case trigger.OnScreenKey:
		fields["type"] = trigger.KeyTypeOnScreen
	}
	return fields
}

// matchValue compares an actual field with a YAML value. Key codes may be
// given by name.
func matchValue(name string, got, want any) bool {
	if name == "key_code" {
		if s, ok := want.(string); ok {
			code, err := trigger.ParseKeyCode(s)
			return err == nil && code == got
		}
	}
	return fmt.Sprint(got) == fmt.Sprint(want)
}

func optionValue(t trigger.Trigger, name string) (any, bool) {
	o := t.Options
	switch name {
	case "vibrate":
		return o.Vibrate, true
	case "long_press_double_vibration":
		return o.LongPressDoubleVibration, true
	case "long_press_delay":
		return o.LongPressDelay, true
	case "double_press_delay":
		return o.DoublePressDelay, true
	case "vibrate_duration":
		return o.VibrateDuration, true
	case "sequence_timeout":
		return o.SequenceTimeout, true
	case "trigger_from_other_apps":
		return o.TriggerFromOtherApps, true
	case "show_toast":
		return o.ShowToast, true
	case "legacy_screen_off":
		return t.LegacyScreenOff, true
	default:
		return nil, false
	}
}
