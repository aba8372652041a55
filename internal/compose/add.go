package compose

import "github.com/roach88/keytrigger/internal/trigger"

// PhysicalKeyParams describes a key captured through the input-method or
// accessibility layer.
type PhysicalKeyParams struct {
	KeyCode             int
	ScanCode            trigger.ScanCode
	Device              trigger.Device
	RequiresInputMethod bool
}

// AddPhysicalKey appends a physical key, discarding any low-level keys
// first.
//
// Modifier keys keep their native effect (consumeEvent false). Scan code
// detection defaults on unless the same key code with a different scan
// code is only configured on other devices, in t or in siblings.
func AddPhysicalKey(t trigger.Trigger, p PhysicalKeyParams, siblings ...trigger.Trigger) trigger.Trigger {
	device := p.Device
	if device == nil {
		device = trigger.AnyDevice{}
	}

	t.Keys = purgeFamily(t.Keys, trigger.FamilyStandard)

	newKey := trigger.PhysicalKey{
		KeyCode:             p.KeyCode,
		ScanCode:            p.ScanCode,
		Device:              device,
		ConsumeEvent:        !trigger.IsModifierKeyCode(p.KeyCode),
		RequiresInputMethod: p.RequiresInputMethod,
	}
	newKey.ScanCodeDetection = defaultScanCodeDetection(newKey, t, siblings)

	return appendKey(t, newKey)
}

// LowLevelKeyParams describes a key captured through the elevated input
// backend.
type LowLevelKeyParams struct {
	KeyCode  int
	ScanCode int
	Device   trigger.LowLevelDevice
}

// AddLowLevelKey appends a low-level key, discarding every non-low-level
// key first. Device comparisons are exact.
func AddLowLevelKey(t trigger.Trigger, p LowLevelKeyParams, siblings ...trigger.Trigger) trigger.Trigger {
	t.Keys = purgeFamily(t.Keys, trigger.FamilyLowLevel)

	newKey := trigger.LowLevelKey{
		KeyCode:  p.KeyCode,
		ScanCode: p.ScanCode,
		Device:   p.Device,
	}
	newKey.ScanCodeDetection = defaultScanCodeDetection(newKey, t, siblings)

	return appendKey(t, newKey)
}

// AddGestureKey appends a fingerprint gesture key. A trigger that already
// holds a gesture becomes a sequence, since the sensor reports one swipe at
// a time.
func AddGestureKey(t trigger.Trigger, gesture trigger.GestureType) trigger.Trigger {
	t.Keys = purgeFamily(t.Keys, trigger.FamilyStandard)
	return appendKey(t, trigger.GestureKey{Gesture: gesture})
}

// AddAssistantKey appends an assistant key.
//
// An assistant key of the same type is never added twice; that edit is
// rejected. A different type next to an existing one makes the trigger a
// sequence until SetParallelMode collapses them.
func AddAssistantKey(t trigger.Trigger, assistant trigger.AssistantType) (trigger.Trigger, error) {
	for _, k := range t.Keys {
		if ak, ok := k.(trigger.AssistantKey); ok && ak.Assistant == assistant {
			return t, rejectKey("add_assistant_key", RejectDuplicateAssistant, ak.UID,
				"trigger already has a %s assistant key", assistant)
		}
	}

	out := t
	out.Keys = purgeFamily(t.Keys, trigger.FamilyStandard)
	return appendKey(out, trigger.AssistantKey{Assistant: assistant}), nil
}

// AddOnScreenKey appends an on-screen button key. button may be nil when
// the button is not resolved.
func AddOnScreenKey(t trigger.Trigger, buttonID string, button *trigger.ButtonRef) trigger.Trigger {
	t.Keys = purgeFamily(t.Keys, trigger.FamilyStandard)
	return appendKey(t, trigger.OnScreenKey{ButtonID: buttonID, Button: button})
}
