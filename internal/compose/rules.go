package compose

import "github.com/roach88/keytrigger/internal/trigger"

// conflicts reports whether a later key b cannot be told apart from a when
// both are pressed together. It is the duplicate test for mode derivation
// and the removal test for setParallelMode.
func conflicts(a, b trigger.Key) bool {
	switch ka := a.(type) {
	case trigger.PhysicalKey:
		kb, ok := b.(trigger.PhysicalKey)
		if !ok || !trigger.IsSameDevice(ka.Device, kb.Device) {
			return false
		}
		if ka.DetectsWithScanCode() && kb.DetectsWithScanCode() {
			return ka.ScanCode.Value == kb.ScanCode.Value
		}
		return ka.KeyCode == kb.KeyCode
	case trigger.LowLevelKey:
		kb, ok := b.(trigger.LowLevelKey)
		if !ok || ka.Device != kb.Device {
			return false
		}
		if ka.DetectsWithScanCode() && kb.DetectsWithScanCode() {
			return ka.ScanCode == kb.ScanCode
		}
		return ka.KeyCode == kb.KeyCode
	case trigger.GestureKey:
		// The sensor reports one swipe at a time.
		_, ok := b.(trigger.GestureKey)
		return ok
	case trigger.AssistantKey:
		// Assistant invocations have no down event to hold.
		_, ok := b.(trigger.AssistantKey)
		return ok
	case trigger.OnScreenKey:
		kb, ok := b.(trigger.OnScreenKey)
		return ok && ka.ButtonID == kb.ButtonID
	default:
		return false
	}
}

// Conflicts reports whether a and b are the same input and so cannot be
// held together in a parallel trigger.
func Conflicts(a, b trigger.Key) bool {
	return conflicts(a, b)
}

func containsConflict(keys []trigger.Key, k trigger.Key) bool {
	for _, existing := range keys {
		if conflicts(existing, k) {
			return true
		}
	}
	return false
}

// purgeFamily drops every key that is not in family.
func purgeFamily(keys []trigger.Key, family trigger.Family) []trigger.Key {
	kept := make([]trigger.Key, 0, len(keys)+1)
	for _, k := range keys {
		if trigger.FamilyOf(k) == family {
			kept = append(kept, k)
		}
	}
	return kept
}

// setAllClickTypes returns keys with every click type replaced.
func setAllClickTypes(keys []trigger.Key, c trigger.ClickType) []trigger.Key {
	out := make([]trigger.Key, len(keys))
	for i, k := range keys {
		out[i] = trigger.WithClickType(k, c)
	}
	return out
}

// normalize re-establishes click-type legality. Assistant and gesture keys
// are always short press; a parallel trigger holding one of them is
// Parallel(ShortPress); every key of a parallel trigger shares its click
// type.
func normalize(t trigger.Trigger) trigger.Trigger {
	keys := make([]trigger.Key, len(t.Keys))
	for i, k := range t.Keys {
		if !trigger.SupportsClickType(k, k.ClickType()) {
			k = trigger.WithClickType(k, trigger.ShortPress)
		}
		keys[i] = k
	}
	t.Keys = keys

	c, parallel := trigger.ParallelClickType(trigger.ModeOf(t))
	if !parallel {
		return t
	}
	if !t.SupportsClickType(c) {
		c = trigger.ShortPress
		t.Mode = trigger.Parallel{ClickType: c}
	}
	t.Keys = setAllClickTypes(t.Keys, c)
	return t
}

// defaultScanCodeDetection decides scanCodeDetectionEnabled for a new key.
//
// A collision is another key of the same family with the same key code and
// a different scan code. A collision on the same device needs scan codes to
// tell the keys apart, so detection stays on. A collision only on other
// devices is already disambiguated by device filtering, so detection is
// turned off. Without collisions detection is on.
func defaultScanCodeDetection(newKey trigger.Key, t trigger.Trigger, siblings []trigger.Trigger) bool {
	sameDevice, otherDevice := false, false

	visit := func(k trigger.Key) {
		switch nk := newKey.(type) {
		case trigger.PhysicalKey:
			other, ok := k.(trigger.PhysicalKey)
			if !ok || !nk.ScanCode.Valid || !other.ScanCode.Valid {
				return
			}
			if other.KeyCode != nk.KeyCode || other.ScanCode.Value == nk.ScanCode.Value {
				return
			}
			if trigger.IsSameDevice(other.Device, nk.Device) {
				sameDevice = true
			} else {
				otherDevice = true
			}
		case trigger.LowLevelKey:
			other, ok := k.(trigger.LowLevelKey)
			if !ok || other.KeyCode != nk.KeyCode || other.ScanCode == nk.ScanCode {
				return
			}
			if other.Device == nk.Device {
				sameDevice = true
			} else {
				otherDevice = true
			}
		}
	}

	for _, k := range t.Keys {
		visit(k)
	}
	for _, s := range siblings {
		for _, k := range s.Keys {
			visit(k)
		}
	}

	if sameDevice {
		return true
	}
	return !otherDevice
}

func isPowerKey(k trigger.Key) bool {
	switch key := k.(type) {
	case trigger.PhysicalKey:
		return trigger.IsPowerKeyCode(key.KeyCode)
	case trigger.LowLevelKey:
		return trigger.IsPowerKeyCode(key.KeyCode) || trigger.IsPowerScanCode(key.ScanCode)
	default:
		return false
	}
}

// appendKey is the shared add path. It assigns the new key's click type and
// uid, appends it and derives the mode:
//
//   - one key is Undefined
//   - a key conflicting with an existing one makes a Sequence
//   - a Sequence stays a Sequence, a Parallel keeps its click type
//   - the second key of an Undefined trigger makes Parallel with the new
//     key's click type
//
// Power buttons prefer a long press, since a short press turns the screen
// off.
func appendKey(t trigger.Trigger, newKey trigger.Key) trigger.Trigger {
	mode := trigger.ModeOf(t)

	click := trigger.ShortPress
	if c, ok := trigger.ParallelClickType(mode); ok {
		click = c
	}
	if !trigger.SupportsClickType(newKey, click) {
		click = trigger.ShortPress
	}
	newKey = trigger.WithClickType(newKey, click)

	duplicate := containsConflict(t.Keys, newKey)
	newKey = trigger.AssignUID(newKey, t.Keys)
	keys := append(t.CloneKeys(), newKey)

	switch {
	case len(keys) <= 1:
		mode = trigger.Undefined{}
	case duplicate:
		mode = trigger.Sequence{}
	case trigger.IsSequence(mode):
		// stays a sequence
	default:
		if _, ok := mode.(trigger.Parallel); !ok {
			mode = trigger.Parallel{ClickType: click}
			keys = setAllClickTypes(keys, click)
		}
	}

	t.Keys = keys
	t.Mode = mode

	if isPowerKey(newKey) && click == trigger.ShortPress {
		t = preferLongPress(t)
	}
	return normalize(t)
}

// preferLongPress makes the last key a long press, promoting a short press
// parallel trigger as a whole when every key allows it.
func preferLongPress(t trigger.Trigger) trigger.Trigger {
	last := len(t.Keys) - 1
	switch m := trigger.ModeOf(t).(type) {
	case trigger.Parallel:
		if m.ClickType == trigger.ShortPress && t.SupportsClickType(trigger.LongPress) {
			t.Mode = trigger.Parallel{ClickType: trigger.LongPress}
			t.Keys = setAllClickTypes(t.Keys, trigger.LongPress)
		}
	default:
		t.Keys[last] = trigger.WithClickType(t.Keys[last], trigger.LongPress)
	}
	return t
}
