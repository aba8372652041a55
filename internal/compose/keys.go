package compose

import "github.com/roach88/keytrigger/internal/trigger"

// RemoveKey drops the key with the given uid. One key or none left gives
// Undefined.
func RemoveKey(t trigger.Trigger, uid string) (trigger.Trigger, error) {
	_, idx, ok := t.Find(uid)
	if !ok {
		return t, rejectKey("remove_key", RejectKeyNotFound, uid, "no key with this uid")
	}

	keys := make([]trigger.Key, 0, len(t.Keys)-1)
	keys = append(keys, t.Keys[:idx]...)
	keys = append(keys, t.Keys[idx+1:]...)

	out := t
	out.Keys = keys
	if len(keys) <= 1 {
		out.Mode = trigger.Undefined{}
	}
	return out, nil
}

// MoveKey moves the key at index from to index to, shifting the keys in
// between.
func MoveKey(t trigger.Trigger, from, to int) (trigger.Trigger, error) {
	n := len(t.Keys)
	if from < 0 || from >= n || to < 0 || to >= n {
		return t, reject("move_key", RejectIndexOutOfRange,
			"cannot move %d to %d in a trigger of %d keys", from, to, n)
	}
	if from == to {
		return t, nil
	}

	keys := t.CloneKeys()
	k := keys[from]
	if from < to {
		copy(keys[from:to], keys[from+1:to+1])
	} else {
		copy(keys[to+1:from+1], keys[to:from])
	}
	keys[to] = k

	out := t
	out.Keys = keys
	return out, nil
}

// SetKeyClickType sets the click type of one key. Keys of a parallel
// trigger share one click type, so this only applies to sequences and
// single keys; use SetShortPress, SetLongPress or SetDoublePress there.
func SetKeyClickType(t trigger.Trigger, uid string, c trigger.ClickType) (trigger.Trigger, error) {
	const op = "set_key_click_type"

	k, idx, ok := t.Find(uid)
	if !ok {
		return t, rejectKey(op, RejectKeyNotFound, uid, "no key with this uid")
	}
	if _, parallel := trigger.ModeOf(t).(trigger.Parallel); parallel {
		return t, rejectKey(op, RejectNotApplicable, uid,
			"keys of a parallel trigger share one click type")
	}
	if !trigger.SupportsClickType(k, c) {
		return t, rejectKey(op, RejectUnsupportedClickType, uid,
			"%T cannot be actuated with %s", k, c)
	}

	return replaceKey(t, idx, trigger.WithClickType(k, c)), nil
}

// SetKeyDevice changes the device a physical key is read from.
func SetKeyDevice(t trigger.Trigger, uid string, device trigger.Device) (trigger.Trigger, error) {
	const op = "set_key_device"

	k, idx, ok := t.Find(uid)
	if !ok {
		return t, rejectKey(op, RejectKeyNotFound, uid, "no key with this uid")
	}
	pk, ok := k.(trigger.PhysicalKey)
	if !ok {
		return t, rejectKey(op, RejectWrongKeyKind, uid, "only physical keys have a device")
	}
	if device == nil {
		device = trigger.AnyDevice{}
	}
	pk.Device = device

	return reconcileParallel(replaceKey(t, idx, pk)), nil
}

// SetConsumeEvent controls whether the key's native effect is suppressed.
func SetConsumeEvent(t trigger.Trigger, uid string, consume bool) (trigger.Trigger, error) {
	const op = "set_consume_event"

	k, idx, ok := t.Find(uid)
	if !ok {
		return t, rejectKey(op, RejectKeyNotFound, uid, "no key with this uid")
	}
	pk, ok := k.(trigger.PhysicalKey)
	if !ok {
		return t, rejectKey(op, RejectWrongKeyKind, uid, "only physical keys consume events")
	}
	pk.ConsumeEvent = consume

	return replaceKey(t, idx, pk), nil
}

// SetAssistantType changes which assistant an assistant key listens for.
func SetAssistantType(t trigger.Trigger, uid string, a trigger.AssistantType) (trigger.Trigger, error) {
	const op = "set_assistant_type"

	if !a.Valid() {
		return t, rejectKey(op, RejectInvalidValue, uid, "unknown assistant type %q", a)
	}
	k, idx, ok := t.Find(uid)
	if !ok {
		return t, rejectKey(op, RejectKeyNotFound, uid, "no key with this uid")
	}
	ak, ok := k.(trigger.AssistantKey)
	if !ok {
		return t, rejectKey(op, RejectWrongKeyKind, uid, "not an assistant key")
	}
	for i, other := range t.Keys {
		if oa, isAssistant := other.(trigger.AssistantKey); isAssistant && i != idx && oa.Assistant == a {
			return t, rejectKey(op, RejectDuplicateAssistant, uid,
				"trigger already has a %s assistant key", a)
		}
	}
	ak.Assistant = a

	return replaceKey(t, idx, ak), nil
}

// SetGestureType changes the swipe direction of a gesture key.
func SetGestureType(t trigger.Trigger, uid string, g trigger.GestureType) (trigger.Trigger, error) {
	const op = "set_gesture_type"

	if !g.Valid() {
		return t, rejectKey(op, RejectInvalidValue, uid, "unknown gesture type %q", g)
	}
	k, idx, ok := t.Find(uid)
	if !ok {
		return t, rejectKey(op, RejectKeyNotFound, uid, "no key with this uid")
	}
	gk, ok := k.(trigger.GestureKey)
	if !ok {
		return t, rejectKey(op, RejectWrongKeyKind, uid, "not a gesture key")
	}
	gk.Gesture = g

	return replaceKey(t, idx, gk), nil
}

// SetScanCodeDetection toggles scan code matching for a physical or
// low-level key. The key needs both a known key code and a scan code.
//
// Two keys that only differ by scan code collapse into one identity when
// detection is turned off; a parallel trigger holding both becomes a
// sequence.
func SetScanCodeDetection(t trigger.Trigger, uid string, enabled bool) (trigger.Trigger, error) {
	const op = "set_scan_code_detection"

	k, idx, ok := t.Find(uid)
	if !ok {
		return t, rejectKey(op, RejectKeyNotFound, uid, "no key with this uid")
	}

	var updated trigger.Key
	switch key := k.(type) {
	case trigger.PhysicalKey:
		if !key.ScanCodeConfigurable() {
			return t, rejectKey(op, RejectScanCodeNotConfigurable, uid,
				"key needs a key code and a scan code")
		}
		key.ScanCodeDetection = enabled
		updated = key
	case trigger.LowLevelKey:
		if !key.ScanCodeConfigurable() {
			return t, rejectKey(op, RejectScanCodeNotConfigurable, uid, "key has no key code")
		}
		key.ScanCodeDetection = enabled
		updated = key
	default:
		return t, rejectKey(op, RejectWrongKeyKind, uid, "%T has no scan code", k)
	}

	return reconcileParallel(replaceKey(t, idx, updated)), nil
}

func replaceKey(t trigger.Trigger, idx int, k trigger.Key) trigger.Trigger {
	keys := t.CloneKeys()
	keys[idx] = k
	t.Keys = keys
	return t
}

// reconcileParallel turns a parallel trigger into a sequence once two of its
// keys can no longer be told apart.
func reconcileParallel(t trigger.Trigger) trigger.Trigger {
	if _, ok := trigger.ModeOf(t).(trigger.Parallel); !ok {
		return t
	}
	for i := 1; i < len(t.Keys); i++ {
		if containsConflict(t.Keys[:i], t.Keys[i]) {
			t.Mode = trigger.Sequence{}
			return t
		}
	}
	return t
}
