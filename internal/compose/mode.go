package compose

import "github.com/roach88/keytrigger/internal/trigger"

// SetParallelMode converts t to Parallel(ShortPress).
//
// A parallel trigger is returned as is. Otherwise every key is set to short
// press and any key that cannot be told apart from an earlier key when
// pressed together is dropped: same key (or scan code) on the same device,
// same button, a second gesture, a second assistant key. The first key
// wins. One key or none gives Undefined.
func SetParallelMode(t trigger.Trigger) trigger.Trigger {
	if _, ok := trigger.ModeOf(t).(trigger.Parallel); ok {
		return t
	}
	if len(t.Keys) <= 1 {
		t.Mode = trigger.Undefined{}
		return t
	}

	kept := make([]trigger.Key, 0, len(t.Keys))
	for _, k := range t.Keys {
		if containsConflict(kept, k) {
			continue
		}
		kept = append(kept, trigger.WithClickType(k, trigger.ShortPress))
	}

	t.Keys = kept
	if len(kept) <= 1 {
		t.Mode = trigger.Undefined{}
	} else {
		t.Mode = trigger.Parallel{ClickType: trigger.ShortPress}
	}
	return t
}

// SetSequenceMode converts t to Sequence. Keys keep their click types. One
// key or none gives Undefined.
func SetSequenceMode(t trigger.Trigger) trigger.Trigger {
	if trigger.IsSequence(trigger.ModeOf(t)) {
		return t
	}
	if len(t.Keys) <= 1 {
		t.Mode = trigger.Undefined{}
		return t
	}
	t.Mode = trigger.Sequence{}
	return t
}

// SetUndefinedMode clears the mode. Only a trigger with one key or none can
// be Undefined.
func SetUndefinedMode(t trigger.Trigger) (trigger.Trigger, error) {
	if len(t.Keys) > 1 {
		return t, reject("set_undefined_mode", RejectTooManyKeys,
			"undefined mode needs at most one key, trigger has %d", len(t.Keys))
	}
	t.Mode = trigger.Undefined{}
	return t, nil
}

// SetShortPress makes t a short press parallel trigger. A trigger with one
// key stays Undefined and only the key's click type changes, as for
// SetLongPress and SetDoublePress.
func SetShortPress(t trigger.Trigger) (trigger.Trigger, error) {
	return setParallelClickType("set_short_press", t, trigger.ShortPress)
}

// SetLongPress makes t a long press parallel trigger. Rejected when any key
// is an assistant or gesture key, or when t is empty.
func SetLongPress(t trigger.Trigger) (trigger.Trigger, error) {
	return setParallelClickType("set_long_press", t, trigger.LongPress)
}

// SetDoublePress makes t a double press parallel trigger. Rejected when any
// key is an assistant or gesture key, or when t is empty.
func SetDoublePress(t trigger.Trigger) (trigger.Trigger, error) {
	return setParallelClickType("set_double_press", t, trigger.DoublePress)
}

func setParallelClickType(op string, t trigger.Trigger, c trigger.ClickType) (trigger.Trigger, error) {
	if len(t.Keys) == 0 {
		return t, reject(op, RejectEmptyTrigger, "trigger has no keys")
	}
	for _, k := range t.Keys {
		if !trigger.SupportsClickType(k, c) {
			return t, rejectKey(op, RejectUnsupportedClickType, k.KeyUID(),
				"%T cannot be actuated with %s", k, c)
		}
	}

	out := SetParallelMode(t)
	out.Keys = setAllClickTypes(out.Keys, c)
	if len(out.Keys) <= 1 {
		// a lone key carries the click type itself
		out.Mode = trigger.Undefined{}
	} else {
		out.Mode = trigger.Parallel{ClickType: c}
	}
	return out, nil
}
