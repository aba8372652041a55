package trigger

// IsChangingLongPressDelayAllowed reports whether the long press delay
// option has any effect.
func IsChangingLongPressDelayAllowed(t Trigger) bool {
	return anyKeyClicked(t, LongPress)
}

// IsChangingDoublePressDelayAllowed reports whether the double press delay
// option has any effect.
func IsChangingDoublePressDelayAllowed(t Trigger) bool {
	return anyKeyClicked(t, DoublePress)
}

// IsChangingSequenceTimeoutAllowed reports whether the sequence timeout
// option has any effect.
func IsChangingSequenceTimeoutAllowed(t Trigger) bool {
	return len(t.Keys) > 1 && IsSequence(ModeOf(t))
}

// IsLongPressDoubleVibrationAllowed reports whether every key is long
// pressed together, which is when a second vibration can mark the long
// press.
func IsLongPressDoubleVibrationAllowed(t Trigger) bool {
	if len(t.Keys) == 0 {
		return false
	}
	if _, parallel := ParallelClickType(ModeOf(t)); len(t.Keys) > 1 && !parallel {
		return false
	}
	for _, k := range t.Keys {
		if k.ClickType() != LongPress {
			return false
		}
	}
	return true
}

// IsDetectingWhenScreenOffAllowed reports whether the legacy screen-off
// detector could read every key.
func IsDetectingWhenScreenOffAllowed(t Trigger) bool {
	if len(t.Keys) == 0 {
		return false
	}
	for _, k := range t.Keys {
		pk, ok := k.(PhysicalKey)
		if !ok || !CanDetectWhenScreenOff(pk.KeyCode) {
			return false
		}
	}
	return true
}

func anyKeyClicked(t Trigger, c ClickType) bool {
	for _, k := range t.Keys {
		if k.ClickType() == c {
			return true
		}
	}
	return false
}
