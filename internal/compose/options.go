package compose

import "github.com/roach88/keytrigger/internal/trigger"

// SetVibrate turns vibration on activation on or off.
func SetVibrate(t trigger.Trigger, on bool) trigger.Trigger {
	t.Options.Vibrate = on
	return t
}

// SetTriggerFromOtherApps allows other apps to fire the mapping.
func SetTriggerFromOtherApps(t trigger.Trigger, on bool) trigger.Trigger {
	t.Options.TriggerFromOtherApps = on
	return t
}

// SetShowToast shows a toast when the trigger fires.
func SetShowToast(t trigger.Trigger, on bool) trigger.Trigger {
	t.Options.ShowToast = on
	return t
}

// SetLongPressDelay sets how long keys must be held, in milliseconds. It
// only applies when some key is long pressed.
func SetLongPressDelay(t trigger.Trigger, ms int) (trigger.Trigger, error) {
	const op = "set_long_press_delay"
	if !trigger.IsChangingLongPressDelayAllowed(t) {
		return t, reject(op, RejectNotApplicable, "no key is long pressed")
	}
	v, err := duration(op, ms, trigger.DefaultLongPressDelay)
	if err != nil {
		return t, err
	}
	t.Options.LongPressDelay = v
	return t, nil
}

// SetDoublePressDelay sets the window between the two presses, in
// milliseconds. It only applies when some key is double pressed.
func SetDoublePressDelay(t trigger.Trigger, ms int) (trigger.Trigger, error) {
	const op = "set_double_press_delay"
	if !trigger.IsChangingDoublePressDelayAllowed(t) {
		return t, reject(op, RejectNotApplicable, "no key is double pressed")
	}
	v, err := duration(op, ms, trigger.DefaultDoublePressDelay)
	if err != nil {
		return t, err
	}
	t.Options.DoublePressDelay = v
	return t, nil
}

// SetVibrateDuration sets the vibration length in milliseconds.
func SetVibrateDuration(t trigger.Trigger, ms int) (trigger.Trigger, error) {
	v, err := duration("set_vibrate_duration", ms, trigger.DefaultVibrateDuration)
	if err != nil {
		return t, err
	}
	t.Options.VibrateDuration = v
	return t, nil
}

// SetSequenceTimeout sets how long a sequence may take to complete, in
// milliseconds. It only applies to sequences of more than one key.
func SetSequenceTimeout(t trigger.Trigger, ms int) (trigger.Trigger, error) {
	const op = "set_sequence_timeout"
	if !trigger.IsChangingSequenceTimeoutAllowed(t) {
		return t, reject(op, RejectNotApplicable, "trigger is not a sequence")
	}
	v, err := duration(op, ms, trigger.DefaultSequenceTimeout)
	if err != nil {
		return t, err
	}
	t.Options.SequenceTimeout = v
	return t, nil
}

// SetLongPressDoubleVibration vibrates a second time once the long press
// registers. Enabling it needs every key to be long pressed together.
func SetLongPressDoubleVibration(t trigger.Trigger, on bool) (trigger.Trigger, error) {
	if on && !trigger.IsLongPressDoubleVibrationAllowed(t) {
		return t, reject("set_long_press_double_vibration", RejectNotApplicable,
			"every key must be long pressed together")
	}
	t.Options.LongPressDoubleVibration = on
	return t, nil
}

// SetLegacyScreenOff sets the legacy screen-off flag. Enabling it needs
// every key to be a physical key the screen-off detector can read.
// Disabling is always allowed.
func SetLegacyScreenOff(t trigger.Trigger, on bool) (trigger.Trigger, error) {
	if on && !trigger.IsDetectingWhenScreenOffAllowed(t) {
		return t, reject("set_legacy_screen_off", RejectNotApplicable,
			"some key cannot be detected while the screen is off")
	}
	t.LegacyScreenOff = on
	return t, nil
}

// duration validates ms and maps the default to the stored zero value.
func duration(op string, ms, def int) (int, error) {
	if ms <= 0 {
		return 0, reject(op, RejectInvalidValue, "duration must be positive, got %d", ms)
	}
	if ms == def {
		return 0, nil
	}
	return ms, nil
}
