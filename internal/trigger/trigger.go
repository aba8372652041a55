package trigger

// Default timings in milliseconds. An Options field holding 0 uses these.
const (
	DefaultLongPressDelay   = 500
	DefaultDoublePressDelay = 300
	DefaultVibrateDuration  = 200
	DefaultSequenceTimeout  = 1000
)

// Trigger is an ordered set of keys that, when satisfied, activates a key
// mapping.
type Trigger struct {
	Keys []Key
	Mode Mode

	// LegacyScreenOff marks triggers created with the old root-based
	// screen-off detector.
	LegacyScreenOff bool

	Options Options
}

// Options are per-trigger behaviour settings. Zero durations mean "use the
// default".
type Options struct {
	Vibrate                  bool
	LongPressDoubleVibration bool
	LongPressDelay           int
	DoublePressDelay         int
	VibrateDuration          int
	SequenceTimeout          int
	TriggerFromOtherApps     bool
	ShowToast                bool
}

// New returns an empty Undefined trigger.
func New() Trigger {
	return Trigger{Mode: Undefined{}}
}

// Find returns the key with the given uid and its index.
func (t Trigger) Find(uid string) (Key, int, bool) {
	for i, k := range t.Keys {
		if k.KeyUID() == uid {
			return k, i, true
		}
	}
	return nil, -1, false
}

// CloneKeys returns a fresh copy of the key slice.
func (t Trigger) CloneKeys() []Key {
	if t.Keys == nil {
		return nil
	}
	keys := make([]Key, len(t.Keys))
	copy(keys, t.Keys)
	return keys
}

// Equal reports whether a and b hold the same keys, mode, flags and
// options. A nil mode equals Undefined and a nil key slice equals an empty
// one.
func Equal(a, b Trigger) bool {
	if ModeOf(a) != ModeOf(b) {
		return false
	}
	if a.LegacyScreenOff != b.LegacyScreenOff || a.Options != b.Options {
		return false
	}
	if len(a.Keys) != len(b.Keys) {
		return false
	}
	for i := range a.Keys {
		if !KeysEqual(a.Keys[i], b.Keys[i]) {
			return false
		}
	}
	return true
}

// LowLevelKeys returns how many low-level keys t holds.
func (t Trigger) LowLevelKeys() int {
	n := 0
	for _, k := range t.Keys {
		if FamilyOf(k) == FamilyLowLevel {
			n++
		}
	}
	return n
}

// AssistantKeys returns how many assistant keys t holds.
func (t Trigger) AssistantKeys() int {
	n := 0
	for _, k := range t.Keys {
		if _, ok := k.(AssistantKey); ok {
			n++
		}
	}
	return n
}

// SupportsClickType reports whether every key can be actuated with c.
func (t Trigger) SupportsClickType(c ClickType) bool {
	for _, k := range t.Keys {
		if !SupportsClickType(k, c) {
			return false
		}
	}
	return true
}
