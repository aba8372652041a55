package trigger

// Key is a closed set of trigger key variants: PhysicalKey, LowLevelKey,
// GestureKey, AssistantKey and OnScreenKey.
type Key interface {
	// KeyUID returns the key's stable identifier within its trigger.
	KeyUID() string

	// ClickType returns how the key must be actuated.
	ClickType() ClickType

	triggerKey()
}

// ScanCode is an optional hardware scan code.
type ScanCode struct {
	Value int
	Valid bool
}

// NewScanCode returns a known scan code.
func NewScanCode(v int) ScanCode {
	return ScanCode{Value: v, Valid: true}
}

// PhysicalKey is a key detected through the OS input-method or
// accessibility layer.
type PhysicalKey struct {
	UID                 string
	KeyCode             int
	ScanCode            ScanCode
	Device              Device
	Click               ClickType
	ScanCodeDetection   bool
	ConsumeEvent        bool
	RequiresInputMethod bool
}

// LowLevelKey is a key detected through the elevated raw input backend.
type LowLevelKey struct {
	UID               string
	KeyCode           int
	ScanCode          int
	Device            LowLevelDevice
	Click             ClickType
	ScanCodeDetection bool
}

// GestureKey is a fingerprint swipe gesture.
type GestureKey struct {
	UID     string
	Gesture GestureType
	Click   ClickType
}

// AssistantKey is a voice or device assistant invocation.
type AssistantKey struct {
	UID       string
	Assistant AssistantType
	Click     ClickType
}

// ButtonRef is the resolved on-screen button a key points at.
type ButtonRef struct {
	Label  string
	Layout string
}

// OnScreenKey is an on-screen (floating) button. A nil Button means the
// referenced button no longer exists.
type OnScreenKey struct {
	UID      string
	ButtonID string
	Button   *ButtonRef
	Click    ClickType
}

func (k PhysicalKey) KeyUID() string  { return k.UID }
func (k LowLevelKey) KeyUID() string  { return k.UID }
func (k GestureKey) KeyUID() string   { return k.UID }
func (k AssistantKey) KeyUID() string { return k.UID }
func (k OnScreenKey) KeyUID() string  { return k.UID }

func (k PhysicalKey) ClickType() ClickType  { return k.Click }
func (k LowLevelKey) ClickType() ClickType  { return k.Click }
func (k GestureKey) ClickType() ClickType   { return k.Click }
func (k AssistantKey) ClickType() ClickType { return k.Click }
func (k OnScreenKey) ClickType() ClickType  { return k.Click }

func (PhysicalKey) triggerKey()  {}
func (LowLevelKey) triggerKey()  {}
func (GestureKey) triggerKey()   {}
func (AssistantKey) triggerKey() {}
func (OnScreenKey) triggerKey()  {}

// DetectsWithScanCode reports whether events are matched on the scan code
// rather than the key code. An unknown key code always forces scan code
// matching.
func (k PhysicalKey) DetectsWithScanCode() bool {
	return k.ScanCode.Valid && (k.ScanCodeDetection || k.KeyCode == KeyCodeUnknown)
}

// ScanCodeConfigurable reports whether the user may toggle scan code
// detection for this key.
func (k PhysicalKey) ScanCodeConfigurable() bool {
	return k.ScanCode.Valid && k.KeyCode != KeyCodeUnknown
}

// DetectsWithScanCode reports whether events are matched on the scan code.
func (k LowLevelKey) DetectsWithScanCode() bool {
	return k.ScanCodeDetection || k.KeyCode == KeyCodeUnknown
}

// ScanCodeConfigurable reports whether the user may toggle scan code
// detection for this key.
func (k LowLevelKey) ScanCodeConfigurable() bool {
	return k.KeyCode != KeyCodeUnknown
}

// Family groups key variants that may share a trigger.
type Family uint8

const (
	// FamilyStandard covers physical, gesture, assistant and on-screen keys.
	FamilyStandard Family = iota
	// FamilyLowLevel covers keys read from the elevated input backend.
	FamilyLowLevel
)

// FamilyOf returns the family of k.
func FamilyOf(k Key) Family {
	if _, ok := k.(LowLevelKey); ok {
		return FamilyLowLevel
	}
	return FamilyStandard
}

// SupportsClickType reports whether k can be actuated with c. Assistant
// and gesture keys only produce a single event, so they are short press
// only.
func SupportsClickType(k Key, c ClickType) bool {
	switch k.(type) {
	case AssistantKey, GestureKey:
		return c == ShortPress
	default:
		return true
	}
}

// WithClickType returns a copy of k with its click type replaced.
func WithClickType(k Key, c ClickType) Key {
	switch key := k.(type) {
	case PhysicalKey:
		key.Click = c
		return key
	case LowLevelKey:
		key.Click = c
		return key
	case GestureKey:
		key.Click = c
		return key
	case AssistantKey:
		key.Click = c
		return key
	case OnScreenKey:
		key.Click = c
		return key
	default:
		return k
	}
}

// WithUID returns a copy of k with its uid replaced.
func WithUID(k Key, uid string) Key {
	switch key := k.(type) {
	case PhysicalKey:
		key.UID = uid
		return key
	case LowLevelKey:
		key.UID = uid
		return key
	case GestureKey:
		key.UID = uid
		return key
	case AssistantKey:
		key.UID = uid
		return key
	case OnScreenKey:
		key.UID = uid
		return key
	default:
		return k
	}
}

// KeysEqual reports whether two keys hold the same values. On-screen button
// refs are compared by value.
func KeysEqual(a, b Key) bool {
	oa, aok := a.(OnScreenKey)
	ob, bok := b.(OnScreenKey)
	if aok || bok {
		if !aok || !bok {
			return false
		}
		if oa.UID != ob.UID || oa.ButtonID != ob.ButtonID || oa.Click != ob.Click {
			return false
		}
		if oa.Button == nil || ob.Button == nil {
			return oa.Button == nil && ob.Button == nil
		}
		return *oa.Button == *ob.Button
	}
	return a == b
}
