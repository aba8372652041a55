package trigger

import "fmt"

// ClickType is how a key must be actuated to count toward the trigger.
// The zero value is ShortPress.
type ClickType uint8

const (
	ShortPress ClickType = iota
	LongPress
	DoublePress
)

var clickTypeNames = [...]string{
	ShortPress:  "short_press",
	LongPress:   "long_press",
	DoublePress: "double_press",
}

func (c ClickType) String() string {
	if int(c) < len(clickTypeNames) {
		return clickTypeNames[c]
	}
	return fmt.Sprintf("ClickType(%d)", uint8(c))
}

// ParseClickType parses the wire name of a click type.
func ParseClickType(s string) (ClickType, error) {
	for i, name := range clickTypeNames {
		if name == s {
			return ClickType(i), nil
		}
	}
	return ShortPress, fmt.Errorf("unknown click type %q", s)
}

// GestureType identifies a fingerprint swipe gesture.
type GestureType string

const (
	SwipeDown  GestureType = "swipe_down"
	SwipeUp    GestureType = "swipe_up"
	SwipeLeft  GestureType = "swipe_left"
	SwipeRight GestureType = "swipe_right"
)

// Valid reports whether g is one of the known gestures.
func (g GestureType) Valid() bool {
	switch g {
	case SwipeDown, SwipeUp, SwipeLeft, SwipeRight:
		return true
	}
	return false
}

// AssistantType identifies which assistant invocation fires the key.
type AssistantType string

const (
	AssistantAny    AssistantType = "any"
	AssistantVoice  AssistantType = "voice"
	AssistantDevice AssistantType = "device"
)

// Valid reports whether a is one of the known assistant types.
func (a AssistantType) Valid() bool {
	switch a {
	case AssistantAny, AssistantVoice, AssistantDevice:
		return true
	}
	return false
}

// Mode is a closed set of trigger modes: Undefined, Parallel or Sequence.
//
// A nil Mode is read as Undefined. Use ModeOf to normalize.
type Mode interface {
	fmt.Stringer
	mode()
}

// Undefined is the mode of a trigger with zero or one key.
type Undefined struct{}

// Parallel requires every key pressed together with one shared click type.
type Parallel struct {
	ClickType ClickType
}

// Sequence requires keys pressed in order, each clicked independently.
type Sequence struct{}

func (Undefined) mode() {}
func (Parallel) mode()  {}
func (Sequence) mode()  {}

func (Undefined) String() string  { return "undefined" }
func (p Parallel) String() string { return "parallel(" + p.ClickType.String() + ")" }
func (Sequence) String() string   { return "sequence" }

// ModeOf returns the trigger's mode with nil normalized to Undefined.
func ModeOf(t Trigger) Mode {
	if t.Mode == nil {
		return Undefined{}
	}
	return t.Mode
}

// ParallelClickType returns the shared click type when m is Parallel.
func ParallelClickType(m Mode) (ClickType, bool) {
	p, ok := m.(Parallel)
	if !ok {
		return ShortPress, false
	}
	return p.ClickType, true
}

// IsSequence reports whether m is Sequence.
func IsSequence(m Mode) bool {
	_, ok := m.(Sequence)
	return ok
}

// Device identifies where a physical key event comes from: the built-in
// hardware, a specific external device, or any device.
type Device interface {
	fmt.Stringer
	device()
}

// InternalDevice is the device's own hardware.
type InternalDevice struct{}

// AnyDevice matches every device.
type AnyDevice struct{}

// ExternalDevice is a specific external input device. Two external devices
// are the same device when their descriptors match; Name is for display.
type ExternalDevice struct {
	Descriptor string
	Name       string
}

func (InternalDevice) device() {}
func (AnyDevice) device()      {}
func (ExternalDevice) device() {}

func (InternalDevice) String() string   { return "internal" }
func (AnyDevice) String() string        { return "any" }
func (d ExternalDevice) String() string { return fmt.Sprintf("external(%s)", d.Descriptor) }

// IsSameDevice reports whether two physical devices can produce the same
// event. AnyDevice is a wildcard and matches everything. A nil device is
// treated as AnyDevice.
func IsSameDevice(a, b Device) bool {
	if isAnyDevice(a) || isAnyDevice(b) {
		return true
	}
	ea, aExt := a.(ExternalDevice)
	eb, bExt := b.(ExternalDevice)
	if aExt && bExt {
		return ea.Descriptor == eb.Descriptor
	}
	return aExt == bExt
}

func isAnyDevice(d Device) bool {
	if d == nil {
		return true
	}
	_, ok := d.(AnyDevice)
	return ok
}

// LowLevelDevice is the exact identity of a raw input device as reported
// by the elevated input backend. Compared with ==.
type LowLevelDevice struct {
	Name    string
	Bus     int
	Vendor  int
	Product int
}

func (d LowLevelDevice) String() string {
	return fmt.Sprintf("%s [%04x:%04x:%04x]", d.Name, d.Bus, d.Vendor, d.Product)
}
