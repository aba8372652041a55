package trigger

import (
	"fmt"
	"strconv"
	"strings"
)

// Android key codes referenced by the composition and classification rules.
const (
	KeyCodeUnknown     = 0
	KeyCodeDpadUp      = 19
	KeyCodeDpadDown    = 20
	KeyCodeDpadLeft    = 21
	KeyCodeDpadRight   = 22
	KeyCodeDpadCenter  = 23
	KeyCodeVolumeUp    = 24
	KeyCodeVolumeDown  = 25
	KeyCodePower       = 26
	KeyCodeCamera      = 27
	KeyCodeA           = 29
	KeyCodeAltLeft     = 57
	KeyCodeAltRight    = 58
	KeyCodeShiftLeft   = 59
	KeyCodeShiftRight  = 60
	KeyCodeSym         = 63
	KeyCodeNum         = 78
	KeyCodeHeadsetHook = 79
	KeyCodeFocus       = 80
	KeyCodeMenu        = 82
	KeyCodeSearch      = 84
	KeyCodeCtrlLeft    = 113
	KeyCodeCtrlRight   = 114
	KeyCodeMetaLeft    = 117
	KeyCodeMetaRight   = 118
	KeyCodeFunction    = 119
	KeyCodeTVPower     = 177
	KeyCodeAssist      = 219

	KeyCodeDpadUpLeft    = 268
	KeyCodeDpadDownLeft  = 269
	KeyCodeDpadUpRight   = 270
	KeyCodeDpadDownRight = 271
)

// Linux input scan codes (linux/input-event-codes.h).
const (
	ScanCodeVolumeDown = 114
	ScanCodeVolumeUp   = 115
	ScanCodePower      = 116
	ScanCodePower2     = 356
)

var modifierKeyCodes = map[int]bool{
	KeyCodeShiftLeft:  true,
	KeyCodeShiftRight: true,
	KeyCodeAltLeft:    true,
	KeyCodeAltRight:   true,
	KeyCodeCtrlLeft:   true,
	KeyCodeCtrlRight:  true,
	KeyCodeMetaLeft:   true,
	KeyCodeMetaRight:  true,
	KeyCodeSym:        true,
	KeyCodeNum:        true,
	KeyCodeFunction:   true,
}

var dpadKeyCodes = map[int]bool{
	KeyCodeDpadUp:        true,
	KeyCodeDpadDown:      true,
	KeyCodeDpadLeft:      true,
	KeyCodeDpadRight:     true,
	KeyCodeDpadUpLeft:    true,
	KeyCodeDpadDownLeft:  true,
	KeyCodeDpadUpRight:   true,
	KeyCodeDpadDownRight: true,
}

// Keys that the legacy root-based detector could read with the screen off.
var screenOffKeyCodes = map[int]bool{
	KeyCodeVolumeDown:  true,
	KeyCodeVolumeUp:    true,
	KeyCodeHeadsetHook: true,
	KeyCodeFocus:       true,
	KeyCodeCamera:      true,
	KeyCodeMenu:        true,
	KeyCodeAssist:      true,
	KeyCodeSearch:      true,
}

// IsModifierKeyCode reports whether keyCode is an OS modifier key whose
// native effect must be preserved.
func IsModifierKeyCode(keyCode int) bool {
	return modifierKeyCodes[keyCode]
}

// IsVolumeKeyCode reports whether keyCode is volume up or volume down.
func IsVolumeKeyCode(keyCode int) bool {
	return keyCode == KeyCodeVolumeUp || keyCode == KeyCodeVolumeDown
}

// IsDpadKeyCode reports whether keyCode is a directional pad key.
func IsDpadKeyCode(keyCode int) bool {
	return dpadKeyCodes[keyCode]
}

// IsPowerKeyCode reports whether keyCode is a power button.
func IsPowerKeyCode(keyCode int) bool {
	return keyCode == KeyCodePower || keyCode == KeyCodeTVPower
}

// IsPowerScanCode reports whether scanCode is a power button.
func IsPowerScanCode(scanCode int) bool {
	return scanCode == ScanCodePower || scanCode == ScanCodePower2
}

// CanDetectWhenScreenOff reports whether keyCode was readable by the
// legacy screen-off detector.
func CanDetectWhenScreenOff(keyCode int) bool {
	return screenOffKeyCodes[keyCode]
}

var keyCodeNames = map[string]int{
	"UNKNOWN":         KeyCodeUnknown,
	"DPAD_UP":         KeyCodeDpadUp,
	"DPAD_DOWN":       KeyCodeDpadDown,
	"DPAD_LEFT":       KeyCodeDpadLeft,
	"DPAD_RIGHT":      KeyCodeDpadRight,
	"DPAD_CENTER":     KeyCodeDpadCenter,
	"VOLUME_UP":       KeyCodeVolumeUp,
	"VOLUME_DOWN":     KeyCodeVolumeDown,
	"POWER":           KeyCodePower,
	"CAMERA":          KeyCodeCamera,
	"A":               KeyCodeA,
	"ALT_LEFT":        KeyCodeAltLeft,
	"ALT_RIGHT":       KeyCodeAltRight,
	"SHIFT_LEFT":      KeyCodeShiftLeft,
	"SHIFT_RIGHT":     KeyCodeShiftRight,
	"SYM":             KeyCodeSym,
	"NUM":             KeyCodeNum,
	"HEADSETHOOK":     KeyCodeHeadsetHook,
	"FOCUS":           KeyCodeFocus,
	"MENU":            KeyCodeMenu,
	"SEARCH":          KeyCodeSearch,
	"CTRL_LEFT":       KeyCodeCtrlLeft,
	"CTRL_RIGHT":      KeyCodeCtrlRight,
	"META_LEFT":       KeyCodeMetaLeft,
	"META_RIGHT":      KeyCodeMetaRight,
	"FUNCTION":        KeyCodeFunction,
	"TV_POWER":        KeyCodeTVPower,
	"ASSIST":          KeyCodeAssist,
	"DPAD_UP_LEFT":    KeyCodeDpadUpLeft,
	"DPAD_DOWN_LEFT":  KeyCodeDpadDownLeft,
	"DPAD_UP_RIGHT":   KeyCodeDpadUpRight,
	"DPAD_DOWN_RIGHT": KeyCodeDpadDownRight,
}

// ParseKeyCode accepts a decimal key code or a key name such as
// "VOLUME_DOWN" (an optional "KEYCODE_" prefix is ignored).
func ParseKeyCode(s string) (int, error) {
	s = strings.TrimSpace(s)
	if n, err := strconv.Atoi(s); err == nil {
		if n < 0 {
			return 0, fmt.Errorf("negative key code %d", n)
		}
		return n, nil
	}
	name := strings.TrimPrefix(strings.ToUpper(s), "KEYCODE_")
	if code, ok := keyCodeNames[name]; ok {
		return code, nil
	}
	return 0, fmt.Errorf("unknown key code %q", s)
}
