package compose

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keytrigger/internal/trigger"
)

var (
	deviceX = trigger.ExternalDevice{Descriptor: "dev-x", Name: "Keyboard X"}
	deviceY = trigger.ExternalDevice{Descriptor: "dev-y", Name: "Keyboard Y"}

	evdevX = trigger.LowLevelDevice{Name: "gpio-keys", Bus: 25, Vendor: 1, Product: 1}
	evdevY = trigger.LowLevelDevice{Name: "usb-keyboard", Bus: 3, Vendor: 1133, Product: 49970}
)

func physical(code int) PhysicalKeyParams {
	return PhysicalKeyParams{KeyCode: code}
}

func lowLevel(code, scan int, dev trigger.LowLevelDevice) LowLevelKeyParams {
	return LowLevelKeyParams{KeyCode: code, ScanCode: scan, Device: dev}
}

func clickTypes(t trigger.Trigger) []trigger.ClickType {
	out := make([]trigger.ClickType, len(t.Keys))
	for i, k := range t.Keys {
		out[i] = k.ClickType()
	}
	return out
}

// mustApply unwraps a refusable edit, failing the test on rejection.
func mustApply(t *testing.T) func(trigger.Trigger, error) trigger.Trigger {
	return func(tr trigger.Trigger, err error) trigger.Trigger {
		t.Helper()
		require.NoError(t, err)
		return tr
	}
}

func requireRejected(t *testing.T, err error, code RejectionCode) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrRejected))
	re, ok := IsRejected(err)
	require.True(t, ok)
	assert.Equal(t, code, re.Code)
}

// ============================================================================
// Mode derivation
// ============================================================================

func TestIdenticalLowLevelKeysMakeSequence(t *testing.T) {
	tr := AddLowLevelKey(trigger.New(), lowLevel(trigger.KeyCodeVolumeDown, 0, evdevX))
	tr = AddLowLevelKey(tr, lowLevel(trigger.KeyCodeVolumeDown, 0, evdevX))

	assert.Equal(t, trigger.Sequence{}, tr.Mode)
	require.Len(t, tr.Keys, 2)

	first := tr.Keys[0].(trigger.LowLevelKey)
	second := tr.Keys[1].(trigger.LowLevelKey)
	assert.NotEqual(t, first.UID, second.UID)
	first.UID, second.UID = "", ""
	assert.Equal(t, first, second, "the same key identity appears twice")
}

func TestLowLevelKeysOnDifferentDevicesMakeParallel(t *testing.T) {
	tr := AddLowLevelKey(trigger.New(), lowLevel(trigger.KeyCodeVolumeDown, 0, evdevX))
	tr = AddLowLevelKey(tr, lowLevel(trigger.KeyCodeVolumeDown, 0, evdevY))

	assert.Equal(t, trigger.Parallel{ClickType: trigger.ShortPress}, tr.Mode)
	assert.Equal(t, []trigger.ClickType{trigger.ShortPress, trigger.ShortPress}, clickTypes(tr))
}

func TestSingleKeyIsUndefined(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeUp))
	assert.Equal(t, trigger.Undefined{}, tr.Mode)
	require.Len(t, tr.Keys, 1)
	assert.NotEmpty(t, tr.Keys[0].KeyUID())
}

func TestAddingToParallelKeepsClickType(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeUp))
	tr = AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeDown))
	tr = mustApply(t)(SetLongPress(tr))

	tr = AddPhysicalKey(tr, physical(trigger.KeyCodeCamera))

	assert.Equal(t, trigger.Parallel{ClickType: trigger.LongPress}, tr.Mode)
	assert.Equal(t, []trigger.ClickType{trigger.LongPress, trigger.LongPress, trigger.LongPress}, clickTypes(tr))
}

func TestAddingToSequenceStaysSequence(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeUp))
	tr = AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeUp))
	require.Equal(t, trigger.Sequence{}, tr.Mode)

	tr = AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeDown))
	assert.Equal(t, trigger.Sequence{}, tr.Mode)
	assert.Len(t, tr.Keys, 3)
}

func TestDuplicateDetectionUsesScanCodes(t *testing.T) {
	up115 := PhysicalKeyParams{KeyCode: trigger.KeyCodeVolumeUp, ScanCode: trigger.NewScanCode(115)}
	up116 := PhysicalKeyParams{KeyCode: trigger.KeyCodeVolumeUp, ScanCode: trigger.NewScanCode(116)}

	tr := AddPhysicalKey(trigger.New(), up115)
	tr = AddPhysicalKey(tr, up116)

	assert.Equal(t, trigger.Parallel{ClickType: trigger.ShortPress}, tr.Mode,
		"different scan codes on the same device are different keys")
}

func TestGesturesAlwaysSequence(t *testing.T) {
	tr := AddGestureKey(trigger.New(), trigger.SwipeUp)
	tr = AddGestureKey(tr, trigger.SwipeDown)

	assert.Equal(t, trigger.Sequence{}, tr.Mode)
}

func TestOnScreenKeysDuplicateByButtonID(t *testing.T) {
	ref := &trigger.ButtonRef{Label: "Play", Layout: "media"}

	tr := AddOnScreenKey(trigger.New(), "btn-1", ref)
	tr = AddOnScreenKey(tr, "btn-2", nil)
	assert.Equal(t, trigger.Parallel{ClickType: trigger.ShortPress}, tr.Mode)

	tr = AddOnScreenKey(tr, "btn-1", ref)
	assert.Equal(t, trigger.Sequence{}, tr.Mode)
}

// ============================================================================
// Family homogeneity
// ============================================================================

func TestFamilyHomogeneity(t *testing.T) {
	tests := []struct {
		name   string
		build  func() trigger.Trigger
		family trigger.Family
		keys   int
	}{
		{
			name: "low-level purges standard keys",
			build: func() trigger.Trigger {
				tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeUp))
				tr = AddGestureKey(tr, trigger.SwipeUp)
				return AddLowLevelKey(tr, lowLevel(trigger.KeyCodeVolumeDown, 114, evdevX))
			},
			family: trigger.FamilyLowLevel,
			keys:   1,
		},
		{
			name: "physical purges low-level keys",
			build: func() trigger.Trigger {
				tr := AddLowLevelKey(trigger.New(), lowLevel(trigger.KeyCodeVolumeDown, 114, evdevX))
				tr = AddLowLevelKey(tr, lowLevel(trigger.KeyCodeVolumeUp, 115, evdevX))
				return AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeUp))
			},
			family: trigger.FamilyStandard,
			keys:   1,
		},
		{
			name: "standard variants mix",
			build: func() trigger.Trigger {
				tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeUp))
				tr = AddGestureKey(tr, trigger.SwipeUp)
				tr = AddOnScreenKey(tr, "btn", nil)
				tr, _ = AddAssistantKey(tr, trigger.AssistantAny)
				return tr
			},
			family: trigger.FamilyStandard,
			keys:   4,
		},
		{
			name: "assistant purges low-level keys",
			build: func() trigger.Trigger {
				tr := AddLowLevelKey(trigger.New(), lowLevel(trigger.KeyCodeVolumeDown, 114, evdevX))
				tr, _ = AddAssistantKey(tr, trigger.AssistantVoice)
				return tr
			},
			family: trigger.FamilyStandard,
			keys:   1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tt.build()
			require.Len(t, tr.Keys, tt.keys)
			for _, k := range tr.Keys {
				assert.Equal(t, tt.family, trigger.FamilyOf(k))
			}
		})
	}
}

// ============================================================================
// Click type legality
// ============================================================================

func TestAssistantForcesShortPress(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))
	tr = mustApply(t)(SetDoublePress(tr))
	require.Equal(t, trigger.Undefined{}, tr.Mode)
	require.Equal(t, []trigger.ClickType{trigger.DoublePress}, clickTypes(tr))

	tr = mustApply(t)(AddAssistantKey(tr, trigger.AssistantAny))

	assert.Equal(t, trigger.Parallel{ClickType: trigger.ShortPress}, tr.Mode)
	assert.Equal(t, []trigger.ClickType{trigger.ShortPress, trigger.ShortPress}, clickTypes(tr))
}

func TestGestureForcesShortPress(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))
	tr = AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeUp))
	tr = mustApply(t)(SetLongPress(tr))

	tr = AddGestureKey(tr, trigger.SwipeLeft)

	assert.Equal(t, trigger.Parallel{ClickType: trigger.ShortPress}, tr.Mode)
	assert.Equal(t, []trigger.ClickType{trigger.ShortPress, trigger.ShortPress, trigger.ShortPress}, clickTypes(tr))
}

func TestLongAndDoublePressRejectedForAssistantAndGesture(t *testing.T) {
	withAssistant := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))
	withAssistant = mustApply(t)(AddAssistantKey(withAssistant, trigger.AssistantAny))
	withGesture := AddGestureKey(trigger.New(), trigger.SwipeDown)

	for name, tr := range map[string]trigger.Trigger{"assistant": withAssistant, "gesture": withGesture} {
		t.Run(name, func(t *testing.T) {
			out, err := SetLongPress(tr)
			requireRejected(t, err, RejectUnsupportedClickType)
			assert.True(t, trigger.Equal(tr, out), "rejected edit returns the input")

			out, err = SetDoublePress(tr)
			requireRejected(t, err, RejectUnsupportedClickType)
			assert.True(t, trigger.Equal(tr, out))
		})
	}
}

func TestSetLongPressOnPhysicalKeys(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))
	tr = AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeUp))

	tr = mustApply(t)(SetLongPress(tr))

	assert.Equal(t, trigger.Parallel{ClickType: trigger.LongPress}, tr.Mode)
	assert.Equal(t, []trigger.ClickType{trigger.LongPress, trigger.LongPress}, clickTypes(tr))

	tr = mustApply(t)(SetShortPress(tr))
	assert.Equal(t, trigger.Parallel{ClickType: trigger.ShortPress}, tr.Mode)
	assert.Equal(t, []trigger.ClickType{trigger.ShortPress, trigger.ShortPress}, clickTypes(tr))
}

func TestClickTypeOnSingleKeyStaysUndefined(t *testing.T) {
	single := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))

	tests := []struct {
		name string
		edit func(trigger.Trigger) (trigger.Trigger, error)
		want trigger.ClickType
	}{
		{"long press", SetLongPress, trigger.LongPress},
		{"double press", SetDoublePress, trigger.DoublePress},
		{"short press", SetShortPress, trigger.ShortPress},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := mustApply(t)(tt.edit(single))
			assert.Equal(t, trigger.Undefined{}, out.Mode)
			assert.Equal(t, []trigger.ClickType{tt.want}, clickTypes(out))
			assert.Equal(t, trigger.ModeOf(SetParallelMode(single)), trigger.ModeOf(out),
				"one key has one mode whichever edit produced it")
		})
	}

	t.Run("short press on a short press key changes nothing", func(t *testing.T) {
		out := mustApply(t)(SetShortPress(single))
		assert.True(t, trigger.Equal(single, out))
	})

	t.Run("long press then short press", func(t *testing.T) {
		long := mustApply(t)(SetLongPress(single))
		out := mustApply(t)(SetShortPress(long))
		assert.True(t, trigger.Equal(single, out))
	})
}

func TestSetLongPressOnEmptyTrigger(t *testing.T) {
	_, err := SetLongPress(trigger.New())
	requireRejected(t, err, RejectEmptyTrigger)
}

func TestSetDoublePressConvertsSequence(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))
	tr = AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeUp))
	tr = SetSequenceMode(tr)
	require.Equal(t, trigger.Sequence{}, tr.Mode)

	tr = mustApply(t)(SetDoublePress(tr))

	assert.Equal(t, trigger.Parallel{ClickType: trigger.DoublePress}, tr.Mode)
	assert.Equal(t, []trigger.ClickType{trigger.DoublePress, trigger.DoublePress}, clickTypes(tr))
}

// ============================================================================
// Assistant keys
// ============================================================================

func TestAssistantSameTypeRejected(t *testing.T) {
	tr := mustApply(t)(AddAssistantKey(trigger.New(), trigger.AssistantAny))

	out, err := AddAssistantKey(tr, trigger.AssistantAny)
	requireRejected(t, err, RejectDuplicateAssistant)
	assert.True(t, trigger.Equal(tr, out))
	assert.Equal(t, 1, out.AssistantKeys())
}

func TestAssistantDifferentTypeCollapsedByParallel(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))
	tr = mustApply(t)(AddAssistantKey(tr, trigger.AssistantAny))
	tr = mustApply(t)(AddAssistantKey(tr, trigger.AssistantVoice))

	assert.Equal(t, trigger.Sequence{}, tr.Mode)
	assert.Equal(t, 2, tr.AssistantKeys())

	tr = SetParallelMode(tr)

	assert.Equal(t, trigger.Parallel{ClickType: trigger.ShortPress}, tr.Mode)
	assert.Equal(t, 1, tr.AssistantKeys())
	require.Len(t, tr.Keys, 2)
	assert.Equal(t, trigger.AssistantAny, tr.Keys[1].(trigger.AssistantKey).Assistant, "first assistant wins")
}

// ============================================================================
// Mode conversions
// ============================================================================

func TestSetParallelModeIdempotent(t *testing.T) {
	builds := map[string]trigger.Trigger{
		"duplicate low-level": AddLowLevelKey(
			AddLowLevelKey(trigger.New(), lowLevel(trigger.KeyCodeVolumeDown, 0, evdevX)),
			lowLevel(trigger.KeyCodeVolumeDown, 0, evdevX)),
		"mixed sequence": SetSequenceMode(AddGestureKey(
			AddPhysicalKey(AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown)), physical(trigger.KeyCodeVolumeDown)),
			trigger.SwipeUp)),
		"empty": trigger.New(),
	}

	for name, tr := range builds {
		t.Run(name, func(t *testing.T) {
			once := SetParallelMode(tr)
			twice := SetParallelMode(once)
			assert.True(t, trigger.Equal(once, twice), cmp.Diff(once, twice))
		})
	}
}

func TestSetParallelModeDropsDuplicates(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))
	tr = AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeDown))
	tr = AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeUp))
	require.Equal(t, trigger.Sequence{}, tr.Mode)

	out := SetParallelMode(tr)

	assert.Equal(t, trigger.Parallel{ClickType: trigger.ShortPress}, out.Mode)
	require.Len(t, out.Keys, 2)
	assert.Equal(t, tr.Keys[0].KeyUID(), out.Keys[0].KeyUID())
	assert.Equal(t, tr.Keys[2].KeyUID(), out.Keys[1].KeyUID())
}

func TestSetParallelModeCollapsesToUndefined(t *testing.T) {
	tr := AddLowLevelKey(trigger.New(), lowLevel(trigger.KeyCodeVolumeDown, 0, evdevX))
	tr = AddLowLevelKey(tr, lowLevel(trigger.KeyCodeVolumeDown, 0, evdevX))

	out := SetParallelMode(tr)

	assert.Equal(t, trigger.Undefined{}, out.Mode)
	assert.Len(t, out.Keys, 1)
}

func TestSetSequenceModeKeepsClickTypes(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))
	tr = AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeUp))
	tr = mustApply(t)(SetLongPress(tr))

	out := SetSequenceMode(tr)

	assert.Equal(t, trigger.Sequence{}, out.Mode)
	assert.Equal(t, []trigger.ClickType{trigger.LongPress, trigger.LongPress}, clickTypes(out))
}

func TestSetSequenceModeSingleKey(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))
	assert.Equal(t, trigger.Undefined{}, SetSequenceMode(tr).Mode)
}

func TestSetUndefinedMode(t *testing.T) {
	single := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeDown))
	out := mustApply(t)(SetUndefinedMode(single))
	assert.Equal(t, trigger.Undefined{}, out.Mode)

	pair := AddPhysicalKey(single, physical(trigger.KeyCodeVolumeUp))
	_, err := SetUndefinedMode(pair)
	requireRejected(t, err, RejectTooManyKeys)
}

// ============================================================================
// Key defaults
// ============================================================================

func TestScanCodeDetectionDefault(t *testing.T) {
	sibling := AddPhysicalKey(trigger.New(), PhysicalKeyParams{
		KeyCode:  trigger.KeyCodeVolumeUp,
		ScanCode: trigger.NewScanCode(123),
		Device:   deviceX,
	})

	tests := []struct {
		name   string
		device trigger.Device
		want   bool
	}{
		{"collision only on another device", deviceY, false},
		{"collision on the same device", deviceX, true},
		{"any device matches every device", trigger.AnyDevice{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := AddPhysicalKey(trigger.New(), PhysicalKeyParams{
				KeyCode:  trigger.KeyCodeVolumeUp,
				ScanCode: trigger.NewScanCode(124),
				Device:   tt.device,
			}, sibling)

			require.Len(t, tr.Keys, 1)
			assert.Equal(t, tt.want, tr.Keys[0].(trigger.PhysicalKey).ScanCodeDetection)
		})
	}
}

func TestScanCodeDetectionDefaultWithoutCollision(t *testing.T) {
	sibling := AddPhysicalKey(trigger.New(), PhysicalKeyParams{
		KeyCode:  trigger.KeyCodeVolumeDown,
		ScanCode: trigger.NewScanCode(114),
		Device:   deviceX,
	})

	tr := AddPhysicalKey(trigger.New(), PhysicalKeyParams{
		KeyCode:  trigger.KeyCodeVolumeUp,
		ScanCode: trigger.NewScanCode(115),
		Device:   deviceY,
	}, sibling)

	assert.True(t, tr.Keys[0].(trigger.PhysicalKey).ScanCodeDetection)
}

func TestLowLevelScanCodeDetectionUsesExactDevice(t *testing.T) {
	sibling := AddLowLevelKey(trigger.New(), lowLevel(trigger.KeyCodeVolumeUp, 115, evdevX))

	other := AddLowLevelKey(trigger.New(), lowLevel(trigger.KeyCodeVolumeUp, 116, evdevY), sibling)
	same := AddLowLevelKey(trigger.New(), lowLevel(trigger.KeyCodeVolumeUp, 116, evdevX), sibling)

	assert.False(t, other.Keys[0].(trigger.LowLevelKey).ScanCodeDetection)
	assert.True(t, same.Keys[0].(trigger.LowLevelKey).ScanCodeDetection)
}

func TestModifierKeysKeepNativeEffect(t *testing.T) {
	shift := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeShiftLeft))
	volume := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeUp))

	assert.False(t, shift.Keys[0].(trigger.PhysicalKey).ConsumeEvent)
	assert.True(t, volume.Keys[0].(trigger.PhysicalKey).ConsumeEvent)
}

func TestPhysicalKeyDefaultsToAnyDevice(t *testing.T) {
	tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeUp))
	assert.Equal(t, trigger.AnyDevice{}, tr.Keys[0].(trigger.PhysicalKey).Device)
}

func TestPowerKeyPrefersLongPress(t *testing.T) {
	t.Run("single key", func(t *testing.T) {
		tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodePower))
		assert.Equal(t, trigger.Undefined{}, tr.Mode)
		assert.Equal(t, []trigger.ClickType{trigger.LongPress}, clickTypes(tr))
	})

	t.Run("parallel", func(t *testing.T) {
		tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeUp))
		tr = AddPhysicalKey(tr, physical(trigger.KeyCodePower))
		assert.Equal(t, trigger.Parallel{ClickType: trigger.LongPress}, tr.Mode)
		assert.Equal(t, []trigger.ClickType{trigger.LongPress, trigger.LongPress}, clickTypes(tr))
	})

	t.Run("parallel with assistant stays short", func(t *testing.T) {
		tr := mustApply(t)(AddAssistantKey(trigger.New(), trigger.AssistantAny))
		tr = AddPhysicalKey(tr, physical(trigger.KeyCodePower))
		assert.Equal(t, trigger.Parallel{ClickType: trigger.ShortPress}, tr.Mode)
		assert.Equal(t, []trigger.ClickType{trigger.ShortPress, trigger.ShortPress}, clickTypes(tr))
	})

	t.Run("low-level power scan code", func(t *testing.T) {
		tr := AddLowLevelKey(trigger.New(), lowLevel(trigger.KeyCodeUnknown, trigger.ScanCodePower, evdevX))
		assert.Equal(t, []trigger.ClickType{trigger.LongPress}, clickTypes(tr))
	})
}

func TestKeyUIDsAreDeterministic(t *testing.T) {
	build := func() trigger.Trigger {
		tr := AddPhysicalKey(trigger.New(), physical(trigger.KeyCodeVolumeUp))
		tr = AddPhysicalKey(tr, physical(trigger.KeyCodeVolumeUp))
		return AddGestureKey(tr, trigger.SwipeUp)
	}

	a, b := build(), build()
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("rebuilt trigger differs (-first +second):\n%s", diff)
	}
}
