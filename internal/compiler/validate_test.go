package compiler

import (
	"testing"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/trigger"
)

func codes(errs []ValidationError) []string {
	out := make([]string, len(errs))
	for i, e := range errs {
		out[i] = e.Code
	}
	return out
}

func phys(uid string, code int) trigger.PhysicalKey {
	return trigger.PhysicalKey{UID: uid, KeyCode: code, Device: trigger.AnyDevice{}, ConsumeEvent: true}
}

// =============================================================================
// Composed triggers always validate
// =============================================================================

func TestValidateComposedTriggers(t *testing.T) {
	gpio := trigger.LowLevelDevice{Name: "gpio-keys", Bus: 25, Vendor: 1, Product: 1}
	volume := func() trigger.Trigger {
		tr := compose.AddPhysicalKey(trigger.New(), compose.PhysicalKeyParams{KeyCode: trigger.KeyCodeVolumeUp})
		return compose.AddPhysicalKey(tr, compose.PhysicalKeyParams{KeyCode: trigger.KeyCodeVolumeDown})
	}

	tests := []struct {
		name  string
		build func(t *testing.T) trigger.Trigger
	}{
		{"empty", func(t *testing.T) trigger.Trigger { return trigger.New() }},
		{"parallel pair", func(t *testing.T) trigger.Trigger { return volume() }},
		{"long press pair", func(t *testing.T) trigger.Trigger {
			tr, err := compose.SetLongPress(volume())
			require.NoError(t, err)
			return tr
		}},
		{"sequence pair", func(t *testing.T) trigger.Trigger { return compose.SetSequenceMode(volume()) }},
		{"long press single key", func(t *testing.T) trigger.Trigger {
			tr := compose.AddPhysicalKey(trigger.New(), compose.PhysicalKeyParams{KeyCode: trigger.KeyCodeCamera})
			tr, err := compose.SetLongPress(tr)
			require.NoError(t, err)
			return tr
		}},
		{"duplicate low level keys", func(t *testing.T) trigger.Trigger {
			p := compose.LowLevelKeyParams{KeyCode: trigger.KeyCodeVolumeDown, ScanCode: 0, Device: gpio}
			return compose.AddLowLevelKey(compose.AddLowLevelKey(trigger.New(), p), p)
		}},
		{"double press then assistant", func(t *testing.T) trigger.Trigger {
			tr := compose.AddPhysicalKey(trigger.New(), compose.PhysicalKeyParams{KeyCode: trigger.KeyCodeVolumeDown})
			tr, err := compose.SetDoublePress(tr)
			require.NoError(t, err)
			tr, err = compose.AddAssistantKey(tr, trigger.AssistantAny)
			require.NoError(t, err)
			return tr
		}},
		{"gestures", func(t *testing.T) trigger.Trigger {
			tr := compose.AddGestureKey(trigger.New(), trigger.SwipeDown)
			return compose.AddGestureKey(tr, trigger.SwipeUp)
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := tt.build(t)
			assert.Empty(t, Validate(tr))
			assert.Empty(t, Validate(&tr))
			assert.Empty(t, Validate(trigger.ToDocument(tr)))
		})
	}
}

// =============================================================================
// Structural rules
// =============================================================================

func TestValidateStructuralErrors(t *testing.T) {
	gesture := trigger.GestureKey{UID: "g", Gesture: trigger.SwipeDown}
	low := trigger.LowLevelKey{UID: "l", KeyCode: trigger.KeyCodeVolumeUp, ScanCode: 115}

	tests := []struct {
		name string
		tr   trigger.Trigger
		want []string
	}{
		{
			name: "mixed families",
			tr:   trigger.Trigger{Keys: []trigger.Key{phys("a", trigger.KeyCodeVolumeUp), low}, Mode: trigger.Sequence{}},
			want: []string{ErrMixedFamilies},
		},
		{
			name: "undefined with two keys",
			tr:   trigger.Trigger{Keys: []trigger.Key{phys("a", 24), phys("b", 25)}, Mode: trigger.Undefined{}},
			want: []string{ErrTooManyKeysForMode},
		},
		{
			name: "sequence with one key",
			tr:   trigger.Trigger{Keys: []trigger.Key{phys("a", 24)}, Mode: trigger.Sequence{}},
			want: []string{ErrTooFewKeysForMode},
		},
		{
			name: "empty parallel",
			tr:   trigger.Trigger{Mode: trigger.Parallel{}},
			want: []string{ErrTooFewKeysForMode},
		},
		{
			name: "parallel with one key",
			tr:   trigger.Trigger{Keys: []trigger.Key{trigger.WithClickType(phys("a", 24), trigger.LongPress)}, Mode: trigger.Parallel{ClickType: trigger.LongPress}},
			want: []string{ErrTooFewKeysForMode},
		},
		{
			name: "missing uid",
			tr:   trigger.Trigger{Keys: []trigger.Key{phys("", 24)}},
			want: []string{ErrDuplicateUID},
		},
		{
			name: "repeated uid",
			tr:   trigger.Trigger{Keys: []trigger.Key{phys("a", 24), phys("a", 25)}, Mode: trigger.Sequence{}},
			want: []string{ErrDuplicateUID},
		},
		{
			name: "long press gesture",
			tr: trigger.Trigger{Keys: []trigger.Key{
				trigger.GestureKey{UID: "g", Gesture: trigger.SwipeDown, Click: trigger.LongPress},
			}},
			want: []string{ErrIllegalClickType},
		},
		{
			name: "same assistant twice",
			tr: trigger.Trigger{Keys: []trigger.Key{
				trigger.AssistantKey{UID: "a", Assistant: trigger.AssistantVoice},
				trigger.AssistantKey{UID: "b", Assistant: trigger.AssistantVoice},
			}, Mode: trigger.Sequence{}},
			want: []string{ErrDuplicateAssistant},
		},
		{
			name: "two assistants in parallel",
			tr: trigger.Trigger{Keys: []trigger.Key{
				trigger.AssistantKey{UID: "a", Assistant: trigger.AssistantVoice},
				trigger.AssistantKey{UID: "b", Assistant: trigger.AssistantDevice},
			}, Mode: trigger.Parallel{}},
			want: []string{ErrDuplicateAssistant, ErrParallelConflict},
		},
		{
			name: "parallel click mismatch",
			tr: trigger.Trigger{Keys: []trigger.Key{
				phys("a", 24),
				trigger.WithClickType(phys("b", 25), trigger.LongPress),
			}, Mode: trigger.Parallel{ClickType: trigger.ShortPress}},
			want: []string{ErrParallelClickType},
		},
		{
			name: "parallel duplicate input",
			tr:   trigger.Trigger{Keys: []trigger.Key{phys("a", 24), phys("b", 24)}, Mode: trigger.Parallel{}},
			want: []string{ErrParallelConflict},
		},
		{
			name: "parallel gestures",
			tr: trigger.Trigger{Keys: []trigger.Key{
				gesture,
				trigger.GestureKey{UID: "h", Gesture: trigger.SwipeUp},
			}, Mode: trigger.Parallel{}},
			want: []string{ErrParallelConflict},
		},
		{
			name: "negative duration",
			tr:   trigger.Trigger{Mode: trigger.Undefined{}, Options: trigger.Options{SequenceTimeout: -1}},
			want: []string{ErrInvalidDuration},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, codes(Validate(tt.tr)))
		})
	}
}

func TestValidateCollectsAllErrors(t *testing.T) {
	tr := trigger.Trigger{
		Keys: []trigger.Key{
			phys("a", 24),
			phys("a", 24),
			trigger.LowLevelKey{UID: "l", KeyCode: 25, ScanCode: 114},
		},
		Mode:    trigger.Undefined{},
		Options: trigger.Options{LongPressDelay: -5},
	}

	got := codes(Validate(tr))
	assert.Contains(t, got, ErrMixedFamilies)
	assert.Contains(t, got, ErrTooManyKeysForMode)
	assert.Contains(t, got, ErrDuplicateUID)
	assert.Contains(t, got, ErrInvalidDuration)
}

func TestValidateUnsupportedType(t *testing.T) {
	errs := Validate(42)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedType, errs[0].Code)
	assert.Contains(t, errs[0].Message, "int")
}

func TestValidateBadDocument(t *testing.T) {
	errs := Validate(trigger.Document{Mode: "diagonal"})
	require.Len(t, errs, 1)
	assert.Equal(t, ErrUnsupportedType, errs[0].Code)
}

func TestValidateKeyMapReportsLines(t *testing.T) {
	src := `keymap: chord: {
	mode: "parallel"
	keys: [
		{type: "physical", key_code: 24},
		{type: "physical", key_code: 25, click_type: "long_press"},
	]
}
`
	v := cuecontext.New().CompileString(src, cue.Filename("chord.cue"))
	require.NoError(t, v.Err())
	spec, err := CompileKeyMap(v.LookupPath(cue.ParsePath("keymap.chord")))
	require.NoError(t, err)

	errs := Validate(spec)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrParallelClickType, errs[0].Code)
	assert.Equal(t, "keys[1].click_type", errs[0].Field)
	assert.Equal(t, 5, errs[0].Line)
}

func TestValidationErrorFormat(t *testing.T) {
	e := ValidationError{Field: "mode", Message: "bad", Code: ErrTooManyKeysForMode}
	assert.Equal(t, "[E104] mode: bad", e.Error())

	e.Line = 3
	assert.Equal(t, "[E104] line 3: mode: bad", e.Error())
}

func TestKeyIndex(t *testing.T) {
	i, ok := keyIndex("keys[12].click_type")
	assert.True(t, ok)
	assert.Equal(t, 12, i)

	_, ok = keyIndex("options.vibrate")
	assert.False(t, ok)
}
