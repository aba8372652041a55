package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keytrigger/internal/classify"
	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/trigger"
)

func intPtr(n int) *int { return &n }

func volumeChord() *Scenario {
	return &Scenario{
		Name:        "volume_chord",
		Description: "two volume keys pressed together",
		Steps: []Step{
			{Op: "add_physical_key", Args: map[string]any{"key_code": "VOLUME_UP"}},
			{
				Op:     "add_physical_key",
				Args:   map[string]any{"key_code": "VOLUME_DOWN"},
				Expect: &StepExpect{Mode: "parallel(short_press)", Keys: intPtr(2)},
			},
		},
		Assertions: []Assertion{
			{Type: AssertMode, Mode: "parallel(short_press)"},
			{Type: AssertKeyCount, Count: 2},
		},
	}
}

func TestRun_AppliesStepsThroughEditor(t *testing.T) {
	result, err := Run(volumeChord())
	require.NoError(t, err)

	assert.True(t, result.Pass, "errors: %v", result.Errors)
	require.Len(t, result.Trace, 2)
	assert.Equal(t, OutcomeApplied, result.Trace[0].Outcome)
	assert.Equal(t, int64(1), result.Trace[0].Revision)
	assert.Equal(t, "undefined", result.Trace[0].Mode)
	assert.Equal(t, int64(2), result.Trace[1].Revision)
	assert.Len(t, result.Final.Keys, 2)
	assert.Equal(t, 2, result.Replayed)
	assert.Empty(t, result.KeyErrors)
}

func TestRun_InitialTrigger(t *testing.T) {
	s := &Scenario{
		Name:        "initial",
		Description: "starts from a document",
		Trigger: &trigger.Document{
			Mode: trigger.ModeNameUndefined,
			Keys: []trigger.KeyDocument{{Type: trigger.KeyTypePhysical, KeyCode: trigger.KeyCodeVolumeDown}},
		},
		Steps: []Step{{Op: "set_long_press"}},
		Assertions: []Assertion{
			{Type: AssertMode, Mode: "undefined"},
			{Type: AssertKey, Index: 0, Expect: map[string]any{"click_type": "long_press"}},
		},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.Initial.Keys, 1)
	assert.IsType(t, trigger.Undefined{}, result.Initial.Mode)
}

func TestRun_Environment(t *testing.T) {
	s := volumeChord()
	denied := false
	s.Environment = &classify.SnapshotDocument{DndAccessGranted: &denied}
	s.Assertions = []Assertion{
		{Type: AssertKeyError, Index: 0, Error: classify.DndAccessDenied},
		{Type: AssertKeyError, Index: 1, Error: classify.DndAccessDenied},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Len(t, result.KeyErrors, 2)
}

// ============================================================================
// Step expectations
// ============================================================================

func TestRun_ExpectedRejection(t *testing.T) {
	s := &Scenario{
		Name:        "rejected",
		Description: "long press on an empty trigger",
		Steps: []Step{
			{Op: "set_long_press", Expect: &StepExpect{Rejected: compose.RejectEmptyTrigger}},
		},
		Assertions: []Assertion{{Type: AssertKeyCount, Count: 0}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, OutcomeRejected, result.Trace[0].Outcome)
	assert.Equal(t, string(compose.RejectEmptyTrigger), result.Trace[0].Code)
	assert.Equal(t, 0, result.Replayed)
}

func TestRun_UnexpectedRejectionFails(t *testing.T) {
	s := &Scenario{
		Name:        "unexpected",
		Description: "rejection without an expect clause",
		Steps:       []Step{{Op: "set_long_press"}},
		Assertions:  []Assertion{{Type: AssertKeyCount, Count: 0}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected rejection EMPTY_TRIGGER")
}

func TestRun_WrongRejectionCodeFails(t *testing.T) {
	s := &Scenario{
		Name:        "wrong_code",
		Description: "rejection with another code",
		Steps: []Step{
			{Op: "set_long_press", Expect: &StepExpect{Rejected: compose.RejectTooManyKeys}},
		},
		Assertions: []Assertion{{Type: AssertKeyCount, Count: 0}},
	}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "expected rejection TOO_MANY_KEYS, got EMPTY_TRIGGER")
}

func TestRun_StepExpectationMismatch(t *testing.T) {
	s := volumeChord()
	s.Steps[0].Expect = &StepExpect{Mode: "sequence", Keys: intPtr(3), Unchanged: true}

	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Len(t, result.Errors, 3)
}

func TestRun_MalformedArgsAbort(t *testing.T) {
	s := &Scenario{
		Name:        "malformed",
		Description: "missing key code",
		Steps:       []Step{{Op: "add_physical_key"}},
		Assertions:  []Assertion{{Type: AssertKeyCount, Count: 0}},
	}

	_, err := Run(s)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "step 1")
}

func TestRun_EmptySibling(t *testing.T) {
	s := volumeChord()
	s.Siblings = []Sibling{
		{Name: "a", Trigger: trigger.Document{Mode: trigger.ModeNameUndefined}},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
}

// ============================================================================
// Rendering
// ============================================================================

func TestDescribeKey(t *testing.T) {
	tests := []struct {
		name string
		key  trigger.Key
		want string
	}{
		{
			name: "physical without scan code",
			key:  trigger.PhysicalKey{KeyCode: 24, Device: trigger.AnyDevice{}, ConsumeEvent: true},
			want: "physical code=24 scan=- device=any click=short_press scan_detect=false consume=true",
		},
		{
			name: "physical external",
			key: trigger.PhysicalKey{
				KeyCode: 25, ScanCode: trigger.NewScanCode(114),
				Device: trigger.ExternalDevice{Descriptor: "kbd"}, Click: trigger.LongPress, ScanCodeDetection: true,
			},
			want: "physical code=25 scan=114 device=external(kbd) click=long_press scan_detect=true consume=false",
		},
		{
			name: "low level",
			key:  trigger.LowLevelKey{KeyCode: 25, ScanCode: 114, Device: trigger.LowLevelDevice{Name: "gpio"}},
			want: "low_level code=25 scan=114 device=gpio click=short_press scan_detect=false",
		},
		{
			name: "gesture",
			key:  trigger.GestureKey{Gesture: "swipe_down"},
			want: "gesture swipe_down click=short_press",
		},
		{
			name: "assistant",
			key:  trigger.AssistantKey{Assistant: trigger.AssistantVoice},
			want: "assistant voice click=short_press",
		},
		{
			name: "deleted button",
			key:  trigger.OnScreenKey{ButtonID: "b1", Click: trigger.DoublePress},
			want: "on_screen b1 click=double_press deleted",
		},
		{
			name: "resolved button",
			key:  trigger.OnScreenKey{ButtonID: "b1", Button: &trigger.ButtonRef{Label: "x"}},
			want: "on_screen b1 click=short_press",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DescribeKey(tt.key))
		})
	}
}

func TestFormatTrace(t *testing.T) {
	r := NewResult()
	r.Initial = trigger.New()
	r.AddStep(TraceEvent{Step: 1, Edit: "set_long_press", Outcome: OutcomeRejected, Code: "EMPTY_TRIGGER"})
	r.AddStep(TraceEvent{Step: 2, Edit: "set_vibrate on=false", Outcome: OutcomeUnchanged})
	r.AddStep(TraceEvent{
		Step: 3, Edit: "add_physical_key key_code=24", Outcome: OutcomeApplied, Revision: 1,
		Mode: "undefined", Keys: []string{"physical code=24"},
	})
	r.KeyErrors = []classify.KeyError{{Index: 0, Error: classify.DndAccessDenied}}
	r.Replayed = 1

	want := "scenario: demo\n" +
		"initial: undefined\n" +
		"step 1: set_long_press\n" +
		"  rejected EMPTY_TRIGGER\n" +
		"step 2: set_vibrate on=false\n" +
		"  unchanged\n" +
		"step 3: add_physical_key key_code=24\n" +
		"  applied revision=1\n" +
		"  mode: undefined\n" +
		"  key[0]: physical code=24\n" +
		"errors:\n" +
		"  key[0]: DND_ACCESS_DENIED remedy=grant_dnd_access\n" +
		"replay: 1 edits\n"
	assert.Equal(t, want, string(FormatTrace("demo", r)))
}
