package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strconv"

	"github.com/roach88/keytrigger/internal/classify"
	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/engine"
	"github.com/roach88/keytrigger/internal/store"
	"github.com/roach88/keytrigger/internal/trigger"
)

// SessionToken is recorded with every edit a scenario makes.
const SessionToken = "harness"

// Harness is the test execution engine.
// It drives one editor over a private in-memory library.
type Harness struct {
	store  *store.Store
	editor *engine.Editor
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
func Run(scenario *Scenario) (*Result, error) {
	return RunContext(context.Background(), scenario)
}

// RunContext executes a test scenario.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// fixed session token so traces are reproducible.
//
// Execution flow:
//  1. Create fresh in-memory library and start an editor on it
//  2. Create the sibling key maps and the scenario key map
//  3. Apply each step through the editor and check its expectations
//  4. Classify the final trigger and replay the recorded edits
//  5. Evaluate the assertions
func RunContext(ctx context.Context, scenario *Scenario) (*Result, error) {
	env, err := scenario.snapshot()
	if err != nil {
		return nil, err
	}
	initial, err := scenario.initialTrigger()
	if err != nil {
		return nil, err
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil)) // Suppress logs in tests
	ed, err := engine.New(ctx, st,
		engine.WithLogger(logger),
		engine.WithSessionGenerator(engine.NewFixedGenerator(SessionToken)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create editor: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- ed.Run(runCtx) }()
	defer func() {
		cancel()
		<-done
	}()

	h := &Harness{store: st, editor: ed, logger: logger}

	for _, sib := range scenario.Siblings {
		t, err := sib.Trigger.Trigger()
		if err != nil {
			return nil, fmt.Errorf("sibling %q: %w", sib.Name, err)
		}
		if _, err := ed.Create(ctx, sib.Name, t); err != nil {
			return nil, fmt.Errorf("failed to create sibling %q: %w", sib.Name, err)
		}
	}

	km, err := ed.Create(ctx, scenario.Name, initial)
	if err != nil {
		return nil, fmt.Errorf("failed to create key map: %w", err)
	}

	result := NewResult()
	result.Initial = initial

	km, err = h.executeSteps(ctx, km, scenario.Steps, result)
	if err != nil {
		return nil, fmt.Errorf("failed to execute steps: %w", err)
	}

	result.Final = km.Trigger
	result.KeyErrors = classify.ClassifyTrigger(km.Trigger, env)

	replayed, err := engine.Replay(ctx, st, km.ID, initial)
	switch {
	case err != nil:
		result.AddError(fmt.Sprintf("replay: %v", err))
	case replayed.Hash != km.Hash:
		result.AddError(fmt.Sprintf("replay: hash %s, editor produced %s", replayed.Hash, km.Hash))
	}
	result.Replayed = replayed.Edits

	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// executeSteps applies each step in order and returns the final key map.
// Rejections are part of the trace; any other failure aborts the run.
func (h *Harness) executeSteps(ctx context.Context, km store.KeyMap, steps []Step, result *Result) (store.KeyMap, error) {
	for i, step := range steps {
		edit := step.Edit()
		reply, err := h.editor.Submit(km.ID, edit)
		if err != nil {
			return km, fmt.Errorf("step %d: %w", i+1, err)
		}

		var res engine.Result
		select {
		case res = <-reply:
		case <-ctx.Done():
			return km, ctx.Err()
		}

		ev := TraceEvent{Step: i + 1, Edit: edit.String()}
		switch {
		case res.Err == nil && res.Changed:
			ev.Outcome = OutcomeApplied
			km = res.KeyMap
		case res.Err == nil:
			ev.Outcome = OutcomeUnchanged
		default:
			re, ok := compose.IsRejected(res.Err)
			if !ok {
				return km, fmt.Errorf("step %d (%s): %w", i+1, ev.Edit, res.Err)
			}
			ev.Outcome = OutcomeRejected
			ev.Code = string(re.Code)
		}
		ev.Revision = km.Revision
		ev.Mode = trigger.ModeOf(km.Trigger).String()
		ev.Keys = DescribeKeys(km.Trigger)

		h.logger.Debug("step", "index", ev.Step, "edit", ev.Edit, "outcome", ev.Outcome)
		result.AddStep(ev)
		checkStep(result, step, ev)
	}
	return km, nil
}

// checkStep compares a step's outcome with its expect clause. A step
// without one must not be rejected.
func checkStep(result *Result, step Step, ev TraceEvent) {
	e := step.Expect
	if e == nil || e.Rejected == "" {
		if ev.Outcome == OutcomeRejected {
			result.AddError(fmt.Sprintf("step %d (%s): unexpected rejection %s", ev.Step, ev.Edit, ev.Code))
			return
		}
	}
	if e == nil {
		return
	}

	if e.Rejected != "" {
		if ev.Outcome != OutcomeRejected {
			result.AddError(fmt.Sprintf("step %d (%s): expected rejection %s, got %s", ev.Step, ev.Edit, e.Rejected, ev.Outcome))
		} else if ev.Code != string(e.Rejected) {
			result.AddError(fmt.Sprintf("step %d (%s): expected rejection %s, got %s", ev.Step, ev.Edit, e.Rejected, ev.Code))
		}
		return
	}
	if e.Unchanged && ev.Outcome != OutcomeUnchanged {
		result.AddError(fmt.Sprintf("step %d (%s): expected no change, got %s", ev.Step, ev.Edit, ev.Outcome))
	}
	if e.Mode != "" && ev.Mode != e.Mode {
		result.AddError(fmt.Sprintf("step %d (%s): expected mode %s, got %s", ev.Step, ev.Edit, e.Mode, ev.Mode))
	}
	if e.Keys != nil && len(ev.Keys) != *e.Keys {
		result.AddError(fmt.Sprintf("step %d (%s): expected %d keys, got %d", ev.Step, ev.Edit, *e.Keys, len(ev.Keys)))
	}
}

func (s *Scenario) snapshot() (classify.Snapshot, error) {
	switch {
	case s.EnvironmentFile != "":
		return classify.LoadSnapshot(s.EnvironmentFile)
	case s.Environment != nil:
		env, err := s.Environment.Snapshot()
		if err != nil {
			return classify.Snapshot{}, fmt.Errorf("environment: %w", err)
		}
		return env, nil
	default:
		return classify.Permissive(), nil
	}
}

func (s *Scenario) initialTrigger() (trigger.Trigger, error) {
	if s.Trigger == nil {
		return trigger.New(), nil
	}
	t, err := s.Trigger.Trigger()
	if err != nil {
		return trigger.Trigger{}, fmt.Errorf("trigger: %w", err)
	}
	return t, nil
}

// DescribeKeys renders each key of t on one line.
func DescribeKeys(t trigger.Trigger) []string {
	out := make([]string, len(t.Keys))
	for i, k := range t.Keys {
		out[i] = DescribeKey(k)
	}
	return out
}

// DescribeKey renders the fields of k that composition decides, leaving
// out the uid.
func DescribeKey(k trigger.Key) string {
	switch key := k.(type) {
	case trigger.PhysicalKey:
		scan := "-"
		if key.ScanCode.Valid {
			scan = strconv.Itoa(key.ScanCode.Value)
		}
		return fmt.Sprintf("physical code=%d scan=%s device=%s click=%s scan_detect=%t consume=%t",
			key.KeyCode, scan, key.Device, key.Click, key.ScanCodeDetection, key.ConsumeEvent)
	case trigger.LowLevelKey:
		return fmt.Sprintf("low_level code=%d scan=%d device=%s click=%s scan_detect=%t",
			key.KeyCode, key.ScanCode, key.Device.Name, key.Click, key.ScanCodeDetection)
	case trigger.GestureKey:
		return fmt.Sprintf("gesture %s click=%s", key.Gesture, key.Click)
	case trigger.AssistantKey:
		return fmt.Sprintf("assistant %s click=%s", key.Assistant, key.Click)
	case trigger.OnScreenKey:
		s := fmt.Sprintf("on_screen %s click=%s", key.ButtonID, key.Click)
		if key.Button == nil {
			s += " deleted"
		}
		return s
	default:
		return fmt.Sprintf("%T", k)
	}
}
