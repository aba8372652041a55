package harness

import (
	"github.com/roach88/keytrigger/internal/classify"
	"github.com/roach88/keytrigger/internal/trigger"
)

// Step outcomes recorded in the trace.
const (
	OutcomeApplied   = "applied"
	OutcomeUnchanged = "unchanged"
	OutcomeRejected  = "rejected"
)

// TraceEvent records one step and the trigger it left behind.
type TraceEvent struct {
	Step     int      `json:"step"`
	Edit     string   `json:"edit"`
	Outcome  string   `json:"outcome"`
	Code     string   `json:"code,omitempty"`
	Revision int64    `json:"revision"`
	Mode     string   `json:"mode"`
	Keys     []string `json:"keys"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	Pass bool `json:"pass"`

	// Initial is the trigger the scenario started from.
	Initial trigger.Trigger `json:"initial"`

	// Trace holds one event per step, in order.
	Trace []TraceEvent `json:"trace"`

	// Final is the trigger after the last step.
	Final trigger.Trigger `json:"final"`

	// KeyErrors classifies Final against the scenario environment.
	KeyErrors []classify.KeyError `json:"key_errors,omitempty"`

	// Replayed is the number of edits the replay check re-applied.
	Replayed int `json:"replayed"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddStep appends a step to the trace.
func (r *Result) AddStep(ev TraceEvent) {
	r.Trace = append(r.Trace, ev)
}
