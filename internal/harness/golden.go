package harness

import (
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/keytrigger/internal/trigger"
)

// FormatTrace renders a result as the plain text stored in golden files.
// Uids and hashes are left out so the text only changes when composition
// behavior does.
func FormatTrace(name string, r *Result) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "scenario: %s\n", name)
	fmt.Fprintf(&b, "initial: %s\n", trigger.ModeOf(r.Initial))
	writeKeys(&b, DescribeKeys(r.Initial))

	for _, ev := range r.Trace {
		fmt.Fprintf(&b, "step %d: %s\n", ev.Step, ev.Edit)
		switch ev.Outcome {
		case OutcomeApplied:
			fmt.Fprintf(&b, "  applied revision=%d\n", ev.Revision)
			fmt.Fprintf(&b, "  mode: %s\n", ev.Mode)
			writeKeys(&b, ev.Keys)
		case OutcomeRejected:
			fmt.Fprintf(&b, "  rejected %s\n", ev.Code)
		default:
			fmt.Fprintf(&b, "  %s\n", ev.Outcome)
		}
	}

	if len(r.KeyErrors) == 0 {
		b.WriteString("errors: none\n")
	} else {
		b.WriteString("errors:\n")
		for _, ke := range r.KeyErrors {
			fmt.Fprintf(&b, "  key[%d]: %s remedy=%s\n", ke.Index, ke.Error, ke.Error.Remedy())
		}
	}
	fmt.Fprintf(&b, "replay: %d edits\n", r.Replayed)
	return []byte(b.String())
}

func writeKeys(b *strings.Builder, keys []string) {
	for i, k := range keys {
		fmt.Fprintf(b, "  key[%d]: %s\n", i, k)
	}
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	AssertGolden(t, scenario.Name, result)
	return result, nil
}

// AssertGolden compares an existing result against its golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, FormatTrace(scenarioName, result))
}
