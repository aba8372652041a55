package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/keytrigger/internal/classify"
	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/trigger"
)

// Scenario is a scripted editing session. It starts from an initial
// trigger, applies edits one at a time through the editor and checks the
// final trigger and its classification against an environment snapshot.
type Scenario struct {
	// Name uniquely identifies this scenario and names its golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Trigger is the starting trigger. Omitted means empty.
	Trigger *trigger.Document `yaml:"trigger,omitempty"`

	// Siblings are other key maps in the library. They take part in the
	// scan code detection default.
	Siblings []Sibling `yaml:"siblings,omitempty"`

	// Environment is the snapshot the final trigger is classified
	// against. Omitted facts are permissive.
	Environment *classify.SnapshotDocument `yaml:"environment,omitempty"`

	// EnvironmentFile loads the snapshot from a file instead. Relative
	// paths resolve against the scenario file.
	EnvironmentFile string `yaml:"environment_file,omitempty"`

	// Steps are applied in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the final trigger and classification.
	Assertions []Assertion `yaml:"assertions"`
}

// Sibling is another named key map in the library.
type Sibling struct {
	Name    string           `yaml:"name"`
	Trigger trigger.Document `yaml:"trigger"`
}

// Step is one edit.
type Step struct {
	Op     string         `yaml:"op"`
	Args   map[string]any `yaml:"args,omitempty"`
	Expect *StepExpect    `yaml:"expect,omitempty"`
}

// Edit returns the step as an edit.
func (s Step) Edit() compose.Edit {
	return compose.Edit{Op: s.Op, Args: s.Args}
}

// StepExpect constrains a single step.
type StepExpect struct {
	// Rejected is the expected rejection code. Empty means the edit must
	// be accepted.
	Rejected compose.RejectionCode `yaml:"rejected,omitempty"`

	// Unchanged requires an accepted edit to leave the trigger as it was.
	Unchanged bool `yaml:"unchanged,omitempty"`

	// Mode is the expected mode after the step, e.g. "parallel(short_press)".
	Mode string `yaml:"mode,omitempty"`

	// Keys is the expected key count after the step. Nil skips the check.
	Keys *int `yaml:"keys,omitempty"`
}

// Assertion validates the final state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Mode is the expected mode (mode).
	Mode string `yaml:"mode,omitempty"`

	// Count is the expected key count (key_count).
	Count int `yaml:"count,omitempty"`

	// Index addresses a key (key, key_error).
	Index int `yaml:"index,omitempty"`

	// Expect holds expected key fields (key): type, click_type, key_code,
	// scan_code_detection, consume_event.
	Expect map[string]any `yaml:"expect,omitempty"`

	// Error is the expected classification (key_error).
	Error classify.TriggerError `yaml:"error,omitempty"`

	// Option names an option and Value its expected value (option).
	Option string `yaml:"option,omitempty"`
	Value  any    `yaml:"value,omitempty"`
}

// Assertion type constants.
const (
	AssertMode     = "mode"
	AssertKeyCount = "key_count"
	AssertKey      = "key"
	AssertKeyError = "key_error"
	AssertNoErrors = "no_errors"
	AssertOption   = "option"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	return LoadScenarioWithBasePath(path, filepath.Dir(path))
}

// LoadScenarioWithBasePath reads and parses a scenario YAML file,
// resolving the environment file relative to basePath.
func LoadScenarioWithBasePath(path, basePath string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	s, err := ParseScenario(data)
	if err != nil {
		return nil, err
	}

	if s.EnvironmentFile != "" && !filepath.IsAbs(s.EnvironmentFile) && basePath != "" {
		s.EnvironmentFile = filepath.Join(basePath, s.EnvironmentFile)
	}
	if s.EnvironmentFile != "" {
		if _, err := os.Stat(s.EnvironmentFile); os.IsNotExist(err) {
			return nil, fmt.Errorf("invalid scenario: environment file not found: %s", s.EnvironmentFile)
		}
	}
	return s, nil
}

// ParseScenario parses scenario YAML with strict field checking.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}
	if s.Environment != nil && s.EnvironmentFile != "" {
		return fmt.Errorf("environment and environment_file are mutually exclusive")
	}

	names := make(map[string]bool, len(s.Siblings))
	for i, sib := range s.Siblings {
		if sib.Name == "" {
			return fmt.Errorf("siblings[%d]: name is required", i)
		}
		if sib.Name == s.Name || names[sib.Name] {
			return fmt.Errorf("siblings[%d]: duplicate name %q", i, sib.Name)
		}
		names[sib.Name] = true
	}

	known := make(map[string]bool)
	for _, op := range compose.Ops() {
		known[op] = true
	}
	for i, step := range s.Steps {
		if step.Op == "" {
			return fmt.Errorf("steps[%d]: op is required", i)
		}
		if !known[step.Op] {
			return fmt.Errorf("steps[%d]: unknown op %q", i, step.Op)
		}
		if e := step.Expect; e != nil && e.Rejected != "" && (e.Unchanged || e.Mode != "" || e.Keys != nil) {
			return fmt.Errorf("steps[%d].expect: rejected cannot be combined with other expectations", i)
		}
	}

	for i := range s.Assertions {
		if err := validateAssertion(i, &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	switch a.Type {
	case "":
		return fmt.Errorf("assertions[%d]: type is required", index)
	case AssertMode:
		if a.Mode == "" {
			return fmt.Errorf("assertions[%d]: mode is required for mode", index)
		}
	case AssertKeyCount:
		if a.Count < 0 {
			return fmt.Errorf("assertions[%d]: count must be non-negative for key_count", index)
		}
	case AssertKey:
		if len(a.Expect) == 0 {
			return fmt.Errorf("assertions[%d]: expect is required for key", index)
		}
	case AssertKeyError:
		if a.Error == "" {
			return fmt.Errorf("assertions[%d]: error is required for key_error", index)
		}
	case AssertNoErrors:
	case AssertOption:
		if a.Option == "" {
			return fmt.Errorf("assertions[%d]: option is required for option", index)
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
