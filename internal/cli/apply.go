package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/harness"
	"github.com/roach88/keytrigger/internal/trigger"
)

// ApplyOptions holds flags for the apply command.
type ApplyOptions struct {
	*RootOptions
	Name      string // key map to edit when the file holds several
	Out       string // write the result as a trigger document
	KeepGoing bool   // skip rejected edits instead of stopping
}

// AppliedEdit records one edit of a script.
type AppliedEdit struct {
	Edit    string `json:"edit"`
	Outcome string `json:"outcome"`
	Code    string `json:"code,omitempty"`
	Message string `json:"message,omitempty"`
}

// ApplyResult is the outcome of an edit script.
type ApplyResult struct {
	KeyMap  string          `json:"keymap"`
	Edits   []AppliedEdit   `json:"edits"`
	Trigger trigger.Trigger `json:"trigger"`
	Hash    string          `json:"hash"`
}

// NewApplyCommand creates the apply command.
func NewApplyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ApplyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "apply <keymap-file> <edits.yaml>",
		Short: "Run an edit script against a key map",
		Long: `Apply a YAML list of edits to a key map and print the result.

Each edit names an op and its arguments, exactly as in harness scenarios:

  - op: add_physical_key
    args: {key_code: VOLUME_UP}
  - op: set_long_press

A rejected edit stops the script unless --keep-going is set. The file
itself is never modified; use --out to save the result.

Exit codes:
  0 - All edits accepted
  1 - An edit was rejected
  2 - Command error (bad file, malformed edit, etc.)`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runApply(opts, args[0], args[1], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "key map to edit when the file holds several")
	cmd.Flags().StringVarP(&opts.Out, "out", "o", "", "write the result to a .json or .yaml file")
	cmd.Flags().BoolVar(&opts.KeepGoing, "keep-going", false, "skip rejected edits")

	return cmd
}

func runApply(opts *ApplyOptions, keyMapFile, scriptFile string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	km, err := loadOneKeyMap(keyMapFile, opts.Name)
	if err != nil {
		return err
	}
	edits, err := LoadEditScript(scriptFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load edit script", err)
	}

	result := ApplyResult{KeyMap: km.Name, Edits: make([]AppliedEdit, 0, len(edits))}
	t := km.Trigger
	var rejected *compose.RejectedError
	for _, edit := range edits {
		next, err := compose.Apply(t, edit, nil)
		step := AppliedEdit{Edit: edit.String()}
		if err != nil {
			re, ok := compose.IsRejected(err)
			if !ok {
				return WrapExitError(ExitCommandError, fmt.Sprintf("edit %q", step.Edit), err)
			}
			step.Outcome = harness.OutcomeRejected
			step.Code = string(re.Code)
			step.Message = re.Message
			result.Edits = append(result.Edits, step)
			if rejected == nil {
				rejected = re
			}
			if !opts.KeepGoing {
				break
			}
			continue
		}
		step.Outcome = harness.OutcomeApplied
		if trigger.Equal(next, t) {
			step.Outcome = harness.OutcomeUnchanged
		}
		result.Edits = append(result.Edits, step)
		t = next
		formatter.VerboseLog("%s: %s", step.Edit, step.Outcome)
	}

	result.Trigger = t
	if result.Hash, err = trigger.Hash(t); err != nil {
		return WrapExitError(ExitCommandError, "failed to hash trigger", err)
	}

	if opts.Out != "" {
		if err := WriteTriggerFile(opts.Out, t); err != nil {
			return WrapExitError(ExitCommandError, "failed to write result", err)
		}
	}

	if formatter.JSON() {
		if rejected != nil {
			if err := formatter.Failure(result, string(rejected.Code), rejected.Error()); err != nil {
				return err
			}
		} else if err := formatter.Success(result); err != nil {
			return err
		}
	} else {
		printApplyText(formatter.Writer, result)
	}

	if rejected != nil {
		return NewExitError(ExitFailure, rejected.Error())
	}
	return nil
}

func printApplyText(w io.Writer, r ApplyResult) {
	for _, e := range r.Edits {
		switch e.Outcome {
		case harness.OutcomeRejected:
			fmt.Fprintf(w, "✗ %s\n  %s: %s\n", e.Edit, e.Code, e.Message)
		case harness.OutcomeUnchanged:
			fmt.Fprintf(w, "= %s\n", e.Edit)
		default:
			fmt.Fprintf(w, "✓ %s\n", e.Edit)
		}
	}
	fmt.Fprintln(w)
	printTrigger(w, r.KeyMap, r.Trigger)
}

// printTrigger renders a trigger in the text format shared by apply,
// library show and the shell.
func printTrigger(w io.Writer, name string, t trigger.Trigger) {
	fmt.Fprintf(w, "%s: %s\n", name, trigger.ModeOf(t))
	for i, k := range harness.DescribeKeys(t) {
		fmt.Fprintf(w, "  [%d] %s uid=%s\n", i, k, t.Keys[i].KeyUID())
	}
}

// loadOneKeyMap loads a file and picks a key map from it. A file with a
// single key map needs no name.
func loadOneKeyMap(path, name string) (LoadedKeyMap, error) {
	result, errs := LoadKeyMaps(path, LoadModeFailFast)
	if len(errs) > 0 {
		return LoadedKeyMap{}, WrapExitError(ExitCommandError, "failed to load key maps", errs[0])
	}
	if name != "" {
		km, ok := result.Find(name)
		if !ok {
			return LoadedKeyMap{}, NewExitError(ExitCommandError, fmt.Sprintf("key map %q not found in %s", name, path))
		}
		return km, nil
	}
	if len(result.KeyMaps) != 1 {
		names := make([]string, len(result.KeyMaps))
		for i, km := range result.KeyMaps {
			names[i] = km.Name
		}
		return LoadedKeyMap{}, NewExitError(ExitCommandError,
			fmt.Sprintf("%s holds %d key maps (%s); pick one with --name", path, len(names), strings.Join(names, ", ")))
	}
	return result.KeyMaps[0], nil
}

// LoadEditScript reads a YAML list of edits. Unknown fields and unknown
// ops are rejected.
func LoadEditScript(path string) ([]compose.Edit, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var edits []compose.Edit
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&edits); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	known := make(map[string]bool)
	for _, op := range compose.Ops() {
		known[op] = true
	}
	for i, e := range edits {
		if !known[e.Op] {
			return nil, fmt.Errorf("%s: edits[%d]: unknown op %q", path, i, e.Op)
		}
	}
	return edits, nil
}

// WriteTriggerFile writes t as a JSON or YAML trigger document, picked by
// extension.
func WriteTriggerFile(path string, t trigger.Trigger) error {
	var data []byte
	var err error
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		data, err = json.MarshalIndent(t, "", "  ")
		data = append(data, '\n')
	case ".yaml", ".yml":
		data, err = yaml.Marshal(t)
	default:
		return fmt.Errorf("unsupported output extension %q", filepath.Ext(path))
	}
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
