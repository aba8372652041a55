package cli

import (
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/roach88/keytrigger/internal/classify"
	"github.com/roach88/keytrigger/internal/harness"
	"github.com/roach88/keytrigger/internal/store"
	"github.com/roach88/keytrigger/internal/trigger"
)

// ClassifyOptions holds flags for the classify command.
type ClassifyOptions struct {
	*RootOptions
	Name string // classify one key map of the file
	Env  string // environment snapshot file
	All  bool   // classify every key map in the library
}

// KeyClassification is the error of one key.
type KeyClassification struct {
	Index  int                   `json:"index"`
	UID    string                `json:"uid"`
	Key    string                `json:"key"`
	Error  classify.TriggerError `json:"error"`
	Remedy classify.Remedy       `json:"remedy"`
}

// KeyMapClassification holds the failing keys of one key map.
type KeyMapClassification struct {
	Name   string              `json:"name"`
	Errors []KeyClassification `json:"errors"`
}

// ClassifyResult holds the classification of every key map.
type ClassifyResult struct {
	KeyMaps []KeyMapClassification `json:"keymaps"`
	Errors  int                    `json:"errors"`
}

// NewClassifyCommand creates the classify command.
func NewClassifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ClassifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "classify [keymap-file]",
		Short: "Report which keys cannot work in an environment",
		Long: `Classify every key of one or more key maps against an environment
snapshot and report the errors the app would show, with their fix-it kind.

The snapshot comes from --env, then environment.snapshot in the config.
Without either every fact is permissive. Facts left out of a snapshot are
permissive too.

Exit codes:
  0 - No key has an error
  1 - At least one key has an error
  2 - Command error

Examples:
  keytrigger classify ./keymaps/volume.yaml --env ./phone.yaml
  keytrigger classify --all --env ./phone.yaml --format json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.All == (len(args) == 1) {
				return NewExitError(ExitCommandError, "give either a key map file or --all")
			}
			file := ""
			if len(args) == 1 {
				file = args[0]
			}
			return runClassify(opts, file, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Name, "name", "", "classify one key map of the file")
	cmd.Flags().StringVar(&opts.Env, "env", "", "environment snapshot (yaml or json)")
	cmd.Flags().BoolVar(&opts.All, "all", false, "classify every key map in the library")

	return cmd
}

// namedTrigger is a key map reduced to what classification needs.
type namedTrigger struct {
	name    string
	trigger trigger.Trigger
}

func runClassify(opts *ClassifyOptions, file string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	env, err := opts.snapshot()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load environment snapshot", err)
	}

	var targets []namedTrigger
	if opts.All {
		targets, err = libraryTriggers(ctx, opts.Database)
	} else {
		targets, err = fileTriggers(file, opts.Name)
	}
	if err != nil {
		return err
	}
	formatter.VerboseLog("Classifying %d key map(s)", len(targets))

	result, err := classifyAll(ctx, targets, env)
	if err != nil {
		return WrapExitError(ExitCommandError, "classification failed", err)
	}

	if formatter.JSON() {
		if result.Errors > 0 {
			err = formatter.Failure(result, string(result.KeyMaps[firstFailing(result)].Errors[0].Error),
				fmt.Sprintf("%d key(s) cannot work", result.Errors))
		} else {
			err = formatter.Success(result)
		}
		if err != nil {
			return err
		}
	} else {
		printClassifyText(formatter.Writer, result)
	}

	if result.Errors > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d key(s) cannot work", result.Errors))
	}
	return nil
}

func (o *ClassifyOptions) snapshot() (classify.Snapshot, error) {
	path := o.Env
	if path == "" && o.Config != nil {
		path = o.Config.Environment.Snapshot
	}
	if path == "" {
		return classify.Permissive(), nil
	}
	return classify.LoadSnapshot(path)
}

// classifyAll classifies the targets concurrently and returns the results
// in target order.
func classifyAll(ctx context.Context, targets []namedTrigger, env classify.Snapshot) (ClassifyResult, error) {
	out := make([]KeyMapClassification, len(targets))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, target := range targets {
		i, target := i, target
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			out[i] = classifyOne(target, env)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return ClassifyResult{}, err
	}

	result := ClassifyResult{KeyMaps: out}
	for _, km := range out {
		result.Errors += len(km.Errors)
	}
	return result, nil
}

func classifyOne(target namedTrigger, env classify.Snapshot) KeyMapClassification {
	kc := KeyMapClassification{Name: target.name, Errors: []KeyClassification{}}
	for _, ke := range classify.ClassifyTrigger(target.trigger, env) {
		kc.Errors = append(kc.Errors, KeyClassification{
			Index:  ke.Index,
			UID:    ke.UID,
			Key:    harness.DescribeKey(target.trigger.Keys[ke.Index]),
			Error:  ke.Error,
			Remedy: ke.Error.Remedy(),
		})
	}
	return kc
}

func firstFailing(r ClassifyResult) int {
	for i, km := range r.KeyMaps {
		if len(km.Errors) > 0 {
			return i
		}
	}
	return 0
}

func printClassifyText(w io.Writer, r ClassifyResult) {
	for _, km := range r.KeyMaps {
		if len(km.Errors) == 0 {
			fmt.Fprintf(w, "✓ %s\n", km.Name)
			continue
		}
		fmt.Fprintf(w, "✗ %s\n", km.Name)
		for _, e := range km.Errors {
			fmt.Fprintf(w, "  [%d] %s\n      %s (remedy: %s)\n", e.Index, e.Key, e.Error, e.Remedy)
		}
	}
}

func fileTriggers(path, name string) ([]namedTrigger, error) {
	if name != "" {
		km, err := loadOneKeyMap(path, name)
		if err != nil {
			return nil, err
		}
		return []namedTrigger{{name: km.Name, trigger: km.Trigger}}, nil
	}
	result, errs := LoadKeyMaps(path, LoadModeFailFast)
	if len(errs) > 0 {
		return nil, WrapExitError(ExitCommandError, "failed to load key maps", errs[0])
	}
	out := make([]namedTrigger, len(result.KeyMaps))
	for i, km := range result.KeyMaps {
		out[i] = namedTrigger{name: km.Name, trigger: km.Trigger}
	}
	return out, nil
}

func libraryTriggers(ctx context.Context, dbPath string) ([]namedTrigger, error) {
	st, err := openLibrary(dbPath)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	kms, err := st.List(ctx)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to list key maps", err)
	}
	out := make([]namedTrigger, len(kms))
	for i, km := range kms {
		out[i] = namedTrigger{name: km.Name, trigger: km.Trigger}
	}
	return out, nil
}

// openLibrary opens the key-map library at path.
func openLibrary(path string) (*store.Store, error) {
	if path == "" {
		return nil, NewExitError(ExitCommandError, "no library configured: set --db or store.path")
	}
	st, err := store.Open(path)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open library", err)
	}
	return st, nil
}

// commandContext returns the command's context, or Background when the
// command was executed without one.
func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
