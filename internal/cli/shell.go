package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/roach88/keytrigger/internal/classify"
	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/config"
	"github.com/roach88/keytrigger/internal/engine"
	"github.com/roach88/keytrigger/internal/store"
	"github.com/roach88/keytrigger/internal/trigger"
)

// ShellOptions holds flags for the shell command.
type ShellOptions struct {
	*RootOptions
	Create bool
	Env    string
}

// NewShellCommand creates the shell command.
func NewShellCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ShellOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "shell <name>",
		Short: "Edit a library key map interactively",
		Long: `Open an interactive editor on one key map of the library.

Type an edit as "op name=value ...", for example:

  add_physical_key key_code=VOLUME_UP
  set_long_press
  set_key_click_type index=0 click_type=double_press

Every edit goes through the same rules and history as any other editor.
Other commands: show, errors, history, ops, help, quit.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(opts, args[0], cmd)
		},
	}

	cmd.Flags().BoolVar(&opts.Create, "create", false, "create the key map if it does not exist")
	cmd.Flags().StringVar(&opts.Env, "env", "", "environment snapshot for the errors command")

	return cmd
}

func runShell(opts *ShellOptions, name string, cmd *cobra.Command) error {
	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	env := classify.Permissive()
	snapshotPath := opts.Env
	if snapshotPath == "" && opts.Config != nil {
		snapshotPath = opts.Config.Environment.Snapshot
	}
	if snapshotPath != "" {
		var err error
		if env, err = classify.LoadSnapshot(snapshotPath); err != nil {
			return WrapExitError(ExitCommandError, "failed to load environment snapshot", err)
		}
	}

	return withLibrary(opts.RootOptions, func(st *store.Store) error {
		sh, stop, err := startShell(ctx, opts.RootOptions, st, name, opts.Create, cmd.OutOrStdout())
		if err != nil {
			return err
		}
		defer stop()
		sh.env = env

		historyFile := ""
		if err := os.MkdirAll(config.DataDir(), 0o755); err == nil {
			historyFile = filepath.Join(config.DataDir(), "shell_history")
		}
		rl, err := readline.NewEx(&readline.Config{
			Prompt:          name + "> ",
			HistoryFile:     historyFile,
			AutoComplete:    shellCompleter(),
			InterruptPrompt: "^C",
			EOFPrompt:       "quit",
			Stdout:          cmd.OutOrStdout(),
			Stderr:          cmd.ErrOrStderr(),
		})
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to start line editor", err)
		}
		defer rl.Close()

		return sh.Run(ctx, rl)
	})
}

// startShell starts an editor on the library and opens the named key map.
// The returned stop function ends the editor and waits for it.
func startShell(ctx context.Context, opts *RootOptions, st *store.Store, name string, create bool, out io.Writer) (*Shell, func(), error) {
	editorOpts := []engine.Option{}
	if opts.Logger != nil {
		editorOpts = append(editorOpts, engine.WithLogger(opts.Logger))
	}
	if opts.Config != nil {
		editorOpts = append(editorOpts, engine.WithQueueHint(opts.Config.Editor.QueueHint))
	}
	ed, err := engine.New(ctx, st, editorOpts...)
	if err != nil {
		return nil, nil, WrapExitError(ExitCommandError, "failed to start editor", err)
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan error, 1)
	go func() { done <- ed.Run(runCtx) }()
	stop := func() {
		cancel()
		<-done
	}

	km, err := st.GetByName(ctx, name)
	switch {
	case errors.Is(err, store.ErrNotFound) && create:
		km, err = ed.Create(ctx, name, trigger.New())
		if err != nil {
			stop()
			return nil, nil, WrapExitError(ExitCommandError, "failed to create key map", err)
		}
	case errors.Is(err, store.ErrNotFound):
		stop()
		return nil, nil, NewExitError(ExitCommandError, fmt.Sprintf("key map %q not found (use --create)", name))
	case err != nil:
		stop()
		return nil, nil, WrapExitError(ExitCommandError, "failed to read library", err)
	}

	return &Shell{
		out:    out,
		editor: ed,
		store:  st,
		id:     km.ID,
		name:   km.Name,
		env:    classify.Permissive(),
	}, stop, nil
}

// LineReader reads one line of input. *readline.Instance satisfies it.
type LineReader interface {
	Readline() (string, error)
}

// Shell is an interactive editing session on one key map.
type Shell struct {
	out    io.Writer
	editor *engine.Editor
	store  *store.Store
	id     string
	name   string
	env    classify.Snapshot
}

// Run reads commands until quit, end of input or ctx is done.
func (s *Shell) Run(ctx context.Context, in LineReader) error {
	fmt.Fprintf(s.out, "Editing %s. Type help for commands.\n", s.name)
	for {
		if err := ctx.Err(); err != nil {
			return nil
		}
		line, err := in.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "read input", err)
		}

		quit, err := s.Exec(ctx, line)
		if err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
		if quit {
			return nil
		}
	}
}

// Exec runs one command line and reports whether the session should end.
// Rejected edits are printed, not returned.
func (s *Shell) Exec(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return false, nil
	}

	switch fields[0] {
	case "quit", "exit":
		return true, nil
	case "help":
		s.help()
	case "ops":
		fmt.Fprintln(s.out, strings.Join(compose.Ops(), "\n"))
	case "show":
		km, err := s.editor.Load(ctx, s.id)
		if err != nil {
			return false, err
		}
		printTrigger(s.out, km.Name, km.Trigger)
		printOptions(s.out, km.Trigger)
	case "errors":
		km, err := s.editor.Load(ctx, s.id)
		if err != nil {
			return false, err
		}
		kc := classifyOne(namedTrigger{name: km.Name, trigger: km.Trigger}, s.env)
		if len(kc.Errors) == 0 {
			fmt.Fprintln(s.out, "no errors")
		}
		for _, e := range kc.Errors {
			fmt.Fprintf(s.out, "[%d] %s (remedy: %s)\n", e.Index, e.Error, e.Remedy)
		}
	case "history":
		records, err := s.store.Edits(ctx, s.id)
		if err != nil {
			return false, err
		}
		for _, rec := range records {
			fmt.Fprintf(s.out, "%6d  %s\n", rec.Revision, rec.Edit)
		}
	default:
		edit, err := ParseEditLine(fields)
		if err != nil {
			return false, err
		}
		return false, s.apply(ctx, edit)
	}
	return false, nil
}

func (s *Shell) apply(ctx context.Context, edit compose.Edit) error {
	reply, err := s.editor.Submit(s.id, edit)
	if err != nil {
		return err
	}
	var res engine.Result
	select {
	case res = <-reply:
	case <-ctx.Done():
		return ctx.Err()
	}

	if re, ok := compose.IsRejected(res.Err); ok {
		fmt.Fprintf(s.out, "rejected %s: %s\n", re.Code, re.Message)
		return nil
	}
	if res.Err != nil {
		return res.Err
	}
	if !res.Changed {
		fmt.Fprintln(s.out, "unchanged")
		return nil
	}
	fmt.Fprintf(s.out, "revision %d\n", res.KeyMap.Revision)
	printTrigger(s.out, res.KeyMap.Name, res.KeyMap.Trigger)
	return nil
}

func (s *Shell) help() {
	fmt.Fprintln(s.out, `Commands:
  <op> name=value ...   apply an edit (see ops)
  show                  print the key map
  errors                classify the keys against the environment
  history               print the recorded edits
  ops                   list edit ops
  quit                  leave the shell`)
}

// ParseEditLine parses "op name=value ..." into an edit. Values that read
// as booleans or integers are typed; everything else stays a string.
func ParseEditLine(fields []string) (compose.Edit, error) {
	edit := compose.Edit{Op: fields[0]}
	for _, f := range fields[1:] {
		name, value, ok := strings.Cut(f, "=")
		if !ok || name == "" {
			return compose.Edit{}, fmt.Errorf("argument %q is not name=value", f)
		}
		if edit.Args == nil {
			edit.Args = make(map[string]any)
		}
		edit.Args[name] = parseArgValue(value)
	}
	return edit, nil
}

func parseArgValue(v string) any {
	if b, err := strconv.ParseBool(v); err == nil && (v == "true" || v == "false") {
		return b
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return v
}

func shellCompleter() *readline.PrefixCompleter {
	items := []readline.PrefixCompleterInterface{
		readline.PcItem("show"),
		readline.PcItem("errors"),
		readline.PcItem("history"),
		readline.PcItem("ops"),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	}
	for _, op := range compose.Ops() {
		items = append(items, readline.PcItem(op))
	}
	return readline.NewPrefixCompleter(items...)
}
