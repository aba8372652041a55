package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/roach88/keytrigger/internal/config"
)

const defaultWatchDebounce = 200 * time.Millisecond

// WatchOptions holds flags for the watch command.
type WatchOptions struct {
	*RootOptions
	Debounce time.Duration
}

// NewWatchCommand creates the watch command.
func NewWatchCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &WatchOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Re-validate key maps whenever they change",
		Long: `Validate the key maps in a directory, then validate again each time a
key map file is written, created, renamed or removed.

Runs until interrupted. Validation failures are reported and watching
continues.

Examples:
  keytrigger watch ./keymaps
  keytrigger watch ./keymaps --debounce 1s`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatch(opts, args[0], cmd)
		},
	}

	cmd.Flags().DurationVar(&opts.Debounce, "debounce", defaultWatchDebounce, "quiet period before re-validating")

	return cmd
}

func runWatch(opts *WatchOptions, dir string, cmd *cobra.Command) error {
	info, err := os.Stat(dir)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot watch "+dir, err)
	}
	if !info.IsDir() {
		return NewExitError(ExitCommandError, dir+" is not a directory")
	}

	ctx, cancel := context.WithCancel(commandContext(cmd))
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	go func() {
		select {
		case sig := <-sigChan:
			slog.Info("received signal, stopping watch", "signal", sig)
			cancel()
		case <-ctx.Done():
		}
	}()

	if stop := watchConfig(ctx, opts.RootOptions); stop != nil {
		defer stop()
	}

	w := &DirWatcher{
		Dir:       dir,
		Debounce:  opts.Debounce,
		Formatter: opts.formatter(cmd),
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Watching %s. Press Ctrl-C to stop.\n", dir)
	return w.Run(ctx)
}

// watchConfig reloads the configuration file while the watch runs, so a
// log level change takes effect without a restart. It returns nil when
// there is no file to watch.
func watchConfig(ctx context.Context, opts *RootOptions) func() {
	path := opts.ConfigPath
	if path == "" {
		path = config.Path()
	}
	if _, err := os.Stat(path); err != nil {
		return nil
	}

	l := config.NewLoader(path)
	if _, err := l.Load(); err != nil {
		slog.Warn("config not watched", "path", path, "error", err)
		return nil
	}
	l.OnChange(func(cfg *config.Config) {
		opts.applyConfig(cfg)
		slog.Info("config reloaded", "path", path, "log_level", cfg.Log.Level)
	})
	if err := l.Watch(); err != nil {
		slog.Warn("config not watched", "path", path, "error", err)
		return nil
	}

	go func() {
		for {
			select {
			case err := <-l.Errors():
				slog.Warn("config reload failed", "path", path, "error", err)
			case <-ctx.Done():
				return
			}
		}
	}()
	return func() { _ = l.Close() }
}

// DirWatcher re-validates the key maps in Dir after they change.
type DirWatcher struct {
	Dir       string
	Debounce  time.Duration
	Formatter *OutputFormatter

	// OnReport, when set, is called with every validation report after
	// it is printed.
	OnReport func(ValidationResult)
}

// Run validates once and then after every burst of changes, until ctx is
// done.
func (w *DirWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to create watcher", err)
	}
	defer watcher.Close()

	if err := watcher.Add(w.Dir); err != nil {
		return WrapExitError(ExitCommandError, "failed to watch "+w.Dir, err)
	}

	w.validate()

	debounce := w.Debounce
	if debounce <= 0 {
		debounce = defaultWatchDebounce
	}
	timer := time.NewTimer(debounce)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isKeyMapFile(filepath.Base(event.Name)) {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("key map changed", "file", event.Name, "op", event.Op.String())
			timer.Reset(debounce)

		case <-timer.C:
			w.validate()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "dir", w.Dir, "error", err)
		}
	}
}

func (w *DirWatcher) validate() {
	report, _, err := checkKeyMaps(w.Dir)
	if err != nil {
		le := asLoadError(err)
		report = ValidationResult{KeyMaps: []string{}, Errors: []*LoadError{le}}
	}
	w.print(report)
	if w.OnReport != nil {
		w.OnReport(report)
	}
}

func (w *DirWatcher) print(report ValidationResult) {
	f := w.Formatter
	if f.JSON() {
		if report.Valid {
			_ = f.Success(report)
		} else {
			_ = f.Failure(report, report.Errors[0].Code, report.Errors[0].Message)
		}
		return
	}

	stamp := time.Now().Format(time.TimeOnly)
	if report.Valid {
		fmt.Fprintf(f.Writer, "[%s] ✓ %d key map(s) valid\n", stamp, len(report.KeyMaps))
		return
	}
	fmt.Fprintf(f.Writer, "[%s] ✗ %d error(s)\n", stamp, len(report.Errors))
	printLoadErrors(f.Writer, report.Errors)
}

func printLoadErrors(w io.Writer, errs []*LoadError) {
	for _, e := range errs {
		fmt.Fprintf(w, "  %s\n", e.Error())
	}
}
