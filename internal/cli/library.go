package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/roach88/keytrigger/internal/engine"
	"github.com/roach88/keytrigger/internal/store"
	"github.com/roach88/keytrigger/internal/trigger"
)

// NewLibraryCommand creates the library command and its subcommands.
func NewLibraryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "library",
		Short: "Manage the key-map library",
		Long: `Manage the SQLite key-map library.

The library is --db, or store.path from the config file.`,
	}

	cmd.AddCommand(newLibraryImportCommand(rootOpts))
	cmd.AddCommand(newLibraryListCommand(rootOpts))
	cmd.AddCommand(newLibraryShowCommand(rootOpts))
	cmd.AddCommand(newLibraryRemoveCommand(rootOpts))
	cmd.AddCommand(newLibraryHistoryCommand(rootOpts))
	cmd.AddCommand(newLibraryReplayCommand(rootOpts))

	return cmd
}

// KeyMapSummary is one row of library list.
type KeyMapSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Mode     string `json:"mode"`
	Keys     int    `json:"keys"`
	Revision int64  `json:"revision"`
	Hash     string `json:"hash"`
}

func summarize(km store.KeyMap) KeyMapSummary {
	return KeyMapSummary{
		ID:       km.ID,
		Name:     km.Name,
		Mode:     trigger.ModeOf(km.Trigger).String(),
		Keys:     len(km.Trigger.Keys),
		Revision: km.Revision,
		Hash:     km.Hash,
	}
}

// withLibrary opens the configured library for the duration of fn.
func withLibrary(opts *RootOptions, fn func(st *store.Store) error) error {
	st, err := openLibrary(opts.Database)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := st.Close(); closeErr != nil {
			slog.Error("error closing library", "error", closeErr)
		}
	}()
	return fn(st)
}

// getByName looks a key map up by name and maps a miss to exit code 2.
func getByName(ctx context.Context, st *store.Store, name string) (store.KeyMap, error) {
	km, err := st.GetByName(ctx, name)
	if errors.Is(err, store.ErrNotFound) {
		return store.KeyMap{}, NewExitError(ExitCommandError, fmt.Sprintf("key map %q not found", name))
	}
	if err != nil {
		return store.KeyMap{}, WrapExitError(ExitCommandError, "failed to read library", err)
	}
	return km, nil
}

// ============================================================================
// import
// ============================================================================

// ImportedKeyMap reports what import did with one key map.
type ImportedKeyMap struct {
	Name    string `json:"name"`
	ID      string `json:"id"`
	Outcome string `json:"outcome"` // "created", "replaced" or "unchanged"
}

func newLibraryImportCommand(rootOpts *RootOptions) *cobra.Command {
	var replace bool

	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Import key maps from files",
		Long: `Validate key maps from a file or directory and add them to the library.

A key map whose name is already in the library is left alone when its
trigger is identical. A different trigger is an error unless --replace is
set, which drops the old key map together with its edit history.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLibraryImport(rootOpts, args[0], replace, cmd)
		},
	}
	cmd.Flags().BoolVar(&replace, "replace", false, "replace key maps whose trigger differs")
	return cmd
}

func runLibraryImport(opts *RootOptions, path string, replace bool, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	result, errs := LoadKeyMaps(path, LoadModeFailFast)
	if len(errs) > 0 {
		return WrapExitError(ExitCommandError, "failed to load key maps", errs[0])
	}

	var imported []ImportedKeyMap
	err := withLibrary(opts, func(st *store.Store) error {
		for _, km := range result.KeyMaps {
			ik, err := importKeyMap(ctx, st, km, replace)
			if err != nil {
				return err
			}
			formatter.VerboseLog("%s: %s", ik.Name, ik.Outcome)
			imported = append(imported, ik)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if formatter.JSON() {
		return formatter.Success(imported)
	}
	for _, ik := range imported {
		fmt.Fprintf(formatter.Writer, "%-9s %s\n", ik.Outcome, ik.Name)
	}
	return nil
}

func importKeyMap(ctx context.Context, st *store.Store, km LoadedKeyMap, replace bool) (ImportedKeyMap, error) {
	ik := ImportedKeyMap{Name: km.Name}
	hash, err := trigger.Hash(km.Trigger)
	if err != nil {
		return ik, WrapExitError(ExitCommandError, "failed to hash "+km.Name, err)
	}

	existing, err := st.GetByName(ctx, km.Name)
	switch {
	case err == nil && existing.Hash == hash:
		ik.ID = existing.ID
		ik.Outcome = "unchanged"
		return ik, nil
	case err == nil && !replace:
		return ik, NewExitError(ExitFailure, fmt.Sprintf("key map %q already exists with a different trigger (use --replace)", km.Name))
	case err == nil:
		if err := st.Delete(ctx, existing.ID); err != nil {
			return ik, WrapExitError(ExitCommandError, "failed to write library", err)
		}
		ik.Outcome = "replaced"
	case errors.Is(err, store.ErrNotFound):
		ik.Outcome = "created"
	default:
		return ik, WrapExitError(ExitCommandError, "failed to read library", err)
	}

	ik.ID = uuid.Must(uuid.NewV7()).String()
	if _, err := st.Put(ctx, store.KeyMap{ID: ik.ID, Name: km.Name, Trigger: km.Trigger}); err != nil {
		return ik, WrapExitError(ExitCommandError, "failed to write library", err)
	}
	return ik, nil
}

// ============================================================================
// list, show, rm
// ============================================================================

func newLibraryListCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List key maps in insertion order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			return withLibrary(rootOpts, func(st *store.Store) error {
				kms, err := st.List(commandContext(cmd))
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to list key maps", err)
				}
				rows := make([]KeyMapSummary, len(kms))
				for i, km := range kms {
					rows[i] = summarize(km)
				}
				if formatter.JSON() {
					return formatter.Success(rows)
				}
				if len(rows) == 0 {
					fmt.Fprintln(formatter.Writer, "Library is empty.")
					return nil
				}
				for _, r := range rows {
					fmt.Fprintf(formatter.Writer, "%-24s %-22s keys=%d rev=%d\n", r.Name, r.Mode, r.Keys, r.Revision)
				}
				return nil
			})
		},
	}
}

// KeyMapDetail is the output of library show.
type KeyMapDetail struct {
	KeyMapSummary
	Trigger trigger.Trigger `json:"trigger"`
}

func newLibraryShowCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show <name>",
		Short: "Show one key map",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			return withLibrary(rootOpts, func(st *store.Store) error {
				km, err := getByName(commandContext(cmd), st, args[0])
				if err != nil {
					return err
				}
				if formatter.JSON() {
					return formatter.Success(KeyMapDetail{KeyMapSummary: summarize(km), Trigger: km.Trigger})
				}
				printTrigger(formatter.Writer, km.Name, km.Trigger)
				printOptions(formatter.Writer, km.Trigger)
				fmt.Fprintf(formatter.Writer, "revision %d, hash %s\n", km.Revision, km.Hash)
				return nil
			})
		},
	}
}

func printOptions(w io.Writer, t trigger.Trigger) {
	o := t.Options
	fmt.Fprintf(w, "  vibrate=%t long_press_double_vibration=%t trigger_from_other_apps=%t show_toast=%t\n",
		o.Vibrate, o.LongPressDoubleVibration, o.TriggerFromOtherApps, o.ShowToast)
	fmt.Fprintf(w, "  long_press_delay=%d double_press_delay=%d vibrate_duration=%d sequence_timeout=%d\n",
		o.LongPressDelay, o.DoublePressDelay, o.VibrateDuration, o.SequenceTimeout)
	if t.LegacyScreenOff {
		fmt.Fprintln(w, "  legacy_screen_off=true")
	}
}

func newLibraryRemoveCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <name>",
		Aliases: []string{"remove"},
		Short:   "Remove a key map and its edit history",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			ctx := commandContext(cmd)
			return withLibrary(rootOpts, func(st *store.Store) error {
				km, err := getByName(ctx, st, args[0])
				if err != nil {
					return err
				}
				if err := st.Delete(ctx, km.ID); err != nil {
					return WrapExitError(ExitCommandError, "failed to write library", err)
				}
				if formatter.JSON() {
					return formatter.Success(map[string]string{"removed": km.Name, "id": km.ID})
				}
				fmt.Fprintf(formatter.Writer, "removed %s\n", km.Name)
				return nil
			})
		},
	}
}

// ============================================================================
// history, replay
// ============================================================================

// HistoryEntry is one recorded edit.
type HistoryEntry struct {
	Revision int64  `json:"revision"`
	Edit     string `json:"edit"`
	Op       string `json:"op"`
	Hash     string `json:"hash"`
	Session  string `json:"session"`
}

func newLibraryHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "history <name>",
		Short: "Show the recorded edits of a key map",
		Long: `Show every accepted edit of a key map in revision order, with the
trigger hash it produced and the editor session that made it.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formatter := rootOpts.formatter(cmd)
			ctx := commandContext(cmd)
			return withLibrary(rootOpts, func(st *store.Store) error {
				km, err := getByName(ctx, st, args[0])
				if err != nil {
					return err
				}
				records, err := st.Edits(ctx, km.ID)
				if err != nil {
					return WrapExitError(ExitCommandError, "failed to read history", err)
				}
				entries := make([]HistoryEntry, len(records))
				for i, rec := range records {
					entries[i] = HistoryEntry{
						Revision: rec.Revision,
						Edit:     rec.Edit.String(),
						Op:       rec.Edit.Op,
						Hash:     rec.Hash,
						Session:  rec.Session,
					}
				}
				if formatter.JSON() {
					return formatter.Success(entries)
				}
				if len(entries) == 0 {
					fmt.Fprintf(formatter.Writer, "%s has no recorded edits.\n", km.Name)
					return nil
				}
				for _, e := range entries {
					fmt.Fprintf(formatter.Writer, "%6d  %s  %s\n", e.Revision, shortHash(e.Hash), e.Edit)
				}
				return nil
			})
		},
	}
}

func shortHash(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}

// ReplayReport is the output of library replay.
type ReplayReport struct {
	Name          string `json:"name"`
	Edits         int    `json:"edits"`
	Revision      int64  `json:"revision"`
	Hash          string `json:"hash"`
	StoredHash    string `json:"stored_hash"`
	Deterministic bool   `json:"deterministic"`
	Error         string `json:"error,omitempty"`
}

func newLibraryReplayCommand(rootOpts *RootOptions) *cobra.Command {
	var basePath string

	cmd := &cobra.Command{
		Use:   "replay <name>",
		Short: "Re-apply a key map's history and compare the result",
		Long: `Replay the recorded edits of a key map from its starting trigger and
check that every step reproduces the recorded hash and that the end result
matches the stored key map.

The starting trigger is empty unless --base names the key map file it was
imported from.

Exit codes:
  0 - Replay reproduced the stored key map
  1 - Replay diverged
  2 - Command error`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runLibraryReplay(rootOpts, args[0], basePath, cmd)
		},
	}
	cmd.Flags().StringVar(&basePath, "base", "", "key map file holding the starting trigger")
	return cmd
}

func runLibraryReplay(opts *RootOptions, name, basePath string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)
	ctx := commandContext(cmd)

	base := trigger.New()
	if basePath != "" {
		km, err := loadOneKeyMap(basePath, name)
		if err != nil {
			return err
		}
		base = km.Trigger
	}

	var report ReplayReport
	err := withLibrary(opts, func(st *store.Store) error {
		km, err := getByName(ctx, st, name)
		if err != nil {
			return err
		}
		report = ReplayReport{Name: km.Name, StoredHash: km.Hash}

		res, err := engine.Replay(ctx, st, km.ID, base)
		report.Edits = res.Edits
		report.Revision = res.Revision
		report.Hash = res.Hash
		switch {
		case err != nil && !engine.IsEditorError(err, engine.ErrCodeReplayDiverged):
			return WrapExitError(ExitCommandError, "replay failed", err)
		case err != nil:
			report.Error = err.Error()
		case res.Hash != km.Hash:
			report.Error = fmt.Sprintf("replayed hash %s, stored %s", res.Hash, km.Hash)
		default:
			report.Deterministic = true
		}
		return nil
	})
	if err != nil {
		return err
	}

	if formatter.JSON() {
		if !report.Deterministic {
			if err := formatter.Failure(report, string(engine.ErrCodeReplayDiverged), report.Error); err != nil {
				return err
			}
			return NewExitError(ExitFailure, report.Error)
		}
		return formatter.Success(report)
	}

	if !report.Deterministic {
		fmt.Fprintf(formatter.Writer, "✗ %s diverged after %d edit(s)\n  %s\n", report.Name, report.Edits, report.Error)
		return NewExitError(ExitFailure, report.Error)
	}
	fmt.Fprintf(formatter.Writer, "✓ %s replayed %d edit(s) to revision %d\n", report.Name, report.Edits, report.Revision)
	return nil
}
