package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/engine"
	"github.com/roach88/keytrigger/internal/store"
	"github.com/roach88/keytrigger/internal/trigger"
)

// LibraryPath returns the path of a fresh library file in a temp dir.
func LibraryPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "library.db")
}

// OpenLibrary opens a library at path, closed when the test ends.
func OpenLibrary(t *testing.T, path string) *store.Store {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// SeedLibrary writes triggers to the library at path under the given names
// and closes it again, so a command under test can open it alone. It
// returns the new key map ids in order.
func SeedLibrary(t *testing.T, path string, named ...NamedTrigger) []string {
	t.Helper()
	st, err := store.Open(path)
	require.NoError(t, err)
	defer st.Close()

	ids := make([]string, len(named))
	for i, n := range named {
		ids[i] = uuid.Must(uuid.NewV7()).String()
		_, err := st.Put(context.Background(), store.KeyMap{ID: ids[i], Name: n.Name, Trigger: n.Trigger})
		require.NoError(t, err)
	}
	return ids
}

// NamedTrigger pairs a key map name with its trigger.
type NamedTrigger struct {
	Name    string
	Trigger trigger.Trigger
}

// VolumeChord is a parallel short press of volume up and volume down.
func VolumeChord() trigger.Trigger {
	t := compose.AddPhysicalKey(trigger.New(), compose.PhysicalKeyParams{KeyCode: trigger.KeyCodeVolumeUp})
	t = compose.AddPhysicalKey(t, compose.PhysicalKeyParams{KeyCode: trigger.KeyCodeVolumeDown})
	return compose.SetParallelMode(t)
}

// StartEditor starts an editor on st and runs it until the test ends.
func StartEditor(t *testing.T, st *store.Store, opts ...engine.Option) *engine.Editor {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	ed, err := engine.New(ctx, st, opts...)
	require.NoError(t, err)

	done := make(chan error, 1)
	go func() { done <- ed.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ed
}
