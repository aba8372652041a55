package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/store"
	"github.com/roach88/keytrigger/internal/trigger"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func setupTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// startEditor runs an editor until the test ends.
func startEditor(t *testing.T, s *store.Store, opts ...Option) *Editor {
	t.Helper()
	base := []Option{
		WithLogger(discardLogger()),
		WithSessionGenerator(NewFixedGenerator("session-1")),
	}
	ed, err := New(context.Background(), s, append(base, opts...)...)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ed.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return ed
}

func addKey(keyCode string) compose.Edit {
	return compose.Edit{Op: "add_physical_key", Args: map[string]any{"key_code": keyCode}}
}

// ============================================================================
// Applying edits
// ============================================================================

func TestEditor_ApplyCommitsAndPublishes(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)
	ctx := context.Background()

	km, err := ed.Create(ctx, "volume chord", trigger.New())
	require.NoError(t, err)
	assert.Equal(t, int64(0), km.Revision)

	_, err = ed.Apply(ctx, km.ID, addKey("VOLUME_UP"))
	require.NoError(t, err)
	km, err = ed.Apply(ctx, km.ID, addKey("VOLUME_DOWN"))
	require.NoError(t, err)

	assert.Equal(t, int64(2), km.Revision)
	require.Len(t, km.Trigger.Keys, 2)
	assert.IsType(t, trigger.Parallel{}, km.Trigger.Mode)

	current, ok := ed.Current(km.ID)
	require.True(t, ok)
	assert.Equal(t, km.Hash, current.Hash)

	stored, err := s.Get(ctx, km.ID)
	require.NoError(t, err)
	assert.Equal(t, km.Hash, stored.Hash)
	assert.Equal(t, int64(2), stored.Revision)

	records, err := s.Edits(ctx, km.ID)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(1), records[0].Revision)
	assert.Equal(t, "session-1", records[1].Session)
	assert.Equal(t, km.Hash, records[1].Hash)
}

func TestEditor_RejectionLeavesKeyMapUnchanged(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)
	ctx := context.Background()

	km, err := ed.Create(ctx, "empty", trigger.New())
	require.NoError(t, err)

	got, err := ed.Apply(ctx, km.ID, compose.Edit{Op: "set_long_press"})
	require.Error(t, err)

	re, ok := compose.IsRejected(err)
	require.True(t, ok, "expected rejection, got %v", err)
	assert.Equal(t, compose.RejectEmptyTrigger, re.Code)
	assert.Equal(t, km.Hash, got.Hash)

	records, err := s.Edits(ctx, km.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEditor_UnchangedEditIsNotRecorded(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)
	ctx := context.Background()

	km, err := ed.Create(ctx, "quiet", trigger.New())
	require.NoError(t, err)

	got, err := ed.Apply(ctx, km.ID, compose.Edit{Op: "set_vibrate", Args: map[string]any{"on": false}})
	require.NoError(t, err)
	assert.Equal(t, km.Revision, got.Revision)

	records, err := s.Edits(ctx, km.ID)
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestEditor_UnknownKeyMap(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)

	_, err := ed.Apply(context.Background(), "missing", addKey("VOLUME_UP"))
	require.Error(t, err)
	assert.True(t, IsEditorError(err, ErrCodeKeyMapNotFound))
	assert.True(t, errors.Is(err, store.ErrNotFound))

	_, ok := ed.Current("missing")
	assert.False(t, ok)
}

func TestEditor_CreateNameTaken(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)
	ctx := context.Background()

	_, err := ed.Create(ctx, "chord", trigger.New())
	require.NoError(t, err)

	_, err = ed.Create(ctx, "chord", trigger.New())
	require.Error(t, err)
	assert.True(t, IsEditorError(err, ErrCodePersistFailed))
	assert.True(t, errors.Is(err, store.ErrNameTaken))
}

func TestEditor_SiblingsDriveScanCodeDefault(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)
	ctx := context.Background()

	sibling, err := ed.Create(ctx, "other keyboard", trigger.New())
	require.NoError(t, err)
	_, err = ed.Apply(ctx, sibling.ID, compose.Edit{Op: "add_physical_key", Args: map[string]any{
		"key_code": "VOLUME_UP", "scan_code": 115, "device": "other-kbd",
	}})
	require.NoError(t, err)

	km, err := ed.Create(ctx, "keyboard", trigger.New())
	require.NoError(t, err)
	km, err = ed.Apply(ctx, km.ID, compose.Edit{Op: "add_physical_key", Args: map[string]any{
		"key_code": "VOLUME_UP", "scan_code": 200, "device": "kbd",
	}})
	require.NoError(t, err)

	require.Len(t, km.Trigger.Keys, 1)
	key, ok := km.Trigger.Keys[0].(trigger.PhysicalKey)
	require.True(t, ok)
	assert.False(t, key.ScanCodeDetection, "collision on another device should keep key code detection")
}

func TestEditor_ConcurrentSubmitters(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)
	ctx := context.Background()

	km, err := ed.Create(ctx, "toggles", trigger.New())
	require.NoError(t, err)

	const workers = 8
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(on bool) {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, err := ed.Apply(ctx, km.ID, compose.Edit{Op: "set_show_toast", Args: map[string]any{"on": on}})
				assert.NoError(t, err)
			}
		}(i%2 == 0)
	}
	wg.Wait()

	records, err := s.Edits(ctx, km.ID)
	require.NoError(t, err)
	for i := 1; i < len(records); i++ {
		assert.Greater(t, records[i].Revision, records[i-1].Revision)
	}

	current, ok := ed.Current(km.ID)
	require.True(t, ok)
	if len(records) > 0 {
		assert.Equal(t, records[len(records)-1].Hash, current.Hash)
	}
}

func TestEditor_LoadNeverPublishesOlderRevision(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)
	ctx := context.Background()

	km, err := ed.Create(ctx, "toggles", trigger.New())
	require.NoError(t, err)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		var seen int64
		for {
			select {
			case <-stop:
				return
			default:
			}
			loaded, err := ed.Load(ctx, km.ID)
			if !assert.NoError(t, err) {
				return
			}
			assert.GreaterOrEqual(t, loaded.Revision, seen, "load went back in time")
			seen = loaded.Revision

			current, ok := ed.Current(km.ID)
			assert.True(t, ok)
			assert.GreaterOrEqual(t, current.Revision, seen, "published key map rolled back")
		}
	}()

	for i := 0; i < 20; i++ {
		_, err := ed.Apply(ctx, km.ID, compose.Edit{Op: "set_show_toast", Args: map[string]any{"on": i%2 == 0}})
		require.NoError(t, err)
	}
	close(stop)
	wg.Wait()

	last, err := ed.Apply(ctx, km.ID, compose.Edit{Op: "set_vibrate", Args: map[string]any{"on": true}})
	require.NoError(t, err)
	loaded, err := ed.Load(ctx, km.ID)
	require.NoError(t, err)
	assert.Equal(t, last.Revision, loaded.Revision)
	current, _ := ed.Current(km.ID)
	assert.Equal(t, last.Hash, current.Hash)
}

func TestEditor_LoadUnknownKeyMap(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)

	_, err := ed.Load(context.Background(), "missing")
	assert.True(t, IsEditorError(err, ErrCodeKeyMapNotFound))
}

func TestEditor_LoadAfterStop(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ed, err := New(ctx, s, WithLogger(discardLogger()))
	require.NoError(t, err)
	ed.Stop()
	require.NoError(t, ed.Run(ctx))

	_, err = ed.Load(ctx, "km-1")
	assert.True(t, IsEditorError(err, ErrCodeEditorStopped))
}

// ============================================================================
// Lifecycle
// ============================================================================

func TestEditor_StopDrainsQueue(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ed, err := New(ctx, s, WithLogger(discardLogger()))
	require.NoError(t, err)

	// Queue work before the loop starts, then stop.
	_, err = s.Put(ctx, store.KeyMap{ID: "km-1", Name: "a", Trigger: trigger.New()})
	require.NoError(t, err)
	reply, err := ed.Submit("km-1", addKey("VOLUME_UP"))
	require.NoError(t, err)
	ed.Stop()

	require.NoError(t, ed.Run(ctx))

	res := <-reply
	require.NoError(t, res.Err)
	assert.True(t, res.Changed)

	_, err = ed.Apply(ctx, "km-1", addKey("VOLUME_DOWN"))
	assert.True(t, IsEditorError(err, ErrCodeEditorStopped))
}

func TestEditor_ContextCancel(t *testing.T) {
	s := setupTestStore(t)

	ed, err := New(context.Background(), s, WithLogger(discardLogger()))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- ed.Run(ctx) }()
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}

	_, err = ed.Submit("km-1", addKey("VOLUME_UP"))
	assert.True(t, IsEditorError(err, ErrCodeEditorStopped))
}

func TestEditor_ClockResumesFromLibrary(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	first, err := New(ctx, s, WithLogger(discardLogger()))
	require.NoError(t, err)
	_, err = s.Put(ctx, store.KeyMap{ID: "km-1", Name: "a", Trigger: trigger.New()})
	require.NoError(t, err)
	r1, _ := first.Submit("km-1", addKey("VOLUME_UP"))
	r2, _ := first.Submit("km-1", addKey("VOLUME_DOWN"))
	first.Stop()
	require.NoError(t, first.Run(ctx))
	require.NoError(t, (<-r1).Err)
	require.NoError(t, (<-r2).Err)

	second := startEditor(t, s)
	km, err := second.Apply(ctx, "km-1", compose.Edit{Op: "set_long_press"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), km.Revision)
}

// ============================================================================
// Subscriptions
// ============================================================================

func TestEditor_SubscribersReceiveChanges(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)
	ctx := context.Background()

	changes, cancel := ed.Subscribe(4)
	defer cancel()

	km, err := ed.Create(ctx, "chord", trigger.New())
	require.NoError(t, err)
	_, err = ed.Apply(ctx, km.ID, addKey("VOLUME_UP"))
	require.NoError(t, err)

	select {
	case c := <-changes:
		assert.Equal(t, km.ID, c.KeyMapID)
		assert.Equal(t, "chord", c.Name)
		assert.Equal(t, int64(1), c.Revision)
		assert.Equal(t, "add_physical_key", c.Edit.Op)
		assert.Empty(t, c.Before.Keys)
		assert.Len(t, c.After.Keys, 1)
		assert.Equal(t, "session-1", c.Session)
	case <-time.After(2 * time.Second):
		t.Fatal("no change received")
	}
}

func TestEditor_SubscriptionClosedOnStop(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	ed, err := New(ctx, s, WithLogger(discardLogger()))
	require.NoError(t, err)

	changes, _ := ed.Subscribe(1)
	ed.Stop()
	require.NoError(t, ed.Run(ctx))

	_, open := <-changes
	assert.False(t, open)

	late, _ := ed.Subscribe(1)
	_, open = <-late
	assert.False(t, open, "subscribing after shutdown yields a closed channel")
}

func TestEditor_UnsubscribeClosesChannel(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)

	changes, cancel := ed.Subscribe(1)
	cancel()
	cancel()

	_, open := <-changes
	assert.False(t, open)
}
