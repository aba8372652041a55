package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/store"
	"github.com/roach88/keytrigger/internal/trigger"
)

func TestReplay_ReproducesEditedKeyMap(t *testing.T) {
	s := setupTestStore(t)
	ed := startEditor(t, s)
	ctx := context.Background()

	km, err := ed.Create(ctx, "chord", trigger.New())
	require.NoError(t, err)

	edits := []compose.Edit{
		addKey("VOLUME_UP"),
		addKey("VOLUME_DOWN"),
		{Op: "set_long_press"},
		{Op: "set_vibrate", Args: map[string]any{"on": true}},
		{Op: "set_long_press_delay", Args: map[string]any{"ms": 650}},
	}
	for _, e := range edits {
		km, err = ed.Apply(ctx, km.ID, e)
		require.NoError(t, err, e.String())
	}

	res, err := Replay(ctx, s, km.ID, trigger.New())
	require.NoError(t, err)
	assert.Equal(t, len(edits), res.Edits)
	assert.Equal(t, km.Hash, res.Hash)
	assert.Equal(t, km.Revision, res.Revision)
	assert.Equal(t, 650, res.Trigger.Options.LongPressDelay)
}

func TestReplay_NoEditsReturnsBase(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	res, err := Replay(ctx, s, "km-none", trigger.New())
	require.NoError(t, err)
	assert.Equal(t, 0, res.Edits)
	assert.Equal(t, trigger.MustHash(trigger.New()), res.Hash)
}

func TestReplay_DetectsDivergence(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	e := addKey("VOLUME_UP")
	tr, err := compose.Apply(trigger.New(), e, nil)
	require.NoError(t, err)

	require.NoError(t, s.Commit(ctx,
		store.KeyMap{ID: "km-1", Name: "a", Trigger: tr, Revision: 1},
		store.EditRecord{Revision: 1, Edit: e, Hash: "not-the-hash", Session: "s"},
	))

	_, err = Replay(ctx, s, "km-1", trigger.New())
	require.Error(t, err)
	assert.True(t, IsEditorError(err, ErrCodeReplayDiverged))

	var ee *EditorError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, int64(1), ee.Revision)
}

func TestReplay_RejectedEditDiverges(t *testing.T) {
	s := setupTestStore(t)
	ctx := context.Background()

	// A long press edit recorded against a trigger that had keys cannot be
	// replayed from an empty base.
	e := compose.Edit{Op: "set_long_press"}
	require.NoError(t, s.Commit(ctx,
		store.KeyMap{ID: "km-1", Name: "a", Trigger: trigger.New(), Revision: 1},
		store.EditRecord{Revision: 1, Edit: e, Hash: "h", Session: "s"},
	))

	_, err := Replay(ctx, s, "km-1", trigger.New())
	require.Error(t, err)
	assert.True(t, IsEditorError(err, ErrCodeReplayDiverged))

	_, rejected := compose.IsRejected(err)
	assert.True(t, rejected)
}
