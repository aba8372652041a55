package store

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/trigger"
)

// ============================================================================
// Put / Get
// ============================================================================

func TestPutGetRoundTrip(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tr := volumeTrigger("kbd")
	tr = compose.SetVibrate(tr, true)

	changed, err := s.Put(ctx, KeyMap{ID: "km-1", Name: "volume chord", Trigger: tr, Revision: 3})
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.Get(ctx, "km-1")
	require.NoError(t, err)

	assert.Equal(t, "volume chord", got.Name)
	assert.Equal(t, int64(3), got.Revision)
	assert.Equal(t, int64(1), got.Seq)
	assert.Equal(t, trigger.MustHash(tr), got.Hash)
	assert.True(t, trigger.Equal(tr, got.Trigger), "trigger survives the CBOR round trip")
}

func TestPutUnchangedIsNoop(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	km := KeyMap{ID: "km-1", Name: "a", Trigger: volumeTrigger("kbd")}
	_, err := s.Put(ctx, km)
	require.NoError(t, err)

	changed, err := s.Put(ctx, km)
	require.NoError(t, err)
	assert.False(t, changed)

	km.Trigger = compose.SetSequenceMode(km.Trigger)
	changed, err = s.Put(ctx, km)
	require.NoError(t, err)
	assert.True(t, changed)

	got, err := s.Get(ctx, "km-1")
	require.NoError(t, err)
	assert.Equal(t, trigger.Sequence{}, got.Trigger.Mode)
	assert.Equal(t, int64(1), got.Seq, "updates keep the insertion order")
}

func TestPutValidation(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, KeyMap{Name: "no id", Trigger: trigger.New()})
	assert.Error(t, err)

	_, err = s.Put(ctx, KeyMap{ID: "km-1", Trigger: trigger.New()})
	assert.Error(t, err)
}

func TestPutNameTaken(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, KeyMap{ID: "km-1", Name: "shared", Trigger: trigger.New()})
	require.NoError(t, err)

	_, err = s.Put(ctx, KeyMap{ID: "km-2", Name: "shared", Trigger: trigger.New()})
	assert.True(t, errors.Is(err, ErrNameTaken), "got %v", err)
}

func TestGetNotFound(t *testing.T) {
	s := createTestStore(t)

	_, err := s.Get(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.GetByName(context.Background(), "missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestGetByName(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, KeyMap{ID: "km-1", Name: "camera", Trigger: trigger.New()})
	require.NoError(t, err)

	got, err := s.GetByName(ctx, "camera")
	require.NoError(t, err)
	assert.Equal(t, "km-1", got.ID)
}

// ============================================================================
// List / Siblings / Delete
// ============================================================================

func TestListInsertionOrder(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"c", "a", "b"} {
		_, err := s.Put(ctx, KeyMap{ID: id, Name: "map " + id, Trigger: trigger.New()})
		require.NoError(t, err)
	}

	maps, err := s.List(ctx)
	require.NoError(t, err)

	ids := make([]string, len(maps))
	for i, km := range maps {
		ids[i] = km.ID
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestListEmpty(t *testing.T) {
	s := createTestStore(t)

	maps, err := s.List(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, maps)
	assert.Empty(t, maps)
}

func TestSiblingsExcludeSelf(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	kbd := volumeTrigger("kbd")
	pad := volumeTrigger("pad")
	_, err := s.Put(ctx, KeyMap{ID: "km-1", Name: "kbd", Trigger: kbd})
	require.NoError(t, err)
	_, err = s.Put(ctx, KeyMap{ID: "km-2", Name: "pad", Trigger: pad})
	require.NoError(t, err)

	siblings, err := s.Siblings(ctx, "km-1")
	require.NoError(t, err)
	require.Len(t, siblings, 1)
	assert.True(t, trigger.Equal(pad, siblings[0]))

	all, err := s.Siblings(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestSiblingsFeedScanCodeDefault(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	_, err := s.Put(ctx, KeyMap{ID: "km-1", Name: "kbd", Trigger: volumeTrigger("kbd")})
	require.NoError(t, err)

	siblings, err := s.Siblings(ctx, "km-2")
	require.NoError(t, err)

	tr := compose.AddPhysicalKey(trigger.New(), compose.PhysicalKeyParams{
		KeyCode:  trigger.KeyCodeVolumeUp,
		ScanCode: trigger.NewScanCode(999),
		Device:   trigger.ExternalDevice{Descriptor: "pad"},
	}, siblings...)

	assert.False(t, tr.Keys[0].(trigger.PhysicalKey).ScanCodeDetection)
}

func TestDelete(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	km := KeyMap{ID: "km-1", Name: "a", Trigger: volumeTrigger("kbd"), Revision: 1}
	require.NoError(t, s.Commit(ctx, km, EditRecord{
		Revision: 1,
		Edit:     compose.Edit{Op: "set_sequence_mode"},
		Hash:     trigger.MustHash(km.Trigger),
		Session:  "s",
	}))

	require.NoError(t, s.Delete(ctx, "km-1"))

	_, err := s.Get(ctx, "km-1")
	assert.True(t, errors.Is(err, ErrNotFound))

	edits, err := s.Edits(ctx, "km-1")
	require.NoError(t, err)
	assert.Empty(t, edits, "edits are deleted with their key map")

	assert.True(t, errors.Is(s.Delete(ctx, "km-1"), ErrNotFound))
}

// ============================================================================
// Edit log
// ============================================================================

func TestCommitAppendsEdits(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	tr := trigger.New()
	edits := []compose.Edit{
		{Op: "add_physical_key", Args: map[string]any{"key_code": "VOLUME_UP"}},
		{Op: "add_physical_key", Args: map[string]any{"key_code": 25, "device": "internal"}},
		{Op: "set_long_press"},
	}
	for i, e := range edits {
		var err error
		tr, err = compose.Apply(tr, e, nil)
		require.NoError(t, err)

		rev := int64(i + 1)
		require.NoError(t, s.Commit(ctx,
			KeyMap{ID: "km-1", Name: "chord", Trigger: tr, Revision: rev},
			EditRecord{Revision: rev, Edit: e, Hash: trigger.MustHash(tr), Session: "session-1"},
		))
	}

	records, err := s.Edits(ctx, "km-1")
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "add_physical_key", records[0].Edit.Op)
	assert.Equal(t, "VOLUME_UP", records[0].Edit.Args["key_code"])
	assert.Nil(t, records[2].Edit.Args)
	assert.Equal(t, trigger.MustHash(tr), records[2].Hash)
	assert.Equal(t, "session-1", records[1].Session)

	// Stored args still drive the composition rules.
	replayed := trigger.New()
	for _, rec := range records {
		replayed, err = compose.Apply(replayed, rec.Edit, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, trigger.MustHash(tr), trigger.MustHash(replayed))
}

func TestCommitDuplicateRevisionIgnored(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	km := KeyMap{ID: "km-1", Name: "a", Trigger: trigger.New(), Revision: 1}
	rec := EditRecord{Revision: 1, Edit: compose.Edit{Op: "set_vibrate", Args: map[string]any{"on": true}}, Hash: "h1", Session: "s"}
	require.NoError(t, s.Commit(ctx, km, rec))

	rec.Hash = "h2"
	require.NoError(t, s.Commit(ctx, km, rec))

	records, err := s.Edits(ctx, "km-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "h1", records[0].Hash)
}

func TestLastRevision(t *testing.T) {
	s := createTestStore(t)
	ctx := context.Background()

	rev, err := s.LastRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), rev)

	e := compose.Edit{Op: "set_vibrate", Args: map[string]any{"on": true}}
	require.NoError(t, s.Commit(ctx,
		KeyMap{ID: "km-1", Name: "a", Trigger: trigger.New(), Revision: 4},
		EditRecord{Revision: 4, Edit: e, Hash: "h", Session: "s"},
	))
	require.NoError(t, s.Commit(ctx,
		KeyMap{ID: "km-2", Name: "b", Trigger: trigger.New(), Revision: 7},
		EditRecord{Revision: 7, Edit: e, Hash: "h", Session: "s"},
	))

	rev, err = s.LastRevision(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), rev)
}
