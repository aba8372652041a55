package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/mattn/go-sqlite3"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/trigger"
)

// KeyMap is a named trigger in the library.
type KeyMap struct {
	ID       string
	Name     string
	Trigger  trigger.Trigger
	Hash     string
	Revision int64
	Seq      int64
}

// EditRecord is one accepted edit in a key map's history.
type EditRecord struct {
	KeyMapID string
	Revision int64
	Edit     compose.Edit
	Hash     string
	Session  string
}

// Put inserts or updates a key map and reports whether anything changed.
// The hash is recomputed from the trigger; a row whose name and hash are
// unchanged is left untouched. Seq is assigned on first insert.
func (s *Store) Put(ctx context.Context, km KeyMap) (changed bool, err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("put key map: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	changed, err = putKeyMap(ctx, tx, km)
	if err != nil {
		return false, fmt.Errorf("put key map: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("put key map: commit: %w", err)
	}
	return changed, nil
}

// Commit stores a key map together with the edit that produced it in one
// transaction. A replayed edit (same key map and revision) is ignored.
func (s *Store) Commit(ctx context.Context, km KeyMap, rec EditRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("commit edit: begin tx: %w", err)
	}
	defer tx.Rollback() // No-op if committed

	if _, err := putKeyMap(ctx, tx, km); err != nil {
		return fmt.Errorf("commit edit: %w", err)
	}

	args, err := marshalArgs(rec.Edit.Args)
	if err != nil {
		return fmt.Errorf("commit edit: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO edits
		(keymap_id, revision, op, args, hash, session)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(keymap_id, revision) DO NOTHING
	`,
		km.ID,
		rec.Revision,
		rec.Edit.Op,
		args,
		rec.Hash,
		rec.Session,
	)
	if err != nil {
		return fmt.Errorf("commit edit: insert edit: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit edit: %w", err)
	}
	return nil
}

func putKeyMap(ctx context.Context, tx *sql.Tx, km KeyMap) (bool, error) {
	if km.ID == "" {
		return false, fmt.Errorf("key map id is required")
	}
	if km.Name == "" {
		return false, fmt.Errorf("key map %s: name is required", km.ID)
	}

	blob, err := marshalTrigger(km.Trigger)
	if err != nil {
		return false, err
	}
	hash, err := trigger.Hash(km.Trigger)
	if err != nil {
		return false, err
	}

	// The WHERE clause turns an unchanged upsert into a no-op, so
	// RowsAffected tells us whether anything was written.
	result, err := tx.ExecContext(ctx, `
		INSERT INTO keymaps (id, name, trigger, hash, revision, seq)
		VALUES (?, ?, ?, ?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM keymaps))
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			trigger = excluded.trigger,
			hash = excluded.hash,
			revision = excluded.revision
		WHERE keymaps.hash != excluded.hash
		   OR keymaps.name != excluded.name
		   OR keymaps.revision != excluded.revision
	`, km.ID, km.Name, blob, hash, km.Revision)
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return false, fmt.Errorf("upsert %s: name %q: %w", km.ID, km.Name, ErrNameTaken)
	}
	if err != nil {
		return false, fmt.Errorf("upsert %s: %w", km.ID, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// Delete removes a key map and its edit history.
func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM keymaps WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete key map %s: %w", id, err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete key map %s: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete key map %s: %w", id, ErrNotFound)
	}
	return nil
}
