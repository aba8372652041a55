package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/keytrigger/internal/trigger"
)

// Get returns the key map with the given id, or ErrNotFound.
func (s *Store) Get(ctx context.Context, id string) (KeyMap, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, trigger, hash, revision, seq
		FROM keymaps
		WHERE id = ?
	`, id)
	km, err := scanKeyMap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return KeyMap{}, fmt.Errorf("get key map %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return KeyMap{}, fmt.Errorf("get key map %s: %w", id, err)
	}
	return km, nil
}

// GetByName returns the key map with the given name, or ErrNotFound.
func (s *Store) GetByName(ctx context.Context, name string) (KeyMap, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, trigger, hash, revision, seq
		FROM keymaps
		WHERE name = ?
	`, name)
	km, err := scanKeyMap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return KeyMap{}, fmt.Errorf("get key map %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return KeyMap{}, fmt.Errorf("get key map %q: %w", name, err)
	}
	return km, nil
}

// List returns every key map in insertion order.
//
// Returns an empty slice (not nil) for an empty library.
func (s *Store) List(ctx context.Context) ([]KeyMap, error) {
	return s.list(ctx, "")
}

// Siblings returns the triggers of every key map except excludeID, in
// insertion order. It is the sibling provider for the composition rules.
func (s *Store) Siblings(ctx context.Context, excludeID string) ([]trigger.Trigger, error) {
	maps, err := s.list(ctx, excludeID)
	if err != nil {
		return nil, fmt.Errorf("siblings: %w", err)
	}
	out := make([]trigger.Trigger, len(maps))
	for i, km := range maps {
		out[i] = km.Trigger
	}
	return out, nil
}

func (s *Store) list(ctx context.Context, excludeID string) ([]KeyMap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, trigger, hash, revision, seq
		FROM keymaps
		WHERE id != ?
		ORDER BY seq ASC, id COLLATE BINARY ASC
	`, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query key maps: %w", err)
	}
	defer rows.Close()

	maps := []KeyMap{}
	for rows.Next() {
		km, err := scanKeyMap(rows)
		if err != nil {
			return nil, err
		}
		maps = append(maps, km)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate key maps: %w", err)
	}
	return maps, nil
}

// Edits returns the edit history of a key map in revision order.
//
// Returns an empty slice (not nil) if no edits exist.
func (s *Store) Edits(ctx context.Context, keyMapID string) ([]EditRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT keymap_id, revision, op, args, hash, session
		FROM edits
		WHERE keymap_id = ?
		ORDER BY revision ASC
	`, keyMapID)
	if err != nil {
		return nil, fmt.Errorf("query edits: %w", err)
	}
	defer rows.Close()

	records := []EditRecord{}
	for rows.Next() {
		var (
			rec      EditRecord
			op, args string
		)
		if err := rows.Scan(&rec.KeyMapID, &rec.Revision, &op, &args, &rec.Hash, &rec.Session); err != nil {
			return nil, fmt.Errorf("scan edit: %w", err)
		}
		if rec.Edit, err = editFromRow(op, args); err != nil {
			return nil, fmt.Errorf("edit %s@%d: %w", rec.KeyMapID, rec.Revision, err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate edits: %w", err)
	}
	return records, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanKeyMap(row scanner) (KeyMap, error) {
	var (
		km   KeyMap
		blob []byte
	)
	if err := row.Scan(&km.ID, &km.Name, &blob, &km.Hash, &km.Revision, &km.Seq); err != nil {
		return KeyMap{}, err
	}
	t, err := unmarshalTrigger(blob)
	if err != nil {
		return KeyMap{}, fmt.Errorf("key map %s: %w", km.ID, err)
	}
	km.Trigger = t
	return km, nil
}

// LastRevision returns the highest edit revision recorded across the
// library, or 0 for an empty history.
func (s *Store) LastRevision(ctx context.Context) (int64, error) {
	var rev int64
	err := s.db.QueryRowContext(ctx, `SELECT COALESCE(MAX(revision), 0) FROM edits`).Scan(&rev)
	if err != nil {
		return 0, fmt.Errorf("query last revision: %w", err)
	}
	return rev, nil
}
