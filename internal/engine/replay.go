package engine

import (
	"context"
	"fmt"

	"github.com/roach88/keytrigger/internal/compose"
	"github.com/roach88/keytrigger/internal/store"
	"github.com/roach88/keytrigger/internal/trigger"
)

// ReplayResult summarizes a replayed edit history.
type ReplayResult struct {
	Trigger  trigger.Trigger
	Hash     string
	Edits    int
	Revision int64
}

// Replay rebuilds a key map by applying its recorded edits to base in
// revision order. Each intermediate trigger must hash to the recorded
// value; the first mismatch stops replay with REPLAY_DIVERGED.
//
// Siblings are read from the library as it is now, so an edit whose outcome
// depended on since-deleted key maps may diverge.
func Replay(ctx context.Context, s *store.Store, keyMapID string, base trigger.Trigger) (ReplayResult, error) {
	records, err := s.Edits(ctx, keyMapID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", keyMapID, err)
	}
	siblings, err := s.Siblings(ctx, keyMapID)
	if err != nil {
		return ReplayResult{}, fmt.Errorf("replay %s: %w", keyMapID, err)
	}

	t := base
	res := ReplayResult{}
	for _, rec := range records {
		if err := ctx.Err(); err != nil {
			return res, err
		}

		t, err = compose.Apply(t, rec.Edit, siblings)
		if err != nil {
			return res, &EditorError{
				Code:     ErrCodeReplayDiverged,
				Message:  fmt.Sprintf("edit %q no longer applies", rec.Edit.String()),
				KeyMapID: keyMapID,
				Revision: rec.Revision,
				Err:      err,
			}
		}
		hash, err := trigger.Hash(t)
		if err != nil {
			return res, fmt.Errorf("replay %s@%d: %w", keyMapID, rec.Revision, err)
		}
		if hash != rec.Hash {
			return res, &EditorError{
				Code:     ErrCodeReplayDiverged,
				Message:  fmt.Sprintf("hash %s, recorded %s", hash, rec.Hash),
				KeyMapID: keyMapID,
				Revision: rec.Revision,
			}
		}

		res.Trigger = t
		res.Hash = hash
		res.Edits++
		res.Revision = rec.Revision
	}

	if res.Edits == 0 {
		res.Trigger = base
		res.Hash, err = trigger.Hash(base)
		if err != nil {
			return res, fmt.Errorf("replay %s: %w", keyMapID, err)
		}
	}
	return res, nil
}
