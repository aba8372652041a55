// Package engine implements the key-map editor.
//
// The Editor is the single writer for a library of key maps. Edits are
// queued from any goroutine and applied in FIFO order by one Run loop:
//
//  1. The key map and its siblings (every other key map) are read from the
//     store.
//  2. The edit is applied through the composition rules in package compose.
//     Rejections are returned to the caller untouched.
//  3. A changed trigger is stamped with the next revision from Clock and
//     committed together with its edit record.
//  4. The new value is published for Current and sent to subscribers.
//
// Revisions come from a logical clock, never wall time, so the recorded
// history can be replayed with Replay and checked hash by hash.
package engine
