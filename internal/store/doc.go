// Package store provides SQLite-backed durable storage for the key-map
// library.
//
// Each key map is a named trigger stored as canonical CBOR together with
// its content hash and logical revision. Every accepted edit is appended to
// an edit log keyed by (keymap_id, revision), so a trigger can be rebuilt
// by replaying its edits and checked against the stored hash.
//
// # Ordering
//
// All listings use ORDER BY seq ASC, id ASC COLLATE BINARY; seq is a
// logical insertion counter, never a timestamp.
//
// # Idempotency
//
//   - Put with an unchanged name and hash is a no-op
//   - an edit for an existing (keymap_id, revision) is ignored
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Edits are deleted with their key map
package store
