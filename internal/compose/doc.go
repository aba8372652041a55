// Package compose implements the trigger composition rules.
//
// Every function is pure: it takes a trigger.Trigger plus edit parameters
// and returns a new Trigger, never touching the input. Results always
// satisfy the structural invariants:
//
//   - a trigger holds low-level keys or standard keys, never both
//   - a parallel trigger holds at most one assistant key
//   - a parallel trigger with an assistant or gesture key is short press
//   - adding a key that duplicates an existing one makes a sequence
//
// Edits that cannot be honoured return the input unchanged together with a
// *RejectedError. Callers that ignore the error get the silent no-op
// behaviour; callers that check it can tell "rejected" apart from "already
// satisfied", which returns a nil error.
//
// The package holds no state and performs no I/O, so it is safe for
// concurrent use. Serializing edits to one trigger is the caller's job
// (see engine.Editor).
package compose
