// Package trigger provides the immutable value types for key-map triggers.
//
// A Trigger is an ordered list of keys plus a mode. Order matters: a
// Sequence trigger is pressed key by key, a Parallel trigger treats its
// keys as pressed together with one shared click type.
//
// Values are never mutated in place. The compose package builds a fresh
// Trigger for every edit, and callers replace their current value
// wholesale. Slices held by a Trigger must be treated as read-only.
//
// This package imports nothing internal. All other internal packages
// import trigger.
package trigger
