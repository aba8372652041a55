// Package classify decides which configuration problem, if any, stops a
// trigger key from working on the current device.
//
// Classification is a pure function of a trigger, one of its keys and an
// immutable environment Snapshot. Rules run in a fixed priority order and
// the first match wins: capability gaps, then entitlement gaps, then
// migration gaps. A fact the snapshot does not know never produces an
// error.
package classify
