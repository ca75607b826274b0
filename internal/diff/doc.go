// Package diff computes content-level deltas between two snapshots of a
// mutable document.
//
// Content is split into comparison units (lines for plain text, elements of
// a JSON array for structured block documents). Units are mapped onto a
// private rune alphabet and compared with the Myers algorithm from
// diffmatchpatch, which yields a minimal edit script. A modified unit is a
// deletion of the old unit plus an addition of the new one.
//
// Apply is the inverse: applying a diff to the old units reconstructs the
// new units exactly.
package diff
