// Package engine turns staged edits into remote writes.
//
// Commit reads the staged value for a unit, decides whether a write
// is needed at all, builds the canonical payload, and issues it
// through the rate-limited client. On success the remote state cache
// is updated optimistically (no read-back call) and the unit's dirty
// state clears; on failure the staged value and dirty state are left
// exactly as they were, and the error is classified into the taxonomy
// in errors.go so callers can tell "retry later" from "fix your
// request" from "disable the schedule first".
package engine
