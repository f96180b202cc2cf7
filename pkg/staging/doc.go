// Package staging accumulates provisional edits that have not been
// sent to the device yet.
//
// Each unit (a single setting, or the schedule set as a whole) holds
// at most one staged value; staging again overwrites it. Dirtiness is
// never stored: it is computed against the remote state cache at call
// time, so a forgotten flag can never go stale. Every stage bumps a
// per-unit revision, and the sync engine clears a unit only when the
// revision it committed is still current, so an edit racing a commit
// keeps the unit dirty.
package staging
