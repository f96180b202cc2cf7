// Package state holds the last known remote device state.
//
// The Cache hands out the most recent snapshot without blocking and
// without failing; before the first successful refresh it reports an
// explicit unknown state so nothing downstream ever compares staged
// values against zero-valued defaults. Snapshots are replaced whole,
// never field by field, so readers always see a consistent state.
package state
