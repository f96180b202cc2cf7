// Package model defines the domain types shared across the sync engine:
// work modes, scheduler groups and sets, device setting keys and values,
// and the full device state snapshot held by the remote state cache.
//
// Types in this package are plain values. They carry no locking and no
// I/O; cloning and equality helpers exist so the staging and cache
// layers can hand out copies without aliasing internal state.
package model
