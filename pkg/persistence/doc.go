// Package persistence saves local intent across restarts.
//
// Two things survive a restart: staged values that were never
// committed, and the daily call-budget window, so a restart cannot be
// used to dodge the quota. Remote device data is deliberately not
// cached; the cache starts unknown and is filled by the first
// refresh. Writes go through a temp file and rename so a crash mid-
// write leaves the previous state intact.
package persistence
