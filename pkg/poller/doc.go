// Package poller refreshes the remote state cache on a fixed
// interval.
//
// A single failed refresh is routine for a cloud API and only gets
// logged; the last good snapshot stays in place. Once failures run
// consecutively past a threshold the poller declares the link
// degraded and notifies the configured callback, then again on the
// first success after that. Each cycle leaves a poll event in the
// audit trail.
package poller
