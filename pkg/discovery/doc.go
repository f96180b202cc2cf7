// Package discovery resolves which inverter to manage and what it can
// do.
//
// The account device list is paged; Devices walks all pages. Resolve
// picks a device by serial, or the only device on the account when no
// serial is given. Probe fetches the detail document and derives the
// series profile and scheduler capability from it.
package discovery
