// Package profiles selects series-specific behavior for FoxESS
// inverters.
//
// The cloud exposes the same endpoints for every series but the
// useful realtime variables and the accepted numeric ranges differ
// between, say, a single-phase KH and a three-phase H3. A Profile
// bundles those differences so the rest of the module stays
// series-agnostic.
package profiles
