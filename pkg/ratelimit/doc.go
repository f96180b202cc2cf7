// Package ratelimit implements the shared call budget gate that every
// outbound cloud request passes through.
//
// The cloud account has a hard daily call allowance shared by the
// telemetry poller and user-triggered commits. The Limiter is the
// single owner of that budget: it serializes calls in strict FIFO
// order, enforces a minimum spacing between call starts, and blocks
// callers (cancellably) when the local budget is exhausted until the
// provider's day boundary rolls over.
//
// Local throttling is advisory. A rejection enforced by the provider
// itself arrives as an API error and is classified by the api package;
// the Limiter only prevents the client from spending the budget
// faster than policy allows.
//
// The Tracker keeps a rolling 24 hour call count in hourly buckets for
// diagnostics, independent of the day-boundary budget window.
package ratelimit
