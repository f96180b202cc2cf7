package log

import (
	"time"

	"github.com/google/uuid"
)

// Event is one audit record. CBOR encoding uses integer keys for
// compactness.
type Event struct {
	// ID uniquely identifies the event (UUID).
	ID string `cbor:"1,keyasint"`

	// Timestamp when the event occurred (nanosecond precision).
	Timestamp time.Time `cbor:"2,keyasint"`

	// Kind classifies the event.
	Kind Kind `cbor:"3,keyasint"`

	// DeviceSN is the device the event relates to, when known.
	DeviceSN string `cbor:"4,keyasint,omitempty"`

	// Type-specific payload (one of these will be set).
	Call   *CallEvent   `cbor:"5,keyasint,omitempty"`
	Commit *CommitEvent `cbor:"6,keyasint,omitempty"`
	Poll   *PollEvent   `cbor:"7,keyasint,omitempty"`
}

// NewEvent creates an event of the given kind with a fresh ID and the
// current timestamp.
func NewEvent(kind Kind) Event {
	return Event{
		ID:        uuid.NewString(),
		Timestamp: time.Now(),
		Kind:      kind,
	}
}

// Kind classifies the event type.
type Kind uint8

const (
	// KindCall is a completed (or failed) cloud API call.
	KindCall Kind = 0
	// KindCommit is a staged-write commit attempt.
	KindCommit Kind = 1
	// KindPoll is a telemetry poll tick outcome.
	KindPoll Kind = 2
)

// String returns the kind name.
func (k Kind) String() string {
	switch k {
	case KindCall:
		return "CALL"
	case KindCommit:
		return "COMMIT"
	case KindPoll:
		return "POLL"
	default:
		return "UNKNOWN"
	}
}

// CallEvent describes one cloud API call.
type CallEvent struct {
	// Endpoint is the API path, e.g. "/op/v1/device/scheduler/enable".
	Endpoint string `cbor:"1,keyasint" json:"endpoint"`

	// Method is the HTTP method.
	Method string `cbor:"2,keyasint" json:"method"`

	// Errno is the application-level result code (0 = success).
	// -1 when the call failed before producing a response envelope.
	Errno int `cbor:"3,keyasint" json:"errno"`

	// Message is the error message, if any.
	Message string `cbor:"4,keyasint,omitempty" json:"message,omitempty"`

	// Duration is the round-trip time.
	Duration time.Duration `cbor:"5,keyasint" json:"duration"`

	// CallsUsedToday is the budget counter after this call.
	CallsUsedToday int `cbor:"6,keyasint" json:"callsUsedToday"`

	// CallsLast24h is the rolling 24h count after this call.
	CallsLast24h int `cbor:"7,keyasint" json:"callsLast24h"`
}

// CommitEvent describes one commit attempt for a staged unit.
type CommitEvent struct {
	// Unit is the staged unit identifier.
	Unit string `cbor:"1,keyasint" json:"unit"`

	// Outcome is "committed", "noop", or the error kind on failure.
	Outcome string `cbor:"2,keyasint" json:"outcome"`

	// Errno is the remote rejection code, if the commit was rejected.
	Errno int `cbor:"3,keyasint,omitempty" json:"errno,omitempty"`
}

// PollEvent describes one telemetry poll tick.
type PollEvent struct {
	// OK is true when the refresh succeeded.
	OK bool `cbor:"1,keyasint" json:"ok"`

	// ConsecutiveFailures counts failed ticks since the last success.
	ConsecutiveFailures int `cbor:"2,keyasint,omitempty" json:"consecutiveFailures,omitempty"`

	// Degraded is true once the failure threshold is crossed.
	Degraded bool `cbor:"3,keyasint,omitempty" json:"degraded,omitempty"`

	// Message carries the failure reason, if any.
	Message string `cbor:"4,keyasint,omitempty" json:"message,omitempty"`
}
