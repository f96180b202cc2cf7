package engine

import (
	"errors"
	"fmt"

	"github.com/foxsync/foxsync-go/pkg/model"
)

// ErrorKind classifies a failed commit.
type ErrorKind uint8

const (
	// KindUnknown covers failures the engine could not classify.
	// Callers should treat these like KindTransient: retrying is
	// safe because the staged value is preserved.
	KindUnknown ErrorKind = iota
	// KindTransient covers network and server-side failures that
	// are expected to clear on their own.
	KindTransient
	// KindRateLimited means the cloud rejected the call for
	// exceeding its own request frequency limits.
	KindRateLimited
	// KindConflict means the write is unsupported in the device's
	// current mode, typically a work mode write while the
	// scheduler is active.
	KindConflict
	// KindRejected means the cloud understood and refused the
	// request. Retrying the same payload will fail the same way.
	KindRejected
)

func (k ErrorKind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindRateLimited:
		return "rate-limited"
	case KindConflict:
		return "conflict"
	case KindRejected:
		return "rejected"
	default:
		return "unknown"
	}
}

// CommitError reports a failed commit together with its
// classification. The staged value for the unit is always preserved
// when a CommitError is returned.
type CommitError struct {
	Kind ErrorKind
	Unit model.UnitID
	// Errno is the remote error code, or 0 when the failure
	// happened before a response envelope was received.
	Errno int
	// Guidance carries operator-facing advice for failures that
	// need manual intervention, such as conflicts.
	Guidance string

	err error
}

func (e *CommitError) Error() string {
	if e.Guidance != "" {
		return fmt.Sprintf("commit %s: %s: %v (%s)", e.Unit, e.Kind, e.err, e.Guidance)
	}
	return fmt.Sprintf("commit %s: %s: %v", e.Unit, e.Kind, e.err)
}

func (e *CommitError) Unwrap() error { return e.err }

// KindOf returns the classification of err, or KindUnknown when err
// is not a CommitError.
func KindOf(err error) ErrorKind {
	var ce *CommitError
	if errors.As(err, &ce) {
		return ce.Kind
	}
	return KindUnknown
}
