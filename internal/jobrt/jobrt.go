// Package jobrt implements the job error taxonomy (spec.md §7): typed
// errors carrying their source kind and propagation policy, plus the
// cooperative-cancel aggregation used when a worker's peers all fail
// together.
package jobrt

import (
	"fmt"

	"go.uber.org/multierr"
)

// ErrKind discriminates the error sources of spec.md §7's table.
type ErrKind int

const (
	// ErrKindBuild: plan malformed, unknown operator, bad channel wiring.
	// Fails submission before any worker starts.
	ErrKindBuild ErrKind = iota
	// ErrKindIOInternal: a channel invariant was violated (empty batch,
	// peer-mask mismatch). Fails the job; reported to the sink.
	ErrKindIOInternal
	// ErrKindIOInterrupted: output blocked mid-push. Recoverable; the
	// scheduler simply reschedules the operator.
	ErrKindIOInterrupted
	// ErrKindIOBrokenPipe: a peer was lost. Fails the job on every
	// surviving peer.
	ErrKindIOBrokenPipe
	// ErrKindUserFunction: a kernel returned an error. Fails the job;
	// propagated to the sink with the user message.
	ErrKindUserFunction
	// ErrKindCancelled: client cancelled, or the job's time limit expired.
	// The sink receives cancellation; workers exit cleanly.
	ErrKindCancelled
	// ErrKindResource: a slot pool was exhausted irrecoverably. Fails the
	// job.
	ErrKindResource
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindBuild:
		return "build"
	case ErrKindIOInternal:
		return "io_internal"
	case ErrKindIOInterrupted:
		return "io_interrupted"
	case ErrKindIOBrokenPipe:
		return "io_broken_pipe"
	case ErrKindUserFunction:
		return "user_function"
	case ErrKindCancelled:
		return "cancelled"
	case ErrKindResource:
		return "resource"
	default:
		return "unknown"
	}
}

// Recoverable reports whether this kind should ever be retried instead of
// failing the job (only ErrKindIOInterrupted per spec.md §7).
func (k ErrKind) Recoverable() bool { return k == ErrKindIOInterrupted }

// JobError is the error value propagated to a job's result sink and
// published on the event bus (spec.md §7 "Propagation").
type JobError struct {
	Kind ErrKind
	Peer int
	Op   string
	Err  error
}

// New constructs a JobError.
func New(kind ErrKind, peer int, op string, err error) *JobError {
	return &JobError{Kind: kind, Peer: peer, Op: op, Err: err}
}

func (e *JobError) Error() string {
	return fmt.Sprintf("%s: peer=%d op=%s: %v", e.Kind, e.Peer, e.Op, e.Err)
}

func (e *JobError) Unwrap() error { return e.Err }

// Aggregate combines every peer's cooperative-cancel error into one error,
// preserving each peer's JobError identity (spec.md §4.8: "on error,
// propagate to the sink and cooperatively cancel remaining operators").
// A nil-only input set returns nil.
func Aggregate(errs ...error) error {
	var combined error
	for _, e := range errs {
		if e != nil {
			combined = multierr.Append(combined, e)
		}
	}
	return combined
}
