// Package channel implements the push-based channel layer (spec.md §4.3):
// pipeline, exchange, aggregate and broadcast channels, each with
// cancellation (§4.2).
package channel

import (
	"errors"

	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/tag"
)

// PushResult is the outcome of a single Push call.
type PushResult int

const (
	// Accepted means the batch was fully absorbed.
	Accepted PushResult = iota
	// Blocked means the target's buffer pool is exhausted; the caller
	// (the scheduler, via the operator's Blocked(port) return) must stop
	// pushing until a buffer-return event wakes this output.
	Blocked
)

// EndPolicy selects how a channel kind synthesizes the terminal end batch
// for a tag, per spec.md §4.1.
type EndPolicy int

const (
	// EndForward: the single producer peer emits an end carrying
	// peers={src}; the consumer merges over all src in peers. Used by
	// Pipeline channels.
	EndForward EndPolicy = iota
	// EndSyncBySender: every sending peer emits its local end; the
	// consumer merges until its accumulated peer mask equals the
	// declared peers. Used by Exchange and Broadcast channels.
	EndSyncBySender
	// EndAggregator: one designated consumer collects ends from all
	// senders and re-broadcasts the merged end. Used by Aggregate(k)
	// channels.
	EndAggregator
)

var (
	// ErrClosed names use of a channel after Close. No channel kind in this
	// package returns it.
	ErrClosed = errors.New("channel: closed")
	// ErrCancelled names a push for an already fully-cancelled tag whose
	// data is dropped per spec.md §4.2's invariant. No channel kind in this
	// package returns it: such a push reports Accepted with a nil error.
	ErrCancelled = errors.New("channel: tag cancelled, data dropped")
)

// Sender is the producer-side handle to a channel. Channels are move-only:
// exactly one operator output owns a Sender instance (spec.md §9 "Shared
// mutable channel state").
type Sender[T any] interface {
	// Push delivers a batch. A batch with End set closes Tag for every
	// consumer reachable through this channel; no further Push for that
	// Tag is permitted.
	Push(b batch.Batch[T]) (PushResult, error)
	// Flush forces any buffered-but-unsent data out (used before emitting
	// an end on Exchange channels, spec.md §4.3).
	Flush(t tag.Tag) error
	// Close releases channel resources. Idempotent.
	Close() error
}

// Receiver is the consumer-side handle to a channel.
type Receiver[T any] interface {
	// Recv blocks until a batch is available or the channel is closed
	// and drained, in which case ok is false.
	Recv() (b batch.Batch[T], ok bool)
}

// sequencer hands out strictly increasing sequence numbers per (channel,
// tag) at the producer, satisfying spec.md §8's "output sequence numbers
// are strictly increasing" invariant.
type sequencer struct {
	next map[string]uint64
}

func newSequencer() *sequencer { return &sequencer{next: make(map[string]uint64)} }

func (s *sequencer) nextSeq(t tag.Tag) uint64 {
	k := t.Key()
	n := s.next[k]
	s.next[k] = n + 1
	return n
}
