package channel

import (
	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/peers"
	"firestige.xyz/gflow/internal/tag"
)

// Broadcast is the 1→N channel kind that delivers every record to every
// target (spec.md §4.3 table), with the sync-by-sender end policy shared
// with Exchange. Unlike Exchange there is no routing: each push is copied
// to all targets.
type Broadcast[T any] struct {
	self    int
	targets []int
	seq     *sequencer
	mc      *MultiConsumer

	out map[int]chan batch.Batch[T]
}

// NewBroadcast constructs a broadcast sender handle.
func NewBroadcast[T any](id ID, self int, targets []int, capacity int, enableCancelChild bool) *Broadcast[T] {
	if capacity <= 0 {
		capacity = 1
	}
	b := &Broadcast[T]{
		self:    self,
		targets: targets,
		seq:     newSequencer(),
		mc:      NewMultiConsumer(len(targets), enableCancelChild),
		out:     make(map[int]chan batch.Batch[T], len(targets)),
	}
	for _, t := range targets {
		b.out[t] = make(chan batch.Batch[T], capacity)
	}
	return b
}

func (b *Broadcast[T]) Canceller() *MultiConsumer { return b.mc }

func (b *Broadcast[T]) OutputFor(target int) Receiver[T] {
	return receiverFunc[T](func() (batch.Batch[T], bool) {
		v, ok := <-b.out[target]
		return v, ok
	})
}

func (b *Broadcast[T]) Push(batchIn batch.Batch[T]) (PushResult, error) {
	if b.mc.Cancelled(batchIn.Tag) && !batchIn.IsEnd() {
		return Accepted, nil
	}
	seq := b.seq.nextSeq(batchIn.Tag)
	blocked := false
	for _, target := range b.targets {
		out := batchIn
		out.Src = b.self
		out.Seq = seq
		select {
		case b.out[target] <- out:
		default:
			blocked = true
		}
	}
	if blocked {
		return Blocked, nil
	}
	return Accepted, nil
}

func (b *Broadcast[T]) Flush(tag.Tag) error { return nil }

func (b *Broadcast[T]) Close() error {
	for _, ch := range b.out {
		close(ch)
	}
	return nil
}

// MergeEnd mirrors Exchange.MergeEnd for the sync-by-sender policy shared
// between Broadcast and Exchange.
func (b *Broadcast[T]) MergeEnd(declared peers.Mask, acc, contribution batch.End) (batch.End, bool) {
	merged := acc.Merge(contribution)
	if merged.Peers.Size() >= declared.Size() {
		return merged, true
	}
	return merged, false
}
