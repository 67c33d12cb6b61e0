package channel

import (
	"sync"

	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/tag"
)

// Pipeline is the 1→1, same-peer channel kind (spec.md §4.3 table): the
// simplest channel, identity routing, forward end policy. Pipeline channels
// back most of an operator graph's internal edges — the teacher's
// rawPacketChan (internal/pipeline/pipeline.go) is the single-stage special
// case of this.
type Pipeline[T any] struct {
	id   ID
	ch   chan batch.Batch[T]
	seq  *sequencer
	can  *SingleConsumer
	once sync.Once
}

// NewPipeline constructs a pipeline channel with the given buffered
// capacity (in batches, not records).
func NewPipeline[T any](id ID, capacity int) *Pipeline[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Pipeline[T]{
		id:  id,
		ch:  make(chan batch.Batch[T], capacity),
		seq: newSequencer(),
		can: NewSingleConsumer(),
	}
}

// Canceller exposes the SC listener so the scheduler can route a
// downstream Cancel event (§4.7's "early_stop") to this channel's producer.
func (p *Pipeline[T]) Canceller() *SingleConsumer { return p.can }

func (p *Pipeline[T]) Push(b batch.Batch[T]) (PushResult, error) {
	if p.can.Cancelled(b.Tag) && !b.IsEnd() {
		// spec.md §4.2: data for a globally-cancelled tag is dropped, but
		// an end must still be emitted so progress can close.
		return Accepted, nil
	}
	b.Src = 0
	b.Seq = p.seq.nextSeq(b.Tag)
	select {
	case p.ch <- b:
		return Accepted, nil
	default:
		return Blocked, nil
	}
}

func (p *Pipeline[T]) Flush(tag.Tag) error { return nil } // unbuffered beyond the Go channel itself

func (p *Pipeline[T]) Close() error {
	p.once.Do(func() { close(p.ch) })
	return nil
}

func (p *Pipeline[T]) Recv() (batch.Batch[T], bool) {
	b, ok := <-p.ch
	return b, ok
}
