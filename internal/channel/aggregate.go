package channel

import (
	"sync"

	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/peers"
	"firestige.xyz/gflow/internal/tag"
)

// Aggregate is the N→1, constant-routing channel kind (spec.md §4.3 table):
// every sending peer pushes to the same designated peer k. The aggregator
// end policy lives here: peer k collects an end contribution from every
// sender and re-broadcasts the merged end to its own downstream consumer.
type Aggregate[T any] struct {
	id     ID
	self   int // this sender's peer index
	target int // the designated aggregator peer, "k"
	seq    *sequencer
	can    *SingleConsumer // from the sender's perspective there is one downstream: k

	mu     sync.Mutex
	endAcc map[string]batch.End // aggregator side only

	out chan batch.Batch[T] // delivery into peer k, in-process
}

// NewAggregate constructs one sender-side handle of an Aggregate(k)
// channel; the aggregator peer additionally calls MergeEnd as contributions
// arrive.
func NewAggregate[T any](id ID, self, target, capacity int) *Aggregate[T] {
	if capacity <= 0 {
		capacity = 1
	}
	return &Aggregate[T]{
		id:     id,
		self:   self,
		target: target,
		seq:    newSequencer(),
		can:    NewSingleConsumer(),
		endAcc: make(map[string]batch.End),
		out:    make(chan batch.Batch[T], capacity),
	}
}

func (a *Aggregate[T]) Canceller() *SingleConsumer { return a.can }

func (a *Aggregate[T]) Push(b batch.Batch[T]) (PushResult, error) {
	if a.can.Cancelled(b.Tag) && !b.IsEnd() {
		return Accepted, nil
	}
	b.Src = a.self
	b.Seq = a.seq.nextSeq(b.Tag)
	select {
	case a.out <- b:
		return Accepted, nil
	default:
		return Blocked, nil
	}
}

func (a *Aggregate[T]) Flush(tag.Tag) error { return nil }

func (a *Aggregate[T]) Close() error {
	return nil // the aggregator peer owns closing `out` once all senders retire
}

// Recv is called on the aggregator peer k to read contributions from every
// sender, including itself.
func (a *Aggregate[T]) Recv() (batch.Batch[T], bool) {
	b, ok := <-a.out
	return b, ok
}

// MergeEnd is called by the aggregator peer as each sender's end arrives;
// once every peer in declared has contributed, it returns the single
// re-broadcast end for this channel's downstream consumer.
func (a *Aggregate[T]) MergeEnd(declared peers.Mask, contribution batch.End) (batch.End, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	key := contribution.Tag.Key()
	acc, ok := a.endAcc[key]
	if !ok {
		acc = batch.End{Tag: contribution.Tag}
	}
	acc = acc.Merge(contribution)
	if acc.Peers.Size() >= declared.Size() {
		delete(a.endAcc, key)
		return acc, true
	}
	a.endAcc[key] = acc
	return batch.End{}, false
}
