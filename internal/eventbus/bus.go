package eventbus

import (
	"fmt"
	"hash/fnv"

	"go.uber.org/atomic"
)

// channelIndex is the reserved channel slot for bus traffic (spec.md §3.5).
const channelIndex = 0

// Bus is a per-peer event bus: a fan-in of per-partition queues, partitioned
// by tag so that events for the same tag are always observed in the order
// they were published (spec.md §4.4's "delivered in FIFO per (sender,
// receiver) order").
//
// Grounded on the teacher's internal/eventbus/bus.go (InMemoryEventBus):
// same fnv-hash partitioning idea, but with no per-partition goroutine:
// Publish never invokes a handler directly — Drain is pulled by the
// scheduler at quiescence points instead, per spec.md §9.
type Bus struct {
	partitions     []*partition
	partitionCount int

	publishedCount atomic.Int64
	drainedCount   atomic.Int64
}

type partition struct {
	id    int
	queue chan Event
}

// New creates a bus with partitionCount independent queues, each of depth
// queueSize.
func New(partitionCount, queueSize int) *Bus {
	if partitionCount <= 0 {
		partitionCount = 1
	}
	if queueSize <= 0 {
		queueSize = 256
	}
	b := &Bus{partitionCount: partitionCount, partitions: make([]*partition, partitionCount)}
	for i := 0; i < partitionCount; i++ {
		b.partitions[i] = &partition{id: i, queue: make(chan Event, queueSize)}
	}
	return b
}

func (b *Bus) partitionFor(key string) *partition {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return b.partitions[int(h.Sum32())%b.partitionCount]
}

func (b *Bus) keyFor(e Event) string {
	switch e.Kind {
	case KindEnd:
		return e.EndPayload.Tag.Key()
	case KindCancel:
		return e.CancelPayload.Tag.Key()
	default:
		return fmt.Sprintf("hb-%d", e.Sender)
	}
}

// Publish enqueues an event onto its tag's partition. Returns false if that
// partition's queue is saturated — callers (the channel layer) should treat
// this the same as Blocked on a data channel and retry.
func (b *Bus) Publish(e Event) bool {
	p := b.partitionFor(b.keyFor(e))
	select {
	case p.queue <- e:
		b.publishedCount.Inc()
		return true
	default:
		return false
	}
}

// Drain pulls every currently-queued event across all partitions and
// applies fn to each, in per-partition arrival order. Called by the
// scheduler once per scheduling quantum (spec.md §4.7 "Drains the event
// bus"), never concurrently with itself.
func (b *Bus) Drain(fn func(Event)) int {
	n := 0
	for _, p := range b.partitions {
	loop:
		for {
			select {
			case e := <-p.queue:
				fn(e)
				n++
			default:
				break loop
			}
		}
	}
	b.drainedCount.Add(int64(n))
	return n
}

// Stats mirrors the teacher's Stats/GetStats shape for observability.
type Stats struct {
	Published int64
	Drained   int64
	Queued    []int
}

func (b *Bus) Stats() Stats {
	s := Stats{Published: b.publishedCount.Load(), Drained: b.drainedCount.Load(), Queued: make([]int, b.partitionCount)}
	for i, p := range b.partitions {
		s.Queued[i] = len(p.queue)
	}
	return s
}

// Pending reports whether any partition still holds unprocessed events —
// used by the scheduler's idle/finished detection (spec.md §4.7).
func (b *Bus) Pending() bool {
	for _, p := range b.partitions {
		if len(p.queue) > 0 {
			return true
		}
	}
	return false
}
