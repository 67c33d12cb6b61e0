// Package batch implements the micro-batch data container carried by every
// channel (spec.md §3.3, §3.4) and channel identity (§3.5).
package batch

import (
	"fmt"

	"firestige.xyz/gflow/internal/peers"
	"firestige.xyz/gflow/internal/tag"
)

// ID uniquely identifies a channel within a job. ChannelIndex 0 is reserved
// for the event bus.
type ID struct {
	JobID        uint64
	ChannelIndex uint32
}

// EventBusChannelIndex is the reserved channel index for the event bus.
const EventBusChannelIndex uint32 = 0

func (id ID) String() string {
	return fmt.Sprintf("job=%d/ch=%d", id.JobID, id.ChannelIndex)
}

// End is the end-of-scope marker (spec.md §3.4). A scope's end is only
// globally complete for a consumer once the consumer has accumulated
// contributions from every peer in Peers.
type End struct {
	Tag             tag.Tag
	Peers           peers.Mask
	GlobalTotalSend uint64 // diagnostics/ordering only, spec.md §3.4
	TotalSend       uint64 // per-target count, exchange channels only
}

// Merge combines two end contributions for the same tag, used by the
// sync-by-sender and aggregator end policies (§4.1) while accumulating
// per-peer contributions.
func (e End) Merge(other End) End {
	return End{
		Tag:             e.Tag,
		Peers:           e.Peers.Union(other.Peers),
		GlobalTotalSend: e.GlobalTotalSend + other.GlobalTotalSend,
		TotalSend:       e.TotalSend + other.TotalSend,
	}
}

// Batch is the unit of transfer on a channel (spec.md §3.3). Data is
// generic over the record type T: operators and channels instantiate Batch
// per wire type, the way the teacher instantiates core.RawPacket /
// core.OutputPacket as plain structs (internal/pipeline/pipeline.go).
type Batch[T any] struct {
	Tag       tag.Tag
	Src       int // producing peer index
	Seq       uint64
	Data      []T
	End       *End // non-nil marks this batch as closing Tag for the consumer
	Discarded bool // set when the consumer has been cancelled for this tag
}

// IsEnd reports whether b carries an end-of-scope marker. An end batch is
// legal (and required to close a scope) even when Data is empty.
func (b Batch[T]) IsEnd() bool { return b.End != nil }

// Empty reports whether b carries no data records.
func (b Batch[T]) Empty() bool { return len(b.Data) == 0 }

// New constructs a plain data batch (no end marker) for tag t produced by
// peer src at sequence seq.
func New[T any](t tag.Tag, src int, seq uint64, data []T) Batch[T] {
	return Batch[T]{Tag: t, Src: src, Seq: seq, Data: data}
}

// NewEnd constructs a terminal, dataless batch carrying end.
func NewEnd[T any](t tag.Tag, src int, seq uint64, end End) Batch[T] {
	e := end
	return Batch[T]{Tag: t, Src: src, Seq: seq, End: &e}
}
