package operator

import (
	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/peers"
	"firestige.xyz/gflow/internal/tag"
)

// RecordSource is the external collaborator a source operator pulls from —
// the graph-query front end / storage adapters (spec.md §1 "out of scope").
// This module only depends on the narrow interface.
type RecordSource[T any] interface {
	// Next returns the next record, or ok=false once exhausted.
	Next() (record T, ok bool)
}

// SliceSource adapts a plain slice into a RecordSource, used heavily in
// tests and for the §6.1 "source: bytes consumed by the source operator"
// case where the bytes decode to an in-memory record list.
type SliceSource[T any] struct {
	data []T
	pos  int
}

// NewSliceSource builds a RecordSource over data.
func NewSliceSource[T any](data []T) *SliceSource[T] { return &SliceSource[T]{data: data} }

func (s *SliceSource[T]) Next() (T, bool) {
	if s.pos >= len(s.data) {
		var zero T
		return zero, false
	}
	r := s.data[s.pos]
	s.pos++
	return r, true
}

// SourceKernel drains a RecordSource and emits root-tagged batches of up to
// batchSize records, terminated by a single end-of-root batch — spec.md
// §8's "Empty source produces exactly one end-of-root, no data" and
// §3.3's "batch ≤ batch_size" invariant both apply here.
type SourceKernel[T any] struct {
	Src       RecordSource[T]
	Self      int
	BatchSize int

	exhausted bool // Src.Next() has returned ok=false at least once
	Done      bool // the terminal end batch has already been produced
}

// NewSourceKernel constructs a source kernel for peer self.
func NewSourceKernel[T any](src RecordSource[T], self, batchSize int) *SourceKernel[T] {
	if batchSize <= 0 {
		batchSize = 1024
	}
	return &SourceKernel[T]{Src: src, Self: self, BatchSize: batchSize}
}

// Fire pulls up to BatchSize records and returns the next batch to push, or
// ok=false once the source (and its end) has already been produced.
func (k *SourceKernel[T]) Fire() (b batch.Batch[T], ok bool) {
	if k.Done {
		return batch.Batch[T]{}, false
	}
	if k.exhausted {
		k.Done = true
		end := batch.End{Tag: tag.Root(), Peers: peers.Of(1, k.Self)}
		return batch.NewEnd[T](tag.Root(), k.Self, 0, end), true
	}

	data := make([]T, 0, k.BatchSize)
	for len(data) < k.BatchSize {
		r, more := k.Src.Next()
		if !more {
			k.exhausted = true
			break
		}
		data = append(data, r)
	}
	if len(data) == 0 {
		k.Done = true
		end := batch.End{Tag: tag.Root(), Peers: peers.Of(1, k.Self)}
		return batch.NewEnd[T](tag.Root(), k.Self, 0, end), true
	}
	return batch.New(tag.Root(), k.Self, 0, data), true
}
