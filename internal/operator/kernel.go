// Package operator implements the operator kernel contract (spec.md §4.5):
// input/output ports, the Continue/Blocked/Error fire protocol, and the
// built-in operator kernel shapes (source, map/flat_map/filter, fold/unfold,
// join, apply, sink).
//
// Grounded on the teacher's plugin shape (pkg/plugin: Capturer/Parser/
// Processor/Reporter, internal/pipeline/pipeline.go's processPacket) — a
// fixed five-stage pipeline of small interfaces called in sequence. This
// package generalizes that into a graph of arbitrary Kernel instances
// wired by channels, each firing independently under the scheduler.
package operator

import (
	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/tag"
)

// Action is a kernel's fire result (spec.md §4.5).
type Action int

const (
	// Continue: the kernel consumed everything it could; the operator may
	// be rescheduled as soon as more input or events arrive.
	Continue Action = iota
	// Blocked: at least one output port is backpressured; the scheduler
	// must not re-fire this operator until a buffer-return event wakes
	// the blocked port.
	Blocked
	// Error: the kernel failed; the runtime propagates a §7 UserFunction
	// error and begins cooperative cancellation.
	Error
)

// BlockedPorts is returned alongside Blocked to tell the scheduler which
// output ports are backpressured.
type BlockedPorts []int

// Kernel is the user-supplied (or built-in) behavior of one operator.
// Kernel is generic over T (input record type) and U (output record type) —
// operators with multiple differently-typed inputs compose several
// single-type Kernels over one shared state (see JoinLeftPort/JoinRightPort
// in join.go).
type Kernel[T, U any] interface {
	// OnReceive consumes (possibly partially) one input batch and writes
	// zero or more batches into out. The runtime guarantees OnReceive is
	// never called again for (tag, port) after a terminal end for that
	// tag has been delivered (spec.md §4.5's contract).
	OnReceive(in batch.Batch[T], out *Session[U]) (Action, BlockedPorts, error)
	// OnEnd is invoked once a tag's end is globally complete on every
	// input port. May itself push a terminal batch on out.
	OnEnd(end batch.End, out *Session[U]) (Action, error)
	// OnCancel notifies the kernel that tag t has been cancelled
	// downstream; most kernels no-op here and rely on the channel layer
	// to drop pushes (spec.md §4.2).
	OnCancel(t tag.Tag) error
}

// Session is the per-fire output accumulator a Kernel writes into. It
// exists so a single OnReceive call can emit to more than one output tag
// (e.g. an Enter operator pushing into a new child scope while leaving the
// parent tag untouched) without the kernel needing direct channel access.
type Session[U any] struct {
	emitted map[string][]U
	order   []tag.Tag
	ends    map[string]*batch.End
}

// NewSession creates an empty output session.
func NewSession[U any]() *Session[U] {
	return &Session[U]{emitted: make(map[string][]U), ends: make(map[string]*batch.End)}
}

// Emit appends a record to tag t's pending output.
func (s *Session[U]) Emit(t tag.Tag, record U) {
	key := t.Key()
	if _, ok := s.emitted[key]; !ok {
		s.order = append(s.order, t)
	}
	s.emitted[key] = append(s.emitted[key], record)
}

// EmitEnd marks tag t as closed in this session's output.
func (s *Session[U]) EmitEnd(t tag.Tag, end batch.End) {
	key := t.Key()
	if _, ok := s.emitted[key]; !ok {
		s.order = append(s.order, t)
	}
	e := end
	s.ends[key] = &e
}

// Batches returns the accumulated output as Batch values, in emission
// order, ready to Push onto an output channel.
func (s *Session[U]) Batches(src int, seq func(tag.Tag) uint64) []batch.Batch[U] {
	out := make([]batch.Batch[U], 0, len(s.order))
	for _, t := range s.order {
		key := t.Key()
		b := batch.Batch[U]{Tag: t, Src: src, Seq: seq(t), Data: s.emitted[key]}
		if end, ok := s.ends[key]; ok {
			b.End = end
		}
		out = append(out, b)
	}
	return out
}
