package operator

import (
	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/tag"
)

// FoldFunc reduces a closed child scope's accumulated records into a single
// U, emitted back at the parent tag — the shape behind `aggregate`/`group`
// style operators. Spec.md describes fold/unfold abstractly as the scope
// enter/leave operator family (§4.5); this is the minimal concrete form:
// unfold enters a child scope per input record, fold leaves it.
type FoldFunc[T, U any] func([]T) U

// FoldKernel is the scope-leave dual of UnfoldKernel: it accumulates every
// record seen for a child tag, and once that child's end is globally
// complete, reduces the accumulation with Fn and emits a single record at
// the parent tag — "popping" the scope per spec.md §3.1's parent().
type FoldKernel[T, U any] struct {
	Fn  FoldFunc[T, U]
	acc map[string][]T
}

// NewFoldKernel constructs a fold kernel.
func NewFoldKernel[T, U any](fn FoldFunc[T, U]) *FoldKernel[T, U] {
	return &FoldKernel[T, U]{Fn: fn, acc: make(map[string][]T)}
}

func (k *FoldKernel[T, U]) OnReceive(in batch.Batch[T], out *Session[U]) (Action, BlockedPorts, error) {
	key := in.Tag.Key()
	k.acc[key] = append(k.acc[key], in.Data...)
	if in.IsEnd() {
		parent := in.Tag.Parent()
		reduced := k.Fn(k.acc[key])
		delete(k.acc, key)
		out.Emit(parent, reduced)
	}
	return Continue, nil, nil
}

func (k *FoldKernel[T, U]) OnEnd(batch.End, *Session[U]) (Action, error) { return Continue, nil }
func (k *FoldKernel[T, U]) OnCancel(tag.Tag) error                       { return nil }

// UnfoldFunc expands a single U into a stream of T inside a freshly entered
// child scope.
type UnfoldFunc[U, T any] func(U) []T

// UnfoldKernel is the scope-entering dual of FoldKernel: each input record
// spawns a child scope carrying the expansion, closed with its own end
// before control returns to the parent tag.
type UnfoldKernel[U, T any] struct {
	Fn UnfoldFunc[U, T]
}

func (k *UnfoldKernel[U, T]) OnReceive(in batch.Batch[U], out *Session[T]) (Action, BlockedPorts, error) {
	for i, r := range in.Data {
		child := in.Tag.Inherit(uint32(i))
		expansion := k.Fn(r)
		for _, t := range expansion {
			out.Emit(child, t)
		}
		out.EmitEnd(child, batch.End{Tag: child})
	}
	if in.IsEnd() {
		out.EmitEnd(in.Tag, *in.End)
	}
	return Continue, nil, nil
}

func (k *UnfoldKernel[U, T]) OnEnd(batch.End, *Session[T]) (Action, error) { return Continue, nil }
func (k *UnfoldKernel[U, T]) OnCancel(tag.Tag) error                       { return nil }
