package operator

import (
	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/tag"
)

// ApplyFunc runs a correlated subtask to completion for one input record and
// returns its result. Spec.md §4.5 describes apply only abstractly as "for
// each input record, run a sub-dataflow and join its output back to the
// record"; this is the synchronous form that composes with the count()
// subtask shape in pegasus/examples/subtask_apply.rs and the idempotence law
// in spec.md §8 ("apply(sub) where sub is count() of a constant lazy stream
// of length n yields each input paired with n").
type ApplyFunc[T, S any] func(record T) S

// ApplyCombineFunc joins one input record with its subtask result.
type ApplyCombineFunc[T, S, O any] func(record T, result S) O

// ApplyKernel implements the apply operator family: same scope level in and
// out, one subtask invocation per input record.
type ApplyKernel[T, S, O any] struct {
	Subtask ApplyFunc[T, S]
	Combine ApplyCombineFunc[T, S, O]
}

func (k ApplyKernel[T, S, O]) OnReceive(in batch.Batch[T], out *Session[O]) (Action, BlockedPorts, error) {
	for _, r := range in.Data {
		result := k.Subtask(r)
		out.Emit(in.Tag, k.Combine(r, result))
	}
	if in.IsEnd() {
		out.EmitEnd(in.Tag, *in.End)
	}
	return Continue, nil, nil
}

func (k ApplyKernel[T, S, O]) OnEnd(batch.End, *Session[O]) (Action, error) { return Continue, nil }
func (k ApplyKernel[T, S, O]) OnCancel(tag.Tag) error                       { return nil }
