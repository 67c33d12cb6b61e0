// Package iterate implements the iteration-switch & feedback operator family
// (spec.md §4.6): bounded iteration with feedback edges, layered on top of
// internal/operator's Kernel/Session contract. No teacher analogue exists —
// packet pipelines don't loop — so this is built fresh in the operator
// package's idiom, cross-checked against original_source's Pegasus
// iteration operator (pegasus/src/operator/iteration/mod.rs, switch.rs) for
// the termination/retire-counter shape.
package iterate

import (
	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/operator"
	"firestige.xyz/gflow/internal/tag"
)

// Condition governs when a scope leaves iteration (spec.md §4.6's
// termination rule): max iteration count, a per-record predicate (the
// "zero records circulate" case falls naturally out of an always-false
// predicate plus the bodyCount==0 check in Switch), or a folded aggregate
// value tested against a user predicate (§ Supplemented features'
// UntilAggregate, grounded on pegasus/src/operator/concise/count.rs's
// accumulate-then-test shape).
type Condition[T any] struct {
	// MaxIters bounds the iteration count; 0 means unbounded (rely on
	// Predicate/Satisfied or natural exhaustion instead).
	MaxIters uint32
	// Predicate, if set, is evaluated per record at iteration n; true routes
	// the record to leave instead of the next iteration.
	Predicate func(record T, iter uint32) bool
	// Fold accumulates every record seen in one iteration round into agg.
	Fold func(agg T, record T) T
	// Satisfied tests the folded aggregate once an iteration round's end
	// arrives; true terminates the whole scope.
	Satisfied func(agg T) bool
}

func (c Condition[T]) maxReached(n uint32) bool {
	return c.MaxIters > 0 && n+1 >= c.MaxIters
}

// Enter implements the Enter operator: tags every record of input tag p with
// child tag (p, 0) before forwarding it into the loop body, and forwards p's
// end unchanged at level (p, 0) so Switch observes the first round's end.
type Enter[T any] struct{}

func (Enter[T]) OnReceive(in batch.Batch[T], out *operator.Session[T]) (operator.Action, operator.BlockedPorts, error) {
	child := in.Tag.Inherit(0)
	for _, r := range in.Data {
		out.Emit(child, r)
	}
	if in.IsEnd() {
		end := *in.End
		end.Tag = child
		out.EmitEnd(child, end)
	}
	return operator.Continue, nil, nil
}

func (Enter[T]) OnEnd(batch.End, *operator.Session[T]) (operator.Action, error) { return operator.Continue, nil }
func (Enter[T]) OnCancel(tag.Tag) error                                         { return nil }

type iterRound[T any] struct {
	bodyCount int
	agg       T
	hasAgg    bool
}

// Switch implements the Switch operator (spec.md §4.6): one input carrying
// the loop body's output at tag (p, n), two outputs — Leave receives
// terminated records at tag p, Body receives continuing records at tag
// (p, n+1). Unlike a plain Kernel, Switch writes into two independent
// sessions since "leave" and "back-edge" are physically different channels.
type Switch[T any] struct {
	Condition Condition[T]

	rounds map[string]*iterRound[T]
}

// NewSwitch constructs a switch operator for the given termination condition.
func NewSwitch[T any](cond Condition[T]) *Switch[T] {
	return &Switch[T]{Condition: cond, rounds: make(map[string]*iterRound[T])}
}

func (s *Switch[T]) round(key string) *iterRound[T] {
	r, ok := s.rounds[key]
	if !ok {
		r = &iterRound[T]{}
		s.rounds[key] = r
	}
	return r
}

// Fire processes one batch of the body's output, splitting its records
// across leave and body (the back-edge into the next iteration).
func (s *Switch[T]) Fire(in batch.Batch[T], leave, body *operator.Session[T]) error {
	if in.Tag.IsRoot() {
		// a scope never enters iteration at the root tag; nothing to split.
		return nil
	}
	n := in.Tag.Current()
	p := in.Tag.Parent()
	key := in.Tag.Key()
	round := s.round(key)

	maxReached := s.Condition.maxReached(n)
	for _, r := range in.Data {
		done := maxReached
		if !done && s.Condition.Predicate != nil {
			done = s.Condition.Predicate(r, n)
		}
		if done {
			leave.Emit(p, r)
			continue
		}
		body.Emit(p.Inherit(n+1), r)
		round.bodyCount++
		if s.Condition.Fold != nil {
			round.agg = s.Condition.Fold(round.agg, r)
			round.hasAgg = true
		}
	}

	if in.IsEnd() {
		terminate := maxReached || round.bodyCount == 0
		if !terminate && s.Condition.Satisfied != nil && round.hasAgg {
			terminate = s.Condition.Satisfied(round.agg)
		}
		end := *in.End
		delete(s.rounds, key)
		if terminate {
			end.Tag = p
			leave.EmitEnd(p, end)
		} else {
			next := p.Inherit(n + 1)
			end.Tag = next
			body.EmitEnd(next, end)
		}
	}
	return nil
}

// Feedback is the back-edge: it forwards the body's continuing batches
// unchanged back into the body's entry point. Cross-peer retire counting
// (spec.md §4.6: "when the retire counter equals the current iteration's
// live peer set, the iteration is complete") is delegated to the channel
// layer's existing End.Peers accumulation (internal/channel's MergeEnd) on
// whatever channel carries this edge — Feedback itself stays a pure
// pass-through so that accumulation isn't duplicated.
type Feedback[T any] struct{}

func (Feedback[T]) OnReceive(in batch.Batch[T], out *operator.Session[T]) (operator.Action, operator.BlockedPorts, error) {
	for _, r := range in.Data {
		out.Emit(in.Tag, r)
	}
	if in.IsEnd() {
		out.EmitEnd(in.Tag, *in.End)
	}
	return operator.Continue, nil, nil
}

func (Feedback[T]) OnEnd(batch.End, *operator.Session[T]) (operator.Action, error) {
	return operator.Continue, nil
}
func (Feedback[T]) OnCancel(tag.Tag) error { return nil }
