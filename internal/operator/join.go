package operator

import (
	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/tag"
)

// JoinKind selects which rows of a mismatched key survive the join, per
// spec.md §4.5's "join (inner/left/right/full/semi/anti by key)".
type JoinKind int

const (
	JoinInner JoinKind = iota
	JoinLeft
	JoinRight
	JoinFull
	JoinSemi
	JoinAnti
)

// JoinKeyFunc extracts the join key from one side's record.
type JoinKeyFunc[T any] func(T) string

// JoinCombineFunc produces the output record for a matched (left, right)
// pair. Unused by Semi/Anti, which only ever emit one side.
type JoinCombineFunc[L, R, O any] func(left L, right R) O

// JoinSideFunc produces the output record for an unmatched (or, for
// Semi/Anti, matched-but-single-sided) row.
type JoinSideFunc[T, O any] func(row T) O

// JoinKernel buffers both input streams per scope tag and, once both sides
// have reached their end for that tag, performs a hash join keyed by
// LeftKey/RightKey. Unlike fold/unfold, join does not change scope level:
// results are emitted at the same tag the inputs arrived on.
//
// JoinKernel has two differently-typed input ports, so it does not itself
// satisfy Kernel[T, U]; JoinLeftPort/JoinRightPort adapt each side.
type JoinKernel[L, R, O any] struct {
	Kind JoinKind

	LeftKey  JoinKeyFunc[L]
	RightKey JoinKeyFunc[R]

	Combine   JoinCombineFunc[L, R, O]
	LeftOnly  JoinSideFunc[L, O]
	RightOnly JoinSideFunc[R, O]

	scopes map[string]*joinScope[L, R]
}

type joinScope[L, R any] struct {
	left  []L
	right []R

	leftEnded, rightEnded bool
	leftEnd, rightEnd     *batch.End
}

// NewJoinKernel constructs a join kernel of the given kind.
func NewJoinKernel[L, R, O any](kind JoinKind, leftKey JoinKeyFunc[L], rightKey JoinKeyFunc[R]) *JoinKernel[L, R, O] {
	return &JoinKernel[L, R, O]{
		Kind:     kind,
		LeftKey:  leftKey,
		RightKey: rightKey,
		scopes:   make(map[string]*joinScope[L, R]),
	}
}

func (k *JoinKernel[L, R, O]) scope(t tag.Tag) *joinScope[L, R] {
	key := t.Key()
	s, ok := k.scopes[key]
	if !ok {
		s = &joinScope[L, R]{}
		k.scopes[key] = s
	}
	return s
}

func (k *JoinKernel[L, R, O]) onReceiveLeft(in batch.Batch[L], out *Session[O]) (Action, BlockedPorts, error) {
	s := k.scope(in.Tag)
	s.left = append(s.left, in.Data...)
	if in.IsEnd() {
		s.leftEnded = true
		s.leftEnd = in.End
		k.maybeEmit(in.Tag, s, out)
	}
	return Continue, nil, nil
}

func (k *JoinKernel[L, R, O]) onReceiveRight(in batch.Batch[R], out *Session[O]) (Action, BlockedPorts, error) {
	s := k.scope(in.Tag)
	s.right = append(s.right, in.Data...)
	if in.IsEnd() {
		s.rightEnded = true
		s.rightEnd = in.End
		k.maybeEmit(in.Tag, s, out)
	}
	return Continue, nil, nil
}

func (k *JoinKernel[L, R, O]) maybeEmit(t tag.Tag, s *joinScope[L, R], out *Session[O]) {
	if !s.leftEnded || !s.rightEnded {
		return
	}

	rightByKey := make(map[string][]R, len(s.right))
	for _, r := range s.right {
		key := k.RightKey(r)
		rightByKey[key] = append(rightByKey[key], r)
	}
	rightMatched := make(map[string]bool, len(s.right))

	for _, l := range s.left {
		key := k.LeftKey(l)
		matches := rightByKey[key]
		switch k.Kind {
		case JoinInner, JoinLeft, JoinFull:
			if len(matches) == 0 {
				if k.Kind != JoinInner && k.LeftOnly != nil {
					out.Emit(t, k.LeftOnly(l))
				}
				continue
			}
			for _, r := range matches {
				rightMatched[key] = true
				if k.Combine != nil {
					out.Emit(t, k.Combine(l, r))
				}
			}
		case JoinRight:
			if len(matches) > 0 {
				for _, r := range matches {
					rightMatched[key] = true
					if k.Combine != nil {
						out.Emit(t, k.Combine(l, r))
					}
				}
			}
		case JoinSemi:
			if len(matches) > 0 && k.LeftOnly != nil {
				out.Emit(t, k.LeftOnly(l))
			}
		case JoinAnti:
			if len(matches) == 0 && k.LeftOnly != nil {
				out.Emit(t, k.LeftOnly(l))
			}
		}
	}

	if k.Kind == JoinRight || k.Kind == JoinFull {
		for _, r := range s.right {
			key := k.RightKey(r)
			if !rightMatched[key] && k.RightOnly != nil {
				out.Emit(t, k.RightOnly(r))
			}
		}
	}

	end := s.leftEnd
	if s.rightEnd != nil {
		if end == nil {
			end = s.rightEnd
		} else {
			merged := end.Merge(*s.rightEnd)
			end = &merged
		}
	}
	if end != nil {
		out.EmitEnd(t, *end)
	}
	delete(k.scopes, t.Key())
}

// JoinLeftPort adapts a JoinKernel's left input to the Kernel contract.
type JoinLeftPort[L, R, O any] struct{ Join *JoinKernel[L, R, O] }

func (p JoinLeftPort[L, R, O]) OnReceive(in batch.Batch[L], out *Session[O]) (Action, BlockedPorts, error) {
	return p.Join.onReceiveLeft(in, out)
}
func (p JoinLeftPort[L, R, O]) OnEnd(batch.End, *Session[O]) (Action, error) { return Continue, nil }
func (p JoinLeftPort[L, R, O]) OnCancel(tag.Tag) error                       { return nil }

// JoinRightPort adapts a JoinKernel's right input to the Kernel contract.
type JoinRightPort[L, R, O any] struct{ Join *JoinKernel[L, R, O] }

func (p JoinRightPort[L, R, O]) OnReceive(in batch.Batch[R], out *Session[O]) (Action, BlockedPorts, error) {
	return p.Join.onReceiveRight(in, out)
}
func (p JoinRightPort[L, R, O]) OnEnd(batch.End, *Session[O]) (Action, error) { return Continue, nil }
func (p JoinRightPort[L, R, O]) OnCancel(tag.Tag) error                       { return nil }
