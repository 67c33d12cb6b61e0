// Package plan turns the wire-format pb.Plan (spec.md §6.2) into a
// validated, topologically-checked Go-native Plan the worker can build a
// job's operator graph from, and defines the external interfaces
// (RecordSource) the engine consumes but does not implement (spec.md §1).
//
// Grounded on the teacher's internal/task/dispatch_strategy.go for the
// "small typed registry resolved by string kind" idiom, generalized from
// selecting a dispatch strategy to resolving an operator kind to a kernel
// factory.
package plan

import (
	"fmt"

	"firestige.xyz/gflow/pkg/pb"
)

// RecordSource is the external interface a source operator pulls from
// (spec.md §1: "the core consumes a built plan and per-operator user
// functions only" — RecordSource is how it consumes the data a query
// front-end or graph-storage adapter would otherwise hand it directly).
// Next returns false once the source is exhausted; it is never called
// again afterward.
type RecordSource interface {
	Next() (record []byte, ok bool)
}

// OperatorKind enumerates the operator kinds a Plan's descriptors carry
// (spec.md §6.2).
type OperatorKind string

const (
	KindSource           OperatorKind = "source"
	KindMap              OperatorKind = "map"
	KindFilter           OperatorKind = "filter"
	KindFlatMap          OperatorKind = "flat_map"
	KindRepartitionByKey OperatorKind = "repartition_by_key"
	KindAggregateTo      OperatorKind = "aggregate_to"
	KindFold             OperatorKind = "fold"
	KindUnfold           OperatorKind = "unfold"
	KindJoin             OperatorKind = "join"
	KindIterate          OperatorKind = "iterate"
	KindApply            OperatorKind = "apply"
	KindSubtask          OperatorKind = "subtask"
	KindSink             OperatorKind = "sink"
)

// Port addresses one input port of a prior operator.
type Port struct {
	OperatorIndex int
	Port          int
}

// Operator is one validated node of a Plan.
type Operator struct {
	Index    int
	Kind     OperatorKind
	Inputs   []Port
	Payload  []byte
	SubPlan  *Plan
	IterCond *pb.IterCondition
	JoinSpec *pb.JoinKeySpec
}

// Plan is a topologically ordered, validated operator list (spec.md §6.2).
type Plan struct {
	Operators []Operator
}

// BuildError reports a plan-build-time failure (spec.md §7's "Build
// error": "plan malformed, unknown operator, bad channel wiring — fail
// submission before any worker starts").
type BuildError struct {
	OperatorIndex int
	Reason        string
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("plan: operator %d: %s", e.OperatorIndex, e.Reason)
}

// ValidateBatchSize rejects a job's batch_size == 0 outright (spec.md §8).
// config.LoadJobSubmission fills 1024 only when a submission omits
// batch_size, so an explicit 0 reaches this check: a 0-sized micro-batch
// can never carry a record, so it is a build-time error rather than
// something to coerce. Callers run this alongside Build, since batch_size
// lives on pb.JobConf rather than pb.Plan.
func ValidateBatchSize(batchSize int32) error {
	if batchSize == 0 {
		return &BuildError{Reason: "batch_size = 0 is rejected at plan build"}
	}
	return nil
}

var knownKinds = map[OperatorKind]bool{
	KindSource: true, KindMap: true, KindFilter: true, KindFlatMap: true,
	KindRepartitionByKey: true, KindAggregateTo: true, KindFold: true,
	KindUnfold: true, KindJoin: true, KindIterate: true, KindApply: true,
	KindSubtask: true, KindSink: true,
}

// Build validates wire, a pb.Plan straight off the wire, into a Plan,
// rejecting anything spec.md §7/§8 says must fail at build time: unknown
// operator kinds, out-of-range or forward input references (the list
// must already be topologically ordered, per spec.md §6.2), and
// max_iters == 0 on any iterate operator (spec.md §8).
func Build(wire *pb.Plan) (*Plan, error) {
	if wire == nil || len(wire.Operators) == 0 {
		return nil, &BuildError{Reason: "empty plan"}
	}
	p := &Plan{Operators: make([]Operator, len(wire.Operators))}
	for i, d := range wire.Operators {
		if d == nil {
			return nil, &BuildError{OperatorIndex: i, Reason: "nil operator descriptor"}
		}
		kind := OperatorKind(d.Kind)
		if !knownKinds[kind] {
			return nil, &BuildError{OperatorIndex: i, Reason: fmt.Sprintf("unknown operator kind %q", d.Kind)}
		}
		inputs := make([]Port, len(d.Inputs))
		for j, ref := range d.Inputs {
			if ref == nil {
				return nil, &BuildError{OperatorIndex: i, Reason: fmt.Sprintf("input %d: nil port reference", j)}
			}
			if int(ref.OperatorIndex) >= i {
				return nil, &BuildError{OperatorIndex: i, Reason: fmt.Sprintf("input %d: refers to operator %d, not strictly prior (plan must be topologically ordered)", j, ref.OperatorIndex)}
			}
			if ref.OperatorIndex < 0 {
				return nil, &BuildError{OperatorIndex: i, Reason: fmt.Sprintf("input %d: negative operator index", j)}
			}
			inputs[j] = Port{OperatorIndex: int(ref.OperatorIndex), Port: int(ref.Port)}
		}
		if kind != KindSource && len(inputs) == 0 {
			return nil, &BuildError{OperatorIndex: i, Reason: "non-source operator has no inputs"}
		}
		var subPlan *Plan
		if d.SubPlan != nil {
			sp, err := Build(d.SubPlan)
			if err != nil {
				return nil, &BuildError{OperatorIndex: i, Reason: fmt.Sprintf("sub-plan: %v", err)}
			}
			subPlan = sp
		}
		if kind == KindIterate {
			if d.IterCond == nil {
				return nil, &BuildError{OperatorIndex: i, Reason: "iterate operator missing IterCondition"}
			}
			if d.IterCond.MaxIters == 0 {
				return nil, &BuildError{OperatorIndex: i, Reason: "max_iters = 0 is rejected at plan build"}
			}
			if subPlan == nil {
				return nil, &BuildError{OperatorIndex: i, Reason: "iterate operator missing body sub-plan"}
			}
		}
		if kind == KindJoin && d.JoinSpec == nil {
			return nil, &BuildError{OperatorIndex: i, Reason: "join operator missing JoinKeySpec"}
		}
		if (kind == KindApply || kind == KindSubtask) && subPlan == nil {
			return nil, &BuildError{OperatorIndex: i, Reason: fmt.Sprintf("%s operator missing sub-plan", kind)}
		}
		p.Operators[i] = Operator{
			Index:    i,
			Kind:     kind,
			Inputs:   inputs,
			Payload:  d.Payload,
			SubPlan:  subPlan,
			IterCond: d.IterCond,
			JoinSpec: d.JoinSpec,
		}
	}
	return p, nil
}
