package plan

import (
	"strings"
	"testing"

	"firestige.xyz/gflow/pkg/pb"
)

func pocWire() *pb.Plan {
	return &pb.Plan{
		Operators: []*pb.OperatorDescriptor{
			{Kind: "source"},
			{Kind: "filter", Inputs: []*pb.PortRef{{OperatorIndex: 0, Port: 0}}},
			{Kind: "flat_map", Inputs: []*pb.PortRef{{OperatorIndex: 1, Port: 0}}},
			{Kind: "sink", Inputs: []*pb.PortRef{{OperatorIndex: 2, Port: 0}}},
		},
	}
}

func TestBuildAcceptsTopologicallyOrderedPlan(t *testing.T) {
	p, err := Build(pocWire())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(p.Operators) != 4 {
		t.Fatalf("len = %d, want 4", len(p.Operators))
	}
	if p.Operators[0].Kind != KindSource || p.Operators[3].Kind != KindSink {
		t.Fatalf("unexpected kinds: %+v", p.Operators)
	}
}

func TestBuildRejectsEmptyPlan(t *testing.T) {
	if _, err := Build(&pb.Plan{}); err == nil {
		t.Fatal("expected error for empty plan")
	}
	if _, err := Build(nil); err == nil {
		t.Fatal("expected error for nil plan")
	}
}

func TestBuildRejectsUnknownKind(t *testing.T) {
	wire := &pb.Plan{Operators: []*pb.OperatorDescriptor{{Kind: "frobnicate"}}}
	_, err := Build(wire)
	if err == nil || !strings.Contains(err.Error(), "unknown operator kind") {
		t.Fatalf("err = %v, want unknown operator kind", err)
	}
}

func TestBuildRejectsForwardOrSelfReference(t *testing.T) {
	wire := &pb.Plan{Operators: []*pb.OperatorDescriptor{
		{Kind: "source"},
		{Kind: "filter", Inputs: []*pb.PortRef{{OperatorIndex: 1, Port: 0}}}, // refers to itself
	}}
	_, err := Build(wire)
	if err == nil || !strings.Contains(err.Error(), "topologically ordered") {
		t.Fatalf("err = %v, want topological ordering violation", err)
	}
}

func TestBuildRejectsNonSourceWithNoInputs(t *testing.T) {
	wire := &pb.Plan{Operators: []*pb.OperatorDescriptor{{Kind: "map"}}}
	_, err := Build(wire)
	if err == nil || !strings.Contains(err.Error(), "no inputs") {
		t.Fatalf("err = %v, want no-inputs rejection", err)
	}
}

func TestBuildRejectsZeroMaxIters(t *testing.T) {
	wire := &pb.Plan{Operators: []*pb.OperatorDescriptor{
		{Kind: "source"},
		{
			Kind:     "iterate",
			Inputs:   []*pb.PortRef{{OperatorIndex: 0, Port: 0}},
			IterCond: &pb.IterCondition{MaxIters: 0},
			SubPlan: &pb.Plan{Operators: []*pb.OperatorDescriptor{
				{Kind: "source"},
			}},
		},
	}}
	_, err := Build(wire)
	if err == nil || !strings.Contains(err.Error(), "max_iters = 0") {
		t.Fatalf("err = %v, want max_iters rejection", err)
	}
}

func TestBuildAcceptsIterateWithBody(t *testing.T) {
	wire := &pb.Plan{Operators: []*pb.OperatorDescriptor{
		{Kind: "source"},
		{
			Kind:     "iterate",
			Inputs:   []*pb.PortRef{{OperatorIndex: 0, Port: 0}},
			IterCond: &pb.IterCondition{MaxIters: 5},
			SubPlan: &pb.Plan{Operators: []*pb.OperatorDescriptor{
				{Kind: "source"},
				{Kind: "sink", Inputs: []*pb.PortRef{{OperatorIndex: 0, Port: 0}}},
			}},
		},
	}}
	p, err := Build(wire)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Operators[1].SubPlan == nil || len(p.Operators[1].SubPlan.Operators) != 2 {
		t.Fatalf("sub-plan not built correctly: %+v", p.Operators[1].SubPlan)
	}
}

func TestBuildRejectsJoinWithoutKeySpec(t *testing.T) {
	wire := &pb.Plan{Operators: []*pb.OperatorDescriptor{
		{Kind: "source"},
		{Kind: "source"},
		{Kind: "join", Inputs: []*pb.PortRef{{OperatorIndex: 0}, {OperatorIndex: 1}}},
	}}
	_, err := Build(wire)
	if err == nil || !strings.Contains(err.Error(), "JoinKeySpec") {
		t.Fatalf("err = %v, want JoinKeySpec rejection", err)
	}
}

func TestDescribeRendersYAML(t *testing.T) {
	p, err := Build(pocWire())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	out, err := Describe(p)
	if err != nil {
		t.Fatalf("Describe: %v", err)
	}
	if !strings.Contains(out, "kind: source") || !strings.Contains(out, "kind: sink") {
		t.Fatalf("describe output missing expected kinds:\n%s", out)
	}
}
