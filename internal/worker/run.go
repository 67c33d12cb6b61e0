package worker

import (
	"context"
	"fmt"
	"time"

	"firestige.xyz/gflow/internal/batch"
	"firestige.xyz/gflow/internal/operator"
	"firestige.xyz/gflow/internal/peers"
	"firestige.xyz/gflow/internal/plan"
	"firestige.xyz/gflow/internal/tag"
	"firestige.xyz/gflow/internal/trace"
	"firestige.xyz/gflow/pkg/pb"
)

// Registry resolves the opaque user-function bytes a plan.Operator
// carries in its Payload field to actual Go functions. Payload is treated
// as a UTF-8 registry key — the engine has no way to deserialize an
// arbitrary closure, so the plan builder and the worker process must
// agree on a shared set of named functions ahead of time (spec.md §1:
// "the core consumes a built plan and per-operator user functions only").
type Registry struct {
	Maps     map[string]operator.MapFunc[[]byte, []byte]
	Filters  map[string]operator.FilterFunc[[]byte]
	FlatMaps map[string]operator.FlatMapFunc[[]byte, []byte]
}

// NewRegistry constructs an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		Maps:     make(map[string]operator.MapFunc[[]byte, []byte]),
		Filters:  make(map[string]operator.FilterFunc[[]byte]),
		FlatMaps: make(map[string]operator.FlatMapFunc[[]byte, []byte]),
	}
}

// LocalRunner executes a built Plan's linear, single-peer subset
// (source/map/filter/flat_map/sink) synchronously in process, without
// going through the channel/scheduler machinery a distributed,
// multi-peer job would use. It proves out plan compilation and the
// Kernel[T,U] contract end to end (spec.md §8's "Poc query" scenario)
// without standing up network transport for a single-process
// demonstration; a production deployment wires the same compiled
// kernels into internal/channel + internal/scheduler + internal/worker
// (see DESIGN.md) across actual peers instead of calling them inline.
type LocalRunner struct {
	Registry *Registry
	Tracer   *trace.Manager
}

// NewLocalRunner constructs a LocalRunner resolving Payload against reg.
func NewLocalRunner(reg *Registry) *LocalRunner {
	return &LocalRunner{Registry: reg}
}

// WithTracer attaches a trace.Manager reporting one span per operator
// fire whenever a job's conf.TraceEnable is set (spec.md §6.1).
func (r *LocalRunner) WithTracer(t *trace.Manager) *LocalRunner {
	r.Tracer = t
	return r
}

// Run interprets built against conf's source, delivering every surviving
// record to sink's payload chunks and returning once the root scope's
// end has propagated through every operator (spec.md §8: "empty source
// produces exactly one end-of-root, no data").
func (r *LocalRunner) Run(ctx context.Context, jobID uint64, built *plan.Plan, conf *pb.JobConf, sink func(*pb.JobResultChunk)) error {
	if len(built.Operators) == 0 {
		return fmt.Errorf("worker: empty plan")
	}
	root := tag.Root()
	end := batch.End{Tag: root, Peers: peers.Of(1, 0)}
	current := batch.Batch[[]byte]{Tag: root, Seq: 0, Data: splitRecords(conf.Source), End: &end}

	traced := conf.TraceEnable && r.Tracer != nil
	if traced {
		r.Tracer.Begin(jobID)
		defer r.Tracer.Finish(jobID)
	}
	parentSpan := int32(-1)

	for _, op := range built.Operators {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		start := time.Now()
		next, err := r.fire(op, current)
		if traced {
			parentSpan = r.Tracer.Span(jobID, fmt.Sprintf("%s#%d", op.Kind, op.Index), "", start.UnixNano(), time.Now().UnixNano(), err != nil, parentSpan)
		}
		if err != nil {
			return fmt.Errorf("worker: operator %d (%s): %w", op.Index, op.Kind, err)
		}
		if op.Kind == plan.KindSink {
			for _, rec := range next.Data {
				sink(&pb.JobResultChunk{JobID: jobID, PayloadBytes: rec})
			}
			return nil
		}
		current = next
	}
	return fmt.Errorf("worker: plan has no sink operator")
}

func (r *LocalRunner) fire(op plan.Operator, in batch.Batch[[]byte]) (batch.Batch[[]byte], error) {
	session := operator.NewSession[[]byte]()
	var k operator.Kernel[[]byte, []byte]

	switch op.Kind {
	case plan.KindSource:
		return in, nil
	case plan.KindSink:
		return in, nil
	case plan.KindMap:
		fn, ok := r.Registry.Maps[string(op.Payload)]
		if !ok {
			return batch.Batch[[]byte]{}, fmt.Errorf("unregistered map function %q", op.Payload)
		}
		k = operator.MapKernel[[]byte, []byte]{Fn: fn}
	case plan.KindFilter:
		fn, ok := r.Registry.Filters[string(op.Payload)]
		if !ok {
			return batch.Batch[[]byte]{}, fmt.Errorf("unregistered filter function %q", op.Payload)
		}
		k = operator.FilterKernel[[]byte]{Fn: fn}
	case plan.KindFlatMap:
		fn, ok := r.Registry.FlatMaps[string(op.Payload)]
		if !ok {
			return batch.Batch[[]byte]{}, fmt.Errorf("unregistered flat_map function %q", op.Payload)
		}
		k = operator.FlatMapKernel[[]byte, []byte]{Fn: fn}
	default:
		return batch.Batch[[]byte]{}, fmt.Errorf("LocalRunner does not support operator kind %q (requires the distributed channel/scheduler wiring)", op.Kind)
	}

	action, blocked, err := k.OnReceive(in, session)
	if err != nil {
		return batch.Batch[[]byte]{}, err
	}
	if action == operator.Error {
		return batch.Batch[[]byte]{}, fmt.Errorf("kernel returned Error action")
	}
	if action == operator.Blocked {
		return batch.Batch[[]byte]{}, fmt.Errorf("kernel reported backpressure on ports %v (LocalRunner has no backpressure retry loop)", blocked)
	}

	out := session.Batches(0, func(tag.Tag) uint64 { return 0 })
	if len(out) == 0 {
		return batch.Batch[[]byte]{Tag: in.Tag}, nil
	}
	return out[0], nil
}

// splitRecords treats conf.Source as newline-delimited records — the
// simplest possible RecordSource encoding, sufficient for a submission's
// source bytes until a real front-end supplies its own framing.
func splitRecords(source []byte) [][]byte {
	if len(source) == 0 {
		return nil
	}
	var out [][]byte
	start := 0
	for i, b := range source {
		if b == '\n' {
			out = append(out, source[start:i])
			start = i + 1
		}
	}
	if start < len(source) {
		out = append(out, source[start:])
	}
	return out
}
