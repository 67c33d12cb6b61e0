// Package pb holds the wire message and service types for job submission
// (spec.md §6.1, §6.2). The pack's retrieval filter stripped the teacher's
// actual protoc-generated pkg/pb sources, so these are hand-authored
// stand-ins shaped the way protoc-gen-go/protoc-gen-go-grpc would emit
// them: plain struct fields plus a thin client/server stub pair
// (service.go), encoded with the gob-backed Codec in codec.go rather than
// real protobuf wire bytes — acceptable since spec.md §1 explicitly lists
// "wire-compatibility with any specific existing binary" as a non-goal.
package pb

// PortRef addresses one input port of a prior operator in a Plan's
// topologically ordered operator list (spec.md §6.2: "input port
// references: prior operator indices + port numbers").
type PortRef struct {
	OperatorIndex int32
	Port          int32
}

// JoinKeySpec carries a join operator's key-extraction functions and kind
// (inner/left/right/full/semi/anti), serialized as opaque user-function
// bytes the worker decodes with the registered kernel factory for the job.
type JoinKeySpec struct {
	Kind         string
	LeftKeyFunc  []byte
	RightKeyFunc []byte
	CombineFunc  []byte
}

// IterCondition mirrors internal/iterate.Condition on the wire: a bound on
// rounds and/or a folded-aggregate termination predicate (spec.md §4.6).
type IterCondition struct {
	MaxIters      int32
	UntilEmpty    bool
	AggregateFunc []byte // fold accumulator, opaque user-function bytes
	SatisfiedFunc []byte // predicate over the folded accumulator
}

// OperatorDescriptor is one node of a Plan (spec.md §6.2). Kind is one of
// "source", "map", "filter", "flat_map", "repartition_by_key",
// "aggregate_to", "fold", "unfold", "join", "iterate", "apply", "subtask",
// "sink".
type OperatorDescriptor struct {
	Kind    string
	Inputs  []*PortRef
	Payload []byte // opaque user-function bytes (map/filter/fold/unfold fn, etc.)

	// Populated only for the operator kinds that need them.
	SubPlan  *Plan // iterate's body, apply's subtask, subtask's sub-plan
	IterCond *IterCondition
	JoinSpec *JoinKeySpec
}

// Plan is a topologically ordered operator list (spec.md §6.2).
type Plan struct {
	Operators []*OperatorDescriptor
}

// ServerSelector picks which server processes a job runs on (spec.md §6.1).
type ServerSelector struct {
	Mode      string // "local", "partial", "all"
	ServerIDs []int32 // only meaningful when Mode == "partial"
}

// JobConf is one job submission's full configuration (spec.md §6.1).
type JobConf struct {
	JobID         uint64
	JobName       string
	Workers       int32
	BatchSize     int32 // default 1024
	BatchCapacity int32 // default 64
	TimeLimitMs   int64 // 0 = none
	TraceEnable   bool
	Servers       *ServerSelector
	Plan          *Plan
	Source        []byte // bytes consumed by the source operator
	Resource      []byte // optional, passed to all workers
}

// SubmitJobRequest is the unary request of JobService.SubmitJob.
type SubmitJobRequest struct {
	Conf *JobConf
}

// JobResultChunk is one message of JobService.SubmitJob's result stream,
// terminated by a chunk with Done set (spec.md §6.1: "a stream of result
// messages {job_id, payload_bytes} terminated by either ok or an error
// with a descriptive string").
type JobResultChunk struct {
	JobID        uint64
	PayloadBytes []byte
	Done         bool
	OK           bool
	ErrorMessage string
}

// CancelRequest asks the server to cooperatively cancel a running job.
type CancelRequest struct {
	JobID uint64
}

// CancelResponse acknowledges a CancelRequest.
type CancelResponse struct {
	Accepted bool
	Message  string
}
