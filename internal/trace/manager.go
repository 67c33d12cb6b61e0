package trace

import (
	"fmt"
	"sync"

	uuid "github.com/satori/go.uuid"
	agent "skywalking.apache.org/repo/goapi/collect/language/agent/v3"
)

// Sink receives a finished segment for export. The pack carries no
// grounded satellite/collector gRPC client (skywalking.apache.org/repo/goapi
// ships only the message types, not a dialing client in this retrieval),
// so production wiring of an actual collector connection is left to a
// Sink implementation outside this package; LogSink below is the only
// one this repo provides.
type Sink interface {
	Export(segment *agent.SegmentObject)
}

// jobTrace tracks one job's in-flight segment.
type jobTrace struct {
	mu      sync.Mutex
	builder *SegmentBuilder
	nextID  int32
}

// Manager owns one segment per traced job, the way the teacher's
// TraceManager owns one segment per SIP call id — generalized from
// call-id keying to job-id keying.
type Manager struct {
	serviceName     string
	serviceInstance string
	sink            Sink

	mu   sync.Mutex
	jobs map[uint64]*jobTrace
}

// NewManager constructs a Manager reporting finished segments to sink.
func NewManager(serviceName, serviceInstance string, sink Sink) *Manager {
	return &Manager{
		serviceName:     serviceName,
		serviceInstance: serviceInstance,
		sink:            sink,
		jobs:            make(map[uint64]*jobTrace),
	}
}

// Begin opens a segment for jobID, returning its trace id for log
// correlation. Calling Begin twice for the same jobID is a no-op on the
// second call.
func (m *Manager) Begin(jobID uint64) string {
	traceID := fmt.Sprintf("job-%d-%s", jobID, uuid.NewV4().String())
	m.mu.Lock()
	defer m.mu.Unlock()
	if jt, ok := m.jobs[jobID]; ok {
		return jt.builder.traceID
	}
	m.jobs[jobID] = &jobTrace{builder: NewSegmentBuilder(m.serviceName, m.serviceInstance, traceID)}
	return traceID
}

// Span records one operator fire or exchange flush as a finished span.
// parentSpanID is -1 for a root span (no parent in this job's segment).
func (m *Manager) Span(jobID uint64, operation, peer string, startNanos, endNanos int64, isErr bool, parentSpanID int32) int32 {
	m.mu.Lock()
	jt, ok := m.jobs[jobID]
	m.mu.Unlock()
	if !ok {
		return -1
	}

	jt.mu.Lock()
	defer jt.mu.Unlock()
	spanID := jt.nextID
	jt.nextID++

	span := NewSpanBuilder().
		WithSpanID(spanID).
		WithParentSpanID(parentSpanID).
		WithStartTime(startNanos / int64(1e6)).
		WithEndTime(endNanos / int64(1e6)).
		WithOperation(operation).
		WithPeer(peer).
		WithError(isErr).
		Build()
	jt.builder.WithSpan(span)
	return spanID
}

// Finish closes jobID's segment and exports it via the configured Sink,
// dropping the in-memory trace afterward.
func (m *Manager) Finish(jobID uint64) {
	m.mu.Lock()
	jt, ok := m.jobs[jobID]
	delete(m.jobs, jobID)
	m.mu.Unlock()
	if !ok {
		return
	}

	jt.mu.Lock()
	segmentID := uuid.NewV4().String()
	segment := jt.builder.Build(segmentID)
	jt.mu.Unlock()

	if m.sink != nil {
		m.sink.Export(segment)
	}
}
