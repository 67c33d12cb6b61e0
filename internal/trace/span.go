// Package trace builds SkyWalking segments for a job's operator fires and
// exchange flushes, gated on a job's trace_enable flag (spec.md §6.1).
package trace

import (
	common "skywalking.apache.org/repo/goapi/collect/common/v3"
	agent "skywalking.apache.org/repo/goapi/collect/language/agent/v3"
)

// SegmentBuilder accumulates one job's spans into a SkyWalking segment,
// keyed by job id the way the teacher's sniffdata.SegmentBuilder keys a
// segment by SIP call id.
type SegmentBuilder struct {
	serviceName     string
	serviceInstance string
	traceID         string
	spans           []*agent.SpanObject
}

// NewSegmentBuilder starts a segment for traceID (a job's submission id,
// formatted by Manager).
func NewSegmentBuilder(serviceName, serviceInstance, traceID string) *SegmentBuilder {
	return &SegmentBuilder{
		serviceName:     serviceName,
		serviceInstance: serviceInstance,
		traceID:         traceID,
	}
}

func (b *SegmentBuilder) WithSpan(span *agent.SpanObject) *SegmentBuilder {
	b.spans = append(b.spans, span)
	return b
}

func (b *SegmentBuilder) Build(segmentID string) *agent.SegmentObject {
	return &agent.SegmentObject{
		TraceId:         b.traceID,
		TraceSegmentId:  segmentID,
		Spans:           b.spans,
		Service:         b.serviceName,
		ServiceInstance: b.serviceInstance,
		IsSizeLimited:   true,
	}
}

// SpanBuilder mirrors the teacher's sniffdata.SpanBuilder, retargeted
// from a SIP transaction's fields at an operator fire's fields
// (operation name = "kind#index", peer = the exchange/peer address an
// exchange-flush span names).
type SpanBuilder struct {
	spanID       int32
	parentSpanID int32
	startTime    int64
	endTime      int64
	operation    string
	peer         string
	spanType     agent.SpanType
	isError      bool
	tags         []*common.KeyStringValuePair
}

func NewSpanBuilder() *SpanBuilder {
	return &SpanBuilder{spanType: agent.SpanType_Local}
}

func (b *SpanBuilder) WithSpanID(id int32) *SpanBuilder       { b.spanID = id; return b }
func (b *SpanBuilder) WithParentSpanID(id int32) *SpanBuilder { b.parentSpanID = id; return b }
func (b *SpanBuilder) WithStartTime(t int64) *SpanBuilder     { b.startTime = t; return b }
func (b *SpanBuilder) WithEndTime(t int64) *SpanBuilder       { b.endTime = t; return b }
func (b *SpanBuilder) WithOperation(op string) *SpanBuilder   { b.operation = op; return b }
func (b *SpanBuilder) WithPeer(peer string) *SpanBuilder      { b.peer = peer; return b }
func (b *SpanBuilder) WithError(isErr bool) *SpanBuilder      { b.isError = isErr; return b }

func (b *SpanBuilder) AsExit() *SpanBuilder {
	b.spanType = agent.SpanType_Exit
	return b
}

func (b *SpanBuilder) WithTag(key, value string) *SpanBuilder {
	b.tags = append(b.tags, &common.KeyStringValuePair{Key: key, Value: value})
	return b
}

func (b *SpanBuilder) Build() *agent.SpanObject {
	return &agent.SpanObject{
		SpanId:        b.spanID,
		ParentSpanId:  b.parentSpanID,
		StartTime:     b.startTime,
		EndTime:       b.endTime,
		OperationName: b.operation,
		Peer:          b.peer,
		SpanType:      b.spanType,
		SpanLayer:     agent.SpanLayer_Unknown,
		IsError:       b.isError,
		Tags:          b.tags,
	}
}
