package trace

import (
	"log/slog"

	agent "skywalking.apache.org/repo/goapi/collect/language/agent/v3"
)

// LogSink exports a finished segment as a structured slog line — enough
// to make trace_enable observable without a collector endpoint
// configured.
type LogSink struct{}

func (LogSink) Export(segment *agent.SegmentObject) {
	slog.Info("trace segment",
		"trace_id", segment.TraceId,
		"segment_id", segment.TraceSegmentId,
		"span_count", len(segment.Spans),
	)
}
