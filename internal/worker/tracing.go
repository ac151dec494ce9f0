package worker

import (
	"time"

	"github.com/aws-samples/htc-grid-agent/internal/logger"
)

// Tracer is a no-op-unless-enabled tracing seam standing in for the
// original's xray_recorder segments, gated by enable_xray. Spans are
// logged as zerolog debug events rather than shipped to a tracing
// backend - no X-Ray SDK or other distributed-tracing integration is in
// scope here.
type Tracer struct {
	enabled bool
	now     func() time.Time
}

// NewTracer builds a Tracer. When enabled is false, StartSpan is a no-op.
func NewTracer(enabled bool) *Tracer {
	return &Tracer{enabled: enabled, now: time.Now}
}

// Span is an in-flight trace segment, mirroring xray_recorder's
// begin_segment/begin_subsegment pairing.
type Span struct {
	tracer *Tracer
	name   string
	taskID string
	start  time.Time
}

// StartSpan begins a named span for taskID. Returns nil when tracing is
// disabled; EndSpan on a nil Span is always safe.
func (t *Tracer) StartSpan(taskID, name string) *Span {
	if t == nil || !t.enabled {
		return nil
	}
	return &Span{tracer: t, name: name, taskID: taskID, start: t.now()}
}

// EndSpan closes a span started by StartSpan, logging its duration as a
// debug event.
func (s *Span) EndSpan() {
	if s == nil {
		return
	}
	logger.WithTask(s.taskID).Debug().
		Str("span", s.name).
		Dur("duration", s.tracer.now().Sub(s.start)).
		Msg("span finished")
}
