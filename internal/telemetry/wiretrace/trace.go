// Package wiretrace starts one OpenTelemetry span per protocol stream,
// adapted from pkg/celeris's former per-request tracing middleware to the
// protocol engine's stream-lifecycle events (§6 ambient observability
// stack).
package wiretrace

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/message"
)

// Tracer starts spans for a single named tracer.
type Tracer struct {
	tracer trace.Tracer
}

// New constructs a Tracer; name defaults to "h2engine" if empty.
func New(name string) *Tracer {
	if name == "" {
		name = "h2engine"
	}
	return &Tracer{tracer: otel.Tracer(name)}
}

// Span tracks one stream's span and start time, for duration on End.
type Span struct {
	span  trace.Span
	start time.Time
}

// StartStreamSpan starts a server-kind span for streamID, returning the
// derived context and the Span handle to annotate/End later.
func (t *Tracer) StartStreamSpan(ctx context.Context, streamID uint32) (context.Context, *Span) {
	spanCtx, span := t.tracer.Start(ctx, "h2stream", trace.WithSpanKind(trace.SpanKindServer))
	span.SetAttributes(attribute.Int64("http.stream_id", int64(streamID)))
	return spanCtx, &Span{span: span, start: time.Now()}
}

// AnnotateRequest records method/path/scheme/authority once the request
// headers decode; nil-safe so callers may skip a nil Span unconditionally.
func (s *Span) AnnotateRequest(req *message.Request) {
	if s == nil || req == nil {
		return
	}
	s.span.SetAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.target", req.Path),
		attribute.String("http.scheme", req.Scheme),
		attribute.String("http.host", req.Authority),
	)
}

// Duration reports elapsed time since StartStreamSpan.
func (s *Span) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return time.Since(s.start)
}

// End records the response status and close reason, then ends the span.
func (s *Span) End(status int, reason h2err.CloseReason) {
	if s == nil {
		return
	}
	if status > 0 {
		s.span.SetAttributes(attribute.Int("http.status_code", status))
	}
	if reason != h2err.ReasonUnknown {
		s.span.RecordError(reason2err{reason})
		s.span.SetStatus(codes.Error, reason.String())
	} else {
		s.span.SetStatus(codes.Ok, "")
	}
	s.span.End()
}

// reason2err adapts a CloseReason to the error interface RecordError wants.
type reason2err struct{ h2err.CloseReason }

func (r reason2err) Error() string { return r.CloseReason.String() }
