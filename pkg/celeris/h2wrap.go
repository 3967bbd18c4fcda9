package celeris

import (
	"context"

	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/h2stream"
	"github.com/onvex-io/h2engine/internal/message"
	"github.com/onvex-io/h2engine/internal/telemetry/wiremetrics"
	"github.com/onvex-io/h2engine/internal/telemetry/wiretrace"
)

// h2Stream adapts an *h2stream.MessageStream to the Stream interface,
// capturing the decoded Request and (optionally) feeding stream-lifecycle
// events to the engine's metrics/tracing hooks — the single interception
// point both instrumentation concerns share (§6, §9 callback fan-out).
type h2Stream struct {
	ms  *h2stream.MessageStream
	req *message.Request

	metrics *wiremetrics.Recorder
	tracer  *wiretrace.Tracer
	span    *wiretrace.Span
}

func newH2Stream(ms *h2stream.MessageStream, metrics *wiremetrics.Recorder, tracer *wiretrace.Tracer) *h2Stream {
	s := &h2Stream{ms: ms, metrics: metrics}
	if metrics != nil {
		metrics.StreamOpened()
	}
	if tracer != nil {
		_, s.span = tracer.StartStreamSpan(context.Background(), ms.StreamID)
	}
	return s
}

func (s *h2Stream) Request() *message.Request { return s.req }

func (s *h2Stream) SetHandler(h Handler) {
	s.ms.SetHandler(func(e h2stream.Event) {
		switch e.Kind {
		case h2stream.EventMessage:
			if e.Request != nil {
				s.req = e.Request
				s.span.AnnotateRequest(e.Request)
			}
		case h2stream.EventClosed:
			status := 0
			if e.Response != nil {
				status = e.Response.Status
			}
			if s.metrics != nil {
				s.metrics.StreamClosed()
			}
			s.span.End(status, e.Reason)
		}
		if h != nil {
			h(e)
		}
	})
}

func (s *h2Stream) SendHeaders(h *message.Headers, endStream bool) error {
	return s.ms.SendHeaders(h, endStream)
}

func (s *h2Stream) SendData(p []byte, lastPacket bool) (bool, error) {
	return s.ms.SendData(p, lastPacket)
}

// SendTrailers sends a second HEADERS block with END_STREAM; HTTP/2 has no
// separate trailers frame type (RFC 7540 §8.1).
func (s *h2Stream) SendTrailers(h *message.Headers) error {
	return s.ms.SendHeaders(h, true)
}

func (s *h2Stream) Close(code h2err.Code) error {
	return s.ms.Rst(code)
}
