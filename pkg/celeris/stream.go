package celeris

import (
	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/h2stream"
	"github.com/onvex-io/h2engine/internal/message"
)

// Event and Handler are the per-stream callback fan-out (message, data,
// trailers, error, push-promise, dataFlushed, closed — §6), shared verbatim
// across HTTP/1 and HTTP/2 so application code is protocol-agnostic.
type Event = h2stream.Event
type Handler = h2stream.Handler

// Event kind re-exports, for callers that don't want to import h2stream
// directly just to switch on e.Kind.
const (
	EventMessage     = h2stream.EventMessage
	EventPushPromise = h2stream.EventPushPromise
	EventData        = h2stream.EventData
	EventTrailers    = h2stream.EventTrailers
	EventWritable    = h2stream.EventWritable
	EventError       = h2stream.EventError
	EventClosed      = h2stream.EventClosed
	EventDataFlushed = h2stream.EventDataFlushed
)

// Stream is the application-facing handle for one request/response
// exchange, over either HTTP/1.1 or HTTP/2 (§6 "construct an endpoint over
// a socket... initiate a stream and send a request; register per-stream
// callbacks... respond with a status/body or stream a response; close
// streams with a reason code").
type Stream interface {
	// Request returns the inbound request once EventMessage has fired for
	// it (request side), or nil beforehand.
	Request() *message.Request
	// SetHandler registers the event sink. Must be called before the first
	// byte is fed past the point this Stream was handed to the application,
	// to avoid missing the initial EventMessage.
	SetHandler(Handler)
	// SendHeaders sends response (or request, on a client-initiated Stream)
	// headers. h must carry ":status" for a response.
	SendHeaders(h *message.Headers, endStream bool) error
	// SendData sends a body chunk, splitting/back-pressuring per the
	// underlying transport's rules. Returns false if some bytes were queued
	// rather than written immediately (HTTP/2 flow control backlog).
	SendData(p []byte, lastPacket bool) (bool, error)
	// SendTrailers sends a trailing header block with END_STREAM.
	SendTrailers(h *message.Headers) error
	// Close ends the stream with the given reason code.
	Close(code h2err.Code) error
}
