package h2stream

import (
	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/message"
)

// EventKind tags an Event's payload. Expressing the ~8 per-stream
// callbacks as one sum-typed event (rather than many mutable function
// pointers) matches the protocol's event-ordered semantics and gives each
// transition a single call site (§9 "callback fan-out").
type EventKind int

const (
	EventMessage EventKind = iota
	EventPushPromise
	EventData
	EventTrailers
	EventWritable
	EventError
	EventClosed
	EventDataFlushed
)

// Event is delivered to a MessageStream's Handler in received-byte order
// within the stream (§5 "ordering guarantees").
type Event struct {
	Kind EventKind

	Request  *message.Request  // EventMessage (request side), EventPushPromise
	Response *message.Response // EventMessage (response side)
	Data     []byte            // EventData
	EndOfMsg bool              // EventData: END_STREAM seen with this chunk
	Trailers *message.Headers  // EventTrailers
	Err      error             // EventError
	Code     h2err.Code        // EventClosed: wire error code
	Reason   h2err.CloseReason // EventClosed: mapped application reason
}

// Handler receives stream lifecycle events.
type Handler func(Event)
