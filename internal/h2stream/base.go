// Package h2stream implements the HTTP/2 per-stream machinery: the shared
// flow-control base (component I), the control stream (id 0, component J)
// and the message stream state machine (component K).
package h2stream

import (
	"fmt"
	"math"
	"sync"

	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/h2frame"
	"github.com/onvex-io/h2engine/wire"
)

// InitialWindowSize is the RFC 7540 default INITIAL_WINDOW_SIZE.
const InitialWindowSize = 65535

// WriteFrame is satisfied by the endpoint: it serializes header+payload as
// one atomic write (§4.H, §5 "socket writes ... serialized by a socket-
// level mutex").
type WriteFrame func(h h2frame.Header, payload []byte) error

// Base holds the flow-control bookkeeping shared by every stream, including
// the control stream (§4.I).
type Base struct {
	mu sync.Mutex

	StreamID uint32
	socket   wire.Socket
	write    WriteFrame
	isStream bool // true for message streams (id > 0); false for the control stream

	// ReceiverWindow is the peer-advertised window: bytes we may still
	// send as DATA before waiting for a WINDOW_UPDATE.
	receiverWindow int64
	// localWindow is our own advertised window: bytes the peer may still
	// send us before we must emit a WINDOW_UPDATE.
	localWindow int64

	onWindowUpdate func(increment uint32)
}

// NewBase constructs a Base for a stream with the given initial windows.
func NewBase(streamID uint32, socket wire.Socket, write WriteFrame, isStream bool, initialWindow int64) *Base {
	return &Base{
		StreamID:       streamID,
		socket:         socket,
		write:          write,
		isStream:       isStream,
		receiverWindow: initialWindow,
		localWindow:    initialWindow,
	}
}

// ReceiverWindow returns the current peer-advertised send window.
func (b *Base) ReceiverWindow() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.receiverWindow
}

// OnWindowUpdate registers the hook invoked after a valid inbound
// WINDOW_UPDATE is applied (§4.I "invoke the windowUpdate hook").
func (b *Base) OnWindowUpdate(fn func(increment uint32)) { b.onWindowUpdate = fn }

// ReceiveWindowUpdate applies an inbound WINDOW_UPDATE increment. A
// non-positive increment or one that would overflow the window is a
// FLOW_CONTROL_ERROR, scoped per stream or connection (§4.I).
func (b *Base) ReceiveWindowUpdate(increment uint32) error {
	if increment == 0 {
		return b.flowError("zero WINDOW_UPDATE increment")
	}
	b.mu.Lock()
	newWindow := b.receiverWindow + int64(increment)
	if newWindow > math.MaxInt32 {
		b.mu.Unlock()
		return b.flowError("WINDOW_UPDATE overflow")
	}
	b.receiverWindow = newWindow
	b.mu.Unlock()

	if b.onWindowUpdate != nil {
		b.onWindowUpdate(increment)
	}
	return nil
}

func (b *Base) flowError(msg string) error {
	if b.isStream {
		return h2err.Stream(b.StreamID, h2err.FlowControlError, msg)
	}
	return h2err.Connection(h2err.FlowControlError, msg)
}

// SendWindowSizeUpdate increases localWindow by inc (saturating at
// MaxInt32) and emits a WINDOW_UPDATE frame (§4.I).
func (b *Base) SendWindowSizeUpdate(inc uint32) error {
	b.mu.Lock()
	nw := b.localWindow + int64(inc)
	if nw > math.MaxInt32 {
		nw = math.MaxInt32
	}
	b.localWindow = nw
	b.mu.Unlock()

	return b.writeFrame(h2frame.Header{Type: h2frame.TypeWindowUpdate, StreamID: b.StreamID},
		h2frame.AppendWindowUpdate(nil, inc))
}

// LocalWindow returns our own advertised receive window.
func (b *Base) LocalWindow() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.localWindow
}

// ConsumeLocalWindow decrements localWindow by n bytes of DATA received.
func (b *Base) ConsumeLocalWindow(n int64) {
	b.mu.Lock()
	b.localWindow -= n
	b.mu.Unlock()
}

// ConsumeReceiverWindow decrements receiverWindow by n bytes of DATA sent.
func (b *Base) ConsumeReceiverWindow(n int64) {
	b.mu.Lock()
	b.receiverWindow -= n
	b.mu.Unlock()
}

// writeFrame serializes header+payload as a single atomic write, matching
// HTTP2Stream.writeFrame's "synchronized(connection)" contract (§4.H, §5).
func (b *Base) writeFrame(h h2frame.Header, payload []byte) error {
	if b.write == nil {
		return fmt.Errorf("h2stream: no frame writer configured")
	}
	return b.write(h, payload)
}
