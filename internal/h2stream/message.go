package h2stream

import (
	"sync"
	"time"

	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/h2frame"
	"github.com/onvex-io/h2engine/internal/hpack"
	"github.com/onvex-io/h2engine/internal/message"
	"github.com/onvex-io/h2engine/wire"
)

// State is a message stream's position in the §4.K state machine.
type State int

const (
	StateIdle State = iota
	StateOpen
	StateReservedLocal
	StateReserved
	StateHalfClosedLocal
	StateHalfClosed
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateOpen:
		return "OPEN"
	case StateReservedLocal:
		return "RESERVED_LOCAL"
	case StateReserved:
		return "RESERVED"
	case StateHalfClosedLocal:
		return "HALF_CLOSED_LOCAL"
	case StateHalfClosed:
		return "HALF_CLOSED"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}

// queuedDataFrame is one entry of the per-stream send backlog, partially
// drained in place as the flow-control window allows (§4.K "backlog drain").
type queuedDataFrame struct {
	payload  []byte // remaining bytes not yet written
	endsMsg  bool   // END_STREAM set on this frame
}

// MessageStream is a stream with id > 0: the full request/response
// lifecycle (§4.K, "the heart of HTTP/2").
type MessageStream struct {
	*Base

	// conn is the connection-level (stream 0) flow-control base shared by
	// every stream; DATA sends are gated by min(stream, conn) window and
	// decrement both (RFC 7540 §6.9.1).
	conn *Base

	mu    sync.Mutex
	state State

	peerInitiated bool // true if the peer opened this stream (request side on a server)

	hpack        *hpack.Context
	maxFrameSize uint32 // remote MAX_FRAME_SIZE: caps our outbound frame payloads
	maxHeaderList uint32

	// inbound header-block reassembly
	headerBuf      []byte
	expectContinue bool
	sawFirstMsg    bool

	recvDataPaused bool
	pendingES      bool // END_STREAM flag carried by a HEADERS frame awaiting CONTINUATION

	backlog []*queuedDataFrame

	outgoingClose bool
	closedAt      time.Time
	closeReason   h2err.CloseReason

	handler Handler

	pairedMethod string // method of the associated request, for Response.HasBody
}

// NewMessageStream constructs a stream in IDLE state. conn is the owning
// connection's control-stream Base, consulted alongside the stream's own
// window on every DATA send.
func NewMessageStream(streamID uint32, socket wire.Socket, write WriteFrame, hp *hpack.Context, conn *Base, maxFrameSize, maxHeaderList uint32) *MessageStream {
	s := &MessageStream{
		Base:          NewBase(streamID, socket, write, true, InitialWindowSize),
		conn:          conn,
		state:         StateIdle,
		hpack:         hp,
		maxFrameSize:  maxFrameSize,
		maxHeaderList: maxHeaderList,
	}
	s.Base.OnWindowUpdate(func(uint32) { s.DrainBacklog() })
	return s
}

// sendableWindow returns the lesser of this stream's own window and the
// connection-level (stream 0) window, the effective budget for a DATA send
// (RFC 7540 §6.9.1).
func (s *MessageStream) sendableWindow() int64 {
	w := s.ReceiverWindow()
	if s.conn != nil {
		if cw := s.conn.ReceiverWindow(); cw < w {
			w = cw
		}
	}
	return w
}

// SetHandler registers the event sink for this stream.
func (s *MessageStream) SetHandler(h Handler) { s.handler = h }

// State returns the current lifecycle state.
func (s *MessageStream) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *MessageStream) emit(e Event) {
	if s.handler != nil {
		s.handler(e)
	}
}

// --- Sending ---------------------------------------------------------------

// SendHeaders encodes headers via HPACK and emits HEADERS, followed by
// CONTINUATION frames if the block exceeds maxFrameSize; END_STREAM may
// only be set on the first HEADERS-type frame (§4.K "Send HEADERS").
func (s *MessageStream) SendHeaders(h *message.Headers, endStream bool) error {
	block := s.hpack.Encode(nil, h)
	return s.sendHeaderBlock(h2frame.TypeHeaders, nil, block, endStream)
}

// SendPushPromise encodes headers via HPACK with the promised stream id
// prepended, per §4.K.
func (s *MessageStream) SendPushPromise(promisedStreamID uint32, h *message.Headers) error {
	block := s.hpack.Encode(nil, h)
	var promised [4]byte
	promised[0] = byte(promisedStreamID >> 24)
	promised[1] = byte(promisedStreamID >> 16)
	promised[2] = byte(promisedStreamID >> 8)
	promised[3] = byte(promisedStreamID)
	return s.sendHeaderBlock(h2frame.TypePushPromise, promised[:], block, false)
}

func (s *MessageStream) sendHeaderBlock(typ h2frame.Type, prefix, block []byte, endStream bool) error {
	first := append(append([]byte{}, prefix...), block...)
	max := int(s.maxFrameSize)
	// Transition before writing: a synchronous socket can deliver the
	// peer's reply (and its END_STREAM) from inside the write below.
	s.sentHeadersTransition(endStream)
	if len(first) <= max {
		flags := h2frame.FlagEndHeaders
		if endStream {
			flags |= h2frame.FlagEndStream
		}
		if err := s.writeFrame(h2frame.Header{Type: typ, Flags: flags, StreamID: s.StreamID}, first); err != nil {
			return err
		}
	} else {
		flags := h2frame.Flags(0)
		if endStream {
			flags |= h2frame.FlagEndStream
		}
		chunk := first[:max]
		rest := first[max:]
		if err := s.writeFrame(h2frame.Header{Type: typ, Flags: flags, StreamID: s.StreamID}, chunk); err != nil {
			return err
		}
		for len(rest) > 0 {
			n := len(rest)
			if n > max {
				n = max
			}
			isLast := n == len(rest)
			cflags := h2frame.Flags(0)
			if isLast {
				cflags = h2frame.FlagEndHeaders
			}
			if err := s.writeFrame(h2frame.Header{Type: h2frame.TypeContinuation, Flags: cflags, StreamID: s.StreamID}, rest[:n]); err != nil {
				return err
			}
			rest = rest[n:]
		}
	}
	return nil
}

func (s *MessageStream) sentHeadersTransition(endStream bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateIdle {
		s.state = StateOpen
	}
	if endStream {
		s.sentESLocked()
	}
}

// sentESLocked applies the "send END_STREAM" transition table rows; caller
// holds s.mu.
func (s *MessageStream) sentESLocked() {
	switch s.state {
	case StateOpen:
		s.state = StateHalfClosedLocal
	case StateHalfClosed:
		s.state = StateClosed
		s.recordClose(false, h2err.ReasonUnknown)
	}
}

// SendData splits payload into frames of at most maxFrameSize, honoring
// the flow-control window; returns false (without error) when some or all
// of payload was enqueued to the backlog due to back-pressure (§4.K "Send
// DATA").
func (s *MessageStream) SendData(payload []byte, lastPacket bool) (bool, error) {
	max := int(s.maxFrameSize)
	fullySent := true

	if len(payload) == 0 {
		if lastPacket {
			if !s.trySendOrBacklog(nil, true) {
				fullySent = false
			}
		}
		return fullySent, nil
	}

	for len(payload) > 0 {
		n := len(payload)
		if n > max {
			n = max
		}
		isLastChunk := n == len(payload)
		endStream := lastPacket && isLastChunk

		if !s.trySendOrBacklog(payload[:n], endStream) {
			fullySent = false
		}
		payload = payload[n:]
	}
	return fullySent, nil
}

// trySendOrBacklog writes chunk now if the window (and socket writability)
// permit the whole amount; otherwise writes the permitted prefix and
// enqueues the remainder, returning false to signal backpressure.
func (s *MessageStream) trySendOrBacklog(chunk []byte, endStream bool) bool {
	if len(s.backlog) > 0 || !s.socket.IsWritable() {
		s.enqueue(chunk, endStream)
		return false
	}

	window := s.sendableWindow()
	if window <= 0 {
		s.enqueue(chunk, endStream)
		return false
	}

	if int64(len(chunk)) <= window {
		s.writeDataFrame(chunk, endStream)
		return true
	}

	n := int(window)
	s.writeDataFrame(chunk[:n], false)
	s.enqueue(chunk[n:], endStream)
	return false
}

func (s *MessageStream) writeDataFrame(chunk []byte, endStream bool) {
	flags := h2frame.Flags(0)
	if endStream {
		flags = h2frame.FlagEndStream
	}
	_ = s.writeFrame(h2frame.Header{Type: h2frame.TypeData, Flags: flags, StreamID: s.StreamID}, chunk)
	s.ConsumeReceiverWindow(int64(len(chunk)))
	if s.conn != nil {
		s.conn.ConsumeReceiverWindow(int64(len(chunk)))
	}
	if endStream {
		s.mu.Lock()
		s.sentESLocked()
		s.mu.Unlock()
	}
}

func (s *MessageStream) enqueue(chunk []byte, endStream bool) {
	cp := append([]byte{}, chunk...)
	s.mu.Lock()
	s.backlog = append(s.backlog, &queuedDataFrame{payload: cp, endsMsg: endStream})
	s.mu.Unlock()
}

// DrainBacklog iterates the backlog head-first, writing as much as the
// current window and connection-writability permit; invoked on inbound
// WINDOW_UPDATE or when the socket becomes writable (§4.K "Backlog drain").
func (s *MessageStream) DrainBacklog() {
	for {
		s.mu.Lock()
		if len(s.backlog) == 0 {
			s.mu.Unlock()
			s.emit(Event{Kind: EventDataFlushed})
			return
		}
		head := s.backlog[0]
		s.mu.Unlock()

		if !s.socket.IsWritable() {
			return
		}
		window := s.sendableWindow()
		if window <= 0 {
			return
		}

		if int64(len(head.payload)) <= window {
			s.writeDataFrame(head.payload, head.endsMsg)
			s.mu.Lock()
			s.backlog = s.backlog[1:]
			s.mu.Unlock()
			continue
		}

		n := int(window)
		sent := head.payload[:n]
		s.writeDataFrame(sent, false)
		s.mu.Lock()
		head.payload = head.payload[n:]
		s.mu.Unlock()
		return
	}
}

// --- Receiving ---------------------------------------------------------------

// ReceiveHeaders handles an inbound HEADERS frame (request/response start
// or trailers), per §4.K.
func (s *MessageStream) ReceiveHeaders(payload []byte, flags h2frame.Flags) error {
	frag, err := h2frame.ParseHeadersPayload(payload, flags)
	if err != nil {
		return h2err.Stream(s.StreamID, h2err.ProtocolError, err.Error())
	}
	return s.receiveHeaderFragment(frag, flags.Has(h2frame.FlagEndHeaders), flags.Has(h2frame.FlagEndStream))
}

// ReceiveContinuation handles an inbound CONTINUATION frame; it is a
// PROTOCOL_ERROR if one was not expected (§4.K, §5 ordering guarantee).
func (s *MessageStream) ReceiveContinuation(payload []byte, flags h2frame.Flags) error {
	s.mu.Lock()
	expected := s.expectContinue
	s.mu.Unlock()
	if !expected {
		return h2err.Connection(h2err.ProtocolError, "unexpected CONTINUATION")
	}
	return s.receiveHeaderFragment(payload, flags.Has(h2frame.FlagEndHeaders), s.pendingEndStream())
}

func (s *MessageStream) pendingEndStream() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pendingES
}

func (s *MessageStream) receiveHeaderFragment(frag []byte, endHeaders, endStream bool) error {
	s.mu.Lock()
	s.headerBuf = append(s.headerBuf, frag...)
	if uint32(len(s.headerBuf)) > s.maxHeaderList {
		s.mu.Unlock()
		return h2err.Stream(s.StreamID, h2err.EnhanceYourCalm, "header list too large")
	}
	if !endHeaders {
		s.expectContinue = true
		s.pendingES = endStream
		s.mu.Unlock()
		return nil
	}
	block := s.headerBuf
	s.headerBuf = nil
	s.expectContinue = false
	s.mu.Unlock()

	headers, err := s.hpack.Decode(block)
	if err != nil {
		return h2err.Connection(h2err.CompressionError, err.Error())
	}
	return s.dispatchDecodedHeaders(headers, endStream)
}

func (s *MessageStream) dispatchDecodedHeaders(h *message.Headers, endStream bool) error {
	s.mu.Lock()
	first := !s.sawFirstMsg
	s.sawFirstMsg = true
	s.mu.Unlock()

	if !first {
		return s.dispatchTrailers(h, endStream)
	}

	status, isResponse, _ := h.Extract(":status")
	if isResponse {
		return s.dispatchResponse(h, status, endStream)
	}
	return s.dispatchRequest(h, endStream)
}

func (s *MessageStream) dispatchTrailers(h *message.Headers, endStream bool) error {
	if !endStream {
		return h2err.Connection(h2err.ProtocolError, "trailers without END_STREAM")
	}
	s.emit(Event{Kind: EventTrailers, Trailers: h})
	return s.recvES()
}

func (s *MessageStream) dispatchRequest(h *message.Headers, endStream bool) error {
	method, _, _ := h.Extract(":method")
	scheme, _, _ := h.Extract(":scheme")
	authority, hasAuthority, _ := h.Extract(":authority")
	path, _, _ := h.Extract(":path")
	if !hasAuthority {
		if host, ok, _ := h.Extract("host"); ok {
			authority = host
		}
	} else {
		_ = h.Delete("host")
	}

	if err := message.ValidateMethod(method); err != nil {
		return h2err.Stream(s.StreamID, h2err.ProtocolError, err.Error())
	}
	if err := message.ValidatePath(path); err != nil {
		return h2err.Stream(s.StreamID, h2err.ProtocolError, err.Error())
	}
	if authority != "" {
		if err := message.ValidateAuthority(authority); err != nil {
			return h2err.Stream(s.StreamID, h2err.ProtocolError, err.Error())
		}
	}

	req := message.NewRequest(message.HTTP20, method, scheme, authority, path)
	req.Headers = h
	req.SetStreamID(s.StreamID)
	s.pairedMethod = method

	s.mu.Lock()
	s.state = StateOpen
	s.peerInitiated = true
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessage, Request: req})
	if endStream {
		return s.recvES()
	}
	return nil
}

func (s *MessageStream) dispatchResponse(h *message.Headers, status string, endStream bool) error {
	n, err := message.ValidateStatusString(status)
	if err != nil {
		return h2err.Stream(s.StreamID, h2err.ProtocolError, err.Error())
	}
	res := message.NewResponse(message.HTTP20, n)
	res.Headers = h
	res.SetStreamID(s.StreamID)

	s.mu.Lock()
	if s.state == StateReserved {
		s.state = StateHalfClosedLocal
	}
	s.mu.Unlock()

	s.emit(Event{Kind: EventMessage, Response: res})
	if endStream {
		return s.recvES()
	}
	return nil
}

// ReceivePushPromise transitions HALF_CLOSED_LOCAL -> RESERVED and emits
// the push preview to the application (§4.K, supplemented server-push
// feature).
func (s *MessageStream) ReceivePushPromise(h *message.Headers) error {
	s.mu.Lock()
	s.state = StateReserved
	s.peerInitiated = true
	s.mu.Unlock()

	method, _, _ := h.Extract(":method")
	scheme, _, _ := h.Extract(":scheme")
	authority, _, _ := h.Extract(":authority")
	path, _, _ := h.Extract(":path")
	req := message.NewRequest(message.HTTP20, method, scheme, authority, path)
	req.Headers = h
	s.emit(Event{Kind: EventPushPromise, Request: req})
	return nil
}

// ReceiveData handles an inbound DATA frame: delivers un-padded bytes via
// EventData, replenishes the receive window unless paused, and closes on
// END_STREAM while HALF_CLOSED_LOCAL (§4.K "Receive DATA").
func (s *MessageStream) ReceiveData(payload []byte, flags h2frame.Flags) error {
	data, err := h2frame.ParseDataPayload(payload, flags)
	if err != nil {
		return h2err.Stream(s.StreamID, h2err.ProtocolError, err.Error())
	}
	endStream := flags.Has(h2frame.FlagEndStream)

	s.ConsumeLocalWindow(int64(len(payload)))
	s.emit(Event{Kind: EventData, Data: data, EndOfMsg: endStream})

	s.mu.Lock()
	paused := s.recvDataPaused
	s.mu.Unlock()
	if !paused {
		_ = s.SendWindowSizeUpdate(uint32(2 * len(payload)))
	}

	if endStream {
		return s.recvES()
	}
	return nil
}

// recvES applies the "recv END_STREAM" transition table rows.
func (s *MessageStream) recvES() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateOpen:
		s.state = StateHalfClosed
	case StateHalfClosedLocal:
		s.state = StateClosed
		s.recordClose(false, h2err.ReasonUnknown)
	}
	return nil
}

// ReceiveRSTStream closes the stream with the peer-supplied error code
// (§4.K "Receive RST_STREAM").
func (s *MessageStream) ReceiveRSTStream(payload []byte) error {
	code, err := h2frame.ParseRSTStream(payload)
	if err != nil {
		return h2err.Connection(h2err.FrameSizeError, err.Error())
	}
	s.mu.Lock()
	alreadyClosed := s.state == StateClosed
	s.state = StateClosed
	s.recordClose(false, h2err.FromCode(h2err.Code(code)))
	s.mu.Unlock()
	if alreadyClosed {
		return nil
	}
	s.emit(Event{Kind: EventClosed, Code: h2err.Code(code), Reason: h2err.FromCode(h2err.Code(code))})
	return nil
}

// Rst transitions to CLOSED immediately, records the close as
// locally-originated, fires EventClosed and (if the socket is still
// connected) emits an RST_STREAM frame (§4.K "RST").
func (s *MessageStream) Rst(code h2err.Code) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil // Idempotence (§8 invariant 7).
	}
	s.state = StateClosed
	s.recordClose(true, h2err.FromCode(code))
	s.mu.Unlock()

	s.emit(Event{Kind: EventClosed, Code: code, Reason: h2err.FromCode(code)})
	if s.socket.IsConnected() {
		return s.writeFrame(h2frame.Header{Type: h2frame.TypeRSTStream, StreamID: s.StreamID}, h2frame.AppendRSTStream(nil, uint32(code)))
	}
	return nil
}

// recordClose stamps the close timestamp and outgoing flag; caller holds s.mu.
func (s *MessageStream) recordClose(outgoing bool, reason h2err.CloseReason) {
	s.outgoingClose = outgoing
	s.closedAt = time.Now()
	s.closeReason = reason
}

// ClosedAt returns the close timestamp (zero if still open).
func (s *MessageStream) ClosedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closedAt
}

// IsClosed reports whether the stream has reached CLOSED.
func (s *MessageStream) IsClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state == StateClosed
}

// PeerInitiated reports whether the remote endpoint opened this stream
// (request side on a server, or a pushed stream on a client).
func (s *MessageStream) PeerInitiated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peerInitiated
}

// SetReceiveData toggles whether DATA frames still trigger automatic
// WINDOW_UPDATEs. Re-enabling sends a single WINDOW_UPDATE of
// INITIAL_WINDOW_SIZE (§4.K "Pause / resume").
func (s *MessageStream) SetReceiveData(enabled bool) error {
	s.mu.Lock()
	wasPaused := s.recvDataPaused
	s.recvDataPaused = !enabled
	s.mu.Unlock()

	if enabled && wasPaused {
		return s.SendWindowSizeUpdate(InitialWindowSize)
	}
	return nil
}

// PreparePush reserves this stream for a push response, transitioning it
// to RESERVED_LOCAL (supplemented server-push feature, §4.K / original
// source MessageStream.preparePush).
func (s *MessageStream) PreparePush() {
	s.mu.Lock()
	s.state = StateReservedLocal
	s.mu.Unlock()
}
