// Package h2endpoint ties the frame, HPACK and stream layers into a single
// HTTP/2 connection: incremental frame reassembly from arbitrary-sized
// socket reads, stream lookup/creation, connection-level flow control and
// close-wait bookkeeping (§4.L). Client and Server specialize Endpoint.
package h2endpoint

import (
	"container/list"
	"time"

	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/h2frame"
	"github.com/onvex-io/h2engine/internal/h2stream"
	"github.com/onvex-io/h2engine/internal/hpack"
	"github.com/onvex-io/h2engine/wire"
)

// ClientPreface is the fixed connection preface a client sends before its
// first SETTINGS frame (RFC 7540 §3.5).
const ClientPreface = "PRI * HTTP/2.0\r\n\r\nSM\r\n\r\n"

// CloseWaitTimeout is how long a closed stream's id is retained before
// eviction from the active-stream table. The Java source this engine is
// grounded on used 5s; this module follows the ~2s this spec calls for
// instead (see DESIGN.md, Open Question 4).
const CloseWaitTimeout = 2 * time.Second

// maxUnwritableErrors is the DoS guard: consecutive protocol errors while
// the socket is not writable past this count destroys the connection
// outright rather than keep trying to notify an unresponsive peer.
const maxUnwritableErrors = 500

// newStreamFunc creates a stream for a frame on a previously unseen id, or
// returns nil (not an error) if the frame type alone doesn't warrant one
// (e.g. a PRIORITY frame for a stream that was never opened).
type newStreamFunc func(streamID uint32, typ h2frame.Type, flags h2frame.Flags, payload []byte) (*h2stream.MessageStream, error)

// Endpoint is the shared machinery of an HTTP/2 connection (client or
// server); see Client and Server for the two specializations.
type Endpoint struct {
	socket wire.Socket
	local  h2stream.Settings

	hpackSession *hpack.Session
	hpack        *hpack.Context
	control      *h2stream.ControlStream

	streams         map[uint32]*h2stream.MessageStream
	closeWait       *list.List // FIFO of *h2stream.MessageStream awaiting eviction
	highestStreamID uint32

	frameBuf        []byte
	frameBufSize    int
	frameExpectSize int

	unwritableErrors int

	newStreamForFrame newStreamFunc
	onStreamClosed    func(*h2stream.MessageStream)
}

func newEndpoint(socket wire.Socket, local h2stream.Settings, session *hpack.Session, newStream newStreamFunc) *Endpoint {
	hp := hpack.NewContext(session, int(local.HeaderTableSize))
	e := &Endpoint{
		socket:            socket,
		local:             local,
		hpackSession:      session,
		hpack:             hp,
		streams:           make(map[uint32]*h2stream.MessageStream),
		closeWait:         list.New(),
		frameBuf:          make([]byte, int(local.MaxFrameSize)+h2frame.HeaderLen),
		newStreamForFrame: newStream,
	}
	e.control = h2stream.NewControlStream(socket, e.writeFrame)
	e.control.Local = local
	e.control.OnSettingsApplied(func(remote h2stream.Settings) {
		e.hpack.SetEncoderSettingsMax(int(remote.HeaderTableSize))
	})
	e.control.OnWindowUpdate(func(uint32) { e.handleConnectionWindowUpdate() })
	return e
}

// writeFrame serializes header+payload as a single atomic socket write
// (§4.H, §5 "socket writes are serialized").
func (e *Endpoint) writeFrame(h h2frame.Header, payload []byte) error {
	buf := h2frame.AppendFrame(make([]byte, 0, h2frame.HeaderLen+len(payload)), h, payload)
	_, err := e.socket.Write(buf)
	return err
}

// Feed processes inbound bytes read from the socket, reassembling and
// dispatching complete frames as they accumulate (§4.L "Data received on
// the connection is passed to Feed").
func (e *Endpoint) Feed(data []byte) {
	index := 0
	for index < len(data) {
		n, err := e.assembleFrame(data[index:])
		if err != nil {
			e.sendConnectionError(h2err.FrameSizeError)
			return
		}
		index += n
		if !e.socket.IsConnected() {
			return
		}
	}
}

// assembleFrame copies as much of a frame as data has available into the
// fixed scratch buffer sized MAX_FRAME_SIZE+9, dispatching once a whole
// frame has accumulated (§4.L "fixed scratch buffer, cursor-based").
func (e *Endpoint) assembleFrame(data []byte) (int, error) {
	consumed := 0
	if e.frameBufSize < h2frame.HeaderLen {
		n := copy(e.frameBuf[e.frameBufSize:h2frame.HeaderLen], data)
		e.frameBufSize += n
		consumed = n
		if e.frameBufSize < h2frame.HeaderLen {
			return consumed, nil
		}
		length := int(e.frameBuf[0])<<16 | int(e.frameBuf[1])<<8 | int(e.frameBuf[2])
		if length > int(e.local.MaxFrameSize) {
			return consumed, h2frame.ErrFrameTooLarge
		}
		e.frameExpectSize = length + h2frame.HeaderLen
		data = data[n:]
	}
	remaining := e.frameExpectSize - e.frameBufSize
	if remaining > len(data) {
		remaining = len(data)
	}
	copy(e.frameBuf[e.frameBufSize:], data[:remaining])
	e.frameBufSize += remaining
	if e.frameBufSize == e.frameExpectSize {
		e.processFrame(e.frameBuf[:e.frameExpectSize])
		e.frameBufSize = 0
	}
	return consumed + remaining, nil
}

func (e *Endpoint) processFrame(raw []byte) {
	e.purgeClosedStreams()

	hdr, err := h2frame.ParseHeader(raw, e.local.MaxFrameSize)
	if err != nil {
		e.sendConnectionError(h2err.FrameSizeError)
		return
	}
	payload := raw[h2frame.HeaderLen:]

	if hdr.StreamID == 0 {
		e.dispatchControl(hdr, payload)
		return
	}

	stream, existing := e.streams[hdr.StreamID]
	if !existing || stream == nil {
		if hdr.StreamID < e.highestStreamID && hdr.Type != h2frame.TypePriority {
			e.connectionErr(h2err.ProtocolError, "frame for closed stream")
			return
		}
		created, err := e.newStreamForFrame(hdr.StreamID, hdr.Type, hdr.Flags, payload)
		if err != nil {
			e.handleStreamErr(nil, err)
			return
		}
		if created == nil {
			if hdr.Type != h2frame.TypePriority && hdr.Type != h2frame.TypeWindowUpdate {
				e.connectionErr(h2err.ProtocolError, "no stream for frame")
			}
			return
		}
		stream = created
		e.highestStreamID = hdr.StreamID
		e.streams[hdr.StreamID] = stream
	}

	if !e.control.SettingsReceived() && hdr.Type != h2frame.TypeSettings {
		e.connectionErr(h2err.ProtocolError, "frame before SETTINGS")
		return
	}

	if err := e.dispatchStream(stream, hdr, payload); err != nil {
		e.handleStreamErr(stream, err)
		return
	}

	if isFlowControlled(hdr.Type) && len(payload) > 0 {
		e.control.ConsumeLocalWindow(int64(len(payload)))
		if e.control.LocalWindow() < 0x1000000 {
			_ = e.control.SendWindowSizeUpdate(0x1000000)
		}
	}
}

func isFlowControlled(t h2frame.Type) bool { return t == h2frame.TypeData }

func (e *Endpoint) dispatchControl(hdr h2frame.Header, payload []byte) {
	var err error
	switch hdr.Type {
	case h2frame.TypeSettings:
		err = e.control.ReceiveSettings(payload, hdr.Flags.Has(h2frame.FlagAck))
	case h2frame.TypePing:
		err = e.control.ReceivePing(payload, hdr.Flags.Has(h2frame.FlagAck))
	case h2frame.TypeGoAway:
		err = e.control.ReceiveGoAway(payload)
	case h2frame.TypeWindowUpdate:
		inc, perr := h2frame.ParseWindowUpdate(payload)
		if perr != nil {
			err = h2err.Connection(h2err.FrameSizeError, perr.Error())
			break
		}
		err = e.control.ReceiveWindowUpdate(inc)
	default:
		// unknown frame types on stream 0 are ignored, RFC 7540 §4.1.
	}
	if err != nil {
		e.handleStreamErr(nil, err)
	}
}

func (e *Endpoint) dispatchStream(s *h2stream.MessageStream, hdr h2frame.Header, payload []byte) error {
	switch hdr.Type {
	case h2frame.TypeHeaders:
		return s.ReceiveHeaders(payload, hdr.Flags)
	case h2frame.TypeContinuation:
		return s.ReceiveContinuation(payload, hdr.Flags)
	case h2frame.TypeData:
		return s.ReceiveData(payload, hdr.Flags)
	case h2frame.TypeRSTStream:
		return s.ReceiveRSTStream(payload)
	case h2frame.TypeWindowUpdate:
		inc, err := h2frame.ParseWindowUpdate(payload)
		if err != nil {
			return h2err.Connection(h2err.FrameSizeError, err.Error())
		}
		return s.ReceiveWindowUpdate(inc)
	case h2frame.TypePushPromise:
		frag, err := h2frame.ParsePushPromisePayload(payload, hdr.Flags)
		if err != nil {
			return h2err.Stream(hdr.StreamID, h2err.ProtocolError, err.Error())
		}
		h, derr := e.hpack.Decode(frag.Fragment)
		if derr != nil {
			return h2err.Connection(h2err.CompressionError, derr.Error())
		}
		return s.ReceivePushPromise(h)
	case h2frame.TypePriority:
		return nil // accepted, priority scheduling is a non-goal
	default:
		return nil
	}
}

// handleStreamErr escalates a protocol error per §4.L: stream errors close
// just that stream with RST_STREAM, connection errors close the whole
// connection with GOAWAY, and an unwritable socket under repeated errors
// is treated as a DoS condition and torn down outright.
func (e *Endpoint) handleStreamErr(s *h2stream.MessageStream, err error) {
	ce, ok := err.(*h2err.ConnectionError)
	if !ok {
		e.sendConnectionError(h2err.InternalError)
		return
	}
	if !e.socket.IsWritable() {
		e.unwritableErrors++
		if e.unwritableErrors > maxUnwritableErrors {
			e.sendConnectionError(h2err.EnhanceYourCalm)
			return
		}
	} else {
		e.unwritableErrors = 0
	}
	if ce.StreamWide && s != nil {
		_ = s.Rst(ce.Code)
		return
	}
	e.sendConnectionError(ce.Code)
}

func (e *Endpoint) connectionErr(code h2err.Code, msg string) {
	e.handleStreamErr(nil, h2err.Connection(code, msg))
}

func (e *Endpoint) sendConnectionError(code h2err.Code) {
	_ = e.control.SendGoAway(e.highestStreamID, code, nil)
	_ = e.socket.Close()
}

// purgeClosedStreams evicts streams that have sat in close-wait longer than
// CloseWaitTimeout, run on every dispatched frame (§4.L "FIFO drain on
// every dispatched frame").
func (e *Endpoint) purgeClosedStreams() {
	now := time.Now()
	for e.closeWait.Len() > 0 {
		front := e.closeWait.Front()
		s := front.Value.(*h2stream.MessageStream)
		if now.Sub(s.ClosedAt()) <= CloseWaitTimeout {
			break
		}
		e.closeWait.Remove(front)
		delete(e.streams, s.StreamID)
		if e.onStreamClosed != nil {
			e.onStreamClosed(s)
		}
	}
}

// scheduleCloseWait enqueues a newly-closed stream for eventual eviction.
func (e *Endpoint) scheduleCloseWait(s *h2stream.MessageStream) {
	e.closeWait.PushBack(s)
}

// StreamClosed must be called once the application has finished handling a
// stream's EventClosed, to move it from the active table into close-wait
// (§4.L, grounded on HTTP2Client.onMessageStreamClosed/HTTP2Endpoint.streamClosed).
func (e *Endpoint) StreamClosed(s *h2stream.MessageStream) {
	e.scheduleCloseWait(s)
}

// registerStream adds a locally-created stream to the active table.
func (e *Endpoint) registerStream(s *h2stream.MessageStream) {
	e.streams[s.StreamID] = s
	if s.StreamID > e.highestStreamID {
		e.highestStreamID = s.StreamID
	}
}

// checkRemoteCreateStream enforces MAX_CONCURRENT_STREAMS against a
// peer-initiated stream about to be created. The check uses streams.size()
// >> 4 rather than a direct count, a soft cap that tolerates transient
// close-wait overhead before tripping the same DoS escalation as the
// consecutive-unwritable-error guard (§4.L "DoS guards").
func (e *Endpoint) checkRemoteCreateStream() error {
	if uint32(len(e.streams))>>4 >= e.local.MaxConcurrentStreams {
		return h2err.Connection(h2err.EnhanceYourCalm, "MAX_CONCURRENT_STREAMS exceeded")
	}
	return nil
}

// handleConnectionWindowUpdate drains every active stream's backlog after a
// connection-level WINDOW_UPDATE, mirroring HTTP2Endpoint.handleConnectionWindowUpdate.
func (e *Endpoint) handleConnectionWindowUpdate() {
	for _, s := range e.streams {
		if s != nil {
			s.DrainBacklog()
		}
	}
}

// Control returns the stream-0 control stream.
func (e *Endpoint) Control() *h2stream.ControlStream { return e.control }

// Socket returns the underlying connection.
func (e *Endpoint) Socket() wire.Socket { return e.socket }
