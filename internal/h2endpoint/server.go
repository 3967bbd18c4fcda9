package h2endpoint

import (
	"fmt"

	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/h2frame"
	"github.com/onvex-io/h2engine/internal/h2stream"
	"github.com/onvex-io/h2engine/internal/hpack"
	"github.com/onvex-io/h2engine/wire"
)

// Server is an HTTP/2 server endpoint: it accepts peer-initiated
// odd-numbered streams and allocates even-numbered ids for its own pushed
// streams (§4.L "Server specialization").
type Server struct {
	*Endpoint
	nextPushID uint32

	prefaceBuf  []byte
	prefaceDone bool

	onRequestStream func(*h2stream.MessageStream)
}

// NewServer constructs a Server over socket with the given local settings
// and (optionally shared) HPACK never-index session. The caller must feed
// the client connection preface through Feed before any frames.
func NewServer(socket wire.Socket, local h2stream.Settings, session *hpack.Session) *Server {
	s := &Server{nextPushID: 2}
	s.Endpoint = newEndpoint(socket, local, session, s.newStreamForFrame)
	return s
}

// OnRequestStream registers the hook invoked when a new peer-initiated
// request stream is created.
func (s *Server) OnRequestStream(fn func(*h2stream.MessageStream)) { s.onRequestStream = fn }

// OnMessageStreamClosed must be called by the application after a request
// or push stream closes, to remove it from internal storage.
func (s *Server) OnMessageStreamClosed(ms *h2stream.MessageStream) { s.StreamClosed(ms) }

// Close cancels every open stream and sends a final GOAWAY with NO_ERROR,
// then closes the socket (§5 "Cancellation and timeouts").
func (s *Server) Close() error {
	for _, ms := range s.streams {
		if ms != nil && !ms.IsClosed() {
			_ = ms.Rst(h2err.Cancel)
		}
	}
	if s.socket.IsConnected() {
		_ = s.control.SendGoAway(s.highestStreamID, h2err.NoError, nil)
	}
	return s.socket.Close()
}

// Start emits the server's initial SETTINGS frame. The server does not send
// a preface of its own (RFC 7540 §3.5: only the client sends one).
func (s *Server) Start() error {
	return s.control.WriteSettings(s.local)
}

// Feed validates the fixed 24-byte client preface before delegating to the
// shared frame-reassembly path, per RFC 7540 §3.5.
func (s *Server) Feed(data []byte) {
	if !s.prefaceDone {
		s.prefaceBuf = append(s.prefaceBuf, data...)
		if len(s.prefaceBuf) < len(ClientPreface) {
			return
		}
		if string(s.prefaceBuf[:len(ClientPreface)]) != ClientPreface {
			_ = s.socket.Close()
			return
		}
		rest := append([]byte{}, s.prefaceBuf[len(ClientPreface):]...)
		s.prefaceDone = true
		s.prefaceBuf = nil
		s.Endpoint.Feed(rest)
		return
	}
	s.Endpoint.Feed(data)
}

// CreatePushStream reserves the next even stream id for a server push in
// response to an active request stream (§4.L, supplemented server-push
// feature).
func (s *Server) CreatePushStream() (*h2stream.MessageStream, error) {
	if !s.control.Remote.EnablePush {
		return nil, fmt.Errorf("h2endpoint: peer disabled server push")
	}
	ps := h2stream.NewMessageStream(s.nextPushID, s.socket, s.writeFrame, s.hpack, s.control.Base, s.control.Remote.MaxFrameSize, s.control.Remote.MaxHeaderListSize)
	ps.PreparePush()
	s.registerStream(ps)
	if s.nextPushID > s.highestStreamID {
		s.highestStreamID = s.nextPushID
	}
	s.nextPushID += 2
	return ps, nil
}

// newStreamForFrame creates a MessageStream for a peer-initiated odd stream
// id on HEADERS, enforcing MAX_CONCURRENT_STREAMS; any other frame type on
// an unknown id is a connection error left to the caller (§4.L).
func (s *Server) newStreamForFrame(streamID uint32, typ h2frame.Type, flags h2frame.Flags, payload []byte) (*h2stream.MessageStream, error) {
	if typ != h2frame.TypeHeaders {
		return nil, nil
	}
	if streamID%2 == 0 {
		return nil, h2err.Connection(h2err.ProtocolError, "client opened an even-numbered stream")
	}
	if err := s.checkRemoteCreateStream(); err != nil {
		return nil, err
	}
	ms := h2stream.NewMessageStream(streamID, s.socket, s.writeFrame, s.hpack, s.control.Base, s.control.Remote.MaxFrameSize, s.control.Remote.MaxHeaderListSize)
	if s.onRequestStream != nil {
		s.onRequestStream(ms)
	}
	return ms, nil
}
