package celeris

import (
	"bytes"
	"context"
	"strconv"
	"strings"

	"github.com/onvex-io/h2engine/internal/h1"
	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/h2stream"
	"github.com/onvex-io/h2engine/internal/message"
	"github.com/onvex-io/h2engine/internal/telemetry/wiremetrics"
	"github.com/onvex-io/h2engine/internal/telemetry/wiretrace"
	"github.com/onvex-io/h2engine/wire"
)

// h1Conn drives one HTTP/1.x connection's request/response cycle on top of
// the sans-I/O h1 receiver/dechunker/transmitter (components D/E/F),
// delivering the same Event/Handler fan-out as HTTP/2 so application code
// is protocol-agnostic (§6).
type h1Conn struct {
	socket wire.Socket
	recv   *h1.Receiver
	trans  *h1.Transmitter
	buf    bytes.Buffer
	dech   *h1.Dechunker

	onRequest func(Stream)
	metrics   *wiremetrics.Recorder
	tracer    *wiretrace.Tracer

	cur       *h1Stream
	keepAlive bool
}

func newH1Conn(socket wire.Socket, cfg Config, onRequest func(Stream), metrics *wiremetrics.Recorder, tracer *wiretrace.Tracer) *h1Conn {
	r := h1.NewReceiver(h1.KindRequest, "http")
	r.SetMaxHeaderSize(cfg.MaxHeaderBytes)
	return &h1Conn{
		socket:    socket,
		recv:      r,
		trans:     h1.NewTransmitter(),
		onRequest: onRequest,
		metrics:   metrics,
		tracer:    tracer,
		keepAlive: true,
	}
}

// feed appends data to the connection buffer and drains as many complete
// requests (and, pipelined, their successors) as are available.
func (c *h1Conn) feed(data []byte) {
	c.buf.Write(data)
	for {
		if c.dech == nil {
			if !c.receiveHead() {
				return
			}
			continue
		}
		if c.buf.Len() == 0 {
			return
		}
		chunk := make([]byte, c.buf.Len())
		copy(chunk, c.buf.Bytes())
		c.buf.Reset()
		n, err := c.dech.AddData(chunk)
		if err != nil {
			c.fail(400)
			return
		}
		if n < len(chunk) {
			c.buf.Write(chunk[n:])
		}
	}
}

// receiveHead attempts to parse a complete start-line+header block from the
// buffered bytes. Returns false if more data is needed or the connection
// was torn down.
func (c *h1Conn) receiveHead() bool {
	res, n, err := c.recv.Receive(c.buf.Bytes(), 0)
	if err != nil {
		c.fail(400)
		return false
	}
	if n == h1.Incomplete {
		return false
	}

	rest := make([]byte, c.buf.Len()-n)
	copy(rest, c.buf.Bytes()[n:])
	c.buf.Reset()
	c.buf.Write(rest)

	req := res.Request
	c.keepAlive = isKeepAlive(req)

	hs := &h1Stream{conn: c, req: req}
	c.cur = hs
	if c.metrics != nil {
		c.metrics.StreamOpened()
	}
	if c.tracer != nil {
		_, hs.span = c.tracer.StartStreamSpan(context.Background(), 0)
		hs.span.AnnotateRequest(req)
	}
	if c.onRequest != nil {
		c.onRequest(hs)
	}
	hs.emit(h2stream.Event{Kind: h2stream.EventMessage, Request: req})

	contentLength := int64(-1)
	if cl, ok := req.Headers.Get("content-length"); ok {
		if n, err := strconv.ParseInt(cl, 10, 64); err == nil && n >= 0 {
			contentLength = n
		}
	}
	c.dech = h1.NewDechunker(req.Chunked, contentLength, func(chunk []byte, end bool) error {
		hs.emit(h2stream.Event{Kind: h2stream.EventData, Data: chunk, EndOfMsg: end})
		if end {
			c.dech = nil
			c.recv.Reset()
		}
		return nil
	})
	if err := c.dech.Start(); err != nil {
		c.fail(400)
		return false
	}
	return true
}

func (c *h1Conn) fail(status int) {
	body := []byte(h2err.ProtocolError.String())
	res := message.NewResponse(message.HTTP11, status)
	_ = res.Headers.Set("content-length", strconv.Itoa(len(body)))
	_ = res.Headers.Set("connection", "close")
	_, _ = c.socket.Write(c.trans.WriteResponse(res))
	_, _ = c.socket.Write(body)
	_ = c.socket.Close()
}

func isKeepAlive(req *message.Request) bool {
	conn, ok := req.Headers.Get("connection")
	if ok {
		return !strings.EqualFold(conn, "close")
	}
	return req.Version == message.HTTP11
}

// h1Stream adapts one HTTP/1 request/response exchange to the Stream
// interface. HTTP/1 has no server push and no separate trailers frame
// type worth emulating here, so SendTrailers is a documented no-op.
type h1Stream struct {
	conn    *h1Conn
	req     *message.Request
	handler Handler
	span    *wiretrace.Span
}

func (s *h1Stream) Request() *message.Request { return s.req }
func (s *h1Stream) SetHandler(h Handler)       { s.handler = h }
func (s *h1Stream) emit(e h2stream.Event) {
	if s.handler != nil {
		s.handler(e)
	}
}

func (s *h1Stream) SendHeaders(h *message.Headers, endStream bool) error {
	statusStr, _ := h.Get(":status")
	status, err := message.ValidateStatusString(statusStr)
	if err != nil {
		return err
	}
	_ = h.Delete(":status")
	res := message.NewResponse(s.req.Version, status)
	res.Headers = h
	if !s.conn.keepAlive {
		_ = res.Headers.Set("connection", "close")
	}
	if _, err := s.conn.socket.Write(s.conn.trans.WriteResponse(res)); err != nil {
		return err
	}
	if endStream {
		s.closeExchange(status)
	}
	return nil
}

func (s *h1Stream) SendData(p []byte, lastPacket bool) (bool, error) {
	if len(p) > 0 {
		if _, err := s.conn.socket.Write(p); err != nil {
			return false, err
		}
	}
	if lastPacket {
		s.closeExchange(0)
	}
	return true, nil
}

// SendTrailers is unsupported over HTTP/1 in this engine: there is no wire
// representation for trailers once an exchange has been sent without
// chunked Transfer-Encoding trailer support, a deliberately narrowed edge
// left for the embedder to extend if needed.
func (s *h1Stream) SendTrailers(h *message.Headers) error { return nil }

func (s *h1Stream) Close(code h2err.Code) error {
	return s.conn.socket.Close()
}

func (s *h1Stream) closeExchange(status int) {
	if s.conn.metrics != nil {
		s.conn.metrics.StreamClosed()
	}
	s.span.End(status, h2err.ReasonUnknown)
	s.emit(h2stream.Event{Kind: h2stream.EventClosed, Reason: h2err.ReasonUnknown})
	if !s.conn.keepAlive {
		_ = s.conn.socket.Close()
	}
}
