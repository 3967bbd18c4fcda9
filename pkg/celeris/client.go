package celeris

import (
	"fmt"

	"github.com/onvex-io/h2engine/internal/h1"
	"github.com/onvex-io/h2engine/internal/h2endpoint"
	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/h2stream"
	"github.com/onvex-io/h2engine/internal/hpack"
	"github.com/onvex-io/h2engine/internal/message"
	"github.com/onvex-io/h2engine/internal/telemetry/wiremetrics"
	"github.com/onvex-io/h2engine/internal/telemetry/wiretrace"
	"github.com/onvex-io/h2engine/wire"
)

// Client is one outbound connection's protocol engine, the initiating side
// of §6 "construct an endpoint over a socket... initiate a stream and send
// a request". Unlike Server, a Client always knows its protocol up front —
// there is no preface to sniff, the embedder picks it via ALPN or a
// pre-arranged h2c upgrade and calls StartH2 or StartH1 once.
type Client struct {
	cfg     Config
	socket  wire.Socket
	session *hpack.Session

	metrics *wiremetrics.Recorder
	tracer  *wiretrace.Tracer

	h2 *h2endpoint.Client
	h1 *h1ClientConn
}

// NewClient constructs a Client over socket. session may be nil for a
// private HPACK never-index set.
func NewClient(socket wire.Socket, cfg Config, session *hpack.Session) *Client {
	if session == nil {
		session = hpack.NewSession()
	}
	return &Client{cfg: cfg, socket: socket, session: session}
}

// UseMetrics attaches a Prometheus recorder shared across connections.
func (c *Client) UseMetrics(r *wiremetrics.Recorder) { c.metrics = r }

// UseTracing attaches an OpenTelemetry tracer shared across connections.
func (c *Client) UseTracing(t *wiretrace.Tracer) { c.tracer = t }

// StartH2 commits this connection to HTTP/2 and sends the client preface
// plus initial SETTINGS.
func (c *Client) StartH2() error {
	settings := toH2Settings(c.cfg)
	c.h2 = h2endpoint.NewClient(c.socket, settings, c.session)
	return c.h2.Start()
}

// StartH1 commits this connection to HTTP/1.x. There is nothing to emit
// up front: the first bytes written are the first request.
func (c *Client) StartH1() {
	c.h1 = newH1ClientConn(c.socket, c.cfg)
}

// Feed delivers inbound bytes read from the socket to whichever protocol
// engine StartH2/StartH1 selected.
func (c *Client) Feed(data []byte) {
	switch {
	case c.h2 != nil:
		c.h2.Feed(data)
	case c.h1 != nil:
		c.h1.feed(data)
	}
}

// OpenStream reserves a new outbound stream and returns a handle for it.
// Nothing is written to the socket yet: register Stream.SetHandler first,
// then call SendHeaders with a header set built by RequestHeaders (or
// assembled by hand) to actually send the request — the same order the
// embedder would use to avoid missing a response delivered inline on a
// fast or synchronous transport.
func (c *Client) OpenStream() (Stream, error) {
	switch {
	case c.h2 != nil:
		ms := c.h2.CreateRequestStream()
		if ms == nil {
			return nil, fmt.Errorf("celeris: stream id space exhausted")
		}
		return newH2Stream(ms, c.metrics, c.tracer), nil
	case c.h1 != nil:
		return c.h1.openStream(), nil
	default:
		return nil, fmt.Errorf("celeris: client has no active protocol, call StartH2 or StartH1 first")
	}
}

// RequestHeaders builds the pseudo-header-prefixed Headers block SendHeaders
// expects for a client-initiated stream: ":method", ":scheme", ":authority"
// and ":path" followed by req's own headers (RFC 7540 §8.1.2.3, also used
// as the HTTP/1 request-line source by the h1 client path).
func RequestHeaders(req *message.Request) *message.Headers {
	h := message.NewHeaders()
	_ = h.Set(":method", req.Method)
	_ = h.Set(":scheme", req.Scheme)
	_ = h.Set(":authority", req.Authority)
	_ = h.Set(":path", req.Path)
	for _, p := range req.Headers.All() {
		_ = h.Add(p.Name, p.Value)
	}
	return h
}

// h1ClientConn drives one outbound HTTP/1.x request/response exchange,
// mirroring h1Conn's incremental receive/dechunk path on the response side.
type h1ClientConn struct {
	socket wire.Socket
	trans  *h1.Transmitter
	recv   *h1.Receiver
	buf    []byte
	dech   *h1.Dechunker
	cur    *h1ClientStream
}

func newH1ClientConn(socket wire.Socket, cfg Config) *h1ClientConn {
	r := h1.NewReceiver(h1.KindResponse, "http")
	r.SetMaxHeaderSize(cfg.MaxHeaderBytes)
	return &h1ClientConn{socket: socket, trans: h1.NewTransmitter(), recv: r}
}

func (c *h1ClientConn) openStream() *h1ClientStream {
	hs := &h1ClientStream{conn: c}
	c.cur = hs
	return hs
}

func (c *h1ClientConn) feed(data []byte) {
	c.buf = append(c.buf, data...)
	for {
		if c.dech == nil {
			if !c.receiveHead() {
				return
			}
			continue
		}
		if len(c.buf) == 0 {
			return
		}
		chunk := c.buf
		c.buf = nil
		n, err := c.dech.AddData(chunk)
		if err != nil {
			return
		}
		if n < len(chunk) {
			c.buf = append(c.buf, chunk[n:]...)
		}
	}
}

func (c *h1ClientConn) receiveHead() bool {
	if c.cur == nil {
		return false
	}
	res, n, err := c.recv.Receive(c.buf, 0)
	if err != nil {
		c.cur.emit(h2stream.Event{Kind: h2stream.EventError, Err: err})
		return false
	}
	if n == h1.Incomplete {
		return false
	}
	c.buf = append([]byte{}, c.buf[n:]...)

	hs := c.cur
	hs.emit(h2stream.Event{Kind: h2stream.EventMessage, Response: res.Response})

	onChunk := func(chunk []byte, end bool) error {
		hs.emit(h2stream.Event{Kind: h2stream.EventData, Data: chunk, EndOfMsg: end})
		if end {
			c.dech = nil
			c.recv.Reset()
			c.cur = nil
			hs.emit(h2stream.Event{Kind: h2stream.EventClosed})
		}
		return nil
	}
	if !res.Response.HasBody(hs.method) {
		c.dech = h1.NewDechunker(false, 0, onChunk)
	} else {
		contentLength := int64(-1)
		if cl, ok := res.Response.Headers.Get("content-length"); ok {
			contentLength = parseContentLength(cl)
		}
		c.dech = h1.NewDechunker(res.Response.Chunked, contentLength, onChunk)
	}
	_ = c.dech.Start()
	return true
}

func parseContentLength(s string) int64 {
	var n int64
	for _, c := range s {
		if c < '0' || c > '9' {
			return -1
		}
		n = n*10 + int64(c-'0')
	}
	return n
}

// h1ClientStream adapts one outbound HTTP/1 exchange to Stream. SendHeaders
// is the only meaningful Send* call: it writes the request line, host
// header and headers in one shot, matching HTTP/1's lack of a framed
// trailers or mid-stream-headers concept. SendData and SendTrailers are
// errors: any request body must already be part of the header call's
// headers as a caller-synthesized message, since this client path does not
// support streaming an outbound body across multiple writes.
type h1ClientStream struct {
	conn    *h1ClientConn
	method  string
	handler Handler
}

func (s *h1ClientStream) Request() *message.Request { return nil }
func (s *h1ClientStream) SetHandler(h Handler)       { s.handler = h }
func (s *h1ClientStream) emit(e h2stream.Event) {
	if s.handler != nil {
		s.handler(e)
	}
}

// SendHeaders extracts the pseudo-headers RequestHeaders encoded (method,
// scheme, authority, path) and writes the HTTP/1.1 request line plus the
// remaining headers. endStream must be true: this client path sends the
// whole request in one call.
func (s *h1ClientStream) SendHeaders(h *message.Headers, endStream bool) error {
	method, _ := h.Get(":method")
	authority, _ := h.Get(":authority")
	path, _ := h.Get(":path")
	_ = h.Delete(":method")
	_ = h.Delete(":scheme")
	_ = h.Delete(":authority")
	_ = h.Delete(":path")

	req := message.NewRequest(message.HTTP11, method, "http", authority, path)
	req.Headers = h
	s.method = method

	_, err := s.conn.socket.Write(s.conn.trans.WriteRequest(req))
	return err
}

func (s *h1ClientStream) SendData(p []byte, lastPacket bool) (bool, error) {
	return false, fmt.Errorf("celeris: HTTP/1 client stream does not support streaming a request body")
}

func (s *h1ClientStream) SendTrailers(h *message.Headers) error {
	return fmt.Errorf("celeris: HTTP/1 client stream has no trailers support")
}

func (s *h1ClientStream) Close(code h2err.Code) error { return s.conn.socket.Close() }
