package celeris

import (
	"github.com/onvex-io/h2engine/internal/h2endpoint"
	"github.com/onvex-io/h2engine/internal/h2stream"
	"github.com/onvex-io/h2engine/internal/hpack"
	"github.com/onvex-io/h2engine/internal/telemetry/wiremetrics"
	"github.com/onvex-io/h2engine/internal/telemetry/wiretrace"
	"github.com/onvex-io/h2engine/wire"
)

// Server is one accepted connection's protocol engine. Construct one per
// socket (not per process): it holds no listening state of its own, per
// this module's sans-I/O design (§1, §6 "construct an endpoint over a
// socket").
type Server struct {
	cfg     Config
	socket  wire.Socket
	session *hpack.Session

	onRequest func(Stream)
	metrics   *wiremetrics.Recorder
	tracer    *wiretrace.Tracer

	h2       *h2endpoint.Server
	h1       *h1Conn
	sniffBuf []byte
}

// NewServer constructs a Server over socket. session may be nil for a
// private HPACK never-index set, or shared across connections whose peers
// should agree on which header names are confidentiality-sensitive.
func NewServer(socket wire.Socket, cfg Config, session *hpack.Session) *Server {
	if session == nil {
		session = hpack.NewSession()
	}
	return &Server{cfg: cfg, socket: socket, session: session}
}

// OnRequestStream registers the hook invoked for every new request stream,
// over either protocol. The callback must call Stream.SetHandler before
// returning, or the first EventMessage for a subsequent pipelined/streamed
// exchange may race ahead of it.
func (s *Server) OnRequestStream(fn func(Stream)) { s.onRequest = fn }

// UseMetrics attaches a Prometheus recorder shared across connections.
func (s *Server) UseMetrics(r *wiremetrics.Recorder) { s.metrics = r }

// UseTracing attaches an OpenTelemetry tracer shared across connections.
func (s *Server) UseTracing(t *wiretrace.Tracer) { s.tracer = t }

// StartH2 commits this connection to HTTP/2 immediately (for an embedder
// that already knows the protocol via ALPN) and emits the initial SETTINGS.
func (s *Server) StartH2() error {
	s.startH2()
	return s.h2.Start()
}

// StartH1 commits this connection to HTTP/1.x immediately (for an embedder
// that already knows the protocol via ALPN, or is not offering h2c).
func (s *Server) StartH1() { s.startH1() }

// Feed delivers inbound bytes read from the socket. Absent a prior StartH2/
// StartH1 call, the first bytes are sniffed for the HTTP/2 client preface
// (prior-knowledge h2c, RFC 7540 §3.4) to pick the protocol.
func (s *Server) Feed(data []byte) {
	switch {
	case s.h2 != nil:
		s.h2.Feed(data)
	case s.h1 != nil:
		s.h1.feed(data)
	case !s.cfg.EnableH2:
		s.startH1()
		s.h1.feed(data)
	case !s.cfg.EnableH1:
		s.startH2()
		_ = s.h2.Start()
		s.h2.Feed(data)
	default:
		s.sniff(data)
	}
}

func (s *Server) sniff(data []byte) {
	s.sniffBuf = append(s.sniffBuf, data...)
	preface := h2endpoint.ClientPreface
	n := len(s.sniffBuf)
	if n > len(preface) {
		n = len(preface)
	}
	if preface[:n] != string(s.sniffBuf[:n]) {
		s.startH1()
		buf := s.sniffBuf
		s.sniffBuf = nil
		s.h1.feed(buf)
		return
	}
	if len(s.sniffBuf) < len(preface) {
		return // need more bytes to decide
	}
	s.startH2()
	_ = s.h2.Start()
	buf := s.sniffBuf
	s.sniffBuf = nil
	s.h2.Feed(buf)
}

func (s *Server) startH2() {
	settings := toH2Settings(s.cfg)
	srv := h2endpoint.NewServer(s.socket, settings, s.session)
	srv.OnRequestStream(func(ms *h2stream.MessageStream) {
		hs := newH2Stream(ms, s.metrics, s.tracer)
		if s.onRequest != nil {
			s.onRequest(hs)
		}
	})
	s.h2 = srv
}

func (s *Server) startH1() {
	s.h1 = newH1Conn(s.socket, s.cfg, s.onRequest, s.metrics, s.tracer)
}

// Close cancels every open stream (HTTP/2) or closes the socket (HTTP/1).
func (s *Server) Close() error {
	if s.h2 != nil {
		if s.metrics != nil {
			s.metrics.GoAwaySent()
		}
		return s.h2.Close()
	}
	return s.socket.Close()
}

func toH2Settings(cfg Config) h2stream.Settings {
	return h2stream.Settings{
		HeaderTableSize:      cfg.HeaderTableSize,
		EnablePush:           cfg.EnablePush,
		MaxConcurrentStreams: cfg.MaxConcurrentStreams,
		InitialWindowSize:    cfg.InitialWindowSize,
		MaxFrameSize:         cfg.MaxFrameSize,
		MaxHeaderListSize:    cfg.MaxHeaderListSize,
	}
}
