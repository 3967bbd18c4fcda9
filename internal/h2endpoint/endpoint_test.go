package h2endpoint

import (
	"testing"

	"github.com/onvex-io/h2engine/internal/h2stream"
	"github.com/onvex-io/h2engine/internal/hpack"
	"github.com/onvex-io/h2engine/internal/message"
)

// memSocket is a minimal wire.Socket that writes directly into a peer's
// inbound queue, for driving a client/server pair within one test.
type memSocket struct {
	peer      *memSocket
	connected bool
	writable  bool
	feed      func([]byte)
	closed    bool
}

func newMemSocket() *memSocket { return &memSocket{connected: true, writable: true} }

func link(a, b *memSocket) { a.peer = b; b.peer = a }

func (m *memSocket) Write(b []byte) (int, error) {
	cp := append([]byte{}, b...)
	if m.peer != nil && m.peer.feed != nil {
		m.peer.feed(cp)
	}
	return len(b), nil
}
func (m *memSocket) Flush() error       { return nil }
func (m *memSocket) IsConnected() bool  { return m.connected }
func (m *memSocket) IsWritable() bool   { return m.writable }
func (m *memSocket) RemoteName() string { return "mem" }
func (m *memSocket) Close() error {
	m.connected = false
	if m.peer != nil {
		m.peer.connected = false
	}
	m.closed = true
	return nil
}

func settings() h2stream.Settings {
	s := h2stream.DefaultSettings()
	s.MaxConcurrentStreams = 100
	return s
}

func TestClientServer_RequestResponseRoundTrip(t *testing.T) {
	cs, ss := newMemSocket(), newMemSocket()
	link(cs, ss)

	session := hpack.NewSession()
	client := NewClient(cs, settings(), session)
	server := NewServer(ss, settings(), session)

	cs.feed = client.Endpoint.Feed
	ss.feed = server.Feed

	var gotReq *message.Request
	server.OnRequestStream(func(ms *h2stream.MessageStream) {
		ms.SetHandler(func(e h2stream.Event) {
			if e.Kind == h2stream.EventMessage && e.Request != nil {
				gotReq = e.Request
				h := message.NewHeaders()
				_ = h.Set(":status", "200")
				_ = ms.SendHeaders(h, true)
			}
		})
	})

	if err := client.Start(); err != nil {
		t.Fatalf("client.Start: %v", err)
	}
	if err := server.Start(); err != nil {
		t.Fatalf("server.Start: %v", err)
	}

	req := client.CreateRequestStream()
	if req == nil {
		t.Fatal("CreateRequestStream returned nil")
	}

	var gotResp *message.Response
	req.SetHandler(func(e h2stream.Event) {
		if e.Kind == h2stream.EventMessage && e.Response != nil {
			gotResp = e.Response
		}
	})

	h := message.NewHeaders()
	_ = h.Set(":method", "GET")
	_ = h.Set(":scheme", "https")
	_ = h.Set(":authority", "example.com")
	_ = h.Set(":path", "/")
	if err := req.SendHeaders(h, true); err != nil {
		t.Fatalf("SendHeaders: %v", err)
	}

	if gotReq == nil {
		t.Fatal("server never received request")
	}
	if gotReq.Method != "GET" || gotReq.Path != "/" {
		t.Errorf("unexpected request: method=%q path=%q", gotReq.Method, gotReq.Path)
	}
	if gotResp == nil {
		t.Fatal("client never received response")
	}
	if gotResp.Status != 200 {
		t.Errorf("Status = %d, want 200", gotResp.Status)
	}
	if req.State() != h2stream.StateClosed {
		t.Errorf("client stream state = %v, want CLOSED", req.State())
	}
}

func TestServer_RejectsEvenStreamID(t *testing.T) {
	cs, ss := newMemSocket(), newMemSocket()
	link(cs, ss)
	session := hpack.NewSession()
	server := NewServer(ss, settings(), session)

	if err := server.Start(); err != nil {
		t.Fatalf("server.Start: %v", err)
	}

	// Feed the preface directly, then a HEADERS frame on stream 2 (even,
	// invalid for a client-initiated stream).
	server.Feed([]byte(ClientPreface))

	hdr := []byte{0, 0, 0, 0x1 /* HEADERS */, 0x5 /* END_HEADERS|END_STREAM */, 0, 0, 0, 2}
	server.Feed(hdr)

	if ss.connected {
		t.Error("expected connection to be closed after even-numbered client stream")
	}
}
