package celeris

import (
	"testing"

	"github.com/onvex-io/h2engine/internal/message"
)

// memSocket is a minimal wire.Socket that writes directly into a peer's
// inbound queue, for driving a client/server pair within one test.
type memSocket struct {
	peer      *memSocket
	connected bool
	writable  bool
	feed      func([]byte)
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
	return nil
}

func TestServerClient_H2RoundTrip(t *testing.T) {
	cs, ss := newMemSocket(), newMemSocket()
	link(cs, ss)

	cfg := DefaultConfig()
	server := NewServer(ss, cfg, nil)
	client := NewClient(cs, cfg, nil)
	ss.feed = server.Feed
	cs.feed = client.Feed

	var gotReq *message.Request
	server.OnRequestStream(func(s Stream) {
		s.SetHandler(func(e Event) {
			if e.Kind == EventMessage && e.Request != nil {
				gotReq = e.Request
				h := message.NewHeaders()
				_ = h.Set(":status", "200")
				_ = s.SendHeaders(h, true)
			}
		})
	})

	if err := server.StartH2(); err != nil {
		t.Fatalf("StartH2: %v", err)
	}
	if err := client.StartH2(); err != nil {
		t.Fatalf("StartH2: %v", err)
	}

	req := message.NewRequest(message.HTTP20, "GET", "https", "example.com", "/")
	stream, err := client.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	var gotStatus int
	stream.SetHandler(func(e Event) {
		if e.Kind == EventMessage && e.Response != nil {
			gotStatus = e.Response.Status
		}
	})
	if err := stream.SendHeaders(RequestHeaders(req), true); err != nil {
		t.Fatalf("SendHeaders: %v", err)
	}

	if gotReq == nil {
		t.Fatal("server never received request")
	}
	if gotReq.Method != "GET" || gotReq.Path != "/" {
		t.Errorf("unexpected request: method=%q path=%q", gotReq.Method, gotReq.Path)
	}
	if gotStatus != 200 {
		t.Errorf("status = %d, want 200", gotStatus)
	}
}

func TestServerClient_H1RoundTrip(t *testing.T) {
	cs, ss := newMemSocket(), newMemSocket()
	link(cs, ss)

	cfg := DefaultConfig()
	server := NewServer(ss, cfg, nil)
	client := NewClient(cs, cfg, nil)
	ss.feed = server.Feed
	cs.feed = client.Feed

	var gotReq *message.Request
	server.OnRequestStream(func(s Stream) {
		s.SetHandler(func(e Event) {
			switch e.Kind {
			case EventMessage:
				gotReq = e.Request
				h := message.NewHeaders()
				_ = h.Set(":status", "204")
				_ = s.SendHeaders(h, true)
			}
		})
	})

	server.StartH1()
	client.StartH1()

	req := message.NewRequest(message.HTTP11, "GET", "http", "example.com", "/widgets")
	stream, err := client.OpenStream()
	if err != nil {
		t.Fatalf("OpenStream: %v", err)
	}

	var gotStatus int
	var closed bool
	stream.SetHandler(func(e Event) {
		switch e.Kind {
		case EventMessage:
			if e.Response != nil {
				gotStatus = e.Response.Status
			}
		case EventClosed:
			closed = true
		}
	})
	if err := stream.SendHeaders(RequestHeaders(req), true); err != nil {
		t.Fatalf("SendHeaders: %v", err)
	}

	if gotReq == nil {
		t.Fatal("server never received request")
	}
	if gotReq.Path != "/widgets" {
		t.Errorf("path = %q, want /widgets", gotReq.Path)
	}
	if gotStatus != 204 {
		t.Errorf("status = %d, want 204", gotStatus)
	}
	if !closed {
		t.Error("expected EventClosed on the client stream")
	}
}

func TestServer_SniffsH1WhenPrefaceAbsent(t *testing.T) {
	cs, ss := newMemSocket(), newMemSocket()
	link(cs, ss)

	cfg := DefaultConfig()
	server := NewServer(ss, cfg, nil)
	ss.feed = server.Feed

	var gotReq *message.Request
	server.OnRequestStream(func(s Stream) {
		s.SetHandler(func(e Event) {
			if e.Kind == EventMessage {
				gotReq = e.Request
			}
		})
	})

	cs.Write([]byte("GET / HTTP/1.1\r\nhost: example.com\r\n\r\n"))

	if gotReq == nil {
		t.Fatal("expected the server to sniff HTTP/1.1 and deliver a request")
	}
	if gotReq.Method != "GET" {
		t.Errorf("method = %q, want GET", gotReq.Method)
	}
}
