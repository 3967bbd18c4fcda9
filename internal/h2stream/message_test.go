package h2stream

import (
	"testing"

	"github.com/onvex-io/h2engine/internal/h2frame"
	"github.com/onvex-io/h2engine/internal/hpack"
	"github.com/onvex-io/h2engine/wire"
)

// recordingSocket is a no-op wire.Socket that reports writable/connected
// but otherwise discards bytes; DATA frames written through writeFrame are
// captured via the WriteFrame hook instead.
type recordingSocket struct{}

func (recordingSocket) Write(b []byte) (int, error) { return len(b), nil }
func (recordingSocket) Flush() error                { return nil }
func (recordingSocket) IsConnected() bool           { return true }
func (recordingSocket) IsWritable() bool            { return true }
func (recordingSocket) RemoteName() string          { return "test" }
func (recordingSocket) Close() error                { return nil }

var _ wire.Socket = recordingSocket{}

func newTestStream(t *testing.T, conn *Base) (*MessageStream, *[]int) {
	t.Helper()
	var sent []int
	write := func(h h2frame.Header, payload []byte) error {
		if h.Type == h2frame.TypeData {
			sent = append(sent, len(payload))
		}
		return nil
	}
	hp := hpack.NewContext(hpack.NewSession(), 4096)
	s := NewMessageStream(1, recordingSocket{}, write, hp, conn, 16384, 0xffffffff)
	s.state = StateOpen
	return s, &sent
}

// TestMessageStream_ConnectionWindowGatesSend verifies that a DATA send is
// capped by the connection-level window even when the stream's own window
// has ample room, and that sending decrements both windows (RFC 7540
// §6.9.1, min of stream and connection windows).
func TestMessageStream_ConnectionWindowGatesSend(t *testing.T) {
	conn := NewBase(0, recordingSocket{}, func(h2frame.Header, []byte) error { return nil }, false, 10)
	s, sent := newTestStream(t, conn)

	payload := make([]byte, 100)
	ok, err := s.SendData(payload, true)
	if err != nil {
		t.Fatalf("SendData: %v", err)
	}
	if ok {
		t.Error("SendData reported fully sent despite a 10-byte connection window")
	}
	if len(*sent) != 1 || (*sent)[0] != 10 {
		t.Fatalf("sent frames = %v; want a single 10-byte frame", *sent)
	}
	if s.ReceiverWindow() != InitialWindowSize-10 {
		t.Errorf("stream window = %d; want %d", s.ReceiverWindow(), InitialWindowSize-10)
	}
	if conn.ReceiverWindow() != 0 {
		t.Errorf("connection window = %d; want 0", conn.ReceiverWindow())
	}
	if len(s.backlog) != 1 || len(s.backlog[0].payload) != 90 {
		t.Fatalf("backlog = %v; want 90 bytes queued", s.backlog)
	}
}

// TestMessageStream_DrainBacklogRespectsConnectionWindow checks that a
// connection-level WINDOW_UPDATE unblocks a backlog only up to the
// replenished connection window, not the (already ample) stream window.
func TestMessageStream_DrainBacklogRespectsConnectionWindow(t *testing.T) {
	conn := NewBase(0, recordingSocket{}, func(h2frame.Header, []byte) error { return nil }, false, 0)
	s, sent := newTestStream(t, conn)

	ok, err := s.SendData(make([]byte, 50), true)
	if err != nil {
		t.Fatalf("SendData: %v", err)
	}
	if ok {
		t.Fatal("expected backpressure with a zero-byte connection window")
	}
	if len(*sent) != 0 {
		t.Fatalf("sent frames = %v; want none", *sent)
	}

	if err := conn.ReceiveWindowUpdate(20); err != nil {
		t.Fatalf("ReceiveWindowUpdate: %v", err)
	}
	s.DrainBacklog()

	if len(*sent) != 1 || (*sent)[0] != 20 {
		t.Fatalf("sent frames = %v; want a single 20-byte frame", *sent)
	}
	if conn.ReceiverWindow() != 0 {
		t.Errorf("connection window = %d; want 0", conn.ReceiverWindow())
	}
	if len(s.backlog) != 1 || len(s.backlog[0].payload) != 30 {
		t.Fatalf("backlog = %v; want 30 bytes still queued", s.backlog)
	}
}
