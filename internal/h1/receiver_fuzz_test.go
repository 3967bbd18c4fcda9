package h1

import (
	"strings"
	"testing"
)

// FuzzReceiverRequestLine fuzzes start-line and header-block parsing with
// random byte sequences fed through Receive in one shot; it must never
// panic and must never report more bytes consumed than were supplied.
func FuzzReceiverRequestLine(f *testing.F) {
	f.Add([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"))
	f.Add([]byte("POST /api HTTP/1.1\r\nHost: localhost\r\nContent-Length: 0\r\n\r\n"))
	f.Add([]byte("PUT /resource HTTP/1.1\r\nHost: api.example.com\r\nTransfer-Encoding: chunked\r\n\r\n"))
	f.Add([]byte("GET /path?query=value HTTP/1.1\r\n\r\n"))
	f.Add([]byte("GET /path\r\n\r\n"))
	f.Add([]byte("INVALID\r\n\r\n"))
	f.Add([]byte("\r\n\r\n"))
	f.Add([]byte("GET"))
	f.Add([]byte(""))

	f.Fuzz(func(t *testing.T, data []byte) {
		rv := NewReceiver(KindRequest, "http")
		res, n, err := rv.Receive(data, 0)
		if n > len(data) {
			t.Errorf("consumed %d bytes but only had %d", n, len(data))
		}
		if err != nil || n == Incomplete {
			return
		}
		req := res.Request
		if req == nil {
			t.Fatal("nil Request on successful Receive")
		}
		if len(req.Method) > 100 {
			t.Errorf("method too long: %d", len(req.Method))
		}
		for _, p := range req.Headers.All() {
			if strings.ContainsAny(p.Name, "\r\n\x00") {
				t.Errorf("invalid characters in header name: %q", p.Name)
			}
			if strings.ContainsAny(p.Value, "\r\n\x00") {
				t.Errorf("invalid characters in header value: %q", p.Value)
			}
		}
	})
}

// FuzzReceiverSplitFeed fuzzes Receive across an arbitrary split point to
// exercise the spillover/carry-over path (§4.D), checking that a two-call
// feed never reports more consumed bytes than each call's slice held.
func FuzzReceiverSplitFeed(f *testing.F) {
	f.Add([]byte("GET / HTTP/1.1\r\nHost: example.com\r\n\r\n"), 10)
	f.Add([]byte("POST /api HTTP/1.1\r\nHost: x\r\n\r\n"), 1)
	f.Add([]byte("GET / HTTP/1.1\r\nHost: x\r\n\r\n"), 0)

	f.Fuzz(func(t *testing.T, data []byte, split int) {
		if len(data) == 0 {
			return
		}
		if split < 0 {
			split = -split
		}
		split %= len(data) + 1

		rv := NewReceiver(KindRequest, "http")
		_, n1, err := rv.Receive(data[:split], 0)
		if n1 > split {
			t.Errorf("first call consumed %d but only had %d", n1, split)
		}
		if err != nil {
			return
		}
		if n1 != Incomplete {
			return
		}
		_, n2, err := rv.Receive(data[split:], 0)
		if n2 > len(data)-split {
			t.Errorf("second call consumed %d but only had %d", n2, len(data)-split)
		}
		_ = err
	})
}
