package h1

import (
	"strings"
	"sync"

	"github.com/onvex-io/h2engine/internal/date"
	"github.com/onvex-io/h2engine/internal/message"
)

// Transmitter serializes a Request or Response to its HTTP/1 wire form.
type Transmitter struct{}

// NewTransmitter returns a ready-to-use Transmitter; it holds no state.
func NewTransmitter() *Transmitter { return &Transmitter{} }

var startDateTickerOnce sync.Once

// ensureDateTicker lazily starts the process-wide cached date string the
// first time a response is written, so a program that never serves HTTP/1
// never pays for the ticker goroutine.
func ensureDateTicker() {
	startDateTickerOnce.Do(func() { date.StartTicker() })
}

// WriteRequest serializes req: "METHOD PATH VERSION\r\n", a synthesized
// "host: <authority>" header first, then the remaining headers, then the
// blank line (§4.E).
func (t *Transmitter) WriteRequest(req *message.Request) []byte {
	var b strings.Builder
	b.WriteString(req.Method)
	b.WriteByte(' ')
	b.WriteString(req.Path)
	b.WriteByte(' ')
	b.WriteString(string(req.Version))
	b.WriteString("\r\n")
	if req.Authority != "" {
		b.WriteString("host: ")
		b.WriteString(req.Authority)
		b.WriteString("\r\n")
	}
	writeHeaders(&b, req.Headers)
	b.WriteString("\r\n")
	return []byte(b.String())
}

// WriteResponse serializes res: "VERSION STATUS\r\n", a synthesized "date"
// header if the caller didn't already set one, the remaining headers, then
// the blank line.
func (t *Transmitter) WriteResponse(res *message.Response) []byte {
	var b strings.Builder
	b.WriteString(string(res.Version))
	b.WriteByte(' ')
	writeStatus(&b, res.Status)
	b.WriteString("\r\n")
	if _, ok := res.Headers.Get("date"); !ok {
		ensureDateTicker()
		b.WriteString("date: ")
		b.Write(date.Current())
		b.WriteString("\r\n")
	}
	writeHeaders(&b, res.Headers)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func writeHeaders(b *strings.Builder, h *message.Headers) {
	for _, p := range h.All() {
		b.WriteString(p.Name)
		b.WriteString(": ")
		b.WriteString(p.Value)
		b.WriteString("\r\n")
	}
}

func writeStatus(b *strings.Builder, status int) {
	digits := [3]byte{
		byte('0' + (status/100)%10),
		byte('0' + (status/10)%10),
		byte('0' + status%10),
	}
	b.Write(digits[:])
}
