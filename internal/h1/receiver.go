// Package h1 implements the HTTP/1.x wire protocol: an incremental
// start-line/header receiver with carry-over buffering across chunks (§4.D),
// a message transmitter (§4.E) and the chunked-body dechunker (§4.F).
package h1

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/onvex-io/h2engine/internal/message"
)

// DefaultMaxHeaderSize is the default cap on accumulated header-line bytes
// before a receiver fails with ErrTooLarge (matches the Java receiver's
// DEFAULT_MAX_HEADER_SIZE).
const DefaultMaxHeaderSize = 8192

// ErrTooLarge is returned when the cumulative header size exceeds MaxHeaderSize.
var ErrTooLarge = fmt.Errorf("h1: header block exceeds maximum size")

// ErrInvalidStartLine is returned when the request/status line cannot be parsed.
var ErrInvalidStartLine = fmt.Errorf("h1: invalid start line")

// ErrInvalidHeaderLine is returned when a header line has no colon or
// contains a non-printable byte.
var ErrInvalidHeaderLine = fmt.Errorf("h1: invalid header line")

// Incomplete is returned by Receive when more bytes are needed; it carries
// no information beyond "try again with more data".
var Incomplete = -1

// Kind selects which start line the receiver expects.
type Kind int

const (
	KindRequest Kind = iota
	KindResponse
)

// Receiver incrementally parses an HTTP/1 start line and header block
// across successive byte buffers, matching HTTP1MessageReceiver.receive.
type Receiver struct {
	kind          Kind
	scheme        string // fixed per receiver instance, set from TLS state
	maxHeaderSize int

	headerSize    int
	spillover     []byte
	startLineSeen bool

	req *message.Request
	res *message.Response
	hdr *message.Headers
}

// NewReceiver constructs a Receiver for requests (scheme fixed by the
// embedder's TLS state) or responses.
func NewReceiver(kind Kind, scheme string) *Receiver {
	return &Receiver{kind: kind, scheme: scheme, maxHeaderSize: DefaultMaxHeaderSize}
}

// SetMaxHeaderSize overrides DefaultMaxHeaderSize.
func (rv *Receiver) SetMaxHeaderSize(n int) { rv.maxHeaderSize = n }

// Reset prepares the receiver for a new message.
func (rv *Receiver) Reset() {
	rv.headerSize = 0
	rv.spillover = rv.spillover[:0]
	rv.startLineSeen = false
	rv.req = nil
	rv.res = nil
	rv.hdr = nil
}

// Result is returned by Receive once the header block is fully consumed.
type Result struct {
	Request  *message.Request  // set when kind == KindRequest
	Response *message.Response // set when kind == KindResponse
	BodyAt   int               // offset into the buffer passed to Receive where the body begins
}

// Receive consumes buf starting at offset, accumulating partial lines in the
// receiver's spillover buffer across calls. Returns (nil, Incomplete, nil)
// if more data is needed, (*Result, n, nil) once the headers are complete
// (n == Result.BodyAt), or a non-nil error on malformed input.
func (rv *Receiver) Receive(buf []byte, offset int) (*Result, int, error) {
	pos := offset
	// Spillover ending in a bare CR with the next buffer starting in LF:
	// the line terminator is split exactly at the CRLF boundary. Consume
	// the lone LF and dispatch the spillover (minus its trailing CR) as a
	// complete line before resuming the normal per-buffer scan.
	if len(rv.spillover) > 0 && rv.spillover[len(rv.spillover)-1] == '\r' && pos < len(buf) && buf[pos] == '\n' {
		line := rv.spillover[:len(rv.spillover)-1]
		rv.spillover = nil
		pos++
		rv.headerSize += len(line) + 2
		if rv.headerSize > rv.maxHeaderSize {
			return nil, 0, ErrTooLarge
		}
		if res, n, err := rv.dispatchLine(line, pos, buf); res != nil || err != nil || n != Incomplete {
			return res, n, err
		}
	}
	for {
		idx := bytes.Index(buf[pos:], []byte("\r\n"))
		if idx == -1 {
			// No complete line left: carry the unterminated tail into the
			// next call as spillover.
			tail := buf[pos:]
			if len(tail) == 0 {
				return nil, Incomplete, nil
			}
			rv.spillover = append(rv.spillover, tail...)
			return nil, Incomplete, nil
		}

		var line []byte
		if len(rv.spillover) > 0 {
			line = append(rv.spillover, buf[pos:pos+idx]...)
			rv.spillover = rv.spillover[:0]
		} else {
			line = buf[pos : pos+idx]
		}
		pos += idx + 2

		// §4.D step 3: increment once per completed line (including any
		// spliced spillover bytes), not incrementally as spillover arrives
		// — resolves the Open Question in §9 about increment ordering.
		rv.headerSize += len(line) + 2
		if rv.headerSize > rv.maxHeaderSize {
			return nil, 0, ErrTooLarge
		}

		if res, n, err := rv.dispatchLine(line, pos, buf); res != nil || err != nil || n != Incomplete {
			return res, n, err
		}
	}
}

// dispatchLine handles one fully-assembled line: start line, header line,
// or the blank line terminating the header block. Returning (nil,
// Incomplete, nil) means "continue scanning for the next line".
func (rv *Receiver) dispatchLine(line []byte, pos int, buf []byte) (*Result, int, error) {
	if !rv.startLineSeen {
		if err := rv.parseStartLine(line); err != nil {
			return nil, 0, err
		}
		rv.startLineSeen = true
		return nil, Incomplete, nil
	}
	if len(line) == 0 {
		return rv.finish(pos), pos, nil
	}
	if err := rv.parseHeaderLine(line); err != nil {
		return nil, 0, err
	}
	return nil, Incomplete, nil
}

func (rv *Receiver) parseStartLine(line []byte) error {
	if !bytesInRange(line, 32, 126) {
		return ErrInvalidStartLine
	}
	fields := bytes.SplitN(line, []byte(" "), 3)
	// A status line may omit the reason phrase ("HTTP/1.1 204"), which is
	// the form the transmitter writes.
	if len(fields) != 3 && !(rv.kind == KindResponse && len(fields) == 2) {
		return ErrInvalidStartLine
	}
	switch rv.kind {
	case KindRequest:
		method := string(fields[0])
		version := message.Version(fields[2])
		uri := string(fields[1])
		authority, path, err := parseRequestURI(uri)
		if err != nil {
			return err
		}
		rv.req = message.NewRequest(version, method, rv.scheme, authority, path)
		rv.hdr = rv.req.Headers
	case KindResponse:
		version := message.Version(fields[0])
		status, err := message.ValidateStatusString(string(fields[1]))
		if err != nil {
			return err
		}
		rv.res = message.NewResponse(version, status)
		rv.hdr = rv.res.Headers
	}
	return nil
}

// parseRequestURI handles absolute-URI (scheme://authority/path), the
// literal "*" and origin-form ("/path"), per §4.D.
func parseRequestURI(uri string) (authority, path string, err error) {
	if uri == "*" {
		return "", "*", nil
	}
	if strings.HasPrefix(uri, "/") {
		return "", uri, nil
	}
	idx := strings.Index(uri, "://")
	if idx == -1 {
		return "", "", ErrInvalidStartLine
	}
	rest := uri[idx+3:]
	slash := strings.Index(rest, "/")
	if slash == -1 {
		return "", "", fmt.Errorf("h1: absolute-URI missing path")
	}
	return rest[:slash], rest[slash:], nil
}

func (rv *Receiver) parseHeaderLine(line []byte) error {
	colon := bytes.IndexByte(line, ':')
	if colon < 0 {
		return ErrInvalidHeaderLine
	}
	name := strings.ToLower(string(bytes.TrimSpace(line[:colon])))
	value := string(bytes.TrimSpace(line[colon+1:]))
	if err := message.ValidateHeaderValue(value); err != nil {
		return ErrInvalidHeaderLine
	}
	return rv.hdr.Add(name, value)
}

func (rv *Receiver) finish(bodyAt int) *Result {
	chunked := false
	if te, ok := rv.hdr.Get("transfer-encoding"); ok && strings.EqualFold(te, "chunked") {
		chunked = true
	}
	res := &Result{BodyAt: bodyAt}
	switch rv.kind {
	case KindRequest:
		rv.req.Chunked = chunked
		if rv.req.Authority == "" {
			if host, ok := rv.hdr.Get("host"); ok {
				rv.req.Authority = host
			}
		}
		res.Request = rv.req
	case KindResponse:
		rv.res.Chunked = chunked
		res.Response = rv.res
	}
	return res
}

func bytesInRange(b []byte, lo, hi byte) bool {
	for _, c := range b {
		if c < lo || c > hi {
			return false
		}
	}
	return true
}
