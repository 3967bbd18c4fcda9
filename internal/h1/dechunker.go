package h1

import (
	"fmt"
	"strconv"

	"github.com/onvex-io/h2engine/internal/message"
)

// DefaultChunkBufferSize caps how many bytes a single body callback
// delivers; an inbound run larger than this is split across multiple
// callbacks (§4.F).
const DefaultChunkBufferSize = 16 * 1024

// bodyMode selects how a Dechunker measures the end of the body.
type bodyMode int

const (
	modeNone bodyMode = iota
	modeContentLength
	modeChunked
)

// ErrMalformedChunkSize is returned when a chunk-size line cannot be parsed
// or is negative.
var ErrMalformedChunkSize = fmt.Errorf("h1: malformed chunk size")

// ErrDataAfterEnd is returned when AddData is called after End fired.
var ErrDataAfterEnd = fmt.Errorf("h1: data received after body end")

// ErrContentLengthExceeded is returned when more bytes arrive than declared
// by Content-Length.
var ErrContentLengthExceeded = fmt.Errorf("h1: more bytes than content-length permits")

// chunkState is the chunked-mode sub-state machine.
type chunkState int

const (
	stateChunkHeader chunkState = iota
	stateChunkData
	stateChunkTrailerCRLF
	stateFinalCRLF
	stateDone
)

// Dechunker drives body bytes from an HTTP/1 message in one of three modes
// (none / content-length / chunked), selected at construction time from the
// owning message's headers (§4.F). On() is invoked with successive body
// pieces of at most bufferSize bytes; a zero-length call signals end.
type Dechunker struct {
	mode       bodyMode
	bufferSize int
	On         func(data []byte, end bool) error

	// content-length mode
	remaining int64

	// chunked mode
	state              chunkState
	partialChunkHeader []byte
	lastChunkRemaining int64
	lastChunkSize      int64

	buf  []byte
	done bool
}

// NewDechunker selects the body mode from the chunked flag and contentLength
// (-1 if absent), both derived by the caller from the headers, following
// §4.F: chunked wins if set;
// else Content-Length; else no body.
func NewDechunker(chunked bool, contentLength int64, on func([]byte, bool) error) *Dechunker {
	d := &Dechunker{On: on, bufferSize: DefaultChunkBufferSize}
	switch {
	case chunked:
		d.mode = modeChunked
		d.state = stateChunkHeader
	case contentLength >= 0:
		d.mode = modeContentLength
		d.remaining = contentLength
		if contentLength == 0 {
			d.done = true
		}
	default:
		d.mode = modeNone
		d.done = true
	}
	d.buf = make([]byte, 0, d.bufferSize)
	return d
}

// Start fires the immediate end-of-body callback for modeNone / zero-length
// content-length bodies. Callers should invoke it once after construction.
func (d *Dechunker) Start() error {
	if d.done {
		return d.On(nil, true)
	}
	return nil
}

// AddData feeds newly-received bytes to the dechunker and reports how many
// of them it consumed. A chunked-mode body may end mid-buffer (the
// terminal chunk's trailing CRLF lands together with the next pipelined
// request's bytes in the same read); callers must retain data[n:] rather
// than discard it.
func (d *Dechunker) AddData(data []byte) (int, error) {
	if d.done {
		return 0, ErrDataAfterEnd
	}
	switch d.mode {
	case modeContentLength:
		return d.addContentLength(data)
	case modeChunked:
		return d.addChunked(data)
	default:
		return 0, ErrDataAfterEnd
	}
}

func (d *Dechunker) addContentLength(data []byte) (int, error) {
	if int64(len(data)) > d.remaining {
		return 0, ErrContentLengthExceeded
	}
	d.remaining -= int64(len(data))
	if err := d.flush(data); err != nil {
		return len(data), err
	}
	if d.remaining == 0 {
		d.done = true
		if err := d.On(nil, true); err != nil {
			return len(data), err
		}
	}
	return len(data), nil
}

// flush re-emits data in pieces no larger than bufferSize.
func (d *Dechunker) flush(data []byte) error {
	for len(data) > 0 {
		n := len(data)
		if n > d.bufferSize {
			n = d.bufferSize
		}
		if err := d.On(data[:n], false); err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

func (d *Dechunker) addChunked(data []byte) (int, error) {
	total := len(data)
	for len(data) > 0 {
		switch d.state {
		case stateChunkHeader:
			consumed, complete, err := d.parseChunkHeader(data)
			if err != nil {
				return total - len(data), err
			}
			data = data[consumed:]
			if !complete {
				return total - len(data), nil
			}
			if d.lastChunkSize == 0 {
				d.state = stateFinalCRLF
				continue
			}
			d.lastChunkRemaining = d.lastChunkSize
			d.state = stateChunkData
		case stateChunkData:
			n := int64(len(data))
			if n > d.lastChunkRemaining {
				n = d.lastChunkRemaining
			}
			if n > 0 {
				if err := d.flush(data[:n]); err != nil {
					return total - len(data), err
				}
				data = data[n:]
				d.lastChunkRemaining -= n
			}
			if d.lastChunkRemaining == 0 {
				d.state = stateChunkTrailerCRLF
			}
		case stateChunkTrailerCRLF, stateFinalCRLF:
			// consume the CRLF following chunk data (or, for stateFinalCRLF,
			// the CRLF terminating the empty trailer section after the
			// zero-size chunk header); tolerate it arriving split across
			// calls via partialChunkHeader reuse.
			final := d.state == stateFinalCRLF
			need := 2 - len(d.partialChunkHeader)
			n := int64(len(data))
			if n > int64(need) {
				n = int64(need)
			}
			d.partialChunkHeader = append(d.partialChunkHeader, data[:n]...)
			data = data[n:]
			if len(d.partialChunkHeader) < 2 {
				return total - len(data), nil
			}
			d.partialChunkHeader = d.partialChunkHeader[:0]
			if final {
				d.state = stateDone
				d.done = true
				if err := d.On(nil, true); err != nil {
					return total - len(data), err
				}
				return total - len(data), nil
			}
			d.state = stateChunkHeader
		case stateDone:
			return total - len(data), nil
		}
	}
	return total - len(data), nil
}

// parseChunkHeader parses "<hex-size>[;ext]CRLF" possibly spanning multiple
// calls via partialChunkHeader, capped at a handful of bytes.
func (d *Dechunker) parseChunkHeader(data []byte) (consumed int, complete bool, err error) {
	for i, c := range data {
		if c == '\n' {
			line := append(d.partialChunkHeader, data[:i+1]...)
			d.partialChunkHeader = nil
			line = trimCRLF(line)
			size, perr := parseChunkSize(line)
			if perr != nil {
				return 0, false, perr
			}
			d.lastChunkSize = size
			return i + 1, true, nil
		}
	}
	d.partialChunkHeader = append(d.partialChunkHeader, data...)
	if len(d.partialChunkHeader) > 64 {
		return 0, false, ErrMalformedChunkSize
	}
	return len(data), false, nil
}

func trimCRLF(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func parseChunkSize(line []byte) (int64, error) {
	s := string(line)
	if i := indexByte(s, ';'); i >= 0 {
		s = s[:i]
	}
	if s == "" {
		return 0, ErrMalformedChunkSize
	}
	size, err := strconv.ParseInt(s, 16, 64)
	if err != nil || size < 0 {
		return 0, ErrMalformedChunkSize
	}
	return size, nil
}

func indexByte(s string, c byte) int {
	for i := 0; i < len(s); i++ {
		if s[i] == c {
			return i
		}
	}
	return -1
}

// DechunkerForMessage picks the right constructor inputs from a Base and
// its Content-Length header, matching §4.F's "selected at construction".
func DechunkerForMessage(base *message.Base, isResponseWithNoBody bool, on func([]byte, bool) error) *Dechunker {
	if isResponseWithNoBody {
		return NewDechunker(false, 0, on)
	}
	if base.Chunked {
		return NewDechunker(true, -1, on)
	}
	if cl, ok := base.Headers.Get("content-length"); ok {
		n, err := strconv.ParseInt(cl, 10, 64)
		if err == nil && n >= 0 {
			return NewDechunker(false, n, on)
		}
	}
	return NewDechunker(false, -1, on)
}
