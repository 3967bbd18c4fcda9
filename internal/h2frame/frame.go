// Package h2frame implements the HTTP/2 binary frame format (RFC 7540
// §4.1, spec component H): the 9-byte frame header and per-type payload
// read/write, built from scratch rather than wrapping golang.org/x/net/http2
// (that package is the thing this module replaces).
package h2frame

import (
	"encoding/binary"
	"fmt"
)

// Type identifies a frame's payload format.
type Type uint8

const (
	TypeData         Type = 0x0
	TypeHeaders      Type = 0x1
	TypePriority     Type = 0x2
	TypeRSTStream    Type = 0x3
	TypeSettings     Type = 0x4
	TypePushPromise  Type = 0x5
	TypePing         Type = 0x6
	TypeGoAway       Type = 0x7
	TypeWindowUpdate Type = 0x8
	TypeContinuation Type = 0x9
)

func (t Type) String() string {
	switch t {
	case TypeData:
		return "DATA"
	case TypeHeaders:
		return "HEADERS"
	case TypePriority:
		return "PRIORITY"
	case TypeRSTStream:
		return "RST_STREAM"
	case TypeSettings:
		return "SETTINGS"
	case TypePushPromise:
		return "PUSH_PROMISE"
	case TypePing:
		return "PING"
	case TypeGoAway:
		return "GOAWAY"
	case TypeWindowUpdate:
		return "WINDOW_UPDATE"
	case TypeContinuation:
		return "CONTINUATION"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", uint8(t))
	}
}

// Flags is the 8-bit flags field; meaning depends on Type.
type Flags uint8

const (
	FlagEndStream  Flags = 0x1
	FlagAck        Flags = 0x1 // SETTINGS/PING
	FlagEndHeaders Flags = 0x4
	FlagPadded     Flags = 0x8
	FlagPriority   Flags = 0x20
)

func (f Flags) Has(bit Flags) bool { return f&bit != 0 }

// Header is the 9-byte frame header: 24-bit length, 8-bit type, 8-bit
// flags, 32-bit stream id with the top bit reserved and masked off on read
// (§3 "HTTP/2 frame").
type Header struct {
	Length   uint32 // 24-bit; payload length, excludes the header itself
	Type     Type
	Flags    Flags
	StreamID uint32 // top bit always 0 after decode
}

// HeaderLen is the fixed size of a frame header on the wire.
const HeaderLen = 9

// ErrFrameTooLarge is returned when a header's length exceeds the local
// MAX_FRAME_SIZE.
var ErrFrameTooLarge = fmt.Errorf("h2frame: frame exceeds MAX_FRAME_SIZE")

// AppendHeader encodes h into dst, big-endian (§4.H).
func AppendHeader(dst []byte, h Header) []byte {
	var b [HeaderLen]byte
	b[0] = byte(h.Length >> 16)
	b[1] = byte(h.Length >> 8)
	b[2] = byte(h.Length)
	b[3] = byte(h.Type)
	b[4] = byte(h.Flags)
	binary.BigEndian.PutUint32(b[5:9], h.StreamID&0x7fffffff)
	return append(dst, b[:]...)
}

// ParseHeader decodes the 9-byte frame header at the start of src.
func ParseHeader(src []byte, maxFrameSize uint32) (Header, error) {
	if len(src) < HeaderLen {
		return Header{}, fmt.Errorf("h2frame: short header")
	}
	h := Header{
		Length:   uint32(src[0])<<16 | uint32(src[1])<<8 | uint32(src[2]),
		Type:     Type(src[3]),
		Flags:    Flags(src[4]),
		StreamID: binary.BigEndian.Uint32(src[5:9]) & 0x7fffffff,
	}
	if h.Length > maxFrameSize {
		return Header{}, ErrFrameTooLarge
	}
	return h, nil
}

// Frame is a fully-assembled frame: header plus payload bytes (payload
// does not include the 9-byte header).
type Frame struct {
	Header  Header
	Payload []byte
}

// AppendFrame encodes a complete frame (header + payload) in one call so
// that writers can hand the result to the socket as a single atomic write
// (§4.H "writes header+payload in a single atomic sequence").
func AppendFrame(dst []byte, h Header, payload []byte) []byte {
	h.Length = uint32(len(payload))
	dst = AppendHeader(dst, h)
	return append(dst, payload...)
}
