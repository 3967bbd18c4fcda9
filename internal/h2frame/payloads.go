package h2frame

import (
	"encoding/binary"
	"fmt"
)

// SettingID identifies one SETTINGS parameter (§6).
type SettingID uint16

const (
	SettingHeaderTableSize      SettingID = 0x1
	SettingEnablePush           SettingID = 0x2
	SettingMaxConcurrentStreams SettingID = 0x3
	SettingInitialWindowSize    SettingID = 0x4
	SettingMaxFrameSize         SettingID = 0x5
	SettingMaxHeaderListSize    SettingID = 0x6
)

// settingNames replaces the Java source's reflection-populated name table
// (§9 design note) with a plain compile-time constant map.
var settingNames = map[SettingID]string{
	SettingHeaderTableSize:      "HEADER_TABLE_SIZE",
	SettingEnablePush:           "ENABLE_PUSH",
	SettingMaxConcurrentStreams: "MAX_CONCURRENT_STREAMS",
	SettingInitialWindowSize:    "INITIAL_WINDOW_SIZE",
	SettingMaxFrameSize:         "MAX_FRAME_SIZE",
	SettingMaxHeaderListSize:    "MAX_HEADER_LIST_SIZE",
}

// SettingName returns the human-readable name of id, or "" if unknown.
func SettingName(id SettingID) string { return settingNames[id] }

// defaultSettingValues mirrors the RFC 7540 §6.5.2 defaults; the writer
// omits any setting equal to its default (§4.J).
var defaultSettingValues = map[SettingID]uint32{
	SettingHeaderTableSize:      4096,
	SettingEnablePush:           1,
	SettingMaxConcurrentStreams: 0xffffffff,
	SettingInitialWindowSize:    65535,
	SettingMaxFrameSize:         16384,
	SettingMaxHeaderListSize:    0xffffffff,
}

// Setting is one decoded SETTINGS tuple.
type Setting struct {
	ID    SettingID
	Value uint32
}

// ParseSettings decodes a SETTINGS payload into its 6-byte tuples.
func ParseSettings(payload []byte) ([]Setting, error) {
	if len(payload)%6 != 0 {
		return nil, fmt.Errorf("h2frame: SETTINGS payload length %d not a multiple of 6", len(payload))
	}
	out := make([]Setting, 0, len(payload)/6)
	for i := 0; i < len(payload); i += 6 {
		out = append(out, Setting{
			ID:    SettingID(binary.BigEndian.Uint16(payload[i : i+2])),
			Value: binary.BigEndian.Uint32(payload[i+2 : i+6]),
		})
	}
	return out, nil
}

// AppendSettings encodes settings, skipping any value equal to the RFC
// default (§4.J "the settings payload, when writing, omits any setting
// equal to the RFC default").
func AppendSettings(dst []byte, settings []Setting) []byte {
	var tmp [6]byte
	for _, s := range settings {
		if def, ok := defaultSettingValues[s.ID]; ok && def == s.Value {
			continue
		}
		binary.BigEndian.PutUint16(tmp[0:2], uint16(s.ID))
		binary.BigEndian.PutUint32(tmp[2:6], s.Value)
		dst = append(dst, tmp[:]...)
	}
	return dst
}

// ParseWindowUpdate decodes a 4-byte WINDOW_UPDATE increment, masking the
// reserved top bit.
func ParseWindowUpdate(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("h2frame: WINDOW_UPDATE payload length %d != 4", len(payload))
	}
	return binary.BigEndian.Uint32(payload) & 0x7fffffff, nil
}

// AppendWindowUpdate encodes a WINDOW_UPDATE increment payload.
func AppendWindowUpdate(dst []byte, increment uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], increment&0x7fffffff)
	return append(dst, b[:]...)
}

// ParseRSTStream decodes a 4-byte RST_STREAM error code.
func ParseRSTStream(payload []byte) (uint32, error) {
	if len(payload) != 4 {
		return 0, fmt.Errorf("h2frame: RST_STREAM payload length %d != 4", len(payload))
	}
	return binary.BigEndian.Uint32(payload), nil
}

// AppendRSTStream encodes an RST_STREAM error-code payload.
func AppendRSTStream(dst []byte, code uint32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], code)
	return append(dst, b[:]...)
}

// GoAway is a decoded GOAWAY payload.
type GoAway struct {
	LastStreamID uint32
	ErrorCode    uint32
	Debug        []byte
}

// ParseGoAway decodes a GOAWAY payload.
func ParseGoAway(payload []byte) (GoAway, error) {
	if len(payload) < 8 {
		return GoAway{}, fmt.Errorf("h2frame: GOAWAY payload too short")
	}
	return GoAway{
		LastStreamID: binary.BigEndian.Uint32(payload[0:4]) & 0x7fffffff,
		ErrorCode:    binary.BigEndian.Uint32(payload[4:8]),
		Debug:        payload[8:],
	}, nil
}

// AppendGoAway encodes a GOAWAY payload.
func AppendGoAway(dst []byte, lastStreamID, code uint32, debug []byte) []byte {
	var b [8]byte
	binary.BigEndian.PutUint32(b[0:4], lastStreamID&0x7fffffff)
	binary.BigEndian.PutUint32(b[4:8], code)
	dst = append(dst, b[:]...)
	return append(dst, debug...)
}

// ParsePing validates an 8-byte PING payload and returns it verbatim.
func ParsePing(payload []byte) ([8]byte, error) {
	var out [8]byte
	if len(payload) != 8 {
		return out, fmt.Errorf("h2frame: PING payload length %d != 8", len(payload))
	}
	copy(out[:], payload)
	return out, nil
}

// HeadersFragment describes a parsed HEADERS/PUSH_PROMISE/CONTINUATION
// payload after stripping padding, priority data and (for PUSH_PROMISE) the
// promised stream id.
type HeadersFragment struct {
	PromisedStreamID uint32 // PUSH_PROMISE only
	Fragment         []byte
}

// ParseHeadersPayload strips PADDED/PRIORITY framing from a HEADERS
// payload per §4.K: "If PADDED flag, first payload byte is pad length; if
// PRIORITY flag, next 5 bytes are priority data".
func ParseHeadersPayload(payload []byte, flags Flags) ([]byte, error) {
	pos := 0
	padLen := 0
	if flags.Has(FlagPadded) {
		if len(payload) < 1 {
			return nil, fmt.Errorf("h2frame: PADDED HEADERS too short")
		}
		padLen = int(payload[0])
		pos = 1
	}
	if flags.Has(FlagPriority) {
		if len(payload) < pos+5 {
			return nil, fmt.Errorf("h2frame: PRIORITY HEADERS too short")
		}
		pos += 5 // priority data accepted but ignored beyond structural validation
	}
	if len(payload) < pos+padLen {
		return nil, fmt.Errorf("h2frame: pad length exceeds payload")
	}
	end := len(payload) - padLen
	if end < pos {
		return nil, fmt.Errorf("h2frame: pad length exceeds payload")
	}
	return payload[pos:end], nil
}

// ParsePushPromisePayload strips PADDED framing and extracts the 4-byte
// promised stream id.
func ParsePushPromisePayload(payload []byte, flags Flags) (HeadersFragment, error) {
	pos := 0
	padLen := 0
	if flags.Has(FlagPadded) {
		if len(payload) < 1 {
			return HeadersFragment{}, fmt.Errorf("h2frame: PADDED PUSH_PROMISE too short")
		}
		padLen = int(payload[0])
		pos = 1
	}
	if len(payload) < pos+4 {
		return HeadersFragment{}, fmt.Errorf("h2frame: PUSH_PROMISE too short")
	}
	promised := binary.BigEndian.Uint32(payload[pos:pos+4]) & 0x7fffffff
	pos += 4
	end := len(payload) - padLen
	if end < pos {
		return HeadersFragment{}, fmt.Errorf("h2frame: pad length exceeds payload")
	}
	return HeadersFragment{PromisedStreamID: promised, Fragment: payload[pos:end]}, nil
}

// ParseDataPayload strips PADDED framing from a DATA payload.
func ParseDataPayload(payload []byte, flags Flags) ([]byte, error) {
	if !flags.Has(FlagPadded) {
		return payload, nil
	}
	if len(payload) < 1 {
		return nil, fmt.Errorf("h2frame: PADDED DATA too short")
	}
	padLen := int(payload[0])
	end := len(payload) - padLen
	if end < 1 {
		return nil, fmt.Errorf("h2frame: pad length exceeds payload")
	}
	return payload[1:end], nil
}
