// Package h2err defines the HTTP/2 error-code taxonomy and the connection/
// stream error type used to escalate protocol violations (§4.L "error
// surface", §6 "error codes", §7).
package h2err

import "fmt"

// Code is an HTTP/2 error code (RFC 7540 §7).
type Code uint32

const (
	NoError            Code = 0x0
	ProtocolError      Code = 0x1
	InternalError      Code = 0x2
	FlowControlError   Code = 0x3
	SettingsTimeout    Code = 0x4
	StreamClosed       Code = 0x5
	FrameSizeError     Code = 0x6
	RefusedStream      Code = 0x7
	Cancel             Code = 0x8
	CompressionError   Code = 0x9
	ConnectError       Code = 0xa
	EnhanceYourCalm    Code = 0xb
	InadequateSecurity Code = 0xc
	HTTP11Required     Code = 0xd
)

func (c Code) String() string {
	switch c {
	case NoError:
		return "NO_ERROR"
	case ProtocolError:
		return "PROTOCOL_ERROR"
	case InternalError:
		return "INTERNAL_ERROR"
	case FlowControlError:
		return "FLOW_CONTROL_ERROR"
	case SettingsTimeout:
		return "SETTINGS_TIMEOUT"
	case StreamClosed:
		return "STREAM_CLOSED"
	case FrameSizeError:
		return "FRAME_SIZE_ERROR"
	case RefusedStream:
		return "REFUSED_STREAM"
	case Cancel:
		return "CANCEL"
	case CompressionError:
		return "COMPRESSION_ERROR"
	case ConnectError:
		return "CONNECT_ERROR"
	case EnhanceYourCalm:
		return "ENHANCE_YOUR_CALM"
	case InadequateSecurity:
		return "INADEQUATE_SECURITY"
	case HTTP11Required:
		return "HTTP_1_1_REQUIRED"
	default:
		return fmt.Sprintf("UNKNOWN(0x%x)", uint32(c))
	}
}

// ConnectionError carries a status code, a stream-vs-connection scope flag
// and an optional message (§4.L "A HTTP2ConnectionError carries a status
// code, a stream-vs-connection flag, and an optional message").
type ConnectionError struct {
	Code       Code
	StreamWide bool // true: scoped to one stream (-> RST_STREAM); false: connection (-> GOAWAY)
	StreamID   uint32
	Msg        string
}

func (e *ConnectionError) Error() string {
	if e.Msg != "" {
		return fmt.Sprintf("h2: %s: %s", e.Code, e.Msg)
	}
	return fmt.Sprintf("h2: %s", e.Code)
}

// Stream constructs a stream-scoped error.
func Stream(streamID uint32, code Code, msg string) *ConnectionError {
	return &ConnectionError{Code: code, StreamWide: true, StreamID: streamID, Msg: msg}
}

// Connection constructs a connection-scoped error.
func Connection(code Code, msg string) *ConnectionError {
	return &ConnectionError{Code: code, Msg: msg}
}

// CloseReason is delivered to onError/onClosed callbacks (§7).
type CloseReason int

const (
	ReasonUnknown CloseReason = iota
	ReasonProtocolError
	ReasonInternalError
	ReasonCancel
	ReasonRefused
	ReasonEnhanceYourCalm
	ReasonProtocolDowngrade
)

func (r CloseReason) String() string {
	switch r {
	case ReasonProtocolError:
		return "PROTOCOL_ERROR"
	case ReasonInternalError:
		return "INTERNAL_ERROR"
	case ReasonCancel:
		return "CANCEL"
	case ReasonRefused:
		return "REFUSED"
	case ReasonEnhanceYourCalm:
		return "ENHANCE_YOUR_CALM"
	case ReasonProtocolDowngrade:
		return "PROTOCOL_DOWNGRADE"
	default:
		return "UNKNOWN"
	}
}

// FromCode maps a wire error Code to the close-reason enum delivered to the
// application.
func FromCode(c Code) CloseReason {
	switch c {
	case ProtocolError:
		return ReasonProtocolError
	case InternalError:
		return ReasonInternalError
	case Cancel:
		return ReasonCancel
	case RefusedStream:
		return ReasonRefused
	case EnhanceYourCalm:
		return ReasonEnhanceYourCalm
	default:
		return ReasonUnknown
	}
}
