package h2stream

import (
	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/h2frame"
	"github.com/onvex-io/h2engine/wire"
)

// Settings holds the connection-level SETTINGS values tracked by the
// control stream, keyed by constant field rather than the reflection-
// populated map the Java source used (§9).
type Settings struct {
	HeaderTableSize      uint32
	EnablePush           bool
	MaxConcurrentStreams uint32
	InitialWindowSize    uint32
	MaxFrameSize         uint32
	MaxHeaderListSize    uint32
}

// DefaultSettings returns the RFC 7540 §6.5.2 defaults.
func DefaultSettings() Settings {
	return Settings{
		HeaderTableSize:      4096,
		EnablePush:           true,
		MaxConcurrentStreams: 0xffffffff,
		InitialWindowSize:    InitialWindowSize,
		MaxFrameSize:         16384,
		MaxHeaderListSize:    0xffffffff,
	}
}

// ControlStream is stream 0: SETTINGS, PING, GOAWAY and connection-level
// WINDOW_UPDATE (§4.J).
type ControlStream struct {
	*Base

	Local  Settings // our own advertised settings
	Remote Settings // settings received from the peer

	settingsReceived bool

	onSettingsApplied func(remote Settings)
	onGoAway          func(h2frame.GoAway)
	onPingAck         func([8]byte)
}

// NewControlStream constructs the stream-0 control stream.
func NewControlStream(socket wire.Socket, write WriteFrame) *ControlStream {
	return &ControlStream{
		Base:   NewBase(0, socket, write, false, InitialWindowSize),
		Local:  DefaultSettings(),
		Remote: DefaultSettings(),
	}
}

// OnSettingsApplied registers the hook fired after a non-ACK SETTINGS
// frame has been validated and applied to Remote.
func (c *ControlStream) OnSettingsApplied(fn func(Settings)) { c.onSettingsApplied = fn }

// OnGoAway registers the GOAWAY hook; the endpoint coordinates teardown,
// the control stream only decodes (§4.J "GOAWAY decodes but does not
// itself close").
func (c *ControlStream) OnGoAway(fn func(h2frame.GoAway)) { c.onGoAway = fn }

// OnPingAck registers the hook fired when a non-ACK PING is answered.
func (c *ControlStream) OnPingAck(fn func([8]byte)) { c.onPingAck = fn }

// WriteSettings emits a SETTINGS frame for the given values, omitting any
// equal to the RFC default (§4.J).
func (c *ControlStream) WriteSettings(s Settings) error {
	settings := []h2frame.Setting{
		{ID: h2frame.SettingHeaderTableSize, Value: s.HeaderTableSize},
		{ID: h2frame.SettingMaxConcurrentStreams, Value: s.MaxConcurrentStreams},
		{ID: h2frame.SettingInitialWindowSize, Value: s.InitialWindowSize},
		{ID: h2frame.SettingMaxFrameSize, Value: s.MaxFrameSize},
		{ID: h2frame.SettingMaxHeaderListSize, Value: s.MaxHeaderListSize},
	}
	if !s.EnablePush {
		settings = append(settings, h2frame.Setting{ID: h2frame.SettingEnablePush, Value: 0})
	}
	payload := h2frame.AppendSettings(nil, settings)
	return c.writeFrame(h2frame.Header{Type: h2frame.TypeSettings, StreamID: 0}, payload)
}

// writeSettingsAck emits an empty SETTINGS frame with the ACK bit set.
func (c *ControlStream) writeSettingsAck() error {
	return c.writeFrame(h2frame.Header{Type: h2frame.TypeSettings, Flags: h2frame.FlagAck, StreamID: 0}, nil)
}

// ReceiveSettings validates and applies an inbound SETTINGS frame (§4.J).
// ACK-flagged frames are accepted as-is; their payload is not examined.
func (c *ControlStream) ReceiveSettings(payload []byte, ack bool) error {
	if ack {
		return nil
	}
	c.settingsReceived = true
	tuples, err := h2frame.ParseSettings(payload)
	if err != nil {
		return h2err.Connection(h2err.FrameSizeError, err.Error())
	}
	for _, t := range tuples {
		switch t.ID {
		case h2frame.SettingHeaderTableSize:
			c.Remote.HeaderTableSize = t.Value
		case h2frame.SettingEnablePush:
			if t.Value > 1 {
				return h2err.Connection(h2err.ProtocolError, "ENABLE_PUSH must be 0 or 1")
			}
			c.Remote.EnablePush = t.Value == 1
		case h2frame.SettingMaxConcurrentStreams:
			c.Remote.MaxConcurrentStreams = t.Value
		case h2frame.SettingInitialWindowSize:
			c.Remote.InitialWindowSize = t.Value
		case h2frame.SettingMaxFrameSize:
			if t.Value < 16384 || t.Value > 16777215 {
				return h2err.Connection(h2err.ProtocolError, "MAX_FRAME_SIZE out of range")
			}
			c.Remote.MaxFrameSize = t.Value
		case h2frame.SettingMaxHeaderListSize:
			c.Remote.MaxHeaderListSize = t.Value
		default:
			// unknown settings are ignored (§4.J).
		}
	}
	if c.onSettingsApplied != nil {
		c.onSettingsApplied(c.Remote)
	}
	return c.writeSettingsAck()
}

// ReceivePing answers a PING without the ACK bit by echoing its 8 bytes with
// ACK set; an ACK PING (the reply to one we sent) invokes onPingAck (§4.J).
func (c *ControlStream) ReceivePing(payload []byte, ack bool) error {
	data, err := h2frame.ParsePing(payload)
	if err != nil {
		return h2err.Connection(h2err.FrameSizeError, err.Error())
	}
	if ack {
		if c.onPingAck != nil {
			c.onPingAck(data)
		}
		return nil
	}
	return c.writeFrame(h2frame.Header{Type: h2frame.TypePing, Flags: h2frame.FlagAck, StreamID: 0}, data[:])
}

// SendPing emits a non-ACK PING with the given 8 opaque bytes.
func (c *ControlStream) SendPing(data [8]byte) error {
	return c.writeFrame(h2frame.Header{Type: h2frame.TypePing, StreamID: 0}, data[:])
}

// ReceiveGoAway decodes an inbound GOAWAY and invokes onGoAway; it does not
// itself close the connection (§4.J).
func (c *ControlStream) ReceiveGoAway(payload []byte) error {
	ga, err := h2frame.ParseGoAway(payload)
	if err != nil {
		return h2err.Connection(h2err.FrameSizeError, err.Error())
	}
	if c.onGoAway != nil {
		c.onGoAway(ga)
	}
	return nil
}

// SendGoAway emits a GOAWAY frame with the given last-processed stream id,
// error code and optional debug data.
func (c *ControlStream) SendGoAway(lastStreamID uint32, code h2err.Code, debug []byte) error {
	payload := h2frame.AppendGoAway(nil, lastStreamID, uint32(code), debug)
	return c.writeFrame(h2frame.Header{Type: h2frame.TypeGoAway, StreamID: 0}, payload)
}

// ReceiveWindowUpdate applies a connection-level WINDOW_UPDATE.
func (c *ControlStream) ReceiveWindowUpdate(increment uint32) error {
	return c.Base.ReceiveWindowUpdate(increment)
}

// SettingsReceived reports whether a non-ACK SETTINGS frame has been
// received yet; any other frame type before this one is a PROTOCOL_ERROR
// (§4.J, RFC 7540 §3.5).
func (c *ControlStream) SettingsReceived() bool { return c.settingsReceived }
