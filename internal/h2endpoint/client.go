package h2endpoint

import (
	"github.com/onvex-io/h2engine/internal/h2err"
	"github.com/onvex-io/h2engine/internal/h2frame"
	"github.com/onvex-io/h2engine/internal/h2stream"
	"github.com/onvex-io/h2engine/internal/hpack"
	"github.com/onvex-io/h2engine/wire"
)

// Client is an HTTP/2 client endpoint: it allocates odd-numbered stream ids
// for outbound requests and tracks even-numbered push streams offered by
// the server (§4.L "Client specialization", supplemented feature).
type Client struct {
	*Endpoint
	nextStreamID uint32
}

// NewClient constructs a Client over socket with the given local settings
// and (optionally shared) HPACK never-index session.
func NewClient(socket wire.Socket, local h2stream.Settings, session *hpack.Session) *Client {
	c := &Client{nextStreamID: 1}
	c.Endpoint = newEndpoint(socket, local, session, c.newStreamForFrame)
	return c
}

// Start sends the client connection preface and initial SETTINGS frame
// (§4.L "Client specialization: preface emission").
func (c *Client) Start() error {
	if _, err := c.socket.Write([]byte(ClientPreface)); err != nil {
		return err
	}
	return c.control.WriteSettings(c.local)
}

// CreateRequestStream allocates the next odd stream id and returns a
// MessageStream the caller uses to send a request. Returns nil if the id
// space is exhausted.
func (c *Client) CreateRequestStream() *h2stream.MessageStream {
	if c.nextStreamID == 0 { // wrapped past the 31-bit id space
		return nil
	}
	s := h2stream.NewMessageStream(c.nextStreamID, c.socket, c.writeFrame, c.hpack, c.control.Base, c.control.Remote.MaxFrameSize, c.control.Remote.MaxHeaderListSize)
	c.registerStream(s)
	next := c.nextStreamID + 2
	if next < c.nextStreamID || next > 0x7fffffff {
		next = 0 // signal exhaustion
	}
	c.nextStreamID = next
	return s
}

// HandlePushPromise reserves a MessageStream for an even promised stream id
// offered by the server via PUSH_PROMISE (§4.L, supplemented feature).
func (c *Client) HandlePushPromise(promisedStreamID uint32) *h2stream.MessageStream {
	s := h2stream.NewMessageStream(promisedStreamID, c.socket, c.writeFrame, c.hpack, c.control.Base, c.control.Remote.MaxFrameSize, c.control.Remote.MaxHeaderListSize)
	s.PreparePush()
	if promisedStreamID > c.highestStreamID {
		c.highestStreamID = promisedStreamID
	}
	c.registerStream(s)
	return s
}

// OnStreamClosed registers the hook fired once a closed stream is evicted
// from close-wait bookkeeping.
func (c *Client) OnStreamClosed(fn func(*h2stream.MessageStream)) { c.onStreamClosed = fn }

// OnMessageStreamClosed must be called by the application after a stream
// returned by CreateRequestStream or HandlePushPromise closes, to remove it
// from internal storage (§4.L, HTTP2Client.onMessageStreamClosed).
func (c *Client) OnMessageStreamClosed(s *h2stream.MessageStream) { c.StreamClosed(s) }

// Close cancels every open stream and sends a final GOAWAY with NO_ERROR,
// then closes the socket (§4.L "Client specialization: close").
func (c *Client) Close() error {
	for _, s := range c.streams {
		if s != nil && !s.IsClosed() {
			_ = s.Rst(h2err.Cancel)
		}
	}
	if c.socket.IsConnected() {
		_ = c.control.SendGoAway(c.highestStreamID, h2err.NoError, nil)
	}
	return c.socket.Close()
}

// newStreamForFrame never creates streams for unrecognized inbound ids: a
// client only expects frames on streams it created or that were offered via
// PUSH_PROMISE and already registered through HandlePushPromise.
func (c *Client) newStreamForFrame(streamID uint32, typ h2frame.Type, flags h2frame.Flags, payload []byte) (*h2stream.MessageStream, error) {
	return nil, nil
}
