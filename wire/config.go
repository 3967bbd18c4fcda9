package wire

import (
	"io"
	"log"
	"time"
)

// Config holds the engine-level configuration shared by both protocols: the
// plain-struct-plus-Validate shape the rest of this module's ambient stack
// uses throughout (no functional options anywhere in the pack this is
// grounded on). Socket I/O, event-loop and TLS settings are the embedder's
// concern and live in the embedder's own config (e.g. cmd/gnetserver),
// not here (§1 "the embedder performs ALPN and hands a connected socket").
type Config struct {
	// EnableH1 / EnableH2 select which wire formats Server.Feed will accept.
	// At least one must stay enabled.
	EnableH1 bool
	EnableH2 bool

	MaxHeaderBytes       int           // HTTP/1 header block cap (h1.Receiver)
	MaxConcurrentStreams uint32        // HTTP/2 SETTINGS_MAX_CONCURRENT_STREAMS we advertise
	MaxFrameSize         uint32        // HTTP/2 SETTINGS_MAX_FRAME_SIZE we advertise
	InitialWindowSize    uint32        // HTTP/2 SETTINGS_INITIAL_WINDOW_SIZE we advertise
	HeaderTableSize      uint32        // HPACK SETTINGS_HEADER_TABLE_SIZE we advertise
	MaxHeaderListSize    uint32        // HTTP/2 SETTINGS_MAX_HEADER_LIST_SIZE we advertise
	EnablePush           bool          // HTTP/2 SETTINGS_ENABLE_PUSH we advertise

	IdleTimeout time.Duration // embedder-enforced; carried here for symmetry with the ambient config surface
	Logger      *log.Logger
}

func newSilentLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

// DefaultConfig returns a Config with the RFC 7540 §6.5.2 HTTP/2 defaults
// and both protocols enabled.
func DefaultConfig() Config {
	return Config{
		EnableH1:             true,
		EnableH2:             true,
		MaxHeaderBytes:       8192,
		MaxConcurrentStreams: 0xffffffff,
		MaxFrameSize:         16384,
		InitialWindowSize:    65535,
		HeaderTableSize:      4096,
		MaxHeaderListSize:    0xffffffff,
		EnablePush:           true,
		IdleTimeout:          60 * time.Second,
		Logger:               newSilentLogger(),
	}
}

// Validate normalizes out-of-range values in place, matching the teacher's
// Config.Validate convention of clamping rather than rejecting.
func (c *Config) Validate() error {
	if c.MaxFrameSize < 16384 {
		c.MaxFrameSize = 16384
	}
	if c.MaxFrameSize > (1<<24)-1 {
		c.MaxFrameSize = (1 << 24) - 1
	}
	if c.InitialWindowSize == 0 {
		c.InitialWindowSize = 65535
	}
	if c.MaxConcurrentStreams == 0 {
		c.MaxConcurrentStreams = 100
	}
	if c.HeaderTableSize == 0 {
		c.HeaderTableSize = 4096
	}
	if c.MaxHeaderBytes <= 0 {
		c.MaxHeaderBytes = 8192
	}
	if c.Logger == nil {
		c.Logger = log.Default()
	}
	if !c.EnableH1 && !c.EnableH2 {
		c.EnableH2 = true
	}
	return nil
}
