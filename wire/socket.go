// Package wire holds the embedder contract: the writable-socket interface
// the protocol engine writes through (§4.A), and the engine's protocol
// configuration. The library-presented Server and Client types that glue
// HTTP/1, HTTP/2 and HPACK to a Socket live in pkg/celeris.
package wire

// Socket is the byte-sink abstraction the core writes through. It reports
// connected/writable state and remote identity; I/O itself, event-loop
// integration and TLS are the embedder's responsibility (§4.A).
type Socket interface {
	// Write enqueues bytes for transmission. Implementations should avoid
	// blocking; back-pressure is communicated via IsWritable.
	Write(b []byte) (int, error)
	// Flush pushes any buffered writes out to the transport.
	Flush() error
	// IsConnected reports whether the underlying channel can still accept
	// writes.
	IsConnected() bool
	// IsWritable reports whether additional writes will not require
	// growing a local buffer beyond a sensible bound.
	IsWritable() bool
	// RemoteName identifies the peer (address, or another stable label).
	RemoteName() string
	// Close tears down the underlying channel.
	Close() error
}
