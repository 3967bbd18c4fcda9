// Package celeris is the library-presented API surface of the protocol
// engine (§6): construct a Server or Client over an application-supplied
// wire.Socket, feed it inbound bytes, register per-stream callbacks, and
// send responses or requests. Socket I/O, event-loop integration and TLS/
// ALPN belong to the embedder (see cmd/gnetserver, cmd/netserver).
package celeris

import "github.com/onvex-io/h2engine/wire"

// Config is the engine's protocol configuration, shared by Server and
// Client. It is a plain struct with a Validate method, not functional
// options — the convention used throughout this module's ambient stack.
type Config = wire.Config

// DefaultConfig returns a Config with the RFC 7540 §6.5.2 defaults and both
// protocols enabled.
func DefaultConfig() Config { return wire.DefaultConfig() }
