// Command netserver is a reference embedder for a plain blocking net.Conn
// transport: one goroutine per connection reads into a buffer and feeds it
// to pkg/celeris.Server, the straightforward alternative to gnetserver's
// event loop for embedders that don't need gnet's non-blocking model (§4.A
// only requires a connected socket, not a particular I/O style).
package main

import (
	"flag"
	"log"
	"net"

	"github.com/onvex-io/h2engine/internal/message"
	"github.com/onvex-io/h2engine/pkg/celeris"
	"github.com/onvex-io/h2engine/wire"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8081", "listen address")
	flag.Parse()

	cfg := wire.DefaultConfig()
	cfg.Logger = log.Default()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("netserver: %v", err)
	}
	log.Printf("netserver: listening on %s", *addr)

	for {
		conn, err := ln.Accept()
		if err != nil {
			log.Printf("netserver: accept: %v", err)
			continue
		}
		go serve(conn, cfg)
	}
}

func serve(conn net.Conn, cfg wire.Config) {
	defer conn.Close()

	sock := &netSocket{conn: conn}
	engine := celeris.NewServer(sock, cfg, nil)
	engine.OnRequestStream(handleRequestStream)

	buf := make([]byte, 64*1024)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			engine.Feed(buf[:n])
		}
		if err != nil {
			return
		}
		if !sock.IsConnected() {
			return
		}
	}
}

func handleRequestStream(st celeris.Stream) {
	st.SetHandler(func(e celeris.Event) {
		if e.Kind != celeris.EventMessage || e.Request == nil {
			return
		}
		h := message.NewHeaders()
		_ = h.Set(":status", "200")
		_ = h.Set("x-echo-method", e.Request.Method)
		_ = h.Set("x-echo-path", e.Request.Path)
		_ = st.SendHeaders(h, true)
	})
}

// netSocket adapts a net.Conn to wire.Socket. Writes go straight to the
// connection; Flush is a no-op since net.Conn.Write is unbuffered.
type netSocket struct {
	conn   net.Conn
	closed bool
}

func (n *netSocket) Write(b []byte) (int, error) { return n.conn.Write(b) }
func (n *netSocket) Flush() error                { return nil }
func (n *netSocket) IsConnected() bool           { return !n.closed }
func (n *netSocket) IsWritable() bool            { return !n.closed }
func (n *netSocket) RemoteName() string          { return n.conn.RemoteAddr().String() }
func (n *netSocket) Close() error {
	n.closed = true
	return n.conn.Close()
}
