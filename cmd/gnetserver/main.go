// Command gnetserver is a reference embedder: it wires gnet's event-driven
// TCP engine to pkg/celeris.Server via a thin wire.Socket adapter, the way
// §4.A expects a non-blocking event-loop transport to plug in. It carries no
// application logic of its own — just enough routing to echo request
// metadata back as a response, to prove the wiring end to end.
package main

import (
	"flag"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/onvex-io/h2engine/internal/message"
	"github.com/onvex-io/h2engine/pkg/celeris"
	"github.com/onvex-io/h2engine/wire"
	"github.com/panjf2000/gnet/v2"
)

func main() {
	addr := flag.String("addr", "127.0.0.1:8080", "listen address")
	multicore := flag.Bool("multicore", true, "spread accepted connections across all event loops")
	flag.Parse()

	cfg := wire.DefaultConfig()
	cfg.Logger = log.Default()

	srv := &server{cfg: cfg, multicore: *multicore}
	log.Printf("gnetserver: listening on %s (multicore=%v)", *addr, *multicore)

	options := []gnet.Option{
		gnet.WithMulticore(*multicore),
		gnet.WithTCPNoDelay(gnet.TCPNoDelay),
		gnet.WithTCPKeepAlive(time.Minute),
		gnet.WithSocketRecvBuffer(4 << 20),
		gnet.WithSocketSendBuffer(4 << 20),
		gnet.WithNumEventLoop(runtime.NumCPU()),
	}
	if err := gnet.Run(srv, "tcp://"+*addr, options...); err != nil {
		log.Fatalf("gnetserver: %v", err)
	}
}

// server is the gnet.EventHandler; it owns nothing protocol-specific beyond
// dispatching OnTraffic bytes into each connection's celeris.Server.
type server struct {
	gnet.BuiltinEventEngine
	cfg       wire.Config
	multicore bool
	conns     sync.Map // map[gnet.Conn]*celeris.Server
}

func (s *server) OnOpen(c gnet.Conn) ([]byte, gnet.Action) {
	sock := &gnetSocket{conn: c}
	engine := celeris.NewServer(sock, s.cfg, nil)
	engine.OnRequestStream(handleRequestStream)
	s.conns.Store(c, engine)
	return nil, gnet.None
}

func (s *server) OnClose(c gnet.Conn, _ error) gnet.Action {
	s.conns.Delete(c)
	return gnet.None
}

func (s *server) OnTraffic(c gnet.Conn) gnet.Action {
	engineValue, ok := s.conns.Load(c)
	if !ok {
		return gnet.Close
	}
	buf, err := c.Next(-1)
	if err != nil {
		return gnet.Close
	}
	engineValue.(*celeris.Server).Feed(buf)
	return gnet.None
}

// handleRequestStream answers every request with its own method and path
// echoed back as response headers, just enough to exercise the wiring.
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

// gnetSocket adapts a gnet.Conn to wire.Socket. gnet.Conn.Write already
// queues and flushes on its own event loop, so Flush is a no-op here; an
// embedder batching writes (as the teacher's connWriter did) would instead
// buffer in Write and drain in Flush.
type gnetSocket struct {
	conn gnet.Conn
}

func (g *gnetSocket) Write(b []byte) (int, error) { return g.conn.Write(b) }
func (g *gnetSocket) Flush() error                { return nil }
func (g *gnetSocket) IsConnected() bool           { return true }
func (g *gnetSocket) IsWritable() bool            { return true }
func (g *gnetSocket) RemoteName() string          { return g.conn.RemoteAddr().String() }
func (g *gnetSocket) Close() error                { return g.conn.Close() }
