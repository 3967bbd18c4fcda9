// Package hpack implements RFC 7541 header compression: the static table,
// per-direction dynamic tables, Huffman coding and the never-index set
// (§4.G). A Context pairs one encoder and one decoder for a single HTTP/2
// connection; the never-index Session may be shared across connections.
package hpack

import (
	"fmt"
	"strings"
	"sync"

	"github.com/onvex-io/h2engine/internal/message"
)

// DefaultTableSize is the RFC 7541 default dynamic table size
// (HEADER_TABLE_SIZE's default).
const DefaultTableSize = 4096

// bufPool reuses the byte slices backing encoded header blocks, mirroring
// the teacher's headerBufPool sync.Pool convention for hot-path framing
// buffers.
var bufPool = sync.Pool{New: func() any { return make([]byte, 0, 256) }}

// Context is a single direction-pair of HPACK state for one connection.
type Context struct {
	session *Session

	encMu   sync.Mutex
	encTbl  *dynamicTable
	encSize int // pending size update to emit before the next block, -1 if none

	decMu  sync.Mutex
	decTbl *dynamicTable
}

// NewContext constructs a Context backed by session (shared never-index
// state) with both tables starting at settingsMax.
func NewContext(session *Session, settingsMax int) *Context {
	return &Context{
		session: session,
		encTbl:  newDynamicTable(settingsMax),
		encSize: -1,
		decTbl:  newDynamicTable(settingsMax),
	}
}

// SetEncoderSettingsMax updates the ceiling received from the peer via
// SETTINGS HEADER_TABLE_SIZE for headers we encode.
func (c *Context) SetEncoderSettingsMax(n int) {
	c.encMu.Lock()
	defer c.encMu.Unlock()
	c.encTbl.settings = n
	if c.encTbl.current > n {
		c.encTbl.current = n
		c.encTbl.evict()
	}
}

// SetEncoderTableSize requests a lower current cap than the settings
// ceiling, to be announced via a Dynamic Table Size Update on the next
// encoded block (§4.G encode: "If the encoder's current max table size is
// below the settings ceiling, emit a size update first").
func (c *Context) SetEncoderTableSize(n int) error {
	c.encMu.Lock()
	defer c.encMu.Unlock()
	if n > c.encTbl.settings {
		return fmt.Errorf("hpack: requested encoder table size %d exceeds settings max %d", n, c.encTbl.settings)
	}
	c.encSize = n
	return nil
}

// SetDecoderSettingsMax sets the maximum a peer's Dynamic Table Size Update
// may request (our own advertised HEADER_TABLE_SIZE).
func (c *Context) SetDecoderSettingsMax(n int) {
	c.decMu.Lock()
	defer c.decMu.Unlock()
	c.decTbl.settings = n
	if c.decTbl.current > n {
		c.decTbl.current = n
		c.decTbl.evict()
	}
}

// EncodeHeaders encodes headers into a pooled buffer and returns its bytes;
// callers must copy out what they need before calling ReleaseBuffer, since
// the slice is recycled.
func (c *Context) EncodeHeaders(headers *message.Headers) []byte {
	buf := bufPool.Get().([]byte)[:0]
	return c.Encode(buf, headers)
}

// ReleaseBuffer returns a buffer obtained from EncodeHeaders to the pool.
func ReleaseBuffer(buf []byte) {
	bufPool.Put(buf[:0]) //nolint:staticcheck // intentional pool reuse
}

// Encode appends the HPACK encoding of headers' (name,value) pairs to dst
// and returns the extended slice (§4.G encode).
func (c *Context) Encode(dst []byte, headers *message.Headers) []byte {
	c.encMu.Lock()
	defer c.encMu.Unlock()

	if c.encSize >= 0 {
		dst = appendInteger(dst, 5, 0x20, uint64(c.encSize))
		c.encTbl.current = c.encSize
		c.encTbl.evict()
		c.encSize = -1
	}

	for _, p := range headers.All() {
		dst = c.encodeOne(dst, p.Name, p.Value)
	}
	return dst
}

func (c *Context) encodeOne(dst []byte, name, value string) []byte {
	neverIdx := c.session.IsNeverIndex(name)
	exact, nameOnly := c.encTbl.indexOf(name, value)

	if exact != 0 && !neverIdx {
		return appendInteger(dst, 7, 0x80, uint64(exact))
	}

	switch {
	case nameOnly != 0 && neverIdx:
		dst = appendInteger(dst, 4, 0x10, uint64(nameOnly))
		dst = appendString(dst, value)
	case nameOnly != 0:
		dst = appendInteger(dst, 6, 0x40, uint64(nameOnly))
		dst = appendString(dst, value)
		c.encTbl.add(entry{name: name, value: value})
	case neverIdx:
		dst = appendInteger(dst, 4, 0x10, 0)
		dst = appendString(dst, name)
		dst = appendString(dst, value)
	default:
		dst = appendInteger(dst, 6, 0x40, 0)
		dst = appendString(dst, name)
		dst = appendString(dst, value)
		c.encTbl.add(entry{name: name, value: value})
	}
	return dst
}

// Decode parses an HPACK header block into a fresh Headers container,
// folding any cookie headers with "; " per RFC 7540 §8.1.2.5 (§4.G special
// handling).
func (c *Context) Decode(block []byte) (*message.Headers, error) {
	c.decMu.Lock()
	defer c.decMu.Unlock()

	h := message.NewHeaders()
	var cookies []string

	for len(block) > 0 {
		b := block[0]
		switch {
		case b&0x80 != 0: // indexed-full
			idx, n, err := readInteger(block, 7)
			if err != nil {
				return nil, err
			}
			block = block[n:]
			e, ok := c.lookup(int(idx))
			if !ok {
				return nil, fmt.Errorf("hpack: invalid index %d", idx)
			}
			appendDecoded(h, &cookies, e.name, e.value)

		case b&0xc0 == 0x40: // literal with incremental indexing
			name, value, n, err := c.readLiteral(block, 6, 0x40)
			if err != nil {
				return nil, err
			}
			block = block[n:]
			c.decTbl.add(entry{name: name, value: value})
			appendDecoded(h, &cookies, name, value)

		case b&0xf0 == 0x00: // literal without indexing
			name, value, n, err := c.readLiteral(block, 4, 0x00)
			if err != nil {
				return nil, err
			}
			block = block[n:]
			appendDecoded(h, &cookies, name, value)

		case b&0xf0 == 0x10: // literal never indexed
			name, value, n, err := c.readLiteral(block, 4, 0x10)
			if err != nil {
				return nil, err
			}
			block = block[n:]
			c.session.MarkNeverIndex(name)
			appendDecoded(h, &cookies, name, value)

		case b&0xe0 == 0x20: // dynamic table size update
			n64, n, err := readInteger(block, 5)
			if err != nil {
				return nil, err
			}
			block = block[n:]
			if err := c.decTbl.setCurrent(int(n64)); err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("hpack: invalid header block opcode 0x%02x", b)
		}
	}

	if len(cookies) > 0 {
		_ = h.Set("cookie", strings.Join(cookies, "; "))
	}
	return h, nil
}

func appendDecoded(h *message.Headers, cookies *[]string, name, value string) {
	if name == "cookie" {
		*cookies = append(*cookies, value)
		return
	}
	_ = h.Add(name, value)
}

// readLiteral parses a literal representation with an n-bit name-index
// prefix and opcode; nameIdx == 0 means a literal name follows.
func (c *Context) readLiteral(block []byte, prefixBits byte, _ byte) (name, value string, consumed int, err error) {
	nameIdx, n, err := readInteger(block, prefixBits)
	if err != nil {
		return "", "", 0, err
	}
	pos := n
	if nameIdx == 0 {
		s, sn, err := readString(block[pos:])
		if err != nil {
			return "", "", 0, err
		}
		name = s
		pos += sn
	} else {
		e, ok := c.lookup(int(nameIdx))
		if !ok {
			return "", "", 0, fmt.Errorf("hpack: invalid name index %d", nameIdx)
		}
		name = e.name
	}
	v, vn, err := readString(block[pos:])
	if err != nil {
		return "", "", 0, err
	}
	value = v
	pos += vn
	return name, value, pos, nil
}

func (c *Context) lookup(idx int) (entry, bool) {
	if e, ok := staticAt(idx); ok {
		return e, true
	}
	return c.decTbl.at(idx)
}
