package hpack

import (
	"testing"

	"github.com/onvex-io/h2engine/internal/message"
)

func TestInteger_RoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 10, 127, 128, 1000, 1 << 20, (1 << 32) - 1} {
		for n := byte(1); n <= 8; n++ {
			enc := appendInteger(nil, n, 0, v)
			got, consumed, err := readInteger(enc, n)
			if err != nil {
				t.Fatalf("readInteger(v=%d,n=%d) error = %v", v, n, err)
			}
			if got != v || consumed != len(enc) {
				t.Errorf("readInteger(v=%d,n=%d) = %d,%d; want %d,%d", v, n, got, consumed, v, len(enc))
			}
		}
	}
}

func TestString_RoundTrip(t *testing.T) {
	cases := []string{"", "a", "www.example.com", "GET", "custom-value-1234567890"}
	for _, s := range cases {
		enc := appendString(nil, s)
		got, n, err := readString(enc)
		if err != nil {
			t.Fatalf("readString(%q) error = %v", s, err)
		}
		if got != s || n != len(enc) {
			t.Errorf("readString(%q) = %q,%d; want %q,%d", s, got, n, s, len(enc))
		}
	}
}

func TestContext_IndexedStaticMethodGet(t *testing.T) {
	// S4: encoding {:method=GET} should be the single byte 0x82.
	sess := NewSession()
	ctx := NewContext(sess, DefaultTableSize)

	h := message.NewHeaders()
	h.Add(":method", "GET")

	enc := ctx.Encode(nil, h)
	if len(enc) != 1 || enc[0] != 0x82 {
		t.Errorf("Encode({:method=GET}) = % x; want [82]", enc)
	}
}

func TestContext_EncodeDecodeRoundTrip(t *testing.T) {
	sess := NewSession()
	encCtx := NewContext(sess, DefaultTableSize)
	decCtx := NewContext(sess, DefaultTableSize)

	h := message.NewHeaders()
	h.Add(":method", "POST")
	h.Add(":path", "/upload")
	h.Add(":authority", "example.com")
	h.Add(":scheme", "https")
	h.Add("x-custom", "value-1")
	h.Add("x-custom", "value-2")

	enc := encCtx.Encode(nil, h)
	got, err := decCtx.Decode(enc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	for _, p := range h.All() {
		idx := 0
		found := false
		for {
			v, ok := got.GetIndex(p.Name, idx)
			if !ok {
				break
			}
			if v == p.Value {
				found = true
				break
			}
			idx++
		}
		if !found {
			t.Errorf("decoded headers missing %s=%s", p.Name, p.Value)
		}
	}
}

func TestContext_CookieFolding(t *testing.T) {
	sess := NewSession()
	encCtx := NewContext(sess, DefaultTableSize)
	decCtx := NewContext(sess, DefaultTableSize)

	h := message.NewHeaders()
	h.Add("cookie", "a=1")
	h.Add("cookie", "b=2")

	enc := encCtx.Encode(nil, h)
	got, err := decCtx.Decode(enc)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	v, ok := got.Get("cookie")
	if !ok || v != "a=1; b=2" {
		t.Errorf("cookie folding = %q, %v; want %q, true", v, ok, "a=1; b=2")
	}
}

func TestContext_NeverIndexed(t *testing.T) {
	sess := NewSession()
	encCtx := NewContext(sess, DefaultTableSize)

	sess.MarkNeverIndex("authorization")
	h := message.NewHeaders()
	h.Add("authorization", "secret-token")

	enc := encCtx.Encode(nil, h)
	// Literal never-indexed opcode is 0b0001xxxx.
	if enc[0]&0xf0 != 0x10 {
		t.Errorf("encoded opcode = 0x%02x; want never-index literal (0x1x)", enc[0])
	}
}

func TestDynamicTable_Eviction(t *testing.T) {
	tbl := newDynamicTable(64)
	tbl.add(entry{name: "a", value: "1"}) // size 2+32=34... header name+value+32
	tbl.add(entry{name: "b", value: "2"})
	if tbl.size > 64 {
		t.Errorf("dynamic table size %d exceeds cap 64", tbl.size)
	}
}
