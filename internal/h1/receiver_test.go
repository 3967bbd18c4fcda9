package h1

import "testing"

func TestReceiver_SinglePass(t *testing.T) {
	rv := NewReceiver(KindRequest, "http")
	buf := []byte("GET /a HTTP/1.1\r\nHost: x\r\n\r\n")

	res, n, err := rv.Receive(buf, 0)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if n != 28 {
		t.Errorf("Receive() n = %d; want 28", n)
	}
	if res == nil || res.Request == nil {
		t.Fatal("expected a parsed request")
	}
	if res.Request.Method != "GET" || res.Request.Path != "/a" || res.Request.Authority != "x" {
		t.Errorf("parsed request = %+v", res.Request)
	}
}

func TestReceiver_SplitFeed(t *testing.T) {
	rv := NewReceiver(KindRequest, "http")

	_, n, err := rv.Receive([]byte("GET /a HTTP/1.1\r\nHos"), 0)
	if err != nil {
		t.Fatalf("first Receive() error = %v", err)
	}
	if n != Incomplete {
		t.Errorf("first Receive() n = %d; want Incomplete", n)
	}

	buf2 := []byte("t: x\r\n\r\nBODY")
	res, n, err := rv.Receive(buf2, 0)
	if err != nil {
		t.Fatalf("second Receive() error = %v", err)
	}
	if n != 8 {
		t.Errorf("second Receive() n = %d; want 8", n)
	}
	if string(buf2[n:]) != "BODY" {
		t.Errorf("body slice = %q; want BODY", buf2[n:])
	}
	if res.Request.Authority != "x" {
		t.Errorf("authority = %q; want x", res.Request.Authority)
	}
}

func TestDechunker_Chunked(t *testing.T) {
	var got []byte
	ended := false
	d := NewDechunker(true, -1, func(data []byte, end bool) error {
		if end {
			ended = true
			return nil
		}
		got = append(got, data...)
		return nil
	})

	buf := []byte("5\r\nhello\r\n0\r\n\r\n")
	n, err := d.AddData(buf)
	if err != nil {
		t.Fatalf("AddData() error = %v", err)
	}
	if n != len(buf) {
		t.Errorf("AddData() n = %d; want %d", n, len(buf))
	}
	if string(got) != "hello" {
		t.Errorf("got = %q; want hello", got)
	}
	if !ended {
		t.Errorf("expected end callback")
	}
}

func TestDechunker_ChunkedPipelined(t *testing.T) {
	var got []byte
	ended := false
	d := NewDechunker(true, -1, func(data []byte, end bool) error {
		if end {
			ended = true
			return nil
		}
		got = append(got, data...)
		return nil
	})

	buf := []byte("5\r\nhello\r\n0\r\n\r\nGET / HTTP/1.1\r\n\r\n")
	n, err := d.AddData(buf)
	if err != nil {
		t.Fatalf("AddData() error = %v", err)
	}
	if !ended {
		t.Errorf("expected end callback")
	}
	want := "5\r\nhello\r\n0\r\n\r\n"
	if n != len(want) {
		t.Errorf("AddData() n = %d; want %d", n, len(want))
	}
	if string(buf[n:]) != "GET / HTTP/1.1\r\n\r\n" {
		t.Errorf("leftover = %q; want pipelined request preserved", buf[n:])
	}
}

func TestDechunker_ContentLength(t *testing.T) {
	var got []byte
	ended := false
	d := NewDechunker(false, 5, func(data []byte, end bool) error {
		if end {
			ended = true
			return nil
		}
		got = append(got, data...)
		return nil
	})

	if _, err := d.AddData([]byte("hello")); err != nil {
		t.Fatalf("AddData() error = %v", err)
	}
	if string(got) != "hello" || !ended {
		t.Errorf("got = %q, ended = %v", got, ended)
	}

	if _, err := d.AddData([]byte("x")); err != ErrDataAfterEnd {
		t.Errorf("AddData() after end error = %v; want ErrDataAfterEnd", err)
	}
}

func TestDechunker_ContentLengthExceeded(t *testing.T) {
	d := NewDechunker(false, 2, func([]byte, bool) error { return nil })
	if _, err := d.AddData([]byte("abc")); err != ErrContentLengthExceeded {
		t.Errorf("AddData() error = %v; want ErrContentLengthExceeded", err)
	}
}
