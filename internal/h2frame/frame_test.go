package h2frame

import "testing"

func TestHeader_RoundTrip(t *testing.T) {
	h := Header{Type: TypeHeaders, Flags: FlagEndHeaders | FlagEndStream, StreamID: 0x7fffffff}
	enc := AppendFrame(nil, h, []byte("payload"))

	got, err := ParseHeader(enc, 16384)
	if err != nil {
		t.Fatalf("ParseHeader() error = %v", err)
	}
	if got.Length != 7 || got.Type != TypeHeaders || got.Flags != h.Flags || got.StreamID != 0x7fffffff {
		t.Errorf("ParseHeader() = %+v", got)
	}
	if string(enc[HeaderLen:]) != "payload" {
		t.Errorf("payload = %q", enc[HeaderLen:])
	}
}

func TestParseHeader_ReservedBitMasked(t *testing.T) {
	h := Header{Type: TypeData, StreamID: 1}
	enc := AppendFrame(nil, h, nil)
	enc[5] |= 0x80 // set the reserved bit directly on the wire

	got, err := ParseHeader(enc, 16384)
	if err != nil {
		t.Fatalf("ParseHeader() error = %v", err)
	}
	if got.StreamID != 1 {
		t.Errorf("StreamID = %d; want 1 (reserved bit must be masked)", got.StreamID)
	}
}

func TestParseHeader_TooLarge(t *testing.T) {
	h := Header{Type: TypeData, StreamID: 1}
	enc := AppendFrame(nil, h, make([]byte, 100))
	if _, err := ParseHeader(enc, 50); err != ErrFrameTooLarge {
		t.Errorf("ParseHeader() error = %v; want ErrFrameTooLarge", err)
	}
}

func TestSettings_SkipsDefaults(t *testing.T) {
	settings := []Setting{
		{ID: SettingInitialWindowSize, Value: 65535}, // default, should be skipped
		{ID: SettingMaxConcurrentStreams, Value: 100},
	}
	enc := AppendSettings(nil, settings)
	parsed, err := ParseSettings(enc)
	if err != nil {
		t.Fatalf("ParseSettings() error = %v", err)
	}
	if len(parsed) != 1 || parsed[0].ID != SettingMaxConcurrentStreams || parsed[0].Value != 100 {
		t.Errorf("ParseSettings() = %+v", parsed)
	}
}

func TestParseHeadersPayload_PaddedAndPriority(t *testing.T) {
	// pad length 2, 5 bytes priority, fragment "hi", 2 padding bytes.
	payload := append([]byte{2}, make([]byte, 5)...)
	payload = append(payload, "hi"...)
	payload = append(payload, 0, 0)

	frag, err := ParseHeadersPayload(payload, FlagPadded|FlagPriority)
	if err != nil {
		t.Fatalf("ParseHeadersPayload() error = %v", err)
	}
	if string(frag) != "hi" {
		t.Errorf("fragment = %q; want hi", frag)
	}
}
