package hpack

import "fmt"

// ErrIntegerOverflow is returned when a decoded integer exceeds the 32-bit
// representable range (§4.G integer coding: "returns -1 on 32-bit
// truncation exceeded").
var ErrIntegerOverflow = fmt.Errorf("hpack: integer overflow")

// appendInteger encodes v with an n-bit prefix (RFC 7541 §5.1): values that
// fit in the prefix are stored directly; otherwise the prefix is saturated
// and 7-bit continuation groups follow, little-endian, high bit = continue.
func appendInteger(dst []byte, prefixBits byte, prefixValue byte, v uint64) []byte {
	max := uint64(1)<<prefixBits - 1
	if v < max {
		return append(dst, prefixValue|byte(v))
	}
	dst = append(dst, prefixValue|byte(max))
	v -= max
	for v >= 128 {
		dst = append(dst, byte(v%128)+128)
		v /= 128
	}
	return append(dst, byte(v))
}

// readInteger decodes an n-bit-prefixed integer starting at src[0], whose
// low prefixBits bits hold the prefix value (high bits are the opcode,
// already matched by the caller). Returns the value and bytes consumed.
func readInteger(src []byte, prefixBits byte) (uint64, int, error) {
	if len(src) == 0 {
		return 0, 0, fmt.Errorf("hpack: empty integer")
	}
	max := uint64(1)<<prefixBits - 1
	v := uint64(src[0]) & max
	if v < max {
		return v, 1, nil
	}
	var m uint64
	i := 1
	for {
		if i >= len(src) {
			return 0, 0, fmt.Errorf("hpack: truncated integer")
		}
		b := src[i]
		v += uint64(b&0x7f) << m
		i++
		if v > (1<<63) {
			return 0, 0, ErrIntegerOverflow
		}
		if b&0x80 == 0 {
			break
		}
		m += 7
	}
	if v > 0xffffffff {
		return 0, 0, ErrIntegerOverflow
	}
	return v, i, nil
}

// appendString encodes s as an HPACK string literal (RFC 7541 §5.2): one
// byte of Huffman-flag + 7-bit-prefixed length, followed by the (optionally
// Huffman-coded) payload. The shorter of plain/Huffman encoding is chosen.
func appendString(dst []byte, s string) []byte {
	hlen := huffmanEncodedLen(s)
	if hlen < len(s) {
		dst = appendInteger(dst, 7, 0x80, uint64(hlen))
		dst = huffmanEncode(dst, s)
		return dst
	}
	dst = appendInteger(dst, 7, 0x00, uint64(len(s)))
	return append(dst, s...)
}

// readString decodes an HPACK string literal starting at src[0]. Returns
// the decoded value and bytes consumed, or an error on truncation or an
// illegal Huffman code (§4.G "on decode failure ... return nil").
func readString(src []byte) (string, int, error) {
	if len(src) == 0 {
		return "", 0, fmt.Errorf("hpack: empty string literal")
	}
	huff := src[0]&0x80 != 0
	length, n, err := readInteger(src, 7)
	if err != nil {
		return "", 0, err
	}
	total := n + int(length)
	if total > len(src) {
		return "", 0, fmt.Errorf("hpack: truncated string literal")
	}
	payload := src[n:total]
	if huff {
		s, err := huffmanDecode(payload)
		if err != nil {
			return "", 0, err
		}
		return s, total, nil
	}
	return string(payload), total, nil
}
