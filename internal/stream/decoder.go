package stream

import (
	"strings"
	"unicode/utf8"
)

// utf8Decoder turns a byte stream into text without splitting a multi-byte
// sequence across calls. An incomplete trailing sequence is carried into the
// next call; each invalid byte becomes one U+FFFD.
type utf8Decoder struct {
	carry []byte
}

func (d *utf8Decoder) decode(p []byte) string {
	buf := make([]byte, 0, len(d.carry)+len(p))
	buf = append(buf, d.carry...)
	buf = append(buf, p...)

	cut := incompleteTail(buf)
	d.carry = append(d.carry[:0], buf[cut:]...)
	return replaceInvalid(buf[:cut])
}

func replaceInvalid(b []byte) string {
	if utf8.Valid(b) {
		return string(b)
	}
	var sb strings.Builder
	sb.Grow(len(b) + 2*utf8.UTFMax)
	for len(b) > 0 {
		r, size := utf8.DecodeRune(b)
		sb.WriteRune(r)
		b = b[size:]
	}
	return sb.String()
}

// incompleteTail returns the offset of a trailing, not yet complete UTF-8
// sequence, or len(b) when the buffer ends on a boundary.
func incompleteTail(b []byte) int {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if utf8.FullRune(b[i:]) {
			return len(b)
		}
		return i
	}
	return len(b)
}
