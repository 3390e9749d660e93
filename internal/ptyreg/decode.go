package ptyreg

import "unicode/utf8"

// utf8Decoder incrementally decodes a byte stream into valid UTF-8 text,
// holding back an incomplete trailing multi-byte sequence across Feed
// calls rather than splitting it (spec.md §4.E).
type utf8Decoder struct {
	carry []byte
}

// Feed consumes chunk and returns the decoded text ready to emit. Any
// trailing bytes that look like the start of a multi-byte rune but are
// not yet complete are retained in the decoder for the next call. A
// genuinely invalid byte is dropped from the output and consumed (never
// re-buffered forever).
func (d *utf8Decoder) Feed(chunk []byte) string {
	buf := append(d.carry, chunk...)
	d.carry = nil

	var out []byte
	i := 0
	for i < len(buf) {
		r, size := utf8.DecodeRune(buf[i:])
		if r == utf8.RuneError && size <= 1 {
			if isIncompleteSuffix(buf[i:]) {
				d.carry = append(d.carry, buf[i:]...)
				break
			}
			// Genuinely invalid byte: drop one byte and continue, per
			// spec.md §4.E ("invalid sequences drop the minimum number
			// of bytes and continue").
			i++
			continue
		}
		out = append(out, buf[i:i+size]...)
		i += size
	}
	return string(out)
}

// isIncompleteSuffix reports whether b looks like the truncated prefix of
// a multi-byte UTF-8 sequence that a subsequent read could complete,
// rather than outright invalid encoding.
func isIncompleteSuffix(b []byte) bool {
	if len(b) == 0 || len(b) >= utf8.UTFMax {
		return false
	}
	first := b[0]
	var want int
	switch {
	case first&0xE0 == 0xC0:
		want = 2
	case first&0xF0 == 0xE0:
		want = 3
	case first&0xF8 == 0xF0:
		want = 4
	default:
		return false
	}
	if len(b) >= want {
		return false
	}
	for _, c := range b[1:] {
		if c&0xC0 != 0x80 {
			return false
		}
	}
	return true
}
