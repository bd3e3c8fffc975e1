package charclass

import (
	"strings"
	"unicode/utf8"
)

// AppendCESU8 appends r in the internal encoding: UTF-8 for the basic
// multilingual plane, and two three-byte surrogate sequences for
// supplementary characters. Lone surrogates encode as three bytes.
func AppendCESU8(b []byte, r rune) []byte {
	switch {
	case r < 0x80:
		return append(b, byte(r))
	case r < 0x800:
		return append(b, 0xC0|byte(r>>6), 0x80|byte(r)&0x3F)
	case r < 0x10000:
		return append(b, 0xE0|byte(r>>12), 0x80|byte(r>>6)&0x3F, 0x80|byte(r)&0x3F)
	}
	r -= 0x10000
	b = AppendCESU8(b, MinSurrogate+(r>>10))
	return AppendCESU8(b, MinLowSurrogate+(r&0x3FF))
}

// CESU8Len returns the encoded size of r.
func CESU8Len(r rune) int {
	switch {
	case r < 0x80:
		return 1
	case r < 0x800:
		return 2
	case r < 0x10000:
		return 3
	}
	return 6
}

// DecodeChar decodes one character of source text. It accepts UTF-8 and
// three-byte surrogate sequences. size is zero when s is empty; r is
// utf8.RuneError with size 1 for invalid input.
func DecodeChar(s string) (r rune, size int) {
	if len(s) == 0 {
		return utf8.RuneError, 0
	}
	if s[0] < utf8.RuneSelf {
		return rune(s[0]), 1
	}
	r, size = utf8.DecodeRuneInString(s)
	if r != utf8.RuneError || size != 1 {
		return r, size
	}
	// ED A0..BF xx encodes a surrogate half.
	if len(s) >= 3 && s[0] == 0xED && s[1] >= 0xA0 && s[1] <= 0xBF && s[2]&0xC0 == 0x80 {
		return 0xD000 | rune(s[1]&0x3F)<<6 | rune(s[2]&0x3F), 3
	}
	return utf8.RuneError, 1
}

// CESU8ToUTF8 converts internally encoded text to standard UTF-8,
// joining surrogate pairs. Lone surrogates become U+FFFD.
func CESU8ToUTF8(s string) string {
	if !strings.Contains(s, "\xED") {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for len(s) > 0 {
		r, n := DecodeChar(s)
		s = s[n:]
		if IsHighSurrogate(r) {
			if lo, m := DecodeChar(s); IsLowSurrogate(lo) {
				r = CombineSurrogates(r, lo)
				s = s[m:]
			}
		}
		if IsSurrogate(r) {
			r = utf8.RuneError
		}
		b.WriteRune(r)
	}
	return b.String()
}

// UTF8ToCESU8 converts standard UTF-8 to the internal encoding.
func UTF8ToCESU8(s string) string {
	out := make([]byte, 0, len(s)+len(s)/2)
	for _, r := range s {
		out = AppendCESU8(out, r)
	}
	return string(out)
}
