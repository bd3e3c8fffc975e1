// Package charclass classifies code points for the script lexer.
//
// The predicates follow the ECMAScript source text rules: identifier
// start and part characters, white space and line terminators. Digit
// helpers work on ASCII only.
package charclass

import "unicode"

const (
	// ZWNJ and ZWJ are permitted inside identifiers.
	ZWNJ = '\u200C'
	ZWJ  = '\u200D'

	// LS and PS are the Unicode line and paragraph separators.
	LS = '\u2028'
	PS = '\u2029'

	// BOM is the byte order mark, treated as white space.
	BOM = '\uFEFF'

	NBSP = '\u00A0'
)

// Surrogate range bounds.
const (
	MinSurrogate    = 0xD800
	MinLowSurrogate = 0xDC00
	MaxSurrogate    = 0xDFFF
)

// IsIDStart reports whether r may begin an identifier.
func IsIDStart(r rune) bool {
	if r < 0x80 {
		return r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r == '$' || r == '_'
	}
	return unicode.In(r, unicode.L, unicode.Nl, unicode.Other_ID_Start)
}

// IsIDPart reports whether r may continue an identifier.
func IsIDPart(r rune) bool {
	if r < 0x80 {
		return IsIDStart(r) || IsDecimalDigit(r)
	}
	if r == ZWNJ || r == ZWJ {
		return true
	}
	return unicode.In(r, unicode.L, unicode.Nl, unicode.Other_ID_Start,
		unicode.Mn, unicode.Mc, unicode.Nd, unicode.Pc, unicode.Other_ID_Continue)
}

// IsWhiteSpace reports whether r is white space that is not a line terminator.
func IsWhiteSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\v', '\f', NBSP, BOM:
		return true
	}
	return r >= 0x80 && unicode.Is(unicode.Zs, r)
}

// IsLineTerminator reports whether r ends a source line.
func IsLineTerminator(r rune) bool {
	return r == '\n' || r == '\r' || r == LS || r == PS
}

func IsDecimalDigit(r rune) bool { return r >= '0' && r <= '9' }

func IsOctalDigit(r rune) bool { return r >= '0' && r <= '7' }

func IsBinaryDigit(r rune) bool { return r == '0' || r == '1' }

func IsHexDigit(r rune) bool {
	return IsDecimalDigit(r) || r >= 'a' && r <= 'f' || r >= 'A' && r <= 'F'
}

// HexValue returns the value of a hex digit, or -1.
func HexValue(r rune) int {
	switch {
	case r >= '0' && r <= '9':
		return int(r - '0')
	case r >= 'a' && r <= 'f':
		return int(r-'a') + 10
	case r >= 'A' && r <= 'F':
		return int(r-'A') + 10
	}
	return -1
}

// IsSurrogate reports whether r lies in the UTF-16 surrogate range.
func IsSurrogate(r rune) bool { return r >= MinSurrogate && r <= MaxSurrogate }

// IsHighSurrogate reports whether r is a leading surrogate.
func IsHighSurrogate(r rune) bool { return r >= MinSurrogate && r < MinLowSurrogate }

// IsLowSurrogate reports whether r is a trailing surrogate.
func IsLowSurrogate(r rune) bool { return r >= MinLowSurrogate && r <= MaxSurrogate }

// CombineSurrogates joins a surrogate pair into one supplementary code point.
func CombineSurrogates(hi, lo rune) rune {
	return 0x10000 + (hi-MinSurrogate)<<10 + (lo - MinLowSurrogate)
}
