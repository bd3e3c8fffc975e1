package charclass

import "testing"

func TestIdentifierClasses(t *testing.T) {
	tests := []struct {
		r     rune
		start bool
		part  bool
	}{
		{'a', true, true},
		{'Z', true, true},
		{'$', true, true},
		{'_', true, true},
		{'0', false, true},
		{'-', false, false},
		{'\u00E9', true, true},
		{'\u03BB', true, true},
		{'\u0301', false, true}, // combining acute accent
		{ZWNJ, false, true},
		{ZWJ, false, true},
		{'\u0663', false, true}, // arabic-indic digit three
		{' ', false, false},
	}

	for _, tt := range tests {
		if got := IsIDStart(tt.r); got != tt.start {
			t.Errorf("IsIDStart(%U) = %v, want %v", tt.r, got, tt.start)
		}
		if got := IsIDPart(tt.r); got != tt.part {
			t.Errorf("IsIDPart(%U) = %v, want %v", tt.r, got, tt.part)
		}
	}
}

func TestWhiteSpaceAndTerminators(t *testing.T) {
	for _, r := range []rune{' ', '\t', '\v', '\f', NBSP, BOM, '\u2003'} {
		if !IsWhiteSpace(r) {
			t.Errorf("IsWhiteSpace(%U) = false", r)
		}
		if IsLineTerminator(r) {
			t.Errorf("IsLineTerminator(%U) = true", r)
		}
	}
	for _, r := range []rune{'\n', '\r', LS, PS} {
		if !IsLineTerminator(r) {
			t.Errorf("IsLineTerminator(%U) = false", r)
		}
		if IsWhiteSpace(r) {
			t.Errorf("IsWhiteSpace(%U) = true", r)
		}
	}
}

func TestHexValue(t *testing.T) {
	tests := map[rune]int{'0': 0, '9': 9, 'a': 10, 'F': 15, 'g': -1, 'x': -1}
	for r, want := range tests {
		if got := HexValue(r); got != want {
			t.Errorf("HexValue(%q) = %d, want %d", r, got, want)
		}
	}
}

func TestSurrogates(t *testing.T) {
	if !IsHighSurrogate(0xD83D) || IsLowSurrogate(0xD83D) {
		t.Error("0xD83D should be a high surrogate")
	}
	if !IsLowSurrogate(0xDE00) || IsHighSurrogate(0xDE00) {
		t.Error("0xDE00 should be a low surrogate")
	}
	if got := CombineSurrogates(0xD83D, 0xDE00); got != 0x1F600 {
		t.Errorf("CombineSurrogates = %U, want U+1F600", got)
	}
}
