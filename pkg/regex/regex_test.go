package regex

import (
	"errors"
	"testing"
)

func TestCompileValid(t *testing.T) {
	tests := []struct {
		pattern string
		flags   string
		input   string
		match   bool
	}{
		{"ab+c", "", "xabbbc", true},
		{"^abc$", "m", "x\nabc\ny", true},
		{"ABC", "i", "abc", true},
		{"^abc$", "im", "x\nABC\ny", true},
		{"^abc$", "", "x\nabc\ny", false},
		{"[a-z]+", "g", "123", false},
		{"\\d{3}", "", "a123", true},
	}

	for _, tt := range tests {
		p, err := Compile(tt.pattern, tt.flags)
		if err != nil {
			t.Fatalf("Compile(%q, %q): %v", tt.pattern, tt.flags, err)
		}
		got, err := p.MatchString(tt.input)
		if err != nil {
			t.Fatalf("MatchString: %v", err)
		}
		if got != tt.match {
			t.Errorf("/%s/%s on %q = %v, want %v", tt.pattern, tt.flags, tt.input, got, tt.match)
		}
	}
}

func TestCompileInvalid(t *testing.T) {
	tests := []struct {
		pattern string
		flags   string
	}{
		{"(abc", ""},
		{"a", "gg"},
		{"a", "x"},
		{"[b-a]", ""},
	}

	for _, tt := range tests {
		_, err := Compile(tt.pattern, tt.flags)
		var re *Error
		if !errors.As(err, &re) {
			t.Errorf("Compile(%q, %q) error = %v, want *Error", tt.pattern, tt.flags, err)
		}
	}
}

func TestFlagString(t *testing.T) {
	p, err := Compile("x", "ymgi")
	if err != nil {
		t.Fatal(err)
	}
	if got := p.FlagString(); got != "gimy" {
		t.Errorf("FlagString = %q, want gimy", got)
	}
}

func TestCompilerAdapter(t *testing.T) {
	v, err := Compiler{}.CompileRegexp("a|b", "u")
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := v.(*Program); !ok || p.Flags != FlagUnicode {
		t.Errorf("CompileRegexp returned %#v", v)
	}
}
