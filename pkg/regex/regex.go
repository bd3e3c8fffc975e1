// Package regex validates and compiles regular expression literals.
//
// Patterns are compiled with regexp2 in ECMAScript mode. Flags that
// regexp2 cannot express in that mode (g, s, u, y) are validated here and
// carried on the Program for the engine to honor at match time.
package regex

import (
	"fmt"
	"strings"

	"github.com/dlclark/regexp2"
)

// Flag is one regular expression flag character.
type Flag uint8

const (
	FlagGlobal Flag = 1 << iota
	FlagIgnoreCase
	FlagMultiline
	FlagDotAll
	FlagUnicode
	FlagSticky
)

var flagChars = map[byte]Flag{
	'g': FlagGlobal,
	'i': FlagIgnoreCase,
	'm': FlagMultiline,
	's': FlagDotAll,
	'u': FlagUnicode,
	'y': FlagSticky,
}

// Error reports an invalid pattern or flag string.
type Error struct {
	Pattern string
	Flags   string
	Reason  string
}

func (e *Error) Error() string {
	return fmt.Sprintf("invalid regular expression /%s/%s: %s", e.Pattern, e.Flags, e.Reason)
}

// Program is a compiled regular expression literal.
type Program struct {
	Pattern string
	Flags   Flag
	re      *regexp2.Regexp
}

// ParseFlags validates a flag string. Each flag may appear once.
func ParseFlags(flags string) (Flag, error) {
	var out Flag
	for i := 0; i < len(flags); i++ {
		f, ok := flagChars[flags[i]]
		if !ok {
			return 0, fmt.Errorf("unknown flag %q", flags[i])
		}
		if out&f != 0 {
			return 0, fmt.Errorf("duplicate flag %q", flags[i])
		}
		out |= f
	}
	return out, nil
}

// Compile validates pattern and flags and returns the program.
func Compile(pattern, flags string) (*Program, error) {
	f, err := ParseFlags(flags)
	if err != nil {
		return nil, &Error{Pattern: pattern, Flags: flags, Reason: err.Error()}
	}

	opts := regexp2.RegexOptions(regexp2.ECMAScript)
	if f&FlagIgnoreCase != 0 {
		opts |= regexp2.IgnoreCase
	}
	if f&FlagMultiline != 0 {
		opts |= regexp2.Multiline
	}
	re, err := regexp2.Compile(pattern, opts)
	if err != nil {
		return nil, &Error{Pattern: pattern, Flags: flags, Reason: err.Error()}
	}
	return &Program{Pattern: pattern, Flags: f, re: re}, nil
}

// FlagString renders the flags in canonical order.
func (p *Program) FlagString() string {
	var b strings.Builder
	for _, c := range []byte("gimsuy") {
		if p.Flags&flagChars[c] != 0 {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// MatchString reports whether s contains a match. Used by tooling and tests.
func (p *Program) MatchString(s string) (bool, error) {
	return p.re.MatchString(s)
}

// Compiler adapts Compile to the compiler's regexp collaborator interface.
type Compiler struct{}

// CompileRegexp compiles a literal for the script compiler.
func (Compiler) CompileRegexp(pattern, flags string) (any, error) {
	return Compile(pattern, flags)
}
