package compiler

import (
	"github.com/chazu/scriptc/pkg/charclass"
)

// ---------------------------------------------------------------------------
// String, template, number and regular expression literals
// ---------------------------------------------------------------------------

// sink collects decoded literal content. With write unset it only counts,
// which is how the first pass sizes the buffer for the second.
type sink struct {
	buf   []byte
	n     int
	write bool
}

func (s *sink) char(r rune) {
	s.n += charclass.CESU8Len(r)
	if s.write {
		s.buf = charclass.AppendCESU8(s.buf, r)
	}
}

// stringFlags reports what a string body contained.
type stringFlags struct {
	escaped bool
	octal   bool
	wide    bool // a raw supplementary character needs re-encoding
}

// scanString reads a quoted string literal. The body is walked twice when
// it needs decoding: once to validate and size, once to decode into an
// exactly sized buffer.
func (l *Lexer) scanString(start Position, quote byte) (Token, error) {
	l.advance(1)
	bodyState := l.State()

	var count sink
	flags, err := l.walkString(quote, &count)
	if err != nil {
		return Token{}, err
	}
	end := l.State()
	bodyEnd := l.pos
	l.advance(1) // closing quote

	tok := Token{
		Type:        TokenString,
		Pos:         start,
		End:         l.pos,
		Raw:         l.input[start.Offset:l.pos],
		Escaped:     flags.escaped,
		OctalEscape: flags.octal,
	}
	if count.n > l.limits.StringLength {
		return Token{}, l.errorf(ErrStringTooLong, start, "%d bytes", count.n)
	}

	if !flags.escaped && !flags.wide {
		tok.Value = l.input[start.Offset+1 : bodyEnd]
		return tok, nil
	}

	after := l.State()
	l.Restore(bodyState)
	out := sink{buf: make([]byte, 0, count.n), write: true}
	if _, err := l.walkString(quote, &out); err != nil {
		return Token{}, err
	}
	if l.pos != end.pos {
		return Token{}, l.errorf(ErrInternal, start, "string decode passes disagree")
	}
	l.Restore(after)
	tok.Value = string(out.buf)
	return tok, nil
}

// walkString consumes a string body up to, not including, the closing quote.
func (l *Lexer) walkString(quote byte, out *sink) (stringFlags, error) {
	var flags stringFlags
	for {
		if l.pos >= len(l.input) {
			return flags, l.errorf(ErrUnterminatedString, l.position(), "")
		}
		c := l.input[l.pos]
		switch {
		case c == quote:
			return flags, nil
		case c == '\\':
			flags.escaped = true
			octal, err := l.readEscape(out, false)
			if err != nil {
				return flags, err
			}
			flags.octal = flags.octal || octal
		case l.lineTerminatorSize() > 0:
			return flags, l.errorf(ErrNewlineInString, l.position(), "")
		case c < 0x80:
			out.char(rune(c))
			l.advance(1)
		default:
			r, size, err := l.char()
			if err != nil {
				return flags, err
			}
			if size == 4 {
				flags.wide = true
			}
			out.char(r)
			l.advance(size)
		}
	}
}

// readEscape consumes one escape sequence starting at the backslash. It
// reports whether the escape was a legacy octal form. Templates reject
// octal escapes outright.
func (l *Lexer) readEscape(out *sink, template bool) (bool, error) {
	escPos := l.position()
	l.advance(1)
	if l.pos >= len(l.input) {
		return false, l.errorf(ErrUnterminatedString, escPos, "")
	}
	if n := l.lineTerminatorSize(); n > 0 {
		l.newlineAt(n) // line continuation
		return false, nil
	}

	c := l.input[l.pos]
	switch c {
	case 'b':
		out.char('\b')
	case 't':
		out.char('\t')
	case 'n':
		out.char('\n')
	case 'v':
		out.char('\v')
	case 'f':
		out.char('\f')
	case 'r':
		out.char('\r')
	case 'x':
		l.advance(1)
		hi, lo := charclass.HexValue(rune(l.peek(0))), charclass.HexValue(rune(l.peek(1)))
		if hi < 0 || lo < 0 {
			return false, l.errorf(ErrInvalidHexEscape, escPos, "")
		}
		l.advance(1)
		l.advance(1)
		out.char(rune(hi<<4 | lo))
		return false, nil
	case 'u':
		l.advance(1)
		cp, err := l.readUnicodeEscape(escPos)
		if err != nil {
			return false, err
		}
		out.char(cp)
		return false, nil
	case '0', '1', '2', '3', '4', '5', '6', '7':
		if c == '0' && !charclass.IsDecimalDigit(rune(l.peek(1))) {
			out.char(0)
			break
		}
		if template {
			return false, l.errorf(ErrInvalidEscape, escPos, "octal escape in template")
		}
		if l.strict {
			return false, l.errorf(ErrStrictOctalEscape, escPos, "")
		}
		v := rune(c - '0')
		l.advance(1)
		maxDigits := 2
		if c <= '3' {
			maxDigits = 3
		}
		for i := 1; i < maxDigits && charclass.IsOctalDigit(rune(l.peek(0))); i++ {
			v = v*8 + rune(l.peek(0)-'0')
			l.advance(1)
		}
		out.char(v)
		return true, nil
	case '8', '9':
		if template {
			return false, l.errorf(ErrInvalidEscape, escPos, "\\%c in template", c)
		}
		if l.strict {
			return false, l.errorf(ErrStrictOctalEscape, escPos, "")
		}
		out.char(rune(c))
		l.advance(1)
		return true, nil
	default:
		if c >= 0x80 {
			r, size, err := l.char()
			if err != nil {
				return false, err
			}
			out.char(r)
			l.advance(size)
			return false, nil
		}
		out.char(rune(c))
	}
	l.advance(1)
	return false, nil
}

// scanTemplate reads template characters after a backtick or the closing
// brace of a substitution, up to the next backtick (end) or "${" (more).
// The cooked value normalizes CR and CR LF to LF.
func (l *Lexer) scanTemplate(start Position, end, more TokenType) (Token, error) {
	out := sink{write: true}
	for {
		if l.pos >= len(l.input) {
			return Token{}, l.errorf(ErrUnterminatedTemplate, start, "")
		}
		c := l.input[l.pos]
		switch {
		case c == '`':
			l.advance(1)
			return l.templateToken(start, end, out.buf), nil
		case c == '$' && l.peek(1) == '{':
			l.advance(1)
			l.advance(1)
			return l.templateToken(start, more, out.buf), nil
		case c == '\\':
			if _, err := l.readEscape(&out, true); err != nil {
				return Token{}, err
			}
		case l.lineTerminatorSize() > 0:
			n := l.lineTerminatorSize()
			if c == '\r' {
				out.char('\n')
			} else {
				r, _ := charclass.DecodeChar(l.input[l.pos:])
				out.char(r)
			}
			l.newlineAt(n)
		case c < 0x80:
			out.char(rune(c))
			l.advance(1)
		default:
			r, size, err := l.char()
			if err != nil {
				return Token{}, err
			}
			out.char(r)
			l.advance(size)
		}
		if out.n > l.limits.StringLength {
			return Token{}, l.errorf(ErrStringTooLong, start, "")
		}
	}
}

func (l *Lexer) templateToken(start Position, typ TokenType, cooked []byte) Token {
	return Token{
		Type:  typ,
		Pos:   start,
		End:   l.pos,
		Raw:   l.input[start.Offset:l.pos],
		Value: string(cooked),
	}
}

// ContinueTemplate reads the template part that follows a substitution.
// rbrace is the closing brace token of the substitution, just consumed.
func (l *Lexer) ContinueTemplate(rbrace Token) (Token, error) {
	if rbrace.Type != TokenRBrace {
		return Token{}, l.errorf(ErrExpectedToken, rbrace.Pos, "} to close template substitution")
	}
	l.Seek(rbrace.Pos, TokenTemplateMiddle)
	l.advance(1)
	tok, err := l.scanTemplate(rbrace.Pos, TokenTemplateTail, TokenTemplateMiddle)
	if err != nil {
		return Token{}, err
	}
	tok.NewlineBefore = rbrace.NewlineBefore
	l.prev = tok.Type
	return tok, nil
}

// scanNumber reads a numeric literal.
func (l *Lexer) scanNumber(start Position) (Token, error) {
	form := NumberDecimal
	c := l.input[l.pos]

	digits := func(valid func(rune) bool) int {
		n := 0
		for l.pos < len(l.input) && valid(rune(l.input[l.pos])) {
			l.advance(1)
			n++
		}
		return n
	}

	if c == '0' {
		switch next := l.peek(1) | 0x20; {
		case next == 'x':
			form = NumberHex
		case next == 'o':
			form = NumberOctal
		case next == 'b':
			form = NumberBinary
		case charclass.IsDecimalDigit(rune(l.peek(1))):
			form = NumberLegacyOctal
		}
	}

	switch form {
	case NumberHex, NumberOctal, NumberBinary:
		l.advance(1)
		l.advance(1)
		valid := charclass.IsHexDigit
		if form == NumberOctal {
			valid = charclass.IsOctalDigit
		} else if form == NumberBinary {
			valid = charclass.IsBinaryDigit
		}
		if digits(valid) == 0 {
			return Token{}, l.errorf(ErrMissingDigits, start, "")
		}
	case NumberLegacyOctal:
		l.advance(1)
		digits(charclass.IsOctalDigit)
		if charclass.IsDecimalDigit(rune(l.peek(0))) {
			form = NumberLeadingZero
			digits(charclass.IsDecimalDigit)
		}
		if l.strict {
			return Token{}, l.errorf(ErrStrictOctal, start, "")
		}
	}

	if form == NumberDecimal || form == NumberLeadingZero {
		digits(charclass.IsDecimalDigit)
		if l.peek(0) == '.' {
			l.advance(1)
			digits(charclass.IsDecimalDigit)
		}
		if e := l.peek(0); e == 'e' || e == 'E' {
			expPos := l.position()
			l.advance(1)
			if s := l.peek(0); s == '+' || s == '-' {
				l.advance(1)
			}
			if digits(charclass.IsDecimalDigit) == 0 {
				return Token{}, l.errorf(ErrMissingExponent, expPos, "")
			}
		}
	}

	if l.pos < len(l.input) {
		r, _ := charclass.DecodeChar(l.input[l.pos:])
		if charclass.IsIDStart(r) || charclass.IsDecimalDigit(r) || r == '\\' {
			return Token{}, l.errorf(ErrIdentifierAfterNumber, l.position(), "")
		}
	}

	raw := l.input[start.Offset:l.pos]
	if len(raw) > l.limits.NumberLength {
		return Token{}, l.errorf(ErrNumberTooLong, start, "%d characters", len(raw))
	}
	return Token{Type: TokenNumber, Pos: start, End: l.pos, Raw: raw, Value: raw, Number: form}, nil
}

// scanRegexp reads a regular expression literal starting at the slash.
func (l *Lexer) scanRegexp(start Position) (Token, error) {
	l.advance(1)
	inClass := false
	for {
		if l.pos >= len(l.input) || l.lineTerminatorSize() > 0 {
			return Token{}, l.errorf(ErrUnterminatedRegexp, start, "")
		}
		c := l.input[l.pos]
		if c == '/' && !inClass {
			break
		}
		switch c {
		case '\\':
			l.advance(1)
			if l.pos >= len(l.input) || l.lineTerminatorSize() > 0 {
				return Token{}, l.errorf(ErrUnterminatedRegexp, start, "")
			}
		case '[':
			inClass = true
		case ']':
			inClass = false
		}
		_, size, err := l.char()
		if err != nil {
			return Token{}, err
		}
		l.advance(size)
	}
	pattern := l.input[start.Offset+1 : l.pos]
	l.advance(1)

	flagStart := l.pos
	for l.pos < len(l.input) {
		r, size := charclass.DecodeChar(l.input[l.pos:])
		if r == '\\' {
			return Token{}, l.errorf(ErrInvalidIdentifierEscape, l.position(), "escape in regular expression flags")
		}
		if !charclass.IsIDPart(r) {
			break
		}
		l.advance(size)
	}
	return Token{
		Type:  TokenRegexp,
		Pos:   start,
		End:   l.pos,
		Raw:   l.input[start.Offset:l.pos],
		Value: pattern,
		Flags: l.input[flagStart:l.pos],
	}, nil
}

// RescanRegexp re-reads a slash or slash-assign token as a regular
// expression. The parser calls it where an operand is expected.
func (l *Lexer) RescanRegexp(slash Token) (Token, error) {
	l.Seek(slash.Pos, TokenEOF)
	tok, err := l.scanRegexp(slash.Pos)
	if err != nil {
		return Token{}, err
	}
	tok.NewlineBefore = slash.NewlineBefore
	l.prev = tok.Type
	return tok, nil
}
