package compiler

import (
	"github.com/chazu/scriptc/pkg/charclass"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for script source
// ---------------------------------------------------------------------------

// Lexer tokenizes script source on demand. Whether a slash starts a
// regular expression is decided from the previous token; the parser can
// override that with RescanRegexp where it expects an operand.
type Lexer struct {
	input   string
	pos     int // offset of the next unread byte
	line    int // current line (1-based)
	col     int // current column (1-based)
	prev    TokenType
	newline bool // a line terminator was skipped before the current token
	strict  bool
	limits  Limits
}

// LexerState is a saved cursor that Restore can return to.
type LexerState struct {
	pos, line, col int
	prev           TokenType
	strict         bool
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string, limits Limits) *Lexer {
	return &Lexer{
		input:  input,
		line:   1,
		col:    1,
		prev:   TokenEOF,
		limits: limits.WithDefaults(),
	}
}

// SetStrict switches strict mode lexing on or off.
func (l *Lexer) SetStrict(strict bool) { l.strict = strict }

// State returns the current cursor.
func (l *Lexer) State() LexerState {
	return LexerState{pos: l.pos, line: l.line, col: l.col, prev: l.prev, strict: l.strict}
}

// Restore moves the cursor back to a saved state.
func (l *Lexer) Restore(s LexerState) {
	l.pos, l.line, l.col, l.prev, l.strict = s.pos, s.line, s.col, s.prev, s.strict
}

// Seek moves the cursor to pos. prev stands in for the token before pos
// when deciding how a slash is read.
func (l *Lexer) Seek(pos Position, prev TokenType) {
	l.pos, l.line, l.col, l.prev = pos.Offset, pos.Line, pos.Column, prev
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{Offset: l.pos, Line: l.line, Column: l.col}
}

func (l *Lexer) errorf(code ErrorCode, pos Position, format string, args ...any) *Error {
	return newError(code, pos, format, args...)
}

// peek returns the byte n positions ahead, or 0 past the end.
func (l *Lexer) peek(n int) byte {
	if l.pos+n < len(l.input) {
		return l.input[l.pos+n]
	}
	return 0
}

// char decodes the character at the cursor.
func (l *Lexer) char() (rune, int, error) {
	r, size := charclass.DecodeChar(l.input[l.pos:])
	if r == 0xFFFD && size == 1 {
		return 0, 0, l.errorf(ErrInvalidEncoding, l.position(), "byte 0x%02X", l.input[l.pos])
	}
	return r, size, nil
}

// advance consumes size bytes forming one character on the current line.
func (l *Lexer) advance(size int) {
	l.pos += size
	l.col++
}

// newlineAt consumes a line terminator of size bytes.
func (l *Lexer) newlineAt(size int) {
	l.pos += size
	l.line++
	l.col = 1
}

// lineTerminatorSize returns the byte size of a line terminator at the
// cursor, treating CR LF as one terminator, or 0 if there is none.
func (l *Lexer) lineTerminatorSize() int {
	switch c := l.peek(0); {
	case c == '\n':
		return 1
	case c == '\r':
		if l.peek(1) == '\n' {
			return 2
		}
		return 1
	case c == 0xE2 && l.peek(1) == 0x80 && (l.peek(2) == 0xA8 || l.peek(2) == 0xA9):
		return 3
	}
	return 0
}

// skipTrivia skips white space, line terminators and comments.
func (l *Lexer) skipTrivia() error {
	for l.pos < len(l.input) {
		c := l.input[l.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\v' || c == '\f':
			l.advance(1)
		case c == '\n' || c == '\r':
			l.newline = true
			l.newlineAt(l.lineTerminatorSize())
		case c == '/' && l.peek(1) == '/':
			l.skipLineComment()
		case c == '/' && l.peek(1) == '*':
			if err := l.skipBlockComment(); err != nil {
				return err
			}
		case c >= 0x80:
			r, size, err := l.char()
			if err != nil {
				return err
			}
			switch {
			case r == charclass.LS || r == charclass.PS:
				l.newline = true
				l.newlineAt(size)
			case charclass.IsWhiteSpace(r):
				l.advance(size)
			default:
				return nil
			}
		default:
			return nil
		}
	}
	return nil
}

func (l *Lexer) skipLineComment() {
	for l.pos < len(l.input) && l.lineTerminatorSize() == 0 {
		_, size := charclass.DecodeChar(l.input[l.pos:])
		l.advance(size)
	}
}

func (l *Lexer) skipBlockComment() error {
	start := l.position()
	l.advance(1)
	l.advance(1)
	for l.pos < len(l.input) {
		if l.input[l.pos] == '*' && l.peek(1) == '/' {
			l.advance(1)
			l.advance(1)
			return nil
		}
		if n := l.lineTerminatorSize(); n > 0 {
			l.newline = true
			l.newlineAt(n)
			continue
		}
		_, size := charclass.DecodeChar(l.input[l.pos:])
		l.advance(size)
	}
	return l.errorf(ErrUnterminatedComment, start, "")
}

// regexpAllowed reports whether a slash after prev starts a regular
// expression rather than a division.
func regexpAllowed(prev TokenType) bool {
	switch prev {
	case TokenIdentifier, TokenNumber, TokenString, TokenRegexp, TokenTemplate, TokenTemplateTail,
		TokenRParen, TokenRBracket, TokenRBrace, TokenThis, TokenNull, TokenTrue, TokenFalse,
		TokenSuper, TokenIncrement, TokenDecrement:
		return false
	}
	return true
}

// Next returns the next token.
func (l *Lexer) Next() (Token, error) {
	l.newline = false
	if err := l.skipTrivia(); err != nil {
		return Token{}, err
	}
	tok, err := l.scan()
	if err != nil {
		return Token{}, err
	}
	tok.NewlineBefore = l.newline
	l.prev = tok.Type
	return tok, nil
}

func (l *Lexer) scan() (Token, error) {
	start := l.position()
	if l.pos >= len(l.input) {
		return Token{Type: TokenEOF, Pos: start, End: l.pos}, nil
	}

	c := l.input[l.pos]
	switch {
	case c == '\\' || c < 0x80 && charclass.IsIDStart(rune(c)):
		return l.scanIdentifier(start)
	case c >= 0x80:
		r, _, err := l.char()
		if err != nil {
			return Token{}, err
		}
		if charclass.IsIDStart(r) {
			return l.scanIdentifier(start)
		}
		return Token{}, l.errorf(ErrInvalidCharacter, start, "%U", r)
	case charclass.IsDecimalDigit(rune(c)):
		return l.scanNumber(start)
	case c == '.' && charclass.IsDecimalDigit(rune(l.peek(1))):
		return l.scanNumber(start)
	case c == '"' || c == '\'':
		return l.scanString(start, c)
	case c == '`':
		l.advance(1)
		return l.scanTemplate(start, TokenTemplate, TokenTemplateHead)
	case c == '/' && regexpAllowed(l.prev):
		return l.scanRegexp(start)
	}
	return l.scanPunctuator(start)
}

// punctuators maps operator spellings to token types, longest first per
// leading byte.
var punctuators = map[byte][]struct {
	text string
	typ  TokenType
}{
	'{': {{"{", TokenLBrace}},
	'}': {{"}", TokenRBrace}},
	'(': {{"(", TokenLParen}},
	')': {{")", TokenRParen}},
	'[': {{"[", TokenLBracket}},
	']': {{"]", TokenRBracket}},
	'.': {{".", TokenDot}},
	';': {{";", TokenSemicolon}},
	',': {{",", TokenComma}},
	':': {{":", TokenColon}},
	'?': {{"?", TokenQuestion}},
	'~': {{"~", TokenTilde}},
	'<': {{"<<=", TokenShlAssign}, {"<<", TokenShl}, {"<=", TokenLessEqual}, {"<", TokenLess}},
	'>': {{">>>=", TokenUshrAssign}, {">>>", TokenUshr}, {">>=", TokenShrAssign}, {">>", TokenShr}, {">=", TokenGreaterEqual}, {">", TokenGreater}},
	'=': {{"===", TokenStrictEqual}, {"==", TokenEqual}, {"=>", TokenArrow}, {"=", TokenAssign}},
	'!': {{"!==", TokenStrictNotEqual}, {"!=", TokenNotEqual}, {"!", TokenBang}},
	'+': {{"++", TokenIncrement}, {"+=", TokenPlusAssign}, {"+", TokenPlus}},
	'-': {{"--", TokenDecrement}, {"-=", TokenMinusAssign}, {"-", TokenMinus}},
	'*': {{"*=", TokenStarAssign}, {"*", TokenStar}},
	'/': {{"/=", TokenSlashAssign}, {"/", TokenSlash}},
	'%': {{"%=", TokenPercentAssign}, {"%", TokenPercent}},
	'&': {{"&&", TokenAnd}, {"&=", TokenAmpAssign}, {"&", TokenAmp}},
	'|': {{"||", TokenOr}, {"|=", TokenPipeAssign}, {"|", TokenPipe}},
	'^': {{"^=", TokenCaretAssign}, {"^", TokenCaret}},
}

func (l *Lexer) scanPunctuator(start Position) (Token, error) {
	rest := l.input[l.pos:]
	for _, p := range punctuators[rest[0]] {
		if len(rest) >= len(p.text) && rest[:len(p.text)] == p.text {
			l.pos += len(p.text)
			l.col += len(p.text)
			return Token{Type: p.typ, Pos: start, End: l.pos, Raw: p.text}, nil
		}
	}
	r, _ := charclass.DecodeChar(rest)
	return Token{}, l.errorf(ErrInvalidCharacter, start, "%q", r)
}

// scanIdentifier reads an identifier or keyword. Escaped identifiers are
// never keywords.
func (l *Lexer) scanIdentifier(start Position) (Token, error) {
	var buf []byte
	escaped, decoded := false, false
	first := true
	for l.pos < len(l.input) {
		var r rune
		var size int
		if l.input[l.pos] == '\\' {
			escPos := l.position()
			if l.peek(1) != 'u' {
				return Token{}, l.errorf(ErrInvalidIdentifierEscape, escPos, "")
			}
			l.advance(1)
			l.advance(1)
			cp, err := l.readUnicodeEscape(escPos)
			if err != nil {
				return Token{}, err
			}
			if first && !charclass.IsIDStart(cp) || !first && !charclass.IsIDPart(cp) {
				return Token{}, l.errorf(ErrInvalidIdentifierEscape, escPos, "%U cannot appear in an identifier", cp)
			}
			if !decoded {
				buf = append(buf, l.input[start.Offset:escPos.Offset]...)
				decoded = true
			}
			escaped = true
			buf = charclass.AppendCESU8(buf, cp)
			first = false
			continue
		}
		if c := l.input[l.pos]; c < 0x80 {
			r, size = rune(c), 1
		} else {
			var err error
			if r, size, err = l.char(); err != nil {
				return Token{}, err
			}
		}
		if first && !charclass.IsIDStart(r) || !first && !charclass.IsIDPart(r) {
			break
		}
		if size == 4 && !decoded {
			buf = append(buf, l.input[start.Offset:l.pos]...)
			decoded = true
		}
		if decoded {
			buf = charclass.AppendCESU8(buf, r)
		}
		l.advance(size)
		first = false
	}

	tok := Token{Type: TokenIdentifier, Pos: start, End: l.pos, Raw: l.input[start.Offset:l.pos], Escaped: escaped}
	if decoded {
		tok.Value = string(buf)
	} else {
		tok.Value = tok.Raw
	}
	if len(tok.Value) > l.limits.IdentLength {
		return Token{}, l.errorf(ErrIdentifierTooLong, start, "%d bytes", len(tok.Value))
	}
	if !escaped {
		if kw, ok := lookupKeyword(tok.Value); ok {
			tok.Type = kw
		}
	}
	return tok, nil
}

// readUnicodeEscape reads the part of \uXXXX or \u{X...} after the "\u".
func (l *Lexer) readUnicodeEscape(escPos Position) (rune, error) {
	if l.peek(0) == '{' {
		l.advance(1)
		var cp rune
		digits := 0
		for l.pos < len(l.input) && l.input[l.pos] != '}' {
			v := charclass.HexValue(rune(l.input[l.pos]))
			if v < 0 {
				return 0, l.errorf(ErrInvalidUnicodeEscape, escPos, "")
			}
			cp = cp<<4 | rune(v)
			if cp > 0x10FFFF {
				return 0, l.errorf(ErrInvalidUnicodeEscape, escPos, "code point out of range")
			}
			digits++
			l.advance(1)
		}
		if l.pos >= len(l.input) || digits == 0 {
			return 0, l.errorf(ErrInvalidUnicodeEscape, escPos, "")
		}
		l.advance(1)
		return cp, nil
	}
	var cp rune
	for i := 0; i < 4; i++ {
		v := charclass.HexValue(rune(l.peek(0)))
		if v < 0 {
			return 0, l.errorf(ErrInvalidUnicodeEscape, escPos, "")
		}
		cp = cp<<4 | rune(v)
		l.advance(1)
	}
	return cp, nil
}

// Tokenize returns all tokens of input. Slashes are resolved from the
// previous token only.
func Tokenize(input string) ([]Token, error) {
	l := NewLexer(input, Limits{})
	var tokens []Token
	for {
		tok, err := l.Next()
		if err != nil {
			return tokens, err
		}
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF {
			return tokens, nil
		}
	}
}
