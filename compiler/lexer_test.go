package compiler

import (
	"errors"
	"testing"
)

func lexAll(t *testing.T, input string) []Token {
	t.Helper()
	toks, err := Tokenize(input)
	if err != nil {
		t.Fatalf("Tokenize(%q) error: %v", input, err)
	}
	return toks
}

func TestLexerPunctuators(t *testing.T) {
	input := `{ } ( ) [ ] . ; , : ? => < > <= >= == != === !== + - * % ++ -- << >> >>> & | ^ ! ~ && || = += -= *= %= <<= >>= >>>= &= |= ^=`
	expected := []TokenType{
		TokenLBrace, TokenRBrace, TokenLParen, TokenRParen, TokenLBracket, TokenRBracket,
		TokenDot, TokenSemicolon, TokenComma, TokenColon, TokenQuestion, TokenArrow,
		TokenLess, TokenGreater, TokenLessEqual, TokenGreaterEqual,
		TokenEqual, TokenNotEqual, TokenStrictEqual, TokenStrictNotEqual,
		TokenPlus, TokenMinus, TokenStar, TokenPercent, TokenIncrement, TokenDecrement,
		TokenShl, TokenShr, TokenUshr, TokenAmp, TokenPipe, TokenCaret, TokenBang, TokenTilde,
		TokenAnd, TokenOr,
		TokenAssign, TokenPlusAssign, TokenMinusAssign, TokenStarAssign, TokenPercentAssign,
		TokenShlAssign, TokenShrAssign, TokenUshrAssign, TokenAmpAssign, TokenPipeAssign, TokenCaretAssign,
		TokenEOF,
	}

	toks := lexAll(t, input)
	if len(toks) != len(expected) {
		t.Fatalf("got %d tokens, want %d", len(toks), len(expected))
	}
	for i, want := range expected {
		if toks[i].Type != want {
			t.Errorf("token[%d] type = %v, want %v", i, toks[i].Type, want)
		}
	}
}

func TestLexerKeywords(t *testing.T) {
	tests := []struct {
		input string
		want  TokenType
	}{
		{"var", TokenVar},
		{"function", TokenFunction},
		{"instanceof", TokenInstanceof},
		{"typeof", TokenTypeof},
		{"debugger", TokenDebugger},
		{"null", TokenNull},
		{"true", TokenTrue},
		{"class", TokenClass},
		{"super", TokenSuper},
		{"let", TokenIdentifier},
		{"yield", TokenIdentifier},
		{"of", TokenIdentifier},
		{"Var", TokenIdentifier},
		{"functions", TokenIdentifier},
		{`\u0076ar`, TokenIdentifier},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := lexAll(t, tt.input)
			if toks[0].Type != tt.want {
				t.Errorf("type = %v, want %v", toks[0].Type, tt.want)
			}
		})
	}
}

func TestLexerIdentifiers(t *testing.T) {
	tests := []struct {
		input   string
		value   string
		escaped bool
	}{
		{"foo", "foo", false},
		{"$x", "$x", false},
		{"_a1", "_a1", false},
		{"café", "café", false},
		{`\u0066oo`, "foo", true},
		{`a\u{62}c`, "abc", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := lexAll(t, tt.input)[0]
			if tok.Type != TokenIdentifier {
				t.Fatalf("type = %v, want identifier", tok.Type)
			}
			if tok.Value != tt.value {
				t.Errorf("value = %q, want %q", tok.Value, tt.value)
			}
			if tok.Escaped != tt.escaped {
				t.Errorf("escaped = %v, want %v", tok.Escaped, tt.escaped)
			}
		})
	}
}

func TestLexerNumbers(t *testing.T) {
	tests := []struct {
		input string
		form  NumberForm
		value float64
	}{
		{"0", NumberDecimal, 0},
		{"42", NumberDecimal, 42},
		{"3.25", NumberDecimal, 3.25},
		{".5", NumberDecimal, 0.5},
		{"1e3", NumberDecimal, 1000},
		{"2E-2", NumberDecimal, 0.02},
		{"0x1F", NumberHex, 31},
		{"0XfF", NumberHex, 255},
		{"0o17", NumberOctal, 15},
		{"0b101", NumberBinary, 5},
		{"017", NumberLegacyOctal, 15},
		{"089", NumberLeadingZero, 89},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := lexAll(t, tt.input)[0]
			if tok.Type != TokenNumber {
				t.Fatalf("type = %v, want number", tok.Type)
			}
			if tok.Number != tt.form {
				t.Errorf("form = %v, want %v", tok.Number, tt.form)
			}
			if got := numberValue(tok); got != tt.value {
				t.Errorf("value = %v, want %v", got, tt.value)
			}
		})
	}
}

func TestLexerStrings(t *testing.T) {
	tests := []struct {
		input string
		value string
		octal bool
	}{
		{`'hello'`, "hello", false},
		{`"it's"`, "it's", false},
		{`''`, "", false},
		{`'a\nb'`, "a\nb", false},
		{`'\x41B\u{43}'`, "ABC", false},
		{`'\101'`, "A", true},
		{`'\0'`, "\x00", false},
		{"'line\\\ncontinued'", "linecontinued", false},
		{`'\q'`, "q", false},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			tok := lexAll(t, tt.input)[0]
			if tok.Type != TokenString {
				t.Fatalf("type = %v, want string", tok.Type)
			}
			if tok.Value != tt.value {
				t.Errorf("value = %q, want %q", tok.Value, tt.value)
			}
			if tok.OctalEscape != tt.octal {
				t.Errorf("octal = %v, want %v", tok.OctalEscape, tt.octal)
			}
		})
	}
}

func TestLexerSupplementaryCharacters(t *testing.T) {
	// U+1F600 is stored as its surrogate pair, each half three bytes.
	want := "\xed\xa0\xbd\xed\xb8\x80"
	for _, input := range []string{`'\uD83D\uDE00'`, `'\u{1F600}'`, `'😀'`} {
		tok := lexAll(t, input)[0]
		if tok.Value != want {
			t.Errorf("%s value = % x, want % x", input, tok.Value, want)
		}
	}
}

func TestLexerTemplates(t *testing.T) {
	toks := lexAll(t, "`plain`")
	if toks[0].Type != TokenTemplate || toks[0].Value != "plain" {
		t.Errorf("plain template = %v %q", toks[0].Type, toks[0].Value)
	}

	l := NewLexer("`a${x}b${y}c`", Limits{})
	head, err := l.Next()
	if err != nil || head.Type != TokenTemplateHead || head.Value != "a" {
		t.Fatalf("head = %v %q, %v", head.Type, head.Value, err)
	}
	if tok, _ := l.Next(); tok.Value != "x" {
		t.Fatalf("substitution = %v", tok)
	}
	rbrace, _ := l.Next()
	middle, err := l.ContinueTemplate(rbrace)
	if err != nil || middle.Type != TokenTemplateMiddle || middle.Value != "b" {
		t.Fatalf("middle = %v %q, %v", middle.Type, middle.Value, err)
	}
	l.Next()
	rbrace, _ = l.Next()
	tail, err := l.ContinueTemplate(rbrace)
	if err != nil || tail.Type != TokenTemplateTail || tail.Value != "c" {
		t.Fatalf("tail = %v %q, %v", tail.Type, tail.Value, err)
	}

	crlf := lexAll(t, "`a\r\nb`")[0]
	if crlf.Value != "a\nb" {
		t.Errorf("cooked CRLF = %q, want %q", crlf.Value, "a\nb")
	}
}

func TestLexerSlash(t *testing.T) {
	tests := []struct {
		input string
		want  []TokenType
	}{
		{"a / b", []TokenType{TokenIdentifier, TokenSlash, TokenIdentifier}},
		{"x = /ab+c/gi", []TokenType{TokenIdentifier, TokenAssign, TokenRegexp}},
		{"(a) / 2", []TokenType{TokenLParen, TokenIdentifier, TokenRParen, TokenSlash, TokenNumber}},
		{"return /x/", []TokenType{TokenReturn, TokenRegexp}},
		{"a /= 2", []TokenType{TokenIdentifier, TokenSlashAssign, TokenNumber}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			toks := lexAll(t, tt.input)
			for i, want := range tt.want {
				if toks[i].Type != want {
					t.Errorf("token[%d] = %v, want %v", i, toks[i].Type, want)
				}
			}
		})
	}

	re := lexAll(t, "x = /[/]\\//m")[2]
	if re.Value != `[/]\/` || re.Flags != "m" {
		t.Errorf("regexp = %q flags %q", re.Value, re.Flags)
	}
}

func TestLexerRescanRegexp(t *testing.T) {
	l := NewLexer("/=a/g", Limits{})
	l.prev = TokenIdentifier
	slash, err := l.Next()
	if err != nil || slash.Type != TokenSlashAssign {
		t.Fatalf("first read = %v, %v", slash.Type, err)
	}
	re, err := l.RescanRegexp(slash)
	if err != nil {
		t.Fatalf("RescanRegexp error: %v", err)
	}
	if re.Value != "=a" || re.Flags != "g" {
		t.Errorf("regexp = %q flags %q", re.Value, re.Flags)
	}
}

func TestLexerPositionsAndNewlines(t *testing.T) {
	toks := lexAll(t, "a\n  b /* x\n */ c // tail\nd")
	want := []struct {
		line, col int
		newline   bool
	}{
		{1, 1, false},
		{2, 3, true},
		{3, 5, true},
		{4, 1, true},
	}
	for i, w := range want {
		tok := toks[i]
		if tok.Pos.Line != w.line || tok.Pos.Column != w.col {
			t.Errorf("token[%d] at %s, want %d:%d", i, tok.Pos, w.line, w.col)
		}
		if tok.NewlineBefore != w.newline {
			t.Errorf("token[%d] newline = %v, want %v", i, tok.NewlineBefore, w.newline)
		}
	}
}

func TestLexerUnicodeSpace(t *testing.T) {
	toks := lexAll(t, "a\uFEFFb\u00A0c\u2028d")
	if len(toks) != 5 {
		t.Fatalf("got %d tokens, want 5", len(toks))
	}
	for i, w := range []struct {
		text    string
		newline bool
	}{
		{"a", false},
		{"b", false},
		{"c", false},
		{"d", true},
	} {
		if toks[i].Type != TokenIdentifier || toks[i].Value != w.text {
			t.Errorf("token[%d] = %v %q, want identifier %q", i, toks[i].Type, toks[i].Value, w.text)
		}
		if toks[i].NewlineBefore != w.newline {
			t.Errorf("token[%d] newline = %v, want %v", i, toks[i].NewlineBefore, w.newline)
		}
	}
}

func TestLexerStrict(t *testing.T) {
	tests := []struct {
		input string
		code  ErrorCode
	}{
		{"017", ErrStrictOctal},
		{"09", ErrStrictOctal},
		{`'\1'`, ErrStrictOctalEscape},
		{`'\8'`, ErrStrictOctalEscape},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			l := NewLexer(tt.input, Limits{})
			if _, err := l.Next(); err != nil {
				t.Fatalf("sloppy read error: %v", err)
			}
			l = NewLexer(tt.input, Limits{})
			l.SetStrict(true)
			_, err := l.Next()
			assertCode(t, err, tt.code)
		})
	}
}

func TestLexerErrors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		code  ErrorCode
	}{
		{"unterminated string", `'abc`, ErrUnterminatedString},
		{"newline in string", "'a\nb'", ErrNewlineInString},
		{"unterminated template", "`abc", ErrUnterminatedTemplate},
		{"unterminated comment", "/* abc", ErrUnterminatedComment},
		{"unterminated regexp", "x = /abc", ErrUnterminatedRegexp},
		{"bad hex escape", `'\xZ1'`, ErrInvalidHexEscape},
		{"bad unicode escape", `'\u12'`, ErrInvalidUnicodeEscape},
		{"octal escape in template", "`\\1`", ErrInvalidEscape},
		{"missing exponent", "1e", ErrMissingExponent},
		{"missing hex digits", "0x", ErrMissingDigits},
		{"identifier after number", "3in", ErrIdentifierAfterNumber},
		{"invalid character", "#", ErrInvalidCharacter},
		{"invalid encoding", "'\xff'", ErrInvalidEncoding},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Tokenize(tt.input)
			assertCode(t, err, tt.code)
		})
	}
}

func TestLexerLimits(t *testing.T) {
	limits := Limits{IdentLength: 4, StringLength: 3, NumberLength: 2}
	tests := []struct {
		input string
		code  ErrorCode
	}{
		{"abcde", ErrIdentifierTooLong},
		{"'abcd'", ErrStringTooLong},
		{"123", ErrNumberTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			_, err := NewLexer(tt.input, limits).Next()
			assertCode(t, err, tt.code)
		})
	}
}

func TestLexerStateRestore(t *testing.T) {
	l := NewLexer("a b c", Limits{})
	l.Next()
	saved := l.State()
	first, _ := l.Next()
	l.Next()
	l.Restore(saved)
	again, _ := l.Next()
	if first.Value != again.Value || first.Pos != again.Pos {
		t.Errorf("after restore got %v at %s, want %v at %s", again, again.Pos, first, first.Pos)
	}
}

func assertCode(t *testing.T, err error, code ErrorCode) {
	t.Helper()
	var cerr *Error
	if !errors.As(err, &cerr) {
		t.Fatalf("error = %v, want %s", err, code)
	}
	if cerr.Code != code {
		t.Errorf("code = %s (%v), want %s", cerr.Code, cerr, code)
	}
	if cerr.Kind != code.Kind() {
		t.Errorf("kind = %s, want %s", cerr.Kind, code.Kind())
	}
}
