package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the script lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota

	// Literals
	TokenIdentifier     // foo, $x, _a1
	TokenString         // 'a', "b"
	TokenNumber         // 42, 0x1F, 1.5e3
	TokenRegexp         // /ab+c/gi
	TokenTemplate       // `text`
	TokenTemplateHead   // `text${
	TokenTemplateMiddle // }text${
	TokenTemplateTail   // }text`

	// Punctuators
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenDot       // .
	TokenSemicolon // ;
	TokenComma     // ,
	TokenColon     // :
	TokenQuestion  // ?
	TokenArrow     // =>

	// Operators
	TokenLess           // <
	TokenGreater        // >
	TokenLessEqual      // <=
	TokenGreaterEqual   // >=
	TokenEqual          // ==
	TokenNotEqual       // !=
	TokenStrictEqual    // ===
	TokenStrictNotEqual // !==
	TokenPlus           // +
	TokenMinus          // -
	TokenStar           // *
	TokenSlash          // /
	TokenPercent        // %
	TokenIncrement      // ++
	TokenDecrement      // --
	TokenShl            // <<
	TokenShr            // >>
	TokenUshr           // >>>
	TokenAmp            // &
	TokenPipe           // |
	TokenCaret          // ^
	TokenBang           // !
	TokenTilde          // ~
	TokenAnd            // &&
	TokenOr             // ||

	// Assignment operators
	TokenAssign        // =
	TokenPlusAssign    // +=
	TokenMinusAssign   // -=
	TokenStarAssign    // *=
	TokenSlashAssign   // /=
	TokenPercentAssign // %=
	TokenShlAssign     // <<=
	TokenShrAssign     // >>=
	TokenUshrAssign    // >>>=
	TokenAmpAssign     // &=
	TokenPipeAssign    // |=
	TokenCaretAssign   // ^=

	// Keywords
	TokenBreak
	TokenCase
	TokenCatch
	TokenContinue
	TokenDebugger
	TokenDefault
	TokenDelete
	TokenDo
	TokenElse
	TokenFinally
	TokenFor
	TokenFunction
	TokenIf
	TokenIn
	TokenInstanceof
	TokenNew
	TokenReturn
	TokenSwitch
	TokenThis
	TokenThrow
	TokenTry
	TokenTypeof
	TokenVar
	TokenVoid
	TokenWhile
	TokenWith
	TokenNull
	TokenTrue
	TokenFalse

	// Future reserved words, never identifiers
	TokenClass
	TokenConst
	TokenEnum
	TokenExport
	TokenExtends
	TokenImport
	TokenSuper
)

var tokenNames = map[TokenType]string{
	TokenEOF:            "end of input",
	TokenIdentifier:     "identifier",
	TokenString:         "string",
	TokenNumber:         "number",
	TokenRegexp:         "regular expression",
	TokenTemplate:       "template",
	TokenTemplateHead:   "template head",
	TokenTemplateMiddle: "template middle",
	TokenTemplateTail:   "template tail",
	TokenLBrace:         "{",
	TokenRBrace:         "}",
	TokenLParen:         "(",
	TokenRParen:         ")",
	TokenLBracket:       "[",
	TokenRBracket:       "]",
	TokenDot:            ".",
	TokenSemicolon:      ";",
	TokenComma:          ",",
	TokenColon:          ":",
	TokenQuestion:       "?",
	TokenArrow:          "=>",
	TokenLess:           "<",
	TokenGreater:        ">",
	TokenLessEqual:      "<=",
	TokenGreaterEqual:   ">=",
	TokenEqual:          "==",
	TokenNotEqual:       "!=",
	TokenStrictEqual:    "===",
	TokenStrictNotEqual: "!==",
	TokenPlus:           "+",
	TokenMinus:          "-",
	TokenStar:           "*",
	TokenSlash:          "/",
	TokenPercent:        "%",
	TokenIncrement:      "++",
	TokenDecrement:      "--",
	TokenShl:            "<<",
	TokenShr:            ">>",
	TokenUshr:           ">>>",
	TokenAmp:            "&",
	TokenPipe:           "|",
	TokenCaret:          "^",
	TokenBang:           "!",
	TokenTilde:          "~",
	TokenAnd:            "&&",
	TokenOr:             "||",
	TokenAssign:         "=",
	TokenPlusAssign:     "+=",
	TokenMinusAssign:    "-=",
	TokenStarAssign:     "*=",
	TokenSlashAssign:    "/=",
	TokenPercentAssign:  "%=",
	TokenShlAssign:      "<<=",
	TokenShrAssign:      ">>=",
	TokenUshrAssign:     ">>>=",
	TokenAmpAssign:      "&=",
	TokenPipeAssign:     "|=",
	TokenCaretAssign:    "^=",
	TokenBreak:          "break",
	TokenCase:           "case",
	TokenCatch:          "catch",
	TokenContinue:       "continue",
	TokenDebugger:       "debugger",
	TokenDefault:        "default",
	TokenDelete:         "delete",
	TokenDo:             "do",
	TokenElse:           "else",
	TokenFinally:        "finally",
	TokenFor:            "for",
	TokenFunction:       "function",
	TokenIf:             "if",
	TokenIn:             "in",
	TokenInstanceof:     "instanceof",
	TokenNew:            "new",
	TokenReturn:         "return",
	TokenSwitch:         "switch",
	TokenThis:           "this",
	TokenThrow:          "throw",
	TokenTry:            "try",
	TokenTypeof:         "typeof",
	TokenVar:            "var",
	TokenVoid:           "void",
	TokenWhile:          "while",
	TokenWith:           "with",
	TokenNull:           "null",
	TokenTrue:           "true",
	TokenFalse:          "false",
	TokenClass:          "class",
	TokenConst:          "const",
	TokenEnum:           "enum",
	TokenExport:         "export",
	TokenExtends:        "extends",
	TokenImport:         "import",
	TokenSuper:          "super",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// IsKeyword reports whether t is a reserved word.
func (t TokenType) IsKeyword() bool {
	return t >= TokenBreak && t <= TokenSuper
}

// IsAssign reports whether t is an assignment operator.
func (t TokenType) IsAssign() bool {
	return t >= TokenAssign && t <= TokenCaretAssign
}

// IsLiteral reports whether t carries literal content.
func (t TokenType) IsLiteral() bool {
	return t >= TokenIdentifier && t <= TokenTemplateTail
}

// NumberForm records how a numeric literal was written.
type NumberForm uint8

const (
	NumberDecimal NumberForm = iota
	NumberHex
	NumberOctal       // 0o17
	NumberBinary      // 0b101
	NumberLegacyOctal // 017, rejected in strict mode
	NumberLeadingZero // 089, decimal with a leading zero, rejected in strict mode
)

// Position is a location in the source.
type Position struct {
	Offset int // byte offset
	Line   int // 1-based
	Column int // 1-based, in code points
}

func (p Position) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Column)
}

// Token represents a lexical token.
//
// For literal tokens Value holds the decoded content: identifier names and
// string or template text in CESU-8, the pattern of a regular expression.
// When the source needed no decoding Value aliases the source text.
type Token struct {
	Type          TokenType
	Pos           Position // start position
	End           int      // offset just past the token
	NewlineBefore bool     // a line terminator precedes the token
	Raw           string   // source text of the token
	Value         string
	Flags         string     // regular expression flags
	Escaped       bool       // identifier or string contained an escape
	OctalEscape   bool       // string contained a legacy octal escape
	Number        NumberForm // form of a numeric literal
}

func (t Token) String() string {
	switch t.Type {
	case TokenEOF:
		return "EOF"
	case TokenIdentifier, TokenString, TokenNumber, TokenRegexp, TokenTemplate,
		TokenTemplateHead, TokenTemplateMiddle, TokenTemplateTail:
		if len(t.Raw) > 20 {
			return fmt.Sprintf("%s(%q...)", t.Type, t.Raw[:20])
		}
		return fmt.Sprintf("%s(%q)", t.Type, t.Raw)
	}
	return t.Type.String()
}

// ---------------------------------------------------------------------------
// Reserved words
// ---------------------------------------------------------------------------

const maxKeywordLength = 10

type keywordEntry struct {
	word string
	typ  TokenType
}

// keywordsByLength buckets reserved words by exact length.
var keywordsByLength [maxKeywordLength + 1][]keywordEntry

func init() {
	for t := TokenBreak; t <= TokenSuper; t++ {
		w := tokenNames[t]
		keywordsByLength[len(w)] = append(keywordsByLength[len(w)], keywordEntry{w, t})
	}
}

// lookupKeyword returns the keyword token for an unescaped identifier.
func lookupKeyword(s string) (TokenType, bool) {
	if len(s) < 2 || len(s) > maxKeywordLength || s[0] < 'a' || s[0] > 'z' {
		return TokenIdentifier, false
	}
	for _, e := range keywordsByLength[len(s)] {
		if e.word == s {
			return e.typ, true
		}
	}
	return TokenIdentifier, false
}

// strictReserved are identifiers that strict mode code may not bind or reference.
var strictReserved = map[string]bool{
	"implements": true,
	"interface":  true,
	"let":        true,
	"package":    true,
	"private":    true,
	"protected":  true,
	"public":     true,
	"static":     true,
	"yield":      true,
}

// IsStrictReserved reports whether name is reserved in strict mode code.
func IsStrictReserved(name string) bool {
	return strictReserved[name]
}
