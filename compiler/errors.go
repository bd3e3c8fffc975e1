package compiler

import "fmt"

// ErrorKind classifies compile errors.
type ErrorKind uint8

const (
	KindLexical  ErrorKind = iota // malformed token
	KindSyntax                    // token sequence outside the grammar
	KindLimit                     // an implementation limit was exceeded
	KindStrict                    // construct forbidden in strict mode
	KindInternal                  // compiler invariant broken
)

func (k ErrorKind) String() string {
	switch k {
	case KindLexical:
		return "lexical"
	case KindSyntax:
		return "syntax"
	case KindLimit:
		return "limit"
	case KindStrict:
		return "strict mode"
	case KindInternal:
		return "internal"
	}
	return fmt.Sprintf("ErrorKind(%d)", k)
}

// ErrorCode identifies one specific compile error.
type ErrorCode int

const (
	// Lexical
	ErrInvalidCharacter ErrorCode = iota + 1
	ErrInvalidEncoding
	ErrUnterminatedString
	ErrUnterminatedTemplate
	ErrUnterminatedComment
	ErrUnterminatedRegexp
	ErrInvalidEscape
	ErrInvalidUnicodeEscape
	ErrInvalidHexEscape
	ErrInvalidIdentifierEscape
	ErrMissingExponent
	ErrMissingDigits
	ErrIdentifierAfterNumber
	ErrNewlineInString

	// Syntax
	ErrUnexpectedToken
	ErrExpectedToken
	ErrInvalidAssignTarget
	ErrInvalidRegexp
	ErrDuplicateLabel
	ErrUndefinedLabel
	ErrIllegalBreak
	ErrIllegalContinue
	ErrIllegalReturn
	ErrNewlineAfterThrow
	ErrMultipleDefaults
	ErrMissingCatchOrFinally
	ErrDuplicateProperty
	ErrInvalidArrowParams
	ErrReservedWord
	ErrTaggedTemplate

	// Limits
	ErrIdentifierTooLong
	ErrStringTooLong
	ErrNumberTooLong
	ErrTooManyLiterals
	ErrTooManyArguments
	ErrTooManyParameters
	ErrStackLimit
	ErrNestingTooDeep
	ErrCodeTooLarge

	// Strict mode
	ErrStrictOctal
	ErrStrictOctalEscape
	ErrStrictWith
	ErrStrictDelete
	ErrStrictEvalArguments
	ErrStrictReserved
	ErrStrictDuplicateParam
	ErrStrictFunctionDeclaration

	// Internal
	ErrScanMismatch
	ErrInternal
)

type errorCodeInfo struct {
	kind ErrorKind
	name string
}

var errorCodes = map[ErrorCode]errorCodeInfo{
	ErrInvalidCharacter:        {KindLexical, "invalid character"},
	ErrInvalidEncoding:         {KindLexical, "invalid source encoding"},
	ErrUnterminatedString:      {KindLexical, "unterminated string literal"},
	ErrUnterminatedTemplate:    {KindLexical, "unterminated template literal"},
	ErrUnterminatedComment:     {KindLexical, "unterminated comment"},
	ErrUnterminatedRegexp:      {KindLexical, "unterminated regular expression literal"},
	ErrInvalidEscape:           {KindLexical, "invalid escape sequence"},
	ErrInvalidUnicodeEscape:    {KindLexical, "invalid unicode escape sequence"},
	ErrInvalidHexEscape:        {KindLexical, "invalid hexadecimal escape sequence"},
	ErrInvalidIdentifierEscape: {KindLexical, "invalid escape in identifier"},
	ErrMissingExponent:         {KindLexical, "missing exponent"},
	ErrMissingDigits:           {KindLexical, "missing digits after number prefix"},
	ErrIdentifierAfterNumber:   {KindLexical, "identifier starts immediately after numeric literal"},
	ErrNewlineInString:         {KindLexical, "newline in string literal"},

	ErrUnexpectedToken:       {KindSyntax, "unexpected token"},
	ErrExpectedToken:         {KindSyntax, "expected token"},
	ErrInvalidAssignTarget:   {KindSyntax, "invalid assignment target"},
	ErrInvalidRegexp:         {KindSyntax, "invalid regular expression"},
	ErrDuplicateLabel:        {KindSyntax, "duplicate label"},
	ErrUndefinedLabel:        {KindSyntax, "undefined label"},
	ErrIllegalBreak:          {KindSyntax, "illegal break statement"},
	ErrIllegalContinue:       {KindSyntax, "illegal continue statement"},
	ErrIllegalReturn:         {KindSyntax, "return outside of function"},
	ErrNewlineAfterThrow:     {KindSyntax, "illegal newline after throw"},
	ErrMultipleDefaults:      {KindSyntax, "more than one default clause in switch"},
	ErrMissingCatchOrFinally: {KindSyntax, "missing catch or finally after try"},
	ErrDuplicateProperty:     {KindSyntax, "duplicate property definition"},
	ErrInvalidArrowParams:    {KindSyntax, "invalid arrow function parameters"},
	ErrReservedWord:          {KindSyntax, "unexpected reserved word"},
	ErrTaggedTemplate:        {KindSyntax, "tagged templates are not supported"},

	ErrIdentifierTooLong: {KindLimit, "identifier too long"},
	ErrStringTooLong:     {KindLimit, "string literal too long"},
	ErrNumberTooLong:     {KindLimit, "numeric literal too long"},
	ErrTooManyLiterals:   {KindLimit, "too many literals"},
	ErrTooManyArguments:  {KindLimit, "too many arguments"},
	ErrTooManyParameters: {KindLimit, "too many formal parameters"},
	ErrStackLimit:        {KindLimit, "maximum stack depth exceeded"},
	ErrNestingTooDeep:    {KindLimit, "nesting too deep"},
	ErrCodeTooLarge:      {KindLimit, "code too large"},

	ErrStrictOctal:               {KindStrict, "octal literals are not allowed in strict mode"},
	ErrStrictOctalEscape:         {KindStrict, "octal escape sequences are not allowed in strict mode"},
	ErrStrictWith:                {KindStrict, "with statement is not allowed in strict mode"},
	ErrStrictDelete:              {KindStrict, "deleting an unqualified identifier is not allowed in strict mode"},
	ErrStrictEvalArguments:       {KindStrict, "eval or arguments cannot be bound in strict mode"},
	ErrStrictReserved:            {KindStrict, "reserved word in strict mode"},
	ErrStrictDuplicateParam:      {KindStrict, "duplicate parameter names are not allowed in strict mode"},
	ErrStrictFunctionDeclaration: {KindStrict, "function declarations are not allowed in statement position in strict mode"},

	ErrScanMismatch: {KindInternal, "pre-scan and parser disagree on construct boundaries"},
	ErrInternal:     {KindInternal, "internal compiler error"},
}

// Kind returns the category of the code.
func (c ErrorCode) Kind() ErrorKind {
	return errorCodes[c].kind
}

func (c ErrorCode) String() string {
	if info, ok := errorCodes[c]; ok {
		return info.name
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is a compile error at a source position.
type Error struct {
	Kind    ErrorKind
	Code    ErrorCode
	Message string
	Line    int
	Column  int
	Offset  int
}

func (e *Error) Error() string {
	return fmt.Sprintf("%d:%d: %s error: %s", e.Line, e.Column, e.Kind, e.Message)
}

// Is matches errors by code so callers can use errors.Is with a template.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Code == e.Code
}

// newError builds an error for code at pos. Extra detail is appended to
// the code's message.
func newError(code ErrorCode, pos Position, format string, args ...any) *Error {
	msg := code.String()
	if format != "" {
		msg = msg + ": " + fmt.Sprintf(format, args...)
	}
	return &Error{
		Kind:    code.Kind(),
		Code:    code,
		Message: msg,
		Line:    pos.Line,
		Column:  pos.Column,
		Offset:  pos.Offset,
	}
}
