package compiler

import (
	"github.com/chazu/scriptc/pkg/bytecode"
	"github.com/chazu/scriptc/pkg/intern"
)

// ---------------------------------------------------------------------------
// Parser: single pass from tokens to provisional bytecode
// ---------------------------------------------------------------------------

// stmtKind classifies an open statement for break and continue.
type stmtKind uint8

const (
	stmtLabel  stmtKind = iota
	stmtLoop            // for, while, do-while
	stmtForIn           // for-in or for-of, holding an iteration context
	stmtSwitch          // switch body
	stmtWith            // with body
	stmtTry             // try, catch or finally block
)

// stmtFrame is an open statement that jumps may leave or target.
type stmtFrame struct {
	kind      stmtKind
	label     string
	breaks    []branch
	continues []branch
}

// holdsContext reports whether leaving the statement unwinds a context.
func (f *stmtFrame) holdsContext() bool {
	return f.kind == stmtForIn || f.kind == stmtWith || f.kind == stmtTry
}

func (f *stmtFrame) isLoop() bool {
	return f.kind == stmtLoop || f.kind == stmtForIn
}

// funcState is the compile state of one function or script. The state of
// an enclosing function is reachable through parent while a nested one is
// parsed.
type funcState struct {
	parent *funcState
	em     *emitter
	lits   *literalPool
	frames []*stmtFrame
	start  Position
	name   string
	flags  bytecode.CodeFlags
	strict bool

	params      []int   // literal per parameter position, -1 when shadowed
	paramToks   []Token // parameter names as written
	noRegisters bool    // locals must be named: eval, with, closures or arguments
}

func (fs *funcState) function() bool {
	return fs.flags&bytecode.FlagFunction != 0
}

// Parser compiles one source unit. It reads tokens on demand, consults the
// pre-scan where it must emit out of source order, and writes instructions
// through the emitter of the function being parsed.
type Parser struct {
	source  string
	lex     *Lexer
	tok     Token
	opts    Options
	limits  Limits
	strs    *intern.Table
	pages   *PagePool
	scans   map[int]*ScanInfo
	scanned bool // the pre-scan reached the end with every bracket closed
	fs      *funcState
	nesting int
}

// parserPos is a saved token cursor.
type parserPos struct {
	lex LexerState
	tok Token
}

// newParser prepares a parser and runs the pre-scan over source.
func newParser(source string, opts Options) (*Parser, error) {
	limits := opts.Limits.WithDefaults()
	pages := opts.Pages
	if pages == nil {
		pages = NewPagePool()
	}
	nodes, complete, err := Scan(source, limits)
	if err != nil {
		return nil, err
	}
	p := &Parser{
		source:  source,
		lex:     NewLexer(source, limits),
		opts:    opts,
		limits:  limits,
		strs:    intern.NewTable(),
		pages:   pages,
		scans:   make(map[int]*ScanInfo, len(nodes)),
		scanned: complete,
	}
	for _, n := range nodes {
		p.scans[n.Trigger.Offset] = n
	}
	return p, nil
}

// ---------------------------------------------------------------------------
// Token cursor
// ---------------------------------------------------------------------------

// next advances to the next token. A pending emitter error is reported
// here so emission sites need no checks of their own.
func (p *Parser) next() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.tok = tok
	if p.fs != nil {
		p.fs.em.at = tok.Pos
		if p.fs.em.err != nil {
			return p.fs.em.err
		}
	}
	return nil
}

func (p *Parser) save() parserPos {
	return parserPos{lex: p.lex.State(), tok: p.tok}
}

func (p *Parser) restore(s parserPos) {
	p.lex.Restore(s.lex)
	p.tok = s.tok
	p.fs.em.at = s.tok.Pos
}

// seek continues reading at pos, which must start an operand or a
// punctuator.
func (p *Parser) seek(pos Position) error {
	p.lex.Seek(pos, TokenEOF)
	return p.next()
}

func (p *Parser) errorf(code ErrorCode, format string, args ...any) error {
	return newError(code, p.tok.Pos, format, args...)
}

func (p *Parser) unexpected() error {
	if p.tok.Type >= TokenClass && p.tok.Type <= TokenSuper {
		return p.errorf(ErrReservedWord, "%s", p.tok.Type)
	}
	return p.errorf(ErrUnexpectedToken, "%s", p.tok)
}

func (p *Parser) expect(t TokenType) error {
	if p.tok.Type != t {
		return p.errorf(ErrExpectedToken, "%s, found %s", t, p.tok)
	}
	return p.next()
}

// semicolon consumes a statement terminator, inserting one where a line
// break, a closing brace or the end of input allows it.
func (p *Parser) semicolon() error {
	switch {
	case p.tok.Type == TokenSemicolon:
		return p.next()
	case p.tok.Type == TokenRBrace, p.tok.Type == TokenEOF, p.tok.NewlineBefore:
		return nil
	}
	return p.unexpected()
}

func (p *Parser) enter() error {
	p.nesting++
	if p.nesting > p.limits.Nesting {
		return p.errorf(ErrNestingTooDeep, "more than %d levels", p.limits.Nesting)
	}
	return nil
}

func (p *Parser) leave() { p.nesting-- }

// ---------------------------------------------------------------------------
// Pre-scan records
// ---------------------------------------------------------------------------

// construct returns the complete pre-scan record of kind whose construct
// starts at trigger. A missing or partial record is rebuilt by scanning
// the construct alone. A nil result means the construct cannot be
// delimited, which for an arrow means the tokens are no arrow function.
func (p *Parser) construct(kind ScanKind, trigger Position) (*ScanInfo, error) {
	n := p.scans[trigger.Offset]
	if n != nil && n.Kind.matches(kind) {
		delete(p.scans, trigger.Offset)
		if n.Complete {
			return n, nil
		}
	} else if kind == ScanArrow && p.scanned {
		return nil, nil
	}
	return rescan(p.source, p.limits, kind, trigger)
}

// boundary confirms that the parser reached a location the pre-scan
// recorded. Disagreement is a compiler fault, never a user error.
func (p *Parser) boundary(kind BoundaryKind, n *ScanInfo, scanned Position) error {
	if p.opts.OnBoundary != nil {
		p.opts.OnBoundary(Boundary{Kind: kind, Construct: n.Trigger, Scanned: scanned, Parsed: p.tok.Pos})
	}
	if scanned.Offset != p.tok.Pos.Offset {
		return p.mismatch(n, "%s scanned at %s", kind, scanned)
	}
	return nil
}

func (p *Parser) mismatch(n *ScanInfo, format string, args ...any) error {
	args = append([]any{n.Kind, n.Trigger}, args...)
	return p.errorf(ErrScanMismatch, "%s at %s: "+format, args...)
}

// unscanned parses a construct the pre-scan could not delimit in plain
// source order, only to report the real error. Whatever it emits is
// discarded with the failed compile.
func (p *Parser) unscanned(kind ScanKind) error {
	start := p.tok.Pos
	if err := p.unscannedParse(kind); err != nil {
		return err
	}
	return newError(ErrInternal, start, "no pre-scan record for %s", kind)
}

func (p *Parser) unscannedParse(kind ScanKind) error {
	em := p.fs.em
	value := func(noIn bool) error {
		_, err := p.expression(noIn)
		em.emit(op0(bytecode.OpPop))
		return err
	}
	header := func() error {
		if err := p.next(); err != nil {
			return err
		}
		return p.expect(TokenLParen)
	}
	if err := header(); err != nil {
		return err
	}

	switch kind {
	case ScanWhile:
		if err := value(false); err != nil {
			return err
		}
		if err := p.expect(TokenRParen); err != nil {
			return err
		}
		p.push(stmtLoop, "")
		defer p.pop()
		return p.statement(false)

	case ScanSwitch:
		if err := value(false); err != nil {
			return err
		}
		if err := p.expect(TokenRParen); err != nil {
			return err
		}
		if err := p.expect(TokenLBrace); err != nil {
			return err
		}
		p.push(stmtSwitch, "")
		defer p.pop()
		for p.tok.Type != TokenRBrace {
			var err error
			switch p.tok.Type {
			case TokenCase:
				if err = p.next(); err == nil {
					if err = value(false); err == nil {
						err = p.expect(TokenColon)
					}
				}
			case TokenDefault:
				if err = p.next(); err == nil {
					err = p.expect(TokenColon)
				}
			default:
				err = p.statement(false)
			}
			if err != nil {
				return err
			}
		}
		return p.next()
	}

	switch p.tok.Type {
	case TokenVar:
		if err := p.next(); err != nil {
			return err
		}
		if err := p.varDeclarations(true); err != nil {
			return err
		}
	case TokenSemicolon:
	default:
		if err := value(true); err != nil {
			return err
		}
	}
	if p.tok.Type == TokenIn || p.atOf() {
		if err := p.next(); err != nil {
			return err
		}
		if err := value(false); err != nil {
			return err
		}
	} else {
		if err := p.expect(TokenSemicolon); err != nil {
			return err
		}
		if p.tok.Type != TokenSemicolon {
			if err := value(false); err != nil {
				return err
			}
		}
		if err := p.expect(TokenSemicolon); err != nil {
			return err
		}
		if p.tok.Type != TokenRParen {
			if err := value(false); err != nil {
				return err
			}
		}
	}
	if err := p.expect(TokenRParen); err != nil {
		return err
	}
	p.push(stmtLoop, "")
	defer p.pop()
	return p.statement(false)
}

// ---------------------------------------------------------------------------
// Literals and bindings
// ---------------------------------------------------------------------------

func (p *Parser) tooManyLiterals() error {
	return p.errorf(ErrTooManyLiterals, "more than %d in one function", p.limits.Literals)
}

func (p *Parser) identLit(name string) (int, error) {
	i, ok := p.fs.lits.ident(name)
	if !ok {
		return 0, p.tooManyLiterals()
	}
	return i, nil
}

func (p *Parser) stringLit(s string) (int, error) {
	i, ok := p.fs.lits.str(s)
	if !ok {
		return 0, p.tooManyLiterals()
	}
	return i, nil
}

func (p *Parser) numberLit(v float64) (int, error) {
	i, ok := p.fs.lits.number(v)
	if !ok {
		return 0, p.tooManyLiterals()
	}
	return i, nil
}

// identRef returns the literal of an identifier used as a reference.
func (p *Parser) identRef(tok Token) (int, error) {
	if p.fs.strict && IsStrictReserved(tok.Value) {
		return 0, newError(ErrStrictReserved, tok.Pos, "%s", tok.Value)
	}
	lit, err := p.identLit(tok.Value)
	if err != nil {
		return 0, err
	}
	if tok.Escaped {
		p.fs.lits.mark(lit, litEscaped)
	}
	if tok.Value == "arguments" {
		p.usesArguments()
	}
	return lit, nil
}

// usesArguments records a reference to the arguments object. Arrow
// functions see the object of the closest enclosing ordinary function.
func (p *Parser) usesArguments() {
	for fs := p.fs; fs != nil && fs.function(); fs = fs.parent {
		fs.noRegisters = true
		if fs.flags&bytecode.FlagArrow == 0 {
			fs.flags |= bytecode.FlagNeedsArguments
			return
		}
	}
}

// directEval records a direct eval call, which may reach any binding.
func (p *Parser) directEval() {
	fs := p.fs
	fs.noRegisters = true
	fs.flags |= bytecode.FlagNeedsLexicalEnv
	if fs.function() {
		fs.flags |= bytecode.FlagNeedsArguments
	}
}

// checkBinding rejects names strict code may not bind.
func (p *Parser) checkBinding(tok Token) error {
	if !p.fs.strict {
		return nil
	}
	switch {
	case tok.Value == "eval" || tok.Value == "arguments":
		return newError(ErrStrictEvalArguments, tok.Pos, "%s", tok.Value)
	case IsStrictReserved(tok.Value):
		return newError(ErrStrictReserved, tok.Pos, "%s", tok.Value)
	}
	return nil
}

// declare binds a var name in the current function.
func (p *Parser) declare(tok Token) (int, error) {
	if tok.Type != TokenIdentifier {
		return 0, p.unexpected()
	}
	if err := p.checkBinding(tok); err != nil {
		return 0, err
	}
	lit, err := p.identLit(tok.Value)
	if err != nil {
		return 0, err
	}
	p.fs.lits.mark(lit, litVar)
	return lit, nil
}

// ---------------------------------------------------------------------------
// Functions
// ---------------------------------------------------------------------------

// openFunction creates the state of a function whose source starts at
// start. Strictness is inherited from the enclosing code.
func (p *Parser) openFunction(start Position, flags bytecode.CodeFlags, name string) *funcState {
	fs := &funcState{
		parent: p.fs,
		em:     newEmitter(p.pages, p.limits, p.opts.LineInfo),
		lits:   newLiteralPool(p.strs, p.limits.Literals),
		start:  start,
		name:   name,
		flags:  flags,
		strict: p.opts.Strict,
	}
	if p.fs != nil {
		fs.strict = p.fs.strict
		// The enclosing bindings may be captured.
		p.fs.noRegisters = true
		p.fs.flags |= bytecode.FlagNeedsLexicalEnv
	}
	if fs.strict {
		fs.flags |= bytecode.FlagStrict
	}
	fs.em.at = start
	return fs
}

func (p *Parser) setStrict() {
	p.fs.strict = true
	p.fs.flags |= bytecode.FlagStrict
	p.lex.SetStrict(true)
}

// param adds a formal parameter. A repeated name moves to its latest
// position and leaves an unused slot behind.
func (p *Parser) param(tok Token) error {
	fs := p.fs
	if tok.Type != TokenIdentifier {
		return newError(ErrUnexpectedToken, tok.Pos, "%s in parameter list", tok)
	}
	if len(fs.params) >= p.limits.Arguments {
		return newError(ErrTooManyParameters, tok.Pos, "more than %d", p.limits.Arguments)
	}
	lit, err := p.identLit(tok.Value)
	if err != nil {
		return err
	}
	for i, prev := range fs.params {
		if prev == lit {
			fs.params[i] = -1
		}
	}
	fs.lits.mark(lit, litArgument|litVar)
	fs.params = append(fs.params, lit)
	fs.paramToks = append(fs.paramToks, tok)
	return nil
}

// parameters parses a parenthesized parameter list.
func (p *Parser) parameters() error {
	if err := p.expect(TokenLParen); err != nil {
		return err
	}
	if p.tok.Type != TokenRParen {
		for {
			if err := p.param(p.tok); err != nil {
				return err
			}
			if err := p.next(); err != nil {
				return err
			}
			if p.tok.Type != TokenComma {
				break
			}
			if err := p.next(); err != nil {
				return err
			}
		}
	}
	return p.expect(TokenRParen)
}

// checkParams applies the parameter and name rules that depend on the
// strictness of the body, known only once its directives are read.
func (p *Parser) checkParams(name Token, named bool) error {
	fs := p.fs
	arrow := fs.flags&bytecode.FlagArrow != 0
	seen := make(map[string]bool, len(fs.paramToks))
	if named {
		if err := p.checkBinding(name); err != nil {
			return err
		}
	}
	for _, tok := range fs.paramToks {
		if err := p.checkBinding(tok); err != nil {
			return err
		}
		if seen[tok.Value] {
			switch {
			case arrow:
				return newError(ErrInvalidArrowParams, tok.Pos, "duplicate parameter %s", tok.Value)
			case fs.strict:
				return newError(ErrStrictDuplicateParam, tok.Pos, "%s", tok.Value)
			}
		}
		seen[tok.Value] = true
	}
	return nil
}

// directives reads the directive prologue at the start of a body.
func (p *Parser) directives() error {
	var octal *Token
	switched := false
	for p.tok.Type == TokenString {
		tok := p.tok
		state := p.save()
		if err := p.next(); err != nil {
			return err
		}
		if !p.endsDirective() {
			p.restore(state)
			break
		}
		if tok.OctalEscape && octal == nil {
			octal = &tok
		}
		if !p.fs.strict && (tok.Raw == `"use strict"` || tok.Raw == `'use strict'`) {
			p.setStrict()
			switched = true
		}
		if p.tok.Type == TokenSemicolon {
			if err := p.next(); err != nil {
				return err
			}
		}
	}
	if !p.fs.strict {
		return nil
	}
	if octal != nil {
		return newError(ErrStrictOctalEscape, octal.Pos, "")
	}
	if switched {
		// The token after the prologue was read under sloppy rules.
		return p.seek(p.tok.Pos)
	}
	return nil
}

// endsDirective reports whether the token after a string literal makes
// the literal a statement of its own.
func (p *Parser) endsDirective() bool {
	t := p.tok.Type
	switch {
	case t == TokenSemicolon, t == TokenRBrace, t == TokenEOF:
		return true
	case !p.tok.NewlineBefore:
		return false
	}
	if _, ok := binaryOps[t]; ok || t.IsAssign() {
		return false
	}
	switch t {
	case TokenDot, TokenLBracket, TokenLParen, TokenComma, TokenQuestion,
		TokenTemplate, TokenTemplateHead:
		return false
	}
	return true
}

// body parses statements up to, not including, the closing brace.
func (p *Parser) body() error {
	if err := p.directives(); err != nil {
		return err
	}
	for p.tok.Type != TokenRBrace {
		if p.tok.Type == TokenEOF {
			return p.errorf(ErrExpectedToken, "} to close function body")
		}
		if err := p.statement(true); err != nil {
			return err
		}
	}
	return nil
}

// function compiles a nested function. The current token is the opening
// parenthesis of its parameters. arity, when not negative, is the exact
// parameter count required. The result is a literal of the enclosing
// function.
func (p *Parser) function(start Position, name Token, named bool, flags bytecode.CodeFlags, arity int) (int, error) {
	defer p.leave()
	if err := p.enter(); err != nil {
		return 0, err
	}

	outer := p.fs
	fs := p.openFunction(start, flags|bytecode.FlagFunction, name.Value)
	p.fs = fs
	defer func() {
		p.fs = outer
		fs.em.release()
	}()

	if err := p.parameters(); err != nil {
		return 0, err
	}
	if arity >= 0 && len(fs.params) != arity {
		return 0, newError(ErrUnexpectedToken, start, "accessor takes %d parameters, found %d", arity, len(fs.params))
	}
	if p.tok.Type != TokenLBrace {
		return 0, p.errorf(ErrExpectedToken, "{ to open function body, found %s", p.tok)
	}
	if err := p.next(); err != nil {
		return 0, err
	}
	if err := p.body(); err != nil {
		return 0, err
	}
	if err := p.checkParams(name, named); err != nil {
		return 0, err
	}
	fs.em.emit(op0(bytecode.OpReturnUndefined))
	code, err := p.link(fs)
	if err != nil {
		return 0, err
	}

	// The closing brace belongs to the function; what follows it is read
	// under the rules of the enclosing code.
	p.fs = outer
	p.lex.SetStrict(outer.strict)
	lit, ok := outer.lits.function(code)
	if !ok {
		return 0, p.tooManyLiterals()
	}
	return lit, p.next()
}

// arrow compiles an arrow function located by its pre-scan record and
// pushes it.
func (p *Parser) arrow(n *ScanInfo, noIn bool) (exprInfo, error) {
	start := p.tok.Pos
	outer := p.fs
	fs := p.openFunction(start, bytecode.FlagFunction|bytecode.FlagArrow, "")
	p.fs = fs
	defer func() {
		p.fs = outer
		fs.em.release()
	}()

	if p.tok.Type == TokenIdentifier {
		if err := p.param(p.tok); err != nil {
			return exprInfo{}, err
		}
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
	} else if err := p.parameters(); err != nil {
		return exprInfo{}, err
	}
	if err := p.boundary(BoundaryArrow, n, n.Locs[0]); err != nil {
		return exprInfo{}, err
	}
	if err := p.expect(TokenArrow); err != nil {
		return exprInfo{}, err
	}

	block := p.tok.Type == TokenLBrace
	if block {
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
		if err := p.body(); err != nil {
			return exprInfo{}, err
		}
		fs.em.emit(op0(bytecode.OpReturnUndefined))
	} else {
		if _, err := p.assignment(noIn); err != nil {
			return exprInfo{}, err
		}
		fs.em.emit(op0(bytecode.OpReturn))
	}
	if err := p.checkParams(Token{}, false); err != nil {
		return exprInfo{}, err
	}
	code, err := p.link(fs)
	if err != nil {
		return exprInfo{}, err
	}

	p.fs = outer
	p.lex.SetStrict(outer.strict)
	lit, ok := outer.lits.function(code)
	if !ok {
		return exprInfo{}, p.tooManyLiterals()
	}
	outer.em.emit(op1(bytecode.OpPushLiteral, lit))
	if block {
		return exprInfo{}, p.next()
	}
	return exprInfo{}, nil
}

// functionDeclaration compiles a declaration and hoists it: the binding is
// initialized on entry to the enclosing function, the last declaration of
// a name winning.
func (p *Parser) functionDeclaration() error {
	start := p.tok.Pos
	if err := p.next(); err != nil {
		return err
	}
	name := p.tok
	if name.Type != TokenIdentifier {
		return p.unexpected()
	}
	if err := p.checkBinding(name); err != nil {
		return err
	}
	if err := p.next(); err != nil {
		return err
	}
	fn, err := p.function(start, name, true, 0, -1)
	if err != nil {
		return err
	}
	lit, err := p.identLit(name.Value)
	if err != nil {
		return err
	}
	lits := p.fs.lits
	lits.mark(lit, litVar|litInitialized)
	lits.lits[lit].init = fn
	return nil
}

// ---------------------------------------------------------------------------
// Compilation units
// ---------------------------------------------------------------------------

// script compiles the whole source as global code.
func (p *Parser) script() (*bytecode.CompiledCode, error) {
	fs := p.openFunction(Position{Line: 1, Column: 1}, 0, "")
	p.fs = fs
	defer fs.em.release()
	p.lex.SetStrict(fs.strict)

	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.directives(); err != nil {
		return nil, err
	}
	for p.tok.Type != TokenEOF {
		if err := p.statement(true); err != nil {
			return nil, err
		}
	}
	fs.em.emit(op0(bytecode.OpReturnUndefined))
	return p.link(fs)
}

// functionUnit compiles source as the body of a function with the given
// parameter text, the way a function constructor does.
func (p *Parser) functionUnit(params, name string) (*bytecode.CompiledCode, error) {
	fs := p.openFunction(Position{Line: 1, Column: 1}, bytecode.FlagFunction, name)
	p.fs = fs
	defer fs.em.release()

	if err := p.paramText(NewLexer(params, p.limits)); err != nil {
		return nil, err
	}

	p.lex.SetStrict(fs.strict)
	if err := p.next(); err != nil {
		return nil, err
	}
	if err := p.directives(); err != nil {
		return nil, err
	}
	for p.tok.Type != TokenEOF {
		if err := p.statement(true); err != nil {
			return nil, err
		}
	}
	if err := p.checkParams(Token{}, false); err != nil {
		return nil, err
	}
	fs.em.emit(op0(bytecode.OpReturnUndefined))
	return p.link(fs)
}

// paramText parses a comma separated parameter list without parentheses.
func (p *Parser) paramText(lex *Lexer) error {
	tok, err := lex.Next()
	if err != nil || tok.Type == TokenEOF {
		return err
	}
	for {
		if err := p.param(tok); err != nil {
			return err
		}
		if tok, err = lex.Next(); err != nil {
			return err
		}
		switch tok.Type {
		case TokenEOF:
			return nil
		case TokenComma:
		default:
			return newError(ErrExpectedToken, tok.Pos, ", in parameter list, found %s", tok)
		}
		if tok, err = lex.Next(); err != nil {
			return err
		}
	}
}
