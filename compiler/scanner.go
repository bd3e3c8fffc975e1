package compiler

// ---------------------------------------------------------------------------
// Pre-scanner: advisory lookahead over constructs the parser emits out of
// source order
// ---------------------------------------------------------------------------

// ScanKind tags a scanner info node.
type ScanKind uint8

const (
	ScanFor      ScanKind = iota // Locs: condition start, update start, ")"
	ScanForIn                    // Locs: expression start, ")"
	ScanForOf                    // Locs: expression start, ")"
	ScanWhile                    // Locs: ")"
	ScanSwitch                   // Locs: "{", "}"; Cases
	ScanArrow                    // Locs: "=>"
	ScanTemplate                 // Locs: closing "}" of every substitution
)

var scanKindNames = [...]string{"for", "for-in", "for-of", "while", "switch", "arrow", "template"}

func (k ScanKind) String() string {
	if int(k) < len(scanKindNames) {
		return scanKindNames[k]
	}
	return "scan"
}

// matches reports whether a node of kind k answers a request for want.
// The kind of a for statement is only known once its header is scanned.
func (k ScanKind) matches(want ScanKind) bool {
	if want == ScanFor {
		return k == ScanFor || k == ScanForIn || k == ScanForOf
	}
	return k == want
}

// ScanCase locates one clause of a switch body.
type ScanCase struct {
	Keyword Position // "case" or "default"
	Expr    Position // first token of the case expression
	Colon   Position
	Default bool
}

// ScanInfo is one advisory record produced by the pre-scanner. Trigger is
// the first token of the construct and identifies the node.
type ScanInfo struct {
	Kind     ScanKind
	Trigger  Position
	Locs     []Position
	Cases    []ScanCase
	Complete bool // every location was recorded

	next *ScanInfo
}

type scanMode uint8

const (
	scanStatement scanMode = iota
	scanPrimary
	scanPostPrimary
	scanPropertyName
)

type scanFrameKind uint8

const (
	frameRoot scanFrameKind = iota
	frameBlock
	frameObject
	frameParen
	frameBracket
	frameTemplate
	frameForHead
	frameWhileHead
	frameSwitchHead
	frameSwitchBody
	frameHead   // parenthesized header of if, with or catch
	frameParams // formal parameters
)

type scanFrame struct {
	kind     scanFrameKind
	start    Position
	node     *ScanInfo
	after    scanMode // mode once the frame closes
	primary  bool     // paren opened where an operand was expected
	segment  int      // semicolons seen in a for header
	ternary  int      // open "?" awaiting ":"
	caseOpen bool     // switch body: case expression awaiting ":"
}

// errScanStop ends a scan quietly; the parser reports the real problem.
type errScanStop struct{}

func (errScanStop) Error() string { return "scan stopped" }

// scanner runs the reduced state machine. It owns its lexer so the parser's
// cursor is never disturbed.
type scanner struct {
	lex   *Lexer
	tok   Token
	mode  scanMode
	stack []scanFrame
	head  *ScanInfo
	count int

	onNext func(Position) // records the position of the next token
	step   int            // tokens read so far

	identStep  int // step of the last identifier read as an operand
	identPos   Position
	closedStep int // step of the last ")" closing an operand position group
	closedPos  Position

	want      int // rescan: trigger offset of the construct to complete
	stopNode  *ScanInfo
	stopArrow bool
	complete  bool
}

func newScanner(source string, limits Limits) *scanner {
	s := &scanner{lex: NewLexer(source, limits), want: -1}
	s.stack = []scanFrame{{kind: frameRoot}}
	return s
}

// Scan pre-scans source and returns its info nodes in source order. Only
// limit errors are reported; other problems end the scan early and leave
// them for the parser. complete reports whether the scan reached the end
// of input with every bracket closed.
func Scan(source string, limits Limits) (nodes []*ScanInfo, complete bool, err error) {
	s := newScanner(source, limits)
	if err := s.run(); err != nil {
		return nil, false, err
	}
	return s.nodes(), s.complete, nil
}

// rescan scans the single construct starting at trigger and returns its
// node, or nil when the scan could not complete it.
func rescan(source string, limits Limits, kind ScanKind, trigger Position) (*ScanInfo, error) {
	s := newScanner(source, limits)
	s.want = trigger.Offset
	s.lex.Seek(trigger, TokenEOF)
	if kind == ScanArrow {
		s.stopArrow = true
		s.mode = scanPrimary
	}
	if err := s.run(); err != nil {
		return nil, err
	}
	for n := s.head; n != nil; n = n.next {
		if n.Trigger.Offset == trigger.Offset && n.Kind.matches(kind) && n.Complete {
			return n, nil
		}
	}
	return nil, nil
}

// nodes reverses the discovery list once and returns it as a slice.
func (s *scanner) nodes() []*ScanInfo {
	var prev *ScanInfo
	for n := s.head; n != nil; {
		next := n.next
		n.next = prev
		prev, n = n, next
	}
	s.head = prev
	out := make([]*ScanInfo, 0, s.count)
	for n := s.head; n != nil; n = n.next {
		out = append(out, n)
	}
	return out
}

func (s *scanner) record(kind ScanKind, trigger Position) *ScanInfo {
	n := &ScanInfo{Kind: kind, Trigger: trigger, next: s.head}
	s.head = n
	s.count++
	if s.want >= 0 && trigger.Offset == s.want && s.stopNode == nil {
		s.stopNode = n
	}
	return n
}

// run scans until the end of input or a stop condition. Limit errors are
// returned; everything else is swallowed.
func (s *scanner) run() error {
	err := s.loop()
	if err == nil {
		return nil
	}
	if e, ok := err.(*Error); ok && e.Kind == KindLimit {
		return err
	}
	return nil
}

func (s *scanner) next() error {
	tok, err := s.lex.Next()
	if err != nil {
		return err
	}
	s.tok = tok
	s.step++
	if s.onNext != nil {
		f := s.onNext
		s.onNext = nil
		f(tok.Pos)
	}
	return nil
}

func (s *scanner) top() *scanFrame { return &s.stack[len(s.stack)-1] }

func (s *scanner) push(f scanFrame) {
	s.stack = append(s.stack, f)
}

func (s *scanner) done() bool {
	return s.stopNode != nil && s.stopNode.Complete
}

func (s *scanner) loop() error {
	if err := s.next(); err != nil {
		return err
	}
	for s.tok.Type != TokenEOF {
		var err error
		switch s.mode {
		case scanStatement:
			err = s.statement()
		case scanPrimary:
			err = s.primary()
		case scanPostPrimary:
			err = s.postPrimary()
		case scanPropertyName:
			err = s.propertyName()
		}
		if err != nil {
			return err
		}
		if s.done() {
			return nil
		}
		if err := s.next(); err != nil {
			return err
		}
		if s.stopArrow && len(s.stack) == 1 {
			// The group closed; the token after it decides.
			if s.tok.Type == TokenArrow {
				return s.arrow()
			}
			return nil
		}
	}
	s.complete = len(s.stack) == 1
	return nil
}

// statement handles a token at the start of a statement.
func (s *scanner) statement() error {
	tok := s.tok
	switch tok.Type {
	case TokenLBrace:
		s.push(scanFrame{kind: frameBlock, start: tok.Pos, after: scanStatement})
	case TokenRBrace:
		return s.close()
	case TokenSemicolon:
		return s.semicolon()
	case TokenVar, TokenReturn, TokenThrow:
		s.mode = scanPrimary
	case TokenIf, TokenWith, TokenCatch:
		return s.header(frameHead, nil)
	case TokenFor:
		return s.header(frameForHead, s.record(ScanFor, tok.Pos))
	case TokenWhile:
		return s.header(frameWhileHead, s.record(ScanWhile, tok.Pos))
	case TokenSwitch:
		return s.header(frameSwitchHead, s.record(ScanSwitch, tok.Pos))
	case TokenDo, TokenElse, TokenTry, TokenFinally:
	case TokenFunction:
		return s.function(scanStatement)
	case TokenBreak, TokenContinue:
		if err := s.next(); err != nil {
			return err
		}
		s.mode = scanPostPrimary
		if s.tok.Type == TokenIdentifier && !s.tok.NewlineBefore {
			return nil
		}
		return s.postPrimary()
	case TokenDebugger:
		s.mode = scanPostPrimary
	case TokenCase, TokenDefault:
		return s.clause()
	default:
		s.mode = scanPrimary
		return s.primary()
	}
	return nil
}

// clause records a case or default clause of a switch body.
func (s *scanner) clause() error {
	top := s.top()
	if top.kind != frameSwitchBody {
		return errScanStop{}
	}
	node := top.node
	node.Cases = append(node.Cases, ScanCase{Keyword: s.tok.Pos, Default: s.tok.Type == TokenDefault})
	idx := len(node.Cases) - 1
	if node.Cases[idx].Default {
		if err := s.next(); err != nil {
			return err
		}
		if s.tok.Type != TokenColon {
			return errScanStop{}
		}
		node.Cases[idx].Colon = s.tok.Pos
		s.mode = scanStatement
		return nil
	}
	s.onNext = func(p Position) { node.Cases[idx].Expr = p }
	top.caseOpen = true
	s.mode = scanPrimary
	return nil
}

// header opens the parenthesized part of a statement.
func (s *scanner) header(kind scanFrameKind, node *ScanInfo) error {
	start := s.tok.Pos
	if err := s.next(); err != nil {
		return err
	}
	if s.tok.Type != TokenLParen {
		return errScanStop{}
	}
	s.push(scanFrame{kind: kind, start: start, node: node, after: scanStatement})
	s.mode = scanPrimary
	return nil
}

// function consumes "function name? (" and opens the parameter list.
func (s *scanner) function(after scanMode) error {
	if err := s.next(); err != nil {
		return err
	}
	if s.tok.Type == TokenIdentifier {
		if err := s.next(); err != nil {
			return err
		}
	}
	if s.tok.Type != TokenLParen {
		return errScanStop{}
	}
	s.push(scanFrame{kind: frameParams, start: s.tok.Pos, after: after})
	s.mode = scanPrimary
	return nil
}

func (s *scanner) semicolon() error {
	top := s.top()
	if top.kind == frameForHead && top.node.Kind == ScanFor {
		top.segment++
		node, seg := top.node, top.segment
		if seg > 2 {
			return errScanStop{}
		}
		s.onNext = func(p Position) { node.Locs = append(node.Locs[:seg-1], p) }
		s.mode = scanPrimary
		return nil
	}
	if top.kind != frameRoot && top.kind != frameBlock && top.kind != frameSwitchBody {
		return errScanStop{}
	}
	s.mode = scanStatement
	return nil
}

// primary handles a token where an operand is expected.
func (s *scanner) primary() error {
	tok := s.tok
	switch tok.Type {
	case TokenIdentifier:
		s.identStep, s.identPos = s.step, tok.Pos
		s.mode = scanPostPrimary
	case TokenNumber, TokenString, TokenRegexp, TokenTemplate,
		TokenThis, TokenNull, TokenTrue, TokenFalse:
		s.mode = scanPostPrimary
	case TokenSlash, TokenSlashAssign:
		re, err := s.lex.RescanRegexp(tok)
		if err != nil {
			return err
		}
		s.tok = re
		s.mode = scanPostPrimary
	case TokenTemplateHead:
		s.template()
	case TokenLParen:
		s.push(scanFrame{kind: frameParen, start: tok.Pos, primary: true, after: scanPostPrimary})
	case TokenLBracket:
		s.push(scanFrame{kind: frameBracket, start: tok.Pos, after: scanPostPrimary})
	case TokenLBrace:
		s.push(scanFrame{kind: frameObject, start: tok.Pos, after: scanPostPrimary})
		s.mode = scanPropertyName
	case TokenFunction:
		return s.function(scanPostPrimary)
	case TokenBang, TokenTilde, TokenPlus, TokenMinus, TokenIncrement, TokenDecrement,
		TokenTypeof, TokenVoid, TokenDelete, TokenNew, TokenVar:
	case TokenComma:
		if s.top().kind != frameBracket {
			return errScanStop{}
		}
	case TokenRParen, TokenRBracket, TokenRBrace:
		return s.close()
	case TokenSemicolon:
		return s.semicolon()
	default:
		return errScanStop{}
	}
	return nil
}

func (s *scanner) template() {
	node := s.record(ScanTemplate, s.tok.Pos)
	s.push(scanFrame{kind: frameTemplate, start: s.tok.Pos, node: node, after: scanPostPrimary})
	s.mode = scanPrimary
}

// postPrimary handles a token after a complete operand.
func (s *scanner) postPrimary() error {
	tok := s.tok
	top := s.top()
	forHead := top.kind == frameForHead && top.segment == 0 && top.node.Kind == ScanFor
	switch {
	case tok.Type == TokenIn && forHead:
		s.forIn(ScanForIn)
	case tok.Type == TokenIdentifier && tok.Value == "of" && !tok.Escaped && forHead:
		s.forIn(ScanForOf)
	case tok.Type == TokenArrow:
		return s.arrow()
	case tok.Type == TokenQuestion:
		top.ternary++
		s.mode = scanPrimary
	case tok.Type == TokenColon:
		return s.colon()
	case tok.Type == TokenComma:
		s.mode = scanPrimary
		if top.kind == frameObject {
			s.mode = scanPropertyName
		}
	case tok.Type == TokenDot:
		if err := s.next(); err != nil {
			return err
		}
		if s.tok.Type != TokenIdentifier && !s.tok.Type.IsKeyword() {
			return errScanStop{}
		}
	case tok.Type == TokenLParen:
		s.push(scanFrame{kind: frameParen, start: tok.Pos, after: scanPostPrimary})
		s.mode = scanPrimary
	case tok.Type == TokenLBracket:
		s.push(scanFrame{kind: frameBracket, start: tok.Pos, after: scanPostPrimary})
		s.mode = scanPrimary
	case tok.Type == TokenRParen || tok.Type == TokenRBracket || tok.Type == TokenRBrace:
		return s.close()
	case tok.Type == TokenSemicolon:
		return s.semicolon()
	case tok.Type == TokenIncrement || tok.Type == TokenDecrement:
		if tok.NewlineBefore {
			s.mode = scanPrimary
		}
	case isBinaryOperator(tok.Type) || tok.Type.IsAssign() || tok.Type == TokenInstanceof || tok.Type == TokenIn:
		s.mode = scanPrimary
	case tok.Type == TokenTemplate:
	case tok.Type == TokenTemplateHead:
		s.template()
	default:
		// Automatic semicolon insertion: the token starts a new statement.
		s.mode = scanStatement
		return s.statement()
	}
	return nil
}

func (s *scanner) forIn(kind ScanKind) {
	node := s.top().node
	node.Kind = kind
	node.Locs = node.Locs[:0]
	s.onNext = func(p Position) { node.Locs = append(node.Locs, p) }
	s.mode = scanPrimary
}

// arrow records an arrow function whose parameters are the previous
// token: an identifier or a closed paren group.
func (s *scanner) arrow() error {
	var n *ScanInfo
	switch {
	case s.identStep == s.step-1:
		n = s.record(ScanArrow, s.identPos)
	case s.closedStep == s.step-1:
		n = s.record(ScanArrow, s.closedPos)
	default:
		return errScanStop{}
	}
	n.Locs = []Position{s.tok.Pos}
	n.Complete = true
	if err := s.next(); err != nil {
		return err
	}
	if s.tok.Type == TokenLBrace {
		s.push(scanFrame{kind: frameBlock, start: s.tok.Pos, after: scanPostPrimary})
		s.mode = scanStatement
		return nil
	}
	s.mode = scanPrimary
	return s.primary()
}

func (s *scanner) colon() error {
	top := s.top()
	switch {
	case top.ternary > 0:
		top.ternary--
		s.mode = scanPrimary
	case top.kind == frameObject:
		s.mode = scanPrimary
	case top.kind == frameSwitchBody && top.caseOpen:
		top.caseOpen = false
		cases := top.node.Cases
		cases[len(cases)-1].Colon = s.tok.Pos
		s.mode = scanStatement
	case top.kind == frameRoot || top.kind == frameBlock || top.kind == frameSwitchBody:
		// Label.
		s.mode = scanStatement
	default:
		return errScanStop{}
	}
	return nil
}

func isPropertyNameToken(t Token) bool {
	return t.Type == TokenIdentifier || t.Type == TokenString || t.Type == TokenNumber || t.Type.IsKeyword()
}

// propertyName handles a token at a property name position of an object
// literal.
func (s *scanner) propertyName() error {
	tok := s.tok
	if tok.Type == TokenRBrace {
		return s.close()
	}
	if !isPropertyNameToken(tok) {
		return errScanStop{}
	}
	accessor := tok.Type == TokenIdentifier && !tok.Escaped && (tok.Value == "get" || tok.Value == "set")
	if err := s.next(); err != nil {
		return err
	}
	switch {
	case s.tok.Type == TokenColon:
		s.mode = scanPrimary
		return nil
	case accessor && isPropertyNameToken(s.tok):
		if err := s.next(); err != nil {
			return err
		}
		if s.tok.Type != TokenLParen {
			return errScanStop{}
		}
		s.push(scanFrame{kind: frameParams, start: s.tok.Pos, after: scanPostPrimary})
		s.mode = scanPrimary
		return nil
	}
	return errScanStop{}
}

// close pops the frame matching a closing token.
func (s *scanner) close() error {
	tok := s.tok
	top := *s.top()
	if top.ternary != 0 {
		return errScanStop{}
	}
	switch tok.Type {
	case TokenRParen:
		switch top.kind {
		case frameParen, frameHead, frameForHead, frameWhileHead, frameSwitchHead, frameParams:
		default:
			return errScanStop{}
		}
	case TokenRBracket:
		if top.kind != frameBracket {
			return errScanStop{}
		}
	case TokenRBrace:
		switch top.kind {
		case frameBlock, frameObject, frameSwitchBody, frameTemplate:
		default:
			return errScanStop{}
		}
	}
	s.stack = s.stack[:len(s.stack)-1]
	s.mode = top.after

	switch top.kind {
	case frameParen:
		if top.primary {
			s.closedStep, s.closedPos = s.step, top.start
		}
	case frameForHead:
		node := top.node
		switch {
		case node.Kind == ScanFor && top.segment == 2 && len(node.Locs) == 2:
			node.Locs = append(node.Locs, tok.Pos)
			node.Complete = true
		case node.Kind != ScanFor && len(node.Locs) == 1:
			node.Locs = append(node.Locs, tok.Pos)
			node.Complete = true
		}
	case frameWhileHead:
		top.node.Locs = []Position{tok.Pos}
		top.node.Complete = true
	case frameSwitchHead:
		if err := s.next(); err != nil {
			return err
		}
		if s.tok.Type != TokenLBrace {
			return errScanStop{}
		}
		top.node.Locs = []Position{s.tok.Pos}
		s.push(scanFrame{kind: frameSwitchBody, start: s.tok.Pos, node: top.node, after: scanStatement})
		s.mode = scanStatement
	case frameSwitchBody:
		if top.caseOpen {
			return errScanStop{}
		}
		top.node.Locs = append(top.node.Locs, tok.Pos)
		top.node.Complete = len(top.node.Locs) == 2
	case frameParams:
		if err := s.next(); err != nil {
			return err
		}
		if s.tok.Type != TokenLBrace {
			return errScanStop{}
		}
		s.push(scanFrame{kind: frameBlock, start: s.tok.Pos, after: top.after})
		s.mode = scanStatement
	case frameTemplate:
		part, err := s.lex.ContinueTemplate(tok)
		if err != nil {
			return err
		}
		s.tok = part
		top.node.Locs = append(top.node.Locs, tok.Pos)
		if part.Type == TokenTemplateMiddle {
			s.push(top)
			s.mode = scanPrimary
			return nil
		}
		top.node.Complete = true
	}
	return nil
}

func isBinaryOperator(t TokenType) bool {
	return t >= TokenLess && t <= TokenOr && t != TokenIncrement && t != TokenDecrement &&
		t != TokenBang && t != TokenTilde
}
