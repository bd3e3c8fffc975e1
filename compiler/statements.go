package compiler

import (
	"github.com/chazu/scriptc/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Statements
// ---------------------------------------------------------------------------

func (p *Parser) push(kind stmtKind, label string) *stmtFrame {
	f := &stmtFrame{kind: kind, label: label}
	p.fs.frames = append(p.fs.frames, f)
	return f
}

func (p *Parser) pop() {
	p.fs.frames = p.fs.frames[:len(p.fs.frames)-1]
}

// statement parses one statement. top is set at the top level of a
// function body or script, where function declarations belong.
func (p *Parser) statement(top bool) error {
	defer p.leave()
	if err := p.enter(); err != nil {
		return err
	}
	tok := p.tok
	switch tok.Type {
	case TokenLBrace:
		return p.block()
	case TokenSemicolon:
		return p.next()
	case TokenFunction:
		if !top && p.fs.strict {
			return p.errorf(ErrStrictFunctionDeclaration, "")
		}
		return p.functionDeclaration()
	}

	p.fs.em.statement(tok.Pos, p.opts.Breakpoints)
	switch tok.Type {
	case TokenVar:
		if err := p.next(); err != nil {
			return err
		}
		if err := p.varDeclarations(false); err != nil {
			return err
		}
		return p.semicolon()
	case TokenIf:
		return p.ifStatement()
	case TokenFor:
		return p.forStatement()
	case TokenWhile:
		return p.whileStatement()
	case TokenDo:
		return p.doStatement()
	case TokenBreak:
		return p.jumpStatement(true)
	case TokenContinue:
		return p.jumpStatement(false)
	case TokenReturn:
		return p.returnStatement()
	case TokenThrow:
		return p.throwStatement()
	case TokenTry:
		return p.tryStatement()
	case TokenSwitch:
		return p.switchStatement()
	case TokenWith:
		return p.withStatement()
	case TokenDebugger:
		p.fs.em.emit(op0(bytecode.OpBreakpointEnabled))
		if err := p.next(); err != nil {
			return err
		}
		return p.semicolon()
	case TokenIdentifier:
		state := p.save()
		if err := p.next(); err != nil {
			return err
		}
		if p.tok.Type == TokenColon {
			return p.labelled(tok)
		}
		p.restore(state)
	}

	if _, err := p.expression(false); err != nil {
		return err
	}
	p.fs.em.emit(op0(bytecode.OpPop))
	return p.semicolon()
}

func (p *Parser) block() error {
	if err := p.expect(TokenLBrace); err != nil {
		return err
	}
	for p.tok.Type != TokenRBrace {
		if err := p.statement(false); err != nil {
			return err
		}
	}
	return p.next()
}

// varDeclarations parses a declaration list starting at its first name.
func (p *Parser) varDeclarations(noIn bool) error {
	for {
		lit, err := p.declare(p.tok)
		if err != nil {
			return err
		}
		if err := p.next(); err != nil {
			return err
		}
		if p.tok.Type == TokenAssign {
			if err := p.next(); err != nil {
				return err
			}
			if _, err := p.assignment(noIn); err != nil {
				return err
			}
			p.fs.em.emit(op1(bytecode.OpAssignIdent, lit))
		}
		if p.tok.Type != TokenComma {
			return nil
		}
		if err := p.next(); err != nil {
			return err
		}
	}
}

// condition parses a parenthesized expression.
func (p *Parser) condition() error {
	if err := p.expect(TokenLParen); err != nil {
		return err
	}
	if _, err := p.expression(false); err != nil {
		return err
	}
	return p.expect(TokenRParen)
}

func (p *Parser) ifStatement() error {
	em := p.fs.em
	if err := p.next(); err != nil {
		return err
	}
	if err := p.condition(); err != nil {
		return err
	}
	otherwise := em.forward(bytecode.OpBranchIfFalseForward)
	if err := p.statement(false); err != nil {
		return err
	}
	if p.tok.Type != TokenElse {
		em.resolve(otherwise)
		return nil
	}
	if err := p.next(); err != nil {
		return err
	}
	end := em.forward(bytecode.OpJumpForward)
	em.resolve(otherwise)
	if err := p.statement(false); err != nil {
		return err
	}
	em.resolve(end)
	return nil
}

// whileStatement emits the body first and the condition after it, so the
// loop runs one conditional branch per iteration:
//
//	jump cond; body: ...; cond: ...; branch-if-true body
func (p *Parser) whileStatement() error {
	n, err := p.construct(ScanWhile, p.tok.Pos)
	if err != nil {
		return err
	}
	if n == nil {
		return p.unscanned(ScanWhile)
	}
	em := p.fs.em
	if err := p.next(); err != nil {
		return err
	}
	if err := p.expect(TokenLParen); err != nil {
		return err
	}
	cond := p.save()
	enter := em.forward(bytecode.OpJumpForward)
	if err := p.seek(n.Locs[0]); err != nil {
		return err
	}
	if err := p.expect(TokenRParen); err != nil {
		return err
	}

	body := em.offset()
	f := p.push(stmtLoop, "")
	if err := p.statement(false); err != nil {
		return err
	}
	after := p.save()
	em.resolveAll(f.continues)
	em.resolve(enter)
	p.restore(cond)
	if _, err := p.expression(false); err != nil {
		return err
	}
	if err := p.boundary(BoundaryWhileEnd, n, n.Locs[0]); err != nil {
		return err
	}
	em.backward(bytecode.OpBranchIfTrueBackward, body)
	p.restore(after)
	p.pop()
	em.resolveAll(f.breaks)
	return nil
}

func (p *Parser) doStatement() error {
	em := p.fs.em
	if err := p.next(); err != nil {
		return err
	}
	body := em.offset()
	f := p.push(stmtLoop, "")
	if err := p.statement(false); err != nil {
		return err
	}
	if err := p.expect(TokenWhile); err != nil {
		return err
	}
	em.resolveAll(f.continues)
	if err := p.condition(); err != nil {
		return err
	}
	em.backward(bytecode.OpBranchIfTrueBackward, body)
	p.pop()
	em.resolveAll(f.breaks)
	if p.tok.Type == TokenSemicolon {
		return p.next()
	}
	return nil
}

func (p *Parser) forStatement() error {
	n, err := p.construct(ScanFor, p.tok.Pos)
	if err != nil {
		return err
	}
	if n == nil {
		return p.unscanned(ScanFor)
	}
	if err := p.next(); err != nil {
		return err
	}
	if err := p.expect(TokenLParen); err != nil {
		return err
	}
	if n.Kind == ScanFor {
		return p.forLoop(n)
	}
	return p.forIn(n)
}

// forLoop emits a three-clause loop with the condition last:
//
//	init; jump cond; body: ...; update; cond: ...; branch-if-true body
func (p *Parser) forLoop(n *ScanInfo) error {
	em := p.fs.em
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
		if _, err := p.expression(true); err != nil {
			return err
		}
		em.emit(op0(bytecode.OpPop))
	}
	if err := p.expect(TokenSemicolon); err != nil {
		return err
	}
	if err := p.boundary(BoundaryForCondition, n, n.Locs[0]); err != nil {
		return err
	}
	hasCond := p.tok.Type != TokenSemicolon
	cond := p.save()
	var enter branch
	if hasCond {
		enter = em.forward(bytecode.OpJumpForward)
	}
	if err := p.seek(n.Locs[2]); err != nil {
		return err
	}
	if err := p.expect(TokenRParen); err != nil {
		return err
	}

	body := em.offset()
	f := p.push(stmtLoop, "")
	if err := p.statement(false); err != nil {
		return err
	}
	after := p.save()
	em.resolveAll(f.continues)
	if err := p.seek(n.Locs[1]); err != nil {
		return err
	}
	if p.tok.Type != TokenRParen {
		if _, err := p.expression(false); err != nil {
			return err
		}
		em.emit(op0(bytecode.OpPop))
	}
	if err := p.boundary(BoundaryForEnd, n, n.Locs[2]); err != nil {
		return err
	}

	if hasCond {
		em.resolve(enter)
		p.restore(cond)
		if _, err := p.expression(false); err != nil {
			return err
		}
		if err := p.expect(TokenSemicolon); err != nil {
			return err
		}
		if err := p.boundary(BoundaryForUpdate, n, n.Locs[1]); err != nil {
			return err
		}
		em.backward(bytecode.OpBranchIfTrueBackward, body)
	} else {
		em.backward(bytecode.OpJumpBackward, body)
	}
	p.restore(after)
	p.pop()
	em.resolveAll(f.breaks)
	return nil
}

// atOf reports whether the current token is the contextual keyword of.
func (p *Parser) atOf() bool {
	return p.tok.Type == TokenIdentifier && p.tok.Value == "of" && !p.tok.Escaped
}

func (p *Parser) atIterationKeyword(kind ScanKind) bool {
	if kind == ScanForOf {
		return p.atOf()
	}
	return p.tok.Type == TokenIn
}

// forIn emits a for-in or for-of loop. The iterated expression comes
// first; the target is evaluated and assigned at the top of every
// iteration:
//
//	expr; create-context end; loop: target; get-next; assign; body;
//	has-next-backward loop; end:
func (p *Parser) forIn(n *ScanInfo) error {
	em := p.fs.em
	create, getNext, hasNext := bytecode.OpForInCreateContext, bytecode.OpForInGetNext, bytecode.OpForInHasNextBackward
	if n.Kind == ScanForOf {
		create, getNext, hasNext = bytecode.OpForOfCreateContext, bytecode.OpForOfGetNext, bytecode.OpForOfHasNextBackward
	}

	target := p.save()
	declared := p.tok.Type == TokenVar
	var ref reference
	if declared {
		if err := p.next(); err != nil {
			return err
		}
		lit, err := p.declare(p.tok)
		if err != nil {
			return err
		}
		if err := p.next(); err != nil {
			return err
		}
		if p.tok.Type == TokenAssign && n.Kind == ScanForIn {
			if err := p.next(); err != nil {
				return err
			}
			if _, err := p.assignment(true); err != nil {
				return err
			}
			em.emit(op1(bytecode.OpAssignIdent, lit))
		}
		if !p.atIterationKeyword(n.Kind) {
			return p.errorf(ErrExpectedToken, "%s, found %s", n.Kind, p.tok)
		}
		if err := p.next(); err != nil {
			return err
		}
		if err := p.boundary(BoundaryForInExpression, n, n.Locs[0]); err != nil {
			return err
		}
		ref = reference{kind: refIdent, lit: lit}
	} else if err := p.seek(n.Locs[0]); err != nil {
		return err
	}

	var err error
	if n.Kind == ScanForOf {
		_, err = p.assignment(false)
	} else {
		_, err = p.expression(false)
	}
	if err != nil {
		return err
	}
	if err := p.boundary(BoundaryForInEnd, n, n.Locs[1]); err != nil {
		return err
	}
	end := em.forward(create)
	f := p.push(stmtForIn, "")
	loop := em.offset()

	if !declared {
		p.restore(target)
		start := p.tok.Pos
		info, err := p.leftHandSide()
		if err != nil {
			return err
		}
		if !p.atIterationKeyword(n.Kind) {
			return p.errorf(ErrExpectedToken, "%s, found %s", n.Kind, p.tok)
		}
		if ref, err = p.reference(info, start); err != nil {
			return err
		}
		if err := p.next(); err != nil {
			return err
		}
		if err := p.boundary(BoundaryForInExpression, n, n.Locs[0]); err != nil {
			return err
		}
	}
	em.emit(op0(getNext))
	p.store(ref, false)

	if err := p.seek(n.Locs[1]); err != nil {
		return err
	}
	if err := p.expect(TokenRParen); err != nil {
		return err
	}
	if err := p.statement(false); err != nil {
		return err
	}
	em.resolveAll(f.continues)
	em.backward(hasNext, loop)
	p.pop()
	em.resolve(end)
	em.resolveAll(f.breaks)
	return nil
}

// switchStatement emits every case test first, in source order, then the
// clause bodies:
//
//	disc; case1; branch-if-strict-equal c1; ...; pop; jump default;
//	c1: body1; ...; default: ...; end:
func (p *Parser) switchStatement() error {
	n, err := p.construct(ScanSwitch, p.tok.Pos)
	if err != nil {
		return err
	}
	if n == nil {
		return p.unscanned(ScanSwitch)
	}
	em := p.fs.em
	if err := p.next(); err != nil {
		return err
	}
	if err := p.condition(); err != nil {
		return err
	}
	if err := p.boundary(BoundarySwitchBody, n, n.Locs[0]); err != nil {
		return err
	}
	body := p.save()

	var tests []branch
	for _, c := range n.Cases {
		if c.Default {
			continue
		}
		if err := p.seek(c.Expr); err != nil {
			return err
		}
		if _, err := p.expression(false); err != nil {
			return err
		}
		if err := p.boundary(BoundaryCaseColon, n, c.Colon); err != nil {
			return err
		}
		tests = append(tests, em.forward(bytecode.OpBranchIfStrictEqualForward))
	}
	em.emit(op0(bytecode.OpPop))
	fallback := em.forward(bytecode.OpJumpForward)

	p.restore(body)
	if err := p.expect(TokenLBrace); err != nil {
		return err
	}
	f := p.push(stmtSwitch, "")
	clause, test := 0, 0
	hasDefault := false
	for p.tok.Type != TokenRBrace {
		if p.tok.Type != TokenCase && p.tok.Type != TokenDefault {
			if err := p.statement(false); err != nil {
				return err
			}
			continue
		}
		if clause >= len(n.Cases) || n.Cases[clause].Keyword.Offset != p.tok.Pos.Offset {
			return p.mismatch(n, "unrecorded clause")
		}
		c := n.Cases[clause]
		clause++
		if c.Default {
			if hasDefault {
				return p.errorf(ErrMultipleDefaults, "")
			}
			hasDefault = true
			em.resolve(fallback)
			if err := p.next(); err != nil {
				return err
			}
		} else {
			em.resolve(tests[test])
			test++
			if err := p.seek(c.Colon); err != nil {
				return err
			}
		}
		if err := p.expect(TokenColon); err != nil {
			return err
		}
	}
	if clause != len(n.Cases) {
		return p.mismatch(n, "%d clauses recorded, %d parsed", len(n.Cases), clause)
	}
	if err := p.boundary(BoundarySwitchEnd, n, n.Locs[1]); err != nil {
		return err
	}
	if !hasDefault {
		em.resolve(fallback)
	}
	p.pop()
	em.resolveAll(f.breaks)
	return p.next()
}

// tryStatement emits a try context whose branch chains through the
// handlers:
//
//	try-create catch; block; catch finally; assign e; handler;
//	finally end; block; end: context-end
func (p *Parser) tryStatement() error {
	em := p.fs.em
	if err := p.next(); err != nil {
		return err
	}
	last := em.forward(bytecode.OpTryCreateContext)
	if err := p.guarded(); err != nil {
		return err
	}

	handled := false
	if p.tok.Type == TokenCatch {
		handled = true
		em.resolve(last)
		last = em.forward(bytecode.OpCatch)
		if err := p.next(); err != nil {
			return err
		}
		if err := p.expect(TokenLParen); err != nil {
			return err
		}
		name := p.tok
		if name.Type != TokenIdentifier {
			return p.unexpected()
		}
		if err := p.checkBinding(name); err != nil {
			return err
		}
		lit, err := p.identLit(name.Value)
		if err != nil {
			return err
		}
		// The catch parameter lives in its own scope.
		p.fs.lits.mark(lit, litNoRegister)
		p.fs.flags |= bytecode.FlagNeedsLexicalEnv
		if err := p.next(); err != nil {
			return err
		}
		if err := p.expect(TokenRParen); err != nil {
			return err
		}
		em.emit(op1(bytecode.OpAssignIdent, lit))
		if err := p.guarded(); err != nil {
			return err
		}
	}
	if p.tok.Type == TokenFinally {
		handled = true
		em.resolve(last)
		last = em.forward(bytecode.OpFinally)
		if err := p.next(); err != nil {
			return err
		}
		if err := p.guarded(); err != nil {
			return err
		}
	}
	if !handled {
		return p.errorf(ErrMissingCatchOrFinally, "")
	}
	em.resolve(last)
	em.emit(op0(bytecode.OpContextEnd))
	return nil
}

// guarded parses a block that runs inside a try context.
func (p *Parser) guarded() error {
	if p.tok.Type != TokenLBrace {
		return p.errorf(ErrExpectedToken, "{, found %s", p.tok)
	}
	p.push(stmtTry, "")
	defer p.pop()
	return p.block()
}

func (p *Parser) withStatement() error {
	if p.fs.strict {
		return p.errorf(ErrStrictWith, "")
	}
	em := p.fs.em
	if err := p.next(); err != nil {
		return err
	}
	if err := p.condition(); err != nil {
		return err
	}
	p.fs.noRegisters = true
	p.fs.flags |= bytecode.FlagNeedsLexicalEnv
	extent := em.forward(bytecode.OpWithCreateContext)
	p.push(stmtWith, "")
	if err := p.statement(false); err != nil {
		return err
	}
	p.pop()
	em.emit(op0(bytecode.OpContextEnd))
	em.resolve(extent)
	return nil
}

func (p *Parser) returnStatement() error {
	if !p.fs.function() {
		return p.errorf(ErrIllegalReturn, "")
	}
	em := p.fs.em
	if err := p.next(); err != nil {
		return err
	}
	switch t := p.tok.Type; {
	case t == TokenSemicolon, t == TokenRBrace, t == TokenEOF, p.tok.NewlineBefore:
		em.emit(op0(bytecode.OpReturnUndefined))
	default:
		if _, err := p.expression(false); err != nil {
			return err
		}
		em.emit(op0(bytecode.OpReturn))
	}
	return p.semicolon()
}

func (p *Parser) throwStatement() error {
	if err := p.next(); err != nil {
		return err
	}
	if p.tok.NewlineBefore {
		return p.errorf(ErrNewlineAfterThrow, "")
	}
	if _, err := p.expression(false); err != nil {
		return err
	}
	p.fs.em.emit(op0(bytecode.OpThrow))
	return p.semicolon()
}

func (p *Parser) jumpStatement(isBreak bool) error {
	pos := p.tok.Pos
	if err := p.next(); err != nil {
		return err
	}
	label := ""
	if p.tok.Type == TokenIdentifier && !p.tok.NewlineBefore {
		label = p.tok.Value
		if err := p.next(); err != nil {
			return err
		}
	}
	if err := p.jump(isBreak, label, pos); err != nil {
		return err
	}
	return p.semicolon()
}

// jump emits a break or continue. A jump that leaves a with, try or
// iteration context unwinds it on the way out.
func (p *Parser) jump(isBreak bool, label string, pos Position) error {
	frames := p.fs.frames
	target := -1
	for i := len(frames) - 1; i >= 0 && target < 0; i-- {
		f := frames[i]
		switch {
		case label == "":
			if f.isLoop() || isBreak && f.kind == stmtSwitch {
				target = i
			}
		case f.kind == stmtLabel && f.label == label:
			if isBreak {
				target = i
				continue
			}
			j := i + 1
			for j < len(frames) && frames[j].kind == stmtLabel {
				j++
			}
			if j == len(frames) || !frames[j].isLoop() {
				return newError(ErrIllegalContinue, pos, "label %s does not denote a loop", label)
			}
			target = j
		}
	}
	if target < 0 {
		switch {
		case label != "":
			return newError(ErrUndefinedLabel, pos, "%s", label)
		case isBreak:
			return newError(ErrIllegalBreak, pos, "")
		}
		return newError(ErrIllegalContinue, pos, "")
	}

	exit := isBreak && frames[target].holdsContext()
	for _, f := range frames[target+1:] {
		if f.holdsContext() {
			exit = true
		}
	}
	op := bytecode.OpJumpForward
	if exit {
		op = bytecode.OpJumpForwardExitContext
	}
	b := p.fs.em.forward(op)
	if f := frames[target]; isBreak {
		f.breaks = append(f.breaks, b)
	} else {
		f.continues = append(f.continues, b)
	}
	return nil
}

func (p *Parser) labelled(name Token) error {
	for _, f := range p.fs.frames {
		if f.kind == stmtLabel && f.label == name.Value {
			return newError(ErrDuplicateLabel, name.Pos, "%s", name.Value)
		}
	}
	if err := p.next(); err != nil {
		return err
	}
	f := p.push(stmtLabel, name.Value)
	if err := p.statement(false); err != nil {
		return err
	}
	p.pop()
	p.fs.em.resolveAll(f.breaks)
	return nil
}
