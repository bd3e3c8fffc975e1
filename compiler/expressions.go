package compiler

import (
	"github.com/chazu/scriptc/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Expressions
// ---------------------------------------------------------------------------

// exprKind is the syntactic shape of a parsed expression, which decides
// whether it can be assigned to and how a call on it binds this.
type exprKind uint8

const (
	exprValue  exprKind = iota
	exprIdent           // a bare identifier
	exprMember          // a property access
)

type exprInfo struct {
	kind exprKind
	name string // identifier name of an exprIdent
}

// refKind is the form of an assignment target once its access has been
// taken back from the emitter.
type refKind uint8

const (
	refIdent       refKind = iota // named binding
	refProp                       // obj key on the stack
	refPropLiteral                // obj on the stack, literal name
)

type reference struct {
	kind refKind
	lit  int
}

type binaryOp struct {
	prec    int
	op      bytecode.Opcode
	logical bool
}

var binaryOps = map[TokenType]binaryOp{
	TokenOr:             {prec: 1, op: bytecode.OpBranchIfLogicalTrueForward, logical: true},
	TokenAnd:            {prec: 2, op: bytecode.OpBranchIfLogicalFalseForward, logical: true},
	TokenPipe:           {prec: 3, op: bytecode.OpBitOr},
	TokenCaret:          {prec: 4, op: bytecode.OpBitXor},
	TokenAmp:            {prec: 5, op: bytecode.OpBitAnd},
	TokenEqual:          {prec: 6, op: bytecode.OpEqual},
	TokenNotEqual:       {prec: 6, op: bytecode.OpNotEqual},
	TokenStrictEqual:    {prec: 6, op: bytecode.OpStrictEqual},
	TokenStrictNotEqual: {prec: 6, op: bytecode.OpStrictNotEqual},
	TokenLess:           {prec: 7, op: bytecode.OpLess},
	TokenGreater:        {prec: 7, op: bytecode.OpGreater},
	TokenLessEqual:      {prec: 7, op: bytecode.OpLessEqual},
	TokenGreaterEqual:   {prec: 7, op: bytecode.OpGreaterEqual},
	TokenIn:             {prec: 7, op: bytecode.OpIn},
	TokenInstanceof:     {prec: 7, op: bytecode.OpInstanceof},
	TokenShl:            {prec: 8, op: bytecode.OpShl},
	TokenShr:            {prec: 8, op: bytecode.OpShr},
	TokenUshr:           {prec: 8, op: bytecode.OpUshr},
	TokenPlus:           {prec: 9, op: bytecode.OpAdd},
	TokenMinus:          {prec: 9, op: bytecode.OpSub},
	TokenStar:           {prec: 10, op: bytecode.OpMul},
	TokenSlash:          {prec: 10, op: bytecode.OpDiv},
	TokenPercent:        {prec: 10, op: bytecode.OpMod},
}

var compoundOps = map[TokenType]bytecode.Opcode{
	TokenPlusAssign:    bytecode.OpAdd,
	TokenMinusAssign:   bytecode.OpSub,
	TokenStarAssign:    bytecode.OpMul,
	TokenSlashAssign:   bytecode.OpDiv,
	TokenPercentAssign: bytecode.OpMod,
	TokenShlAssign:     bytecode.OpShl,
	TokenShrAssign:     bytecode.OpShr,
	TokenUshrAssign:    bytecode.OpUshr,
	TokenAmpAssign:     bytecode.OpBitAnd,
	TokenPipeAssign:    bytecode.OpBitOr,
	TokenCaretAssign:   bytecode.OpBitXor,
}

var unaryOps = map[TokenType]bytecode.Opcode{
	TokenPlus:  bytecode.OpPlus,
	TokenMinus: bytecode.OpNegate,
	TokenBang:  bytecode.OpLogicalNot,
	TokenTilde: bytecode.OpBitNot,
	TokenVoid:  bytecode.OpVoid,
}

// arrayAppendBatch bounds how many elements an array literal keeps on the
// stack before appending them.
const arrayAppendBatch = 64

// expression parses a comma expression.
func (p *Parser) expression(noIn bool) (exprInfo, error) {
	info, err := p.assignment(noIn)
	for err == nil && p.tok.Type == TokenComma {
		p.fs.em.emit(op0(bytecode.OpPop))
		if err = p.next(); err != nil {
			break
		}
		_, err = p.assignment(noIn)
		info = exprInfo{}
	}
	return info, err
}

// assignment parses an assignment expression, arrow functions included.
func (p *Parser) assignment(noIn bool) (exprInfo, error) {
	defer p.leave()
	if err := p.enter(); err != nil {
		return exprInfo{}, err
	}
	if t := p.tok.Type; t == TokenIdentifier || t == TokenLParen {
		n, err := p.construct(ScanArrow, p.tok.Pos)
		if err != nil {
			return exprInfo{}, err
		}
		if n != nil {
			return p.arrow(n, noIn)
		}
	}

	start := p.tok.Pos
	info, err := p.conditional(noIn)
	if err != nil || !p.tok.Type.IsAssign() {
		return info, err
	}
	op := p.tok.Type
	ref, err := p.reference(info, start)
	if err != nil {
		return exprInfo{}, err
	}
	if err := p.next(); err != nil {
		return exprInfo{}, err
	}
	if op != TokenAssign {
		p.load(ref)
	}
	if _, err := p.assignment(noIn); err != nil {
		return exprInfo{}, err
	}
	if op != TokenAssign {
		p.fs.em.emit(op0(compoundOps[op]))
	}
	p.store(ref, true)
	return exprInfo{}, nil
}

// reference turns the access just emitted for info into an assignment
// target, with the strict mode checks of a binding.
func (p *Parser) reference(info exprInfo, pos Position) (reference, error) {
	switch info.kind {
	case exprIdent:
		if p.fs.strict && (info.name == "eval" || info.name == "arguments") {
			return reference{}, newError(ErrStrictEvalArguments, pos, "%s", info.name)
		}
	case exprMember:
	default:
		return reference{}, newError(ErrInvalidAssignTarget, pos, "")
	}
	return p.takeReference(pos)
}

// takeReference takes the pending access back from the emitter. What it
// leaves on the stack is the base of the target.
func (p *Parser) takeReference(pos Position) (reference, error) {
	em := p.fs.em
	in, ok := em.unpend()
	if !ok {
		return reference{}, newError(ErrInternal, pos, "assignment target was not pending")
	}
	switch in.op {
	case bytecode.OpPushLiteral:
		return reference{kind: refIdent, lit: in.lits[0]}, nil
	case bytecode.OpPushTwoLiterals:
		em.emit(op1(bytecode.OpPushLiteral, in.lits[0]))
		return reference{kind: refIdent, lit: in.lits[1]}, nil
	case bytecode.OpPushThreeLiterals:
		em.emit(op2(bytecode.OpPushTwoLiterals, in.lits[0], in.lits[1]))
		return reference{kind: refIdent, lit: in.lits[2]}, nil
	case bytecode.OpPropGet:
		return reference{kind: refProp}, nil
	case bytecode.OpPropGetLiteral:
		return reference{kind: refPropLiteral, lit: in.lits[0]}, nil
	case bytecode.OpPushLiteralPropLiteral:
		em.emit(op1(bytecode.OpPushLiteral, in.lits[0]))
		return reference{kind: refPropLiteral, lit: in.lits[1]}, nil
	}
	return reference{}, newError(ErrInternal, pos, "%s is not an access", in.op)
}

// load pushes the current value of a target, keeping its base.
func (p *Parser) load(ref reference) {
	em := p.fs.em
	switch ref.kind {
	case refIdent:
		em.emit(op1(bytecode.OpPushLiteral, ref.lit))
	case refProp:
		em.emit(op0(bytecode.OpPushPropKeep))
	case refPropLiteral:
		em.emit(op1(bytecode.OpPushPropLiteralKeep, ref.lit))
	}
}

// store assigns the value on top of the stack to a target.
func (p *Parser) store(ref reference, push bool) {
	em := p.fs.em
	switch ref.kind {
	case refIdent:
		op := bytecode.OpAssignIdent
		if push {
			op = bytecode.OpAssignIdentPush
		}
		em.emit(op1(op, ref.lit))
	case refProp:
		op := bytecode.OpAssignProp
		if push {
			op = bytecode.OpAssignPropPush
		}
		em.emit(op0(op))
	case refPropLiteral:
		op := bytecode.OpAssignPropLiteral
		if push {
			op = bytecode.OpAssignPropLiteralPush
		}
		em.emit(op1(op, ref.lit))
	}
}

// update emits an increment or decrement of a target.
func (p *Parser) update(ref reference, incr, prefix bool) {
	var identOp, propOp bytecode.Opcode
	switch {
	case incr && prefix:
		identOp, propOp = bytecode.OpPreIncrIdentPush, bytecode.OpPreIncrProp
	case incr:
		identOp, propOp = bytecode.OpPostIncrIdentPush, bytecode.OpPostIncrProp
	case prefix:
		identOp, propOp = bytecode.OpPreDecrIdentPush, bytecode.OpPreDecrProp
	default:
		identOp, propOp = bytecode.OpPostDecrIdentPush, bytecode.OpPostDecrProp
	}
	em := p.fs.em
	switch ref.kind {
	case refIdent:
		em.emit(op1(identOp, ref.lit))
	case refPropLiteral:
		em.emit(op1(bytecode.OpPushLiteral, ref.lit))
		em.emit(op0(propOp))
	case refProp:
		em.emit(op0(propOp))
	}
}

// conditional parses a ternary expression.
func (p *Parser) conditional(noIn bool) (exprInfo, error) {
	info, err := p.binary(1, noIn)
	if err != nil || p.tok.Type != TokenQuestion {
		return info, err
	}
	em := p.fs.em
	if err := p.next(); err != nil {
		return exprInfo{}, err
	}
	otherwise := em.forward(bytecode.OpBranchIfFalseForward)
	depth := em.depth
	if _, err := p.assignment(false); err != nil {
		return exprInfo{}, err
	}
	if err := p.expect(TokenColon); err != nil {
		return exprInfo{}, err
	}
	end := em.forward(bytecode.OpJumpForward)
	em.resolve(otherwise)
	em.setDepth(depth)
	if _, err := p.assignment(noIn); err != nil {
		return exprInfo{}, err
	}
	em.resolve(end)
	return exprInfo{}, nil
}

// binary parses binary operators of at least minPrec by precedence
// climbing. Logical operators branch around their right operand.
func (p *Parser) binary(minPrec int, noIn bool) (exprInfo, error) {
	info, err := p.unary()
	if err != nil {
		return info, err
	}
	em := p.fs.em
	for {
		b, ok := binaryOps[p.tok.Type]
		if !ok || b.prec < minPrec || noIn && p.tok.Type == TokenIn {
			return info, nil
		}
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
		if b.logical {
			skip := em.forward(b.op)
			if _, err := p.binary(b.prec+1, noIn); err != nil {
				return exprInfo{}, err
			}
			em.resolve(skip)
		} else {
			if _, err := p.binary(b.prec+1, noIn); err != nil {
				return exprInfo{}, err
			}
			em.emit(op0(b.op))
		}
		info = exprInfo{}
	}
}

// unary parses prefix operators.
func (p *Parser) unary() (exprInfo, error) {
	defer p.leave()
	if err := p.enter(); err != nil {
		return exprInfo{}, err
	}
	tok := p.tok
	em := p.fs.em
	switch tok.Type {
	case TokenDelete:
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
		info, err := p.unary()
		if err != nil {
			return exprInfo{}, err
		}
		return exprInfo{}, p.delete(info, tok.Pos)

	case TokenTypeof:
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
		info, err := p.unary()
		if err != nil {
			return exprInfo{}, err
		}
		if info.kind == exprIdent {
			ref, err := p.takeReference(tok.Pos)
			if err != nil {
				return exprInfo{}, err
			}
			em.emit(op1(bytecode.OpTypeofIdent, ref.lit))
		} else {
			em.emit(op0(bytecode.OpTypeof))
		}
		return exprInfo{}, nil

	case TokenIncrement, TokenDecrement:
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
		start := p.tok.Pos
		info, err := p.unary()
		if err != nil {
			return exprInfo{}, err
		}
		ref, err := p.reference(info, start)
		if err != nil {
			return exprInfo{}, err
		}
		p.update(ref, tok.Type == TokenIncrement, true)
		return exprInfo{}, nil
	}

	if op, ok := unaryOps[tok.Type]; ok {
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
		if _, err := p.unary(); err != nil {
			return exprInfo{}, err
		}
		em.emit(op0(op))
		return exprInfo{}, nil
	}
	return p.postfix()
}

// delete emits the delete operator applied to info.
func (p *Parser) delete(info exprInfo, pos Position) error {
	em := p.fs.em
	switch info.kind {
	case exprIdent:
		if p.fs.strict {
			return newError(ErrStrictDelete, pos, "%s", info.name)
		}
		ref, err := p.takeReference(pos)
		if err != nil {
			return err
		}
		p.fs.lits.mark(ref.lit, litNoRegister)
		em.emit(op1(bytecode.OpDeleteIdent, ref.lit))
	case exprMember:
		ref, err := p.takeReference(pos)
		if err != nil {
			return err
		}
		if ref.kind == refPropLiteral {
			em.emit(op1(bytecode.OpPushLiteral, ref.lit))
		}
		em.emit(op0(bytecode.OpDelete))
	default:
		em.emit(op0(bytecode.OpPop))
		em.emit(op0(bytecode.OpPushTrue))
	}
	return nil
}

// postfix parses a left-hand side expression with an optional postfix
// increment or decrement.
func (p *Parser) postfix() (exprInfo, error) {
	start := p.tok.Pos
	info, err := p.leftHandSide()
	if err != nil {
		return info, err
	}
	t := p.tok.Type
	if t != TokenIncrement && t != TokenDecrement || p.tok.NewlineBefore {
		return info, nil
	}
	ref, err := p.reference(info, start)
	if err != nil {
		return exprInfo{}, err
	}
	p.update(ref, t == TokenIncrement, false)
	return exprInfo{}, p.next()
}

// leftHandSide parses member, new and call expressions.
func (p *Parser) leftHandSide() (exprInfo, error) {
	var info exprInfo
	var err error
	if p.tok.Type == TokenNew {
		info, err = p.newExpression()
	} else {
		info, err = p.primary()
	}
	if err != nil {
		return info, err
	}
	return p.tail(info, true)
}

// newExpression parses new with its optional argument list.
func (p *Parser) newExpression() (exprInfo, error) {
	defer p.leave()
	if err := p.enter(); err != nil {
		return exprInfo{}, err
	}
	if err := p.next(); err != nil {
		return exprInfo{}, err
	}
	var info exprInfo
	var err error
	if p.tok.Type == TokenNew {
		info, err = p.newExpression()
	} else {
		info, err = p.primary()
	}
	if err != nil {
		return exprInfo{}, err
	}
	if _, err := p.tail(info, false); err != nil {
		return exprInfo{}, err
	}
	n := 0
	if p.tok.Type == TokenLParen {
		if n, err = p.arguments(); err != nil {
			return exprInfo{}, err
		}
	}
	p.fs.em.emit(opArg(bytecode.OpNew, byte(n)))
	return exprInfo{}, nil
}

// tail parses property accesses after an operand and, when calls is set,
// call suffixes.
func (p *Parser) tail(info exprInfo, calls bool) (exprInfo, error) {
	em := p.fs.em
	for {
		switch p.tok.Type {
		case TokenDot:
			if err := p.next(); err != nil {
				return exprInfo{}, err
			}
			if p.tok.Type != TokenIdentifier && !p.tok.Type.IsKeyword() {
				return exprInfo{}, p.errorf(ErrExpectedToken, "property name after ., found %s", p.tok)
			}
			lit, err := p.stringLit(p.tok.Value)
			if err != nil {
				return exprInfo{}, err
			}
			em.emit(op1(bytecode.OpPropGetLiteral, lit))
			if err := p.next(); err != nil {
				return exprInfo{}, err
			}
			info = exprInfo{kind: exprMember}

		case TokenLBracket:
			if err := p.next(); err != nil {
				return exprInfo{}, err
			}
			if _, err := p.expression(false); err != nil {
				return exprInfo{}, err
			}
			if err := p.expect(TokenRBracket); err != nil {
				return exprInfo{}, err
			}
			em.emit(op0(bytecode.OpPropGet))
			info = exprInfo{kind: exprMember}

		case TokenLParen:
			if !calls {
				return info, nil
			}
			var err error
			if info, err = p.call(info); err != nil {
				return exprInfo{}, err
			}

		case TokenTemplate, TokenTemplateHead:
			return exprInfo{}, p.errorf(ErrTaggedTemplate, "")

		default:
			return info, nil
		}
	}
}

// call emits a call of the callee just parsed. Calls on a property pass
// the base object as this.
func (p *Parser) call(callee exprInfo) (exprInfo, error) {
	em := p.fs.em
	op := bytecode.OpCall
	switch {
	case callee.kind == exprMember:
		in, _ := em.unpend()
		switch in.op {
		case bytecode.OpPropGet:
			em.emit(op0(bytecode.OpPushPropReference))
		case bytecode.OpPropGetLiteral:
			em.emit(op1(bytecode.OpPushPropLiteralReference, in.lits[0]))
		case bytecode.OpPushLiteralPropLiteral:
			em.emit(op1(bytecode.OpPushLiteral, in.lits[0]))
			em.emit(op1(bytecode.OpPushPropLiteralReference, in.lits[1]))
		default:
			return exprInfo{}, p.errorf(ErrInternal, "callee %s is not an access", in.op)
		}
		op = bytecode.OpCallMethod
	case callee.kind == exprIdent && callee.name == "eval":
		op = bytecode.OpCallEval
		p.directEval()
	}
	n, err := p.arguments()
	if err != nil {
		return exprInfo{}, err
	}
	em.emit(opArg(op, byte(n)))
	return exprInfo{}, nil
}

// arguments parses a call argument list and returns its length.
func (p *Parser) arguments() (int, error) {
	if err := p.expect(TokenLParen); err != nil {
		return 0, err
	}
	n := 0
	if p.tok.Type != TokenRParen {
		for {
			if n >= p.limits.Arguments {
				return 0, p.errorf(ErrTooManyArguments, "more than %d", p.limits.Arguments)
			}
			if _, err := p.assignment(false); err != nil {
				return 0, err
			}
			n++
			if p.tok.Type != TokenComma {
				break
			}
			if err := p.next(); err != nil {
				return 0, err
			}
		}
	}
	return n, p.expect(TokenRParen)
}

// primary parses an operand.
func (p *Parser) primary() (exprInfo, error) {
	tok := p.tok
	em := p.fs.em
	push := func(op bytecode.Opcode) (exprInfo, error) {
		em.emit(op0(op))
		return exprInfo{}, p.next()
	}
	pushLit := func(lit int, err error) (exprInfo, error) {
		if err != nil {
			return exprInfo{}, err
		}
		em.emit(op1(bytecode.OpPushLiteral, lit))
		return exprInfo{}, p.next()
	}

	switch tok.Type {
	case TokenIdentifier:
		lit, err := p.identRef(tok)
		if err != nil {
			return exprInfo{}, err
		}
		em.emit(op1(bytecode.OpPushLiteral, lit))
		return exprInfo{kind: exprIdent, name: tok.Value}, p.next()
	case TokenThis:
		return push(bytecode.OpPushThis)
	case TokenNull:
		return push(bytecode.OpPushNull)
	case TokenTrue:
		return push(bytecode.OpPushTrue)
	case TokenFalse:
		return push(bytecode.OpPushFalse)
	case TokenNumber:
		return pushLit(p.numberLit(numberValue(tok)))
	case TokenString:
		return pushLit(p.stringLit(tok.Value))
	case TokenSlash, TokenSlashAssign, TokenRegexp:
		return p.regexp()
	case TokenTemplate, TokenTemplateHead:
		return p.template()
	case TokenLParen:
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
		info, err := p.expression(false)
		if err != nil {
			return exprInfo{}, err
		}
		return info, p.expect(TokenRParen)
	case TokenLBracket:
		return p.arrayLiteral()
	case TokenLBrace:
		return p.objectLiteral()
	case TokenFunction:
		return p.functionExpression()
	}
	return exprInfo{}, p.unexpected()
}

// regexp compiles a regular expression literal. A slash the lexer read
// as division is read again here, where an operand is expected.
func (p *Parser) regexp() (exprInfo, error) {
	tok := p.tok
	if tok.Type != TokenRegexp {
		var err error
		if tok, err = p.lex.RescanRegexp(tok); err != nil {
			return exprInfo{}, err
		}
		p.tok = tok
	}
	var program any
	if p.opts.Regexp != nil {
		prog, err := p.opts.Regexp.CompileRegexp(tok.Value, tok.Flags)
		if err != nil {
			return exprInfo{}, newError(ErrInvalidRegexp, tok.Pos, "/%s/%s: %v", tok.Value, tok.Flags, err)
		}
		program = prog
	}
	lit, ok := p.fs.lits.regexp(tok.Value, tok.Flags, program)
	if !ok {
		return exprInfo{}, p.tooManyLiterals()
	}
	p.fs.em.emit(op1(bytecode.OpPushLiteral, lit))
	return exprInfo{}, p.next()
}

// template emits a template literal as a chain of string concatenations.
func (p *Parser) template() (exprInfo, error) {
	em := p.fs.em
	head := p.tok
	lit, err := p.stringLit(head.Value)
	if err != nil {
		return exprInfo{}, err
	}
	em.emit(op1(bytecode.OpPushLiteral, lit))
	if head.Type == TokenTemplate {
		return exprInfo{}, p.next()
	}

	var n *ScanInfo
	if s := p.scans[head.Pos.Offset]; s != nil && s.Kind == ScanTemplate && s.Complete {
		delete(p.scans, head.Pos.Offset)
		n = s
	}
	for i := 0; ; i++ {
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
		if _, err := p.expression(false); err != nil {
			return exprInfo{}, err
		}
		em.emit(op0(bytecode.OpTemplateConcat))
		if n != nil && i < len(n.Locs) {
			if err := p.boundary(BoundaryTemplateSubstitution, n, n.Locs[i]); err != nil {
				return exprInfo{}, err
			}
		}
		part, err := p.lex.ContinueTemplate(p.tok)
		if err != nil {
			return exprInfo{}, err
		}
		if part.Value != "" {
			lit, err := p.stringLit(part.Value)
			if err != nil {
				return exprInfo{}, err
			}
			em.emit(op1(bytecode.OpPushLiteral, lit))
			em.emit(op0(bytecode.OpTemplateConcat))
		}
		p.tok = part
		if part.Type == TokenTemplateTail {
			return exprInfo{}, p.next()
		}
	}
}

// arrayLiteral emits an array literal. Elements are appended in batches
// so long literals keep a bounded stack.
func (p *Parser) arrayLiteral() (exprInfo, error) {
	em := p.fs.em
	em.emit(op0(bytecode.OpCreateArray))
	if err := p.next(); err != nil {
		return exprInfo{}, err
	}
	pending := 0
	for p.tok.Type != TokenRBracket {
		if p.tok.Type == TokenComma {
			em.emit(op0(bytecode.OpPushElision))
		} else if _, err := p.assignment(false); err != nil {
			return exprInfo{}, err
		}
		if pending++; pending == arrayAppendBatch {
			em.emit(opArg(bytecode.OpArrayAppend, byte(pending)))
			pending = 0
		}
		if p.tok.Type == TokenRBracket {
			break
		}
		if err := p.expect(TokenComma); err != nil {
			return exprInfo{}, err
		}
	}
	if pending > 0 {
		em.emit(opArg(bytecode.OpArrayAppend, byte(pending)))
	}
	return exprInfo{}, p.next()
}

// propSeen records the definitions an object literal made of one name.
type propSeen uint8

const (
	propData propSeen = 1 << iota
	propGetter
	propSetter
)

// objectLiteral emits an object literal.
func (p *Parser) objectLiteral() (exprInfo, error) {
	p.fs.em.emit(op0(bytecode.OpCreateObject))
	if err := p.next(); err != nil {
		return exprInfo{}, err
	}
	seen := make(map[string]propSeen)
	for p.tok.Type != TokenRBrace {
		if err := p.property(seen); err != nil {
			return exprInfo{}, err
		}
		if p.tok.Type != TokenComma {
			break
		}
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
	}
	return exprInfo{}, p.expect(TokenRBrace)
}

// propertyKey returns the canonical name of a property name token.
func propertyKey(tok Token) (string, bool) {
	switch {
	case tok.Type == TokenIdentifier, tok.Type == TokenString, tok.Type.IsKeyword():
		return tok.Value, true
	case tok.Type == TokenNumber:
		return numberToString(numberValue(tok)), true
	}
	return "", false
}

func (p *Parser) property(seen map[string]propSeen) error {
	tok := p.tok
	key, ok := propertyKey(tok)
	if !ok {
		return p.unexpected()
	}
	if err := p.next(); err != nil {
		return err
	}
	accessor := tok.Type == TokenIdentifier && !tok.Escaped && (tok.Value == "get" || tok.Value == "set")
	if accessor && p.tok.Type != TokenColon {
		return p.accessor(tok.Value == "get", seen)
	}
	if err := p.expect(TokenColon); err != nil {
		return err
	}
	if err := p.define(seen, key, propData, tok.Pos); err != nil {
		return err
	}
	lit, err := p.stringLit(key)
	if err != nil {
		return err
	}
	if _, err := p.assignment(false); err != nil {
		return err
	}
	p.fs.em.emit(op1(bytecode.OpSetProperty, lit))
	return nil
}

func (p *Parser) accessor(getter bool, seen map[string]propSeen) error {
	tok := p.tok
	key, ok := propertyKey(tok)
	if !ok {
		return p.unexpected()
	}
	kind, op, arity := propGetter, bytecode.OpSetGetter, 0
	if !getter {
		kind, op, arity = propSetter, bytecode.OpSetSetter, 1
	}
	if err := p.define(seen, key, kind, tok.Pos); err != nil {
		return err
	}
	lit, err := p.stringLit(key)
	if err != nil {
		return err
	}
	if err := p.next(); err != nil {
		return err
	}
	fn, err := p.function(tok.Pos, Token{}, false, 0, arity)
	if err != nil {
		return err
	}
	p.fs.em.emit(op2(op, lit, fn))
	return nil
}

// define checks a property definition against earlier ones of the same
// name: accessors never mix with data, an accessor kind appears once, and
// strict code defines data once.
func (p *Parser) define(seen map[string]propSeen, key string, kind propSeen, pos Position) error {
	prev := seen[key]
	var dup bool
	if kind == propData {
		dup = prev&(propGetter|propSetter) != 0 || prev&propData != 0 && p.fs.strict
	} else {
		dup = prev&propData != 0 || prev&kind != 0
	}
	if dup {
		return newError(ErrDuplicateProperty, pos, "%q", key)
	}
	seen[key] = prev | kind
	return nil
}

// functionExpression compiles a function expression and pushes it.
func (p *Parser) functionExpression() (exprInfo, error) {
	start := p.tok.Pos
	if err := p.next(); err != nil {
		return exprInfo{}, err
	}
	var name Token
	named := p.tok.Type == TokenIdentifier
	var flags bytecode.CodeFlags
	if named {
		name = p.tok
		flags = bytecode.FlagNamedFunctionExpr
		if err := p.next(); err != nil {
			return exprInfo{}, err
		}
	}
	fn, err := p.function(start, name, named, flags, -1)
	if err != nil {
		return exprInfo{}, err
	}
	p.fs.em.emit(op1(bytecode.OpPushLiteral, fn))
	return exprInfo{}, nil
}
