package compiler

import (
	"github.com/chazu/scriptc/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Emitter: instruction choke point with a one-slot peephole
// ---------------------------------------------------------------------------

// instr is an instruction request. Literal operands are provisional
// literal pool indexes.
type instr struct {
	op   bytecode.Opcode
	lits [3]int
	nlit int
	arg  byte
}

func op0(op bytecode.Opcode) instr { return instr{op: op} }

func op1(op bytecode.Opcode, a int) instr {
	return instr{op: op, lits: [3]int{a}, nlit: 1}
}

func op2(op bytecode.Opcode, a, b int) instr {
	return instr{op: op, lits: [3]int{a, b}, nlit: 2}
}

func op3(op bytecode.Opcode, a, b, c int) instr {
	return instr{op: op, lits: [3]int{a, b, c}, nlit: 3}
}

func opArg(op bytecode.Opcode, arg byte) instr { return instr{op: op, arg: arg} }

func (in instr) effect() int {
	return bytecode.GetOpcodeInfo(in.op).StackEffect(in.arg)
}

// Provisional operand widths. Post-processing narrows both.
const (
	provisionalLiteralWidth = 2
	provisionalBranchWidth  = 3
)

// branch is a forward branch waiting for its target: the stream offset of
// the branch opcode.
type branch int

// lineMark records the source line of a statement starting at a stream
// offset.
type lineMark struct {
	offset int
	line   int
	column int
}

// emitter writes the instruction stream of one function. It holds at most
// one pending instruction so the next request can combine with it. Every
// flow boundary flushes. The first error sticks and is reported by the
// parser at its next token.
type emitter struct {
	code     *arena
	pending  instr
	has      bool
	depth    int
	maxDepth int
	limits   Limits
	at       Position // source position for error reports
	lines    []lineMark
	lineInfo bool
	err      error
}

func newEmitter(pool *PagePool, limits Limits, lineInfo bool) *emitter {
	return &emitter{code: newArena(pool), limits: limits, lineInfo: lineInfo}
}

func (e *emitter) fail(code ErrorCode, format string, args ...any) {
	if e.err == nil {
		e.err = newError(code, e.at, format, args...)
	}
}

// adjust applies a stack effect and tracks the high-water mark.
func (e *emitter) adjust(n int) {
	e.depth += n
	if e.depth < 0 {
		e.fail(ErrInternal, "operand stack underflow")
		e.depth = 0
	}
	if e.depth > e.maxDepth {
		e.maxDepth = e.depth
		if e.maxDepth > e.limits.Stack {
			e.fail(ErrStackLimit, "needs more than %d slots", e.limits.Stack)
		}
	}
}

// setDepth resets the running depth at a join point reached only by
// branches, such as the second arm of a conditional.
func (e *emitter) setDepth(d int) {
	e.depth = d
}

// emit requests one instruction.
func (e *emitter) emit(in instr) {
	e.adjust(in.effect())
	if e.has && e.combine(in) {
		return
	}
	e.flush()
	e.pending, e.has = in, true
}

// combine merges in with the pending instruction when a combined form
// exists. Stack effects of the combined forms equal the sum of the parts.
func (e *emitter) combine(in instr) bool {
	p := &e.pending
	switch {
	case in.op == bytecode.OpPushLiteral:
		switch p.op {
		case bytecode.OpPushLiteral:
			*p = op2(bytecode.OpPushTwoLiterals, p.lits[0], in.lits[0])
			return true
		case bytecode.OpPushTwoLiterals:
			*p = op3(bytecode.OpPushThreeLiterals, p.lits[0], p.lits[1], in.lits[0])
			return true
		}

	case in.op == bytecode.OpPropGetLiteral:
		if base, ok := e.splitLastPush(); ok {
			*p = op2(bytecode.OpPushLiteralPropLiteral, base, in.lits[0])
			return true
		}

	case in.op == bytecode.OpAssignIdent || in.op == bytecode.OpAssignIdentPush:
		if value, ok := e.splitLastPush(); ok {
			op := bytecode.OpAssignLiteralIdent
			if in.op == bytecode.OpAssignIdentPush {
				op = bytecode.OpAssignLiteralIdentPush
			}
			*p = op2(op, in.lits[0], value)
			return true
		}

	case in.op == bytecode.OpPop:
		if plain, ok := popForms[p.op]; ok {
			p.op = plain
			return true
		}

	default:
		base, nlits, ok := in.op.BinaryForm()
		if !ok || nlits != 0 {
			return false
		}
		switch p.op {
		case bytecode.OpPushLiteral:
			*p = op1(base+1, p.lits[0])
			return true
		case bytecode.OpPushTwoLiterals:
			*p = op2(base+2, p.lits[0], p.lits[1])
			return true
		case bytecode.OpPushThreeLiterals:
			e.write(op1(bytecode.OpPushLiteral, p.lits[0]))
			*p = op2(base+2, p.lits[1], p.lits[2])
			return true
		}
	}
	return false
}

// splitLastPush detaches the last literal of a pending literal push,
// writing out whatever precedes it. The pending slot must be overwritten
// by the caller when ok is true.
func (e *emitter) splitLastPush() (int, bool) {
	p := e.pending
	switch p.op {
	case bytecode.OpPushLiteral:
		return p.lits[0], true
	case bytecode.OpPushTwoLiterals:
		e.write(op1(bytecode.OpPushLiteral, p.lits[0]))
		return p.lits[1], true
	case bytecode.OpPushThreeLiterals:
		e.write(op2(bytecode.OpPushTwoLiterals, p.lits[0], p.lits[1]))
		return p.lits[2], true
	}
	return 0, false
}

// popForms maps result-pushing forms to the forms that discard the result.
var popForms = map[bytecode.Opcode]bytecode.Opcode{
	bytecode.OpAssignIdentPush:        bytecode.OpAssignIdent,
	bytecode.OpAssignLiteralIdentPush: bytecode.OpAssignLiteralIdent,
	bytecode.OpAssignPropPush:         bytecode.OpAssignProp,
	bytecode.OpAssignPropLiteralPush:  bytecode.OpAssignPropLiteral,
	bytecode.OpPreIncrIdentPush:       bytecode.OpIncrIdent,
	bytecode.OpPostIncrIdentPush:      bytecode.OpIncrIdent,
	bytecode.OpPreDecrIdentPush:       bytecode.OpDecrIdent,
	bytecode.OpPostDecrIdentPush:      bytecode.OpDecrIdent,
	bytecode.OpPreIncrProp:            bytecode.OpIncrProp,
	bytecode.OpPostIncrProp:           bytecode.OpIncrProp,
	bytecode.OpPreDecrProp:            bytecode.OpDecrProp,
	bytecode.OpPostDecrProp:           bytecode.OpDecrProp,
}

// unpend removes and returns the pending instruction, undoing its stack
// effect. The parser uses it to turn the last access into an assignment
// target.
func (e *emitter) unpend() (instr, bool) {
	if !e.has {
		return instr{}, false
	}
	in := e.pending
	e.has = false
	e.depth -= in.effect()
	return in, true
}

// peek returns the pending instruction.
func (e *emitter) peek() (instr, bool) {
	return e.pending, e.has
}

// flush writes the pending instruction.
func (e *emitter) flush() {
	if e.has {
		e.has = false
		e.write(e.pending)
	}
}

func (e *emitter) write(in instr) {
	e.code.appendByte(byte(in.op))
	lit := 0
	for _, k := range bytecode.GetOpcodeInfo(in.op).Operands {
		switch k {
		case bytecode.OperandLiteral:
			v := in.lits[lit]
			lit++
			e.code.append(byte(v>>8), byte(v))
		case bytecode.OperandByte:
			e.code.appendByte(in.arg)
		}
	}
	e.checkSize()
}

func (e *emitter) checkSize() {
	if e.code.Len() > e.limits.CodeSize {
		e.fail(ErrCodeTooLarge, "more than %d bytes", e.limits.CodeSize)
	}
}

// offset flushes and returns the current stream position, a valid branch
// target.
func (e *emitter) offset() int {
	e.flush()
	return e.code.Len()
}

// forward emits a forward branch of op's family with a placeholder
// distance, applying the fall-through stack effect.
func (e *emitter) forward(op bytecode.Opcode) branch {
	e.flush()
	op = op.WithBranchWidth(provisionalBranchWidth)
	e.adjust(bytecode.GetOpcodeInfo(op).Stack)
	b := branch(e.code.Len())
	e.code.append(byte(op), 0, 0, 0)
	e.checkSize()
	return b
}

// resolve points b at the current position.
func (e *emitter) resolve(b branch) {
	e.patch(int(b), e.offset()-int(b))
}

// resolveAll resolves every branch of a list.
func (e *emitter) resolveAll(bs []branch) {
	for _, b := range bs {
		e.resolve(b)
	}
}

// backward emits a branch of op's family to an earlier target.
func (e *emitter) backward(op bytecode.Opcode, target int) {
	e.flush()
	if e.code.Len() == target {
		// An empty loop body; a branch may not target itself.
		e.write(op0(bytecode.OpNop))
	}
	op = op.WithBranchWidth(provisionalBranchWidth)
	e.adjust(bytecode.GetOpcodeInfo(op).Stack)
	pos := e.code.Len()
	e.code.append(byte(op), 0, 0, 0)
	e.checkSize()
	e.patch(pos, pos-target)
}

func (e *emitter) patch(pos, distance int) {
	if distance > bytecode.MaxBranchDistance {
		e.fail(ErrCodeTooLarge, "branch distance %d", distance)
		return
	}
	for i := provisionalBranchWidth; i >= 1; i-- {
		e.code.set(pos+i, byte(distance))
		distance >>= 8
	}
}

// statement marks a statement boundary: it flushes, records the line and
// emits the breakpoint hook when enabled.
func (e *emitter) statement(pos Position, breakpoints bool) {
	e.flush()
	if e.lineInfo {
		n := len(e.lines)
		switch {
		case n > 0 && e.lines[n-1].offset == e.code.Len():
			e.lines[n-1] = lineMark{e.code.Len(), pos.Line, pos.Column}
		case n == 0 || e.lines[n-1].line != pos.Line:
			e.lines = append(e.lines, lineMark{e.code.Len(), pos.Line, pos.Column})
		}
	}
	if breakpoints {
		e.write(op0(bytecode.OpBreakpointDisabled))
	}
}

// release returns the arena pages.
func (e *emitter) release() {
	e.code.release()
}
