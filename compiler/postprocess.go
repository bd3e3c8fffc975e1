package compiler

import (
	"github.com/chazu/scriptc/pkg/bytecode"
)

// ---------------------------------------------------------------------------
// Post-processing: literal layout and bytecode compaction
// ---------------------------------------------------------------------------

// Literal table partitions, in table order.
const (
	partArgument = iota
	partRegister
	partVar
	partInit
	partIdent
	partConst
	partObject
	partCount
)

// linker turns the provisional stream of one function into final code.
type linker struct {
	fs     *funcState
	limits Limits

	order []int // final index to provisional index, -1 for an unused slot
	final []int // provisional index to final index
	ends  [partCount]int
	wide  bool

	// kept holds, per page and per instruction start, the final bytes of
	// instructions starting earlier in the same page; total holds the
	// final bytes of each page.
	kept  [][PageSize]uint8
	total []int
}

// link post-processes a finished function.
func (p *Parser) link(fs *funcState) (*bytecode.CompiledCode, error) {
	em := fs.em
	em.flush()
	if em.err != nil {
		return nil, em.err
	}
	l := &linker{fs: fs, limits: p.limits}
	if err := l.classify(); err != nil {
		return nil, err
	}
	l.measure()
	code, lines := l.encode()
	if len(code) > p.limits.CodeSize {
		return nil, newError(ErrCodeTooLarge, fs.start, "more than %d bytes", p.limits.CodeSize)
	}

	out := &bytecode.CompiledCode{
		Version:         bytecode.BytecodeVersion,
		Flags:           fs.flags,
		Name:            fs.name,
		ArgumentEnd:     uint16(l.ends[partArgument]),
		RegisterEnd:     uint16(l.ends[partRegister]),
		DefineEnd:       uint16(l.ends[partVar]),
		InitializeEnd:   uint16(l.ends[partInit]),
		IdentEnd:        uint16(l.ends[partIdent]),
		ConstLiteralEnd: uint16(l.ends[partConst]),
		StackLimit:      uint16(em.maxDepth),
		Literals:        l.literals(),
		Code:            code,
		Lines:           lines,
	}
	if l.wide {
		out.Flags |= bytecode.FlagWideLiterals
	}
	if len(lines) > 0 {
		out.Flags |= bytecode.FlagHasLineInfo
	}
	return out, nil
}

// classify assigns every provisional literal its final index. Arguments
// keep their positions; locals of eligible functions take registers up
// to the limit, the rest become named slots.
func (l *linker) classify() error {
	fs := l.fs
	lits := fs.lits.lits
	var parts [partCount][]int
	argument := make([]bool, len(lits))
	for _, i := range fs.params {
		if i >= 0 {
			argument[i] = true
		}
	}
	parts[partArgument] = fs.params

	registers := fs.function() && !fs.noRegisters
	for i, lit := range lits {
		if argument[i] {
			continue
		}
		part := partObject
		switch lit.kind {
		case bytecode.LiteralIdent:
			switch {
			case lit.flags&litInitialized != 0:
				part = partInit
			case lit.flags&litVar == 0:
				part = partIdent
			case registers && lit.flags&litNoRegister == 0 &&
				len(fs.params)+len(parts[partRegister]) < l.limits.Registers:
				part = partRegister
			default:
				part = partVar
			}
		case bytecode.LiteralString, bytecode.LiteralNumber:
			part = partConst
		}
		parts[part] = append(parts[part], i)
	}

	l.final = make([]int, len(lits))
	for part, members := range parts {
		for _, i := range members {
			if i >= 0 {
				l.final[i] = len(l.order)
			}
			l.order = append(l.order, i)
		}
		l.ends[part] = len(l.order)
	}
	if len(l.order) > l.limits.Literals {
		return newError(ErrTooManyLiterals, fs.start, "%d, limit %d", len(l.order), l.limits.Literals)
	}
	l.wide = len(l.order) > 0xFF
	return nil
}

func (l *linker) literals() []bytecode.Literal {
	pool := l.fs.lits
	out := make([]bytecode.Literal, len(l.order))
	for k, i := range l.order {
		if i < 0 {
			out[k] = bytecode.Literal{Kind: bytecode.LiteralUnused}
			continue
		}
		lit := pool.lits[i]
		out[k].Kind = lit.kind
		switch lit.kind {
		case bytecode.LiteralIdent, bytecode.LiteralString:
			out[k].Text = pool.text(i)
		case bytecode.LiteralNumber:
			out[k].Number = lit.number
		case bytecode.LiteralFunction:
			out[k].Function = lit.fn
		case bytecode.LiteralRegexp:
			out[k].Regexp = lit.re
		}
	}
	return out
}

// provisional describes one instruction of the provisional stream.
type provisional struct {
	op       bytecode.Opcode
	info     bytecode.OpcodeInfo
	size     int
	distance int // branch distance, zero for other instructions
}

func (l *linker) decode(off int) provisional {
	code := l.fs.em.code
	op := bytecode.Opcode(code.at(off))
	in := provisional{op: op, info: bytecode.GetOpcodeInfo(op), size: 1}
	for _, k := range in.info.Operands {
		switch k {
		case bytecode.OperandLiteral:
			in.size += provisionalLiteralWidth
		case bytecode.OperandByte:
			in.size++
		case bytecode.OperandBranch:
			for i := 1; i <= provisionalBranchWidth; i++ {
				in.distance = in.distance<<8 | int(code.at(off+in.size))
				in.size++
			}
		}
	}
	return in
}

// removed reports whether the instruction is a jump to the instruction
// right after it.
func (in provisional) removed() bool {
	return in.op == bytecode.OpJumpForward.WithBranchWidth(provisionalBranchWidth) &&
		in.distance == in.size
}

// finalSize returns the encoded size after compaction. Compaction only
// shrinks instructions, so a width chosen from the provisional distance
// always holds the final one.
func (l *linker) finalSize(in provisional) int {
	if in.removed() {
		return 0
	}
	litWidth := 1
	if l.wide {
		litWidth = 2
	}
	n := 1
	for _, k := range in.info.Operands {
		switch k {
		case bytecode.OperandLiteral:
			n += litWidth
		case bytecode.OperandByte:
			n++
		case bytecode.OperandBranch:
			n += bytecode.BranchWidthFor(in.distance)
		}
	}
	return n
}

// measure computes the kept byte counters of every page.
func (l *linker) measure() {
	code := l.fs.em.code
	l.kept = make([][PageSize]uint8, code.pageCount())
	l.total = make([]int, code.pageCount())
	for off := 0; off < code.Len(); {
		in := l.decode(off)
		pg := off / PageSize
		l.kept[pg][off%PageSize] = uint8(l.total[pg])
		l.total[pg] += l.finalSize(in)
		off += in.size
	}
}

// keptAt returns the final bytes before the instruction starting at off,
// counted from the start of its page.
func (l *linker) keptAt(off int) int {
	return int(l.kept[off/PageSize][off%PageSize])
}

// offsetOf maps a provisional instruction start to its final offset.
func (l *linker) offsetOf(off int) int {
	if off >= l.fs.em.code.Len() {
		n := 0
		for _, t := range l.total {
			n += t
		}
		return n
	}
	n := l.keptAt(off)
	for pg := 0; pg < off/PageSize; pg++ {
		n += l.total[pg]
	}
	return n
}

// distance returns the final distance between two provisional instruction
// starts, walking only the pages between them.
func (l *linker) distance(from, to int) int {
	if to < from {
		from, to = to, from
	}
	if to >= l.fs.em.code.Len() {
		return l.offsetOf(to) - l.offsetOf(from)
	}
	d := l.keptAt(to) - l.keptAt(from)
	for pg := from / PageSize; pg < to/PageSize; pg++ {
		d += l.total[pg]
	}
	return d
}

// encode writes the final code: the binding prologue followed by the
// compacted stream. It returns the code and its line table.
func (l *linker) encode() ([]byte, []bytecode.LineEntry) {
	fs := l.fs
	em := fs.em
	litWidth := 1
	if l.wide {
		litWidth = 2
	}
	var out []byte
	putLit := func(i int) {
		if litWidth == 2 {
			out = append(out, byte(i>>8))
		}
		out = append(out, byte(i))
	}

	// Declared names come into existence on entry; function declarations
	// are bound before any statement runs.
	for k := l.ends[partRegister]; k < l.ends[partVar]; k++ {
		out = append(out, byte(bytecode.OpDefineVar))
		putLit(k)
	}
	for k := l.ends[partVar]; k < l.ends[partInit]; k++ {
		out = append(out, byte(bytecode.OpInitializeVar))
		putLit(k)
		putLit(l.final[fs.lits.lits[l.order[k]].init])
	}
	for _, i := range fs.params {
		if i >= 0 && fs.lits.has(i, litInitialized) {
			out = append(out, byte(bytecode.OpAssignLiteralIdent))
			putLit(l.final[i])
			putLit(l.final[fs.lits.lits[i].init])
		}
	}
	prologue := len(out)

	code := em.code
	for off := 0; off < code.Len(); {
		in := l.decode(off)
		if in.removed() {
			off += in.size
			continue
		}
		op := in.op
		if in.info.Width > 0 {
			op = op.WithBranchWidth(bytecode.BranchWidthFor(in.distance))
		}
		out = append(out, byte(op))
		pos := off + 1
		for _, k := range in.info.Operands {
			switch k {
			case bytecode.OperandLiteral:
				putLit(l.final[int(code.at(pos))<<8|int(code.at(pos+1))])
				pos += provisionalLiteralWidth
			case bytecode.OperandByte:
				out = append(out, code.at(pos))
				pos++
			case bytecode.OperandBranch:
				target := off + in.distance
				if op.IsBackward() {
					target = off - in.distance
				}
				w := bytecode.BranchWidthFor(in.distance)
				var buf [3]byte
				bytecode.PutDistance(buf[:w], w, l.distance(off, target))
				out = append(out, buf[:w]...)
				pos += provisionalBranchWidth
			}
		}
		off += in.size
	}

	var lines []bytecode.LineEntry
	if em.lineInfo {
		for _, m := range em.lines {
			if m.offset >= code.Len() {
				continue
			}
			e := bytecode.LineEntry{
				Offset: uint32(prologue + l.offsetOf(m.offset)),
				Line:   uint32(m.line),
				Column: uint32(m.column),
			}
			if n := len(lines); n > 0 && lines[n-1].Offset == e.Offset {
				lines[n-1] = e
				continue
			}
			lines = append(lines, e)
		}
	}
	return out, lines
}
