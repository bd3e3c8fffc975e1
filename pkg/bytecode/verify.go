package bytecode

import "fmt"

// VerifyError describes the first violation found in compiled code.
type VerifyError struct {
	Name   string // Function name, empty for scripts
	Offset int
	Reason string
}

func (e *VerifyError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("verify %s at %04d: %s", e.Name, e.Offset, e.Reason)
	}
	return fmt.Sprintf("verify at %04d: %s", e.Offset, e.Reason)
}

// Verify checks the structural invariants of c and every nested function:
// literal partitions are ordered and well-typed, every operand indexes the
// literal table, every branch lands on an instruction boundary, and a
// flow-sensitive replay of stack effects never goes negative, never
// exceeds StackLimit and agrees at every join point.
func Verify(c *CompiledCode) error {
	v := verifier{code: c}
	if err := v.run(); err != nil {
		return err
	}
	for _, lit := range c.Literals {
		if lit.Kind == LiteralFunction {
			if lit.Function == nil {
				return v.fail(0, "function literal without code")
			}
			if err := Verify(lit.Function); err != nil {
				return err
			}
		}
	}
	return nil
}

type verifier struct {
	code  *CompiledCode
	ins   []Instruction
	index map[int]int
}

func (v *verifier) fail(offset int, format string, args ...any) error {
	return &VerifyError{Name: v.code.Name, Offset: offset, Reason: fmt.Sprintf(format, args...)}
}

func (v *verifier) run() error {
	if err := v.checkPartitions(); err != nil {
		return err
	}
	ins, err := v.code.Instructions()
	if err != nil {
		return v.fail(0, "%v", err)
	}
	if len(ins) == 0 {
		return v.fail(0, "empty code")
	}
	v.ins = ins
	v.index = make(map[int]int, len(ins))
	for i, in := range ins {
		v.index[in.Offset] = i
	}

	for _, in := range ins {
		if err := v.checkOperands(in); err != nil {
			return err
		}
	}
	if err := v.checkLines(); err != nil {
		return err
	}
	return v.replayStack()
}

func (v *verifier) checkPartitions() error {
	c := v.code
	bounds := []uint16{c.ArgumentEnd, c.RegisterEnd, c.DefineEnd, c.InitializeEnd, c.IdentEnd, c.ConstLiteralEnd}
	prev := uint16(0)
	for _, b := range bounds {
		if b < prev {
			return v.fail(0, "literal partitions out of order: %v", bounds)
		}
		prev = b
	}
	if int(prev) > len(c.Literals) {
		return v.fail(0, "partition end %d beyond %d literals", prev, len(c.Literals))
	}
	if len(c.Literals) > 0xFF && c.Flags&FlagWideLiterals == 0 {
		return v.fail(0, "%d literals need wide operands", len(c.Literals))
	}

	for i, lit := range c.Literals {
		var ok bool
		switch {
		case i < int(c.ArgumentEnd):
			ok = lit.Kind == LiteralIdent || lit.Kind == LiteralUnused
		case i < int(c.IdentEnd):
			ok = lit.Kind == LiteralIdent
		case i < int(c.ConstLiteralEnd):
			ok = lit.Kind == LiteralString || lit.Kind == LiteralNumber
		default:
			ok = lit.Kind == LiteralFunction || lit.Kind == LiteralRegexp
		}
		if !ok {
			return v.fail(0, "literal %d (%s) in wrong partition", i, lit.Kind)
		}
	}
	return nil
}

func (v *verifier) checkOperands(in Instruction) error {
	c := v.code
	for i := 0; i < in.NumLits; i++ {
		if int(in.Literals[i]) >= len(c.Literals) {
			return v.fail(in.Offset, "%s literal %d out of range", in.Op, in.Literals[i])
		}
	}
	switch in.Op {
	case OpDefineVar:
		if idx := in.Literals[0]; idx < c.RegisterEnd || idx >= c.DefineEnd {
			return v.fail(in.Offset, "DEFINE_VAR of non-var literal %d", idx)
		}
	case OpInitializeVar:
		if idx := in.Literals[0]; idx < c.DefineEnd || idx >= c.InitializeEnd {
			return v.fail(in.Offset, "INITIALIZE_VAR of non-declaration literal %d", idx)
		}
		if c.Literals[in.Literals[1]].Kind != LiteralFunction {
			return v.fail(in.Offset, "INITIALIZE_VAR value is not a function")
		}
	}
	if in.Op.IsBranch() {
		t := in.Target()
		if _, ok := v.index[t]; !ok {
			return v.fail(in.Offset, "%s target %d is not an instruction boundary", in.Op, t)
		}
		if in.Distance == 0 {
			return v.fail(in.Offset, "%s targets itself", in.Op)
		}
	}
	return nil
}

func (v *verifier) checkLines() error {
	prev := -1
	for _, e := range v.code.Lines {
		off := int(e.Offset)
		if off <= prev {
			return v.fail(off, "line table not ascending")
		}
		if _, ok := v.index[off]; !ok && off != len(v.code.Code) {
			return v.fail(off, "line entry not on an instruction boundary")
		}
		prev = off
	}
	return nil
}

// replayStack walks every reachable path and checks stack depths.
func (v *verifier) replayStack() error {
	depth := make([]int, len(v.ins))
	for i := range depth {
		depth[i] = -1
	}
	limit := int(v.code.StackLimit)

	visit := func(i, d int, work *[]int, from int) error {
		if i >= len(v.ins) {
			return v.fail(from, "execution falls off the end of the code")
		}
		if d > limit {
			return v.fail(v.ins[i].Offset, "stack depth %d exceeds limit %d", d, limit)
		}
		switch depth[i] {
		case -1:
			depth[i] = d
			*work = append(*work, i)
		case d:
		default:
			return v.fail(v.ins[i].Offset, "stack depth %d disagrees with %d at join", d, depth[i])
		}
		return nil
	}

	work := []int{0}
	depth[0] = 0
	for len(work) > 0 {
		i := work[len(work)-1]
		work = work[:len(work)-1]
		in := v.ins[i]
		info := GetOpcodeInfo(in.Op)
		d := depth[i]

		fall := d + info.StackEffect(in.Arg)
		if fall < 0 {
			return v.fail(in.Offset, "%s underflows the stack at depth %d", in.Op, d)
		}
		if info.Flags&FlagEndsFlow == 0 {
			if err := visit(i+1, fall, &work, in.Offset); err != nil {
				return err
			}
		}
		if info.Width > 0 && info.Flags&FlagNoTakenFlow == 0 {
			taken := d + info.Taken
			if taken < 0 {
				return v.fail(in.Offset, "%s underflows the stack when taken", in.Op)
			}
			if err := visit(v.index[in.Target()], taken, &work, in.Offset); err != nil {
				return err
			}
		}
	}
	return nil
}
