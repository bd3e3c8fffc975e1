package bytecode

import (
	"fmt"
	"strings"
)

// Disassemble returns a human-readable bytecode listing for the code,
// including nested functions.
func (c *CompiledCode) Disassemble() string {
	return c.DisassembleWithName("")
}

// DisassembleWithName returns a human-readable bytecode listing with a name header.
func (c *CompiledCode) DisassembleWithName(name string) string {
	var sb strings.Builder
	c.disassembleTo(&sb, name)
	return sb.String()
}

func (c *CompiledCode) disassembleTo(sb *strings.Builder, name string) {
	if name == "" {
		name = c.Name
	}
	if name == "" {
		name = "<script>"
		if c.Flags&FlagFunction != 0 {
			name = "<anonymous>"
		}
	}

	// Header
	sb.WriteString(fmt.Sprintf("; === %s ===\n", name))
	sb.WriteString(fmt.Sprintf("; Script Bytecode v%d\n", c.Version))
	sb.WriteString(fmt.Sprintf("; Flags: 0x%04X%s\n", c.Flags, flagNames(c.Flags)))
	sb.WriteString(fmt.Sprintf("; Arguments: %d, Registers: %d, Stack: %d\n",
		c.ArgumentEnd, int(c.RegisterEnd)-int(c.ArgumentEnd), c.StackLimit))

	// Literal table
	if len(c.Literals) > 0 {
		sb.WriteString(fmt.Sprintf("; Literals (%d):\n", len(c.Literals)))
		for i, lit := range c.Literals {
			sb.WriteString(fmt.Sprintf(";   [%3d] %-8s %-8s %s\n", i, c.partitionName(i), lit.Kind, lit))
		}
	}
	sb.WriteString("\n")

	// Code
	w := c.LiteralWidth()
	line := uint32(0)
	for offset := 0; offset < len(c.Code); {
		in, err := Decode(c.Code, offset, w)
		if err != nil {
			sb.WriteString(fmt.Sprintf("%04d  <%v>\n", offset, err))
			break
		}
		if l := c.LineAt(offset); l != line && l != 0 {
			line = l
			sb.WriteString(fmt.Sprintf("      ; line %d\n", line))
		}
		sb.WriteString(fmt.Sprintf("%04d  %s\n", offset, c.formatInstruction(in)))
		offset += in.Size
	}

	for _, lit := range c.Literals {
		if lit.Kind == LiteralFunction && lit.Function != nil {
			sb.WriteString("\n")
			lit.Function.disassembleTo(sb, "")
		}
	}
}

func flagNames(f CodeFlags) string {
	names := []struct {
		flag CodeFlags
		name string
	}{
		{FlagStrict, "STRICT"},
		{FlagWideLiterals, "WIDE"},
		{FlagFunction, "FUNCTION"},
		{FlagArrow, "ARROW"},
		{FlagNeedsArguments, "ARGUMENTS"},
		{FlagNeedsLexicalEnv, "LEXICAL_ENV"},
		{FlagHasLineInfo, "LINES"},
		{FlagNamedFunctionExpr, "NAMED"},
	}
	var sb strings.Builder
	for _, n := range names {
		if f&n.flag != 0 {
			sb.WriteString(" [" + n.name + "]")
		}
	}
	return sb.String()
}

func (c *CompiledCode) partitionName(i int) string {
	switch {
	case i < int(c.ArgumentEnd):
		return "arg"
	case i < int(c.RegisterEnd):
		return "reg"
	case i < int(c.DefineEnd):
		return "var"
	case i < int(c.InitializeEnd):
		return "init"
	case i < int(c.IdentEnd):
		return "ident"
	case i < int(c.ConstLiteralEnd):
		return "const"
	}
	return "object"
}

// formatInstruction renders one decoded instruction.
func (c *CompiledCode) formatInstruction(in Instruction) string {
	var sb strings.Builder
	sb.WriteString(in.Op.String())
	for i := 0; i < in.NumLits; i++ {
		idx := int(in.Literals[i])
		sb.WriteString(fmt.Sprintf(" %d", idx))
		if idx < len(c.Literals) {
			sb.WriteString(fmt.Sprintf("(%s)", truncate(c.Literals[idx].String(), 24)))
		}
	}
	info := GetOpcodeInfo(in.Op)
	for _, k := range info.Operands {
		switch k {
		case OperandByte:
			sb.WriteString(fmt.Sprintf(" %d", in.Arg))
		case OperandBranch:
			sb.WriteString(fmt.Sprintf(" -> %04d", in.Target()))
		}
	}
	return sb.String()
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n-3] + "..."
	}
	return s
}

// DisassembleToLines returns the disassembly of the code section only,
// one instruction per line.
func (c *CompiledCode) DisassembleToLines() []string {
	var lines []string
	w := c.LiteralWidth()
	for offset := 0; offset < len(c.Code); {
		in, err := Decode(c.Code, offset, w)
		if err != nil {
			lines = append(lines, fmt.Sprintf("<%v>", err))
			break
		}
		lines = append(lines, c.formatInstruction(in))
		offset += in.Size
	}
	return lines
}

// InstructionCount returns the number of instructions in the code section.
func (c *CompiledCode) InstructionCount() int {
	ins, err := c.Instructions()
	if err != nil {
		return 0
	}
	return len(ins)
}
