package bytecode

import (
	"encoding/binary"
	"fmt"
	"math"
)

// BytecodeVersion is the current bytecode format version.
// Increment when making incompatible changes to the format.
const BytecodeVersion uint16 = 1

// CodeFlags contains compilation flags for a compiled unit.
type CodeFlags uint16

const (
	// FlagStrict marks strict mode code.
	FlagStrict CodeFlags = 1 << iota

	// FlagWideLiterals means literal operands are two bytes wide.
	FlagWideLiterals

	// FlagFunction marks function code, as opposed to a global script.
	FlagFunction

	// FlagArrow marks arrow function code.
	FlagArrow

	// FlagNeedsArguments means the body references the arguments object.
	FlagNeedsArguments

	// FlagNeedsLexicalEnv means bindings must live in a lexical environment
	// because of closures, with, direct eval or catch scopes.
	FlagNeedsLexicalEnv

	// FlagHasLineInfo indicates the line table is present.
	FlagHasLineInfo

	// FlagNamedFunctionExpr marks a function expression that binds its own name.
	FlagNamedFunctionExpr
)

// LiteralKind tags an entry of the literal table.
type LiteralKind uint8

const (
	LiteralUnused LiteralKind = iota // Placeholder slot, e.g. a shadowed duplicate argument
	LiteralIdent
	LiteralString
	LiteralNumber
	LiteralFunction
	LiteralRegexp
)

// String returns a human-readable name for LiteralKind.
func (k LiteralKind) String() string {
	switch k {
	case LiteralUnused:
		return "unused"
	case LiteralIdent:
		return "ident"
	case LiteralString:
		return "string"
	case LiteralNumber:
		return "number"
	case LiteralFunction:
		return "function"
	case LiteralRegexp:
		return "regexp"
	default:
		return fmt.Sprintf("LiteralKind(%d)", k)
	}
}

// RegexpLiteral is a validated regular expression literal. Program holds
// whatever the regexp collaborator produced and is not serialized.
type RegexpLiteral struct {
	Pattern string `cbor:"1,keyasint"`
	Flags   string `cbor:"2,keyasint,omitempty"`
	Program any    `cbor:"-"`
}

// Literal is one entry of the final literal table. Text holds identifier
// names and string values in CESU-8: supplementary characters appear as
// two three-byte surrogate sequences.
type Literal struct {
	Kind     LiteralKind    `cbor:"1,keyasint"`
	Text     string         `cbor:"2,keyasint,omitempty"`
	Number   float64        `cbor:"3,keyasint,omitempty"`
	Function *CompiledCode  `cbor:"4,keyasint,omitempty"`
	Regexp   *RegexpLiteral `cbor:"5,keyasint,omitempty"`
}

// String renders the literal for disassembly.
func (l Literal) String() string {
	switch l.Kind {
	case LiteralIdent:
		return l.Text
	case LiteralString:
		return fmt.Sprintf("%q", l.Text)
	case LiteralNumber:
		return formatNumber(l.Number)
	case LiteralFunction:
		if l.Function != nil && l.Function.Name != "" {
			return "<function " + l.Function.Name + ">"
		}
		return "<function>"
	case LiteralRegexp:
		if l.Regexp != nil {
			return "/" + l.Regexp.Pattern + "/" + l.Regexp.Flags
		}
		return "<regexp>"
	default:
		return "<unused>"
	}
}

func formatNumber(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e21 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%g", v)
}

// LineEntry maps a bytecode offset to the source line of the statement
// starting there.
type LineEntry struct {
	Offset uint32 `cbor:"1,keyasint"`
	Line   uint32 `cbor:"2,keyasint"`
	Column uint32 `cbor:"3,keyasint,omitempty"`
}

// CompiledCode is the immutable result of compiling a script or function.
//
// The literal table is partitioned in this order, each End field marking
// the exclusive end of its partition:
//
//	[0, ArgumentEnd)                formal arguments
//	[ArgumentEnd, RegisterEnd)      register-allocated locals
//	[RegisterEnd, DefineEnd)        var-declared names (DEFINE_VAR)
//	[DefineEnd, InitializeEnd)      function declarations (INITIALIZE_VAR)
//	[InitializeEnd, IdentEnd)       free identifiers
//	[IdentEnd, ConstLiteralEnd)     strings and numbers
//	[ConstLiteralEnd, len)          functions and regular expressions
type CompiledCode struct {
	Version         uint16      `cbor:"1,keyasint"`
	Flags           CodeFlags   `cbor:"2,keyasint"`
	Name            string      `cbor:"3,keyasint,omitempty"`
	ArgumentEnd     uint16      `cbor:"4,keyasint"`
	RegisterEnd     uint16      `cbor:"5,keyasint"`
	DefineEnd       uint16      `cbor:"6,keyasint"`
	InitializeEnd   uint16      `cbor:"7,keyasint"`
	IdentEnd        uint16      `cbor:"8,keyasint"`
	ConstLiteralEnd uint16      `cbor:"9,keyasint"`
	StackLimit      uint16      `cbor:"10,keyasint"`
	Literals        []Literal   `cbor:"11,keyasint"`
	Code            []byte      `cbor:"12,keyasint"`
	Lines           []LineEntry `cbor:"13,keyasint,omitempty"`
}

// LiteralWidth returns the encoded width of literal operands.
func (c *CompiledCode) LiteralWidth() int {
	if c.Flags&FlagWideLiterals != 0 {
		return 2
	}
	return 1
}

// Has reports whether all of flags are set.
func (c *CompiledCode) Has(flags CodeFlags) bool {
	return c.Flags&flags == flags
}

// RegisterCount returns the number of register slots including arguments.
func (c *CompiledCode) RegisterCount() int {
	return int(c.RegisterEnd)
}

// LineAt returns the source line of the statement containing offset,
// or 0 when no line table is present.
func (c *CompiledCode) LineAt(offset int) uint32 {
	var line uint32
	for _, e := range c.Lines {
		if int(e.Offset) > offset {
			break
		}
		line = e.Line
	}
	return line
}

// ---------------------------------------------------------------------------
// Instruction decoding
// ---------------------------------------------------------------------------

// Instruction is one decoded instruction of final bytecode.
type Instruction struct {
	Offset   int
	Op       Opcode
	Literals [3]uint16
	NumLits  int
	Arg      byte
	Distance int
	Size     int
}

// Target returns the absolute offset a branch instruction refers to.
func (in Instruction) Target() int {
	if in.Op.IsBackward() {
		return in.Offset - in.Distance
	}
	return in.Offset + in.Distance
}

// Decode decodes the instruction at offset using the given literal width.
func Decode(code []byte, offset int, litWidth int) (Instruction, error) {
	if offset < 0 || offset >= len(code) {
		return Instruction{}, fmt.Errorf("offset %d out of range", offset)
	}
	op := Opcode(code[offset])
	if !IsDefined(op) {
		return Instruction{}, fmt.Errorf("unknown opcode 0x%02X at %d", byte(op), offset)
	}
	info := GetOpcodeInfo(op)
	in := Instruction{Offset: offset, Op: op}
	pos := offset + 1
	for _, k := range info.Operands {
		var n int
		switch k {
		case OperandLiteral:
			n = litWidth
		case OperandByte:
			n = 1
		case OperandBranch:
			n = info.Width
		}
		if pos+n > len(code) {
			return Instruction{}, fmt.Errorf("truncated %s at %d", op, offset)
		}
		switch k {
		case OperandLiteral:
			if n == 1 {
				in.Literals[in.NumLits] = uint16(code[pos])
			} else {
				in.Literals[in.NumLits] = binary.BigEndian.Uint16(code[pos:])
			}
			in.NumLits++
		case OperandByte:
			in.Arg = code[pos]
		case OperandBranch:
			in.Distance = ReadDistance(code[pos:], n)
		}
		pos += n
	}
	in.Size = pos - offset
	return in, nil
}

// ReadDistance reads a big-endian unsigned distance of width bytes.
func ReadDistance(b []byte, width int) int {
	d := 0
	for i := 0; i < width; i++ {
		d = d<<8 | int(b[i])
	}
	return d
}

// PutDistance writes distance as width big-endian bytes.
func PutDistance(b []byte, width int, distance int) {
	for i := width - 1; i >= 0; i-- {
		b[i] = byte(distance)
		distance >>= 8
	}
}

// Instructions decodes the whole code section.
func (c *CompiledCode) Instructions() ([]Instruction, error) {
	var out []Instruction
	w := c.LiteralWidth()
	for pos := 0; pos < len(c.Code); {
		in, err := Decode(c.Code, pos, w)
		if err != nil {
			return nil, err
		}
		out = append(out, in)
		pos += in.Size
	}
	return out, nil
}
