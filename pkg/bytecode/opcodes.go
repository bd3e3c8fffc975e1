package bytecode

import "fmt"

// Opcode represents a bytecode instruction.
// Opcodes are organized into ranges by category for easy identification.
// Branch opcodes come in families of three consecutive values, one per
// encoded distance width (1, 2 or 3 bytes).
type Opcode byte

// ContextSlots is the number of stack slots a with, for-in, for-of or try
// context occupies while it is live.
const ContextSlots = 2

// MaxBranchDistance is the largest encodable branch distance.
const MaxBranchDistance = 1<<24 - 1

const (
	// ========================================================================
	// Stack and constants (0x00-0x0F)
	// ========================================================================

	OpNop               Opcode = 0x00 // No operation
	OpPop               Opcode = 0x01 // Pop top of stack
	OpPushUndefined     Opcode = 0x02 // Push undefined
	OpPushNull          Opcode = 0x03 // Push null
	OpPushTrue          Opcode = 0x04 // Push true
	OpPushFalse         Opcode = 0x05 // Push false
	OpPushThis          Opcode = 0x06 // Push the this binding
	OpPushElision       Opcode = 0x07 // Push an array hole
	OpPushLiteral       Opcode = 0x08 // Push literal: OpPushLiteral <lit>
	OpPushTwoLiterals   Opcode = 0x09 // Push two literals: <lit> <lit>
	OpPushThreeLiterals Opcode = 0x0A // Push three literals: <lit> <lit> <lit>

	// ========================================================================
	// Object and array construction (0x10-0x17)
	// ========================================================================

	OpCreateObject   Opcode = 0x10 // Push a new empty object
	OpCreateArray    Opcode = 0x11 // Push a new empty array
	OpArrayAppend    Opcode = 0x12 // arr v1..vn -> arr: OpArrayAppend <n:u8>
	OpSetProperty    Opcode = 0x13 // obj v -> obj: OpSetProperty <name>
	OpSetGetter      Opcode = 0x14 // obj -> obj: OpSetGetter <name> <func>
	OpSetSetter      Opcode = 0x15 // obj -> obj: OpSetSetter <name> <func>
	OpTemplateConcat Opcode = 0x16 // a b -> ToString(a)+ToString(b)

	// ========================================================================
	// Property access (0x18-0x1F)
	// ========================================================================

	OpPropGet                  Opcode = 0x18 // obj key -> v
	OpPropGetLiteral           Opcode = 0x19 // obj -> v: <name>
	OpPushLiteralPropLiteral   Opcode = 0x1A // -> base[name]: <base> <name>
	OpPushPropKeep             Opcode = 0x1B // obj key -> obj key v
	OpPushPropLiteralKeep      Opcode = 0x1C // obj -> obj v: <name>
	OpPushPropReference        Opcode = 0x1D // obj key -> obj f
	OpPushPropLiteralReference Opcode = 0x1E // obj -> obj f: <name>

	// ========================================================================
	// Assignment (0x20-0x37)
	// ========================================================================

	OpAssignIdent            Opcode = 0x20 // v -> : <ident>
	OpAssignIdentPush        Opcode = 0x21 // v -> v: <ident>
	OpAssignLiteralIdent     Opcode = 0x22 // -> : <ident> <value>
	OpAssignLiteralIdentPush Opcode = 0x23 // -> v: <ident> <value>
	OpAssignProp             Opcode = 0x24 // obj key v ->
	OpAssignPropPush         Opcode = 0x25 // obj key v -> v
	OpAssignPropLiteral      Opcode = 0x26 // obj v -> : <name>
	OpAssignPropLiteralPush  Opcode = 0x27 // obj v -> v: <name>
	OpPreIncrIdentPush       Opcode = 0x28 // -> new: <ident>
	OpPreDecrIdentPush       Opcode = 0x29 // -> new: <ident>
	OpPostIncrIdentPush      Opcode = 0x2A // -> old: <ident>
	OpPostDecrIdentPush      Opcode = 0x2B // -> old: <ident>
	OpIncrIdent              Opcode = 0x2C // -> : <ident>
	OpDecrIdent              Opcode = 0x2D // -> : <ident>
	OpPreIncrProp            Opcode = 0x2E // obj key -> new
	OpPreDecrProp            Opcode = 0x2F // obj key -> new
	OpPostIncrProp           Opcode = 0x30 // obj key -> old
	OpPostDecrProp           Opcode = 0x31 // obj key -> old
	OpIncrProp               Opcode = 0x32 // obj key ->
	OpDecrProp               Opcode = 0x33 // obj key ->

	// ========================================================================
	// Unary operators (0x38-0x3F)
	// ========================================================================

	OpPlus        Opcode = 0x38 // ToNumber
	OpNegate      Opcode = 0x39 // Arithmetic negation
	OpLogicalNot  Opcode = 0x3A // !
	OpBitNot      Opcode = 0x3B // ~
	OpTypeof      Opcode = 0x3C // typeof value
	OpVoid        Opcode = 0x3D // Replace TOS with undefined
	OpTypeofIdent Opcode = 0x3E // -> typeof ident without ReferenceError: <ident>
	OpDelete      Opcode = 0x3F // obj key -> bool
	OpDeleteIdent Opcode = 0x40 // -> bool: <ident>

	// ========================================================================
	// Binary operators (0x48-0x86)
	// Each operator has three forms: both operands on the stack, right
	// operand a literal, and both operands literals.
	// ========================================================================

	OpAdd                       Opcode = 0x48
	OpAddLiteral                Opcode = 0x49
	OpAddTwoLiterals            Opcode = 0x4A
	OpSub                       Opcode = 0x4B
	OpSubLiteral                Opcode = 0x4C
	OpSubTwoLiterals            Opcode = 0x4D
	OpMul                       Opcode = 0x4E
	OpMulLiteral                Opcode = 0x4F
	OpMulTwoLiterals            Opcode = 0x50
	OpDiv                       Opcode = 0x51
	OpDivLiteral                Opcode = 0x52
	OpDivTwoLiterals            Opcode = 0x53
	OpMod                       Opcode = 0x54
	OpModLiteral                Opcode = 0x55
	OpModTwoLiterals            Opcode = 0x56
	OpShl                       Opcode = 0x57
	OpShlLiteral                Opcode = 0x58
	OpShlTwoLiterals            Opcode = 0x59
	OpShr                       Opcode = 0x5A
	OpShrLiteral                Opcode = 0x5B
	OpShrTwoLiterals            Opcode = 0x5C
	OpUshr                      Opcode = 0x5D
	OpUshrLiteral               Opcode = 0x5E
	OpUshrTwoLiterals           Opcode = 0x5F
	OpBitAnd                    Opcode = 0x60
	OpBitAndLiteral             Opcode = 0x61
	OpBitAndTwoLiterals         Opcode = 0x62
	OpBitOr                     Opcode = 0x63
	OpBitOrLiteral              Opcode = 0x64
	OpBitOrTwoLiterals          Opcode = 0x65
	OpBitXor                    Opcode = 0x66
	OpBitXorLiteral             Opcode = 0x67
	OpBitXorTwoLiterals         Opcode = 0x68
	OpEqual                     Opcode = 0x69
	OpEqualLiteral              Opcode = 0x6A
	OpEqualTwoLiterals          Opcode = 0x6B
	OpNotEqual                  Opcode = 0x6C
	OpNotEqualLiteral           Opcode = 0x6D
	OpNotEqualTwoLiterals       Opcode = 0x6E
	OpStrictEqual               Opcode = 0x6F
	OpStrictEqualLiteral        Opcode = 0x70
	OpStrictEqualTwoLiterals    Opcode = 0x71
	OpStrictNotEqual            Opcode = 0x72
	OpStrictNotEqualLiteral     Opcode = 0x73
	OpStrictNotEqualTwoLiterals Opcode = 0x74
	OpLess                      Opcode = 0x75
	OpLessLiteral               Opcode = 0x76
	OpLessTwoLiterals           Opcode = 0x77
	OpGreater                   Opcode = 0x78
	OpGreaterLiteral            Opcode = 0x79
	OpGreaterTwoLiterals        Opcode = 0x7A
	OpLessEqual                 Opcode = 0x7B
	OpLessEqualLiteral          Opcode = 0x7C
	OpLessEqualTwoLiterals      Opcode = 0x7D
	OpGreaterEqual              Opcode = 0x7E
	OpGreaterEqualLiteral       Opcode = 0x7F
	OpGreaterEqualTwoLiterals   Opcode = 0x80
	OpIn                        Opcode = 0x81
	OpInLiteral                 Opcode = 0x82
	OpInTwoLiterals             Opcode = 0x83
	OpInstanceof                Opcode = 0x84
	OpInstanceofLiteral         Opcode = 0x85
	OpInstanceofTwoLiterals     Opcode = 0x86

	// ========================================================================
	// Calls and returns (0x88-0x8F)
	// ========================================================================

	OpCall            Opcode = 0x88 // f a1..an -> r: OpCall <n:u8>
	OpCallMethod      Opcode = 0x89 // obj f a1..an -> r: OpCallMethod <n:u8>
	OpCallEval        Opcode = 0x8A // direct eval call: <n:u8>
	OpNew             Opcode = 0x8B // f a1..an -> obj: OpNew <n:u8>
	OpReturn          Opcode = 0x8C // Return TOS
	OpReturnUndefined Opcode = 0x8D // Return undefined
	OpThrow           Opcode = 0x8E // Throw TOS

	// ========================================================================
	// Branches (0x90-0xAF)
	// Distance is unsigned, measured from the branch opcode.
	// ========================================================================

	OpJumpForward                  Opcode = 0x90
	OpJumpForward2                 Opcode = 0x91
	OpJumpForward3                 Opcode = 0x92
	OpJumpBackward                 Opcode = 0x93
	OpJumpBackward2                Opcode = 0x94
	OpJumpBackward3                Opcode = 0x95
	OpBranchIfTrueForward          Opcode = 0x96
	OpBranchIfTrueForward2         Opcode = 0x97
	OpBranchIfTrueForward3         Opcode = 0x98
	OpBranchIfTrueBackward         Opcode = 0x99
	OpBranchIfTrueBackward2        Opcode = 0x9A
	OpBranchIfTrueBackward3        Opcode = 0x9B
	OpBranchIfFalseForward         Opcode = 0x9C
	OpBranchIfFalseForward2        Opcode = 0x9D
	OpBranchIfFalseForward3        Opcode = 0x9E
	OpBranchIfFalseBackward        Opcode = 0x9F
	OpBranchIfFalseBackward2       Opcode = 0xA0
	OpBranchIfFalseBackward3       Opcode = 0xA1
	OpBranchIfLogicalTrueForward   Opcode = 0xA2 // Keep TOS when taken
	OpBranchIfLogicalTrueForward2  Opcode = 0xA3
	OpBranchIfLogicalTrueForward3  Opcode = 0xA4
	OpBranchIfLogicalFalseForward  Opcode = 0xA5 // Keep TOS when taken
	OpBranchIfLogicalFalseForward2 Opcode = 0xA6
	OpBranchIfLogicalFalseForward3 Opcode = 0xA7
	OpBranchIfStrictEqualForward   Opcode = 0xA8 // a b -> a, or -> when a === b
	OpBranchIfStrictEqualForward2  Opcode = 0xA9
	OpBranchIfStrictEqualForward3  Opcode = 0xAA
	OpJumpForwardExitContext       Opcode = 0xAB // Unwind contexts, then jump
	OpJumpForwardExitContext2      Opcode = 0xAC
	OpJumpForwardExitContext3      Opcode = 0xAD

	// ========================================================================
	// Contexts (0xB0-0xCF)
	// ========================================================================

	OpWithCreateContext      Opcode = 0xB0 // obj -> ctx: branch marks the context extent
	OpWithCreateContext2     Opcode = 0xB1
	OpWithCreateContext3     Opcode = 0xB2
	OpForInCreateContext     Opcode = 0xB3 // obj -> ctx, or -> (to loop end) when empty
	OpForInCreateContext2    Opcode = 0xB4
	OpForInCreateContext3    Opcode = 0xB5
	OpForInGetNext           Opcode = 0xB6 // ctx -> ctx key
	OpForInHasNextBackward   Opcode = 0xB7 // Loop while keys remain, else drop ctx
	OpForInHasNextBackward2  Opcode = 0xB8
	OpForInHasNextBackward3  Opcode = 0xB9
	OpForOfCreateContext     Opcode = 0xBA
	OpForOfCreateContext2    Opcode = 0xBB
	OpForOfCreateContext3    Opcode = 0xBC
	OpForOfGetNext           Opcode = 0xBD
	OpForOfHasNextBackward   Opcode = 0xBE
	OpForOfHasNextBackward2  Opcode = 0xBF
	OpForOfHasNextBackward3  Opcode = 0xC0
	OpTryCreateContext       Opcode = 0xC1 // -> ctx: branch targets the catch or finally
	OpTryCreateContext2      Opcode = 0xC2
	OpTryCreateContext3      Opcode = 0xC3
	OpCatch                  Opcode = 0xC4 // Push the exception, or skip the handler
	OpCatch2                 Opcode = 0xC5
	OpCatch3                 Opcode = 0xC6
	OpFinally                Opcode = 0xC7 // Enter finally; branch targets the context end
	OpFinally2               Opcode = 0xC8
	OpFinally3               Opcode = 0xC9
	OpContextEnd             Opcode = 0xCA // Drop the innermost context

	// ========================================================================
	// Declarations and debugging (0xD0-0xDF)
	// ========================================================================

	OpDefineVar          Opcode = 0xD0 // Declare a var binding: <ident>
	OpInitializeVar      Opcode = 0xD1 // Bind a declaration: <ident> <value>
	OpBreakpointDisabled Opcode = 0xD2 // Statement boundary, breakpoint off
	OpBreakpointEnabled  Opcode = 0xD3 // Statement boundary, breakpoint on
)

// OperandKind describes one operand of an instruction.
type OperandKind uint8

const (
	OperandLiteral OperandKind = iota // Literal index, 1 or 2 bytes
	OperandByte                       // Unsigned byte
	OperandBranch                     // Branch distance, width fixed by the opcode
)

// OpFlags describe control flow properties of an opcode.
type OpFlags uint8

const (
	// FlagEndsFlow means execution never falls through to the next instruction.
	FlagEndsFlow OpFlags = 1 << iota
	// FlagBackward marks branches whose target precedes the branch.
	FlagBackward
	// FlagNoTakenFlow marks branches whose target is not a successor with a
	// statically known stack depth.
	FlagNoTakenFlow
)

// OpcodeInfo provides metadata about each opcode for debugging and validation.
type OpcodeInfo struct {
	Name     string        // Human-readable name
	Operands []OperandKind // Operand layout after the opcode byte
	Stack    int           // Stack effect when execution falls through
	Taken    int           // Stack effect when the branch is taken
	PerByte  int           // Extra effect per unit of the byte operand
	Flags    OpFlags
	Family   Opcode // Width-1 opcode of a branch family
	Width    int    // Branch distance width, 0 for non-branches
}

var (
	lit   = []OperandKind{OperandLiteral}
	lit2  = []OperandKind{OperandLiteral, OperandLiteral}
	lit3  = []OperandKind{OperandLiteral, OperandLiteral, OperandLiteral}
	byte1 = []OperandKind{OperandByte}
)

// opcodeInfoTable maps opcodes to their metadata.
var opcodeInfoTable = map[Opcode]OpcodeInfo{
	// Stack and constants
	OpNop:               {Name: "NOP"},
	OpPop:               {Name: "POP", Stack: -1},
	OpPushUndefined:     {Name: "PUSH_UNDEFINED", Stack: 1},
	OpPushNull:          {Name: "PUSH_NULL", Stack: 1},
	OpPushTrue:          {Name: "PUSH_TRUE", Stack: 1},
	OpPushFalse:         {Name: "PUSH_FALSE", Stack: 1},
	OpPushThis:          {Name: "PUSH_THIS", Stack: 1},
	OpPushElision:       {Name: "PUSH_ELISION", Stack: 1},
	OpPushLiteral:       {Name: "PUSH_LITERAL", Operands: lit, Stack: 1},
	OpPushTwoLiterals:   {Name: "PUSH_TWO_LITERALS", Operands: lit2, Stack: 2},
	OpPushThreeLiterals: {Name: "PUSH_THREE_LITERALS", Operands: lit3, Stack: 3},

	// Construction
	OpCreateObject:   {Name: "CREATE_OBJECT", Stack: 1},
	OpCreateArray:    {Name: "CREATE_ARRAY", Stack: 1},
	OpArrayAppend:    {Name: "ARRAY_APPEND", Operands: byte1, PerByte: -1},
	OpSetProperty:    {Name: "SET_PROPERTY", Operands: lit, Stack: -1},
	OpSetGetter:      {Name: "SET_GETTER", Operands: lit2},
	OpSetSetter:      {Name: "SET_SETTER", Operands: lit2},
	OpTemplateConcat: {Name: "TEMPLATE_CONCAT", Stack: -1},

	// Property access
	OpPropGet:                  {Name: "PROP_GET", Stack: -1},
	OpPropGetLiteral:           {Name: "PROP_GET_LITERAL", Operands: lit},
	OpPushLiteralPropLiteral:   {Name: "PUSH_LITERAL_PROP_LITERAL", Operands: lit2, Stack: 1},
	OpPushPropKeep:             {Name: "PUSH_PROP_KEEP", Stack: 1},
	OpPushPropLiteralKeep:      {Name: "PUSH_PROP_LITERAL_KEEP", Operands: lit, Stack: 1},
	OpPushPropReference:        {Name: "PUSH_PROP_REFERENCE"},
	OpPushPropLiteralReference: {Name: "PUSH_PROP_LITERAL_REFERENCE", Operands: lit, Stack: 1},

	// Assignment
	OpAssignIdent:            {Name: "ASSIGN_IDENT", Operands: lit, Stack: -1},
	OpAssignIdentPush:        {Name: "ASSIGN_IDENT_PUSH", Operands: lit},
	OpAssignLiteralIdent:     {Name: "ASSIGN_LITERAL_IDENT", Operands: lit2},
	OpAssignLiteralIdentPush: {Name: "ASSIGN_LITERAL_IDENT_PUSH", Operands: lit2, Stack: 1},
	OpAssignProp:             {Name: "ASSIGN_PROP", Stack: -3},
	OpAssignPropPush:         {Name: "ASSIGN_PROP_PUSH", Stack: -2},
	OpAssignPropLiteral:      {Name: "ASSIGN_PROP_LITERAL", Operands: lit, Stack: -2},
	OpAssignPropLiteralPush:  {Name: "ASSIGN_PROP_LITERAL_PUSH", Operands: lit, Stack: -1},
	OpPreIncrIdentPush:       {Name: "PRE_INCR_IDENT_PUSH", Operands: lit, Stack: 1},
	OpPreDecrIdentPush:       {Name: "PRE_DECR_IDENT_PUSH", Operands: lit, Stack: 1},
	OpPostIncrIdentPush:      {Name: "POST_INCR_IDENT_PUSH", Operands: lit, Stack: 1},
	OpPostDecrIdentPush:      {Name: "POST_DECR_IDENT_PUSH", Operands: lit, Stack: 1},
	OpIncrIdent:              {Name: "INCR_IDENT", Operands: lit},
	OpDecrIdent:              {Name: "DECR_IDENT", Operands: lit},
	OpPreIncrProp:            {Name: "PRE_INCR_PROP", Stack: -1},
	OpPreDecrProp:            {Name: "PRE_DECR_PROP", Stack: -1},
	OpPostIncrProp:           {Name: "POST_INCR_PROP", Stack: -1},
	OpPostDecrProp:           {Name: "POST_DECR_PROP", Stack: -1},
	OpIncrProp:               {Name: "INCR_PROP", Stack: -2},
	OpDecrProp:               {Name: "DECR_PROP", Stack: -2},

	// Unary
	OpPlus:        {Name: "PLUS"},
	OpNegate:      {Name: "NEGATE"},
	OpLogicalNot:  {Name: "LOGICAL_NOT"},
	OpBitNot:      {Name: "BIT_NOT"},
	OpTypeof:      {Name: "TYPEOF"},
	OpVoid:        {Name: "VOID"},
	OpTypeofIdent: {Name: "TYPEOF_IDENT", Operands: lit, Stack: 1},
	OpDelete:      {Name: "DELETE", Stack: -1},
	OpDeleteIdent: {Name: "DELETE_IDENT", Operands: lit, Stack: 1},

	// Calls
	OpCall:            {Name: "CALL", Operands: byte1, PerByte: -1},
	OpCallMethod:      {Name: "CALL_METHOD", Operands: byte1, Stack: -1, PerByte: -1},
	OpCallEval:        {Name: "CALL_EVAL", Operands: byte1, PerByte: -1},
	OpNew:             {Name: "NEW", Operands: byte1, PerByte: -1},
	OpReturn:          {Name: "RETURN", Stack: -1, Flags: FlagEndsFlow},
	OpReturnUndefined: {Name: "RETURN_UNDEFINED", Flags: FlagEndsFlow},
	OpThrow:           {Name: "THROW", Stack: -1, Flags: FlagEndsFlow},

	// Contexts
	OpForInGetNext: {Name: "FOR_IN_GET_NEXT", Stack: 1},
	OpForOfGetNext: {Name: "FOR_OF_GET_NEXT", Stack: 1},
	OpContextEnd:   {Name: "CONTEXT_END", Stack: -ContextSlots},

	// Declarations
	OpDefineVar:          {Name: "DEFINE_VAR", Operands: lit},
	OpInitializeVar:      {Name: "INITIALIZE_VAR", Operands: lit2},
	OpBreakpointDisabled: {Name: "BREAKPOINT_DISABLED"},
	OpBreakpointEnabled:  {Name: "BREAKPOINT_ENABLED"},
}

// binaryOps lists the stack form of every binary operator family.
var binaryOps = []struct {
	op   Opcode
	name string
}{
	{OpAdd, "ADD"}, {OpSub, "SUB"}, {OpMul, "MUL"}, {OpDiv, "DIV"}, {OpMod, "MOD"},
	{OpShl, "SHL"}, {OpShr, "SHR"}, {OpUshr, "USHR"},
	{OpBitAnd, "BIT_AND"}, {OpBitOr, "BIT_OR"}, {OpBitXor, "BIT_XOR"},
	{OpEqual, "EQUAL"}, {OpNotEqual, "NOT_EQUAL"},
	{OpStrictEqual, "STRICT_EQUAL"}, {OpStrictNotEqual, "STRICT_NOT_EQUAL"},
	{OpLess, "LESS"}, {OpGreater, "GREATER"},
	{OpLessEqual, "LESS_EQUAL"}, {OpGreaterEqual, "GREATER_EQUAL"},
	{OpIn, "IN"}, {OpInstanceof, "INSTANCEOF"},
}

// branchFamilies lists the width-1 opcode of every branch family.
var branchFamilies = []struct {
	op    Opcode
	name  string
	stack int
	taken int
	flags OpFlags
}{
	{OpJumpForward, "JUMP_FORWARD", 0, 0, FlagEndsFlow},
	{OpJumpBackward, "JUMP_BACKWARD", 0, 0, FlagEndsFlow | FlagBackward},
	{OpBranchIfTrueForward, "BRANCH_IF_TRUE_FORWARD", -1, -1, 0},
	{OpBranchIfTrueBackward, "BRANCH_IF_TRUE_BACKWARD", -1, -1, FlagBackward},
	{OpBranchIfFalseForward, "BRANCH_IF_FALSE_FORWARD", -1, -1, 0},
	{OpBranchIfFalseBackward, "BRANCH_IF_FALSE_BACKWARD", -1, -1, FlagBackward},
	{OpBranchIfLogicalTrueForward, "BRANCH_IF_LOGICAL_TRUE_FORWARD", -1, 0, 0},
	{OpBranchIfLogicalFalseForward, "BRANCH_IF_LOGICAL_FALSE_FORWARD", -1, 0, 0},
	{OpBranchIfStrictEqualForward, "BRANCH_IF_STRICT_EQUAL_FORWARD", -1, -2, 0},
	{OpJumpForwardExitContext, "JUMP_FORWARD_EXIT_CONTEXT", 0, 0, FlagEndsFlow | FlagNoTakenFlow},
	{OpWithCreateContext, "WITH_CREATE_CONTEXT", ContextSlots - 1, 0, FlagNoTakenFlow},
	{OpForInCreateContext, "FOR_IN_CREATE_CONTEXT", ContextSlots - 1, -1, 0},
	{OpForInHasNextBackward, "FOR_IN_HAS_NEXT_BACKWARD", -ContextSlots, 0, FlagBackward},
	{OpForOfCreateContext, "FOR_OF_CREATE_CONTEXT", ContextSlots - 1, -1, 0},
	{OpForOfHasNextBackward, "FOR_OF_HAS_NEXT_BACKWARD", -ContextSlots, 0, FlagBackward},
	{OpTryCreateContext, "TRY_CREATE_CONTEXT", ContextSlots, ContextSlots, 0},
	{OpCatch, "CATCH", 1, 0, 0},
	{OpFinally, "FINALLY", 0, 0, 0},
}

func init() {
	for _, b := range binaryOps {
		opcodeInfoTable[b.op] = OpcodeInfo{Name: b.name, Stack: -1}
		opcodeInfoTable[b.op+1] = OpcodeInfo{Name: b.name + "_LITERAL", Operands: lit}
		opcodeInfoTable[b.op+2] = OpcodeInfo{Name: b.name + "_TWO_LITERALS", Operands: lit2, Stack: 1}
	}
	for _, f := range branchFamilies {
		for w := 1; w <= 3; w++ {
			name := f.name
			if w > 1 {
				name = fmt.Sprintf("%s_%d", f.name, w)
			}
			opcodeInfoTable[f.op+Opcode(w-1)] = OpcodeInfo{
				Name:     name,
				Operands: []OperandKind{OperandBranch},
				Stack:    f.stack,
				Taken:    f.taken,
				Flags:    f.flags,
				Family:   f.op,
				Width:    w,
			}
		}
	}
}

// GetOpcodeInfo returns metadata for an opcode.
// Returns a zero OpcodeInfo with name "UNKNOWN" if the opcode is not recognized.
func GetOpcodeInfo(op Opcode) OpcodeInfo {
	if info, ok := opcodeInfoTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN(0x%02X)", byte(op))}
}

// IsDefined reports whether op has metadata.
func IsDefined(op Opcode) bool {
	_, ok := opcodeInfoTable[op]
	return ok
}

// String returns the human-readable name of an opcode.
func (op Opcode) String() string {
	return GetOpcodeInfo(op).Name
}

// IsBranch returns true if the opcode carries a branch distance.
func (op Opcode) IsBranch() bool {
	return GetOpcodeInfo(op).Width > 0
}

// IsBackward returns true for branches whose target precedes them.
func (op Opcode) IsBackward() bool {
	return GetOpcodeInfo(op).Flags&FlagBackward != 0
}

// BranchWidth returns the encoded distance width of a branch opcode.
func (op Opcode) BranchWidth() int {
	return GetOpcodeInfo(op).Width
}

// WithBranchWidth returns the member of op's branch family using width w.
func (op Opcode) WithBranchWidth(w int) Opcode {
	info := GetOpcodeInfo(op)
	if info.Width == 0 || w < 1 || w > 3 {
		panic(fmt.Sprintf("bytecode: %s has no width %d form", op, w))
	}
	return info.Family + Opcode(w-1)
}

// BinaryForm returns the stack form of a binary operator family and the
// number of literal operands op takes.
func (op Opcode) BinaryForm() (Opcode, int, bool) {
	if op < OpAdd || op > OpInstanceofTwoLiterals {
		return 0, 0, false
	}
	d := (op - OpAdd) % 3
	return op - d, int(d), true
}

// BranchWidthFor returns the smallest width that encodes distance.
func BranchWidthFor(distance int) int {
	switch {
	case distance <= 0xFF:
		return 1
	case distance <= 0xFFFF:
		return 2
	}
	return 3
}

// StackEffect returns the fall-through effect of an instruction given
// its byte operand (zero when it has none).
func (info OpcodeInfo) StackEffect(arg byte) int {
	return info.Stack + info.PerByte*int(arg)
}

// AllOpcodes returns a slice of all defined opcodes.
// Useful for testing that all opcodes have metadata.
func AllOpcodes() []Opcode {
	opcodes := make([]Opcode, 0, len(opcodeInfoTable))
	for op := range opcodeInfoTable {
		opcodes = append(opcodes, op)
	}
	return opcodes
}

// OpcodeCount returns the number of defined opcodes.
func OpcodeCount() int {
	return len(opcodeInfoTable)
}
