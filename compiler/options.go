package compiler

// Limits bound the resources a single compile may use. Exceeding any of
// them fails the compile with a KindLimit error.
type Limits struct {
	Stack        int // operand stack depth per function
	Literals     int // literal table entries per function
	Registers    int // register-allocated locals per function
	Arguments    int // call arguments and formal parameters
	IdentLength  int // decoded identifier length in bytes
	StringLength int // decoded string length in bytes
	NumberLength int // numeric literal source length
	Nesting      int // expression, statement and function nesting
	CodeSize     int // bytecode size per function
}

// DefaultLimits returns the standard limits.
func DefaultLimits() Limits {
	return Limits{
		Stack:        1024,
		Literals:     32767,
		Registers:    256,
		Arguments:    255,
		IdentLength:  255,
		StringLength: 65535,
		NumberLength: 255,
		Nesting:      256,
		CodeSize:     1<<24 - 1,
	}
}

// WithDefaults fills zero fields from DefaultLimits and clamps fields to
// what the bytecode format can encode.
func (l Limits) WithDefaults() Limits {
	d := DefaultLimits()
	fill := func(v *int, def int) {
		if *v <= 0 {
			*v = def
		}
	}
	fill(&l.Stack, d.Stack)
	fill(&l.Literals, d.Literals)
	fill(&l.Registers, d.Registers)
	fill(&l.Arguments, d.Arguments)
	fill(&l.IdentLength, d.IdentLength)
	fill(&l.StringLength, d.StringLength)
	fill(&l.NumberLength, d.NumberLength)
	fill(&l.Nesting, d.Nesting)
	fill(&l.CodeSize, d.CodeSize)
	if l.Arguments > 255 {
		l.Arguments = 255
	}
	if l.Stack > 0xFFFF {
		l.Stack = 0xFFFF
	}
	if l.Literals > 0xFFFF {
		l.Literals = 0xFFFF
	}
	if l.CodeSize > d.CodeSize {
		l.CodeSize = d.CodeSize
	}
	return l
}

// RegexpCompiler compiles regular expression literals. The returned value
// is stored on the literal untouched.
type RegexpCompiler interface {
	CompileRegexp(pattern, flags string) (any, error)
}

// BoundaryKind names a construct boundary recorded by the pre-scanner.
type BoundaryKind uint8

const (
	BoundaryForCondition BoundaryKind = iota
	BoundaryForUpdate
	BoundaryForEnd
	BoundaryForInExpression
	BoundaryForInEnd
	BoundaryWhileEnd
	BoundarySwitchBody
	BoundarySwitchEnd
	BoundaryCaseColon
	BoundaryArrow
	BoundaryTemplateSubstitution
)

var boundaryNames = [...]string{
	"for-condition", "for-update", "for-end", "for-in-expression", "for-in-end",
	"while-end", "switch-body", "switch-end", "case-colon", "arrow", "template-substitution",
}

func (k BoundaryKind) String() string {
	if int(k) < len(boundaryNames) {
		return boundaryNames[k]
	}
	return "boundary"
}

// Boundary pairs the location the pre-scanner recorded for a construct
// boundary with the location the parser reached on its own.
type Boundary struct {
	Kind      BoundaryKind
	Construct Position // first token of the construct
	Scanned   Position
	Parsed    Position
}

// Options control a compile.
type Options struct {
	// Strict compiles the unit as strict mode code from the start.
	Strict bool

	// Limits bound resource use. Zero fields take DefaultLimits values.
	Limits Limits

	// Breakpoints emits BREAKPOINT_DISABLED at each statement start.
	Breakpoints bool

	// LineInfo records a statement line table.
	LineInfo bool

	// Regexp validates and compiles regular expression literals. Nil keeps
	// the pattern uncompiled for the engine to handle.
	Regexp RegexpCompiler

	// Pages supplies arena pages. Nil uses a private pool.
	Pages *PagePool

	// OnBoundary, when set, is called for every pre-scanned boundary the
	// parser confirms.
	OnBoundary func(Boundary)
}
