package compiler

import (
	"math"
	"math/big"
	"strconv"
	"strings"

	"github.com/chazu/scriptc/pkg/bytecode"
	"github.com/chazu/scriptc/pkg/intern"
)

// ---------------------------------------------------------------------------
// Literal pool
// ---------------------------------------------------------------------------

// litFlags are usage hints the parser attaches to a literal as it learns
// how the literal is used.
type litFlags uint16

const (
	litVar         litFlags = 1 << iota // declared binding of the function
	litInitialized                      // bound by a function declaration
	litArgument                         // formal parameter
	litNoRegister                       // must live in a named slot
	litEscaped                          // produced from escaped source text
)

// parsedLiteral is a literal as the parser leaves it: content plus usage
// hints. Post-processing classifies it into a partition.
type parsedLiteral struct {
	kind   bytecode.LiteralKind
	text   intern.Handle
	number float64
	fn     *bytecode.CompiledCode
	re     *bytecode.RegexpLiteral
	flags  litFlags
	init   int // literal index of the declared function when litInitialized
}

type litKey struct {
	kind bytecode.LiteralKind
	text intern.Handle
}

type regexpKey struct {
	pattern, flags intern.Handle
}

// literalPool holds the literals of one function. Entries are unique by
// kind and content; the provisional index of an entry is its position.
type literalPool struct {
	strs    *intern.Table
	limit   int
	lits    []parsedLiteral
	index   map[litKey]int
	numbers map[uint64]int
	regexps map[regexpKey]int
}

func newLiteralPool(strs *intern.Table, limit int) *literalPool {
	return &literalPool{
		strs:    strs,
		limit:   limit,
		index:   make(map[litKey]int),
		numbers: make(map[uint64]int),
		regexps: make(map[regexpKey]int),
	}
}

// Len returns the number of entries. The final table is never smaller, so
// add refuses entries past the limit early.
func (p *literalPool) Len() int { return len(p.lits) }

func (p *literalPool) add(lit parsedLiteral) (int, bool) {
	if len(p.lits) >= p.limit {
		return 0, false
	}
	p.lits = append(p.lits, lit)
	return len(p.lits) - 1, true
}

func (p *literalPool) named(kind bytecode.LiteralKind, s string) (int, bool) {
	key := litKey{kind, p.strs.Intern(s)}
	if i, ok := p.index[key]; ok {
		return i, true
	}
	i, ok := p.add(parsedLiteral{kind: kind, text: key.text})
	if ok {
		p.index[key] = i
	}
	return i, ok
}

// ident returns the entry for an identifier reference or binding.
func (p *literalPool) ident(name string) (int, bool) {
	return p.named(bytecode.LiteralIdent, name)
}

// str returns the entry for a string value or property name.
func (p *literalPool) str(s string) (int, bool) {
	return p.named(bytecode.LiteralString, s)
}

// number returns the entry for a numeric value.
func (p *literalPool) number(v float64) (int, bool) {
	bits := math.Float64bits(v)
	if i, ok := p.numbers[bits]; ok {
		return i, true
	}
	i, ok := p.add(parsedLiteral{kind: bytecode.LiteralNumber, number: v})
	if ok {
		p.numbers[bits] = i
	}
	return i, ok
}

// function adds a nested function. Functions are never shared.
func (p *literalPool) function(code *bytecode.CompiledCode) (int, bool) {
	return p.add(parsedLiteral{kind: bytecode.LiteralFunction, fn: code})
}

// regexp returns the entry for a compiled regular expression literal.
func (p *literalPool) regexp(pattern, flags string, program any) (int, bool) {
	key := regexpKey{p.strs.Intern(pattern), p.strs.Intern(flags)}
	if i, ok := p.regexps[key]; ok {
		return i, true
	}
	i, ok := p.add(parsedLiteral{
		kind: bytecode.LiteralRegexp,
		re:   &bytecode.RegexpLiteral{Pattern: pattern, Flags: flags, Program: program},
	})
	if ok {
		p.regexps[key] = i
	}
	return i, ok
}

// lookupIdent returns the entry for name if one exists.
func (p *literalPool) lookupIdent(name string) (int, bool) {
	h, ok := p.strs.Lookup(name)
	if !ok {
		return 0, false
	}
	i, ok := p.index[litKey{bytecode.LiteralIdent, h}]
	return i, ok
}

func (p *literalPool) text(i int) string {
	return p.strs.String(p.lits[i].text)
}

func (p *literalPool) mark(i int, f litFlags) {
	p.lits[i].flags |= f
}

func (p *literalPool) has(i int, f litFlags) bool {
	return p.lits[i].flags&f != 0
}

// ---------------------------------------------------------------------------
// Numeric values
// ---------------------------------------------------------------------------

// numberValue evaluates a numeric literal token.
func numberValue(tok Token) float64 {
	raw := tok.Raw
	switch tok.Number {
	case NumberHex:
		return radixValue(raw[2:], 16)
	case NumberOctal:
		return radixValue(raw[2:], 8)
	case NumberBinary:
		return radixValue(raw[2:], 2)
	case NumberLegacyOctal:
		return radixValue(raw[1:], 8)
	}
	// Out of range values round to infinity, which is what the literal means.
	v, _ := strconv.ParseFloat(raw, 64)
	return v
}

func radixValue(digits string, base int) float64 {
	if len(digits) <= 12 {
		v, err := strconv.ParseUint(digits, base, 64)
		if err == nil {
			return float64(v)
		}
	}
	n, ok := new(big.Int).SetString(digits, base)
	if !ok {
		return math.NaN()
	}
	f, _ := new(big.Float).SetInt(n).Float64()
	return f
}

// numberToString converts v the way property keys are canonicalized.
func numberToString(v float64) string {
	switch {
	case math.IsNaN(v):
		return "NaN"
	case v == 0:
		return "0"
	case math.IsInf(v, 1):
		return "Infinity"
	case math.IsInf(v, -1):
		return "-Infinity"
	}
	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}

	// Shortest round-tripping digits and decimal exponent.
	e := strconv.FormatFloat(v, 'e', -1, 64)
	mant, exp, _ := strings.Cut(e, "e")
	digits := strings.Replace(mant, ".", "", 1)
	x, _ := strconv.Atoi(exp)
	n := x + 1
	k := len(digits)

	var b strings.Builder
	b.WriteString(sign)
	switch {
	case k <= n && n <= 21:
		b.WriteString(digits)
		b.WriteString(strings.Repeat("0", n-k))
	case 0 < n && n <= 21:
		b.WriteString(digits[:n])
		b.WriteByte('.')
		b.WriteString(digits[n:])
	case -6 < n && n <= 0:
		b.WriteString("0.")
		b.WriteString(strings.Repeat("0", -n))
		b.WriteString(digits)
	default:
		b.WriteString(digits[:1])
		if k > 1 {
			b.WriteByte('.')
			b.WriteString(digits[1:])
		}
		b.WriteByte('e')
		if n-1 >= 0 {
			b.WriteByte('+')
		}
		b.WriteString(strconv.Itoa(n - 1))
	}
	return b.String()
}
