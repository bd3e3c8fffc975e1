package compiler

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/chazu/scriptc/pkg/bytecode"
	"github.com/chazu/scriptc/pkg/regex"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func mustCompile(t *testing.T, source string, opts Options) *bytecode.CompiledCode {
	t.Helper()
	code, err := Compile(source, opts)
	if err != nil {
		t.Fatalf("Compile(%q) error: %v", source, err)
	}
	if err := bytecode.Verify(code); err != nil {
		t.Fatalf("Verify(%q) error: %v\n%s", source, err, code.Disassemble())
	}
	return code
}

func ops(t *testing.T, code *bytecode.CompiledCode) []bytecode.Opcode {
	t.Helper()
	ins, err := code.Instructions()
	if err != nil {
		t.Fatalf("Instructions() error: %v", err)
	}
	out := make([]bytecode.Opcode, len(ins))
	for i, in := range ins {
		out[i] = in.Op
	}
	return out
}

func assertOps(t *testing.T, code *bytecode.CompiledCode, want ...bytecode.Opcode) {
	t.Helper()
	got := ops(t, code)
	if len(got) != len(want) {
		t.Fatalf("got %d instructions %v, want %d %v\n%s", len(got), got, len(want), want, code.Disassemble())
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("instruction[%d] = %v, want %v\n%s", i, got[i], want[i], code.Disassemble())
		}
	}
}

func hasOp(t *testing.T, code *bytecode.CompiledCode, op bytecode.Opcode) bool {
	t.Helper()
	for _, o := range ops(t, code) {
		if o == op {
			return true
		}
	}
	return false
}

// function returns the first nested function literal of code.
func function(t *testing.T, code *bytecode.CompiledCode) *bytecode.CompiledCode {
	t.Helper()
	for _, lit := range code.Literals {
		if lit.Kind == bytecode.LiteralFunction {
			return lit.Function
		}
	}
	t.Fatalf("no function literal in\n%s", code.Disassemble())
	return nil
}

func countKind(code *bytecode.CompiledCode, kind bytecode.LiteralKind) int {
	n := 0
	for _, lit := range code.Literals {
		if lit.Kind == kind {
			n++
		}
	}
	return n
}

// ---------------------------------------------------------------------------
// Emission
// ---------------------------------------------------------------------------

func TestCompileVarDeclaration(t *testing.T) {
	code := mustCompile(t, "var x = 1;", Options{})
	assertOps(t, code, bytecode.OpDefineVar, bytecode.OpAssignLiteralIdent, bytecode.OpReturnUndefined)

	if len(code.Literals) != 2 {
		t.Fatalf("got %d literals, want 2", len(code.Literals))
	}
	if code.Literals[0].Kind != bytecode.LiteralIdent || code.Literals[0].Text != "x" {
		t.Errorf("literal[0] = %v, want ident x", code.Literals[0])
	}
	if code.Literals[1].Kind != bytecode.LiteralNumber || code.Literals[1].Number != 1 {
		t.Errorf("literal[1] = %v, want number 1", code.Literals[1])
	}
	if code.RegisterEnd != 0 || code.DefineEnd != 1 || code.InitializeEnd != 1 || code.IdentEnd != 1 || code.ConstLiteralEnd != 2 {
		t.Errorf("partitions = %d/%d/%d/%d/%d, want 0/1/1/1/2",
			code.RegisterEnd, code.DefineEnd, code.InitializeEnd, code.IdentEnd, code.ConstLiteralEnd)
	}
	if code.Has(bytecode.FlagFunction) {
		t.Error("script code has FlagFunction")
	}
}

func TestCompileAssignmentBytes(t *testing.T) {
	tests := []struct {
		source string
		want   []byte
	}{
		{"a = b;", []byte{byte(bytecode.OpAssignLiteralIdent), 0, 1, byte(bytecode.OpReturnUndefined)}},
		{"x = 1 + 2;", []byte{
			byte(bytecode.OpAddTwoLiterals), 1, 2,
			byte(bytecode.OpAssignIdent), 0,
			byte(bytecode.OpReturnUndefined),
		}},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			code := mustCompile(t, tt.source, Options{})
			if !bytes.Equal(code.Code, tt.want) {
				t.Errorf("code = % x, want % x\n%s", code.Code, tt.want, code.Disassemble())
			}
		})
	}
}

func TestCompileExpressions(t *testing.T) {
	tests := []struct {
		source string
		want   []bytecode.Opcode
	}{
		{"f(1);", []bytecode.Opcode{
			bytecode.OpPushTwoLiterals, bytecode.OpCall, bytecode.OpPop, bytecode.OpReturnUndefined,
		}},
		{"o.m(1);", []bytecode.Opcode{
			bytecode.OpPushLiteral, bytecode.OpPushPropLiteralReference, bytecode.OpPushLiteral,
			bytecode.OpCallMethod, bytecode.OpPop, bytecode.OpReturnUndefined,
		}},
		{"t = typeof u;", []bytecode.Opcode{
			bytecode.OpTypeofIdent, bytecode.OpAssignIdent, bytecode.OpReturnUndefined,
		}},
		{"delete o.p;", []bytecode.Opcode{
			bytecode.OpPushTwoLiterals, bytecode.OpDelete, bytecode.OpPop, bytecode.OpReturnUndefined,
		}},
		{"a = [1, , 2];", []bytecode.Opcode{
			bytecode.OpCreateArray, bytecode.OpPushLiteral, bytecode.OpPushElision, bytecode.OpPushLiteral,
			bytecode.OpArrayAppend, bytecode.OpAssignIdent, bytecode.OpReturnUndefined,
		}},
		{"s = `a${b}c`;", []bytecode.Opcode{
			bytecode.OpPushTwoLiterals, bytecode.OpTemplateConcat, bytecode.OpPushLiteral,
			bytecode.OpTemplateConcat, bytecode.OpAssignIdent, bytecode.OpReturnUndefined,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assertOps(t, mustCompile(t, tt.source, Options{}), tt.want...)
		})
	}
}

func TestCompileLiteralDedup(t *testing.T) {
	code := mustCompile(t, `x = "s" + "s"; y = "s";`, Options{})
	if n := countKind(code, bytecode.LiteralString); n != 1 {
		t.Errorf("got %d string literals, want 1", n)
	}
	if n := countKind(code, bytecode.LiteralIdent); n != 2 {
		t.Errorf("got %d ident literals, want 2", n)
	}
}

func TestCompileObjectLiteral(t *testing.T) {
	code := mustCompile(t, "o = { a: 1, get b() { return 2; }, set b(v) {} };", Options{})
	for _, op := range []bytecode.Opcode{bytecode.OpCreateObject, bytecode.OpSetProperty, bytecode.OpSetGetter, bytecode.OpSetSetter} {
		if !hasOp(t, code, op) {
			t.Errorf("missing %v\n%s", op, code.Disassemble())
		}
	}
	if n := countKind(code, bytecode.LiteralFunction); n != 2 {
		t.Errorf("got %d function literals, want 2", n)
	}
}

func TestCompileRegexpLiteral(t *testing.T) {
	code := mustCompile(t, "r = /ab+c/g;", Options{})
	var re *bytecode.RegexpLiteral
	for _, lit := range code.Literals {
		if lit.Kind == bytecode.LiteralRegexp {
			re = lit.Regexp
		}
	}
	if re == nil {
		t.Fatalf("no regexp literal\n%s", code.Disassemble())
	}
	if re.Pattern != "ab+c" || re.Flags != "g" {
		t.Errorf("regexp = /%s/%s, want /ab+c/g", re.Pattern, re.Flags)
	}
	if re.Program != nil {
		t.Error("Program set without a regexp compiler")
	}

	code = mustCompile(t, "r = /ab+c/g;", Options{Regexp: regex.Compiler{}})
	err := bytecode.WalkRegexps(code, func(r *bytecode.RegexpLiteral) error {
		if r.Program == nil {
			return fmt.Errorf("/%s/ not compiled", r.Pattern)
		}
		return nil
	})
	if err != nil {
		t.Error(err)
	}

	_, err = Compile("r = /(/;", Options{Regexp: regex.Compiler{}})
	assertCode(t, err, ErrInvalidRegexp)
}

// ---------------------------------------------------------------------------
// Functions and bindings
// ---------------------------------------------------------------------------

func TestCompileFunctionDeclaration(t *testing.T) {
	code := mustCompile(t, "function f(a, b) { return a + b; }", Options{})
	assertOps(t, code, bytecode.OpInitializeVar, bytecode.OpReturnUndefined)
	if code.Literals[0].Kind != bytecode.LiteralIdent || code.Literals[0].Text != "f" {
		t.Errorf("literal[0] = %v, want ident f", code.Literals[0])
	}
	if code.Literals[1].Kind != bytecode.LiteralFunction {
		t.Errorf("literal[1] = %v, want function", code.Literals[1])
	}
	if code.DefineEnd != 0 || code.InitializeEnd != 1 {
		t.Errorf("DefineEnd/InitializeEnd = %d/%d, want 0/1", code.DefineEnd, code.InitializeEnd)
	}
	if !code.Has(bytecode.FlagNeedsLexicalEnv) {
		t.Error("script declaring a function lacks FlagNeedsLexicalEnv")
	}

	inner := function(t, code)
	if inner.Name != "f" {
		t.Errorf("Name = %q, want f", inner.Name)
	}
	if !inner.Has(bytecode.FlagFunction) {
		t.Error("inner code lacks FlagFunction")
	}
	if inner.ArgumentEnd != 2 {
		t.Errorf("ArgumentEnd = %d, want 2", inner.ArgumentEnd)
	}
	assertOps(t, inner, bytecode.OpAddTwoLiterals, bytecode.OpReturn, bytecode.OpReturnUndefined)
}

func TestCompileInitializerPartitions(t *testing.T) {
	code := mustCompile(t, "var a, b; function f() {} function g() {}", Options{})
	if code.DefineEnd != 2 || code.InitializeEnd != 4 {
		t.Fatalf("DefineEnd/InitializeEnd = %d/%d, want 2/4\n%s", code.DefineEnd, code.InitializeEnd, code.Disassemble())
	}
	ins, err := code.Instructions()
	if err != nil {
		t.Fatal(err)
	}
	defines, inits := 0, 0
	for _, in := range ins {
		idx := in.Literals[0]
		switch in.Op {
		case bytecode.OpDefineVar:
			defines++
			if idx < code.RegisterEnd || idx >= code.DefineEnd {
				t.Errorf("DEFINE_VAR operand %d outside [%d, %d)", idx, code.RegisterEnd, code.DefineEnd)
			}
		case bytecode.OpInitializeVar:
			inits++
			if idx < code.DefineEnd || idx >= code.InitializeEnd {
				t.Errorf("INITIALIZE_VAR operand %d outside [%d, %d)", idx, code.DefineEnd, code.InitializeEnd)
			}
		}
	}
	if defines != 2 || inits != 2 {
		t.Errorf("got %d DEFINE_VAR and %d INITIALIZE_VAR, want 2 and 2", defines, inits)
	}
}

func TestCompileRegisters(t *testing.T) {
	code := mustCompile(t, "function g() { var t = 1; return t; }", Options{})
	inner := function(t, code)
	if inner.RegisterEnd != 1 {
		t.Errorf("RegisterEnd = %d, want 1", inner.RegisterEnd)
	}
	assertOps(t, inner, bytecode.OpAssignLiteralIdent, bytecode.OpPushLiteral, bytecode.OpReturn, bytecode.OpReturnUndefined)

	// Limit registers to one: the second local spills to a named slot.
	code = mustCompile(t, "function g() { var a = 1, b = 2; return a + b; }", Options{Limits: Limits{Registers: 1}})
	inner = function(t, code)
	if inner.RegisterEnd != 1 || inner.DefineEnd != 2 {
		t.Errorf("RegisterEnd/DefineEnd = %d/%d, want 1/2", inner.RegisterEnd, inner.DefineEnd)
	}
	if !hasOp(t, inner, bytecode.OpDefineVar) {
		t.Errorf("spilled local not defined\n%s", inner.Disassemble())
	}
}

func TestCompileEnvironmentFlags(t *testing.T) {
	code := mustCompile(t, `function h() { var t; eval("t"); }`, Options{})
	inner := function(t, code)
	if !inner.Has(bytecode.FlagNeedsLexicalEnv | bytecode.FlagNeedsArguments) {
		t.Errorf("eval caller flags = %#x, want lexical env and arguments", inner.Flags)
	}
	if inner.RegisterEnd != inner.ArgumentEnd {
		t.Errorf("eval caller allocated %d registers", inner.RegisterEnd-inner.ArgumentEnd)
	}
	if !hasOp(t, inner, bytecode.OpCallEval) || !hasOp(t, inner, bytecode.OpDefineVar) {
		t.Errorf("missing CallEval or DefineVar\n%s", inner.Disassemble())
	}

	code = mustCompile(t, "function k() { return arguments.length; }", Options{})
	if inner := function(t, code); !inner.Has(bytecode.FlagNeedsArguments) {
		t.Error("arguments reference lacks FlagNeedsArguments")
	}

	// A closure forces the enclosing function's locals into the environment.
	code = mustCompile(t, "function outer() { var v = 1; function inner() { return v; } return inner; }", Options{})
	outer := function(t, code)
	if !outer.Has(bytecode.FlagNeedsLexicalEnv) {
		t.Error("closure parent lacks FlagNeedsLexicalEnv")
	}
	if outer.RegisterEnd != 0 {
		t.Errorf("closure parent RegisterEnd = %d, want 0", outer.RegisterEnd)
	}
	if !hasOp(t, outer, bytecode.OpInitializeVar) {
		t.Errorf("nested declaration not initialized\n%s", outer.Disassemble())
	}
}

func TestCompileDuplicateParameters(t *testing.T) {
	code := mustCompile(t, "function f(a, b, a) { return a; }", Options{})
	inner := function(t, code)
	if inner.ArgumentEnd != 3 {
		t.Fatalf("ArgumentEnd = %d, want 3", inner.ArgumentEnd)
	}
	wantKinds := []bytecode.LiteralKind{bytecode.LiteralUnused, bytecode.LiteralIdent, bytecode.LiteralIdent}
	wantText := []string{"", "b", "a"}
	for i := range wantKinds {
		if inner.Literals[i].Kind != wantKinds[i] || inner.Literals[i].Text != wantText[i] {
			t.Errorf("literal[%d] = %v, want %v %q", i, inner.Literals[i], wantKinds[i], wantText[i])
		}
	}
}

func TestCompileArrow(t *testing.T) {
	code := mustCompile(t, "var f = (a, b) => a + b;", Options{})
	assertOps(t, code, bytecode.OpDefineVar, bytecode.OpAssignLiteralIdent, bytecode.OpReturnUndefined)
	inner := function(t, code)
	if !inner.Has(bytecode.FlagFunction | bytecode.FlagArrow) {
		t.Errorf("arrow flags = %#x", inner.Flags)
	}
	assertOps(t, inner, bytecode.OpAddTwoLiterals, bytecode.OpReturn)

	code = mustCompile(t, "function g() { return () => arguments; }", Options{})
	if g := function(t, code); !g.Has(bytecode.FlagNeedsArguments) {
		t.Error("arrow arguments reference not charged to the enclosing function")
	}
}

func TestCompileFunctionUnit(t *testing.T) {
	code, err := CompileFunction("a, b", "return a * b;", "mul", Options{})
	if err != nil {
		t.Fatalf("CompileFunction error: %v", err)
	}
	if err := bytecode.Verify(code); err != nil {
		t.Fatalf("Verify error: %v", err)
	}
	if code.Name != "mul" || !code.Has(bytecode.FlagFunction) || code.ArgumentEnd != 2 {
		t.Errorf("got name %q flags %#x args %d", code.Name, code.Flags, code.ArgumentEnd)
	}
	assertOps(t, code, bytecode.OpMulTwoLiterals, bytecode.OpReturn, bytecode.OpReturnUndefined)

	_, err = CompileFunction("a, a", "'use strict';", "f", Options{})
	assertCode(t, err, ErrStrictDuplicateParam)

	_, err = CompileFunction("a,", "", "f", Options{})
	assertCode(t, err, ErrUnexpectedToken)
}

// ---------------------------------------------------------------------------
// Control flow
// ---------------------------------------------------------------------------

func TestCompileControlFlow(t *testing.T) {
	tests := []struct {
		source string
		want   []bytecode.Opcode
	}{
		{"if (a) b(); else c();", []bytecode.Opcode{
			bytecode.OpPushLiteral, bytecode.OpBranchIfFalseForward,
			bytecode.OpPushLiteral, bytecode.OpCall, bytecode.OpPop, bytecode.OpJumpForward,
			bytecode.OpPushLiteral, bytecode.OpCall, bytecode.OpPop,
			bytecode.OpReturnUndefined,
		}},
		{"if (a) x(); else {}", []bytecode.Opcode{
			bytecode.OpPushLiteral, bytecode.OpBranchIfFalseForward,
			bytecode.OpPushLiteral, bytecode.OpCall, bytecode.OpPop,
			bytecode.OpReturnUndefined,
		}},
		{"while (i) i--;", []bytecode.Opcode{
			bytecode.OpJumpForward, bytecode.OpDecrIdent, bytecode.OpPushLiteral,
			bytecode.OpBranchIfTrueBackward, bytecode.OpReturnUndefined,
		}},
		{"for (var i = 0; i < 3; i++) f(i);", []bytecode.Opcode{
			bytecode.OpDefineVar, bytecode.OpAssignLiteralIdent, bytecode.OpJumpForward,
			bytecode.OpPushTwoLiterals, bytecode.OpCall, bytecode.OpPop,
			bytecode.OpIncrIdent, bytecode.OpLessTwoLiterals, bytecode.OpBranchIfTrueBackward,
			bytecode.OpReturnUndefined,
		}},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			assertOps(t, mustCompile(t, tt.source, Options{}), tt.want...)
		})
	}
}

func TestCompileContexts(t *testing.T) {
	tests := []struct {
		source string
		want   []bytecode.Opcode
	}{
		{"for (var k in o) f(k);", []bytecode.Opcode{bytecode.OpForInCreateContext, bytecode.OpForInGetNext, bytecode.OpForInHasNextBackward}},
		{"for (x of xs) {}", []bytecode.Opcode{bytecode.OpForOfCreateContext, bytecode.OpForOfGetNext, bytecode.OpForOfHasNextBackward}},
		{"with (o) { a = 1; }", []bytecode.Opcode{bytecode.OpWithCreateContext, bytecode.OpContextEnd}},
		{"try { a(); } catch (e) { b(e); } finally { c(); }", []bytecode.Opcode{
			bytecode.OpTryCreateContext, bytecode.OpCatch, bytecode.OpFinally, bytecode.OpContextEnd,
		}},
		{"for (k in o) { if (k) break; }", []bytecode.Opcode{bytecode.OpJumpForwardExitContext}},
		{"switch (a) { case 1: b(); break; default: c(); }", []bytecode.Opcode{bytecode.OpBranchIfStrictEqualForward}},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			code := mustCompile(t, tt.source, Options{})
			for _, op := range tt.want {
				if !hasOp(t, code, op) {
					t.Errorf("missing %v\n%s", op, code.Disassemble())
				}
			}
		})
	}
}

func TestCompileCatchBinding(t *testing.T) {
	code := mustCompile(t, "function f() { try { g(); } catch (e) { return e; } }", Options{})
	inner := function(t, code)
	if !inner.Has(bytecode.FlagNeedsLexicalEnv) {
		t.Error("catch scope lacks FlagNeedsLexicalEnv")
	}
	for i := int(inner.ArgumentEnd); i < int(inner.RegisterEnd); i++ {
		if inner.Literals[i].Text == "e" {
			t.Errorf("catch parameter allocated register %d", i)
		}
	}
}

func TestCompileWideOperands(t *testing.T) {
	names := make([]string, 300)
	for i := range names {
		names[i] = fmt.Sprintf("v%d", i)
	}
	code := mustCompile(t, "var "+strings.Join(names, ", ")+";", Options{})
	if !code.Has(bytecode.FlagWideLiterals) || code.LiteralWidth() != 2 {
		t.Errorf("300 literals: flags %#x, width %d", code.Flags, code.LiteralWidth())
	}

	var sb strings.Builder
	sb.WriteString("if (a) {")
	for i := 0; i < 150; i++ {
		sb.WriteString(" x = 1;")
	}
	sb.WriteString(" }")
	code = mustCompile(t, sb.String(), Options{})
	if code.Has(bytecode.FlagWideLiterals) {
		t.Error("three literals marked wide")
	}
	if !hasOp(t, code, bytecode.OpBranchIfFalseForward2) {
		t.Errorf("long branch not widened\n%s", code.Disassemble())
	}
}

// ---------------------------------------------------------------------------
// Debug information
// ---------------------------------------------------------------------------

func TestCompileLineInfo(t *testing.T) {
	code := mustCompile(t, "a = 1;\nb = 2;\n\nc = 3;", Options{LineInfo: true})
	if !code.Has(bytecode.FlagHasLineInfo) {
		t.Fatal("FlagHasLineInfo not set")
	}
	want := []bytecode.LineEntry{{Offset: 0, Line: 1}, {Offset: 3, Line: 2}, {Offset: 6, Line: 4}}
	if len(code.Lines) != len(want) {
		t.Fatalf("got %d line entries %v, want %d", len(code.Lines), code.Lines, len(want))
	}
	for i, w := range want {
		if code.Lines[i].Offset != w.Offset || code.Lines[i].Line != w.Line {
			t.Errorf("line[%d] = %+v, want offset %d line %d", i, code.Lines[i], w.Offset, w.Line)
		}
	}
	if got := code.LineAt(4); got != 2 {
		t.Errorf("LineAt(4) = %d, want 2", got)
	}

	if code := mustCompile(t, "a = 1;", Options{}); len(code.Lines) != 0 || code.Has(bytecode.FlagHasLineInfo) {
		t.Error("line table recorded without LineInfo")
	}
}

func TestCompileBreakpoints(t *testing.T) {
	code := mustCompile(t, "a = 1;\nb = 2;", Options{Breakpoints: true})
	assertOps(t, code,
		bytecode.OpBreakpointDisabled, bytecode.OpAssignLiteralIdent,
		bytecode.OpBreakpointDisabled, bytecode.OpAssignLiteralIdent,
		bytecode.OpReturnUndefined)

	code = mustCompile(t, "debugger;", Options{})
	if !hasOp(t, code, bytecode.OpBreakpointEnabled) {
		t.Errorf("debugger statement not compiled\n%s", code.Disassemble())
	}
}

// ---------------------------------------------------------------------------
// Errors
// ---------------------------------------------------------------------------

func TestCompileStrictErrors(t *testing.T) {
	tests := []struct {
		source string
		opts   Options
		code   ErrorCode
	}{
		{`"use strict"; with (a) {}`, Options{}, ErrStrictWith},
		{`with (a) {}`, Options{Strict: true}, ErrStrictWith},
		{`"use strict"; var eval;`, Options{}, ErrStrictEvalArguments},
		{`"use strict"; arguments = 1;`, Options{}, ErrStrictEvalArguments},
		{`"use strict"; function eval() {}`, Options{}, ErrStrictEvalArguments},
		{`"use strict"; delete x;`, Options{}, ErrStrictDelete},
		{`"use strict"; var n = 010;`, Options{}, ErrStrictOctal},
		{`"use strict"; var s = "\07";`, Options{}, ErrStrictOctalEscape},
		{`function f() { "\07"; "use strict"; }`, Options{}, ErrStrictOctalEscape},
		{`function f(a, a) { "use strict"; }`, Options{}, ErrStrictDuplicateParam},
		{`"use strict"; var let = 1;`, Options{}, ErrStrictReserved},
		{`"use strict"; if (a) function f() {}`, Options{}, ErrStrictFunctionDeclaration},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := Compile(tt.source, tt.opts)
			assertCode(t, err, tt.code)
		})
	}
}

func TestCompileSloppyAccepts(t *testing.T) {
	for _, src := range []string{
		`with (a) {}`,
		`var eval;`,
		`delete x;`,
		`var n = 010;`,
		`function f(a, a) {}`,
		`var let = 1;`,
	} {
		t.Run(src, func(t *testing.T) {
			code := mustCompile(t, src, Options{})
			if code.Has(bytecode.FlagStrict) {
				t.Error("sloppy code marked strict")
			}
		})
	}

	code := mustCompile(t, `"use strict"; a = 1;`, Options{})
	if !code.Has(bytecode.FlagStrict) {
		t.Error("directive did not set FlagStrict")
	}
}

func TestCompileSyntaxErrors(t *testing.T) {
	tests := []struct {
		source string
		code   ErrorCode
	}{
		{"return 1;", ErrIllegalReturn},
		{"break;", ErrIllegalBreak},
		{"continue;", ErrIllegalContinue},
		{"L: { continue L; }", ErrIllegalContinue},
		{"while (a) { break L; }", ErrUndefinedLabel},
		{"L: L: a;", ErrDuplicateLabel},
		{"throw\n1;", ErrNewlineAfterThrow},
		{"switch (a) { default: default: }", ErrMultipleDefaults},
		{"try {}", ErrMissingCatchOrFinally},
		{"o = { get a() {}, a: 1 };", ErrDuplicateProperty},
		{"1 = 2;", ErrInvalidAssignTarget},
		{"f = (a, a) => 1;", ErrInvalidArrowParams},
		{"a`x`;", ErrTaggedTemplate},
		{"var class;", ErrReservedWord},
		{"a +;", ErrUnexpectedToken},
		{"if (a b", ErrExpectedToken},
		{"s = 'abc", ErrUnterminatedString},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			_, err := Compile(tt.source, Options{})
			assertCode(t, err, tt.code)
		})
	}
}

func TestCompileErrorPosition(t *testing.T) {
	_, err := Compile("a = 1;\n  return 2;", Options{})
	assertCode(t, err, ErrIllegalReturn)
	cerr := err.(*Error)
	if cerr.Line != 2 || cerr.Column != 3 {
		t.Errorf("position = %d:%d, want 2:3", cerr.Line, cerr.Column)
	}
	if cerr.Offset != strings.Index("a = 1;\n  return 2;", "return") {
		t.Errorf("offset = %d", cerr.Offset)
	}
}

func TestCompileLimits(t *testing.T) {
	tests := []struct {
		name   string
		source string
		limits Limits
		code   ErrorCode
	}{
		{"literals", "var a, b, c, d, e;", Limits{Literals: 4}, ErrTooManyLiterals},
		{"arguments", "f(1, 2, 3);", Limits{Arguments: 2}, ErrTooManyArguments},
		{"parameters", "function f(a, b, c) {}", Limits{Arguments: 2}, ErrTooManyParameters},
		{"stack", "a = [1, 2, 3];", Limits{Stack: 2}, ErrStackLimit},
		{"nesting", "x = ((((((((((((1))))))))))));", Limits{Nesting: 10}, ErrNestingTooDeep},
		{"code size", "a = 1; b = 2; c = 3; d = 4;", Limits{CodeSize: 8}, ErrCodeTooLarge},
		{"identifier", "abcdefgh = 1;", Limits{IdentLength: 4}, ErrIdentifierTooLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(tt.source, Options{Limits: tt.limits})
			assertCode(t, err, tt.code)
		})
	}
}

// ---------------------------------------------------------------------------
// Resource and output properties
// ---------------------------------------------------------------------------

func TestCompileReleasesPages(t *testing.T) {
	pool := NewPagePool()
	sources := []struct {
		source string
		limits Limits
	}{
		{"function f(a) { var x = a; return function () { return x; }; }", Limits{}},
		{"var a, b, c, d, e;", Limits{Literals: 4}},
		{"function f() { return ( }", Limits{}},
		{"a = [1, 2, 3];", Limits{Stack: 2}},
	}
	for _, s := range sources {
		Compile(s.source, Options{Pages: pool, Limits: s.limits})
		if n := pool.Live(); n != 0 {
			t.Errorf("%q left %d pages live", s.source, n)
		}
	}
}

func TestCompileDeterministic(t *testing.T) {
	src := "function f(a) { for (var i = 0; i < a; i++) { if (i % 2) continue; g(i, 'x'); } return /re/; }"
	a := mustCompile(t, src, Options{LineInfo: true})
	b := mustCompile(t, src, Options{LineInfo: true})
	ab, err := bytecode.Marshal(a)
	if err != nil {
		t.Fatal(err)
	}
	bb, err := bytecode.Marshal(b)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(ab, bb) {
		t.Error("two compiles of the same source differ")
	}
	fa, _ := bytecode.Fingerprint(a)
	fb, _ := bytecode.Fingerprint(b)
	if fa != fb {
		t.Error("fingerprints differ")
	}
}

// verifyCorpus covers every statement form; each program must compile to
// code the verifier accepts.
var verifyCorpus = []string{
	"",
	";;;",
	"var a = 1, b = a + 2, c;",
	"x = a ? b : c;",
	"x = a && b || !c;",
	"x = (a, b, c);",
	"a += 1; b -= c; d *= e[f]; g.h |= 3;",
	"i++; --j; o.p++; o[q]--;",
	"x = -a + +b - ~c;",
	"x = void 0, y = typeof z.w;",
	"x = a instanceof B, y = 'k' in o;",
	"x = new F(1, 2); y = new G;",
	"o.a.b.c(1)(2);",
	"x = [1, [2, [3]], {}];",
	"x = { a: 1, 'b': 2, 3: c, get d() { return 4; } };",
	"if (a) { if (b) c(); } else if (d) e(); else f();",
	"while (a) { if (b) break; if (c) continue; d(); }",
	"do { a--; } while (a > 0);",
	"for (;;) { break; }",
	"for (var i = 0, j = 10; i < j; i++, j--) ;",
	"for (k in o) { if (k == 'x') continue; }",
	"for (var v of xs) { try { f(v); } catch (e) { break; } }",
	"outer: for (;;) { inner: while (a) { if (b) break outer; continue inner; } }",
	"switch (a) { case 1: case 2: b(); break; case c: d(); default: e(); }",
	"switch (a) {}",
	"try { a(); } catch (e) { b(e); }",
	"try { a(); } finally { b(); }",
	"try { try { a(); } finally { b(); } } catch (e) {}",
	"with (o) { with (p) { q = r; } }",
	"function f() { return; }",
	"function f(a) { return function g(b) { return a + b; }; }",
	"var f = function fact(n) { return n < 2 ? 1 : n * fact(n - 1); };",
	"var f = x => x * 2, g = () => {}, h = (a, b) => { return a; };",
	"s = `a${b}c${`d${e}`}f`;",
	"throw new Error('x');",
	"label: { break label; }",
	"debugger;",
	"r = /[a-z]+/gi.test(s);",
	"x = 0x1F + 0b101 + 0o17 + 1e3 + .5;",
	"function f() { 'use strict'; var a = arguments[0]; return a; }",
	"function f() { eval('1'); var x; return x; }",
	"(function () { var x = 1; return x; })();",
}

func TestCompileVerifyCorpus(t *testing.T) {
	for _, src := range verifyCorpus {
		t.Run(src, func(t *testing.T) {
			code := mustCompile(t, src, Options{LineInfo: true, Breakpoints: true})
			if _, err := code.Instructions(); err != nil {
				t.Fatal(err)
			}
		})
	}
}

func TestCompileBoundaryParity(t *testing.T) {
	var seen int
	opts := Options{OnBoundary: func(b Boundary) {
		seen++
		if b.Scanned != b.Parsed {
			t.Errorf("%s at %s: scanned %s, parsed %s", b.Kind, b.Construct, b.Scanned, b.Parsed)
		}
	}}
	for _, src := range verifyCorpus {
		if _, err := Compile(src, opts); err != nil {
			t.Fatalf("Compile(%q) error: %v", src, err)
		}
	}
	if seen == 0 {
		t.Error("no boundaries reported")
	}
}
