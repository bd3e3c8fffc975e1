package bytecode

import (
	"strings"
	"testing"
)

func TestDisassembleHeader(t *testing.T) {
	output := sampleCode().Disassemble()

	for _, want := range []string{"; === <script> ===", "Script Bytecode v1", "Literals (2):", "ident", "const"} {
		if !strings.Contains(output, want) {
			t.Errorf("disassembly missing %q:\n%s", want, output)
		}
	}
}

func TestDisassembleInstructions(t *testing.T) {
	lines := sampleCode().DisassembleToLines()
	want := []string{
		"ASSIGN_LITERAL_IDENT 0(x) 1(1)",
		"PUSH_LITERAL 0(x)",
		"BRANCH_IF_FALSE_FORWARD -> 0010",
		"PUSH_LITERAL 0(x)",
		"POP",
		"RETURN_UNDEFINED",
	}
	if len(lines) != len(want) {
		t.Fatalf("got %d lines, want %d: %v", len(lines), len(want), lines)
	}
	for i := range want {
		if lines[i] != want[i] {
			t.Errorf("line %d = %q, want %q", i, lines[i], want[i])
		}
	}
}

func TestDisassembleNested(t *testing.T) {
	output := nestedSample().Disassemble()
	if !strings.Contains(output, "; === inc ===") {
		t.Error("nested function not disassembled")
	}
	if !strings.Contains(output, "[STRICT] [FUNCTION]") {
		t.Error("flags not rendered")
	}
	if !strings.Contains(output, "; line 1") {
		t.Error("line table not rendered")
	}
}

func TestInstructionCount(t *testing.T) {
	if got := sampleCode().InstructionCount(); got != 6 {
		t.Errorf("InstructionCount = %d, want 6", got)
	}
}
