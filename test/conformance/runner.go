package conformance

import (
	"errors"
	"fmt"
	"strings"

	"github.com/chazu/scriptc/compiler"
	"github.com/chazu/scriptc/pkg/bytecode"
	"github.com/chazu/scriptc/pkg/regex"
)

// TestResult represents the outcome of running a single test
type TestResult struct {
	Test       LoadedTest
	Passed     bool
	Skipped    bool
	SkipReason string
	Error      error
}

// Runner compiles conformance tests and checks their expectations
type Runner struct {
	pages *compiler.PagePool
}

// NewRunner creates a test runner sharing one page pool across tests
func NewRunner() *Runner {
	return &Runner{pages: compiler.NewPagePool()}
}

// Live returns the number of arena pages the runner's compiles still hold.
func (r *Runner) Live() int { return r.pages.Live() }

func (r *Runner) options(test LoadedTest) compiler.Options {
	so := test.Suite.Options
	opts := compiler.Options{
		Strict:      so.Strict,
		Breakpoints: so.Breakpoints,
		LineInfo:    so.LineInfo,
		Limits:      so.Limits.compiler(),
		Pages:       r.pages,
	}
	if so.Regexp {
		opts.Regexp = regex.Compiler{}
	}
	if test.Test.Strict != nil {
		opts.Strict = *test.Test.Strict
	}
	if test.Test.Limits != nil {
		opts.Limits = test.Test.Limits.compiler()
	}
	return opts
}

// Run executes a single test case
func (r *Runner) Run(test LoadedTest) TestResult {
	if skipped, reason := test.Test.IsSkipped(); skipped {
		return TestResult{
			Test:       test,
			Skipped:    true,
			SkipReason: reason,
		}
	}

	opts := r.options(test)
	var code *bytecode.CompiledCode
	var err error
	if test.Test.Function != "" {
		code, err = compiler.CompileFunction(test.Test.Params, test.Test.Source, test.Test.Function, opts)
	} else {
		code, err = compiler.Compile(test.Test.Source, opts)
	}

	if err := checkExpectation(test.Test.Expect, code, err); err != nil {
		return TestResult{Test: test, Error: err}
	}
	return TestResult{Test: test, Passed: true}
}

// RunAll executes every test in order
func (r *Runner) RunAll(tests []LoadedTest) []TestResult {
	results := make([]TestResult, len(tests))
	for i, test := range tests {
		results[i] = r.Run(test)
	}
	return results
}

// SummaryStats computes statistics from test results
type SummaryStats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
}

// ComputeStats generates statistics from test results
func ComputeStats(results []TestResult) SummaryStats {
	stats := SummaryStats{Total: len(results)}
	for _, r := range results {
		if r.Skipped {
			stats.Skipped++
		} else if r.Passed {
			stats.Passed++
		} else {
			stats.Failed++
		}
	}
	return stats
}

// FormatStats returns a human-readable summary
func FormatStats(stats SummaryStats) string {
	return fmt.Sprintf("%d passed, %d failed, %d skipped (%d total)",
		stats.Passed, stats.Failed, stats.Skipped, stats.Total)
}

// checkExpectation checks if the compile outcome matches the expected one
func checkExpectation(expect Expectation, code *bytecode.CompiledCode, err error) error {
	if expect.Error != "" || expect.Kind != "" {
		return checkError(expect, err)
	}
	if err != nil {
		return fmt.Errorf("unexpected compile error: %w", err)
	}

	if err := bytecode.Verify(code); err != nil {
		return fmt.Errorf("output fails verification: %w", err)
	}
	if err := checkRoundTrip(code); err != nil {
		return err
	}

	ins, err := code.Instructions()
	if err != nil {
		return fmt.Errorf("decoding output: %w", err)
	}
	names := make([]string, len(ins))
	for i, in := range ins {
		names[i] = in.Op.String()
	}

	if expect.Ops != nil && strings.Join(names, " ") != strings.Join(expect.Ops, " ") {
		return fmt.Errorf("ops = %v, want %v\n%s", names, expect.Ops, code.Disassemble())
	}
	for _, want := range expect.Contains {
		if !contains(names, want) {
			return fmt.Errorf("no %s in %v", want, names)
		}
	}

	for _, name := range expect.Flags {
		f, ok := flagByName[name]
		if !ok {
			return fmt.Errorf("unknown flag: %s", name)
		}
		if !code.Has(f) {
			return fmt.Errorf("flag %s not set", name)
		}
	}
	for _, name := range expect.NotFlags {
		f, ok := flagByName[name]
		if !ok {
			return fmt.Errorf("unknown flag: %s", name)
		}
		if code.Flags&f != 0 {
			return fmt.Errorf("flag %s set", name)
		}
	}

	if expect.Literals != nil && len(code.Literals) != *expect.Literals {
		return fmt.Errorf("literals = %d, want %d", len(code.Literals), *expect.Literals)
	}
	if expect.Registers != nil && code.RegisterCount() != *expect.Registers {
		return fmt.Errorf("registers = %d, want %d", code.RegisterCount(), *expect.Registers)
	}
	if expect.StackLimit != nil && int(code.StackLimit) != *expect.StackLimit {
		return fmt.Errorf("stack limit = %d, want %d", code.StackLimit, *expect.StackLimit)
	}
	if expect.Functions != nil {
		if n := countFunctions(code); n != *expect.Functions {
			return fmt.Errorf("functions = %d, want %d", n, *expect.Functions)
		}
	}
	return nil
}

func checkError(expect Expectation, err error) error {
	if err == nil {
		return fmt.Errorf("expected error %q, compile succeeded", expect.Error)
	}
	var cerr *compiler.Error
	if !errors.As(err, &cerr) {
		return fmt.Errorf("error %v is not a compile error", err)
	}
	if expect.Error != "" && cerr.Code.String() != expect.Error {
		return fmt.Errorf("expected error %q, got %q", expect.Error, cerr.Code)
	}
	if expect.Kind != "" && cerr.Kind.String() != expect.Kind {
		return fmt.Errorf("expected %s error, got %s", expect.Kind, cerr.Kind)
	}
	if expect.Line != 0 && cerr.Line != expect.Line {
		return fmt.Errorf("error line = %d, want %d", cerr.Line, expect.Line)
	}
	if expect.Column != 0 && cerr.Column != expect.Column {
		return fmt.Errorf("error column = %d, want %d", cerr.Column, expect.Column)
	}
	return nil
}

// checkRoundTrip confirms the artifact survives serialization unchanged.
func checkRoundTrip(code *bytecode.CompiledCode) error {
	data, err := bytecode.Marshal(code)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	back, err := bytecode.Unmarshal(data)
	if err != nil {
		return fmt.Errorf("unmarshal: %w", err)
	}
	a, err := bytecode.Fingerprint(code)
	if err != nil {
		return err
	}
	b, err := bytecode.Fingerprint(back)
	if err != nil {
		return err
	}
	if a != b {
		return fmt.Errorf("fingerprint changed across serialization")
	}
	return nil
}

var flagByName = map[string]bytecode.CodeFlags{
	"STRICT":      bytecode.FlagStrict,
	"WIDE":        bytecode.FlagWideLiterals,
	"FUNCTION":    bytecode.FlagFunction,
	"ARROW":       bytecode.FlagArrow,
	"ARGUMENTS":   bytecode.FlagNeedsArguments,
	"LEXICAL_ENV": bytecode.FlagNeedsLexicalEnv,
	"LINES":       bytecode.FlagHasLineInfo,
	"NAMED":       bytecode.FlagNamedFunctionExpr,
}

func contains(names []string, want string) bool {
	for _, n := range names {
		if n == want {
			return true
		}
	}
	return false
}

func countFunctions(code *bytecode.CompiledCode) int {
	n := 0
	for _, lit := range code.Literals {
		if lit.Kind == bytecode.LiteralFunction && lit.Function != nil {
			n += 1 + countFunctions(lit.Function)
		}
	}
	return n
}
