// Package conformance runs YAML compile-conformance suites against the
// compiler.
package conformance

import "github.com/chazu/scriptc/compiler"

// TestSuite represents a complete YAML test file
type TestSuite struct {
	Name        string       `yaml:"name"`
	Description string       `yaml:"description,omitempty"`
	Options     SuiteOptions `yaml:"options,omitempty"`
	Tests       []TestCase   `yaml:"tests"`
}

// SuiteOptions are the compile options every test in a suite starts from
type SuiteOptions struct {
	Strict      bool   `yaml:"strict,omitempty"`
	Breakpoints bool   `yaml:"breakpoints,omitempty"`
	LineInfo    bool   `yaml:"line_info,omitempty"`
	Regexp      bool   `yaml:"regexp,omitempty"` // compile regexp literals
	Limits      Limits `yaml:"limits,omitempty"`
}

// Limits overrides compiler limits; zero fields keep the defaults
type Limits struct {
	Stack       int `yaml:"stack,omitempty"`
	Literals    int `yaml:"literals,omitempty"`
	Registers   int `yaml:"registers,omitempty"`
	Arguments   int `yaml:"arguments,omitempty"`
	IdentLength int `yaml:"identifier_length,omitempty"`
	Nesting     int `yaml:"nesting,omitempty"`
	CodeSize    int `yaml:"code_size,omitempty"`
}

func (l Limits) compiler() compiler.Limits {
	return compiler.Limits{
		Stack:       l.Stack,
		Literals:    l.Literals,
		Registers:   l.Registers,
		Arguments:   l.Arguments,
		IdentLength: l.IdentLength,
		Nesting:     l.Nesting,
		CodeSize:    l.CodeSize,
	}
}

// TestCase represents a single test within a suite
type TestCase struct {
	Name        string      `yaml:"name"`
	Description string      `yaml:"description,omitempty"`
	Skip        interface{} `yaml:"skip,omitempty"`     // bool or string
	Source      string      `yaml:"source"`             // script, or function body with function set
	Function    string      `yaml:"function,omitempty"` // compile as a function with this name
	Params      string      `yaml:"params,omitempty"`   // function parameter list
	Strict      *bool       `yaml:"strict,omitempty"`   // overrides the suite option
	Limits      *Limits     `yaml:"limits,omitempty"`   // overrides the suite limits
	Expect      Expectation `yaml:"expect"`
}

// Expectation defines what result is expected from a test
type Expectation struct {
	Error      string   `yaml:"error,omitempty"`       // error description, e.g. "undefined label"
	Kind       string   `yaml:"kind,omitempty"`        // lexical, syntax, limit, strict
	Line       int      `yaml:"line,omitempty"`        // error line
	Column     int      `yaml:"column,omitempty"`      // error column
	Ops        []string `yaml:"ops,omitempty"`         // exact top-level instruction sequence
	Contains   []string `yaml:"contains,omitempty"`    // opcodes somewhere in the top-level code
	Flags      []string `yaml:"flags,omitempty"`       // code flags that must be set
	NotFlags   []string `yaml:"not_flags,omitempty"`   // code flags that must be clear
	Literals   *int     `yaml:"literals,omitempty"`    // literal table size
	Registers  *int     `yaml:"registers,omitempty"`   // register count including arguments
	StackLimit *int     `yaml:"stack_limit,omitempty"` // stack high-water mark
	Functions  *int     `yaml:"functions,omitempty"`   // nested function literals, at any depth
}

// IsSkipped returns true if this test should be skipped
func (tc *TestCase) IsSkipped() (bool, string) {
	if tc.Skip == nil {
		return false, ""
	}

	switch v := tc.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
		return false, ""
	case string:
		return true, v
	default:
		return false, ""
	}
}
