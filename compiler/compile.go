package compiler

import (
	"github.com/tliron/commonlog"

	"github.com/chazu/scriptc/pkg/bytecode"
)

var log = commonlog.GetLogger("scriptc.compiler")

// Compile compiles source as global script code.
//
// On success the result is immutable and shares nothing with the compiler;
// on failure the returned error is a *Error and every arena page taken
// from opts.Pages has been given back.
func Compile(source string, opts Options) (*bytecode.CompiledCode, error) {
	p, err := newParser(source, opts)
	if err != nil {
		return nil, err
	}
	code, err := p.script()
	if err != nil {
		log.Debugf("compile failed: %s", err)
		return nil, err
	}
	logCode(code)
	return code, nil
}

// CompileFunction compiles body as the body of a function whose formal
// parameters are given as comma separated source text.
func CompileFunction(params, body, name string, opts Options) (*bytecode.CompiledCode, error) {
	p, err := newParser(body, opts)
	if err != nil {
		return nil, err
	}
	code, err := p.functionUnit(params, name)
	if err != nil {
		log.Debugf("compile of function %q failed: %s", name, err)
		return nil, err
	}
	logCode(code)
	return code, nil
}

func logCode(code *bytecode.CompiledCode) {
	log.Debugf("compiled %q: %d literals, %d bytes, stack %d, registers %d",
		code.Name, len(code.Literals), len(code.Code), code.StackLimit, code.RegisterCount())
}
