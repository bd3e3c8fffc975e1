package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/scriptc/cache"
	"github.com/chazu/scriptc/compiler"
	"github.com/chazu/scriptc/pkg/bytecode"
)

// BytecodeExt is the extension of serialized bytecode files.
const BytecodeExt = ".jsc"

// compileFile compiles the script at path, through c when it is non-nil.
func compileFile(path string, opts compiler.Options, c *cache.Cache) (*bytecode.CompiledCode, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var code *bytecode.CompiledCode
	if c != nil {
		var hit bool
		code, hit, err = c.Compile(string(src), opts)
		if hit {
			log.Debugf("cache hit: %s", path)
		}
	} else {
		code, err = compiler.Compile(string(src), opts)
	}
	if err != nil {
		return nil, fmt.Errorf("%s:%w", path, err)
	}
	return code, nil
}

func runCompile(p *project, args []string) error {
	fs := flag.NewFlagSet("compile", flag.ExitOnError)
	out := fs.String("o", "", "Output file (default: source with "+BytecodeExt+")")
	strict := fs.Bool("strict", p.manifest.Compiler.Strict, "Compile in strict mode")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("compile takes one source file")
	}
	path := fs.Arg(0)

	c, err := p.openCache()
	if err != nil {
		return err
	}
	if c != nil {
		defer c.Close()
	}

	opts := p.options()
	opts.Strict = *strict
	code, err := compileFile(path, opts, c)
	if err != nil {
		return err
	}
	data, err := bytecode.Marshal(code)
	if err != nil {
		return err
	}

	dest := *out
	if dest == "" {
		dest = strings.TrimSuffix(path, filepath.Ext(path)) + BytecodeExt
	}
	if err := os.WriteFile(dest, data, 0644); err != nil {
		return err
	}
	log.Infof("wrote %s (%d bytes)", dest, len(data))
	return nil
}

// loadCode reads serialized bytecode, or compiles path when it is source.
func loadCode(path string, opts compiler.Options) (*bytecode.CompiledCode, error) {
	if filepath.Ext(path) != BytecodeExt {
		return compileFile(path, opts, nil)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	code, err := bytecode.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return code, nil
}

func runDisasm(p *project, args []string) error {
	fs := flag.NewFlagSet("disasm", flag.ExitOnError)
	strict := fs.Bool("strict", p.manifest.Compiler.Strict, "Compile in strict mode")
	fs.Parse(args)
	if fs.NArg() != 1 {
		return fmt.Errorf("disasm takes one file")
	}

	opts := p.options()
	opts.Strict = *strict
	code, err := loadCode(fs.Arg(0), opts)
	if err != nil {
		return err
	}
	fmt.Print(code.Disassemble())
	return nil
}

func runVerify(p *project, args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("verify takes at least one %s file", BytecodeExt)
	}
	failed := 0
	for _, path := range args {
		code, err := loadCode(path, p.options())
		if err == nil {
			err = bytecode.Verify(code)
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "%s: %v\n", path, err)
			failed++
			continue
		}
		fp, err := bytecode.Fingerprint(code)
		if err != nil {
			return err
		}
		fmt.Printf("%s: ok %x\n", path, fp[:8])
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed verification", failed, len(args))
	}
	return nil
}
