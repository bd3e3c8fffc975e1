// scriptc CLI - compiles scripts to bytecode and serves the compiler.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/tliron/commonlog"
	_ "github.com/tliron/commonlog/simple"

	"github.com/chazu/scriptc/manifest"
)

var log = commonlog.GetLogger("scriptc.cli")

type command struct {
	name  string
	usage string
	run   func(p *project, args []string) error
}

var commands = []command{
	{"compile", "compile [-o out.jsc] [-strict] file.js   compile to CBOR bytecode", runCompile},
	{"disasm", "disasm [-strict] file.js|file.jsc          print the bytecode listing", runDisasm},
	{"verify", "verify file.jsc...                         check serialized bytecode", runVerify},
	{"build", "build [-force]                             compile the project, update the lock file", runBuild},
	{"cache", "cache stats|prune [-age d]|clear            manage the compile cache", runCache},
	{"serve", "serve [-addr host:port] [-grpc host:port]   start the compile server", runServe},
	{"lsp", "lsp                                        start the language server on stdio", runLSP},
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: scriptc [options] <command> [args]\n\n")
	fmt.Fprintf(os.Stderr, "Commands:\n")
	for _, c := range commands {
		fmt.Fprintf(os.Stderr, "  scriptc %s\n", c.usage)
	}
	fmt.Fprintf(os.Stderr, "\nOptions:\n")
	flag.PrintDefaults()
}

func main() {
	verbose := flag.Int("v", -1, "Log verbosity (overrides scriptc.toml)")
	logFile := flag.String("log", "", "Log file (default stderr)")
	dir := flag.String("C", ".", "Project directory")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() == 0 {
		usage()
		os.Exit(2)
	}

	p, err := loadProject(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading %s: %v\n", manifest.FileName, err)
		os.Exit(1)
	}
	configureLogging(p.manifest, *verbose, *logFile)

	name, args := flag.Arg(0), flag.Args()[1:]
	for _, c := range commands {
		if c.name == name {
			if err := c.run(p, args); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown command %q\n\n", name)
	usage()
	os.Exit(2)
}

// configureLogging applies flag values over the manifest's [log] table.
func configureLogging(m *manifest.Manifest, verbose int, file string) {
	v := m.Log.Verbosity
	if verbose >= 0 {
		v = verbose
	}
	path := m.Log.File
	if file != "" {
		path = file
	}
	if path == "" {
		commonlog.Configure(v, nil)
	} else {
		commonlog.Configure(v, &path)
	}
}
