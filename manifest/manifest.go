// Package manifest handles scriptc.toml project configuration.
package manifest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/chazu/scriptc/compiler"
	"github.com/chazu/scriptc/pkg/regex"
)

// FileName is the name of the project configuration file.
const FileName = "scriptc.toml"

// Manifest represents a scriptc.toml project configuration.
type Manifest struct {
	Project  Project        `toml:"project"`
	Source   Source         `toml:"source"`
	Compiler CompilerConfig `toml:"compiler"`
	Limits   LimitsConfig   `toml:"limits"`
	Log      LogConfig      `toml:"log"`
	Cache    CacheConfig    `toml:"cache"`
	Server   ServerConfig   `toml:"server"`

	// Dir is the directory containing the scriptc.toml file (set at load time).
	Dir string `toml:"-"`
}

// Project contains project metadata.
type Project struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// Source configures source file locations.
type Source struct {
	Dirs       []string `toml:"dirs"`
	Extensions []string `toml:"extensions"`
}

// CompilerConfig holds per-compile flags.
type CompilerConfig struct {
	Strict      bool `toml:"strict"`
	Breakpoints bool `toml:"breakpoints"`
	LineInfo    bool `toml:"line-info"`
	Regexp      bool `toml:"regexp"` // compile regexp literals at compile time
}

// LimitsConfig mirrors compiler.Limits. Zero values take the defaults.
type LimitsConfig struct {
	Stack        int `toml:"stack"`
	Literals     int `toml:"literals"`
	Registers    int `toml:"registers"`
	Arguments    int `toml:"arguments"`
	IdentLength  int `toml:"identifier-length"`
	StringLength int `toml:"string-length"`
	NumberLength int `toml:"number-length"`
	Nesting      int `toml:"nesting"`
	CodeSize     int `toml:"code-size"`
}

// LogConfig configures commonlog.
type LogConfig struct {
	Verbosity int    `toml:"verbosity"`
	File      string `toml:"file"`
}

// CacheConfig configures the compile cache.
type CacheConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// ServerConfig configures the compile server.
type ServerConfig struct {
	Address     string `toml:"address"`
	GrpcAddress string `toml:"grpc-address"`
}

// Default returns the configuration used when no scriptc.toml exists.
func Default(dir string) *Manifest {
	m := &Manifest{Dir: dir}
	m.applyDefaults()
	return m
}

// Load parses a scriptc.toml file from the given directory.
func Load(dir string) (*Manifest, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read %s: %w", path, err)
	}

	var m Manifest
	md, err := toml.Decode(string(data), &m)
	if err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("%s: unknown key %s", path, undecoded[0])
	}

	m.Dir, err = filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve path %s: %w", dir, err)
	}
	m.applyDefaults()
	if err := m.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &m, nil
}

func (m *Manifest) applyDefaults() {
	if len(m.Source.Dirs) == 0 {
		m.Source.Dirs = []string{"src"}
	}
	if len(m.Source.Extensions) == 0 {
		m.Source.Extensions = []string{".js"}
	}
	if m.Cache.Path == "" {
		m.Cache.Path = filepath.Join(".scriptc", "cache.db")
	}
	if m.Server.Address == "" {
		m.Server.Address = "localhost:8733"
	}
}

func (m *Manifest) validate() error {
	l := m.Limits
	for _, f := range []struct {
		name string
		v    int
	}{
		{"stack", l.Stack}, {"literals", l.Literals}, {"registers", l.Registers},
		{"arguments", l.Arguments}, {"identifier-length", l.IdentLength},
		{"string-length", l.StringLength}, {"number-length", l.NumberLength},
		{"nesting", l.Nesting}, {"code-size", l.CodeSize},
	} {
		if f.v < 0 {
			return fmt.Errorf("limits.%s must not be negative", f.name)
		}
	}
	if l.Arguments > 255 {
		return fmt.Errorf("limits.arguments %d exceeds 255", l.Arguments)
	}
	if l.Literals > 0xFFFF {
		return fmt.Errorf("limits.literals %d exceeds %d", l.Literals, 0xFFFF)
	}
	return nil
}

// FindAndLoad walks up from startDir to find a scriptc.toml file,
// then loads and returns the manifest. Returns nil if no manifest is found.
func FindAndLoad(startDir string) (*Manifest, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return nil, err
	}

	for {
		path := filepath.Join(dir, FileName)
		if _, err := os.Stat(path); err == nil {
			return Load(dir)
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return nil, nil
		}
		dir = parent
	}
}

// CompileOptions converts the configuration to compiler options.
func (m *Manifest) CompileOptions() compiler.Options {
	opts := compiler.Options{
		Strict:      m.Compiler.Strict,
		Breakpoints: m.Compiler.Breakpoints,
		LineInfo:    m.Compiler.LineInfo,
		Limits: compiler.Limits{
			Stack:        m.Limits.Stack,
			Literals:     m.Limits.Literals,
			Registers:    m.Limits.Registers,
			Arguments:    m.Limits.Arguments,
			IdentLength:  m.Limits.IdentLength,
			StringLength: m.Limits.StringLength,
			NumberLength: m.Limits.NumberLength,
			Nesting:      m.Limits.Nesting,
			CodeSize:     m.Limits.CodeSize,
		},
	}
	if m.Compiler.Regexp {
		opts.Regexp = regex.Compiler{}
	}
	return opts
}

// SourceDirPaths returns absolute paths for the configured source directories.
func (m *Manifest) SourceDirPaths() []string {
	var paths []string
	for _, d := range m.Source.Dirs {
		paths = append(paths, filepath.Join(m.Dir, d))
	}
	return paths
}

// SourceFiles lists the project's source files in lexical order. Missing
// source directories are skipped.
func (m *Manifest) SourceFiles() ([]string, error) {
	var files []string
	for _, root := range m.SourceDirPaths() {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			continue
		}
		err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != root && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if m.hasSourceExtension(path) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking %s: %w", root, err)
		}
	}
	sort.Strings(files)
	return files, nil
}

func (m *Manifest) hasSourceExtension(path string) bool {
	ext := filepath.Ext(path)
	for _, e := range m.Source.Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// CachePath returns the absolute path of the compile cache database.
func (m *Manifest) CachePath() string {
	if filepath.IsAbs(m.Cache.Path) {
		return m.Cache.Path
	}
	return filepath.Join(m.Dir, m.Cache.Path)
}

// StateDir returns the path to the .scriptc directory.
func (m *Manifest) StateDir() string {
	return filepath.Join(m.Dir, ".scriptc")
}

// LockFilePath returns the path to .scriptc/lock.toml.
func (m *Manifest) LockFilePath() string {
	return filepath.Join(m.StateDir(), "lock.toml")
}
