package manifest

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/chazu/scriptc/compiler"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "test-app"
version = "0.1.0"

[source]
dirs = ["src", "lib"]
extensions = [".js", ".mjs"]

[compiler]
strict = true
breakpoints = true
line-info = true
regexp = true

[limits]
stack = 64
literals = 1000
identifier-length = 32

[log]
verbosity = 2
file = "scriptc.log"

[cache]
enabled = true
path = "/tmp/cache.db"

[server]
address = ":9000"
grpc-address = ":9001"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Project.Name != "test-app" {
		t.Errorf("project name = %q, want test-app", m.Project.Name)
	}
	if m.Project.Version != "0.1.0" {
		t.Errorf("project version = %q, want 0.1.0", m.Project.Version)
	}
	if len(m.Source.Dirs) != 2 || len(m.Source.Extensions) != 2 {
		t.Errorf("source = %+v", m.Source)
	}
	if !m.Compiler.Strict || !m.Compiler.Breakpoints || !m.Compiler.LineInfo || !m.Compiler.Regexp {
		t.Errorf("compiler = %+v, want all set", m.Compiler)
	}
	if m.Limits.Stack != 64 || m.Limits.Literals != 1000 || m.Limits.IdentLength != 32 {
		t.Errorf("limits = %+v", m.Limits)
	}
	if m.Log.Verbosity != 2 || m.Log.File != "scriptc.log" {
		t.Errorf("log = %+v", m.Log)
	}
	if !m.Cache.Enabled || m.CachePath() != "/tmp/cache.db" {
		t.Errorf("cache = %+v, path %q", m.Cache, m.CachePath())
	}
	if m.Server.Address != ":9000" || m.Server.GrpcAddress != ":9001" {
		t.Errorf("server = %+v", m.Server)
	}
}

func TestLoadManifestDefaults(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
[project]
name = "minimal"
`)

	m, err := Load(dir)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if len(m.Source.Dirs) != 1 || m.Source.Dirs[0] != "src" {
		t.Errorf("default source dirs = %v, want [src]", m.Source.Dirs)
	}
	if len(m.Source.Extensions) != 1 || m.Source.Extensions[0] != ".js" {
		t.Errorf("default extensions = %v, want [.js]", m.Source.Extensions)
	}
	if want := filepath.Join(m.Dir, ".scriptc", "cache.db"); m.CachePath() != want {
		t.Errorf("cache path = %q, want %q", m.CachePath(), want)
	}
	if m.Server.Address == "" {
		t.Error("default server address empty")
	}
}

func TestLoadManifestErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"syntax", "[project\nname = 1"},
		{"unknown key", "[compiler]\nstrictness = true\n"},
		{"negative limit", "[limits]\nstack = -1\n"},
		{"arguments", "[limits]\narguments = 300\n"},
		{"literals", "[limits]\nliterals = 70000\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeManifest(t, dir, tt.content)
			if _, err := Load(dir); err == nil {
				t.Error("Load succeeded, want error")
			}
		})
	}
}

func TestCompileOptions(t *testing.T) {
	m := Default("/app")
	m.Compiler.Strict = true
	m.Compiler.LineInfo = true
	m.Limits.Stack = 16

	opts := m.CompileOptions()
	if !opts.Strict || !opts.LineInfo || opts.Breakpoints {
		t.Errorf("flags = %+v", opts)
	}
	if opts.Limits.Stack != 16 || opts.Limits.Literals != 0 {
		t.Errorf("limits = %+v", opts.Limits)
	}
	if opts.Regexp != nil {
		t.Error("regexp compiler set without [compiler] regexp")
	}

	m.Compiler.Regexp = true
	if m.CompileOptions().Regexp == nil {
		t.Error("regexp compiler not set")
	}

	// The options drive a real compile.
	if _, err := compiler.Compile("with (a) {}", m.CompileOptions()); err == nil {
		t.Error("strict configuration accepted with")
	}
}

func TestFindAndLoad(t *testing.T) {
	dir := t.TempDir()
	subDir := filepath.Join(dir, "a", "b", "c")
	if err := os.MkdirAll(subDir, 0755); err != nil {
		t.Fatal(err)
	}
	writeManifest(t, dir, `[project]
name = "found-project"
`)

	// Should find manifest when starting from a deep subdirectory
	m, err := FindAndLoad(subDir)
	if err != nil {
		t.Fatalf("FindAndLoad failed: %v", err)
	}
	if m == nil {
		t.Fatal("FindAndLoad returned nil")
	}
	if m.Project.Name != "found-project" {
		t.Errorf("project name = %q, want found-project", m.Project.Name)
	}
}

func TestFindAndLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	m, err := FindAndLoad(dir)
	if err != nil {
		t.Fatalf("FindAndLoad error: %v", err)
	}
	if m != nil {
		t.Errorf("expected nil manifest when no %s exists", FileName)
	}
}

func TestSourceDirPaths(t *testing.T) {
	m := &Manifest{
		Dir: "/app",
		Source: Source{
			Dirs: []string{"src", "lib"},
		},
	}

	paths := m.SourceDirPaths()
	if len(paths) != 2 {
		t.Fatalf("expected 2 paths, got %d", len(paths))
	}
	if paths[0] != "/app/src" {
		t.Errorf("paths[0] = %q, want /app/src", paths[0])
	}
	if paths[1] != "/app/lib" {
		t.Errorf("paths[1] = %q, want /app/lib", paths[1])
	}
}

func TestSourceFiles(t *testing.T) {
	dir := t.TempDir()
	for _, f := range []string{"src/b.js", "src/a.js", "src/nested/c.js", "src/readme.md", "src/.hidden/d.js"} {
		path := filepath.Join(dir, f)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte("x;"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	m := Default(dir)
	m.Source.Dirs = []string{"src", "missing"}

	files, err := m.SourceFiles()
	if err != nil {
		t.Fatalf("SourceFiles error: %v", err)
	}
	want := []string{"src/a.js", "src/b.js", "src/nested/c.js"}
	if len(files) != len(want) {
		t.Fatalf("files = %v, want %v", files, want)
	}
	for i, w := range want {
		if files[i] != filepath.Join(dir, w) {
			t.Errorf("files[%d] = %q, want %q", i, files[i], w)
		}
	}
}

func TestLockFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	lockPath := filepath.Join(dir, ".scriptc", "lock.toml")

	lf := &LockFile{}
	lf.Set(LockedUnit{Path: "src/main.js", Source: "aa", Fingerprint: "bb"})
	lf.Set(LockedUnit{Path: "src/lib.js", Source: "cc", Fingerprint: "dd"})
	lf.Set(LockedUnit{Path: "src/main.js", Source: "ee", Fingerprint: "ff"})

	if err := WriteLock(lockPath, lf); err != nil {
		t.Fatalf("WriteLock failed: %v", err)
	}

	loaded, err := ReadLock(lockPath)
	if err != nil {
		t.Fatalf("ReadLock failed: %v", err)
	}

	if len(loaded.Units) != 2 {
		t.Fatalf("expected 2 units, got %d", len(loaded.Units))
	}
	if loaded.Units[0].Path != "src/lib.js" {
		t.Errorf("unit[0].Path = %q, want src/lib.js", loaded.Units[0].Path)
	}

	found := loaded.FindUnit("src/main.js")
	if found == nil || found.Source != "ee" || found.Fingerprint != "ff" {
		t.Errorf("FindUnit(src/main.js) = %v, want the replaced unit", found)
	}

	if notFound := loaded.FindUnit("nonexistent"); notFound != nil {
		t.Errorf("FindUnit(nonexistent) = %v, want nil", notFound)
	}
}

func TestReadLockNotFound(t *testing.T) {
	lf, err := ReadLock("/nonexistent/path/lock.toml")
	if err != nil {
		t.Errorf("ReadLock should return nil,nil for missing file, got err: %v", err)
	}
	if lf != nil {
		t.Errorf("ReadLock should return nil for missing file, got %v", lf)
	}
}
