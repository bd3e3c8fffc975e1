package cache

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/chazu/scriptc/compiler"
	"github.com/chazu/scriptc/pkg/bytecode"
	"github.com/chazu/scriptc/pkg/regex"
)

func openTemp(t *testing.T) *Cache {
	t.Helper()
	c, err := Open(filepath.Join(t.TempDir(), "sub", "cache.db"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c
}

func TestKey(t *testing.T) {
	base := Key("a = 1;", compiler.Options{})
	if len(base) != 64 {
		t.Errorf("key length = %d, want 64 hex digits", len(base))
	}
	if Key("a = 1;", compiler.Options{}) != base {
		t.Error("key not deterministic")
	}

	// Explicit defaults address the same entry as zero limits.
	if Key("a = 1;", compiler.Options{Limits: compiler.DefaultLimits()}) != base {
		t.Error("defaulted limits changed the key")
	}

	for name, k := range map[string]string{
		"source":      Key("a = 2;", compiler.Options{}),
		"strict":      Key("a = 1;", compiler.Options{Strict: true}),
		"line info":   Key("a = 1;", compiler.Options{LineInfo: true}),
		"breakpoints": Key("a = 1;", compiler.Options{Breakpoints: true}),
		"limits":      Key("a = 1;", compiler.Options{Limits: compiler.Limits{Stack: 8}}),
		"function":    FunctionKey("", "a = 1;", "", compiler.Options{}),
	} {
		if k == base {
			t.Errorf("%s did not change the key", name)
		}
	}
}

func TestPutGet(t *testing.T) {
	c := openTemp(t)
	code, err := compiler.Compile("function f(a) { return a + 1; }", compiler.Options{})
	if err != nil {
		t.Fatal(err)
	}

	if _, err := c.Get("missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get(missing) error = %v, want ErrNotFound", err)
	}

	if err := c.Put("k", code); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	got, err := c.Get("k")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	want, _ := bytecode.Fingerprint(code)
	have, _ := bytecode.Fingerprint(got)
	if want != have {
		t.Error("cached code differs from stored code")
	}
	if err := bytecode.Verify(got); err != nil {
		t.Errorf("cached code fails verification: %v", err)
	}
}

func TestCompileHitAndMiss(t *testing.T) {
	c := openTemp(t)
	src := "var s = 'x'; s += 'y';"

	first, hit, err := c.Compile(src, compiler.Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if hit {
		t.Error("first compile reported a hit")
	}
	second, hit, err := c.Compile(src, compiler.Options{})
	if err != nil {
		t.Fatalf("Compile failed: %v", err)
	}
	if !hit {
		t.Error("second compile missed")
	}
	a, _ := bytecode.Marshal(first)
	b, _ := bytecode.Marshal(second)
	if string(a) != string(b) {
		t.Error("hit returned different code")
	}

	stats, err := c.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Entries != 1 || stats.Hits != 1 || stats.Misses != 1 || stats.Bytes == 0 {
		t.Errorf("stats = %+v", stats)
	}
}

func TestCompileErrorsNotCached(t *testing.T) {
	c := openTemp(t)
	_, _, err := c.Compile("return;", compiler.Options{})
	var cerr *compiler.Error
	if !errors.As(err, &cerr) || cerr.Code != compiler.ErrIllegalReturn {
		t.Fatalf("error = %v, want illegal return", err)
	}
	stats, _ := c.Stats()
	if stats.Entries != 0 {
		t.Errorf("failed compile stored %d entries", stats.Entries)
	}
}

func TestCompileFunctionCached(t *testing.T) {
	c := openTemp(t)
	if _, hit, err := c.CompileFunction("a, b", "return a - b;", "sub", compiler.Options{}); err != nil || hit {
		t.Fatalf("first = hit %v, err %v", hit, err)
	}
	code, hit, err := c.CompileFunction("a, b", "return a - b;", "sub", compiler.Options{})
	if err != nil || !hit {
		t.Fatalf("second = hit %v, err %v", hit, err)
	}
	if code.Name != "sub" || code.ArgumentEnd != 2 {
		t.Errorf("cached function = %q with %d args", code.Name, code.ArgumentEnd)
	}
}

func TestRegexpsReattached(t *testing.T) {
	c := openTemp(t)
	opts := compiler.Options{Regexp: regex.Compiler{}}
	src := "function f() { return /a+/i; }"
	if _, _, err := c.Compile(src, opts); err != nil {
		t.Fatal(err)
	}
	code, hit, err := c.Compile(src, opts)
	if err != nil || !hit {
		t.Fatalf("hit %v, err %v", hit, err)
	}
	n := 0
	bytecode.WalkRegexps(code, func(re *bytecode.RegexpLiteral) error {
		n++
		if re.Program == nil {
			t.Errorf("/%s/ has no program after a hit", re.Pattern)
		}
		return nil
	})
	if n != 1 {
		t.Errorf("found %d regexps, want 1", n)
	}
}

func TestPruneAndClear(t *testing.T) {
	c := openTemp(t)
	for _, src := range []string{"a;", "b;", "c;"} {
		if _, _, err := c.Compile(src, compiler.Options{}); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Prune(time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Errorf("Prune(1h) removed %d fresh entries", n)
	}
	n, err = c.Prune(-time.Hour)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("Prune(-1h) removed %d, want 3", n)
	}

	if _, _, err := c.Compile("d;", compiler.Options{}); err != nil {
		t.Fatal(err)
	}
	if err := c.Clear(); err != nil {
		t.Fatal(err)
	}
	if stats, _ := c.Stats(); stats.Entries != 0 {
		t.Errorf("entries after Clear = %d", stats.Entries)
	}
}

func TestReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache.db")
	c, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if _, _, err := c.Compile("x = 1;", compiler.Options{}); err != nil {
		t.Fatal(err)
	}
	c.Close()

	c, err = Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	if _, hit, err := c.Compile("x = 1;", compiler.Options{}); err != nil || !hit {
		t.Errorf("reopened cache: hit %v, err %v", hit, err)
	}
}
