// Package cache stores compiled code in SQLite, keyed by the content of
// the source and the options it was compiled with.
package cache

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/tliron/commonlog"
	_ "modernc.org/sqlite"

	"github.com/chazu/scriptc/compiler"
	"github.com/chazu/scriptc/pkg/bytecode"
)

var log = commonlog.GetLogger("scriptc.cache")

// ErrNotFound indicates the key has no cached entry.
var ErrNotFound = errors.New("cache entry not found")

// Cache is a content-addressed compile cache. It is safe for concurrent use.
type Cache struct {
	db   *sql.DB
	path string
	mu   sync.Mutex

	hits   int
	misses int
}

// Stats summarizes the cache contents and this handle's lookups.
type Stats struct {
	Entries int
	Bytes   int64
	Hits    int
	Misses  int
}

// Open opens or creates the cache database at path.
func Open(path string) (*Cache, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Set busy timeout for concurrent access
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	_, err = db.Exec(`CREATE TABLE IF NOT EXISTS compiled (
		key TEXT PRIMARY KEY,
		version INTEGER NOT NULL,
		code BLOB NOT NULL,
		created INTEGER NOT NULL
	)`)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("creating table: %w", err)
	}

	return &Cache{db: db, path: path}, nil
}

// Close closes the database connection.
func (c *Cache) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

// Path returns the database path.
func (c *Cache) Path() string { return c.path }

// keyFields is everything that changes compiled output. Limits are
// stored after defaulting so equivalent option sets share entries.
type keyFields struct {
	Version     uint16          `cbor:"1,keyasint"`
	Source      string          `cbor:"2,keyasint"`
	Strict      bool            `cbor:"3,keyasint"`
	Breakpoints bool            `cbor:"4,keyasint"`
	LineInfo    bool            `cbor:"5,keyasint"`
	Limits      compiler.Limits `cbor:"6,keyasint"`
	Function    []string        `cbor:"7,keyasint,omitempty"` // params, name
}

var keyEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("cache: failed to create CBOR enc mode: %v", err))
	}
	keyEncMode = em
}

// Key returns the cache key of compiling source as a script with opts.
func Key(source string, opts compiler.Options) string {
	return key(keyFields{Source: source}, opts)
}

// FunctionKey returns the cache key of compiling a function body.
func FunctionKey(params, body, name string, opts compiler.Options) string {
	return key(keyFields{Source: body, Function: []string{params, name}}, opts)
}

func key(k keyFields, opts compiler.Options) string {
	k.Version = bytecode.BytecodeVersion
	k.Strict = opts.Strict
	k.Breakpoints = opts.Breakpoints
	k.LineInfo = opts.LineInfo
	k.Limits = opts.Limits.WithDefaults()
	data, err := keyEncMode.Marshal(k)
	if err != nil {
		// Every field is a plain value; encoding cannot fail.
		panic(fmt.Sprintf("cache: encoding key: %v", err))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Get returns the cached code for key.
func (c *Cache) Get(key string) (*bytecode.CompiledCode, error) {
	var data []byte
	err := c.db.QueryRow("SELECT code FROM compiled WHERE key = ? AND version = ?",
		key, bytecode.BytecodeVersion).Scan(&data)
	c.mu.Lock()
	defer c.mu.Unlock()
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			c.misses++
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("querying entry: %w", err)
	}
	code, err := bytecode.Unmarshal(data)
	if err != nil {
		c.misses++
		return nil, fmt.Errorf("decoding entry %s: %w", key, err)
	}
	c.hits++
	return code, nil
}

// Put stores code under key, replacing any previous entry.
func (c *Cache) Put(key string, code *bytecode.CompiledCode) error {
	data, err := bytecode.Marshal(code)
	if err != nil {
		return fmt.Errorf("encoding code: %w", err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err = c.db.Exec(
		"INSERT OR REPLACE INTO compiled (key, version, code, created) VALUES (?, ?, ?, ?)",
		key, bytecode.BytecodeVersion, data, time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("saving entry: %w", err)
	}
	return nil
}

// Compile returns the cached compile of source, compiling and storing it
// on a miss. hit reports whether the cache answered. Compile errors are
// not cached.
func (c *Cache) Compile(source string, opts compiler.Options) (code *bytecode.CompiledCode, hit bool, err error) {
	return c.compile(Key(source, opts), opts, func() (*bytecode.CompiledCode, error) {
		return compiler.Compile(source, opts)
	})
}

// CompileFunction is Compile for a function body.
func (c *Cache) CompileFunction(params, body, name string, opts compiler.Options) (*bytecode.CompiledCode, bool, error) {
	return c.compile(FunctionKey(params, body, name, opts), opts, func() (*bytecode.CompiledCode, error) {
		return compiler.CompileFunction(params, body, name, opts)
	})
}

func (c *Cache) compile(key string, opts compiler.Options, build func() (*bytecode.CompiledCode, error)) (*bytecode.CompiledCode, bool, error) {
	code, err := c.Get(key)
	switch {
	case err == nil:
		if err := attachRegexps(code, opts.Regexp); err != nil {
			return nil, false, err
		}
		return code, true, nil
	case !errors.Is(err, ErrNotFound):
		log.Warningf("cache lookup failed, compiling: %s", err)
	}

	code, err = build()
	if err != nil {
		return nil, false, err
	}
	if err := c.Put(key, code); err != nil {
		log.Warningf("cache store failed: %s", err)
	}
	return code, false, nil
}

// attachRegexps recompiles regexp programs, which are not stored.
func attachRegexps(code *bytecode.CompiledCode, rc compiler.RegexpCompiler) error {
	if rc == nil {
		return nil
	}
	return bytecode.WalkRegexps(code, func(re *bytecode.RegexpLiteral) error {
		prog, err := rc.CompileRegexp(re.Pattern, re.Flags)
		if err != nil {
			return fmt.Errorf("cached regexp /%s/%s: %w", re.Pattern, re.Flags, err)
		}
		re.Program = prog
		return nil
	})
}

// Stats returns the entry count, stored bytes and lookup counters.
func (c *Cache) Stats() (Stats, error) {
	var s Stats
	err := c.db.QueryRow("SELECT COUNT(*), COALESCE(SUM(LENGTH(code)), 0) FROM compiled").Scan(&s.Entries, &s.Bytes)
	if err != nil {
		return Stats{}, fmt.Errorf("querying stats: %w", err)
	}
	c.mu.Lock()
	s.Hits, s.Misses = c.hits, c.misses
	c.mu.Unlock()
	return s, nil
}

// Prune removes entries older than age and entries of other bytecode
// versions. It returns the number removed.
func (c *Cache) Prune(age time.Duration) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	res, err := c.db.Exec("DELETE FROM compiled WHERE created < ? OR version != ?",
		time.Now().Add(-age).Unix(), bytecode.BytecodeVersion)
	if err != nil {
		return 0, fmt.Errorf("pruning: %w", err)
	}
	n, _ := res.RowsAffected()
	return int(n), nil
}

// Clear removes every entry.
func (c *Cache) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.db.Exec("DELETE FROM compiled"); err != nil {
		return fmt.Errorf("clearing: %w", err)
	}
	return nil
}
