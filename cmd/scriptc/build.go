package main

import (
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/chazu/scriptc/manifest"
	"github.com/chazu/scriptc/pkg/bytecode"
)

// buildDir returns where build writes bytecode files.
func buildDir(m *manifest.Manifest) string {
	return filepath.Join(m.StateDir(), "build")
}

// runBuild compiles every project source into the build directory and
// records the result in the lock file. Units whose source hash matches the
// lock and whose output exists are skipped unless force is set.
func runBuild(p *project, args []string) error {
	fs := flag.NewFlagSet("build", flag.ExitOnError)
	force := fs.Bool("force", false, "Recompile unchanged files")
	fs.Parse(args)

	if !p.found {
		return fmt.Errorf("no %s found", manifest.FileName)
	}
	stats, err := build(p, *force)
	if err != nil {
		return err
	}
	fmt.Printf("%d compiled, %d unchanged\n", stats.compiled, stats.unchanged)
	return nil
}

type buildStats struct {
	compiled  int
	unchanged int
}

func build(p *project, force bool) (buildStats, error) {
	m := p.manifest
	var stats buildStats

	files, err := m.SourceFiles()
	if err != nil {
		return stats, err
	}
	lock, err := manifest.ReadLock(m.LockFilePath())
	if err != nil {
		return stats, err
	}
	if lock == nil {
		lock = &manifest.LockFile{}
	}

	c, err := p.openCache()
	if err != nil {
		return stats, err
	}
	if c != nil {
		defer c.Close()
	}

	next := &manifest.LockFile{}
	opts := m.CompileOptions()
	for _, path := range files {
		rel, err := filepath.Rel(m.Dir, path)
		if err != nil {
			return stats, err
		}
		rel = filepath.ToSlash(rel)
		out := filepath.Join(buildDir(m), strings.TrimSuffix(rel, filepath.Ext(rel))+BytecodeExt)

		src, err := os.ReadFile(path)
		if err != nil {
			return stats, err
		}
		sum := sha256.Sum256(src)
		srcHash := hex.EncodeToString(sum[:])

		if prev := lock.FindUnit(rel); !force && prev != nil && prev.Source == srcHash {
			if _, err := os.Stat(out); err == nil {
				next.Set(*prev)
				stats.unchanged++
				continue
			}
		}

		code, err := compileFile(path, opts, c)
		if err != nil {
			return stats, err
		}
		data, err := bytecode.Marshal(code)
		if err != nil {
			return stats, err
		}
		if err := os.MkdirAll(filepath.Dir(out), 0755); err != nil {
			return stats, err
		}
		if err := os.WriteFile(out, data, 0644); err != nil {
			return stats, err
		}
		fp, err := bytecode.Fingerprint(code)
		if err != nil {
			return stats, err
		}
		next.Set(manifest.LockedUnit{
			Path:        rel,
			Source:      srcHash,
			Fingerprint: hex.EncodeToString(fp[:]),
		})
		log.Debugf("compiled %s", rel)
		stats.compiled++
	}

	if err := manifest.WriteLock(m.LockFilePath(), next); err != nil {
		return stats, fmt.Errorf("writing lock file: %w", err)
	}
	return stats, nil
}
