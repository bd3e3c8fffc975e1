package main

import (
	"path/filepath"

	"github.com/chazu/scriptc/cache"
	"github.com/chazu/scriptc/compiler"
	"github.com/chazu/scriptc/manifest"
)

// project is the configuration every command runs under.
type project struct {
	manifest *manifest.Manifest
	found    bool // a scriptc.toml was found
}

// loadProject finds scriptc.toml at or above dir, falling back to the
// defaults rooted at dir.
func loadProject(dir string) (*project, error) {
	m, err := manifest.FindAndLoad(dir)
	if err != nil {
		return nil, err
	}
	if m != nil {
		return &project{manifest: m, found: true}, nil
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	return &project{manifest: manifest.Default(abs)}, nil
}

func (p *project) options() compiler.Options {
	return p.manifest.CompileOptions()
}

// openCache opens the project cache, or returns nil when caching is off.
func (p *project) openCache() (*cache.Cache, error) {
	if !p.manifest.Cache.Enabled {
		return nil, nil
	}
	return cache.Open(p.manifest.CachePath())
}
