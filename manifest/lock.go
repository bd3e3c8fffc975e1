package manifest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/BurntSushi/toml"
)

// LockFile records the compiled state of every project source file, so a
// later build can tell which units changed.
type LockFile struct {
	Units []LockedUnit `toml:"unit"`
}

// LockedUnit is one compiled source file.
type LockedUnit struct {
	Path        string `toml:"path"`        // relative to the project directory
	Source      string `toml:"source"`      // hex sha256 of the source text
	Fingerprint string `toml:"fingerprint"` // hex fingerprint of the compiled code
}

// ReadLock reads a lock file. It returns nil, nil when the file does not exist.
func ReadLock(path string) (*LockFile, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var lf LockFile
	if err := toml.Unmarshal(data, &lf); err != nil {
		return nil, fmt.Errorf("parse error in %s: %w", path, err)
	}
	return &lf, nil
}

// WriteLock writes lf to path, sorted by unit path, creating the parent
// directory when needed.
func WriteLock(path string, lf *LockFile) error {
	units := append([]LockedUnit(nil), lf.Units...)
	sort.Slice(units, func(i, j int) bool { return units[i].Path < units[j].Path })

	var buf bytes.Buffer
	buf.WriteString("# Generated by scriptc build. Do not edit.\n\n")
	if err := toml.NewEncoder(&buf).Encode(LockFile{Units: units}); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

// FindUnit returns the locked unit for path, or nil.
func (lf *LockFile) FindUnit(path string) *LockedUnit {
	if lf == nil {
		return nil
	}
	for i := range lf.Units {
		if lf.Units[i].Path == path {
			return &lf.Units[i]
		}
	}
	return nil
}

// Set records u, replacing any unit with the same path.
func (lf *LockFile) Set(u LockedUnit) {
	if existing := lf.FindUnit(u.Path); existing != nil {
		*existing = u
		return
	}
	lf.Units = append(lf.Units, u)
}
