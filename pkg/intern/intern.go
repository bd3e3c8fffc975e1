// Package intern deduplicates literal content by value.
//
// A Table maps byte-identical strings to one stable Handle. Lookups hash
// with xxh3 and compare bytes on collision, so two handles are equal if
// and only if their content is equal.
package intern

import "github.com/zeebo/xxh3"

// Handle identifies interned content within one Table.
type Handle uint32

// Table is an append-only intern table. It is not safe for concurrent use.
type Table struct {
	strs    []string
	buckets map[uint64][]Handle
	size    int
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{buckets: make(map[uint64][]Handle)}
}

// Hash returns the content hash used for bucketing.
func Hash(s string) uint64 {
	return xxh3.HashString(s)
}

// Intern returns the handle for s, adding it when unseen.
func (t *Table) Intern(s string) Handle {
	if h, ok := t.Lookup(s); ok {
		return h
	}
	h := Handle(len(t.strs))
	t.strs = append(t.strs, s)
	sum := Hash(s)
	t.buckets[sum] = append(t.buckets[sum], h)
	t.size += len(s)
	return h
}

// Lookup returns the handle for s without adding it.
func (t *Table) Lookup(s string) (Handle, bool) {
	for _, h := range t.buckets[Hash(s)] {
		if t.strs[h] == s {
			return h, true
		}
	}
	return 0, false
}

// String returns the content behind h.
func (t *Table) String(h Handle) string {
	return t.strs[h]
}

// Len returns the number of distinct entries.
func (t *Table) Len() int { return len(t.strs) }

// Bytes returns the total content size of all entries.
func (t *Table) Bytes() int { return t.size }
