package compiler

import "sync"

// ---------------------------------------------------------------------------
// Byte arena: paged append-only storage for emitted bytecode
// ---------------------------------------------------------------------------

// PageSize is the number of bytes held by one arena page.
const PageSize = 64

// maxFreePages bounds the free list a PagePool keeps for reuse.
const maxFreePages = 64

type page struct {
	data [PageSize]byte
}

// PagePool hands out arena pages and accounts for the ones in use. A pool
// may be shared by successive compiles; Live reports zero whenever no
// compile holds pages.
type PagePool struct {
	mu   sync.Mutex
	free []*page
	live int
}

// NewPagePool creates an empty pool.
func NewPagePool() *PagePool {
	return &PagePool{}
}

// Live returns the number of pages currently handed out.
func (p *PagePool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

func (p *PagePool) get() *page {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live++
	if n := len(p.free); n > 0 {
		pg := p.free[n-1]
		p.free = p.free[:n-1]
		*pg = page{}
		return pg
	}
	return &page{}
}

func (p *PagePool) put(pg *page) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.live--
	if len(p.free) < maxFreePages {
		p.free = append(p.free, pg)
	}
}

// arena is an append-only byte stream stored in pages. Offsets are stream
// positions; page = offset / PageSize.
type arena struct {
	pool  *PagePool
	pages []*page
	size  int
}

func newArena(pool *PagePool) *arena {
	return &arena{pool: pool}
}

// Len returns the number of bytes written.
func (a *arena) Len() int { return a.size }

func (a *arena) appendByte(b byte) {
	if a.size == len(a.pages)*PageSize {
		a.pages = append(a.pages, a.pool.get())
	}
	a.pages[a.size/PageSize].data[a.size%PageSize] = b
	a.size++
}

func (a *arena) append(bs ...byte) {
	for _, b := range bs {
		a.appendByte(b)
	}
}

// at returns the byte at offset.
func (a *arena) at(offset int) byte {
	return a.pages[offset/PageSize].data[offset%PageSize]
}

// set overwrites the byte at offset. The write may be one of several
// that together span a page boundary.
func (a *arena) set(offset int, b byte) {
	a.pages[offset/PageSize].data[offset%PageSize] = b
}

// pageCount returns the number of pages in use.
func (a *arena) pageCount() int { return len(a.pages) }

// release returns every page to the pool. It is safe to call twice.
func (a *arena) release() {
	for _, pg := range a.pages {
		a.pool.put(pg)
	}
	a.pages = nil
	a.size = 0
}
