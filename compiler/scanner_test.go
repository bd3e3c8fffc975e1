package compiler

import (
	"strings"
	"testing"
)

func scanAll(t *testing.T, source string) []*ScanInfo {
	t.Helper()
	nodes, complete, err := Scan(source, Limits{})
	if err != nil {
		t.Fatalf("Scan(%q) error: %v", source, err)
	}
	if !complete {
		t.Fatalf("Scan(%q) incomplete", source)
	}
	return nodes
}

func assertLocs(t *testing.T, source string, n *ScanInfo, want ...int) {
	t.Helper()
	if len(n.Locs) != len(want) {
		t.Fatalf("%s node: got %d locs %v, want %v", n.Kind, len(n.Locs), n.Locs, want)
	}
	for i, off := range want {
		if n.Locs[i].Offset != off {
			t.Errorf("%s loc[%d] = %d, want %d in %q", n.Kind, i, n.Locs[i].Offset, off, source)
		}
	}
	if !n.Complete {
		t.Errorf("%s node incomplete", n.Kind)
	}
}

func TestScanLoops(t *testing.T) {
	tests := []struct {
		source string
		kind   ScanKind
		locs   func(string) []int
	}{
		{"for (i = 0; i < n; i++) x;", ScanFor, func(s string) []int {
			return []int{strings.Index(s, "i <"), strings.Index(s, "i++"), strings.Index(s, ")")}
		}},
		{"for (;;) x;", ScanFor, func(s string) []int {
			return []int{strings.Index(s, ";") + 1, strings.LastIndex(s, ";;") + 2, strings.Index(s, ")")}
		}},
		{"for (k in o) ;", ScanForIn, func(s string) []int {
			return []int{strings.Index(s, "o)"), strings.Index(s, ")")}
		}},
		{"for (x of xs) ;", ScanForOf, func(s string) []int {
			return []int{strings.Index(s, "xs"), strings.Index(s, ")")}
		}},
		{"while (a) b;", ScanWhile, func(s string) []int {
			return []int{strings.Index(s, ")")}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			nodes := scanAll(t, tt.source)
			if len(nodes) != 1 {
				t.Fatalf("got %d nodes, want 1", len(nodes))
			}
			n := nodes[0]
			if n.Kind != tt.kind {
				t.Errorf("kind = %s, want %s", n.Kind, tt.kind)
			}
			if n.Trigger.Offset != 0 {
				t.Errorf("trigger = %d, want 0", n.Trigger.Offset)
			}
			assertLocs(t, tt.source, n, tt.locs(tt.source)...)
		})
	}
}

func TestScanSwitch(t *testing.T) {
	src := "switch (a) { case 1: x; default: y; }"
	nodes := scanAll(t, src)
	if len(nodes) != 1 || nodes[0].Kind != ScanSwitch {
		t.Fatalf("nodes = %v", nodes)
	}
	n := nodes[0]
	assertLocs(t, src, n, strings.Index(src, "{"), strings.Index(src, "}"))
	if len(n.Cases) != 2 {
		t.Fatalf("got %d cases, want 2", len(n.Cases))
	}
	c := n.Cases[0]
	if c.Default || c.Keyword.Offset != strings.Index(src, "case") ||
		c.Expr.Offset != strings.Index(src, "1") || c.Colon.Offset != strings.Index(src, ":") {
		t.Errorf("case = %+v", c)
	}
	d := n.Cases[1]
	if !d.Default || d.Keyword.Offset != strings.Index(src, "default") ||
		d.Colon.Offset != strings.LastIndex(src, ":") {
		t.Errorf("default = %+v", d)
	}
}

func TestScanArrows(t *testing.T) {
	tests := []struct {
		source  string
		trigger string
	}{
		{"f = (a, b) => a;", "("},
		{"g = x => x;", "x"},
		{"h = () => { return 1; };", "("},
	}
	for _, tt := range tests {
		t.Run(tt.source, func(t *testing.T) {
			nodes := scanAll(t, tt.source)
			if len(nodes) != 1 || nodes[0].Kind != ScanArrow {
				t.Fatalf("nodes = %v", nodes)
			}
			n := nodes[0]
			if n.Trigger.Offset != strings.Index(tt.source, tt.trigger) {
				t.Errorf("trigger = %d, want %d", n.Trigger.Offset, strings.Index(tt.source, tt.trigger))
			}
			assertLocs(t, tt.source, n, strings.Index(tt.source, "=>"))
		})
	}

	// A parenthesized expression is not an arrow.
	if nodes := scanAll(t, "x = (a, b);"); len(nodes) != 0 {
		t.Errorf("got %d nodes for a plain group", len(nodes))
	}
}

func TestScanTemplate(t *testing.T) {
	src := "s = `a${b}c${d}e`;"
	nodes := scanAll(t, src)
	if len(nodes) != 1 || nodes[0].Kind != ScanTemplate {
		t.Fatalf("nodes = %v", nodes)
	}
	assertLocs(t, src, nodes[0], strings.Index(src, "}"), strings.LastIndex(src, "}"))
}

func TestScanNested(t *testing.T) {
	src := "for (var i = 0; i < n; i++) { while (a) { f(x => x); } }"
	nodes := scanAll(t, src)
	want := []ScanKind{ScanFor, ScanWhile, ScanArrow}
	if len(nodes) != len(want) {
		t.Fatalf("got %d nodes, want %d", len(nodes), len(want))
	}
	for i, k := range want {
		if nodes[i].Kind != k {
			t.Errorf("node[%d] = %s, want %s", i, nodes[i].Kind, k)
		}
		if !nodes[i].Complete {
			t.Errorf("node[%d] incomplete", i)
		}
	}
}

func TestScanIncomplete(t *testing.T) {
	nodes, complete, err := Scan("for (", Limits{})
	if err != nil {
		t.Fatalf("Scan error: %v", err)
	}
	if complete {
		t.Error("truncated input reported complete")
	}
	if len(nodes) != 1 || nodes[0].Complete {
		t.Errorf("nodes = %v", nodes)
	}

	// Syntax problems end the scan quietly; the parser reports them.
	if _, _, err := Scan("while (a b c", Limits{}); err != nil {
		t.Errorf("syntax problem surfaced from scan: %v", err)
	}
}

func TestScanLimitError(t *testing.T) {
	_, _, err := Scan("abcdefgh = 1;", Limits{IdentLength: 4})
	assertCode(t, err, ErrIdentifierTooLong)
}

func TestRescan(t *testing.T) {
	src := "x = 1; for (i = 0; i < n; i++) { y(); }"
	trigger := Position{Offset: strings.Index(src, "for"), Line: 1, Column: strings.Index(src, "for") + 1}
	n, err := rescan(src, Limits{}, ScanFor, trigger)
	if err != nil {
		t.Fatalf("rescan error: %v", err)
	}
	if n == nil {
		t.Fatal("rescan found no node")
	}
	assertLocs(t, src, n, strings.Index(src, "i <"), strings.Index(src, "i++"), strings.Index(src, ")"))

	src = "f((a, b) => a + b);"
	trigger = Position{Offset: strings.Index(src, "(a"), Line: 1, Column: strings.Index(src, "(a") + 1}
	n, err = rescan(src, Limits{}, ScanArrow, trigger)
	if err != nil {
		t.Fatalf("rescan error: %v", err)
	}
	if n == nil || n.Kind != ScanArrow {
		t.Fatalf("rescan arrow = %v", n)
	}
	assertLocs(t, src, n, strings.Index(src, "=>"))
}
