package iris

import (
	"fmt"
	"strings"
)

type DumpFlags uint64

const (
	DumpGraphHeaders = DumpFlags(1 << iota)
	DumpNodes
	DumpStats
	DumpPages
	DumpRecords

	DumpAll = DumpFlags(0xFFFFFFFFFFFFFFFF)
)

var (
	dumpSep1 = strings.Repeat("=", 80)
	dumpSep2 = strings.Repeat("-", 60)
)

func (f DumpFlags) Contains(v DumpFlags) bool {
	return (f & v) == v
}

// Dump renders every graph as text, for debugging and tests.
func (db *DB) Dump(f DumpFlags) string {
	var buf strings.Builder
	for _, name := range db.Graphs() {
		db.mu.Lock()
		g := db.graphs[name]
		db.mu.Unlock()
		if g != nil {
			g.dump(&buf, f)
		}
	}
	return buf.String()
}

func (g *Graph) Dump(f DumpFlags) string {
	var buf strings.Builder
	g.dump(&buf, f)
	return buf.String()
}

func (g *Graph) dump(w *strings.Builder, f DumpFlags) {
	s := g.Stats()
	if f.Contains(DumpGraphHeaders) {
		fmt.Fprintln(w, dumpSep1)
		fmt.Fprintf(w, "%s (%d nodes)\n", g.name, s.Nodes)
	}
	if f.Contains(DumpStats) {
		fmt.Fprintf(w, "%s.stats: pages = %d, active_pos = %d, active_count = %d, active_size = %d, cursor = %d, free_ids = %d\n", g.name, s.Pages, s.ActivePos, s.ActiveCount, s.ActiveSize, s.Cursor, s.FreeIDs)
	}
	if f.Contains(DumpNodes) {
		if f.Contains(DumpStats) {
			fmt.Fprintln(w, dumpSep2)
		}
		for n := range g.GetWhere(func(*Node) bool { return true }, 0) {
			fmt.Fprintf(w, "%s/%d = %s", g.name, n.ID, loggableVal(n.Data))
			for _, e := range n.Edges {
				fmt.Fprintf(w, " -%s(%s)-> %d", e.Name, e.Direction, e.To)
			}
			fmt.Fprintln(w)
		}
	}
	if f.Contains(DumpPages) {
		for pos := 0; pos < s.Pages; pos++ {
			g.dumpPage(w, f, pos)
		}
	}
}

func (g *Graph) dumpPage(w *strings.Builder, f DumpFlags, pos int) {
	fmt.Fprintln(w, dumpSep2)
	meta, recs, size, err := g.store.readPage(g.name, pos)
	if err != nil {
		fmt.Fprintf(w, "%s.%d ** ERROR: %v\n", g.name, pos, err)
		return
	}
	fmt.Fprintf(w, "%s.%d (%d records, %d bytes, %s/%s)\n", g.name, pos, meta.Count, size, meta.Codec, meta.Compression)
	if f.Contains(DumpRecords) {
		for i, rec := range recs {
			fmt.Fprintf(w, "%s.%d.%d [%d:%d] = %s\n", g.name, pos, i, rec.Start, rec.End, loggableVal(rec.Doc))
		}
	}
}
