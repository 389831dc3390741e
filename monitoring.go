package iris

type GraphStats struct {
	Nodes       int
	Pages       int
	ActivePos   int
	ActiveCount int
	ActiveSize  int64
	Cursor      ID
	FreeIDs     int
}

func (g *Graph) Stats() GraphStats {
	g.mu.Lock()
	defer g.mu.Unlock()
	return GraphStats{
		Nodes:       g.nodes.Len(),
		Pages:       g.active.pos + 1,
		ActivePos:   g.active.pos,
		ActiveCount: g.active.count,
		ActiveSize:  g.active.size,
		Cursor:      g.ids.Cursor(),
		FreeIDs:     g.ids.FreeCount(),
	}
}

// Stats returns statistics of every graph, keyed by name.
func (db *DB) Stats() map[string]GraphStats {
	db.mu.Lock()
	defer db.mu.Unlock()
	result := make(map[string]GraphStats, len(db.graphs))
	for name, g := range db.graphs {
		result[name] = g.Stats()
	}
	return result
}
