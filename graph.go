package iris

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/btree"
)

const nodeIndexDegree = 32

// Graph is a named collection of nodes. The in-memory index always matches
// what replaying the graph's pages would produce: a mutation either reaches
// its page and the index, or neither.
type Graph struct {
	name     string
	store    *pageStore
	logger   *slog.Logger
	verbose  bool
	onChange func(Change)

	mu      sync.Mutex
	ids     *Allocator
	nodes   *btree.BTreeG[*Node]
	active  *page
	pending []Change
}

// DeleteOutcome reports how many nodes a delete removed and how long it took.
type DeleteOutcome struct {
	Count   int
	Elapsed time.Duration
}

func lessNode(a, b *Node) bool {
	return a.ID < b.ID
}

func newGraph(name string, db *DB) *Graph {
	return &Graph{
		name:     name,
		store:    db.store,
		logger:   db.logger,
		verbose:  db.verbose,
		onChange: db.onChange,
		ids:      NewAllocator(),
		nodes:    btree.NewG(nodeIndexDegree, lessNode),
	}
}

// createGraph starts a graph with an empty page 0 and its metadata file.
func createGraph(name string, db *DB) (*Graph, error) {
	g := newGraph(name, db)
	p, err := g.store.createPage(name, 0)
	if err != nil {
		return nil, err
	}
	g.active = p
	if err := g.saveMeta(); err != nil {
		return nil, err
	}
	return g, nil
}

// loadGraph replays every page of the graph in order. The page named by the
// metadata file is normally the last one; pages found past it are replayed
// too, since the metadata file is rewritten after the page.
func loadGraph(name string, db *DB) (*Graph, error) {
	g := newGraph(name, db)

	meta := PageMetadata{Pos: -1}
	metaData, release, err := g.store.fs.ReadFile(metaFileName(name))
	if err == nil {
		meta, _, err = parseMetadata(metaData)
		release()
		if err != nil {
			return nil, withPage(err, name, -1)
		}
	} else if !isNotExist(err) {
		return nil, err
	}

	var last *page
	for pos := 0; ; pos++ {
		pm, recs, size, err := g.store.readPage(name, pos)
		if isNotExist(err) {
			break
		} else if err != nil {
			return nil, err
		}
		if pm.Count != len(recs) {
			g.logger.LogAttrs(context.Background(), slog.LevelWarn, "iris: page header count mismatch", slog.String("graph", name), slog.Int("pos", pos), slog.Int("header", pm.Count), slog.Int("records", len(recs)))
		}
		for _, rec := range recs {
			if err := g.replay(rec.Doc); err != nil {
				return nil, pageErrf(name, pos, ErrCorruptedRecord, err, "replay record at %d", rec.Start)
			}
		}
		codec, _ := codecByName(pm.Codec)
		comp, _ := compressorByName(pm.Compression)
		if last != nil {
			last.state = pageRolledOver
		}
		last = &page{graph: name, pos: pos, count: len(recs), size: size, state: pageOpen, codec: codec, comp: comp}
	}
	g.ids.Rebuild(func(id ID) bool {
		return g.nodes.Has(&Node{ID: id})
	})

	var perr error
	switch {
	case last == nil:
		last, perr = g.store.createPage(name, 0)
	case last.codec.Name() != g.store.codec.Name() || compressorName(last.comp) != compressorName(g.store.comp):
		last.state = pageRolledOver
		last, perr = g.store.createPage(name, last.pos+1)
	}
	if perr != nil {
		return nil, perr
	}
	g.active = last

	if meta.Count != g.nodes.Len() || meta.Pos != last.pos {
		g.logger.LogAttrs(context.Background(), slog.LevelWarn, "iris: stale graph metadata", slog.String("graph", name), slog.Int("count", meta.Count), slog.Int("nodes", g.nodes.Len()), slog.Int("pos", meta.Pos), slog.Int("active", last.pos))
		if err := g.saveMeta(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func (g *Graph) replay(doc map[string]any) error {
	r, err := decodeRecordDoc(doc)
	if err != nil {
		return err
	}
	g.ids.Reserve(r.ID)
	if r.Deleted {
		g.nodes.Delete(&Node{ID: r.ID})
	} else {
		g.nodes.ReplaceOrInsert(r.Node)
	}
	return nil
}

func (g *Graph) Name() string {
	return g.name
}

func (g *Graph) String() string {
	return g.name
}

// Insert stores a new node and returns its id. When persisting fails, the
// index is left unchanged and the allocated id stays consumed.
func (g *Graph) Insert(data any, edges []Edge) (ID, error) {
	defer g.notify()
	g.mu.Lock()
	defer g.mu.Unlock()

	id := g.ids.Allocate()
	n := &Node{ID: id, Data: normalize(data), Edges: edges}
	if err := g.persist(nodeDoc(n)); err != nil {
		g.logger.LogAttrs(context.Background(), slog.LevelError, "iris: insert failed", slog.String("graph", g.name), slog.Uint64("id", uint64(id)), slog.Any("err", err))
		return 0, err
	}
	g.nodes.ReplaceOrInsert(n)
	g.afterMutation(OpInsert, n)
	return id, nil
}

// DeleteByID removes the node with the given id. A missing node is not an
// error and yields a zero count.
func (g *Graph) DeleteByID(id ID) (DeleteOutcome, error) {
	start := time.Now()
	defer g.notify()
	g.mu.Lock()
	defer g.mu.Unlock()

	n, ok := g.nodes.Get(&Node{ID: id})
	if !ok {
		return DeleteOutcome{Elapsed: time.Since(start)}, nil
	}
	if err := g.remove(n); err != nil {
		return DeleteOutcome{Elapsed: time.Since(start)}, err
	}
	return DeleteOutcome{Count: 1, Elapsed: time.Since(start)}, nil
}

// DeleteWhere removes nodes matching pred in ascending id order, stopping
// after limit removals when limit is positive. On a persistence failure it
// stops and reports the removals done so far.
func (g *Graph) DeleteWhere(pred func(*Node) bool, limit int) (DeleteOutcome, error) {
	start := time.Now()
	defer g.notify()
	g.mu.Lock()
	defer g.mu.Unlock()

	var victims []*Node
	g.nodes.Ascend(func(n *Node) bool {
		if pred(n) {
			victims = append(victims, n)
		}
		return limit <= 0 || len(victims) < limit
	})

	var out DeleteOutcome
	for _, n := range victims {
		if err := g.remove(n); err != nil {
			out.Elapsed = time.Since(start)
			return out, err
		}
		out.Count++
	}
	out.Elapsed = time.Since(start)
	return out, nil
}

// Replace removes the node with the given id and inserts data and edges as a
// new node, reporting false if there is no such node. The new record is
// checked against the size limits before the tombstone is written, so a
// rejected replacement leaves the old node in place.
func (g *Graph) Replace(id ID, data any, edges []Edge) (ID, bool, error) {
	defer g.notify()
	g.mu.Lock()
	defer g.mu.Unlock()

	old, ok := g.nodes.Get(&Node{ID: id})
	if !ok {
		return 0, false, nil
	}
	// releasing id makes it a candidate for the next allocation
	n := &Node{ID: min(id, g.ids.Next()), Data: normalize(data), Edges: edges}
	if err := g.store.check(nodeDoc(n)); err != nil {
		return 0, true, withPage(err, g.name, g.active.pos)
	}
	if err := g.remove(old); err != nil {
		return 0, true, err
	}

	n.ID = g.ids.Allocate()
	if err := g.persist(nodeDoc(n)); err != nil {
		g.logger.LogAttrs(context.Background(), slog.LevelError, "iris: replace failed", slog.String("graph", g.name), slog.Uint64("id", uint64(id)), slog.Uint64("new_id", uint64(n.ID)), slog.Any("err", err))
		return 0, true, err
	}
	g.nodes.ReplaceOrInsert(n)
	g.afterMutation(OpInsert, n)
	return n.ID, true, nil
}

func (g *Graph) remove(n *Node) error {
	if err := g.persist(tombstoneDoc(n.ID)); err != nil {
		g.logger.LogAttrs(context.Background(), slog.LevelError, "iris: delete failed", slog.String("graph", g.name), slog.Uint64("id", uint64(n.ID)), slog.Any("err", err))
		return err
	}
	g.nodes.Delete(n)
	g.ids.Release(n.ID)
	g.afterMutation(OpDelete, n)
	return nil
}

// GetWhere lazily yields nodes matching pred in ascending id order, stopping
// after limit matches when limit is positive. It iterates over a snapshot, so
// the graph may be modified while iterating.
func (g *Graph) GetWhere(pred func(*Node) bool, limit int) iter.Seq[*Node] {
	g.mu.Lock()
	snap := g.nodes.Clone()
	g.mu.Unlock()

	return func(yield func(*Node) bool) {
		var found int
		snap.Ascend(func(n *Node) bool {
			if !pred(n) {
				return true
			}
			found++
			if !yield(n) {
				return false
			}
			return limit <= 0 || found < limit
		})
	}
}

func (g *Graph) Get(id ID) *Node {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, _ := g.nodes.Get(&Node{ID: id})
	return n
}

func (g *Graph) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.nodes.Len()
}

func (g *Graph) persist(doc map[string]any) error {
	p, err := g.store.write(g.active, doc)
	g.active = p
	return err
}

func (g *Graph) afterMutation(op Op, n *Node) {
	if g.verbose {
		g.logger.LogAttrs(context.Background(), slog.LevelDebug, "iris: "+op.String(), slog.String("graph", g.name), slog.Uint64("id", uint64(n.ID)), slog.Int("pos", g.active.pos))
	}
	if err := g.saveMeta(); err != nil {
		// pages stay authoritative; loadGraph repairs the metadata file
		g.logger.LogAttrs(context.Background(), slog.LevelError, "iris: failed to save graph metadata", slog.String("graph", g.name), slog.Any("err", err))
	}
	if g.onChange != nil {
		g.pending = append(g.pending, Change{graph: g.name, op: op, node: n})
	}
}

// notify hands the changes made under g.mu to the change hook once the lock
// is released.
func (g *Graph) notify() {
	if g.onChange == nil {
		return
	}
	g.mu.Lock()
	changes := g.pending
	g.pending = nil
	g.mu.Unlock()
	for _, chg := range changes {
		g.onChange(chg)
	}
}

func (g *Graph) saveMeta() error {
	data := appendGraphMeta(nil, g.nodes.Len(), g.active.pos)
	if err := g.store.fs.WriteFile(metaFileName(g.name), data); err != nil {
		return pageErrf(g.name, -1, nil, err, "write metadata")
	}
	return nil
}

// validGraphName rejects names that cannot be mapped onto page file names.
func validGraphName(name string) error {
	if name == "" {
		return errors.New("empty graph name")
	}
	for _, c := range name {
		if c == '/' || c == '\\' || c == 0 {
			return fmt.Errorf("invalid graph name %q", name)
		}
	}
	if name == "." || name == ".." {
		return fmt.Errorf("invalid graph name %q", name)
	}
	return nil
}
