package iris

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/iris-db/iris/journal"
)

const (
	DefaultGraph         = "default"
	DefaultMaxRecordSize = 8000
	DefaultMaxPageSize   = 16000
	DefaultMmapThreshold = 4096

	boltFileName   = "iris.db"
	journalDirName = "journal"
)

type Options struct {
	Backend       string // BackendOS (default), BackendBolt or BackendMem
	Codec         string // CodecBSON (default) or CodecMsgPack
	Compression   string // CompressionNone (default), CompressionSnappy or CompressionZlib
	MaxRecordSize int
	MaxPageSize   int
	Sync          bool
	MmapThreshold int // pages at least this large are read via mmap; negative disables

	Registry                *Registry
	RefPolicy               RefPolicy
	ReportUnknownDirectives bool
	RelaxedJSON             bool

	Journal            bool
	JournalMaxFileSize int64

	Logger  *slog.Logger
	Verbose bool

	// OnChange is called after every persisted mutation, once the graph's
	// lock is released, so it may read the graph. During a request it still
	// runs under the database lock and must not call DB methods.
	OnChange func(Change)

	fs fileSystem
}

// DB is a set of named graphs stored in one directory. Requests are
// dispatched one at a time.
type DB struct {
	dir      string
	store    *pageStore
	registry *Registry
	logger   *slog.Logger
	verbose  bool
	onChange func(Change)
	journal  *journal.Journal

	refPolicy     RefPolicy
	reportUnknown bool
	relaxedJSON   bool

	mu     sync.Mutex
	graphs map[string]*Graph
	closed bool

	RequestCount   atomic.Uint64
	StatementCount atomic.Uint64
}

func Open(dir string, opt Options) (*DB, error) {
	if opt.Logger == nil {
		opt.Logger = slog.Default()
	}
	if opt.Registry == nil {
		opt.Registry = DefaultRegistry()
	}
	if opt.MaxRecordSize == 0 {
		opt.MaxRecordSize = DefaultMaxRecordSize
	}
	if opt.MaxPageSize == 0 {
		opt.MaxPageSize = DefaultMaxPageSize
	}
	if opt.MmapThreshold == 0 {
		opt.MmapThreshold = DefaultMmapThreshold
	}
	codec, err := codecByName(opt.Codec)
	if err != nil {
		return nil, err
	}
	comp, err := compressorByName(opt.Compression)
	if err != nil {
		return nil, err
	}
	if opt.MaxRecordSize < 0 {
		return nil, fmt.Errorf("iris: invalid max record size %d", opt.MaxRecordSize)
	}
	if hl := pageHeaderLen(codec.Name(), compressorName(comp)); hl+opt.MaxRecordSize > opt.MaxPageSize {
		return nil, fmt.Errorf("iris: max page size %d cannot hold a %d-byte header and a %d-byte record", opt.MaxPageSize, hl, opt.MaxRecordSize)
	}

	fs := opt.fs
	if fs == nil {
		fs, err = openBackend(dir, opt)
		if err != nil {
			return nil, err
		}
	}

	db := &DB{
		dir:           dir,
		registry:      opt.Registry,
		logger:        opt.Logger,
		verbose:       opt.Verbose,
		onChange:      opt.OnChange,
		refPolicy:     opt.RefPolicy,
		reportUnknown: opt.ReportUnknownDirectives,
		relaxedJSON:   opt.RelaxedJSON,
		graphs:        make(map[string]*Graph),
		store: &pageStore{
			fs:            fs,
			codec:         codec,
			comp:          comp,
			maxRecordSize: opt.MaxRecordSize,
			maxPageSize:   opt.MaxPageSize,
			logger:        opt.Logger,
		},
	}

	if err := db.loadGraphs(); err != nil {
		fs.Close()
		return nil, err
	}

	if opt.Journal {
		if dir == "" {
			fs.Close()
			return nil, errors.New("iris: request journal needs a directory")
		}
		db.journal = journal.New(filepath.Join(dir, journalDirName), journal.Options{
			FileName:    "requests-*.wal",
			MaxFileSize: opt.JournalMaxFileSize,
			DebugName:   "requests",
			Logger:      opt.Logger,
			Verbose:     opt.Verbose,
		})
		if err := db.journal.StartWriting(); err != nil {
			fs.Close()
			return nil, fmt.Errorf("iris: journal: %w", err)
		}
	}
	return db, nil
}

func openBackend(dir string, opt Options) (fileSystem, error) {
	switch opt.Backend {
	case "", BackendOS:
		return newOSFS(dir, opt.Sync, opt.MmapThreshold)
	case BackendBolt:
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fsErr("mkdir", dir, err)
		}
		return newBoltFS(filepath.Join(dir, boltFileName), opt.Sync)
	case BackendMem:
		return newMemFS(), nil
	default:
		return nil, fmt.Errorf("iris: unknown backend %q", opt.Backend)
	}
}

// loadGraphs finds every graph that has a metadata file or at least one page,
// and replays it.
func (db *DB) loadGraphs() error {
	names, err := db.store.fs.List()
	if err != nil {
		return err
	}
	found := make(map[string]bool)
	for _, name := range names {
		if g, ok := strings.CutSuffix(name, ".meta"); ok && g != "" {
			found[g] = true
		} else if g, _, ok := parsePageFileName(name); ok {
			found[g] = true
		}
	}
	for _, name := range slices.Sorted(maps.Keys(found)) {
		start := time.Now()
		g, err := loadGraph(name, db)
		if err != nil {
			return fmt.Errorf("iris: loading graph %s: %w", name, err)
		}
		db.graphs[name] = g
		db.logger.LogAttrs(context.Background(), slog.LevelInfo, "iris: graph loaded", slog.String("graph", name), slog.Int("nodes", g.nodes.Len()), slog.Int("pages", g.active.pos+1), slog.Duration("elapsed", time.Since(start)))
	}
	return nil
}

// Graph returns the named graph, creating it if needed.
func (db *DB) Graph(name string) (*Graph, error) {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil, ErrClosed
	}
	return db.graph_locked(name)
}

func (db *DB) graph_locked(name string) (*Graph, error) {
	if g := db.graphs[name]; g != nil {
		return g, nil
	}
	if err := validGraphName(name); err != nil {
		return nil, err
	}
	g, err := createGraph(name, db)
	if err != nil {
		return nil, err
	}
	db.graphs[name] = g
	db.logger.LogAttrs(context.Background(), slog.LevelInfo, "iris: graph created", slog.String("graph", name))
	return g, nil
}

// Graphs returns the names of all graphs in ascending order.
func (db *DB) Graphs() []string {
	db.mu.Lock()
	defer db.mu.Unlock()
	return slices.Sorted(maps.Keys(db.graphs))
}

func (db *DB) Registry() *Registry {
	return db.registry
}

func (db *DB) Close() error {
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.closed {
		return nil
	}
	db.closed = true
	var errs []error
	if db.journal != nil {
		errs = append(errs, db.journal.FinishWriting())
	}
	errs = append(errs, db.store.fs.Close())
	return errors.Join(errs...)
}
