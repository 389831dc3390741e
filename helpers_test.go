package iris

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"reflect"
	"sync/atomic"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

var errInjected = errors.New("injected failure")

// failingFS wraps a backend and fails every write once failWrites is set, or
// only in-place header rewrites once failHeaders is set.
type failingFS struct {
	fileSystem
	failWrites  atomic.Bool
	failHeaders atomic.Bool
}

func (f *failingFS) Append(name string, data []byte) (int64, error) {
	if f.failWrites.Load() {
		return 0, fsErr("append", name, errInjected)
	}
	return f.fileSystem.Append(name, data)
}

func (f *failingFS) WriteAt(name string, off int64, data []byte) error {
	if f.failWrites.Load() || f.failHeaders.Load() {
		return fsErr("write", name, errInjected)
	}
	return f.fileSystem.WriteAt(name, off, data)
}

func (f *failingFS) WriteFile(name string, data []byte) error {
	if f.failWrites.Load() {
		return fsErr("write", name, errInjected)
	}
	return f.fileSystem.WriteFile(name, data)
}

func testLogger(t testing.TB) *slog.Logger {
	if testing.Verbose() {
		return slog.New(slog.NewTextHandler(testWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
	}
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testWriter struct{ t testing.TB }

func (w testWriter) Write(b []byte) (int, error) {
	w.t.Log(string(b))
	return len(b), nil
}

// setup opens a database in dir. Without a dir and a backend, it runs on an
// in-memory file system.
func setup(t testing.TB, dir string, opt Options) *DB {
	t.Helper()
	if dir == "" && opt.Backend == "" && opt.fs == nil {
		opt.fs = newMemFS()
	}
	if opt.Logger == nil {
		opt.Logger = testLogger(t)
	}
	db := must(Open(dir, opt))
	t.Cleanup(func() { db.Close() })
	return db
}

func dispatch(t testing.TB, db *DB, body string) *Response {
	t.Helper()
	resp, err := db.DispatchJSON(context.Background(), "", []byte(body))
	if err != nil {
		t.Fatalf("DispatchJSON(%s) failed: %v", body, err)
	}
	return resp
}

var ignoreTime = cmpopts.IgnoreMapEntries(func(k string, _ any) bool { return k == "time" })

func eqResults(t testing.TB, a, e []map[string]any) {
	if diff := cmp.Diff(e, a, ignoreTime, cmpopts.EquateEmpty()); diff != "" {
		t.Helper()
		t.Errorf("** results mismatch (-wanted +got):\n%s", diff)
	}
}

func deepEqual[T any](t testing.TB, a, e T) {
	if !reflect.DeepEqual(a, e) {
		t.Helper()
		t.Errorf("** got %v, wanted %v", a, e)
	}
}

func isnil[T any, P ~*T](t testing.TB, a P) {
	if a != nil {
		t.Helper()
		t.Errorf("** got &%v, wanted nil", *a)
	}
}

func isErr(t testing.TB, err, target error) {
	if !errors.Is(err, target) {
		t.Helper()
		t.Errorf("** got error %v, wanted %v", err, target)
	}
}

func graphNodes(g *Graph) []*Node {
	var nodes []*Node
	for n := range g.GetWhere(func(*Node) bool { return true }, 0) {
		nodes = append(nodes, n)
	}
	return nodes
}

func nodeIDs(g *Graph) []ID {
	var ids []ID
	for _, n := range graphNodes(g) {
		ids = append(ids, n.ID)
	}
	return ids
}

func must[T any](v T, err error) T {
	if err != nil {
		panic(err)
	}
	return v
}

func ensure(err error) {
	if err != nil {
		panic(err)
	}
}
