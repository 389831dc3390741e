package iris

import (
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func testBackends(t *testing.T, f func(t *testing.T, fs fileSystem)) {
	t.Run("os", func(t *testing.T) {
		fs := must(newOSFS(t.TempDir(), true, 16))
		defer fs.Close()
		f(t, fs)
	})
	t.Run("bolt", func(t *testing.T) {
		fs := must(newBoltFS(filepath.Join(t.TempDir(), "test.db"), false))
		defer fs.Close()
		f(t, fs)
	})
	t.Run("mem", func(t *testing.T) {
		fs := newMemFS()
		defer fs.Close()
		f(t, fs)
	})
}

func readString(t testing.TB, fs fileSystem, name string) string {
	t.Helper()
	data, release, err := fs.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", name, err)
	}
	s := string(data)
	release()
	return s
}

func TestFileSystem_conformance(t *testing.T) {
	testBackends(t, func(t *testing.T, fs fileSystem) {
		_, _, err := fs.ReadFile("g.0")
		if !isNotExist(err) {
			t.Fatalf("** ReadFile of a missing file: got %v, wanted not-exist", err)
		}
		isErr(t, err, ErrFilesystem)

		off := must(fs.Append("g.0", []byte("hello ")))
		deepEqual(t, off, int64(0))
		off = must(fs.Append("g.0", []byte("world, this is long enough to be mapped")))
		deepEqual(t, off, int64(6))
		deepEqual(t, readString(t, fs, "g.0"), "hello world, this is long enough to be mapped")

		ensure(fs.WriteAt("g.0", 0, []byte("HELLO")))
		deepEqual(t, readString(t, fs, "g.0"), "HELLO world, this is long enough to be mapped")

		ensure(fs.WriteFile("g.meta", []byte("COUNT=1 POS=0\n")))
		ensure(fs.WriteFile("g.meta", []byte("COUNT=2 POS=0\n")))
		deepEqual(t, readString(t, fs, "g.meta"), "COUNT=2 POS=0\n")

		names := must(fs.List())
		slices.Sort(names)
		deepEqual(t, names, []string{"g.0", "g.meta"})
	})
}

func TestOSFS_skipsTempFiles(t *testing.T) {
	dir := t.TempDir()
	fs := must(newOSFS(dir, false, 0))
	ensure(os.WriteFile(filepath.Join(dir, "g.meta"+tempSuffix), []byte("partial"), 0o644))
	ensure(os.Mkdir(filepath.Join(dir, "journal"), 0o755))
	ensure(fs.WriteFile("g.meta", []byte("COUNT=0 POS=0\n")))
	deepEqual(t, must(fs.List()), []string{"g.meta"})
	if !strings.HasPrefix(fs.(*osFS).String(), "os:") {
		t.Errorf("** got %q", fs.(*osFS).String())
	}
}

func TestMemFS_closed(t *testing.T) {
	fs := newMemFS()
	ensure(fs.Close())
	_, err := fs.Append("g.0", []byte("x"))
	isErr(t, err, ErrFilesystem)
}

// shortFile writes half of every buffer and then fails, like a disk that
// fills up mid-write.
type shortFile struct{ *os.File }

func (f shortFile) Write(b []byte) (int, error) {
	n, _ := f.File.Write(b[:len(b)/2])
	return n, io.ErrShortWrite
}

func TestAppendWhole_truncatesFailedWrite(t *testing.T) {
	dir := t.TempDir()
	fs := must(newOSFS(dir, false, 0))
	must(fs.Append("g.0", []byte("header\n")))

	f := must(os.OpenFile(filepath.Join(dir, "g.0"), os.O_WRONLY|os.O_APPEND, 0))
	err := appendWhole(shortFile{f}, 7, []byte("a partial record"))
	ensure(f.Close())
	isErr(t, err, io.ErrShortWrite)
	deepEqual(t, readString(t, fs, "g.0"), "header\n")

	off := must(fs.Append("g.0", []byte("next")))
	deepEqual(t, off, int64(7))
	deepEqual(t, readString(t, fs, "g.0"), "header\nnext")
}
