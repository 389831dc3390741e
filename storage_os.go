package iris

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/iris-db/iris/mmap"
)

const tempSuffix = ".tmp"

type osFS struct {
	dir           string
	sync          bool
	mmapThreshold int
}

func newOSFS(dir string, sync bool, mmapThreshold int) (fileSystem, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fsErr("mkdir", dir, err)
	}
	return &osFS{dir: dir, sync: sync, mmapThreshold: mmapThreshold}, nil
}

func (s *osFS) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *osFS) ReadFile(name string) ([]byte, func(), error) {
	path := s.path(name)
	st, err := os.Stat(path)
	if err != nil {
		return nil, nil, fsErr("stat", name, err)
	}
	if s.mmapThreshold > 0 && st.Size() >= int64(s.mmapThreshold) {
		r, err := mmap.Open(path, mmap.SequentialAccess)
		if err == nil {
			return r.Data, func() { r.Close() }, nil
		}
		// fall back to a plain read
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fsErr("read", name, err)
	}
	return b, func() {}, nil
}

func (s *osFS) Append(name string, data []byte) (int64, error) {
	f, err := os.OpenFile(s.path(name), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fsErr("open", name, err)
	}
	defer f.Close()
	st, err := f.Stat()
	if err != nil {
		return 0, fsErr("stat", name, err)
	}
	if err := appendWhole(f, st.Size(), data); err != nil {
		return 0, fsErr("append", name, err)
	}
	if s.sync {
		if err := mmap.Fdatasync(f, nil); err != nil {
			return 0, fsErr("fdatasync", name, err)
		}
	}
	return st.Size(), nil
}

type appendFile interface {
	io.Writer
	Truncate(size int64) error
}

// appendWhole writes data at the end of a file that was size bytes long. A
// failed write is cut back to size, so a page never ends in part of a record.
func appendWhole(f appendFile, size int64, data []byte) error {
	if _, err := f.Write(data); err != nil {
		if terr := f.Truncate(size); terr != nil {
			return errors.Join(err, terr)
		}
		return err
	}
	return nil
}

func (s *osFS) WriteAt(name string, off int64, data []byte) error {
	f, err := os.OpenFile(s.path(name), os.O_WRONLY, 0)
	if err != nil {
		return fsErr("open", name, err)
	}
	defer f.Close()
	if _, err := f.WriteAt(data, off); err != nil {
		return fsErr("write", name, err)
	}
	if s.sync {
		if err := mmap.Fdatasync(f, nil); err != nil {
			return fsErr("fdatasync", name, err)
		}
	}
	return nil
}

func (s *osFS) WriteFile(name string, data []byte) error {
	tmp := s.path(name + tempSuffix)
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fsErr("create", name, err)
	}
	_, err = f.Write(data)
	if err == nil && s.sync {
		err = mmap.Fdatasync(f, nil)
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return fsErr("write", name, err)
	}
	if err := os.Rename(tmp, s.path(name)); err != nil {
		return fsErr("rename", name, err)
	}
	return nil
}

func (s *osFS) List() ([]string, error) {
	ents, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fsErr("list", s.dir, err)
	}
	var names []string
	for _, ent := range ents {
		if !ent.Type().IsRegular() || strings.HasSuffix(ent.Name(), tempSuffix) {
			continue
		}
		names = append(names, ent.Name())
	}
	return names, nil
}

func (s *osFS) Close() error {
	return nil
}

func (s *osFS) String() string {
	return fmt.Sprintf("os:%s", s.dir)
}
