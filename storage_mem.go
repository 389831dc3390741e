package iris

import (
	"fmt"
	"io/fs"
	"sync"
)

type memFS struct {
	mu     sync.Mutex
	files  map[string][]byte
	closed bool
}

// newMemFS returns a transient in-memory backend intended for tests.
func newMemFS() *memFS {
	return &memFS{files: make(map[string][]byte)}
}

func (s *memFS) ReadFile(name string) ([]byte, func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.files[name]
	if !ok {
		return nil, nil, fsErr("read", name, fs.ErrNotExist)
	}
	return append([]byte(nil), v...), func() {}, nil
}

func (s *memFS) Append(name string, data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, fsErr("append", name, fs.ErrClosed)
	}
	off := int64(len(s.files[name]))
	s.files[name] = append(s.files[name], data...)
	return off, nil
}

func (s *memFS) WriteAt(name string, off int64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.files[name]
	if !ok {
		return fsErr("write", name, fs.ErrNotExist)
	}
	if off+int64(len(data)) > int64(len(v)) {
		return fsErr("write", name, fmt.Errorf("write of %d bytes at %d past end of %d-byte file", len(data), off, len(v)))
	}
	copy(v[off:], data)
	return nil
}

func (s *memFS) WriteFile(name string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return fsErr("write", name, fs.ErrClosed)
	}
	s.files[name] = append([]byte(nil), data...)
	return nil
}

func (s *memFS) List() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	names := make([]string, 0, len(s.files))
	for k := range s.files {
		names = append(names, k)
	}
	return names, nil
}

func (s *memFS) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
