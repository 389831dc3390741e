// Package mmap maps files into memory and flushes them to disk.
package mmap

import (
	"errors"
	"fmt"
	"os"
)

type Options uint

const (
	// Writable opens the file for writing (otherwise, it's opened read-only).
	Writable Options = 1 << 0

	// SequentialAccess is a hint requesting aggressive read-ahead.
	// Incompatible with RandomAccess. Maps to MADV_SEQUENTIAL on Unix.
	SequentialAccess Options = 1 << 1

	// RandomAccess is a hint that read ahead is less useful than normally.
	// Incompatible with SequentialAccess. Maps to MADV_RANDOM on Unix.
	RandomAccess Options = 1 << 2

	// Prefault is a hint requesting the entire file to be loaded in memory
	// for fastest access. Maps to MAP_POPULATE on Linux.
	Prefault Options = 1 << 3
)

var ErrEmpty = errors.New("mmap: cannot map an empty file")

func (o Options) Has(v Options) bool {
	return o&v != 0
}

// Mmap maps size bytes of the file, starting at the beginning.
func Mmap(f *os.File, offset, size int, opt Options) ([]byte, error) {
	if offset != 0 {
		panic("non-zero offset not yet supported")
	}
	if size == 0 {
		return nil, ErrEmpty
	}
	return mmap(f, size, opt)
}

// Munmap unmaps the given slice from memory. The slice must have been returned
// by Mmap.
func Munmap(b []byte) error {
	return munmap(b)
}

// Region is a whole file mapped into memory.
type Region struct {
	Data []byte
	f    *os.File
}

// Open maps the entire file at path. Unless opt includes Writable, the
// mapping is read-only and must not be modified.
func Open(path string, opt Options) (*Region, error) {
	flag := os.O_RDONLY
	if opt.Has(Writable) {
		flag = os.O_RDWR
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}
	if st.Size() > MaxSize {
		f.Close()
		return nil, fmt.Errorf("mmap: %s is %d bytes, larger than the %d supported", path, st.Size(), int64(MaxSize))
	}
	b, err := Mmap(f, 0, int(st.Size()), opt)
	if err != nil {
		f.Close()
		return nil, err
	}
	return &Region{Data: b, f: f}, nil
}

// Sync flushes a writable region to disk.
func (r *Region) Sync() error {
	return Fdatasync(r.f, r.Data)
}

func (r *Region) Close() error {
	if r.f == nil {
		return nil
	}
	err := Munmap(r.Data)
	if cerr := r.f.Close(); err == nil {
		err = cerr
	}
	r.Data, r.f = nil, nil
	return err
}
