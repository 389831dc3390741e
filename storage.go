package iris

import (
	"errors"
	"fmt"
	"io/fs"
)

// fileSystem is the file-level backend that pages and metadata files live in
// (a local directory, a single Bolt file, or memory).
type fileSystem interface {
	// ReadFile returns the whole file. The returned slice is only valid until
	// release is called.
	ReadFile(name string) (data []byte, release func(), err error)

	// Append appends data to the file, creating it if needed, and returns the
	// offset the data was written at.
	Append(name string, data []byte) (int64, error)

	// WriteAt overwrites existing bytes of the file in place.
	WriteAt(name string, off int64, data []byte) error

	// WriteFile replaces the file atomically.
	WriteFile(name string, data []byte) error

	// List returns the names of all files, in no particular order.
	List() ([]string, error)

	Close() error
}

const (
	BackendOS   = "os"
	BackendBolt = "bolt"
	BackendMem  = "mem"
)

func fsErr(op, name string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%w: %s %s: %w", ErrFilesystem, op, name, err)
}

func isNotExist(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}
