package iris

import (
	"fmt"
	"io/fs"
	"time"
	"unsafe"

	"go.etcd.io/bbolt"
)

var pagesBucket = []byte("pages")

// boltFS keeps every file as a value of a single Bolt bucket, keyed by name.
type boltFS struct {
	bdb *bbolt.DB
}

func newBoltFS(path string, sync bool) (fileSystem, error) {
	bopt := &bbolt.Options{}
	*bopt = *bbolt.DefaultOptions
	bopt.Timeout = 10 * time.Second
	bopt.FreelistType = bbolt.FreelistMapType
	if !sync {
		bopt.NoSync = true
		bopt.NoFreelistSync = true
	}
	bdb, err := bbolt.Open(path, 0o666, bopt)
	if err != nil {
		return nil, fsErr("open", path, err)
	}
	err = bdb.Update(func(btx *bbolt.Tx) error {
		_, err := btx.CreateBucketIfNotExists(pagesBucket)
		return err
	})
	if err != nil {
		bdb.Close()
		return nil, fsErr("open", path, err)
	}
	return &boltFS{bdb: bdb}, nil
}

func (s *boltFS) ReadFile(name string) ([]byte, func(), error) {
	var data []byte
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		v := btx.Bucket(pagesBucket).Get(unsafeBytesFromString(name))
		if v == nil {
			return fs.ErrNotExist
		}
		data = append([]byte(nil), v...)
		return nil
	})
	if err != nil {
		return nil, nil, fsErr("read", name, err)
	}
	return data, func() {}, nil
}

func (s *boltFS) Append(name string, data []byte) (int64, error) {
	var off int64
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(pagesBucket)
		key := []byte(name)
		old := b.Get(key)
		off = int64(len(old))
		v := make([]byte, 0, len(old)+len(data))
		v = append(v, old...)
		v = append(v, data...)
		return b.Put(key, v)
	})
	if err != nil {
		return 0, fsErr("append", name, err)
	}
	return off, nil
}

func (s *boltFS) WriteAt(name string, off int64, data []byte) error {
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		b := btx.Bucket(pagesBucket)
		key := []byte(name)
		old := b.Get(key)
		if old == nil {
			return fs.ErrNotExist
		}
		if off+int64(len(data)) > int64(len(old)) {
			return fmt.Errorf("write of %d bytes at %d past end of %d-byte file", len(data), off, len(old))
		}
		v := append([]byte(nil), old...)
		copy(v[off:], data)
		return b.Put(key, v)
	})
	return fsErr("write", name, err)
}

func (s *boltFS) WriteFile(name string, data []byte) error {
	err := s.bdb.Update(func(btx *bbolt.Tx) error {
		return btx.Bucket(pagesBucket).Put([]byte(name), append([]byte(nil), data...))
	})
	return fsErr("write", name, err)
}

func (s *boltFS) List() ([]string, error) {
	var names []string
	err := s.bdb.View(func(btx *bbolt.Tx) error {
		c := btx.Bucket(pagesBucket).Cursor()
		for k, _ := c.First(); k != nil; k, _ = c.Next() {
			names = append(names, string(k))
		}
		return nil
	})
	if err != nil {
		return nil, fsErr("list", "", err)
	}
	return names, nil
}

func (s *boltFS) Close() error {
	return s.bdb.Close()
}

func unsafeBytesFromString(s string) []byte {
	return unsafe.Slice(unsafe.StringData(s), len(s))
}
