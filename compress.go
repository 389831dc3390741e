package iris

import (
	"bytes"
	"fmt"
	"io"

	"github.com/golang/snappy"
	"github.com/klauspost/compress/zlib"
)

// Compressor is an optional reversible transformation applied to each whole
// encoded record before it is framed into a page.
type Compressor interface {
	Name() string
	Compress(dst, src []byte) ([]byte, error)
	Decompress(src []byte) ([]byte, error)
}

const (
	CompressionNone   = "none"
	CompressionSnappy = "snappy"
	CompressionZlib   = "zlib"
)

func compressorByName(name string) (Compressor, error) {
	switch name {
	case "", CompressionNone:
		return nil, nil
	case CompressionSnappy:
		return snappyCompressor{}, nil
	case CompressionZlib:
		return zlibCompressor{}, nil
	default:
		return nil, fmt.Errorf("unknown compression %q", name)
	}
}

func compressorName(c Compressor) string {
	if c == nil {
		return CompressionNone
	}
	return c.Name()
}

type snappyCompressor struct{}

func (snappyCompressor) Name() string { return CompressionSnappy }

func (snappyCompressor) Compress(dst, src []byte) ([]byte, error) {
	return snappy.Encode(dst[:cap(dst)], src), nil
}

func (snappyCompressor) Decompress(src []byte) ([]byte, error) {
	b, err := snappy.Decode(nil, src)
	if err != nil {
		return nil, fmt.Errorf("snappy: %w", err)
	}
	return b, nil
}

type zlibCompressor struct{}

func (zlibCompressor) Name() string { return CompressionZlib }

func (zlibCompressor) Compress(dst, src []byte) ([]byte, error) {
	bb := bytesBuilder{dst[:0]}
	w := zlib.NewWriter(&bb)
	if _, err := w.Write(src); err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return bb.Buf, nil
}

func (zlibCompressor) Decompress(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	defer r.Close()
	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("zlib: %w", err)
	}
	return b, nil
}
