package iris

import (
	"encoding/binary"
	"io"
)

func ensureCapacity(buf []byte, minCap int) []byte {
	c := cap(buf)
	if minCap > c {
		if c < 16 {
			c = 16
		}
		for minCap > c {
			c <<= 1
		}
		old := buf
		buf = make([]byte, len(old), c)
		copy(buf, old)
	}
	return buf
}

func grow(buf []byte, n int) (int, []byte) {
	off := len(buf)
	newLen := off + n
	buf = ensureCapacity(buf, newLen)
	return off, buf[:newLen]
}

func appendRaw(buf []byte, chunk []byte) []byte {
	n := len(chunk)
	off, buf := grow(buf, n)
	copy(buf[off:], chunk)
	return buf
}

type bytesBuilder struct {
	Buf []byte
}

var _ io.Writer = (*bytesBuilder)(nil)

func (bb *bytesBuilder) Write(b []byte) (int, error) {
	bb.Buf = appendRaw(bb.Buf, b)
	return len(b), nil
}

func (bb *bytesBuilder) WriteByte(v byte) error {
	var off int
	off, bb.Buf = grow(bb.Buf, 1)
	bb.Buf[off] = v
	return nil
}

// appendFrame appends uvarint(len(chunk)) followed by chunk.
func appendFrame(buf []byte, chunk []byte) []byte {
	buf = binary.AppendUvarint(buf, uint64(len(chunk)))
	return appendRaw(buf, chunk)
}

// readFrame returns the body of the uvarint-framed chunk at the start of data
// and the total number of bytes the frame occupies.
func readFrame(data []byte) ([]byte, int, error) {
	size, n := binary.Uvarint(data)
	if n <= 0 {
		return nil, 0, dataErrf(data, 0, ErrCorruptedRecord, nil, "invalid frame length")
	}
	if size > uint64(len(data)-n) {
		return nil, 0, dataErrf(data, 0, ErrCorruptedRecord, nil, "frame of %d bytes overruns %d available", size, len(data)-n)
	}
	end := n + int(size)
	return data[n:end], end, nil
}
