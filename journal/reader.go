package journal

import (
	"bytes"
	"encoding/binary"
	"iter"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// Record is a committed journal record.
type Record struct {
	ID        uint64
	Segment   uint32
	Timestamp uint32
	Data      []byte
}

// Records yields every committed record of every segment in order. Reading
// a segment stops at its first corrupted or uncommitted byte; segments with a
// corrupted header are skipped.
func (j *Journal) Records() iter.Seq2[Record, error] {
	return func(yield func(Record, error) bool) {
		names, err := j.segmentNames()
		if err != nil {
			yield(Record{}, err)
			return
		}
		for _, name := range names {
			seq, _, firstRec, err := j.parseSegmentName(name)
			if err != nil {
				if !yield(Record{}, err) {
					return
				}
				continue
			}
			data, err := os.ReadFile(filepath.Join(j.dir, name))
			if err != nil {
				if !yield(Record{}, err) {
					return
				}
				continue
			}
			recs, err := j.readSegment(data, seq)
			if err == errCorruptedFile {
				j.logger.LogAttrs(j.context, slog.LevelWarn, "journal: skipping corrupted file", slog.String("jrnl", j.debugName), slog.String("file", name))
				continue
			} else if err != nil {
				if !yield(Record{}, err) {
					return
				}
				continue
			}
			for i, r := range recs {
				r.ID = firstRec + uint64(i)
				if !yield(r, nil) {
					return
				}
			}
		}
	}
}

// ReadAll returns every committed record.
func (j *Journal) ReadAll() ([]Record, error) {
	var all []Record
	for r, err := range j.Records() {
		if err != nil {
			return all, err
		}
		all = append(all, r)
	}
	return all, nil
}

// readSegment decodes the committed records of one segment file.
func (j *Journal) readSegment(data []byte, seq uint32) ([]Record, error) {
	var h segmentHeader
	if err := j.checkHeader(data, &h, seq); err != nil {
		return nil, err
	}

	var hash xxhash.Digest
	hash.Reset()
	hash.Write(data[:segmentHeaderSize])

	var committed, pending []Record
	ts := h.Timestamp
	off := segmentHeaderSize
	for off < len(data) {
		if data[off]&recordFlagCommit != 0 {
			if len(data)-off < 8 {
				break
			}
			want := commitMarker(&hash)
			if !bytes.Equal(data[off:off+8], want[:]) {
				j.logCorruption(seq, off)
				break
			}
			hash.Write(data[off : off+8])
			off += 8
			committed = append(committed, pending...)
			pending = pending[:0]
			continue
		}

		start := off
		sizeAndFlags, n := binary.Uvarint(data[off:])
		if n <= 0 {
			j.logCorruption(seq, off)
			break
		}
		off += n
		tsDelta, n := binary.Uvarint(data[off:])
		if n <= 0 || tsDelta > 0xFFFF_FFFF {
			j.logCorruption(seq, start)
			break
		}
		off += n
		size := sizeAndFlags >> recordFlagShift
		if size > uint64(len(data)-off) {
			j.logCorruption(seq, start)
			break
		}
		end := off + int(size)
		ts += uint32(tsDelta)
		pending = append(pending, Record{
			Segment:   seq,
			Timestamp: ts,
			Data:      data[off:end],
		})
		hash.Write(data[start:end])
		off = end
	}
	return committed, nil
}

func (j *Journal) logCorruption(seq uint32, off int) {
	j.logger.LogAttrs(j.context, slog.LevelWarn, "journal: corrupted record, ignoring the rest of the segment", slog.String("jrnl", j.debugName), slog.Uint64("seg", uint64(seq)), slog.Int("off", off))
}
