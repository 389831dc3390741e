package iris

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
)

type pageState int

const (
	pageCreated pageState = iota
	pageOpen
	pageRolledOver
)

func (s pageState) String() string {
	switch s {
	case pageCreated:
		return "created"
	case pageOpen:
		return "open"
	case pageRolledOver:
		return "rolled-over"
	default:
		return fmt.Sprintf("invalid state %d", int(s))
	}
}

// page is one bounded, append-only file of a graph. Only its header line is
// ever rewritten; records are appended whole and never split across pages.
type page struct {
	graph string
	pos   int
	count int
	size  int64
	state pageState
	codec Codec
	comp  Compressor
}

func (p *page) fileName() string {
	return pageFileName(p.graph, p.pos)
}

func (p *page) metadata() PageMetadata {
	return PageMetadata{Count: p.count, Pos: p.pos, Codec: p.codec.Name(), Compression: compressorName(p.comp)}
}

func pageFileName(graph string, pos int) string {
	return graph + "." + strconv.Itoa(pos)
}

func metaFileName(graph string) string {
	return graph + ".meta"
}

// parsePageFileName splits "<graph>.<pos>"; graph names may contain dots.
func parsePageFileName(name string) (graph string, pos int, ok bool) {
	i := strings.LastIndexByte(name, '.')
	if i <= 0 {
		return "", 0, false
	}
	n, err := strconv.ParseUint(name[i+1:], 10, 31)
	if err != nil {
		return "", 0, false
	}
	return name[:i], int(n), true
}

// PageRecord is a decoded record along with the byte range it occupies in
// the page file.
type PageRecord struct {
	Doc   map[string]any
	Start int
	End   int
}

// pageStore performs page-level I/O for all graphs of a database.
type pageStore struct {
	fs            fileSystem
	codec         Codec
	comp          Compressor
	maxRecordSize int
	maxPageSize   int
	logger        *slog.Logger
}

func (ps *pageStore) headerLen() int {
	return pageHeaderLen(ps.codec.Name(), compressorName(ps.comp))
}

func (ps *pageStore) createPage(graph string, pos int) (*page, error) {
	p := &page{graph: graph, pos: pos, state: pageCreated, codec: ps.codec, comp: ps.comp}
	hdr := appendPageHeader(nil, p.metadata())
	if err := ps.fs.WriteFile(p.fileName(), hdr); err != nil {
		return nil, pageErrf(graph, pos, nil, err, "create page")
	}
	p.size = int64(len(hdr))
	p.state = pageOpen
	return p, nil
}

// encodeRecord produces the bytes appended to a page for doc. The record size
// limit applies to the encoded record before compression.
func (ps *pageStore) encodeRecord(buf []byte, doc map[string]any) ([]byte, error) {
	rec, err := ps.codec.Encode(buf, doc)
	if err != nil {
		return nil, &PageError{Pos: -1, Off: -1, Kind: ErrCorruptedRecord, Err: err, Msg: "encode"}
	}
	if len(rec) > ps.maxRecordSize {
		return nil, &PageError{Pos: -1, Off: -1, Kind: ErrRecordSizeExceeded, Msg: fmt.Sprintf("%d bytes, limit %d", len(rec), ps.maxRecordSize)}
	}
	if ps.comp == nil {
		return rec, nil
	}
	c, err := ps.comp.Compress(nil, rec)
	if err != nil {
		return nil, &PageError{Pos: -1, Off: -1, Kind: ErrCorruptedRecord, Err: err, Msg: "compress"}
	}
	return appendFrame(nil, c), nil
}

// check reports the error write would return for doc before touching any
// file: a record over the size limit, or one no empty page can hold.
func (ps *pageStore) check(doc map[string]any) error {
	buf := recordBytesPool.Get().([]byte)
	defer releaseRecordBytes(buf)
	frame, err := ps.encodeRecord(buf, doc)
	if err != nil {
		return err
	}
	if ps.headerLen()+len(frame) > ps.maxPageSize {
		return &PageError{Pos: -1, Off: -1, Kind: ErrPageSizeExceeded, Msg: fmt.Sprintf("%d-byte record does not fit into a %d-byte page", len(frame), ps.maxPageSize)}
	}
	return nil
}

// write appends doc to p, rolling over to page p.pos+1 when p cannot hold it.
// It returns the page that is active afterwards, which is never nil, even
// when the write fails.
func (ps *pageStore) write(p *page, doc map[string]any) (*page, error) {
	buf := recordBytesPool.Get().([]byte)
	defer releaseRecordBytes(buf)
	frame, err := ps.encodeRecord(buf, doc)
	if err != nil {
		return p, withPage(err, p.graph, p.pos)
	}

	if p.size+int64(len(frame)) > int64(ps.maxPageSize) {
		if p.count == 0 || int64(ps.headerLen()+len(frame)) > int64(ps.maxPageSize) {
			return p, pageErrf(p.graph, p.pos, ErrPageSizeExceeded, nil, "%d-byte record does not fit into a %d-byte page", len(frame), ps.maxPageSize)
		}
		np, err := ps.createPage(p.graph, p.pos+1)
		if err != nil {
			return p, err
		}
		p.state = pageRolledOver
		ps.logger.LogAttrs(context.Background(), slog.LevelDebug, "iris: page rollover", slog.String("graph", p.graph), slog.Int("from", p.pos), slog.Int("to", np.pos))
		p = np
	}

	if _, err := ps.fs.Append(p.fileName(), frame); err != nil {
		return p, pageErrf(p.graph, p.pos, nil, err, "append record")
	}
	p.count++
	p.size += int64(len(frame))

	// The record is on the page now and replay will find it, so a stale
	// header count only costs a warning at load.
	hdr := appendPageHeader(nil, p.metadata())
	if err := ps.fs.WriteAt(p.fileName(), 0, hdr); err != nil {
		ps.logger.LogAttrs(context.Background(), slog.LevelError, "iris: failed to rewrite page header", slog.String("graph", p.graph), slog.Int("pos", p.pos), slog.Any("err", err))
	}
	return p, nil
}

// readPage loads and decodes a whole page file.
func (ps *pageStore) readPage(graph string, pos int) (PageMetadata, []PageRecord, int64, error) {
	name := pageFileName(graph, pos)
	data, release, err := ps.fs.ReadFile(name)
	if err != nil {
		return PageMetadata{}, nil, 0, err
	}
	defer release()
	meta, recs, err := readContents(data)
	if err != nil {
		return meta, nil, 0, withPage(err, graph, pos)
	}
	return meta, recs, int64(len(data)), nil
}

// readContents decodes every record of a page. Any decoding failure discards
// all records decoded so far.
func readContents(data []byte) (PageMetadata, []PageRecord, error) {
	meta, off, err := parseMetadata(data)
	if err != nil {
		return meta, nil, err
	}
	codec, err := codecByName(meta.Codec)
	if err != nil {
		return meta, nil, dataErrf(data[:off], 0, ErrCorruptedHeader, err, "codec")
	}
	comp, err := compressorByName(meta.Compression)
	if err != nil {
		return meta, nil, dataErrf(data[:off], 0, ErrCorruptedHeader, err, "compression")
	}

	var recs []PageRecord
	for off < len(data) {
		doc, n, err := decodeRecord(data[off:], codec, comp)
		if err != nil {
			return meta, nil, &PageError{Pos: -1, Off: off, Kind: ErrCorruptedRecord, Err: err}
		}
		recs = append(recs, PageRecord{Doc: doc, Start: off, End: off + n})
		off += n
	}
	return meta, recs, nil
}

func decodeRecord(data []byte, codec Codec, comp Compressor) (map[string]any, int, error) {
	if comp == nil {
		return codec.Decode(data)
	}
	body, n, err := readFrame(data)
	if err != nil {
		return nil, 0, err
	}
	raw, err := comp.Decompress(body)
	if err != nil {
		return nil, 0, err
	}
	doc, m, err := codec.Decode(raw)
	if err != nil {
		return nil, 0, err
	}
	if m != len(raw) {
		return nil, 0, fmt.Errorf("%d trailing bytes after record", len(raw)-m)
	}
	return doc, n, nil
}
