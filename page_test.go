package iris

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func newTestStore(t testing.TB, codec, comp string) *pageStore {
	return &pageStore{
		fs:            newMemFS(),
		codec:         must(codecByName(codec)),
		comp:          must(compressorByName(comp)),
		maxRecordSize: DefaultMaxRecordSize,
		maxPageSize:   DefaultMaxPageSize,
		logger:        testLogger(t),
	}
}

func testDoc(id ID) map[string]any {
	return nodeDoc(&Node{ID: id, Data: map[string]any{"v": "payload"}})
}

func fileContent(t testing.TB, fs fileSystem, name string) string {
	t.Helper()
	data, release, err := fs.ReadFile(name)
	if err != nil {
		t.Fatalf("ReadFile(%s): %v", name, err)
	}
	defer release()
	return string(data)
}

func TestPageStore_rollover(t *testing.T) {
	ps := newTestStore(t, CodecBSON, CompressionNone)
	frameLen := len(must(ps.encodeRecord(nil, testDoc(0))))
	ps.maxPageSize = ps.headerLen() + 2*frameLen + 1

	p := must(ps.createPage("g", 0))
	p = must(ps.write(p, testDoc(0)))
	p = must(ps.write(p, testDoc(1)))
	deepEqual(t, p.pos, 0)
	deepEqual(t, p.count, 2)

	old := p
	p = must(ps.write(p, testDoc(2)))
	deepEqual(t, p.pos, 1)
	deepEqual(t, p.count, 1)
	deepEqual(t, old.state, pageRolledOver)

	meta, recs, size, err := ps.readPage("g", 0)
	ensure(err)
	deepEqual(t, meta.Count, 2)
	deepEqual(t, len(recs), 2)
	deepEqual(t, size, int64(ps.headerLen()+2*frameLen))

	meta, recs, _, err = ps.readPage("g", 1)
	ensure(err)
	deepEqual(t, meta.Pos, 1)
	deepEqual(t, len(recs), 1)
	deepEqual(t, recs[0].Start, ps.headerLen())
	deepEqual(t, recs[0].End, ps.headerLen()+frameLen)
	if diff := cmp.Diff(testDoc(2), recs[0].Doc, cmpopts.EquateEmpty()); diff != "" {
		t.Errorf("** record mismatch (-wanted +got):\n%s", diff)
	}
}

func TestPageStore_headerRewrittenInPlace(t *testing.T) {
	ps := newTestStore(t, CodecBSON, CompressionNone)
	p := must(ps.createPage("g", 3))
	p = must(ps.write(p, testDoc(0)))
	p = must(ps.write(p, testDoc(1)))

	content := fileContent(t, ps.fs, "g.3")
	header, _, _ := strings.Cut(content, "\n")
	deepEqual(t, header, "COUNT=00000000000000000002 POS=00000000000000000003 CODEC=bson ZIP=none")
	deepEqual(t, int64(len(content)), p.size)
}

func TestPageStore_recordSizeExceeded(t *testing.T) {
	ps := newTestStore(t, CodecBSON, CompressionNone)
	ps.maxRecordSize = 10
	p := must(ps.createPage("g", 0))
	before := fileContent(t, ps.fs, "g.0")

	np, err := ps.write(p, testDoc(0))
	isErr(t, err, ErrRecordSizeExceeded)
	deepEqual(t, np, p)
	deepEqual(t, p.count, 0)
	deepEqual(t, fileContent(t, ps.fs, "g.0"), before)
}

func TestPageStore_pageSizeExceeded(t *testing.T) {
	ps := newTestStore(t, CodecBSON, CompressionNone)
	frameLen := len(must(ps.encodeRecord(nil, testDoc(0))))
	ps.maxPageSize = ps.headerLen() + frameLen - 1

	p := must(ps.createPage("g", 0))
	_, err := ps.write(p, testDoc(0))
	isErr(t, err, ErrPageSizeExceeded)
	if _, _, err := ps.fs.ReadFile("g.1"); !isNotExist(err) {
		t.Errorf("** page g.1 was created, err = %v", err)
	}
}

func TestPageStore_corruptedRecord(t *testing.T) {
	ps := newTestStore(t, CodecBSON, CompressionNone)
	p := must(ps.createPage("g", 0))
	p = must(ps.write(p, testDoc(0)))
	must(ps.write(p, testDoc(1)))
	must(ps.fs.Append("g.0", []byte{0x40, 0, 0, 0, 0x03}))

	_, recs, _, err := ps.readPage("g", 0)
	isErr(t, err, ErrCorruptedRecord)
	if recs != nil {
		t.Errorf("** got %d records from a corrupted page, wanted none", len(recs))
	}
	if !strings.HasPrefix(err.Error(), "g.0: corrupted record") {
		t.Errorf("** got %q", err.Error())
	}
}

func TestPageStore_corruptedHeader(t *testing.T) {
	ps := newTestStore(t, CodecBSON, CompressionNone)
	ensure(ps.fs.WriteFile("g.0", []byte("no header here")))
	_, _, _, err := ps.readPage("g", 0)
	isErr(t, err, ErrCorruptedHeader)

	ensure(ps.fs.WriteFile("g.0", []byte("COUNT=0 POS=0 CODEC=yaml ZIP=none\n")))
	_, _, _, err = ps.readPage("g", 0)
	isErr(t, err, ErrCorruptedHeader)
}

func TestPageStore_compressed(t *testing.T) {
	for _, codec := range []string{CodecBSON, CodecMsgPack} {
		for _, comp := range []string{CompressionSnappy, CompressionZlib} {
			t.Run(codec+"+"+comp, func(t *testing.T) {
				ps := newTestStore(t, codec, comp)
				p := must(ps.createPage("g", 0))
				for i := range 5 {
					p = must(ps.write(p, testDoc(ID(i))))
				}
				meta, recs, _, err := ps.readPage("g", 0)
				ensure(err)
				deepEqual(t, meta.Codec, codec)
				deepEqual(t, meta.Compression, comp)
				deepEqual(t, len(recs), 5)
				if diff := cmp.Diff(testDoc(4), recs[4].Doc, cmpopts.EquateEmpty()); diff != "" {
					t.Errorf("** record mismatch (-wanted +got):\n%s", diff)
				}
			})
		}
	}
}

func TestParsePageFileName(t *testing.T) {
	tests := []struct {
		name  string
		graph string
		pos   int
		ok    bool
	}{
		{"people.0", "people", 0, true},
		{"my.graph.12", "my.graph", 12, true},
		{"people.meta", "", 0, false},
		{".5", "", 0, false},
		{"people", "", 0, false},
		{"people.-1", "", 0, false},
	}
	for _, tt := range tests {
		graph, pos, ok := parsePageFileName(tt.name)
		if graph != tt.graph || pos != tt.pos || ok != tt.ok {
			t.Errorf("** parsePageFileName(%q) = (%q, %d, %v), wanted (%q, %d, %v)", tt.name, graph, pos, ok, tt.graph, tt.pos, tt.ok)
		}
	}
}
