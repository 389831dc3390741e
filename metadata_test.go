package iris

import (
	"strings"
	"testing"
)

func TestPageHeader_fixedWidth(t *testing.T) {
	a := appendPageHeader(nil, PageMetadata{Count: 0, Pos: 0, Codec: CodecBSON, Compression: CompressionNone})
	b := appendPageHeader(nil, PageMetadata{Count: 123456, Pos: 42, Codec: CodecBSON, Compression: CompressionNone})
	deepEqual(t, len(a), len(b))
	deepEqual(t, len(a), pageHeaderLen(CodecBSON, CompressionNone))
	deepEqual(t, string(a), "COUNT=00000000000000000000 POS=00000000000000000000 CODEC=bson ZIP=none\n")
}

func TestParseMetadata(t *testing.T) {
	data := []byte("COUNT=00000000000000000002 POS=00000000000000000003 CODEC=msgpack ZIP=snappy SHARD=7\nrest")
	m, n, err := parseMetadata(data)
	ensure(err)
	deepEqual(t, n, len(data)-len("rest"))
	deepEqual(t, m.Count, 2)
	deepEqual(t, m.Pos, 3)
	deepEqual(t, m.Codec, CodecMsgPack)
	deepEqual(t, m.Compression, CompressionSnappy)
	deepEqual(t, m.Extra, map[string]string{"SHARD": "7"})
}

func TestParseMetadata_graphMeta(t *testing.T) {
	m, _, err := parseMetadata(appendGraphMeta(nil, 1, 0))
	ensure(err)
	deepEqual(t, m.Count, 1)
	deepEqual(t, m.Pos, 0)
	deepEqual(t, m.Codec, "")
}

func TestParseMetadata_errors(t *testing.T) {
	tests := []struct {
		data string
		kind error
	}{
		{"COUNT=1 POS=2", ErrCorruptedHeader},
		{"COUNT=1 POS=\xff\xfe\n", ErrCorruptedHeader},
		{"COUNT POS=2\n", ErrMalformedHeader},
		{"COUNT=x POS=2\n", ErrMalformedHeader},
		{"COUNT=-1 POS=2\n", ErrMalformedHeader},
		{"POS=2\n", ErrMalformedHeader},
		{"COUNT=1\n", ErrMalformedHeader},
		{"\n", ErrMalformedHeader},
	}
	for _, tt := range tests {
		_, _, err := parseMetadata([]byte(tt.data))
		if err == nil {
			t.Errorf("** parseMetadata(%q) succeeded, wanted %v", tt.data, tt.kind)
			continue
		}
		isErr(t, err, tt.kind)
	}
}

func TestPageError_abbreviatesData(t *testing.T) {
	data := []byte(strings.Repeat("a", 200))
	err := dataErrf(data, 5, ErrCorruptedRecord, nil, "bad")
	err.Graph, err.Pos = "g", 3
	s := err.Error()
	if !strings.HasPrefix(s, "g.3: corrupted record: bad at offset 5: (200) 6161") {
		t.Errorf("** got %q", s)
	}
	if !strings.Contains(s, "...") {
		t.Errorf("** got %q, wanted abbreviated data", s)
	}
}
