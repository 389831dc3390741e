package iris

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// PageMetadata is the KEY=VALUE header line of a page file, and also the sole
// content of a graph's .meta file (where only Count and Pos are written).
type PageMetadata struct {
	Count       int
	Pos         int
	Codec       string
	Compression string
	Extra       map[string]string
}

const (
	metaCount       = "COUNT"
	metaPos         = "POS"
	metaCodec       = "CODEC"
	metaCompression = "ZIP"
)

// appendPageHeader writes the fixed-width header line. Count and Pos are
// zero-padded so that rewriting the header never changes its length.
func appendPageHeader(b []byte, m PageMetadata) []byte {
	b = fmt.Appendf(b, "%s=%020d %s=%020d %s=%s %s=%s\n", metaCount, m.Count, metaPos, m.Pos, metaCodec, m.Codec, metaCompression, m.Compression)
	return b
}

func pageHeaderLen(codec, compression string) int {
	return len(appendPageHeader(nil, PageMetadata{Codec: codec, Compression: compression}))
}

func appendGraphMeta(b []byte, count, pos int) []byte {
	return fmt.Appendf(b, "%s=%d %s=%d\n", metaCount, count, metaPos, pos)
}

// parseMetadata parses the first line of data and returns the metadata along
// with the length of the line including its terminating newline.
func parseMetadata(data []byte) (PageMetadata, int, error) {
	var m PageMetadata
	end := bytes.IndexByte(data, '\n')
	if end < 0 {
		return m, 0, dataErrf(data, len(data), ErrCorruptedHeader, nil, "missing line terminator")
	}
	line := data[:end]
	if !utf8.Valid(line) {
		return m, 0, dataErrf(line, 0, ErrCorruptedHeader, nil, "not valid UTF-8")
	}

	var seenCount, seenPos bool
	for _, pair := range strings.Fields(string(line)) {
		k, v, ok := strings.Cut(pair, "=")
		if !ok {
			return m, 0, dataErrf(line, 0, ErrMalformedHeader, nil, "pair %q has no value", pair)
		}
		switch k {
		case metaCount:
			n, err := parseMetaInt(v)
			if err != nil {
				return m, 0, dataErrf(line, 0, ErrMalformedHeader, err, "%s", k)
			}
			m.Count, seenCount = n, true
		case metaPos:
			n, err := parseMetaInt(v)
			if err != nil {
				return m, 0, dataErrf(line, 0, ErrMalformedHeader, err, "%s", k)
			}
			m.Pos, seenPos = n, true
		case metaCodec:
			m.Codec = v
		case metaCompression:
			m.Compression = v
		default:
			if m.Extra == nil {
				m.Extra = make(map[string]string)
			}
			m.Extra[k] = v
		}
	}
	if !seenCount {
		return m, 0, dataErrf(line, 0, ErrMalformedHeader, nil, "missing %s", metaCount)
	}
	if !seenPos {
		return m, 0, dataErrf(line, 0, ErrMalformedHeader, nil, "missing %s", metaPos)
	}
	return m, end + 1, nil
}

func parseMetaInt(s string) (int, error) {
	n, err := strconv.ParseUint(s, 10, 63)
	if err != nil {
		return 0, err
	}
	return int(n), nil
}
