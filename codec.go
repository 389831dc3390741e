package iris

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"slices"

	"github.com/vmihailenco/msgpack/v5"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Codec turns record documents into self-delimiting bytes and back.
// Encoding must be deterministic: equal documents produce equal bytes.
type Codec interface {
	Name() string

	// Encode appends the encoded document to buf.
	Encode(buf []byte, doc map[string]any) ([]byte, error)

	// Decode decodes the record at the start of data and returns it together
	// with the number of bytes consumed.
	Decode(data []byte) (map[string]any, int, error)
}

const (
	CodecBSON    = "bson"
	CodecMsgPack = "msgpack"
)

func codecByName(name string) (Codec, error) {
	switch name {
	case "", CodecBSON:
		return bsonCodec{}, nil
	case CodecMsgPack:
		return msgpackCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

type bsonCodec struct{}

func (bsonCodec) Name() string { return CodecBSON }

func (bsonCodec) Encode(buf []byte, doc map[string]any) ([]byte, error) {
	raw, err := bson.Marshal(sortedBSON(doc))
	if err != nil {
		return buf, fmt.Errorf("bson: %w", err)
	}
	return appendRaw(buf, raw), nil
}

const minBSONSize = 5

func (bsonCodec) Decode(data []byte) (map[string]any, int, error) {
	if len(data) < minBSONSize {
		return nil, 0, dataErrf(data, 0, ErrCorruptedRecord, nil, "truncated bson document")
	}
	n := int(int32(binary.LittleEndian.Uint32(data)))
	if n < minBSONSize || n > len(data) {
		return nil, 0, dataErrf(data, 0, ErrCorruptedRecord, nil, "invalid bson length %d", n)
	}
	var d bson.D
	if err := bson.Unmarshal(data[:n], &d); err != nil {
		return nil, 0, dataErrf(data[:n], 0, ErrCorruptedRecord, err, "bson")
	}
	doc, ok := normalize(d).(map[string]any)
	if !ok {
		return nil, 0, dataErrf(data[:n], 0, ErrCorruptedRecord, nil, "bson record is not a document")
	}
	return doc, n, nil
}

// sortedBSON converts maps into bson.D with keys in ascending order so that
// the same document always encodes to the same bytes.
func sortedBSON(v any) any {
	switch v := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		d := make(bson.D, 0, len(keys))
		for _, k := range keys {
			d = append(d, bson.E{Key: k, Value: sortedBSON(v[k])})
		}
		return d
	case []any:
		a := make(bson.A, len(v))
		for i, e := range v {
			a[i] = sortedBSON(e)
		}
		return a
	default:
		return v
	}
}

type msgpackCodec struct{}

func (msgpackCodec) Name() string { return CodecMsgPack }

func (msgpackCodec) Encode(buf []byte, doc map[string]any) ([]byte, error) {
	var bb bytesBuilder
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)
	err := enc.Encode(doc)
	msgpack.PutEncoder(enc)
	if err != nil {
		return buf, fmt.Errorf("msgpack: %w", err)
	}
	return appendFrame(buf, bb.Buf), nil
}

func (msgpackCodec) Decode(data []byte) (map[string]any, int, error) {
	body, n, err := readFrame(data)
	if err != nil {
		return nil, 0, err
	}
	var r bytes.Reader
	r.Reset(body)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	dec.UseLooseInterfaceDecoding(true)
	v, err := dec.DecodeInterface()
	msgpack.PutDecoder(dec)
	if err != nil {
		return nil, 0, dataErrf(body, 0, ErrCorruptedRecord, err, "msgpack")
	}
	if r.Len() != 0 {
		return nil, 0, dataErrf(body, len(body)-r.Len(), ErrCorruptedRecord, nil, "trailing bytes after msgpack document")
	}
	doc, ok := normalize(v).(map[string]any)
	if !ok {
		return nil, 0, dataErrf(body, 0, ErrCorruptedRecord, nil, "msgpack record is not a map")
	}
	return doc, n, nil
}

// normalize maps decoded values onto a fixed set of Go types: map[string]any,
// []any, int64, float64, string, bool and nil. Integral JSON numbers become
// int64, other numbers float64.
func normalize(v any) any {
	switch v := v.(type) {
	case nil, string, bool, int64, float64:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, err := v.Float64()
		if err != nil {
			return v.String()
		}
		return f
	case int:
		return int64(v)
	case int8:
		return int64(v)
	case int16:
		return int64(v)
	case int32:
		return int64(v)
	case uint:
		return uintToValue(uint64(v))
	case uint8:
		return int64(v)
	case uint16:
		return int64(v)
	case uint32:
		return int64(v)
	case uint64:
		return uintToValue(v)
	case ID:
		return uintToValue(uint64(v))
	case float32:
		return float64(v)
	case map[string]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = normalize(e)
		}
		return m
	case primitive.D:
		m := make(map[string]any, len(v))
		for _, e := range v {
			m[e.Key] = normalize(e.Value)
		}
		return m
	case primitive.M:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[k] = normalize(e)
		}
		return m
	case []any:
		a := make([]any, len(v))
		for i, e := range v {
			a[i] = normalize(e)
		}
		return a
	case primitive.A:
		a := make([]any, len(v))
		for i, e := range v {
			a[i] = normalize(e)
		}
		return a
	case map[any]any:
		m := make(map[string]any, len(v))
		for k, e := range v {
			m[fmt.Sprint(k)] = normalize(e)
		}
		return m
	default:
		return v
	}
}

func uintToValue(v uint64) any {
	if v > math.MaxInt64 {
		return float64(v)
	}
	return int64(v)
}
