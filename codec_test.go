package iris

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func sampleDoc() map[string]any {
	return map[string]any{
		recID: int64(7),
		recData: map[string]any{
			"name":  "Alice",
			"age":   int64(31),
			"score": 4.5,
			"tags":  []any{"a", int64(2), nil, true},
			"inner": map[string]any{"z": int64(1), "a": "x"},
		},
		recEdges: []any{
			map[string]any{edgeName: "knows", edgeTo: int64(3), edgeDir: "out"},
		},
	}
}

func TestCodecs_roundTrip(t *testing.T) {
	for _, name := range []string{CodecBSON, CodecMsgPack} {
		t.Run(name, func(t *testing.T) {
			codec := must(codecByName(name))
			doc := sampleDoc()
			enc := must(codec.Encode([]byte("prefix"), doc))
			if !bytes.HasPrefix(enc, []byte("prefix")) {
				t.Fatalf("** Encode did not append to buf")
			}
			body := enc[len("prefix"):]
			trailing := append(append([]byte(nil), body...), 0xAA, 0xBB)

			dec, n, err := codec.Decode(trailing)
			ensure(err)
			deepEqual(t, n, len(body))
			if diff := cmp.Diff(doc, dec); diff != "" {
				t.Errorf("** decoded document mismatch (-wanted +got):\n%s", diff)
			}
		})
	}
}

func TestCodecs_deterministic(t *testing.T) {
	for _, name := range []string{CodecBSON, CodecMsgPack} {
		codec := must(codecByName(name))
		a := must(codec.Encode(nil, sampleDoc()))
		for range 10 {
			b := must(codec.Encode(nil, sampleDoc()))
			if !bytes.Equal(a, b) {
				t.Fatalf("** %s: encoding is not deterministic", name)
			}
		}
	}
}

func TestCodecs_truncated(t *testing.T) {
	for _, name := range []string{CodecBSON, CodecMsgPack} {
		codec := must(codecByName(name))
		enc := must(codec.Encode(nil, sampleDoc()))
		_, _, err := codec.Decode(enc[:len(enc)-4])
		isErr(t, err, ErrCorruptedRecord)
	}
}

func TestCodecByName_unknown(t *testing.T) {
	if _, err := codecByName("xml"); err == nil {
		t.Fatalf("** codecByName(xml) succeeded")
	}
	deepEqual(t, must(codecByName("")).Name(), CodecBSON)
}

func TestNormalize(t *testing.T) {
	var v any
	dec := json.NewDecoder(strings.NewReader(`{"a": 1, "b": 1.5, "c": [2, "x"], "d": null}`))
	dec.UseNumber()
	ensure(dec.Decode(&v))

	got := normalize(v)
	want := map[string]any{"a": int64(1), "b": 1.5, "c": []any{int64(2), "x"}, "d": nil}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("** normalize mismatch (-wanted +got):\n%s", diff)
	}
	deepEqual(t, normalize(uint8(3)), any(int64(3)))
	deepEqual(t, normalize(ID(9)), any(int64(9)))
	deepEqual(t, normalize(float32(0.5)), any(float64(0.5)))
}

func TestCompressors(t *testing.T) {
	src := bytes.Repeat([]byte("iris graph page record "), 50)
	for _, name := range []string{CompressionSnappy, CompressionZlib} {
		t.Run(name, func(t *testing.T) {
			c := must(compressorByName(name))
			deepEqual(t, c.Name(), name)
			z := must(c.Compress(nil, src))
			if len(z) >= len(src) {
				t.Errorf("** compressed %d bytes into %d", len(src), len(z))
			}
			deepEqual(t, must(c.Decompress(z)), src)
			if _, err := c.Decompress([]byte{0xFF, 0xFF, 0xFF}); err == nil {
				t.Errorf("** decompressing garbage succeeded")
			}
		})
	}
	none := must(compressorByName(CompressionNone))
	if none != nil {
		t.Errorf("** got %v, wanted no compressor", none)
	}
	deepEqual(t, compressorName(none), CompressionNone)
}

func TestFrames(t *testing.T) {
	b := appendFrame(nil, []byte("hello"))
	b = appendFrame(b, nil)
	body, n, err := readFrame(b)
	ensure(err)
	deepEqual(t, string(body), "hello")
	deepEqual(t, n, 6)
	body, m, err := readFrame(b[n:])
	ensure(err)
	deepEqual(t, len(body), 0)
	deepEqual(t, m, 1)

	_, _, err = readFrame([]byte{10, 'a'})
	isErr(t, err, ErrCorruptedRecord)
}
