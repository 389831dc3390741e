package iris

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"go.mongodb.org/mongo-driver/bson"
	mgobson "gopkg.in/mgo.v2/bson"
)

// Request is a parsed request body: directive statements in the order they
// appear, plus the optional target graph.
type Request struct {
	Graph      string
	Statements []Statement
}

// Statement is one top-level key of a request and its raw value, which
// should be an array of argument objects.
type Statement struct {
	Key   string
	Value any
}

var ErrInvalidRequest = errors.New("invalid request")

// ParseRequest parses a strict JSON request body, keeping the order of
// top-level keys. Numbers are normalized to int64 when integral and float64
// otherwise.
func ParseRequest(data []byte) (*Request, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("%w: body must be a JSON object", ErrInvalidRequest)
	}

	req := &Request{}
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
		}
		key := tok.(string)
		var v any
		if err := dec.Decode(&v); err != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidRequest, key, err)
		}
		if err := req.add(key, normalize(v)); err != nil {
			return nil, err
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after request object", ErrInvalidRequest)
	}
	return req, nil
}

func (req *Request) add(key string, v any) error {
	if key == graphKey {
		name, ok := v.(string)
		if !ok {
			return fmt.Errorf("%w: %q must be a string", ErrInvalidRequest, graphKey)
		}
		req.Graph = name
		return nil
	}
	req.Statements = append(req.Statements, Statement{Key: key, Value: v})
	return nil
}

// ParseRelaxedRequest accepts JSON with unquoted keys, such as
// { insert: [{ data: {} }] }. Key order is lost in the process, so known
// directives come first in registration order and unknown keys follow
// sorted.
func ParseRelaxedRequest(data []byte, reg *Registry) (*Request, error) {
	var raw any
	if err := mgobson.UnmarshalJSON(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	if _, ok := raw.(map[string]any); !ok {
		if _, ok := raw.(mgobson.M); !ok {
			return nil, fmt.Errorf("%w: body must be an object", ErrInvalidRequest)
		}
	}
	canonical, err := bson.MarshalExtJSON(raw, false, false)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, err)
	}
	req, err := ParseRequest(canonical)
	if err != nil {
		return nil, err
	}

	rank := make(map[string]int)
	for i, k := range reg.Keys() {
		rank[k] = i
	}
	slices.SortStableFunc(req.Statements, func(a, b Statement) int {
		ra, aok := rank[a.Key]
		rb, bok := rank[b.Key]
		switch {
		case aok && bok:
			return ra - rb
		case aok:
			return -1
		case bok:
			return 1
		default:
			return strings.Compare(a.Key, b.Key)
		}
	})
	return req, nil
}
