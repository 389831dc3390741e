package iris

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"reflect"
	"runtime/debug"
	"slices"
)

// Directive executes one statement of a request against a graph.
type Directive interface {
	Key() string
	Exec(c *Context) (map[string]any, error)
}

// Context carries everything a directive needs to execute one argument
// object of a request.
type Context struct {
	context.Context
	Graph     *Graph
	Arg       map[string]any
	Refs      RefTable
	RefPolicy RefPolicy
	Logger    *slog.Logger
	RequestID string

	// names that a statement of this request has already set an id for
	produced map[string]bool
}

// Registry maps directive keys to directives. Keys are matched exactly.
type Registry struct {
	directives map[string]Directive
	order      []string
}

func NewRegistry() *Registry {
	return &Registry{directives: make(map[string]Directive)}
}

// DefaultRegistry returns a registry with the built-in directives.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(insertDirective{})
	r.Register(deleteDirective{})
	r.Register(getDirective{})
	r.Register(updateDirective{})
	return r
}

// Register adds d to the registry. It panics if the key is already taken.
func (r *Registry) Register(d Directive) {
	key := d.Key()
	if key == graphKey {
		panic(fmt.Sprintf("directive key %q is reserved", key))
	}
	if _, exists := r.directives[key]; exists {
		panic(fmt.Sprintf("directive %q is already registered", key))
	}
	r.directives[key] = d
	r.order = append(r.order, key)
	slog.Debug("Registered directive", "key", key)
}

func (r *Registry) Lookup(key string) Directive {
	return r.directives[key]
}

// Keys returns directive keys in registration order.
func (r *Registry) Keys() []string {
	return slices.Clone(r.order)
}

type panicked struct {
	reason any
	stack  string
}

func (p panicked) Error() string {
	return fmt.Sprintf("panic: %v\n\n%s", p.reason, p.stack)
}

func safelyExec(d Directive, c *Context) (res map[string]any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &DirectiveError{Kind: InternalFailure, Err: panicked{p, string(debug.Stack())}}
		}
	}()
	return d.Exec(c)
}

func (c *Context) Has(key string) bool {
	_, ok := c.Arg[key]
	return ok
}

// Require returns the value of a mandatory argument key.
func (c *Context) Require(key string) (any, error) {
	v, ok := c.Arg[key]
	if !ok {
		return nil, missingKey(key)
	}
	return v, nil
}

// ID resolves an id argument. The value is either a non-negative integer or
// a {"$use": "<ref>"} object naming a reference recorded earlier in the
// request.
func (c *Context) ID(key string) (ID, error) {
	v, err := c.Require(key)
	if err != nil {
		return 0, err
	}
	return c.resolveID(key, v)
}

func (c *Context) resolveID(key string, v any) (ID, error) {
	switch v := v.(type) {
	case int64:
		if v < 0 {
			return 0, invalidValue(key, "negative id %d", v)
		}
		return ID(v), nil
	case float64:
		n, ok := asInt(v)
		if !ok || n < 0 {
			return 0, invalidValue(key, "%v is not a valid id", v)
		}
		return ID(n), nil
	case map[string]any:
		name, ok := v[useKey].(string)
		if !ok {
			return 0, invalidValue(key, "expected an id or a %s object", useKey)
		}
		id, ok := c.Refs.ID(name)
		if !ok {
			return 0, &DirectiveError{Kind: UnresolvedRef, Key: name}
		}
		return id, nil
	default:
		return 0, invalidValue(key, "expected an id, got %T", v)
	}
}

// Limit returns the optional "limit" argument; zero means unlimited.
func (c *Context) Limit() (int, error) {
	v, ok := c.Arg[limitKey]
	if !ok || v == nil {
		return 0, nil
	}
	n, ok := asInt(v)
	if !ok || n < 0 {
		return 0, invalidValue(limitKey, "expected a non-negative integer")
	}
	return int(n), nil
}

// Where builds a predicate from the optional "where" argument. A node
// matches when its data is an object whose top-level fields equal every
// field of the filter. A missing filter matches everything.
func (c *Context) Where() (func(*Node) bool, error) {
	v, ok := c.Arg[whereKey]
	if !ok || v == nil {
		return func(*Node) bool { return true }, nil
	}
	filter, ok := v.(map[string]any)
	if !ok {
		return nil, invalidValue(whereKey, "expected an object")
	}
	return func(n *Node) bool {
		data, ok := n.Data.(map[string]any)
		if !ok {
			return len(filter) == 0
		}
		for k, want := range filter {
			got, ok := data[k]
			if !ok || !valuesEqual(got, want) {
				return false
			}
		}
		return true
	}, nil
}

// Edges parses the optional "edges" argument.
func (c *Context) Edges() ([]Edge, error) {
	v, ok := c.Arg[edgesKey]
	if !ok || v == nil {
		return nil, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, invalidValue(edgesKey, "expected an array")
	}
	edges := make([]Edge, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]any)
		if !ok {
			return nil, invalidValue(edgesKey, "edge %d is not an object", i)
		}
		var e Edge
		if name, ok := m[edgeName]; ok {
			if e.Name, ok = name.(string); !ok {
				return nil, invalidValue(edgesKey, "edge %d: name must be a string", i)
			}
		}
		to, ok := m[edgeTo]
		if !ok {
			return nil, missingKey(edgesKey + "." + edgeTo)
		}
		id, err := c.resolveID(edgesKey+"."+edgeTo, to)
		if err != nil {
			return nil, err
		}
		e.To = id
		if dir, ok := m[edgeDir]; ok {
			s, _ := dir.(string)
			if e.Direction, err = ParseDirection(s); err != nil {
				return nil, invalidValue(edgesKey, "edge %d: %v", i, err)
			}
		}
		edges = append(edges, e)
	}
	return edges, nil
}

// RefName returns the "$ref" name declared by the argument, if any.
func (c *Context) RefName() (string, error) {
	v, ok := c.Arg[refKey]
	if !ok {
		return "", nil
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", invalidValue(refKey, "expected a non-empty string")
	}
	return s, nil
}

// SetRef records id as the value of the named reference. Under RefFirstWins
// the first statement of the request to produce an id for a name keeps it.
func (c *Context) SetRef(name string, id ID) {
	if c.RefPolicy == RefFirstWins && c.produced[name] {
		return
	}
	if c.produced != nil {
		c.produced[name] = true
	}
	c.Refs.SetID(name, id)
}

func valuesEqual(a, b any) bool {
	if fa, ok := asFloat(a); ok {
		if fb, ok := asFloat(b); ok {
			return fa == fb
		}
	}
	return reflect.DeepEqual(a, b)
}

func asFloat(v any) (float64, bool) {
	switch v := v.(type) {
	case int64:
		return float64(v), true
	case float64:
		return v, true
	default:
		return 0, false
	}
}

// asInt accepts integral floats as well, which relaxed requests produce.
func asInt(v any) (int64, bool) {
	switch v := v.(type) {
	case int64:
		return v, true
	case float64:
		if v != math.Trunc(v) || v < math.MinInt64 || v >= math.MaxInt64 {
			return 0, false
		}
		return int64(v), true
	default:
		return 0, false
	}
}
