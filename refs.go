package iris

import (
	"fmt"
	"reflect"
	"slices"
)

// RefTable maps reference names declared with "$ref" to the objects that
// declared them. Directives record produced values, such as the id of an
// inserted node, into the entries so that later statements can "$use" them.
type RefTable map[string]map[string]any

// RefPolicy decides what happens when a reference name is declared twice.
type RefPolicy int

const (
	RefLastWins RefPolicy = iota
	RefFirstWins
	RefRejectDuplicates
)

func (p RefPolicy) String() string {
	switch p {
	case RefLastWins:
		return "last"
	case RefFirstWins:
		return "first"
	case RefRejectDuplicates:
		return "reject"
	default:
		return fmt.Sprintf("invalid policy %d", int(p))
	}
}

func ParseRefPolicy(s string) (RefPolicy, error) {
	switch s {
	case "", "last":
		return RefLastWins, nil
	case "first":
		return RefFirstWins, nil
	case "reject":
		return RefRejectDuplicates, nil
	default:
		return 0, fmt.Errorf("invalid reference policy %q", s)
	}
}

// ID returns the id recorded for the named reference.
func (t RefTable) ID(name string) (ID, bool) {
	v, ok := t[name][idKey]
	if !ok {
		return 0, false
	}
	switch v := v.(type) {
	case int64:
		if v < 0 {
			return 0, false
		}
		return ID(v), true
	case ID:
		return v, true
	default:
		return 0, false
	}
}

func (t RefTable) SetID(name string, id ID) {
	entry := t[name]
	if entry == nil {
		entry = make(map[string]any)
		t[name] = entry
	}
	entry[idKey] = int64(id)
}

// ResolveReferences walks the request depth-first and collects every object
// that declares a "$ref" name. Statements are visited in request order and
// nested object keys in sorted order, so "last" and "first" are well defined.
func ResolveReferences(req *Request, policy RefPolicy) (RefTable, error) {
	r := refResolver{
		table:  make(RefTable),
		policy: policy,
		onPath: make(map[uintptr]bool),
	}
	for _, stmt := range req.Statements {
		if err := r.walk(stmt.Value); err != nil {
			return nil, err
		}
	}
	return r.table, nil
}

type refResolver struct {
	table  RefTable
	policy RefPolicy
	onPath map[uintptr]bool
}

func (r *refResolver) walk(v any) error {
	switch v := v.(type) {
	case map[string]any:
		ptr := reflect.ValueOf(v).Pointer()
		if r.onPath[ptr] {
			return ErrCyclicReference
		}
		r.onPath[ptr] = true
		defer delete(r.onPath, ptr)

		if name, ok := v[refKey].(string); ok && name != "" {
			if err := r.declare(name, v); err != nil {
				return err
			}
		}
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			if err := r.walk(v[k]); err != nil {
				return err
			}
		}
	case []any:
		if len(v) == 0 {
			return nil
		}
		ptr := reflect.ValueOf(v).Pointer()
		if r.onPath[ptr] {
			return ErrCyclicReference
		}
		r.onPath[ptr] = true
		defer delete(r.onPath, ptr)

		for _, e := range v {
			if err := r.walk(e); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *refResolver) declare(name string, obj map[string]any) error {
	if _, dup := r.table[name]; dup {
		switch r.policy {
		case RefFirstWins:
			return nil
		case RefRejectDuplicates:
			return fmt.Errorf("%w: %q", ErrDuplicateReference, name)
		}
	}
	entry := make(map[string]any, len(obj))
	for k, e := range obj {
		entry[k] = e
	}
	r.table[name] = entry
	return nil
}
