package iris

import (
	"testing"
)

func TestResolveReferences(t *testing.T) {
	req := must(ParseRequest([]byte(`{
		"insert": [
			{"$ref": "alice", "data": {"name": "Alice"}},
			{"$ref": "bob", "data": {"name": "Bob"}, "edges": [{"to": {"$use": "alice"}}]}
		]
	}`)))
	table := must(ResolveReferences(req, RefLastWins))
	deepEqual(t, len(table), 2)
	deepEqual(t, table["alice"]["data"], any(map[string]any{"name": "Alice"}))
	deepEqual(t, table["bob"]["$ref"], any("bob"))

	_, ok := table.ID("alice")
	deepEqual(t, ok, false)
	table.SetID("alice", 5)
	id, ok := table.ID("alice")
	deepEqual(t, id, ID(5))
	deepEqual(t, ok, true)
	deepEqual(t, len(table), 2)
}

func TestResolveReferences_nested(t *testing.T) {
	req := must(ParseRequest([]byte(`{"insert": [{"data": {"deep": [{"x": {"$ref": "inner"}}]}}]}`)))
	table := must(ResolveReferences(req, RefLastWins))
	deepEqual(t, len(table), 1)
	deepEqual(t, table["inner"]["$ref"], any("inner"))
}

func TestResolveReferences_entriesAreCopies(t *testing.T) {
	req := must(ParseRequest([]byte(`{"insert": [{"$ref": "a", "data": 1}]}`)))
	table := must(ResolveReferences(req, RefLastWins))
	table.SetID("a", 1)
	arg := req.Statements[0].Value.([]any)[0].(map[string]any)
	if _, ok := arg["id"]; ok {
		t.Errorf("** recording an id changed the request")
	}
}

func TestResolveReferences_duplicates(t *testing.T) {
	body := []byte(`{"insert": [{"$ref": "x", "data": "first"}, {"$ref": "x", "data": "second"}]}`)
	tests := []struct {
		policy RefPolicy
		data   any
		err    error
	}{
		{RefLastWins, "second", nil},
		{RefFirstWins, "first", nil},
		{RefRejectDuplicates, nil, ErrDuplicateReference},
	}
	for _, tt := range tests {
		t.Run(tt.policy.String(), func(t *testing.T) {
			table, err := ResolveReferences(must(ParseRequest(body)), tt.policy)
			if tt.err != nil {
				isErr(t, err, tt.err)
				return
			}
			ensure(err)
			deepEqual(t, table["x"]["data"], tt.data)
		})
	}
}

func TestResolveReferences_cycle(t *testing.T) {
	obj := map[string]any{"$ref": "loop"}
	obj["self"] = []any{obj}
	req := &Request{Statements: []Statement{{Key: "insert", Value: []any{obj}}}}
	_, err := ResolveReferences(req, RefLastWins)
	isErr(t, err, ErrCyclicReference)
}

func TestResolveReferences_sharedIsNotCycle(t *testing.T) {
	shared := map[string]any{"$ref": "s"}
	req := &Request{Statements: []Statement{{Key: "insert", Value: []any{
		map[string]any{"a": shared, "b": shared},
	}}}}
	table := must(ResolveReferences(req, RefLastWins))
	deepEqual(t, len(table), 1)
}

func TestParseRefPolicy(t *testing.T) {
	for _, p := range []RefPolicy{RefLastWins, RefFirstWins, RefRejectDuplicates} {
		deepEqual(t, must(ParseRefPolicy(p.String())), p)
	}
	deepEqual(t, must(ParseRefPolicy("")), RefLastWins)
	if _, err := ParseRefPolicy("random"); err == nil {
		t.Errorf("** ParseRefPolicy(random) succeeded")
	}
}
