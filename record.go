package iris

import (
	"fmt"
)

const (
	recID      = "_id"
	recDeleted = "_del"
	recData    = "data"
	recEdges   = "edges"
	edgeName   = "name"
	edgeTo     = "to"
	edgeDir    = "dir"
)

// record is the persisted form of either a node or a deletion marker.
type record struct {
	ID      ID
	Deleted bool
	Node    *Node
}

func nodeDoc(n *Node) map[string]any {
	edges := make([]any, 0, len(n.Edges))
	for _, e := range n.Edges {
		edges = append(edges, map[string]any{
			edgeName: e.Name,
			edgeTo:   int64(e.To),
			edgeDir:  e.Direction.String(),
		})
	}
	return map[string]any{
		recID:    int64(n.ID),
		recData:  n.Data,
		recEdges: edges,
	}
}

func tombstoneDoc(id ID) map[string]any {
	return map[string]any{
		recID:      int64(id),
		recDeleted: true,
	}
}

func decodeRecordDoc(doc map[string]any) (record, error) {
	var r record
	rawID, ok := doc[recID].(int64)
	if !ok || rawID < 0 {
		return r, fmt.Errorf("record has no valid %s: %v", recID, doc[recID])
	}
	r.ID = ID(rawID)
	if del, _ := doc[recDeleted].(bool); del {
		r.Deleted = true
		return r, nil
	}

	n := &Node{ID: r.ID, Data: doc[recData]}
	if raw, ok := doc[recEdges]; ok && raw != nil {
		list, ok := raw.([]any)
		if !ok {
			return r, fmt.Errorf("node %d: %s is %T, not a list", r.ID, recEdges, raw)
		}
		for i, item := range list {
			e, err := decodeEdgeDoc(item)
			if err != nil {
				return r, fmt.Errorf("node %d: edge %d: %w", r.ID, i, err)
			}
			n.Edges = append(n.Edges, e)
		}
	}
	r.Node = n
	return r, nil
}

func decodeEdgeDoc(item any) (Edge, error) {
	var e Edge
	m, ok := item.(map[string]any)
	if !ok {
		return e, fmt.Errorf("%T is not an object", item)
	}
	e.Name, _ = m[edgeName].(string)
	to, ok := m[edgeTo].(int64)
	if !ok || to < 0 {
		return e, fmt.Errorf("invalid target %v", m[edgeTo])
	}
	e.To = ID(to)
	dir, _ := m[edgeDir].(string)
	d, err := ParseDirection(dir)
	if err != nil {
		return e, err
	}
	e.Direction = d
	return e, nil
}
