package iris

import (
	"encoding/json"
	"fmt"
)

// Node is a single record of a graph. Nodes are immutable once stored;
// replacing a payload means deleting the node and inserting a new one.
type Node struct {
	ID    ID
	Data  any
	Edges []Edge
}

type Edge struct {
	Name      string
	To        ID
	Direction Direction
}

type Direction int

const (
	Outbound Direction = iota
	Inbound
	Bidirectional
)

func (d Direction) String() string {
	switch d {
	case Outbound:
		return "out"
	case Inbound:
		return "in"
	case Bidirectional:
		return "both"
	default:
		return fmt.Sprintf("invalid direction %d", int(d))
	}
}

func ParseDirection(s string) (Direction, error) {
	switch s {
	case "", "out":
		return Outbound, nil
	case "in":
		return Inbound, nil
	case "both":
		return Bidirectional, nil
	default:
		return 0, fmt.Errorf("invalid edge direction %q", s)
	}
}

func (d Direction) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Direction) UnmarshalText(b []byte) error {
	v, err := ParseDirection(string(b))
	if err != nil {
		return err
	}
	*d = v
	return nil
}

// Object returns the node the way responses show it.
func (n *Node) Object() map[string]any {
	edges := make([]any, 0, len(n.Edges))
	for _, e := range n.Edges {
		edges = append(edges, e.object())
	}
	return map[string]any{
		"id":    int64(n.ID),
		"data":  n.Data,
		"edges": edges,
	}
}

func (e Edge) object() map[string]any {
	return map[string]any{
		"name": e.Name,
		"to":   int64(e.To),
		"dir":  e.Direction.String(),
	}
}

func (n *Node) String() string {
	return fmt.Sprintf("node %d %s", n.ID, loggableVal(n.Data))
}

func loggableVal(v any) string {
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("<%T: %v>", v, err)
	}
	return string(b)
}
