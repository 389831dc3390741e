package iris

import (
	"fmt"
)

type (
	// Change describes a mutation that has been persisted. Node is the
	// inserted node for OpInsert and the removed node for OpDelete.
	Change struct {
		graph string
		op    Op
		node  *Node
	}

	Op int
)

const (
	OpNone   Op = 0
	OpInsert Op = 1
	OpDelete Op = 2
)

func (chg Change) Graph() string {
	return chg.graph
}
func (chg Change) Op() Op {
	return chg.op
}
func (chg Change) ID() ID {
	return chg.node.ID
}
func (chg Change) Node() *Node {
	return chg.node
}

func (chg Change) String() string {
	return fmt.Sprintf("%s %s/%d", chg.op, chg.graph, chg.node.ID)
}

func (v Op) String() string {
	switch v {
	case OpNone:
		return "none"
	case OpInsert:
		return "insert"
	case OpDelete:
		return "delete"
	default:
		return fmt.Sprintf("invalid op %d", int(v))
	}
}
