package iris

import (
	"time"
)

const (
	graphKey = "graph"
	dataKey  = "data"
	idKey    = "id"
	edgesKey = "edges"
	whereKey = "where"
	limitKey = "limit"
	refKey   = "$ref"
	useKey   = "$use"
)

type insertDirective struct{}

func (insertDirective) Key() string { return "insert" }

func (insertDirective) Exec(c *Context) (map[string]any, error) {
	start := time.Now()
	data, err := c.Require(dataKey)
	if err != nil {
		return nil, err
	}
	edges, err := c.Edges()
	if err != nil {
		return nil, err
	}
	ref, err := c.RefName()
	if err != nil {
		return nil, err
	}
	id, err := c.Graph.Insert(data, edges)
	if err != nil {
		return nil, storageFailure(err)
	}
	if ref != "" {
		c.SetRef(ref, id)
	}
	return map[string]any{
		"id":    int64(id),
		"count": 1,
		"time":  time.Since(start).Microseconds(),
	}, nil
}

type deleteDirective struct{}

func (deleteDirective) Key() string { return "delete" }

func (deleteDirective) Exec(c *Context) (map[string]any, error) {
	var out DeleteOutcome
	switch {
	case c.Has(idKey):
		id, err := c.ID(idKey)
		if err != nil {
			return nil, err
		}
		out, err = c.Graph.DeleteByID(id)
		if err != nil {
			return nil, storageFailure(err)
		}
	case c.Has(whereKey):
		pred, err := c.Where()
		if err != nil {
			return nil, err
		}
		limit, err := c.Limit()
		if err != nil {
			return nil, err
		}
		out, err = c.Graph.DeleteWhere(pred, limit)
		if err != nil {
			return nil, storageFailure(err)
		}
	default:
		return nil, missingKey(idKey)
	}
	return map[string]any{
		"count": out.Count,
		"time":  out.Elapsed.Microseconds(),
	}, nil
}

type getDirective struct{}

func (getDirective) Key() string { return "get" }

func (getDirective) Exec(c *Context) (map[string]any, error) {
	nodes := []any{}
	if c.Has(idKey) {
		id, err := c.ID(idKey)
		if err != nil {
			return nil, err
		}
		if n := c.Graph.Get(id); n != nil {
			nodes = append(nodes, n.Object())
		}
	} else {
		pred, err := c.Where()
		if err != nil {
			return nil, err
		}
		limit, err := c.Limit()
		if err != nil {
			return nil, err
		}
		for n := range c.Graph.GetWhere(pred, limit) {
			nodes = append(nodes, n.Object())
		}
	}
	return map[string]any{
		"nodes": nodes,
		"count": len(nodes),
	}, nil
}

// updateDirective replaces a node by deleting it and inserting the new data.
// The replacement gets a fresh id, which is usually the one just released.
// A replacement that cannot be stored leaves the old node untouched.
type updateDirective struct{}

func (updateDirective) Key() string { return "update" }

func (updateDirective) Exec(c *Context) (map[string]any, error) {
	start := time.Now()
	id, err := c.ID(idKey)
	if err != nil {
		return nil, err
	}
	data, err := c.Require(dataKey)
	if err != nil {
		return nil, err
	}
	ref, err := c.RefName()
	if err != nil {
		return nil, err
	}
	old := c.Graph.Get(id)
	if old == nil {
		return nil, invalidValue(idKey, "node %d does not exist", id)
	}
	edges := old.Edges
	if c.Has(edgesKey) {
		if edges, err = c.Edges(); err != nil {
			return nil, err
		}
	}

	newID, found, err := c.Graph.Replace(id, data, edges)
	if err != nil {
		return nil, storageFailure(err)
	}
	if !found {
		return nil, invalidValue(idKey, "node %d does not exist", id)
	}
	if ref != "" {
		c.SetRef(ref, newID)
	}
	return map[string]any{
		"id":       int64(newID),
		"previous": int64(id),
		"count":    1,
		"time":     time.Since(start).Microseconds(),
	}, nil
}
