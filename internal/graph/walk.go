// Package graph builds, traverses and duplicates workflow node trees.
package graph

import (
	"fmt"

	"github.com/rendis/certflow/pkg/schema"
)

// Visitor is called for every node in pre-order. parent is nil for top-level
// nodes and path locates the node, e.g. "nodes[2].blocks[0]".
// Returning false skips the node's children.
type Visitor func(n *schema.Node, parent *schema.Node, path string) bool

// Walk visits nodes in pre-order: top-level order, then each node's blocks in order.
func Walk(nodes []*schema.Node, fn Visitor) {
	walk(nodes, nil, "nodes", fn)
}

func walk(nodes []*schema.Node, parent *schema.Node, prefix string, fn Visitor) {
	for i, n := range nodes {
		if n == nil {
			continue
		}
		path := fmt.Sprintf("%s[%d]", prefix, i)
		if !fn(n, parent, path) {
			continue
		}
		walk(n.Blocks, n, path+".blocks", fn)
	}
}

// Find returns the first node with the given id in pre-order, or nil.
func Find(nodes []*schema.Node, id string) *schema.Node {
	var found *schema.Node
	Walk(nodes, func(n, _ *schema.Node, _ string) bool {
		if found != nil {
			return false
		}
		if n.ID == id {
			found = n
			return false
		}
		return true
	})
	return found
}

// IDs lists every node id in pre-order, duplicates included.
func IDs(nodes []*schema.Node) []string {
	var ids []string
	Walk(nodes, func(n, _ *schema.Node, _ string) bool {
		ids = append(ids, n.ID)
		return true
	})
	return ids
}

// Clone deep-copies a node sequence, keeping ids.
func Clone(nodes []*schema.Node) []*schema.Node {
	if nodes == nil {
		return nil
	}
	out := make([]*schema.Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		c := &schema.Node{ID: n.ID, Type: n.Type, Data: cloneData(n.Data)}
		c.Blocks = Clone(n.Blocks)
		out = append(out, c)
	}
	return out
}

func cloneData(d schema.NodeData) schema.NodeData {
	out := schema.NodeData{
		Name:     d.Name,
		Disabled: d.Disabled,
		Config:   schema.CloneValue(d.Config),
		Meta:     schema.CloneValue(d.Meta),
	}
	if d.Extra != nil {
		out.Extra = schema.CloneValue(d.Extra).(map[string]any)
	}
	return out
}
