package graph

import "github.com/rendis/certflow/pkg/schema"

// CopySuffix is appended to the names of top-level duplicated nodes.
const CopySuffix = "-copy"

// DuplicateOptions controls Duplicate.
type DuplicateOptions struct {
	// WithCopySuffix appends CopySuffix to each top-level node's name.
	WithCopySuffix bool
	// NewID overrides the id source. Defaults to NewNodeID.
	NewID IDGenerator
}

// Duplicate deep-copies nodes with fresh ids. A single old-to-new id table is
// shared across the whole call, so references between duplicated nodes
// (deploy certificate sources, branch expression selectors) follow the copies.
// References to nodes outside the duplicated set are left untouched.
// The input is never modified.
func Duplicate(nodes []*schema.Node, opts DuplicateOptions) []*schema.Node {
	d := &duplicator{
		remap: make(map[string]string),
		newID: opts.NewID,
	}
	if d.newID == nil {
		d.newID = NewNodeID
	}

	out := make([]*schema.Node, 0, len(nodes))
	for _, n := range nodes {
		if n == nil {
			continue
		}
		out = append(out, d.duplicate(n, opts.WithCopySuffix))
	}
	return out
}

type duplicator struct {
	remap map[string]string
	newID IDGenerator
}

func (d *duplicator) duplicate(n *schema.Node, withSuffix bool) *schema.Node {
	id := d.newID()
	d.remap[n.ID] = id

	c := &schema.Node{ID: id, Type: n.Type, Data: cloneData(n.Data)}
	if withSuffix {
		c.Data.Name += CopySuffix
	}

	// Children first, so their remappings exist before this node's references are fixed.
	if n.Blocks != nil {
		c.Blocks = make([]*schema.Node, 0, len(n.Blocks))
		for _, child := range n.Blocks {
			if child == nil {
				continue
			}
			c.Blocks = append(c.Blocks, d.duplicate(child, false))
		}
	}

	d.rewriteReferences(c)
	return c
}

// rewriteReferences fixes c's cross-node references in place. c owns its config.
func (d *duplicator) rewriteReferences(c *schema.Node) {
	switch c.Type {
	case schema.NodeTypeBizDeploy:
		cfg := c.ConfigMap()
		if ref, ok := cfg[schema.ConfigKeyCertificateOutputNodeID].(string); ok {
			if id, found := d.remap[ref]; found {
				cfg[schema.ConfigKeyCertificateOutputNodeID] = id
			}
		}

	case schema.NodeTypeBranchBlock:
		schema.WalkExpr(c.Expression(), func(e schema.Expr) bool {
			if v, ok := e.(*schema.VariableExpr); ok {
				if id, found := d.remap[v.Selector.ID]; found {
					v.Selector.ID = id
				}
			}
			return true
		})
	}
}
