package validation

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/rendis/certflow/internal/graph"
	"github.com/rendis/certflow/pkg/schema"
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,32}$`)

// ValidID reports whether id is a well-formed node id: 1-32 characters of
// [A-Za-z0-9_-], not starting with '_' or '-'.
func ValidID(id string) bool {
	return idPattern.MatchString(id) && !strings.HasPrefix(id, "_") && !strings.HasPrefix(id, "-")
}

// Validate checks the structural rules over the whole tree and returns every
// issue in pre-order. An empty result means the tree is valid.
func Validate(nodes []*schema.Node) []schema.Issue {
	c := &ruleChecker{seen: make(map[string]int)}

	first, last := edgeNodes(nodes)
	if first == nil || first.Type != schema.NodeTypeStart {
		c.add(schema.RuleFirstNodeMustBeStart, first, "nodes[0]")
	}
	if last == nil || last.Type != schema.NodeTypeEnd {
		c.add(schema.RuleLastNodeMustBeEnd, last, lastPath(nodes))
	}

	graph.Walk(nodes, c.visit)
	return c.issues
}

type ruleChecker struct {
	issues []schema.Issue
	seen   map[string]int
	starts int
}

func (c *ruleChecker) add(rule string, n *schema.Node, path string) {
	id := ""
	if n != nil {
		id = n.ID
	}
	c.issues = append(c.issues, schema.NewIssue(rule, id, path))
}

func (c *ruleChecker) visit(n, _ *schema.Node, path string) bool {
	if !ValidID(n.ID) {
		c.add(schema.RuleInvalidID, n, path)
	}

	if n.Data.Config != nil {
		if _, ok := n.Data.Config.(map[string]any); !ok {
			c.add(schema.RuleInvalidConfig, n, path)
		}
	}

	// Only the second sighting of an id is reported.
	c.seen[n.ID]++
	if c.seen[n.ID] == 2 {
		c.add(schema.RuleConflictID, n, path)
	}

	if n.Type == schema.NodeTypeStart {
		c.starts++
		if c.starts == 2 {
			c.add(schema.RuleDuplicateStart, n, path)
		}
	}

	switch n.Type {
	case schema.NodeTypeCondition:
		if len(n.Blocks) == 0 || !allOfType(n.Blocks, schema.NodeTypeBranchBlock) {
			c.add(schema.RuleAbnormalConditionBlock, n, path)
		}
	case schema.NodeTypeBranchBlock:
		if n.Blocks == nil || anyOfType(n.Blocks, schema.NodeTypeBranchBlock) {
			c.add(schema.RuleAbnormalConditionBlock, n, path)
		}
	case schema.NodeTypeTryCatch:
		if len(n.Blocks) < 2 ||
			n.Blocks[0] == nil || n.Blocks[0].Type != schema.NodeTypeTryBlock ||
			!anyOfType(n.Blocks, schema.NodeTypeCatchBlock) {
			c.add(schema.RuleAbnormalTryCatchBlock, n, path)
		}
	case schema.NodeTypeTryBlock, schema.NodeTypeCatchBlock:
		if n.Blocks == nil || anyOfType(n.Blocks, schema.NodeTypeTryBlock, schema.NodeTypeCatchBlock) {
			c.add(schema.RuleAbnormalTryCatchBlock, n, path)
		}
	}
	return true
}

func allOfType(nodes []*schema.Node, t schema.NodeType) bool {
	for _, n := range nodes {
		if n == nil || n.Type != t {
			return false
		}
	}
	return true
}

func anyOfType(nodes []*schema.Node, types ...schema.NodeType) bool {
	for _, n := range nodes {
		if n == nil {
			continue
		}
		for _, t := range types {
			if n.Type == t {
				return true
			}
		}
	}
	return false
}

func edgeNodes(nodes []*schema.Node) (first, last *schema.Node) {
	if len(nodes) == 0 {
		return nil, nil
	}
	return nodes[0], nodes[len(nodes)-1]
}

func lastPath(nodes []*schema.Node) string {
	if len(nodes) == 0 {
		return "nodes[0]"
	}
	return fmt.Sprintf("nodes[%d]", len(nodes)-1)
}
