package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rendis/certflow/internal/graph"
	"github.com/rendis/certflow/pkg/schema"
)

// node builds a node whose blocks are present (possibly empty).
func node(id string, t schema.NodeType, blocks ...*schema.Node) *schema.Node {
	if blocks == nil {
		blocks = []*schema.Node{}
	}
	return &schema.Node{ID: id, Type: t, Data: schema.NodeData{Name: id}, Blocks: blocks}
}

func rules(issues []schema.Issue) []string {
	out := make([]string, 0, len(issues))
	for _, i := range issues {
		out = append(out, i.Rule)
	}
	return out
}

func issuesFor(issues []schema.Issue, rule string) []schema.Issue {
	var out []schema.Issue
	for _, i := range issues {
		if i.Rule == rule {
			out = append(out, i)
		}
	}
	return out
}

func TestValidID(t *testing.T) {
	valid := []string{"a", "A1", "a_b-c", "x-", "abcdefghijklmnopqrstuvwxyz012345"}
	invalid := []string{"", "_a", "-a", "a b", "a.b", "ü", "abcdefghijklmnopqrstuvwxyz0123456"}
	for _, id := range valid {
		assert.True(t, ValidID(id), id)
	}
	for _, id := range invalid {
		assert.False(t, ValidID(id), id)
	}
}

func TestValidate_MinimalValid(t *testing.T) {
	nodes := []*schema.Node{node("s", schema.NodeTypeStart), node("e", schema.NodeTypeEnd)}
	assert.Empty(t, Validate(nodes))
}

func TestValidate_EmptyTree(t *testing.T) {
	issues := Validate(nil)
	assert.Equal(t, []string{schema.RuleFirstNodeMustBeStart, schema.RuleLastNodeMustBeEnd}, rules(issues))
	assert.Equal(t, "", issues[0].NodeID)
}

// A start and end sharing an id report only the conflict, on the later node.
func TestValidate_ConflictIDOnly(t *testing.T) {
	nodes := []*schema.Node{node("a", schema.NodeTypeStart), node("a", schema.NodeTypeEnd)}
	issues := Validate(nodes)

	assert.Equal(t, []string{schema.RuleConflictID}, rules(issues))
	assert.Equal(t, "a", issues[0].NodeID)
	assert.Equal(t, "nodes[1]", issues[0].Path)
	assert.Equal(t, "workflow.validation.conflict_id", issues[0].MessageKey)
}

// The issue is attached to whatever node sits first.
func TestValidate_MissingStart(t *testing.T) {
	nodes := []*schema.Node{node("d", schema.NodeTypeDelay), node("e", schema.NodeTypeEnd)}
	issues := Validate(nodes)

	assert.Equal(t, []string{schema.RuleFirstNodeMustBeStart}, rules(issues))
	assert.Equal(t, "d", issues[0].NodeID)
}

func TestValidate_MissingEnd(t *testing.T) {
	nodes := []*schema.Node{node("s", schema.NodeTypeStart), node("d", schema.NodeTypeDelay)}
	assert.Equal(t, []string{schema.RuleLastNodeMustBeEnd}, rules(Validate(nodes)))
}

// A childless condition is the only problem in an otherwise valid tree.
func TestValidate_ConditionWithoutBranches(t *testing.T) {
	nodes := []*schema.Node{node("s", schema.NodeTypeStart), node("c", schema.NodeTypeCondition), node("e", schema.NodeTypeEnd)}
	issues := Validate(nodes)

	require.Len(t, issues, 1)
	assert.Equal(t, schema.RuleAbnormalConditionBlock, issues[0].Rule)
	assert.Equal(t, "c", issues[0].NodeID)
}

func TestValidate_ConditionWithNonBranchChild(t *testing.T) {
	cond := node("c", schema.NodeTypeCondition, node("b1", schema.NodeTypeBranchBlock), node("x", schema.NodeTypeDelay))
	issues := Validate([]*schema.Node{node("s", schema.NodeTypeStart), cond, node("e", schema.NodeTypeEnd)})

	got := issuesFor(issues, schema.RuleAbnormalConditionBlock)
	require.Len(t, got, 1, "one issue per condition node")
	assert.Equal(t, "c", got[0].NodeID)
}

func TestValidate_BranchBlockRules(t *testing.T) {
	absent := &schema.Node{ID: "b1", Type: schema.NodeTypeBranchBlock}
	nested := node("b2", schema.NodeTypeBranchBlock, node("inner", schema.NodeTypeBranchBlock))
	cond := node("c", schema.NodeTypeCondition, absent, nested)

	issues := Validate([]*schema.Node{node("s", schema.NodeTypeStart), cond, node("e", schema.NodeTypeEnd)})
	got := issuesFor(issues, schema.RuleAbnormalConditionBlock)

	require.Len(t, got, 2)
	assert.Equal(t, "b1", got[0].NodeID)
	assert.Equal(t, "b2", got[1].NodeID)
}

func TestValidate_EmptyBranchIsFine(t *testing.T) {
	cond := node("c", schema.NodeTypeCondition, node("b1", schema.NodeTypeBranchBlock), node("b2", schema.NodeTypeBranchBlock))
	assert.Empty(t, Validate([]*schema.Node{node("s", schema.NodeTypeStart), cond, node("e", schema.NodeTypeEnd)}))
}

// A try/catch holding only a catch block is flagged once, on the try/catch.
func TestValidate_TryCatchMissingTry(t *testing.T) {
	tc := node("tc", schema.NodeTypeTryCatch, node("cb", schema.NodeTypeCatchBlock))
	issues := Validate([]*schema.Node{node("s", schema.NodeTypeStart), tc, node("e", schema.NodeTypeEnd)})

	got := issuesFor(issues, schema.RuleAbnormalTryCatchBlock)
	require.Len(t, got, 1)
	assert.Equal(t, "tc", got[0].NodeID)
}

func TestValidate_TryCatchShapes(t *testing.T) {
	cases := map[string]*schema.Node{
		"try first missing": node("tc", schema.NodeTypeTryCatch, node("cb", schema.NodeTypeCatchBlock), node("tb", schema.NodeTypeTryBlock)),
		"no catch":          node("tc", schema.NodeTypeTryCatch, node("tb", schema.NodeTypeTryBlock), node("tb2", schema.NodeTypeTryBlock)),
		"only try":          node("tc", schema.NodeTypeTryCatch, node("tb", schema.NodeTypeTryBlock)),
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			issues := Validate([]*schema.Node{node("s", schema.NodeTypeStart), tc, node("e", schema.NodeTypeEnd)})
			got := issuesFor(issues, schema.RuleAbnormalTryCatchBlock)
			require.NotEmpty(t, got)
			assert.Equal(t, "tc", got[0].NodeID)
		})
	}

	ok := node("tc", schema.NodeTypeTryCatch,
		node("tb", schema.NodeTypeTryBlock),
		node("cb1", schema.NodeTypeCatchBlock),
		node("cb2", schema.NodeTypeCatchBlock))
	assert.Empty(t, Validate([]*schema.Node{node("s", schema.NodeTypeStart), ok, node("e", schema.NodeTypeEnd)}))
}

func TestValidate_TryAndCatchBlockChildren(t *testing.T) {
	tb := node("tb", schema.NodeTypeTryBlock, node("nested", schema.NodeTypeCatchBlock))
	cb := &schema.Node{ID: "cb", Type: schema.NodeTypeCatchBlock}
	tc := node("tc", schema.NodeTypeTryCatch, tb, cb)

	issues := Validate([]*schema.Node{node("s", schema.NodeTypeStart), tc, node("e", schema.NodeTypeEnd)})
	got := issuesFor(issues, schema.RuleAbnormalTryCatchBlock)

	var ids []string
	for _, i := range got {
		ids = append(ids, i.NodeID)
	}
	assert.Equal(t, []string{"tb", "cb"}, ids)
}

func TestValidate_InvalidIDAndConfig(t *testing.T) {
	bad := node("_bad", schema.NodeTypeDelay)
	bad.Data.Config = []any{"not", "a", "map"}
	scalar := node("scalar", schema.NodeTypeDelay)
	scalar.Data.Config = "wait"

	issues := Validate([]*schema.Node{node("s", schema.NodeTypeStart), bad, scalar, node("e", schema.NodeTypeEnd)})
	assert.Equal(t, []string{schema.RuleInvalidID, schema.RuleInvalidConfig, schema.RuleInvalidConfig}, rules(issues))
	assert.Equal(t, "_bad", issues[0].NodeID)
	assert.Equal(t, "scalar", issues[2].NodeID)
}

func TestValidate_ConflictIDReportedOncePerID(t *testing.T) {
	nodes := []*schema.Node{
		node("s", schema.NodeTypeStart),
		node("x", schema.NodeTypeDelay),
		node("x", schema.NodeTypeDelay),
		node("x", schema.NodeTypeDelay),
		node("y", schema.NodeTypeDelay),
		node("y", schema.NodeTypeDelay),
		node("e", schema.NodeTypeEnd),
	}
	got := issuesFor(Validate(nodes), schema.RuleConflictID)
	require.Len(t, got, 2)
	assert.Equal(t, "x", got[0].NodeID)
	assert.Equal(t, "nodes[2]", got[0].Path)
	assert.Equal(t, "y", got[1].NodeID)
}

func TestValidate_ConflictIDAcrossDepth(t *testing.T) {
	cond := node("c", schema.NodeTypeCondition, node("b1", schema.NodeTypeBranchBlock, node("s", schema.NodeTypeDelay)))
	issues := Validate([]*schema.Node{node("s", schema.NodeTypeStart), cond, node("e", schema.NodeTypeEnd)})

	got := issuesFor(issues, schema.RuleConflictID)
	require.Len(t, got, 1)
	assert.Equal(t, "nodes[1].blocks[0].blocks[0]", got[0].Path)
}

func TestValidate_DuplicateStartOnce(t *testing.T) {
	nodes := []*schema.Node{
		node("s1", schema.NodeTypeStart),
		node("s2", schema.NodeTypeStart),
		node("s3", schema.NodeTypeStart),
		node("e", schema.NodeTypeEnd),
	}
	got := issuesFor(Validate(nodes), schema.RuleDuplicateStart)
	require.Len(t, got, 1)
	assert.Equal(t, "s2", got[0].NodeID)
}

func TestValidate_NestedStartCounts(t *testing.T) {
	cond := node("c", schema.NodeTypeCondition, node("b1", schema.NodeTypeBranchBlock, node("s2", schema.NodeTypeStart)))
	issues := Validate([]*schema.Node{node("s", schema.NodeTypeStart), cond, node("e", schema.NodeTypeEnd)})
	assert.Equal(t, []string{schema.RuleDuplicateStart}, rules(issues))
}

func TestValidate_PreOrder(t *testing.T) {
	deep := node("c", schema.NodeTypeCondition, node("b1", schema.NodeTypeBranchBlock, node("-inner", schema.NodeTypeDelay)))
	nodes := []*schema.Node{
		node("-first", schema.NodeTypeStart),
		deep,
		node("-last", schema.NodeTypeEnd),
	}
	issues := Validate(nodes)

	var ids []string
	for _, i := range issuesFor(issues, schema.RuleInvalidID) {
		ids = append(ids, i.NodeID)
	}
	assert.Equal(t, []string{"-first", "-inner", "-last"}, ids)
}

func TestValidate_Deterministic(t *testing.T) {
	nodes := []*schema.Node{
		node("d", schema.NodeTypeDelay),
		node("d", schema.NodeTypeStart),
		node("c", schema.NodeTypeCondition),
		node("tc", schema.NodeTypeTryCatch),
	}
	first := Validate(nodes)
	second := Validate(nodes)
	assert.Equal(t, first, second)
	assert.NotEmpty(t, first)
}

func TestValidate_FactoryTreeHasNoIssues(t *testing.T) {
	f := graph.NewFactory(nil)
	var nodes []*schema.Node
	for _, nt := range []schema.NodeType{
		schema.NodeTypeStart,
		schema.NodeTypeDelay,
		schema.NodeTypeCondition,
		schema.NodeTypeTryCatch,
		schema.NodeTypeBizApply,
		schema.NodeTypeBizUpload,
		schema.NodeTypeBizMonitor,
		schema.NodeTypeBizDeploy,
		schema.NodeTypeBizNotify,
		schema.NodeTypeEnd,
	} {
		n, err := f.CreateNode(nt)
		require.NoError(t, err)
		nodes = append(nodes, n)
	}
	assert.Empty(t, Validate(nodes))
}
