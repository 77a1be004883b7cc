package schema

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestNodeTypes(t *testing.T) {
	types := NodeTypes()
	assert.Len(t, types, 13)
	for _, nt := range types {
		assert.True(t, nt.Valid(), nt)
	}
	assert.False(t, NodeType("loop").Valid())
	assert.False(t, NodeType("").Valid())

	// Returned slice is a copy.
	types[0] = "mutated"
	assert.Equal(t, NodeTypeStart, NodeTypes()[0])
}

func TestNodeFromRaw_Coercion(t *testing.T) {
	n := NodeFromRaw(map[string]any{
		"id":   42.0,
		"type": "bizApply",
		"data": map[string]any{
			"name":     "Apply",
			"disabled": "true",
			"config":   map[string]any{"keyAlgorithm": "EC256"},
			"meta":     map[string]any{"x": 1.0},
			"color":    "blue",
			"id":       "ignored",
			"blocks":   []any{},
		},
		"blocks": "not-a-list",
	})

	assert.Equal(t, "42", n.ID)
	assert.Equal(t, NodeTypeBizApply, n.Type)
	assert.Equal(t, "Apply", n.Data.Name)
	assert.True(t, n.Data.Disabled)
	assert.Equal(t, map[string]any{"keyAlgorithm": "EC256"}, n.Data.Config)
	assert.Equal(t, map[string]any{"x": 1.0}, n.Data.Meta)
	assert.Equal(t, map[string]any{"color": "blue"}, n.Data.Extra)
	require.NotNil(t, n.Blocks)
	assert.Empty(t, n.Blocks)
}

func TestNodeFromRaw_MissingFields(t *testing.T) {
	n := NodeFromRaw(map[string]any{})
	assert.Equal(t, "", n.ID)
	assert.Equal(t, NodeType(""), n.Type)
	assert.False(t, n.Data.Disabled)
	assert.Nil(t, n.Data.Config)
	assert.Nil(t, n.Data.Extra)
	assert.NotNil(t, n.Blocks)

	// Non-object items still yield a node that fails id validation later.
	n = NodeFromRaw("garbage")
	assert.Equal(t, "", n.ID)
}

func TestNodeFromRaw_DisabledVariants(t *testing.T) {
	cases := []struct {
		raw  any
		want bool
	}{
		{true, true},
		{"true", true},
		{false, false},
		{"yes", false},
		{1.0, false},
		{nil, false},
	}
	for _, tc := range cases {
		n := NodeFromRaw(map[string]any{"data": map[string]any{"disabled": tc.raw}})
		assert.Equal(t, tc.want, n.Data.Disabled, "disabled=%v", tc.raw)
	}
}

func TestNodeFromRaw_BranchExpressionTyped(t *testing.T) {
	n := NodeFromRaw(map[string]any{
		"id":   "b1",
		"type": "branchBlock",
		"data": map[string]any{
			"config": map[string]any{
				"expression": map[string]any{
					"type":     "comparison",
					"operator": "eq",
					"left":     map[string]any{"type": "var", "selector": map[string]any{"id": "m1", "name": "certificate.validity", "type": "boolean"}},
					"right":    map[string]any{"type": "const", "value": true, "valueType": "boolean"},
				},
			},
		},
	})

	expr := n.Expression()
	require.NotNil(t, expr)
	cmp, ok := expr.(*ComparisonExpr)
	require.True(t, ok)
	assert.Equal(t, OpEqual, cmp.Operator)
	assert.Equal(t, "m1", cmp.Left.(*VariableExpr).Selector.ID)
}

func TestNodeFromRaw_MalformedExpressionKeptRaw(t *testing.T) {
	raw := map[string]any{"type": "mystery"}
	n := NodeFromRaw(map[string]any{
		"id":   "b1",
		"type": "branchBlock",
		"data": map[string]any{"config": map[string]any{"expression": raw}},
	})
	assert.Nil(t, n.Expression())
	assert.Equal(t, raw, n.ConfigMap()["expression"])
}

func TestNodeFromRaw_YAMLIntegerNormalized(t *testing.T) {
	n := NodeFromRaw(map[string]any{
		"id":   "d",
		"type": "delay",
		"data": map[string]any{"config": map[string]any{"wait": 60}},
	})
	assert.Equal(t, 60.0, n.ConfigMap()["wait"])
}

func TestNodeFromRaw_DoesNotAliasInput(t *testing.T) {
	cfg := map[string]any{"host": "example.com"}
	raw := map[string]any{"id": "m", "type": "bizMonitor", "data": map[string]any{"config": cfg}}

	n := NodeFromRaw(raw)
	n.ConfigMap()["host"] = "changed"
	assert.Equal(t, "example.com", cfg["host"])
}

func TestNodeMarshalJSON(t *testing.T) {
	n := &Node{
		ID:   "n1",
		Type: NodeTypeDelay,
		Data: NodeData{
			Name:   "Wait",
			Config: map[string]any{"wait": 30.0},
			Extra:  map[string]any{"note": "x", "name": "shadowed"},
		},
	}

	b, err := json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"n1","type":"delay","data":{"name":"Wait","config":{"wait":30},"note":"x"}}`, string(b))

	n.Blocks = []*Node{}
	n.Data.Disabled = true
	b, err = json.Marshal(n)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"n1","type":"delay","data":{"name":"Wait","disabled":true,"config":{"wait":30},"note":"x"},"blocks":[]}`, string(b))
}

func TestNodeUnmarshalJSON(t *testing.T) {
	var n Node
	require.NoError(t, json.Unmarshal([]byte(`{"id":"s","type":"start","data":{"name":"Start","disabled":"true","config":{"trigger":"manual"}}}`), &n))
	assert.Equal(t, "s", n.ID)
	assert.True(t, n.Data.Disabled)
	assert.Equal(t, "manual", n.ConfigString(ConfigKeyTrigger))
}

func TestGraphYAMLRoundTrip(t *testing.T) {
	src := `
nodes:
  - id: s
    type: start
    data:
      name: Start
      config:
        trigger: manual
  - id: e
    type: end
    data:
      name: End
      extra: [1, 2]
`
	var g Graph
	require.NoError(t, yaml.Unmarshal([]byte(src), &g))
	require.Len(t, g.Nodes, 2)
	assert.Equal(t, []any{1.0, 2.0}, g.Nodes[1].Data.Extra["extra"])

	out, err := yaml.Marshal(g)
	require.NoError(t, err)

	var again Graph
	require.NoError(t, yaml.Unmarshal(out, &again))
	assert.Equal(t, g, again)
}

func TestGraphFromRaw_Shapes(t *testing.T) {
	g := GraphFromRaw([]any{map[string]any{"id": "a", "type": "start"}})
	require.Len(t, g.Nodes, 1)

	g = GraphFromRaw(map[string]any{"nodes": "nope"})
	assert.NotNil(t, g.Nodes)
	assert.Empty(t, g.Nodes)

	g = GraphFromRaw(map[any]any{"nodes": []any{map[any]any{"id": "x"}}})
	require.Len(t, g.Nodes, 1)
	assert.Equal(t, "x", g.Nodes[0].ID)

	b, err := json.Marshal(Graph{})
	require.NoError(t, err)
	assert.JSONEq(t, `{"nodes":[]}`, string(b))
}

func TestDecodeConfig(t *testing.T) {
	n := &Node{ID: "m", Type: NodeTypeBizMonitor, Data: NodeData{Config: map[string]any{
		"host": "example.com", "port": 8443.0, "requestPath": "/health",
	}}}
	var cfg MonitorConfig
	require.NoError(t, DecodeConfig(n, &cfg))
	assert.Equal(t, MonitorConfig{Host: "example.com", Port: 8443, RequestPath: "/health"}, cfg)

	n.Data.Config = []any{"x"}
	err := DecodeConfig(n, &cfg)
	require.Error(t, err)
	assert.True(t, IsCode(err, ErrCodeInvalidArgument))

	var empty StartConfig
	require.NoError(t, DecodeConfig(&Node{}, &empty))
	assert.Equal(t, StartConfig{}, empty)
}

func TestDecodeConfig_BranchExpression(t *testing.T) {
	expr := &NotExpr{Expr: &ConstantExpr{Value: true, ValueType: ValueTypeBoolean}}
	n := &Node{ID: "b", Type: NodeTypeBranchBlock, Data: NodeData{Config: map[string]any{"expression": expr}}}

	var cfg BranchBlockConfig
	require.NoError(t, DecodeConfig(n, &cfg))
	assert.Same(t, expr, cfg.Expression)
}
