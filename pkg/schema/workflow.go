package schema

import (
	"encoding/json"
	"slices"

	"gopkg.in/yaml.v3"
)

// NodeType is the closed set of workflow node variants.
type NodeType string

const (
	NodeTypeStart       NodeType = "start"
	NodeTypeEnd         NodeType = "end"
	NodeTypeDelay       NodeType = "delay"
	NodeTypeCondition   NodeType = "condition"
	NodeTypeBranchBlock NodeType = "branchBlock"
	NodeTypeTryCatch    NodeType = "tryCatch"
	NodeTypeTryBlock    NodeType = "tryBlock"
	NodeTypeCatchBlock  NodeType = "catchBlock"
	NodeTypeBizApply    NodeType = "bizApply"
	NodeTypeBizUpload   NodeType = "bizUpload"
	NodeTypeBizMonitor  NodeType = "bizMonitor"
	NodeTypeBizDeploy   NodeType = "bizDeploy"
	NodeTypeBizNotify   NodeType = "bizNotify"
)

var nodeTypes = []NodeType{
	NodeTypeStart,
	NodeTypeEnd,
	NodeTypeDelay,
	NodeTypeCondition,
	NodeTypeBranchBlock,
	NodeTypeTryCatch,
	NodeTypeTryBlock,
	NodeTypeCatchBlock,
	NodeTypeBizApply,
	NodeTypeBizUpload,
	NodeTypeBizMonitor,
	NodeTypeBizDeploy,
	NodeTypeBizNotify,
}

// NodeTypes returns every supported variant in canonical order.
func NodeTypes() []NodeType {
	return slices.Clone(nodeTypes)
}

// Valid reports whether t is a supported variant.
func (t NodeType) Valid() bool {
	return slices.Contains(nodeTypes, t)
}

// Config keys other packages rewrite or inspect.
const (
	ConfigKeyTrigger                 = "trigger"
	ConfigKeyTriggerCron             = "triggerCron"
	ConfigKeyExpression              = "expression"
	ConfigKeyCertificateOutputNodeID = "certificateOutputNodeId"
)

// Start trigger modes.
const (
	TriggerManual    = "manual"
	TriggerScheduled = "scheduled"
)

// Graph is the serializable document: an ordered top-level node sequence.
type Graph struct {
	Nodes []*Node `json:"nodes" yaml:"nodes"`
}

type graphWire struct {
	Nodes []*Node `json:"nodes" yaml:"nodes"`
}

func (g Graph) wire() graphWire {
	if g.Nodes == nil {
		return graphWire{Nodes: []*Node{}}
	}
	return graphWire{Nodes: g.Nodes}
}

func (g Graph) MarshalJSON() ([]byte, error) { return json.Marshal(g.wire()) }

func (g Graph) MarshalYAML() (any, error) { return g.wire(), nil }

// UnmarshalJSON applies the lenient node coercion rules.
func (g *Graph) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*g = *GraphFromRaw(raw)
	return nil
}

// UnmarshalYAML applies the lenient node coercion rules.
func (g *Graph) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*g = *GraphFromRaw(raw)
	return nil
}

// Node is one workflow step or structural container.
// A nil Blocks means the sequence is absent; an empty slice means present and empty.
type Node struct {
	ID     string
	Type   NodeType
	Data   NodeData
	Blocks []*Node
}

type nodeWire struct {
	ID     string   `json:"id" yaml:"id"`
	Type   NodeType `json:"type" yaml:"type"`
	Data   NodeData `json:"data" yaml:"data"`
	Blocks *[]*Node `json:"blocks,omitempty" yaml:"blocks,omitempty"`
}

func (n Node) wire() nodeWire {
	w := nodeWire{ID: n.ID, Type: n.Type, Data: n.Data}
	if n.Blocks != nil {
		blocks := n.Blocks
		w.Blocks = &blocks
	}
	return w
}

func (n Node) MarshalJSON() ([]byte, error) { return json.Marshal(n.wire()) }

func (n Node) MarshalYAML() (any, error) { return n.wire(), nil }

func (n *Node) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*n = *NodeFromRaw(raw)
	return nil
}

func (n *Node) UnmarshalYAML(value *yaml.Node) error {
	var raw any
	if err := value.Decode(&raw); err != nil {
		return err
	}
	*n = *NodeFromRaw(raw)
	return nil
}

// ConfigMap returns the config as a mapping, or nil when it is absent or not a mapping.
func (n *Node) ConfigMap() map[string]any {
	m, _ := n.Data.Config.(map[string]any)
	return m
}

// ConfigString returns a string config value, or "" when missing or not a string.
func (n *Node) ConfigString(key string) string {
	s, _ := n.ConfigMap()[key].(string)
	return s
}

// Expression returns the typed branch expression, or nil.
func (n *Node) Expression() Expr {
	e, _ := n.ConfigMap()[ConfigKeyExpression].(Expr)
	return e
}

// Reserved data keys. Everything else under data is passthrough.
var reservedDataKeys = []string{"id", "type", "name", "disabled", "config", "meta", "blocks"}

// NodeData holds the known data fields plus passthrough extras.
type NodeData struct {
	Name     string
	Disabled bool
	Config   any
	Meta     any
	Extra    map[string]any
}

func (d NodeData) toMap() map[string]any {
	m := make(map[string]any, len(d.Extra)+4)
	for k, v := range d.Extra {
		if !slices.Contains(reservedDataKeys, k) {
			m[k] = v
		}
	}
	m["name"] = d.Name
	if d.Disabled {
		m["disabled"] = true
	}
	if d.Config != nil {
		m["config"] = d.Config
	}
	if d.Meta != nil {
		m["meta"] = d.Meta
	}
	return m
}

func (d NodeData) MarshalJSON() ([]byte, error) { return json.Marshal(d.toMap()) }

func (d NodeData) MarshalYAML() (any, error) { return d.toMap(), nil }

// GraphFromRaw converts a decoded JSON or YAML tree into a Graph.
// A top-level sequence is taken as the node list; an object contributes its "nodes" key.
func GraphFromRaw(raw any) *Graph {
	switch v := normalizeValue(raw).(type) {
	case []any:
		return &Graph{Nodes: NodesFromRaw(v)}
	case map[string]any:
		return &Graph{Nodes: NodesFromRaw(v["nodes"])}
	default:
		return &Graph{Nodes: []*Node{}}
	}
}

// NodesFromRaw converts a raw sequence into nodes. Anything but a sequence yields an empty list.
func NodesFromRaw(raw any) []*Node {
	items, ok := normalizeValue(raw).([]any)
	if !ok {
		return []*Node{}
	}
	nodes := make([]*Node, 0, len(items))
	for _, item := range items {
		nodes = append(nodes, nodeFromNormalized(item))
	}
	return nodes
}

// NodeFromRaw converts one raw item into a Node. id and type are coerced to
// strings, disabled accepts true or "true", blocks default to empty, and
// unreserved data keys are carried in Extra.
func NodeFromRaw(raw any) *Node {
	return nodeFromNormalized(normalizeValue(raw))
}

func nodeFromNormalized(raw any) *Node {
	m, _ := raw.(map[string]any)
	n := &Node{
		ID:   coerceString(m["id"]),
		Type: NodeType(coerceString(m["type"])),
	}

	data, _ := m["data"].(map[string]any)
	n.Data.Name = coerceString(data["name"])
	n.Data.Disabled = coerceBool(data["disabled"])
	n.Data.Config = data["config"]
	n.Data.Meta = data["meta"]
	for k, v := range data {
		if slices.Contains(reservedDataKeys, k) {
			continue
		}
		if n.Data.Extra == nil {
			n.Data.Extra = make(map[string]any)
		}
		n.Data.Extra[k] = v
	}

	if n.Type == NodeTypeBranchBlock {
		attachExpression(n.Data.Config)
	}

	n.Blocks = []*Node{}
	if items, ok := m["blocks"].([]any); ok {
		for _, item := range items {
			n.Blocks = append(n.Blocks, nodeFromNormalized(item))
		}
	}
	return n
}

// attachExpression replaces a well-formed raw expression with its typed form.
// Malformed expressions stay raw so nothing is lost on export.
func attachExpression(config any) {
	cfg, ok := config.(map[string]any)
	if !ok {
		return
	}
	raw, ok := cfg[ConfigKeyExpression]
	if !ok || raw == nil {
		return
	}
	if _, typed := raw.(Expr); typed {
		return
	}
	if e, err := DecodeExpr(raw); err == nil {
		cfg[ConfigKeyExpression] = e
	}
}
