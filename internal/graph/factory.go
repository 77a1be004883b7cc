package graph

import (
	"fmt"

	"github.com/rendis/certflow/pkg/schema"
)

// BranchNameKey is the lookup key for the numbered default branch name.
const BranchNameKey = "workflow_node.branch_block.default_name"

// NameKey returns the lookup key for a variant's default display name.
func NameKey(t schema.NodeType) string {
	return fmt.Sprintf("workflow_node.%s.default_name", t)
}

// Factory creates nodes with fresh ids, default names and default configs.
type Factory struct {
	names schema.Lookup
	newID IDGenerator
}

// Option configures a Factory.
type Option func(*Factory)

// WithIDGenerator overrides the id source.
func WithIDGenerator(gen IDGenerator) Option {
	return func(f *Factory) { f.newID = gen }
}

// NewFactory returns a Factory resolving display names through names.
// A nil lookup leaves names as their lookup keys.
func NewFactory(names schema.Lookup, opts ...Option) *Factory {
	if names == nil {
		names = schema.Catalog{}
	}
	f := &Factory{names: names, newID: NewNodeID}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateNode builds a node of type t. Composite variants come with their
// required children: condition gets two branches, tryCatch gets a try block
// and a catch block, and the catch block is pre-seeded with an end node.
func (f *Factory) CreateNode(t schema.NodeType) (*schema.Node, error) {
	if !t.Valid() {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidArgument, "unknown node type %q", t).
			WithDetails(map[string]any{"type": string(t)})
	}

	n := &schema.Node{
		ID:     f.newID(),
		Type:   t,
		Data:   schema.NodeData{Name: f.names.Lookup(NameKey(t)), Config: DefaultConfig(t)},
		Blocks: []*schema.Node{},
	}

	switch t {
	case schema.NodeTypeCondition:
		n.Blocks = []*schema.Node{f.CreateBranch(1), f.CreateBranch(2)}

	case schema.NodeTypeTryCatch:
		n.Blocks = []*schema.Node{f.mustCreate(schema.NodeTypeTryBlock), f.mustCreate(schema.NodeTypeCatchBlock)}

	case schema.NodeTypeTryBlock:
		n.Data.Name = ""

	case schema.NodeTypeCatchBlock:
		n.Blocks = []*schema.Node{f.mustCreate(schema.NodeTypeEnd)}
	}

	return n, nil
}

// CreateBranch builds a branch block named "<branch name> <index>".
func (f *Factory) CreateBranch(index int) *schema.Node {
	n := f.mustCreate(schema.NodeTypeBranchBlock)
	n.Data.Name = fmt.Sprintf("%s %d", f.names.Lookup(BranchNameKey), index)
	return n
}

func (f *Factory) mustCreate(t schema.NodeType) *schema.Node {
	n, err := f.CreateNode(t)
	if err != nil {
		panic(err)
	}
	return n
}

// DefaultConfig returns a fresh default config for t, or nil for variants without one.
// Numbers are float64 to match decoded documents.
func DefaultConfig(t schema.NodeType) any {
	switch t {
	case schema.NodeTypeStart:
		return map[string]any{schema.ConfigKeyTrigger: schema.TriggerManual}
	case schema.NodeTypeDelay:
		return map[string]any{"wait": 60.0}
	case schema.NodeTypeCondition, schema.NodeTypeBranchBlock:
		return map[string]any{}
	case schema.NodeTypeBizApply:
		return map[string]any{
			"challengeType":        "dns-01",
			"keyAlgorithm":         "RSA2048",
			"skipBeforeExpiryDays": 30.0,
		}
	case schema.NodeTypeBizUpload:
		return map[string]any{"source": "form"}
	case schema.NodeTypeBizMonitor:
		return map[string]any{"host": "", "port": 443.0, "requestPath": "/"}
	case schema.NodeTypeBizDeploy:
		return map[string]any{
			schema.ConfigKeyCertificateOutputNodeID: "",
			"skipOnLastSucceeded":                   true,
		}
	case schema.NodeTypeBizNotify:
		return map[string]any{"subject": "", "message": "", "skipOnAllPrevSkipped": true}
	default:
		return nil
	}
}
