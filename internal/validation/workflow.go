package validation

import "github.com/rendis/certflow/pkg/schema"

// WorkflowValidator orchestrates the two-stage validation pipeline:
// 1. Structural rules (errors; the tree is invalid if any fire)
// 2. Advisory checks (warnings: config schema, trigger cron, references)
type WorkflowValidator struct {
	configs *ConfigSchemaValidator
}

// NewWorkflowValidator creates a WorkflowValidator with compiled config schemas.
func NewWorkflowValidator() (*WorkflowValidator, error) {
	configs, err := NewConfigSchemaValidator()
	if err != nil {
		return nil, err
	}
	return &WorkflowValidator{configs: configs}, nil
}

// Validate runs both stages and returns an aggregated result.
// Structural errors short-circuit: advisory checks are skipped.
// A nil graph is validated as an empty node list.
func (wv *WorkflowValidator) Validate(g *schema.Graph) *schema.ValidationResult {
	var nodes []*schema.Node
	if g != nil {
		nodes = g.Nodes
	}

	result := &schema.ValidationResult{}
	for _, issue := range Validate(nodes) {
		result.AddError(issue)
	}
	if !result.Valid() {
		return result
	}

	result.Merge(validateSemantic(nodes, wv.configs))
	return result
}

// ValidateGraph satisfies the Validator interface.
func (wv *WorkflowValidator) ValidateGraph(g *schema.Graph) error {
	return wv.Validate(g).ToError()
}

var _ Validator = (*WorkflowValidator)(nil)
