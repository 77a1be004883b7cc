package codec

import (
	"github.com/rendis/certflow/internal/validation"
	"github.com/rendis/certflow/pkg/schema"
)

// ImportResult carries the decoded graph together with every issue found.
// Issues never abort an import; the caller decides whether to block on them.
type ImportResult struct {
	Graph    *schema.Graph  `json:"graph"`
	Errors   []schema.Issue `json:"errors"`
	Warnings []schema.Issue `json:"warnings"`
}

// Valid reports whether the import produced no error-severity issues.
func (r *ImportResult) Valid() bool {
	return len(r.Errors) == 0
}

// Import deserializes content and validates the result with v. When v is nil
// only the structural rules run. Blank content yields a nil Graph that is
// validated as an empty node list. Only parse failures are returned as errors.
func Import(content []byte, format Format, v validation.Validator) (*ImportResult, error) {
	g, err := Deserialize(content, format)
	if err != nil {
		return nil, err
	}

	var nodes []*schema.Node
	if g != nil {
		nodes = g.Nodes
	}

	result := &ImportResult{Graph: g, Errors: []schema.Issue{}, Warnings: []schema.Issue{}}
	if v == nil {
		vr := &schema.ValidationResult{}
		for _, issue := range validation.Validate(nodes) {
			vr.AddError(issue)
		}
		result.Errors = append(result.Errors, vr.Errors...)
		return result, nil
	}

	vr := v.Validate(&schema.Graph{Nodes: nodes})
	result.Errors = append(result.Errors, vr.Errors...)
	result.Warnings = append(result.Warnings, vr.Warnings...)
	return result, nil
}
