package validation

import "github.com/rendis/certflow/pkg/schema"

// Validator checks workflow graphs before import, save or publish.
type Validator interface {
	Validate(g *schema.Graph) *schema.ValidationResult
	ValidateGraph(g *schema.Graph) error
}
