package validation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/rendis/certflow/pkg/schema"
)

// configSchemas holds the Draft 2020-12 schema of each variant's config.
// Unknown keys are allowed so newer editors can add fields.
var configSchemas = map[schema.NodeType]string{
	schema.NodeTypeStart: `{
  "type": "object",
  "required": ["trigger"],
  "properties": {
    "trigger": { "type": "string", "enum": ["manual", "scheduled"] },
    "triggerCron": { "type": "string" }
  }
}`,
	schema.NodeTypeDelay: `{
  "type": "object",
  "required": ["wait"],
  "properties": {
    "wait": { "type": "integer", "minimum": 0 }
  }
}`,
	schema.NodeTypeCondition: `{ "type": "object" }`,
	schema.NodeTypeBranchBlock: `{
  "type": "object",
  "properties": {
    "expression": { "type": ["object", "null"] }
  }
}`,
	schema.NodeTypeBizApply: `{
  "type": "object",
  "properties": {
    "domains": { "type": "string" },
    "contactEmail": { "type": "string" },
    "challengeType": { "type": "string", "enum": ["dns-01", "http-01"] },
    "provider": { "type": "string" },
    "providerAccessId": { "type": "string" },
    "keyAlgorithm": { "type": "string", "enum": ["RSA2048", "RSA3072", "RSA4096", "RSA8192", "EC256", "EC384"] },
    "skipBeforeExpiryDays": { "type": "integer", "minimum": 0 }
  }
}`,
	schema.NodeTypeBizUpload: `{
  "type": "object",
  "properties": {
    "source": { "type": "string", "enum": ["form", "local", "url"] },
    "certificateId": { "type": "string" },
    "certificate": { "type": "string" },
    "privateKey": { "type": "string" }
  }
}`,
	schema.NodeTypeBizMonitor: `{
  "type": "object",
  "properties": {
    "host": { "type": "string" },
    "port": { "type": "integer", "minimum": 1, "maximum": 65535 },
    "domain": { "type": "string" },
    "requestPath": { "type": "string" }
  }
}`,
	schema.NodeTypeBizDeploy: `{
  "type": "object",
  "properties": {
    "provider": { "type": "string" },
    "providerAccessId": { "type": "string" },
    "providerConfig": { "type": "object" },
    "certificateOutputNodeId": { "type": "string" },
    "skipOnLastSucceeded": { "type": "boolean" }
  }
}`,
	schema.NodeTypeBizNotify: `{
  "type": "object",
  "properties": {
    "subject": { "type": "string" },
    "message": { "type": "string" },
    "provider": { "type": "string" },
    "providerAccessId": { "type": "string" },
    "skipOnAllPrevSkipped": { "type": "boolean" }
  }
}`,
}

// ConfigSchemaValidator checks node configs against the per-variant schemas.
// Schemas are compiled once; the validator is safe for concurrent use.
type ConfigSchemaValidator struct {
	schemas map[schema.NodeType]*jsonschema.Schema
}

// NewConfigSchemaValidator compiles every variant schema.
func NewConfigSchemaValidator() (*ConfigSchemaValidator, error) {
	c := jsonschema.NewCompiler()
	c.AssertFormat()

	compiled := make(map[schema.NodeType]*jsonschema.Schema, len(configSchemas))
	for nt, src := range configSchemas {
		doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
		if err != nil {
			return nil, fmt.Errorf("unmarshal %s config schema: %w", nt, err)
		}
		url := fmt.Sprintf("https://certflow.dev/schemas/config/%s.json", nt)
		if err := c.AddResource(url, doc); err != nil {
			return nil, fmt.Errorf("add %s config schema resource: %w", nt, err)
		}
		s, err := c.Compile(url)
		if err != nil {
			return nil, fmt.Errorf("compile %s config schema: %w", nt, err)
		}
		compiled[nt] = s
	}
	return &ConfigSchemaValidator{schemas: compiled}, nil
}

// Check returns the schema violations of n's config, one message per leaf
// violation. Nodes without a mapping config or without a schema yield nothing.
func (v *ConfigSchemaValidator) Check(n *schema.Node) ([]string, error) {
	cfg, ok := n.Data.Config.(map[string]any)
	if !ok {
		return nil, nil
	}
	s, ok := v.schemas[n.Type]
	if !ok {
		return nil, nil
	}

	doc, err := toJSONValue(cfg)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeValidation, "failed to serialize node config").
			WithNode(n.ID).
			WithCause(err)
	}

	if err := s.Validate(doc); err != nil {
		verr, ok := err.(*jsonschema.ValidationError)
		if !ok {
			return []string{err.Error()}, nil
		}
		violations := collectViolations(verr)
		sort.Strings(violations)
		return violations, nil
	}
	return nil, nil
}

// toJSONValue round-trips a Go value through JSON encoding/decoding so that
// numeric values become json.Number (required by the jsonschema library).
func toJSONValue(v any) (any, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return jsonschema.UnmarshalJSON(strings.NewReader(string(b)))
}

// collectViolations walks a ValidationError tree and collects leaf error
// messages prefixed with their instance locations.
func collectViolations(verr *jsonschema.ValidationError) []string {
	if len(verr.Causes) == 0 {
		loc := "/"
		if len(verr.InstanceLocation) > 0 {
			loc = "/" + strings.Join(verr.InstanceLocation, "/")
		}
		return []string{fmt.Sprintf("%s: %s", loc, verr.Error())}
	}

	var violations []string
	for _, cause := range verr.Causes {
		violations = append(violations, collectViolations(cause)...)
	}
	return violations
}
