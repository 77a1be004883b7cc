package main

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rendis/certflow/internal/graph"
	"github.com/rendis/certflow/pkg/schema"
)

// builtinLabels are the English fallbacks for node names and issue messages.
var builtinLabels = schema.Catalog{
	graph.NameKey(schema.NodeTypeStart):       "Start",
	graph.NameKey(schema.NodeTypeEnd):         "End",
	graph.NameKey(schema.NodeTypeDelay):       "Delay",
	graph.NameKey(schema.NodeTypeCondition):   "Parallel/Conditional Branch",
	graph.NameKey(schema.NodeTypeBranchBlock): "Branch",
	graph.NameKey(schema.NodeTypeTryCatch):    "Try/Catch",
	graph.NameKey(schema.NodeTypeTryBlock):    "Try",
	graph.NameKey(schema.NodeTypeCatchBlock):  "On Failure",
	graph.NameKey(schema.NodeTypeBizApply):    "Apply Certificate",
	graph.NameKey(schema.NodeTypeBizUpload):   "Upload Certificate",
	graph.NameKey(schema.NodeTypeBizMonitor):  "Monitor Certificate",
	graph.NameKey(schema.NodeTypeBizDeploy):   "Deploy Certificate",
	graph.NameKey(schema.NodeTypeBizNotify):   "Send Notification",
	graph.BranchNameKey:                       "Branch",

	schema.MessageKey(schema.RuleFirstNodeMustBeStart):   "The first node must be a start node",
	schema.MessageKey(schema.RuleLastNodeMustBeEnd):      "The last node must be an end node",
	schema.MessageKey(schema.RuleInvalidID):              "Node id is malformed",
	schema.MessageKey(schema.RuleInvalidConfig):          "Node config must be an object",
	schema.MessageKey(schema.RuleConflictID):             "Node id is used more than once",
	schema.MessageKey(schema.RuleDuplicateStart):         "Only one start node is allowed",
	schema.MessageKey(schema.RuleAbnormalConditionBlock): "Condition branches are malformed",
	schema.MessageKey(schema.RuleAbnormalTryCatchBlock):  "Try/catch blocks are malformed",
	schema.MessageKey(schema.RuleConfigSchema):           "Node config does not match its schema",
	schema.MessageKey(schema.RuleInvalidTriggerCron):     "Scheduled trigger cron is invalid",
	schema.MessageKey(schema.RuleDanglingReference):      "Reference points at an unusable node",
	schema.MessageKey(schema.RuleInvalidExpression):      "Branch condition is malformed",
}

// loadLocale reads a YAML locale file. Nested mappings are flattened into
// dotted keys, so both `workflow_node.start.default_name: Begin` and the
// nested form are accepted.
func loadLocale(path string) (schema.Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read locale file: %w", err)
	}
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse locale file %s: %w", path, err)
	}
	out := schema.Catalog{}
	flatten("", raw, out)
	return out, nil
}

func flatten(prefix string, m map[string]any, out schema.Catalog) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		switch v := m[k].(type) {
		case map[string]any:
			flatten(key, v, out)
		case nil:
		default:
			out[key] = fmt.Sprint(v)
		}
	}
}

// labels layers the configured locale file over the built-in labels.
func labels(path string) (schema.Lookup, error) {
	if path == "" {
		return builtinLabels, nil
	}
	catalog, err := loadLocale(path)
	if err != nil {
		return nil, err
	}
	return schema.Layered(catalog, builtinLabels), nil
}
