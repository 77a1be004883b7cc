package validation

import (
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/rendis/certflow/internal/graph"
	"github.com/rendis/certflow/pkg/schema"
)

// cronParser accepts the standard 5-field form used by scheduled triggers.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// certificateSources are the variants a deploy node may take its certificate from.
var certificateSources = map[schema.NodeType]bool{
	schema.NodeTypeBizApply:  true,
	schema.NodeTypeBizUpload: true,
}

// validateSemantic runs the advisory checks. It only reports warnings:
// config shape, scheduled trigger cron, cross-node references and branch
// expressions that could not be decoded.
func validateSemantic(nodes []*schema.Node, configs *ConfigSchemaValidator) *schema.ValidationResult {
	result := &schema.ValidationResult{}

	types := make(map[string]schema.NodeType)
	graph.Walk(nodes, func(n, _ *schema.Node, _ string) bool {
		if _, ok := types[n.ID]; !ok {
			types[n.ID] = n.Type
		}
		return true
	})

	graph.Walk(nodes, func(n, _ *schema.Node, path string) bool {
		if configs != nil {
			violations, err := configs.Check(n)
			if err != nil {
				result.AddWarning(path+".data.config", schema.RuleConfigSchema, n.ID, err.Error())
			}
			for _, v := range violations {
				result.AddWarning(path+".data.config", schema.RuleConfigSchema, n.ID, v)
			}
		}

		switch n.Type {
		case schema.NodeTypeStart:
			checkTrigger(n, path, result)
		case schema.NodeTypeBizDeploy:
			checkDeploySource(n, path, types, result)
		case schema.NodeTypeBranchBlock:
			checkBranchExpression(n, path, types, result)
		}
		return true
	})

	return result
}

func checkTrigger(n *schema.Node, path string, result *schema.ValidationResult) {
	var cfg schema.StartConfig
	if err := schema.DecodeConfig(n, &cfg); err != nil {
		return
	}
	if cfg.Trigger != schema.TriggerScheduled {
		return
	}
	loc := path + ".data.config." + schema.ConfigKeyTriggerCron
	if cfg.TriggerCron == "" {
		result.AddWarning(loc, schema.RuleInvalidTriggerCron, n.ID, "scheduled trigger requires a cron expression")
		return
	}
	if _, err := cronParser.Parse(cfg.TriggerCron); err != nil {
		result.AddWarning(loc, schema.RuleInvalidTriggerCron, n.ID,
			fmt.Sprintf("invalid cron expression %q: %s", cfg.TriggerCron, err.Error()))
	}
}

func checkDeploySource(n *schema.Node, path string, types map[string]schema.NodeType, result *schema.ValidationResult) {
	ref := n.ConfigString(schema.ConfigKeyCertificateOutputNodeID)
	if ref == "" {
		return
	}
	loc := path + ".data.config." + schema.ConfigKeyCertificateOutputNodeID
	t, ok := types[ref]
	switch {
	case !ok:
		result.AddWarning(loc, schema.RuleDanglingReference, n.ID,
			fmt.Sprintf("certificate source %q does not exist", ref))
	case !certificateSources[t]:
		result.AddWarning(loc, schema.RuleDanglingReference, n.ID,
			fmt.Sprintf("certificate source %q is a %s node", ref, t))
	}
}

func checkBranchExpression(n *schema.Node, path string, types map[string]schema.NodeType, result *schema.ValidationResult) {
	raw, present := n.ConfigMap()[schema.ConfigKeyExpression]
	if !present || raw == nil {
		return
	}
	loc := path + ".data.config." + schema.ConfigKeyExpression

	expr, ok := raw.(schema.Expr)
	if !ok {
		detail := "expression could not be decoded"
		if _, err := schema.DecodeExpr(raw); err != nil {
			detail = err.Error()
		}
		result.AddWarning(loc, schema.RuleInvalidExpression, n.ID, detail)
		return
	}

	for _, sel := range schema.Variables(expr) {
		if _, ok := types[sel.ID]; !ok {
			result.AddWarning(loc, schema.RuleDanglingReference, n.ID,
				fmt.Sprintf("selector %s.%s references a missing node", sel.ID, sel.Name))
		}
	}
}
