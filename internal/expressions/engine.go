package expressions

import (
	"context"

	"github.com/rendis/certflow/pkg/schema"
)

// Outputs holds node outputs keyed by node id, then by output name.
type Outputs map[string]map[string]any

// Engine evaluates branch-condition expressions against node outputs.
// Two implementations: Expr (default) and CEL.
type Engine interface {
	Name() string
	Evaluate(ctx context.Context, e schema.Expr, outputs Outputs) (bool, error)
}

// Engine names accepted by NewEngine.
const (
	EngineExpr = "expr"
	EngineCEL  = "cel"
)

// NewEngine returns the engine registered under name. An empty name selects Expr.
func NewEngine(name string) (Engine, error) {
	switch name {
	case "", EngineExpr:
		return NewExprEngine(), nil
	case EngineCEL:
		return NewCELEngine()
	default:
		return nil, schema.NewErrorf(schema.ErrCodeInvalidArgument, "unknown expression engine %q", name).
			WithDetails(map[string]any{"engine": name})
	}
}

// prepare renders e and builds the evaluation environment. Every selector must
// resolve to an available output.
func prepare(e schema.Expr, outputs Outputs) (string, map[string]any, error) {
	source, err := Render(e)
	if err != nil {
		return "", nil, err
	}
	for _, sel := range schema.Variables(e) {
		node, ok := outputs[sel.ID]
		if !ok {
			return "", nil, missingOutput(sel, source)
		}
		if _, ok := node[sel.Name]; !ok {
			return "", nil, missingOutput(sel, source)
		}
	}
	return source, map[string]any{"outputs": normalizeOutputs(outputs)}, nil
}

func missingOutput(sel schema.Selector, source string) error {
	return schema.NewErrorf(schema.ErrCodeExecution, "output %s.%s is not available", sel.ID, sel.Name).
		WithNode(sel.ID).
		WithDetails(map[string]any{"expression": source, "output": sel.Name})
}

// normalizeOutputs copies outputs into plain maps with float64 numbers, the
// only numeric type rendered literals compare against.
func normalizeOutputs(outputs Outputs) map[string]any {
	out := make(map[string]any, len(outputs))
	for id, values := range outputs {
		m := make(map[string]any, len(values))
		for k, v := range values {
			m[k] = normalizeNumber(v)
		}
		out[id] = m
	}
	return out
}

func normalizeNumber(v any) any {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int8:
		return float64(n)
	case int16:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	case uint:
		return float64(n)
	case uint8:
		return float64(n)
	case uint16:
		return float64(n)
	case uint32:
		return float64(n)
	case uint64:
		return float64(n)
	case float32:
		return float64(n)
	default:
		return v
	}
}

func asBool(engine, source string, out any) (bool, error) {
	b, ok := out.(bool)
	if !ok {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"%s expression %q produced %T, want bool", engine, source, out).
			WithDetails(map[string]any{"expression": source})
	}
	return b, nil
}
