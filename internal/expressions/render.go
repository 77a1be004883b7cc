package expressions

import (
	"math"
	"strconv"
	"strings"

	"github.com/rendis/certflow/pkg/schema"
)

var comparisonSymbols = map[schema.ComparisonOperator]string{
	schema.OpGreaterThan:        ">",
	schema.OpGreaterThanOrEqual: ">=",
	schema.OpLessThan:           "<",
	schema.OpLessThanOrEqual:    "<=",
	schema.OpEqual:              "==",
	schema.OpNotEqual:           "!=",
}

var logicalSymbols = map[schema.LogicalOperator]string{
	schema.OpAnd: "&&",
	schema.OpOr:  "||",
}

// renderItem is either an expression still to render or literal text.
type renderItem struct {
	expr schema.Expr
	text string
}

// Render translates e into source accepted by both the Expr and CEL engines.
// Selectors become outputs["<id>"]["<name>"], numbers are always doubles and
// every operator application is parenthesized. Output is written in order from
// an explicit stack, so arbitrarily deep trees are safe and cost linear time.
func Render(e schema.Expr) (string, error) {
	if e == nil {
		return "", schema.NewError(schema.ErrCodeInvalidArgument, "expression is empty")
	}

	var b strings.Builder
	stack := []renderItem{{expr: e}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if item.expr == nil {
			b.WriteString(item.text)
			continue
		}

		children, err := operands(item.expr)
		if err != nil {
			return "", err
		}

		switch x := item.expr.(type) {
		case *schema.ConstantExpr:
			lit, err := renderConstant(x)
			if err != nil {
				return "", err
			}
			b.WriteString(lit)

		case *schema.VariableExpr:
			b.WriteString("outputs[" + strconv.Quote(x.Selector.ID) + "][" + strconv.Quote(x.Selector.Name) + "]")

		case *schema.ComparisonExpr:
			b.WriteByte('(')
			stack = append(stack,
				renderItem{text: ")"},
				renderItem{expr: children[1]},
				renderItem{text: " " + comparisonSymbols[x.Operator] + " "},
				renderItem{expr: children[0]},
			)

		case *schema.LogicalExpr:
			if x.Operator == schema.OpNot {
				b.WriteByte('!')
				stack = append(stack, renderItem{expr: children[0]})
				continue
			}
			b.WriteByte('(')
			stack = append(stack,
				renderItem{text: ")"},
				renderItem{expr: children[1]},
				renderItem{text: " " + logicalSymbols[x.Operator] + " "},
				renderItem{expr: children[0]},
			)

		case *schema.NotExpr:
			b.WriteByte('!')
			stack = append(stack, renderItem{expr: children[0]})
		}
	}
	return b.String(), nil
}

// operands returns the children of e in evaluation order and rejects
// incomplete nodes.
func operands(e schema.Expr) ([]schema.Expr, error) {
	switch x := e.(type) {
	case *schema.ConstantExpr, *schema.VariableExpr:
		return nil, nil
	case *schema.ComparisonExpr:
		if _, ok := comparisonSymbols[x.Operator]; !ok {
			return nil, renderError("unknown comparison operator %q", x.Operator)
		}
		if x.Left == nil || x.Right == nil {
			return nil, renderError("comparison %q needs two operands", x.Operator)
		}
		return []schema.Expr{x.Left, x.Right}, nil
	case *schema.LogicalExpr:
		if x.Operator == schema.OpNot {
			if x.Left == nil {
				return nil, renderError("logical not needs an operand")
			}
			return []schema.Expr{x.Left}, nil
		}
		if _, ok := logicalSymbols[x.Operator]; !ok {
			return nil, renderError("unknown logical operator %q", x.Operator)
		}
		if x.Left == nil || x.Right == nil {
			return nil, renderError("logical %q needs two operands", x.Operator)
		}
		return []schema.Expr{x.Left, x.Right}, nil
	case *schema.NotExpr:
		if x.Expr == nil {
			return nil, renderError("not needs an operand")
		}
		return []schema.Expr{x.Expr}, nil
	case nil:
		return nil, renderError("expression is empty")
	default:
		return nil, renderError("unsupported expression %T", e)
	}
}

func renderConstant(c *schema.ConstantExpr) (string, error) {
	switch c.ValueType {
	case schema.ValueTypeString:
		s, ok := c.Value.(string)
		if !ok {
			return "", renderError("constant %v is not a string", c.Value)
		}
		return strconv.Quote(s), nil

	case schema.ValueTypeNumber:
		var f float64
		switch v := c.Value.(type) {
		case float64:
			f = v
		case string:
			parsed, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
			if err != nil {
				return "", renderError("constant %q is not a number", v)
			}
			f = parsed
		default:
			return "", renderError("constant %v is not a number", c.Value)
		}
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return "", renderError("constant %v is not a finite number", f)
		}
		s := strconv.FormatFloat(f, 'g', -1, 64)
		if !strings.ContainsAny(s, ".e") {
			s += ".0"
		}
		return s, nil

	case schema.ValueTypeBoolean:
		switch v := c.Value.(type) {
		case bool:
			return strconv.FormatBool(v), nil
		case string:
			if v == "true" || v == "false" {
				return v, nil
			}
		}
		return "", renderError("constant %v is not a boolean", c.Value)

	default:
		return "", renderError("unknown value type %q", c.ValueType)
	}
}

func renderError(format string, args ...any) error {
	return schema.NewErrorf(schema.ErrCodeInvalidArgument, format, args...)
}
