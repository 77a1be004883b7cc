package schema

import (
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// ExprKind discriminates expression variants on the wire.
type ExprKind string

const (
	ExprKindConstant   ExprKind = "const"
	ExprKindVariable   ExprKind = "var"
	ExprKindComparison ExprKind = "comparison"
	ExprKindLogical    ExprKind = "logical"
	ExprKindNot        ExprKind = "not"
)

// ValueType is the declared type of a constant or selector.
type ValueType string

const (
	ValueTypeString  ValueType = "string"
	ValueTypeNumber  ValueType = "number"
	ValueTypeBoolean ValueType = "boolean"
)

func (t ValueType) valid() bool {
	return t == ValueTypeString || t == ValueTypeNumber || t == ValueTypeBoolean
}

// ComparisonOperator is the operator of a ComparisonExpr.
type ComparisonOperator string

const (
	OpGreaterThan        ComparisonOperator = "gt"
	OpGreaterThanOrEqual ComparisonOperator = "gte"
	OpLessThan           ComparisonOperator = "lt"
	OpLessThanOrEqual    ComparisonOperator = "lte"
	OpEqual              ComparisonOperator = "eq"
	OpNotEqual           ComparisonOperator = "neq"
)

var comparisonOperators = []ComparisonOperator{
	OpGreaterThan, OpGreaterThanOrEqual, OpLessThan, OpLessThanOrEqual, OpEqual, OpNotEqual,
}

// LogicalOperator is the operator of a LogicalExpr.
type LogicalOperator string

const (
	OpAnd LogicalOperator = "and"
	OpOr  LogicalOperator = "or"
	OpNot LogicalOperator = "not"
)

// Expr is a branch-condition expression. The set of variants is closed.
type Expr interface {
	Kind() ExprKind
	isExpr()
}

// Selector references a named output of another node.
type Selector struct {
	ID   string    `json:"id" yaml:"id"`
	Name string    `json:"name" yaml:"name"`
	Type ValueType `json:"type" yaml:"type"`
}

// ConstantExpr is a literal with a declared type.
type ConstantExpr struct {
	Value     any
	ValueType ValueType
}

// VariableExpr reads a node output.
type VariableExpr struct {
	Selector Selector
}

// ComparisonExpr compares two operands.
type ComparisonExpr struct {
	Operator ComparisonOperator
	Left     Expr
	Right    Expr
}

// LogicalExpr combines two operands. With OpNot only Left is used.
type LogicalExpr struct {
	Operator LogicalOperator
	Left     Expr
	Right    Expr
}

// NotExpr negates its operand.
type NotExpr struct {
	Expr Expr
}

func (*ConstantExpr) Kind() ExprKind   { return ExprKindConstant }
func (*VariableExpr) Kind() ExprKind   { return ExprKindVariable }
func (*ComparisonExpr) Kind() ExprKind { return ExprKindComparison }
func (*LogicalExpr) Kind() ExprKind    { return ExprKindLogical }
func (*NotExpr) Kind() ExprKind        { return ExprKindNot }

func (*ConstantExpr) isExpr()   {}
func (*VariableExpr) isExpr()   {}
func (*ComparisonExpr) isExpr() {}
func (*LogicalExpr) isExpr()    {}
func (*NotExpr) isExpr()        {}

// --- Wire form ---

type constantWire struct {
	Type      ExprKind  `json:"type" yaml:"type"`
	Value     any       `json:"value" yaml:"value"`
	ValueType ValueType `json:"valueType" yaml:"valueType"`
}

type variableWire struct {
	Type     ExprKind `json:"type" yaml:"type"`
	Selector Selector `json:"selector" yaml:"selector"`
}

type binaryWire struct {
	Type     ExprKind `json:"type" yaml:"type"`
	Operator string   `json:"operator" yaml:"operator"`
	Left     Expr     `json:"left" yaml:"left"`
	Right    Expr     `json:"right,omitempty" yaml:"right,omitempty"`
}

type notWire struct {
	Type ExprKind `json:"type" yaml:"type"`
	Expr Expr     `json:"expr" yaml:"expr"`
}

func (e *ConstantExpr) wire() any {
	return constantWire{Type: ExprKindConstant, Value: e.Value, ValueType: e.ValueType}
}

func (e *VariableExpr) wire() any {
	return variableWire{Type: ExprKindVariable, Selector: e.Selector}
}

func (e *ComparisonExpr) wire() any {
	return binaryWire{Type: ExprKindComparison, Operator: string(e.Operator), Left: e.Left, Right: e.Right}
}

func (e *LogicalExpr) wire() any {
	return binaryWire{Type: ExprKindLogical, Operator: string(e.Operator), Left: e.Left, Right: e.Right}
}

func (e *NotExpr) wire() any {
	return notWire{Type: ExprKindNot, Expr: e.Expr}
}

func (e *ConstantExpr) MarshalJSON() ([]byte, error)   { return json.Marshal(e.wire()) }
func (e *VariableExpr) MarshalJSON() ([]byte, error)   { return json.Marshal(e.wire()) }
func (e *ComparisonExpr) MarshalJSON() ([]byte, error) { return json.Marshal(e.wire()) }
func (e *LogicalExpr) MarshalJSON() ([]byte, error)    { return json.Marshal(e.wire()) }
func (e *NotExpr) MarshalJSON() ([]byte, error)        { return json.Marshal(e.wire()) }

func (e *ConstantExpr) MarshalYAML() (any, error)   { return e.wire(), nil }
func (e *VariableExpr) MarshalYAML() (any, error)   { return e.wire(), nil }
func (e *ComparisonExpr) MarshalYAML() (any, error) { return e.wire(), nil }
func (e *LogicalExpr) MarshalYAML() (any, error)    { return e.wire(), nil }
func (e *NotExpr) MarshalYAML() (any, error)        { return e.wire(), nil }

// UnmarshalExprJSON decodes a JSON expression document.
func UnmarshalExprJSON(data []byte) (Expr, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, NewError(ErrCodeInvalidContent, "expression is not valid JSON").WithCause(err)
	}
	return DecodeExpr(raw)
}

// --- Decoding ---

type exprFrame struct {
	raw      map[string]any
	parent   int
	key      string
	kind     ExprKind
	children []int
	built    Expr
}

// framePath rebuilds the location of frame idx by following parent links.
// Paths are only needed for errors, so frames never store them.
func framePath(frames []*exprFrame, idx int) string {
	var keys []string
	for i := idx; i > 0; i = frames[i].parent {
		keys = append(keys, frames[i].key)
	}
	var b strings.Builder
	b.WriteString("$")
	for i := len(keys) - 1; i >= 0; i-- {
		b.WriteByte('.')
		b.WriteString(keys[i])
	}
	return b.String()
}

// DecodeExpr converts a generic JSON/YAML tree into an expression.
// Nodes are discovered with an explicit stack and built children-first, so
// arbitrarily deep input does not grow the Go call stack. Each object is
// normalized shallowly as it is visited, so time and memory stay linear in
// the number of nodes.
func DecodeExpr(raw any) (Expr, error) {
	if e, ok := raw.(Expr); ok {
		return e, nil
	}
	root, ok := asObject(raw)
	if !ok {
		return nil, invalidExpr("$", "expression must be an object")
	}

	frames := []*exprFrame{{raw: root, parent: -1}}
	fail := func(idx int, suffix, msg string) error {
		return invalidExpr(framePath(frames, idx)+suffix, msg)
	}

	stack := []int{0}
	for len(stack) > 0 {
		idx := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		f := frames[idx]

		f.kind = ExprKind(coerceString(f.raw["type"]))
		var keys []string
		switch f.kind {
		case ExprKindConstant, ExprKindVariable:
		case ExprKindComparison:
			keys = []string{"left", "right"}
		case ExprKindLogical:
			keys = []string{"left", "right"}
			if LogicalOperator(coerceString(f.raw["operator"])) == OpNot && f.raw["right"] == nil {
				keys = []string{"left"}
			}
		case ExprKindNot:
			keys = []string{"expr"}
		default:
			return nil, fail(idx, "", fmt.Sprintf("unknown expression type %q", f.kind))
		}

		for _, key := range keys {
			child, ok := asObject(f.raw[key])
			if !ok {
				return nil, fail(idx, "."+key, "operand must be an expression object")
			}
			frames = append(frames, &exprFrame{raw: child, parent: idx, key: key})
			f.children = append(f.children, len(frames)-1)
			stack = append(stack, len(frames)-1)
		}
	}

	// Children always sit at higher indices than their parent.
	for i := len(frames) - 1; i >= 0; i-- {
		f := frames[i]
		kid := func(n int) Expr { return frames[f.children[n]].built }

		switch f.kind {
		case ExprKindConstant:
			e, suffix, msg := decodeConstant(f.raw)
			if e == nil {
				return nil, fail(i, suffix, msg)
			}
			f.built = e
		case ExprKindVariable:
			e, suffix, msg := decodeVariable(f.raw)
			if e == nil {
				return nil, fail(i, suffix, msg)
			}
			f.built = e
		case ExprKindComparison:
			op := ComparisonOperator(coerceString(f.raw["operator"]))
			if !slices.Contains(comparisonOperators, op) {
				return nil, fail(i, ".operator", fmt.Sprintf("unknown comparison operator %q", op))
			}
			f.built = &ComparisonExpr{Operator: op, Left: kid(0), Right: kid(1)}
		case ExprKindLogical:
			op := LogicalOperator(coerceString(f.raw["operator"]))
			switch op {
			case OpAnd, OpOr:
				f.built = &LogicalExpr{Operator: op, Left: kid(0), Right: kid(1)}
			case OpNot:
				e := &LogicalExpr{Operator: op, Left: kid(0)}
				if len(f.children) > 1 {
					e.Right = kid(1)
				}
				f.built = e
			default:
				return nil, fail(i, ".operator", fmt.Sprintf("unknown logical operator %q", op))
			}
		case ExprKindNot:
			f.built = &NotExpr{Expr: kid(0)}
		}
		// Release the child frames; only the built tree is kept.
		for _, c := range f.children {
			frames[c] = nil
		}
	}
	return frames[0].built, nil
}

// asObject returns v as a string-keyed mapping without copying nested values.
// YAML mappings with non-string keys get their keys stringified.
func asObject(v any) (map[string]any, bool) {
	switch m := v.(type) {
	case map[string]any:
		return m, true
	case map[any]any:
		out := make(map[string]any, len(m))
		for k, item := range m {
			out[fmt.Sprint(k)] = item
		}
		return out, true
	default:
		return nil, false
	}
}

// decodeConstant returns the constant, or nil with the failing field suffix
// and a message.
func decodeConstant(raw map[string]any) (*ConstantExpr, string, string) {
	value := raw["value"]
	switch value.(type) {
	case map[string]any, map[any]any, []any:
		return nil, ".value", "constant value must be a scalar"
	}
	value = normalizeValue(value)

	vt := ValueType(coerceString(raw["valueType"]))
	if vt == "" {
		switch value.(type) {
		case bool:
			vt = ValueTypeBoolean
		case float64:
			vt = ValueTypeNumber
		default:
			vt = ValueTypeString
		}
	}
	if !vt.valid() {
		return nil, ".valueType", fmt.Sprintf("unknown value type %q", vt)
	}
	switch value.(type) {
	case nil, string, float64, bool:
	default:
		return nil, ".value", "constant value must be a scalar"
	}
	return &ConstantExpr{Value: value, ValueType: vt}, "", ""
}

func decodeVariable(raw map[string]any) (*VariableExpr, string, string) {
	sel, ok := asObject(raw["selector"])
	if !ok {
		return nil, ".selector", "variable requires a selector object"
	}
	s := Selector{
		ID:   coerceString(sel["id"]),
		Name: coerceString(sel["name"]),
		Type: ValueType(coerceString(sel["type"])),
	}
	if s.ID == "" || s.Name == "" {
		return nil, ".selector", "selector requires id and name"
	}
	if s.Type != "" && !s.Type.valid() {
		return nil, ".selector.type", fmt.Sprintf("unknown value type %q", s.Type)
	}
	return &VariableExpr{Selector: s}, "", ""
}

func invalidExpr(path, msg string) *CertflowError {
	return NewErrorf(ErrCodeInvalidArgument, "%s: %s", path, msg).
		WithDetails(map[string]any{"path": path})
}

// --- Traversal ---

// WalkExpr visits every node of root in pre-order using an explicit stack.
// Returning false from fn skips that node's operands.
func WalkExpr(root Expr, fn func(Expr) bool) {
	if root == nil {
		return
	}
	stack := []Expr{root}
	for len(stack) > 0 {
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if e == nil || !fn(e) {
			continue
		}
		// Push right before left so left is visited first.
		switch v := e.(type) {
		case *ComparisonExpr:
			stack = append(stack, v.Right, v.Left)
		case *LogicalExpr:
			stack = append(stack, v.Right, v.Left)
		case *NotExpr:
			stack = append(stack, v.Expr)
		}
	}
}

// Variables returns every selector referenced by root, in pre-order.
func Variables(root Expr) []Selector {
	var out []Selector
	WalkExpr(root, func(e Expr) bool {
		if v, ok := e.(*VariableExpr); ok {
			out = append(out, v.Selector)
		}
		return true
	})
	return out
}

// CloneExpr returns a deep copy of root.
func CloneExpr(root Expr) Expr {
	if root == nil {
		return nil
	}
	var order []Expr
	WalkExpr(root, func(e Expr) bool {
		order = append(order, e)
		return true
	})

	clones := make(map[Expr]Expr, len(order))
	get := func(e Expr) Expr {
		if e == nil {
			return nil
		}
		return clones[e]
	}
	// Reverse pre-order puts every operand before its parent.
	for i := len(order) - 1; i >= 0; i-- {
		switch v := order[i].(type) {
		case *ConstantExpr:
			clones[v] = &ConstantExpr{Value: v.Value, ValueType: v.ValueType}
		case *VariableExpr:
			clones[v] = &VariableExpr{Selector: v.Selector}
		case *ComparisonExpr:
			clones[v] = &ComparisonExpr{Operator: v.Operator, Left: get(v.Left), Right: get(v.Right)}
		case *LogicalExpr:
			clones[v] = &LogicalExpr{Operator: v.Operator, Left: get(v.Left), Right: get(v.Right)}
		case *NotExpr:
			clones[v] = &NotExpr{Expr: get(v.Expr)}
		}
	}
	return clones[root]
}
