package expressions

import (
	"context"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/rendis/certflow/pkg/schema"
)

// ExprEngine evaluates branch conditions with expr-lang/expr.
// Thread-safe: compiled *vm.Program objects are cached by rendered source.
type ExprEngine struct {
	mu    sync.RWMutex
	cache map[string]*vm.Program
}

// NewExprEngine creates a new Expr expression engine.
func NewExprEngine() *ExprEngine {
	return &ExprEngine{
		cache: make(map[string]*vm.Program),
	}
}

// Name returns the engine identifier.
func (e *ExprEngine) Name() string {
	return EngineExpr
}

// Evaluate renders the expression, compiles it once and runs it against outputs.
func (e *ExprEngine) Evaluate(ctx context.Context, ex schema.Expr, outputs Outputs) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	source, env, err := prepare(ex, outputs)
	if err != nil {
		return false, err
	}

	prg, err := e.getOrCompile(source)
	if err != nil {
		return false, err
	}

	out, err := vm.Run(prg, env)
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"expr evaluation failed for %q: %s", source, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": source})
	}
	return asBool(EngineExpr, source, out)
}

func (e *ExprEngine) getOrCompile(source string) (*vm.Program, error) {
	e.mu.RLock()
	if prg, ok := e.cache[source]; ok {
		e.mu.RUnlock()
		return prg, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if prg, ok := e.cache[source]; ok {
		return prg, nil
	}

	prg, err := expr.Compile(source,
		expr.Env(map[string]any{"outputs": map[string]any{}}),
		expr.AllowUndefinedVariables(),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidArgument,
			"expr compile error in %q: %s", source, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": source})
	}

	e.cache[source] = prg
	return prg, nil
}

var _ Engine = (*ExprEngine)(nil)
