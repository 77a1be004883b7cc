package expressions

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/cel-go/cel"

	"github.com/rendis/certflow/pkg/schema"
)

// CELEngine evaluates branch conditions with Google's Common Expression Language.
// Thread-safe: compiled programs are cached by rendered source.
type CELEngine struct {
	env *cel.Env

	mu    sync.RWMutex
	cache map[string]cel.Program
}

// NewCELEngine creates a CEL engine whose only variable is
// outputs: map(string, dyn), node id to named outputs.
func NewCELEngine() (*CELEngine, error) {
	env, err := cel.NewEnv(
		cel.Variable("outputs", cel.MapType(cel.StringType, cel.DynType)),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("create CEL environment: %w", err)
	}

	return &CELEngine{
		env:   env,
		cache: make(map[string]cel.Program),
	}, nil
}

// Name returns the engine identifier.
func (e *CELEngine) Name() string {
	return EngineCEL
}

// Evaluate renders the expression, compiles it once and evaluates it against outputs.
func (e *CELEngine) Evaluate(ctx context.Context, ex schema.Expr, outputs Outputs) (bool, error) {
	source, activation, err := prepare(ex, outputs)
	if err != nil {
		return false, err
	}

	prg, err := e.getOrCompile(source)
	if err != nil {
		return false, err
	}

	out, _, err := prg.ContextEval(ctx, activation)
	if err != nil {
		return false, schema.NewErrorf(schema.ErrCodeExecution,
			"CEL evaluation failed for %q: %s", source, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": source})
	}
	return asBool(EngineCEL, source, out.Value())
}

func (e *CELEngine) getOrCompile(source string) (cel.Program, error) {
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

	ast, issues := e.env.Compile(source)
	if issues != nil && issues.Err() != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidArgument,
			"CEL compile error in %q: %s", source, issues.Err().Error()).
			WithCause(issues.Err()).
			WithDetails(map[string]any{"expression": source})
	}

	prg, err := e.env.Program(ast, cel.InterruptCheckFrequency(100))
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidArgument,
			"CEL program error for %q: %s", source, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"expression": source})
	}

	e.cache[source] = prg
	return prg, nil
}

var _ Engine = (*CELEngine)(nil)
