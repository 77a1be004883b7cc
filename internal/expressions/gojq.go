package expressions

import (
	"context"
	"encoding/json"
	"sync"

	"github.com/itchyny/gojq"

	"github.com/rendis/certflow/pkg/schema"
)

// GoJQEngine runs jq queries over exported workflow documents.
// Thread-safe: compiled *gojq.Code objects are cached and reused across goroutines.
type GoJQEngine struct {
	mu    sync.RWMutex
	cache map[string]*gojq.Code
}

// NewGoJQEngine creates a new GoJQ query engine.
func NewGoJQEngine() *GoJQEngine {
	return &GoJQEngine{
		cache: make(map[string]*gojq.Code),
	}
}

// Name returns the engine identifier.
func (e *GoJQEngine) Name() string {
	return "jq"
}

// Query evaluates a jq query against input and returns every output.
// input must already be in generic JSON form (maps, slices, float64).
func (e *GoJQEngine) Query(ctx context.Context, query string, input any) ([]any, error) {
	if query == "" {
		return nil, schema.NewError(schema.ErrCodeInvalidArgument, "empty jq query")
	}

	code, err := e.getOrCompile(query)
	if err != nil {
		return nil, err
	}

	iter := code.RunWithContext(ctx, input)

	results := []any{}
	for {
		val, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := val.(error); isErr {
			return nil, schema.NewErrorf(schema.ErrCodeExecution,
				"jq evaluation failed for %q: %s", query, err.Error()).
				WithCause(err).
				WithDetails(map[string]any{"query": query})
		}
		results = append(results, val)
	}
	return results, nil
}

// QueryGraph runs query over the exported JSON form of g, so paths match the
// document users read and write: .nodes[].data.config and so on.
func (e *GoJQEngine) QueryGraph(ctx context.Context, query string, g *schema.Graph) ([]any, error) {
	if g == nil {
		g = &schema.Graph{}
	}
	data, err := json.Marshal(g)
	if err != nil {
		return nil, schema.NewError(schema.ErrCodeInvalidArgument, "failed to encode graph").WithCause(err)
	}
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, schema.NewError(schema.ErrCodeInvalidArgument, "failed to encode graph").WithCause(err)
	}
	return e.Query(ctx, query, doc)
}

// getOrCompile returns a cached compiled code or compiles and caches a new one.
func (e *GoJQEngine) getOrCompile(query string) (*gojq.Code, error) {
	e.mu.RLock()
	if code, ok := e.cache[query]; ok {
		e.mu.RUnlock()
		return code, nil
	}
	e.mu.RUnlock()

	e.mu.Lock()
	defer e.mu.Unlock()

	// Double-check after acquiring write lock.
	if code, ok := e.cache[query]; ok {
		return code, nil
	}

	parsed, err := gojq.Parse(query)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidArgument,
			"jq parse error in %q: %s", query, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"query": query})
	}

	code, err := gojq.Compile(parsed,
		// Sandbox: return empty env to block $ENV and env access.
		gojq.WithEnvironLoader(func() []string { return nil }),
	)
	if err != nil {
		return nil, schema.NewErrorf(schema.ErrCodeInvalidArgument,
			"jq compile error in %q: %s", query, err.Error()).
			WithCause(err).
			WithDetails(map[string]any{"query": query})
	}

	e.cache[query] = code
	return code, nil
}
