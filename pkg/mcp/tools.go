package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/rendis/certflow/internal/codec"
	"github.com/rendis/certflow/internal/expressions"
	"github.com/rendis/certflow/internal/graph"
	"github.com/rendis/certflow/internal/logging"
	"github.com/rendis/certflow/internal/store"
	"github.com/rendis/certflow/pkg/schema"
)

// --- Tool handlers ---

// validateResponse is the certflow.validate result.
type validateResponse struct {
	Valid     bool           `json:"valid"`
	Errors    []schema.Issue `json:"errors"`
	Warnings  []schema.Issue `json:"warnings"`
	Messages  []string       `json:"messages"`
	Truncated bool           `json:"truncated,omitempty"`
}

func (s *CertflowServer) handleValidate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := formatArg(req, "format")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := codec.Import([]byte(content), format, s.validator)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(s.validateResponse(result.Errors, result.Warnings))
}

func (s *CertflowServer) validateResponse(errs, warnings []schema.Issue) validateResponse {
	if errs == nil {
		errs = []schema.Issue{}
	}
	if warnings == nil {
		warnings = []schema.Issue{}
	}
	all := append(append([]schema.Issue{}, errs...), warnings...)
	shown := schema.TruncateIssues(all, s.issueLimit)
	messages := make([]string, 0, len(shown))
	for _, issue := range shown {
		messages = append(messages, issue.Message(s.messages))
	}
	return validateResponse{
		Valid:     len(errs) == 0,
		Errors:    errs,
		Warnings:  warnings,
		Messages:  messages,
		Truncated: len(shown) < len(all),
	}
}

func (s *CertflowServer) handleConvert(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	from, err := requireFormat(req, "from")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	to, err := requireFormat(req, "to")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	out, err := codec.Convert([]byte(content), from, to)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *CertflowServer) handleDuplicate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := formatArg(req, "format")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	g, err := codec.Deserialize([]byte(content), format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if g == nil {
		g = &schema.Graph{}
	}

	source := g.Nodes
	if id := req.GetString("node_id", ""); id != "" {
		n := graph.Find(g.Nodes, id)
		if n == nil {
			return mcp.NewToolResultError(fmt.Sprintf("node %q not found", id)), nil
		}
		source = []*schema.Node{n}
	}

	copies := graph.Duplicate(source, graph.DuplicateOptions{
		WithCopySuffix: req.GetBool("with_copy_suffix", false),
	})
	out, err := codec.Serialize(&schema.Graph{Nodes: copies}, format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *CertflowServer) handleNewNode(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	t, err := req.RequireString("type")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	n, err := s.factory.CreateNode(schema.NodeType(t))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(n)
}

// evaluateResponse is the certflow.evaluate result.
type evaluateResponse struct {
	Result bool   `json:"result"`
	Engine string `json:"engine"`
}

func (s *CertflowServer) handleEvaluate(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	raw := mcp.ParseStringMap(req, "expression", nil)
	if raw == nil {
		return mcp.NewToolResultError("required argument \"expression\" not found"), nil
	}
	ex, err := schema.DecodeExpr(raw)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	outputs, err := parseOutputs(mcp.ParseStringMap(req, "outputs", nil))
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.engine.Evaluate(ctx, ex, outputs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(evaluateResponse{Result: result, Engine: s.engine.Name()})
}

func (s *CertflowServer) handleQuery(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	var g *schema.Graph
	if id := req.GetString("workflow_id", ""); id != "" {
		if s.service == nil {
			return mcp.NewToolResultError("workflow store is not configured"), nil
		}
		ctx = logging.WithWorkflowID(ctx, id)
		wf, err := s.service.Get(ctx, id)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		doc := wf.Draft
		if len(doc) == 0 {
			doc = wf.Content
		}
		g, err = codec.Deserialize(doc, codec.FormatJSON)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	} else {
		format, err := formatArg(req, "format")
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		g, err = codec.Deserialize([]byte(req.GetString("content", "")), format)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
	}

	results, err := s.query.QueryGraph(ctx, query, g)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(results)
}

func (s *CertflowServer) handleSaveDraft(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.service == nil {
		return mcp.NewToolResultError("workflow store is not configured"), nil
	}
	id, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	content, err := req.RequireString("content")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	format, err := formatArg(req, "format")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	ctx = logging.WithWorkflowID(ctx, id)
	result, err := s.service.ImportDraft(ctx, id, []byte(content), format)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(s.validateResponse(result.Errors, result.Warnings))
}

func (s *CertflowServer) handlePublish(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.service == nil {
		return mcp.NewToolResultError("workflow store is not configured"), nil
	}
	id, err := req.RequireString("workflow_id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := s.service.Publish(logging.WithWorkflowID(ctx, id), id)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(result)
}

func (s *CertflowServer) handleList(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	if s.service == nil {
		return mcp.NewToolResultError("workflow store is not configured"), nil
	}
	filter := store.WorkflowFilter{
		Trigger: req.GetString("trigger", ""),
		Limit:   extractInt(req.GetArguments(), "limit", 0),
	}
	wfs, err := s.service.List(ctx, filter)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return marshalResult(wfs)
}

// --- Helpers ---

func formatArg(req mcp.CallToolRequest, key string) (codec.Format, error) {
	return codec.ParseFormat(req.GetString(key, string(codec.FormatJSON)))
}

func requireFormat(req mcp.CallToolRequest, key string) (codec.Format, error) {
	v, err := req.RequireString(key)
	if err != nil {
		return "", err
	}
	return codec.ParseFormat(v)
}

// parseOutputs converts the generic outputs argument into per-node maps.
func parseOutputs(raw map[string]any) (expressions.Outputs, error) {
	outputs := make(expressions.Outputs, len(raw))
	for id, v := range raw {
		m, ok := v.(map[string]any)
		if !ok {
			return nil, schema.NewErrorf(schema.ErrCodeInvalidArgument, "outputs of node %q must be an object, got %T", id, v)
		}
		outputs[id] = m
	}
	return outputs, nil
}

// extractInt extracts an int from a map, handling JSON float64 values.
func extractInt(args map[string]any, key string, defaultVal int) int {
	v, ok := args[key]
	if !ok {
		return defaultVal
	}
	switch n := v.(type) {
	case float64:
		return int(n)
	case int:
		return n
	default:
		return defaultVal
	}
}

func marshalResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal result: %v", err)), nil
	}
	return mcp.NewToolResultJSON(json.RawMessage(data))
}
