package mcp

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/rendis/certflow/internal/expressions"
	"github.com/rendis/certflow/internal/graph"
	"github.com/rendis/certflow/internal/logging"
	"github.com/rendis/certflow/internal/validation"
	"github.com/rendis/certflow/internal/workflow"
	"github.com/rendis/certflow/pkg/schema"
)

// CertflowServerDeps holds the dependencies for creating a CertflowServer.
// Service may be nil, in which case the record tools report an error.
type CertflowServerDeps struct {
	Service    *workflow.Service
	Validator  validation.Validator
	Factory    *graph.Factory
	Engine     expressions.Engine
	Query      *expressions.GoJQEngine
	Messages   schema.Lookup
	IssueLimit int
	Version    string
	Logger     *slog.Logger
}

// CertflowServer wraps an MCP server with certflow tool handlers.
type CertflowServer struct {
	service    *workflow.Service
	validator  validation.Validator
	factory    *graph.Factory
	engine     expressions.Engine
	query      *expressions.GoJQEngine
	messages   schema.Lookup
	issueLimit int
	logger     *slog.Logger
	mcpServer  *server.MCPServer
}

// NewCertflowServer creates a CertflowServer with every tool registered.
// Missing stateless dependencies get defaults.
func NewCertflowServer(deps CertflowServerDeps) (*CertflowServer, error) {
	logger := deps.Logger
	if logger == nil {
		logger = logging.New(slog.LevelInfo, os.Stderr)
	}

	s := &CertflowServer{
		service:    deps.Service,
		validator:  deps.Validator,
		factory:    deps.Factory,
		engine:     deps.Engine,
		query:      deps.Query,
		messages:   deps.Messages,
		issueLimit: deps.IssueLimit,
		logger:     logger,
	}
	if s.validator == nil {
		v, err := validation.NewWorkflowValidator()
		if err != nil {
			return nil, err
		}
		s.validator = v
	}
	if s.factory == nil {
		s.factory = graph.NewFactory(s.messages)
	}
	if s.engine == nil {
		s.engine = expressions.NewExprEngine()
	}
	if s.query == nil {
		s.query = expressions.NewGoJQEngine()
	}
	if s.messages == nil {
		s.messages = schema.Catalog{}
	}

	version := deps.Version
	if version == "" {
		version = "dev"
	}
	mcpSrv := server.NewMCPServer(
		"certflow",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
		server.WithInstructions("Certflow edits certificate automation workflows. Use certflow.new_node to build nodes, certflow.validate to check a graph, certflow.duplicate to copy subtrees, certflow.evaluate to test branch conditions, and certflow.save_draft / certflow.publish to manage stored workflows."),
	)

	mcpSrv.AddTools(s.tools()...)
	s.mcpServer = mcpSrv
	return s, nil
}

// Serve starts the stdio transport and blocks until ctx is cancelled or stdin closes.
func (s *CertflowServer) Serve(ctx context.Context) error {
	stdio := server.NewStdioServer(s.mcpServer)
	return stdio.Listen(ctx, os.Stdin, os.Stdout)
}

// MCPServer returns the underlying MCPServer for testing or custom transports.
func (s *CertflowServer) MCPServer() *server.MCPServer {
	return s.mcpServer
}

func (s *CertflowServer) tools() []server.ServerTool {
	entries := []struct {
		tool    mcp.Tool
		handler server.ToolHandlerFunc
	}{
		{validateTool(), s.handleValidate},
		{convertTool(), s.handleConvert},
		{duplicateTool(), s.handleDuplicate},
		{newNodeTool(), s.handleNewNode},
		{evaluateTool(), s.handleEvaluate},
		{queryTool(), s.handleQuery},
		{saveDraftTool(), s.handleSaveDraft},
		{publishTool(), s.handlePublish},
		{listTool(), s.handleList},
	}
	out := make([]server.ServerTool, 0, len(entries))
	for _, e := range entries {
		out = append(out, server.ServerTool{Tool: e.tool, Handler: s.instrument(e.tool.Name, e.handler)})
	}
	return out
}

// instrument tags the context with the tool name and logs each call.
func (s *CertflowServer) instrument(name string, h server.ToolHandlerFunc) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		ctx = logging.WithTool(ctx, name)
		start := time.Now()
		result, err := h(ctx, req)
		failed := err != nil || (result != nil && result.IsError)
		s.logger.DebugContext(ctx, "tool call", "duration", time.Since(start), "failed", failed)
		return result, err
	}
}

// --- Tool definitions ---

var formatEnum = mcp.Enum("json", "yaml")

func validateTool() mcp.Tool {
	return mcp.NewTool("certflow.validate",
		mcp.WithDescription("Validate a workflow graph document"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Graph document text")),
		mcp.WithString("format", formatEnum, mcp.Description("Document format (default: json)")),
	)
}

func convertTool() mcp.Tool {
	return mcp.NewTool("certflow.convert",
		mcp.WithDescription("Convert a workflow graph document between JSON and YAML"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Graph document text")),
		mcp.WithString("from", mcp.Required(), formatEnum, mcp.Description("Source format")),
		mcp.WithString("to", mcp.Required(), formatEnum, mcp.Description("Target format")),
	)
}

func duplicateTool() mcp.Tool {
	return mcp.NewTool("certflow.duplicate",
		mcp.WithDescription("Duplicate workflow nodes with fresh ids"),
		mcp.WithString("content", mcp.Required(), mcp.Description("Graph document text")),
		mcp.WithString("format", formatEnum, mcp.Description("Document format (default: json)")),
		mcp.WithString("node_id", mcp.Description("Duplicate only this node and its subtree (default: every top-level node)")),
		mcp.WithBoolean("with_copy_suffix", mcp.Description("Append -copy to the names of the duplicated top-level nodes")),
	)
}

func newNodeTool() mcp.Tool {
	types := make([]string, 0, len(schema.NodeTypes()))
	for _, t := range schema.NodeTypes() {
		types = append(types, string(t))
	}
	return mcp.NewTool("certflow.new_node",
		mcp.WithDescription("Create a node with default name, config and children"),
		mcp.WithString("type", mcp.Required(), mcp.Enum(types...), mcp.Description("Node type")),
	)
}

func evaluateTool() mcp.Tool {
	return mcp.NewTool("certflow.evaluate",
		mcp.WithDescription("Evaluate a branch condition against node outputs"),
		mcp.WithObject("expression", mcp.Required(), mcp.Description("Condition expression tree")),
		mcp.WithObject("outputs", mcp.Description("Node outputs keyed by node id, then output name")),
	)
}

func queryTool() mcp.Tool {
	return mcp.NewTool("certflow.query",
		mcp.WithDescription("Run a jq query over a workflow graph"),
		mcp.WithString("query", mcp.Required(), mcp.Description("jq query, e.g. .nodes[].id")),
		mcp.WithString("content", mcp.Description("Graph document text")),
		mcp.WithString("format", formatEnum, mcp.Description("Document format (default: json)")),
		mcp.WithString("workflow_id", mcp.Description("Query a stored workflow's draft instead of content")),
	)
}

func saveDraftTool() mcp.Tool {
	return mcp.NewTool("certflow.save_draft",
		mcp.WithDescription("Save a graph document as a stored workflow's draft"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Stored workflow ID")),
		mcp.WithString("content", mcp.Required(), mcp.Description("Graph document text")),
		mcp.WithString("format", formatEnum, mcp.Description("Document format (default: json)")),
	)
}

func publishTool() mcp.Tool {
	return mcp.NewTool("certflow.publish",
		mcp.WithDescription("Validate and publish a stored workflow's draft"),
		mcp.WithString("workflow_id", mcp.Required(), mcp.Description("Stored workflow ID")),
	)
}

func listTool() mcp.Tool {
	return mcp.NewTool("certflow.list",
		mcp.WithDescription("List stored workflows"),
		mcp.WithString("trigger", mcp.Enum(schema.TriggerManual, schema.TriggerScheduled), mcp.Description("Only workflows with this trigger")),
		mcp.WithNumber("limit", mcp.Description("Maximum number of records")),
	)
}
