// Package mcpserver exposes the tool classifier to agents as MCP tools.
package mcpserver

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/matiasleandrokruk/toolscope/internal/domain/tool"
	"github.com/matiasleandrokruk/toolscope/internal/version"
)

const (
	ToolFilterSearchTools  = "filter_search_tools"
	ToolBuildToolsContext  = "build_tools_context"
	ToolCatalogSearchTools = "catalog_search_tools"
)

type ToolsInput struct {
	Tools []tool.Descriptor `json:"tools" jsonschema:"tool descriptors with name and description"`
}

type FilterOutput struct {
	Tools    []tool.Descriptor `json:"tools"`
	Input    int               `json:"input"`
	Output   int               `json:"output"`
	Excluded int               `json:"excluded"`
}

type ContextOutput struct {
	Context string `json:"context"`
}

type CatalogInput struct{}

type CatalogOutput struct {
	Tools   []tool.Descriptor `json:"tools"`
	Context string            `json:"context"`
}

// Option configures the server.
type Option func(*handlers)

// WithCatalog adds catalog_search_tools, serving the search tools stored for
// workspaceID. Filter calls are then also recorded as runs in that workspace.
func WithCatalog(registry *tool.ToolRegistry, workspaceID string) Option {
	return func(h *handlers) {
		h.registry = registry
		h.workspaceID = workspaceID
	}
}

type handlers struct {
	classifier  *tool.Classifier
	registry    *tool.ToolRegistry
	workspaceID string
	logger      zerolog.Logger
}

// New builds an MCP server backed by classifier. Run it with Serve or connect it
// to any transport.
func New(classifier *tool.Classifier, logger zerolog.Logger, opts ...Option) *mcp.Server {
	h := &handlers{
		classifier: classifier,
		logger:     logger.With().Str("component", "mcp_server").Logger(),
	}
	for _, opt := range opts {
		opt(h)
	}

	server := mcp.NewServer(&mcp.Implementation{Name: version.Name, Version: version.Version}, nil)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolFilterSearchTools,
		Description: "Filter a tool list down to read-only search tools, preserving order.",
	}, h.filter)
	mcp.AddTool(server, &mcp.Tool{
		Name:        ToolBuildToolsContext,
		Description: "Render a tool list as one '- name: description' line per tool.",
	}, h.buildContext)
	if h.registry != nil {
		mcp.AddTool(server, &mcp.Tool{
			Name:        ToolCatalogSearchTools,
			Description: "List the cataloged search tools of the configured workspace with their prompt context.",
		}, h.catalog)
	}
	return server
}

// Serve runs server over stdin/stdout until ctx is done or the client disconnects.
func Serve(ctx context.Context, server *mcp.Server) error {
	return server.Run(ctx, &mcp.StdioTransport{})
}

func (h *handlers) filter(ctx context.Context, _ *mcp.CallToolRequest, in ToolsInput) (*mcp.CallToolResult, FilterOutput, error) {
	kept, err := h.classifier.FilterSearchTools(in.Tools)
	if err != nil {
		return nil, FilterOutput{}, err
	}
	out := FilterOutput{
		Tools:    kept,
		Input:    len(in.Tools),
		Output:   len(kept),
		Excluded: len(in.Tools) - len(kept),
	}
	h.recordRun(ctx, out.Input, out.Output)
	return nil, out, nil
}

func (h *handlers) buildContext(_ context.Context, _ *mcp.CallToolRequest, in ToolsInput) (*mcp.CallToolResult, ContextOutput, error) {
	if err := tool.ValidateDescriptors(in.Tools); err != nil {
		return nil, ContextOutput{}, err
	}
	return nil, ContextOutput{Context: h.classifier.BuildToolsContext(in.Tools)}, nil
}

func (h *handlers) catalog(ctx context.Context, _ *mcp.CallToolRequest, _ CatalogInput) (*mcp.CallToolResult, CatalogOutput, error) {
	defs, err := h.registry.ListSearchTools(ctx, h.workspaceID)
	if err != nil {
		return nil, CatalogOutput{}, fmt.Errorf("list catalog search tools: %w", err)
	}
	descs := tool.ToDescriptors(defs)
	return nil, CatalogOutput{Tools: descs, Context: tool.BuildContext(descs)}, nil
}

func (h *handlers) recordRun(ctx context.Context, input, output int) {
	if h.registry == nil {
		return
	}
	_, err := h.registry.RecordRun(ctx, tool.RecordRunInput{
		WorkspaceID: h.workspaceID,
		Trigger:     tool.TriggerMCP,
		Input:       input,
		Output:      output,
	})
	if err != nil {
		h.logger.Warn().Err(err).Msg("record classification run")
	}
}
