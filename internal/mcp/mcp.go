// Package mcp provides the ccinspect MCP server, registering the section
// tools and publishing model instructions.
package mcp

import (
	"context"
	_ "embed"
	"net/url"
	"time"

	"github.com/deixis/ccinspect"
	"github.com/deixis/ccinspect/internal/config"
	"github.com/deixis/ccinspect/internal/inspect"
	"github.com/deixis/ccinspect/internal/report"
	"github.com/deixis/ccinspect/internal/runner"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

//go:embed instructions.md
var Instructions string

// RecentLister lists recently stored runs. Implemented by report.LRUStore.
type RecentLister interface {
	Recent() []*report.RunResult
}

// handler holds shared dependencies for all tool handlers.
type handler struct {
	engine    *inspect.Engine
	workspace string // source paths resolve against it and must stay inside it
}

// NewServer creates an MCP server with all ccinspect tools registered.
// engine.Store must be set for cc_run and cc_section to be useful.
func NewServer(engine *inspect.Engine, workspace string) *mcp.Server {
	h := &handler{engine: engine, workspace: workspace}

	mcpOpts := &mcp.ServerOptions{
		Instructions: Instructions,
		Capabilities: &mcp.ServerCapabilities{
			Tools: &mcp.ToolCapabilities{ListChanged: false},
		},
		InitializedHandler: func(ctx context.Context, req *mcp.InitializedRequest) {
			h.updateWorkspaceFromRoots(ctx, req.Session)
		},
	}
	s := mcp.NewServer(&mcp.Implementation{Name: "ccinspect", Version: ccinspect.Version}, mcpOpts)

	for _, t := range sectionTools {
		mcp.AddTool(s, &mcp.Tool{
			Name:        t.name,
			Description: t.description,
		}, h.sectionHandler(t.key))
	}

	mcp.AddTool(s, &mcp.Tool{
		Name: "cc_run",
		Description: `Compile source once and store the run.

Returns the run ID, whether the compiler succeeded, and which sections it printed.
Fetch individual sections with cc_section without recompiling.`,
	}, h.runHandler)

	mcp.AddTool(s, &mcp.Tool{
		Name: "cc_section",
		Description: `Show one section of a stored cc_run result.

section is one of ast, intermediate, symbol, output (aliases: ir, symbols).`,
	}, h.sectionFromRunHandler)

	if _, ok := engine.Store.(RecentLister); ok {
		mcp.AddTool(s, &mcp.Tool{
			Name:        "cc_runs",
			Description: "List recent compiler runs, most recent first.",
		}, h.runsHandler)
	}

	return s
}

// updateWorkspaceFromRoots queries the client for MCP roots and reloads
// the config from the first file root. This is called during session
// initialization, before any tool calls.
func (h *handler) updateWorkspaceFromRoots(ctx context.Context, session *mcp.ServerSession) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	roots, err := session.ListRoots(ctx, &mcp.ListRootsParams{})
	if err != nil {
		return
	}
	if len(roots.Roots) == 0 {
		return
	}

	u, err := url.Parse(roots.Roots[0].URI)
	if err != nil || u.Scheme != "file" {
		return
	}
	_ = h.reload(u.Path)
}

// reload loads the config found from workspace and applies all of it:
// compiler settings, display settings and the run store. Runs stored
// before the reload are no longer reachable through cc_section.
func (h *handler) reload(workspace string) error {
	loaded, err := config.Load(workspace)
	if err != nil {
		return err
	}
	cfg := loaded.Config
	fresh := inspect.New(cfg, h.engine.Metrics, h.engine.Logger)

	if _, ok := h.engine.Runner.(*runner.Runner); ok {
		h.engine.Runner = fresh.Runner
	}
	h.engine.Store = fresh.Store
	h.engine.Config = cfg
	h.workspace = workspace
	return nil
}

// textResult is a helper to build a text-only tool result.
func textResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}, nil, nil
}

// errorResult is a helper to build an error tool result.
func errorResult(text string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
		IsError: true,
	}, nil, nil
}
