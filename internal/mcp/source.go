package mcp

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/deixis/ccinspect/internal/report"
	"github.com/deixis/ccinspect/internal/sections"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

type sourceParams struct {
	Source *string `json:"source,omitempty" jsonschema:"source text to compile; may be empty"`
	Path   string  `json:"path,omitempty" jsonschema:"path to a source file, relative to the workspace; used when source is omitted"`
}

type sectionTool struct {
	name        string
	key         sections.Key
	description string
}

var sectionTools = []sectionTool{
	{
		name: "cc_ast",
		key:  sections.AST,
		description: `Compile source and return the abstract syntax tree.

Pass the program as "source", or a workspace-relative "path".`,
	},
	{
		name: "cc_intermediate",
		key:  sections.Intermediate,
		description: `Compile source and return the intermediate code.

Pass the program as "source", or a workspace-relative "path".`,
	},
	{
		name: "cc_symbols",
		key:  sections.Symbol,
		description: `Compile source and return the symbol table.

Pass the program as "source", or a workspace-relative "path".`,
	},
	{
		name: "cc_output",
		key:  sections.Output,
		description: `Compile and run source, returning what the program printed.

Pass the program as "source", or a workspace-relative "path".`,
	},
}

func (h *handler) sectionHandler(k sections.Key) func(context.Context, *mcp.CallToolRequest, sourceParams) (*mcp.CallToolResult, any, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, params sourceParams) (*mcp.CallToolResult, any, error) {
		source, err := h.readSource(params)
		if err != nil {
			return errorResult(err.Error())
		}

		rr := h.engine.Inspect(ctx, source)
		text := h.engine.Display(rr, k)
		if rr.Outcome() != report.OK {
			return errorResult(text)
		}
		return textResult(text)
	}
}

// readSource returns the inline source, or the contents of the file at
// params.Path. Paths must stay inside the workspace.
func (h *handler) readSource(params sourceParams) (string, error) {
	if params.Source != nil {
		return *params.Source, nil
	}
	if params.Path == "" {
		return "", fmt.Errorf("either source or path is required")
	}
	path, err := h.resolvePath(params.Path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading source: %w", err)
	}
	return string(data), nil
}

// resolvePath resolves p relative to the workspace and validates it
// is within the workspace boundary.
func (h *handler) resolvePath(p string) (string, error) {
	var path string
	if filepath.IsAbs(p) {
		path = filepath.Clean(p)
	} else {
		path = filepath.Clean(filepath.Join(h.workspace, p))
	}

	rel, err := filepath.Rel(h.workspace, path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}
	if rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("path %q is outside workspace %q", p, h.workspace)
	}
	return path, nil
}
