package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/deixis/ccinspect/internal/report"
	"github.com/deixis/ccinspect/internal/sections"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func (h *handler) runHandler(ctx context.Context, req *mcp.CallToolRequest, params sourceParams) (*mcp.CallToolResult, any, error) {
	source, err := h.readSource(params)
	if err != nil {
		return errorResult(err.Error())
	}

	rr := h.engine.Inspect(ctx, source)
	text := formatRun(rr)
	if rr.Outcome() != report.OK {
		return errorResult(text)
	}
	return textResult(text)
}

type sectionParams struct {
	RunID   string `json:"run_id" jsonschema:"the run ID from a cc_run result"`
	Section string `json:"section" jsonschema:"one of ast, intermediate, symbol, output"`
}

func (h *handler) sectionFromRunHandler(ctx context.Context, req *mcp.CallToolRequest, params sectionParams) (*mcp.CallToolResult, any, error) {
	if params.RunID == "" {
		return errorResult("run_id is required")
	}
	k, err := sections.ParseKey(params.Section)
	if err != nil {
		return errorResult(err.Error())
	}
	if h.engine.Store == nil {
		return errorResult("runs are not being stored")
	}

	rr, err := h.engine.Store.Load(params.RunID)
	if err != nil {
		return errorResult(fmt.Sprintf("Failed to load run %s: %v", params.RunID, err))
	}

	text := h.engine.Display(rr, k)
	if rr.Outcome() != report.OK {
		return errorResult(text)
	}
	return textResult(text)
}

type runsParams struct{}

func (h *handler) runsHandler(ctx context.Context, req *mcp.CallToolRequest, _ runsParams) (*mcp.CallToolResult, any, error) {
	lister, ok := h.engine.Store.(RecentLister)
	if !ok {
		return errorResult("run history is not available")
	}
	runs := lister.Recent()
	if len(runs) == 0 {
		return textResult("No runs yet.")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Runs (%d):\n", len(runs))
	for _, rr := range runs {
		fmt.Fprintf(&b, "  %s  %s  %-10s %s\n",
			rr.ID, rr.CreatedAt.Format("15:04:05"), rr.Outcome(), presentList(rr))
	}
	return textResult(b.String())
}

func formatRun(rr *report.RunResult) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Status: %s\n", strings.ToUpper(string(rr.Outcome())))
	fmt.Fprintf(&b, "Run: %s\n", rr.ID)
	fmt.Fprintln(&b)

	switch rr.Outcome() {
	case report.Failure:
		fmt.Fprintf(&b, "Failure (%s): %s\n", rr.Failure, rr.Error)
		return b.String()
	case report.Diagnostic:
		fmt.Fprintln(&b, "Compiler diagnostics:")
		fmt.Fprint(&b, rr.Stderr)
		if !strings.HasSuffix(rr.Stderr, "\n") {
			fmt.Fprintln(&b)
		}
		return b.String()
	}

	if len(rr.Sections) == 0 {
		fmt.Fprintln(&b, "Sections: none")
	} else {
		fmt.Fprintf(&b, "Sections: %s\n", presentList(rr))
	}
	if len(rr.Preamble) > 0 {
		fmt.Fprintf(&b, "Preamble: %s\n", strings.Join(rr.Preamble, " / "))
	}
	if rr.Truncated {
		fmt.Fprintln(&b, "Warning: compiler output was truncated")
	}
	fmt.Fprintln(&b)
	fmt.Fprintf(&b, "Inspect with cc_section(run_id=%q, section=\"<ast|intermediate|symbol|output>\").\n", rr.ID)

	return b.String()
}

// presentList renders the sections of rr in protocol order, marking
// present-but-empty ones.
func presentList(rr *report.RunResult) string {
	var parts []string
	for _, k := range rr.Sections.Present() {
		if rr.Sections[k] == "" {
			parts = append(parts, string(k)+" (empty)")
		} else {
			parts = append(parts, string(k))
		}
	}
	if len(parts) == 0 {
		return "-"
	}
	return strings.Join(parts, ", ")
}
