package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskforge/specdrive/internal/history"
	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/syncer"
)

// VerifyTool handles the spec_verify MCP tool: detect (and optionally
// repair) divergence between document checkboxes and index statuses.
type VerifyTool struct {
	store   index.Store
	journal *history.Store
}

// NewVerifyTool creates a VerifyTool. journal may be nil.
func NewVerifyTool(store index.Store, journal *history.Store) *VerifyTool {
	return &VerifyTool{store: store, journal: journal}
}

// Definition returns the MCP tool definition for registration.
func (t *VerifyTool) Definition() mcp.Tool {
	return mcp.NewTool("spec_verify",
		mcp.WithDescription(
			"Compare the specification document's checkboxes against the stored "+
				"index and report every disagreement. With repair=true the index is "+
				"rewritten to match the document (the document is human-edited and "+
				"wins).",
		),
		mcp.WithString("project_root",
			mcp.Description("Project root directory. If omitted, auto-detected from the working directory."),
		),
		mcp.WithBoolean("repair",
			mcp.Description("Rewrite the index to match the document (default: false, report only)."),
		),
	)
}

// Handle processes the spec_verify tool call.
func (t *VerifyTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, cfg, err := resolveProject(req.GetString("project_root", ""))
	if err != nil {
		return nil, err
	}

	idx, err := t.store.Load(cfg.IndexPath(root))
	if err != nil {
		return nil, fmt.Errorf("loading task index: %w", err)
	}

	sync := syncer.New(t.store, newParser(cfg))

	if boolArg(req, "repair", false) {
		corrected, err := sync.Repair(cfg.SpecPath(root), cfg.IndexPath(root), idx)
		if err != nil {
			_ = t.journal.Failed(history.OpRepair, "", err.Error())
			return nil, fmt.Errorf("repairing index: %w", err)
		}
		_ = t.journal.Ok(history.OpRepair, "", fmt.Sprintf("%d corrected", corrected))
		if corrected == 0 {
			return mcp.NewToolResultText("✅ Document and index already agree, nothing to repair."), nil
		}
		return mcp.NewToolResultText(fmt.Sprintf(
			"🔧 Repaired %d task(s): index statuses now match the document's checkboxes.", corrected)), nil
	}

	divergences, err := sync.Verify(cfg.SpecPath(root), idx)
	if err != nil {
		_ = t.journal.Failed(history.OpRepair, "", err.Error())
		return nil, fmt.Errorf("verifying consistency: %w", err)
	}

	if len(divergences) == 0 {
		return mcp.NewToolResultText("✅ Document and index agree on every task."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# %d Divergence(s) Found\n\n", len(divergences))
	b.WriteString("| Task | Title | Document | Index |\n")
	b.WriteString("|------|-------|----------|-------|\n")
	for _, d := range divergences {
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", d.TaskID, d.Title, d.Document, d.Index)
	}
	b.WriteString("\nRun spec_verify with repair=true to make the index match the document.\n")
	return mcp.NewToolResultText(b.String()), nil
}
