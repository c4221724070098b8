package tools

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskforge/specdrive/internal/history"
	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/spec"
)

// SyncTool handles the spec_sync MCP tool: parse the specification
// document and rebuild the task index from it.
type SyncTool struct {
	store   index.Store
	journal *history.Store
}

// NewSyncTool creates a SyncTool. journal may be nil.
func NewSyncTool(store index.Store, journal *history.Store) *SyncTool {
	return &SyncTool{store: store, journal: journal}
}

// Definition returns the MCP tool definition for registration.
func (t *SyncTool) Definition() mcp.Tool {
	return mcp.NewTool("spec_sync",
		mcp.WithDescription(
			"Parse the specification document and (re)build the machine-readable "+
				"task index from its task tables. Run this first, and again whenever "+
				"the document's tables are edited by hand. Checkbox glyphs map to "+
				"status: [ ] pending, [~] in_progress, [x] completed.",
		),
		mcp.WithString("project_root",
			mcp.Description("Project root directory. If omitted, auto-detected from the working directory."),
		),
		mcp.WithBoolean("split",
			mcp.Description("Also split the document into per-section files under the specs directory (default: false)."),
		),
	)
}

// Handle processes the spec_sync tool call.
func (t *SyncTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, cfg, err := resolveProject(req.GetString("project_root", ""))
	if err != nil {
		return nil, err
	}

	specPath := cfg.SpecPath(root)
	idx, err := newParser(cfg).ParseFile(specPath)
	if err != nil {
		_ = t.journal.Failed(history.OpSync, "", err.Error())
		return nil, fmt.Errorf("parsing specification document: %w", err)
	}

	missing := false
	if _, statErr := os.Stat(specPath); os.IsNotExist(statErr) {
		missing = true
	}

	indexPath := cfg.IndexPath(root)
	if err := t.store.Save(indexPath, idx); err != nil {
		_ = t.journal.Failed(history.OpSync, "", err.Error())
		return nil, fmt.Errorf("saving task index: %w", err)
	}

	sections := 0
	if boolArg(req, "split", false) && !missing {
		data, readErr := os.ReadFile(specPath)
		if readErr == nil {
			sections, err = spec.SplitSections(string(data), filepath.Join(root, cfg.SpecsDir, "sections"))
			if err != nil {
				log.Printf("WARNING: splitting sections: %v", err)
			}
		}
	}

	detail := fmt.Sprintf("%d tasks (%d completed, %d in progress, %d pending)",
		idx.TotalTasks, idx.Completed, idx.InProgress, idx.Pending)
	_ = t.journal.Ok(history.OpSync, "", detail)

	response := fmt.Sprintf(
		"# Spec Synced\n\n"+
			"**Document:** `%s`\n"+
			"**Index:** `%s`\n\n"+
			"| Total | Completed | In progress | Pending |\n"+
			"|-------|-----------|-------------|--------|\n"+
			"| %d | %d | %d | %d |\n",
		specPath, indexPath,
		idx.TotalTasks, idx.Completed, idx.InProgress, idx.Pending,
	)
	if missing {
		response += "\n⚠️ The specification document does not exist yet — the index was written with zero tasks.\n"
	}
	if sections > 0 {
		response += fmt.Sprintf("\nSplit %d sections into `%s`.\n", sections, filepath.Join(cfg.SpecsDir, "sections"))
	}

	return mcp.NewToolResultText(response), nil
}
