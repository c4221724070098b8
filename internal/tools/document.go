package tools

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskforge/specdrive/internal/analyzer"
	"github.com/taskforge/specdrive/internal/history"
	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/recorder"
	"github.com/taskforge/specdrive/internal/runner"
)

// DocumentTool handles the task_document MCP tool: append a collapsed
// completion record for a finished task to the specification document.
type DocumentTool struct {
	store   index.Store
	journal *history.Store
}

// NewDocumentTool creates a DocumentTool. journal may be nil.
func NewDocumentTool(store index.Store, journal *history.Store) *DocumentTool {
	return &DocumentTool{store: store, journal: journal}
}

// Definition returns the MCP tool definition for registration.
func (t *DocumentTool) Definition() mcp.Tool {
	return mcp.NewTool("task_document",
		mcp.WithDescription(
			"Record a completed task in the specification document: a collapsed "+
				"details block with the implemented declarations (from source "+
				"analysis), the latest verification report, and how to re-verify. "+
				"Idempotent: a task already documented is skipped.",
		),
		mcp.WithString("project_root",
			mcp.Description("Project root directory. If omitted, auto-detected from the working directory."),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Completed task to document, e.g. task-003."),
		),
	)
}

// Handle processes the task_document tool call.
func (t *DocumentTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, cfg, err := resolveProject(req.GetString("project_root", ""))
	if err != nil {
		return nil, err
	}

	taskID := req.GetString("task_id", "")
	idx, err := t.store.Load(cfg.IndexPath(root))
	if err != nil {
		return nil, fmt.Errorf("loading task index: %w", err)
	}

	task := idx.Find(taskID)
	if task == nil {
		return mcp.NewToolResultError(fmt.Sprintf("unknown task %q. Run spec_sync if the document changed.", taskID)), nil
	}
	if task.Status != index.StatusCompleted {
		return mcp.NewToolResultError(fmt.Sprintf(
			"%s is %s, not completed. Finish it (task_update status=completed) before documenting.",
			taskID, task.Status)), nil
	}

	details := recorder.Details{
		Files: analyzer.New(root).AnalyzeFiles([]string{task.File}),
	}
	report, repErr := runner.LoadReport(filepath.Join(root, cfg.SpecsDir), taskID)
	if repErr != nil {
		log.Printf("WARNING: loading verification report for %s: %v", taskID, repErr)
	}
	details.Report = report

	recorded, err := recorder.New(t.store).Record(cfg.SpecPath(root), cfg.IndexPath(root), idx, taskID, details)
	if err != nil {
		_ = t.journal.Failed(history.OpDocument, taskID, err.Error())
		return nil, fmt.Errorf("recording completion: %w", err)
	}

	if !recorded {
		return mcp.NewToolResultText(fmt.Sprintf("**%s** is already documented, nothing to do.", taskID)), nil
	}

	_ = t.journal.Ok(history.OpDocument, taskID, "")
	response := fmt.Sprintf("✅ Completion record for **%s** (%s) appended to `%s`.", task.ID, task.Title, cfg.SpecFile)
	if report == nil {
		response += "\n\nNo verification report was found; the record notes the acceptance criteria only."
	}
	return mcp.NewToolResultText(response), nil
}
