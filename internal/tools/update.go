package tools

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskforge/specdrive/internal/gitops"
	"github.com/taskforge/specdrive/internal/history"
	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/spec"
	"github.com/taskforge/specdrive/internal/syncer"
)

// UpdateTool handles the task_update MCP tool: move a task to a new
// status in both the document and the index.
type UpdateTool struct {
	store   index.Store
	journal *history.Store
}

// NewUpdateTool creates an UpdateTool. journal may be nil.
func NewUpdateTool(store index.Store, journal *history.Store) *UpdateTool {
	return &UpdateTool{store: store, journal: journal}
}

// Definition returns the MCP tool definition for registration.
func (t *UpdateTool) Definition() mcp.Tool {
	return mcp.NewTool("task_update",
		mcp.WithDescription(
			"Set a task's status. Updates the specification document's checkbox "+
				"and progress table first, then the index, so the two stay in step. "+
				"With commit=true a completed task is also committed to git.",
		),
		mcp.WithString("project_root",
			mcp.Description("Project root directory. If omitted, auto-detected from the working directory."),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task to update, e.g. task-003."),
		),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Enum("pending", "in_progress", "completed"),
			mcp.Description("New status."),
		),
		mcp.WithBoolean("commit",
			mcp.Description("Create a git commit when the task is marked completed (default: false)."),
		),
	)
}

// Handle processes the task_update tool call.
func (t *UpdateTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, cfg, err := resolveProject(req.GetString("project_root", ""))
	if err != nil {
		return nil, err
	}

	taskID := req.GetString("task_id", "")
	status := index.Status(req.GetString("status", ""))
	if err := index.ValidateStatus(status); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	idx, err := t.store.Load(cfg.IndexPath(root))
	if err != nil {
		return nil, fmt.Errorf("loading task index: %w", err)
	}

	sync := syncer.New(t.store, newParser(cfg))
	err = sync.SetStatus(cfg.SpecPath(root), cfg.IndexPath(root), idx, taskID, status)
	if err != nil {
		_ = t.journal.Failed(history.OpStatus, taskID, err.Error())
		if errors.Is(err, spec.ErrRowNotFound) || errors.Is(err, spec.ErrAmbiguousRow) || errors.Is(err, syncer.ErrUnknownTask) {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return nil, fmt.Errorf("setting status: %w", err)
	}
	_ = t.journal.Ok(history.OpStatus, taskID, string(status))

	task := idx.Find(taskID)
	response := fmt.Sprintf("✅ **%s** (%s) is now `%s`. Document and index updated.", task.ID, task.Title, status)

	if status == index.StatusCompleted && boolArg(req, "commit", false) {
		committed, commitErr := gitops.New(root).CommitTask(task, nil)
		switch {
		case commitErr != nil:
			log.Printf("WARNING: committing task %s: %v", taskID, commitErr)
			response += fmt.Sprintf("\n\n⚠️ Commit failed: %v", commitErr)
		case committed:
			response += fmt.Sprintf("\n\nCommitted as `%s`.", gitops.CommitMessage(task))
		default:
			response += "\n\nNot a git repository, commit skipped."
		}
	}

	return mcp.NewToolResultText(response), nil
}
