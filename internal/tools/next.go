package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskforge/specdrive/internal/history"
	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/schedule"
)

// NextTool handles the task_next MCP tool: pick the next actionable
// task, or explain why a requested task cannot start yet.
type NextTool struct {
	store   index.Store
	journal *history.Store
}

// NewNextTool creates a NextTool. journal may be nil.
func NewNextTool(store index.Store, journal *history.Store) *NextTool {
	return &NextTool{store: store, journal: journal}
}

// Definition returns the MCP tool definition for registration.
func (t *NextTool) Definition() mcp.Tool {
	return mcp.NewTool("task_next",
		mcp.WithDescription(
			"Select the next actionable task from the index. In-progress tasks are "+
				"resumed before new pending work, and a task is only eligible once "+
				"every dependency is completed. Pass task_id to check one specific "+
				"task instead and see what blocks it.",
		),
		mcp.WithString("project_root",
			mcp.Description("Project root directory. If omitted, auto-detected from the working directory."),
		),
		mcp.WithString("task_id",
			mcp.Description("Check this specific task (e.g. task-003) instead of scanning for the next one."),
		),
	)
}

// Handle processes the task_next tool call.
func (t *NextTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, cfg, err := resolveProject(req.GetString("project_root", ""))
	if err != nil {
		return nil, err
	}

	idx, err := t.store.Load(cfg.IndexPath(root))
	if err != nil {
		return nil, fmt.Errorf("loading task index: %w", err)
	}

	sched := schedule.New(idx)

	if taskID := req.GetString("task_id", ""); taskID != "" {
		task := sched.FindByID(taskID)
		if task == nil {
			return mcp.NewToolResultError(fmt.Sprintf("unknown task %q. Run spec_sync if the document changed.", taskID)), nil
		}
		if task.Status == index.StatusCompleted {
			return mcp.NewToolResultText(fmt.Sprintf("✅ **%s** (%s) is already completed.", task.ID, task.Title)), nil
		}
		blockers := sched.Blockers(task)
		if len(blockers) > 0 {
			_ = t.journal.Ok(history.OpSchedule, task.ID, "blocked")
			return mcp.NewToolResultText(renderBlocked(task, blockers)), nil
		}
		_ = t.journal.Ok(history.OpSchedule, task.ID, "eligible")
		return mcp.NewToolResultText(renderNextTask(task)), nil
	}

	task := sched.FindNext()
	if task == nil {
		_ = t.journal.Ok(history.OpSchedule, "", "no eligible work")
		return mcp.NewToolResultText(
			"No eligible work. Every task is either completed or blocked by an " +
				"unfinished dependency. Run task_status for the full picture.",
		), nil
	}

	_ = t.journal.Ok(history.OpSchedule, task.ID, "selected")
	return mcp.NewToolResultText(renderNextTask(task)), nil
}

func renderNextTask(task *index.Task) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Next Task: %s\n\n", task.ID)
	fmt.Fprintf(&b, "**Title:** %s\n", task.Title)
	fmt.Fprintf(&b, "**File:** `%s`\n", task.File)
	fmt.Fprintf(&b, "**Phase:** %s\n", task.Phase)
	fmt.Fprintf(&b, "**Status:** %s\n", task.Status)
	if task.EstimatedHours > 0 {
		fmt.Fprintf(&b, "**Estimated hours:** %d\n", task.EstimatedHours)
	}
	if len(task.Dependencies) > 0 {
		fmt.Fprintf(&b, "**Dependencies:** %s (all completed)\n", strings.Join(task.Dependencies, ", "))
	}
	if task.Description != "" {
		fmt.Fprintf(&b, "\n%s\n", task.Description)
	}
	b.WriteString("\nMark it started with task_update (status=in_progress) before writing code.\n")
	return b.String()
}

func renderBlocked(task *index.Task, blockers []schedule.Blocker) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# Blocked: %s\n\n", task.ID)
	fmt.Fprintf(&b, "**%s** cannot start yet. Unmet dependencies:\n\n", task.Title)
	for _, blk := range blockers {
		if blk.Resolved() {
			fmt.Fprintf(&b, "- %s — %s (%s)\n", blk.ID, blk.Task.Title, blk.Task.Status)
		} else {
			fmt.Fprintf(&b, "- %s — not present in the index (treated as unmet)\n", blk.ID)
		}
	}
	b.WriteString("\nComplete the dependencies first, or fix the document if a dependency id is stale.\n")
	return b.String()
}
