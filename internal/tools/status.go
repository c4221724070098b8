package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskforge/specdrive/internal/history"
	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/spec"
)

// StatusTool handles the task_status MCP tool: overall progress,
// per-phase rollup, and recent journal entries.
type StatusTool struct {
	store   index.Store
	journal *history.Store
}

// NewStatusTool creates a StatusTool. journal may be nil.
func NewStatusTool(store index.Store, journal *history.Store) *StatusTool {
	return &StatusTool{store: store, journal: journal}
}

// Definition returns the MCP tool definition for registration.
func (t *StatusTool) Definition() mcp.Tool {
	return mcp.NewTool("task_status",
		mcp.WithDescription(
			"Show overall task progress: totals, a per-phase completion rollup, "+
				"any in-progress work, and the most recent pipeline operations.",
		),
		mcp.WithString("project_root",
			mcp.Description("Project root directory. If omitted, auto-detected from the working directory."),
		),
		mcp.WithNumber("history_limit",
			mcp.Description("How many recent journal entries to include (default: 10)."),
		),
	)
}

// Handle processes the task_status tool call.
func (t *StatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	root, cfg, err := resolveProject(req.GetString("project_root", ""))
	if err != nil {
		return nil, err
	}

	idx, err := t.store.Load(cfg.IndexPath(root))
	if err != nil {
		return nil, fmt.Errorf("loading task index: %w", err)
	}

	var b strings.Builder
	b.WriteString("# Task Status\n\n")
	fmt.Fprintf(&b, "**Document:** `%s`\n\n", idx.SpecFile)
	fmt.Fprintf(&b, "| Total | Completed | In progress | Pending |\n")
	fmt.Fprintf(&b, "|-------|-----------|-------------|--------|\n")
	fmt.Fprintf(&b, "| %d | %d | %d | %d |\n\n", idx.TotalTasks, idx.Completed, idx.InProgress, idx.Pending)

	order, stats := idx.StatsByPhase()
	if len(order) > 0 {
		b.WriteString("## Phases\n\n")
		b.WriteString("| Phase | Progress | State |\n")
		b.WriteString("|-------|----------|-------|\n")
		for _, phase := range order {
			st := stats[phase]
			fmt.Fprintf(&b, "| %s | %d/%d | %s |\n", phase, st.Completed, st.Total, spec.PhaseProgress(st))
		}
		b.WriteString("\n")
	}

	var active []index.Task
	for _, task := range idx.Tasks {
		if task.Status == index.StatusInProgress {
			active = append(active, task)
		}
	}
	if len(active) > 0 {
		b.WriteString("## In Progress\n\n")
		for _, task := range active {
			fmt.Fprintf(&b, "- **%s** %s (`%s`)\n", task.ID, task.Title, task.File)
		}
		b.WriteString("\n")
	}

	entries, histErr := t.journal.Recent(intArg(req, "history_limit", 10))
	if histErr != nil {
		fmt.Fprintf(&b, "⚠️ History unavailable: %v\n", histErr)
	} else if len(entries) > 0 {
		b.WriteString("## Recent Operations\n\n")
		for _, e := range entries {
			line := fmt.Sprintf("- %s %s", e.CreatedAt, e.Operation)
			if e.TaskID != "" {
				line += " " + e.TaskID
			}
			line += " [" + e.Outcome + "]"
			if e.Detail != "" {
				line += ": " + e.Detail
			}
			b.WriteString(line + "\n")
		}
	}

	return mcp.NewToolResultText(b.String()), nil
}
