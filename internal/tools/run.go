package tools

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskforge/specdrive/internal/history"
	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/runner"
)

// RunTool handles the task_run MCP tool: execute the configured
// verification command for a task and persist the round report.
type RunTool struct {
	store   index.Store
	journal *history.Store
}

// NewRunTool creates a RunTool. journal may be nil.
func NewRunTool(store index.Store, journal *history.Store) *RunTool {
	return &RunTool{store: store, journal: journal}
}

// Definition returns the MCP tool definition for registration.
func (t *RunTool) Definition() mcp.Tool {
	return mcp.NewTool("task_run",
		mcp.WithDescription(
			"Run the project's verification command for a task (settings: "+
				"verification.command, {test} expands to the task's test file). "+
				"Rounds are bounded and every attempt is persisted to "+
				"specs/verify_<task>.json, pass or fail.",
		),
		mcp.WithString("project_root",
			mcp.Description("Project root directory. If omitted, auto-detected from the working directory."),
		),
		mcp.WithString("task_id",
			mcp.Required(),
			mcp.Description("Task whose verification to run, e.g. task-003."),
		),
		mcp.WithNumber("max_rounds",
			mcp.Description("Override the configured retry bound for this run."),
		),
	)
}

// Handle processes the task_run tool call.
func (t *RunTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
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

	run := runner.New(runner.Config{
		Command:   cfg.Verification.Command,
		MaxRounds: intArg(req, "max_rounds", cfg.Verification.MaxRounds),
		Timeout:   time.Duration(cfg.Verification.TimeoutSeconds) * time.Second,
		Dir:       root,
		ReportDir: filepath.Join(root, cfg.SpecsDir),
	}, nil)

	report, err := run.Run(ctx, task)
	if err != nil {
		_ = t.journal.Failed(history.OpVerify, taskID, err.Error())
		return nil, fmt.Errorf("running verification: %w", err)
	}

	outcome := "failed"
	if report.Success {
		outcome = "passed"
	}
	_ = t.journal.Ok(history.OpVerify, taskID, fmt.Sprintf("%s after %d round(s)", outcome, report.TotalRounds))

	return mcp.NewToolResultText(renderReport(task, report)), nil
}

func renderReport(task *index.Task, report *runner.Report) string {
	var b strings.Builder
	if report.Success {
		fmt.Fprintf(&b, "# ✅ Verification Passed: %s\n\n", task.ID)
	} else {
		fmt.Fprintf(&b, "# ❌ Verification Failed: %s\n\n", task.ID)
	}
	fmt.Fprintf(&b, "**Task:** %s\n**Rounds:** %d\n\n", task.Title, report.TotalRounds)

	for _, round := range report.Rounds {
		mark := "❌"
		if round.Success {
			mark = "✅"
		}
		fmt.Fprintf(&b, "- Round %d %s", round.Round, mark)
		if round.Total > 0 {
			fmt.Fprintf(&b, " (%d/%d passed)", round.Passed, round.Total)
		}
		b.WriteString("\n")
		for _, e := range round.Errors {
			fmt.Fprintf(&b, "  - %s\n", e)
		}
	}

	b.WriteString(fmt.Sprintf("\nReport saved as `verify_%s.json` in the specs directory.\n", task.ID))
	if report.Success {
		b.WriteString("Mark the task completed with task_update, then document it with task_document.\n")
	} else {
		b.WriteString("Fix the failures and run task_run again.\n")
	}
	return b.String()
}
