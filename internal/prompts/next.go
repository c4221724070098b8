// Package prompts implements MCP prompt handlers for the task
// pipeline.
//
// MCP prompts are user-triggered workflows (like slash commands) that
// instruct the AI to execute a specific sequence. Unlike tools (which
// the AI calls), prompts are initiated by the user.
package prompts

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
)

// NextPrompt handles the specdrive-next MCP prompt. It walks the AI
// through one full task cycle: pick, implement, verify, complete,
// document.
type NextPrompt struct{}

// NewNextPrompt creates a NextPrompt.
func NewNextPrompt() *NextPrompt {
	return &NextPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *NextPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("specdrive-next",
		mcp.WithPromptDescription(
			"Work the next task: sync the spec, pick the next eligible task, "+
				"implement it, verify, mark it completed, and document it.",
		),
		mcp.WithArgument("task_id",
			mcp.ArgumentDescription("Work this specific task instead of the scheduler's pick (e.g. task-003)."),
		),
	)
}

// Handle processes the specdrive-next prompt request.
func (p *NextPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	taskID := ""
	if args := req.Params.Arguments; args != nil {
		taskID = args["task_id"]
	}

	pick := "2. Run `task_next` to pick the next eligible task"
	if taskID != "" {
		pick = fmt.Sprintf("2. Run `task_next` with task_id='%s'; if it is blocked, stop and show me the blockers", taskID)
	}

	return &mcp.GetPromptResult{
		Description: "Work the next task in the specification",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(fmt.Sprintf(
					"Work one task from the specification document end to end.\n\n"+
						"Please:\n"+
						"1. Run `spec_sync` so the index reflects the current document\n"+
						"%s\n"+
						"3. Run `task_update` with status='in_progress' before touching code\n"+
						"4. Implement the task's file to satisfy its acceptance criteria\n"+
						"5. Run `task_run` to verify; fix failures and re-run until it passes\n"+
						"6. Run `task_update` with status='completed' (commit=true if this is a git repository)\n"+
						"7. Run `task_document` to append the completion record\n\n"+
						"Stop and ask me if verification still fails after the retry rounds.",
					pick,
				)),
			},
		},
	}, nil
}
