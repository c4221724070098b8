package prompts

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
)

// StatusPrompt handles the specdrive-status MCP prompt. It asks the AI
// to summarize project progress and surface inconsistencies.
type StatusPrompt struct{}

// NewStatusPrompt creates a StatusPrompt.
func NewStatusPrompt() *StatusPrompt {
	return &StatusPrompt{}
}

// Definition returns the MCP prompt definition for registration.
func (p *StatusPrompt) Definition() mcp.Prompt {
	return mcp.NewPrompt("specdrive-status",
		mcp.WithPromptDescription(
			"Summarize task progress: per-phase completion, in-progress work, "+
				"and whether document and index still agree.",
		),
	)
}

// Handle processes the specdrive-status prompt request.
func (p *StatusPrompt) Handle(ctx context.Context, req mcp.GetPromptRequest) (*mcp.GetPromptResult, error) {
	return &mcp.GetPromptResult{
		Description: "Summarize specification progress",
		Messages: []mcp.PromptMessage{
			{
				Role: mcp.RoleUser,
				Content: mcp.NewTextContent(
					"Give me a progress summary for this specification-driven project.\n\n" +
						"Please:\n" +
						"1. Run `task_status` and summarize the totals and per-phase progress\n" +
						"2. Run `spec_verify` and tell me whether document and index agree\n" +
						"3. If they diverge, list the disagreements and ask me before repairing\n" +
						"4. Finish with what you would work on next and why",
				),
			},
		},
	}, nil
}
