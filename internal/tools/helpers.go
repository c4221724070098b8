// Package tools implements the MCP tool handlers for the task
// pipeline.
//
// Each tool is a struct that receives its dependencies via the
// constructor (DIP) and exposes Definition/Handle for registration.
// User mistakes (unknown task, invalid status) become tool error
// results; infrastructure failures (unreadable files, broken index)
// are Go errors.
package tools

import (
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskforge/specdrive/internal/config"
	"github.com/taskforge/specdrive/internal/spec"
)

// resolveProject resolves the project root and its settings. An
// explicit root (from the tool's project_root argument) wins; an
// empty one falls back to walking up from the working directory.
func resolveProject(explicitRoot string) (string, *config.Settings, error) {
	root := explicitRoot
	if root == "" {
		var err error
		root, err = config.FindProjectRoot()
		if err != nil {
			return "", nil, fmt.Errorf("finding project root: %w", err)
		}
	}

	cfg, err := config.Load(root)
	if err != nil {
		return "", nil, fmt.Errorf("loading settings: %w", err)
	}
	return root, cfg, nil
}

// newParser builds a document parser honoring the project settings.
func newParser(cfg *config.Settings) *spec.Parser {
	return &spec.Parser{PhaseKeyword: cfg.PhaseKeyword, DepRules: spec.DefaultDepRules}
}

// intArg extracts an integer argument from a tool request.
func intArg(req mcp.CallToolRequest, key string, defaultVal int) int {
	v, ok := req.GetArguments()[key].(float64)
	if !ok {
		return defaultVal
	}
	return int(v)
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}
