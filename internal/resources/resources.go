// Package resources implements MCP resource handlers for the task
// pipeline.
//
// Resources provide read-only data that the host can consume for
// context. They use URI-based addressing (specdrive://...) following
// MCP conventions.
package resources

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskforge/specdrive/internal/config"
	"github.com/taskforge/specdrive/internal/index"
)

// Handler manages the pipeline's resource endpoints.
type Handler struct {
	store index.Store
}

// NewHandler creates a resource Handler with its dependencies.
func NewHandler(store index.Store) *Handler {
	return &Handler{store: store}
}

// IndexResource returns the MCP resource definition for the task index.
func (h *Handler) IndexResource() mcp.Resource {
	return mcp.NewResource(
		"specdrive://tasks/index",
		"Task Index",
		mcp.WithResourceDescription("The full task index: every task with status, phase, and dependencies"),
		mcp.WithMIMEType("application/json"),
	)
}

// HandleIndex returns the current task index as JSON.
func (h *Handler) HandleIndex(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	root, err := config.FindProjectRoot()
	if err != nil {
		return nil, fmt.Errorf("finding project root: %w", err)
	}
	cfg, err := config.Load(root)
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	idx, err := h.store.Load(cfg.IndexPath(root))
	if err != nil {
		return errorResource(req.Params.URI, err.Error()), nil
	}

	data, err := json.MarshalIndent(idx, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling task index: %w", err)
	}

	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      req.Params.URI,
			MIMEType: "application/json",
			Text:     string(data),
		},
	}, nil
}

// errorResource returns a resource carrying an error message.
func errorResource(uri, message string) []mcp.ResourceContents {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      uri,
			MIMEType: "text/plain",
			Text:     fmt.Sprintf("Error: %s", message),
		},
	}
}
