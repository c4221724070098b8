// Package server wires all MCP components and creates the server
// instance.
//
// This is the composition root (DIP): it creates concrete
// implementations and injects them into the tools/prompts/resources
// that depend on abstractions. No business logic lives here — only
// wiring.
package server

import (
	"log"

	"github.com/mark3labs/mcp-go/server"
	"github.com/taskforge/specdrive/internal/config"
	"github.com/taskforge/specdrive/internal/history"
	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/prompts"
	"github.com/taskforge/specdrive/internal/resources"
	"github.com/taskforge/specdrive/internal/tools"
)

// Version is set at build time via ldflags.
var Version = "dev"

// New creates and configures the MCP server with all tools, prompts,
// and resources registered. This is the single place where all
// dependencies are resolved.
//
// The returned cleanup function closes the history journal's database
// connection and must be called on shutdown (typically via defer). It
// is always non-nil and safe to call even if the journal failed to
// open.
func New() (*server.MCPServer, func(), error) {
	store := index.NewFileStore()

	// History is supporting infrastructure: if the journal cannot be
	// opened, every tool keeps working against a nil store. We log a
	// warning and move on.
	cleanup := noop
	journal := openJournal()
	if journal != nil {
		cleanup = func() {
			if err := journal.Close(); err != nil {
				log.Printf("WARNING: history journal close: %v", err)
			}
		}
	}

	s := server.NewMCPServer(
		"specdrive",
		Version,
		server.WithToolCapabilities(true),
		server.WithResourceCapabilities(false, true),
		server.WithPromptCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(serverInstructions()),
	)

	// --- Register tools ---

	syncTool := tools.NewSyncTool(store, journal)
	s.AddTool(syncTool.Definition(), syncTool.Handle)

	nextTool := tools.NewNextTool(store, journal)
	s.AddTool(nextTool.Definition(), nextTool.Handle)

	statusTool := tools.NewStatusTool(store, journal)
	s.AddTool(statusTool.Definition(), statusTool.Handle)

	updateTool := tools.NewUpdateTool(store, journal)
	s.AddTool(updateTool.Definition(), updateTool.Handle)

	runTool := tools.NewRunTool(store, journal)
	s.AddTool(runTool.Definition(), runTool.Handle)

	documentTool := tools.NewDocumentTool(store, journal)
	s.AddTool(documentTool.Definition(), documentTool.Handle)

	verifyTool := tools.NewVerifyTool(store, journal)
	s.AddTool(verifyTool.Definition(), verifyTool.Handle)

	// --- Register prompts ---

	nextPrompt := prompts.NewNextPrompt()
	s.AddPrompt(nextPrompt.Definition(), nextPrompt.Handle)

	statusPrompt := prompts.NewStatusPrompt()
	s.AddPrompt(statusPrompt.Definition(), statusPrompt.Handle)

	// --- Register resources ---

	resourceHandler := resources.NewHandler(store)
	s.AddResource(resourceHandler.IndexResource(), resourceHandler.HandleIndex)

	return s, cleanup, nil
}

// noop is the default cleanup when history is disabled or failed.
func noop() {}

// openJournal opens the history database for the current project.
// Returns nil (journal disabled) on any failure.
func openJournal() *history.Store {
	root, err := config.FindProjectRoot()
	if err != nil {
		log.Printf("WARNING: history disabled: %v", err)
		return nil
	}
	cfg, err := config.Load(root)
	if err != nil {
		log.Printf("WARNING: history disabled: %v", err)
		return nil
	}
	path := cfg.HistoryPath(root)
	if path == "" {
		return nil
	}
	journal, err := history.Open(path)
	if err != nil {
		log.Printf("WARNING: history disabled: %v", err)
		return nil
	}
	return journal
}

// serverInstructions returns the system instructions that tell the AI
// how to drive the task pipeline.
func serverInstructions() string {
	return `You have access to specdrive, a task scheduling MCP server for
specification-driven implementation work.

## The Model

One markdown specification document holds task tables. Each row is one
task: a checkbox, a title, a target file, acceptance criteria, and an
estimate. Checkbox glyphs encode status:
- [ ] pending
- [~] in progress
- [x] completed

A machine-readable index (specs/task_index.json) mirrors the document
and drives scheduling. The document is for humans, the index is for
you. Status changes always go through tools so the two stay in step —
never edit the checkbox or the index file directly.

## Tools

- spec_sync — parse the document, rebuild the index. Run first, and
  after any manual edit to the document's tables.
- task_next — pick the next actionable task. In-progress work is
  resumed before new work; a task is eligible only when every
  dependency is completed.
- task_status — totals, per-phase rollup, recent operations.
- task_update — set a task's status in both artifacts. Use
  commit=true to also create a git commit on completion.
- task_run — run the project's verification command for a task, with
  bounded retries. The report persists either way.
- task_document — append a collapsed completion record (declarations,
  verification results, how to re-verify) for a completed task.
- spec_verify — detect divergence between document and index;
  repair=true rewrites the index to match the document.

## Working a Task

1. spec_sync
2. task_next
3. task_update status=in_progress
4. Implement the task's file to its acceptance criteria
5. task_run until it passes
6. task_update status=completed (commit=true in a git repository)
7. task_document

## Rules

- NEVER mark a task completed without running its verification
- NEVER start a task task_next reports as blocked — finish the
  dependencies first
- If spec_verify reports divergence, ask the user before repairing
- A task id the index does not know usually means the document changed
  under you: run spec_sync and retry`
}
