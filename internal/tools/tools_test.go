package tools

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/taskforge/specdrive/internal/index"
)

// --- Test helpers ---

const toolsDoc = `# Plan

| Phase | Status | Date | Note |
|-------|--------|------|------|
| Phase 1 | not-started | - | Foundation |
| Phase 2 | not-started | - | Query layer |

## Phase 1: Foundation

| Status | Task | File | Hours | Acceptance |
|--------|------|------|-------|------------|
| [ ] | Core types | src/core/types.py | 4 | Types defined |
| [ ] | Config loader | src/core/config.py | 2 | YAML works |

## Phase 2: Query

| Status | Task | File | Hours | Acceptance |
|--------|------|------|-------|------------|
| [ ] | Query engine | src/query_engine/engine.py | 6 | Queries answered |
`

// setupProject writes the test document into a temp dir and syncs it
// so the index exists. Tools receive the dir via project_root, so no
// chdir is needed.
func setupProject(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "devspec.md"), []byte(toolsDoc), 0o644); err != nil {
		t.Fatalf("setup: write document: %v", err)
	}
	syncProject(t, dir)
	return dir
}

// syncProject runs the sync tool against dir and fails the test on any
// error.
func syncProject(t *testing.T, dir string) {
	t.Helper()
	tool := NewSyncTool(index.NewFileStore(), nil)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"project_root": dir}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("setup: sync: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("setup: sync returned error: %s", getResultText(result))
	}
}

// completeTask marks a task completed through the update tool.
func completeTask(t *testing.T, dir, taskID string) {
	t.Helper()
	tool := NewUpdateTool(index.NewFileStore(), nil)

	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      taskID,
		"status":       "completed",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("setup: complete %s: %v", taskID, err)
	}
	if isErrorResult(result) {
		t.Fatalf("setup: complete %s returned error: %s", taskID, getResultText(result))
	}
}

// isErrorResult checks if the result is a tool error.
func isErrorResult(result *mcp.CallToolResult) bool {
	return result != nil && result.IsError
}

// getResultText extracts the text content from a CallToolResult.
func getResultText(result *mcp.CallToolResult) string {
	if result == nil || len(result.Content) == 0 {
		return ""
	}
	for _, c := range result.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			return tc.Text
		}
	}
	return ""
}

// --- SyncTool ---

func TestSyncTool_Handle_Success(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "devspec.md"), []byte(toolsDoc), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}

	tool := NewSyncTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"project_root": dir}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "Spec Synced") {
		t.Errorf("result should contain 'Spec Synced': %s", text)
	}
	if !strings.Contains(text, "| 3 | 0 | 0 | 3 |") {
		t.Errorf("result should contain the totals row: %s", text)
	}

	// Index written next to the specs dir.
	idx, err := index.NewFileStore().Load(filepath.Join(dir, "specs", "task_index.json"))
	if err != nil {
		t.Fatalf("loading index: %v", err)
	}
	if idx.TotalTasks != 3 {
		t.Errorf("TotalTasks = %d, want 3", idx.TotalTasks)
	}
	if idx.Tasks[2].ID != "task-003" || len(idx.Tasks[2].Dependencies) != 1 {
		t.Errorf("query engine task = %+v", idx.Tasks[2])
	}
}

func TestSyncTool_Handle_MissingDocument(t *testing.T) {
	dir := t.TempDir()

	tool := NewSyncTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"project_root": dir}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("missing document should not be a tool error: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "does not exist yet") {
		t.Errorf("result should warn about the missing document: %s", text)
	}

	idx, err := index.NewFileStore().Load(filepath.Join(dir, "specs", "task_index.json"))
	if err != nil {
		t.Fatalf("loading index: %v", err)
	}
	if idx.TotalTasks != 0 {
		t.Errorf("TotalTasks = %d, want 0", idx.TotalTasks)
	}
}

func TestSyncTool_Handle_Split(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "devspec.md"), []byte(toolsDoc), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}

	tool := NewSyncTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"split":        true,
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "Split 3 sections") {
		t.Errorf("result should report the split: %s", text)
	}

	entries, err := os.ReadDir(filepath.Join(dir, "specs", "sections"))
	if err != nil {
		t.Fatalf("reading sections dir: %v", err)
	}
	if len(entries) != 3 {
		t.Errorf("got %d section files, want 3", len(entries))
	}
}

// --- NextTool ---

func TestNextTool_Handle_SelectsFirstPending(t *testing.T) {
	dir := setupProject(t)

	tool := NewNextTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"project_root": dir}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "Next Task: task-001") {
		t.Errorf("should select task-001 first: %s", text)
	}
	if !strings.Contains(text, "Core types") {
		t.Error("result should contain the task title")
	}
}

func TestNextTool_Handle_BlockedTask(t *testing.T) {
	dir := setupProject(t)

	tool := NewNextTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-003",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "Blocked: task-003") {
		t.Errorf("task-003 should be blocked by task-001: %s", text)
	}
	if !strings.Contains(text, "task-001") {
		t.Error("blockers should name the unmet dependency")
	}
}

func TestNextTool_Handle_UnblockedAfterDependencyCompletes(t *testing.T) {
	dir := setupProject(t)
	completeTask(t, dir, "task-001")

	tool := NewNextTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-003",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "Next Task: task-003") {
		t.Errorf("task-003 should be eligible once task-001 is done: %s", text)
	}
}

func TestNextTool_Handle_UnknownTask(t *testing.T) {
	dir := setupProject(t)

	tool := NewNextTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-999",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Error("unknown task should be a tool error")
	}
}

func TestNextTool_Handle_NoEligibleWork(t *testing.T) {
	dir := setupProject(t)
	completeTask(t, dir, "task-001")
	completeTask(t, dir, "task-002")
	completeTask(t, dir, "task-003")

	tool := NewNextTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"project_root": dir}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("no eligible work is not an error: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "No eligible work") {
		t.Errorf("result should say there is nothing to do: %s", text)
	}
}

// --- UpdateTool ---

func TestUpdateTool_Handle_UpdatesBothArtifacts(t *testing.T) {
	dir := setupProject(t)

	tool := NewUpdateTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-001",
		"status":       "in_progress",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	doc, err := os.ReadFile(filepath.Join(dir, "devspec.md"))
	if err != nil {
		t.Fatalf("reading document: %v", err)
	}
	if !strings.Contains(string(doc), "| [~] | Core types") {
		t.Errorf("checkbox not patched:\n%s", doc)
	}

	idx, err := index.NewFileStore().Load(filepath.Join(dir, "specs", "task_index.json"))
	if err != nil {
		t.Fatalf("loading index: %v", err)
	}
	if idx.Find("task-001").Status != index.StatusInProgress {
		t.Error("index not updated")
	}
}

func TestUpdateTool_Handle_UnknownTask(t *testing.T) {
	dir := setupProject(t)

	tool := NewUpdateTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-999",
		"status":       "completed",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Error("unknown task should be a tool error")
	}
}

func TestUpdateTool_Handle_InvalidStatus(t *testing.T) {
	dir := setupProject(t)

	tool := NewUpdateTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-001",
		"status":       "done",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Error("invalid status should be a tool error")
	}
}

func TestUpdateTool_Handle_CommitOutsideRepo(t *testing.T) {
	dir := setupProject(t)

	tool := NewUpdateTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-001",
		"status":       "completed",
		"commit":       true,
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	text := getResultText(result)
	if !strings.Contains(text, "commit skipped") {
		t.Errorf("outside a repository the commit should be skipped: %s", text)
	}
}

// --- StatusTool ---

func TestStatusTool_Handle_Overview(t *testing.T) {
	dir := setupProject(t)
	completeTask(t, dir, "task-001")

	upd := NewUpdateTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-002",
		"status":       "in_progress",
	}
	if _, err := upd.Handle(context.Background(), req); err != nil {
		t.Fatalf("update failed: %v", err)
	}

	tool := NewStatusTool(index.NewFileStore(), nil)
	req = mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"project_root": dir}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "| 3 | 1 | 1 | 1 |") {
		t.Errorf("totals row wrong: %s", text)
	}
	if !strings.Contains(text, "Phase 1: Foundation | 1/2") {
		t.Errorf("phase rollup missing: %s", text)
	}
	if !strings.Contains(text, "## In Progress") || !strings.Contains(text, "task-002") {
		t.Errorf("in-progress section missing: %s", text)
	}
}

// --- VerifyTool ---

func TestVerifyTool_Handle_Agreement(t *testing.T) {
	dir := setupProject(t)

	tool := NewVerifyTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"project_root": dir}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "agree on every task") {
		t.Errorf("fresh sync should agree: %s", text)
	}
}

func TestVerifyTool_Handle_DivergenceAndRepair(t *testing.T) {
	dir := setupProject(t)

	// Human edits a checkbox behind the pipeline's back.
	specPath := filepath.Join(dir, "devspec.md")
	doc, _ := os.ReadFile(specPath)
	edited := strings.Replace(string(doc), "| [ ] | Config loader", "| [x] | Config loader", 1)
	if err := os.WriteFile(specPath, []byte(edited), 0o644); err != nil {
		t.Fatalf("rewriting document: %v", err)
	}

	tool := NewVerifyTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{"project_root": dir}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "1 Divergence(s) Found") || !strings.Contains(text, "task-002") {
		t.Errorf("divergence not reported: %s", text)
	}

	// Repair: the document wins.
	req = mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"repair":       true,
	}
	result, err = tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("repair failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "Repaired 1 task(s)") {
		t.Errorf("repair result = %s", getResultText(result))
	}

	idx, err := index.NewFileStore().Load(filepath.Join(dir, "specs", "task_index.json"))
	if err != nil {
		t.Fatalf("loading index: %v", err)
	}
	if idx.Find("task-002").Status != index.StatusCompleted {
		t.Error("repair should adopt the document's status")
	}
}

// --- DocumentTool ---

func TestDocumentTool_Handle_RecordsCompletion(t *testing.T) {
	dir := setupProject(t)
	completeTask(t, dir, "task-001")

	tool := NewDocumentTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-001",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if isErrorResult(result) {
		t.Fatalf("expected success, got error: %s", getResultText(result))
	}

	doc, err := os.ReadFile(filepath.Join(dir, "devspec.md"))
	if err != nil {
		t.Fatalf("reading document: %v", err)
	}
	if !strings.Contains(string(doc), "<summary>✅ Core types") {
		t.Errorf("completion record missing:\n%s", doc)
	}

	// Second call is a no-op.
	result, err = tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("second Handle failed: %v", err)
	}
	if !strings.Contains(getResultText(result), "already documented") {
		t.Errorf("second call should be a no-op: %s", getResultText(result))
	}
	if n := strings.Count(mustRead(t, filepath.Join(dir, "devspec.md")), "<summary>✅ Core types"); n != 1 {
		t.Errorf("found %d completion records, want 1", n)
	}
}

func TestDocumentTool_Handle_TaskNotCompleted(t *testing.T) {
	dir := setupProject(t)

	tool := NewDocumentTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-001",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Error("documenting a pending task should be a tool error")
	}
	if !strings.Contains(getResultText(result), "not completed") {
		t.Errorf("error should explain the status: %s", getResultText(result))
	}
}

func mustRead(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading %s: %v", path, err)
	}
	return string(data)
}

// --- RunTool ---

func TestRunTool_Handle_Success(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell commands differ on Windows")
	}

	dir := t.TempDir()
	settings := "verification:\n  command: [\"sh\", \"-c\", \"echo '3 passed'\"]\n"
	if err := os.WriteFile(filepath.Join(dir, "specdrive.yaml"), []byte(settings), 0o644); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "devspec.md"), []byte(toolsDoc), 0o644); err != nil {
		t.Fatalf("write document: %v", err)
	}
	syncProject(t, dir)

	tool := NewRunTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-001",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}

	text := getResultText(result)
	if !strings.Contains(text, "Verification Passed: task-001") {
		t.Errorf("result should report a pass: %s", text)
	}
	if !strings.Contains(text, "(3/3 passed)") {
		t.Errorf("result should contain the round counts: %s", text)
	}

	if _, err := os.Stat(filepath.Join(dir, "specs", "verify_task-001.json")); err != nil {
		t.Errorf("report not persisted: %v", err)
	}
}

func TestRunTool_Handle_UnknownTask(t *testing.T) {
	dir := setupProject(t)

	tool := NewRunTool(index.NewFileStore(), nil)
	req := mcp.CallToolRequest{}
	req.Params.Arguments = map[string]interface{}{
		"project_root": dir,
		"task_id":      "task-999",
	}

	result, err := tool.Handle(context.Background(), req)
	if err != nil {
		t.Fatalf("Handle failed: %v", err)
	}
	if !isErrorResult(result) {
		t.Error("unknown task should be a tool error")
	}
}
