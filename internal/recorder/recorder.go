// Package recorder appends a structured completion entry to the
// specification document when a task finishes, and flags the task as
// documented in the index.
//
// Recording is idempotent: a task is documented at most once, guarded
// both by the index flag and by the entry's marker text in the
// document. Writes follow the same document-first ordering as the
// syncer, so a crash between the two is recovered by simply calling
// Record again.
package recorder

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/taskforge/specdrive/internal/analyzer"
	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/runner"
	"github.com/taskforge/specdrive/internal/spec"
)

// Details are the collaborator-supplied inputs for a completion entry.
// The recorder renders them; it does not compute them.
type Details struct {
	// Files are structural summaries of the produced artifacts.
	Files []analyzer.FileSummary
	// Report is the verification history, if any.
	Report *runner.Report
}

// Recorder writes completion entries.
type Recorder struct {
	store index.Store
}

// New creates a recorder with the given index store.
func New(store index.Store) *Recorder {
	return &Recorder{store: store}
}

// CompletionMarker is the unique text identifying a task's completion
// entry in the document.
func CompletionMarker(title string) string {
	return fmt.Sprintf("<summary>✅ %s — completion details</summary>", title)
}

// Record appends the completion entry for taskID and marks it
// documented. Returns false with a nil error when the task was already
// documented — a no-op success, not a failure.
func (r *Recorder) Record(specPath, indexPath string, idx *index.TaskIndex, taskID string, details Details) (bool, error) {
	task := idx.Find(taskID)
	if task == nil {
		return false, fmt.Errorf("task %q not found in index", taskID)
	}
	if task.Documented {
		return false, nil
	}

	data, err := os.ReadFile(specPath)
	if err != nil {
		if os.IsNotExist(err) {
			return false, fmt.Errorf("specification document not found at %s", specPath)
		}
		return false, fmt.Errorf("reading specification document: %w", err)
	}
	content := string(data)

	now := timeNow().UTC().Format(time.RFC3339)

	// Document already carries the entry (crash after the document
	// write, before the index write): converge by flagging the index
	// without splicing a duplicate.
	if !strings.Contains(content, CompletionMarker(task.Title)) {
		entry := renderEntry(task, details, now)
		offset := spec.FindInsertionPoint(content, task.Phase)
		if offset >= 0 {
			entry = "\n#### Completion record\n\n" + entry
		}
		content = spec.Splice(content, entry, offset)
		if err := os.WriteFile(specPath, []byte(content), 0o644); err != nil {
			return false, fmt.Errorf("writing specification document: %w", err)
		}
	}

	task.Documented = true
	task.DocumentedAt = now
	if err := r.store.Save(indexPath, idx); err != nil {
		return false, fmt.Errorf("saving task index after documenting: %w", err)
	}
	return true, nil
}

// renderEntry builds the collapsible completion entry.
func renderEntry(task *index.Task, details Details, timestamp string) string {
	var b strings.Builder

	b.WriteString("<details>\n")
	b.WriteString(CompletionMarker(task.Title))
	b.WriteString("\n\n### Objective\n")
	if task.AcceptanceCriteria != "" {
		b.WriteString(task.AcceptanceCriteria)
	} else {
		b.WriteString("none recorded")
	}
	b.WriteString("\n\n### Implementation\n")

	if len(details.Files) > 0 {
		b.WriteString("\n#### Files\n")
		for _, f := range details.Files {
			fmt.Fprintf(&b, "* `%s`\n", f.File)
		}
		writeDeclarations(&b, details.Files)
	}

	b.WriteString("\n### Acceptance verification\n")
	writeVerification(&b, task, details.Report)

	b.WriteString("\n### How to verify\n```bash\n")
	fmt.Fprintf(&b, "go test ./... -run . # or: %s\n", runner.VerificationPath(task.File))
	b.WriteString("```\n")

	b.WriteString("\n### Completed\n")
	b.WriteString(timestamp)
	b.WriteString("\n\n</details>\n")

	return b.String()
}

func writeDeclarations(b *strings.Builder, files []analyzer.FileSummary) {
	any := false
	for _, f := range files {
		if len(f.Declarations) > 0 {
			any = true
			break
		}
	}
	if !any {
		return
	}

	b.WriteString("\n#### Declarations\n")
	for _, f := range files {
		if len(f.Declarations) == 0 {
			continue
		}
		fmt.Fprintf(b, "* **`%s`** (package %s)\n", f.File, f.Package)
		for _, d := range f.Declarations {
			if d.Doc != "" {
				fmt.Fprintf(b, "  * `%s` — %s\n", d.Signature, d.Doc)
			} else {
				fmt.Fprintf(b, "  * `%s`\n", d.Signature)
			}
		}
	}
}

func writeVerification(b *strings.Builder, task *index.Task, report *runner.Report) {
	if report == nil || len(report.Rounds) == 0 {
		fmt.Fprintf(b, "* ✅ %s\n", task.AcceptanceCriteria)
		return
	}

	last := report.Rounds[len(report.Rounds)-1]
	if report.Success {
		fmt.Fprintf(b, "* ✅ tests passed: %d cases\n", last.Passed)
	} else {
		fmt.Fprintf(b, "* ⚠️ tests not fully passing: %d passed, %d failed\n", last.Passed, last.Failed)
	}
	if report.TotalRounds > 1 {
		fmt.Fprintf(b, "* took %d verification rounds\n", report.TotalRounds)
	}
}
