// Package syncer applies status transitions across the two persisted
// artifacts — specification document and task index — without letting
// them diverge.
//
// There is no transaction spanning two files, so the syncer commits in
// a fixed order: document first, then index. A crash between the two
// leaves the human-facing document correct and the index recoverable;
// Verify detects the divergence and Repair rebuilds index status from
// document checkboxes (document precedence).
package syncer

import (
	"errors"
	"fmt"
	"os"

	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/spec"
)

// ErrUnknownTask is returned when the requested task id is not in the
// index. Callers treat it as user input error, not infrastructure
// failure.
var ErrUnknownTask = errors.New("task not found in index")

// Syncer owns the read-modify-write cycle for status changes. The
// loaded index is passed to each operation explicitly; the syncer
// keeps no document or index state between calls.
type Syncer struct {
	store  index.Store
	parser *spec.Parser
}

// New creates a syncer with the given index store and parser. The
// parser is used by the verification and repair paths; pass the same
// one used to build the index so phase detection agrees.
func New(store index.Store, parser *spec.Parser) *Syncer {
	return &Syncer{store: store, parser: parser}
}

// SetStatus transitions one task to the target status in both
// artifacts. The operation is idempotent: setting an already-current
// status rewrites the same bytes. On any failure before the document
// write, neither artifact is touched; a failure between the writes
// leaves the document ahead of the index, which Repair can reconcile.
func (s *Syncer) SetStatus(specPath, indexPath string, idx *index.TaskIndex, taskID string, status index.Status) error {
	if err := index.ValidateStatus(status); err != nil {
		return err
	}

	task := idx.Find(taskID)
	if task == nil {
		return fmt.Errorf("task %q: %w", taskID, ErrUnknownTask)
	}

	data, err := os.ReadFile(specPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("specification document not found at %s", specPath)
		}
		return fmt.Errorf("reading specification document: %w", err)
	}

	patched, err := spec.SetRowStatus(string(data), task.Title, task.File, status)
	if err != nil {
		return fmt.Errorf("locating row for task %s (title %q, file %q): %w", taskID, task.Title, task.File, err)
	}

	// Roll the phase progress table forward against the new status
	// before anything is persisted.
	task.Status = status
	phases, stats := idx.StatsByPhase()
	patched = spec.UpdateProgressTable(patched, phases, stats, timeNow().UTC().Format("2006-01-02"))

	// Commit: document first, then index.
	if err := os.WriteFile(specPath, []byte(patched), 0o644); err != nil {
		return fmt.Errorf("writing specification document: %w", err)
	}
	if err := s.store.Save(indexPath, idx); err != nil {
		return fmt.Errorf("saving task index after document update: %w", err)
	}

	return nil
}

// Divergence is a per-task disagreement between the document's
// checkbox state and the index's stored status.
type Divergence struct {
	TaskID   string
	Title    string
	Document index.Status
	Index    index.Status
}

// Verify re-parses the document and reports every task whose checkbox
// disagrees with the index. Nothing is corrected here — the caller (an
// operator, or Repair) chooses precedence.
func (s *Syncer) Verify(specPath string, idx *index.TaskIndex) ([]Divergence, error) {
	parsed, err := s.parser.ParseFile(specPath)
	if err != nil {
		return nil, fmt.Errorf("re-parsing specification document: %w", err)
	}
	if parsed.TotalTasks != idx.TotalTasks {
		return nil, fmt.Errorf("document has %d tasks but index has %d — re-run sync",
			parsed.TotalTasks, idx.TotalTasks)
	}

	var divergences []Divergence
	for i := range idx.Tasks {
		stored := &idx.Tasks[i]
		inDoc := parsed.Find(stored.ID)
		if inDoc == nil || inDoc.Status == stored.Status {
			continue
		}
		divergences = append(divergences, Divergence{
			TaskID:   stored.ID,
			Title:    stored.Title,
			Document: inDoc.Status,
			Index:    stored.Status,
		})
	}
	return divergences, nil
}

// Repair reconciles the index to match document checkboxes — the
// document is human-edited and therefore the source of truth for
// recovery. Task identity, dependencies, and documented flags are
// preserved; only statuses and counters change. Returns the number of
// tasks corrected.
func (s *Syncer) Repair(specPath, indexPath string, idx *index.TaskIndex) (int, error) {
	divergences, err := s.Verify(specPath, idx)
	if err != nil {
		return 0, err
	}
	if len(divergences) == 0 {
		return 0, nil
	}

	for _, d := range divergences {
		if task := idx.Find(d.TaskID); task != nil {
			task.Status = d.Document
		}
	}
	if err := s.store.Save(indexPath, idx); err != nil {
		return 0, fmt.Errorf("saving repaired task index: %w", err)
	}
	return len(divergences), nil
}
