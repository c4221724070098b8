// Package index owns the machine-readable task index: the canonical
// source of truth for scheduling decisions.
//
// The index mirrors the checkbox state of the specification document.
// Once parsing is done, status flows from the index into the document,
// never the reverse — except for the explicit repair path in the syncer
// package, which rebuilds the index from document checkboxes.
package index

import "fmt"

// --- Task status enum ---

// Status is the lifecycle state of a task.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// validStatuses is the set of allowed task statuses.
var validStatuses = map[Status]bool{
	StatusPending:    true,
	StatusInProgress: true,
	StatusCompleted:  true,
}

// ValidateStatus returns an error if the status is not recognized.
func ValidateStatus(s Status) error {
	if !validStatuses[s] {
		return fmt.Errorf("invalid task status %q: must be one of: pending, in_progress, completed", s)
	}
	return nil
}

// --- Core data structures ---

// Task is one unit of schedulable work, tied to one artifact and one
// row of the specification document's task table.
type Task struct {
	ID                 string   `json:"id"`
	Title              string   `json:"title"`
	File               string   `json:"file"`
	Status             Status   `json:"status"`
	Phase              string   `json:"phase"`
	Dependencies       []string `json:"dependencies"`
	Description        string   `json:"description,omitempty"`
	AcceptanceCriteria string   `json:"acceptance_criteria"`
	EstimatedHours     int      `json:"estimated_hours"`
	Documented         bool     `json:"documented,omitempty"`
	DocumentedAt       string   `json:"documented_at,omitempty"`
}

// TaskIndex is the root persisted structure, written as task_index.json.
// The three counters are redundant with the task list; Recount keeps
// them honest. total = completed + in_progress + pending always holds
// after Recount.
type TaskIndex struct {
	SpecFile   string `json:"spec_file"`
	TotalTasks int    `json:"total_tasks"`
	Completed  int    `json:"completed"`
	InProgress int    `json:"in_progress"`
	Pending    int    `json:"pending"`
	Tasks      []Task `json:"tasks"`
}

// Find returns a pointer to the task with the given id, or nil.
// The pointer aliases the index's backing slice, so mutations through
// it are visible to subsequent Save calls.
func (idx *TaskIndex) Find(id string) *Task {
	for i := range idx.Tasks {
		if idx.Tasks[i].ID == id {
			return &idx.Tasks[i]
		}
	}
	return nil
}

// Recount recomputes the aggregate counters from the task list.
// Counters are always recomputed from scratch rather than incremented,
// so a missed transition cannot make them drift.
func (idx *TaskIndex) Recount() {
	idx.TotalTasks = len(idx.Tasks)
	idx.Completed = 0
	idx.InProgress = 0
	idx.Pending = 0
	for i := range idx.Tasks {
		switch idx.Tasks[i].Status {
		case StatusCompleted:
			idx.Completed++
		case StatusInProgress:
			idx.InProgress++
		default:
			idx.Pending++
		}
	}
}

// PhaseStats is the per-phase completion rollup consumed by the
// progress-table patcher.
type PhaseStats struct {
	Total      int
	Completed  int
	InProgress int
}

// StatsByPhase groups task counts by phase label, preserving first-seen
// phase order.
func (idx *TaskIndex) StatsByPhase() (order []string, stats map[string]PhaseStats) {
	stats = make(map[string]PhaseStats)
	for i := range idx.Tasks {
		phase := idx.Tasks[i].Phase
		st, ok := stats[phase]
		if !ok {
			order = append(order, phase)
		}
		st.Total++
		switch idx.Tasks[i].Status {
		case StatusCompleted:
			st.Completed++
		case StatusInProgress:
			st.InProgress++
		}
		stats[phase] = st
	}
	return order, stats
}
