// Package schedule selects the next unit of work from the task index.
//
// Selection is deliberately simple and deterministic: stable document
// order within two priority bands (in_progress before pending), gated
// by dependency satisfaction. The scheduler never mutates the index.
package schedule

import (
	"log"

	"github.com/taskforge/specdrive/internal/index"
)

// Blocker describes one unsatisfied dependency of a task. Task is nil
// when the dependency id does not resolve to any task in the index —
// an unresolved id blocks its dependents indefinitely (fail closed)
// rather than being treated as satisfied.
type Blocker struct {
	ID   string
	Task *index.Task
}

// Resolved reports whether the blocking dependency id exists in the
// index at all.
func (b Blocker) Resolved() bool {
	return b.Task != nil
}

// Scheduler answers "what should be worked next" over a loaded task
// index. The index is passed in explicitly — the scheduler holds no
// global state, so repeated or concurrent read-only invocations over
// different indexes are safe.
type Scheduler struct {
	idx *index.TaskIndex
}

// New creates a scheduler over a loaded index.
func New(idx *index.TaskIndex) *Scheduler {
	return &Scheduler{idx: idx}
}

// FindByID returns the task with the given id, or nil.
func (s *Scheduler) FindByID(id string) *index.Task {
	return s.idx.Find(id)
}

// FindNext returns the next workable task, or nil when everything is
// either completed or blocked. Priority:
//  1. first in_progress task (document order) with satisfied deps
//  2. first pending task with satisfied deps
func (s *Scheduler) FindNext() *index.Task {
	for i := range s.idx.Tasks {
		t := &s.idx.Tasks[i]
		if t.Status == index.StatusInProgress && s.Eligible(t) {
			return t
		}
	}
	for i := range s.idx.Tasks {
		t := &s.idx.Tasks[i]
		if t.Status == index.StatusPending && s.Eligible(t) {
			return t
		}
	}
	return nil
}

// Eligible reports whether every dependency of the task resolves to a
// completed task. A task with no dependencies is always eligible. A
// dangling dependency id is logged as a warning and treated as
// unsatisfied.
func (s *Scheduler) Eligible(t *index.Task) bool {
	for _, depID := range t.Dependencies {
		dep := s.idx.Find(depID)
		if dep == nil {
			log.Printf("WARNING: task %s depends on %s, which does not exist in the index", t.ID, depID)
			return false
		}
		if dep.Status != index.StatusCompleted {
			return false
		}
	}
	return true
}

// Blockers returns the dependencies of a task that are not completed,
// unresolved ids included. A non-empty result means "do not execute" —
// callers must not auto-resolve blockers.
func (s *Scheduler) Blockers(t *index.Task) []Blocker {
	var blockers []Blocker
	for _, depID := range t.Dependencies {
		dep := s.idx.Find(depID)
		if dep == nil {
			blockers = append(blockers, Blocker{ID: depID})
			continue
		}
		if dep.Status != index.StatusCompleted {
			blockers = append(blockers, Blocker{ID: depID, Task: dep})
		}
	}
	return blockers
}
