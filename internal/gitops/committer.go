// Package gitops creates version-control commits for completed tasks.
// It shells out to git; outside a repository every operation is a
// no-op reported to the caller, never an error that stops the
// pipeline.
package gitops

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/taskforge/specdrive/internal/index"
)

// Committer stages and commits changes for a task.
type Committer struct {
	root string
}

// New creates a committer operating in the given repository root.
func New(root string) *Committer {
	return &Committer{root: root}
}

// IsRepo reports whether root is inside a git repository.
func (c *Committer) IsRepo() bool {
	_, err := os.Stat(filepath.Join(c.root, ".git"))
	return err == nil
}

// CommitTask stages the given files (or everything, when files is
// empty) and commits with a generated message. Returns false when not
// in a repository.
func (c *Committer) CommitTask(task *index.Task, files []string) (bool, error) {
	if !c.IsRepo() {
		return false, nil
	}

	if len(files) == 0 {
		if err := c.git("add", "-A"); err != nil {
			return false, fmt.Errorf("staging changes: %w", err)
		}
	} else {
		for _, f := range files {
			if err := c.git("add", f); err != nil {
				return false, fmt.Errorf("staging %s: %w", f, err)
			}
		}
	}

	if err := c.git("commit", "-m", CommitMessage(task)); err != nil {
		return false, fmt.Errorf("creating commit: %w", err)
	}
	return true, nil
}

func (c *Committer) git(args ...string) error {
	cmd := exec.Command("git", args...)
	cmd.Dir = c.root
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("git %s: %v: %s", args[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}

// CommitMessage renders a conventional-commit style message for a
// task, e.g. "feat(core): configuration loader". The scope is the
// path segment after src/ (or the first segment) of the task's
// artifact.
func CommitMessage(task *index.Task) string {
	return fmt.Sprintf("feat(%s): %s", moduleScope(task.File), task.Title)
}

func moduleScope(file string) string {
	parts := strings.Split(filepath.ToSlash(file), "/")
	for i, p := range parts {
		if p != "src" {
			continue
		}
		if i+1 < len(parts)-1 {
			return parts[i+1] // directory under src/
		}
		return "core" // file sits directly in src/
	}
	return "misc"
}
