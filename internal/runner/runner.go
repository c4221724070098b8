// Package runner executes the external verification command for a
// task in a bounded retry loop.
//
// Each round is a blocking call with a timeout; a timeout is a failed
// round, not a crash. Between failed rounds an optional Fixer
// collaborator may attempt a repair; when it declines, the loop stops
// early. Whatever happens, the round history is persisted so no
// attempt is silently lost.
package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/taskforge/specdrive/internal/index"
)

const (
	// DefaultMaxRounds bounds the verify-fix loop.
	DefaultMaxRounds = 3
	// DefaultTimeout bounds a single verification run.
	DefaultTimeout = 60 * time.Second
	// TestPlaceholder in the command argv is replaced with the task's
	// verification file path.
	TestPlaceholder = "{test}"
)

// Config controls the verification loop.
type Config struct {
	// Command is the external runner argv, e.g.
	// ["go", "test", "-run", ".", "./..."] or ["pytest", "{test}", "-v"].
	Command []string
	// MaxRounds caps the retry loop; zero means DefaultMaxRounds.
	MaxRounds int
	// Timeout caps one round; zero means DefaultTimeout.
	Timeout time.Duration
	// Dir is the working directory for the command.
	Dir string
	// ReportDir is where round reports are persisted.
	ReportDir string
}

// Round records the outcome of one verification attempt.
type Round struct {
	Round     int      `json:"round"`
	Success   bool     `json:"success"`
	Total     int      `json:"total"`
	Passed    int      `json:"passed"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
	FixTried  bool     `json:"fix_tried,omitempty"`
	Timestamp string   `json:"timestamp"`
}

// Report is the persisted verification history for a task.
type Report struct {
	TaskID      string  `json:"task_id"`
	Success     bool    `json:"success"`
	TotalRounds int     `json:"total_rounds"`
	Rounds      []Round `json:"rounds"`
}

// Fixer attempts to repair the artifacts after a failed round. The
// boolean is false when the fixer declines to produce a change, which
// terminates the loop early.
type Fixer interface {
	Fix(ctx context.Context, task *index.Task, last Round) (bool, error)
}

// Runner drives the bounded verify-fix loop.
type Runner struct {
	cfg   Config
	fixer Fixer
}

// New creates a runner. fixer may be nil, in which case a failed first
// round ends the loop — re-running an identical command cannot change
// the outcome.
func New(cfg Config, fixer Fixer) *Runner {
	if cfg.MaxRounds <= 0 {
		cfg.MaxRounds = DefaultMaxRounds
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &Runner{cfg: cfg, fixer: fixer}
}

// Run executes up to MaxRounds verification rounds for the task and
// persists the report regardless of the final outcome. The returned
// report's Success field says whether verification ultimately passed;
// the error covers infrastructure failures only (no command
// configured, report not writable).
func (r *Runner) Run(ctx context.Context, task *index.Task) (*Report, error) {
	if len(r.cfg.Command) == 0 {
		return nil, fmt.Errorf("no verification command configured")
	}

	report := &Report{TaskID: task.ID}

	for n := 1; n <= r.cfg.MaxRounds; n++ {
		round := r.runRound(ctx, task, n)
		report.Rounds = append(report.Rounds, round)
		report.TotalRounds = n

		if round.Success {
			report.Success = true
			break
		}
		if n == r.cfg.MaxRounds {
			break
		}

		if r.fixer == nil {
			break
		}
		applied, err := r.fixer.Fix(ctx, task, round)
		report.Rounds[n-1].FixTried = true
		if err != nil || !applied {
			// Fixer declined or failed — give up and report.
			break
		}
	}

	if err := r.saveReport(report); err != nil {
		return report, err
	}
	return report, nil
}

// runRound executes the verification command once with the configured
// timeout and parses its output.
func (r *Runner) runRound(ctx context.Context, task *index.Task, n int) Round {
	round := Round{Round: n, Timestamp: timeNow().UTC().Format(time.RFC3339)}

	runCtx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	argv := r.expandCommand(task)
	cmd := exec.CommandContext(runCtx, argv[0], argv[1:]...)
	cmd.Dir = r.cfg.Dir

	out, err := cmd.CombinedOutput()
	if runCtx.Err() == context.DeadlineExceeded {
		round.Errors = []string{"verification run timed out"}
		return round
	}

	round.Passed, round.Failed, round.Total = parseCounts(string(out))
	round.Errors = extractFailures(string(out))
	round.Success = err == nil
	return round
}

// expandCommand substitutes the test-path placeholder in the argv.
func (r *Runner) expandCommand(task *index.Task) []string {
	argv := make([]string, len(r.cfg.Command))
	for i, a := range r.cfg.Command {
		argv[i] = strings.ReplaceAll(a, TestPlaceholder, VerificationPath(task.File))
	}
	return argv
}

// VerificationPath infers the companion verification file for a task
// artifact: Go sources pair with a sibling _test.go file, Python
// sources with tests/unit/test_<name>.py, anything else with a
// <path>_test sibling.
func VerificationPath(file string) string {
	switch filepath.Ext(file) {
	case ".go":
		return strings.TrimSuffix(file, ".go") + "_test.go"
	case ".py":
		return filepath.ToSlash(filepath.Join("tests", "unit", "test_"+filepath.Base(file)))
	default:
		return file + "_test"
	}
}

// --- Output parsing ---

var (
	passedRe = regexp.MustCompile(`(\d+) passed`)
	failedRe = regexp.MustCompile(`(\d+) failed`)
	errorRe  = regexp.MustCompile(`(\d+) error`)
)

// parseCounts extracts pass/fail counts from pytest-style output.
// Runners with different summaries yield zero counts; success is
// still judged by exit code.
func parseCounts(out string) (passed, failed, total int) {
	passed = firstCount(passedRe, out)
	failed = firstCount(failedRe, out)
	total = passed + failed + firstCount(errorRe, out)
	return passed, failed, total
}

func firstCount(re *regexp.Regexp, out string) int {
	m := re.FindStringSubmatch(out)
	if m == nil {
		return 0
	}
	n, _ := strconv.Atoi(m[1])
	return n
}

// extractFailures pulls individual failure lines out of the output for
// the report, capped to keep reports readable.
func extractFailures(out string) []string {
	const maxErrors = 10
	var errs []string
	for _, line := range strings.Split(out, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "FAILED") || strings.HasPrefix(trimmed, "--- FAIL:") {
			errs = append(errs, trimmed)
			if len(errs) == maxErrors {
				break
			}
		}
	}
	return errs
}

// --- Report persistence ---

// ReportPath returns where a task's verification report lives.
func ReportPath(reportDir, taskID string) string {
	return filepath.Join(reportDir, fmt.Sprintf("verify_%s.json", taskID))
}

func (r *Runner) saveReport(report *Report) error {
	if r.cfg.ReportDir == "" {
		return nil
	}
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling verification report: %w", err)
	}
	if err := os.MkdirAll(r.cfg.ReportDir, 0o755); err != nil {
		return fmt.Errorf("creating report directory: %w", err)
	}
	return os.WriteFile(ReportPath(r.cfg.ReportDir, report.TaskID), data, 0o644)
}

// LoadReport reads a previously persisted report; a missing report is
// (nil, nil) — tasks verified out of band simply have no history.
func LoadReport(reportDir, taskID string) (*Report, error) {
	data, err := os.ReadFile(ReportPath(reportDir, taskID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading verification report: %w", err)
	}
	var report Report
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("parsing verification report: %w", err)
	}
	return &report, nil
}
