package runner

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/taskforge/specdrive/internal/index"
)

func testTask() *index.Task {
	return &index.Task{ID: "task-001", Title: "T", File: "src/t.py"}
}

func TestRun_SuccessFirstRound(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell commands differ on Windows")
	}

	dir := t.TempDir()
	r := New(Config{
		Command:   []string{"sh", "-c", "echo '5 passed'"},
		ReportDir: dir,
	}, nil)

	report, err := r.Run(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Success {
		t.Error("expected success")
	}
	if report.TotalRounds != 1 {
		t.Errorf("TotalRounds = %d, want 1", report.TotalRounds)
	}
	if report.Rounds[0].Passed != 5 || report.Rounds[0].Total != 5 {
		t.Errorf("round counts = %+v", report.Rounds[0])
	}

	// Report persisted regardless of outcome.
	if _, err := os.Stat(ReportPath(dir, "task-001")); err != nil {
		t.Errorf("report not persisted: %v", err)
	}
}

func TestRun_FailureWithoutFixerStopsEarly(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell commands differ on Windows")
	}

	dir := t.TempDir()
	r := New(Config{
		Command:   []string{"sh", "-c", "echo '1 passed'; echo '2 failed'; echo 'FAILED test_a'; exit 1"},
		MaxRounds: 3,
		ReportDir: dir,
	}, nil)

	report, err := r.Run(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Success {
		t.Error("expected failure")
	}
	// No fixer: re-running the same command cannot help.
	if report.TotalRounds != 1 {
		t.Errorf("TotalRounds = %d, want 1", report.TotalRounds)
	}
	round := report.Rounds[0]
	if round.Passed != 1 || round.Failed != 2 || round.Total != 3 {
		t.Errorf("round counts = %+v", round)
	}
	if len(round.Errors) != 1 || round.Errors[0] != "FAILED test_a" {
		t.Errorf("round errors = %v", round.Errors)
	}
}

// flakyFixer "fixes" the run by flipping a file the command checks.
type flakyFixer struct {
	marker string
}

func (f *flakyFixer) Fix(ctx context.Context, task *index.Task, last Round) (bool, error) {
	return true, os.WriteFile(f.marker, []byte("ok"), 0o644)
}

func TestRun_FixerEnablesRetry(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell commands differ on Windows")
	}

	dir := t.TempDir()
	marker := filepath.Join(dir, "fixed")
	r := New(Config{
		Command:   []string{"sh", "-c", "test -f " + marker},
		MaxRounds: 3,
		ReportDir: dir,
	}, &flakyFixer{marker: marker})

	report, err := r.Run(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.Success {
		t.Error("expected success after fix")
	}
	if report.TotalRounds != 2 {
		t.Errorf("TotalRounds = %d, want 2", report.TotalRounds)
	}
	if !report.Rounds[0].FixTried {
		t.Error("first round should record the fix attempt")
	}
}

func TestRun_Timeout(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell commands differ on Windows")
	}

	r := New(Config{
		Command:   []string{"sh", "-c", "sleep 5"},
		MaxRounds: 1,
		Timeout:   50 * time.Millisecond,
		ReportDir: t.TempDir(),
	}, nil)

	report, err := r.Run(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.Success {
		t.Error("expected timeout failure")
	}
	round := report.Rounds[0]
	if len(round.Errors) != 1 || round.Errors[0] != "verification run timed out" {
		t.Errorf("errors = %v", round.Errors)
	}
}

func TestRun_NoCommand(t *testing.T) {
	r := New(Config{}, nil)
	if _, err := r.Run(context.Background(), testTask()); err == nil {
		t.Fatal("expected error with no command configured")
	}
}

func TestExpandCommand_TestPlaceholder(t *testing.T) {
	r := New(Config{Command: []string{"pytest", TestPlaceholder, "-v"}}, nil)
	argv := r.expandCommand(&index.Task{File: "src/core/config.py"})
	want := filepath.ToSlash(filepath.Join("tests", "unit", "test_config.py"))
	if argv[1] != want {
		t.Errorf("argv[1] = %q, want %q", argv[1], want)
	}
}

func TestVerificationPath(t *testing.T) {
	tests := []struct {
		file string
		want string
	}{
		{"internal/spec/parser.go", "internal/spec/parser_test.go"},
		{"src/core/config.py", filepath.ToSlash(filepath.Join("tests", "unit", "test_config.py"))},
		{"scripts/build.sh", "scripts/build.sh_test"},
	}
	for _, tt := range tests {
		if got := VerificationPath(tt.file); got != tt.want {
			t.Errorf("VerificationPath(%q) = %q, want %q", tt.file, got, tt.want)
		}
	}
}

func TestParseCounts(t *testing.T) {
	out := "=== 12 passed, 3 failed, 1 error in 2.4s ==="
	passed, failed, total := parseCounts(out)
	if passed != 12 || failed != 3 || total != 16 {
		t.Errorf("parseCounts = %d/%d/%d, want 12/3/16", passed, failed, total)
	}

	passed, failed, total = parseCounts("no recognizable summary")
	if passed != 0 || failed != 0 || total != 0 {
		t.Errorf("parseCounts on noise = %d/%d/%d, want zeros", passed, failed, total)
	}
}

func TestExtractFailures_CapsAtTen(t *testing.T) {
	out := ""
	for i := 0; i < 15; i++ {
		out += "FAILED case\n"
	}
	out += "--- FAIL: TestX\n"

	errs := extractFailures(out)
	if len(errs) != 10 {
		t.Errorf("got %d failure lines, want cap of 10", len(errs))
	}
}

func TestLoadReport_Missing(t *testing.T) {
	report, err := LoadReport(t.TempDir(), "task-001")
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if report != nil {
		t.Error("missing report should be (nil, nil)")
	}
}

func TestLoadReport_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	r := New(Config{Command: []string{"true"}, ReportDir: dir}, nil)

	saved, err := r.Run(context.Background(), testTask())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	loaded, err := LoadReport(dir, "task-001")
	if err != nil {
		t.Fatalf("LoadReport: %v", err)
	}
	if loaded == nil || loaded.TaskID != saved.TaskID || loaded.Success != saved.Success {
		t.Errorf("loaded = %+v, want %+v", loaded, saved)
	}
}
