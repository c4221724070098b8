// Specdrive: task scheduling MCP server for spec-driven implementation.
//
// One markdown document holds the task tables; a JSON index mirrors it
// and drives scheduling. Specdrive keeps the two in step and hands an
// AI coding tool one eligible task at a time.
//
// Usage:
//
//	specdrive serve                      # Start MCP server (stdio transport)
//	specdrive sync [--split]             # Rebuild the index from the document
//	specdrive next [task-id]             # Show the next actionable task
//	specdrive status                     # Progress summary
//	specdrive set-status <id> <status> [--commit]
//	specdrive run <task-id>              # Run verification for a task
//	specdrive document <task-id>         # Append a completion record
//	specdrive verify [--repair]          # Check document/index consistency
//	specdrive update                     # Update to the latest version
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/taskforge/specdrive/internal/analyzer"
	"github.com/taskforge/specdrive/internal/config"
	"github.com/taskforge/specdrive/internal/gitops"
	"github.com/taskforge/specdrive/internal/history"
	"github.com/taskforge/specdrive/internal/index"
	"github.com/taskforge/specdrive/internal/recorder"
	"github.com/taskforge/specdrive/internal/runner"
	"github.com/taskforge/specdrive/internal/schedule"
	sdserver "github.com/taskforge/specdrive/internal/server"
	"github.com/taskforge/specdrive/internal/spec"
	"github.com/taskforge/specdrive/internal/syncer"
	"github.com/taskforge/specdrive/internal/updater"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe()
	case "sync":
		err = runSync(os.Args[2:])
	case "next":
		err = runNext(os.Args[2:])
	case "status":
		err = runStatus()
	case "set-status":
		err = runSetStatus(os.Args[2:])
	case "run":
		err = runVerification(os.Args[2:])
	case "document":
		err = runDocument(os.Args[2:])
	case "verify":
		err = runVerify(os.Args[2:])
	case "update":
		runUpdate()
	case "--help", "-h", "help":
		printUsage()
	case "--version", "-v", "version":
		fmt.Printf("specdrive v%s\n", sdserver.Version)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe() error {
	s, cleanup, err := sdserver.New()
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}
	defer cleanup()

	// Background version check — prints to stderr so it doesn't
	// interfere with MCP's stdio transport on stdout.
	go checkForUpdates()

	// Graceful shutdown on interrupt.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigCh
		cancel()
	}()

	_ = ctx // stdio server manages its own lifecycle

	return server.ServeStdio(s)
}

// project bundles what every local command needs.
type project struct {
	root    string
	cfg     *config.Settings
	store   index.Store
	journal *history.Store
}

// openProject resolves the project root, loads settings, and opens the
// history journal. A journal failure disables history with a warning;
// it never fails the command.
func openProject() (*project, func()) {
	p := &project{store: index.NewFileStore()}

	root, err := config.FindProjectRoot()
	if err != nil {
		log.Printf("WARNING: %v", err)
		root = "."
	}
	p.root = root

	cfg, err := config.Load(root)
	if err != nil {
		log.Printf("WARNING: %v, using defaults", err)
		cfg = config.Default()
	}
	p.cfg = cfg

	cleanup := func() {}
	if path := cfg.HistoryPath(root); path != "" {
		journal, err := history.Open(path)
		if err != nil {
			log.Printf("WARNING: history disabled: %v", err)
		} else {
			p.journal = journal
			cleanup = func() { _ = journal.Close() }
		}
	}
	return p, cleanup
}

func (p *project) parser() *spec.Parser {
	return &spec.Parser{PhaseKeyword: p.cfg.PhaseKeyword, DepRules: spec.DefaultDepRules}
}

func (p *project) loadIndex() (*index.TaskIndex, error) {
	idx, err := p.store.Load(p.cfg.IndexPath(p.root))
	if err != nil {
		return nil, fmt.Errorf("loading task index (run `specdrive sync` first?): %w", err)
	}
	return idx, nil
}

func runSync(args []string) error {
	p, cleanup := openProject()
	defer cleanup()

	idx, err := p.parser().ParseFile(p.cfg.SpecPath(p.root))
	if err != nil {
		_ = p.journal.Failed(history.OpSync, "", err.Error())
		return fmt.Errorf("parsing specification document: %w", err)
	}
	if err := p.store.Save(p.cfg.IndexPath(p.root), idx); err != nil {
		_ = p.journal.Failed(history.OpSync, "", err.Error())
		return fmt.Errorf("saving task index: %w", err)
	}
	_ = p.journal.Ok(history.OpSync, "", fmt.Sprintf("%d tasks", idx.TotalTasks))

	fmt.Printf("Synced %d tasks: %d completed, %d in progress, %d pending\n",
		idx.TotalTasks, idx.Completed, idx.InProgress, idx.Pending)

	if hasFlag(args, "--split") {
		data, err := os.ReadFile(p.cfg.SpecPath(p.root))
		if err != nil {
			return fmt.Errorf("reading specification document: %w", err)
		}
		n, err := spec.SplitSections(string(data), filepath.Join(p.root, p.cfg.SpecsDir, "sections"))
		if err != nil {
			return fmt.Errorf("splitting sections: %w", err)
		}
		fmt.Printf("Split %d sections\n", n)
	}
	return nil
}

func runNext(args []string) error {
	p, cleanup := openProject()
	defer cleanup()

	idx, err := p.loadIndex()
	if err != nil {
		return err
	}
	sched := schedule.New(idx)

	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		task := sched.FindByID(args[0])
		if task == nil {
			return fmt.Errorf("unknown task %q", args[0])
		}
		blockers := sched.Blockers(task)
		if len(blockers) == 0 {
			printTask(task)
			return nil
		}
		fmt.Printf("%s is blocked:\n", task.ID)
		for _, b := range blockers {
			if b.Resolved() {
				fmt.Printf("  - %s (%s)\n", b.ID, b.Task.Status)
			} else {
				fmt.Printf("  - %s (not in index)\n", b.ID)
			}
		}
		return nil
	}

	task := sched.FindNext()
	if task == nil {
		fmt.Println("No eligible work: everything is completed or blocked.")
		return nil
	}
	_ = p.journal.Ok(history.OpSchedule, task.ID, "selected")
	printTask(task)
	return nil
}

func printTask(task *index.Task) {
	fmt.Printf("%s  %s\n", task.ID, task.Title)
	fmt.Printf("  file:   %s\n", task.File)
	fmt.Printf("  phase:  %s\n", task.Phase)
	fmt.Printf("  status: %s\n", task.Status)
	if len(task.Dependencies) > 0 {
		fmt.Printf("  deps:   %s\n", strings.Join(task.Dependencies, ", "))
	}
	if task.AcceptanceCriteria != "" {
		fmt.Printf("  accept: %s\n", task.AcceptanceCriteria)
	}
}

func runStatus() error {
	p, cleanup := openProject()
	defer cleanup()

	idx, err := p.loadIndex()
	if err != nil {
		return err
	}

	fmt.Printf("%s: %d tasks, %d completed, %d in progress, %d pending\n",
		idx.SpecFile, idx.TotalTasks, idx.Completed, idx.InProgress, idx.Pending)

	order, stats := idx.StatsByPhase()
	for _, phase := range order {
		st := stats[phase]
		fmt.Printf("  %-30s %d/%d (%s)\n", phase, st.Completed, st.Total, spec.PhaseProgress(st))
	}
	return nil
}

func runSetStatus(args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: specdrive set-status <task-id> <pending|in_progress|completed> [--commit]")
	}
	taskID, status := args[0], index.Status(args[1])

	p, cleanup := openProject()
	defer cleanup()

	idx, err := p.loadIndex()
	if err != nil {
		return err
	}

	sync := syncer.New(p.store, p.parser())
	if err := sync.SetStatus(p.cfg.SpecPath(p.root), p.cfg.IndexPath(p.root), idx, taskID, status); err != nil {
		_ = p.journal.Failed(history.OpStatus, taskID, err.Error())
		return err
	}
	_ = p.journal.Ok(history.OpStatus, taskID, string(status))
	fmt.Printf("%s is now %s\n", taskID, status)

	if status == index.StatusCompleted && hasFlag(args, "--commit") {
		task := idx.Find(taskID)
		committed, err := gitops.New(p.root).CommitTask(task, nil)
		if err != nil {
			return fmt.Errorf("committing: %w", err)
		}
		if committed {
			fmt.Printf("Committed: %s\n", gitops.CommitMessage(task))
		} else {
			fmt.Println("Not a git repository, commit skipped.")
		}
	}
	return nil
}

func runVerification(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: specdrive run <task-id>")
	}

	p, cleanup := openProject()
	defer cleanup()

	idx, err := p.loadIndex()
	if err != nil {
		return err
	}
	task := idx.Find(args[0])
	if task == nil {
		return fmt.Errorf("unknown task %q", args[0])
	}

	run := runner.New(runner.Config{
		Command:   p.cfg.Verification.Command,
		MaxRounds: p.cfg.Verification.MaxRounds,
		Timeout:   time.Duration(p.cfg.Verification.TimeoutSeconds) * time.Second,
		Dir:       p.root,
		ReportDir: filepath.Join(p.root, p.cfg.SpecsDir),
	}, nil)

	report, err := run.Run(context.Background(), task)
	if err != nil {
		_ = p.journal.Failed(history.OpVerify, task.ID, err.Error())
		return err
	}

	for _, round := range report.Rounds {
		outcome := "FAIL"
		if round.Success {
			outcome = "PASS"
		}
		fmt.Printf("round %d: %s", round.Round, outcome)
		if round.Total > 0 {
			fmt.Printf(" (%d/%d)", round.Passed, round.Total)
		}
		fmt.Println()
		for _, e := range round.Errors {
			fmt.Printf("  %s\n", e)
		}
	}

	if report.Success {
		_ = p.journal.Ok(history.OpVerify, task.ID, "passed")
		fmt.Printf("Verification passed after %d round(s)\n", report.TotalRounds)
		return nil
	}
	_ = p.journal.Ok(history.OpVerify, task.ID, "failed")
	return fmt.Errorf("verification failed after %d round(s)", report.TotalRounds)
}

func runDocument(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: specdrive document <task-id>")
	}

	p, cleanup := openProject()
	defer cleanup()

	idx, err := p.loadIndex()
	if err != nil {
		return err
	}
	task := idx.Find(args[0])
	if task == nil {
		return fmt.Errorf("unknown task %q", args[0])
	}
	if task.Status != index.StatusCompleted {
		return fmt.Errorf("%s is %s, not completed", task.ID, task.Status)
	}

	details := recorder.Details{
		Files: analyzer.New(p.root).AnalyzeFiles([]string{task.File}),
	}
	report, err := runner.LoadReport(filepath.Join(p.root, p.cfg.SpecsDir), task.ID)
	if err != nil {
		log.Printf("WARNING: loading verification report: %v", err)
	}
	details.Report = report

	recorded, err := recorder.New(p.store).Record(p.cfg.SpecPath(p.root), p.cfg.IndexPath(p.root), idx, task.ID, details)
	if err != nil {
		_ = p.journal.Failed(history.OpDocument, task.ID, err.Error())
		return err
	}
	if !recorded {
		fmt.Printf("%s is already documented\n", task.ID)
		return nil
	}
	_ = p.journal.Ok(history.OpDocument, task.ID, "")
	fmt.Printf("Completion record for %s appended to %s\n", task.ID, p.cfg.SpecFile)
	return nil
}

func runVerify(args []string) error {
	p, cleanup := openProject()
	defer cleanup()

	idx, err := p.loadIndex()
	if err != nil {
		return err
	}
	sync := syncer.New(p.store, p.parser())

	if hasFlag(args, "--repair") {
		corrected, err := sync.Repair(p.cfg.SpecPath(p.root), p.cfg.IndexPath(p.root), idx)
		if err != nil {
			_ = p.journal.Failed(history.OpRepair, "", err.Error())
			return err
		}
		_ = p.journal.Ok(history.OpRepair, "", fmt.Sprintf("%d corrected", corrected))
		fmt.Printf("Repaired %d task(s)\n", corrected)
		return nil
	}

	divergences, err := sync.Verify(p.cfg.SpecPath(p.root), idx)
	if err != nil {
		return err
	}
	if len(divergences) == 0 {
		fmt.Println("Document and index agree on every task.")
		return nil
	}
	for _, d := range divergences {
		fmt.Printf("%s (%s): document=%s index=%s\n", d.TaskID, d.Title, d.Document, d.Index)
	}
	return fmt.Errorf("%d divergence(s); run `specdrive verify --repair` to reconcile", len(divergences))
}

func hasFlag(args []string, flag string) bool {
	for _, a := range args {
		if a == flag {
			return true
		}
	}
	return false
}

// checkForUpdates runs a non-blocking version check and prints a notice
// to stderr if an update is available. This runs in a goroutine during
// "serve" and is best-effort — network failures are silently ignored.
func checkForUpdates() {
	result := updater.CheckVersion(sdserver.Version)
	if result.UpdateAvailable {
		fmt.Fprintf(os.Stderr,
			"\n  📦 Update available: v%s → v%s\n"+
				"     Run: specdrive update\n"+
				"     Release: %s\n\n",
			result.CurrentVersion, result.LatestVersion, result.ReleaseURL,
		)
	}
}

// runUpdate performs a self-update to the latest version.
func runUpdate() {
	fmt.Fprintf(os.Stderr, "🔍 Checking for updates...\n")

	result := updater.CheckVersion(sdserver.Version)
	if !result.UpdateAvailable {
		fmt.Fprintf(os.Stderr, "✅ Already at the latest version (v%s)\n", result.CurrentVersion)
		return
	}

	fmt.Fprintf(os.Stderr, "📦 New version available: v%s → v%s\n", result.CurrentVersion, result.LatestVersion)
	fmt.Fprintf(os.Stderr, "⬇️  Downloading...\n")

	if err := updater.SelfUpdate(sdserver.Version); err != nil {
		fmt.Fprintf(os.Stderr, "❌ Update failed: %v\n", err)
		fmt.Fprintf(os.Stderr, "\n   You can download manually from:\n   %s\n", result.ReleaseURL)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "✅ Updated to v%s!\n", result.LatestVersion)
	fmt.Fprintf(os.Stderr, "   Restart specdrive to use the new version.\n")
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `Specdrive v%s — task scheduling MCP server for spec-driven work

Usage:
  specdrive serve                         Start the MCP server (stdio transport)
  specdrive sync [--split]                Rebuild the task index from the document
  specdrive next [task-id]                Show the next actionable task (or check one)
  specdrive status                        Progress summary
  specdrive set-status <id> <status> [--commit]
                                          Set a task's status in document and index
  specdrive run <task-id>                 Run the verification command for a task
  specdrive document <task-id>            Append a completion record for a finished task
  specdrive verify [--repair]             Check (or restore) document/index consistency
  specdrive update                        Update to the latest version

Configuration:
  Settings come from specdrive.yaml at the project root. MCP config:

  {
    "mcpServers": {
      "specdrive": {
        "command": "specdrive",
        "args": ["serve"]
      }
    }
  }

Learn more: https://github.com/taskforge/specdrive
`, sdserver.Version)
}
