// Package config loads project settings from specdrive.yaml at the
// project root. Every field has a working default — a project without
// a config file gets the standard layout (devspec.md, specs/).
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// ConfigFile is the settings filename looked up at the project root.
const ConfigFile = "specdrive.yaml"

// Settings is the parsed project configuration.
type Settings struct {
	// SpecFile is the specification document, relative to the root.
	SpecFile string `yaml:"spec_file"`
	// SpecsDir holds derived artifacts: task index, section splits,
	// verification reports, history database.
	SpecsDir string `yaml:"specs_dir"`
	// PhaseKeyword marks which headings open a phase.
	PhaseKeyword string `yaml:"phase_keyword"`

	Verification VerificationSettings `yaml:"verification"`
	History      HistorySettings      `yaml:"history"`
}

// VerificationSettings configure the external test runner loop.
type VerificationSettings struct {
	// Command is the runner argv; "{test}" expands to the task's
	// verification file.
	Command []string `yaml:"command"`
	// MaxRounds bounds the verify-fix loop.
	MaxRounds int `yaml:"max_rounds"`
	// TimeoutSeconds bounds a single round.
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// HistorySettings configure the operation journal.
type HistorySettings struct {
	// Disabled turns the journal off entirely.
	Disabled bool `yaml:"disabled"`
	// Path overrides the default specs/history.db location.
	Path string `yaml:"path"`
}

// Default returns settings with all defaults applied.
func Default() *Settings {
	return &Settings{
		SpecFile:     "devspec.md",
		SpecsDir:     "specs",
		PhaseKeyword: "Phase",
		Verification: VerificationSettings{
			Command:        []string{"go", "test", "./..."},
			MaxRounds:      3,
			TimeoutSeconds: 60,
		},
	}
}

// Load reads specdrive.yaml from the project root. A missing file
// yields defaults, not an error.
func Load(projectRoot string) (*Settings, error) {
	s := Default()

	data, err := os.ReadFile(filepath.Join(projectRoot, ConfigFile))
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("reading %s: %w", ConfigFile, err)
	}

	if err := yaml.Unmarshal([]byte(substituteEnv(string(data))), s); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", ConfigFile, err)
	}

	// Re-apply defaults for fields the file left empty.
	if s.SpecFile == "" {
		s.SpecFile = "devspec.md"
	}
	if s.SpecsDir == "" {
		s.SpecsDir = "specs"
	}
	if s.PhaseKeyword == "" {
		s.PhaseKeyword = "Phase"
	}
	if s.Verification.MaxRounds <= 0 {
		s.Verification.MaxRounds = 3
	}
	if s.Verification.TimeoutSeconds <= 0 {
		s.Verification.TimeoutSeconds = 60
	}

	return s, nil
}

// SpecPath returns the absolute specification document path.
func (s *Settings) SpecPath(projectRoot string) string {
	return filepath.Join(projectRoot, s.SpecFile)
}

// IndexPath returns the absolute task index path.
func (s *Settings) IndexPath(projectRoot string) string {
	return filepath.Join(projectRoot, s.SpecsDir, "task_index.json")
}

// HistoryPath returns the absolute journal path, or "" when disabled.
func (s *Settings) HistoryPath(projectRoot string) string {
	if s.History.Disabled {
		return ""
	}
	if s.History.Path != "" {
		return filepath.Join(projectRoot, s.History.Path)
	}
	return filepath.Join(projectRoot, s.SpecsDir, "history.db")
}

// envVarRe matches ${VAR} references in the raw config text.
var envVarRe = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// substituteEnv expands ${VAR} references from the environment.
// Unset variables expand to the empty string.
func substituteEnv(raw string) string {
	return envVarRe.ReplaceAllStringFunc(raw, func(m string) string {
		return os.Getenv(m[2 : len(m)-1])
	})
}

// FindProjectRoot walks up from the working directory looking for
// specdrive.yaml or a .git directory. Falls back to the working
// directory itself, so tools work in uninitialized projects too.
func FindProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("getting working directory: %w", err)
	}

	current := dir
	for {
		if _, err := os.Stat(filepath.Join(current, ConfigFile)); err == nil {
			return current, nil
		}
		if _, err := os.Stat(filepath.Join(current, ".git")); err == nil {
			return current, nil
		}

		parent := filepath.Dir(current)
		if parent == current {
			return dir, nil
		}
		current = parent
	}
}
