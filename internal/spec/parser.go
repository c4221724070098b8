package spec

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/taskforge/specdrive/internal/index"
)

// DefaultPhaseKeyword marks which section headings open a new phase.
// Phases are a subset of sections: a task's phase is the nearest
// preceding heading containing this keyword, not the nearest heading.
const DefaultPhaseKeyword = "Phase"

// UnassignedPhase is used for tasks that appear before any phase heading.
const UnassignedPhase = "unassigned"

// Parser scans a specification document and extracts the ordered task
// list. Task ids are assigned sequentially in table-row encounter
// order, so they are stable across re-parses of an unmodified document
// — but reordering rows reassigns ids. That is a documented limitation
// of the id scheme, not something the parser tries to compensate for.
type Parser struct {
	// PhaseKeyword overrides DefaultPhaseKeyword when non-empty.
	PhaseKeyword string
	// DepRules overrides DefaultDepRules when non-nil.
	DepRules []DepRule
}

// NewParser creates a parser with default phase keyword and
// dependency-inference rules.
func NewParser() *Parser {
	return &Parser{}
}

func (p *Parser) phaseKeyword() string {
	if p.PhaseKeyword != "" {
		return p.PhaseKeyword
	}
	return DefaultPhaseKeyword
}

func (p *Parser) depRules() []DepRule {
	if p.DepRules != nil {
		return p.DepRules
	}
	return DefaultDepRules
}

// ParseFile loads and parses a specification document. A missing
// document is not an error: it yields an index with zero tasks so the
// surrounding pipeline keeps running.
func (p *Parser) ParseFile(path string) (*index.TaskIndex, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			idx := p.Parse(path, "")
			return idx, nil
		}
		return nil, fmt.Errorf("reading specification document: %w", err)
	}
	return p.Parse(path, string(data)), nil
}

// Parse extracts tasks from document text. specFile is recorded in the
// resulting index so consumers know which document it mirrors.
func (p *Parser) Parse(specFile, content string) *index.TaskIndex {
	idx := &index.TaskIndex{
		SpecFile: specFile,
		Tasks:    []index.Task{},
	}

	keyword := p.phaseKeyword()
	currentPhase := ""
	inTable := false
	counter := 0

	for _, line := range strings.Split(content, "\n") {
		if _, text, ok := parseHeading(line); ok {
			if strings.Contains(text, keyword) {
				currentPhase = text
			}
			inTable = false
			continue
		}

		if !IsTableRow(line) {
			inTable = false
			continue
		}

		if !inTable {
			// First row of a table block is the column header; the
			// separator row below it fails the checkbox shape anyway.
			inTable = true
			continue
		}

		task, ok := p.parseTaskRow(line, currentPhase, counter+1)
		if !ok {
			continue // malformed or separator row — not fatal
		}
		counter++
		idx.Tasks = append(idx.Tasks, task)
	}

	idx.Recount()
	return idx
}

// parseTaskRow converts one table row into a task. seq is the id
// ordinal to assign if the row qualifies.
func (p *Parser) parseTaskRow(line, phase string, seq int) (index.Task, bool) {
	cells := SplitRow(line)
	if len(cells) < 5 || isSeparatorRow(cells) {
		return index.Task{}, false
	}

	status, ok := ParseGlyph(cells[0])
	if !ok {
		return index.Task{}, false
	}

	title, file := cells[1], cells[2]
	if title == "" || file == "" {
		return index.Task{}, false
	}
	if isHeaderRepeat(title, file) {
		return index.Task{}, false
	}

	if phase == "" {
		phase = UnassignedPhase
	}

	return index.Task{
		ID:                 fmt.Sprintf("task-%03d", seq),
		Title:              title,
		File:               file,
		Status:             status,
		Phase:              phase,
		Dependencies:       InferDependencies(file, p.depRules()),
		AcceptanceCriteria: cells[4],
		EstimatedHours:     parseHours(cells[3]),
	}, true
}

// isHeaderRepeat guards against a repeated column-header row that
// happens to carry a checkbox-shaped first cell. Heuristic, not
// strict: both a "task" token and a "file" token must appear in the
// title and file columns.
func isHeaderRepeat(title, file string) bool {
	return strings.Contains(strings.ToLower(title), "task") &&
		strings.Contains(strings.ToLower(file), "file")
}

// parseHours parses the estimated-hours cell; anything that is not a
// plain non-negative integer counts as zero.
func parseHours(cell string) int {
	n, err := strconv.Atoi(cell)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// parseHeading matches an ATX heading: one to six leading '#' followed
// by whitespace and text. Returns the heading level and trimmed text.
func parseHeading(line string) (level int, text string, ok bool) {
	i := 0
	for i < len(line) && line[i] == '#' {
		i++
	}
	if i == 0 || i > 6 || i >= len(line) {
		return 0, "", false
	}
	if line[i] != ' ' && line[i] != '\t' {
		return 0, "", false
	}
	text = strings.TrimSpace(line[i:])
	if text == "" {
		return 0, "", false
	}
	return i, text, true
}
