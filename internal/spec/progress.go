package spec

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/taskforge/specdrive/internal/index"
)

// Progress-table rollup: the document may carry a tracking table whose
// rows are keyed by a phase short-name, e.g.
//
//	| Phase 1 | not-started | - | Libs layer |
//
// After a status change the syncer recomputes each phase's derived
// status and patches the matching row. The free-text note column is
// preserved; a fractional-completion annotation is appended while the
// phase is partially done and removed again once it isn't.

// Derived phase progress states.
const (
	PhaseDone       = "done"
	PhaseInProgress = "in-progress"
	PhaseNotStarted = "not-started"
)

// fractionRe matches the completion annotation appended to notes,
// e.g. " (2/5)".
var fractionRe = regexp.MustCompile(`\s*\(\d+/\d+\)\s*$`)

// PhaseProgress derives the progress state for one phase's stats.
func PhaseProgress(st index.PhaseStats) string {
	switch {
	case st.Total > 0 && st.Completed == st.Total:
		return PhaseDone
	case st.Completed > 0 || st.InProgress > 0:
		return PhaseInProgress
	default:
		return PhaseNotStarted
	}
}

// UpdateProgressTable patches the progress-tracking rows for every
// phase in stats. date is used for phases that are done or in
// progress; untouched phases keep "-". Rows whose key matches no phase
// are left alone, as is a document without a progress table.
func UpdateProgressTable(content string, phases []string, stats map[string]index.PhaseStats, date string) string {
	lines := strings.Split(content, "\n")

	inTable := false
	for i, line := range lines {
		if !IsTableRow(line) {
			inTable = false
			continue
		}
		if !inTable {
			// Column-header row; a bare "Phase" header cell would
			// otherwise prefix-match every phase label.
			inTable = true
			continue
		}

		cells := SplitRow(line)
		if len(cells) < 4 || isSeparatorRow(cells) {
			continue
		}
		if _, isTask := ParseGlyph(cells[0]); isTask {
			continue // task rows are not progress rows
		}

		phase, ok := phaseForKey(cells[0], phases)
		if !ok {
			continue
		}
		lines[i] = patchProgressRow(line, stats[phase], date)
	}

	return strings.Join(lines, "\n")
}

// phaseForKey resolves a progress-row key against the known phase
// labels. The key must be a prefix of the label ending at a word
// boundary, so "Phase 1" never matches "Phase 10: ...".
func phaseForKey(key string, phases []string) (string, bool) {
	if key == "" {
		return "", false
	}
	for _, phase := range phases {
		if !strings.HasPrefix(phase, key) {
			continue
		}
		if len(phase) == len(key) || !isWordByte(phase[len(key)]) {
			return phase, true
		}
	}
	return "", false
}

func isWordByte(b byte) bool {
	return b >= '0' && b <= '9' || b >= 'a' && b <= 'z' || b >= 'A' && b <= 'Z'
}

// patchProgressRow rewrites the status, date, and note cells of one
// progress row. The key cell keeps its original bytes.
func patchProgressRow(line string, st index.PhaseStats, date string) string {
	spans := rowSpans(line)
	if len(spans) < 4 {
		return line
	}

	progress := PhaseProgress(st)
	rowDate := "-"
	if progress != PhaseNotStarted {
		rowDate = date
	}

	note := fractionRe.ReplaceAllString(strings.TrimSpace(line[spans[3].start:spans[3].end]), "")
	if progress == PhaseInProgress {
		note = strings.TrimSpace(fmt.Sprintf("%s (%d/%d)", note, st.Completed, st.Total))
	}

	var b strings.Builder
	b.WriteString(line[:spans[0].end])
	fmt.Fprintf(&b, "| %s ", progress)
	fmt.Fprintf(&b, "| %s ", rowDate)
	fmt.Fprintf(&b, "| %s |", note)
	return b.String()
}
