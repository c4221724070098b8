package spec

import (
	"strings"

	"github.com/taskforge/specdrive/internal/index"
)

// --- Table-row tokenizer ---
//
// Rows are tokenized with an explicit cell scanner instead of a regex:
// a cell boundary is an unescaped pipe, and "\|" inside a cell is an
// escaped literal pipe. Cell spans are tracked as byte offsets so the
// patcher can rewrite one cell while leaving every other byte of the
// line untouched.

// cellSpan is the half-open byte range of one cell's content within a
// row line, excluding the delimiting pipes.
type cellSpan struct {
	start int
	end   int
}

// IsTableRow reports whether a line is a pipe-delimited table row.
func IsTableRow(line string) bool {
	trimmed := strings.TrimSpace(line)
	return len(trimmed) >= 2 && strings.HasPrefix(trimmed, "|") && strings.HasSuffix(trimmed, "|")
}

// rowSpans returns the content span of each cell in a table-row line.
// Returns nil if the line is not a table row.
func rowSpans(line string) []cellSpan {
	if !IsTableRow(line) {
		return nil
	}

	var spans []cellSpan
	start := -1
	escaped := false
	for i := 0; i < len(line); i++ {
		c := line[i]
		if escaped {
			escaped = false
			continue
		}
		switch c {
		case '\\':
			escaped = true
		case '|':
			if start >= 0 {
				spans = append(spans, cellSpan{start: start, end: i})
			}
			start = i + 1
		}
	}
	// Trailing text after the last pipe is not a cell — a well-formed
	// row ends with a pipe, so anything after it is ignored.
	return spans
}

// SplitRow tokenizes a table row into trimmed cell strings with "\|"
// unescaped. Returns nil if the line is not a table row.
func SplitRow(line string) []string {
	spans := rowSpans(line)
	if spans == nil {
		return nil
	}
	cells := make([]string, len(spans))
	for i, sp := range spans {
		cell := line[sp.start:sp.end]
		cell = strings.ReplaceAll(cell, `\|`, "|")
		cells[i] = strings.TrimSpace(cell)
	}
	return cells
}

// isSeparatorRow reports whether the tokenized cells form a markdown
// header separator (cells of dashes and colons).
func isSeparatorRow(cells []string) bool {
	if len(cells) == 0 {
		return false
	}
	for _, cell := range cells {
		if cell == "" {
			return false
		}
		for _, r := range cell {
			if r != '-' && r != ':' {
				return false
			}
		}
	}
	return true
}

// --- Checkbox glyph mapping ---

// ParseGlyph maps a checkbox cell to a task status. The second return
// is false when the cell is not a checkbox at all (not "[?]" shaped).
// Unrecognized glyphs inside brackets default to pending.
func ParseGlyph(cell string) (index.Status, bool) {
	cell = strings.TrimSpace(cell)
	if len(cell) < 3 || cell[0] != '[' || cell[len(cell)-1] != ']' {
		return "", false
	}
	switch cell[1 : len(cell)-1] {
	case "~":
		return index.StatusInProgress, true
	case "x":
		return index.StatusCompleted, true
	default:
		return index.StatusPending, true
	}
}

// Glyph returns the checkbox text for a status.
func Glyph(s index.Status) string {
	switch s {
	case index.StatusInProgress:
		return "[~]"
	case index.StatusCompleted:
		return "[x]"
	default:
		return "[ ]"
	}
}
