package spec

import (
	"errors"
	"strings"

	"github.com/taskforge/specdrive/internal/index"
)

// Patching is strict where parsing is lenient: a row is located by
// exact match on both title and file, and anything other than exactly
// one match fails without touching the document.

var (
	// ErrRowNotFound means no table row matched the title/file pair.
	ErrRowNotFound = errors.New("task row not found in specification document")
	// ErrAmbiguousRow means more than one row matched; treated as
	// not-found rather than guessing which row to patch.
	ErrAmbiguousRow = errors.New("task row match is ambiguous in specification document")
)

// SetRowStatus replaces the checkbox glyph of the task row identified
// by title and file, leaving every other byte of the document
// unchanged. Returns the patched document text.
func SetRowStatus(content, title, file string, status index.Status) (string, error) {
	lines := strings.Split(content, "\n")

	matched := -1
	for i, line := range lines {
		if !rowMatches(line, title, file) {
			continue
		}
		if matched >= 0 {
			return "", ErrAmbiguousRow
		}
		matched = i
	}
	if matched < 0 {
		return "", ErrRowNotFound
	}

	patched, err := patchCheckbox(lines[matched], status)
	if err != nil {
		return "", err
	}
	lines[matched] = patched
	return strings.Join(lines, "\n"), nil
}

// rowMatches reports whether a line is a task row whose title and file
// cells equal the given values exactly (after cell trimming).
func rowMatches(line, title, file string) bool {
	cells := SplitRow(line)
	if len(cells) < 3 {
		return false
	}
	if _, ok := ParseGlyph(cells[0]); !ok {
		return false
	}
	return cells[1] == title && cells[2] == file
}

// patchCheckbox rewrites the "[?]" token inside the first cell of a
// task row, preserving the cell's surrounding whitespace bytes.
func patchCheckbox(line string, status index.Status) (string, error) {
	spans := rowSpans(line)
	if len(spans) == 0 {
		return "", ErrRowNotFound
	}

	cell := line[spans[0].start:spans[0].end]
	open := strings.IndexByte(cell, '[')
	if open < 0 {
		return "", ErrRowNotFound
	}
	length := strings.IndexByte(cell[open:], ']')
	if length < 0 {
		return "", ErrRowNotFound
	}

	start := spans[0].start + open
	end := start + length + 1
	return line[:start] + Glyph(status) + line[end:], nil
}
