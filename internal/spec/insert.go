package spec

import (
	"regexp"
	"strings"
)

// Insertion-point search for completion entries (§ completion
// recording): inside the task's phase, an entry goes immediately
// before the first milestone marker; failing that, before the next
// section heading; failing that, at document end.

// milestoneRe matches a milestone marker line fragment,
// e.g. "**Milestone M2**: libs layer usable".
var milestoneRe = regexp.MustCompile(`\*\*Milestone [MN]\d+\*\*:`)

// nextHeadingRe matches the start of any subsequent section heading.
var nextHeadingRe = regexp.MustCompile(`(?m)^#{1,6}[ \t]`)

// FindInsertionPoint returns the byte offset at which a completion
// entry for a task in the given phase should be spliced, or -1 to
// append at document end (also the answer when the phase heading
// cannot be located).
func FindInsertionPoint(content, phase string) int {
	phaseEnd := findPhaseHeadingEnd(content, phase)
	if phaseEnd < 0 {
		return -1
	}

	rest := content[phaseEnd:]
	if loc := milestoneRe.FindStringIndex(rest); loc != nil {
		// Back up to the start of the milestone's line so the entry
		// lands before the whole marker line, not mid-line.
		return phaseEnd + lineStart(rest, loc[0])
	}
	if loc := nextHeadingRe.FindStringIndex(rest); loc != nil {
		return phaseEnd + loc[0]
	}
	return -1
}

// findPhaseHeadingEnd locates the heading line whose text starts with
// the phase label and returns the offset just past that line.
func findPhaseHeadingEnd(content, phase string) int {
	if phase == "" {
		return -1
	}
	offset := 0
	for _, line := range strings.SplitAfter(content, "\n") {
		if _, text, ok := parseHeading(strings.TrimSuffix(line, "\n")); ok {
			if strings.HasPrefix(text, phase) {
				return offset + len(line)
			}
		}
		offset += len(line)
	}
	return -1
}

// lineStart returns the offset of the beginning of the line containing
// position pos within s.
func lineStart(s string, pos int) int {
	if nl := strings.LastIndexByte(s[:pos], '\n'); nl >= 0 {
		return nl + 1
	}
	return 0
}

// Splice inserts entry at offset; a negative offset appends at the
// end. A separating newline is added when the document does not end
// with one.
func Splice(content, entry string, offset int) string {
	if offset < 0 || offset > len(content) {
		if content != "" && !strings.HasSuffix(content, "\n") {
			content += "\n"
		}
		return content + entry
	}
	return content[:offset] + entry + content[offset:]
}
