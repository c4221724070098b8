// Package spec parses and patches the human-readable specification
// document: a markdown file with phase headings, pipe-delimited task
// tables, milestone markers, and a progress-tracking table.
//
// The package is split by concern:
//   - row.go: the table-row tokenizer and checkbox glyph mapping
//   - parser.go: document scan producing the ordered task list
//   - deps.go: file-path dependency inference rules
//   - patch.go: checkbox patching and progress-table rollup
//   - insert.go: insertion-point search for completion entries
//   - split.go: per-section document splitting
//
// Parsing is lenient (malformed rows are skipped — the table is
// human-maintained), patching is strict (zero or multiple matches
// fail, never guess).
package spec
