package spec

import (
	"reflect"
	"testing"

	"github.com/taskforge/specdrive/internal/index"
)

func TestIsTableRow(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"| a | b |", true},
		{"  | a | b |  ", true},
		{"|---|---|", true},
		{"||", true},
		{"not a row", false},
		{"| unterminated", false},
		{"unterminated |", false},
		{"", false},
		{"|", false},
	}

	for _, tt := range tests {
		if got := IsTableRow(tt.line); got != tt.want {
			t.Errorf("IsTableRow(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestSplitRow(t *testing.T) {
	tests := []struct {
		name string
		line string
		want []string
	}{
		{
			name: "basic row",
			line: "| [ ] | Config loader | src/config.py | 4 | Loads YAML |",
			want: []string{"[ ]", "Config loader", "src/config.py", "4", "Loads YAML"},
		},
		{
			name: "escaped pipe stays inside cell",
			line: `| [x] | Parser for a\|b | src/parser.py | 2 | Handles pipes |`,
			want: []string{"[x]", "Parser for a|b", "src/parser.py", "2", "Handles pipes"},
		},
		{
			name: "empty cells preserved",
			line: "| a |  | c |",
			want: []string{"a", "", "c"},
		},
		{
			name: "not a row",
			line: "plain text",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitRow(tt.line)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("SplitRow(%q) = %v, want %v", tt.line, got, tt.want)
			}
		})
	}
}

func TestIsSeparatorRow(t *testing.T) {
	tests := []struct {
		line string
		want bool
	}{
		{"|---|---|", true},
		{"| --- | :---: | ---: |", true},
		{"| [ ] | title | file |", false},
		{"| --- | text |", false},
		{"| | --- |", false},
	}

	for _, tt := range tests {
		if got := isSeparatorRow(SplitRow(tt.line)); got != tt.want {
			t.Errorf("isSeparatorRow(%q) = %v, want %v", tt.line, got, tt.want)
		}
	}
}

func TestParseGlyph(t *testing.T) {
	tests := []struct {
		cell       string
		wantStatus index.Status
		wantOK     bool
	}{
		{"[ ]", index.StatusPending, true},
		{"[~]", index.StatusInProgress, true},
		{"[x]", index.StatusCompleted, true},
		{"  [x]  ", index.StatusCompleted, true},
		{"[?]", index.StatusPending, true}, // unknown glyph defaults to pending
		{"[X]", index.StatusPending, true}, // glyphs are case sensitive
		{"---", "", false},
		{"x", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		status, ok := ParseGlyph(tt.cell)
		if ok != tt.wantOK || status != tt.wantStatus {
			t.Errorf("ParseGlyph(%q) = (%q, %v), want (%q, %v)", tt.cell, status, ok, tt.wantStatus, tt.wantOK)
		}
	}
}

func TestGlyph_RoundTrip(t *testing.T) {
	for _, status := range []index.Status{index.StatusPending, index.StatusInProgress, index.StatusCompleted} {
		parsed, ok := ParseGlyph(Glyph(status))
		if !ok || parsed != status {
			t.Errorf("ParseGlyph(Glyph(%q)) = (%q, %v)", status, parsed, ok)
		}
	}
}
