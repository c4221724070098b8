package spec

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Section splitting writes each top-level section (heading level 1 or
// 2) of the document to its own numbered file under outDir, e.g.
// "03-query-engine.md". Derived artifacts only — the canonical
// document is never modified here.

const maxSlugLen = 50

// SplitSections splits document content into per-section files and
// returns how many were written.
func SplitSections(content, outDir string) (int, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return 0, fmt.Errorf("creating sections directory: %w", err)
	}

	var (
		count   int
		section []string
		title   string
	)

	flush := func() error {
		if title == "" || len(section) == 0 {
			return nil
		}
		count++
		name := fmt.Sprintf("%02d-%s.md", count, Slugify(title))
		path := filepath.Join(outDir, name)
		if err := os.WriteFile(path, []byte(strings.Join(section, "\n")), 0o644); err != nil {
			return fmt.Errorf("writing section %s: %w", name, err)
		}
		return nil
	}

	for _, line := range strings.Split(content, "\n") {
		if level, text, ok := parseHeading(line); ok && level <= 2 {
			if err := flush(); err != nil {
				return count, err
			}
			title = text
			section = section[:0]
		}
		section = append(section, line)
	}
	if err := flush(); err != nil {
		return count, err
	}

	return count, nil
}

// Slugify converts a section title into a filesystem-safe slug:
// lowercase, alphanumerics, collapsed hyphens, truncated at a word
// boundary. Empty input yields "section".
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))

	var b strings.Builder
	prevHyphen := false
	for _, r := range s {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		case r == ' ' || r == '_' || r == '-' || r == ':' || r == '.':
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "section"
	}
	if len(slug) <= maxSlugLen {
		return slug
	}

	truncated := slug[:maxSlugLen]
	if lastHyphen := strings.LastIndex(truncated, "-"); lastHyphen > maxSlugLen/2 {
		truncated = truncated[:lastHyphen]
	}
	return strings.TrimRight(truncated, "-")
}
