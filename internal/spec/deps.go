package spec

import "strings"

// DepRule wires tasks whose artifact path contains Substring to depend
// on earlier task ids. Dependency inference is a best-effort heuristic:
// downstream layers (query engines, ingestion pipelines) are assumed to
// build on the foundational tasks parsed first. The rule table is the
// single place to touch if the spec format ever grows an explicit
// dependency column.
type DepRule struct {
	Substring string
	DependsOn []string
}

// DefaultDepRules mirror the layering of the documents this tool was
// built against: core types first, then libs, then everything above.
var DefaultDepRules = []DepRule{
	{Substring: "query_engine", DependsOn: []string{"task-001"}},
	{Substring: "ingestion", DependsOn: []string{"task-001", "task-002"}},
}

// InferDependencies returns the dependency ids for an artifact path.
// The first matching rule wins; no match means no dependencies. The
// returned slice is always non-nil so the index serializes a stable
// empty list instead of null.
func InferDependencies(file string, rules []DepRule) []string {
	for _, rule := range rules {
		if rule.Substring == "" {
			continue
		}
		if strings.Contains(file, rule.Substring) {
			deps := make([]string, len(rule.DependsOn))
			copy(deps, rule.DependsOn)
			return deps
		}
	}
	return []string{}
}
