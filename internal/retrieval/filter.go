// Package retrieval narrows raw similarity results to a caller's scope.
package retrieval

import "wingman/internal/vectorindex"

// Scope is a set of exact-match predicates over result metadata. Empty values
// are ignored; today callers only scope by channel_id.
type Scope map[string]string

// Filter keeps results whose metadata matches every non-empty scope entry.
// Results missing a scoped key are excluded. Applied after top-k retrieval,
// so a tightly scoped query can return fewer than k results; ordering of the
// survivors is preserved.
func Filter(results []vectorindex.Result, scope Scope) []vectorindex.Result {
	if len(scope) == 0 {
		return results
	}

	var filtered []vectorindex.Result
	for _, result := range results {
		if matches(result.Metadata, scope) {
			filtered = append(filtered, result)
		}
	}
	return filtered
}

func matches(metadata vectorindex.Metadata, scope Scope) bool {
	for key, want := range scope {
		if want == "" {
			continue
		}
		got, ok := metadata[key].(string)
		if !ok || got != want {
			return false
		}
	}
	return true
}
