// Package merge applies a partial update document onto a values tree.
//
// Only keys the update actually carries are touched, and never those the
// descriptor protects: read-only paths and enum option lists survive any
// update verbatim. Everything else is whole-value replacement; recursion
// happens only where both sides are mappings.
package merge

import (
	"sort"

	"github.com/bnema/chartform/internal/descriptor"
	"github.com/bnema/chartform/internal/fieldpath"
	"github.com/bnema/chartform/internal/values"
)

// Skip reasons reported for protected fields.
const (
	ReasonReadOnly = "readonly"
	ReasonEnum     = "enum"
)

// Skip records one update entry that was ignored because the descriptor
// protects it. A skip is an observable notice, not an error.
type Skip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// TouchedPaths lists the leaf paths an update document names, sorted.
// Mapping nodes recurse; scalars and sequences are leaves, matching how
// Apply treats them. Used for reporting, not by the merge itself.
func TouchedPaths(update values.Tree) []string {
	var paths []string
	var walk func(node map[string]any, path string)
	walk = func(node map[string]any, path string) {
		for key, v := range node {
			entryPath := fieldpath.Join(path, key)
			if m, ok := v.(map[string]any); ok && len(m) > 0 {
				walk(m, entryPath)
				continue
			}
			paths = append(paths, entryPath)
		}
	}
	walk(update, "")
	sort.Strings(paths)
	return paths
}

// Apply merges update into current and returns the resulting tree along with
// the skip notices. Neither input is mutated; the result is a fresh tree.
// Keys absent from update are preserved at every level, so merge never
// deletes.
func Apply(current, update values.Tree, d *descriptor.Descriptor) (values.Tree, []Skip) {
	result := values.CopyTree(current)
	skips := applyInto(result, update, "", d, nil)
	return result, skips
}

// applyInto walks update entry by entry, extending the accumulated field path
// as it recurses. Paths accumulate non-normalized; descriptor lookups
// normalize internally, so indexed paths resolve to the same rules as their
// un-indexed form.
func applyInto(current, update map[string]any, path string, d *descriptor.Descriptor, skips []Skip) []Skip {
	for key, incoming := range update {
		entryPath := fieldpath.Join(path, key)

		if d.IsReadOnly(entryPath) {
			skips = append(skips, Skip{Path: entryPath, Reason: ReasonReadOnly})
			continue
		}

		existing, exists := current[key]

		if exists && values.KindOf(existing) == values.KindMapping && values.KindOf(incoming) == values.KindMapping {
			skips = applyInto(existing.(map[string]any), incoming.(map[string]any), entryPath, d, skips)
			continue
		}

		// An enum-marked sequence is the field's defining option list, not
		// editable content; keep the original.
		if exists && d.IsEnum(entryPath) && values.KindOf(existing) == values.KindSequence {
			skips = append(skips, Skip{Path: entryPath, Reason: ReasonEnum})
			continue
		}

		current[key] = values.DeepCopy(incoming)
	}
	return skips
}
