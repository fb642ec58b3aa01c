// Package schema derives an annotated JSON schema from a values tree.
//
// Synthesis walks the tree, classifies each node by runtime kind, and
// cross-references the descriptor for titles, descriptions, read-only flags,
// and enum option lists. The output is an invopop/jsonschema document the UI
// renders as an editable form.
package schema

import (
	"sort"

	"github.com/invopop/jsonschema"
	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/bnema/chartform/internal/descriptor"
	"github.com/bnema/chartform/internal/fieldpath"
	"github.com/bnema/chartform/internal/values"
)

// Synthesize builds a schema for tree against the given descriptor snapshot.
// Total and deterministic: a nil tree yields an empty object schema, unknown
// scalar kinds classify as strings, and object properties are emitted in
// sorted key order. The tree is never mutated.
func Synthesize(tree values.Tree, d *descriptor.Descriptor) *jsonschema.Schema {
	root := &jsonschema.Schema{
		Type:       "object",
		Properties: properties(tree, "", d),
	}

	// Sections and UI hints are opaque presentation metadata, attached once
	// at the root exactly as the descriptor declared them.
	if len(d.Sections) > 0 || len(d.UIHints) > 0 {
		root.Extras = map[string]any{}
		if len(d.Sections) > 0 {
			root.Extras["sections"] = d.Sections
		}
		if len(d.UIHints) > 0 {
			root.Extras["uiHints"] = d.UIHints
		}
	}
	return root
}

func properties(node values.Tree, path string, d *descriptor.Descriptor) *orderedmap.OrderedMap[string, *jsonschema.Schema] {
	props := jsonschema.NewProperties()

	keys := make([]string, 0, len(node))
	for k := range node {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		props.Set(k, synthesizeNode(node[k], fieldpath.Join(path, k), d))
	}
	return props
}

func synthesizeNode(v any, path string, d *descriptor.Descriptor) *jsonschema.Schema {
	var s *jsonschema.Schema

	switch values.KindOf(v) {
	case values.KindMapping:
		s = &jsonschema.Schema{
			Type:       "object",
			Title:      d.Title(path),
			Properties: properties(v.(map[string]any), path, d),
		}
	case values.KindSequence:
		s = synthesizeArray(v.([]any), path, d)
	default:
		s = &jsonschema.Schema{
			Type:  scalarType(values.KindOf(v)),
			Title: d.Title(path),
		}
	}

	// Protection and help text are orthogonal to the structural type.
	if d.IsReadOnly(path) {
		s.ReadOnly = true
	}
	if desc := d.Description(path); desc != "" {
		s.Description = desc
	}
	return s
}

func synthesizeArray(seq []any, path string, d *descriptor.Descriptor) *jsonschema.Schema {
	title := d.Title(path)

	// No sample element to infer from.
	if len(seq) == 0 {
		return &jsonschema.Schema{
			Type:  "array",
			Title: title,
			Items: &jsonschema.Schema{Type: "string"},
		}
	}

	first := seq[0]
	firstKind := values.KindOf(first)

	// An enum-marked sequence of scalars is option metadata, not row data:
	// the full element list is both the default and the selectable set.
	if d.IsEnum(path) && isScalar(firstKind) {
		options := make([]any, len(seq))
		copy(options, seq)
		return &jsonschema.Schema{
			Type:        "array",
			Title:       title,
			Items:       &jsonschema.Schema{Type: "string"},
			UniqueItems: true,
			Enum:        options,
			Default:     options,
		}
	}

	if firstKind == values.KindMapping {
		idxPath := fieldpath.Index(path, 0)
		item := synthesizeNode(first, idxPath, d)
		if !d.HasTitle(idxPath) {
			item.Title = itemTitle(title)
		}
		return &jsonschema.Schema{
			Type:  "array",
			Title: title,
			Items: item,
		}
	}

	return &jsonschema.Schema{
		Type:  "array",
		Title: title,
		Items: &jsonschema.Schema{Type: scalarType(firstKind)},
	}
}

// itemTitle labels the representative element of an object array: the array
// title with one trailing "s" stripped, or with "Item" appended when the
// title was not a plain plural.
func itemTitle(arrayTitle string) string {
	if singular, ok := fieldpath.Singularize(arrayTitle); ok {
		return singular
	}
	return arrayTitle + " Item"
}

func isScalar(k values.Kind) bool {
	switch k {
	case values.KindBool, values.KindInt, values.KindNumber, values.KindString:
		return true
	default:
		return false
	}
}

// scalarType maps a value kind to its schema type tag. Null and anything
// unclassified fall back to string so synthesis stays total.
func scalarType(k values.Kind) string {
	switch k {
	case values.KindBool, values.KindInt, values.KindNumber, values.KindString:
		return k.String()
	default:
		return "string"
	}
}
