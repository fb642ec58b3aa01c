// Package values models the live configuration document as a tree of
// maps, lists, and scalars, and classifies node kinds explicitly so schema
// synthesis never depends on implicit type coercion.
package values

import "encoding/json"

// Tree is the in-memory form of a parsed values document.
type Tree = map[string]any

// Kind tags the runtime shape of a tree node.
type Kind int

const (
	KindNull Kind = iota
	KindMapping
	KindSequence
	KindBool
	KindInt
	KindNumber
	KindString
)

// String returns the kind name as used in schema type tags.
func (k Kind) String() string {
	switch k {
	case KindMapping:
		return "object"
	case KindSequence:
		return "array"
	case KindBool:
		return "boolean"
	case KindInt:
		return "integer"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	default:
		return "null"
	}
}

// KindOf classifies v. The scalar ordering is deliberate: a bool must never
// be reported as an integer, and integers take precedence over floats.
// Anything unrecognized classifies as a string so synthesis stays total.
func KindOf(v any) Kind {
	switch v.(type) {
	case nil:
		return KindNull
	case map[string]any:
		return KindMapping
	case []any:
		return KindSequence
	case bool:
		return KindBool
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return KindInt
	case float32, float64:
		return KindNumber
	default:
		return KindString
	}
}

// NormalizeJSON rewrites a tree decoded with encoding/json (UseNumber mode)
// into the same scalar shapes a YAML load produces: json.Number becomes
// int64 when integral, float64 otherwise. Without this, an integer arriving
// over the API would flip to a float (or a string) on write-back.
func NormalizeJSON(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = NormalizeJSON(child)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = NormalizeJSON(child)
		}
		return out
	case json.Number:
		if n, err := node.Int64(); err == nil {
			return n
		}
		if f, err := node.Float64(); err == nil {
			return f
		}
		return node.String()
	default:
		return v
	}
}

// DeepCopy returns a structural copy of v: fresh maps and slices all the way
// down, scalars shared. Mutating the copy never touches the original.
func DeepCopy(v any) any {
	switch node := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(node))
		for k, child := range node {
			out[k] = DeepCopy(child)
		}
		return out
	case []any:
		out := make([]any, len(node))
		for i, child := range node {
			out[i] = DeepCopy(child)
		}
		return out
	default:
		return v
	}
}

// CopyTree is DeepCopy specialized to a document root. A nil tree copies to
// an empty (non-nil) tree so callers can always write into the result.
func CopyTree(t Tree) Tree {
	if t == nil {
		return Tree{}
	}
	return DeepCopy(t).(map[string]any)
}
