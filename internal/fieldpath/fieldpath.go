// Package fieldpath handles dotted field paths into a values tree.
//
// A path like "servers[0].port" addresses a position inside nested maps and
// lists. Descriptor rules are keyed by normalized paths, where every bracketed
// ordinal is stripped, so all elements of a list share one rule set.
package fieldpath

import (
	"strings"
	"unicode"
)

// Normalize strips every bracketed ordinal segment ("[0]", "[12]", ...) from
// path, making it usable as a descriptor lookup key. Malformed bracket pairs
// are left untouched; normalization is best-effort, not validating.
// Idempotent: normalizing an already normalized path is a no-op.
func Normalize(path string) string {
	// Removal can expose a new ordinal in malformed input ("a[1[2]]" becomes
	// "a[1]"), so run to a fixed point. Each pass shrinks the string.
	for {
		next := stripOrdinals(path)
		if next == path {
			return path
		}
		path = next
	}
}

func stripOrdinals(path string) string {
	if !strings.Contains(path, "[") {
		return path
	}

	var b strings.Builder
	b.Grow(len(path))

	for i := 0; i < len(path); i++ {
		if path[i] != '[' {
			b.WriteByte(path[i])
			continue
		}
		end := ordinalEnd(path, i)
		if end < 0 {
			// Not a digits-only bracket pair, keep it verbatim.
			b.WriteByte(path[i])
			continue
		}
		i = end
	}
	return b.String()
}

// ordinalEnd returns the index of the closing ']' when path[start:] opens a
// bracketed run of one or more digits, or -1 otherwise.
func ordinalEnd(path string, start int) int {
	i := start + 1
	for i < len(path) && path[i] >= '0' && path[i] <= '9' {
		i++
	}
	if i == start+1 || i >= len(path) || path[i] != ']' {
		return -1
	}
	return i
}

// Join appends key to parent with a dot separator. An empty parent yields the
// key unchanged, so the accumulated path for a top-level key is the key itself.
func Join(parent, key string) string {
	if parent == "" {
		return key
	}
	return parent + "." + key
}

// Index addresses element i of the list at path, e.g. Index("servers", 0)
// returns "servers[0]".
func Index(path string, i int) string {
	var b strings.Builder
	b.WriteString(path)
	b.WriteByte('[')
	writeInt(&b, i)
	b.WriteByte(']')
	return b.String()
}

func writeInt(b *strings.Builder, n int) {
	if n < 0 {
		b.WriteByte('-')
		n = -n
	}
	if n >= 10 {
		writeInt(b, n/10)
	}
	b.WriteByte(byte('0' + n%10))
}

// Title derives a human-readable label from the last segment of path:
// the ordinal suffix is dropped, camelCase boundaries and underscores become
// spaces, and each resulting word is title-cased. "image.pullPolicy" yields
// "Pull Policy", "repo_url" yields "Repo Url".
func Title(path string) string {
	seg := Normalize(path)
	if i := strings.LastIndexByte(seg, '.'); i >= 0 {
		seg = seg[i+1:]
	}

	var b strings.Builder
	b.Grow(len(seg) + 4)

	runes := []rune(seg)
	for i, r := range runes {
		switch {
		case r == '_':
			b.WriteByte(' ')
		case i > 0 && unicode.IsUpper(r) && unicode.IsLower(runes[i-1]):
			b.WriteByte(' ')
			b.WriteRune(r)
		default:
			b.WriteRune(r)
		}
	}

	words := strings.Fields(b.String())
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

// Singularize strips a single trailing "s" from title. The second return
// reports whether anything was stripped, so callers can fall back to another
// item-label rule when the title was not a plain plural.
func Singularize(title string) (string, bool) {
	if strings.HasSuffix(title, "s") && len(title) > 1 {
		return title[:len(title)-1], true
	}
	return title, false
}
