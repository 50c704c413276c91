// Package retrieval answers tenant queries: it reformulates them against
// chat history, retrieves top-k chunks from the company's collection, and
// composes grounded answers, trying query variations and rotated
// credentials before giving up.
package retrieval

import "strings"

// aliasTable maps normalized brand/entity spellings to their canonical
// form. Lookup keys are lowercase with spaces, hyphens and underscores
// removed, so "Urban Piper", "urban-piper" and "URBANPIPER" all resolve to
// the same entry.
var aliasTable = map[string]string{
	"urbanpiper": "UrbanPiper",
	"xenyhq":     "XenyHQ",
	"xeny":       "XenyHQ",
}

func normalizeAliasKey(s string) string {
	s = strings.ToLower(s)
	return strings.Map(func(r rune) rune {
		switch r {
		case ' ', '-', '_':
			return -1
		}
		return r
	}, s)
}

// Variations produces the ordered list of query rewrites to attempt. The
// original query always comes first; duplicates are dropped while
// preserving order.
func Variations(query string) []string {
	out := []string{query}
	seen := map[string]struct{}{query: {}}
	add := func(v string) {
		v = strings.TrimSpace(v)
		if v == "" {
			return
		}
		if _, ok := seen[v]; ok {
			return
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	// Alias rewrites: replace any word run matching a known alias with its
	// canonical form.
	if rewritten, ok := rewriteAliases(query); ok {
		add(rewritten)
	}

	// Generic surface forms.
	add(strings.ReplaceAll(query, " ", ""))
	add(strings.NewReplacer("-", " ", "_", " ").Replace(query))

	return out
}

// rewriteAliases scans the query for single words or adjacent word pairs
// that normalize to a known alias and replaces them with the canonical
// spelling. It reports whether any replacement happened.
func rewriteAliases(query string) (string, bool) {
	words := strings.Fields(query)
	if len(words) == 0 {
		return query, false
	}

	var (
		out      []string
		replaced bool
	)
	for i := 0; i < len(words); i++ {
		// Prefer two-word matches ("Urban Piper") over single words.
		if i+1 < len(words) {
			pair := words[i] + trimPunct(words[i+1])
			if canonical, ok := aliasTable[normalizeAliasKey(pair)]; ok {
				out = append(out, canonical+punctSuffix(words[i+1]))
				replaced = true
				i++
				continue
			}
		}
		if canonical, ok := aliasTable[normalizeAliasKey(trimPunct(words[i]))]; ok {
			out = append(out, canonical+punctSuffix(words[i]))
			replaced = true
			continue
		}
		out = append(out, words[i])
	}
	return strings.Join(out, " "), replaced
}

func trimPunct(w string) string {
	return strings.TrimRight(w, "?!.,;:")
}

func punctSuffix(w string) string {
	return w[len(trimPunct(w)):]
}
