package importer

import (
	"strings"

	"github.com/cory-johannsen/hilo/internal/game/catalog"
)

// LabelKey converts an item label to a snake_case key used to detect duplicates.
//
// Postcondition: result is lowercase, contains only [a-z0-9_], and is
// idempotent (LabelKey(LabelKey(s)) == LabelKey(s)).
func LabelKey(label string) string {
	s := strings.ToLower(label)
	s = strings.ReplaceAll(s, " ", "_")
	var b strings.Builder
	for _, r := range s {
		if r == '_' || (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Normalize trims labels and image URLs, drops items whose label is blank, and
// when dedupe is set keeps only the first item for each LabelKey.
//
// Postcondition: the returned slice preserves input order and never aliases items.
func Normalize(items []catalog.Item, dedupe bool) (out []catalog.Item, dropped int) {
	seen := make(map[string]bool, len(items))
	out = make([]catalog.Item, 0, len(items))
	for _, it := range items {
		it.Label = strings.TrimSpace(it.Label)
		it.ImageURL = strings.TrimSpace(it.ImageURL)
		if it.Label == "" {
			dropped++
			continue
		}
		if dedupe {
			key := LabelKey(it.Label)
			if seen[key] {
				dropped++
				continue
			}
			seen[key] = true
		}
		out = append(out, it)
	}
	return out, dropped
}
