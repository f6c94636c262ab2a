package tree

import (
	"fmt"
	"regexp"
	"strings"
)

// nonSlugPattern matches every run of characters that cannot appear in a
// slug after lowercasing.
var nonSlugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives the URL-safe key for a node title: lowercased, with
// every run of other characters collapsed into a single dash. The result
// is deterministic for a given title. An untitled node slugs to "node".
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))
	s = nonSlugPattern.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "node"
	}
	return s
}

// uniqueSlug returns the slug for a title, suffixed with the first free
// ordinal when the plain slug is already taken among the siblings.
func uniqueSlug(title string, taken map[string]bool) string {
	base := Slugify(title)
	if !taken[base] {
		return base
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s-%d", base, i)
		if !taken[candidate] {
			return candidate
		}
	}
}
