package core

import (
	"sort"
	"strings"
)

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// CleanTags trims, lowers and de-duplicates tags, dropping empty ones. Order of first appearance is kept.
func CleanTags(tags []string) []string {
	if tags == nil {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	clean := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = CleanString(tag, true /* lower */)
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		clean = append(clean, tag)
	}
	return clean
}

// StringInSlice reports whether `s` is in `list`. `list` gets sorted.
func StringInSlice(s string, list []string) bool {
	sort.Strings(list)
	if i := sort.SearchStrings(list, s); i < len(list) {
		return list[i] == s
	}
	return false
}
