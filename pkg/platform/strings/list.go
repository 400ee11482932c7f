// Package strings holds small helpers for list-valued settings.
package strings

import "strings"

// CleanList trims each value, drops blanks and repeats, and keeps first-seen
// order. It returns nil when nothing remains, so callers can test len() == 0.
func CleanList(values []string) []string {
	var out []string
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
