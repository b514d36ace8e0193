// Package models defines the data structures shared by the compliance engine.
package models

import "strings"

// Slugify lowercases s, turns spaces and underscores into hyphens and drops
// every other character that is not an ASCII letter, digit or hyphen.
// Checklist IDs are derived from file names this way.
func Slugify(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
			b.WriteRune(r)
		case r == ' ', r == '_':
			b.WriteByte('-')
		}
	}
	return b.String()
}
