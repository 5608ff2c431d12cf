// Package util provides common utility functions used across the army tracker.
package util

import "strings"

// TrimQuotes removes leading and trailing double quotes from a string.
func TrimQuotes(s string) string {
	return strings.Trim(s, `"`)
}

// FixEscapeQuotes replaces escaped double quotes ("") with single double quotes (").
func FixEscapeQuotes(s string) string {
	return strings.ReplaceAll(s, `""`, `"`)
}

// Contains reports whether str is an element of slice.
func Contains(slice []string, str string) bool {
	for _, s := range slice {
		if s == str {
			return true
		}
	}
	return false
}

// ParseLoadoutArray parses a stringified loadout array of 3 quoted strings.
// Input format: ["melee","ranged","special"]
// Returns the three strings. If parsing fails, returns the input as the second
// element (ranged) with empty melee and special, preserving backward compatibility
// with clients that send a bare weapon name.
func ParseLoadoutArray(s string) (melee, ranged, special string) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return "", s, ""
	}

	inner := s[1 : len(s)-1]
	parts := strings.SplitN(inner, `","`, 3)
	if len(parts) != 3 {
		return "", s, ""
	}

	melee = FixEscapeQuotes(strings.Trim(parts[0], `"`))
	ranged = FixEscapeQuotes(strings.Trim(parts[1], `"`))
	special = FixEscapeQuotes(strings.Trim(parts[2], `"`))
	return melee, ranged, special
}

// FormatLoadoutText builds a display string from the loadout components.
// Format: "Melee: Ranged [Special]" with empty parts omitted.
func FormatLoadoutText(melee, ranged, special string) string {
	var b strings.Builder
	if melee != "" {
		b.WriteString(melee)
		if ranged != "" {
			b.WriteString(": ")
		}
	}
	b.WriteString(ranged)
	if special != "" {
		b.WriteString(" [")
		b.WriteString(special)
		b.WriteByte(']')
	}
	return b.String()
}
