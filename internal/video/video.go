// Package video extracts canonical video identifiers from user-supplied URLs.
package video

import "regexp"

// IDLength is the length of a canonical video identifier.
const IDLength = 11

// idPattern matches an identifier immediately following a v= query marker or a path separator.
var idPattern = regexp.MustCompile(`(?:v=|/)([0-9A-Za-z_-]{11})`)

// ExtractID returns the first video identifier found in raw.
// The second return value is false when no identifier is present; malformed input is not an error.
func ExtractID(raw string) (string, bool) {
	m := idPattern.FindStringSubmatch(raw)
	if len(m) < 2 {
		return "", false
	}
	return m[1], true
}

// IsValidID reports whether id has the shape of a canonical identifier.
func IsValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r == '_', r == '-':
		default:
			return false
		}
	}
	return true
}

// WatchURL builds the watch page URL for an identifier.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
