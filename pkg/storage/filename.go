package storage

import (
	"path"
	"strings"
	"unicode"
)

// SecureFilename reduces an uploaded filename to a safe ASCII basename. It
// returns "" when nothing usable remains.
func SecureFilename(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	name = path.Base(strings.TrimSpace(name))
	if name == "." || name == "/" {
		return ""
	}

	var b strings.Builder
	lastUnderscore := false
	for _, r := range name {
		switch {
		case r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '.' || r == '-' || r == '_'):
			b.WriteRune(r)
			lastUnderscore = r == '_'
		case unicode.IsSpace(r):
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	return strings.Trim(b.String(), "._")
}

// Ext returns the lowercased extension of name including the dot.
func Ext(name string) string {
	return strings.ToLower(path.Ext(name))
}
