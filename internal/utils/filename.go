package utils

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// SanitizeFilename strips path components and anything outside a
// conservative character set, so the result is safe to use as an
// on-disk name or object key.
func SanitizeFilename(name string) string {
	// Handle both separator styles before taking the base name.
	name = strings.ReplaceAll(name, "\\", "/")
	name = filepath.Base(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '.', r == '-', r == '_':
			b.WriteRune(r)
		default:
			b.WriteRune('_')
		}
	}

	cleaned := strings.Trim(b.String(), "._")
	if cleaned == "" {
		cleaned = "file"
	}
	return cleaned
}

// FileExtension returns the lowercase extension without the leading dot,
// or "" if the name has none.
func FileExtension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	return strings.TrimPrefix(ext, ".")
}

// StoredName builds a collision-free object key for an upload:
// the uploader's name and a random component keep concurrent uploads
// of identically named files from overwriting each other.
func StoredName(username, original string) string {
	token := strings.Split(uuid.New().String(), "-")[0]
	return SanitizeFilename(username) + "_" + token + "_" + SanitizeFilename(original)
}
