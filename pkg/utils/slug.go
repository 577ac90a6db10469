package utils

import (
	"regexp"
	"strings"
)

var (
	nonSlug     = regexp.MustCompile("[^a-z0-9]+")
	nonFileName = regexp.MustCompile(`[^A-Za-z0-9._-]+`)
)

func Slugify(s string) string {
	s = strings.ToLower(s)
	s = nonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// SanitizeFileName keeps letters, digits, dot, dash and underscore; anything else becomes "_".
func SanitizeFileName(name string) string {
	name = nonFileName.ReplaceAllString(strings.TrimSpace(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "file"
	}
	return name
}
