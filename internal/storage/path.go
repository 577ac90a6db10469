package storage

import (
	"path"
	"strings"

	"go-lms/internal/common/apperrors"
)

// CheckPath reports whether p is a well-formed storage path: non-empty, relative to the
// storage root, no ".." segment, no repeated or backward separators, no NUL byte.
func CheckPath(p string) error {
	switch {
	case strings.TrimSpace(p) == "":
		return apperrors.Validation("path is empty")
	case strings.ContainsRune(p, 0):
		return apperrors.Validation("path %q contains a NUL byte", p)
	case strings.Contains(p, `\`):
		return apperrors.Validation("path %q contains a backslash", p)
	case strings.Contains(p, "//"):
		return apperrors.Validation("path %q contains repeated separators", p)
	}
	for _, segment := range strings.Split(p, "/") {
		if segment == ".." {
			return apperrors.Validation("path %q contains a traversal segment", p)
		}
	}
	return nil
}

// NormalizePath validates p and returns it in canonical relative form ("images/a.png").
func NormalizePath(p string) (string, error) {
	if err := CheckPath(p); err != nil {
		return "", err
	}
	clean := strings.TrimPrefix(path.Clean("/"+p), "/")
	if clean == "" {
		return "", apperrors.Validation("path %q resolves to the storage root", p)
	}
	return clean, nil
}

// JoinDir places the base name of p inside dir.
func JoinDir(dir, p string) string {
	dir = strings.Trim(dir, "/")
	if dir == "" {
		return path.Base(p)
	}
	return dir + "/" + path.Base(p)
}

// SplitName splits "a.tar.gz"-style names at the last dot: ("a.tar", ".gz").
func SplitName(name string) (string, string) {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext), ext
}
