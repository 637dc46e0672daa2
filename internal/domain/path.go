package domain

import (
	"errors"
	"path"
	"strings"
)

var ErrInvalidPath = errors.New("invalid file path")

// reserved names the in-browser bundler owns
var reservedPaths = []string{"/package.json"}

// CleanPath roots p and resolves . and .. elements, so "a.ts", "/a.ts" and
// "/x/../a.ts" name the same file.
func CleanPath(p string) string {
	return path.Join("/", p)
}

// ValidatePath returns the cleaned form of p. It rejects empty paths,
// reserved names and characters the bundler's virtual file system cannot hold.
func ValidatePath(p string) (string, error) {
	if strings.TrimSpace(p) == "" {
		return "", ErrInvalidPath
	}
	clean := CleanPath(p)
	switch {
	case clean == "/":
		return "", ErrInvalidPath
	case strings.HasPrefix(clean, "/node_modules"):
		return "", ErrInvalidPath
	case strings.HasPrefix(clean, "/$dummy_file.txt"):
		return "", ErrInvalidPath
	case strings.ContainsAny(clean, `\:*?<>|"`):
		return "", ErrInvalidPath
	}
	for _, r := range reservedPaths {
		if clean == r {
			return "", ErrInvalidPath
		}
	}
	return clean, nil
}
