// Package utils provides internal helpers shared across the logsink packages.
//
// The helpers here confine user-supplied sink names to a base directory so a
// rotation policy (an external collaborator) can never name a file outside the
// directory the writer was configured with.
package utils

import (
	"path/filepath"
	"strings"

	"github.com/hyp3rd/ewrap"
)

// SecureJoin joins a sink name onto a base directory, rejecting names that
// could escape it. The name must be relative and free of directory traversal
// sequences; an empty base directory resolves to the current directory.
func SecureJoin(dir, name string) (string, error) {
	if name == "" {
		return "", ewrap.New("sink name cannot be empty")
	}

	if dir == "" {
		dir = "."
	}

	cleaned := filepath.Clean(name)

	if filepath.IsAbs(cleaned) {
		return "", ewrap.New("absolute sink names are not allowed").
			WithMetadata("name", name)
	}

	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", ewrap.New("sink name contains directory traversal sequence").
			WithMetadata("name", name)
	}

	return filepath.Join(dir, cleaned), nil
}
