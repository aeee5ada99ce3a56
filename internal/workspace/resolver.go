// Package workspace canonicalizes workspace paths so every alias of a
// directory maps to the same store key.
package workspace

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	// ErrNotFound reports a workspace path that does not exist.
	ErrNotFound = errors.New("workspace not found")
	// ErrInvalidPath reports a path that cannot be canonicalized.
	ErrInvalidPath = errors.New("invalid workspace path")
)

// Resolve canonicalizes path into the store key: absolute, symlinks
// evaluated, cleaned. An empty path resolves to the current working
// directory. The path must name an existing directory.
func Resolve(path string) (string, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", fmt.Errorf("%w: determine working directory: %v", ErrInvalidPath, err)
		}
		path = wd
	}
	if strings.ContainsRune(path, 0) {
		return "", fmt.Errorf("%w: path contains NUL byte", ErrInvalidPath)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, abs)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}

	info, err := os.Stat(resolved)
	if err != nil {
		if os.IsNotExist(err) {
			return "", fmt.Errorf("%w: %s", ErrNotFound, resolved)
		}
		return "", fmt.Errorf("%w: %v", ErrInvalidPath, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%w: %s is not a directory", ErrInvalidPath, resolved)
	}

	return filepath.Clean(resolved), nil
}
