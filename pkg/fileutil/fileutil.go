// Package fileutil provides file system utility functions.
package fileutil

import (
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// FindFileCaseInsensitive searches for a file with the given name in the specified directory.
// The search is case-insensitive, so asset names written on one platform keep
// resolving on another.
//
// Parameters:
//   - dir: The directory to search in
//   - filename: The filename to search for (case-insensitive)
//
// Returns:
//   - string: The actual path to the file if found
//   - error: An error wrapping fs.ErrNotExist if no entry matches, or the I/O error
//
// Example:
//
//	path, err := FindFileCaseInsensitive("/path/to/assets", "Pacman.PNG")
//	// Will find "pacman.png", "PACMAN.PNG", "PacMan.png", etc.
func FindFileCaseInsensitive(dir, filename string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	name, ok := matchEntry(entries, filename)
	if !ok {
		return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
	}
	return filepath.Join(dir, name), nil
}

// FindFileCaseInsensitiveFS is FindFileCaseInsensitive for an fs.FS.
// dir and the returned path use forward slashes.
func FindFileCaseInsensitiveFS(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	name, ok := matchEntry(entries, filename)
	if !ok {
		return "", fmt.Errorf("file not found: %s (searched in %s): %w", filename, dir, fs.ErrNotExist)
	}
	return path.Join(dir, name), nil
}

// matchEntry returns the first regular entry whose name equals filename ignoring case.
// An exact match wins over a case-folded one.
func matchEntry(entries []fs.DirEntry, filename string) (string, bool) {
	var folded string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.Name() == filename {
			return entry.Name(), true
		}
		if folded == "" && strings.EqualFold(entry.Name(), filename) {
			folded = entry.Name()
		}
	}
	return folded, folded != ""
}
