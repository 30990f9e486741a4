// Package fileutil resolves soundfont and MIDI file names case-insensitively
// on real and in-memory file systems.
package fileutil

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"sort"
	"strings"
)

// ErrNotFound is returned when no directory entry matches a name.
var ErrNotFound = errors.New("file not found")

// FindFile searches dir of fsys for filename, ignoring case. An exact match
// wins over a case-folded one. The returned path uses forward slashes.
//
// Example:
//
//	p, err := FindFile(os.DirFS("/music"), "fonts", "GeneralUser.SF2")
//	// finds "fonts/generaluser.sf2", "fonts/GENERALUSER.SF2", ...
func FindFile(fsys fs.FS, dir, filename string) (string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return "", fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var folded string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if entry.Name() == filename {
			return path.Join(dir, entry.Name()), nil
		}
		if folded == "" && strings.EqualFold(entry.Name(), filename) {
			folded = entry.Name()
		}
	}
	if folded != "" {
		return path.Join(dir, folded), nil
	}

	return "", fmt.Errorf("%w: %s (searched in %s)", ErrNotFound, filename, dir)
}

// FindByExt returns the files of dir whose extension matches ext, ignoring
// case, sorted by name.
func FindByExt(fsys fs.FS, dir, ext string) ([]string, error) {
	entries, err := fs.ReadDir(fsys, dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var found []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.EqualFold(path.Ext(entry.Name()), ext) {
			found = append(found, path.Join(dir, entry.Name()))
		}
	}
	sort.Strings(found)
	return found, nil
}
