// Package safepath confines user supplied (filename, folder) pairs to a storage root.
package safepath

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"files-board/internal/domain"
)

// Resolve joins root with the optional folder and the filename and returns the
// canonical absolute path. It fails with domain.ErrPathTraversal unless the
// result is root itself or a descendant of it. An empty filename resolves the
// folder, an empty folder and filename resolve root.
func Resolve(root, filename, folder string) (string, error) {
	if root == domain.PathEmpty || !filepath.IsAbs(root) {
		return "", fmt.Errorf("storage root %q must be an absolute path: %w", root, domain.ErrPathTraversal)
	}
	root = filepath.Clean(root)

	segments := make([]string, 0, 2)
	for _, s := range []string{folder, filename} {
		if s == domain.PathEmpty {
			continue
		}
		if strings.ContainsRune(s, 0) {
			return "", fmt.Errorf("segment contains NUL byte: %w", domain.ErrPathTraversal)
		}
		// backslashes count as separators so "..\\x" cannot hide a parent reference
		s = filepath.FromSlash(strings.ReplaceAll(s, `\`, "/"))
		if filepath.IsAbs(s) || filepath.VolumeName(s) != "" {
			return "", fmt.Errorf("absolute path %q is not allowed: %w", s, domain.ErrPathTraversal)
		}
		segments = append(segments, s)
	}

	resolved := filepath.Join(append([]string{root}, segments...)...)
	if !IsWithin(root, resolved) {
		return "", fmt.Errorf("path %q escapes storage root: %w", resolved, domain.ErrPathTraversal)
	}
	return resolved, nil
}

// IsWithin reports whether candidate equals root or lies beneath it. Both are
// cleaned first; the comparison is on whole path elements, so /data does not
// contain /data-other.
func IsWithin(root, candidate string) bool {
	root = filepath.Clean(root)
	candidate = filepath.Clean(candidate)
	if root == candidate {
		return true
	}
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	if rel == domain.PathParent || strings.HasPrefix(rel, domain.PathParent+string(filepath.Separator)) {
		return false
	}
	return !filepath.IsAbs(rel)
}

// LstatFunc reports a path's own metadata without following a final symlink.
type LstatFunc func(path string) (os.FileInfo, error)

// CheckSymlinks walks path from root downward and fails with
// domain.ErrPathTraversal if any existing component below root is a symlink.
// The walk stops at the first component that does not exist yet. With no
// links below root, the lexical check in Resolve also holds on disk.
func CheckSymlinks(root, path string, lstat LstatFunc) error {
	root = filepath.Clean(root)
	path = filepath.Clean(path)
	if !IsWithin(root, path) {
		return fmt.Errorf("path %q escapes storage root: %w", path, domain.ErrPathTraversal)
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return fmt.Errorf("path %q escapes storage root: %w", path, domain.ErrPathTraversal)
	}
	if rel == domain.PathCurrent {
		return nil
	}

	cur := root
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if part == domain.PathEmpty || part == domain.PathCurrent {
			continue
		}
		cur = filepath.Join(cur, part)
		info, statErr := lstat(cur)
		if statErr != nil {
			if os.IsNotExist(statErr) {
				return nil
			}
			return fmt.Errorf("lstat %q: %w: %w", cur, domain.ErrIOFailure, statErr)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("symlink %q below storage root: %w", cur, domain.ErrPathTraversal)
		}
	}
	return nil
}
