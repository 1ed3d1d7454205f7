package watcher

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/sys/unix"
)

// ErrNotDirectory is reported for a root that exists but is not a directory.
var ErrNotDirectory = errors.New("not a directory")

// computeRoots derives the roots for paths and validates each one. Empty
// paths produce no root.
func computeRoots(paths Paths) []Root {
	var roots []Root
	if dir := cleanPath(paths.DownloadsDir); dir != "" {
		roots = append(roots, Root{Path: dir, Role: RoleDownloads, Recursive: true})
	}
	if file := cleanPath(paths.ProjectFile); file != "" {
		roots = append(roots, Root{Path: filepath.Dir(file), Role: RoleProjectFileDir})
	}
	if dir := cleanPath(paths.PDFDir); dir != "" {
		roots = append(roots, Root{Path: dir, Role: RolePdfFolder, Recursive: true})
	}
	for i := range roots {
		roots[i].Err = checkRoot(roots[i].Path)
		roots[i].Accessible = roots[i].Err == nil
	}
	return roots
}

// checkRoot verifies path is a directory the process can read and write.
func checkRoot(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fmt.Errorf("%s: %w", path, ErrNotDirectory)
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return &os.PathError{Op: "access", Path: path, Err: err}
	}
	return nil
}

func cleanPath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return ""
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return filepath.Clean(path)
}

// within reports whether path is root or lies beneath it.
func within(root, path string) bool {
	if root == "" || path == "" {
		return false
	}
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
