// Package fs provides the filesystem primitives the archive relies on:
// atomic file writes, durable copies, no-overwrite directory publish and
// guarded removal of staging directories.
package fs

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ErrRefusedRemove is returned when a path is not a removable staging directory.
type ErrRefusedRemove struct {
	Target string
	Reason string
}

func (e *ErrRefusedRemove) Error() string {
	return fmt.Sprintf("refusing to remove %q: %s", e.Target, e.Reason)
}

// RemoveStagingDir removes dir, which must be a real directory sitting
// directly inside parent with a base name starting with prefix. Anything
// else is refused with *ErrRefusedRemove, so a published round directory or
// a symlink into one can never be removed through this call. A missing dir
// is not an error.
func RemoveStagingDir(dir, parent, prefix string) error {
	if prefix == "" {
		return &ErrRefusedRemove{Target: dir, Reason: "empty staging prefix"}
	}
	clean := filepath.Clean(dir)
	if filepath.Clean(filepath.Dir(clean)) != filepath.Clean(parent) {
		return &ErrRefusedRemove{Target: dir, Reason: "not directly inside " + parent}
	}
	if !strings.HasPrefix(filepath.Base(clean), prefix) {
		return &ErrRefusedRemove{Target: dir, Reason: "name does not start with " + prefix}
	}

	info, err := os.Lstat(clean)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if !info.IsDir() {
		// Covers symlinks as well: Lstat does not follow them.
		return &ErrRefusedRemove{Target: dir, Reason: "not a directory"}
	}
	return os.RemoveAll(clean)
}
