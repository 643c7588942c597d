package fs

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrExists is returned by PublishDir when the destination already exists.
var ErrExists = errors.New("destination already exists")

// PublishDir atomically renames a fully written staging directory to dst.
// It never replaces an existing dst; in that case it returns ErrExists and
// leaves both directories untouched. The parent of dst is fsynced afterwards.
func PublishDir(staging, dst string) error {
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create parent of %s: %w", dst, err)
	}
	if err := renameNoReplace(staging, dst); err != nil {
		if errors.Is(err, os.ErrExist) {
			return ErrExists
		}
		return fmt.Errorf("publish %s: %w", dst, err)
	}
	return SyncDir(filepath.Dir(dst))
}

// renameFallback checks for dst before renaming. The check and the rename are
// not atomic together, so it is only used where the kernel cannot refuse the
// overwrite itself.
func renameFallback(src, dst string) error {
	if _, err := os.Lstat(dst); err == nil {
		return os.ErrExist
	} else if !os.IsNotExist(err) {
		return err
	}
	return os.Rename(src, dst)
}
