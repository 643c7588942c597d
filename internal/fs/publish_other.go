//go:build !linux

package fs

func renameNoReplace(src, dst string) error {
	return renameFallback(src, dst)
}
