// Package fsutil holds small filesystem helpers shared by the table store and
// the image store.
package fsutil

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
)

// WriteFile replaces path with data atomically: readers see either the old
// file or the complete new one, never a partial write.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	return WriteReader(path, bytes.NewReader(data), perm)
}

// WriteReader streams r into a temp file beside path, fsyncs it, then renames
// it over path.
func WriteReader(path string, r io.Reader, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, r); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
