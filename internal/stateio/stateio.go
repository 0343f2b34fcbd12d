// Package stateio implements the temp-file-and-rename write pattern used
// for every persisted state file under workdir (spec §7 "Partial writes to
// persisted files go through a temp-file-and-rename pattern so that readers
// never see a half-written state file", §9 "Scoped resource release").
package stateio

import (
	"os"
	"path/filepath"
)

// WriteFile atomically replaces path's contents with data: it writes to a
// sibling temp file, fsyncs, and renames over path, so a concurrent reader
// only ever observes the old or the new content, never a truncated one
// (spec §8 "Atomic state write").
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-"+filepath.Base(path)+"-")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	// Deferred cleanup covers every early-return path; the rename below
	// makes it a no-op on success since tmpPath no longer exists.
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpPath, perm); err != nil {
		return err
	}
	return os.Rename(tmpPath, path)
}

// ReadFile reads path's contents, returning (nil, nil) if the file does not
// exist yet (the common case for a not-yet-written scalar state file).
func ReadFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	return data, err
}
