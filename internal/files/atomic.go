package files

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// TempPattern names in-flight files. The leading dot keeps them out of
// catalog scans.
const TempPattern = ".ravemix-*.tmp"

// AtomicWrite writes data to a temp file and renames it into place.
func AtomicWrite(path string, data []byte, perms os.FileMode) error {
	_, err := AtomicWriteFrom(path, bytes.NewReader(data), perms)
	return err
}

// AtomicWriteFrom streams r into a temp file next to path and renames it
// into place once fully written. On any error the temp file is removed and
// path is left as it was.
func AtomicWriteFrom(path string, r io.Reader, perms os.FileMode) (int64, error) {
	if err := RejectSymlinkPath(path); err != nil {
		return 0, err
	}
	dir := filepath.Dir(path)
	tmpFile, err := os.CreateTemp(dir, TempPattern)
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpPath := tmpFile.Name()

	cleanup := true
	defer func() {
		if cleanup {
			tmpFile.Close()
			os.Remove(tmpPath)
		}
	}()

	if err := tmpFile.Chmod(perms); err != nil {
		return 0, fmt.Errorf("failed to set temp file permissions: %w", err)
	}
	n, err := io.Copy(tmpFile, r)
	if err != nil {
		return n, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := tmpFile.Sync(); err != nil {
		return n, fmt.Errorf("failed to sync temp file: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return n, fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := renameAtomic(tmpPath, path); err != nil {
		return n, fmt.Errorf("failed to rename temp file to destination: %w", err)
	}

	cleanup = false
	return n, nil
}
