package files

import (
	"errors"
	"fmt"
	"os"
)

// CopyFile copies src to dst atomically. dst must not exist.
func CopyFile(src, dst string, perms os.FileMode) error {
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("destination already exists: %s", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	_, err = AtomicWriteFrom(dst, in, perms)
	return err
}

// MoveFile renames src to dst, falling back to copy-then-remove when the
// two paths are on different volumes. dst must not exist. If the move
// fails, src is left in place.
func MoveFile(src, dst string) error {
	if err := RejectSymlinkPath(dst); err != nil {
		return err
	}
	if _, err := os.Lstat(dst); err == nil {
		return fmt.Errorf("destination already exists: %s", dst)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}
	info, err := os.Stat(src)
	if err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	} else {
		var linkErr *os.LinkError
		if !errors.As(err, &linkErr) {
			return err
		}
	}
	if err := CopyFile(src, dst, info.Mode().Perm()); err != nil {
		return err
	}
	if err := os.Remove(src); err != nil {
		return fmt.Errorf("copied to %s but failed to remove source: %w", dst, err)
	}
	return nil
}
