//go:build !windows

package files

import (
	"os"
	"path/filepath"

	"github.com/oukeidos/ravemix/internal/logger"
)

// renameAtomic renames within one filesystem and then syncs the parent
// directory so the new name survives a crash right after a save.
func renameAtomic(oldPath, newPath string) error {
	if err := os.Rename(oldPath, newPath); err != nil {
		return err
	}
	dir, err := os.Open(filepath.Dir(newPath))
	if err != nil {
		logger.Debug("Directory sync skipped", "path", newPath, "error", err)
		return nil
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		logger.Debug("Directory sync failed", "path", newPath, "error", err)
	}
	return nil
}
