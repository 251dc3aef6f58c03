package files

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func TestRejectSymlinkPath(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("symlink not permitted on Windows")
	}
	tmp := t.TempDir()
	realDir := filepath.Join(tmp, "real", "recordings")
	if err := os.MkdirAll(realDir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	target := filepath.Join(realDir, "take.wav")
	if err := os.WriteFile(target, []byte("x"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.Symlink(target, filepath.Join(tmp, "file-link.wav")); err != nil {
		t.Fatalf("symlink: %v", err)
	}
	if err := os.Symlink(filepath.Join(tmp, "real"), filepath.Join(tmp, "dir-link")); err != nil {
		t.Fatalf("symlink dir: %v", err)
	}

	t.Run("PlainPath", func(t *testing.T) {
		if err := RejectSymlinkPath(filepath.Join(realDir, "new.wav")); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})
	t.Run("Target", func(t *testing.T) {
		if err := RejectSymlinkPath(filepath.Join(tmp, "file-link.wav")); err == nil {
			t.Fatalf("expected symlink rejection")
		}
	})
	t.Run("AncestorDir", func(t *testing.T) {
		if err := RejectSymlinkPath(filepath.Join(tmp, "dir-link", "recordings", "new.wav")); err == nil {
			t.Fatalf("expected ancestor symlink rejection")
		}
	})
	t.Run("Empty", func(t *testing.T) {
		if err := RejectSymlinkPath(" "); err == nil {
			t.Fatalf("expected error for empty path")
		}
	})
}
