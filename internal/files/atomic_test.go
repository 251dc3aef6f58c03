package files

import (
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type failingReader struct{ sent bool }

func (f *failingReader) Read(p []byte) (int, error) {
	if !f.sent {
		f.sent = true
		return copy(p, "partial"), nil
	}
	return 0, errors.New("connection reset")
}

func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("readdir: %v", err)
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestAtomicWriteFrom(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip_remix.wav")

	n, err := AtomicWriteFrom(path, strings.NewReader("RIFF"), 0600)
	if err != nil {
		t.Fatalf("AtomicWriteFrom: %v", err)
	}
	if n != 4 {
		t.Fatalf("expected 4 bytes, got %d", n)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "RIFF" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestAtomicWriteFrom_FailureLeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "clip_remix.wav")

	if _, err := AtomicWriteFrom(path, &failingReader{}, 0600); err == nil {
		t.Fatalf("expected error")
	}
	if names := listDir(t, dir); len(names) != 0 {
		t.Fatalf("expected empty dir, got %v", names)
	}
}

func TestAtomicWriteFrom_ReplacesExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.wav")
	if err := AtomicWrite(path, []byte("old"), 0600); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	if err := AtomicWrite(path, []byte("new"), 0600); err != nil {
		t.Fatalf("AtomicWrite: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Fatalf("unexpected content %q", data)
	}
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.wav")
	dst := filepath.Join(dir, "imports", "clip.wav")
	if err := os.WriteFile(src, []byte("audio"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}

	if err := CopyFile(src, dst, 0600); err != nil {
		t.Fatalf("CopyFile: %v", err)
	}
	f, _ := os.Open(dst)
	data, _ := io.ReadAll(f)
	f.Close()
	if string(data) != "audio" {
		t.Fatalf("unexpected content %q", data)
	}
	if err := CopyFile(src, dst, 0600); err == nil {
		t.Fatalf("expected error when destination exists")
	}
}

func TestMoveFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "capture.wav")
	dst := filepath.Join(dir, "take.wav")
	if err := os.WriteFile(src, []byte("pcm"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := MoveFile(src, dst); err != nil {
		t.Fatalf("MoveFile: %v", err)
	}
	if _, err := os.Stat(src); !os.IsNotExist(err) {
		t.Fatalf("expected source to be gone, got %v", err)
	}
	if data, _ := os.ReadFile(dst); string(data) != "pcm" {
		t.Fatalf("unexpected content %q", data)
	}

	if err := os.WriteFile(src, []byte("again"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := MoveFile(src, dst); err == nil {
		t.Fatalf("expected error when destination exists")
	}
	if data, _ := os.ReadFile(src); string(data) != "again" {
		t.Fatalf("source must be untouched on failure, got %q", data)
	}
}
