package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/files"
	"github.com/oukeidos/ravemix/internal/logger"
)

// DefaultRecordExt is the container used for saved recordings when the
// capture backend does not dictate one.
const DefaultRecordExt = ".m4a"

const areaPerms = 0700
const filePerms = 0600

// Config locates the storage areas backing each origin.
type Config struct {
	RecordDir string
	ImportDir string
	// TempDir holds unsaved captures. Only files directly inside it can be
	// saved or discarded as captures.
	TempDir string
	// Defaults is the preloaded bundled set, listed first.
	Defaults []Entry
	// RecordExt is applied to saved recordings. Empty means DefaultRecordExt.
	RecordExt string
}

// Manager owns the imported and recorded areas and merges them with the
// bundled defaults into one catalog.
type Manager struct {
	recordDir string
	importDir string
	tempDir   string
	defaults  []Entry
	recordExt string
}

func NewManager(cfg Config) *Manager {
	ext := cfg.RecordExt
	if ext == "" {
		ext = DefaultRecordExt
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	defaults := make([]Entry, len(cfg.Defaults))
	for i, e := range cfg.Defaults {
		e.Origin = OriginDefault
		defaults[i] = e
	}
	return &Manager{
		recordDir: cfg.RecordDir,
		importDir: cfg.ImportDir,
		tempDir:   cfg.TempDir,
		defaults:  defaults,
		recordExt: ext,
	}
}

func (m *Manager) RecordDir() string { return m.recordDir }
func (m *Manager) ImportDir() string { return m.importDir }

func (m *Manager) ensureAreas() error {
	for _, dir := range []string{m.recordDir, m.importDir} {
		if err := os.MkdirAll(dir, areaPerms); err != nil {
			return fmt.Errorf("failed to create audio area %s: %w", dir, err)
		}
	}
	return nil
}

// List returns defaults, then imports, then recordings.
func (m *Manager) List(ctx context.Context) ([]Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Cancelled(err)
	}
	if err := m.ensureAreas(); err != nil {
		return nil, err
	}
	imported, err := scanArea(m.importDir, OriginImported)
	if err != nil {
		return nil, err
	}
	recorded, err := scanArea(m.recordDir, OriginRecorded)
	if err != nil {
		return nil, err
	}

	out := make([]Entry, 0, len(m.defaults)+len(imported)+len(recorded))
	out = append(out, dedupe(m.defaults)...)
	out = append(out, imported...)
	out = append(out, recorded...)
	return out, nil
}

func scanArea(dir string, origin Origin) ([]Entry, error) {
	dirEntries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read audio area %s: %w", dir, err)
	}
	out := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		name := de.Name()
		if de.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		out = append(out, Entry{
			URI:    filepath.Join(dir, name),
			Name:   strings.TrimSuffix(name, filepath.Ext(name)),
			Origin: origin,
		})
	}
	return dedupe(out), nil
}

// dedupe keeps the first entry for each name. os.ReadDir sorts by
// filename, so "clip.mp3" wins over "clip.wav".
func dedupe(entries []Entry) []Entry {
	seen := make(map[string]struct{}, len(entries))
	out := entries[:0:0]
	for _, e := range entries {
		if _, dup := seen[e.Name]; dup {
			logger.Debug("Skipping duplicate audio name", "origin", e.Origin, "name", e.Name, "uri", e.URI)
			continue
		}
		seen[e.Name] = struct{}{}
		out = append(out, e)
	}
	return out
}

// Contains reports whether entries holds an entry with the same URI.
func Contains(entries []Entry, e Entry) bool {
	for _, c := range entries {
		if c.URI == e.URI {
			return true
		}
	}
	return false
}

// NameInUse reports whether any entry, of any origin, is called name.
func NameInUse(entries []Entry, name string) bool {
	for _, e := range entries {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Import copies src into the imported area as displayName.<ext>.
func (m *Manager) Import(ctx context.Context, src io.Reader, displayName, mimeSubtype string) (Entry, []Entry, error) {
	name := strings.TrimSpace(displayName)
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return Entry{}, nil, apperrors.New(apperrors.KindImportFailed, fmt.Sprintf("Invalid audio name %q.", displayName), nil)
	}
	ext := extensionForSubtype(mimeSubtype)
	if ext == "" {
		return Entry{}, nil, apperrors.New(apperrors.KindImportFailed, "Unknown audio type.", nil)
	}

	current, err := m.List(ctx)
	if err != nil {
		return Entry{}, nil, apperrors.ImportFailed(err)
	}
	for _, e := range current {
		if e.Origin == OriginImported && e.Name == name {
			return Entry{}, nil, apperrors.New(apperrors.KindImportFailed, fmt.Sprintf("An imported audio named %q already exists.", name), nil)
		}
	}

	dst := filepath.Join(m.importDir, name+"."+ext)
	if _, err := files.AtomicWriteFrom(dst, src, filePerms); err != nil {
		return Entry{}, nil, apperrors.ImportFailed(err)
	}
	entry := Entry{URI: dst, Name: name, Origin: OriginImported}
	logger.Info("Audio imported", "name", name, "uri", dst)

	refreshed, err := m.List(ctx)
	if err != nil {
		return entry, nil, err
	}
	return entry, refreshed, nil
}

// ImportFile is Import for a source on the local filesystem.
func (m *Manager) ImportFile(ctx context.Context, path, displayName, mimeSubtype string) (Entry, []Entry, error) {
	f, err := os.Open(path)
	if err != nil {
		return Entry{}, nil, apperrors.ImportFailed(err)
	}
	defer f.Close()
	return m.Import(ctx, f, displayName, mimeSubtype)
}

// SaveRecording moves an unsaved capture into the recorded area under
// newName. The capture file is untouched unless the move succeeds.
func (m *Manager) SaveRecording(ctx context.Context, entry Entry, newName string) (Entry, []Entry, error) {
	if !entry.Unsaved() {
		return Entry{}, nil, apperrors.Invalid("Only a new, unsaved recording can be saved.")
	}
	if !within(m.tempDir, entry.URI) {
		return Entry{}, nil, apperrors.Invalid("Recording is outside the capture area.")
	}
	name := strings.TrimSpace(newName)
	if name == "" {
		return Entry{}, nil, apperrors.Invalid("A name is required.")
	}
	if strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return Entry{}, nil, apperrors.Invalid(fmt.Sprintf("Invalid audio name %q.", newName))
	}

	current, err := m.List(ctx)
	if err != nil {
		return Entry{}, nil, err
	}
	if NameInUse(current, name) {
		return Entry{}, nil, apperrors.New(apperrors.KindNameTaken, "", fmt.Errorf("name %q already in use", name))
	}

	dst := filepath.Join(m.recordDir, name+m.recordExt)
	if err := files.MoveFile(entry.URI, dst); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Entry{}, nil, apperrors.NotFound(err)
		}
		return Entry{}, nil, fmt.Errorf("failed to save recording: %w", err)
	}
	saved := Entry{URI: dst, Name: name, Origin: OriginRecorded}
	logger.Info("Recording saved", "name", name, "uri", dst)

	refreshed, err := m.List(ctx)
	if err != nil {
		return saved, nil, err
	}
	return saved, refreshed, nil
}

// Delete removes entry's file. Bundled defaults are never touched.
func (m *Manager) Delete(ctx context.Context, entry Entry) ([]Entry, error) {
	if entry.Origin == OriginDefault {
		return nil, apperrors.New(apperrors.KindDeleteForbidden, "", nil)
	}
	if entry.IsZero() {
		return nil, apperrors.Invalid("No audio selected.")
	}
	switch {
	case entry.Origin == OriginImported:
		if !within(m.importDir, entry.URI) {
			return nil, apperrors.Invalid("Audio is outside the imports area.")
		}
	case entry.Unsaved():
		if !within(m.tempDir, entry.URI) {
			return nil, apperrors.Invalid("Recording is outside the capture area.")
		}
	case entry.Origin == OriginRecorded:
		if !within(m.recordDir, entry.URI) {
			return nil, apperrors.Invalid("Audio is outside the recordings area.")
		}
	default:
		return nil, apperrors.Invalid("Only imported or recorded audio can be deleted.")
	}

	if err := os.Remove(entry.URI); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NotFound(err)
		}
		return nil, fmt.Errorf("failed to delete audio: %w", err)
	}
	logger.Info("Audio deleted", "origin", entry.Origin, "name", entry.Name, "uri", entry.URI)
	return m.List(ctx)
}

// Discard removes an unsaved capture that nothing refers to any more.
func (m *Manager) Discard(entry Entry) error {
	if !entry.Unsaved() || !within(m.tempDir, entry.URI) {
		return apperrors.Invalid("Only an unsaved recording can be discarded.")
	}
	if err := os.Remove(entry.URI); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to discard recording: %w", err)
	}
	return nil
}

func within(dir, path string) bool {
	if dir == "" {
		return false
	}
	rel, err := filepath.Rel(filepath.Clean(dir), filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != "." && !strings.HasPrefix(rel, "..") && !filepath.IsAbs(rel) && !strings.ContainsRune(rel, filepath.Separator)
}
