package workflow

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"sync"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/logger"
	"github.com/oukeidos/ravemix/internal/naming"
	"github.com/oukeidos/ravemix/internal/player"
	"github.com/oukeidos/ravemix/internal/recorder"
	"github.com/oukeidos/ravemix/internal/selection"
)

// Library backs the record screen: the catalog, the recorder and the
// shared selection.
type Library struct {
	catalog  *catalog.Manager
	recorder *recorder.Controller
	player   player.Player
	sel      *selection.Store
	names    *naming.Broker

	mu      sync.Mutex
	entries []catalog.Entry
}

func NewLibrary(m *catalog.Manager, rec *recorder.Controller, p player.Player, sel *selection.Store, names *naming.Broker) *Library {
	l := &Library{catalog: m, recorder: rec, player: p, sel: sel, names: names}
	sel.Subscribe(func(catalog.Entry, bool) { p.Reset() })
	return l
}

func (l *Library) Recorder() *recorder.Controller { return l.recorder }
func (l *Library) Selection() *selection.Store    { return l.sel }

// Refresh rescans the catalog and repairs the selection if its entry is
// gone.
func (l *Library) Refresh(ctx context.Context) ([]catalog.Entry, error) {
	entries, err := l.catalog.List(ctx)
	if err != nil {
		return nil, err
	}
	l.setEntries(entries)
	return l.Entries(), nil
}

func (l *Library) setEntries(entries []catalog.Entry) {
	l.mu.Lock()
	l.entries = append([]catalog.Entry(nil), entries...)
	l.mu.Unlock()
	l.sel.Reconcile(entries)
}

func (l *Library) Entries() []catalog.Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]catalog.Entry(nil), l.entries...)
}

// Visible is what list views show: the catalog followed by the pending
// unsaved capture, if one is selected.
func (l *Library) Visible() []catalog.Entry {
	entries := l.Entries()
	if cur, ok := l.sel.Get(); ok && cur.Unsaved() {
		entries = append(entries, cur)
	}
	return entries
}

// Find returns the first entry called name, optionally limited to origin.
func (l *Library) Find(name string, origin catalog.Origin) (catalog.Entry, bool) {
	for _, e := range l.Entries() {
		if e.Name == name && (origin == "" || e.Origin == origin) {
			return e, true
		}
	}
	return catalog.Entry{}, false
}

// Choose makes entry the selection. It must be in the catalog.
func (l *Library) Choose(entry catalog.Entry) error {
	if !catalog.Contains(l.Entries(), entry) {
		return apperrors.NotFound(errors.New("entry is not in the catalog"))
	}
	l.replaceSelection(entry)
	return nil
}

// Import copies a picked file into the library and selects it. A pick that
// is not audio is ignored and reported with ok=false. An empty displayName
// uses the file's base name.
func (l *Library) Import(ctx context.Context, path, displayName, mimeType string) (entry catalog.Entry, ok bool, err error) {
	subtype, isAudio := catalog.AudioSubtype(mimeType)
	if !isAudio {
		logger.Debug("Ignoring non-audio pick", "path", path, "mime", mimeType)
		return catalog.Entry{}, false, nil
	}
	if strings.TrimSpace(displayName) == "" {
		base := filepath.Base(path)
		displayName = strings.TrimSuffix(base, filepath.Ext(base))
	}
	entry, entries, err := l.catalog.ImportFile(ctx, path, displayName, subtype)
	if err != nil {
		return catalog.Entry{}, true, err
	}
	l.adopt(entry, entries)
	return entry, true, nil
}

// ImportFrom is Import for pickers that hand out a stream instead of a
// path.
func (l *Library) ImportFrom(ctx context.Context, src io.Reader, displayName, mimeType string) (entry catalog.Entry, ok bool, err error) {
	subtype, isAudio := catalog.AudioSubtype(mimeType)
	if !isAudio {
		logger.Debug("Ignoring non-audio pick", "name", displayName, "mime", mimeType)
		return catalog.Entry{}, false, nil
	}
	entry, entries, err := l.catalog.Import(ctx, src, displayName, subtype)
	if err != nil {
		return catalog.Entry{}, true, err
	}
	l.adopt(entry, entries)
	return entry, true, nil
}

func (l *Library) adopt(entry catalog.Entry, entries []catalog.Entry) {
	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	l.replaceSelection(entry)
}

// StartRecording silences playback and starts a capture.
func (l *Library) StartRecording(ctx context.Context) error {
	l.player.Reset()
	return l.recorder.Start(ctx)
}

// StopRecording ends the capture and selects the unsaved result.
func (l *Library) StopRecording(ctx context.Context) (catalog.Entry, error) {
	entry, err := l.recorder.Stop(ctx)
	if err != nil {
		return catalog.Entry{}, err
	}
	l.replaceSelection(entry)
	return entry, nil
}

// ForceStop discards a capture in progress, e.g. when the screen is left.
func (l *Library) ForceStop() {
	l.recorder.ForceStop()
}

// SaveCurrent asks the front end for a name and saves the unsaved
// selection under it.
func (l *Library) SaveCurrent(ctx context.Context) (catalog.Entry, error) {
	cur, ok := l.sel.Get()
	if !ok || !cur.Unsaved() {
		return catalog.Entry{}, apperrors.Invalid("Select a new recording to save.")
	}
	name, err := l.names.RequestName(ctx, "Name this recording", func(name string) error {
		if catalog.NameInUse(l.Entries(), name) {
			return apperrors.New(apperrors.KindNameTaken, "", nil)
		}
		return nil
	})
	if err != nil {
		return catalog.Entry{}, err
	}
	return l.SaveCurrentAs(ctx, name)
}

// SaveCurrentAs saves the unsaved selection as name.
func (l *Library) SaveCurrentAs(ctx context.Context, name string) (catalog.Entry, error) {
	cur, ok := l.sel.Get()
	if !ok || !cur.Unsaved() {
		return catalog.Entry{}, apperrors.Invalid("Select a new recording to save.")
	}
	trimmed, err := naming.Validate(name)
	if err != nil {
		return catalog.Entry{}, err
	}
	saved, entries, err := l.catalog.SaveRecording(ctx, cur, trimmed)
	if err != nil {
		return catalog.Entry{}, err
	}
	l.mu.Lock()
	l.entries = entries
	l.mu.Unlock()
	l.sel.Set(saved)
	return saved, nil
}

// DeleteCurrent removes the selected audio. The selection moves to the
// first remaining entry.
func (l *Library) DeleteCurrent(ctx context.Context) (catalog.Entry, error) {
	cur, ok := l.sel.Get()
	if !ok {
		return catalog.Entry{}, apperrors.Invalid("No audio selected.")
	}
	entries, err := l.catalog.Delete(ctx, cur)
	if err != nil {
		return catalog.Entry{}, err
	}
	l.player.Reset()
	l.setEntries(entries)
	return cur, nil
}

// Play previews the selection.
func (l *Library) Play(ctx context.Context) error {
	cur, ok := l.sel.Get()
	if !ok {
		return apperrors.Invalid("No audio selected.")
	}
	return l.player.Play(ctx, cur)
}

// replaceSelection selects entry and drops a previous unsaved capture,
// which would otherwise be unreachable.
func (l *Library) replaceSelection(entry catalog.Entry) {
	prev, had := l.sel.Get()
	l.sel.Set(entry)
	if had && prev.Unsaved() && prev != entry {
		if err := l.catalog.Discard(prev); err != nil {
			logger.Warn("Failed to remove unsaved recording", "path", prev.URI, "error", err)
		} else {
			logger.Debug("Discarded unsaved recording", "path", prev.URI)
		}
	}
}
