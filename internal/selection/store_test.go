package selection

import (
	"errors"
	"testing"

	"github.com/oukeidos/ravemix/internal/catalog"
)

type recordingPersister struct {
	saved []catalog.Entry
	fail  bool
}

func (p *recordingPersister) SaveSelection(e catalog.Entry, ok bool) error {
	if p.fail {
		return errors.New("disk full")
	}
	if !ok {
		e = catalog.Entry{}
	}
	p.saved = append(p.saved, e)
	return nil
}

var (
	sample = catalog.Entry{URI: "/d/sample.wav", Name: "sample", Origin: catalog.OriginDefault}
	clip   = catalog.Entry{URI: "/i/clip.wav", Name: "clip", Origin: catalog.OriginImported}
	take   = catalog.Entry{URI: "/r/take.wav", Name: "take", Origin: catalog.OriginRecorded}
	fresh  = catalog.Entry{URI: "/t/capture-1.wav", Origin: catalog.OriginRecorded}
)

func TestStore_SetNotifiesAndPersists(t *testing.T) {
	p := &recordingPersister{}
	s := NewStore(catalog.Entry{}, false, p)
	if _, ok := s.Get(); ok {
		t.Fatalf("expected empty selection")
	}

	var seen []catalog.Entry
	unsubscribe := s.Subscribe(func(e catalog.Entry, ok bool) {
		seen = append(seen, e)
	})

	s.Set(clip)
	s.Set(clip)
	s.Set(take)
	unsubscribe()
	s.Clear()

	if len(seen) != 2 || seen[0] != clip || seen[1] != take {
		t.Fatalf("unexpected notifications %v", seen)
	}
	if len(p.saved) != 3 || !p.saved[2].IsZero() {
		t.Fatalf("unexpected persisted values %v", p.saved)
	}
	if _, ok := s.Get(); ok {
		t.Fatalf("expected cleared selection")
	}
}

func TestStore_PersistFailureStillUpdates(t *testing.T) {
	s := NewStore(catalog.Entry{}, false, &recordingPersister{fail: true})
	s.Set(clip)
	if got, ok := s.Get(); !ok || got != clip {
		t.Fatalf("expected clip, got %v %v", got, ok)
	}
}

func TestStore_SubscriberMayReadStore(t *testing.T) {
	s := NewStore(catalog.Entry{}, false, nil)
	done := false
	s.Subscribe(func(catalog.Entry, bool) {
		// Listeners run outside the lock.
		if got, _ := s.Get(); got == clip {
			done = true
		}
	})
	s.Set(clip)
	if !done {
		t.Fatalf("listener did not observe the new selection")
	}
}

func TestReconcile(t *testing.T) {
	orig := fileExists
	defer func() { fileExists = orig }()
	fileExists = func(path string) bool { return path == fresh.URI }

	catalogEntries := []catalog.Entry{sample, clip}

	t.Run("KeepsPresent", func(t *testing.T) {
		s := NewStore(clip, true, nil)
		if got, ok := s.Reconcile(catalogEntries); !ok || got != clip {
			t.Fatalf("expected clip kept, got %v", got)
		}
	})
	t.Run("ReassignsMissing", func(t *testing.T) {
		s := NewStore(take, true, nil)
		if got, ok := s.Reconcile(catalogEntries); !ok || got != sample {
			t.Fatalf("expected first entry, got %v", got)
		}
	})
	t.Run("SelectsFirstWhenEmpty", func(t *testing.T) {
		s := NewStore(catalog.Entry{}, false, nil)
		if got, ok := s.Reconcile(catalogEntries); !ok || got != sample {
			t.Fatalf("expected first entry, got %v", got)
		}
	})
	t.Run("ClearsOnEmptyCatalog", func(t *testing.T) {
		s := NewStore(clip, true, nil)
		if _, ok := s.Reconcile(nil); ok {
			t.Fatalf("expected cleared selection")
		}
		if _, ok := s.Get(); ok {
			t.Fatalf("expected store cleared")
		}
	})
	t.Run("KeepsUnsavedCapture", func(t *testing.T) {
		s := NewStore(fresh, true, nil)
		if got, ok := s.Reconcile(catalogEntries); !ok || got != fresh {
			t.Fatalf("expected unsaved capture kept, got %v", got)
		}
	})
	t.Run("DropsVanishedDownload", func(t *testing.T) {
		gone := catalog.Entry{URI: "/dl/clip_remix.wav", Name: "clip_remix", Origin: catalog.OriginDownloaded}
		s := NewStore(gone, true, nil)
		if got, ok := s.Reconcile(catalogEntries); !ok || got != sample {
			t.Fatalf("expected first entry, got %v", got)
		}
	})
}
