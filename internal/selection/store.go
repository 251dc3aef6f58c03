// Package selection holds the single current audio entry shared by every
// screen.
package selection

import (
	"os"
	"sync"

	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/logger"
)

// Persister stores the selection across launches.
type Persister interface {
	SaveSelection(entry catalog.Entry, ok bool) error
}

// Listener receives the new selection after every change.
type Listener func(entry catalog.Entry, ok bool)

var fileExists = func(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

type Store struct {
	mu        sync.Mutex
	current   catalog.Entry
	ok        bool
	persister Persister

	nextID    int
	listeners map[int]Listener
}

// NewStore returns a store seeded with initial. persister may be nil.
func NewStore(initial catalog.Entry, ok bool, persister Persister) *Store {
	if initial.IsZero() {
		ok = false
	}
	s := &Store{persister: persister, listeners: make(map[int]Listener)}
	if ok {
		s.current, s.ok = initial, true
	}
	return s
}

func (s *Store) Get() (catalog.Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current, s.ok
}

func (s *Store) Set(entry catalog.Entry) {
	if entry.IsZero() {
		s.Clear()
		return
	}
	s.update(entry, true)
}

func (s *Store) Clear() {
	s.update(catalog.Entry{}, false)
}

// Subscribe registers fn and returns a function that removes it.
func (s *Store) Subscribe(fn Listener) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}

// Reconcile keeps the selection pointing at something in entries. A named
// selection that vanished from the catalog moves to the first entry, or is
// cleared when the catalog is empty. Unsaved captures and downloads are
// never part of the catalog; they are kept while their file exists.
func (s *Store) Reconcile(entries []catalog.Entry) (catalog.Entry, bool) {
	cur, ok := s.Get()
	if ok {
		if cur.Unsaved() || !cur.Origin.Persisted() {
			if fileExists(cur.URI) {
				return cur, true
			}
		} else if catalog.Contains(entries, cur) {
			return cur, true
		}
	}
	if len(entries) == 0 {
		if ok {
			s.Clear()
		}
		return catalog.Entry{}, false
	}
	s.Set(entries[0])
	return entries[0], true
}

func (s *Store) update(entry catalog.Entry, ok bool) {
	s.mu.Lock()
	if s.ok == ok && s.current == entry {
		s.mu.Unlock()
		return
	}
	s.current, s.ok = entry, ok
	listeners := make([]Listener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	persister := s.persister
	s.mu.Unlock()

	if persister != nil {
		if err := persister.SaveSelection(entry, ok); err != nil {
			logger.Warn("Failed to persist selection", "error", err)
		}
	}
	for _, fn := range listeners {
		fn(entry, ok)
	}
}
