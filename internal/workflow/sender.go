package workflow

import (
	"context"
	"errors"
	"os"
	"slices"
	"sync"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/logger"
	"github.com/oukeidos/ravemix/internal/player"
	"github.com/oukeidos/ravemix/internal/selection"
	"github.com/oukeidos/ravemix/internal/settings"
)

// SenderState is what the send screen renders.
type SenderState struct {
	Models     []string
	Model      string
	Busy       bool
	Downloaded catalog.Entry
}

// Sender backs the send screen: model choice and the upload/download round
// trip for the selection.
type Sender struct {
	service  Service
	settings *settings.Store
	sel      *selection.Store
	player   player.Player

	mu         sync.Mutex
	models     []string
	model      string
	busy       bool
	downloaded catalog.Entry
	listeners  map[int]func(SenderState)
	nextID     int
}

func NewSender(service Service, store *settings.Store, sel *selection.Store, p player.Player) *Sender {
	s := &Sender{service: service, settings: store, sel: sel, player: p, listeners: make(map[int]func(SenderState))}
	sel.Subscribe(func(catalog.Entry, bool) { s.discardDownload() })
	return s
}

func (s *Sender) State() SenderState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Sender) stateLocked() SenderState {
	return SenderState{
		Models:     slices.Clone(s.models),
		Model:      s.model,
		Busy:       s.busy,
		Downloaded: s.downloaded,
	}
}

func (s *Sender) Subscribe(fn func(SenderState)) func() {
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

func (s *Sender) Busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busy
}

// LoadModels fetches the model list and activates the first model.
func (s *Sender) LoadModels(ctx context.Context) ([]string, error) {
	addr := s.settings.Address()
	models, err := s.service.ListModels(ctx, addr)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.models = models
	s.model = ""
	if len(models) > 0 {
		s.model = models[0]
	}
	first := s.model
	s.mu.Unlock()
	s.notify()

	if first != "" {
		s.activate(ctx, addr, first)
	}
	return slices.Clone(models), nil
}

// ChooseModel switches to id, which must be one of the loaded models.
func (s *Sender) ChooseModel(ctx context.Context, id string) error {
	s.mu.Lock()
	if !slices.Contains(s.models, id) {
		s.mu.Unlock()
		return apperrors.Invalid("Unknown model " + id + ".")
	}
	s.model = id
	s.mu.Unlock()
	s.notify()
	s.activate(ctx, s.settings.Address(), id)
	return nil
}

// activate tells the service which model to use. Failures are logged
// only; the next transfer runs with whatever the service has active.
func (s *Sender) activate(ctx context.Context, addr settings.Address, id string) {
	if err := s.service.SelectModel(ctx, addr, id); err != nil {
		logger.Warn("Model selection failed", "model", id, "error", err)
		return
	}
	logger.Info("Model selected", "model", id)
}

// Rave sends the selection to the service and keeps the processed result.
// On failure nothing changes.
func (s *Sender) Rave(ctx context.Context) (catalog.Entry, error) {
	src, ok := s.sel.Get()
	if !ok {
		return catalog.Entry{}, apperrors.Invalid("No audio selected.")
	}
	s.mu.Lock()
	if s.busy {
		s.mu.Unlock()
		return catalog.Entry{}, apperrors.Invalid("A transfer is already running.")
	}
	s.busy = true
	s.mu.Unlock()
	s.notify()

	out, err := s.service.Transfer(ctx, s.settings.Address(), src)

	s.mu.Lock()
	s.busy = false
	s.mu.Unlock()
	if err != nil {
		s.notify()
		return catalog.Entry{}, err
	}

	if cur, ok := s.sel.Get(); !ok || cur != src {
		// The selection moved on while the transfer ran.
		if err := os.Remove(out.URI); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove stale download", "path", out.URI, "error", err)
		}
		s.notify()
		return catalog.Entry{}, apperrors.Cancelled(nil)
	}
	s.player.Reset()
	s.mu.Lock()
	s.downloaded = out
	s.mu.Unlock()
	s.notify()
	return out, nil
}

// Playable is the processed clip when there is one, else the selection.
func (s *Sender) Playable() (catalog.Entry, bool) {
	s.mu.Lock()
	d := s.downloaded
	s.mu.Unlock()
	if !d.IsZero() {
		return d, true
	}
	return s.sel.Get()
}

// Play previews Playable.
func (s *Sender) Play(ctx context.Context) error {
	e, ok := s.Playable()
	if !ok {
		return apperrors.Invalid("No audio selected.")
	}
	return s.player.Play(ctx, e)
}

func (s *Sender) discardDownload() {
	s.mu.Lock()
	had := !s.downloaded.IsZero()
	s.downloaded = catalog.Entry{}
	s.mu.Unlock()
	s.player.Reset()
	if had {
		s.notify()
	}
}

func (s *Sender) notify() {
	s.mu.Lock()
	st := s.stateLocked()
	listeners := make([]func(SenderState), 0, len(s.listeners))
	for _, fn := range s.listeners {
		listeners = append(listeners, fn)
	}
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}
