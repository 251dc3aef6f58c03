// Package workflow coordinates the three screens: connection, library and
// remote processing. Front ends only talk to this package.
package workflow

import (
	"context"
	"sync"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/logger"
	"github.com/oukeidos/ravemix/internal/settings"
)

// Service is the remote processing API.
type Service interface {
	Probe(ctx context.Context, addr settings.Address) (bool, error)
	ListModels(ctx context.Context, addr settings.Address) ([]string, error)
	SelectModel(ctx context.Context, addr settings.Address, id string) error
	Transfer(ctx context.Context, addr settings.Address, entry catalog.Entry) (catalog.Entry, error)
}

type ProbeState int

const (
	ProbeUnknown ProbeState = iota
	ProbeConnecting
	ProbeConnected
	ProbeFailed
)

func (s ProbeState) String() string {
	switch s {
	case ProbeConnecting:
		return "connecting"
	case ProbeConnected:
		return "connected"
	case ProbeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Connection owns the service address and its reachability.
type Connection struct {
	settings *settings.Store
	service  Service

	mu        sync.Mutex
	state     ProbeState
	seq       uint64
	cancel    context.CancelFunc
	listeners map[int]func(ProbeState)
	nextID    int
}

func NewConnection(store *settings.Store, service Service) *Connection {
	return &Connection{settings: store, service: service, listeners: make(map[int]func(ProbeState))}
}

func (c *Connection) Address() settings.Address { return c.settings.Address() }

func (c *Connection) State() ProbeState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Connection) Subscribe(fn func(ProbeState)) func() {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	c.mu.Unlock()
	return func() {
		c.mu.Lock()
		delete(c.listeners, id)
		c.mu.Unlock()
	}
}

// Probe checks the current address. A newer Probe, Patch or Cancel
// supersedes this one; a superseded probe returns Cancelled and its result
// is discarded.
func (c *Connection) Probe(ctx context.Context) (ProbeState, error) {
	pctx, cancel := context.WithCancel(ctx)
	defer cancel()

	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
	}
	c.seq++
	seq := c.seq
	c.cancel = cancel
	c.mu.Unlock()
	c.setState(seq, ProbeConnecting)

	addr := c.settings.Address()
	ok, err := c.service.Probe(pctx, addr)

	c.mu.Lock()
	if c.seq != seq {
		c.mu.Unlock()
		return ProbeUnknown, apperrors.Cancelled(nil)
	}
	c.cancel = nil
	c.mu.Unlock()

	next := ProbeFailed
	switch {
	case err != nil && apperrors.IsCancelled(err):
		c.setState(seq, ProbeUnknown)
		return ProbeUnknown, err
	case err != nil:
		logger.Warn("Probe failed", "address", addr.BaseURL(), "error", err)
	case ok:
		next = ProbeConnected
	}
	c.setState(seq, next)
	logger.Debug("Probe finished", "address", addr.BaseURL(), "state", next)
	return next, nil
}

// Cancel aborts an in-flight probe and forgets the last result.
func (c *Connection) Cancel() {
	c.mu.Lock()
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.seq++
	seq := c.seq
	c.mu.Unlock()
	c.setState(seq, ProbeUnknown)
}

// Patch changes one address field. Any probe is cancelled since its
// answer would describe the old address.
func (c *Connection) Patch(key, value string) (settings.Address, error) {
	addr, err := c.settings.Patch(key, value)
	if err != nil {
		return settings.Address{}, err
	}
	c.Cancel()
	logger.Info("Address updated", "address", addr.BaseURL())
	return addr, nil
}

func (c *Connection) setState(seq uint64, s ProbeState) {
	c.mu.Lock()
	if c.seq != seq || c.state == s {
		c.mu.Unlock()
		return
	}
	c.state = s
	listeners := make([]func(ProbeState), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(s)
	}
}
