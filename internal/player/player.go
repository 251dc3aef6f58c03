// Package player plays one audio entry at a time and reports progress.
package player

import (
	"context"
	"sync"
	"time"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/logger"
)

// Sound is a loaded clip.
type Sound interface {
	Play() error
	Position() time.Duration
	Duration() time.Duration
	Close() error
}

// Loader opens the clip at uri.
type Loader interface {
	Load(ctx context.Context, uri string) (Sound, error)
}

// Player is the capability coordinators depend on.
type Player interface {
	Play(ctx context.Context, entry catalog.Entry) error
	Reset()
}

// ProgressInterval is how often progress is published while playing.
const ProgressInterval = 100 * time.Millisecond

type Controller struct {
	loader   Loader
	interval time.Duration

	playMu sync.Mutex

	mu        sync.Mutex
	sound     Sound
	current   catalog.Entry
	progress  float64
	stop      chan struct{}
	done      chan struct{}
	listeners map[int]func(float64)
	nextID    int
}

var _ Player = (*Controller)(nil)

// New returns a controller. interval <= 0 means ProgressInterval.
func New(loader Loader, interval time.Duration) *Controller {
	if interval <= 0 {
		interval = ProgressInterval
	}
	return &Controller{loader: loader, interval: interval, listeners: make(map[int]func(float64))}
}

func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progress
}

// Current returns the loaded entry, if any.
func (c *Controller) Current() (catalog.Entry, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current, c.sound != nil
}

func (c *Controller) Subscribe(fn func(float64)) func() {
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

// Play replaces whatever is loaded with entry and starts it.
func (c *Controller) Play(ctx context.Context, entry catalog.Entry) error {
	if entry.IsZero() {
		return apperrors.Invalid("Nothing to play.")
	}
	c.playMu.Lock()
	defer c.playMu.Unlock()

	c.Reset()

	sound, err := c.loader.Load(ctx, entry.URI)
	if err != nil {
		if apperrors.IsCancelled(err) {
			return apperrors.Cancelled(err)
		}
		return err
	}
	if err := sound.Play(); err != nil {
		sound.Close()
		return err
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	c.mu.Lock()
	c.sound = sound
	c.current = entry
	c.stop, c.done = stop, done
	c.mu.Unlock()

	go c.track(sound, stop, done)
	logger.Debug("Playback started", "uri", entry.URI)
	return nil
}

func (c *Controller) track(sound Sound, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			p, finished := fraction(sound.Position(), sound.Duration())
			c.publish(p)
			if finished {
				return
			}
		}
	}
}

// fraction maps a playback position onto [0,1].
func fraction(pos, dur time.Duration) (float64, bool) {
	if dur <= 0 {
		return 0, false
	}
	if pos >= dur {
		return 1, true
	}
	if pos <= 0 {
		return 0, false
	}
	return float64(pos) / float64(dur), false
}

// Reset stops and unloads the current sound. It is a no-op when nothing is
// loaded.
func (c *Controller) Reset() {
	c.mu.Lock()
	sound, stop, done := c.sound, c.stop, c.done
	c.sound, c.stop, c.done = nil, nil, nil
	c.current = catalog.Entry{}
	c.mu.Unlock()
	if sound == nil {
		return
	}

	close(stop)
	<-done
	if err := sound.Close(); err != nil {
		logger.Warn("Failed to release sound", "error", err)
	}
	c.publish(0)
}

// Close releases the current sound.
func (c *Controller) Close() error {
	c.Reset()
	return nil
}

func (c *Controller) publish(p float64) {
	c.mu.Lock()
	c.progress = p
	listeners := make([]func(float64), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(p)
	}
}
