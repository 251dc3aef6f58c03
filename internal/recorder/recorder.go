// Package recorder drives the Idle/Recording state machine around a
// capture backend.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/logger"
)

// Backend owns the capture device.
type Backend interface {
	// RequestPermission fails when the microphone cannot be used.
	RequestPermission(ctx context.Context) error
	// Start begins writing captured audio to path.
	Start(ctx context.Context, path string) (Capture, error)
}

// Capture is a running capture. Stop finalises the file and releases the
// device.
type Capture interface {
	Stop() error
}

type State int

const (
	Idle State = iota
	Recording
)

func (s State) String() string {
	if s == Recording {
		return "recording"
	}
	return "idle"
}

// Status is a snapshot published to subscribers.
type Status struct {
	State State
	// Elapsed counts whole seconds since capture started.
	Elapsed int
	// Indeterminate is set while the device is being opened.
	Indeterminate bool
	StartedAt     time.Time
}

// TickInterval is how often Elapsed advances.
const TickInterval = time.Second

type Config struct {
	Backend Backend
	// TempDir receives unsaved captures.
	TempDir string
	// Ext is the capture file extension, including the dot.
	Ext string
	// Tick overrides TickInterval.
	Tick time.Duration
}

type Controller struct {
	backend Backend
	tempDir string
	ext     string
	tick    time.Duration

	mu        sync.Mutex
	status    Status
	capture   Capture
	path      string
	stopTick  chan struct{}
	tickDone  chan struct{}
	starting  bool
	// aborted is set by Stop or ForceStop while Start is still opening the
	// device; start discards whatever it opened.
	aborted     bool
	cancelStart context.CancelFunc
	listeners map[int]func(Status)
	nextID    int
}

func New(cfg Config) *Controller {
	tick := cfg.Tick
	if tick <= 0 {
		tick = TickInterval
	}
	ext := cfg.Ext
	if ext == "" {
		ext = ".wav"
	}
	return &Controller{
		backend:   cfg.Backend,
		tempDir:   cfg.TempDir,
		ext:       ext,
		tick:      tick,
		listeners: make(map[int]func(Status)),
	}
}

func (c *Controller) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// Subscribe registers fn for status changes and returns an unsubscribe func.
func (c *Controller) Subscribe(fn func(Status)) func() {
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

// Start asks for permission, opens the device and begins the elapsed tick.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.status.State == Recording || c.starting {
		c.mu.Unlock()
		return apperrors.Invalid("A recording is already in progress.")
	}
	startCtx, cancel := context.WithCancel(ctx)
	c.starting = true
	c.aborted = false
	c.cancelStart = cancel
	c.mu.Unlock()

	err := c.start(startCtx)
	cancel()

	c.mu.Lock()
	c.starting = false
	c.cancelStart = nil
	c.mu.Unlock()
	if err != nil {
		c.publish(Status{State: Idle})
	}
	return err
}

func (c *Controller) start(ctx context.Context) error {
	if err := c.backend.RequestPermission(ctx); err != nil {
		if apperrors.IsCancelled(err) || c.wasAborted() {
			return apperrors.Cancelled(err)
		}
		if _, ok := apperrors.KindOf(err); ok {
			return err
		}
		return apperrors.PermissionDenied(err)
	}
	if c.wasAborted() {
		return apperrors.Cancelled(context.Canceled)
	}
	c.publish(Status{State: Idle, Indeterminate: true})

	if err := os.MkdirAll(c.tempDir, 0700); err != nil {
		return fmt.Errorf("failed to create capture directory: %w", err)
	}
	path := filepath.Join(c.tempDir, "capture-"+uuid.NewString()+c.ext)
	capture, err := c.backend.Start(ctx, path)
	if err != nil {
		os.Remove(path)
		if c.wasAborted() {
			return apperrors.Cancelled(err)
		}
		return fmt.Errorf("failed to start capture: %w", err)
	}

	stop := make(chan struct{})
	done := make(chan struct{})
	now := time.Now()

	c.mu.Lock()
	if c.aborted {
		c.mu.Unlock()
		if err := capture.Stop(); err != nil {
			logger.Warn("Capture stop failed during discard", "error", err)
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			logger.Warn("Failed to remove discarded capture", "path", path, "error", err)
		}
		logger.Info("Recording discarded before it started")
		return apperrors.Cancelled(context.Canceled)
	}
	c.capture = capture
	c.path = path
	c.stopTick = stop
	c.tickDone = done
	c.status = Status{State: Recording, StartedAt: now}
	c.starting = false
	c.cancelStart = nil
	st := c.status
	listeners := c.listenersLocked()
	c.mu.Unlock()

	go c.runTick(stop, done)
	for _, fn := range listeners {
		fn(st)
	}
	logger.Info("Recording started", "path", path)
	return nil
}

func (c *Controller) runTick(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	ticker := time.NewTicker(c.tick)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			c.mu.Lock()
			if c.status.State != Recording {
				c.mu.Unlock()
				return
			}
			st := c.status
			st.Elapsed++
			c.mu.Unlock()
			c.publish(st)
		}
	}
}

func (c *Controller) wasAborted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aborted
}

// halt stops the tick and the capture and returns the capture path. While
// Start is still opening the device it marks the start aborted instead.
func (c *Controller) halt() (string, error) {
	c.mu.Lock()
	if c.starting {
		c.aborted = true
		cancel := c.cancelStart
		c.mu.Unlock()
		if cancel != nil {
			cancel()
		}
		return "", apperrors.Cancelled(context.Canceled)
	}
	if c.status.State != Recording {
		c.mu.Unlock()
		return "", apperrors.Invalid("No recording in progress.")
	}
	capture, path := c.capture, c.path
	stop, done := c.stopTick, c.tickDone
	c.capture, c.path, c.stopTick, c.tickDone = nil, "", nil, nil
	c.status = Status{State: Idle}
	c.mu.Unlock()

	close(stop)
	<-done

	err := capture.Stop()
	c.publish(Status{State: Idle})
	return path, err
}

// Stop finishes the recording and returns it as an unsaved entry.
func (c *Controller) Stop(ctx context.Context) (catalog.Entry, error) {
	path, err := c.halt()
	if err != nil {
		if path != "" {
			os.Remove(path)
			return catalog.Entry{}, fmt.Errorf("failed to stop capture: %w", err)
		}
		return catalog.Entry{}, err
	}
	if _, err := os.Stat(path); err != nil {
		return catalog.Entry{}, fmt.Errorf("capture file missing: %w", err)
	}
	logger.Info("Recording stopped", "path", path)
	return catalog.Entry{URI: path, Origin: catalog.OriginRecorded}, nil
}

// ForceStop discards the recording in progress. It is a no-op when idle.
func (c *Controller) ForceStop() {
	path, err := c.halt()
	if path == "" {
		return
	}
	if err != nil {
		logger.Warn("Capture stop failed during discard", "error", err)
	}
	if rmErr := os.Remove(path); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
		logger.Warn("Failed to remove discarded capture", "path", path, "error", rmErr)
	}
	logger.Info("Recording discarded")
}

func (c *Controller) listenersLocked() []func(Status) {
	listeners := make([]func(Status), 0, len(c.listeners))
	for _, fn := range c.listeners {
		listeners = append(listeners, fn)
	}
	return listeners
}

func (c *Controller) publish(st Status) {
	c.mu.Lock()
	c.status = st
	listeners := c.listenersLocked()
	c.mu.Unlock()
	for _, fn := range listeners {
		fn(st)
	}
}
