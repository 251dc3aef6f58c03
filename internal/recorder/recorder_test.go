package recorder

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/catalog"
)

type fakeCapture struct {
	path    string
	stopErr error
	stopped bool
}

func (f *fakeCapture) Stop() error {
	f.stopped = true
	return f.stopErr
}

type fakeBackend struct {
	permErr  error
	startErr error
	stopErr  error
	last     *fakeCapture
}

func (b *fakeBackend) RequestPermission(context.Context) error { return b.permErr }

func (b *fakeBackend) Start(_ context.Context, path string) (Capture, error) {
	if b.startErr != nil {
		return nil, b.startErr
	}
	if err := os.WriteFile(path, []byte("RIFF"), 0600); err != nil {
		return nil, err
	}
	b.last = &fakeCapture{path: path, stopErr: b.stopErr}
	return b.last, nil
}

type statusLog struct {
	mu  sync.Mutex
	all []Status
}

func (l *statusLog) add(s Status) {
	l.mu.Lock()
	l.all = append(l.all, s)
	l.mu.Unlock()
}

func (l *statusLog) snapshot() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Status(nil), l.all...)
}

func newController(t *testing.T, b Backend) (*Controller, string) {
	t.Helper()
	dir := filepath.Join(t.TempDir(), "tmp")
	return New(Config{Backend: b, TempDir: dir, Ext: ".wav", Tick: 5 * time.Millisecond}), dir
}

func TestStartStop(t *testing.T) {
	b := &fakeBackend{}
	c, dir := newController(t, b)
	log := &statusLog{}
	c.Subscribe(log.add)

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if c.Status().State != Recording {
		t.Fatalf("expected Recording")
	}
	deadline := time.Now().Add(2 * time.Second)
	for c.Status().Elapsed < 2 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if c.Status().Elapsed < 2 {
		t.Fatalf("expected the tick to advance elapsed time")
	}

	entry, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if !entry.Unsaved() || entry.Origin != catalog.OriginRecorded {
		t.Fatalf("expected unsaved recorded entry, got %+v", entry)
	}
	if filepath.Dir(entry.URI) != dir || !strings.HasPrefix(filepath.Base(entry.URI), "capture-") {
		t.Fatalf("unexpected capture path %s", entry.URI)
	}
	if !b.last.stopped {
		t.Fatalf("expected capture to be stopped")
	}

	st := c.Status()
	if st.State != Idle || st.Elapsed != 0 {
		t.Fatalf("expected idle status, got %+v", st)
	}
	elapsedAtStop := len(log.snapshot())
	time.Sleep(20 * time.Millisecond)
	if len(log.snapshot()) != elapsedAtStop {
		t.Fatalf("tick must not publish after stop")
	}

	statuses := log.snapshot()
	if !statuses[0].Indeterminate {
		t.Fatalf("expected indeterminate status first, got %+v", statuses[0])
	}
}

func TestStart_PermissionDenied(t *testing.T) {
	c, dir := newController(t, &fakeBackend{permErr: errors.New("no device")})
	err := c.Start(context.Background())
	if !apperrors.Is(err, apperrors.KindPermissionDenied) {
		t.Fatalf("expected PermissionDenied, got %v", err)
	}
	if c.Status().State != Idle {
		t.Fatalf("expected Idle after failure")
	}
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Fatalf("no capture area should be touched, got %v", err)
	}
}

func TestStart_BackendFailure(t *testing.T) {
	c, dir := newController(t, &fakeBackend{startErr: errors.New("device busy")})
	if err := c.Start(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
	st := c.Status()
	if st.State != Idle || st.Indeterminate {
		t.Fatalf("expected plain Idle after failure, got %+v", st)
	}
	left, _ := os.ReadDir(dir)
	if len(left) != 0 {
		t.Fatalf("expected no leftover capture files, found %d", len(left))
	}
}

func TestStart_Twice(t *testing.T) {
	c, _ := newController(t, &fakeBackend{})
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer c.ForceStop()
	if err := c.Start(context.Background()); !apperrors.Is(err, apperrors.KindInvalid) {
		t.Fatalf("expected Invalid for second start, got %v", err)
	}
}

func TestStop_WhenIdle(t *testing.T) {
	c, _ := newController(t, &fakeBackend{})
	if _, err := c.Stop(context.Background()); !apperrors.Is(err, apperrors.KindInvalid) {
		t.Fatalf("expected Invalid, got %v", err)
	}
}

func TestStop_CaptureFailure(t *testing.T) {
	b := &fakeBackend{stopErr: errors.New("finalise failed")}
	c, _ := newController(t, b)
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if _, err := c.Stop(context.Background()); err == nil {
		t.Fatalf("expected stop error")
	}
	if c.Status().State != Idle {
		t.Fatalf("expected Idle after failed stop")
	}
	if _, err := os.Stat(b.last.path); !os.IsNotExist(err) {
		t.Fatalf("broken capture must be removed, got %v", err)
	}
}

func TestForceStop(t *testing.T) {
	b := &fakeBackend{}
	c, _ := newController(t, b)
	c.ForceStop()

	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	c.ForceStop()
	if c.Status().State != Idle {
		t.Fatalf("expected Idle")
	}
	if _, err := os.Stat(b.last.path); !os.IsNotExist(err) {
		t.Fatalf("expected discarded capture to be removed, got %v", err)
	}
}

// gatedBackend holds RequestPermission or Start open until gate is closed,
// like a permission dialog or a slow device.
type gatedBackend struct {
	fakeBackend
	gatePermission bool
	once           sync.Once
	entered        chan struct{}
	gate           chan struct{}
}

func newGatedBackend(gatePermission bool) *gatedBackend {
	return &gatedBackend{gatePermission: gatePermission, entered: make(chan struct{}), gate: make(chan struct{})}
}

func (b *gatedBackend) RequestPermission(ctx context.Context) error {
	if b.gatePermission {
		b.once.Do(func() { close(b.entered) })
		<-b.gate
	}
	return b.fakeBackend.RequestPermission(ctx)
}

func (b *gatedBackend) Start(ctx context.Context, path string) (Capture, error) {
	if !b.gatePermission {
		b.once.Do(func() { close(b.entered) })
		<-b.gate
	}
	return b.fakeBackend.Start(ctx, path)
}

func forceStopDuringStart(t *testing.T, b *gatedBackend) (*Controller, string) {
	t.Helper()
	c, dir := newController(t, b)
	errc := make(chan error, 1)
	go func() { errc <- c.Start(context.Background()) }()

	<-b.entered
	c.ForceStop()
	close(b.gate)

	if err := <-errc; !apperrors.Is(err, apperrors.KindCancelled) {
		t.Fatalf("expected Cancelled from an aborted start, got %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if st := c.Status(); st.State != Idle || st.Elapsed != 0 || st.Indeterminate {
		t.Fatalf("expected Idle after abort, got %+v", st)
	}
	return c, dir
}

func TestForceStop_WhileAwaitingPermission(t *testing.T) {
	b := newGatedBackend(true)
	c, _ := forceStopDuringStart(t, b)
	if b.last != nil {
		t.Fatalf("capture must not be opened after an abort")
	}
	if err := c.Start(context.Background()); err != nil {
		t.Fatalf("expected a fresh Start to work after abort, got %v", err)
	}
	c.ForceStop()
}

func TestForceStop_WhileOpeningDevice(t *testing.T) {
	b := newGatedBackend(false)
	_, dir := forceStopDuringStart(t, b)
	if b.last == nil || !b.last.stopped {
		t.Fatalf("expected the late capture to be stopped")
	}
	leftovers, _ := os.ReadDir(dir)
	if len(leftovers) != 0 {
		t.Fatalf("expected no capture file left behind, got %d", len(leftovers))
	}
}
