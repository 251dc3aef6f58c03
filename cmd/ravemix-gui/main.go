package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/audio"
	"github.com/oukeidos/ravemix/internal/cleanup"
	"github.com/oukeidos/ravemix/internal/logger"
	"github.com/oukeidos/ravemix/internal/player"
	"github.com/oukeidos/ravemix/internal/recorder"
	"github.com/oukeidos/ravemix/internal/workflow"
)

// recordExt is what the desktop capture backend writes.
const recordExt = ".wav"

const (
	tabHome   = "Home"
	tabRecord = "Record"
	tabSend   = "Send"
)

type ravemixApp struct {
	window fyne.Window
	core   *workflow.App
	ctx    context.Context
	cancel context.CancelFunc

	tabs      *container.AppTabs
	activeTab string

	home   *homeTab
	record *recordTab
	send   *sendTab

	panicNoticeOnce sync.Once
}

// unavailable stands in for the audio backends when no device context
// could be opened.
type unavailable struct{ cause error }

func (u unavailable) RequestPermission(context.Context) error {
	return apperrors.PermissionDenied(u.cause)
}

func (u unavailable) Start(context.Context, string) (recorder.Capture, error) {
	return nil, apperrors.PermissionDenied(u.cause)
}

func (u unavailable) Load(context.Context, string) (player.Sound, error) {
	return nil, apperrors.Invalid("Audio playback is not available on this device.")
}

func openCore(ctx context.Context, fa fyne.App) (*workflow.App, error) {
	root := fa.Storage().RootURI()
	if root == nil || root.Path() == "" {
		return nil, errors.New("app storage is not available")
	}
	paths := workflow.Paths{Root: root.Path()}

	if w, err := logger.RotatingFile(paths.Log()); err == nil {
		cleanup.Register("log-file", w.Close)
		logger.Init(logger.LevelInfo, w)
	} else {
		logger.Warn("File logging disabled", "error", err)
	}

	deps := workflow.Deps{Prefs: fa.Preferences(), RecordExt: recordExt}
	if actx, err := audio.OpenContext(); err == nil {
		cleanup.Register("audio-context", actx.Close)
		deps.Capture = audio.NewMicBackend(actx, audio.DefaultSampleRate, audio.DefaultChannels)
		deps.Loader = audio.NewWavLoader(actx)
	} else {
		logger.Warn("Audio devices unavailable", "error", err)
		deps.Capture = unavailable{cause: err}
		deps.Loader = unavailable{cause: err}
	}

	core, err := workflow.NewApp(ctx, paths, deps)
	if err != nil {
		return nil, err
	}
	cleanup.Register("app", core.Close)
	return core, nil
}

func newRavemixApp(ctx context.Context, cancel context.CancelFunc, w fyne.Window, core *workflow.App) *ravemixApp {
	a := &ravemixApp{window: w, core: core, ctx: ctx, cancel: cancel}
	a.home = a.buildHome()
	a.record = a.buildRecord()
	a.send = a.buildSend()

	a.tabs = container.NewAppTabs(
		container.NewTabItemWithIcon(tabHome, theme.HomeIcon(), a.home.content),
		container.NewTabItemWithIcon(tabRecord, theme.MediaRecordIcon(), a.record.content),
		container.NewTabItemWithIcon(tabSend, theme.UploadIcon(), a.send.content),
	)
	a.tabs.SetTabLocation(container.TabLocationBottom)
	a.tabs.OnSelected = func(item *container.TabItem) {
		a.switchTab(item.Text)
	}
	w.SetContent(a.tabs)

	a.safeGo("naming.serve", a.serveNames)
	a.switchTab(tabHome)
	return a
}

// switchTab runs the leave/enter hooks of each screen.
func (a *ravemixApp) switchTab(name string) {
	prev := a.activeTab
	a.activeTab = name
	if prev == tabRecord && name != tabRecord {
		a.core.Library.ForceStop()
	}
	if prev != name {
		a.core.Player.Reset()
	}
	switch name {
	case tabHome:
		a.home.enter()
	case tabRecord:
		a.record.enter()
	case tabSend:
		a.send.enter()
	}
}

func (a *ravemixApp) showError(err error) {
	msg := userMessage(err)
	if msg == "" {
		return
	}
	a.safeDo("ui.error", func() {
		dialog.ShowError(errors.New(msg), a.window)
	})
}

func (a *ravemixApp) shutdown() {
	a.cancel()
	if err := cleanup.RunAll(); err != nil {
		logger.Warn("Shutdown finished with errors", "error", err)
	}
}

func main() {
	logger.Init(logger.LevelInfo, nil)
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Unrecovered GUI panic", "scope", "main", "panic", fmt.Sprint(r))
			os.Exit(1)
		}
	}()

	fa := app.NewWithID("com.ravemix.app")
	fa.SetIcon(theme.MediaRecordIcon())

	w := fa.NewWindow("ravemix")
	w.SetMaster()
	w.Resize(fyne.NewSize(420, 640))
	w.CenterOnScreen()

	ctx, cancel := context.WithCancel(context.Background())
	core, err := openCore(ctx, fa)
	if err != nil {
		logger.Error("Startup failed", "error", err)
		w.SetContent(widget.NewLabel("ravemix could not start: " + apperrors.PublicMessage(err)))
		w.SetOnClosed(func() {
			cancel()
			_ = cleanup.RunAll()
		})
		w.ShowAndRun()
		return
	}

	ra := newRavemixApp(ctx, cancel, w, core)
	w.SetCloseIntercept(func() {
		ra.shutdown()
		w.SetCloseIntercept(nil)
		w.Close()
	})
	w.ShowAndRun()
}
