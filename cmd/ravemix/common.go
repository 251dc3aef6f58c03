package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/audio"
	"github.com/oukeidos/ravemix/internal/cleanup"
	"github.com/oukeidos/ravemix/internal/files"
	"github.com/oukeidos/ravemix/internal/logger"
	"github.com/oukeidos/ravemix/internal/player"
	"github.com/oukeidos/ravemix/internal/prompt"
	"github.com/oukeidos/ravemix/internal/recorder"
	"github.com/oukeidos/ravemix/internal/settings"
	"github.com/oukeidos/ravemix/internal/workflow"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// recordExt is what the desktop capture backend writes.
const recordExt = ".wav"

var (
	isTerminal             = term.IsTerminal
	stdin        io.Reader = os.Stdin
	newConfirmer           = prompt.DefaultConfirmer
	newNamer               = prompt.DefaultNamer
	openDevices            = openAudioDevices
)

type globalOptions struct {
	dataDir string
	debug   bool
	logFile string
}

type devices struct {
	capture recorder.Backend
	loader  player.Loader
}

func openAudioDevices() (devices, error) {
	actx, err := audio.OpenContext()
	if err != nil {
		return devices{}, err
	}
	cleanup.Register("audio-context", actx.Close)
	return devices{
		capture: audio.NewMicBackend(actx, audio.DefaultSampleRate, audio.DefaultChannels),
		loader:  audio.NewWavLoader(actx),
	}, nil
}

// noDevices stands in for the audio backends on commands that never touch
// them.
type noDevices struct{}

func (noDevices) RequestPermission(context.Context) error {
	return apperrors.PermissionDenied(errors.New("audio devices are not open"))
}

func (noDevices) Start(context.Context, string) (recorder.Capture, error) {
	return nil, apperrors.PermissionDenied(errors.New("audio devices are not open"))
}

func (noDevices) Load(context.Context, string) (player.Sound, error) {
	return nil, apperrors.Invalid("Audio playback is not available.")
}

func setupLogging(opts *globalOptions) error {
	logLevel := logger.LevelInfo
	if opts.debug {
		logLevel = logger.LevelDebug
	}
	var logFileW io.Writer
	if opts.logFile != "" {
		if err := files.RejectSymlinkPath(opts.logFile); err != nil {
			return err
		}
		w, err := logger.RotatingFile(opts.logFile)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		cleanup.Register("log-file", w.Close)
		logFileW = w
	}
	logger.Init(logLevel, logFileW)
	return nil
}

func resolvePaths(opts *globalOptions) (workflow.Paths, error) {
	if strings.TrimSpace(opts.dataDir) != "" {
		abs, err := filepath.Abs(opts.dataDir)
		if err != nil {
			return workflow.Paths{}, fmt.Errorf("invalid data directory: %w", err)
		}
		return workflow.Paths{Root: abs}, nil
	}
	return workflow.DefaultPaths()
}

func openApp(ctx context.Context, opts *globalOptions, withDevices bool) (*workflow.App, error) {
	if err := setupLogging(opts); err != nil {
		return nil, err
	}
	paths, err := resolvePaths(opts)
	if err != nil {
		return nil, err
	}
	prefs, err := settings.OpenFilePreferences(paths.Settings())
	if err != nil {
		return nil, err
	}

	deps := workflow.Deps{Prefs: prefs, RecordExt: recordExt, Capture: noDevices{}, Loader: noDevices{}}
	if withDevices {
		d, err := openDevices()
		if err != nil {
			return nil, fmt.Errorf("failed to open audio devices: %w", err)
		}
		deps.Capture, deps.Loader = d.capture, d.loader
	}

	app, err := workflow.NewApp(ctx, paths, deps)
	if err != nil {
		return nil, err
	}
	cleanup.Register("app", app.Close)
	logger.Debug("Data directory", "path", paths.Root)
	return app, nil
}

// withApp builds the app for one command run and reports fn's outcome.
func withApp(cmd *cobra.Command, opts *globalOptions, withDevices bool, fn func(ctx context.Context, app *workflow.App) error) error {
	ctx, stop := signalContext()
	defer stop()
	app, err := openApp(ctx, opts, withDevices)
	if err != nil {
		return err
	}
	return reportError(cmd, fn(ctx, app))
}

func signalContext() (context.Context, func()) {
	ctx, cancel := context.WithCancel(context.Background())
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
			logger.Warn("Cancellation requested")
			cancel()
		case <-ctx.Done():
		}
	}()
	stop := func() {
		signal.Stop(sigCh)
		cancel()
	}
	return ctx, stop
}

func stdinIsTerminal() bool {
	return isTerminal(int(os.Stdin.Fd()))
}

// waitForEnter closes the returned channel once a newline or EOF arrives on
// stdin. It reads a byte at a time so later prompts see the rest.
func waitForEnter() <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		buf := make([]byte, 1)
		for {
			n, err := stdin.Read(buf)
			if n == 1 && buf[0] == '\n' {
				return
			}
			if err != nil {
				return
			}
		}
	}()
	return done
}

// waitForPlayback blocks until the player reports the end of the clip
// started by start.
func waitForPlayback(ctx context.Context, app *workflow.App, start func(context.Context) error) error {
	finished := make(chan struct{})
	var once sync.Once
	unsubscribe := app.Player.Subscribe(func(p float64) {
		if p >= 1 {
			once.Do(func() { close(finished) })
		}
	})
	defer unsubscribe()

	if err := start(ctx); err != nil {
		return err
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		app.Player.Reset()
		return apperrors.Cancelled(ctx.Err())
	}
}
