package workflow

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/oukeidos/ravemix/internal/assets"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/logger"
	"github.com/oukeidos/ravemix/internal/naming"
	"github.com/oukeidos/ravemix/internal/player"
	"github.com/oukeidos/ravemix/internal/recorder"
	"github.com/oukeidos/ravemix/internal/remote"
	"github.com/oukeidos/ravemix/internal/selection"
	"github.com/oukeidos/ravemix/internal/settings"
)

// DataDirName is the default data directory under the user's home.
const DataDirName = ".ravemix"

// Paths lays out the local data directory.
type Paths struct {
	Root string
}

// DefaultPaths returns ~/.ravemix.
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, fmt.Errorf("failed to resolve home directory: %w", err)
	}
	return Paths{Root: filepath.Join(home, DataDirName)}, nil
}

func (p Paths) Recordings() string { return filepath.Join(p.Root, "recordings") }
func (p Paths) Imports() string    { return filepath.Join(p.Root, "imports") }
func (p Paths) Defaults() string   { return filepath.Join(p.Root, "defaults") }
func (p Paths) Downloads() string  { return filepath.Join(p.Root, "downloads") }
func (p Paths) Temp() string       { return filepath.Join(p.Root, "tmp") }
func (p Paths) Settings() string   { return filepath.Join(p.Root, "settings.yaml") }
func (p Paths) Log() string        { return filepath.Join(p.Root, "logs", "ravemix.log") }

// Deps are the platform pieces a front end supplies.
type Deps struct {
	Prefs    settings.Preferences
	Capture  recorder.Backend
	Loader   player.Loader
	HTTP     *http.Client
	Service  Service
	// RecordExt is the container the capture backend writes.
	RecordExt string
}

// App wires every component around one selection.
type App struct {
	Paths      Paths
	Settings   *settings.Store
	Selection  *selection.Store
	Names      *naming.Broker
	Player     *player.Controller
	Connection *Connection
	Library    *Library
	Sender     *Sender
}

// NewApp installs the bundled clips, restores the last selection and scans
// the catalog.
func NewApp(ctx context.Context, paths Paths, deps Deps) (*App, error) {
	if err := os.MkdirAll(paths.Root, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	defaults, err := assets.Install(paths.Defaults())
	if err != nil {
		return nil, fmt.Errorf("failed to install default audio: %w", err)
	}

	store := settings.NewStore(deps.Prefs)
	last, ok := store.LastSelection()
	sel := selection.NewStore(last, ok, store)

	m := catalog.NewManager(catalog.Config{
		RecordDir: paths.Recordings(),
		ImportDir: paths.Imports(),
		TempDir:   paths.Temp(),
		Defaults:  defaults,
		RecordExt: deps.RecordExt,
	})
	rec := recorder.New(recorder.Config{Backend: deps.Capture, TempDir: paths.Temp(), Ext: deps.RecordExt})
	p := player.New(deps.Loader, 0)
	names := naming.NewBroker()

	service := deps.Service
	if service == nil {
		service = remote.NewClient(deps.HTTP, paths.Downloads())
	}

	app := &App{
		Paths:      paths,
		Settings:   store,
		Selection:  sel,
		Names:      names,
		Player:     p,
		Connection: NewConnection(store, service),
		Library:    NewLibrary(m, rec, p, sel, names),
		Sender:     NewSender(service, store, sel, p),
	}
	if _, err := app.Library.Refresh(ctx); err != nil {
		return nil, err
	}
	if cur, ok := sel.Get(); ok {
		logger.Debug("Selection restored", "name", cur.DisplayName(), "origin", cur.Origin)
	}
	return app, nil
}

// Close stops capture and playback.
func (a *App) Close() error {
	a.Library.ForceStop()
	a.Connection.Cancel()
	return a.Player.Close()
}
