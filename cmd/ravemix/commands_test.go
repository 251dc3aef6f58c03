package main

import (
	"bytes"
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/cleanup"
	"github.com/oukeidos/ravemix/internal/player"
	"github.com/oukeidos/ravemix/internal/prompt"
	"github.com/oukeidos/ravemix/internal/recorder"
)

type lockedBuffer struct {
	mu sync.Mutex
	b  bytes.Buffer
}

func (l *lockedBuffer) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.Write(p)
}

func (l *lockedBuffer) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.b.String()
}

type fakeCapture struct{}

func (fakeCapture) Stop() error { return nil }

type fakeMic struct{}

func (fakeMic) RequestPermission(context.Context) error { return nil }
func (fakeMic) Start(_ context.Context, path string) (recorder.Capture, error) {
	return fakeCapture{}, os.WriteFile(path, []byte("RIFF-capture"), 0600)
}

// endedSound reports itself finished on the first progress tick.
type endedSound struct{}

func (endedSound) Play() error             { return nil }
func (endedSound) Position() time.Duration { return time.Second }
func (endedSound) Duration() time.Duration { return time.Second }
func (endedSound) Close() error            { return nil }

type fakeLoader struct {
	mu     sync.Mutex
	loaded []string
}

func (l *fakeLoader) Load(_ context.Context, uri string) (player.Sound, error) {
	l.mu.Lock()
	l.loaded = append(l.loaded, uri)
	l.mu.Unlock()
	return endedSound{}, nil
}

func (l *fakeLoader) Loaded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.loaded...)
}

func withFakeDevices(t *testing.T) *fakeLoader {
	t.Helper()
	loader := &fakeLoader{}
	prev := openDevices
	openDevices = func() (devices, error) {
		return devices{capture: fakeMic{}, loader: loader}, nil
	}
	t.Cleanup(func() { openDevices = prev })
	return loader
}

func withTerminal(t *testing.T, terminal bool, input string) {
	t.Helper()
	prevIsTerminal, prevStdin := isTerminal, stdin
	isTerminal = func(int) bool { return terminal }
	stdin = strings.NewReader(input)
	t.Cleanup(func() {
		isTerminal = prevIsTerminal
		stdin = prevStdin
	})
}

func runCLI(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	out := &lockedBuffer{}
	cmd.SetOut(out)
	cmd.SetErr(out)
	cmd.SetArgs(append([]string{"--data-dir", dataDir}, args...))
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		t.Fatalf("cleanup: %v", cleanupErr)
	}
	return out.String(), err
}

func mustRun(t *testing.T, dataDir string, args ...string) string {
	t.Helper()
	out, err := runCLI(t, dataDir, args...)
	if err != nil {
		t.Fatalf("%v: %v\n%s", args, err, out)
	}
	return out
}

func writeClip(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte("RIFF-import"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	return path
}

func TestList_SelectsBundledSample(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()

	out := mustRun(t, dir, "list")
	if !strings.Contains(out, "* sample") || !strings.Contains(out, "[default]") {
		t.Fatalf("expected the bundled sample to be listed and selected, got:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "defaults", "sample.wav")); err != nil {
		t.Fatalf("expected bundled sample on disk: %v", err)
	}
}

func TestImportSelectDelete(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()
	src := writeClip(t, "clip.wav")

	out := mustRun(t, dir, "import", src, "--name", "take")
	if !strings.Contains(out, "Imported take") {
		t.Fatalf("unexpected import output:\n%s", out)
	}
	if out := mustRun(t, dir, "list"); !strings.Contains(out, "* take") {
		t.Fatalf("expected import to be selected, got:\n%s", out)
	}

	mustRun(t, dir, "select", "sample")
	if out := mustRun(t, dir, "list"); !strings.Contains(out, "* sample") {
		t.Fatalf("expected sample to be selected, got:\n%s", out)
	}
	mustRun(t, dir, "select", "take", "--origin", "import")

	out = mustRun(t, dir, "delete", "-y")
	if !strings.Contains(out, "Deleted take") || !strings.Contains(out, "Selected sample [default]") {
		t.Fatalf("unexpected delete output:\n%s", out)
	}
	if out := mustRun(t, dir, "list"); strings.Contains(out, "take") {
		t.Fatalf("expected take to be gone, got:\n%s", out)
	}
}

func TestImport_DefaultNameFromFile(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()
	out := mustRun(t, dir, "import", writeClip(t, "drums.mp3"))
	if !strings.Contains(out, "Imported drums") {
		t.Fatalf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "imports", "drums.mp3")); err != nil {
		t.Fatalf("expected imported copy: %v", err)
	}
}

func TestImport_NonAudioSkipped(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()
	out := mustRun(t, dir, "import", writeClip(t, "notes.txt"))
	if !strings.Contains(out, "not an audio file") {
		t.Fatalf("expected skip notice, got:\n%s", out)
	}
	if out := mustRun(t, dir, "list"); strings.Contains(out, "notes") {
		t.Fatalf("non-audio file should not be listed:\n%s", out)
	}
}

func TestSelect_Unknown(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()
	if _, err := runCLI(t, dir, "select", "missing"); err == nil {
		t.Fatalf("expected error for unknown name")
	}
	if _, err := runCLI(t, dir, "select", "sample", "--origin", "somewhere"); err == nil {
		t.Fatalf("expected error for unknown origin")
	}
}

func TestDelete_DefaultForbidden(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()
	_, err := runCLI(t, dir, "delete", "-y")
	if !apperrors.Is(err, apperrors.KindDeleteForbidden) {
		t.Fatalf("expected DeleteForbidden, got %v", err)
	}
}

func TestDelete_Declined(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()
	mustRun(t, dir, "import", writeClip(t, "keep.wav"))

	prev := newConfirmer
	newConfirmer = func() prompt.Confirmer {
		return prompt.Confirmer{In: strings.NewReader("n\n"), Out: io.Discard, IsInteractive: func() bool { return true }}
	}
	defer func() { newConfirmer = prev }()

	out := mustRun(t, dir, "delete")
	if !strings.Contains(out, "Kept.") {
		t.Fatalf("expected decline notice, got:\n%s", out)
	}
	if out := mustRun(t, dir, "list"); !strings.Contains(out, "* keep") {
		t.Fatalf("expected keep to survive, got:\n%s", out)
	}
}

func TestRecord_SaveAs(t *testing.T) {
	withTerminal(t, false, "")
	withFakeDevices(t)
	dir := t.TempDir()

	out := mustRun(t, dir, "record", "--duration", "20ms", "--save-as", "first")
	if !strings.Contains(out, "Saved as first") {
		t.Fatalf("unexpected record output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(dir, "recordings", "first.wav")); err != nil {
		t.Fatalf("expected saved recording: %v", err)
	}
	if out := mustRun(t, dir, "list"); !strings.Contains(out, "* first") || !strings.Contains(out, "[record]") {
		t.Fatalf("expected saved recording to be selected, got:\n%s", out)
	}
}

func TestRecord_RequiresDurationWithoutTerminal(t *testing.T) {
	withTerminal(t, false, "")
	withFakeDevices(t)
	if _, err := runCLI(t, t.TempDir(), "record"); err == nil {
		t.Fatalf("expected error without --duration")
	}
}

func TestRecord_NameTakenKeepsCaptureForLaterSave(t *testing.T) {
	withTerminal(t, false, "")
	withFakeDevices(t)
	dir := t.TempDir()

	_, err := runCLI(t, dir, "record", "--duration", "20ms", "--save-as", "sample")
	if !apperrors.Is(err, apperrors.KindNameTaken) {
		t.Fatalf("expected NameTaken, got %v", err)
	}
	out := mustRun(t, dir, "list")
	if !strings.Contains(out, "* unnamed") {
		t.Fatalf("expected the unsaved capture to stay selected, got:\n%s", out)
	}

	out = mustRun(t, dir, "save", "second")
	if !strings.Contains(out, "Saved as second") {
		t.Fatalf("unexpected save output:\n%s", out)
	}
	entries, err := os.ReadDir(filepath.Join(dir, "tmp"))
	if err != nil {
		t.Fatalf("read tmp: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected capture area to be empty after save, got %d files", len(entries))
	}
}

func TestRecord_InteractivePromptsForName(t *testing.T) {
	withTerminal(t, true, "\n")
	withFakeDevices(t)
	dir := t.TempDir()

	answers := &lockedBuffer{}
	prev := newNamer
	newNamer = func() prompt.Namer {
		return prompt.Namer{In: strings.NewReader("sample\nchorus\n"), Out: answers}
	}
	defer func() { newNamer = prev }()

	out := mustRun(t, dir, "record")
	if !strings.Contains(out, "Saved as chorus") {
		t.Fatalf("unexpected record output:\n%s", out)
	}
	if !strings.Contains(answers.String(), "This name is already taken.") {
		t.Fatalf("expected the taken name to be rejected, got:\n%s", answers.String())
	}
}

func TestSave_NoSelection(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()
	_, err := runCLI(t, dir, "save", "whatever")
	if !apperrors.Is(err, apperrors.KindInvalid) {
		t.Fatalf("expected Invalid when the selection is not a new recording, got %v", err)
	}
	if _, err := runCLI(t, dir, "save"); err == nil {
		t.Fatalf("expected error without a name on a non-terminal")
	}
}

func TestPlay(t *testing.T) {
	withTerminal(t, false, "")
	loader := withFakeDevices(t)
	dir := t.TempDir()

	out := mustRun(t, dir, "play")
	if !strings.Contains(out, "Playing sample") {
		t.Fatalf("unexpected play output:\n%s", out)
	}
	loaded := loader.Loaded()
	if len(loaded) != 1 || filepath.Base(loaded[0]) != "sample.wav" {
		t.Fatalf("expected the sample to be loaded, got %v", loaded)
	}
}

func TestConfig(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()

	out := mustRun(t, dir, "config", "show")
	if !strings.Contains(out, "http://192.168.0.1:8000") {
		t.Fatalf("expected default address, got:\n%s", out)
	}
	mustRun(t, dir, "config", "set", "host", "10.0.0.2")
	mustRun(t, dir, "config", "set", "port", "9000")
	out = mustRun(t, dir, "config", "show")
	if !strings.Contains(out, "http://10.0.0.2:9000") {
		t.Fatalf("expected patched address, got:\n%s", out)
	}

	if _, err := runCLI(t, dir, "config", "set", "port", "0"); err == nil {
		t.Fatalf("expected error for port 0")
	}
	if _, err := runCLI(t, dir, "config", "set", "colour", "red"); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}

type raveServer struct {
	mu       sync.Mutex
	selected []string
	uploads  int
}

func (s *raveServer) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
		}
	})
	mux.HandleFunc("/getmodels", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"models":["percussion.onnx","vintage.onnx"]}`)
	})
	mux.HandleFunc("/selectModel/", func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.selected = append(s.selected, strings.TrimPrefix(r.URL.Path, "/selectModel/"))
		s.mu.Unlock()
	})
	mux.HandleFunc("/upload", func(w http.ResponseWriter, r *http.Request) {
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("upload without file part: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		s.mu.Lock()
		s.uploads++
		s.mu.Unlock()
	})
	mux.HandleFunc("/download", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/wav")
		_, _ = io.WriteString(w, "RIFF-remix")
	})
	return mux
}

func pointAt(t *testing.T, dir string, srv *httptest.Server) {
	t.Helper()
	host, port, err := net.SplitHostPort(srv.Listener.Addr().String())
	if err != nil {
		t.Fatalf("split: %v", err)
	}
	mustRun(t, dir, "config", "set", "host", host)
	mustRun(t, dir, "config", "set", "port", port)
}

func TestProbe(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()
	rs := &raveServer{}
	srv := httptest.NewServer(rs.handler(t))
	pointAt(t, dir, srv)

	if out := mustRun(t, dir, "probe"); !strings.Contains(out, "connected") {
		t.Fatalf("expected connected, got:\n%s", out)
	}
	srv.Close()
	if _, err := runCLI(t, dir, "probe"); err == nil {
		t.Fatalf("expected error once the server is gone")
	}
}

func TestModels(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()
	rs := &raveServer{}
	srv := httptest.NewServer(rs.handler(t))
	defer srv.Close()
	pointAt(t, dir, srv)

	out := mustRun(t, dir, "models")
	if !strings.Contains(out, "* percussion") || !strings.Contains(out, "  vintage") {
		t.Fatalf("unexpected models output:\n%s", out)
	}
	out = mustRun(t, dir, "models", "select", "vintage")
	if !strings.Contains(out, "Active model: vintage") {
		t.Fatalf("unexpected select output:\n%s", out)
	}
	rs.mu.Lock()
	last := rs.selected[len(rs.selected)-1]
	rs.mu.Unlock()
	if last != "vintage.onnx" {
		t.Fatalf("expected vintage.onnx to be activated last, got %q", last)
	}
	if _, err := runCLI(t, dir, "models", "select", "unknown"); !apperrors.Is(err, apperrors.KindInvalid) {
		t.Fatalf("expected Invalid for unknown model, got %v", err)
	}
}

func TestRave_DownloadsAndPlays(t *testing.T) {
	withTerminal(t, false, "")
	loader := withFakeDevices(t)
	dir := t.TempDir()
	rs := &raveServer{}
	srv := httptest.NewServer(rs.handler(t))
	defer srv.Close()
	pointAt(t, dir, srv)

	out := mustRun(t, dir, "rave", "--model", "vintage", "--play")
	remix := filepath.Join(dir, "downloads", "sample_remix.wav")
	if !strings.Contains(out, "Remix saved to "+remix) {
		t.Fatalf("unexpected rave output:\n%s", out)
	}
	data, err := os.ReadFile(remix)
	if err != nil || string(data) != "RIFF-remix" {
		t.Fatalf("expected downloaded remix, got %q %v", data, err)
	}
	loaded := loader.Loaded()
	if len(loaded) != 1 || loaded[0] != remix {
		t.Fatalf("expected the remix to be played, got %v", loaded)
	}
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.uploads != 1 {
		t.Fatalf("expected one upload, got %d", rs.uploads)
	}
}

func TestRave_ServerDown(t *testing.T) {
	withTerminal(t, false, "")
	dir := t.TempDir()
	srv := httptest.NewServer(http.NotFoundHandler())
	pointAt(t, dir, srv)
	srv.Close()

	_, err := runCLI(t, dir, "rave")
	if !apperrors.Is(err, apperrors.KindRemote) {
		t.Fatalf("expected Remote error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "downloads")); !os.IsNotExist(statErr) {
		t.Fatalf("expected no download directory, got %v", statErr)
	}
}

func TestRootHelpAndVersion(t *testing.T) {
	out := mustRun(t, t.TempDir(), "--version")
	if !strings.HasPrefix(out, "ravemix ") {
		t.Fatalf("unexpected version output %q", out)
	}
	if _, err := runCLI(t, t.TempDir(), "bogus"); err == nil {
		t.Fatalf("expected error for unknown command")
	}
}
