package assets

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/wav"

	"github.com/oukeidos/ravemix/internal/catalog"
)

func TestInstall(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "defaults")
	entries, err := Install(dir)
	if err != nil {
		t.Fatalf("Install: %v", err)
	}
	want := catalog.Entry{URI: filepath.Join(dir, "sample.wav"), Name: "sample", Origin: catalog.OriginDefault}
	if len(entries) != 1 || entries[0] != want {
		t.Fatalf("unexpected entries %+v", entries)
	}

	f, err := os.Open(want.URI)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		t.Fatalf("expected a valid wav file")
	}
	if dec.SampleRate != sampleRate || dec.NumChans != 1 || dec.BitDepth != 16 {
		t.Fatalf("unexpected format %d Hz x%d %d-bit", dec.SampleRate, dec.NumChans, dec.BitDepth)
	}

	left, _ := os.ReadDir(dir)
	if len(left) != 1 {
		t.Fatalf("expected only the sample in %s, found %d files", dir, len(left))
	}
}

func TestInstall_KeepsExisting(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sample.wav")
	if err := os.WriteFile(path, []byte("custom"), 0600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := Install(dir); err != nil {
		t.Fatalf("Install: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "custom" {
		t.Fatalf("existing sample must not be overwritten")
	}
}

func TestTone(t *testing.T) {
	samples := Tone()
	if len(samples) != sampleRate*sampleSeconds {
		t.Fatalf("unexpected length %d", len(samples))
	}
	if samples[0] != 0 || samples[len(samples)-1] != 0 {
		t.Fatalf("expected silent edges, got %d and %d", samples[0], samples[len(samples)-1])
	}
	peak := 0
	for _, s := range samples {
		if s > math.MaxInt16 || s < math.MinInt16 {
			t.Fatalf("sample %d out of range", s)
		}
		if s > peak {
			peak = s
		}
	}
	if peak < 1000 {
		t.Fatalf("tone is too quiet (peak %d)", peak)
	}
}
