// Package assets provides the bundled default clips.
package assets

import (
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"github.com/oukeidos/ravemix/internal/audio"
	"github.com/oukeidos/ravemix/internal/catalog"
	"github.com/oukeidos/ravemix/internal/files"
	"github.com/oukeidos/ravemix/internal/logger"
)

// SampleName is the display name of the bundled clip.
const SampleName = "sample"

const (
	sampleFile    = SampleName + ".wav"
	sampleRate    = 22050
	sampleSeconds = 2
	sampleFreqHz  = 220.0
	sampleAmp     = 0.4
	fadeInFrames  = sampleRate / 20
	fadeOutFrames = sampleRate * 3 / 10
)

// Install writes the bundled clips into dir unless they already exist, and
// returns them as default entries.
func Install(dir string) ([]catalog.Entry, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create defaults directory: %w", err)
	}
	path := filepath.Join(dir, sampleFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := writeSample(path); err != nil {
			return nil, err
		}
		logger.Debug("Installed default sample", "path", path)
	} else if err != nil {
		return nil, err
	}
	return []catalog.Entry{{URI: path, Name: SampleName, Origin: catalog.OriginDefault}}, nil
}

func writeSample(path string) error {
	if err := files.RejectSymlinkPath(path); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), files.TempPattern)
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := audio.EncodeWAV(tmp, Tone(), sampleRate, 1); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return files.MoveFile(tmpPath, path)
}

// Tone renders the bundled clip: a plucked-sounding sine with a short fade
// in and a decaying tail.
func Tone() []int {
	n := sampleRate * sampleSeconds
	out := make([]int, n)
	fadeIn, fadeOut := fadeInFrames, fadeOutFrames
	for i := range out {
		t := float64(i) / sampleRate
		env := math.Exp(-1.5 * t)
		if i < fadeIn {
			env *= float64(i) / float64(fadeIn)
		}
		if rem := n - i; rem < fadeOut {
			env *= float64(rem-1) / float64(fadeOut)
		}
		v := math.Sin(2*math.Pi*sampleFreqHz*t) + 0.3*math.Sin(2*math.Pi*2*sampleFreqHz*t)
		out[i] = int(v / 1.3 * sampleAmp * env * math.MaxInt16)
	}
	return out
}
