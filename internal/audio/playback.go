package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gen2brain/malgo"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/player"
)

// WavLoader opens 16-bit PCM WAV files for playback on the default output.
type WavLoader struct {
	ctx *Context
}

var _ player.Loader = (*WavLoader)(nil)

func NewWavLoader(ctx *Context) *WavLoader {
	return &WavLoader{ctx: ctx}
}

func (l *WavLoader) Load(ctx context.Context, uri string) (player.Sound, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Cancelled(err)
	}
	f, err := os.Open(uri)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, apperrors.NotFound(err)
		}
		return nil, err
	}
	defer f.Close()
	c, err := decodeWAV(f)
	if err != nil {
		return nil, apperrors.New(apperrors.KindInvalid, "This audio format cannot be played.", err)
	}
	return &wavSound{audio: l.ctx, clip: c}, nil
}

// wavSound plays an in-memory clip. The cursor is the byte offset the
// device callback has consumed.
type wavSound struct {
	audio  *Context
	clip   *clip
	cursor atomic.Int64

	mu  sync.Mutex
	dev *malgo.Device
}

func (s *wavSound) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dev != nil {
		return nil
	}
	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.Format = malgo.FormatS16
	cfg.Playback.Channels = uint32(s.clip.channels)
	cfg.SampleRate = uint32(s.clip.sampleRate)

	dev, err := s.audio.initDevice(cfg, malgo.DeviceCallbacks{Data: s.fill})
	if err != nil {
		return fmt.Errorf("init playback device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		return fmt.Errorf("start playback device: %w", err)
	}
	s.dev = dev
	return nil
}

// fill copies the next slice of PCM into out and pads with silence past the
// end.
func (s *wavSound) fill(out, _ []byte, _ uint32) {
	pos := s.cursor.Load()
	n := copy(out, s.clip.pcm[min(pos, int64(len(s.clip.pcm))):])
	for i := n; i < len(out); i++ {
		out[i] = 0
	}
	s.cursor.Add(int64(n))
}

func (s *wavSound) Position() time.Duration {
	frameBytes := int64(s.clip.channels * bytesPerSample)
	if frameBytes <= 0 {
		return 0
	}
	return framesToDuration(int(s.cursor.Load()/frameBytes), s.clip.sampleRate)
}

func (s *wavSound) Duration() time.Duration { return s.clip.duration() }

func (s *wavSound) Close() error {
	s.mu.Lock()
	dev := s.dev
	s.dev = nil
	s.mu.Unlock()
	if dev == nil {
		return nil
	}
	err := dev.Stop()
	dev.Uninit()
	return err
}
