package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/oukeidos/ravemix/internal/apperrors"
	"github.com/oukeidos/ravemix/internal/files"
	"github.com/oukeidos/ravemix/internal/logger"
	"github.com/oukeidos/ravemix/internal/recorder"
)

// chunkBuffer is how many device callbacks may queue before the writer
// falls behind and chunks are dropped.
const chunkBuffer = 64

// MicBackend records the default microphone into WAV files.
type MicBackend struct {
	ctx        *Context
	sampleRate int
	channels   int
}

var _ recorder.Backend = (*MicBackend)(nil)

func NewMicBackend(ctx *Context, sampleRate, channels int) *MicBackend {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	return &MicBackend{ctx: ctx, sampleRate: sampleRate, channels: channels}
}

// RequestPermission succeeds when at least one capture device is visible.
// Desktop platforms have no runtime prompt; an empty list is how a denied
// or missing microphone shows up.
func (b *MicBackend) RequestPermission(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return apperrors.Cancelled(err)
	}
	devices, err := b.ctx.CaptureDevices()
	if err != nil {
		return apperrors.PermissionDenied(err)
	}
	if len(devices) == 0 {
		return apperrors.PermissionDenied(errors.New("no capture device available"))
	}
	logger.Debug("Capture devices", "devices", devices)
	return nil
}

// Start opens the capture device and streams it into a WAV file at path.
func (b *MicBackend) Start(ctx context.Context, path string) (recorder.Capture, error) {
	if err := ctx.Err(); err != nil {
		return nil, apperrors.Cancelled(err)
	}
	if err := files.RejectSymlinkPath(path); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("create capture file: %w", err)
	}
	w := newWavSink(f, b.sampleRate, b.channels)

	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.Format = malgo.FormatS16
	cfg.Capture.Channels = uint32(b.channels)
	cfg.SampleRate = uint32(b.sampleRate)

	chunks := make(chan []byte, chunkBuffer)
	dropped := new(atomic.Int64)
	callbacks := malgo.DeviceCallbacks{
		Data: func(_, input []byte, _ uint32) {
			chunk := make([]byte, len(input))
			copy(chunk, input)
			select {
			case chunks <- chunk:
			default:
				dropped.Add(1)
			}
		},
	}
	dev, err := b.ctx.initDevice(cfg, callbacks)
	if err != nil {
		w.abort()
		os.Remove(path)
		return nil, fmt.Errorf("init capture device: %w", err)
	}
	if err := dev.Start(); err != nil {
		dev.Uninit()
		w.abort()
		os.Remove(path)
		return nil, fmt.Errorf("start capture device: %w", err)
	}

	c := &micCapture{dev: dev, chunks: chunks, sink: w, done: make(chan error, 1), dropped: dropped}
	go func() { c.done <- w.drain(chunks) }()
	return c, nil
}

type micCapture struct {
	once    sync.Once
	dev     *malgo.Device
	chunks  chan []byte
	sink    *wavSink
	done    chan error
	dropped *atomic.Int64
	err     error
}

// Stop halts the device, flushes queued audio and finalises the header.
func (c *micCapture) Stop() error {
	c.once.Do(func() {
		stopErr := c.dev.Stop()
		c.dev.Uninit()
		// No callbacks run after Uninit, so closing is safe.
		close(c.chunks)
		drainErr := <-c.done
		closeErr := c.sink.close()
		if n := c.dropped.Load(); n > 0 {
			logger.Warn("Capture fell behind; audio was dropped", "chunks", n)
		}
		c.err = errors.Join(stopErr, drainErr, closeErr)
	})
	return c.err
}

// wavSink appends S16LE chunks to a WAV encoder.
type wavSink struct {
	closer   io.Closer
	enc      *wav.Encoder
	format   *goaudio.Format
	scratch  []int
	finished bool
}

func newWavSink(f *os.File, sampleRate, channels int) *wavSink {
	return &wavSink{
		closer: f,
		enc:    wav.NewEncoder(f, sampleRate, BitDepth, channels, wavFormatPCM),
		format: &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
	}
}

func (s *wavSink) write(chunk []byte) error {
	s.scratch = s16ToInts(chunk, s.scratch)
	if len(s.scratch) == 0 {
		return nil
	}
	return s.enc.Write(&goaudio.IntBuffer{Format: s.format, Data: s.scratch, SourceBitDepth: BitDepth})
}

// drain writes chunks until the channel closes. After the first write
// error it keeps draining so the device callback never blocks.
func (s *wavSink) drain(chunks <-chan []byte) error {
	var firstErr error
	for chunk := range chunks {
		if firstErr != nil {
			continue
		}
		if err := s.write(chunk); err != nil {
			firstErr = fmt.Errorf("write capture: %w", err)
		}
	}
	return firstErr
}

func (s *wavSink) close() error {
	if s.finished {
		return nil
	}
	s.finished = true
	encErr := s.enc.Close()
	return errors.Join(encErr, s.closer.Close())
}

func (s *wavSink) abort() {
	s.finished = true
	s.closer.Close()
}
