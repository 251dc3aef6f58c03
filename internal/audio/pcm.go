// Package audio binds the recorder and player to real devices: malgo for
// capture and playback, go-audio/wav for the file format.
package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// Capture format. Everything we record is 16-bit little-endian PCM.
const (
	DefaultSampleRate = 44100
	DefaultChannels   = 1
	BitDepth          = 16
	bytesPerSample    = BitDepth / 8
	wavFormatPCM      = 1
)

// s16ToInts converts interleaved S16LE bytes into samples. A trailing odd
// byte is ignored.
func s16ToInts(b []byte, dst []int) []int {
	n := len(b) / bytesPerSample
	if cap(dst) < n {
		dst = make([]int, n)
	}
	dst = dst[:n]
	for i := 0; i < n; i++ {
		dst[i] = int(int16(binary.LittleEndian.Uint16(b[i*2:])))
	}
	return dst
}

// intsToS16 packs samples into S16LE bytes, clamping to the int16 range.
func intsToS16(samples []int) []byte {
	out := make([]byte, len(samples)*bytesPerSample)
	for i, s := range samples {
		if s > 32767 {
			s = 32767
		} else if s < -32768 {
			s = -32768
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(int16(s)))
	}
	return out
}

// EncodeWAV writes samples as a 16-bit PCM WAV file.
func EncodeWAV(w io.WriteSeeker, samples []int, sampleRate, channels int) error {
	enc := wav.NewEncoder(w, sampleRate, BitDepth, channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{SampleRate: sampleRate, NumChannels: channels},
		Data:           samples,
		SourceBitDepth: BitDepth,
	}
	if err := enc.Write(buf); err != nil {
		enc.Close()
		return fmt.Errorf("encode wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finalise wav: %w", err)
	}
	return nil
}

// clip is a decoded WAV held in memory as S16LE bytes.
type clip struct {
	pcm        []byte
	sampleRate int
	channels   int
}

func (c *clip) frames() int {
	if c.channels <= 0 {
		return 0
	}
	return len(c.pcm) / (c.channels * bytesPerSample)
}

func (c *clip) duration() time.Duration {
	return framesToDuration(c.frames(), c.sampleRate)
}

func framesToDuration(frames, rate int) time.Duration {
	if rate <= 0 {
		return 0
	}
	return time.Duration(frames) * time.Second / time.Duration(rate)
}

var errUnsupported = errors.New("only 16-bit PCM WAV files can be played")

// decodeWAV reads a whole WAV file. Other containers and bit depths are
// rejected.
func decodeWAV(r io.ReadSeeker) (*clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, errUnsupported
	}
	if dec.BitDepth != BitDepth || dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w (got %d-bit, format %d)", errUnsupported, dec.BitDepth, dec.WavAudioFormat)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return &clip{
		pcm:        intsToS16(buf.Data),
		sampleRate: int(dec.SampleRate),
		channels:   int(dec.NumChans),
	}, nil
}
