// Package otosink is the default real-device output.Sink, wrapping
// ebitengine/oto/v3. Oto's Player pulls PCM via io.Reader; the player
// engine's Write contract pushes and must never block, so this package
// bridges the two with a small internal queue (bridge.go), the same
// pattern the climp example's countingReader/speedReader chain uses to
// sit between a pull-based oto.Player and a differently-shaped producer.
package otosink

import (
	"github.com/ebitengine/oto/v3"

	"github.com/kvalheim/audiocore/internal/pcmfmt"
	"github.com/kvalheim/audiocore/internal/playererr"
)

// bridgeSeconds sizes the internal bridge queue in seconds of audio at the
// opened format, bounding how far Write can run ahead of oto's consumption.
const bridgeSeconds = 1.0

// Sink wraps a single oto.Context/Player pair. Only one Sink may be open
// at a time within a process: oto.NewContext forbids creating more than
// one context.
type Sink struct {
	ctx    *oto.Context
	player *oto.Player
	bridge *bridge
	format pcmfmt.Format
	opts   map[string]string
}

// New returns an unopened oto-backed sink.
func New() *Sink {
	return &Sink{opts: make(map[string]string)}
}

func (s *Sink) Init() error { return nil }
func (s *Sink) Exit() error { return nil }

// Open creates the oto context and player for format. format must be
// 16-bit, 1 or 2 channels — oto's only supported wire shape. The context
// created by the first Open is reused by every later Open, so a later Open
// with a different rate or channel count fails with SAMPLE_FORMAT.
func (s *Sink) Open(format pcmfmt.Format) error {
	if format.BitDepth != 16 || format.Channels < 1 || format.Channels > 2 {
		return playererr.New(playererr.KindSampleFormat, nil)
	}
	if s.ctx != nil && (format.Rate != s.format.Rate || format.Channels != s.format.Channels) {
		return playererr.New(playererr.KindSampleFormat, nil)
	}

	if s.ctx == nil {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   format.Rate,
			ChannelCount: format.Channels,
			Format:       oto.FormatSignedInt16LE,
		})
		if err != nil {
			return playererr.Errno(err)
		}
		<-ready
		s.ctx = ctx
	}

	capacity := int(bridgeSeconds * float64(format.Rate*format.Channels*2))
	s.format = format
	s.bridge = newBridge(capacity)
	s.player = s.ctx.NewPlayer(s.bridge)
	s.player.Play()
	return nil
}

// Close stops and releases the player. The context itself (oto forbids
// more than one per process) is left alive; a subsequent Open reuses it
// via a fresh player over a fresh bridge.
func (s *Sink) Close() error {
	if s.player != nil {
		s.player.Pause()
		err := s.player.Close()
		s.player = nil
		if s.bridge != nil {
			s.bridge.close()
		}
		return err
	}
	return nil
}

// Write pushes buf into the bridge without blocking, returning the number
// of bytes accepted (0 if the bridge is momentarily full).
func (s *Sink) Write(buf []byte) (int, error) {
	if s.bridge == nil {
		return 0, playererr.New(playererr.KindInternal, nil)
	}
	if fb := s.format.BytesPerFrame(); fb > 0 {
		free := s.bridge.bufferSpace()
		free -= free % fb
		if len(buf) > free {
			buf = buf[:free]
		}
	}
	return s.bridge.write(buf), nil
}

func (s *Sink) Pause() error {
	if s.player != nil {
		s.player.Pause()
	}
	return nil
}

func (s *Sink) Unpause() error {
	if s.player != nil {
		s.player.Play()
	}
	return nil
}

// BufferSpace returns the bridge's free byte count, -1 if not open.
func (s *Sink) BufferSpace() int {
	if s.bridge == nil {
		return -1
	}
	return s.bridge.bufferSpace()
}

func (s *Sink) SetOption(key, value string) error {
	s.opts[key] = value
	return nil
}

func (s *Sink) GetOption(key string) (string, bool) {
	v, ok := s.opts[key]
	return v, ok
}

// SetVolume adjusts the underlying oto.Player's software volume, the hook
// mixer/otomixer drives. v is clamped to [0,1].
func (s *Sink) SetVolume(v float64) {
	if s.player == nil {
		return
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	s.player.SetVolume(v)
}

// Volume returns the underlying oto.Player's current software volume.
func (s *Sink) Volume() float64 {
	if s.player == nil {
		return 0
	}
	return s.player.Volume()
}
