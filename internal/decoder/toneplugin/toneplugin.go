// Package toneplugin is a synthetic decoder.Plugin with no backing file:
// it generates silence or a fixed-frequency tone for a configured number
// of frames. It claims no extensions or MIME types by default (callers
// construct and register it directly) and exists for deterministic
// player-engine tests, modeled on a phase-accumulator tone synthesizer
// (a floating-point running phase, the idiomatic Go equivalent of a
// fixed-point sine-table accumulator).
package toneplugin

import (
	"encoding/binary"
	"io"
	"math"
	"os"

	"github.com/kvalheim/audiocore/internal/decoder"
	"github.com/kvalheim/audiocore/internal/pcmfmt"
	"github.com/kvalheim/audiocore/internal/playererr"
)

// Plugin generates PCM on demand rather than decoding a file. FrequencyHz
// == 0 produces silence; TotalFrames < 0 means an unbounded stream (EOF
// never occurs on its own — tests that want EOF must set a frame count).
type Plugin struct {
	Format      pcmfmt.Format
	FrequencyHz float64
	TotalFrames int64

	// Ext, if set, is the fake file extension this plugin claims in a
	// decoder.Registry — there is no real file on disk, so tests register
	// the plugin under whatever extension they open test paths with (e.g.
	// "tone") rather than relying on content sniffing.
	Ext string

	// MIME, if set, is the Content-Type this plugin claims for remote
	// (HTTP) sources, letting tests exercise the decoder's remote path
	// (which disables Seek) without a real audio codec.
	MIME string
}

// New returns a plugin generating 44.1 kHz 16-bit stereo silence with no
// bound on frame count; callers override fields before registering it.
func New() *Plugin {
	return &Plugin{
		Format:      pcmfmt.Format{Rate: 44100, Channels: 2, BitDepth: 16, Signed: true},
		TotalFrames: -1,
	}
}

func (*Plugin) Name() string { return "tone" }
func (p *Plugin) Extensions() []string {
	if p.Ext == "" {
		return nil
	}
	return []string{p.Ext}
}
func (p *Plugin) MIMETypes() []string {
	if p.MIME == "" {
		return nil
	}
	return []string{p.MIME}
}

func (p *Plugin) OpenFile(*os.File, string) (decoder.Stream, error) { return p.open() }
func (p *Plugin) OpenStream(io.Reader) (decoder.Stream, error)      { return p.open() }

func (p *Plugin) open() (decoder.Stream, error) {
	if p.Format.BitDepth != 16 {
		return nil, playererr.New(playererr.KindSampleFormat, nil)
	}
	duration := int32(-1)
	if p.TotalFrames >= 0 && p.Format.Rate > 0 {
		duration = int32(p.TotalFrames / int64(p.Format.Rate))
	}
	return &stream{
		format:      p.Format,
		frequencyHz: p.FrequencyHz,
		total:       p.TotalFrames,
		duration:    duration,
	}, nil
}

type stream struct {
	format      pcmfmt.Format
	frequencyHz float64
	total       int64 // -1 = unbounded
	duration    int32

	framesEmitted int64
	phase         float64
}

func (s *stream) SampleFormat() pcmfmt.Format { return s.format }
func (s *stream) Duration() int32             { return s.duration }

func (s *stream) Read(p []byte) (int, error) {
	bytesPerFrame := s.format.BytesPerFrame()
	framesWanted := len(p) / bytesPerFrame
	if s.total >= 0 {
		remaining := s.total - s.framesEmitted
		if remaining <= 0 {
			return 0, io.EOF
		}
		if int64(framesWanted) > remaining {
			framesWanted = int(remaining)
		}
	}

	phaseStep := 2 * math.Pi * s.frequencyHz / float64(s.format.Rate)
	for i := 0; i < framesWanted; i++ {
		var sample int16
		if s.frequencyHz != 0 {
			sample = int16(math.Sin(s.phase) * math.MaxInt16 * 0.5)
			s.phase += phaseStep
			if s.phase > 2*math.Pi {
				s.phase -= 2 * math.Pi
			}
		}
		off := i * bytesPerFrame
		for ch := 0; ch < s.format.Channels; ch++ {
			binary.LittleEndian.PutUint16(p[off+ch*2:], uint16(sample))
		}
	}
	s.framesEmitted += int64(framesWanted)
	return framesWanted * bytesPerFrame, nil
}

func (s *stream) Seek(seconds float64) error {
	s.framesEmitted = int64(seconds * float64(s.format.Rate))
	s.phase = 0
	return nil
}

func (s *stream) ReadTags() ([]decoder.Comment, error) { return nil, nil }
func (s *stream) Close() error                         { return nil }
