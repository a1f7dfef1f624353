// Package mp3plugin decodes MPEG-1/2 Layer III audio, local or
// HTTP-streamed, via hajimehoshi/go-mp3. The library already emits 16-bit
// signed little-endian stereo PCM, so the normalizer is a no-op for every
// stream this plugin opens — it is still precomputed once at open time
// rather than on every read.
package mp3plugin

import (
	"io"
	"os"

	"github.com/hajimehoshi/go-mp3"

	"github.com/kvalheim/audiocore/internal/decoder"
	"github.com/kvalheim/audiocore/internal/pcmfmt"
	"github.com/kvalheim/audiocore/internal/playererr"
)

const bytesPerFrame = 4 // 16-bit stereo

// Plugin implements decoder.Plugin for local and HTTP-streamed MP3 audio.
type Plugin struct{}

// New returns the MP3 plugin.
func New() *Plugin { return &Plugin{} }

func (*Plugin) Name() string         { return "mp3" }
func (*Plugin) Extensions() []string { return []string{".mp3"} }
func (*Plugin) MIMETypes() []string {
	return []string{"audio/mpeg", "audio/mp3", "audio/mpeg3", "audio/x-mpeg", "audio/x-mpeg-3"}
}

func (*Plugin) OpenFile(f *os.File, path string) (decoder.Stream, error) {
	dec, err := mp3.NewDecoder(f)
	if err != nil {
		return nil, &playererr.Error{Kind: playererr.KindFileFormat, Err: err}
	}

	format := pcmfmt.Format{Rate: dec.SampleRate(), Channels: 2, BitDepth: 16, Signed: true}

	duration := int32(-1)
	if length := dec.Length(); length > 0 {
		duration = int32(length / int64(bytesPerFrame) / int64(format.Rate))
	}

	return &stream{file: f, path: path, dec: dec, format: format, duration: duration}, nil
}

// OpenStream decodes a live or on-demand HTTP MP3 body. Seek is not
// supported (r is not an io.Seeker); the decoder layer already rejects
// seek on remote sources before it would reach this plugin.
func (*Plugin) OpenStream(r io.Reader) (decoder.Stream, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, &playererr.Error{Kind: playererr.KindFileFormat, Err: err}
	}
	format := pcmfmt.Format{Rate: dec.SampleRate(), Channels: 2, BitDepth: 16, Signed: true}
	return &stream{dec: dec, format: format, duration: -1, remote: true}, nil
}

type stream struct {
	file     *os.File
	path     string
	dec      *mp3.Decoder
	format   pcmfmt.Format
	duration int32
	remote   bool
}

func (s *stream) SampleFormat() pcmfmt.Format { return s.format }
func (s *stream) Duration() int32             { return s.duration }

func (s *stream) Read(p []byte) (int, error) {
	return s.dec.Read(p)
}

func (s *stream) Seek(seconds float64) error {
	if s.remote {
		return playererr.New(playererr.KindFunctionNotSupported, nil)
	}
	target := int64(seconds*float64(s.format.Rate)) * bytesPerFrame
	if _, err := s.dec.Seek(target, io.SeekStart); err != nil {
		return playererr.Errno(err)
	}
	return nil
}

func (s *stream) ReadTags() ([]decoder.Comment, error) {
	if s.remote {
		return nil, nil
	}
	return decoder.ReadLocalTags(s.path)
}

func (s *stream) Close() error {
	if s.file != nil {
		return s.file.Close()
	}
	return nil
}
