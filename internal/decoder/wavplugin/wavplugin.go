// Package wavplugin decodes local WAV files via go-audio/wav, the plugin
// that gives the decoder registry native, dependency-light PCM support for
// the least codec-surprise format in the library.
package wavplugin

import (
	"encoding/binary"
	"io"
	"os"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/kvalheim/audiocore/internal/decoder"
	"github.com/kvalheim/audiocore/internal/pcmfmt"
	"github.com/kvalheim/audiocore/internal/playererr"
)

const framesPerBatch = 4096

// Plugin implements decoder.Plugin for local .wav files.
type Plugin struct{}

// New returns the WAV plugin.
func New() *Plugin { return &Plugin{} }

func (*Plugin) Name() string           { return "wav" }
func (*Plugin) Extensions() []string   { return []string{".wav"} }
func (*Plugin) MIMETypes() []string    { return []string{"audio/wav", "audio/x-wav", "audio/wave"} }

func (*Plugin) OpenFile(f *os.File, path string) (decoder.Stream, error) {
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, playererr.New(playererr.KindFileFormat, nil)
	}
	dec.ReadInfo()
	if dec.Err() != nil {
		return nil, &playererr.Error{Kind: playererr.KindFileFormat, Err: dec.Err()}
	}

	format := pcmfmt.Format{
		Rate:     int(dec.SampleRate),
		Channels: int(dec.NumChans),
		BitDepth: int(dec.BitDepth),
		Signed:   dec.BitDepth != 8,
	}

	duration := int32(-1)
	if d, err := dec.Duration(); err == nil {
		duration = int32(d / time.Second)
	}

	s := &stream{
		file:     f,
		path:     path,
		dec:      dec,
		format:   format,
		duration: duration,
		intBuf: &audio.IntBuffer{
			Format:         &audio.Format{NumChannels: int(dec.NumChans), SampleRate: int(dec.SampleRate)},
			Data:           make([]int, framesPerBatch*int(dec.NumChans)),
			SourceBitDepth: int(dec.BitDepth),
		},
	}
	return s, nil
}

// OpenStream is not supported: WAV is not one of the plugins dispatched for
// HTTP streaming in this deployment.
func (*Plugin) OpenStream(io.Reader) (decoder.Stream, error) {
	return nil, playererr.New(playererr.KindFunctionNotSupported, nil)
}

type stream struct {
	file     *os.File
	path     string
	dec      *wav.Decoder
	format   pcmfmt.Format
	duration int32
	intBuf   *audio.IntBuffer

	leftover []byte
}

func (s *stream) SampleFormat() pcmfmt.Format { return s.format }
func (s *stream) Duration() int32             { return s.duration }

func (s *stream) Read(p []byte) (int, error) {
	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		return n, nil
	}

	n, err := s.dec.PCMBuffer(s.intBuf)
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, io.EOF
	}

	bytesPerSample := s.format.BitDepth / 8
	encoded := make([]byte, n*bytesPerSample)
	for i := 0; i < n; i++ {
		putSample(encoded[i*bytesPerSample:], s.intBuf.Data[i], s.format.BitDepth, s.format.Signed)
	}

	copied := copy(p, encoded)
	if copied < len(encoded) {
		s.leftover = encoded[copied:]
	}
	return copied, nil
}

func putSample(dst []byte, v int, bitDepth int, signed bool) {
	switch bitDepth {
	case 8:
		if !signed {
			dst[0] = byte(v)
		} else {
			dst[0] = byte(v + 128)
		}
	case 16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case 24:
		u := uint32(int32(v))
		dst[0] = byte(u)
		dst[1] = byte(u >> 8)
		dst[2] = byte(u >> 16)
	case 32:
		binary.LittleEndian.PutUint32(dst, uint32(int32(v)))
	}
}

// Seek reopens the decode stream at the start of the PCM data and
// discards frames until reaching the target offset. go-audio/wav's public
// API doesn't expose random-access seeking within the data chunk, so this
// is the only portable way to reposition without re-parsing chunk headers
// by hand.
func (s *stream) Seek(seconds float64) error {
	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return playererr.Errno(err)
	}
	s.dec = wav.NewDecoder(s.file)
	s.dec.ReadInfo()
	if s.dec.Err() != nil {
		return &playererr.Error{Kind: playererr.KindFileFormat, Err: s.dec.Err()}
	}
	s.leftover = nil

	targetFrame := int64(seconds * float64(s.format.Rate))
	for remaining := targetFrame; remaining > 0; {
		batch := int64(framesPerBatch)
		if remaining < batch {
			batch = remaining
		}
		buf := &audio.IntBuffer{
			Format:         s.intBuf.Format,
			Data:           make([]int, int(batch)*s.format.Channels),
			SourceBitDepth: s.format.BitDepth,
		}
		n, err := s.dec.PCMBuffer(buf)
		if err != nil || n == 0 {
			break
		}
		remaining -= int64(n / s.format.Channels)
	}
	return nil
}

func (s *stream) ReadTags() ([]decoder.Comment, error) {
	return decoder.ReadLocalTags(s.path)
}

func (s *stream) Close() error { return nil }
