// Package flacplugin decodes local FLAC files via mewkiz/flac, promoting
// native Vorbis comments through the same tag-reduction rules every other
// plugin applies.
package flacplugin

import (
	"encoding/binary"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/meta"

	"github.com/kvalheim/audiocore/internal/decoder"
	"github.com/kvalheim/audiocore/internal/pcmfmt"
	"github.com/kvalheim/audiocore/internal/playererr"
)

// Plugin implements decoder.Plugin for local .flac files.
type Plugin struct{}

// New returns the FLAC plugin.
func New() *Plugin { return &Plugin{} }

func (*Plugin) Name() string         { return "flac" }
func (*Plugin) Extensions() []string { return []string{".flac"} }
func (*Plugin) MIMETypes() []string  { return []string{"audio/flac", "audio/x-flac"} }

func (*Plugin) OpenFile(f *os.File, path string) (decoder.Stream, error) {
	s, err := flac.NewSeek(f)
	if err != nil {
		return nil, &playererr.Error{Kind: playererr.KindFileFormat, Err: err}
	}

	format := pcmfmt.Format{
		Rate:     int(s.Info.SampleRate),
		Channels: int(s.Info.NChannels),
		BitDepth: int(s.Info.BitsPerSample),
		Signed:   true,
	}

	duration := int32(-1)
	if s.Info.SampleRate > 0 && s.Info.NSamples > 0 {
		duration = int32(s.Info.NSamples / uint64(s.Info.SampleRate))
	}

	return &stream{
		file:     f,
		path:     path,
		flac:     s,
		format:   format,
		duration: duration,
	}, nil
}

// OpenStream is not supported: FLAC streaming dispatch is not wired for
// HTTP sources in this deployment.
func (*Plugin) OpenStream(io.Reader) (decoder.Stream, error) {
	return nil, playererr.New(playererr.KindFunctionNotSupported, nil)
}

type stream struct {
	file     *os.File
	path     string
	flac     *flac.Stream
	format   pcmfmt.Format
	duration int32

	leftover []byte
	tags     []decoder.Comment
	tagsRead bool
}

func (s *stream) SampleFormat() pcmfmt.Format { return s.format }
func (s *stream) Duration() int32             { return s.duration }

func (s *stream) Read(p []byte) (int, error) {
	if len(s.leftover) > 0 {
		n := copy(p, s.leftover)
		s.leftover = s.leftover[n:]
		return n, nil
	}

	fr, err := s.flac.ParseNext()
	if err != nil {
		if err == io.EOF {
			return 0, io.EOF
		}
		return 0, playererr.Errno(err)
	}

	bytesPerSample := s.format.BitDepth / 8
	blockSize := int(fr.BlockSize)
	channels := len(fr.Subframes)
	encoded := make([]byte, blockSize*channels*bytesPerSample)

	for i := 0; i < blockSize; i++ {
		for ch := 0; ch < channels; ch++ {
			off := (i*channels + ch) * bytesPerSample
			putSample(encoded[off:off+bytesPerSample], fr.Subframes[ch].Samples[i], s.format.BitDepth)
		}
	}

	copied := copy(p, encoded)
	if copied < len(encoded) {
		s.leftover = encoded[copied:]
	}
	return copied, nil
}

func putSample(dst []byte, v int32, bitDepth int) {
	switch bitDepth {
	case 8:
		dst[0] = byte(v + 128)
	case 16:
		binary.LittleEndian.PutUint16(dst, uint16(int16(v)))
	case 24:
		u := uint32(v)
		dst[0] = byte(u)
		dst[1] = byte(u >> 8)
		dst[2] = byte(u >> 16)
	case 32:
		binary.LittleEndian.PutUint32(dst, uint32(v))
	}
}

func (s *stream) Seek(seconds float64) error {
	target := uint64(seconds * float64(s.format.Rate))
	if _, err := s.flac.Seek(target); err != nil {
		return playererr.Errno(err)
	}
	s.leftover = nil
	return nil
}

func (s *stream) ReadTags() ([]decoder.Comment, error) {
	if s.tagsRead {
		return s.tags, nil
	}
	s.tagsRead = true
	for _, block := range s.flac.Blocks {
		vc, ok := block.Body.(*meta.VorbisComment)
		if !ok {
			continue
		}
		s.tags = append(s.tags, vorbisTagsToComments(vc)...)
	}
	return s.tags, nil
}

func vorbisTagsToComments(vc *meta.VorbisComment) []decoder.Comment {
	var out []decoder.Comment
	for _, tag := range vc.Tags {
		key := strings.ToLower(strings.TrimSpace(tag[0]))
		value := tag[1]
		switch key {
		case "genre":
			value = decoder.ResolveGenre(value)
		case "date":
			value = decoder.NormalizeDate(value)
		case "tracknumber", "discnumber":
			num, _ := decoder.SplitSlash(value)
			if num > 0 {
				value = strconv.Itoa(num)
			}
		}
		if canon := decoder.NormalizeTXXXKey(key); canon != "" {
			key = canon
		}
		out = append(out, decoder.Comment{Key: key, Value: value})
	}
	return out
}
