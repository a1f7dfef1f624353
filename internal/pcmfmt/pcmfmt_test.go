package pcmfmt

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewNormalizerScale(t *testing.T) {
	cases := []struct {
		name  string
		f     Format
		scale int
	}{
		{"native stereo 16-bit", Format{Rate: 44100, Channels: 2, BitDepth: 16, Signed: true}, 1},
		{"mono 16-bit", Format{Rate: 44100, Channels: 1, BitDepth: 16, Signed: true}, 2},
		{"stereo 8-bit", Format{Rate: 44100, Channels: 2, BitDepth: 8, Signed: true}, 2},
		{"mono 8-bit", Format{Rate: 44100, Channels: 1, BitDepth: 8, Signed: true}, 4},
		{"5.1 24-bit passthrough", Format{Rate: 44100, Channels: 6, BitDepth: 24, Signed: true}, 1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			n := NewNormalizer(c.f)
			assert.Equal(t, c.scale, n.Scale())
		})
	}
}

func TestConvertAllZeroIsAllZero(t *testing.T) {
	src := Format{Rate: 8000, Channels: 1, BitDepth: 8, Signed: false}
	n := NewNormalizer(src)
	in := make([]byte, 10)
	for i := range in {
		in[i] = 128 // unsigned 8-bit zero midpoint
	}
	out := make([]byte, len(in)*n.Scale())
	written := n.Convert(out, in, len(in))
	require.Equal(t, len(out), written)
	for _, b := range out {
		assert.Equal(t, byte(0), b)
	}
}

func TestConvertInPlaceInvolution(t *testing.T) {
	src := Format{Rate: 44100, Channels: 2, BitDepth: 16, Signed: true, BigEndian: true}
	n := NewNormalizer(src)

	original := []int16{1, -2, 32767, -32768, 0, 12345}
	buf := make([]byte, len(original)*2)
	for i, v := range original {
		binary.BigEndian.PutUint16(buf[i*2:i*2+2], uint16(v))
	}

	work := append([]byte(nil), buf...)
	frames := len(original) / src.Channels
	n.ConvertInPlace(work, frames)
	n.ConvertInPlace(work, frames)
	assert.Equal(t, buf, work, "applying ConvertInPlace twice must restore the original encoding")
}

func TestConvertInPlaceNoOpOutsideRange(t *testing.T) {
	src := Format{Rate: 44100, Channels: 6, BitDepth: 24, Signed: true}
	n := NewNormalizer(src)
	buf := []byte{1, 2, 3, 4, 5, 6}
	before := append([]byte(nil), buf...)
	n.ConvertInPlace(buf, 1)
	assert.Equal(t, before, buf)
}
