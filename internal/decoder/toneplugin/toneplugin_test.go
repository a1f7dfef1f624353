package toneplugin

import (
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSilenceProducesZeroBytes(t *testing.T) {
	p := New()
	p.TotalFrames = 100
	s, err := p.OpenStream(nil)
	require.NoError(t, err)
	defer s.Close()

	buf := make([]byte, s.SampleFormat().BytesPerFrame()*100)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)
	for _, b := range buf {
		assert.Equal(t, byte(0), b)
	}
}

func TestBoundedStreamReachesEOF(t *testing.T) {
	p := New()
	p.FrequencyHz = 440
	p.TotalFrames = 10

	s, err := p.OpenStream(nil)
	require.NoError(t, err)
	defer s.Close()

	bytesPerFrame := s.SampleFormat().BytesPerFrame()
	buf := make([]byte, bytesPerFrame*10)
	n, err := s.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, len(buf), n)

	_, err = s.Read(buf)
	assert.ErrorIs(t, err, io.EOF)
}

func TestUnboundedStreamNeverReturnsEOF(t *testing.T) {
	p := New()
	p.TotalFrames = -1
	s, err := p.OpenStream(nil)
	require.NoError(t, err)
	defer s.Close()

	buf := make([]byte, s.SampleFormat().BytesPerFrame()*1000)
	for i := 0; i < 5; i++ {
		n, err := s.Read(buf)
		require.NoError(t, err)
		assert.Equal(t, len(buf), n)
	}
}

func TestSeekResetsFramePosition(t *testing.T) {
	p := New()
	p.FrequencyHz = 440
	p.TotalFrames = 2 * 44100

	s, err := p.OpenFile(nil, "")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Seek(1))

	buf := make([]byte, s.SampleFormat().BytesPerFrame())
	_, err = s.Read(buf)
	require.NoError(t, err)
}

func TestNonSixteenBitDepthIsRejected(t *testing.T) {
	p := New()
	p.Format.BitDepth = 8
	_, err := p.OpenStream(nil)
	assert.Error(t, err)
}

func TestNameExtensionsAndMIMETypes(t *testing.T) {
	p := New()
	assert.Equal(t, "tone", p.Name())
	assert.Nil(t, p.Extensions())
	assert.Nil(t, p.MIMETypes())

	p.Ext = "tone"
	p.MIME = "audio/x-tone"
	assert.Equal(t, []string{"tone"}, p.Extensions())
	assert.Equal(t, []string{"audio/x-tone"}, p.MIMETypes())
}
