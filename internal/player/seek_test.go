package player

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvalheim/audiocore/internal/decoder"
	"github.com/kvalheim/audiocore/internal/decoder/toneplugin"
	"github.com/kvalheim/audiocore/internal/httpfetch"
	"github.com/kvalheim/audiocore/internal/mixer/nullmixer"
	"github.com/kvalheim/audiocore/internal/output/nullsink"
	"github.com/kvalheim/audiocore/internal/playererr"
	"github.com/kvalheim/audiocore/internal/trackcache"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// Seeking on a remote (HTTP) stream fails fast with FunctionNotSupported
// and is idempotent: repeated calls leave the engine exactly as it was.
func TestSeekOnRemoteStreamFailsFast(t *testing.T) {
	const mime = "audio/x-tone"

	r := gin.New()
	r.GET("/stream", func(c *gin.Context) {
		c.Header("Content-Type", mime)
		c.String(200, "unused body, tone plugin synthesizes its own PCM")
	})
	srv := httptest.NewServer(r)
	defer srv.Close()

	tone := toneplugin.New()
	tone.MIME = mime
	tone.TotalFrames = -1

	reg := decoder.NewRegistry()
	reg.Register(tone)

	sink := nullsink.New(100)
	eng := New(Config{
		Registry:      reg,
		Cache:         trackcache.New(),
		Probe:         NewProbe(reg, httpfetch.Config{}),
		Sink:          sink,
		Mixer:         nullmixer.New(),
		BufferSeconds: 2,
	})
	defer eng.Close()

	require.NoError(t, eng.Play(srv.URL+"/stream"))
	waitForStatus(t, eng, Playing, 2*time.Second)

	err := eng.Seek(5.5, false)
	require.Error(t, err)
	assert.True(t, errors.Is(err, playererr.FunctionNotSupported))
	posAfterFirst := eng.Position()

	// Idempotent: a second attempt fails the same way without disturbing
	// playback state.
	err = eng.Seek(1.0, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, playererr.FunctionNotSupported))
	assert.Equal(t, Playing, eng.Status())
	assert.GreaterOrEqual(t, eng.Position(), posAfterFirst)
}

// Seeking a local, seekable stream twice in a row to the same absolute
// position is idempotent: position and buffer state converge rather than
// compounding.
func TestSeekLocalIdempotent(t *testing.T) {
	sink := nullsink.New(100)
	eng, _ := newTestEngine(t, -1, sink)

	require.NoError(t, eng.Play(tonePath(t)))
	waitForStatus(t, eng, Playing, 2*time.Second)

	require.NoError(t, eng.Seek(3.0, false))
	assert.InDelta(t, 3.0, eng.Position(), 0.001)

	require.NoError(t, eng.Seek(3.0, false))
	assert.InDelta(t, 3.0, eng.Position(), 0.001)
}
