package httpfetch

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvalheim/audiocore/internal/playererr"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestFetchFollowsRedirectChain(t *testing.T) {
	r := gin.New()
	r.GET("/final", func(c *gin.Context) {
		c.Header("Content-Type", "audio/mpeg")
		c.String(200, "payload")
	})
	r.GET("/hop2", func(c *gin.Context) { c.Redirect(302, "/final") })
	r.GET("/hop1", func(c *gin.Context) { c.Redirect(302, "/hop2") })

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := Fetch(srv.URL+"/hop1", Config{})
	require.NoError(t, err)
	defer resp.Close()

	body, err := io.ReadAll(resp)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(body))
}

func TestFetchRespectsRedirectLimit(t *testing.T) {
	r := gin.New()
	r.GET("/a", func(c *gin.Context) { c.Redirect(302, "/b") })
	r.GET("/b", func(c *gin.Context) { c.Redirect(302, "/c") })
	r.GET("/c", func(c *gin.Context) { c.Redirect(302, "/d") })
	r.GET("/d", func(c *gin.Context) {
		c.Header("Content-Type", "audio/mpeg")
		c.String(200, "unreachable")
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	_, err := Fetch(srv.URL+"/a", Config{MaxRedirects: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, playererr.HTTPRedirectLimit))
}

func TestFetchReportsNonRedirectStatus(t *testing.T) {
	r := gin.New()
	r.GET("/missing", func(c *gin.Context) { c.String(404, "nope") })

	srv := httptest.NewServer(r)
	defer srv.Close()

	_, err := Fetch(srv.URL+"/missing", Config{})
	require.Error(t, err)
}

func TestFetchStripsIcyMetadata(t *testing.T) {
	const metaInt = 32
	audioChunk := make([]byte, metaInt)
	for i := range audioChunk {
		audioChunk[i] = byte(i)
	}

	var body []byte
	body = append(body, audioChunk...)
	body = append(body, icyMetaBlock("StreamTitle='Artist - Song';")...)
	body = append(body, audioChunk...)

	r := gin.New()
	r.GET("/stream", func(c *gin.Context) {
		c.Header("icy-metaint", "32")
		c.Data(200, "audio/mpeg", body)
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := Fetch(srv.URL+"/stream", Config{})
	require.NoError(t, err)
	defer resp.Close()

	body, err := io.ReadAll(resp)
	require.NoError(t, err)
	assert.Equal(t, append(append([]byte{}, audioChunk...), audioChunk...), body)
	assert.Equal(t, "Artist - Song", resp.Title())
	assert.True(t, resp.TitleChanged())
	assert.False(t, resp.TitleChanged(), "second poll must report no further change")
}

func TestFetchUnwrapsM3UPlaylist(t *testing.T) {
	r := gin.New()
	r.GET("/track.mp3", func(c *gin.Context) {
		c.Header("Content-Type", "audio/mpeg")
		c.String(200, "track-bytes")
	})
	r.GET("/list.m3u", func(c *gin.Context) {
		host := "http://" + c.Request.Host
		c.Header("Content-Type", "audio/m3u")
		c.String(200, "#EXTM3U\n"+host+"/track.mp3\n")
	})

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := Fetch(srv.URL+"/list.m3u", Config{})
	require.NoError(t, err)
	defer resp.Close()

	body, err := io.ReadAll(resp)
	require.NoError(t, err)
	assert.Equal(t, "track-bytes", string(body))
}

func icyMetaBlock(title string) []byte {
	// Pad to a multiple of 16 bytes as the Icy protocol requires.
	for len(title)%16 != 0 {
		title += "\x00"
	}
	lengthByte := byte(len(title) / 16)
	return append([]byte{lengthByte}, []byte(title)...)
}

