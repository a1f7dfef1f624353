package trackcache

import (
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sampleTrack's paths do not exist on disk, so its mtime is 0 (unknown):
// a nonzero mtime would fail Get's stat check and force a reprobe.
func sampleTrack(path string) *Track {
	return &Track{
		Path:     path,
		Duration: 180,
		Mtime:    0,
		Comments: []Comment{
			{Key: "artist", Value: "Test Artist"},
			{Key: "title", Value: "Test Title"},
		},
	}
}

func TestGetProbesOnceThenReturnsCached(t *testing.T) {
	c := New()
	var probes int32
	probe := func(path string) (*Track, error) {
		atomic.AddInt32(&probes, 1)
		return sampleTrack(path), nil
	}

	tr1, err := c.Get("/a.mp3", probe)
	require.NoError(t, err)
	tr2, err := c.Get("/a.mp3", probe)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&probes))
	assert.Same(t, tr1, tr2)
}

// TestSingleFlight checks that concurrent Get calls on a
// previously-absent path invoke the decoder at most once.
func TestSingleFlight(t *testing.T) {
	c := New()
	var probes int32
	probe := func(path string) (*Track, error) {
		atomic.AddInt32(&probes, 1)
		time.Sleep(5 * time.Millisecond)
		return sampleTrack(path), nil
	}

	const n = 16
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func() {
			defer wg.Done()
			_, err := c.Get("/concurrent.mp3", probe)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&probes))
}

// TestStalenessReprobes checks that a changed filesystem mtime forces a
// fresh decode, while an unchanged mtime returns the cached record.
func TestStalenessReprobes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "track.mp3")
	require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))

	c := New()
	var probes int32
	probe := func(p string) (*Track, error) {
		atomic.AddInt32(&probes, 1)
		fi, err := os.Stat(p)
		require.NoError(t, err)
		return &Track{Path: p, Duration: 10, Mtime: fi.ModTime().Unix()}, nil
	}

	_, err := c.Get(path, probe)
	require.NoError(t, err)
	_, err = c.Get(path, probe)
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&probes))

	future := time.Now().Add(2 * time.Hour)
	require.NoError(t, os.Chtimes(path, future, future))

	_, err = c.Get(path, probe)
	require.NoError(t, err)
	assert.Equal(t, int32(2), atomic.LoadInt32(&probes))
}

func TestRemoteTrackNeverReprobed(t *testing.T) {
	c := New()
	var probes int32
	probe := func(p string) (*Track, error) {
		atomic.AddInt32(&probes, 1)
		return &Track{Path: p, Duration: -1, Mtime: 0}, nil
	}

	_, err := c.Get("http://example.com/stream.mp3", probe)
	require.NoError(t, err)
	_, err = c.Get("http://example.com/stream.mp3", probe)
	require.NoError(t, err)

	assert.Equal(t, int32(1), atomic.LoadInt32(&probes))
}

// TestRoundTrip checks that Close followed by Init restores exactly the
// same set of records, preserving comment order.
func TestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache")

	c1 := New()
	require.NoError(t, c1.Init(path))

	paths := []string{"/z.mp3", "/a.flac", "/m.wav"}
	for _, p := range paths {
		_, err := c1.Get(p, func(pp string) (*Track, error) {
			return sampleTrack(pp), nil
		})
		require.NoError(t, err)
	}
	require.NoError(t, c1.Close())

	c2 := New()
	require.NoError(t, c2.Init(path))
	require.Equal(t, len(paths), c2.Len())

	for _, p := range paths {
		var probed bool
		tr, err := c2.Get(p, func(pp string) (*Track, error) {
			probed = true
			return sampleTrack(pp), nil
		})
		require.NoError(t, err)
		assert.False(t, probed, "record for %s should have loaded from disk, not reprobed", p)
		assert.Equal(t, int32(180), tr.Duration)
		require.Len(t, tr.Comments, 2)
		assert.Equal(t, "artist", tr.Comments[0].Key)
		assert.Equal(t, "title", tr.Comments[1].Key)
	}
}

func TestCleanCacheCloseIsNoop(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache")

	c := New()
	require.NoError(t, c.Init(path))
	require.NoError(t, c.Close())

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "Close on an untouched cache must not create a file")
}

func TestCorruptFileLoadsEmptyTable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "cache")
	require.NoError(t, os.WriteFile(path, []byte("not a cache file"), 0o644))

	c := New()
	err := c.Init(path)
	assert.ErrorIs(t, err, ErrCorrupt)
	assert.Equal(t, 0, c.Len())
}

func TestRemoveEvictsEntry(t *testing.T) {
	c := New()
	_, err := c.Get("/a.mp3", func(p string) (*Track, error) { return sampleTrack(p), nil })
	require.NoError(t, err)
	require.Equal(t, 1, c.Len())

	c.Remove("/a.mp3")
	assert.Equal(t, 0, c.Len())
}
