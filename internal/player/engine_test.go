package player

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvalheim/audiocore/internal/decoder"
	"github.com/kvalheim/audiocore/internal/decoder/toneplugin"
	"github.com/kvalheim/audiocore/internal/httpfetch"
	"github.com/kvalheim/audiocore/internal/mixer/nullmixer"
	"github.com/kvalheim/audiocore/internal/output/nullsink"
	"github.com/kvalheim/audiocore/internal/pcmfmt"
	"github.com/kvalheim/audiocore/internal/trackcache"
)

var assertErr = errors.New("simulated device error")

// tonePath returns a path ending in ".tone" that actually exists on disk:
// decoder.Open always os.Open's a local path before handing the file to
// the plugin, even though toneplugin's OpenFile ignores its contents.
func tonePath(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "track.tone")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	return path
}

func newTestEngine(t *testing.T, totalFrames int64, sink *nullsink.Sink) (*Engine, *toneplugin.Plugin) {
	t.Helper()
	tone := toneplugin.New()
	tone.Ext = "tone"
	tone.TotalFrames = totalFrames

	reg := decoder.NewRegistry()
	reg.Register(tone)

	cache := trackcache.New()

	eng := New(Config{
		Registry:      reg,
		Cache:         cache,
		Probe:         NewProbe(reg, httpfetch.Config{}),
		Sink:          sink,
		Mixer:         nullmixer.New(),
		BufferSeconds: 2,
	})
	t.Cleanup(func() { eng.Close() })
	return eng, tone
}

// waitForStatus polls until the engine reaches want or the timeout
// elapses, draining events along the way.
func waitForStatus(t *testing.T, eng *Engine, want Status, timeout time.Duration) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if eng.Status() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.Equal(t, want, eng.Status(), "status did not reach %s in time", want)
}

// A decoder emitting exactly N frames of 44.1 kHz stereo 16-bit silence
// plays start to finish and exactly N*bytesPerFrame bytes pass through
// the buffer to the sink.
func TestBasicPlayToEOF(t *testing.T) {
	const frames = 44100 * 2 // 2 seconds at 44.1kHz stereo 16-bit
	sink := nullsink.New(100)
	eng, _ := newTestEngine(t, frames, sink)

	require.NoError(t, eng.Play(tonePath(t)))
	waitForStatus(t, eng, Playing, 2*time.Second)
	waitForStatus(t, eng, Stopped, 5*time.Second)

	wantBytes := frames * int64(pcmfmt.Format{Channels: 2, BitDepth: 16}.BytesPerFrame())
	assert.Equal(t, wantBytes, sink.TotalWritten())
}

// While paused the consumer delivers no bytes and position does not
// advance; resuming continues from the same position.
func TestPauseResume(t *testing.T) {
	sink := nullsink.New(100)
	eng, _ := newTestEngine(t, -1, sink) // unbounded stream, never EOFs on its own

	require.NoError(t, eng.Play(tonePath(t)))
	waitForStatus(t, eng, Playing, 2*time.Second)

	// Let some bytes flow.
	time.Sleep(20 * time.Millisecond)
	require.NoError(t, eng.Pause())
	waitForStatus(t, eng, Paused, time.Second)

	before := sink.TotalWritten()
	posBefore := eng.Position()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, before, sink.TotalWritten(), "no bytes should be written while paused")
	assert.Equal(t, posBefore, eng.Position(), "position must not advance while paused")

	require.NoError(t, eng.Unpause())
	waitForStatus(t, eng, Playing, time.Second)
	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, sink.TotalWritten(), before)
}

// Seeking while playing discards the buffer and repositions the decoder;
// playback continues from the new position.
func TestSeekWhilePlaying(t *testing.T) {
	sink := nullsink.New(100)
	eng, _ := newTestEngine(t, -1, sink)

	require.NoError(t, eng.Play(tonePath(t)))
	waitForStatus(t, eng, Playing, 2*time.Second)
	time.Sleep(10 * time.Millisecond)

	require.NoError(t, eng.Seek(5.5, false))
	assert.InDelta(t, 5.5, eng.Position(), 0.001)
	assert.Equal(t, 0, eng.BufferedChunks())

	// Playback keeps going from the new position.
	time.Sleep(20 * time.Millisecond)
	assert.GreaterOrEqual(t, eng.Position(), 5.5)
}

// A single write failure triggers a transparent close+reopen; a second
// consecutive failure is fatal.
func TestDeviceRecoveryOnce(t *testing.T) {
	sink := nullsink.New(100)
	eng, _ := newTestEngine(t, -1, sink)

	require.NoError(t, eng.Play(tonePath(t)))
	waitForStatus(t, eng, Playing, 2*time.Second)
	time.Sleep(10 * time.Millisecond)

	sink.FailNextWrite(assertErr)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, Playing, eng.Status(), "a single device failure must recover, not stop playback")
}

func TestDeviceRecoveryFatalOnSecondFailure(t *testing.T) {
	sink := nullsink.New(100)
	eng, _ := newTestEngine(t, -1, sink)

	require.NoError(t, eng.Play(tonePath(t)))
	waitForStatus(t, eng, Playing, 2*time.Second)
	time.Sleep(10 * time.Millisecond)

	sink.FailNextOpen(assertErr) // the reopen attempt after the write failure fails too
	sink.FailNextWrite(assertErr)
	waitForStatus(t, eng, Stopped, time.Second)
}

// Events delivers a status notification for every transition.
func TestEventsDeliversStatusChanges(t *testing.T) {
	const frames = 44100 / 10 // 100ms
	sink := nullsink.New(100)
	eng, _ := newTestEngine(t, frames, sink)

	require.NoError(t, eng.Play(tonePath(t)))

	sawPlaying, sawStopped := false, false
	deadline := time.After(2 * time.Second)
loop:
	for {
		select {
		case ev := <-eng.Events():
			if ev.Kind == EventStatus {
				if ev.Status == Playing {
					sawPlaying = true
				}
				if ev.Status == Stopped && sawPlaying {
					sawStopped = true
					break loop
				}
			}
		case <-deadline:
			break loop
		}
	}
	assert.True(t, sawPlaying)
	assert.True(t, sawStopped)
}
