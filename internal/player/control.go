package player

import (
	"github.com/kvalheim/audiocore/internal/playererr"
	"github.com/kvalheim/audiocore/internal/trackcache"
)

// Play requests playback of path. It never blocks on I/O: it records the
// request and wakes the producer, which performs the actual track-info
// lookup, decoder open and output open. Any currently-playing track is
// torn down first, so play(X) immediately followed by play(Y) never
// finishes playing X.
func (e *Engine) Play(path string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return playererr.New(playererr.KindInternal, errClosed)
	}
	e.teardownLocked()
	e.pendingPath = path
	e.havePending = true
	e.generation++
	e.producerCond.Broadcast()
	return nil
}

// Stop halts playback and releases the decoder, output device and buffer.
func (e *Engine) Stop() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.teardownLocked()
	e.havePending = false
	e.pendingPath = ""
	e.generation++
	e.producerCond.Broadcast()
	e.consumerCond.Broadcast()
	return nil
}

// Pause suspends output; the producer keeps filling the buffer. A no-op
// if not currently PLAYING.
func (e *Engine) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != Playing {
		return nil
	}
	if e.sinkOpen {
		if err := e.sink.Pause(); err != nil {
			return err
		}
	}
	e.setStatusLocked(Paused)
	e.consumerCond.Broadcast()
	return nil
}

// Unpause resumes output. A no-op if not currently PAUSED.
func (e *Engine) Unpause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.status != Paused {
		return nil
	}
	if e.sinkOpen {
		if err := e.sink.Unpause(); err != nil {
			return err
		}
	}
	e.setStatusLocked(Playing)
	e.consumerCond.Broadcast()
	return nil
}

// Seek repositions the current track. If relative is true, seconds is
// added to the current position; otherwise it is the absolute target.
// The buffer is discarded and the output device is closed and reopened
// if the new segment's sample format differs. Fails fast with
// FunctionNotSupported on a remote stream or when nothing is playing.
func (e *Engine) Seek(seconds float64, relative bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed || e.dec == nil || (e.status != Playing && e.status != Paused) {
		return playererr.New(playererr.KindFunctionNotSupported, nil)
	}

	e.waitIdleLocked()
	if e.closed || e.dec == nil {
		return playererr.New(playererr.KindFunctionNotSupported, nil)
	}

	target := seconds
	if relative {
		target = e.position + seconds
	}
	if target < 0 {
		target = 0
	}

	if err := e.dec.Seek(target); err != nil {
		return err
	}

	e.buf.Reset()
	e.producerEOF = false
	e.zeroProgress = 0
	e.deviceFailStreak = 0

	newFormat := e.dec.SampleFormat()
	if newFormat != e.format {
		if e.sinkOpen {
			e.sink.Close()
			e.sinkOpen = false
		}
		if err := e.sink.Open(newFormat); err != nil {
			pe := toPlayerErr(err)
			e.lastErr = pe
			e.setStatusLocked(Stopped)
			e.emitLocked(Event{Kind: EventError, Err: err})
			return pe
		}
		e.sinkOpen = true
		e.format = newFormat
	}

	e.position = target
	e.bytesConsumed = 0
	if bps := e.format.BytesPerFrame() * e.format.Rate; bps > 0 {
		e.bytesConsumed = int64(target * float64(bps))
	}
	e.generation++
	e.producerCond.Broadcast()
	e.consumerCond.Broadcast()
	return nil
}

// SetVolume scales left/right percentages in [0,100] to the mixer's
// native range. Returns FunctionNotSupported if no mixer is configured
// or the mixer failed to initialize.
func (e *Engine) SetVolume(left, right int) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mix == nil {
		return playererr.New(playererr.KindFunctionNotSupported, nil)
	}
	return e.mix.SetVolume(scalePct(left, e.mixMax), scalePct(right, e.mixMax))
}

// GetVolume inverts SetVolume's scaling.
func (e *Engine) GetVolume() (left, right int, err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.mix == nil {
		return 0, 0, playererr.New(playererr.KindFunctionNotSupported, nil)
	}
	l, r, err := e.mix.GetVolume()
	if err != nil {
		return 0, 0, err
	}
	return unscalePct(l, e.mixMax), unscalePct(r, e.mixMax), nil
}

func scalePct(pct, max int) int {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	return pct * max / 100
}

func unscalePct(v, max int) int {
	if max <= 0 {
		return 0
	}
	return v * 100 / max
}

// Status returns the current playback state.
func (e *Engine) Status() Status {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.status
}

// Position returns the current playback position in seconds.
func (e *Engine) Position() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.position
}

// MetadataChanged reports and clears the flag Icy/format-specific hooks
// set when the current track's metadata changes mid-stream.
func (e *Engine) MetadataChanged() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	v := e.metadataChanged
	e.metadataChanged = false
	return v
}

// CurrentTrack returns the track-info record for the playing path, or nil
// if stopped.
func (e *Engine) CurrentTrack() *trackcache.Track {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.track == nil {
		return nil
	}
	return e.track
}

// LastError returns the most recent fatal error the engine surfaced, or
// nil if none.
func (e *Engine) LastError() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.lastErr == nil {
		return nil
	}
	return e.lastErr
}

// BufferedChunks returns the number of chunks currently filled in the
// ring buffer, for diagnostics and tests.
func (e *Engine) BufferedChunks() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.buf.FilledChunks()
}

func (e *Engine) waitIdleLocked() {
	for e.producerBusy || e.consumerBusy {
		e.idleCond.Wait()
	}
}

func (e *Engine) setStatusLocked(s Status) {
	if e.status == s {
		return
	}
	e.status = s
	e.emitLocked(Event{Kind: EventStatus})
}

func (e *Engine) emitLocked(ev Event) {
	ev.Status = e.status
	select {
	case e.events <- ev:
	default:
	}
}

// teardownLocked closes the current decoder/sink/track and resets the
// buffer and position, leaving the engine STOPPED. Safe to call whether
// or not a track is currently open.
func (e *Engine) teardownLocked() {
	e.waitIdleLocked()
	if e.dec != nil {
		e.dec.Close()
		e.dec = nil
	}
	if e.sinkOpen {
		e.sink.Close()
		e.sinkOpen = false
	}
	if e.track != nil {
		e.track.Unref()
		e.track = nil
	}
	e.buf.Reset()
	e.producerEOF = false
	e.zeroProgress = 0
	e.bytesConsumed = 0
	e.position = 0
	e.deviceFailStreak = 0
	e.path = ""
	e.setStatusLocked(Stopped)
}

// advanceLocked invokes the NextTrackFunc callback (if configured) after
// a track ends, queuing the returned path as a new pending play.
func (e *Engine) advanceLocked(prevPath string, reason AdvanceReason) {
	if e.nextTrack == nil {
		return
	}
	next, ok := e.nextTrack(prevPath, reason)
	if !ok {
		return
	}
	e.pendingPath = next
	e.havePending = true
	e.producerCond.Broadcast()
}
