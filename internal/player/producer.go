package player

import (
	"github.com/kvalheim/audiocore/internal/decoder"
	"github.com/kvalheim/audiocore/internal/trackcache"
)

// producerLoop owns the decoder for the lifetime of the Engine. It parks
// on producerCond whenever there is no pending play request and nothing
// to decode (buffer full, no decoder open, or the current decoder hit
// EOF), matching the original's "producer suspends on buffer-full / no
// play request pending" rule. Decoder reads happen with the player mutex
// released; producerBusy marks that window so Seek/Stop/Close can wait
// for it to end before touching the same Decoder value.
func (e *Engine) producerLoop() {
	defer e.wg.Done()

	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		for !e.closed && !e.havePending &&
			!(e.dec != nil && (e.status == Playing || e.status == Paused) && !e.producerEOF && !e.buf.Full()) {
			e.producerCond.Wait()
		}
		if e.closed {
			return
		}

		if e.havePending {
			path := e.pendingPath
			e.havePending = false
			e.pendingPath = ""
			e.openTrack(path)
			continue
		}

		region, free := e.buf.ReserveWrite()
		if free == 0 {
			continue
		}

		dec := e.dec
		gen := e.generation
		e.producerBusy = true
		e.mu.Unlock()
		n, err := dec.Read(region)
		e.mu.Lock()
		e.producerBusy = false
		e.idleCond.Broadcast()

		if e.closed || e.generation != gen {
			continue
		}

		if err != nil {
			if decoder.IsAgain(err) {
				e.zeroProgress++
				if e.zeroProgress > decoder.MaxZeroProgressReads {
					e.producerEOF = true
					e.zeroProgress = 0
					e.consumerCond.Broadcast()
				}
				continue
			}
			e.failLocked(err)
			continue
		}

		if n == 0 {
			e.producerEOF = true
			e.consumerCond.Broadcast()
			continue
		}

		e.zeroProgress = 0
		e.buf.Commit(n)
		if dec.MetadataChanged() {
			e.metadataChanged = true
			e.emitLocked(Event{Kind: EventMetadata})
		}
		e.consumerCond.Broadcast()
	}
}

// openTrack performs the STOPPED -> PLAYING transition's I/O: track-info
// lookup, decoder open, output open. Called from producerLoop with the
// player mutex held; it releases the mutex around each blocking step and
// re-validates that no newer command (Play/Stop/Seek) superseded this one
// before installing the result.
func (e *Engine) openTrack(path string) {
	gen := e.generation

	e.mu.Unlock()
	track, err := e.cache.Get(path, e.probe)
	e.mu.Lock()
	if e.closed || e.generation != gen {
		if err == nil {
			track.Unref()
		}
		return
	}
	if err != nil {
		e.openFailLocked(path, err, nil, nil)
		return
	}

	dec := decoder.New(path)
	e.mu.Unlock()
	openErr := dec.Open(decoder.OpenConfig{Registry: e.reg, HTTP: e.httpCfg})
	e.mu.Lock()
	if e.closed || e.generation != gen {
		dec.Close()
		track.Unref()
		return
	}
	if openErr != nil {
		e.openFailLocked(path, openErr, nil, track)
		return
	}

	format := dec.SampleFormat()
	e.mu.Unlock()
	sinkErr := e.sink.Open(format)
	e.mu.Lock()
	if e.closed || e.generation != gen {
		dec.Close()
		track.Unref()
		return
	}
	if sinkErr != nil {
		e.openFailLocked(path, sinkErr, dec, track)
		return
	}

	e.dec = dec
	e.track = track
	e.path = path
	e.format = format
	e.sinkOpen = true
	e.producerEOF = false
	e.zeroProgress = 0
	e.bytesConsumed = 0
	e.position = 0
	e.deviceFailStreak = 0
	e.lastErr = nil
	e.generation++
	e.setStatusLocked(Playing)
	e.consumerCond.Broadcast()
}

// openFailLocked records a failed play attempt: any partially-opened
// decoder/track is released, the engine goes STOPPED, an error event
// fires and the NextTrackFunc callback is offered the chance to advance.
func (e *Engine) openFailLocked(path string, err error, dec *decoder.Decoder, track *trackcache.Track) {
	if dec != nil {
		dec.Close()
	}
	if track != nil {
		track.Unref()
	}
	e.lastErr = toPlayerErr(err)
	e.buf.Reset()
	e.setStatusLocked(Stopped)
	e.emitLocked(Event{Kind: EventError, Err: err})
	e.advanceLocked(path, AdvanceError)
}

// failLocked handles a hard mid-stream failure (decoder read error, or a
// second consecutive output failure): tear down the current track, go
// STOPPED, surface the error, and offer the NextTrackFunc a chance to
// advance.
func (e *Engine) failLocked(err error) {
	prevPath := e.path
	e.lastErr = toPlayerErr(err)
	e.teardownLocked()
	e.emitLocked(Event{Kind: EventError, Err: err})
	e.advanceLocked(prevPath, AdvanceError)
}
