package player

import "time"

// consumerPollInterval bounds how long the consumer sleeps when the
// output device reports no free space, the "sleep when ... device-full"
// suspension point.
const consumerPollInterval = 20 * time.Millisecond

// consumerLoop owns the output device for the lifetime of the Engine. It
// parks on consumerCond whenever PAUSED, STOPPED, the buffer is empty
// with the producer still filling it, or no track is open; it drains one
// readable region per iteration into the sink, updating position from
// bytes actually written.
func (e *Engine) consumerLoop() {
	defer e.wg.Done()

	e.mu.Lock()
	defer e.mu.Unlock()

	for {
		for !e.closed && !e.consumerRunnable() {
			e.consumerCond.Wait()
		}
		if e.closed {
			return
		}

		if e.buf.Empty() && e.producerEOF {
			prevPath := e.path
			e.teardownLocked()
			e.advanceLocked(prevPath, AdvanceEOF)
			continue
		}

		region, readable := e.buf.ReserveRead()
		if readable == 0 {
			continue
		}

		space := e.sink.BufferSpace()
		if space <= 0 {
			e.mu.Unlock()
			time.Sleep(consumerPollInterval)
			e.mu.Lock()
			continue
		}
		if space < len(region) {
			region = region[:space]
		}
		if fb := e.format.BytesPerFrame(); fb > 0 {
			region = region[:(len(region)/fb)*fb]
		}
		if len(region) == 0 {
			continue
		}

		gen := e.generation
		e.consumerBusy = true
		e.mu.Unlock()
		n, err := e.sink.Write(region)
		e.mu.Lock()
		e.consumerBusy = false
		e.idleCond.Broadcast()

		if e.closed || e.generation != gen {
			continue
		}

		if err != nil {
			e.handleWriteFailure(err)
			continue
		}

		e.deviceFailStreak = 0
		if n > 0 {
			e.buf.Consume(n)
			e.producerCond.Broadcast()
			e.bytesConsumed += int64(n)
			if bps := e.format.BytesPerFrame() * e.format.Rate; bps > 0 {
				e.position = float64(e.bytesConsumed) / float64(bps)
			}
		}
	}
}

// consumerRunnable reports whether the consumer has anything to do:
// draining the buffer while PLAYING, or closing out a track that reached
// EOF with nothing left to drain.
func (e *Engine) consumerRunnable() bool {
	if !e.sinkOpen {
		return false
	}
	if e.status == Playing && !e.buf.Empty() {
		return true
	}
	if e.status == Playing && e.buf.Empty() && e.producerEOF {
		return true
	}
	return false
}

// handleWriteFailure implements the device-lost recovery rule: close and
// reopen the sink once; a second consecutive failure is fatal.
func (e *Engine) handleWriteFailure(err error) {
	e.deviceFailStreak++
	if e.deviceFailStreak > 1 {
		e.failLocked(err)
		return
	}
	e.sink.Close()
	if reopenErr := e.sink.Open(e.format); reopenErr != nil {
		e.failLocked(reopenErr)
	}
}
