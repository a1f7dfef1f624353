// Package nullsink is an output.Sink that discards written bytes while
// simulating a real device's drain rate, so player-engine tests can run
// deterministically without real audio hardware. It also exposes hooks to
// inject a device-lost failure on the next Open or Write, exercising the
// player's one-retry recovery rule.
package nullsink

import (
	"sync"
	"time"

	"github.com/kvalheim/audiocore/internal/pcmfmt"
)

// Sink is a simulated output device: a byte budget that drains at the
// opened format's real-time byte rate, so BufferSpace behaves like a
// genuine device buffer under sustained writes instead of accepting
// everything unconditionally.
type Sink struct {
	mu sync.Mutex

	capacitySeconds float64
	capacityBytes   int
	used            int
	total           int64
	format          pcmfmt.Format
	lastDrain       time.Time
	paused          bool
	open            bool

	failNextOpen  error
	failNextWrite error
}

// New returns a sink that buffers up to capacitySeconds of audio at
// whatever format it is opened with.
func New(capacitySeconds float64) *Sink {
	if capacitySeconds <= 0 {
		capacitySeconds = 1
	}
	return &Sink{capacitySeconds: capacitySeconds}
}

func (s *Sink) Init() error { return nil }
func (s *Sink) Exit() error { return nil }

func (s *Sink) Open(format pcmfmt.Format) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextOpen != nil {
		err := s.failNextOpen
		s.failNextOpen = nil
		return err
	}
	s.format = format
	s.capacityBytes = int(s.capacitySeconds * float64(format.Rate*format.Channels*(format.BitDepth/8)))
	if s.capacityBytes <= 0 {
		s.capacityBytes = 1
	}
	s.used = 0
	s.lastDrain = time.Time{}
	s.paused = false
	s.open = true
	return nil
}

func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.open = false
	return nil
}

// drainLocked replenishes used according to elapsed wall-clock time at the
// format's real-time byte rate, the way a genuine device's hardware buffer
// drains while playing.
func (s *Sink) drainLocked() {
	now := time.Now()
	if s.lastDrain.IsZero() {
		s.lastDrain = now
		return
	}
	if s.paused {
		s.lastDrain = now
		return
	}
	elapsed := now.Sub(s.lastDrain).Seconds()
	bytesPerSec := float64(s.format.Rate * s.format.Channels * (s.format.BitDepth / 8))
	drained := int(elapsed * bytesPerSec)
	if drained > 0 {
		s.used -= drained
		if s.used < 0 {
			s.used = 0
		}
		s.lastDrain = now
	}
}

func (s *Sink) Write(buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failNextWrite != nil {
		err := s.failNextWrite
		s.failNextWrite = nil
		return 0, err
	}
	if !s.open || s.paused {
		return 0, nil
	}
	s.drainLocked()
	free := s.capacityBytes - s.used
	if free <= 0 {
		return 0, nil
	}
	n := len(buf)
	if n > free {
		n = free
	}
	if fb := s.format.BytesPerFrame(); fb > 0 {
		n -= n % fb
	}
	s.used += n
	s.total += int64(n)
	return n, nil
}

// TotalWritten returns the cumulative number of bytes ever accepted by
// Write, for tests that verify the whole-track byte count that passed
// through the ring buffer.
func (s *Sink) TotalWritten() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.total
}

func (s *Sink) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
	return nil
}

func (s *Sink) Unpause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = false
	s.lastDrain = time.Now()
	return nil
}

func (s *Sink) BufferSpace() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.open {
		return -1
	}
	s.drainLocked()
	free := s.capacityBytes - s.used
	if free < 0 {
		free = 0
	}
	return free
}

func (s *Sink) SetOption(string, string) error  { return nil }
func (s *Sink) GetOption(string) (string, bool) { return "", false }

// FailNextOpen makes the next Open call return err instead of succeeding.
func (s *Sink) FailNextOpen(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextOpen = err
}

// FailNextWrite makes the next Write call return err instead of accepting
// bytes, simulating a device-lost failure.
func (s *Sink) FailNextWrite(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNextWrite = err
}
