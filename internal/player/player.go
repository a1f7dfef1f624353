// Package player implements the playback engine: the state machine, the
// producer thread that pumps decoded PCM into the ring buffer, and the
// consumer thread that drains it to the output sink. All state is guarded
// by a single player mutex; the producer and consumer goroutines run for
// the lifetime of the Engine, parking on condition variables whenever
// there is nothing to do, rather than being restarted per track.
package player

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"github.com/kvalheim/audiocore/internal/decoder"
	"github.com/kvalheim/audiocore/internal/httpfetch"
	"github.com/kvalheim/audiocore/internal/mixer"
	"github.com/kvalheim/audiocore/internal/output"
	"github.com/kvalheim/audiocore/internal/pcmfmt"
	"github.com/kvalheim/audiocore/internal/playererr"
	"github.com/kvalheim/audiocore/internal/ringbuf"
	"github.com/kvalheim/audiocore/internal/trackcache"
)

// Status is the player's coarse playback state.
type Status int

const (
	Stopped Status = iota
	Playing
	Paused
)

func (s Status) String() string {
	switch s {
	case Stopped:
		return "STOPPED"
	case Playing:
		return "PLAYING"
	case Paused:
		return "PAUSED"
	default:
		return "UNKNOWN"
	}
}

// AdvanceReason tells a NextTrackFunc why the previous track ended.
type AdvanceReason int

const (
	AdvanceEOF AdvanceReason = iota
	AdvanceError
)

// NextTrackFunc is the caller-supplied "continue mode" hook: given the
// path that just finished (or failed) and why, it returns the next path
// to play and whether playback should continue at all. Returning
// ok=false stops the engine instead of advancing.
type NextTrackFunc func(prevPath string, reason AdvanceReason) (next string, ok bool)

// EventKind categorizes an Event.
type EventKind int

const (
	EventStatus EventKind = iota
	EventMetadata
	EventError
)

// Event is a single state-transition / metadata / error notification
// delivered on Engine.Events(), the idiomatic alternative to polling a
// flag for every state change (the metadata flag itself is kept in
// addition, since MetadataChanged must remain pollable).
type Event struct {
	Kind   EventKind
	Status Status
	Err    error
}

// cdSecondSize is CD-quality audio's byte rate: 44100 Hz * 2 channels * 2
// bytes/sample.
const cdSecondSize = 176400

// Config bundles everything New needs to construct a ready-to-use Engine.
type Config struct {
	Registry *decoder.Registry
	HTTP     httpfetch.Config

	Cache *trackcache.Cache
	Probe trackcache.ProbeFunc

	Sink  output.Sink
	Mixer mixer.Mixer // optional; nil disables volume control

	// BufferSeconds sizes the ring buffer in seconds of CD-quality audio,
	// clamped to [1,20].
	BufferSeconds float64
	// ChunkSize overrides the ring buffer's chunk size; 0 uses
	// ringbuf.DefaultChunkSize.
	ChunkSize int

	NextTrack NextTrackFunc
}

// Engine is the player's state machine plus its producer/consumer
// goroutines. The zero value is not usable; construct with New.
type Engine struct {
	mu           sync.Mutex
	producerCond *sync.Cond
	consumerCond *sync.Cond
	idleCond     *sync.Cond
	wg           sync.WaitGroup

	reg     *decoder.Registry
	httpCfg httpfetch.Config
	cache   *trackcache.Cache
	probe   trackcache.ProbeFunc
	sink    output.Sink
	mix     mixer.Mixer
	mixMax  int

	nextTrack NextTrackFunc

	buf *ringbuf.Buffer

	closed bool

	status     Status
	generation uint64

	havePending bool
	pendingPath string

	dec      *decoder.Decoder
	track    *trackcache.Track
	path     string
	format   pcmfmt.Format
	sinkOpen bool

	producerBusy bool
	consumerBusy bool

	producerEOF  bool
	zeroProgress int

	bytesConsumed int64
	position      float64

	deviceFailStreak int

	lastErr *playererr.Error

	metadataChanged bool

	events chan Event
}

// New constructs an Engine and starts its producer/consumer goroutines,
// which run until Close.
func New(cfg Config) *Engine {
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ringbuf.DefaultChunkSize
	}
	seconds := clampBufferSeconds(cfg.BufferSeconds)
	count := chunkCountFor(seconds, chunkSize)

	e := &Engine{
		reg:       cfg.Registry,
		httpCfg:   cfg.HTTP,
		cache:     cfg.Cache,
		probe:     cfg.Probe,
		sink:      cfg.Sink,
		nextTrack: cfg.NextTrack,
		buf:       ringbuf.New(count, chunkSize),
		events:    make(chan Event, 32),
	}
	e.producerCond = sync.NewCond(&e.mu)
	e.consumerCond = sync.NewCond(&e.mu)
	e.idleCond = sync.NewCond(&e.mu)

	if cfg.Mixer != nil {
		if err := cfg.Mixer.Init(); err != nil {
			slog.Warn("player: mixer init failed, volume control disabled", "error", err)
		} else if max, err := cfg.Mixer.Open(); err != nil {
			slog.Warn("player: mixer open failed, volume control disabled", "error", err)
		} else {
			e.mix = cfg.Mixer
			e.mixMax = max
		}
	}

	if e.sink != nil {
		if err := e.sink.Init(); err != nil {
			slog.Warn("player: sink init failed", "error", err)
		}
	}

	e.wg.Add(2)
	go e.producerLoop()
	go e.consumerLoop()
	return e
}

func clampBufferSeconds(s float64) float64 {
	if s <= 0 {
		return 1
	}
	if s < 1 {
		return 1
	}
	if s > 20 {
		return 20
	}
	return s
}

func chunkCountFor(seconds float64, chunkSize int) int {
	total := seconds * cdSecondSize
	n := int(math.Ceil(total / float64(chunkSize)))
	if n < 1 {
		n = 1
	}
	return n
}

// Close stops both goroutines and releases the current decoder/sink/mixer.
// It blocks until both goroutines have exited.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.teardownLocked()
	e.closed = true
	e.producerCond.Broadcast()
	e.consumerCond.Broadcast()
	e.idleCond.Broadcast()
	e.mu.Unlock()

	e.wg.Wait()
	close(e.events)

	if e.mix != nil {
		e.mix.Exit()
	}
	if e.sink != nil {
		e.sink.Exit()
	}
	return nil
}

// Events returns the channel of state/metadata/error notifications.
// Closed when the Engine is closed.
func (e *Engine) Events() <-chan Event { return e.events }

var errClosed = errors.New("player: engine closed")

func toPlayerErr(err error) *playererr.Error {
	var pe *playererr.Error
	if errors.As(err, &pe) {
		return pe
	}
	return playererr.New(playererr.KindInternal, err)
}
