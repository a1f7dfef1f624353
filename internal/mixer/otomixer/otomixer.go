// Package otomixer is the software-volume mixer.Mixer for otosink: it has
// no independent hardware channel, so volume is applied directly to the
// oto.Player otosink owns, over a backend-dependent native range.
package otomixer

import "github.com/kvalheim/audiocore/internal/playererr"

const maxVolume = 100

// VolumeSink is the subset of otosink.Sink this mixer drives.
type VolumeSink interface {
	SetVolume(v float64)
	Volume() float64
}

// Mixer scales [0,100] percentages to the [0.0,1.0] range otosink expects.
type Mixer struct {
	sink VolumeSink
	l, r int
}

// New returns a mixer controlling sink's software volume. oto has no
// independent per-channel gain, so the applied gain is the average of left
// and right; GetVolume reports the left and right values last set.
func New(sink VolumeSink) *Mixer {
	return &Mixer{sink: sink, l: maxVolume, r: maxVolume}
}

func (m *Mixer) Init() error { return nil }
func (m *Mixer) Exit() error { return nil }

func (m *Mixer) Open() (int, error) {
	if m.sink == nil {
		return 0, playererr.New(playererr.KindFunctionNotSupported, nil)
	}
	return maxVolume, nil
}

func (m *Mixer) Close() error { return nil }

func (m *Mixer) SetVolume(left, right int) error {
	if m.sink == nil {
		return playererr.New(playererr.KindFunctionNotSupported, nil)
	}
	left, right = clamp(left), clamp(right)
	m.l, m.r = left, right
	avg := (left + right) / 2
	m.sink.SetVolume(float64(avg) / float64(maxVolume))
	return nil
}

func (m *Mixer) GetVolume() (int, int, error) {
	if m.sink == nil {
		return 0, 0, playererr.New(playererr.KindFunctionNotSupported, nil)
	}
	return m.l, m.r, nil
}

func (m *Mixer) SetOption(string, string) error  { return nil }
func (m *Mixer) GetOption(string) (string, bool) { return "", false }

func clamp(v int) int {
	if v < 0 {
		return 0
	}
	if v > maxVolume {
		return maxVolume
	}
	return v
}
