// Package nullmixer is a mixer.Mixer that has no backend at all: every
// volume operation fails, exercising the rule that a missing mixer is
// only a fatal error when the caller actually asks for volume control —
// playback itself never requires one.
package nullmixer

import "github.com/kvalheim/audiocore/internal/playererr"

// Mixer implements mixer.Mixer with no backing device.
type Mixer struct{}

// New returns a mixer with no backend.
func New() *Mixer { return &Mixer{} }

func (*Mixer) Init() error { return nil }
func (*Mixer) Exit() error { return nil }

func (*Mixer) Open() (int, error) {
	return 0, playererr.New(playererr.KindFunctionNotSupported, nil)
}
func (*Mixer) Close() error { return nil }

func (*Mixer) SetVolume(int, int) error {
	return playererr.New(playererr.KindFunctionNotSupported, nil)
}

func (*Mixer) GetVolume() (int, int, error) {
	return 0, 0, playererr.New(playererr.KindFunctionNotSupported, nil)
}

func (*Mixer) SetOption(string, string) error  { return nil }
func (*Mixer) GetOption(string) (string, bool) { return "", false }
