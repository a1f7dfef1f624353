// Package output defines the uniform output-sink abstraction the
// consumer thread drives: open/close/write/pause/unpause, non-blocking
// writes that never partially write within a frame, and a buffer-space
// query the consumer polls instead of blocking on the device. Built-in
// sinks live in output/otosink (a real device via ebitengine/oto) and
// output/nullsink (a simulated device for tests).
package output

import "github.com/kvalheim/audiocore/internal/pcmfmt"

// Sink is the vtable every output backend implements: init, exit, open,
// close, write, pause, unpause, buffer space, and option get/set.
type Sink interface {
	Init() error
	Exit() error

	// Open prepares the device for format. Returns a SAMPLE_FORMAT
	// playererr.Error if the device cannot accept format.
	Open(format pcmfmt.Format) error
	Close() error

	// Write is non-blocking: it returns the number of bytes actually
	// accepted (which may be 0 when the device is full) and never
	// partially writes within a single frame. The player never issues
	// more than one outstanding Write concurrently.
	Write(buf []byte) (int, error)

	Pause() error
	Unpause() error

	// BufferSpace returns the currently free bytes, or -1 on device
	// error.
	BufferSpace() int

	SetOption(key, value string) error
	GetOption(key string) (string, bool)
}
