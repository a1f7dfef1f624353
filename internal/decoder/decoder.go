// Package decoder implements the pluggable input-plugin abstraction: a
// registry of codec plugins keyed by file extension or HTTP Content-Type,
// and the per-stream Decoder object the player engine drives to read,
// seek and tag an open track.
package decoder

import (
	"errors"
	"io"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kvalheim/audiocore/internal/httpfetch"
	"github.com/kvalheim/audiocore/internal/pcmfmt"
	"github.com/kvalheim/audiocore/internal/playererr"
)

// MaxZeroProgressReads bounds how many consecutive EAGAIN reads the
// producer will tolerate before treating the stream as stalled (EOF). A
// zero-byte read is already EOF and is not counted here.
const MaxZeroProgressReads = 5

// ErrAgain is returned by Decoder.Read when the non-blocking read found no
// data currently available, as distinct from end-of-stream.
var ErrAgain = errors.New("decoder: no data available")

// IsAgain reports whether err is (or wraps) ErrAgain.
func IsAgain(err error) bool { return errors.Is(err, ErrAgain) }

// pollTimeout bounds how long a single non-blocking read waits for data
// before delegating back to the caller.
const pollTimeout = 50 * time.Millisecond

// Stream is the per-codec object a Plugin hands back from Open. It reads
// raw PCM at the source's native Format, with Seek/ReadTags/Duration
// semantics.
type Stream interface {
	Read(p []byte) (int, error)
	// Seek repositions to the given offset in seconds. Returns
	// playererr.FunctionNotSupported if the underlying source cannot seek
	// (e.g. remote streams).
	Seek(seconds float64) error
	ReadTags() ([]Comment, error)
	// Duration returns the track length in whole seconds, or -1 if unknown.
	Duration() int32
	SampleFormat() pcmfmt.Format
	Close() error
}

// Plugin is a single codec's vtable: the extensions/MIME types it claims,
// and constructors for local-file and HTTP-streamed sources. A plugin that
// doesn't support one of the two returns playererr.FunctionNotSupported.
type Plugin interface {
	Name() string
	Extensions() []string
	MIMETypes() []string
	OpenFile(f *os.File, path string) (Stream, error)
	OpenStream(r io.Reader) (Stream, error)
}

// Registry maps file extensions and HTTP MIME types to the Plugin that
// claims them, case-insensitively, in O(registered-plugins) per lookup.
type Registry struct {
	plugins []Plugin
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry { return &Registry{} }

// Register adds p to the registry. Plugins are matched in registration
// order; the first plugin claiming an extension/MIME wins.
func (r *Registry) Register(p Plugin) {
	r.plugins = append(r.plugins, p)
}

// RegisterBuiltins registers the bundled wav, flac, mp3 and tone plugins,
// in that order.
func (r *Registry) RegisterBuiltins(wav, flac, mp3, tone Plugin) {
	if wav != nil {
		r.Register(wav)
	}
	if flac != nil {
		r.Register(flac)
	}
	if mp3 != nil {
		r.Register(mp3)
	}
	if tone != nil {
		r.Register(tone)
	}
}

// ByExtension finds the plugin claiming ext (with or without a leading
// dot), case-insensitively.
func (r *Registry) ByExtension(ext string) (Plugin, bool) {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, p := range r.plugins {
		for _, e := range p.Extensions() {
			if strings.ToLower(strings.TrimPrefix(e, ".")) == ext {
				return p, true
			}
		}
	}
	return nil, false
}

// ByMIME finds the plugin claiming the given Content-Type, ignoring any
// ";charset=..." suffix, case-insensitively.
func (r *Registry) ByMIME(mime string) (Plugin, bool) {
	if idx := strings.IndexByte(mime, ';'); idx >= 0 {
		mime = mime[:idx]
	}
	mime = strings.ToLower(strings.TrimSpace(mime))
	for _, p := range r.plugins {
		for _, m := range p.MIMETypes() {
			if strings.ToLower(m) == mime {
				return p, true
			}
		}
	}
	return nil, false
}

// Decoder is the per-stream decoder object: a plugin vtable bound to one
// open source (local file or HTTP stream), plus the engine-level state
// layered on top of it — the remote flag, the precomputed PCM normalizer,
// and the metadata-changed flag Icy/format hooks set.
type Decoder struct {
	path   string
	remote bool

	plugin Plugin
	stream Stream

	file *os.File
	resp *httpfetch.Response

	format    pcmfmt.Format
	normalize pcmfmt.Normalizer

	eof             bool
	metadataChanged bool
}

// New allocates a Decoder for path without touching I/O; Open performs
// the actual file or network access.
func New(path string) *Decoder {
	return &Decoder{path: path}
}

// OpenConfig bundles the registry and HTTP settings Open needs to dispatch
// local vs. remote sources.
type OpenConfig struct {
	Registry *Registry
	HTTP     httpfetch.Config
}

// Open resolves and opens the underlying stream: for local paths, by
// extension; for http(s) URLs, via httpfetch and Content-Type dispatch.
// On success the PCM normalizer is precomputed from the stream's reported
// sample format.
func (d *Decoder) Open(cfg OpenConfig) error {
	if strings.HasPrefix(d.path, "http://") || strings.HasPrefix(d.path, "https://") {
		return d.openRemote(cfg)
	}
	return d.openLocal(cfg)
}

func (d *Decoder) openLocal(cfg OpenConfig) error {
	ext := filepath.Ext(d.path)
	plugin, ok := cfg.Registry.ByExtension(ext)
	if !ok {
		return playererr.New(playererr.KindUnrecognizedFileType, nil)
	}

	f, err := os.Open(d.path)
	if err != nil {
		return playererr.Errno(err)
	}

	stream, err := plugin.OpenFile(f, d.path)
	if err != nil {
		f.Close()
		return err
	}

	d.plugin = plugin
	d.file = f
	d.stream = stream
	d.remote = false
	d.format = stream.SampleFormat()
	d.normalize = pcmfmt.NewNormalizer(d.format)
	return nil
}

func (d *Decoder) openRemote(cfg OpenConfig) error {
	resp, err := httpfetch.Fetch(d.path, cfg.HTTP)
	if err != nil {
		return err
	}

	contentType := ""
	if v, ok := resp.Header["Content-Type"]; ok && len(v) > 0 {
		contentType = v[0]
	}
	plugin, ok := cfg.Registry.ByMIME(contentType)
	if !ok {
		resp.Close()
		return playererr.New(playererr.KindUnrecognizedFileType, nil)
	}

	stream, err := plugin.OpenStream(resp)
	if err != nil {
		resp.Close()
		return err
	}

	d.plugin = plugin
	d.resp = resp
	d.stream = stream
	d.remote = true
	d.format = stream.SampleFormat()
	d.normalize = pcmfmt.NewNormalizer(d.format)
	return nil
}

// Read performs a bounded non-blocking read: a short poll for availability
// (remote sources only; local file reads are treated as always-ready),
// then a delegated plugin read, then in-place/expanding PCM
// normalization. The returned count is in bytes of normalized (not
// source) PCM. A zero-byte, nil-error return marks EOF.
func (d *Decoder) Read(buf []byte) (int, error) {
	if d.stream == nil {
		return 0, playererr.New(playererr.KindInternal, errors.New("read before open"))
	}
	if d.eof {
		return 0, nil
	}

	if d.remote {
		if err := d.resp.SetReadDeadline(pollTimeout); err != nil {
			slog.Debug("decoder: set read deadline failed", "path", d.path, "error", err)
		}
	}

	scale := d.normalize.Scale()
	srcBuf := buf
	if scale != 1 {
		srcBuf = make([]byte, len(buf)/scale)
	}

	n, err := d.stream.Read(srcBuf)
	if err != nil {
		if d.remote && isTimeout(err) {
			return 0, ErrAgain
		}
		if errors.Is(err, io.EOF) {
			d.eof = true
			return 0, nil
		}
		return 0, playererr.Errno(err)
	}
	if n == 0 {
		d.eof = true
		return 0, nil
	}

	frames := n / d.format.BytesPerFrame()
	if frames == 0 {
		return 0, nil
	}

	if scale == 1 {
		d.normalize.ConvertInPlace(buf[:n], frames)
		if d.remote && d.resp.TitleChanged() {
			d.metadataChanged = true
		}
		return n, nil
	}

	written := d.normalize.Convert(buf, srcBuf[:n], frames)
	if d.remote && d.resp.TitleChanged() {
		d.metadataChanged = true
	}
	return written, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// Seek repositions the stream. Disallowed on remote sources.
func (d *Decoder) Seek(seconds float64) error {
	if d.remote {
		return playererr.New(playererr.KindFunctionNotSupported, nil)
	}
	if err := d.stream.Seek(seconds); err != nil {
		return err
	}
	d.eof = false
	return nil
}

// ReadTags returns the stream's normalized comment list.
func (d *Decoder) ReadTags() ([]Comment, error) {
	if d.stream == nil {
		return nil, playererr.New(playererr.KindInternal, errors.New("read tags before open"))
	}
	return d.stream.ReadTags()
}

// Duration returns the cached track length in seconds, -1 if unknown
// (always the case for remote streams).
func (d *Decoder) Duration() int32 {
	if d.remote {
		return -1
	}
	if d.stream == nil {
		return -1
	}
	return d.stream.Duration()
}

// SampleFormat returns the format precomputed at Open.
func (d *Decoder) SampleFormat() pcmfmt.Format { return d.normalize.Out() }

// Remote reports whether this decoder is reading from an HTTP source.
func (d *Decoder) Remote() bool { return d.remote }

// MetadataChanged reports and clears the metadata-changed flag Icy title
// updates (or a future format-specific hook) set.
func (d *Decoder) MetadataChanged() bool {
	changed := d.metadataChanged
	d.metadataChanged = false
	return changed
}

// Close releases the underlying file or HTTP connection.
func (d *Decoder) Close() error {
	var err error
	if d.stream != nil {
		err = d.stream.Close()
	}
	if d.file != nil {
		d.file.Close()
	}
	if d.resp != nil {
		d.resp.Close()
	}
	return err
}
