package player

import (
	"os"

	"github.com/kvalheim/audiocore/internal/decoder"
	"github.com/kvalheim/audiocore/internal/httpfetch"
	"github.com/kvalheim/audiocore/internal/trackcache"
)

// NewProbe builds the trackcache.ProbeFunc the track-info cache calls on
// a miss or staleness: open the path through reg/httpCfg, read its tags
// and duration, and stat its mtime (0 for remote sources, which are
// never re-probed once cached).
func NewProbe(reg *decoder.Registry, httpCfg httpfetch.Config) trackcache.ProbeFunc {
	return func(path string) (*trackcache.Track, error) {
		dec := decoder.New(path)
		if err := dec.Open(decoder.OpenConfig{Registry: reg, HTTP: httpCfg}); err != nil {
			return nil, err
		}
		defer dec.Close()

		comments, err := dec.ReadTags()
		if err != nil {
			return nil, err
		}

		var mtime int64
		if !dec.Remote() {
			if fi, statErr := os.Stat(path); statErr == nil {
				mtime = fi.ModTime().Unix()
			}
		}

		tc := make([]trackcache.Comment, len(comments))
		for i, c := range comments {
			tc[i] = trackcache.Comment{Key: c.Key, Value: c.Value}
		}

		return &trackcache.Track{
			Path:     path,
			Duration: dec.Duration(),
			Mtime:    mtime,
			Comments: tc,
		}, nil
	}
}
