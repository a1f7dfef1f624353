package httpfetch

import (
	"bufio"
	"io"
	"regexp"
	"sync"
)

// icyReader wraps a response body that interleaves Shoutcast/Icecast inline
// metadata every metaInt bytes of audio. Read strips the metadata blocks
// transparently so callers only ever see PCM/compressed audio bytes; the
// most recently seen StreamTitle is exposed via Title/TitleChanged.
type icyReader struct {
	src     *bufio.Reader
	metaInt int
	left    int // audio bytes remaining before the next metadata block

	mu      sync.Mutex
	title   string
	changed bool
}

func newIcyReader(src *bufio.Reader, metaInt int) *icyReader {
	return &icyReader{src: src, metaInt: metaInt, left: metaInt}
}

var streamTitleRE = regexp.MustCompile(`StreamTitle='([^']*)';`)

func (r *icyReader) Read(p []byte) (int, error) {
	if r.metaInt <= 0 {
		return r.src.Read(p)
	}

	if r.left == 0 {
		if err := r.consumeMetaBlock(); err != nil {
			return 0, err
		}
		r.left = r.metaInt
	}

	max := len(p)
	if max > r.left {
		max = r.left
	}
	n, err := r.src.Read(p[:max])
	r.left -= n
	return n, err
}

func (r *icyReader) consumeMetaBlock() error {
	lenByte, err := r.src.ReadByte()
	if err != nil {
		return err
	}
	blockLen := int(lenByte) * 16
	if blockLen == 0 {
		return nil
	}
	block := make([]byte, blockLen)
	if _, err := io.ReadFull(r.src, block); err != nil {
		return err
	}
	if m := streamTitleRE.FindSubmatch(block); m != nil {
		title := string(m[1])
		r.mu.Lock()
		if title != r.title {
			r.title = title
			r.changed = true
		}
		r.mu.Unlock()
	}
	return nil
}

// Title returns the most recently parsed StreamTitle value.
func (r *icyReader) Title() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.title
}

// TitleChanged reports and clears whether the title changed since the last
// call, mirroring the player's poll-and-clear metadata-changed flag.
func (r *icyReader) TitleChanged() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	changed := r.changed
	r.changed = false
	return changed
}
