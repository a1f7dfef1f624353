package decoder

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/dhowden/tag"
)

// ReadLocalTags opens path independently of any active decode stream and
// extracts a normalized comment list via dhowden/tag, applying date,
// genre and TXXX/track-disc reductions. It is shared by every local-file
// plugin so the reduction rules live in one place.
func ReadLocalTags(path string) ([]Comment, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	m, err := tag.ReadFrom(f)
	if err != nil {
		return nil, fmt.Errorf("decoder: read tags from %s: %w", path, err)
	}

	var comments []Comment
	add := func(key, value string) {
		if value == "" {
			return
		}
		comments = append(comments, Comment{Key: key, Value: value})
	}

	add("title", m.Title())
	add("artist", m.Artist())
	add("album", m.Album())
	add("albumartist", m.AlbumArtist())
	add("composer", m.Composer())
	if g := m.Genre(); g != "" {
		add("genre", ResolveGenre(g))
	}
	if y := m.Year(); y != 0 {
		add("date", NormalizeDate(strconv.Itoa(y)))
	}
	if num, _ := m.Track(); num != 0 {
		add("tracknumber", strconv.Itoa(num))
	}
	if num, _ := m.Disc(); num != 0 {
		add("discnumber", strconv.Itoa(num))
	}
	if c := m.Comment(); c != "" {
		add("comment", c)
	}

	for rawKey, rawVal := range m.Raw() {
		s, ok := rawVal.(string)
		if !ok {
			continue
		}
		canon := NormalizeTXXXKey(rawKey)
		if canon == "" {
			continue
		}
		if strings.HasSuffix(canon, "gain") || strings.HasSuffix(canon, "peak") ||
			canon == "albumartist" || canon == "albumartistsort" || canon == "compilation" {
			add(canon, s)
		}
	}

	return comments, nil
}
