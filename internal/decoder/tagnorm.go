package decoder

import (
	"strconv"
	"strings"
)

// Comment is a single normalized (key, value) tag pair. Keys are
// case-insensitive by convention; callers should compare with
// strings.EqualFold.
type Comment struct {
	Key   string
	Value string
}

// canonicalTXXXKeys maps the lowercased, normalized form of a free-text
// TXXX/user-comment key to the canonical key every plugin promotes it to.
var canonicalTXXXKeys = map[string]string{
	"replaygain_track_gain": "replaygain_track_gain",
	"replaygain_track_peak": "replaygain_track_peak",
	"replaygain_album_gain": "replaygain_album_gain",
	"replaygain_album_peak": "replaygain_album_peak",
	"album artist":          "albumartist",
	"albumartist":           "albumartist",
	"albumartistsort":       "albumartistsort",
	"compilation":           "compilation",
}

// NormalizeTXXXKey resolves a raw TXXX/Vorbis-comment key to its canonical
// form, or "" if it isn't one of the promoted keys (the caller should then
// keep the raw key verbatim). Shared across plugins so every codec's tag
// reader promotes the same set of keys.
func NormalizeTXXXKey(raw string) string {
	key := strings.ToLower(strings.TrimSpace(raw))
	key = strings.TrimPrefix(key, "txxx:")
	if canon, ok := canonicalTXXXKeys[key]; ok {
		return canon
	}
	return ""
}

// NormalizeDate reduces an ID3v2 date-like frame value (TYER "1999", TDRC
// "1999-03-21T00:00:00", or a bare year) to a 4-digit year string. Anything
// that doesn't yield 4 leading digits is returned unchanged.
func NormalizeDate(raw string) string {
	raw = strings.TrimSpace(raw)
	if len(raw) < 4 {
		return raw
	}
	for _, c := range raw[:4] {
		if c < '0' || c > '9' {
			return raw
		}
	}
	return raw[:4]
}

// SplitSlash parses an ID3v2-style "N/M" track or disc number frame,
// returning (num, total). A missing side of the slash is reported as 0.
// "N" alone yields (N, 0); "/M" yields (0, M).
func SplitSlash(raw string) (num, total int) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, 0
	}
	parts := strings.SplitN(raw, "/", 2)
	num, _ = strconv.Atoi(strings.TrimSpace(parts[0]))
	if len(parts) == 2 {
		total, _ = strconv.Atoi(strings.TrimSpace(parts[1]))
	}
	return num, total
}
