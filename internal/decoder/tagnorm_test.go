package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTXXXKey(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"REPLAYGAIN_TRACK_GAIN", "replaygain_track_gain"},
		{"txxx:album artist", "albumartist"},
		{"  ALBUMARTISTSORT  ", "albumartistsort"},
		{"not a promoted key", ""},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeTXXXKey(c.raw), c.raw)
	}
}

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"1999", "1999"},
		{"1999-03-21T00:00:00", "1999"},
		{"99", "99"},
		{"", ""},
		{"unknown", "unknown"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, NormalizeDate(c.raw), c.raw)
	}
}

func TestSplitSlash(t *testing.T) {
	cases := []struct {
		raw       string
		num, total int
	}{
		{"3/12", 3, 12},
		{"3", 3, 0},
		{"/12", 0, 12},
		{"", 0, 0},
		{" 3 / 12 ", 3, 12},
	}
	for _, c := range cases {
		num, total := SplitSlash(c.raw)
		assert.Equal(t, c.num, num, c.raw)
		assert.Equal(t, c.total, total, c.raw)
	}
}
