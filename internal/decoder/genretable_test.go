package decoder

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveGenre(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"(17)", "Rock"},
		{"(0)", "Blues"},
		{"(147)", "Synthpop"},
		{"(17)Rock Remix", "Rock Remix"},
		{"(999)", "(999)"},
		{"Progressive House", "Progressive House"},
		{"", ""},
		{"(", "("},
		{"()", "()"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ResolveGenre(c.raw), c.raw)
	}
}
