package nullmixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kvalheim/audiocore/internal/playererr"
)

func TestNullMixerHasNoBackend(t *testing.T) {
	m := New()
	require.NoError(t, m.Init())

	_, err := m.Open()
	var perr *playererr.Error
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, playererr.KindFunctionNotSupported, perr.Kind)

	err = m.SetVolume(50, 50)
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, playererr.KindFunctionNotSupported, perr.Kind)

	_, _, err = m.GetVolume()
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, playererr.KindFunctionNotSupported, perr.Kind)

	require.NoError(t, m.Close())
	require.NoError(t, m.Exit())
}

func TestNullMixerOptionsAreNoOps(t *testing.T) {
	m := New()
	assert.NoError(t, m.SetOption("key", "value"))
	_, ok := m.GetOption("key")
	assert.False(t, ok)
}
