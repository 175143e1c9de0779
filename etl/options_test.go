package etl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teranos/legisync/errors"
)

func TestOptions_Flags(t *testing.T) {
	o := Options{Extra: map[string]string{"membros": "true", "off": "false", "paginas": "3", "bad": "x"}}

	assert.True(t, o.BoolFlag("membros"))
	assert.False(t, o.BoolFlag("off"))
	assert.False(t, o.BoolFlag("missing"))

	n, err := o.IntFlag("paginas", 1)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = o.IntFlag("missing", 7)
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = o.IntFlag("bad", 0)
	assert.True(t, errors.IsValidation(err))

	v, ok := o.Flag("paginas")
	assert.True(t, ok)
	assert.Equal(t, "3", v)
}

func TestDestination(t *testing.T) {
	assert.True(t, DestinationMock.UsesWriter())
	assert.True(t, DestinationEmulatedStore.UsesWriter())
	assert.False(t, DestinationLocalFiles.UsesWriter())
	assert.False(t, Destination("ftp").Valid())
}
