package upstream

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodePayload_ListEnvelope(t *testing.T) {
	body := `{"dados":[{"id":1},{"id":2}],"links":[{"rel":"self","href":"a"},{"rel":"next","href":"b"}]}`

	p, err := DecodePayload([]byte(body))
	require.NoError(t, err)

	assert.Equal(t, ShapeList, p.Shape)
	assert.Equal(t, 2, p.Len())
	assert.JSONEq(t, `{"id":2}`, string(p.Items()[1]))

	next, ok := p.Next()
	assert.True(t, ok)
	assert.Equal(t, "b", next)
}

func TestDecodePayload_SingleEnvelope(t *testing.T) {
	p, err := DecodePayload([]byte(`{"dados":{"id":204554,"nomeCivil":"Fulana"}}`))
	require.NoError(t, err)

	assert.Equal(t, ShapeSingle, p.Shape)
	assert.Equal(t, 1, p.Len())

	var dep struct {
		ID        int    `json:"id"`
		NomeCivil string `json:"nomeCivil"`
	}
	require.NoError(t, p.Decode(&dep))
	assert.Equal(t, 204554, dep.ID)
	assert.Equal(t, "Fulana", dep.NomeCivil)

	_, ok := p.Next()
	assert.False(t, ok)
}

func TestDecodePayload_Bare(t *testing.T) {
	p, err := DecodePayload([]byte(`[{"a":1}]`))
	require.NoError(t, err)
	assert.Equal(t, ShapeList, p.Shape)
	assert.Equal(t, 1, p.Len())

	p, err = DecodePayload([]byte(`{"a":1}`))
	require.NoError(t, err)
	assert.Equal(t, ShapeSingle, p.Shape)
}

func TestDecodePayload_Empty(t *testing.T) {
	for _, body := range []string{"", "  ", `{"dados":null}`, `null`} {
		p, err := DecodePayload([]byte(body))
		require.NoError(t, err, body)
		assert.Equal(t, 0, p.Len(), body)
	}
}

func TestDecodePayload_Invalid(t *testing.T) {
	_, err := DecodePayload([]byte(`{"dados":[1,`))
	assert.Error(t, err)

	_, err = DecodePayload([]byte(`"text"`))
	assert.Error(t, err)
}

func TestPayload_DecodeRejectsList(t *testing.T) {
	p := Payload{Shape: ShapeList}
	var v map[string]any
	assert.Error(t, p.Decode(&v))
}
