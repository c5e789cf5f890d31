package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePoint_RoundTrip(t *testing.T) {
	lat, lon := 30.2672, -97.7431
	data, err := EncodePoint(&lat, &lon)
	require.NoError(t, err)
	require.NotEmpty(t, data)
	assert.Equal(t, byte(1), data[0], "little endian")

	gotLat, gotLon, err := DecodePoint(data)
	require.NoError(t, err)
	assert.InDelta(t, lat, gotLat, 1e-12)
	assert.InDelta(t, lon, gotLon, 1e-12)
}

func TestEncodePoint_Missing(t *testing.T) {
	lat := 1.0
	data, err := EncodePoint(&lat, nil)
	require.NoError(t, err)
	assert.Nil(t, data)
}

func TestDecodePoint_Invalid(t *testing.T) {
	_, _, err := DecodePoint([]byte{0x01, 0x02})
	assert.Error(t, err)
}
