package manifest

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBinaryRoundTrip(t *testing.T) {
	m := testManifest()
	m.ID = 7
	m.CreatedAt = time.Unix(0, 1700000000123456789)
	m.Codec = "text"
	m.CodecAlleles = []string{"AT", "GC", "DEL"}
	m.RetainRare = true
	m.Clean = true
	m.AnnotationGen = 4
	m.AnnotatedPath = "sites/annotated-4.blk"
	m.SummaryPath = "taxa/summary-4.blk"

	data, err := m.MarshalBinary()
	require.NoError(t, err)

	got, err := Unmarshal(data)
	require.NoError(t, err)
	assert.True(t, m.CreatedAt.Equal(got.CreatedAt))
	got.CreatedAt = m.CreatedAt
	got.Version = m.Version
	assert.Equal(t, m, got)
}

func TestUnmarshal_Corrupt(t *testing.T) {
	data, err := testManifest().MarshalBinary()
	require.NoError(t, err)

	flipped := append([]byte(nil), data...)
	flipped[len(flipped)-1] ^= 0xFF
	_, err = Unmarshal(flipped)
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Unmarshal(data[:10])
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = Unmarshal(data[:len(data)-3])
	assert.ErrorIs(t, err, ErrCorrupt)

	badVersion := append([]byte(nil), data...)
	badVersion[4] = 9
	_, err = Unmarshal(badVersion)
	assert.ErrorIs(t, err, ErrIncompatibleVersion)
}
