package hash

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCRC32C(t *testing.T) {
	// RFC 3720 test vector: 32 bytes of zeros.
	assert.Equal(t, uint32(0x8a9136aa), CRC32C(make([]byte, 32)))

	data := []byte("genotype block")
	h := NewCRC32C()
	_, _ = h.Write(data[:5])
	_, _ = h.Write(data[5:])
	assert.Equal(t, CRC32C(data), h.Sum32())
	assert.Equal(t, CRC32C(data), UpdateCRC32C(UpdateCRC32C(0, data[:5]), data[5:]))
}
