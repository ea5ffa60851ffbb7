package mmap

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "block.blk")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	return path
}

func TestMapping_ReadAt(t *testing.T) {
	m, err := Open(writeTemp(t, []byte("ACGTNACGT")))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 9, m.Size())
	assert.Equal(t, []byte("ACGTNACGT"), m.Bytes())

	buf := make([]byte, 4)
	n, err := m.ReadAt(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
	assert.Equal(t, "ACGT", string(buf))

	long := make([]byte, 10)
	n, err = m.ReadAt(long, 5)
	assert.Equal(t, 4, n)
	assert.Equal(t, io.EOF, err)

	n, err = m.ReadAt(buf, 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)
}

func TestMapping_Slice(t *testing.T) {
	m, err := Open(writeTemp(t, []byte("0123456789")))
	require.NoError(t, err)
	defer m.Close()

	s, err := m.Slice(2, 3)
	require.NoError(t, err)
	assert.Equal(t, "234", string(s))
	assert.Equal(t, 3, cap(s))

	_, err = m.Slice(8, 3)
	assert.ErrorIs(t, err, ErrOutOfBounds)
	_, err = m.Slice(-1, 1)
	assert.ErrorIs(t, err, ErrOutOfBounds)
}

func TestMapping_Empty(t *testing.T) {
	m, err := Open(writeTemp(t, nil))
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Size())
	assert.NoError(t, m.Advise(AccessRandom))
	n, err := m.ReadAt(make([]byte, 1), 0)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)
}

func TestMapping_AfterClose(t *testing.T) {
	m, err := Open(writeTemp(t, []byte("data")))
	require.NoError(t, err)
	require.NoError(t, m.Advise(AccessRandom))

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())

	assert.Nil(t, m.Bytes())
	assert.ErrorIs(t, m.Advise(AccessRandom), ErrClosed)
	_, err = m.Slice(0, 1)
	assert.ErrorIs(t, err, ErrClosed)
	_, err = m.ReadAt(make([]byte, 1), 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestOpen_Missing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}
