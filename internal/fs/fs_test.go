package fs

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalFS(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "taxa")
	lfs := LocalFS{}
	require.NoError(t, lfs.MkdirAll(dir, 0o755))

	path := filepath.Join(dir, "geno-0.blk")
	f, err := lfs.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o644)
	require.NoError(t, err)
	_, err = f.Write([]byte("hello"))
	require.NoError(t, err)
	require.NoError(t, f.Sync())
	require.NoError(t, f.Close())

	info, err := lfs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	entries, err := lfs.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)

	renamed := filepath.Join(dir, "geno-1.blk")
	require.NoError(t, lfs.Rename(path, renamed))
	require.NoError(t, lfs.Remove(renamed))

	ok, err := Exists(lfs, renamed)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteFileAtomic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sites", "desc-1-0.blk")

	require.NoError(t, WriteFileAtomic(Default, path, []byte("v1"), 0o644))
	require.NoError(t, WriteFileAtomic(Default, path, []byte("v2"), 0o644))

	data, err := ReadFile(Default, path)
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))

	ok, err := Exists(Default, path+TempSuffix)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestWriteFileAtomic_Faults(t *testing.T) {
	tests := []struct {
		name  string
		fault Fault
	}{
		{"write", Fault{FailAfterBytes: 1}},
		{"sync", Fault{FailAfterBytes: -1, FailOnSync: true}},
		{"close", Fault{FailAfterBytes: -1, FailOnClose: true}},
		{"rename", Fault{FailAfterBytes: -1, FailOnRename: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			path := filepath.Join(dir, "manifest-1")
			require.NoError(t, WriteFileAtomic(Default, path, []byte("old"), 0o644))

			ffs := NewFaultyFS(nil)
			ffs.AddRule("manifest-", tt.fault)

			err := WriteFileAtomic(ffs, path, []byte("new content"), 0o644)
			assert.ErrorIs(t, err, ErrInjected)

			data, err := ReadFile(Default, path)
			require.NoError(t, err)
			assert.Equal(t, "old", string(data))

			ok, err := Exists(Default, path+TempSuffix)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestFaultyFS_Read(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "geno-3.blk")
	require.NoError(t, os.WriteFile(path, []byte("ACGT"), 0o644))

	boom := errors.New("disk gone")
	ffs := NewFaultyFS(nil)
	ffs.AddRule("geno-", Fault{FailAfterBytes: -1, FailOnRead: true, Err: boom})

	_, err := ReadFile(ffs, path)
	assert.ErrorIs(t, err, boom)

	ffs.ClearRules()
	data, err := ReadFile(ffs, path)
	require.NoError(t, err)
	assert.Equal(t, "ACGT", string(data))
}

func TestFaultyFS_LongestPatternWins(t *testing.T) {
	ffs := NewFaultyFS(nil)
	ffs.AddRule("taxa/", Fault{FailAfterBytes: -1, FailOnRead: true})
	ffs.AddRule("taxa/7/", Fault{FailAfterBytes: -1})

	f, ok := ffs.match("root/taxa/7/geno-0.blk")
	require.True(t, ok)
	assert.False(t, f.FailOnRead)

	f, ok = ffs.match("root/taxa/8/geno-0.blk")
	require.True(t, ok)
	assert.True(t, f.FailOnRead)

	_, ok = ffs.match("root/sites/desc-0.blk")
	assert.False(t, ok)
}
