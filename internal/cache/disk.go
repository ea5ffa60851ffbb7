package cache

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	gfs "github.com/hupe1980/gtstore/internal/fs"
	"golang.org/x/sync/semaphore"
)

// DiskCacheConfig configures a DiskBlockCache.
type DiskCacheConfig struct {
	// RootDir holds the cached block files.
	RootDir string
	// MaxSizeBytes bounds the summed size of cached files.
	MaxSizeBytes int64
	// MaxConcurrentWrites bounds background writes. Defaults to 16.
	MaxConcurrentWrites int64
}

type diskEntry struct {
	path string
	size int64
}

// DiskBlockCache is a BlockCache that keeps blocks as files below RootDir.
// It is the second tier for remote blob stores: blocks fetched from S3, MinIO
// or GCS survive process restarts.
//
// Set writes in the background and drops the block when all write slots are
// busy. Files are laid out as <RootDir>/<Path>/<kind>-<namespace>-<block>.blk.
type DiskBlockCache struct {
	rootDir  string
	index    *LRU[Key, diskEntry]
	writeSem *semaphore.Weighted
	wg       sync.WaitGroup

	hits   atomic.Int64
	misses atomic.Int64
}

// NewDiskBlockCache creates the cache and indexes the files already present.
func NewDiskBlockCache(cfg DiskCacheConfig) (*DiskBlockCache, error) {
	if err := os.MkdirAll(cfg.RootDir, 0o755); err != nil {
		return nil, err
	}
	writes := cfg.MaxConcurrentWrites
	if writes <= 0 {
		writes = 16
	}
	c := &DiskBlockCache{
		rootDir:  cfg.RootDir,
		index:    NewLRU[Key, diskEntry](cfg.MaxSizeBytes, func(e diskEntry) int64 { return e.size }, nil),
		writeSem: semaphore.NewWeighted(writes),
	}
	c.index.OnEvict(func(_ Key, e diskEntry) { _ = os.Remove(e.path) })

	err := filepath.WalkDir(c.rootDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil //nolint:nilerr // unreadable entries are skipped
		}
		if strings.HasSuffix(path, gfs.TempSuffix) {
			_ = os.Remove(path)
			return nil
		}
		key, ok := c.parsePath(path)
		if !ok {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil //nolint:nilerr
		}
		c.index.Set(key, diskEntry{path: path, size: info.Size()})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (c *DiskBlockCache) pathOf(key Key) string {
	name := fmt.Sprintf("%d-%d-%d.blk", key.Kind, key.Namespace, key.Block)
	dir := "_misc"
	if key.Path != "" {
		dir = filepath.FromSlash(key.Path)
	}
	return filepath.Join(c.rootDir, dir, name)
}

func (c *DiskBlockCache) parsePath(path string) (Key, bool) {
	rel, err := filepath.Rel(c.rootDir, path)
	if err != nil {
		return Key{}, false
	}
	dir, file := filepath.Split(rel)

	var (
		kind      uint8
		namespace uint64
		block     uint64
	)
	if n, err := fmt.Sscanf(file, "%d-%d-%d.blk", &kind, &namespace, &block); err != nil || n != 3 {
		return Key{}, false
	}
	key := Key{Kind: Kind(kind), Namespace: namespace, Block: block}
	if dir = filepath.ToSlash(strings.TrimSuffix(dir, string(filepath.Separator))); dir != "_misc" {
		key.Path = dir
	}
	return key, true
}

// Get reads a cached block from disk.
func (c *DiskBlockCache) Get(key Key) ([]byte, bool) {
	ent, ok := c.index.Get(key)
	if !ok {
		c.misses.Add(1)
		return nil, false
	}
	data, err := os.ReadFile(ent.path)
	if err != nil {
		c.index.Invalidate(func(k Key) bool { return k == key })
		c.misses.Add(1)
		return nil, false
	}
	c.hits.Add(1)
	return data, true
}

// Set schedules a background write of b. Blocks are immutable, so an already
// cached key is left alone.
func (c *DiskBlockCache) Set(key Key, b []byte) {
	if c.index.Contains(key) || int64(len(b)) > c.index.Capacity() {
		return
	}
	if !c.writeSem.TryAcquire(1) {
		return
	}
	path := c.pathOf(key)
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		defer c.writeSem.Release(1)
		if err := gfs.WriteFileAtomic(gfs.Default, path, b, 0o644); err != nil {
			return
		}
		c.index.Set(key, diskEntry{path: path, size: int64(len(b))})
	}()
}

// Invalidate deletes matching blocks from disk.
func (c *DiskBlockCache) Invalidate(predicate func(key Key) bool) int {
	return c.index.Invalidate(predicate)
}

// Flush waits for pending background writes.
func (c *DiskBlockCache) Flush() { c.wg.Wait() }

// Close waits for pending background writes. Cached files stay on disk.
func (c *DiskBlockCache) Close() error {
	c.wg.Wait()
	return nil
}

func (c *DiskBlockCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

// Size returns the summed size of the indexed files.
func (c *DiskBlockCache) Size() int64 { return c.index.Size() }
