// Package mmap maps local container blobs read-only into memory.
//
// Genotype and descriptor blocks are read with random access, one block at a
// time, so LocalStore maps each blob once and serves ReadAt calls straight
// from the mapping:
//
//	m, err := mmap.Open(path)
//	if err != nil { ... }
//	defer m.Close()
//	_ = m.Advise(mmap.AccessRandom)
//	block, err := m.Slice(off, n)
//
// Unix uses mmap(2) and madvise(2). Windows uses CreateFileMapping and
// MapViewOfFile; Advise is a no-op there.
//
// A Mapping is safe for concurrent readers. Slices returned by Bytes and
// Slice must not be used after Close.
package mmap
