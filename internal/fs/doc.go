// Package fs abstracts the local file system used by blobstore.LocalStore.
//
// [LocalFS] forwards to package os. [FaultyFS] wraps any [FileSystem] and
// injects read, write, sync, close or rename failures for files whose name
// contains a pattern, so container I/O failure paths can be tested:
//
//	ffs := fs.NewFaultyFS(nil)
//	ffs.AddRule("geno-", fs.Fault{FailAfterBytes: -1, FailOnRead: true})
//
// [WriteFileAtomic] is the only write path LocalStore uses: a blob is
// written to a temporary sibling, synced and renamed into place.
//
// Operations take no context; local file calls cannot be interrupted.
package fs
