// Package hash provides the CRC32-Castagnoli checksum used for container
// blocks, manifests and S3 upload integrity headers.
package hash
