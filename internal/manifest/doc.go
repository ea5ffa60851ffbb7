// Package manifest persists the versioned description of a genotype container.
//
// A manifest records the container's global attributes (allele limits, codec,
// block size, compression), the ordered taxon list with stable taxon ids, the
// location of the site table, and whether derived site annotations are
// current.
//
// # Binary Format
//
//	Header (16 bytes):
//	  Magic    (4 bytes) - 0x47545354 ("GTST")
//	  Version  (4 bytes) - format version (currently 1)
//	  Checksum (4 bytes) - CRC32C of payload
//	  Length   (4 bytes) - payload length in bytes
//
// Integers are little-endian; strings and string lists are length-prefixed.
//
// # Commit Protocol
//
// Save writes manifest-NNNNNN with a create-only put, then points CURRENT at
// it. Two writers racing for the same version fail the first step instead of
// overwriting each other. On S3, CURRENT is arbitrated by DynamoDB
// (see blobstore/s3.DDBCommitStore).
package manifest
