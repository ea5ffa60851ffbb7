// Package s3 stores genotype containers in Amazon S3.
//
//	cfg, err := config.LoadDefaultConfig(ctx)
//	blobs := s3.NewStore(awss3.NewFromConfig(cfg), "genotypes", "maize-282/")
//	st, err := store.Open(ctx, blobs)
//
// Blocks are read with ranged GETs and written with the multipart upload
// manager; whole-blob puts carry a CRC32C checksum.
//
// S3 has no compare-and-swap on overwrites, so concurrent writers of one
// container coordinate through [DDBCommitStore], which keeps the CURRENT
// manifest pointer in a DynamoDB table with conditional writes.
package s3
