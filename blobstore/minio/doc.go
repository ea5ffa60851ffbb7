// Package minio stores genotype containers in MinIO or another
// S3-compatible object store through the MinIO client.
//
//	client, err := minio.New("localhost:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	blobs := minioblob.NewStore(client, "genotypes", "maize-282/")
//	st, err := store.Open(ctx, blobs)
//
// Reads are ranged GETs. Wrap the store in blobstore.CachingStore to keep
// hot genotype blocks local.
package minio
