// Package gcs stores genotype containers in Google Cloud Storage.
//
//	client, err := storage.NewClient(ctx)
//	blobs := gcs.NewStore(client.Bucket("genotypes"), "maize-282/")
//
// Manifests are written with a DoesNotExist precondition (see
// Store.PutIfNotExists), which gives concurrent writers of one container the
// compare-and-swap that S3 needs DynamoDB for.
package gcs
