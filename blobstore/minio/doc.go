// Package minio provides a blobstore.Store backed by MinIO or any
// S3-compatible object store, so fleets can share one vocabulary artifact
// instead of provisioning it onto every robot.
//
//	client, err := minio.New("minio.fleet.local:9000", &minio.Options{
//	    Creds: credentials.NewStaticV4(accessKey, secretKey, ""),
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	store := minioblob.NewStore(client, "slam-artifacts", "vocabularies/")
//	voc, err := bow.Load(ctx, store, "orb_k10_L5.txt.gz")
//
// Wrap the store in a blobstore.CachingStore to download each artifact
// at most once per machine.
package minio
