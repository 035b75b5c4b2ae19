// Package objectstore defines the object-store contract the cloud-batch
// backend uses for its durable state (tasks/jobs/results under
// s3://bucket/prefix/<run_id>/), and an AWS S3-backed implementation.
package objectstore

import "context"

// Store is the minimal object-store contract: put, get, sync a local
// directory, and list keys under a prefix. S3Store retries Put and Get up to
// 3 attempts in total, with no delay between attempts; its List and Sync
// make a single attempt.
type Store interface {
	Put(ctx context.Context, key string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	// Sync uploads every file under localDir to keys rooted at prefix,
	// used by worker containers to publish results/artifacts in bulk.
	Sync(ctx context.Context, localDir, prefix string) error
	List(ctx context.Context, prefix string) ([]string, error)
}
