// Package objectstore wraps the S3-compatible buckets the pipeline reads
// from and publishes to. The backing store has no native rename; callers
// compose Copy and Delete, in that order, when they need one.
package objectstore

import "context"

// Store is the bucket-and-key contract the pipeline depends on. The S3
// implementation binds one configured bucket; tests use Memory.
type Store interface {
	// List returns the keys under prefix in lexical order.
	List(ctx context.Context, prefix string) ([]string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte, contentType string) error
	Delete(ctx context.Context, key string) error
	Copy(ctx context.Context, srcKey, dstKey string) error
	// Exists reports whether a key is present without fetching its body.
	Exists(ctx context.Context, key string) (bool, error)
}
