// Package gcs archives dataset snapshots to a Google Cloud Storage
// bucket.
package gcs

import (
	"context"
	"fmt"
	"path"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
)

// Archiver writes one object per run into a bucket, under an optional
// key prefix. Objects are never overwritten by later runs because the
// run ID is part of the object name.
type Archiver struct {
	client *storage.Client
	bucket string
	prefix string
	logger *zap.Logger
}

// New initializes a GCS client and verifies the bucket is reachable.
// Authentication goes through Application Default Credentials.
func New(ctx context.Context, bucket, prefix string, logger *zap.Logger) (*Archiver, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating GCS client: %w", err)
	}
	// Fail fast on startup when the bucket is misconfigured rather than
	// on the first completed run.
	if _, err := client.Bucket(bucket).Attrs(ctx); err != nil {
		if cerr := client.Close(); cerr != nil {
			logger.Warn("closing GCS client after bucket check failure", zap.Error(cerr))
		}
		return nil, fmt.Errorf("checking GCS bucket %q: %w", bucket, err)
	}
	return &Archiver{client: client, bucket: bucket, prefix: prefix, logger: logger}, nil
}

// Archive uploads data under the given name.
func (a *Archiver) Archive(ctx context.Context, name string, data []byte) error {
	object := name
	if a.prefix != "" {
		object = path.Join(a.prefix, name)
	}
	wc := a.client.Bucket(a.bucket).Object(object).NewWriter(ctx)
	wc.ContentType = "application/json"
	if _, err := wc.Write(data); err != nil {
		if cerr := wc.Close(); cerr != nil {
			a.logger.Warn("closing GCS writer after write failure", zap.Error(cerr))
		}
		return fmt.Errorf("writing GCS object %s: %w", object, err)
	}
	// Close finalizes the upload; the object does not exist until it
	// returns nil.
	if err := wc.Close(); err != nil {
		return fmt.Errorf("finalizing GCS object %s: %w", object, err)
	}
	a.logger.Info("dataset archived",
		zap.String("bucket", a.bucket),
		zap.String("object", object),
		zap.Int("bytes", len(data)),
	)
	return nil
}

// Close releases the underlying client.
func (a *Archiver) Close() error {
	return a.client.Close()
}
