package storage

import (
	"context"
	"errors"
	"fmt"
	"io"

	gcs "cloud.google.com/go/storage"
	"google.golang.org/api/iterator"

	"github.com/desertthunder/spotlake/internal/shared"
)

// GCSBucket is a [Bucket] backed by a Google Cloud Storage bucket.
type GCSBucket struct {
	name   string
	handle *gcs.BucketHandle
}

// NewGCSBucket wraps the named bucket. The client is owned by the caller.
func NewGCSBucket(client *gcs.Client, name string) *GCSBucket {
	return &GCSBucket{name: name, handle: client.Bucket(name)}
}

// Name implements [Bucket].
func (b *GCSBucket) Name() string { return b.name }

func (b *GCSBucket) notFound(key string, err error) error {
	if errors.Is(err, gcs.ErrObjectNotExist) {
		return fmt.Errorf("%w: gs://%s/%s", shared.ErrObjectNotFound, b.name, key)
	}
	return err
}

// Get implements [Bucket].
func (b *GCSBucket) Get(ctx context.Context, key string) ([]byte, error) {
	reader, err := b.handle.Object(key).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to open gs://%s/%s: %w", b.name, key, b.notFound(key, err))
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read gs://%s/%s: %w", b.name, key, err)
	}
	return data, nil
}

// Put implements [Bucket].
func (b *GCSBucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	writer := b.handle.Object(key).NewWriter(ctx)
	writer.ContentType = contentType

	if _, err := writer.Write(data); err != nil {
		writer.Close()
		return fmt.Errorf("failed to upload gs://%s/%s: %w", b.name, key, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("failed to upload gs://%s/%s: %w", b.name, key, err)
	}
	return nil
}

// List implements [Bucket]. Cloud Storage returns names in lexicographic order.
func (b *GCSBucket) List(ctx context.Context, prefix string) ([]string, error) {
	it := b.handle.Objects(ctx, &gcs.Query{Prefix: prefix})
	var keys []string
	for {
		attrs, err := it.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to list gs://%s/%s: %w", b.name, prefix, err)
		}
		keys = append(keys, attrs.Name)
	}
	return keys, nil
}

// Delete implements [Bucket].
func (b *GCSBucket) Delete(ctx context.Context, key string) error {
	if err := b.handle.Object(key).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete gs://%s/%s: %w", b.name, key, b.notFound(key, err))
	}
	return nil
}

// CopyFrom implements [Copier] for Cloud Storage sources.
func (b *GCSBucket) CopyFrom(ctx context.Context, src Bucket, key string) error {
	from, ok := src.(*GCSBucket)
	if !ok {
		return errCrossBackend
	}
	dst := b.handle.Object(key)
	if _, err := dst.CopierFrom(from.handle.Object(key)).Run(ctx); err != nil {
		return fmt.Errorf("failed to copy gs://%s/%s to gs://%s: %w", from.name, key, b.name, from.notFound(key, err))
	}
	return nil
}
