// Package storage provides key-addressed object buckets for the landing, raw and staging areas.
//
// Keys are slash-separated paths; there is no metadata search. Two backends exist: [FileBucket]
// for a local directory and [GCSBucket] for Google Cloud Storage.
package storage

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"

	gcs "cloud.google.com/go/storage"

	"github.com/desertthunder/spotlake/internal/shared"
)

// Bucket is a flat namespace of objects addressed by key.
type Bucket interface {
	// Name identifies the bucket in storage notifications.
	Name() string
	// Get returns the object's bytes, or [shared.ErrObjectNotFound].
	Get(ctx context.Context, key string) ([]byte, error)
	// Put creates or replaces the object.
	Put(ctx context.Context, key string, data []byte, contentType string) error
	// List returns every key starting with prefix in lexicographic order.
	List(ctx context.Context, prefix string) ([]string, error)
	// Delete removes the object, or returns [shared.ErrObjectNotFound].
	Delete(ctx context.Context, key string) error
}

// Copier is implemented by buckets that can copy from another bucket without downloading.
type Copier interface {
	// CopyFrom copies key from src into the receiver. It returns errCrossBackend when src is unsupported.
	CopyFrom(ctx context.Context, src Bucket, key string) error
}

var errCrossBackend = errors.New("copy across backends")

// Copy copies key from src to dst, keeping the key. Server-side copy is used when both ends support it.
func Copy(ctx context.Context, src, dst Bucket, key string) error {
	if c, ok := dst.(Copier); ok {
		err := c.CopyFrom(ctx, src, key)
		if !errors.Is(err, errCrossBackend) {
			return err
		}
	}

	data, err := src.Get(ctx, key)
	if err != nil {
		return err
	}
	return dst.Put(ctx, key, data, contentTypeFor(key))
}

func contentTypeFor(key string) string {
	if strings.HasSuffix(key, ".json") {
		return ContentTypeJSON
	}
	return "application/octet-stream"
}

// ContentTypeJSON is the content type used for every pipeline payload.
const ContentTypeJSON = "application/json"

// Opener turns bucket URLs into buckets, sharing one Cloud Storage client between gs:// buckets.
type Opener struct {
	mu     sync.Mutex
	client *gcs.Client
}

// Open resolves file://<dir> or gs://<bucket> into a [Bucket].
func (o *Opener) Open(ctx context.Context, rawURL string) (Bucket, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: bucket url %q: %v", shared.ErrInvalidConfig, rawURL, err)
	}

	switch u.Scheme {
	case "file", "":
		dir := u.Host + u.Path
		if u.Scheme == "" {
			dir = rawURL
		}
		if dir == "" {
			return nil, fmt.Errorf("%w: bucket url %q has no path", shared.ErrInvalidConfig, rawURL)
		}
		return NewFileBucket(filepath.FromSlash(dir))
	case "gs":
		if u.Host == "" {
			return nil, fmt.Errorf("%w: bucket url %q has no bucket name", shared.ErrInvalidConfig, rawURL)
		}
		client, err := o.gcsClient(ctx)
		if err != nil {
			return nil, err
		}
		return NewGCSBucket(client, u.Host), nil
	default:
		return nil, fmt.Errorf("%w: unsupported bucket scheme %q", shared.ErrInvalidConfig, u.Scheme)
	}
}

func (o *Opener) gcsClient(ctx context.Context) (*gcs.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client != nil {
		return o.client, nil
	}
	client, err := gcs.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create cloud storage client: %w", err)
	}
	o.client = client
	return client, nil
}

// Close releases the shared Cloud Storage client, if one was created.
func (o *Opener) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.client == nil {
		return nil
	}
	err := o.client.Close()
	o.client = nil
	return err
}
