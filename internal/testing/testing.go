// package testing contains shared testing utilities
package testing

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"net/http"
	"os"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/spotlake/internal/delivery"
	"github.com/desertthunder/spotlake/internal/shared"
)

// MemoryBucket is an in-memory [storage.Bucket] that records every operation in order.
//
// Errors can be injected per operation with Fail("put", key, err).
type MemoryBucket struct {
	name string

	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	ops     []string
	fail    map[string]error
}

// NewMemoryBucket creates an empty bucket called name.
func NewMemoryBucket(name string) *MemoryBucket {
	return &MemoryBucket{
		name:    name,
		objects: make(map[string][]byte),
		types:   make(map[string]string),
		fail:    make(map[string]error),
	}
}

func (b *MemoryBucket) Name() string { return b.name }

// Seed stores an object without recording an operation.
func (b *MemoryBucket) Seed(key string, data []byte) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = append([]byte(nil), data...)
}

// Fail makes the next and every later op on key return err.
func (b *MemoryBucket) Fail(op, key string, err error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.fail[op+" "+key] = err
}

// Ops returns the recorded operations as "<op> <bucket>/<key>".
func (b *MemoryBucket) Ops() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.ops)
}

// Keys returns the stored keys in lexicographic order.
func (b *MemoryBucket) Keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Sorted(maps.Keys(b.objects))
}

// Object returns the stored bytes for key.
func (b *MemoryBucket) Object(key string) ([]byte, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	return data, ok
}

// ContentType returns the content type key was last written with.
func (b *MemoryBucket) ContentType(key string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.types[key]
}

func (b *MemoryBucket) record(op, key string) error {
	b.ops = append(b.ops, fmt.Sprintf("%s %s/%s", op, b.name, key))
	return b.fail[op+" "+key]
}

func (b *MemoryBucket) Get(ctx context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("get", key); err != nil {
		return nil, err
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s", shared.ErrObjectNotFound, b.name, key)
	}
	return slices.Clone(data), nil
}

func (b *MemoryBucket) Put(ctx context.Context, key string, data []byte, contentType string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("put", key); err != nil {
		return err
	}
	b.objects[key] = slices.Clone(data)
	b.types[key] = contentType
	return nil
}

func (b *MemoryBucket) List(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("list", prefix); err != nil {
		return nil, err
	}
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	slices.Sort(keys)
	return keys, nil
}

func (b *MemoryBucket) Delete(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.record("delete", key); err != nil {
		return err
	}
	if _, ok := b.objects[key]; !ok {
		return fmt.Errorf("%w: %s/%s", shared.ErrObjectNotFound, b.name, key)
	}
	delete(b.objects, key)
	delete(b.types, key)
	return nil
}

// RecordingDispatcher is a [delivery.Dispatcher] that keeps every message it is given.
type RecordingDispatcher struct {
	mu       sync.Mutex
	Messages []delivery.Message
	Err      error
}

func (d *RecordingDispatcher) Dispatch(ctx context.Context, msg delivery.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.Err != nil {
		return d.Err
	}
	d.Messages = append(d.Messages, msg)
	return nil
}

// FixedClock returns a clock that always reports t.
func FixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

func AssertFileExists(t *testing.T, path string) {
	t.Helper()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Errorf("File does not exist: %s", path)
	}
}

func MustReadFile(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read file %s: %v", path, err)
	}
	return string(content)
}
