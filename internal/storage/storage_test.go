package storage

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/desertthunder/spotlake/internal/shared"
)

func newFileBucket(t *testing.T, name string) *FileBucket {
	t.Helper()
	b, err := NewFileBucket(filepath.Join(t.TempDir(), name))
	if err != nil {
		t.Fatalf("NewFileBucket failed: %v", err)
	}
	return b
}

func TestFileBucket(t *testing.T) {
	ctx := context.Background()

	t.Run("Name", func(t *testing.T) {
		if got := newFileBucket(t, "landing").Name(); got != "landing" {
			t.Errorf("expected bucket name landing, got %s", got)
		}
	})

	t.Run("Put Get Delete", func(t *testing.T) {
		b := newFileBucket(t, "raw")
		key := "spotify/tracks/short_term/20240101.json"

		if err := b.Put(ctx, key, []byte(`{"1":{}}`), ContentTypeJSON); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		data, err := b.Get(ctx, key)
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(data) != `{"1":{}}` {
			t.Errorf("unexpected data %s", data)
		}

		if err := b.Put(ctx, key, []byte(`{}`), ContentTypeJSON); err != nil {
			t.Fatalf("overwrite failed: %v", err)
		}
		if data, _ := b.Get(ctx, key); string(data) != `{}` {
			t.Errorf("expected overwritten data, got %s", data)
		}

		if err := b.Delete(ctx, key); err != nil {
			t.Fatalf("Delete failed: %v", err)
		}
		if _, err := b.Get(ctx, key); !errors.Is(err, shared.ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound after delete, got %v", err)
		}
		if err := b.Delete(ctx, key); !errors.Is(err, shared.ErrObjectNotFound) {
			t.Errorf("expected ErrObjectNotFound on second delete, got %v", err)
		}
	})

	t.Run("List is sorted and prefix filtered", func(t *testing.T) {
		b := newFileBucket(t, "raw")
		keys := []string{
			"spotify/tracks/short_term/20240103.json",
			"spotify/tracks/short_term/20240101.json",
			"spotify/tracks/long_term/20240101.json",
			"spotify/tracks/short_term/20240102.json",
		}
		for _, k := range keys {
			if err := b.Put(ctx, k, []byte("{}"), ContentTypeJSON); err != nil {
				t.Fatalf("Put %s failed: %v", k, err)
			}
		}

		got, err := b.List(ctx, "spotify/tracks/short_term/")
		if err != nil {
			t.Fatalf("List failed: %v", err)
		}
		want := []string{
			"spotify/tracks/short_term/20240101.json",
			"spotify/tracks/short_term/20240102.json",
			"spotify/tracks/short_term/20240103.json",
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("List() = %v, want %v", got, want)
		}

		none, err := b.List(ctx, "nothing/")
		if err != nil || len(none) != 0 {
			t.Errorf("expected empty listing, got %v, %v", none, err)
		}
	})

	t.Run("rejects escaping keys", func(t *testing.T) {
		b := newFileBucket(t, "raw")
		for _, key := range []string{"../outside.json", "a/../../b", "", "dir/", "/abs"} {
			if err := b.Put(ctx, key, nil, ""); !errors.Is(err, shared.ErrMalformedKey) {
				t.Errorf("Put(%q): expected ErrMalformedKey, got %v", key, err)
			}
		}
	})
}

func TestCopy(t *testing.T) {
	ctx := context.Background()
	src := newFileBucket(t, "raw")
	dst := newFileBucket(t, "staging")
	key := "spotify/tracks/short_term/20240101.json"

	if err := src.Put(ctx, key, []byte(`{"ok":true}`), ContentTypeJSON); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := Copy(ctx, src, dst, key); err != nil {
		t.Fatalf("Copy failed: %v", err)
	}

	data, err := dst.Get(ctx, key)
	if err != nil {
		t.Fatalf("expected copied object: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Errorf("unexpected copied data %s", data)
	}
	if _, err := src.Get(ctx, key); err != nil {
		t.Errorf("copy should leave the source intact: %v", err)
	}

	if err := Copy(ctx, src, dst, "missing.json"); !errors.Is(err, shared.ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestOpener(t *testing.T) {
	ctx := context.Background()
	var o Opener
	defer o.Close()

	t.Run("file url", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "landing")
		b, err := o.Open(ctx, "file://"+filepath.ToSlash(dir))
		if err != nil {
			t.Fatalf("Open failed: %v", err)
		}
		if _, ok := b.(*FileBucket); !ok {
			t.Errorf("expected *FileBucket, got %T", b)
		}
		if b.Name() != "landing" {
			t.Errorf("expected name landing, got %s", b.Name())
		}
	})

	t.Run("invalid urls", func(t *testing.T) {
		for _, raw := range []string{"s3://bucket", "gs://", "file://"} {
			if _, err := o.Open(ctx, raw); !errors.Is(err, shared.ErrInvalidConfig) {
				t.Errorf("Open(%q): expected ErrInvalidConfig, got %v", raw, err)
			}
		}
	})
}
