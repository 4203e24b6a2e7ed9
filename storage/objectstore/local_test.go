package objectstore

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/alphazero/academy/core"
)

func TestLocalStorage(t *testing.T) {
	ctx := context.Background()
	s, err := NewLocalStorage(t.TempDir(), "http://localhost:8000/media/")
	if err != nil {
		t.Fatal(err)
	}

	for _, key := range []string{"avatars/a.webp", "tmp/b.bin", "tmp/nested/c.bin"} {
		if err = s.Put(ctx, key, "application/octet-stream", strings.NewReader(key)); err != nil {
			t.Fatalf("Put(%q) error: %v", key, err)
		}
	}

	if got, want := s.URL("avatars/a.webp"), "http://localhost:8000/media/avatars/a.webp"; got != want {
		t.Errorf("URL() = %q; want %q", got, want)
	}

	objs, err := s.List(ctx, "tmp/")
	if err != nil {
		t.Fatal(err)
	}
	var keys []string
	for _, o := range objs {
		keys = append(keys, o.Key)
		if o.Size != int64(len(o.Key)) {
			t.Errorf("%s: Size = %d; want %d", o.Key, o.Size, len(o.Key))
		}
	}
	sort.Strings(keys)
	if diff := cmp.Diff([]string{"tmp/b.bin", "tmp/nested/c.bin"}, keys); diff != "" {
		t.Errorf("List() mismatch (-want +got):\n%s", diff)
	}

	if err = s.Delete(ctx, "tmp/b.bin", "tmp/missing.bin"); err != nil {
		t.Fatalf("Delete() error: %v", err)
	}
	if _, err = os.Stat(filepath.Join(s.Root(), "tmp", "b.bin")); !os.IsNotExist(err) {
		t.Errorf("tmp/b.bin still exists (err=%v)", err)
	}
}

func TestLocalStorage_KeyEscape(t *testing.T) {
	root := t.TempDir()
	s, err := NewLocalStorage(filepath.Join(root, "store"), "")
	if err != nil {
		t.Fatal(err)
	}
	if err = s.Put(context.Background(), "../../escape.txt", "text/plain", strings.NewReader("x")); err != nil {
		t.Fatal(err)
	}
	if _, err = os.Stat(filepath.Join(root, "escape.txt")); !os.IsNotExist(err) {
		t.Error("key escaped the storage root")
	}
	if _, err = os.Stat(filepath.Join(root, "store", "escape.txt")); err != nil {
		t.Errorf("object not stored under the root: %v", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		conf    core.StorageConfig
		wantErr bool
	}{
		{"local", core.StorageConfig{Driver: "local", LocalDir: t.TempDir()}, false},
		{"oss incomplete", core.StorageConfig{Driver: "oss", OSSBucket: "b"}, true},
		{"unknown", core.StorageConfig{Driver: "s3"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.conf)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v; wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLocalStorage_ModTime(t *testing.T) {
	ctx := context.Background()
	s, _ := NewLocalStorage(t.TempDir(), "")
	_ = s.Put(ctx, "tmp/old.bin", "", strings.NewReader("x"))
	old := time.Now().Add(-10 * 24 * time.Hour)
	if err := os.Chtimes(filepath.Join(s.Root(), "tmp", "old.bin"), old, old); err != nil {
		t.Fatal(err)
	}
	objs, _ := s.List(ctx, "tmp/")
	if len(objs) != 1 || objs[0].LastModified.After(time.Now().Add(-9*24*time.Hour)) {
		t.Errorf("List() = %+v; want one object modified 10 days ago", objs)
	}
}

func TestLocalStorage_Move(t *testing.T) {
	ctx := context.Background()
	s, _ := NewLocalStorage(t.TempDir(), "")
	if err := s.Put(ctx, "avatars/a.webp", "image/webp", strings.NewReader("img")); err != nil {
		t.Fatal(err)
	}
	if err := s.Move(ctx, "avatars/a.webp", "tmp/avatars/a.webp"); err != nil {
		t.Fatalf("Move() error: %v", err)
	}
	objs, _ := s.List(ctx, "")
	if len(objs) != 1 || objs[0].Key != "tmp/avatars/a.webp" {
		t.Errorf("List() = %+v; want only tmp/avatars/a.webp", objs)
	}
	if err := s.Move(ctx, "avatars/a.webp", "tmp/x"); err == nil {
		t.Error("Move() of a missing object: want error")
	}
}
