package core

import (
	"context"
	"io"
	"time"
)

type (
	StoredObject struct {
		Key          string
		Size         int64
		LastModified time.Time
	}

	// FileStorage stores uploaded binaries (avatars, thumbnails, materials).
	FileStorage interface {
		Put(ctx context.Context, key, contentType string, r io.Reader) error
		Delete(ctx context.Context, keys ...string) error
		// Move renames an object, e.g. into the trash prefix the reaper purges.
		Move(ctx context.Context, srcKey, dstKey string) error
		List(ctx context.Context, prefix string) ([]StoredObject, error)
		URL(key string) string
	}
)
