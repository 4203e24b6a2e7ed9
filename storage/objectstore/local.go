package objectstore

import (
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
)

// LocalStorage keeps objects under a directory, keys mapping to relative paths.
type LocalStorage struct {
	root    string
	baseURL string
}

var _ core.FileStorage = (*LocalStorage)(nil)

func NewLocalStorage(root, baseURL string) (*LocalStorage, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "creating %s", root)
	}
	return &LocalStorage{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root is the directory objects are stored in.
func (s *LocalStorage) Root() string {
	return s.root
}

func (s *LocalStorage) path(key string) (string, error) {
	clean := filepath.Clean("/" + key)
	if clean == "/" {
		return "", errors.Errorf("invalid key %q", key)
	}
	return filepath.Join(s.root, filepath.FromSlash(clean)), nil
}

func (s *LocalStorage) Put(ctx context.Context, key, _ string, r io.Reader) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := s.path(key)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory of %s", key)
	}

	tmp, err := os.CreateTemp(filepath.Dir(p), ".upload-*")
	if err != nil {
		return errors.Wrapf(err, "creating %s", key)
	}
	defer os.Remove(tmp.Name())
	if _, err = io.Copy(tmp, r); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "writing %s", key)
	}
	if err = tmp.Close(); err != nil {
		return errors.Wrapf(err, "writing %s", key)
	}
	return errors.Wrapf(os.Rename(tmp.Name(), p), "storing %s", key)
}

func (s *LocalStorage) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return err
		}
		p, err := s.path(key)
		if err != nil {
			return err
		}
		if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
			return errors.Wrapf(err, "deleting %s", key)
		}
	}
	return nil
}

func (s *LocalStorage) List(ctx context.Context, prefix string) ([]core.StoredObject, error) {
	var out []core.StoredObject
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err = ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || strings.HasPrefix(d.Name(), ".upload-") {
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		out = append(out, core.StoredObject{Key: key, Size: info.Size(), LastModified: info.ModTime().UTC()})
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "listing %s", prefix)
	}
	return out, nil
}

func (s *LocalStorage) URL(key string) string {
	return s.baseURL + "/" + key
}

func (s *LocalStorage) Move(ctx context.Context, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	src, err := s.path(srcKey)
	if err != nil {
		return err
	}
	dst, err := s.path(dstKey)
	if err != nil {
		return err
	}
	if err = os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory of %s", dstKey)
	}
	if err = os.Rename(src, dst); err != nil {
		return errors.Wrapf(err, "moving %s to %s", srcKey, dstKey)
	}
	// moved objects start their retention now
	now := time.Now()
	return errors.Wrapf(os.Chtimes(dst, now, now), "touching %s", dstKey)
}
