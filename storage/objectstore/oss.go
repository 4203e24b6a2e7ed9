// Package objectstore implements core.FileStorage on Aliyun OSS and on the local disk.
package objectstore

import (
	"context"
	"io"
	"strings"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/alphazero/academy/core"
)

// OSS limits DeleteObjects to 1000 keys per request.
const ossBatchSize = 1000

type OSSStorage struct {
	bucket  *oss.Bucket
	baseURL string
}

var _ core.FileStorage = (*OSSStorage)(nil)

func NewOSSStorage(conf core.StorageConfig) (*OSSStorage, error) {
	if conf.OSSEndpoint == "" || conf.OSSAccessKey == "" || conf.OSSSecretKey == "" || conf.OSSBucket == "" {
		return nil, errors.New("incomplete OSS configuration")
	}
	endpoint := normalizeEndpoint(conf.OSSEndpoint)
	cli, err := oss.New(endpoint, conf.OSSAccessKey, conf.OSSSecretKey)
	if err != nil {
		return nil, errors.Wrap(err, "creating OSS client")
	}
	bucket, err := cli.Bucket(conf.OSSBucket)
	if err != nil {
		return nil, errors.Wrapf(err, "opening bucket %s", conf.OSSBucket)
	}

	baseURL := conf.PublicBaseURL
	if baseURL == "" {
		baseURL = "https://" + conf.OSSBucket + "." + strings.TrimPrefix(strings.TrimPrefix(endpoint, "https://"), "http://")
	}
	return &OSSStorage{bucket: bucket, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

func normalizeEndpoint(ep string) string {
	ep = strings.TrimRight(strings.TrimSpace(ep), "/")
	if !strings.HasPrefix(ep, "http://") && !strings.HasPrefix(ep, "https://") {
		ep = "https://" + ep
	}
	return ep
}

func (s *OSSStorage) Put(ctx context.Context, key, contentType string, r io.Reader) error {
	opts := []oss.Option{oss.WithContext(ctx), oss.ContentType(contentType), oss.CacheControl("public, max-age=31536000, immutable")}
	if err := s.bucket.PutObject(key, r, opts...); err != nil {
		return errors.Wrapf(err, "putting %s", key)
	}
	return nil
}

func (s *OSSStorage) Delete(ctx context.Context, keys ...string) error {
	for start := 0; start < len(keys); start += ossBatchSize {
		end := start + ossBatchSize
		if end > len(keys) {
			end = len(keys)
		}
		if _, err := s.bucket.DeleteObjects(keys[start:end], oss.WithContext(ctx), oss.DeleteObjectsQuiet(true)); err != nil {
			return errors.Wrap(err, "deleting objects")
		}
	}
	return nil
}

func (s *OSSStorage) List(ctx context.Context, prefix string) ([]core.StoredObject, error) {
	var out []core.StoredObject
	marker := oss.Marker("")
	for {
		res, err := s.bucket.ListObjects(oss.WithContext(ctx), oss.Prefix(prefix), marker, oss.MaxKeys(ossBatchSize))
		if err != nil {
			return nil, errors.Wrapf(err, "listing %s", prefix)
		}
		for _, obj := range res.Objects {
			if obj.Key == "" || strings.HasSuffix(obj.Key, "/") {
				continue
			}
			out = append(out, core.StoredObject{Key: obj.Key, Size: obj.Size, LastModified: obj.LastModified})
		}
		if !res.IsTruncated {
			return out, nil
		}
		marker = oss.Marker(res.NextMarker)
	}
}

func (s *OSSStorage) URL(key string) string {
	return s.baseURL + "/" + key
}

func (s *OSSStorage) Move(ctx context.Context, srcKey, dstKey string) error {
	if _, err := s.bucket.CopyObject(srcKey, dstKey, oss.WithContext(ctx)); err != nil {
		return errors.Wrapf(err, "copying %s to %s", srcKey, dstKey)
	}
	if err := s.bucket.DeleteObject(srcKey, oss.WithContext(ctx)); err != nil {
		return errors.Wrapf(err, "deleting %s", srcKey)
	}
	return nil
}
