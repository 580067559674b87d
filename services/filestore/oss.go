package filestore

import (
	"context"
	"io"
	"net/http"
	"path"

	"github.com/aliyun/aliyun-oss-go-sdk/oss"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
)

// OSSStore stores files in an Aliyun OSS bucket, under prefix/category/name.
type OSSStore struct {
	bucket  *oss.Bucket
	prefix  string
	maxSize int64
}

var _ core.FileStore = (*OSSStore)(nil)

func NewOSSStore(endpoint, accessKeyID, accessKeySecret, bucket, prefix string, maxSize int64) (*OSSStore, error) {
	client, err := oss.New(endpoint, accessKeyID, accessKeySecret)
	if err != nil {
		return nil, errors.Wrap(err, "filestore: oss.New")
	}
	bkt, err := client.Bucket(bucket)
	if err != nil {
		return nil, errors.Wrapf(err, "filestore: bucket %s", bucket)
	}
	return &OSSStore{bucket: bkt, prefix: prefix, maxSize: maxSize}, nil
}

func (s *OSSStore) key(category, name string) string {
	return path.Join(s.prefix, category, name)
}

func (s *OSSStore) Save(ctx context.Context, category string, upload core.Upload) (string, error) {
	f, err := sniff(upload, s.maxSize)
	if err != nil {
		return "", err
	}
	if err = checkName(category, f.name); err != nil {
		return "", core.NewStorageError(err, "saving file")
	}

	opts := []oss.Option{
		oss.WithContext(ctx),
		oss.ContentType(f.contentType),
		oss.ContentDisposition("inline"),
	}
	if err = s.bucket.PutObject(s.key(category, f.name), f.content, opts...); err != nil {
		return "", core.NewStorageError(err, "putting object")
	}
	return f.name, nil
}

func (s *OSSStore) Open(ctx context.Context, category, name string) (io.ReadCloser, error) {
	if err := checkName(category, name); err != nil {
		return nil, ErrFileNotFound
	}
	rc, err := s.bucket.GetObject(s.key(category, name), oss.WithContext(ctx))
	if err != nil {
		if se, ok := err.(oss.ServiceError); ok && se.StatusCode == http.StatusNotFound {
			return nil, ErrFileNotFound
		}
		return nil, core.NewStorageError(err, "getting object")
	}
	return rc, nil
}

// Delete removes the object. OSS reports success for missing objects.
func (s *OSSStore) Delete(ctx context.Context, category, name string) error {
	if err := checkName(category, name); err != nil {
		return nil
	}
	if err := s.bucket.DeleteObject(s.key(category, name), oss.WithContext(ctx)); err != nil {
		return core.NewStorageError(err, "deleting object")
	}
	return nil
}
