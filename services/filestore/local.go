package filestore

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
)

// LocalStore stores files under a root directory, one sub directory per category.
type LocalStore struct {
	root    string
	maxSize int64
}

var _ core.FileStore = (*LocalStore)(nil)

func NewLocalStore(root string, maxSize int64) (*LocalStore, error) {
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, errors.Wrapf(err, "filestore: creating %s", root)
	}
	return &LocalStore{root: root, maxSize: maxSize}, nil
}

func (s *LocalStore) path(category, name string) string {
	return filepath.Join(s.root, filepath.FromSlash(category), name)
}

func (s *LocalStore) Save(_ context.Context, category string, upload core.Upload) (string, error) {
	f, err := sniff(upload, s.maxSize)
	if err != nil {
		return "", err
	}
	if err = checkName(category, f.name); err != nil {
		return "", core.NewStorageError(err, "saving file")
	}

	dir := filepath.Join(s.root, filepath.FromSlash(category))
	if err = os.MkdirAll(dir, 0o755); err != nil {
		return "", core.NewStorageError(err, "creating category dir")
	}
	out, err := os.OpenFile(s.path(category, f.name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return "", core.NewStorageError(err, "creating file")
	}
	if _, err = io.Copy(out, f.content); err != nil {
		_ = out.Close()
		_ = os.Remove(out.Name())
		return "", core.NewStorageError(err, "writing file")
	}
	if err = out.Close(); err != nil {
		return "", core.NewStorageError(err, "closing file")
	}
	return f.name, nil
}

func (s *LocalStore) Open(_ context.Context, category, name string) (io.ReadCloser, error) {
	if err := checkName(category, name); err != nil {
		return nil, ErrFileNotFound
	}
	f, err := os.Open(s.path(category, name))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrFileNotFound
		}
		return nil, core.NewStorageError(err, "opening file")
	}
	return f, nil
}

func (s *LocalStore) Delete(_ context.Context, category, name string) error {
	if err := checkName(category, name); err != nil {
		return nil
	}
	if err := os.Remove(s.path(category, name)); err != nil && !os.IsNotExist(err) {
		return core.NewStorageError(err, "deleting file")
	}
	return nil
}
