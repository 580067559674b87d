// Package filestore stores uploaded files on the local disk or on Aliyun OSS.
package filestore

import (
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
)

var (
	allowedTypes = []string{"image/jpeg", "image/png", "image/webp", "application/pdf"}

	// errors
	ErrFileNotFound   = core.NewNotFoundError("file")
	errInvalidName    = errors.New("invalid file name")
	errEmptyFile      = core.NewValidationError(errors.New("file is empty"))
	errUnsupportedExt = core.NewValidationError(errors.New("only JPEG, PNG, WEBP and PDF files are allowed"))
)

// New returns the FileStore of the configured backend.
func New(conf *core.Config) (core.FileStore, error) {
	switch conf.Uploads.Backend {
	case "", "local":
		return NewLocalStore(conf.Uploads.Dir, conf.Uploads.MaxSize)
	case "oss":
		return NewOSSStore(conf.Uploads.OSS.Endpoint, conf.Uploads.OSS.AccessKeyID, conf.Uploads.OSS.AccessKeySecret,
			conf.Uploads.OSS.Bucket, conf.Uploads.OSS.Prefix, conf.Uploads.MaxSize)
	default:
		return nil, errors.Errorf("filestore: unknown backend %q", conf.Uploads.Backend)
	}
}

// sniffed is an upload read in memory, with its detected content type.
type sniffed struct {
	name        string
	contentType string
	content     *bytes.Reader
}

// sniff reads the upload, enforces the size limit and the allowed content types,
// and generates a unique name keeping the extension of the detected type.
func sniff(upload core.Upload, maxSize int64) (sniffed, error) {
	data, err := io.ReadAll(io.LimitReader(upload.Content, maxSize+1))
	if err != nil {
		return sniffed{}, core.NewStorageError(err, "reading upload")
	}
	if len(data) == 0 {
		return sniffed{}, errEmptyFile
	}
	if int64(len(data)) > maxSize {
		return sniffed{}, core.NewValidationError(fmt.Errorf("file is larger than %d MB", maxSize>>20))
	}

	mtype := mimetype.Detect(data)
	if !mimetype.EqualsAny(mtype.String(), allowedTypes...) {
		return sniffed{}, errUnsupportedExt
	}
	return sniffed{
		name:        uuid.NewString() + mtype.Extension(),
		contentType: mtype.String(),
		content:     bytes.NewReader(data),
	}, nil
}

// checkName rejects names that would escape their category.
func checkName(category, name string) error {
	if name == "" || name != path.Base(name) || strings.HasPrefix(name, ".") {
		return errInvalidName
	}
	for _, part := range strings.Split(category, "/") {
		if part == "" || part == "." || part == ".." {
			return errInvalidName
		}
	}
	return nil
}
