package core

import (
	"context"
	"io"
	"strconv"
)

// File categories of the FileStore.
const (
	CategoryPreAdmission = "preadmission"
	CategoryPayments     = "payments"
	CategoryDocuments    = "documents"
)

type (
	// Upload is a file received from a client.
	Upload struct {
		Filename string
		Content  io.Reader
	}

	// FileStore stores binary payloads under a category and a generated unique name.
	FileStore interface {
		// Save stores the content and returns its generated name.
		Save(ctx context.Context, category string, upload Upload) (string, error)
		Open(ctx context.Context, category, name string) (io.ReadCloser, error)
		// Delete removes the file if present. Deleting a missing file is not an error.
		Delete(ctx context.Context, category, name string) error
	}
)

// UserDocumentsCategory is the category holding the documents of a single user.
func UserDocumentsCategory(userID int64) string {
	return CategoryDocuments + "/" + strconv.FormatInt(userID, 10)
}
