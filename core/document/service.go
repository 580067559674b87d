package document

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/user"
)

var (
	// errors
	ErrNotFound = core.NewNotFoundError("document")
)

type (
	Repository interface {
		Create(ctx context.Context, doc Document) (Document, error)
		Get(ctx context.Context, id int64) (Document, error)
		// ListByUser returns the documents of a student, most recent first.
		ListByUser(ctx context.Context, userID int64) ([]Document, error)
		Delete(ctx context.Context, id int64) error
		// DeleteByUsers deletes the documents of the users and returns them.
		DeleteByUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) ([]Document, error)
	}

	// UserGetter is satisfied by user.Repository.
	UserGetter interface {
		GetUser(ctx context.Context, id int64, exec ...core.DBExecutor) (user.User, error)
	}

	Service struct {
		repo   Repository
		users  UserGetter
		files  core.FileStore
		logger core.Logger
	}
)

func NewService(repo Repository, users UserGetter, files core.FileStore, logger core.Logger) *Service {
	return &Service{repo: repo, users: users, files: files, logger: logger}
}

// Upload stores a document for a student.
func (svc *Service) Upload(ctx context.Context, userID, uploaderID int64, nd NewDocument, upload core.Upload) (Document, error) {
	usr, err := svc.users.GetUser(ctx, userID)
	if err != nil {
		return Document{}, err
	}
	if !usr.IsStudent() {
		return Document{}, user.ErrNotStudent
	}

	category := core.UserDocumentsCategory(userID)
	name, err := svc.files.Save(ctx, category, upload)
	if err != nil {
		return Document{}, err
	}

	doc, err := svc.repo.Create(ctx, Document{
		UserID:     userID,
		Title:      nd.Title,
		FileName:   name,
		UploadedBy: null.NewInt64(uploaderID, uploaderID != 0),
		CreatedAt:  time.Now().UTC(),
	})
	if err != nil {
		svc.deleteFile(category, name)
		return Document{}, err
	}
	return doc, nil
}

func (svc *Service) Get(ctx context.Context, id int64) (Document, error) {
	return svc.repo.Get(ctx, id)
}

func (svc *Service) ListForUser(ctx context.Context, userID int64) ([]Document, error) {
	return svc.repo.ListByUser(ctx, userID)
}

// Open opens the stored file of a document.
func (svc *Service) Open(ctx context.Context, doc Document) (io.ReadCloser, error) {
	return svc.files.Open(ctx, core.UserDocumentsCategory(doc.UserID), doc.FileName)
}

// Delete deletes a document and its file. A file already gone is not an error.
func (svc *Service) Delete(ctx context.Context, id int64) error {
	doc, err := svc.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if err = svc.repo.Delete(ctx, id); err != nil {
		return err
	}
	svc.deleteFile(core.UserDocumentsCategory(doc.UserID), doc.FileName)
	return nil
}

// DeleteForUsers deletes the documents of the users. The returned func deletes their files.
func (svc *Service) DeleteForUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) (func(), error) {
	docs, err := svc.repo.DeleteByUsers(ctx, exec, userIDs...)
	if err != nil {
		return nil, err
	}
	return func() {
		for _, doc := range docs {
			svc.deleteFile(core.UserDocumentsCategory(doc.UserID), doc.FileName)
		}
	}, nil
}

func (svc *Service) deleteFile(category, name string) {
	if err := svc.files.Delete(context.Background(), category, name); err != nil {
		svc.logger.Error(fmt.Sprintf("document.deleteFile(%s/%s): %v", category, name, err), err)
	}
}
