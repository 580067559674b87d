package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/document"
)

type documentRepository struct {
	repository
}

var _ document.Repository = (*documentRepository)(nil) // interface compliance check

func NewDocumentRepository(exec core.DBExecutor) *documentRepository {
	return &documentRepository{repository{exec: exec}}
}

func (repo documentRepository) Create(ctx context.Context, doc document.Document) (document.Document, error) {
	id, err := insert(ctx, repo.exec, `
		INSERT INTO documents (user_id, title, file_name, uploaded_by, created_at)
		VALUES (:user_id, :title, :file_name, :uploaded_by, :created_at)`,
		doc)
	if err != nil {
		return document.Document{}, errors.Wrap(err, "inserting document")
	}
	doc.ID = id
	return doc, nil
}

func (repo documentRepository) Get(ctx context.Context, id int64) (document.Document, error) {
	var doc document.Document
	if err := repo.exec.GetContext(ctx, &doc, repo.exec.Rebind("SELECT * FROM documents WHERE id = ?"), id); err != nil {
		return document.Document{}, trapNoRowsErr(err, document.ErrNotFound, "getting document")
	}
	return doc, nil
}

func (repo documentRepository) ListByUser(ctx context.Context, userID int64) ([]document.Document, error) {
	docs := make([]document.Document, 0)
	err := repo.exec.SelectContext(ctx, &docs,
		repo.exec.Rebind("SELECT * FROM documents WHERE user_id = ? ORDER BY created_at DESC, id DESC"), userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing documents")
	}
	return docs, nil
}

func (repo documentRepository) Delete(ctx context.Context, id int64) error {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM documents WHERE id = ?"), id)
	if err != nil {
		return errors.Wrap(err, "deleting document")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "deleting document")
	} else if n == 0 {
		return document.ErrNotFound
	}
	return nil
}

func (repo documentRepository) DeleteByUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) ([]document.Document, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	e := repo.getExec([]core.DBExecutor{exec})

	var docs []document.Document
	if err := selectIn(ctx, e, &docs, "SELECT * FROM documents WHERE user_id IN (?)", userIDs); err != nil {
		return nil, errors.Wrap(err, "listing documents")
	}
	if _, err := execIn(ctx, e, "DELETE FROM documents WHERE user_id IN (?)", userIDs); err != nil {
		return nil, errors.Wrap(err, "deleting documents")
	}
	return docs, nil
}
