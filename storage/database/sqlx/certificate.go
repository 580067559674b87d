package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/certificate"
)

type certificateRepository struct {
	repository
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(exec core.DBExecutor) *certificateRepository {
	return &certificateRepository{repository{exec: exec}}
}

func (repo certificateRepository) Create(ctx context.Context, c certificate.Certificate) (certificate.Certificate, error) {
	id, err := insert(ctx, repo.exec, `
		INSERT INTO certificates (user_id, certificate_type, status, certificate_number, application_date, issue_date, admin_notes)
		VALUES (:user_id, :certificate_type, :status, :certificate_number, :application_date, :issue_date, :admin_notes)`,
		c)
	if err != nil {
		if isUniqueViolation(err) {
			return certificate.Certificate{}, certificate.ErrAlreadyPending
		}
		return certificate.Certificate{}, errors.Wrap(err, "inserting certificate")
	}
	c.ID = id
	return c, nil
}

func (repo certificateRepository) Get(ctx context.Context, id int64, exec ...core.DBExecutor) (certificate.Certificate, error) {
	e := repo.getExec(exec)
	var c certificate.Certificate
	if err := e.GetContext(ctx, &c, e.Rebind("SELECT * FROM certificates WHERE id = ?"), id); err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "getting certificate")
	}
	return c, nil
}

func (repo certificateRepository) ListByUser(ctx context.Context, userID int64, exec ...core.DBExecutor) ([]certificate.Certificate, error) {
	e := repo.getExec(exec)
	certs := make([]certificate.Certificate, 0)
	if err := e.SelectContext(ctx, &certs, e.Rebind("SELECT * FROM certificates WHERE user_id = ?"), userID); err != nil {
		return nil, errors.Wrap(err, "listing certificates")
	}
	certificate.SortByRank(certs)
	return certs, nil
}

func (repo certificateRepository) List(ctx context.Context, status string) ([]certificate.StudentCertificate, error) {
	q := `SELECT certificates.*, users.name AS student_name, users.student_id AS student_id
		FROM certificates JOIN users ON users.id = certificates.user_id`
	var args []interface{}
	if status != "" {
		q += " WHERE certificates.status = ?"
		args = append(args, status)
	}
	q += " ORDER BY certificates.application_date DESC, certificates.id DESC"

	certs := make([]certificate.StudentCertificate, 0)
	if err := repo.exec.SelectContext(ctx, &certs, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing certificates")
	}
	return certs, nil
}

func (repo certificateRepository) NumberExists(ctx context.Context, number string, exec ...core.DBExecutor) (bool, error) {
	e := repo.getExec(exec)
	var count int
	if err := e.GetContext(ctx, &count, e.Rebind("SELECT COUNT(*) FROM certificates WHERE certificate_number = ?"), number); err != nil {
		return false, errors.Wrap(err, "checking certificate number")
	}
	return count > 0, nil
}

func (repo certificateRepository) Update(ctx context.Context, c certificate.Certificate, exec ...core.DBExecutor) (certificate.Certificate, error) {
	n, err := update(ctx, repo.getExec(exec), `
		UPDATE certificates SET status = :status, certificate_number = :certificate_number,
			application_date = :application_date, issue_date = :issue_date, admin_notes = :admin_notes
		WHERE id = :id`,
		c)
	if err != nil {
		if isUniqueViolation(err) {
			return certificate.Certificate{}, certificate.ErrAlreadyPending
		}
		return certificate.Certificate{}, errors.Wrap(err, "updating certificate")
	}
	if n == 0 {
		return certificate.Certificate{}, certificate.ErrNotFound
	}
	return c, nil
}

func (repo certificateRepository) DeleteApproved(ctx context.Context, userID, keepID int64, exec ...core.DBExecutor) (int64, error) {
	e := repo.getExec(exec)
	res, err := e.ExecContext(ctx,
		e.Rebind("DELETE FROM certificates WHERE user_id = ? AND status = ? AND id <> ?"),
		userID, certificate.StatusApproved, keepID)
	if err != nil {
		return 0, errors.Wrap(err, "deleting approved certificates")
	}
	return res.RowsAffected()
}

func (repo certificateRepository) DeleteByUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) error {
	if len(userIDs) == 0 {
		return nil
	}
	_, err := execIn(ctx, repo.getExec([]core.DBExecutor{exec}), "DELETE FROM certificates WHERE user_id IN (?)", userIDs)
	return errors.Wrap(err, "deleting certificates")
}
