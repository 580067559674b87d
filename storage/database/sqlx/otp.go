package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/otp"
)

type otpRepository struct {
	repository
}

var _ otp.Repository = (*otpRepository)(nil) // interface compliance check

func NewOTPRepository(exec core.DBExecutor) *otpRepository {
	return &otpRepository{repository{exec: exec}}
}

func (repo otpRepository) Create(ctx context.Context, code otp.Code) (otp.Code, error) {
	id, err := insert(ctx, repo.exec, `
		INSERT INTO otp_codes (identifier, code, purpose, expires_at, verified, verified_at, consumed_at, attempts, created_at)
		VALUES (:identifier, :code, :purpose, :expires_at, :verified, :verified_at, :consumed_at, :attempts, :created_at)`,
		code)
	if err != nil {
		return otp.Code{}, errors.Wrap(err, "inserting otp code")
	}
	code.ID = id
	return code, nil
}

func (repo otpRepository) GetLatest(ctx context.Context, identifier, purpose string, verified bool) (otp.Code, error) {
	q := "SELECT * FROM otp_codes WHERE identifier = ? AND purpose = ? AND verified = ?"
	if verified {
		q += " AND consumed_at IS NULL"
	}
	q += " ORDER BY created_at DESC, id DESC LIMIT 1"

	var code otp.Code
	if err := repo.exec.GetContext(ctx, &code, repo.exec.Rebind(q), identifier, purpose, verified); err != nil {
		return otp.Code{}, trapNoRowsErr(err, otp.ErrCodeNotFound, "getting latest otp code")
	}
	return code, nil
}

func (repo otpRepository) DeleteUnverified(ctx context.Context, identifier, purpose string) error {
	_, err := repo.exec.ExecContext(ctx,
		repo.exec.Rebind("DELETE FROM otp_codes WHERE identifier = ? AND purpose = ? AND verified = ?"),
		identifier, purpose, false)
	return errors.Wrap(err, "deleting unverified otp codes")
}

func (repo otpRepository) IncrementAttempts(ctx context.Context, id int64) error {
	_, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("UPDATE otp_codes SET attempts = attempts + 1 WHERE id = ?"), id)
	return errors.Wrap(err, "incrementing otp attempts")
}

func (repo otpRepository) MarkVerified(ctx context.Context, id int64, at time.Time) error {
	_, err := repo.exec.ExecContext(ctx,
		repo.exec.Rebind("UPDATE otp_codes SET verified = ?, verified_at = ? WHERE id = ?"),
		true, at.UTC(), id)
	return errors.Wrap(err, "marking otp code verified")
}

// MarkConsumed returns otp.ErrNotVerified when the code was consumed concurrently.
func (repo otpRepository) MarkConsumed(ctx context.Context, id int64, at time.Time, exec ...core.DBExecutor) error {
	e := repo.getExec(exec)
	res, err := e.ExecContext(ctx, e.Rebind("UPDATE otp_codes SET consumed_at = ? WHERE id = ? AND consumed_at IS NULL"), at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "marking otp code consumed")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "marking otp code consumed")
	} else if n == 0 {
		return otp.ErrNotVerified
	}
	return nil
}

func (repo otpRepository) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	res, err := repo.exec.ExecContext(ctx, repo.exec.Rebind("DELETE FROM otp_codes WHERE expires_at < ?"), before.UTC())
	if err != nil {
		return 0, errors.Wrap(err, "deleting expired otp codes")
	}
	return res.RowsAffected()
}
