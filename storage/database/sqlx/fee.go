package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/fee"
	"github.com/trezcool/natya/core/user"
)

const insertFeeRecord = `
	INSERT INTO fee_records (user_id, month, year, base_amount, penalty_amount, total_amount, amount_paid, due_date, status,
		payment_method, payment_screenshot, submitted_at, payment_date, admin_notes, created_at, updated_at)
	VALUES (:user_id, :month, :year, :base_amount, :penalty_amount, :total_amount, :amount_paid, :due_date, :status,
		:payment_method, :payment_screenshot, :submitted_at, :payment_date, :admin_notes, :created_at, :updated_at)`

type feeRepository struct {
	repository
}

var _ fee.Repository = (*feeRepository)(nil) // interface compliance check

func NewFeeRepository(exec core.DBExecutor) *feeRepository {
	return &feeRepository{repository{exec: exec}}
}

func (repo feeRepository) GenerateMonthly(ctx context.Context, tmpl fee.Record) (int64, error) {
	var userIDs []int64
	err := repo.exec.SelectContext(ctx, &userIDs, repo.exec.Rebind(`
		SELECT users.id FROM users JOIN student_details ON student_details.user_id = users.id
		WHERE users.role = ? AND users.is_active = ? AND student_details.enrollment_status = ?
		ORDER BY users.id`),
		user.RoleStudent, true, user.EnrollmentActive)
	if err != nil {
		return 0, errors.Wrap(err, "listing active students")
	}

	var created int64
	for _, id := range userIDs {
		r := tmpl
		r.UserID = id
		n, err := update(ctx, repo.exec, insertFeeRecord+" ON CONFLICT (user_id, month, year) DO NOTHING", r)
		if err != nil {
			return created, errors.Wrapf(err, "inserting fee record of user %d", id)
		}
		created += n
	}
	return created, nil
}

func (repo feeRepository) Create(ctx context.Context, r fee.Record, exec ...core.DBExecutor) (fee.Record, error) {
	id, err := insert(ctx, repo.getExec(exec), insertFeeRecord, r)
	if err != nil {
		if isUniqueViolation(err) {
			return fee.Record{}, fee.ErrAlreadySettled
		}
		return fee.Record{}, errors.Wrap(err, "inserting fee record")
	}
	r.ID = id
	return r, nil
}

func (repo feeRepository) Get(ctx context.Context, id int64) (fee.Record, error) {
	var r fee.Record
	if err := repo.exec.GetContext(ctx, &r, repo.exec.Rebind("SELECT * FROM fee_records WHERE id = ?"), id); err != nil {
		return fee.Record{}, trapNoRowsErr(err, fee.ErrNotFound, "getting fee record")
	}
	return r, nil
}

func (repo feeRepository) GetByPeriod(ctx context.Context, userID int64, month, year int, exec ...core.DBExecutor) (fee.Record, error) {
	e := repo.getExec(exec)
	var r fee.Record
	err := e.GetContext(ctx, &r, e.Rebind("SELECT * FROM fee_records WHERE user_id = ? AND month = ? AND year = ?"), userID, month, year)
	if err != nil {
		return fee.Record{}, trapNoRowsErr(err, fee.ErrNotFound, "getting fee record by period")
	}
	return r, nil
}

func (repo feeRepository) ListByUser(ctx context.Context, userID int64) ([]fee.Record, error) {
	records := make([]fee.Record, 0)
	err := repo.exec.SelectContext(ctx, &records,
		repo.exec.Rebind("SELECT * FROM fee_records WHERE user_id = ? ORDER BY year DESC, month DESC"), userID)
	if err != nil {
		return nil, errors.Wrap(err, "listing fee records")
	}
	return records, nil
}

func (repo feeRepository) List(ctx context.Context, status string) ([]fee.StudentRecord, error) {
	q := `SELECT fee_records.*, users.name AS student_name, users.student_id AS student_id
		FROM fee_records JOIN users ON users.id = fee_records.user_id`
	var args []interface{}
	if status != "" {
		q += " WHERE fee_records.status = ?"
		args = append(args, status)
	}
	q += " ORDER BY fee_records.year DESC, fee_records.month DESC, users.name"

	records := make([]fee.StudentRecord, 0)
	if err := repo.exec.SelectContext(ctx, &records, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing fee records")
	}
	return records, nil
}

func (repo feeRepository) Update(ctx context.Context, r fee.Record, exec ...core.DBExecutor) (fee.Record, error) {
	n, err := update(ctx, repo.getExec(exec), `
		UPDATE fee_records SET base_amount = :base_amount, penalty_amount = :penalty_amount, total_amount = :total_amount,
			amount_paid = :amount_paid, status = :status, payment_method = :payment_method,
			payment_screenshot = :payment_screenshot, submitted_at = :submitted_at, payment_date = :payment_date,
			admin_notes = :admin_notes, updated_at = :updated_at
		WHERE id = :id`,
		r)
	if err != nil {
		return fee.Record{}, errors.Wrap(err, "updating fee record")
	}
	if n == 0 {
		return fee.Record{}, fee.ErrNotFound
	}
	return r, nil
}

func (repo feeRepository) DeleteByUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) ([]string, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	e := repo.getExec([]core.DBExecutor{exec})

	var screenshots []string
	err := selectIn(ctx, e, &screenshots,
		"SELECT payment_screenshot FROM fee_records WHERE user_id IN (?) AND payment_screenshot IS NOT NULL", userIDs)
	if err != nil {
		return nil, errors.Wrap(err, "listing payment screenshots")
	}
	if _, err = execIn(ctx, e, "DELETE FROM fee_records WHERE user_id IN (?)", userIDs); err != nil {
		return nil, errors.Wrap(err, "deleting fee records")
	}
	return screenshots, nil
}
