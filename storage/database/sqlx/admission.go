package sqlxrepos

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/admission"
)

type admissionRepository struct {
	repository
}

var _ admission.Repository = (*admissionRepository)(nil) // interface compliance check

func NewAdmissionRepository(exec core.DBExecutor) *admissionRepository {
	return &admissionRepository{repository{exec: exec}}
}

func (repo admissionRepository) Create(ctx context.Context, pa admission.PreAdmission, exec ...core.DBExecutor) (admission.PreAdmission, error) {
	id, err := insert(ctx, repo.getExec(exec), `
		INSERT INTO pre_admissions (type, branch_id, name, email, phone, date_of_birth, gender, address, dance_style,
			experience_level, guardian_name, guardian_phone, preferred_date, preferred_time, id_proof, payment_screenshot,
			payment_status, application_status, trial_date, trial_time, admin_notes, approved_by, approved_at,
			created_at, updated_at)
		VALUES (:type, :branch_id, :name, :email, :phone, :date_of_birth, :gender, :address, :dance_style,
			:experience_level, :guardian_name, :guardian_phone, :preferred_date, :preferred_time, :id_proof, :payment_screenshot,
			:payment_status, :application_status, :trial_date, :trial_time, :admin_notes, :approved_by, :approved_at,
			:created_at, :updated_at)`,
		pa)
	if err != nil {
		return admission.PreAdmission{}, errors.Wrap(err, "inserting application")
	}
	pa.ID = id
	return pa, nil
}

func (repo admissionRepository) Get(ctx context.Context, id int64) (admission.PreAdmission, error) {
	var pa admission.PreAdmission
	if err := repo.exec.GetContext(ctx, &pa, repo.exec.Rebind("SELECT * FROM pre_admissions WHERE id = ?"), id); err != nil {
		return admission.PreAdmission{}, trapNoRowsErr(err, admission.ErrNotFound, "getting application")
	}
	return pa, nil
}

func (repo admissionRepository) List(ctx context.Context, status string) ([]admission.PreAdmission, error) {
	q := "SELECT * FROM pre_admissions"
	var args []interface{}
	if status != "" {
		q += " WHERE application_status = ?"
		args = append(args, status)
	}
	q += " ORDER BY created_at DESC, id DESC"

	applications := make([]admission.PreAdmission, 0)
	if err := repo.exec.SelectContext(ctx, &applications, repo.exec.Rebind(q), args...); err != nil {
		return nil, errors.Wrap(err, "listing applications")
	}
	return applications, nil
}

func (repo admissionRepository) SetPaymentStatus(ctx context.Context, id int64, status string, at time.Time) error {
	res, err := repo.exec.ExecContext(ctx,
		repo.exec.Rebind("UPDATE pre_admissions SET payment_status = ?, updated_at = ? WHERE id = ? AND application_status = ?"),
		status, at.UTC(), id, admission.StatusPending)
	if err != nil {
		return errors.Wrap(err, "setting payment status")
	}
	if n, err := res.RowsAffected(); err != nil {
		return errors.Wrap(err, "setting payment status")
	} else if n == 0 {
		return admission.ErrNotPending
	}
	return nil
}

// decision is the named argument of Decide.
type decision struct {
	admission.PreAdmission
	FromStatus string `db:"from_status"`
}

func (repo admissionRepository) Decide(ctx context.Context, pa admission.PreAdmission, fromStatus string, exec ...core.DBExecutor) error {
	n, err := update(ctx, repo.getExec(exec), `
		UPDATE pre_admissions SET application_status = :application_status, trial_date = :trial_date,
			trial_time = :trial_time, admin_notes = :admin_notes, approved_by = :approved_by,
			approved_at = :approved_at, updated_at = :updated_at
		WHERE id = :id AND application_status = :from_status AND payment_status = :payment_status`,
		decision{PreAdmission: pa, FromStatus: fromStatus})
	if err != nil {
		return errors.Wrap(err, "deciding application")
	}
	if n == 0 {
		return admission.ErrNotPending
	}
	return nil
}
