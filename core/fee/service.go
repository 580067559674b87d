package fee

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound       = core.NewNotFoundError("fee record")
	ErrNotPayable     = core.NewNotFoundError("pending fee record")
	ErrNotUploaded    = core.NewPreconditionError("no payment evidence awaiting verification")
	ErrAlreadySettled = core.NewConflictError("fee is already settled")
	ErrNoScreenshot   = core.NewNotFoundError("payment screenshot")
)

type (
	Repository interface {
		// GenerateMonthly creates the missing records of (month, year) for every active student
		// and returns how many were created.
		GenerateMonthly(ctx context.Context, tmpl Record) (int64, error)
		Create(ctx context.Context, r Record, exec ...core.DBExecutor) (Record, error)
		Get(ctx context.Context, id int64) (Record, error)
		GetByPeriod(ctx context.Context, userID int64, month, year int, exec ...core.DBExecutor) (Record, error)
		// ListByUser returns the records of a student, newest period first.
		ListByUser(ctx context.Context, userID int64) ([]Record, error)
		// List returns every record with its student, newest period first. An empty status returns them all.
		List(ctx context.Context, status string) ([]StudentRecord, error)
		Update(ctx context.Context, r Record, exec ...core.DBExecutor) (Record, error)
		// DeleteByUsers deletes the records of the users and returns their payment screenshots.
		DeleteByUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) ([]string, error)
	}

	// UserGetter is satisfied by user.Repository.
	UserGetter interface {
		GetUser(ctx context.Context, id int64, exec ...core.DBExecutor) (user.User, error)
	}

	Service struct {
		db      core.DB
		repo    Repository
		users   UserGetter
		files   core.FileStore
		mailSvc core.EmailService
		logger  core.Logger
		policy  PenaltyPolicy
	}
)

func NewService(
	db core.DB,
	repo Repository,
	users UserGetter,
	files core.FileStore,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		users:   users,
		files:   files,
		mailSvc: mailSvc,
		logger:  logger,
		policy: PenaltyPolicy{
			DueDay:     conf.Fees.DueDay,
			GraceDays:  conf.Fees.GraceDays,
			PerDayLate: conf.Fees.PerDayPenalty,
		},
	}
}

func (svc *Service) Policy() PenaltyPolicy {
	return svc.policy
}

// GenerateMonthlyFees creates a pending record for (month, year) for every active student lacking one.
// Running it again for the same period creates nothing.
func (svc *Service) GenerateMonthlyFees(ctx context.Context, gf GenerateFees) (int64, error) {
	now := NowFunc().UTC()
	return svc.repo.GenerateMonthly(ctx, Record{
		Month:       gf.Month,
		Year:        gf.Year,
		BaseAmount:  gf.BaseAmount,
		TotalAmount: gf.BaseAmount,
		DueDate:     svc.policy.DueDate(gf.Month, gf.Year),
		Status:      StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

// PayFee attaches payment evidence to the student's pending or rejected record of the period.
func (svc *Service) PayFee(ctx context.Context, userID int64, p Period, screenshot core.Upload) (Record, error) {
	r, err := svc.repo.GetByPeriod(ctx, userID, p.Month, p.Year)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Record{}, ErrNotPayable
		}
		return Record{}, err
	}
	if r.Status != StatusPending && r.Status != StatusRejected {
		return Record{}, ErrNotPayable
	}

	name, err := svc.files.Save(ctx, core.CategoryPayments, screenshot)
	if err != nil {
		return Record{}, err
	}

	prevScreenshot := r.PaymentScreenshot
	now := NowFunc().UTC()
	r.Status = StatusUploaded
	r.PaymentMethod = null.StringFrom(MethodOnline)
	r.PaymentScreenshot = null.StringFrom(name)
	r.SubmittedAt = null.TimeFrom(now)
	r.UpdatedAt = now
	r = svc.policy.apply(r, now)
	if r, err = svc.repo.Update(ctx, r); err != nil {
		svc.deleteFile(name)
		return Record{}, err
	}

	if prevScreenshot.Valid && prevScreenshot.String != "" {
		svc.deleteFile(prevScreenshot.String)
	}
	return r, nil
}

// VerifyPayment records the admin's decision on uploaded evidence. A verified payment freezes the
// penalty computed at the submission instant.
func (svc *Service) VerifyPayment(ctx context.Context, id int64, d Decision) (Record, error) {
	r, err := svc.repo.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	if r.Status != StatusUploaded {
		return Record{}, ErrNotUploaded
	}

	now := NowFunc().UTC()
	r = svc.policy.apply(r, now)
	r.Status = d.Status
	r.AdminNotes = d.Notes
	r.UpdatedAt = now
	if d.Status == StatusVerified {
		r.PaymentDate = null.TimeFrom(now)
		r.AmountPaid = null.Int64From(r.TotalAmount)
	} else {
		r.SubmittedAt = null.Time{}
	}
	if r, err = svc.repo.Update(ctx, r); err != nil {
		return Record{}, err
	}

	svc.notify(ctx, r)
	return r, nil
}

// RecordCashPayment settles the student's fee of the period in cash, creating the record if needed.
func (svc *Service) RecordCashPayment(ctx context.Context, cp CashPayment) (Record, error) {
	usr, err := svc.users.GetUser(ctx, cp.UserID)
	if err != nil {
		return Record{}, err
	}
	if !usr.IsStudent() {
		return Record{}, user.ErrNotStudent
	}

	now := NowFunc().UTC()
	var r Record
	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		r, err = svc.repo.GetByPeriod(ctx, cp.UserID, cp.Month, cp.Year, tx)
		switch {
		case errors.Cause(err) == ErrNotFound:
			r = Record{
				UserID:        cp.UserID,
				Month:         cp.Month,
				Year:          cp.Year,
				BaseAmount:    cp.Amount,
				TotalAmount:   cp.Amount,
				DueDate:       svc.policy.DueDate(cp.Month, cp.Year),
				Status:        StatusPaid,
				PaymentMethod: null.StringFrom(MethodCash),
				AmountPaid:    null.Int64From(cp.Amount),
				PaymentDate:   null.TimeFrom(now),
				AdminNotes:    cp.Notes,
				CreatedAt:     now,
				UpdatedAt:     now,
			}
			r, err = svc.repo.Create(ctx, r, tx)
			return err
		case err != nil:
			return err
		case r.IsSettled():
			return ErrAlreadySettled
		}

		r.SubmittedAt = null.Time{}
		r = svc.policy.apply(r, now)
		r.Status = StatusPaid
		r.PaymentMethod = null.StringFrom(MethodCash)
		r.AmountPaid = null.Int64From(cp.Amount)
		r.PaymentDate = null.TimeFrom(now)
		r.AdminNotes = cp.Notes
		r.UpdatedAt = now
		r, err = svc.repo.Update(ctx, r, tx)
		return err
	})
	if err != nil {
		return Record{}, err
	}
	return r, nil
}

// MyFees returns the student's history and the record currently due: the oldest unsettled one,
// or the most recent one when everything is settled.
func (svc *Service) MyFees(ctx context.Context, userID int64) (Overview, error) {
	records, err := svc.repo.ListByUser(ctx, userID)
	if err != nil {
		return Overview{}, err
	}

	now := NowFunc().UTC()
	ov := Overview{History: make([]Record, 0, len(records))}
	for _, r := range records {
		ov.History = append(ov.History, svc.policy.apply(r, now))
	}
	for i := len(ov.History) - 1; i >= 0; i-- {
		if !ov.History[i].IsSettled() {
			ov.Current = &ov.History[i]
			break
		}
	}
	if ov.Current == nil && len(ov.History) > 0 {
		ov.Current = &ov.History[0]
	}
	return ov, nil
}

// AllFees returns every record with its student. Penalties of open records are computed as of now.
func (svc *Service) AllFees(ctx context.Context, status string) ([]StudentRecord, error) {
	records, err := svc.repo.List(ctx, status)
	if err != nil {
		return nil, err
	}
	now := NowFunc().UTC()
	for i := range records {
		records[i].Record = svc.policy.apply(records[i].Record, now)
	}
	return records, nil
}

// Screenshot opens the payment evidence of a record.
func (svc *Service) Screenshot(ctx context.Context, id int64) (io.ReadCloser, string, error) {
	r, err := svc.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if !r.PaymentScreenshot.Valid || r.PaymentScreenshot.String == "" {
		return nil, "", ErrNoScreenshot
	}
	rc, err := svc.files.Open(ctx, core.CategoryPayments, r.PaymentScreenshot.String)
	if err != nil {
		return nil, "", err
	}
	return rc, r.PaymentScreenshot.String, nil
}

// DeleteForUsers deletes the fee records of the users. The returned func deletes their payment screenshots.
func (svc *Service) DeleteForUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) (func(), error) {
	names, err := svc.repo.DeleteByUsers(ctx, exec, userIDs...)
	if err != nil {
		return nil, err
	}
	return func() {
		for _, name := range names {
			svc.deleteFile(name)
		}
	}, nil
}

func (svc *Service) deleteFile(name string) {
	if err := svc.files.Delete(context.Background(), core.CategoryPayments, name); err != nil {
		svc.logger.Error(fmt.Sprintf("fee.deleteFile(%s): %v", name, err), err)
	}
}

func (svc *Service) notify(ctx context.Context, r Record) {
	usr, err := svc.users.GetUser(ctx, r.UserID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("fee.notify(%d): %v", r.ID, err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Fee Payment " + r.Period(),
		TemplateName: "fee_payment_decided",
		TemplateData: map[string]interface{}{
			"Name":    usr.Name,
			"Period":  r.Period(),
			"Status":  r.Status,
			"Total":   r.TotalAmount,
			"Penalty": r.PenaltyAmount,
			"Notes":   r.AdminNotes,
		},
	})
}
