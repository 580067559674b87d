package admission

import (
	"context"
	"fmt"
	"io"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/branch"
	"github.com/trezcool/natya/core/otp"
	"github.com/trezcool/natya/core/user"
)

var (
	NowFunc = time.Now // mockable

	// errors
	ErrNotFound           = core.NewNotFoundError("application")
	ErrFileNotFound       = core.NewNotFoundError("file")
	ErrNotPending         = core.NewPreconditionError("application is not pending")
	ErrNotTrial           = core.NewPreconditionError("application is not a trial application")
	ErrNotAdmission       = core.NewPreconditionError("application is not an admission application")
	ErrPaymentNotVerified = core.NewPreconditionError("payment has not been verified")
	ErrNoEmail            = core.NewPreconditionError("application has no email address")
	errBranchNotFound     = core.NewValidationError(nil, core.FieldError{Field: "branch_id", Error: "branch not found"})
)

type (
	Repository interface {
		Create(ctx context.Context, pa PreAdmission, exec ...core.DBExecutor) (PreAdmission, error)
		Get(ctx context.Context, id int64) (PreAdmission, error)
		// List returns the applications, most recent first. An empty status returns them all.
		List(ctx context.Context, status string) ([]PreAdmission, error)
		// SetPaymentStatus updates the payment status of a pending application. Returns ErrNotPending otherwise.
		SetPaymentStatus(ctx context.Context, id int64, status string, at time.Time) error
		// Decide persists the decision fields of pa (application status, trial date/time, notes, approval audit)
		// if the stored application is still in fromStatus with the same payment status. Returns ErrNotPending otherwise.
		Decide(ctx context.Context, pa PreAdmission, fromStatus string, exec ...core.DBExecutor) error
	}

	// PhoneVerifier gates submissions on a verified phone number.
	PhoneVerifier interface {
		RequireVerified(ctx context.Context, identifier, purpose string) (int64, error)
		Consume(ctx context.Context, id int64, exec ...core.DBExecutor) error
	}

	// StudentCreator turns an approved admission into a student account.
	StudentCreator interface {
		CreateAdmittedStudent(ctx context.Context, exec core.DBExecutor, ns user.NewAdmittedStudent) (user.User, string, error)
	}

	BranchGetter interface {
		GetByID(ctx context.Context, id int64, exec ...core.DBExecutor) (branch.Branch, error)
	}

	Service struct {
		db                core.DB
		repo              Repository
		phones            PhoneVerifier
		students          StudentCreator
		branches          BranchGetter
		files             core.FileStore
		mailSvc           core.EmailService
		logger            core.Logger
		appName           string
		defaultBranchCode string
		countryCode       string
	}
)

func NewService(
	db core.DB,
	repo Repository,
	phones PhoneVerifier,
	students StudentCreator,
	branches BranchGetter,
	files core.FileStore,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:                db,
		repo:              repo,
		phones:            phones,
		students:          students,
		branches:          branches,
		files:             files,
		mailSvc:           mailSvc,
		logger:            logger,
		appName:           conf.AppName,
		defaultBranchCode: conf.Academy.DefaultBranchCode,
		countryCode:       conf.Academy.CountryCode,
	}
}

// SubmitTrial creates a pending trial application. The ID proof is optional.
func (svc *Service) SubmitTrial(ctx context.Context, na NewApplication, idProof *core.Upload) (PreAdmission, error) {
	return svc.submit(ctx, TypeTrial, na, idProof, nil)
}

// SubmitAdmission creates a pending admission application with its ID proof and payment screenshot.
func (svc *Service) SubmitAdmission(ctx context.Context, na NewApplication, idProof, payment *core.Upload) (PreAdmission, error) {
	var flds []core.FieldError
	if na.Email == "" {
		flds = append(flds, core.FieldError{Field: "email", Error: "this field is required"})
	}
	if idProof == nil {
		flds = append(flds, core.FieldError{Field: "id_proof", Error: "this field is required"})
	}
	if payment == nil {
		flds = append(flds, core.FieldError{Field: "payment_screenshot", Error: "this field is required"})
	}
	if len(flds) > 0 {
		return PreAdmission{}, core.NewValidationError(nil, flds...)
	}
	return svc.submit(ctx, TypeAdmission, na, idProof, payment)
}

func (svc *Service) submit(ctx context.Context, typ string, na NewApplication, idProof, payment *core.Upload) (PreAdmission, error) {
	now := NowFunc().UTC()
	pa := PreAdmission{
		Type:              typ,
		Name:              na.Name,
		Email:             na.Email,
		Phone:             core.NormalizePhone(na.Phone, svc.countryCode),
		DateOfBirth:       na.DateOfBirth,
		Gender:            na.Gender,
		Address:           na.Address,
		DanceStyle:        na.DanceStyle,
		ExperienceLevel:   na.ExperienceLevel,
		GuardianName:      na.GuardianName,
		GuardianPhone:     core.NormalizePhone(na.GuardianPhone, svc.countryCode),
		PreferredDate:     na.PreferredDate,
		PreferredTime:     na.PreferredTime,
		PaymentStatus:     PaymentPending,
		ApplicationStatus: StatusPending,
		CreatedAt:         now,
		UpdatedAt:         now,
	}

	if na.BranchID != 0 {
		if _, err := svc.branches.GetByID(ctx, na.BranchID); err != nil {
			if errors.Cause(err) == branch.ErrNotFound {
				return PreAdmission{}, errBranchNotFound
			}
			return PreAdmission{}, errors.Wrap(err, "getting branch")
		}
		pa.BranchID = null.Int64From(na.BranchID)
	}

	otpID, err := svc.phones.RequireVerified(ctx, pa.Phone, otp.PurposePreAdmission)
	if err != nil {
		return PreAdmission{}, err
	}

	var saved []func()
	cleanup := func() {
		for _, del := range saved {
			del()
		}
	}
	if idProof != nil {
		name, err := svc.saveFile(ctx, core.CategoryPreAdmission, *idProof, &saved)
		if err != nil {
			return PreAdmission{}, err
		}
		pa.IDProof = null.StringFrom(name)
	}
	if payment != nil {
		name, err := svc.saveFile(ctx, core.CategoryPayments, *payment, &saved)
		if err != nil {
			cleanup()
			return PreAdmission{}, err
		}
		pa.PaymentScreenshot = null.StringFrom(name)
		pa.PaymentStatus = PaymentUploaded
	}

	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if pa, err = svc.repo.Create(ctx, pa, tx); err != nil {
			return errors.Wrap(err, "creating application")
		}
		return errors.Wrap(svc.phones.Consume(ctx, otpID, tx), "consuming otp code")
	})
	if err != nil {
		cleanup()
		return PreAdmission{}, err
	}
	return pa, nil
}

// saveFile stores the upload and registers its deletion in cleanups.
func (svc *Service) saveFile(ctx context.Context, category string, upload core.Upload, cleanups *[]func()) (string, error) {
	name, err := svc.files.Save(ctx, category, upload)
	if err != nil {
		return "", err
	}
	*cleanups = append(*cleanups, func() {
		if err := svc.files.Delete(context.Background(), category, name); err != nil {
			svc.logger.Error(fmt.Sprintf("admission.cleanup(%s/%s): %v", category, name, err), err)
		}
	})
	return name, nil
}

func (svc *Service) Get(ctx context.Context, id int64) (PreAdmission, error) {
	return svc.repo.Get(ctx, id)
}

func (svc *Service) List(ctx context.Context, status string) ([]PreAdmission, error) {
	return svc.repo.List(ctx, status)
}

// File opens one of the stored files of an application. kind is FileIDProof or FilePayment.
func (svc *Service) File(ctx context.Context, id int64, kind string) (io.ReadCloser, string, error) {
	pa, err := svc.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}

	var category string
	var name null.String
	switch kind {
	case FileIDProof:
		category, name = core.CategoryPreAdmission, pa.IDProof
	case FilePayment:
		category, name = core.CategoryPayments, pa.PaymentScreenshot
	}
	if !name.Valid || name.String == "" {
		return nil, "", ErrFileNotFound
	}

	rc, err := svc.files.Open(ctx, category, name.String)
	if err != nil {
		return nil, "", err
	}
	return rc, name.String, nil
}

// VerifyPayment records the admin's decision on the payment evidence. The application status is unchanged.
func (svc *Service) VerifyPayment(ctx context.Context, id int64, status string) (PreAdmission, error) {
	pa, err := svc.repo.Get(ctx, id)
	if err != nil {
		return PreAdmission{}, err
	}
	if pa.ApplicationStatus != StatusPending {
		return PreAdmission{}, ErrNotPending
	}

	now := NowFunc().UTC()
	if err = svc.repo.SetPaymentStatus(ctx, id, status, now); err != nil {
		return PreAdmission{}, err
	}
	pa.PaymentStatus = status
	pa.UpdatedAt = now
	return pa, nil
}

// ApproveTrial schedules the trial class of a pending trial application and notifies the applicant.
func (svc *Service) ApproveTrial(ctx context.Context, id int64, st ScheduleTrial) (PreAdmission, error) {
	pa, err := svc.repo.Get(ctx, id)
	if err != nil {
		return PreAdmission{}, err
	}
	if pa.Type != TypeTrial {
		return PreAdmission{}, ErrNotTrial
	}
	if pa.ApplicationStatus != StatusPending {
		return PreAdmission{}, ErrNotPending
	}

	pa.ApplicationStatus = StatusTrialScheduled
	pa.TrialDate = null.StringFrom(st.Date)
	pa.TrialTime = null.StringFrom(st.Time)
	pa.AdminNotes = st.Notes
	pa.UpdatedAt = NowFunc().UTC()
	if err = svc.repo.Decide(ctx, pa, StatusPending); err != nil {
		return PreAdmission{}, err
	}

	svc.notify(pa, "Your Trial Class Is Scheduled", "trial_scheduled", map[string]interface{}{
		"Name":  pa.Name,
		"Date":  st.Date,
		"Time":  st.Time,
		"Notes": st.Notes,
	})
	return pa, nil
}

// CompleteTrial approves an application whose trial class took place.
func (svc *Service) CompleteTrial(ctx context.Context, id int64, notes string) (PreAdmission, error) {
	pa, err := svc.repo.Get(ctx, id)
	if err != nil {
		return PreAdmission{}, err
	}
	if pa.Type != TypeTrial {
		return PreAdmission{}, ErrNotTrial
	}
	if pa.ApplicationStatus != StatusTrialScheduled {
		return PreAdmission{}, core.NewPreconditionError("trial has not been scheduled")
	}

	now := NowFunc().UTC()
	pa.ApplicationStatus = StatusApproved
	if notes != "" {
		pa.AdminNotes = notes
	}
	pa.UpdatedAt = now
	if err = svc.repo.Decide(ctx, pa, StatusTrialScheduled); err != nil {
		return PreAdmission{}, err
	}
	return pa, nil
}

// ApproveAdmission approves a pending admission application whose payment was verified,
// and creates the student account it leads to. The generated credentials are emailed to the applicant.
func (svc *Service) ApproveAdmission(ctx context.Context, id, adminID int64, notes string) (PreAdmission, user.User, error) {
	pa, err := svc.repo.Get(ctx, id)
	if err != nil {
		return PreAdmission{}, user.User{}, err
	}
	switch {
	case pa.Type != TypeAdmission:
		return PreAdmission{}, user.User{}, ErrNotAdmission
	case pa.ApplicationStatus != StatusPending:
		return PreAdmission{}, user.User{}, ErrNotPending
	case pa.PaymentStatus != PaymentVerified:
		return PreAdmission{}, user.User{}, ErrPaymentNotVerified
	case pa.Email == "":
		return PreAdmission{}, user.User{}, ErrNoEmail
	}

	now := NowFunc().UTC()
	pa.ApplicationStatus = StatusApproved
	pa.AdminNotes = notes
	pa.ApprovedBy = null.Int64From(adminID)
	pa.ApprovedAt = null.TimeFrom(now)
	pa.UpdatedAt = now

	var (
		student user.User
		pwd     string
	)
	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		branchCode, err := svc.branchCode(ctx, pa, tx)
		if err != nil {
			return err
		}
		if err = svc.repo.Decide(ctx, pa, StatusPending, tx); err != nil {
			return err
		}
		student, pwd, err = svc.students.CreateAdmittedStudent(ctx, tx, user.NewAdmittedStudent{
			Name:           pa.Name,
			Email:          pa.Email,
			Phone:          pa.Phone,
			BranchCode:     branchCode,
			PreAdmissionID: pa.ID,
			Profile: user.StudentProfile{
				DanceStyle:      pa.DanceStyle,
				ExperienceLevel: pa.ExperienceLevel,
				DateOfBirth:     pa.DateOfBirth,
				Address:         pa.Address,
				GuardianName:    pa.GuardianName,
				GuardianPhone:   pa.GuardianPhone,
			},
		})
		return err
	})
	if err != nil {
		return PreAdmission{}, user.User{}, err
	}

	svc.notify(pa, "Welcome to "+svc.appName, "admission_approved", map[string]interface{}{
		"Name":      student.Name,
		"StudentID": student.StudentID.String,
		"Email":     student.Email,
		"Password":  pwd,
	})
	return pa, student, nil
}

// Reject rejects a pending application and notifies the applicant.
func (svc *Service) Reject(ctx context.Context, id int64, notes string) (PreAdmission, error) {
	pa, err := svc.repo.Get(ctx, id)
	if err != nil {
		return PreAdmission{}, err
	}
	if pa.ApplicationStatus != StatusPending {
		return PreAdmission{}, ErrNotPending
	}

	pa.ApplicationStatus = StatusRejected
	pa.AdminNotes = notes
	pa.UpdatedAt = NowFunc().UTC()
	if err = svc.repo.Decide(ctx, pa, StatusPending); err != nil {
		return PreAdmission{}, err
	}

	svc.notify(pa, "About Your Application", "application_rejected", map[string]interface{}{
		"Name":  pa.Name,
		"Type":  pa.Type,
		"Notes": notes,
	})
	return pa, nil
}

func (svc *Service) branchCode(ctx context.Context, pa PreAdmission, exec core.DBExecutor) (string, error) {
	if !pa.BranchID.Valid {
		return svc.defaultBranchCode, nil
	}
	b, err := svc.branches.GetByID(ctx, pa.BranchID.Int64, exec)
	if err != nil {
		if errors.Cause(err) == branch.ErrNotFound {
			return svc.defaultBranchCode, nil
		}
		return "", errors.Wrap(err, "getting branch")
	}
	return b.Code, nil
}

func (svc *Service) notify(pa PreAdmission, subject, tmpl string, data map[string]interface{}) {
	if pa.Email == "" {
		svc.logger.Info(fmt.Sprintf("admission.notify(%d): no email address, %s not sent", pa.ID, tmpl))
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: pa.Name, Address: pa.Email}},
		Subject:      subject,
		TemplateName: tmpl,
		TemplateData: data,
	})
}
