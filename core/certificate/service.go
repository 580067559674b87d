package certificate

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
	"github.com/trezcool/natya/core/user"
)

var (
	NowFunc          = time.Now          // mockable
	randomDigitsFunc = core.RandomDigits // mockable

	numberMaxAttempts = 10

	// errors
	ErrNotFound        = core.NewNotFoundError("certificate")
	ErrAlreadyPending  = core.NewConflictError("a certificate application is already pending")
	ErrAlreadyApproved = core.NewConflictError("this certificate has already been approved", "certificate_type")
	ErrNotEligible     = core.NewPreconditionError("student is not yet eligible for certificates")
	ErrNumberExhausted = core.NewConflictError("could not generate a unique certificate number")
)

type (
	Repository interface {
		// Create returns ErrAlreadyPending when the student already has a pending certificate.
		Create(ctx context.Context, c Certificate) (Certificate, error)
		Get(ctx context.Context, id int64, exec ...core.DBExecutor) (Certificate, error)
		// ListByUser returns the certificates of a student in progression order.
		ListByUser(ctx context.Context, userID int64, exec ...core.DBExecutor) ([]Certificate, error)
		// List returns every certificate with its student, most recent application first. An empty status returns them all.
		List(ctx context.Context, status string) ([]StudentCertificate, error)
		NumberExists(ctx context.Context, number string, exec ...core.DBExecutor) (bool, error)
		Update(ctx context.Context, c Certificate, exec ...core.DBExecutor) (Certificate, error)
		// DeleteApproved deletes the approved certificates of a student, except the one with keepID.
		DeleteApproved(ctx context.Context, userID, keepID int64, exec ...core.DBExecutor) (int64, error)
		DeleteByUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) error
	}

	// UserGetter is satisfied by user.Repository.
	UserGetter interface {
		GetUser(ctx context.Context, id int64, exec ...core.DBExecutor) (user.User, error)
	}

	Service struct {
		db            core.DB
		repo          Repository
		users         UserGetter
		mailSvc       core.EmailService
		logger        core.Logger
		numberPrefix  string
		eligibleAfter time.Duration
	}
)

func NewService(
	db core.DB,
	repo Repository,
	users UserGetter,
	mailSvc core.EmailService,
	logger core.Logger,
	conf *core.Config,
) *Service {
	return &Service{
		db:            db,
		repo:          repo,
		users:         users,
		mailSvc:       mailSvc,
		logger:        logger,
		numberPrefix:  conf.Certificates.NumberPrefix,
		eligibleAfter: conf.Certificates.EligibleAfter,
	}
}

// eligibleFrom returns when the student becomes eligible. Students never activated are not eligible.
func (svc *Service) eligibleFrom(usr user.User) null.Time {
	if usr.Details == nil || !usr.Details.EnrollmentDate.Valid {
		return null.Time{}
	}
	return null.TimeFrom(usr.Details.EnrollmentDate.Time.Add(svc.eligibleAfter))
}

func (svc *Service) getStudent(ctx context.Context, userID int64) (user.User, error) {
	usr, err := svc.users.GetUser(ctx, userID)
	if err != nil {
		return user.User{}, err
	}
	if !usr.IsStudent() {
		return user.User{}, user.ErrNotStudent
	}
	return usr, nil
}

// NextAvailable returns the lowest type the student does not hold, or nil when every level is approved.
func NextAvailable(certs []Certificate) *Type {
	approved := make(map[string]bool, len(certs))
	for _, c := range certs {
		if c.Status == StatusApproved {
			approved[c.CertificateType] = true
		}
	}
	for _, t := range Catalog {
		if !approved[t.Code] {
			t := t
			return &t
		}
	}
	return nil
}

// highestApprovedRank returns 0 when nothing is approved.
func highestApprovedRank(certs []Certificate) int {
	var highest int
	for _, c := range certs {
		if rank := c.Type().Rank; c.Status == StatusApproved && rank > highest {
			highest = rank
		}
	}
	return highest
}

// Apply opens a pending application for a certificate type. A previously rejected application is reopened.
func (svc *Service) Apply(ctx context.Context, userID int64, app Application) (Certificate, error) {
	usr, err := svc.getStudent(ctx, userID)
	if err != nil {
		return Certificate{}, err
	}
	now := NowFunc().UTC()
	if from := svc.eligibleFrom(usr); !from.Valid || now.Before(from.Time) {
		return Certificate{}, ErrNotEligible
	}

	certs, err := svc.repo.ListByUser(ctx, userID)
	if err != nil {
		return Certificate{}, errors.Wrap(err, "listing certificates")
	}
	var existing *Certificate
	for i, c := range certs {
		if c.Status == StatusPending {
			return Certificate{}, ErrAlreadyPending
		}
		if c.CertificateType == app.CertificateType {
			existing = &certs[i]
		}
	}

	if existing == nil {
		return svc.repo.Create(ctx, Certificate{
			UserID:          userID,
			CertificateType: app.CertificateType,
			Status:          StatusPending,
			ApplicationDate: now,
		})
	}
	if existing.Status == StatusApproved {
		return Certificate{}, ErrAlreadyApproved
	}
	existing.Status = StatusPending
	existing.ApplicationDate = now
	existing.AdminNotes = ""
	return svc.repo.Update(ctx, *existing)
}

// Decide approves or rejects a certificate. An approval that skips at least one level past the
// student's highest approved level deletes every other approved certificate of the student.
func (svc *Service) Decide(ctx context.Context, id int64, d Decision) (Certificate, error) {
	var c Certificate
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if c, err = svc.repo.Get(ctx, id, tx); err != nil {
			return err
		}
		certs, err := svc.repo.ListByUser(ctx, c.UserID, tx)
		if err != nil {
			return errors.Wrap(err, "listing certificates")
		}
		highest := highestApprovedRank(certs)

		c.Status = d.Status
		c.AdminNotes = d.Notes
		if d.Status == StatusApproved {
			now := NowFunc().UTC()
			if !c.CertificateNumber.Valid {
				number, err := svc.generateNumber(ctx, tx, c.CertificateType, now.Year())
				if err != nil {
					return err
				}
				c.CertificateNumber = null.StringFrom(number)
			}
			c.IssueDate = null.TimeFrom(now)
		}
		if c, err = svc.repo.Update(ctx, c, tx); err != nil {
			return errors.Wrap(err, "updating certificate")
		}

		if d.Status == StatusApproved && c.Type().Rank > highest+1 {
			if _, err = svc.repo.DeleteApproved(ctx, c.UserID, c.ID, tx); err != nil {
				return errors.Wrap(err, "deleting skipped certificates")
			}
		}
		return nil
	})
	if err != nil {
		return Certificate{}, err
	}

	svc.notify(ctx, c)
	return c, nil
}

// generateNumber returns a certificate number formatted as PREFIX-TYPE-YEAR-NNNN.
func (svc *Service) generateNumber(ctx context.Context, exec core.DBExecutor, typeCode string, year int) (string, error) {
	for i := 0; i < numberMaxAttempts; i++ {
		suffix, err := randomDigitsFunc(4)
		if err != nil {
			return "", errors.Wrap(err, "generating certificate number")
		}
		number := fmt.Sprintf("%s-%s-%d-%s", svc.numberPrefix, typeCode, year, suffix)
		exists, err := svc.repo.NumberExists(ctx, number, exec)
		if err != nil {
			return "", errors.Wrap(err, "checking certificate number")
		}
		if !exists {
			return number, nil
		}
	}
	return "", ErrNumberExhausted
}

func (svc *Service) List(ctx context.Context, status string) ([]StudentCertificate, error) {
	return svc.repo.List(ctx, status)
}

func (svc *Service) Overview(ctx context.Context, userID int64) (Overview, error) {
	usr, err := svc.getStudent(ctx, userID)
	if err != nil {
		return Overview{}, err
	}
	certs, err := svc.repo.ListByUser(ctx, userID)
	if err != nil {
		return Overview{}, err
	}

	ov := Overview{
		Certificates:  certs,
		EligibleFrom:  svc.eligibleFrom(usr),
		NextAvailable: NextAvailable(certs),
	}
	ov.Eligible = ov.EligibleFrom.Valid && !NowFunc().UTC().Before(ov.EligibleFrom.Time)
	for _, c := range certs {
		if c.Status == StatusPending {
			ov.HasPending = true
			break
		}
	}
	return ov, nil
}

// DeleteForUsers deletes the certificates of the users.
func (svc *Service) DeleteForUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) (func(), error) {
	return nil, svc.repo.DeleteByUsers(ctx, exec, userIDs...)
}

func (svc *Service) notify(ctx context.Context, c Certificate) {
	usr, err := svc.users.GetUser(ctx, c.UserID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("certificate.notify(%d): %v", c.ID, err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Certificate " + c.Type().Name,
		TemplateName: "certificate_decided",
		TemplateData: map[string]interface{}{
			"Name":        usr.Name,
			"Certificate": c.Type().Name,
			"Status":      c.Status,
			"Number":      c.CertificateNumber.String,
			"Notes":       c.AdminNotes,
		},
	})
}
