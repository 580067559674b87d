package user

import (
	"context"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
)

var (
	// errors
	ErrNotFound       = core.NewNotFoundError("user")
	ErrEmailExists    = core.NewConflictError("a user with this email already exists", "email")
	ErrNotStudent     = core.NewPreconditionError("user is not a student")
	ErrStudentIDTaken = core.NewConflictError("could not generate a unique student ID")

	generatedPasswordLen  = 12
	studentIDMaxAttempts  = 10
	randomDigitsFunc      = core.RandomDigits // mockable
	generatePasswordFunc  = func() (string, error) { return core.RandomAlphaNum(generatedPasswordLen) }
	errInvalidResetParams = core.NewValidationError(errors.New("invalid password reset link"))
)

type (
	Repository interface {
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers []User, exec ...core.DBExecutor) error
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		CreateStudentDetails(ctx context.Context, details StudentDetails, exec ...core.DBExecutor) error
		// GetUser returns the User with its StudentDetails if it is a student.
		GetUser(ctx context.Context, id int64, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		StudentIDExists(ctx context.Context, studentID string, exec ...core.DBExecutor) (bool, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name, User.Email or User.StudentID.
		FilterUsers(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]User, error)
		UpdateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		UpdateStudentDetails(ctx context.Context, details StudentDetails, exec ...core.DBExecutor) error
		SetLastLogin(ctx context.Context, id int64, at time.Time) error
		DeleteStudentDetails(ctx context.Context, userIDs []int64, exec ...core.DBExecutor) error
		DeleteUsers(ctx context.Context, ids []int64, exec ...core.DBExecutor) error
	}

	// Dependent is implemented by the aggregates owned by a User, which are deleted along with it.
	Dependent interface {
		// DeleteForUsers deletes the records owned by the users. The returned func, if any,
		// releases external resources (e.g. stored files) once the deletion is committed.
		DeleteForUsers(ctx context.Context, exec core.DBExecutor, userIDs ...int64) (func(), error)
	}

	Service struct {
		db         core.DB
		repo       Repository
		mailSvc    core.EmailService
		tokens     tokenGenerator
		dependents []Dependent
	}
)

func NewService(db core.DB, repo Repository, mailSvc core.EmailService, conf *core.Config, dependents ...Dependent) *Service {
	return &Service{
		db:      db,
		repo:    repo,
		mailSvc: mailSvc,
		tokens: tokenGenerator{
			secretKey:    conf.SecretKey,
			timeoutDelta: conf.PasswordResetTimeoutDelta,
		},
		dependents: dependents,
	}
}

func (svc *Service) CheckEmailUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	return svc.repo.CheckEmailUniqueness(ctx, email, exclUsers)
}

// Register creates a student account with its pending enrollment.
func (svc *Service) Register(ctx context.Context, ns NewStudent) (User, error) {
	now := NowFunc().UTC()
	usr := User{
		Role:      RoleStudent,
		Name:      ns.Name,
		Email:     ns.Email,
		Phone:     ns.Phone,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(ns.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		if usr, err = svc.repo.CreateUser(ctx, usr, tx); err != nil {
			return errors.Wrap(err, "creating user")
		}
		details := newStudentDetails(usr.ID, ns.StudentProfile, EnrollmentPending, null.Time{})
		if err = svc.repo.CreateStudentDetails(ctx, details, tx); err != nil {
			return errors.Wrap(err, "creating student details")
		}
		usr.Details = &details
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

// CreateAdmittedStudent creates an active student from an approved admission, within the caller's transaction.
// It returns the User and its generated plain-text password.
func (svc *Service) CreateAdmittedStudent(ctx context.Context, exec core.DBExecutor, ns NewAdmittedStudent) (User, string, error) {
	email := core.CleanString(ns.Email, true /* lower */)
	if err := svc.repo.CheckEmailUniqueness(ctx, email, nil, exec); err != nil {
		return User{}, "", err
	}

	studentID, err := svc.generateStudentID(ctx, exec, ns.BranchCode)
	if err != nil {
		return User{}, "", err
	}
	pwd, err := generatePasswordFunc()
	if err != nil {
		return User{}, "", errors.Wrap(err, "generating password")
	}

	now := NowFunc().UTC()
	usr := User{
		Role:           RoleStudent,
		Name:           ns.Name,
		Email:          email,
		Phone:          ns.Phone,
		StudentID:      null.StringFrom(studentID),
		PreAdmissionID: null.NewInt64(ns.PreAdmissionID, ns.PreAdmissionID != 0),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, "", errors.Wrap(err, "setting password")
	}
	if usr, err = svc.repo.CreateUser(ctx, usr, exec); err != nil {
		return User{}, "", errors.Wrap(err, "creating user")
	}
	details := newStudentDetails(usr.ID, ns.Profile, EnrollmentActive, null.TimeFrom(now))
	if err = svc.repo.CreateStudentDetails(ctx, details, exec); err != nil {
		return User{}, "", errors.Wrap(err, "creating student details")
	}
	usr.Details = &details
	return usr, pwd, nil
}

// generateStudentID returns a student ID made of the branch code, the 2-digit year and 4 random digits.
// Random suffixes are drawn again when the ID is already taken.
func (svc *Service) generateStudentID(ctx context.Context, exec core.DBExecutor, branchCode string) (string, error) {
	prefix := fmt.Sprintf("%s%02d", strings.ToUpper(branchCode), NowFunc().UTC().Year()%100)
	for i := 0; i < studentIDMaxAttempts; i++ {
		suffix, err := randomDigitsFunc(4)
		if err != nil {
			return "", errors.Wrap(err, "generating student ID")
		}
		studentID := prefix + suffix
		exists, err := svc.repo.StudentIDExists(ctx, studentID, exec)
		if err != nil {
			return "", errors.Wrap(err, "checking student ID")
		}
		if !exists {
			return studentID, nil
		}
	}
	return "", ErrStudentIDTaken
}

// SaveAdmin creates an admin account, or updates the account already using this email into an active admin.
func (svc *Service) SaveAdmin(ctx context.Context, na NewAdmin) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, na.Email)
	if err != nil && errors.Cause(err) != ErrNotFound {
		return User{}, errors.Wrap(err, "finding user by email")
	}

	now := NowFunc().UTC()
	usr.Role = RoleAdmin
	usr.Name = na.Name
	usr.Email = na.Email
	usr.IsActive = true
	usr.UpdatedAt = now
	if err = usr.SetPassword(na.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}

	if usr.ID == 0 {
		usr.CreatedAt = now
		return svc.repo.CreateUser(ctx, usr)
	}
	return svc.repo.UpdateUser(ctx, usr)
}

func (svc *Service) GetByID(ctx context.Context, id int64) (User, error) {
	return svc.repo.GetUser(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, orderings []core.DBOrdering) ([]User, error) {
	return svc.repo.FilterUsers(ctx, filter, orderings)
}

func (svc *Service) Update(ctx context.Context, id int64, uu UpdateUser) (User, error) {
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}

	usr.Name = uu.Name
	usr.Email = uu.Email
	usr.Phone = uu.Phone
	usr.UpdatedAt = NowFunc().UTC()
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err = usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}

	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		details := usr.Details
		if usr, err = svc.repo.UpdateUser(ctx, usr, tx); err != nil {
			return errors.Wrap(err, "updating user")
		}
		if details != nil && uu.Profile != nil {
			updated := newStudentDetails(usr.ID, *uu.Profile, details.EnrollmentStatus, details.EnrollmentDate)
			if err = svc.repo.UpdateStudentDetails(ctx, updated, tx); err != nil {
				return errors.Wrap(err, "updating student details")
			}
			details = &updated
		}
		usr.Details = details
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return usr, nil
}

// SetEnrollmentStatus changes a student's enrollment status. The enrollment date is set on first activation.
func (svc *Service) SetEnrollmentStatus(ctx context.Context, id int64, status string) (User, error) {
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		return User{}, err
	}
	if !usr.IsStudent() || usr.Details == nil {
		return User{}, ErrNotStudent
	}

	details := *usr.Details
	details.EnrollmentStatus = status
	if status == EnrollmentActive && !details.EnrollmentDate.Valid {
		details.EnrollmentDate = null.TimeFrom(NowFunc().UTC())
	}
	if err = svc.repo.UpdateStudentDetails(ctx, details); err != nil {
		return User{}, errors.Wrap(err, "updating student details")
	}
	usr.Details = &details
	return usr, nil
}

func (svc *Service) SetLastLogin(ctx context.Context, usr User) (User, error) {
	now := NowFunc().UTC()
	if err := svc.repo.SetLastLogin(ctx, usr.ID, now); err != nil {
		return User{}, err
	}
	usr.LastLogin = null.TimeFrom(now)
	return usr, nil
}

// SetPassword sets the password of the user identified by email, without applying the password policy.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return err
}

// Delete deletes the users along with every record they own.
func (svc *Service) Delete(ctx context.Context, ids ...int64) error {
	if len(ids) == 0 {
		return nil
	}

	var cleanups []func()
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		for _, dep := range svc.dependents {
			cleanup, err := dep.DeleteForUsers(ctx, tx, ids...)
			if err != nil {
				return errors.Wrap(err, "deleting owned records")
			}
			if cleanup != nil {
				cleanups = append(cleanups, cleanup)
			}
		}
		if err := svc.repo.DeleteStudentDetails(ctx, ids, tx); err != nil {
			return errors.Wrap(err, "deleting student details")
		}
		return errors.Wrap(svc.repo.DeleteUsers(ctx, ids, tx), "deleting users")
	})
	if err != nil {
		return err
	}

	for _, cleanup := range cleanups {
		cleanup()
	}
	return nil
}

func (svc *Service) RequestPasswordReset(ctx context.Context, email string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if !usr.IsActive {
		return ErrNotFound
	}

	token, err := svc.tokens.makeToken(usr)
	if err != nil {
		return errors.Wrap(err, "making password reset token")
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: usr.Name, Address: usr.Email}},
		Subject:      "Password Reset",
		TemplateName: "password_reset",
		TemplateData: map[string]interface{}{
			"Name":  usr.Name,
			"UID":   EncodeUID(usr),
			"Token": token,
		},
	})
	return nil
}

func (svc *Service) ResetPassword(ctx context.Context, rp ResetUserPassword) error {
	id, err := decodeUID(rp.UID)
	if err != nil {
		return errInvalidResetParams
	}
	usr, err := svc.repo.GetUser(ctx, id)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return errInvalidResetParams
		}
		return errors.Wrap(err, "finding user by ID")
	}
	if err = svc.tokens.verifyToken(usr, rp.Token); err != nil {
		if err == errInvalidToken || err == errTokenExpired {
			return errInvalidResetParams
		}
		return errors.Wrap(err, "verifying token")
	}

	if err = usr.SetPassword(rp.Password); err != nil {
		return errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = NowFunc().UTC()
	_, err = svc.repo.UpdateUser(ctx, usr)
	return errors.Wrap(err, "updating user")
}

func newStudentDetails(userID int64, p StudentProfile, status string, enrolledAt null.Time) StudentDetails {
	return StudentDetails{
		UserID:           userID,
		DanceStyle:       p.DanceStyle,
		ExperienceLevel:  p.ExperienceLevel,
		DateOfBirth:      p.DateOfBirth,
		Address:          p.Address,
		GuardianName:     p.GuardianName,
		GuardianPhone:    p.GuardianPhone,
		EmergencyContact: p.EmergencyContact,
		EnrollmentStatus: status,
		EnrollmentDate:   enrolledAt,
	}
}
