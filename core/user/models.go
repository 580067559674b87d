package user

import (
	"context"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"
	"golang.org/x/crypto/bcrypt"

	"github.com/trezcool/natya/core"
)

// Roles
const (
	RoleAdmin   = "admin"
	RoleStudent = "student"
)

// Enrollment statuses
const (
	EnrollmentPending = "pending"
	EnrollmentActive  = "active"
	EnrollmentPaused  = "paused"
)

var (
	Roles              = []string{RoleAdmin, RoleStudent}
	EnrollmentStatuses = []string{EnrollmentPending, EnrollmentActive, EnrollmentPaused}
)

type User struct {
	ID             int64           `json:"id" db:"id"`
	Role           string          `json:"role" db:"role"`
	Name           string          `json:"name" db:"name"`
	Email          string          `json:"email" db:"email"`
	Phone          string          `json:"phone" db:"phone"`
	StudentID      null.String     `json:"student_id" db:"student_id"`
	PreAdmissionID null.Int64      `json:"pre_admission_id" db:"pre_admission_id"`
	IsActive       bool            `json:"is_active" db:"is_active"`
	PasswordHash   []byte          `json:"-" db:"password_hash"`
	CreatedAt      time.Time       `json:"created_at" db:"created_at"` // UTC
	UpdatedAt      time.Time       `json:"updated_at" db:"updated_at"` // UTC
	LastLogin      null.Time       `json:"last_login" db:"last_login"` // UTC
	Details        *StudentDetails `json:"details,omitempty" db:"-"`
}

func (u *User) SetPassword(pwd string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(pwd), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	return nil
}

func (u *User) CheckPassword(pwd string) error {
	return bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(pwd))
}

func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

func (u *User) IsStudent() bool {
	return u.Role == RoleStudent
}

// StudentDetails extends a student User. Exactly one exists per student.
type StudentDetails struct {
	UserID           int64     `json:"-" db:"user_id"`
	DanceStyle       string    `json:"dance_style" db:"dance_style"`
	ExperienceLevel  string    `json:"experience_level" db:"experience_level"`
	DateOfBirth      string    `json:"date_of_birth" db:"date_of_birth"` // YYYY-MM-DD
	Address          string    `json:"address" db:"address"`
	GuardianName     string    `json:"guardian_name" db:"guardian_name"`
	GuardianPhone    string    `json:"guardian_phone" db:"guardian_phone"`
	EmergencyContact string    `json:"emergency_contact" db:"emergency_contact"`
	EnrollmentStatus string    `json:"enrollment_status" db:"enrollment_status"`
	EnrollmentDate   null.Time `json:"enrollment_date" db:"enrollment_date"` // UTC
}

// StudentProfile contains the student details a student may provide.
type StudentProfile struct {
	DanceStyle       string `json:"dance_style" form:"dance_style" validate:"max=100"`
	ExperienceLevel  string `json:"experience_level" form:"experience_level" validate:"max=100"`
	DateOfBirth      string `json:"date_of_birth" form:"date_of_birth" validate:"omitempty,date"`
	Address          string `json:"address" form:"address" validate:"max=500"`
	GuardianName     string `json:"guardian_name" form:"guardian_name" validate:"max=100"`
	GuardianPhone    string `json:"guardian_phone" form:"guardian_phone" validate:"omitempty,phone"`
	EmergencyContact string `json:"emergency_contact" form:"emergency_contact" validate:"max=100"`
}

func (sp *StudentProfile) clean() {
	sp.DanceStyle = core.CleanString(sp.DanceStyle)
	sp.ExperienceLevel = core.CleanString(sp.ExperienceLevel)
	sp.DateOfBirth = core.CleanString(sp.DateOfBirth)
	sp.Address = core.CleanString(sp.Address)
	sp.GuardianName = core.CleanString(sp.GuardianName)
	sp.GuardianPhone = core.CleanPhone(sp.GuardianPhone)
	sp.EmergencyContact = core.CleanString(sp.EmergencyContact)
}

// NewStudent contains information needed to register a new student.
type NewStudent struct {
	Name            string `json:"name" validate:"required,max=100"`
	Email           string `json:"email" validate:"required,email"`
	Phone           string `json:"phone" validate:"required,phone"`
	Password        string `json:"password" validate:"required"`
	PasswordConfirm string `json:"password_confirm" validate:"required,eqfield=Password"`
	StudentProfile
}

func (ns *NewStudent) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.Name = core.CleanString(ns.Name)
	ns.Email = core.CleanString(ns.Email, true /* lower */)
	ns.Phone = core.CleanPhone(ns.Phone)
	ns.StudentProfile.clean()

	if err := validate.Struct(ns); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, ns.Email)
}

// NewAdmin contains information needed to create or update an admin account.
type NewAdmin struct {
	Name     string `json:"name" validate:"required,max=100"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func (na *NewAdmin) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	return validate.Struct(na)
}

// NewAdmittedStudent contains information needed to create a student from an approved admission.
type NewAdmittedStudent struct {
	Name           string
	Email          string
	Phone          string
	BranchCode     string
	PreAdmissionID int64
	Profile        StudentProfile
}

// UpdateUser defines what information may be provided to modify an existing User.
// Empty fields are left unchanged.
type UpdateUser struct {
	Name            string          `json:"name" validate:"max=100"`
	Email           string          `json:"email" validate:"omitempty,email"`
	Phone           string          `json:"phone" validate:"omitempty,phone"`
	IsActive        *bool           `json:"is_active"`
	Password        string          `json:"password" validate:"omitempty"`
	PasswordConfirm string          `json:"password_confirm" validate:"required_with=Password,eqfield=Password"`
	Profile         *StudentProfile `json:"details"`
}

func (uu *UpdateUser) Validate(ctx context.Context, origUsr User, validate *validator.Validate, svc *Service) error {
	if name := core.CleanString(uu.Name); name != "" {
		uu.Name = name
	} else {
		uu.Name = origUsr.Name
	}

	if email := core.CleanString(uu.Email, true /* lower */); email != "" {
		uu.Email = email
	} else {
		uu.Email = origUsr.Email
	}

	if phone := core.CleanPhone(uu.Phone); phone != "" {
		uu.Phone = phone
	} else {
		uu.Phone = origUsr.Phone
	}

	if uu.Profile != nil {
		uu.Profile.clean()
	}

	if err := validate.Struct(uu); err != nil {
		return err
	}
	return svc.CheckEmailUniqueness(ctx, uu.Email, origUsr)
}

type ResetUserPassword struct {
	Token           string `json:"token,omitempty" validate:"required"`
	UID             string `json:"uid,omitempty" validate:"required"`
	Password        string `json:"password,omitempty" validate:"required"`
	PasswordConfirm string `json:"password_confirm,omitempty" validate:"required,eqfield=Password"`
}

func (rp *ResetUserPassword) Validate(validate *validator.Validate) error { return validate.Struct(rp) }

// SetEnrollment is used by admins to change a student's enrollment status.
type SetEnrollment struct {
	Status string `json:"status" validate:"required,oneof=pending active paused"`
}

func (se *SetEnrollment) Validate(validate *validator.Validate) error {
	se.Status = core.CleanString(se.Status, true /* lower */)
	return validate.Struct(se)
}

type QueryFilter struct {
	Search           string `query:"search"`
	Role             string `query:"role"`
	EnrollmentStatus string `query:"enrollment_status"`
	IsActive         *bool  `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.Role = core.CleanString(qf.Role, true /* lower */)
	qf.EnrollmentStatus = core.CleanString(qf.EnrollmentStatus, true /* lower */)
}
