package admission

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
)

// Application types
const (
	TypeTrial     = "trial"
	TypeAdmission = "admission"
)

// Payment statuses
const (
	PaymentPending  = "pending"
	PaymentUploaded = "uploaded"
	PaymentVerified = "verified"
	PaymentRejected = "rejected"
)

// Application statuses
const (
	StatusPending        = "pending"
	StatusTrialScheduled = "trial_scheduled"
	StatusApproved       = "approved"
	StatusRejected       = "rejected"
)

// Stored files
const (
	FileIDProof = "id_proof"
	FilePayment = "payment"
)

var (
	Types    = []string{TypeTrial, TypeAdmission}
	Statuses = []string{StatusPending, StatusTrialScheduled, StatusApproved, StatusRejected}
)

// PreAdmission is a trial or admission application submitted before the applicant becomes a student.
type PreAdmission struct {
	ID                int64       `json:"id" db:"id"`
	Type              string      `json:"type" db:"type"`
	BranchID          null.Int64  `json:"branch_id" db:"branch_id"`
	Name              string      `json:"name" db:"name"`
	Email             string      `json:"email" db:"email"`
	Phone             string      `json:"phone" db:"phone"`
	DateOfBirth       string      `json:"date_of_birth" db:"date_of_birth"`
	Gender            string      `json:"gender" db:"gender"`
	Address           string      `json:"address" db:"address"`
	DanceStyle        string      `json:"dance_style" db:"dance_style"`
	ExperienceLevel   string      `json:"experience_level" db:"experience_level"`
	GuardianName      string      `json:"guardian_name" db:"guardian_name"`
	GuardianPhone     string      `json:"guardian_phone" db:"guardian_phone"`
	PreferredDate     string      `json:"preferred_date" db:"preferred_date"`
	PreferredTime     string      `json:"preferred_time" db:"preferred_time"`
	IDProof           null.String `json:"id_proof" db:"id_proof"`
	PaymentScreenshot null.String `json:"payment_screenshot" db:"payment_screenshot"`
	PaymentStatus     string      `json:"payment_status" db:"payment_status"`
	ApplicationStatus string      `json:"application_status" db:"application_status"`
	TrialDate         null.String `json:"trial_date" db:"trial_date"`
	TrialTime         null.String `json:"trial_time" db:"trial_time"`
	AdminNotes        string      `json:"admin_notes" db:"admin_notes"`
	ApprovedBy        null.Int64  `json:"approved_by" db:"approved_by"`
	ApprovedAt        null.Time   `json:"approved_at" db:"approved_at"` // UTC
	CreatedAt         time.Time   `json:"created_at" db:"created_at"`   // UTC
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"`   // UTC
}

// NewApplication contains the applicant's information. It is bound from multipart forms.
type NewApplication struct {
	BranchID        int64  `json:"branch_id" form:"branch_id" validate:"omitempty,min=1"`
	Name            string `json:"name" form:"name" validate:"required,max=100"`
	Email           string `json:"email" form:"email" validate:"omitempty,email"`
	Phone           string `json:"phone" form:"phone" validate:"required,phone"`
	DateOfBirth     string `json:"date_of_birth" form:"date_of_birth" validate:"omitempty,date"`
	Gender          string `json:"gender" form:"gender" validate:"omitempty,oneof=male female other"`
	Address         string `json:"address" form:"address" validate:"max=500"`
	DanceStyle      string `json:"dance_style" form:"dance_style" validate:"max=100"`
	ExperienceLevel string `json:"experience_level" form:"experience_level" validate:"max=100"`
	GuardianName    string `json:"guardian_name" form:"guardian_name" validate:"max=100"`
	GuardianPhone   string `json:"guardian_phone" form:"guardian_phone" validate:"omitempty,phone"`
	PreferredDate   string `json:"preferred_date" form:"preferred_date" validate:"omitempty,date"`
	PreferredTime   string `json:"preferred_time" form:"preferred_time" validate:"omitempty,clock"`
}

func (na *NewApplication) Validate(validate *validator.Validate) error {
	na.Name = core.CleanString(na.Name)
	na.Email = core.CleanString(na.Email, true /* lower */)
	na.Phone = core.CleanPhone(na.Phone)
	na.DateOfBirth = core.CleanString(na.DateOfBirth)
	na.Gender = core.CleanString(na.Gender, true /* lower */)
	na.Address = core.CleanString(na.Address)
	na.DanceStyle = core.CleanString(na.DanceStyle)
	na.ExperienceLevel = core.CleanString(na.ExperienceLevel)
	na.GuardianName = core.CleanString(na.GuardianName)
	na.GuardianPhone = core.CleanPhone(na.GuardianPhone)
	na.PreferredDate = core.CleanString(na.PreferredDate)
	na.PreferredTime = core.CleanString(na.PreferredTime)
	return validate.Struct(na)
}

type ScheduleTrial struct {
	Date  string `json:"date" validate:"required,date"`
	Time  string `json:"time" validate:"required,clock"`
	Notes string `json:"notes" validate:"max=1000"`
}

func (st *ScheduleTrial) Validate(validate *validator.Validate) error {
	st.Date = core.CleanString(st.Date)
	st.Time = core.CleanString(st.Time)
	st.Notes = core.CleanString(st.Notes)
	return validate.Struct(st)
}

type PaymentDecision struct {
	Status string `json:"status" validate:"required,oneof=verified rejected"`
}

func (pd *PaymentDecision) Validate(validate *validator.Validate) error {
	pd.Status = core.CleanString(pd.Status, true /* lower */)
	return validate.Struct(pd)
}

// Notes carries the admin notes of an approval or a rejection.
type Notes struct {
	Notes string `json:"notes" validate:"max=1000"`
}

func (n *Notes) Validate(validate *validator.Validate) error {
	n.Notes = core.CleanString(n.Notes)
	return validate.Struct(n)
}
