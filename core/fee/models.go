package fee

import (
	"fmt"
	"math"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusUploaded = "uploaded"
	StatusVerified = "verified"
	StatusRejected = "rejected"
	StatusPaid     = "paid"
)

// Payment methods
const (
	MethodOnline = "online"
	MethodCash   = "cash"
)

var Statuses = []string{StatusPending, StatusUploaded, StatusVerified, StatusRejected, StatusPaid}

// Record is the fee of a student for a month. Amounts are in whole currency units.
type Record struct {
	ID                int64       `json:"id" db:"id"`
	UserID            int64       `json:"user_id" db:"user_id"`
	Month             int         `json:"month" db:"month"`
	Year              int         `json:"year" db:"year"`
	BaseAmount        int64       `json:"base_amount" db:"base_amount"`
	PenaltyAmount     int64       `json:"penalty_amount" db:"penalty_amount"`
	TotalAmount       int64       `json:"total_amount" db:"total_amount"`
	AmountPaid        null.Int64  `json:"amount_paid" db:"amount_paid"`
	DueDate           time.Time   `json:"due_date" db:"due_date"` // UTC
	Status            string      `json:"status" db:"status"`
	PaymentMethod     null.String `json:"payment_method" db:"payment_method"`
	PaymentScreenshot null.String `json:"payment_screenshot" db:"payment_screenshot"`
	SubmittedAt       null.Time   `json:"submitted_at" db:"submitted_at"` // UTC
	PaymentDate       null.Time   `json:"payment_date" db:"payment_date"` // UTC
	AdminNotes        string      `json:"admin_notes" db:"admin_notes"`
	CreatedAt         time.Time   `json:"created_at" db:"created_at"` // UTC
	UpdatedAt         time.Time   `json:"updated_at" db:"updated_at"` // UTC
}

// IsSettled reports whether the fee was paid, either verified online or in cash.
func (r Record) IsSettled() bool {
	return r.Status == StatusVerified || r.Status == StatusPaid
}

// settledAt returns the instant used to compute the penalty: the evidence submission,
// else the payment date, else now.
func (r Record) settledAt(now time.Time) time.Time {
	switch {
	case r.SubmittedAt.Valid:
		return r.SubmittedAt.Time
	case r.PaymentDate.Valid:
		return r.PaymentDate.Time
	default:
		return now
	}
}

func (r Record) Period() string {
	return fmt.Sprintf("%s %d", time.Month(r.Month), r.Year)
}

// StudentRecord is a Record joined with its student's identity.
type StudentRecord struct {
	Record
	StudentName string      `json:"student_name" db:"student_name"`
	StudentID   null.String `json:"student_id" db:"student_id"`
}

// Overview is a student's fee history, newest first, and the record currently due.
type Overview struct {
	Current *Record  `json:"current"`
	History []Record `json:"history"`
}

// PenaltyPolicy computes due dates and late penalties.
type PenaltyPolicy struct {
	DueDay     int
	GraceDays  int
	PerDayLate int64
}

// DueDate returns the due date of a month, at 00:00 UTC.
func (p PenaltyPolicy) DueDate(month, year int) time.Time {
	return time.Date(year, time.Month(month), p.DueDay, 0, 0, 0, 0, time.UTC)
}

// Penalty returns the late penalty of a fee due at `due` and paid at `at`.
// Every started day counts, the grace days excepted.
func (p PenaltyPolicy) Penalty(due, at time.Time) int64 {
	if !at.After(due) {
		return 0
	}
	daysLate := int64(math.Ceil(at.Sub(due).Hours()/24)) - int64(p.GraceDays)
	if daysLate <= 0 {
		return 0
	}
	return daysLate * p.PerDayLate
}

// apply refreshes the penalty and total of an open record.
func (p PenaltyPolicy) apply(r Record, now time.Time) Record {
	if r.IsSettled() {
		return r
	}
	r.PenaltyAmount = p.Penalty(r.DueDate, r.settledAt(now))
	r.TotalAmount = r.BaseAmount + r.PenaltyAmount
	return r
}

type GenerateFees struct {
	Month      int   `json:"month" validate:"required,min=1,max=12"`
	Year       int   `json:"year" validate:"required,min=2000,max=2100"`
	BaseAmount int64 `json:"base_amount" validate:"required,min=1"`
}

func (gf *GenerateFees) Validate(validate *validator.Validate) error {
	return validate.Struct(gf)
}

// Period identifies the fee being paid. It is bound from multipart forms.
type Period struct {
	Month int `json:"month" form:"month" validate:"required,min=1,max=12"`
	Year  int `json:"year" form:"year" validate:"required,min=2000,max=2100"`
}

func (p *Period) Validate(validate *validator.Validate) error {
	return validate.Struct(p)
}

type Decision struct {
	Status string `json:"status" validate:"required,oneof=verified rejected"`
	Notes  string `json:"notes" validate:"max=1000"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Status = core.CleanString(d.Status, true /* lower */)
	d.Notes = core.CleanString(d.Notes)
	return validate.Struct(d)
}

type CashPayment struct {
	UserID int64  `json:"user_id" validate:"required,min=1"`
	Month  int    `json:"month" validate:"required,min=1,max=12"`
	Year   int    `json:"year" validate:"required,min=2000,max=2100"`
	Amount int64  `json:"amount" validate:"required,min=1"`
	Notes  string `json:"notes" validate:"max=1000"`
}

func (cp *CashPayment) Validate(validate *validator.Validate) error {
	cp.Notes = core.CleanString(cp.Notes)
	return validate.Struct(cp)
}
