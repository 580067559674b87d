package meeting

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/natya/core"
)

// Statuses
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
)

var Statuses = []string{StatusPending, StatusConfirmed, StatusCompleted, StatusCancelled}

type Meeting struct {
	ID            int64     `json:"id" db:"id"`
	Name          string    `json:"name" db:"name"`
	Email         string    `json:"email" db:"email"`
	Phone         string    `json:"phone" db:"phone"`
	Purpose       string    `json:"purpose" db:"purpose"`
	PreferredDate string    `json:"preferred_date" db:"preferred_date"`
	PreferredTime string    `json:"preferred_time" db:"preferred_time"`
	Status        string    `json:"status" db:"status"`
	AdminNotes    string    `json:"admin_notes" db:"admin_notes"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"` // UTC
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"` // UTC
}

type NewMeeting struct {
	Name          string `json:"name" validate:"required,max=100"`
	Email         string `json:"email" validate:"omitempty,email"`
	Phone         string `json:"phone" validate:"required,phone"`
	Purpose       string `json:"purpose" validate:"required,max=1000"`
	PreferredDate string `json:"preferred_date" validate:"required,date"`
	PreferredTime string `json:"preferred_time" validate:"required,clock"`
}

func (nm *NewMeeting) Validate(validate *validator.Validate) error {
	nm.Name = core.CleanString(nm.Name)
	nm.Email = core.CleanString(nm.Email, true /* lower */)
	nm.Phone = core.CleanPhone(nm.Phone)
	nm.Purpose = core.CleanString(nm.Purpose)
	nm.PreferredDate = core.CleanString(nm.PreferredDate)
	nm.PreferredTime = core.CleanString(nm.PreferredTime)
	return validate.Struct(nm)
}

type Decision struct {
	Status string `json:"status" validate:"required,oneof=confirmed completed cancelled"`
	Notes  string `json:"notes" validate:"max=1000"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Status = core.CleanString(d.Status, true /* lower */)
	d.Notes = core.CleanString(d.Notes)
	return validate.Struct(d)
}
