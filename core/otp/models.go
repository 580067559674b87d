package otp

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
)

// Purposes
const (
	PurposePreAdmission = "preadmission"
)

var Purposes = []string{PurposePreAdmission}

// Code is a one-time numeric code bound to an identifier (phone number) and a purpose.
type Code struct {
	ID         int64     `db:"id"`
	Identifier string    `db:"identifier"`
	Code       string    `db:"code"`
	Purpose    string    `db:"purpose"`
	ExpiresAt  time.Time `db:"expires_at"` // UTC
	Verified   bool      `db:"verified"`
	VerifiedAt null.Time `db:"verified_at"` // UTC
	ConsumedAt null.Time `db:"consumed_at"` // UTC
	Attempts   int       `db:"attempts"`
	CreatedAt  time.Time `db:"created_at"` // UTC
}

func (c Code) isExpired(now time.Time) bool {
	return !now.Before(c.ExpiresAt)
}

type SendRequest struct {
	Phone   string `json:"phone" validate:"required,phone"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=preadmission"`
}

func (r *SendRequest) Validate(validate *validator.Validate) error {
	r.clean()
	return validate.Struct(r)
}

func (r *SendRequest) clean() {
	r.Phone = core.CleanPhone(r.Phone)
	if r.Purpose = core.CleanString(r.Purpose, true /* lower */); r.Purpose == "" {
		r.Purpose = PurposePreAdmission
	}
}

type VerifyRequest struct {
	Phone   string `json:"phone" validate:"required,phone"`
	Code    string `json:"code" validate:"required,numeric"`
	Purpose string `json:"purpose" validate:"omitempty,oneof=preadmission"`
}

func (r *VerifyRequest) Validate(validate *validator.Validate) error {
	r.Phone = core.CleanPhone(r.Phone)
	r.Code = core.CleanString(r.Code)
	if r.Purpose = core.CleanString(r.Purpose, true /* lower */); r.Purpose == "" {
		r.Purpose = PurposePreAdmission
	}
	return validate.Struct(r)
}
