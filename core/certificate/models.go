package certificate

import (
	"sort"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
)

// Statuses
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

var Statuses = []string{StatusPending, StatusApproved, StatusRejected}

// Type is a level of the certificate progression.
type Type struct {
	Code string `json:"code"`
	Name string `json:"name"`
	Rank int    `json:"rank"`
}

// Catalog lists the certificate types in progression order.
var Catalog = []Type{
	{Code: "D-CERT", Name: "D Certificate", Rank: 1},
	{Code: "D-BASIC", Name: "D-Basic", Rank: 2},
	{Code: "D-CHARACTER", Name: "D-Character", Rank: 3},
	{Code: "D-ADVANCED", Name: "D-Advanced", Rank: 4},
	{Code: "DANCE-TEACHER", Name: "Dance Teacher", Rank: 5},
}

func TypeByCode(code string) (Type, bool) {
	for _, t := range Catalog {
		if t.Code == code {
			return t, true
		}
	}
	return Type{}, false
}

type Certificate struct {
	ID                int64       `json:"id" db:"id"`
	UserID            int64       `json:"user_id" db:"user_id"`
	CertificateType   string      `json:"certificate_type" db:"certificate_type"`
	Status            string      `json:"status" db:"status"`
	CertificateNumber null.String `json:"certificate_number" db:"certificate_number"`
	ApplicationDate   time.Time   `json:"application_date" db:"application_date"` // UTC
	IssueDate         null.Time   `json:"issue_date" db:"issue_date"`             // UTC
	AdminNotes        string      `json:"admin_notes" db:"admin_notes"`
}

func (c Certificate) Type() Type {
	t, _ := TypeByCode(c.CertificateType)
	return t
}

// SortByRank sorts certificates in progression order.
func SortByRank(certs []Certificate) {
	sort.SliceStable(certs, func(i, j int) bool { return certs[i].Type().Rank < certs[j].Type().Rank })
}

// StudentCertificate is a Certificate joined with its student's identity.
type StudentCertificate struct {
	Certificate
	StudentName string      `json:"student_name" db:"student_name"`
	StudentID   null.String `json:"student_id" db:"student_id"`
}

// Overview is what a student sees of their progression.
type Overview struct {
	Certificates  []Certificate `json:"certificates"`
	Eligible      bool          `json:"eligible"`
	EligibleFrom  null.Time     `json:"eligible_from"`
	NextAvailable *Type         `json:"next_available"`
	HasPending    bool          `json:"has_pending"`
}

type Application struct {
	CertificateType string `json:"certificate_type" validate:"required"`
}

func (a *Application) Validate(validate *validator.Validate) error {
	a.CertificateType = strings.ToUpper(core.CleanString(a.CertificateType))
	if err := validate.Struct(a); err != nil {
		return err
	}
	if _, ok := TypeByCode(a.CertificateType); !ok {
		return core.NewValidationError(nil, core.FieldError{Field: "certificate_type", Error: "unknown certificate type"})
	}
	return nil
}

type Decision struct {
	Status string `json:"status" validate:"required,oneof=approved rejected"`
	Notes  string `json:"notes" validate:"max=1000"`
}

func (d *Decision) Validate(validate *validator.Validate) error {
	d.Status = core.CleanString(d.Status, true /* lower */)
	d.Notes = core.CleanString(d.Notes)
	return validate.Struct(d)
}
