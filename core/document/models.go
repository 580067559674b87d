package document

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/natya/core"
)

// Document is a file an admin shares with a student.
type Document struct {
	ID         int64      `json:"id" db:"id"`
	UserID     int64      `json:"user_id" db:"user_id"`
	Title      string     `json:"title" db:"title"`
	FileName   string     `json:"file_name" db:"file_name"`
	UploadedBy null.Int64 `json:"uploaded_by" db:"uploaded_by"`
	CreatedAt  time.Time  `json:"created_at" db:"created_at"` // UTC
}

// NewDocument is bound from multipart forms.
type NewDocument struct {
	Title string `json:"title" form:"title" validate:"required,max=200"`
}

func (nd *NewDocument) Validate(validate *validator.Validate) error {
	nd.Title = core.CleanString(nd.Title)
	return validate.Struct(nd)
}
