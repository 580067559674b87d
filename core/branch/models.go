package branch

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/natya/core"
)

// Branch is an academy location. Its code prefixes the student IDs of the students it admits.
type Branch struct {
	ID        int64     `json:"id" db:"id"`
	Code      string    `json:"code" db:"code"`
	Name      string    `json:"name" db:"name"`
	Address   string    `json:"address" db:"address"`
	Phone     string    `json:"phone" db:"phone"`
	CreatedAt time.Time `json:"created_at" db:"created_at"` // UTC
}

type NewBranch struct {
	Code    string `json:"code" validate:"required,alphanum,min=2,max=5"`
	Name    string `json:"name" validate:"required,max=100"`
	Address string `json:"address" validate:"max=500"`
	Phone   string `json:"phone" validate:"omitempty,phone"`
}

func (nb *NewBranch) Validate(validate *validator.Validate) error {
	nb.Code = strings.ToUpper(core.CleanString(nb.Code))
	nb.Name = core.CleanString(nb.Name)
	nb.Address = core.CleanString(nb.Address)
	nb.Phone = core.CleanPhone(nb.Phone)
	return validate.Struct(nb)
}
