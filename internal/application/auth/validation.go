package auth

import (
	"github.com/go-playground/validator/v10"

	"github.com/sessiongate/sessiongate/internal/domain"
)

var validate = validator.New()

// RegisterInput is everything a registration POST must carry. Field bounds
// track the column widths in the users table.
type RegisterInput struct {
	Username string `validate:"required,max=31"`
	Password string `validate:"required"`
	Email    string `validate:"required,email,max=99"`
	IP       string `validate:"max=45"`
}

func (in RegisterInput) Validate() error {
	if err := validate.Struct(in); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
			return domain.ErrInvalidField(errs[0].Field(), errs[0].Tag())
		}
		return domain.ErrInvalidField("form", "invalid")
	}
	return nil
}
