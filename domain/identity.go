package domain

import (
	"fmt"
	"messenger/errors"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("nocontrol", func(fl validator.FieldLevel) bool {
		return !strings.ContainsFunc(fl.Field().String(), unicode.IsControl)
	})
	return v
}

// LocalIdentity is the display name of the local participant.
// It is fixed for the whole session.
type LocalIdentity struct {
	Name string `validate:"required,max=64,nocontrol"`
}

func NewLocalIdentity(name string) (LocalIdentity, error) {
	identity := LocalIdentity{Name: strings.TrimSpace(name)}
	if err := validate.Struct(identity); err != nil {
		return LocalIdentity{}, fmt.Errorf("%w: %v", errors.ErrInvalidName, err)
	}
	return identity, nil
}
