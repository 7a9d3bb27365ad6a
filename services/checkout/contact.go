package checkout

import (
	"strings"

	"github.com/ferreteria/storefront/utils"
)

// Identification document types accepted for guests.
var identificationTypes = []string{"V", "E", "J", "G", "P"}

// Contact is the first wizard step.
type Contact struct {
	Name     string `json:"name" validate:"required,max=120"`
	Email    string `json:"email" validate:"required,email"`
	Phone    string `json:"phone" validate:"required,min=7,max=20"`
	IDType   string `json:"idType" validate:"omitempty,oneof=V E J G P"`
	IDNumber string `json:"idNumber" validate:"omitempty,numeric,min=5,max=10"`
}

func (c Contact) normalized() Contact {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	c.IDType = strings.ToUpper(strings.TrimSpace(c.IDType))
	c.IDNumber = strings.TrimSpace(c.IDNumber)
	return c
}

// validate checks the contact step. Guests must also identify themselves.
func (c Contact) validate(guest bool) error {
	var errs []error
	errs = append(errs, utils.ValidateStruct(&c))
	if guest {
		if c.IDType == "" {
			errs = append(errs, utils.FieldError("idType", "idType is required"))
		}
		if c.IDNumber == "" {
			errs = append(errs, utils.FieldError("idNumber", "idNumber is required"))
		}
	}
	if merged := utils.Merge(errs...); merged != nil {
		return merged
	}
	return nil
}

// IsIdentificationType reports whether t is an accepted document type.
func IsIdentificationType(t string) bool {
	t = strings.ToUpper(strings.TrimSpace(t))
	for _, it := range identificationTypes {
		if it == t {
			return true
		}
	}
	return false
}

// Account is the optional create-account choice offered to guests.
type Account struct {
	Create   bool   `json:"createAccount"`
	Password string `json:"-"`
}

// MinPasswordLength is the shortest password accepted for a new account.
const MinPasswordLength = 8

func (a Account) validate(guest bool) error {
	if !guest || !a.Create {
		return nil
	}
	if len(a.Password) < MinPasswordLength {
		return utils.FieldError("password", "password must be at least 8 characters")
	}
	return nil
}
