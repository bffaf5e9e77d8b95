package validator

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidContact indicates the value is neither a mobile number nor an e-mail
var ErrInvalidContact = errors.New("contact must be an Indian mobile number or an e-mail address")

// ContactKind tells which form a requester contact took
type ContactKind string

const (
	ContactPhone ContactKind = "phone"
	ContactEmail ContactKind = "email"
)

// ContactValidator validates the contact a requester leaves on a booking
type ContactValidator struct {
	phone    *PhoneValidator
	validate *validator.Validate
}

// NewContactValidator creates a new contact validator instance
func NewContactValidator() *ContactValidator {
	return &ContactValidator{
		phone:    NewPhoneValidator(),
		validate: validator.New(),
	}
}

// Normalize returns the stored form of a contact: +91XXXXXXXXXX for phones,
// lower-cased address for e-mails.
func (v *ContactValidator) Normalize(contact string) (string, ContactKind, error) {
	contact = strings.TrimSpace(contact)
	if contact == "" {
		return "", "", ErrInvalidContact
	}

	if strings.Contains(contact, "@") {
		email := strings.ToLower(contact)
		if err := v.validate.Var(email, "required,email,max=254"); err != nil {
			return "", "", ErrInvalidContact
		}
		return email, ContactEmail, nil
	}

	formatted, err := v.phone.Format(contact)
	if err != nil {
		return "", "", err
	}
	return formatted, ContactPhone, nil
}

// IsValid is a convenience method that returns true if contact is valid
func (v *ContactValidator) IsValid(contact string) bool {
	_, _, err := v.Normalize(contact)
	return err == nil
}
