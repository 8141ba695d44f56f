package validation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"gitlab.com/dirk.krummacker/contact-book/internal/common"
	"gitlab.com/dirk.krummacker/contact-book/internal/model"
)

// TestStructValid expects no error for a complete contact.
func TestStructValid(t *testing.T) {
	err := Struct(model.ContactInput{Name: "Erika Mustermann", Phone: "+49 0815 4711"})
	assert.NoError(t, err)
}

// TestStructMissingFields expects a validation error naming both required fields.
func TestStructMissingFields(t *testing.T) {
	err := Struct(model.ContactInput{Email: "erika@example.com"})
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Contains(t, err.Error(), "name is required")
	assert.Contains(t, err.Error(), "phone is required")
}

// TestStructTooLong expects the length limit of the phone column to be enforced.
func TestStructTooLong(t *testing.T) {
	err := Struct(model.ContactInput{Name: "Erika", Phone: "012345678901234567890"})
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Contains(t, err.Error(), "phone must be at most 20 characters")
}

// TestStructNotBlank expects whitespace-only credentials to be rejected.
func TestStructNotBlank(t *testing.T) {
	err := Struct(model.Credentials{Username: "   ", Password: "pw"})
	assert.True(t, errors.Is(err, common.ErrValidation))
	assert.Contains(t, err.Error(), "username is required")
}
