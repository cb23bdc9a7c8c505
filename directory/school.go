// Package directory keeps the list of schools and the rules for adding to it.
package directory

import (
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type School struct {
	ID        int64     `json:"id"`
	Name      string    `json:"name"`
	Address   string    `json:"address"`
	City      string    `json:"city"`
	State     string    `json:"state"`
	Contact   string    `json:"contact"`
	EmailID   string    `json:"email_id"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewSchool is what a caller submits; the image is uploaded separately.
type NewSchool struct {
	Name    string `json:"name" validate:"required,min=2"`
	Address string `json:"address" validate:"required,min=5"`
	City    string `json:"city" validate:"required,min=2"`
	State   string `json:"state" validate:"required,min=2"`
	Contact string `json:"contact" validate:"required,number,min=10,max=15"`
	EmailID string `json:"email_id" validate:"required,email"`
}

func (n NewSchool) normalized() NewSchool {
	return NewSchool{
		Name:    strings.TrimSpace(n.Name),
		Address: strings.TrimSpace(n.Address),
		City:    strings.TrimSpace(n.City),
		State:   strings.TrimSpace(n.State),
		Contact: strings.TrimSpace(n.Contact),
		EmailID: strings.TrimSpace(n.EmailID),
	}
}

var ErrInvalidSchool = errors.New("invalid school")

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// ValidationError lists every field that failed; it matches ErrInvalidSchool.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Message)
	}
	return fmt.Sprintf("%v: %s", ErrInvalidSchool, strings.Join(parts, "; "))
}

func (e *ValidationError) Is(target error) bool { return target == ErrInvalidSchool }

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	return v
}

// Validate checks a submission against the form rules and returns the
// trimmed value on success.
func Validate(in NewSchool) (NewSchool, error) {
	in = in.normalized()
	err := validate.Struct(in)
	if err == nil {
		return in, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return in, err
	}
	return in, &ValidationError{Fields: formatValidationErrors(verrs)}
}

func formatValidationErrors(errs validator.ValidationErrors) []FieldError {
	details := make([]FieldError, 0, len(errs))
	for _, err := range errs {
		var message string
		switch {
		case err.Field() == "contact" && (err.Tag() == "number" || err.Tag() == "min" || err.Tag() == "max"):
			message = "Contact must be 10-15 digits"
		case err.Tag() == "required":
			message = fmt.Sprintf("Field '%s' is required", err.Field())
		case err.Tag() == "email":
			message = "Please enter a valid email address"
		case err.Tag() == "min":
			message = fmt.Sprintf("Field '%s' must be at least %s characters", err.Field(), err.Param())
		default:
			message = fmt.Sprintf("Field validation for '%s' failed on the '%s' tag", err.Field(), err.Tag())
		}
		details = append(details, FieldError{
			Field:   err.Field(),
			Message: message,
			Code:    "validation_" + err.Tag(),
		})
	}
	return details
}
