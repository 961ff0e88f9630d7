package events

import (
	"errors"
	"fmt"
)

// ErrConsentRequired is returned when GDPR enforcement is enabled and the
// payload does not carry an explicit consent flag. Nothing is persisted.
var ErrConsentRequired = errors.New("GDPR consent required")

// ValidationError reports a missing or malformed payload field. It is always
// detected before any write.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid field %q: %s", e.Field, e.Reason)
}

// NewValidationError creates a ValidationError for the given field.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

// NotFoundError reports a referenced resource that does not exist, e.g. a
// page-exit event with no matching visit. Distinct from validation errors.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found", e.Resource)
}

// NewNotFoundError creates a NotFoundError for the given resource.
func NewNotFoundError(resource string) *NotFoundError {
	return &NotFoundError{Resource: resource}
}

// IsValidationError reports whether err is a payload validation failure.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// IsNotFoundError reports whether err is a missing-resource failure.
func IsNotFoundError(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}
