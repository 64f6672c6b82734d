package domain

import (
	"errors"
	"fmt"
)

// ErrorCategory classifies an ingestion failure for retry decisions
// and metric labels.
type ErrorCategory string

// Failure categories.
const (
	ErrorCategoryRateLimit     ErrorCategory = "rate_limit"
	ErrorCategoryAPI           ErrorCategory = "api"
	ErrorCategoryValidation    ErrorCategory = "validation"
	ErrorCategoryConfiguration ErrorCategory = "configuration"
	ErrorCategoryMapping       ErrorCategory = "mapping"
	ErrorCategoryPersistence   ErrorCategory = "persistence"
	ErrorCategoryUnknown       ErrorCategory = "unknown"
)

// Retriable reports whether a failure of this category should be
// retried with backoff.
func (c ErrorCategory) Retriable() bool {
	switch c {
	case ErrorCategoryRateLimit, ErrorCategoryAPI, ErrorCategoryPersistence, ErrorCategoryUnknown:
		return true
	case ErrorCategoryValidation, ErrorCategoryConfiguration, ErrorCategoryMapping:
		return false
	default:
		return true
	}
}

// IngestError is a classified ingestion failure.
type IngestError struct {
	Category ErrorCategory
	Message  string
	Cause    error
}

// Error implements the error interface.
func (e *IngestError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Category, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Category, e.Message)
}

// Unwrap returns the underlying cause.
func (e *IngestError) Unwrap() error {
	return e.Cause
}

// NewIngestError creates a classified error.
func NewIngestError(category ErrorCategory, message string, cause error) *IngestError {
	return &IngestError{Category: category, Message: message, Cause: cause}
}

// ClassifyError returns the category of err. IngestErrors keep their
// category; anything else is unknown.
func ClassifyError(err error) ErrorCategory {
	var ingErr *IngestError
	if errors.As(err, &ingErr) {
		return ingErr.Category
	}
	return ErrorCategoryUnknown
}

// Sentinel errors shared across packages.
var (
	// ErrJobNotFound is returned when a job ID resolves to no row.
	ErrJobNotFound = errors.New("job not found")

	// ErrDuplicateJobID is returned when creating a job whose ID is
	// already taken.
	ErrDuplicateJobID = errors.New("job_id already exists")

	// ErrMapping is the base error for schema mapping failures.
	ErrMapping = errors.New("mapping error")
)
