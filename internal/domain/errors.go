package domain

import "fmt"

// Error types for consistent error handling across the service.

// ErrNotFound indicates a record (or resource) was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrDuplicateID indicates a create collided with an existing record id.
type ErrDuplicateID struct {
	ID int
}

func (e *ErrDuplicateID) Error() string {
	return fmt.Sprintf("customer with id %d already exists", e.ID)
}

// ErrValidation indicates a bad input field.
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrConfiguration indicates a required setting is missing. Raised before
// any network call is attempted.
type ErrConfiguration struct {
	Setting string
}

func (e *ErrConfiguration) Error() string {
	return fmt.Sprintf("%s not configured", e.Setting)
}

// ErrScoringService indicates the scoring service failed: transport error
// or a non-2xx upstream status.
type ErrScoringService struct {
	Status  int
	Message string
	Err     error
}

func (e *ErrScoringService) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("scoring service error (status %d): %s", e.Status, e.Message)
	}
	return fmt.Sprintf("scoring service error: %s", e.Message)
}

func (e *ErrScoringService) Unwrap() error {
	return e.Err
}

// ErrScoringParse indicates the scoring response body could not be
// recovered as a single JSON object, even after the balanced-brace rescue.
type ErrScoringParse struct {
	Excerpt string
	Err     error
}

func (e *ErrScoringParse) Error() string {
	return fmt.Sprintf("scoring response parse failed: %v. Raw: %s", e.Err, e.Excerpt)
}

func (e *ErrScoringParse) Unwrap() error {
	return e.Err
}

// ErrExternalService indicates a failure in a non-scoring external
// dependency (store backend, message broker).
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}
