// Package apperr defines the error taxonomy shared by the services and the
// HTTP layer: not-found maps to 404, validation to 400, everything else to 500.
package apperr

import (
	"errors"
	"fmt"
)

// NotFoundError marks lookups of unknown runs, months or exceptions.
type NotFoundError struct {
	Entity string
	ID     string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Entity, e.ID)
}

func NotFound(entity, id string) error {
	return &NotFoundError{Entity: entity, ID: id}
}

func IsNotFound(err error) bool {
	var nf *NotFoundError
	return errors.As(err, &nf)
}

// ValidationError marks an unmet guard condition on a workflow mutation.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// DataQualityError marks malformed source data. The matching engine converts
// these into per-reference reason codes instead of failing the run.
type DataQualityError struct {
	Field string
	Value string
}

func (e *DataQualityError) Error() string {
	return fmt.Sprintf("malformed %s: %q", e.Field, e.Value)
}

// UpstreamError wraps failures of external collaborators (database, document
// store) so callers can tell them apart from domain errors.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func Upstream(op string, err error) error {
	return &UpstreamError{Op: op, Err: err}
}
