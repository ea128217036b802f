package usecase

import (
	"errors"
	"strings"
)

// ErrTranslationExhausted means every generate/validate round for a
// free-text query was rejected.
var ErrTranslationExhausted = errors.New("filter translation exhausted")

type DomainError struct {
	Code    string
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

func IsDomainError(err error) bool {
	var de *DomainError
	return errors.As(err, &de)
}

type TechnicalError struct {
	Code    string
	Message string
}

func (e *TechnicalError) Error() string {
	return e.Message
}

func IsTechnicalError(err error) bool {
	var te *TechnicalError
	return errors.As(err, &te)
}

func newValidationError(errs []ValidationError) *DomainError {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.Field+" ("+e.Message+")")
	}
	return &DomainError{
		Code:    "VALIDATION_ERROR",
		Message: "validation failed: " + strings.Join(parts, ", "),
	}
}

func newDatabaseError(op string, err error) *TechnicalError {
	return &TechnicalError{
		Code:    "DATABASE_ERROR",
		Message: op + ": " + err.Error(),
	}
}
