package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/David-Botos/orders-etl/pkg/loader"
	"github.com/David-Botos/orders-etl/pkg/writer"
)

// ErrorCategory classifies fatal run errors
type ErrorCategory int

const (
	ErrorCategoryNone ErrorCategory = iota
	ErrorCategoryConfig
	ErrorCategorySchema
	ErrorCategoryParse
	ErrorCategoryInput
	ErrorCategoryWrite
	ErrorCategoryVerification
	ErrorCategoryCancelled
	ErrorCategoryInternal
)

// String returns a string representation of the error category
func (ec ErrorCategory) String() string {
	switch ec {
	case ErrorCategoryNone:
		return "None"
	case ErrorCategoryConfig:
		return "Config"
	case ErrorCategorySchema:
		return "SchemaError"
	case ErrorCategoryParse:
		return "ParseError"
	case ErrorCategoryInput:
		return "Input"
	case ErrorCategoryWrite:
		return "WriteError"
	case ErrorCategoryVerification:
		return "Verification"
	case ErrorCategoryCancelled:
		return "Cancelled"
	case ErrorCategoryInternal:
		return "Internal"
	default:
		return fmt.Sprintf("Unknown(%d)", ec)
	}
}

// StageError wraps a fatal error with the stage that raised it
type StageError struct {
	Stage    string
	Category ErrorCategory
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed [%s]: %v", e.Stage, e.Category, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// newStageError categorizes err and attaches the stage name
func newStageError(stage string, err error) *StageError {
	return &StageError{Stage: stage, Category: CategorizeError(err), Err: err}
}

// CategorizeError determines the category of an error
func CategorizeError(err error) ErrorCategory {
	if err == nil {
		return ErrorCategoryNone
	}

	var (
		schemaErr *loader.SchemaError
		parseErr  *loader.ParseError
		writeErr  *writer.WriteError
		verifyErr *VerificationError
		stageErr  *StageError
	)

	switch {
	case errors.As(err, &stageErr):
		return stageErr.Category
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ErrorCategoryCancelled
	case errors.As(err, &schemaErr):
		return ErrorCategorySchema
	case errors.As(err, &parseErr):
		return ErrorCategoryParse
	case errors.As(err, &writeErr):
		return ErrorCategoryWrite
	case errors.As(err, &verifyErr):
		return ErrorCategoryVerification
	case errors.Is(err, fs.ErrNotExist), errors.Is(err, fs.ErrPermission):
		return ErrorCategoryInput
	default:
		return ErrorCategoryInternal
	}
}

// WrapError creates a new error with additional context
func WrapError(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}
