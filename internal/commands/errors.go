package commands

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	commandValidationCode   = "COMMAND_VALIDATION_FAILED"
	commandContextCanceled  = "COMMAND_CONTEXT_CANCELED"
	commandContextTimeout   = "COMMAND_CONTEXT_TIMEOUT"
	commandContextErrorCode = "COMMAND_CONTEXT_ERROR"
	commandExecuteFailed    = "COMMAND_EXECUTION_FAILED"
)

// Tag categorises err unless it already carries a category.
func Tag(err error, category goerrors.Category, message, code string) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, category, message).WithTextCode(code)
}

// Recoverable reports errors the caller can act on by resubmitting or
// refreshing: validation, bad input, conflicts and rate limits.
func Recoverable(err error) bool {
	for _, category := range []goerrors.Category{
		goerrors.CategoryValidation,
		goerrors.CategoryBadInput,
		goerrors.CategoryConflict,
		goerrors.CategoryRateLimit,
		goerrors.CategoryOperation,
	} {
		if goerrors.IsCategory(err, category) {
			return true
		}
	}
	return false
}

func wrapValidationError(err error) error {
	return Tag(err, goerrors.CategoryValidation, "command validation failed", commandValidationCode)
}

func wrapContextError(err error) error {
	switch {
	case errors.Is(err, context.Canceled):
		return Tag(err, goerrors.CategoryCommand, "command execution cancelled", commandContextCanceled)
	case errors.Is(err, context.DeadlineExceeded):
		return Tag(err, goerrors.CategoryCommand, "command execution deadline exceeded", commandContextTimeout)
	default:
		return Tag(err, goerrors.CategoryCommand, "command context error", commandContextErrorCode)
	}
}

func wrapExecuteError(err error) error {
	return Tag(err, goerrors.CategoryCommand, "command execution failed", commandExecuteFailed)
}
