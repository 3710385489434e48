package pipeline

import (
	"errors"

	"github.com/CZERTAINLY/runway/internal/model"

	"go.temporal.io/sdk/temporal"
)

// appError converts an error of the task error taxonomy into an
// ApplicationError, so its type survives serialization to the engine.
func appError(err error) error {
	if err == nil {
		return nil
	}
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return err
	}

	typ := model.ErrType(err)
	if typ == "" {
		typ = model.ErrTypeExecution
	}
	if typ == model.ErrTypeInvalidInput {
		return temporal.NewNonRetryableApplicationError(err.Error(), typ, err)
	}
	return temporal.NewApplicationErrorWithCause(err.Error(), typ, err)
}

// ErrorType returns the type of the ApplicationError found in err's chain or
// falls back to the sentinel errors of the model package. It returns an empty
// string for errors outside the taxonomy.
func ErrorType(err error) string {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return appErr.Type()
	}
	return model.ErrType(err)
}
