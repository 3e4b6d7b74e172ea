package ingest

import (
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/rendoarsandi/content-boost-sub002/internal/domain"
	apperrors "github.com/rendoarsandi/content-boost-sub002/pkg/errors"
)

// validateJob rejects jobs missing identifiers or naming an unsupported
// platform. Validation failures are local and final, never retried.
func validateJob(v *validator.Validate, job domain.CollectionJob) error {
	if err := v.Struct(job); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return apperrors.NewValidationError("job", err.Error())
		}
		var fieldErrs validator.ValidationErrors
		if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
			first := fieldErrs[0]
			return apperrors.NewValidationError(first.Field(), "missing or invalid value")
		}
		return apperrors.NewValidationError("job", err.Error())
	}
	if _, ok := domain.ParsePlatform(job.Platform); !ok {
		return apperrors.NewValidationError("platform", "unsupported platform: "+job.Platform)
	}
	return nil
}
