package integrity

import (
	"context"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/common/models"
)

type IntegrityService interface {
	Validate(ctx context.Context, in ValidateInput) (*models.OperationReport, error)
}

type IntegrityServiceImpl struct {
	Validator *Validator
	now       func() time.Time
}

func NewIntegrityService(validator *Validator) IntegrityService {
	return &IntegrityServiceImpl{
		Validator: validator,
		now:       time.Now,
	}
}

func (s *IntegrityServiceImpl) Validate(ctx context.Context, in ValidateInput) (*models.OperationReport, error) {
	req := Request{
		IDs:         in.IDs,
		Checks:      AllChecks(),
		AutoRepair:  in.AutoRepair,
		DryRun:      in.DryRun,
		Concurrency: in.Concurrency,
	}
	if in.Checks != nil {
		req.Checks = *in.Checks
	}
	if in.Filter != nil {
		if len(in.IDs) > 0 {
			return nil, apperrors.Validation("ids and filter are mutually exclusive")
		}
		filter, err := in.Filter.Build(s.now())
		if err != nil {
			return nil, err
		}
		req.Filter = &filter
	}
	return s.Validator.Validate(ctx, req)
}
