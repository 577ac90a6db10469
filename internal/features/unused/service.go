package unused

import (
	"context"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/features/file"
)

// UnusedInput is read from the query string.
type UnusedInput struct {
	file.FilterInput
	GracePeriod string `query:"grace_period"` // Go duration, e.g. "48h"
	Limit       int    `query:"limit" validate:"omitempty,min=1,max=10000"`
}

type UnusedService interface {
	FindUnused(ctx context.Context, in UnusedInput) (*Result, error)
}

type UnusedServiceImpl struct {
	Finder *Finder
	now    func() time.Time
}

func NewUnusedService(finder *Finder) UnusedService {
	return &UnusedServiceImpl{
		Finder: finder,
		now:    time.Now,
	}
}

func (s *UnusedServiceImpl) FindUnused(ctx context.Context, in UnusedInput) (*Result, error) {
	q := Query{Limit: in.Limit}
	if in.GracePeriod != "" {
		d, err := time.ParseDuration(in.GracePeriod)
		if err != nil {
			return nil, apperrors.Validation("grace_period: %v", err)
		}
		if d <= 0 {
			return nil, apperrors.Validation("grace_period must be positive")
		}
		q.GracePeriod = d
	}
	filter, err := in.FilterInput.Build(s.now())
	if err != nil {
		return nil, err
	}
	q.Filter = filter
	return s.Finder.Find(ctx, q)
}
