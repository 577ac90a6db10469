package integrity

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go-lms/internal/config"
	"go-lms/internal/features/unused"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepTimeout = 30 * time.Minute

// Sweep periodically runs a dry-run validation and an unused-file scan and logs their summaries.
// Nothing is repaired or deleted.
type Sweep struct {
	validator *Validator
	finder    *unused.Finder
	schedule  string
	logger    *zap.Logger

	mu        sync.Mutex
	scheduler *cron.Cron
	running   bool
}

func NewSweep(validator *Validator, finder *unused.Finder, schedule string, logger *zap.Logger) (*Sweep, error) {
	if schedule != "" {
		if _, err := cron.ParseStandard(schedule); err != nil {
			return nil, fmt.Errorf("invalid integrity sweep schedule: %w", err)
		}
	}
	return &Sweep{
		validator: validator,
		finder:    finder,
		schedule:  schedule,
		logger:    logger.With(zap.String("component", "integrity_sweep")),
	}, nil
}

// RegisterSweep starts the scheduler with the application and stops it on shutdown.
func RegisterSweep(lc fx.Lifecycle, validator *Validator, finder *unused.Finder, cfg *config.Config, logger *zap.Logger) error {
	sweep, err := NewSweep(validator, finder, cfg.IntegritySweepSchedule, logger)
	if err != nil {
		return err
	}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			return sweep.Start()
		},
		OnStop: func(ctx context.Context) error {
			sweep.Stop()
			return nil
		},
	})
	return nil
}

func (s *Sweep) Start() error {
	if s.schedule == "" {
		s.logger.Info("Integrity sweep disabled")
		return nil
	}
	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
		defer cancel()
		s.Run(ctx)
	}); err != nil {
		return fmt.Errorf("failed to add integrity sweep to scheduler: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info("Integrity sweep scheduled", zap.String("schedule", s.schedule))
	return nil
}

func (s *Sweep) Stop() {
	if s.scheduler != nil {
		ctx := s.scheduler.Stop()
		<-ctx.Done()
	}
}

// Run performs one sweep. Overlapping runs are skipped.
func (s *Sweep) Run(ctx context.Context) bool {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Integrity sweep still running, skipping")
		return false
	}
	s.running = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	report, err := s.validator.Validate(ctx, Request{Checks: AllChecks(), AutoRepair: AutoRepair{Size: true}, DryRun: true})
	if err != nil {
		s.logger.Error("Integrity sweep validation failed", zap.Error(err))
	} else {
		fields := []zap.Field{
			zap.String("operation_id", report.OperationID),
			zap.Int("files", report.Total),
			zap.Int("issues", report.IssueCount()),
		}
		for category, issues := range report.Issues {
			fields = append(fields, zap.Int(string(category), len(issues)))
		}
		s.logger.Info("Integrity sweep summary", fields...)
	}

	result, err := s.finder.Find(ctx, unused.Query{})
	if err != nil {
		s.logger.Error("Integrity sweep unused scan failed", zap.Error(err))
		return true
	}
	s.logger.Info("Unused file summary",
		zap.Int("unused", result.Analysis.UnusedFiles),
		zap.Int64("wasted_bytes", result.Analysis.WastedBytes),
		zap.Int("scan_failures", len(result.Analysis.ScanFailures)))
	return true
}
