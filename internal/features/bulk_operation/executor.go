package bulk_operation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/common/models"
	"go-lms/internal/config"
	"go-lms/internal/features/audit"
	"go-lms/internal/features/file"
	"go-lms/internal/features/policy"
	"go-lms/internal/features/reference"
	"go-lms/internal/features/relocation"
	"go-lms/internal/metrics"
	"go-lms/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// invocation carries the per-call state shared by the items of one Run.
type invocation struct {
	id       string
	req      *Request
	session  *reference.Session
	resolver *relocation.Resolver
}

type itemHandler func(ctx context.Context, inv *invocation, asset *file.FileAsset, index int) models.ItemOutcome

// Executor drives targets through delete, move and organize in bounded batches.
// It is the only writer of report counters.
type Executor struct {
	repo     file.FileRepository
	store    storage.Store
	scanner  *reference.Scanner
	policy   *policy.Engine
	mover    *relocation.Mover
	audit    audit.AuditService
	settings config.AssetPolicy
	logger   *zap.Logger
	now      func() time.Time

	handlers map[models.Operation]itemHandler
}

func NewExecutor(
	repo file.FileRepository,
	store storage.Store,
	scanner *reference.Scanner,
	engine *policy.Engine,
	mover *relocation.Mover,
	auditService audit.AuditService,
	settings config.AssetPolicy,
	logger *zap.Logger,
) *Executor {
	e := &Executor{
		repo:     repo,
		store:    store,
		scanner:  scanner,
		policy:   engine,
		mover:    mover,
		audit:    auditService,
		settings: settings,
		logger:   logger.With(zap.String("component", "bulk_executor")),
		now:      time.Now,
	}
	e.handlers = map[models.Operation]itemHandler{
		models.OperationDelete:   e.deleteItem,
		models.OperationMove:     e.moveItem,
		models.OperationOrganize: e.organizeItem,
	}
	return e
}

// NewBulkExecutor is the fx constructor.
func NewBulkExecutor(
	repo file.FileRepository,
	store storage.Store,
	scanner *reference.Scanner,
	engine *policy.Engine,
	mover *relocation.Mover,
	auditService audit.AuditService,
	cfg *config.Config,
	logger *zap.Logger,
) *Executor {
	return NewExecutor(repo, store, scanner, engine, mover, auditService, cfg.Assets, logger)
}

func (e *Executor) validate(req *Request) error {
	if _, ok := e.handlers[req.Operation]; !ok {
		return apperrors.Validation("unsupported operation %q", req.Operation)
	}

	hasIDs := len(req.IDs) > 0
	hasFilter := req.Filter != nil
	switch {
	case !hasIDs && !hasFilter:
		return apperrors.Validation("either ids or filter must be supplied")
	case hasIDs && hasFilter:
		return apperrors.Validation("ids and filter are mutually exclusive")
	case hasFilter && req.Filter.IsEmpty() && req.Operation.Destructive():
		return apperrors.Validation("an empty filter cannot select targets for %s", req.Operation)
	}

	if req.BatchSize == 0 {
		req.BatchSize = e.settings.BatchSize
	}
	if req.BatchSize < 1 || req.BatchSize > e.settings.MaxBatchSize {
		return apperrors.Validation("batch_size must be between 1 and %d", e.settings.MaxBatchSize)
	}
	if req.Concurrency < 1 {
		req.Concurrency = 1
	}
	if req.Concurrency > req.BatchSize {
		req.Concurrency = req.BatchSize
	}

	switch req.Operation {
	case models.OperationDelete:
		if req.Delete.ReferenceHandling == "" {
			req.Delete.ReferenceHandling = policy.CheckAndFail
		}
		if _, err := policy.ParseReferenceHandling(string(req.Delete.ReferenceHandling)); err != nil {
			return err
		}
	case models.OperationMove:
		if req.Move.Strategy == "" {
			req.Move.Strategy = relocation.MoveBoth
		}
		if req.Move.Conflict == "" {
			req.Move.Conflict = relocation.ConflictRename
		}
		if _, err := relocation.ParseMoveStrategy(string(req.Move.Strategy)); err != nil {
			return err
		}
		if _, err := relocation.ParseConflictStrategy(string(req.Move.Conflict)); err != nil {
			return err
		}
		return moveRequest(req).Validate()
	case models.OperationOrganize:
		return validateOrganize(req.Organize)
	}
	return nil
}

// resolveTargets loads the target set once, before anything is mutated.
func (e *Executor) resolveTargets(ctx context.Context, req *Request) ([]*file.FileAsset, []string, error) {
	if len(req.IDs) > 0 {
		return e.repo.FindByIDs(ctx, req.IDs)
	}
	var limit int64
	if !req.Flags.Force && e.settings.MaxTargets > 0 {
		// one past the maximum so the policy can see the overflow
		limit = int64(e.settings.MaxTargets) + 1
	}
	files, err := e.repo.Find(ctx, *req.Filter, limit)
	return files, nil, err
}

// Run executes req and returns its report. The error is non-nil for validation
// and policy rejections (no report) and for partial failures (with report).
func (e *Executor) Run(ctx context.Context, req Request) (*models.OperationReport, error) {
	if err := e.validate(&req); err != nil {
		return nil, err
	}

	started := e.now()
	inv := &invocation{id: uuid.NewString(), req: &req}
	ctx = context.WithValue(ctx, models.OperationIDKey, inv.id)

	targets, missing, err := e.resolveTargets(ctx, &req)
	if err != nil {
		return nil, apperrors.Internal("resolve targets", err)
	}

	total := len(targets) + len(missing)
	if err := e.policy.EvaluateBatch(req.Operation, total, req.Flags); err != nil {
		return nil, err
	}

	report := models.NewReport(inv.id, req.Operation, req.DryRun, total, started)
	for _, id := range missing {
		out := models.ItemOutcome{ID: id}
		out.Fail(apperrors.NotFound("file", id))
		report.Record(out)
	}

	inv.session = e.scanner.NewSession()
	defer inv.session.Close()
	inv.resolver = e.mover.NewResolver(e.settings.MaxRenameAttempts)

	if req.Operation == models.OperationDelete {
		ids := make([]string, len(targets))
		for i, asset := range targets {
			ids[i] = asset.IDHex()
		}
		if err := e.policy.EvaluateReferences(ctx, inv.session, ids, req.Delete.ReferenceHandling, req.Flags); err != nil {
			return nil, err
		}
	}

	aborted := false
	if len(missing) > 0 && !req.ContinueOnError {
		report.Warn("stopped: some targets were not found and continue_on_error is off")
		aborted = true
	}
	index := 0
	for _, batch := range Partition(targets, req.BatchSize) {
		if !aborted && e.settings.MaxProcessingTime > 0 && e.now().Sub(started) > e.settings.MaxProcessingTime {
			report.Warn(fmt.Sprintf("stopped after %s: max processing time reached", e.settings.MaxProcessingTime))
			aborted = true
		}
		if aborted {
			for _, asset := range batch {
				report.NotStarted = append(report.NotStarted, asset.IDHex())
			}
			index += len(batch)
			continue
		}

		outcomes, notStarted := e.runBatch(ctx, inv, batch, index)
		for _, out := range outcomes {
			report.Record(out)
			if out.Status == models.ItemFailed && !req.ContinueOnError && !aborted {
				report.Warn("stopped after the first failure: continue_on_error is off")
				aborted = true
			}
		}
		report.NotStarted = append(report.NotStarted, notStarted...)
		index += len(batch)
	}

	report.Finish(e.now())
	metrics.ObserveOperation(string(req.Operation), req.DryRun, report.Processed, report.Skipped, report.Failed, report.Elapsed)
	if req.Operation == models.OperationDelete && !req.DryRun {
		metrics.FreedBytes(report.FreedBytes)
	}

	e.logger.Info("Bulk operation finished",
		zap.String("operation_id", inv.id),
		zap.String("operation", string(req.Operation)),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("total", report.Total),
		zap.Int("processed", report.Processed),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.Int("not_started", len(report.NotStarted)),
		zap.Duration("elapsed", report.Elapsed))

	return report, report.PartialFailure()
}

// runBatch processes one batch with at most req.Concurrency items in flight.
// Outcomes keep the batch order. Without continue_on_error no item starts after a failure.
func (e *Executor) runBatch(ctx context.Context, inv *invocation, batch []*file.FileAsset, offset int) ([]models.ItemOutcome, []string) {
	handle := e.handlers[inv.req.Operation]
	results := make([]*models.ItemOutcome, len(batch))
	var failed atomic.Bool

	var g errgroup.Group
	g.SetLimit(inv.req.Concurrency)
	for i, asset := range batch {
		if !inv.req.ContinueOnError && failed.Load() {
			break
		}
		i, asset := i, asset
		g.Go(func() error {
			out := e.safeHandle(ctx, handle, inv, asset, offset+i)
			if out.Status == models.ItemFailed {
				failed.Store(true)
			}
			results[i] = &out
			return nil
		})
	}
	_ = g.Wait()

	outcomes := make([]models.ItemOutcome, 0, len(batch))
	var notStarted []string
	for i, r := range results {
		if r == nil {
			notStarted = append(notStarted, batch[i].IDHex())
			continue
		}
		outcomes = append(outcomes, *r)
	}
	return outcomes, notStarted
}

func (e *Executor) safeHandle(ctx context.Context, handle itemHandler, inv *invocation, asset *file.FileAsset, index int) (out models.ItemOutcome) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Item handler panicked", zap.String("file_id", asset.IDHex()), zap.Any("panic", r))
			out = newOutcome(asset)
			out.Fail(apperrors.Internal(fmt.Sprintf("panic: %v", r), nil))
		}
	}()
	return handle(ctx, inv, asset, index)
}

func newOutcome(asset *file.FileAsset) models.ItemOutcome {
	return models.ItemOutcome{
		ID:     asset.IDHex(),
		Name:   asset.Name,
		Before: asset.State(),
	}
}

func (e *Executor) auditAsync(ctx context.Context, action models.AuditAction, recordID string, changes map[string]models.Change) {
	if e.audit == nil {
		return
	}
	e.audit.LogChangeAsync(ctx, action, "files", recordID, changes)
}
