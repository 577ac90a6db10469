package integrity

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/common/models"
	"go-lms/internal/features/audit"
	"go-lms/internal/features/file"
	"go-lms/internal/metrics"
	"go-lms/internal/storage"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Validator compares file metadata with the physical store.
type Validator struct {
	repo   file.FileRepository
	store  storage.Store
	audit  audit.AuditService
	logger *zap.Logger
	now    func() time.Time
}

func NewValidator(repo file.FileRepository, store storage.Store, auditService audit.AuditService, logger *zap.Logger) *Validator {
	return &Validator{
		repo:   repo,
		store:  store,
		audit:  auditService,
		logger: logger.With(zap.String("component", "integrity_validator")),
		now:    time.Now,
	}
}

// itemResult is what one file contributes to the report.
type itemResult struct {
	outcome models.ItemOutcome
	issues  []models.Issue
	repairs models.RepairStats
}

// Validate runs the enabled checks over the scope and returns a report with issues grouped by category.
func (v *Validator) Validate(ctx context.Context, req Request) (*models.OperationReport, error) {
	if len(req.IDs) > 0 && req.Filter != nil {
		return nil, apperrors.Validation("ids and filter are mutually exclusive")
	}
	if req.Checks.none() {
		return nil, apperrors.Validation("at least one check must be enabled")
	}
	if req.AutoRepair.Size && !req.Checks.Size {
		return nil, apperrors.Validation("size repair needs the size check")
	}
	if req.Concurrency < 1 {
		req.Concurrency = 1
	}

	started := v.now()
	opID := uuid.NewString()
	ctx = context.WithValue(ctx, models.OperationIDKey, opID)

	targets, missing, err := v.targets(ctx, req)
	if err != nil {
		return nil, apperrors.Internal("resolve targets", err)
	}

	report := models.NewReport(opID, models.OperationValidate, req.DryRun, len(targets)+len(missing), started)
	if req.AutoRepair.Size {
		report.Repairs = &models.RepairStats{}
	}
	for _, id := range missing {
		out := models.ItemOutcome{ID: id}
		out.Fail(apperrors.NotFound("file", id))
		report.Record(out)
	}

	results := make([]itemResult, len(targets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(req.Concurrency)
	for i, asset := range targets {
		i, asset := i, asset
		g.Go(func() error {
			results[i] = v.check(gctx, asset, req)
			return nil
		})
	}
	_ = g.Wait()

	for _, r := range results {
		report.Record(r.outcome)
		for _, issue := range r.issues {
			report.AddIssue(issue)
			metrics.IntegrityIssue(string(issue.Category))
		}
		if report.Repairs != nil {
			report.Repairs.Attempted += r.repairs.Attempted
			report.Repairs.Successful += r.repairs.Successful
			report.Repairs.Failed += r.repairs.Failed
		}
	}

	report.Finish(v.now())
	metrics.ObserveOperation(string(models.OperationValidate), req.DryRun, report.Processed, report.Skipped, report.Failed, report.Elapsed)

	fields := []zap.Field{
		zap.String("operation_id", opID),
		zap.Bool("dry_run", req.DryRun),
		zap.Int("files", report.Total),
		zap.Int("issues", report.IssueCount()),
		zap.Duration("elapsed", report.Elapsed),
	}
	if report.Repairs != nil {
		fields = append(fields, zap.Int("repairs_attempted", report.Repairs.Attempted), zap.Int("repairs_successful", report.Repairs.Successful))
	}
	v.logger.Info("Integrity validation finished", fields...)

	return report, nil
}

func (v *Validator) targets(ctx context.Context, req Request) ([]*file.FileAsset, []string, error) {
	if len(req.IDs) > 0 {
		return v.repo.FindByIDs(ctx, req.IDs)
	}
	filter := file.Filter{}
	if req.Filter != nil {
		filter = *req.Filter
	}
	files, err := v.repo.Find(ctx, filter, 0)
	return files, nil, err
}

// check runs every enabled check for one file. A malformed path skips the physical checks
// and a missing file skips size and permission.
func (v *Validator) check(ctx context.Context, asset *file.FileAsset, req Request) itemResult {
	var r itemResult
	r.outcome = models.ItemOutcome{ID: asset.IDHex(), Name: asset.Name, Status: models.ItemProcessed}
	add := func(category models.IssueCategory, msg string, expected, actual any) {
		r.issues = append(r.issues, models.Issue{
			FileID:   asset.IDHex(),
			Path:     asset.Path,
			Category: category,
			Message:  msg,
			Expected: expected,
			Actual:   actual,
		})
		r.outcome.Issues = append(r.outcome.Issues, category)
	}

	if req.Checks.Metadata {
		if missing := missingFields(asset); len(missing) > 0 {
			add(models.IssueMetadataIncomplete, "missing fields: "+strings.Join(missing, ", "), nil, missing)
		}
	}

	if err := storage.CheckPath(asset.Path); err != nil {
		if req.Checks.Path {
			add(models.IssuePathMalformed, err.Error(), nil, asset.Path)
		}
		return v.finish(r)
	}
	if !req.Checks.physical() {
		return v.finish(r)
	}

	info, err := v.store.Stat(asset.Path)
	switch {
	case errors.Is(err, fs.ErrPermission):
		if req.Checks.Permission {
			add(models.IssuePermissionDenied, err.Error(), nil, nil)
		}
		return v.finish(r)
	case err != nil:
		if req.Checks.Existence {
			add(models.IssueMissingPhysicalFile, err.Error(), asset.Path, nil)
		}
		return v.finish(r)
	}

	if req.Checks.Size && info.Size != asset.Size {
		add(models.IssueSizeMismatch,
			fmt.Sprintf("stored size %d, actual %d", asset.Size, info.Size), asset.Size, info.Size)
		if req.AutoRepair.Size && v.repairSize(ctx, asset, info.Size, req.DryRun, &r) {
			r.issues[len(r.issues)-1].Repaired = true
		}
	}

	if req.Checks.Permission {
		if err := v.store.CheckAccess(asset.Path); err != nil {
			add(models.IssuePermissionDenied, err.Error(), nil, nil)
		}
	}
	return v.finish(r)
}

// repairSize is counted as attempted under dry run but nothing is written.
func (v *Validator) repairSize(ctx context.Context, asset *file.FileAsset, actual int64, dryRun bool, r *itemResult) bool {
	r.repairs.Attempted++
	if dryRun {
		r.outcome.Warn(fmt.Sprintf("would update stored size to %d", actual))
		return false
	}
	if err := v.repo.Update(ctx, asset.ID, file.Patch{Size: file.Ptr(actual)}); err != nil {
		r.repairs.Failed++
		r.outcome.Warn(fmt.Sprintf("size repair failed: %v", err))
		v.logger.Warn("Size repair failed", zap.String("file_id", asset.IDHex()), zap.Error(err))
		return false
	}
	r.repairs.Successful++
	r.outcome.Changes = map[string]models.Change{"size": {Old: asset.Size, New: actual}}
	if v.audit != nil {
		v.audit.LogChangeAsync(ctx, models.AuditActionRepair, "files", asset.IDHex(), r.outcome.Changes)
	}
	return true
}

func (v *Validator) finish(r itemResult) itemResult {
	if n := len(r.issues); n > 0 {
		r.outcome.Reason = fmt.Sprintf("%d issues", n)
	}
	return r
}

func missingFields(asset *file.FileAsset) []string {
	var missing []string
	if strings.TrimSpace(asset.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(asset.MimeType) == "" {
		missing = append(missing, "mime_type")
	}
	if strings.TrimSpace(asset.Path) == "" {
		missing = append(missing, "path")
	}
	if strings.TrimSpace(asset.URL) == "" {
		missing = append(missing, "url")
	}
	if asset.CreatedAt.IsZero() {
		missing = append(missing, "created_at")
	}
	if asset.Permission != "" && !asset.Permission.Valid() {
		missing = append(missing, "permission")
	}
	return missing
}
