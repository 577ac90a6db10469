package bulk_operation

import (
	"context"
	"time"

	"go-lms/internal/common/models"
	"go-lms/internal/features/file"
	"go-lms/internal/features/policy"
	"go-lms/internal/features/relocation"
)

// TargetInput selects targets by id list or by filter.
type TargetInput struct {
	IDs    []string          `json:"ids" validate:"omitempty,dive,required"`
	Filter *file.FilterInput `json:"filter"`
}

type ExecutionInput struct {
	DryRun          bool  `json:"dry_run"`
	ContinueOnError *bool `json:"continue_on_error"` // default true
	BatchSize       int   `json:"batch_size" validate:"omitempty,min=1"`
	Concurrency     int   `json:"concurrency" validate:"omitempty,min=1"`
}

type DeleteInput struct {
	TargetInput
	ExecutionInput
	Force             bool   `json:"force"`
	Confirm           bool   `json:"confirm"`
	ConfirmBulkDelete bool   `json:"confirm_bulk_delete"`
	ReferenceHandling string `json:"reference_handling" validate:"omitempty,oneof=check_and_fail skip_referenced clean_references ignore_references"`
	FailBatch         bool   `json:"fail_batch_on_reference"` // check_and_fail only
	DeletePhysical    *bool  `json:"delete_physical"`         // default true
	BackupReferences  bool   `json:"backup_references"`
}

type MoveInput struct {
	TargetInput
	ExecutionInput
	Destination      relocation.Destination `json:"destination"`
	MoveStrategy     string                 `json:"move_strategy" validate:"omitempty,oneof=category_only physical_only both"`
	ConflictStrategy string                 `json:"conflict_strategy" validate:"omitempty,oneof=skip overwrite rename merge"`
	VerifyMove       *bool                  `json:"verify_move"` // default true
	BackupBeforeMove bool                   `json:"backup_before_move"`
	Force            bool                   `json:"force"`
	ConfirmBulk      bool                   `json:"confirm_bulk"`
}

type OrganizeInput struct {
	TargetInput
	ExecutionInput
	Strategy         string   `json:"strategy" validate:"omitempty,oneof=by_category by_type by_date by_uploader by_usage"`
	AddTags          []string `json:"add_tags"`
	RemoveTags       []string `json:"remove_tags"`
	NamingConvention string   `json:"naming_convention" validate:"omitempty,max=200"`
	Force            bool     `json:"force"`
}

type BulkOperationService interface {
	Delete(ctx context.Context, in DeleteInput) (*models.OperationReport, error)
	Move(ctx context.Context, in MoveInput) (*models.OperationReport, error)
	Organize(ctx context.Context, in OrganizeInput) (*models.OperationReport, error)
}

type BulkOperationServiceImpl struct {
	Executor *Executor
	now      func() time.Time
}

func NewBulkOperationService(executor *Executor) BulkOperationService {
	return &BulkOperationServiceImpl{
		Executor: executor,
		now:      time.Now,
	}
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func (s *BulkOperationServiceImpl) baseRequest(op models.Operation, target TargetInput, exec ExecutionInput) (Request, error) {
	req := Request{
		Operation:       op,
		IDs:             target.IDs,
		DryRun:          exec.DryRun,
		ContinueOnError: boolOr(exec.ContinueOnError, true),
		BatchSize:       exec.BatchSize,
		Concurrency:     exec.Concurrency,
	}
	if target.Filter != nil {
		filter, err := target.Filter.Build(s.now())
		if err != nil {
			return Request{}, err
		}
		req.Filter = &filter
	}
	return req, nil
}

func (s *BulkOperationServiceImpl) Delete(ctx context.Context, in DeleteInput) (*models.OperationReport, error) {
	req, err := s.baseRequest(models.OperationDelete, in.TargetInput, in.ExecutionInput)
	if err != nil {
		return nil, err
	}
	handling, err := policy.ParseReferenceHandling(in.ReferenceHandling)
	if err != nil {
		return nil, err
	}
	req.Flags = policy.Flags{Force: in.Force, Confirm: in.Confirm, ConfirmBulk: in.ConfirmBulkDelete, FailBatch: in.FailBatch}
	req.Delete = DeleteOptions{
		ReferenceHandling: handling,
		DeletePhysical:    boolOr(in.DeletePhysical, true),
		BackupReferences:  in.BackupReferences,
	}
	return s.Executor.Run(ctx, req)
}

func (s *BulkOperationServiceImpl) Move(ctx context.Context, in MoveInput) (*models.OperationReport, error) {
	req, err := s.baseRequest(models.OperationMove, in.TargetInput, in.ExecutionInput)
	if err != nil {
		return nil, err
	}
	strategy, err := relocation.ParseMoveStrategy(in.MoveStrategy)
	if err != nil {
		return nil, err
	}
	conflict, err := relocation.ParseConflictStrategy(in.ConflictStrategy)
	if err != nil {
		return nil, err
	}
	req.Flags = policy.Flags{Force: in.Force, ConfirmBulk: in.ConfirmBulk}
	req.Move = MoveOptions{
		Destination: in.Destination,
		Strategy:    strategy,
		Conflict:    conflict,
		Verify:      boolOr(in.VerifyMove, true),
		Backup:      in.BackupBeforeMove,
	}
	return s.Executor.Run(ctx, req)
}

func (s *BulkOperationServiceImpl) Organize(ctx context.Context, in OrganizeInput) (*models.OperationReport, error) {
	req, err := s.baseRequest(models.OperationOrganize, in.TargetInput, in.ExecutionInput)
	if err != nil {
		return nil, err
	}
	req.Flags = policy.Flags{Force: in.Force}
	req.Organize = OrganizeOptions{
		Strategy:         OrganizeStrategy(in.Strategy),
		AddTags:          in.AddTags,
		RemoveTags:       in.RemoveTags,
		NamingConvention: in.NamingConvention,
	}
	return s.Executor.Run(ctx, req)
}
