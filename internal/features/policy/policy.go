// Package policy decides whether a destructive operation may touch a file
// given its references, the caller's flags and the configured thresholds.
package policy

import (
	"context"
	"fmt"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/common/models"
	"go-lms/internal/config"
	"go-lms/internal/features/reference"
)

type ReferenceHandling string

const (
	CheckAndFail     ReferenceHandling = "check_and_fail"
	SkipReferenced   ReferenceHandling = "skip_referenced"
	CleanReferences  ReferenceHandling = "clean_references"
	IgnoreReferences ReferenceHandling = "ignore_references"
)

// ParseReferenceHandling maps the wire value; empty means check_and_fail.
func ParseReferenceHandling(s string) (ReferenceHandling, error) {
	switch h := ReferenceHandling(s); h {
	case "":
		return CheckAndFail, nil
	case CheckAndFail, SkipReferenced, CleanReferences, IgnoreReferences:
		return h, nil
	}
	return "", apperrors.Validation("unknown reference_handling %q", s)
}

type Flags struct {
	Force       bool `json:"force"`
	Confirm     bool `json:"confirm"`
	ConfirmBulk bool `json:"confirm_bulk"`
	// FailBatch makes a check_and_fail rejection of any item reject the whole call.
	FailBatch bool `json:"fail_batch_on_reference"`
}

type Action string

const (
	Allow  Action = "allow"
	Skip   Action = "skip"
	Clean  Action = "clean"
	Reject Action = "reject"
)

type Decision struct {
	Action              Action
	Reason              string
	RequireConfirmation bool
	Err                 error
}

// Allowed reports whether the item may proceed, possibly after cleaning.
func (d Decision) Allowed() bool {
	return d.Action == Allow || d.Action == Clean
}

type Thresholds struct {
	MaxTargets                  int
	BulkConfirmThreshold        int
	DangerousReferenceThreshold int
}

type Engine struct {
	thresholds Thresholds
}

func NewEngine(t Thresholds) *Engine {
	return &Engine{thresholds: t}
}

// NewPolicyEngine is the fx constructor.
func NewPolicyEngine(cfg *config.Config) *Engine {
	return NewEngine(Thresholds{
		MaxTargets:                  cfg.Assets.MaxTargets,
		BulkConfirmThreshold:        cfg.Assets.BulkConfirmThreshold,
		DangerousReferenceThreshold: cfg.Assets.DangerousReferenceThreshold,
	})
}

func (e *Engine) Thresholds() Thresholds {
	return e.thresholds
}

// EvaluateBatch rejects the whole call before any item is touched.
func (e *Engine) EvaluateBatch(op models.Operation, count int, flags Flags) error {
	if e.thresholds.MaxTargets > 0 && count > e.thresholds.MaxTargets && !flags.Force {
		return apperrors.Conflict(
			fmt.Sprintf("%d targets exceed the maximum of %d", count, e.thresholds.MaxTargets),
			map[string]any{"count": count, "max_targets": e.thresholds.MaxTargets},
		)
	}
	if op.Destructive() && count > e.thresholds.BulkConfirmThreshold && !flags.ConfirmBulk {
		return apperrors.Conflict(
			fmt.Sprintf("bulk %s of %d files requires confirmation", op, count),
			map[string]any{
				"count":                 count,
				"threshold":             e.thresholds.BulkConfirmThreshold,
				"requires_confirmation": true,
			},
		)
	}
	return nil
}

// Scanning is satisfied by reference.Scanner and reference.Session.
type Scanning interface {
	Scan(ctx context.Context, fileID string) reference.Result
}

// EvaluateItem consults the scanner unless references are ignored.
func (e *Engine) EvaluateItem(ctx context.Context, scanner Scanning, fileID string, handling ReferenceHandling, flags Flags) (Decision, reference.Result) {
	if handling == IgnoreReferences {
		return Decision{Action: Allow, Reason: "references ignored"}, reference.Result{FileID: fileID}
	}
	result := scanner.Scan(ctx, fileID)
	return e.Evaluate(handling, flags, result), result
}

// Evaluate applies the per-item rules in order to a scan result.
func (e *Engine) Evaluate(handling ReferenceHandling, flags Flags, result reference.Result) Decision {
	if handling == IgnoreReferences {
		return Decision{Action: Allow, Reason: "references ignored"}
	}
	if !result.ScanFailed && result.Total == 0 {
		return Decision{Action: Allow}
	}

	if result.ScanFailed {
		if handling == SkipReferenced {
			return Decision{Action: Skip, Reason: "reference scan failed"}
		}
		return reject(apperrors.Conflict(
			fmt.Sprintf("reference scan failed for %s", result.FileID),
			map[string]any{"errors": result.Errors},
		))
	}

	if handling == SkipReferenced {
		return Decision{Action: Skip, Reason: fmt.Sprintf("referenced by %d entities", result.Total)}
	}

	if result.Total > e.thresholds.DangerousReferenceThreshold && !flags.Confirm {
		d := reject(apperrors.Conflict(
			fmt.Sprintf("%s is referenced by %d entities and requires confirmation", result.FileID, result.Total),
			map[string]any{
				"references":            result.All(),
				"threshold":             e.thresholds.DangerousReferenceThreshold,
				"requires_confirmation": true,
			},
		))
		d.RequireConfirmation = true
		return d
	}

	switch handling {
	case CleanReferences:
		return Decision{Action: Clean, Reason: fmt.Sprintf("cleaning %d references", result.Total)}
	default:
		if flags.Force {
			return Decision{Action: Allow, Reason: fmt.Sprintf("forced past %d references", result.Total)}
		}
		return reject(apperrors.Conflict(
			fmt.Sprintf("%s is referenced by %d entities", result.FileID, result.Total),
			map[string]any{"references": result.All()},
		))
	}
}

// EvaluateReferences rejects the whole call when FailBatch is set under
// check_and_fail and at least one target would be rejected on its own.
func (e *Engine) EvaluateReferences(ctx context.Context, scanner Scanning, fileIDs []string, handling ReferenceHandling, flags Flags) error {
	if handling != CheckAndFail || !flags.FailBatch {
		return nil
	}
	var rejected []map[string]any
	for _, id := range fileIDs {
		d := e.Evaluate(handling, flags, scanner.Scan(ctx, id))
		if d.Action != Reject {
			continue
		}
		rejected = append(rejected, map[string]any{
			"file_id": id,
			"reason":  d.Reason,
			"details": apperrors.DetailsOf(d.Err),
		})
	}
	if len(rejected) == 0 {
		return nil
	}
	return apperrors.Conflict(
		fmt.Sprintf("%d of %d files cannot be deleted; batch rejected", len(rejected), len(fileIDs)),
		map[string]any{"rejected": rejected},
	)
}

func reject(err *apperrors.Error) Decision {
	return Decision{Action: Reject, Reason: err.Message, Err: err}
}
