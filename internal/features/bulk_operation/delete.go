package bulk_operation

import (
	"context"
	"fmt"

	"go-lms/internal/common/models"
	"go-lms/internal/features/file"
	"go-lms/internal/features/policy"
)

// deleteItem runs scan, decide, snapshot, clean, metadata delete and physical delete in that order.
func (e *Executor) deleteItem(ctx context.Context, inv *invocation, asset *file.FileAsset, index int) models.ItemOutcome {
	out := newOutcome(asset)
	id := asset.IDHex()
	opts := inv.req.Delete

	decision, scan := e.policy.EvaluateItem(ctx, inv.session, id, opts.ReferenceHandling, inv.req.Flags)
	switch decision.Action {
	case policy.Skip:
		out.Skip(decision.Reason)
		return out
	case policy.Reject:
		out.Fail(decision.Err)
		return out
	}
	out.Reason = decision.Reason

	if inv.req.DryRun {
		out.Status = models.ItemProcessed
		if opts.DeletePhysical {
			out.FreedBytes = asset.Size
		}
		if decision.Action == policy.Clean {
			out.Warn(fmt.Sprintf("would clean %d references", scan.Total))
		}
		return out
	}

	if opts.BackupReferences && scan.Total > 0 {
		at := e.now()
		data, err := e.scanner.Snapshot(ctx, scan, at)
		if err != nil {
			out.Fail(err)
			return out
		}
		if _, err := e.store.WriteSnapshot(id, data, at); err != nil {
			out.Fail(err)
			return out
		}
	}

	if decision.Action == policy.Clean {
		cleaned, err := e.scanner.Clean(ctx, id, scan)
		inv.session.Invalidate(id)
		if err != nil {
			out.Fail(err)
			return out
		}
		e.auditAsync(ctx, models.AuditActionUnlink, id, map[string]models.Change{
			"references": {Old: scan.Total, New: 0},
		})
		out.Warn(fmt.Sprintf("cleaned references in %d entities", cleaned))
	}

	if err := e.repo.Delete(ctx, asset.ID); err != nil {
		out.Fail(err)
		return out
	}
	inv.session.Invalidate(id)

	if opts.DeletePhysical {
		if err := e.store.Remove(asset.Path); err != nil {
			out.Warn(fmt.Sprintf("metadata deleted but physical removal failed: %v", err))
		} else {
			out.FreedBytes = asset.Size
		}
	}

	e.auditAsync(ctx, models.AuditActionDelete, id, map[string]models.Change{
		"path": {Old: asset.Path, New: nil},
		"size": {Old: asset.Size, New: nil},
	})
	out.Status = models.ItemProcessed
	return out
}
