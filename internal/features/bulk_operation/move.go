package bulk_operation

import (
	"context"
	"fmt"

	"go-lms/internal/common/models"
	"go-lms/internal/features/file"
	"go-lms/internal/features/relocation"
)

func moveRequest(req *Request) relocation.MoveRequest {
	return relocation.MoveRequest{
		Destination: req.Move.Destination,
		Strategy:    req.Move.Strategy,
		Conflict:    req.Move.Conflict,
		Verify:      req.Move.Verify,
		Backup:      req.Move.Backup,
		DryRun:      req.DryRun,
	}
}

func (e *Executor) moveItem(ctx context.Context, inv *invocation, asset *file.FileAsset, index int) models.ItemOutcome {
	return e.relocate(ctx, inv, asset, moveRequest(inv.req), models.AuditActionMove, "already at destination")
}

// relocate runs one mover request and turns its result into an item outcome.
func (e *Executor) relocate(ctx context.Context, inv *invocation, asset *file.FileAsset, req relocation.MoveRequest, action models.AuditAction, unchanged string) models.ItemOutcome {
	out := newOutcome(asset)

	moved, err := e.mover.Execute(ctx, inv.resolver, asset, req)
	if err != nil {
		out.Fail(err)
		return out
	}
	if moved.Unchanged {
		out.Skip(unchanged)
		return out
	}

	out.After = moved.After
	out.Changes = models.DiffStates(moved.Before, moved.After)
	out.Status = models.ItemProcessed
	if moved.Resolution.Renamed {
		out.Warn(fmt.Sprintf("renamed to %s to avoid a collision", moved.Resolution.FinalPath))
	}
	if moved.Resolution.Overwrite {
		out.Warn(fmt.Sprintf("replaces existing %s", moved.Resolution.FinalPath))
	}

	if !req.DryRun {
		e.auditAsync(ctx, action, asset.IDHex(), out.Changes)
	}
	return out
}
