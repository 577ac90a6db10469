package relocation

import (
	"context"
	"path"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/common/models"
	"go-lms/internal/dispatch"
	"go-lms/internal/features/file"
	"go-lms/internal/features/reference"
	"go-lms/internal/storage"
	"go-lms/pkg/utils"

	"go.uber.org/zap"
)

type MoveStrategy string

const (
	MoveCategoryOnly MoveStrategy = "category_only"
	MovePhysicalOnly MoveStrategy = "physical_only"
	MoveBoth         MoveStrategy = "both"
)

// ParseMoveStrategy maps the wire value; empty means both.
func ParseMoveStrategy(s string) (MoveStrategy, error) {
	switch m := MoveStrategy(s); m {
	case "":
		return MoveBoth, nil
	case MoveCategoryOnly, MovePhysicalOnly, MoveBoth:
		return m, nil
	}
	return "", apperrors.Validation("unknown move_strategy %q", s)
}

func (m MoveStrategy) physical() bool { return m == MovePhysicalOnly || m == MoveBoth }
func (m MoveStrategy) category() bool { return m == MoveCategoryOnly || m == MoveBoth }

type Destination struct {
	Category  string `json:"category"`
	Directory string `json:"directory"`
}

// directory returns the target directory; without one the category slug is used.
func (d Destination) directory() (string, error) {
	dir := d.Directory
	if dir == "" {
		dir = utils.Slugify(d.Category)
	}
	if dir == "" {
		return "", apperrors.Validation("destination needs a directory or a category")
	}
	return storage.NormalizePath(dir)
}

type MoveRequest struct {
	Destination Destination
	Strategy    MoveStrategy
	Conflict    ConflictStrategy
	Verify      bool
	Backup      bool
	DryRun      bool

	// FileName replaces the stored base name and the display name. Without a
	// destination directory the file stays in its current directory.
	FileName string
	// Tags, when set, replaces the tag list in the same metadata update.
	Tags *[]string
}

// Validate checks the request before any item is touched.
func (r MoveRequest) Validate() error {
	if r.Strategy.physical() {
		if _, err := r.Destination.directory(); err != nil {
			return err
		}
	}
	if r.Strategy == MoveCategoryOnly && r.Destination.Category == "" {
		return apperrors.Validation("category_only move needs a destination category")
	}
	return nil
}

type MoveOutcome struct {
	Before     *models.AssetState
	After      *models.AssetState
	Resolution Resolution
	BackupPath string
	// DisplacedPath is the backup of an unowned file replaced under overwrite.
	DisplacedPath string
	Unchanged     bool
}

// Mover performs backup, rename, verify and metadata update in that order.
type Mover struct {
	repo    file.FileRepository
	store   storage.Store
	scanner *reference.Scanner
	queue   *dispatch.Queue
	logger  *zap.Logger
	now     func() time.Time
}

func NewMover(repo file.FileRepository, store storage.Store, scanner *reference.Scanner, queue *dispatch.Queue, logger *zap.Logger) *Mover {
	return &Mover{
		repo:    repo,
		store:   store,
		scanner: scanner,
		queue:   queue,
		logger:  logger.With(zap.String("component", "mover")),
		now:     time.Now,
	}
}

func (m *Mover) NewResolver(maxAttempts int) *Resolver {
	return NewResolver(m.store, maxAttempts)
}

// Execute moves one asset. Under DryRun only the destination is resolved.
// A physical failure leaves metadata untouched; a failed metadata update moves the blob back.
func (m *Mover) Execute(ctx context.Context, resolver *Resolver, asset *file.FileAsset, req MoveRequest) (MoveOutcome, error) {
	out := MoveOutcome{Before: asset.State()}
	after := asset.Clone()
	var patch file.Patch

	if req.Strategy.category() && req.Destination.Category != "" && req.Destination.Category != asset.Category {
		patch.Category = file.Ptr(req.Destination.Category)
	}

	physical := false
	if req.Tags != nil && !sameTags(*req.Tags, asset.Tags) {
		patch.Tags = req.Tags
	}

	if req.Strategy.physical() {
		target, err := targetPath(asset, req)
		if err != nil {
			return out, err
		}
		if target != asset.Path {
			res, err := resolver.Resolve(asset.IDHex(), asset.Path, target, req.Conflict)
			if err != nil {
				return out, err
			}
			out.Resolution = res
			physical = true
			if res.Overwrite {
				if err := m.checkOwner(ctx, asset, res.FinalPath); err != nil {
					resolver.Release(res.FinalPath)
					return out, err
				}
			}

			patch.Path = file.Ptr(res.FinalPath)
			patch.URL = file.Ptr(m.store.URL(res.FinalPath))
			if req.FileName != "" || asset.Name == path.Base(asset.Path) {
				patch.Name = file.Ptr(path.Base(res.FinalPath))
			}
		}
	}

	if patch.IsEmpty() {
		out.After = out.Before
		out.Unchanged = true
		return out, nil
	}
	patch.Apply(after, m.now().UTC())
	out.After = after.State()

	if req.DryRun {
		return out, nil
	}

	if physical {
		if req.Backup {
			backup, err := m.store.Backup(asset.Path, m.now())
			if err != nil {
				resolver.Release(out.Resolution.FinalPath)
				return out, err
			}
			out.BackupPath = backup
		}
		if out.Resolution.Overwrite {
			displaced, err := m.displace(out.Resolution.FinalPath)
			if err != nil {
				resolver.Release(out.Resolution.FinalPath)
				return out, err
			}
			out.DisplacedPath = displaced
		}

		if err := m.store.Move(asset.Path, out.Resolution.FinalPath, out.Resolution.Overwrite); err != nil {
			resolver.Release(out.Resolution.FinalPath)
			return out, err
		}

		if req.Verify {
			if _, err := m.store.Stat(out.Resolution.FinalPath); err != nil {
				m.rollback(asset, out.Resolution.FinalPath, out.DisplacedPath)
				resolver.Release(out.Resolution.FinalPath)
				return out, err
			}
		}
	}

	if err := m.repo.Update(ctx, asset.ID, patch); err != nil {
		if physical {
			m.rollback(asset, out.Resolution.FinalPath, out.DisplacedPath)
			resolver.Release(out.Resolution.FinalPath)
		}
		return out, apperrors.Internal("update file metadata", err)
	}

	if physical {
		m.scheduleRelink(asset.IDHex(), out.After.Path, out.After.URL)
	}
	return out, nil
}

func targetPath(asset *file.FileAsset, req MoveRequest) (string, error) {
	base := path.Base(asset.Path)
	if req.FileName != "" {
		if err := storage.CheckPath(req.FileName); err != nil {
			return "", err
		}
		base = path.Base(req.FileName)
	}

	var dir string
	if req.FileName != "" && req.Destination.Directory == "" && req.Destination.Category == "" {
		dir, _ = splitDir(asset.Path)
	} else {
		d, err := req.Destination.directory()
		if err != nil {
			return "", err
		}
		dir = d
	}
	return storage.JoinDir(dir, base), nil
}

func sameTags(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// checkOwner refuses to overwrite a path recorded for another asset.
func (m *Mover) checkOwner(ctx context.Context, asset *file.FileAsset, target string) error {
	owner, err := m.repo.FindByPath(ctx, target)
	switch {
	case apperrors.Is(err, apperrors.KindNotFound):
		return nil
	case err != nil:
		return apperrors.Internal("look up destination owner", err)
	case owner.ID != asset.ID:
		return ownedConflict(target, owner.IDHex())
	}
	return nil
}

// displace backs up the file about to be overwritten so a rollback can restore it.
func (m *Mover) displace(target string) (string, error) {
	exists, err := m.store.Exists(target)
	if err != nil || !exists {
		return "", err
	}
	return m.store.Backup(target, m.now())
}

func (m *Mover) rollback(asset *file.FileAsset, moved, displaced string) {
	if err := m.store.Move(moved, asset.Path, false); err != nil {
		m.logger.Error("Failed to roll back move",
			zap.String("file_id", asset.IDHex()),
			zap.String("from", moved),
			zap.String("to", asset.Path),
			zap.Error(err))
		return
	}
	if displaced == "" {
		return
	}
	if err := m.store.Restore(displaced, moved); err != nil {
		m.logger.Error("Failed to restore overwritten file",
			zap.String("path", moved),
			zap.String("backup", displaced),
			zap.Error(err))
	}
}

// scheduleRelink updates denormalized path/url copies in other entities. Best effort.
func (m *Mover) scheduleRelink(fileID, newPath, newURL string) {
	if m.scanner == nil || m.queue == nil {
		return
	}
	m.queue.Submit("relink:"+fileID, func(ctx context.Context) error {
		n, err := m.scanner.Relink(ctx, fileID, newPath, newURL)
		if err == nil && n > 0 {
			m.logger.Debug("Relinked references", zap.String("file_id", fileID), zap.Int64("updated", n))
		}
		return err
	})
}
