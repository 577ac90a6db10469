package relocation

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/dispatch"
	"go-lms/internal/features/file"
	"go-lms/internal/features/reference"
	"go-lms/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type fixture struct {
	repo    *file.MemoryRepository
	store   *storage.LocalStore
	probe   *reference.MemoryProbe
	queue   *dispatch.Queue
	mover   *Mover
	scanner *reference.Scanner
}

func newFixture(t *testing.T, repo file.FileRepository) *fixture {
	t.Helper()
	store := newStore(t)
	probe := reference.NewMemoryProbe("article", reference.Slot{Name: "gallery", Cardinality: reference.Multi, Embedded: true})
	registry, err := reference.NewRegistry(probe)
	require.NoError(t, err)
	scanner := reference.NewScanner(registry, 8, zap.NewNop())
	queue := dispatch.NewQueue(1, 10, zap.NewNop())
	t.Cleanup(func() { _ = queue.Stop(context.Background()) })

	f := &fixture{store: store, probe: probe, queue: queue, scanner: scanner}
	if mem, ok := repo.(*file.MemoryRepository); ok {
		f.repo = mem
	}
	f.mover = NewMover(repo, store, scanner, queue, zap.NewNop())
	return f
}

func (f *fixture) addAsset(t *testing.T, repo file.FileRepository, p string) *file.FileAsset {
	t.Helper()
	_, err := f.store.Write(p, strings.NewReader("content of "+p))
	require.NoError(t, err)
	asset := &file.FileAsset{
		ID:       primitive.NewObjectID(),
		Name:     p[strings.LastIndex(p, "/")+1:],
		Path:     p,
		URL:      f.store.URL(p),
		Category: "images",
		Size:     int64(len("content of " + p)),
	}
	require.NoError(t, repo.Insert(context.Background(), asset))
	return asset
}

func readAll(t *testing.T, store storage.Store, p string) string {
	t.Helper()
	rc, err := store.Open(p)
	require.NoError(t, err)
	defer rc.Close()
	b, err := io.ReadAll(rc)
	require.NoError(t, err)
	return string(b)
}

func TestMoveRenamesOnCollision(t *testing.T) {
	repo := file.NewMemoryRepository()
	f := newFixture(t, repo)
	asset := f.addAsset(t, repo, "images/a.png")
	_, err := f.store.Write("videos/a.png", strings.NewReader("someone else"))
	require.NoError(t, err)

	out, err := f.mover.Execute(context.Background(), f.mover.NewResolver(10), asset, MoveRequest{
		Destination: Destination{Directory: "videos", Category: "videos"},
		Strategy:    MoveBoth,
		Conflict:    ConflictRename,
		Verify:      true,
	})
	require.NoError(t, err)

	assert.Equal(t, "videos/a_1.png", out.After.Path)
	assert.Equal(t, "a_1.png", out.After.Name)
	assert.Equal(t, "videos", out.After.Category)
	assert.Equal(t, "someone else", readAll(t, f.store, "videos/a.png"))
	assert.Equal(t, "content of images/a.png", readAll(t, f.store, "videos/a_1.png"))

	exists, err := f.store.Exists("images/a.png")
	require.NoError(t, err)
	assert.False(t, exists)

	stored, err := repo.Get(context.Background(), asset.IDHex())
	require.NoError(t, err)
	assert.Equal(t, "videos/a_1.png", stored.Path)
	assert.Equal(t, "/uploads/videos/a_1.png", stored.URL)

	require.NoError(t, f.queue.Stop(context.Background()))
	relinked, ok := f.probe.RelinkedPath(asset.IDHex())
	assert.True(t, ok)
	assert.Equal(t, "videos/a_1.png", relinked)
}

func TestMoveDryRunTouchesNothing(t *testing.T) {
	repo := file.NewMemoryRepository()
	f := newFixture(t, repo)
	asset := f.addAsset(t, repo, "images/a.png")
	writes := repo.Writes

	out, err := f.mover.Execute(context.Background(), f.mover.NewResolver(10), asset, MoveRequest{
		Destination: Destination{Directory: "videos"},
		Strategy:    MovePhysicalOnly,
		Conflict:    ConflictRename,
		Backup:      true,
		DryRun:      true,
	})
	require.NoError(t, err)
	assert.Equal(t, "videos/a.png", out.After.Path)
	assert.Empty(t, out.BackupPath)
	assert.Equal(t, writes, repo.Writes)

	exists, err := f.store.Exists("images/a.png")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestMoveCategoryOnlyLeavesBlob(t *testing.T) {
	repo := file.NewMemoryRepository()
	f := newFixture(t, repo)
	asset := f.addAsset(t, repo, "images/a.png")

	out, err := f.mover.Execute(context.Background(), f.mover.NewResolver(10), asset, MoveRequest{
		Destination: Destination{Category: "banners"},
		Strategy:    MoveCategoryOnly,
	})
	require.NoError(t, err)
	assert.Equal(t, "images/a.png", out.After.Path)
	assert.Equal(t, "banners", out.After.Category)

	stored, err := repo.Get(context.Background(), asset.IDHex())
	require.NoError(t, err)
	assert.Equal(t, "banners", stored.Category)
}

func TestMoveToSameLocationIsUnchanged(t *testing.T) {
	repo := file.NewMemoryRepository()
	f := newFixture(t, repo)
	asset := f.addAsset(t, repo, "images/a.png")

	out, err := f.mover.Execute(context.Background(), f.mover.NewResolver(10), asset, MoveRequest{
		Destination: Destination{Directory: "images", Category: "images"},
		Strategy:    MoveBoth,
		Conflict:    ConflictSkip,
	})
	require.NoError(t, err)
	assert.True(t, out.Unchanged)
}

func TestMoveWithBackup(t *testing.T) {
	repo := file.NewMemoryRepository()
	f := newFixture(t, repo)
	asset := f.addAsset(t, repo, "images/a.png")
	f.mover.now = func() time.Time { return time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC) }

	out, err := f.mover.Execute(context.Background(), f.mover.NewResolver(10), asset, MoveRequest{
		Destination: Destination{Directory: "archive"},
		Strategy:    MovePhysicalOnly,
		Conflict:    ConflictRename,
		Backup:      true,
	})
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(out.BackupPath, "a.png.20240301T100000Z"))
}

type failingUpdateRepo struct {
	*file.MemoryRepository
}

func (r failingUpdateRepo) Update(ctx context.Context, id primitive.ObjectID, patch file.Patch) error {
	return errors.New("primary stepped down")
}

func TestMoveRollsBackWhenMetadataUpdateFails(t *testing.T) {
	mem := file.NewMemoryRepository()
	repo := failingUpdateRepo{mem}
	f := newFixture(t, repo)
	asset := f.addAsset(t, mem, "images/a.png")

	_, err := f.mover.Execute(context.Background(), f.mover.NewResolver(10), asset, MoveRequest{
		Destination: Destination{Directory: "videos"},
		Strategy:    MovePhysicalOnly,
		Conflict:    ConflictRename,
	})
	require.Error(t, err)

	exists, err := f.store.Exists("images/a.png")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = f.store.Exists("videos/a.png")
	require.NoError(t, err)
	assert.False(t, exists)

	stored, err := mem.Get(context.Background(), asset.IDHex())
	require.NoError(t, err)
	assert.Equal(t, "images/a.png", stored.Path)
}

func TestMoveOverwriteRefusesFileOwnedByAnotherAsset(t *testing.T) {
	for _, strategy := range []ConflictStrategy{ConflictOverwrite, ConflictMerge} {
		for _, dryRun := range []bool{true, false} {
			repo := file.NewMemoryRepository()
			f := newFixture(t, repo)
			a := f.addAsset(t, repo, "images/a.png")
			b := f.addAsset(t, repo, "videos/a.png")
			writes := repo.Writes

			_, err := f.mover.Execute(context.Background(), f.mover.NewResolver(10), a, MoveRequest{
				Destination: Destination{Directory: "videos"},
				Strategy:    MovePhysicalOnly,
				Conflict:    strategy,
				DryRun:      dryRun,
			})
			require.Error(t, err)
			assert.True(t, apperrors.Is(err, apperrors.KindConflict))
			details, ok := apperrors.DetailsOf(err).(map[string]any)
			require.True(t, ok)
			assert.Equal(t, b.IDHex(), details["owner_id"])

			assert.Equal(t, "content of videos/a.png", readAll(t, f.store, "videos/a.png"))
			assert.Equal(t, "content of images/a.png", readAll(t, f.store, "images/a.png"))
			assert.Equal(t, writes, repo.Writes)
		}
	}
}

func TestMoveOverwriteReplacesUnownedFile(t *testing.T) {
	repo := file.NewMemoryRepository()
	f := newFixture(t, repo)
	asset := f.addAsset(t, repo, "images/a.png")
	_, err := f.store.Write("videos/a.png", strings.NewReader("stray upload"))
	require.NoError(t, err)

	out, err := f.mover.Execute(context.Background(), f.mover.NewResolver(10), asset, MoveRequest{
		Destination: Destination{Directory: "videos"},
		Strategy:    MovePhysicalOnly,
		Conflict:    ConflictOverwrite,
		Verify:      true,
	})
	require.NoError(t, err)
	assert.True(t, out.Resolution.Overwrite)
	assert.NotEmpty(t, out.DisplacedPath)
	assert.Equal(t, "content of images/a.png", readAll(t, f.store, "videos/a.png"))

	stored, err := repo.Get(context.Background(), asset.IDHex())
	require.NoError(t, err)
	assert.Equal(t, "videos/a.png", stored.Path)
}

func TestMoveOverwriteRestoresReplacedFileOnRollback(t *testing.T) {
	mem := file.NewMemoryRepository()
	repo := failingUpdateRepo{mem}
	f := newFixture(t, repo)
	asset := f.addAsset(t, mem, "images/a.png")
	_, err := f.store.Write("videos/a.png", strings.NewReader("stray upload"))
	require.NoError(t, err)

	_, err = f.mover.Execute(context.Background(), f.mover.NewResolver(10), asset, MoveRequest{
		Destination: Destination{Directory: "videos"},
		Strategy:    MovePhysicalOnly,
		Conflict:    ConflictOverwrite,
	})
	require.Error(t, err)

	assert.Equal(t, "content of images/a.png", readAll(t, f.store, "images/a.png"))
	assert.Equal(t, "stray upload", readAll(t, f.store, "videos/a.png"))
	stored, err := mem.Get(context.Background(), asset.IDHex())
	require.NoError(t, err)
	assert.Equal(t, "images/a.png", stored.Path)
}

func TestMoveMissingSourceLeavesMetadata(t *testing.T) {
	repo := file.NewMemoryRepository()
	f := newFixture(t, repo)
	asset := f.addAsset(t, repo, "images/a.png")
	require.NoError(t, f.store.Remove("images/a.png"))

	_, err := f.mover.Execute(context.Background(), f.mover.NewResolver(10), asset, MoveRequest{
		Destination: Destination{Directory: "videos"},
		Strategy:    MovePhysicalOnly,
		Conflict:    ConflictRename,
	})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindPhysicalIO))

	stored, err := repo.Get(context.Background(), asset.IDHex())
	require.NoError(t, err)
	assert.Equal(t, "images/a.png", stored.Path)
}

func TestMoveRequestValidate(t *testing.T) {
	assert.Error(t, MoveRequest{Strategy: MoveBoth}.Validate())
	assert.Error(t, MoveRequest{Strategy: MoveCategoryOnly}.Validate())
	assert.Error(t, MoveRequest{Strategy: MovePhysicalOnly, Destination: Destination{Directory: "../x"}}.Validate())
	assert.NoError(t, MoveRequest{Strategy: MoveBoth, Destination: Destination{Category: "Course Media"}}.Validate())
}

func TestMoveWithNewFileNameKeepsDirectory(t *testing.T) {
	repo := file.NewMemoryRepository()
	f := newFixture(t, repo)
	asset := f.addAsset(t, repo, "images/a.png")
	tags := []string{"hero"}

	out, err := f.mover.Execute(context.Background(), f.mover.NewResolver(10), asset, MoveRequest{
		Strategy: MovePhysicalOnly,
		Conflict: ConflictRename,
		FileName: "images_a_1.png",
		Tags:     &tags,
	})
	require.NoError(t, err)
	assert.Equal(t, "images/images_a_1.png", out.After.Path)
	assert.Equal(t, "images_a_1.png", out.After.Name)
	assert.Equal(t, []string{"hero"}, out.After.Tags)
}
