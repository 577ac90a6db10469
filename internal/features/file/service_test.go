package file

import (
	"context"
	"errors"
	"io"
	"os"
	"strings"
	"testing"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/features/reference"
	"go-lms/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type failingInsertRepo struct {
	*MemoryRepository
}

func (r failingInsertRepo) Insert(ctx context.Context, file *FileAsset) error {
	return errors.New("write concern failed")
}

func newTestService(t *testing.T, repo FileRepository) (*FileServiceImpl, *storage.LocalStore, *reference.MemoryProbe) {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), t.TempDir(), "/uploads")
	require.NoError(t, err)

	probe := reference.NewMemoryProbe("course", reference.Slot{Name: "materials", Cardinality: reference.Multi})
	registry, err := reference.NewRegistry(probe)
	require.NoError(t, err)

	svc := NewFileService(repo, store, reference.NewScanner(registry, 8, zap.NewNop()), nil, zap.NewNop()).(*FileServiceImpl)
	return svc, store, probe
}

func TestUploadWritesBlobAndMetadata(t *testing.T) {
	repo := NewMemoryRepository()
	svc, store, _ := newTestService(t, repo)

	asset, err := svc.Upload(context.Background(), UploadInput{
		FileName: "Lesson Plan.PDF",
		MimeType: "application/pdf",
		Category: "Course Materials",
		Tags:     []string{"week1", "week1"},
	}, strings.NewReader("hello world"))
	require.NoError(t, err)

	assert.Equal(t, int64(11), asset.Size)
	assert.True(t, strings.HasPrefix(asset.Path, "course-materials/Lesson_Plan_"))
	assert.True(t, strings.HasSuffix(asset.Path, ".pdf"))
	assert.Equal(t, "/uploads/"+asset.Path, asset.URL)
	assert.Equal(t, []string{"week1"}, asset.Tags)
	assert.Equal(t, PermissionPublic, asset.Permission)

	info, err := store.Stat(asset.Path)
	require.NoError(t, err)
	assert.Equal(t, asset.Size, info.Size)

	stored, rc, err := svc.Open(context.Background(), asset.IDHex())
	require.NoError(t, err)
	defer rc.Close()
	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(body))
	assert.Equal(t, asset.ID, stored.ID)
}

func TestUploadRemovesBlobWhenInsertFails(t *testing.T) {
	svc, store, _ := newTestService(t, failingInsertRepo{NewMemoryRepository()})

	_, err := svc.Upload(context.Background(), UploadInput{FileName: "a.png", Directory: "images"}, strings.NewReader("x"))
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindInternal))

	entries, err := storageEntries(store.Root() + "/images")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestUploadValidation(t *testing.T) {
	svc, _, _ := newTestService(t, NewMemoryRepository())
	ctx := context.Background()

	_, err := svc.Upload(ctx, UploadInput{FileName: " "}, strings.NewReader("x"))
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = svc.Upload(ctx, UploadInput{FileName: "a.png", Permission: "secret"}, strings.NewReader("x"))
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	_, err = svc.Upload(ctx, UploadInput{FileName: "a.png", Directory: "../etc"}, strings.NewReader("x"))
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestReferencesUsesScanner(t *testing.T) {
	repo := NewMemoryRepository()
	svc, _, probe := newTestService(t, repo)

	asset, err := svc.Upload(context.Background(), UploadInput{FileName: "a.png"}, strings.NewReader("x"))
	require.NoError(t, err)
	probe.Attach("c1", "materials", asset.IDHex())

	result, err := svc.References(context.Background(), asset.IDHex())
	require.NoError(t, err)
	assert.Equal(t, 1, result.Total)

	_, err = svc.References(context.Background(), "missing")
	assert.True(t, apperrors.Is(err, apperrors.KindNotFound))
}

func TestStorageNameIsUnique(t *testing.T) {
	a := StorageName("photo.JPG")
	b := StorageName("photo.JPG")
	assert.NotEqual(t, a, b)
	assert.True(t, strings.HasPrefix(a, "photo_"))
	assert.True(t, strings.HasSuffix(a, ".jpg"))
}

func storageEntries(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names, nil
}
