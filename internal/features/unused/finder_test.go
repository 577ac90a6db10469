package unused

import (
	"context"
	"errors"
	"testing"
	"time"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/features/file"
	"go-lms/internal/features/reference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var now = time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	repo     *file.MemoryRepository
	articles *reference.MemoryProbe
	finder   *Finder
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	articles := reference.NewMemoryProbe("article",
		reference.Slot{Name: "featured_image", Cardinality: reference.Singular, Embedded: true})
	registry, err := reference.NewRegistry(articles)
	require.NoError(t, err)

	repo := file.NewMemoryRepository()
	finder := NewFinder(repo, reference.NewScanner(registry, 16, zap.NewNop()), 24*time.Hour, zap.NewNop())
	finder.now = func() time.Time { return now }
	return &fixture{repo: repo, articles: articles, finder: finder}
}

func (f *fixture) add(t *testing.T, name, category string, size int64, age time.Duration) *file.FileAsset {
	t.Helper()
	asset := &file.FileAsset{
		Name:      name,
		Path:      "uploads/" + name,
		URL:       "/uploads/uploads/" + name,
		MimeType:  "image/png",
		Category:  category,
		Size:      size,
		CreatedAt: now.Add(-age),
	}
	require.NoError(t, f.repo.Insert(context.Background(), asset))
	return asset
}

func ids(result *Result) []string {
	out := make([]string, 0, len(result.Files))
	for _, s := range result.Files {
		out = append(out, s.ID)
	}
	return out
}

func TestGracePeriodExcludesRecentUploads(t *testing.T) {
	f := newFixture(t)
	recent := f.add(t, "recent.png", "images", 10, time.Hour)
	old := f.add(t, "old.png", "images", 20, 48*time.Hour)

	result, err := f.finder.Find(context.Background(), Query{GracePeriod: 24 * time.Hour})
	require.NoError(t, err)

	assert.Equal(t, []string{old.IDHex()}, ids(result))
	assert.NotContains(t, ids(result), recent.IDHex())
	assert.Equal(t, 1, result.Analysis.Scanned)
	assert.Equal(t, int64(20), result.Analysis.WastedBytes)
}

func TestDefaultGracePeriodIsUsed(t *testing.T) {
	f := newFixture(t)
	f.add(t, "recent.png", "images", 10, time.Hour)
	old := f.add(t, "old.png", "images", 20, 48*time.Hour)

	result, err := f.finder.Find(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{old.IDHex()}, ids(result))
	assert.Equal(t, "24h0m0s", result.Analysis.GracePeriod)
}

func TestReferencedAndFailedScansAreNotUnused(t *testing.T) {
	f := newFixture(t)
	used := f.add(t, "used.png", "images", 10, 72*time.Hour)
	idle := f.add(t, "idle.png", "docs", 30, 72*time.Hour)
	f.articles.Attach("art-1", "featured_image", used.IDHex())

	result, err := f.finder.Find(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, []string{idle.IDHex()}, ids(result))
	assert.Equal(t, Bucket{Count: 1, Bytes: 30}, result.Analysis.ByCategory["docs"])
	assert.Equal(t, Bucket{Count: 1, Bytes: 30}, result.Analysis.ByMimeType["image/png"])

	f.articles.FailWith(errors.New("timeout"))
	result, err = f.finder.Find(context.Background(), Query{})
	require.NoError(t, err)
	assert.Empty(t, result.Files)
	assert.Len(t, result.Analysis.ScanFailures, 2)
}

func TestLimitTruncatesListingButNotAnalysis(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a.png", "images", 1, 50*time.Hour)
	f.add(t, "b.png", "images", 2, 49*time.Hour)
	f.add(t, "c.png", "images", 3, 48*time.Hour)

	result, err := f.finder.Find(context.Background(), Query{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, result.Files, 2)
	assert.True(t, result.Analysis.Truncated)
	assert.Equal(t, 3, result.Analysis.UnusedFiles)
	assert.Equal(t, int64(6), result.Analysis.WastedBytes)
	require.NotNil(t, result.Analysis.Oldest)
	assert.Equal(t, now.Add(-50*time.Hour), *result.Analysis.Oldest)
}

func TestFilterNarrowsCandidates(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a.png", "images", 1, 50*time.Hour)
	doc := f.add(t, "b.pdf", "docs", 2, 50*time.Hour)

	filter, err := file.NewFilterBuilder().Category("docs").Build()
	require.NoError(t, err)
	result, err := f.finder.Find(context.Background(), Query{Filter: filter})
	require.NoError(t, err)
	assert.Equal(t, []string{doc.IDHex()}, ids(result))
}

func TestFinderNeverWrites(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a.png", "images", 1, 50*time.Hour)
	writes := f.repo.Writes

	_, err := f.finder.Find(context.Background(), Query{})
	require.NoError(t, err)
	assert.Equal(t, writes, f.repo.Writes)
}

func TestServiceParsesGracePeriod(t *testing.T) {
	f := newFixture(t)
	f.add(t, "recent.png", "images", 10, time.Hour)
	svc := &UnusedServiceImpl{Finder: f.finder, now: func() time.Time { return now }}

	result, err := svc.FindUnused(context.Background(), UnusedInput{GracePeriod: "30m"})
	require.NoError(t, err)
	assert.Len(t, result.Files, 1)

	_, err = svc.FindUnused(context.Background(), UnusedInput{GracePeriod: "soon"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
	_, err = svc.FindUnused(context.Background(), UnusedInput{GracePeriod: "-1h"})
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestWorkbookExport(t *testing.T) {
	f := newFixture(t)
	f.add(t, "a.png", "images", 1, 50*time.Hour)
	result, err := f.finder.Find(context.Background(), Query{})
	require.NoError(t, err)

	data, name, err := Workbook(result)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	assert.Contains(t, name, ".xlsx")
}
