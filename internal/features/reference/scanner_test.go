package reference

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScanner(t *testing.T) (*Scanner, *MemoryProbe, *MemoryProbe, *MemoryProbe) {
	t.Helper()
	articles := NewMemoryProbe("article",
		Slot{Name: "featured_image", Cardinality: Singular, Embedded: true},
		Slot{Name: "gallery", Cardinality: Multi, Embedded: true},
	)
	courses := NewMemoryProbe("course",
		Slot{Name: "thumbnail", Cardinality: Singular, Embedded: true},
		Slot{Name: "materials", Cardinality: Multi},
	)
	users := NewMemoryProbe("user",
		Slot{Name: "avatar", Cardinality: Singular},
	)
	registry, err := NewRegistry(articles, courses, users)
	require.NoError(t, err)
	return NewScanner(registry, 16, zap.NewNop()), articles, courses, users
}

func TestScanMergesAllKinds(t *testing.T) {
	scanner, articles, courses, users := newTestScanner(t)
	articles.Attach("a1", "featured_image", "f1")
	articles.Attach("a2", "gallery", "f1")
	articles.Attach("a2", "gallery", "f2")
	courses.Attach("c1", "materials", "f1")
	users.Attach("u1", "avatar", "f2")

	result := scanner.Scan(context.Background(), "f1")

	assert.True(t, result.HasReferences)
	assert.False(t, result.ScanFailed)
	assert.Equal(t, 3, result.Total)
	assert.Len(t, result.PerEntityKind["article"], 2)
	assert.Len(t, result.PerEntityKind["course"], 1)
	assert.NotContains(t, result.PerEntityKind, "user")

	all := result.All()
	require.Len(t, all, 3)
	assert.Equal(t, "article", all[0].Kind)
	assert.Equal(t, "course", all[2].Kind)
}

func TestScanUnreferenced(t *testing.T) {
	scanner, _, _, _ := newTestScanner(t)
	result := scanner.Scan(context.Background(), "nobody")
	assert.False(t, result.HasReferences)
	assert.Zero(t, result.Total)
}

func TestScanFailureFailsClosed(t *testing.T) {
	scanner, _, courses, _ := newTestScanner(t)
	courses.FailWith(errors.New("connection reset"))

	result := scanner.Scan(context.Background(), "f1")

	assert.True(t, result.ScanFailed)
	assert.True(t, result.HasReferences)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "course")
}

func TestSessionCachesSuccessfulScansOnly(t *testing.T) {
	scanner, articles, courses, _ := newTestScanner(t)
	articles.Attach("a1", "featured_image", "f1")

	session := scanner.NewSession()
	defer session.Close()

	session.Scan(context.Background(), "f1")
	session.Scan(context.Background(), "f1")
	assert.Equal(t, 1, articles.CallCount())

	session.Invalidate("f1")
	session.Scan(context.Background(), "f1")
	assert.Equal(t, 2, articles.CallCount())

	courses.FailWith(errors.New("down"))
	session.Scan(context.Background(), "f2")
	session.Scan(context.Background(), "f2")
	assert.Equal(t, 4, articles.CallCount(), "failed scans must not be cached")

	session.Close()
	assert.Zero(t, session.Len())
}

func TestSessionsAreIndependent(t *testing.T) {
	scanner, articles, _, _ := newTestScanner(t)
	first := scanner.NewSession()
	first.Scan(context.Background(), "f1")

	articles.Attach("a1", "featured_image", "f1")

	second := scanner.NewSession()
	assert.True(t, second.Scan(context.Background(), "f1").HasReferences)
	assert.False(t, first.Scan(context.Background(), "f1").HasReferences)
}

func TestCleanRemovesEveryReference(t *testing.T) {
	scanner, articles, courses, _ := newTestScanner(t)
	articles.Attach("a1", "featured_image", "f1")
	articles.Attach("a2", "gallery", "f1")
	articles.Attach("a2", "gallery", "f9")
	courses.Attach("c1", "materials", "f1")

	ctx := context.Background()
	result := scanner.Scan(ctx, "f1")
	cleaned, err := scanner.Clean(ctx, "f1", result)
	require.NoError(t, err)
	assert.Equal(t, int64(3), cleaned)

	assert.False(t, scanner.Scan(ctx, "f1").HasReferences)
	assert.Equal(t, 1, scanner.Scan(ctx, "f9").Total)
}

func TestCleanRefusesFailedScan(t *testing.T) {
	scanner, _, courses, _ := newTestScanner(t)
	courses.FailWith(errors.New("down"))
	result := scanner.Scan(context.Background(), "f1")

	_, err := scanner.Clean(context.Background(), "f1", result)
	require.Error(t, err)
}

func TestRelinkVisitsRelinkers(t *testing.T) {
	scanner, articles, courses, _ := newTestScanner(t)
	n, err := scanner.Relink(context.Background(), "f1", "videos/a.png", "/uploads/videos/a.png")
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	path, ok := articles.RelinkedPath("f1")
	assert.True(t, ok)
	assert.Equal(t, "videos/a.png", path)
	_, ok = courses.RelinkedPath("f1")
	assert.True(t, ok)
}

func TestSnapshotIncludesDocuments(t *testing.T) {
	scanner, articles, _, _ := newTestScanner(t)
	articles.Attach("a1", "featured_image", "f1")
	ctx := context.Background()

	data, err := scanner.Snapshot(ctx, scanner.Scan(ctx, "f1"), time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))
	require.NoError(t, err)

	var snap Snapshot
	require.NoError(t, json.Unmarshal(data, &snap))
	assert.Equal(t, "f1", snap.FileID)
	require.Len(t, snap.References, 1)
	require.Len(t, snap.Documents["article"], 1)
	assert.Equal(t, "a1", snap.Documents["article"][0]["_id"])
}

func TestRegistryRejectsDuplicateKind(t *testing.T) {
	_, err := NewRegistry(NewMemoryProbe("article"), NewMemoryProbe("article"))
	require.Error(t, err)
}

func TestSlotIDPath(t *testing.T) {
	assert.Equal(t, "gallery.file_id", Slot{Field: "gallery", Embedded: true}.IDPath())
	assert.Equal(t, "avatar", Slot{Field: "avatar"}.IDPath())
}

func TestLabelOf(t *testing.T) {
	assert.Equal(t, "Intro", labelOf("Intro"))
	assert.Equal(t, "", labelOf(nil))
}
