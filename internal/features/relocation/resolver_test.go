package relocation

import (
	"fmt"
	"strings"
	"testing"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/storage"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T, existing ...string) *storage.LocalStore {
	t.Helper()
	store, err := storage.NewLocalStore(t.TempDir(), t.TempDir(), "/uploads")
	require.NoError(t, err)
	for _, p := range existing {
		_, err := store.Write(p, strings.NewReader("existing "+p))
		require.NoError(t, err)
	}
	return store
}

func TestResolveRenameSuffix(t *testing.T) {
	store := newStore(t, "images/a.png", "videos/a.png")
	r := NewResolver(store, 10)

	res, err := r.Resolve("f1", "images/a.png", "videos/a.png", ConflictRename)
	require.NoError(t, err)
	assert.Equal(t, "videos/a_1.png", res.FinalPath)
	assert.True(t, res.Renamed)
	assert.False(t, res.Overwrite)
}

func TestResolveRenameNeverReturnsTakenName(t *testing.T) {
	existing := []string{"docs/report.pdf"}
	for i := 1; i <= 4; i++ {
		existing = append(existing, fmt.Sprintf("docs/report_%d.pdf", i))
	}
	store := newStore(t, existing...)
	r := NewResolver(store, 10)

	seen := map[string]bool{}
	for _, p := range existing {
		seen[p] = true
	}
	for i := 0; i < 3; i++ {
		res, err := r.Resolve(fmt.Sprintf("f%d", i), fmt.Sprintf("inbox/%d/report.pdf", i), "docs/report.pdf", ConflictRename)
		require.NoError(t, err)
		assert.False(t, seen[res.FinalPath], "resolved %s twice", res.FinalPath)
		seen[res.FinalPath] = true
	}
	assert.True(t, seen["docs/report_7.pdf"])
}

func TestResolveSkipIsConflict(t *testing.T) {
	store := newStore(t, "videos/a.png")
	r := NewResolver(store, 10)

	_, err := r.Resolve("f1", "images/a.png", "videos/a.png", ConflictSkip)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestResolveOverwriteAndMerge(t *testing.T) {
	store := newStore(t, "videos/a.png")
	for _, s := range []ConflictStrategy{ConflictOverwrite, ConflictMerge} {
		r := NewResolver(store, 10)
		res, err := r.Resolve("f1", "images/a.png", "videos/a.png", s)
		require.NoError(t, err)
		assert.Equal(t, "videos/a.png", res.FinalPath)
		assert.True(t, res.Overwrite)
	}
}

func TestResolveOverwriteRefusesClaimedPath(t *testing.T) {
	store := newStore(t)
	r := NewResolver(store, 10)

	_, err := r.Resolve("f1", "images/a.png", "videos/a.png", ConflictOverwrite)
	require.NoError(t, err)

	_, err = r.Resolve("f2", "other/a.png", "videos/a.png", ConflictOverwrite)
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestResolveFreeDestination(t *testing.T) {
	store := newStore(t)
	r := NewResolver(store, 10)

	res, err := r.Resolve("f1", "images/a.png", "videos/a.png", ConflictSkip)
	require.NoError(t, err)
	assert.Equal(t, "videos/a.png", res.FinalPath)

	// the same path is now claimed for the rest of the invocation
	_, err = r.Resolve("f2", "other/a.png", "videos/a.png", ConflictSkip)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	r.Release("videos/a.png")
	_, err = r.Resolve("f2", "other/a.png", "videos/a.png", ConflictSkip)
	assert.NoError(t, err)
}

func TestResolveExhaustsAttempts(t *testing.T) {
	store := newStore(t, "x/a.png", "x/a_1.png", "x/a_2.png")
	r := NewResolver(store, 2)

	_, err := r.Resolve("f1", "y/a.png", "x/a.png", ConflictRename)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
}

func TestParseStrategies(t *testing.T) {
	c, err := ParseConflictStrategy("")
	require.NoError(t, err)
	assert.Equal(t, ConflictRename, c)
	_, err = ParseConflictStrategy("clobber")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))

	m, err := ParseMoveStrategy("")
	require.NoError(t, err)
	assert.Equal(t, MoveBoth, m)
	_, err = ParseMoveStrategy("teleport")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

func TestSplitDir(t *testing.T) {
	dir, name := splitDir("a/b/c.png")
	assert.Equal(t, "a/b", dir)
	assert.Equal(t, "c.png", name)

	dir, name = splitDir("c.png")
	assert.Equal(t, "", dir)
	assert.Equal(t, "c.png", name)
}
