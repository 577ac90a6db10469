package policy

import (
	"context"
	"testing"

	"go-lms/internal/common/apperrors"
	"go-lms/internal/common/models"
	"go-lms/internal/features/reference"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func refs(n int) reference.Result {
	r := reference.Result{FileID: "f1", PerEntityKind: map[string][]reference.EntityRef{}}
	for i := 0; i < n; i++ {
		r.PerEntityKind["course"] = append(r.PerEntityKind["course"], reference.EntityRef{Kind: "course", EntityID: string(rune('a' + i)), Slot: "materials"})
	}
	r.Total = n
	r.HasReferences = n > 0
	return r
}

func failed() reference.Result {
	return reference.Result{FileID: "f1", HasReferences: true, ScanFailed: true, Errors: []string{"course: down"}}
}

func TestEvaluate(t *testing.T) {
	engine := NewEngine(Thresholds{MaxTargets: 1000, BulkConfirmThreshold: 10, DangerousReferenceThreshold: 5})

	tests := []struct {
		name     string
		handling ReferenceHandling
		flags    Flags
		result   reference.Result
		action   Action
		confirm  bool
	}{
		{"unreferenced allowed without force", CheckAndFail, Flags{}, refs(0), Allow, false},
		{"referenced rejected without force", CheckAndFail, Flags{}, refs(2), Reject, false},
		{"referenced forced", CheckAndFail, Flags{Force: true}, refs(2), Allow, false},
		{"skip referenced", SkipReferenced, Flags{}, refs(1), Skip, false},
		{"skip unreferenced proceeds", SkipReferenced, Flags{}, refs(0), Allow, false},
		{"clean references", CleanReferences, Flags{}, refs(3), Clean, false},
		{"ignore references", IgnoreReferences, Flags{}, refs(9), Allow, false},
		{"ignore even a failed scan", IgnoreReferences, Flags{}, failed(), Allow, false},
		{"dangerous without confirm", CheckAndFail, Flags{Force: true}, refs(6), Reject, true},
		{"dangerous clean without confirm", CleanReferences, Flags{}, refs(6), Reject, true},
		{"dangerous confirmed and forced", CheckAndFail, Flags{Force: true, Confirm: true}, refs(6), Allow, false},
		{"dangerous confirmed but not forced", CheckAndFail, Flags{Confirm: true}, refs(6), Reject, false},
		{"threshold is exclusive", CheckAndFail, Flags{Force: true}, refs(5), Allow, false},
		{"scan failure rejects even with force", CheckAndFail, Flags{Force: true, Confirm: true}, failed(), Reject, false},
		{"scan failure skipped under skip_referenced", SkipReferenced, Flags{}, failed(), Skip, false},
		{"scan failure rejects clean", CleanReferences, Flags{}, failed(), Reject, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := engine.Evaluate(tt.handling, tt.flags, tt.result)
			assert.Equal(t, tt.action, d.Action)
			assert.Equal(t, tt.confirm, d.RequireConfirmation)
			if tt.action == Reject {
				require.Error(t, d.Err)
				assert.True(t, apperrors.Is(d.Err, apperrors.KindConflict))
			} else {
				assert.NoError(t, d.Err)
			}
		})
	}
}

func TestRejectListsReferencingEntities(t *testing.T) {
	engine := NewEngine(Thresholds{DangerousReferenceThreshold: 5})
	d := engine.Evaluate(CheckAndFail, Flags{}, refs(2))

	details, ok := apperrors.DetailsOf(d.Err).(map[string]any)
	require.True(t, ok)
	list, ok := details["references"].([]reference.EntityRef)
	require.True(t, ok)
	assert.Len(t, list, 2)
	assert.Equal(t, "course", list[0].Kind)
}

func TestEvaluateBatch(t *testing.T) {
	engine := NewEngine(Thresholds{MaxTargets: 20, BulkConfirmThreshold: 10, DangerousReferenceThreshold: 5})

	err := engine.EvaluateBatch(models.OperationDelete, 15, Flags{})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	assert.NoError(t, engine.EvaluateBatch(models.OperationDelete, 15, Flags{ConfirmBulk: true}))
	assert.NoError(t, engine.EvaluateBatch(models.OperationDelete, 10, Flags{}))
	assert.NoError(t, engine.EvaluateBatch(models.OperationOrganize, 15, Flags{}))

	err = engine.EvaluateBatch(models.OperationMove, 11, Flags{})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))

	err = engine.EvaluateBatch(models.OperationOrganize, 21, Flags{})
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	assert.NoError(t, engine.EvaluateBatch(models.OperationOrganize, 21, Flags{Force: true}))
}

type countingScanner struct{ calls int }

func (s *countingScanner) Scan(ctx context.Context, fileID string) reference.Result {
	s.calls++
	return refs(1)
}

func TestEvaluateItemSkipsScanWhenIgnoring(t *testing.T) {
	engine := NewEngine(Thresholds{DangerousReferenceThreshold: 5})
	scanner := &countingScanner{}

	d, _ := engine.EvaluateItem(context.Background(), scanner, "f1", IgnoreReferences, Flags{})
	assert.Equal(t, Allow, d.Action)
	assert.Zero(t, scanner.calls)

	d, result := engine.EvaluateItem(context.Background(), scanner, "f1", CheckAndFail, Flags{})
	assert.Equal(t, Reject, d.Action)
	assert.Equal(t, 1, result.Total)
	assert.Equal(t, 1, scanner.calls)
}

func TestParseReferenceHandling(t *testing.T) {
	h, err := ParseReferenceHandling("")
	require.NoError(t, err)
	assert.Equal(t, CheckAndFail, h)

	h, err = ParseReferenceHandling("clean_references")
	require.NoError(t, err)
	assert.Equal(t, CleanReferences, h)

	_, err = ParseReferenceHandling("nuke")
	assert.True(t, apperrors.Is(err, apperrors.KindValidation))
}

type mapScanner map[string]int

func (s mapScanner) Scan(ctx context.Context, fileID string) reference.Result {
	r := refs(s[fileID])
	r.FileID = fileID
	return r
}

func TestEvaluateReferencesFailsWholeBatch(t *testing.T) {
	engine := NewEngine(Thresholds{DangerousReferenceThreshold: 5})
	scanner := mapScanner{"a": 0, "b": 2, "c": 0}
	ids := []string{"a", "b", "c"}
	ctx := context.Background()

	assert.NoError(t, engine.EvaluateReferences(ctx, scanner, ids, CheckAndFail, Flags{}))
	assert.NoError(t, engine.EvaluateReferences(ctx, scanner, ids, SkipReferenced, Flags{FailBatch: true}))
	assert.NoError(t, engine.EvaluateReferences(ctx, scanner, ids, CheckAndFail, Flags{FailBatch: true, Force: true}))
	assert.NoError(t, engine.EvaluateReferences(ctx, scanner, []string{"a", "c"}, CheckAndFail, Flags{FailBatch: true}))

	err := engine.EvaluateReferences(ctx, scanner, ids, CheckAndFail, Flags{FailBatch: true})
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindConflict))
	details, ok := apperrors.DetailsOf(err).(map[string]any)
	require.True(t, ok)
	rejected, ok := details["rejected"].([]map[string]any)
	require.True(t, ok)
	require.Len(t, rejected, 1)
	assert.Equal(t, "b", rejected[0]["file_id"])
}
