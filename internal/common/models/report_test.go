package models

import (
	"errors"
	"testing"
	"time"

	"go-lms/internal/common/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordUpdatesCounters(t *testing.T) {
	r := NewReport("op", OperationDelete, false, 3, time.Now())
	r.Record(ItemOutcome{ID: "a", Status: ItemProcessed, FreedBytes: 10})
	r.Record(ItemOutcome{ID: "b", Status: ItemSkipped})

	failed := ItemOutcome{ID: "c"}
	failed.Fail(apperrors.Conflict("referenced", []string{"article:1"}))
	r.Record(failed)

	assert.Equal(t, 1, r.Processed)
	assert.Equal(t, 1, r.Skipped)
	assert.Equal(t, 1, r.Failed)
	assert.Equal(t, int64(10), r.FreedBytes)
	assert.Equal(t, apperrors.KindConflict, r.Items[2].ErrorKind)
	assert.Equal(t, []string{"article:1"}, r.Items[2].Details)
}

func TestPartialFailure(t *testing.T) {
	r := NewReport("op", OperationMove, false, 2, time.Now())
	r.Record(ItemOutcome{ID: "a", Status: ItemProcessed})
	assert.NoError(t, r.PartialFailure())

	bad := ItemOutcome{ID: "b"}
	bad.Fail(errors.New("disk full"))
	r.Record(bad)
	err := r.PartialFailure()
	require.Error(t, err)
	assert.True(t, apperrors.Is(err, apperrors.KindPartialBatch))
	assert.Equal(t, apperrors.KindInternal, r.Items[1].ErrorKind)

	all := NewReport("op", OperationMove, false, 1, time.Now())
	all.Record(bad)
	assert.NoError(t, all.PartialFailure())
}

func TestIssuesAndFinish(t *testing.T) {
	start := time.Now()
	r := NewReport("op", OperationValidate, true, 1, start)
	r.AddIssue(Issue{FileID: "a", Category: IssueSizeMismatch})
	r.AddIssue(Issue{FileID: "b", Category: IssueSizeMismatch})
	r.AddIssue(Issue{FileID: "b", Category: IssueMissingPhysicalFile})
	assert.Equal(t, 3, r.IssueCount())
	assert.Len(t, r.Issues[IssueSizeMismatch], 2)

	r.Finish(start.Add(1500 * time.Millisecond))
	assert.Equal(t, int64(1500), r.ElapsedMs)
}

func TestDiffStates(t *testing.T) {
	before := &AssetState{Name: "a.png", Path: "images/a.png", Category: "img", Tags: []string{"x"}}
	after := &AssetState{Name: "a.png", Path: "videos/a_1.png", Category: "img", Tags: []string{"x", "y"}}

	changes := DiffStates(before, after)
	assert.Len(t, changes, 2)
	assert.Equal(t, "videos/a_1.png", changes["path"].New)
	assert.Nil(t, DiffStates(before, before))
	assert.True(t, OperationDelete.Destructive())
	assert.False(t, OperationOrganize.Destructive())
}
