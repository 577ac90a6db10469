package audit

import (
	"context"
	"testing"

	common_models "go-lms/internal/common/models"
	"go-lms/internal/dispatch"
	"go-lms/pkg/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLogChangeCapturesActorAndOperation(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewAuditService(repo, nil, zap.NewNop())

	ctx := context.WithValue(context.Background(), utils.UserClaimsKey, &utils.UserClaims{UserID: "admin-1"})
	ctx = context.WithValue(ctx, common_models.OperationIDKey, "op-7")

	err := svc.LogChange(ctx, common_models.AuditActionMove, "files", "abc", map[string]common_models.Change{
		"path": {Old: "images/a.png", New: "videos/a.png"},
	})
	require.NoError(t, err)

	logs := repo.Logs()
	require.Len(t, logs, 1)
	assert.Equal(t, "admin-1", logs[0].ActorID)
	assert.Equal(t, "op-7", logs[0].OperationID)
	assert.Equal(t, "videos/a.png", logs[0].Changes["path"].New)
}

func TestLogChangeAsyncUsesQueue(t *testing.T) {
	repo := NewMemoryRepository()
	queue := dispatch.NewQueue(1, 10, zap.NewNop())
	svc := NewAuditService(repo, queue, zap.NewNop())

	svc.LogChangeAsync(context.Background(), common_models.AuditActionDelete, "files", "x1", nil)
	svc.LogChangeAsync(context.Background(), common_models.AuditActionDelete, "files", "x2", nil)
	require.NoError(t, queue.Stop(context.Background()))

	logs := repo.Logs()
	require.Len(t, logs, 2)
	assert.Equal(t, "system", logs[0].ActorID)
}

func TestListLogsFiltersAndPages(t *testing.T) {
	repo := NewMemoryRepository()
	svc := NewAuditService(repo, nil, zap.NewNop())
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		require.NoError(t, svc.LogChange(ctx, common_models.AuditActionOrganize, "files", id, nil))
	}
	require.NoError(t, svc.LogChange(ctx, common_models.AuditActionDelete, "files", "d", nil))

	logs, err := svc.ListLogs(ctx, Query{Action: string(common_models.AuditActionOrganize)}, 1, 2)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "c", logs[0].RecordID)

	logs, err = svc.ListLogs(ctx, Query{Action: string(common_models.AuditActionOrganize)}, 2, 2)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "a", logs[0].RecordID)
}
