package audit

import (
	"context"
	"time"

	common_models "go-lms/internal/common/models"
	"go-lms/internal/dispatch"
	"go-lms/pkg/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

type AuditService interface {
	LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error
	// LogChangeAsync records the line on the background queue. Actor and operation id are taken from ctx before queueing.
	LogChangeAsync(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change)
	ListLogs(ctx context.Context, query Query, page, limit int64) ([]common_models.AuditLog, error)
}

type AuditServiceImpl struct {
	Repo   AuditRepository
	Queue  *dispatch.Queue
	logger *zap.Logger
	now    func() time.Time
}

func NewAuditService(repo AuditRepository, queue *dispatch.Queue, logger *zap.Logger) AuditService {
	return &AuditServiceImpl{
		Repo:   repo,
		Queue:  queue,
		logger: logger.With(zap.String("component", "audit")),
		now:    time.Now,
	}
}

func (s *AuditServiceImpl) entry(ctx context.Context, action common_models.AuditAction, module, recordID string, changes map[string]common_models.Change) common_models.AuditLog {
	opID, _ := ctx.Value(common_models.OperationIDKey).(string)
	return common_models.AuditLog{
		ID:          primitive.NewObjectID(),
		Action:      action,
		Module:      module,
		RecordID:    recordID,
		ActorID:     utils.ActorFromContext(ctx),
		OperationID: opID,
		Changes:     changes,
		Timestamp:   s.now().UTC(),
	}
}

func (s *AuditServiceImpl) LogChange(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) error {
	return s.Repo.Create(ctx, s.entry(ctx, action, module, recordID, changes))
}

func (s *AuditServiceImpl) LogChangeAsync(ctx context.Context, action common_models.AuditAction, module string, recordID string, changes map[string]common_models.Change) {
	log := s.entry(ctx, action, module, recordID, changes)
	if s.Queue == nil {
		if err := s.Repo.Create(ctx, log); err != nil {
			s.logger.Warn("Failed to write audit log", zap.String("record_id", recordID), zap.Error(err))
		}
		return
	}
	s.Queue.Submit("audit:"+string(action), func(ctx context.Context) error {
		return s.Repo.Create(ctx, log)
	})
}

func (s *AuditServiceImpl) ListLogs(ctx context.Context, query Query, page, limit int64) ([]common_models.AuditLog, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	offset := (page - 1) * limit
	return s.Repo.List(ctx, query, limit, offset)
}
