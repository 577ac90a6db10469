package audit

import (
	"context"
	"sync"

	common_models "go-lms/internal/common/models"
)

// MemoryRepository keeps audit lines in process. Used by tests and the CLI dry runs.
type MemoryRepository struct {
	mu   sync.Mutex
	logs []common_models.AuditLog
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{}
}

func (r *MemoryRepository) Create(ctx context.Context, log common_models.AuditLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.logs = append(r.logs, log)
	return nil
}

func (r *MemoryRepository) List(ctx context.Context, query Query, limit, offset int64) ([]common_models.AuditLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []common_models.AuditLog
	for i := len(r.logs) - 1; i >= 0; i-- {
		l := r.logs[i]
		if query.Module != "" && l.Module != query.Module ||
			query.RecordID != "" && l.RecordID != query.RecordID ||
			query.Action != "" && string(l.Action) != query.Action ||
			query.OperationID != "" && l.OperationID != query.OperationID ||
			query.ActorID != "" && l.ActorID != query.ActorID {
			continue
		}
		out = append(out, l)
	}
	if offset >= int64(len(out)) {
		return nil, nil
	}
	out = out[offset:]
	if limit > 0 && int64(len(out)) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Logs returns a copy of every stored line in insertion order.
func (r *MemoryRepository) Logs() []common_models.AuditLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]common_models.AuditLog(nil), r.logs...)
}
