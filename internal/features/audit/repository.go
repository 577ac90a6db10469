package audit

import (
	"context"

	common_models "go-lms/internal/common/models"
	"go-lms/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type AuditRepository interface {
	Create(ctx context.Context, log common_models.AuditLog) error
	List(ctx context.Context, query Query, limit, offset int64) ([]common_models.AuditLog, error)
}

// Query narrows the audit listing. Empty fields are ignored.
type Query struct {
	Module      string
	RecordID    string
	Action      string
	OperationID string
	ActorID     string
}

func (q Query) toBSON() bson.M {
	filter := bson.M{}
	if q.Module != "" {
		filter["module"] = q.Module
	}
	if q.RecordID != "" {
		filter["record_id"] = q.RecordID
	}
	if q.Action != "" {
		filter["action"] = q.Action
	}
	if q.OperationID != "" {
		filter["operation_id"] = q.OperationID
	}
	if q.ActorID != "" {
		filter["actor_id"] = q.ActorID
	}
	return filter
}

type AuditRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewAuditRepository(mongodb *database.MongodbDB) AuditRepository {
	return &AuditRepositoryImpl{
		Collection: mongodb.DB.Collection("audit_logs"),
	}
}

func (r *AuditRepositoryImpl) Create(ctx context.Context, log common_models.AuditLog) error {
	_, err := r.Collection.InsertOne(ctx, log)
	return err
}

func (r *AuditRepositoryImpl) List(ctx context.Context, query Query, limit, offset int64) ([]common_models.AuditLog, error) {
	opts := options.Find().SetLimit(limit).SetSkip(offset).SetSort(bson.M{"timestamp": -1})

	cursor, err := r.Collection.Find(ctx, query.toBSON(), opts)
	if err != nil {
		return nil, err
	}
	var logs []common_models.AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}
	return logs, nil
}
