package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type ContextKey string

const (
	OperationIDKey ContextKey = "operation_id"
)

type AuditAction string

const (
	AuditActionUpload   AuditAction = "FILE_UPLOAD"
	AuditActionDelete   AuditAction = "FILE_DELETE"
	AuditActionMove     AuditAction = "FILE_MOVE"
	AuditActionOrganize AuditAction = "FILE_ORGANIZE"
	AuditActionRepair   AuditAction = "FILE_REPAIR"
	AuditActionUnlink   AuditAction = "REFERENCE_CLEAN"
)

type Change struct {
	Old interface{} `bson:"old" json:"old"`
	New interface{} `bson:"new" json:"new"`
}

type AuditLog struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Action      AuditAction        `bson:"action" json:"action"`
	Module      string             `bson:"module" json:"module"`       // Collection the record lives in
	RecordID    string             `bson:"record_id" json:"record_id"` // The ID of the record being modified
	ActorID     string             `bson:"actor_id" json:"actor_id"`   // User ID who performed the action
	OperationID string             `bson:"operation_id,omitempty" json:"operation_id,omitempty"`
	Changes     map[string]Change  `bson:"changes,omitempty" json:"changes,omitempty"` // field -> {old, new}
	Timestamp   time.Time          `bson:"timestamp" json:"timestamp"`
}

type Log struct {
	Message      string            `bson:"message" json:"message"`
	Level        string            `bson:"level" json:"level"`
	Caller       string            `bson:"caller,omitempty" json:"caller,omitempty"`
	AppId        string            `bson:"app_id" json:"app_id"`
	Fields       map[string]string `bson:"fields,omitempty" json:"fields,omitempty"`
	CreatedOnUtc time.Time         `bson:"created_on_utc" json:"created_on_utc"`
}
