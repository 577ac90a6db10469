package logger

import (
	"context"
	"sync"
	"testing"
	"time"

	common_models "go-lms/internal/common/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeSink struct {
	mu   sync.Mutex
	docs []common_models.Log
}

func (f *fakeSink) InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.docs = append(f.docs, document.(common_models.Log))
	return &mongo.InsertOneResult{}, nil
}

func TestDBCorePersistsOnlyWarnAndAbove(t *testing.T) {
	sink := &fakeSink{}
	writer := NewDBLogWriter(sink, "go-lms-test", 10)

	base, observed := observer.New(zapcore.DebugLevel)
	logger := zap.New(NewDBCore(base, writer, zapcore.WarnLevel)).With(zap.String("component", "executor"))

	logger.Info("batch started")
	logger.Warn("item failed", zap.String("file_id", "abc"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, writer.Close(ctx))

	assert.Equal(t, 2, observed.Len())
	require.Len(t, sink.docs, 1)
	assert.Equal(t, "item failed", sink.docs[0].Message)
	assert.Equal(t, "warn", sink.docs[0].Level)
	assert.Equal(t, "go-lms-test", sink.docs[0].AppId)
	assert.Equal(t, "executor", sink.docs[0].Fields["component"])
	assert.Equal(t, "abc", sink.docs[0].Fields["file_id"])
}

func TestAddLogDropsWhenFull(t *testing.T) {
	writer := &DBLogWriter{logChan: make(chan LogEntry, 1), done: make(chan struct{})}

	writer.AddLog(LogEntry{Message: "first"})
	writer.AddLog(LogEntry{Message: "second"})

	assert.Len(t, writer.logChan, 1)
}
