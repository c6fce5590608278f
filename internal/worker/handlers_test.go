package worker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/brandon0824/DavinciCode/internal/domain"
	"github.com/brandon0824/DavinciCode/internal/repository/mocks"
	"github.com/brandon0824/DavinciCode/internal/tasks"
	"github.com/brandon0824/DavinciCode/internal/worker"
)

func TestHistoryRecordHandler_ProcessTask(t *testing.T) {
	mockHistoryRepo := new(mocks.HistoryRepository)
	handler := worker.NewHistoryRecordHandler(mockHistoryRepo)
	ctx := context.Background()

	task, err := tasks.NewHistoryRecordTask("ABC123", "alice", domain.ActionJoin, nil)
	require.NoError(t, err)

	mockHistoryRepo.On("Append", ctx, mock.MatchedBy(func(entry *domain.HistoryEntry) bool {
		return entry.RoomID == "ABC123" &&
			entry.Username == "alice" &&
			entry.ActionType == domain.ActionJoin
	})).Return(nil).Once()

	require.NoError(t, handler.ProcessTask(ctx, task))
	mockHistoryRepo.AssertExpectations(t)
}

func TestHistoryRecordHandler_BadPayloadSkipsRetry(t *testing.T) {
	handler := worker.NewHistoryRecordHandler(new(mocks.HistoryRepository))

	task := asynq.NewTask(tasks.TypeHistoryRecord, []byte("not json"))
	err := handler.ProcessTask(context.Background(), task)

	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry), "坏载荷不应重试")
}

func TestHistoryRecordHandler_AppendFailureRetries(t *testing.T) {
	mockHistoryRepo := new(mocks.HistoryRepository)
	handler := worker.NewHistoryRecordHandler(mockHistoryRepo)
	ctx := context.Background()

	task, err := tasks.NewHistoryRecordTask("ABC123", "alice", domain.ActionLeave, nil)
	require.NoError(t, err)

	dbErr := errors.New("deadlock found")
	mockHistoryRepo.On("Append", ctx, mock.AnythingOfType("*domain.HistoryEntry")).Return(dbErr).Once()

	err = handler.ProcessTask(ctx, task)

	require.Error(t, err)
	assert.False(t, errors.Is(err, asynq.SkipRetry), "数据库错误应交给队列重试")
}

func TestRoomCleanupHandler_EvictsCaches(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockCache := new(mocks.RoomCache)
	handler := worker.NewRoomCleanupHandler(mockRoomRepo, mockCache, 24*time.Hour)
	ctx := context.Background()

	deleted := []string{"AAA111", "BBB222"}
	mockRoomRepo.On("DeleteExpiredWaiting", ctx, mock.AnythingOfType("time.Time")).Return(deleted, nil).Once()
	for _, id := range deleted {
		mockCache.On("DeleteRoom", ctx, id).Return(nil).Once()
		mockCache.On("DeleteMembers", ctx, id).Return(nil).Once()
	}

	task, err := tasks.NewRoomCleanupTask()
	require.NoError(t, err)
	require.NoError(t, handler.ProcessTask(ctx, task))
	mockRoomRepo.AssertExpectations(t)
	mockCache.AssertExpectations(t)
}

func TestRoomCleanupHandler_NothingToDelete(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockCache := new(mocks.RoomCache)
	handler := worker.NewRoomCleanupHandler(mockRoomRepo, mockCache, 24*time.Hour)
	ctx := context.Background()

	mockRoomRepo.On("DeleteExpiredWaiting", ctx, mock.AnythingOfType("time.Time")).Return(nil, nil).Once()

	task, _ := tasks.NewRoomCleanupTask()
	require.NoError(t, handler.ProcessTask(ctx, task))
	mockCache.AssertNotCalled(t, "DeleteRoom", mock.Anything, mock.Anything)
}

func TestRoomCleanupHandler_CacheFailureTolerated(t *testing.T) {
	mockRoomRepo := new(mocks.RoomRepository)
	mockCache := new(mocks.RoomCache)
	handler := worker.NewRoomCleanupHandler(mockRoomRepo, mockCache, 24*time.Hour)
	ctx := context.Background()

	mockRoomRepo.On("DeleteExpiredWaiting", ctx, mock.AnythingOfType("time.Time")).Return([]string{"AAA111"}, nil).Once()
	outage := errors.New("connection refused")
	mockCache.On("DeleteRoom", ctx, "AAA111").Return(outage).Once()
	mockCache.On("DeleteMembers", ctx, "AAA111").Return(outage).Once()

	task, _ := tasks.NewRoomCleanupTask()
	// 缓存条目自带 TTL，清理失败不算任务失败
	require.NoError(t, handler.ProcessTask(ctx, task))
}
