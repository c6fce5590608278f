package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/brandon0824/DavinciCode/internal/repository"
)

// RoomCleanupHandler 删除超过保留窗口仍处于等待状态的废弃房间。
type RoomCleanupHandler struct {
	roomRepo  repository.RoomRepository
	cache     repository.RoomCache
	retention time.Duration
}

func NewRoomCleanupHandler(roomRepo repository.RoomRepository, cache repository.RoomCache, retention time.Duration) *RoomCleanupHandler {
	return &RoomCleanupHandler{roomRepo: roomRepo, cache: cache, retention: retention}
}

// ProcessTask 实现 asynq.Handler 接口。
func (h *RoomCleanupHandler) ProcessTask(ctx context.Context, _ *asynq.Task) error {
	cutoff := time.Now().Add(-h.retention)
	deleted, err := h.roomRepo.DeleteExpiredWaiting(ctx, cutoff)
	if err != nil {
		logrus.WithError(err).Error("Failed to delete expired rooms")
		return err
	}
	if len(deleted) == 0 {
		return nil
	}

	// 缓存条目自带 TTL，这里的清理失败可以容忍。
	for _, roomID := range deleted {
		if err := h.cache.DeleteRoom(ctx, roomID); err != nil {
			logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to evict room cache")
		}
		if err := h.cache.DeleteMembers(ctx, roomID); err != nil {
			logrus.WithField("room_id", roomID).WithError(err).Warn("Failed to evict members cache")
		}
	}

	logrus.WithField("count", len(deleted)).Info("Expired waiting rooms cleaned up")
	return nil
}
