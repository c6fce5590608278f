package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/brandon0824/DavinciCode/internal/domain"
	"github.com/brandon0824/DavinciCode/internal/repository"
	"github.com/brandon0824/DavinciCode/internal/tasks"
)

// HistoryRecordHandler 把审计记录任务落库。
type HistoryRecordHandler struct {
	historyRepo repository.HistoryRepository
}

func NewHistoryRecordHandler(historyRepo repository.HistoryRepository) *HistoryRecordHandler {
	return &HistoryRecordHandler{historyRepo: historyRepo}
}

// ProcessTask 实现 asynq.Handler 接口。
func (h *HistoryRecordHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload tasks.HistoryRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logrus.WithError(err).Error("Failed to unmarshal history payload")
		return fmt.Errorf("unmarshal history payload: %v: %w", err, asynq.SkipRetry)
	}

	entry := &domain.HistoryEntry{
		RoomID:     payload.RoomID,
		Username:   payload.Username,
		ActionType: payload.ActionType,
		ActionData: payload.ActionData,
	}
	if err := h.historyRepo.Append(ctx, entry); err != nil {
		logrus.WithFields(logrus.Fields{
			"room_id":     payload.RoomID,
			"action_type": payload.ActionType,
		}).WithError(err).Error("Failed to append history entry")
		return fmt.Errorf("append history entry: %w", err)
	}
	return nil
}
