package tasks

import (
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"
)

// 任务类型。
const (
	// TypeHistoryRecord 把一条审计记录异步写入 game_history 表。
	TypeHistoryRecord = "history:record"
	// TypeRoomCleanup 清理超过保留窗口仍在等待中的废弃房间，
	// 由 scheduler 周期性投递。
	TypeRoomCleanup = "room:cleanup"
)

// HistoryRecordPayload 是 TypeHistoryRecord 任务的载荷。
type HistoryRecordPayload struct {
	RoomID     string          `json:"room_id"`
	Username   string          `json:"username"`
	ActionType string          `json:"action_type"`
	ActionData json.RawMessage `json:"action_data,omitempty"`
}

// NewHistoryRecordTask 创建一个审计记录任务。
func NewHistoryRecordTask(roomID, username, actionType string, data json.RawMessage) (*asynq.Task, error) {
	payload, err := json.Marshal(HistoryRecordPayload{
		RoomID:     roomID,
		Username:   username,
		ActionType: actionType,
		ActionData: data,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal history payload: %w", err)
	}
	return asynq.NewTask(TypeHistoryRecord, payload), nil
}

// NewRoomCleanupTask 创建一个过期房间清理任务。
func NewRoomCleanupTask() (*asynq.Task, error) {
	return asynq.NewTask(TypeRoomCleanup, nil), nil
}
