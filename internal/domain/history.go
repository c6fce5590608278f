package domain

import (
	"encoding/json"
	"time"
)

// 历史动作类型，对应 game_history.action_type 枚举。
// 前四种由协调器在成员/房间生命周期变化时写入，
// 后四种是玩法模块产生的对局动作，协调器只负责透传和归档。
const (
	ActionJoin     = "join"
	ActionLeave    = "leave"
	ActionStart    = "start"
	ActionEnd      = "end"
	ActionQuestion = "question"
	ActionAnswer   = "answer"
	ActionGuess    = "guess"
	ActionReveal   = "reveal"
)

// HistoryEntry 是只追加的审计记录 (game_history 表)。
// 协调器只写不读：任何加入/开局路径都不依赖这张表。
type HistoryEntry struct {
	ID         uint            `gorm:"primaryKey" json:"id"`
	RoomID     string          `gorm:"size:10;not null;index:idx_room_id" json:"roomId"`
	Username   string          `gorm:"size:50;not null" json:"username"`
	ActionType string          `gorm:"type:enum('join','leave','start','end','question','answer','guess','reveal');not null" json:"actionType"`
	ActionData json.RawMessage `gorm:"type:json" json:"actionData,omitempty"`
	Timestamp  time.Time       `gorm:"autoCreateTime;index:idx_timestamp" json:"timestamp"`
}

// TableName 使用原有的表名。
func (HistoryEntry) TableName() string {
	return "game_history"
}

// IsGameAction 报告一个动作类型是否属于玩法模块的对局动作。
func IsGameAction(actionType string) bool {
	switch actionType {
	case ActionQuestion, ActionAnswer, ActionGuess, ActionReveal:
		return true
	}
	return false
}
