package domain

import "time"

// 房间状态。状态只能单向流转: waiting -> playing -> finished，
// 不存在回退；房间在最后一名活跃成员离开时被直接删除。
const (
	RoomStatusWaiting  = "waiting"
	RoomStatusPlaying  = "playing"
	RoomStatusFinished = "finished"
)

// DefaultMaxPlayers 是创建房间时未指定人数上限的默认值。
const DefaultMaxPlayers = 4

// Room 表示一个游戏房间（大厅）。ID 是短的字母数字房间号，
// 由用户自定义或系统随机生成，作为主键保证全局唯一。
type Room struct {
	ID         string     `gorm:"primaryKey;size:10" json:"id"`
	Name       string     `gorm:"size:100;not null" json:"name"`
	Status     string     `gorm:"type:enum('waiting','playing','finished');default:'waiting';index:idx_status" json:"status"`
	MaxPlayers int        `gorm:"not null;default:4" json:"maxPlayers"`
	CreatedAt  time.Time  `gorm:"autoCreateTime;index:idx_created_at" json:"createdAt"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	EndedAt    *time.Time `json:"endedAt,omitempty"`
}

// IsJoinable 报告房间当前是否接受新成员加入。
func (r *Room) IsJoinable() bool {
	return r.Status == RoomStatusWaiting
}
