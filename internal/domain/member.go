package domain

import "time"

// Member 表示玩家与房间的关联关系 (room_players 表)。
// 用户名只要求在房间内唯一，不要求全局唯一；(room_id, username)
// 上的唯一索引同时是并发加入时的数据库级防护。
// 离开房间只写 left_at（软删除），行本身随房间级联删除。
type Member struct {
	ID            uint       `gorm:"primaryKey" json:"id"`
	RoomID        string     `gorm:"size:10;not null;uniqueIndex:uniq_room_username;index:idx_room_id" json:"roomId"`
	Username      string     `gorm:"size:50;not null;uniqueIndex:uniq_room_username" json:"username"`
	JoinedAt      time.Time  `gorm:"autoCreateTime" json:"joinedAt"`
	LeftAt        *time.Time `json:"leftAt,omitempty"`
	IsHost        bool       `gorm:"default:false" json:"isHost"`
	IsCurrentTurn bool       `gorm:"default:false" json:"isCurrentTurn"`
}

// TableName 使用原有的表名，避免 GORM 默认复数化成 members。
func (Member) TableName() string {
	return "room_players"
}

// IsActive 报告该成员是否仍在房间内（尚未离开）。
func (m *Member) IsActive() bool {
	return m.LeftAt == nil
}
