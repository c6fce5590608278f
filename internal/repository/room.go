package repository

import (
	"context"
	"time"

	"github.com/brandon0824/DavinciCode/internal/domain"
)

// RoomRepository 定义了房间记录的持久化操作。
// 数据库是房间与成员数据的唯一事实来源；涉及多行的状态变更
// 必须在单个数据库事务内提交，调用方不持有任何房间级互斥锁。
type RoomRepository interface {
	// FindByID 根据房间号查找房间。房间不存在时返回 ErrRoomNotFound。
	FindByID(ctx context.Context, id string) (*domain.Room, error)

	// Exists 检查房间号是否已被占用。
	Exists(ctx context.Context, id string) (bool, error)

	// ListByStatus 按状态列出房间，按创建时间倒序。
	ListByStatus(ctx context.Context, status string) ([]domain.Room, error)

	// Create 插入一个新房间。房间号冲突时返回 ErrDuplicateEntry，
	// 主键约束同时兜住并发创建同一个自定义房间号的竞争。
	Create(ctx context.Context, room *domain.Room) error

	// MarkPlaying 在单个事务内校验并把房间置为 playing：
	// 锁定房间行，要求状态为 waiting（否则 ErrRoomClosed）、
	// requester 是当前房主（否则 ErrNotHost）、活跃成员 >= 2
	// （否则 ErrTooFewMembers），然后写入 started_at 并把先手
	// 标记给房主。返回更新后的房间和活跃成员列表。
	MarkPlaying(ctx context.Context, roomID, requester string) (*domain.Room, []domain.Member, error)

	// MarkFinished 无条件把房间置为 finished 并写入 ended_at，
	// 只要求房间存在。返回更新后的房间。
	MarkFinished(ctx context.Context, roomID string) (*domain.Room, error)

	// DeleteExpiredWaiting 删除创建时间早于 cutoff 且仍处于
	// waiting 状态的房间（成员行级联删除），返回被删除的房间号
	// 供调用方清理缓存。
	DeleteExpiredWaiting(ctx context.Context, cutoff time.Time) ([]string, error)
}
