package repository

import (
	"context"

	"github.com/brandon0824/DavinciCode/internal/domain"
)

// LeaveResult 描述一次离开操作在持久层产生的结果。
type LeaveResult struct {
	// Left 为 false 表示该用户本就不是房间的活跃成员，
	// 整个操作是幂等空操作（重复的断线信号会走到这里）。
	Left bool
	// RoomDeleted 表示这是最后一名活跃成员，房间已被删除。
	RoomDeleted bool
	// NewHost 在发生房主移交时为新房主用户名，否则为空。
	NewHost string
	// Members 是离开后剩余的活跃成员列表（房间已删除时为空）。
	Members []domain.Member
}

// MemberRepository 定义了房间成员记录的持久化操作。
type MemberRepository interface {
	// ListActive 列出房间的活跃成员，按加入时间、行 ID 升序。
	ListActive(ctx context.Context, roomID string) ([]domain.Member, error)

	// Join 在单个事务内完成加入校验并插入成员行：锁定房间行，
	// 依次检查房间存在（ErrRoomNotFound）、状态为 waiting
	// （ErrRoomClosed）、容量未满（ErrRoomFull）、用户名在活跃
	// 成员中未被占用（ErrDuplicateEntry）。第一名活跃成员成为
	// 房主。曾经离开的成员重新加入时复活原有的软删除行。
	// 绕过行锁的并发写入者由 (room_id, username) 唯一约束拦下，
	// 同样表现为 ErrDuplicateEntry。
	// 返回新成员和加入后的活跃成员列表。
	Join(ctx context.Context, roomID, username string) (*domain.Member, []domain.Member, error)

	// Leave 在单个事务内写入成员的 left_at。若离开者是房主且
	// 还有其他活跃成员，按最早加入时间（join 时间相同时取最小
	// 行 ID）移交房主；若没有活跃成员了，删除整个房间。
	// 对不存在的成员是幂等空操作，不返回错误。
	Leave(ctx context.Context, roomID, username string) (*LeaveResult, error)
}
