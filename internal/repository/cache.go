package repository

import (
	"context"

	"github.com/brandon0824/DavinciCode/internal/domain"
)

// RoomCache 是挥发性缓存镜像的契约，通常由 Redis 实现。
// 缓存永远不是权威数据：所有条目都带 TTL，任何 miss、过期或
// 失败都必须能通过回源数据库透明恢复。调用方把 Get 的错误
// 一律当作 miss 处理，把写入的错误记日志后吞掉，绝不向
// 协调器的调用者传播。
type RoomCache interface {
	// === 房间记录 (room:{id}) ===

	// GetRoom 获取缓存的房间记录，miss 时返回 ErrNotFound。
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	SetRoom(ctx context.Context, room *domain.Room) error
	DeleteRoom(ctx context.Context, roomID string) error

	// === 活跃成员列表 (room_players:{id}) ===

	// GetMembers 获取缓存的活跃成员列表，miss 时返回 ErrNotFound。
	GetMembers(ctx context.Context, roomID string) ([]domain.Member, error)
	SetMembers(ctx context.Context, roomID string, members []domain.Member) error
	DeleteMembers(ctx context.Context, roomID string) error

	// === 玩法模块的不透明状态 (game_state:{id}) ===

	// 协调器只负责存取字节，不解释内容。
	GetGameState(ctx context.Context, roomID string) ([]byte, error)
	SetGameState(ctx context.Context, roomID string, state []byte) error
	DeleteGameState(ctx context.Context, roomID string) error

	// === 用户当前所在房间的反查 (user_room:{username}) ===

	GetUserRoom(ctx context.Context, username string) (string, error)
	SetUserRoom(ctx context.Context, username, roomID string) error
	DeleteUserRoom(ctx context.Context, username string) error
}
