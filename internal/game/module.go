// Package game 是回合制玩法模块的占位实现。
// 协调器只负责把成员列表交接过来；这里初始化一份不透明的
// 对局状态写进缓存，供后续玩法迭代使用，不包含任何牌局规则。
package game

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/brandon0824/DavinciCode/internal/domain"
	"github.com/brandon0824/DavinciCode/internal/repository"
)

// Module 实现 service.GameModule。
type Module struct {
	cache repository.RoomCache
}

// New 创建玩法模块实例。
func New(cache repository.RoomCache) *Module {
	if cache == nil {
		panic("RoomCache cannot be nil for game.Module")
	}
	return &Module{cache: cache}
}

// initialState 是交接时写入 game_state:{id} 的初始状态。
// 对协调器来说这是不透明字节，结构只在玩法模块内部演进。
type initialState struct {
	RoomID    string    `json:"roomId"`
	TurnOrder []string  `json:"turnOrder"`
	Turn      int       `json:"turn"`
	StartedAt time.Time `json:"startedAt"`
}

// Start 接收最终成员列表并初始化对局状态。
// 回合顺序就是成员的加入顺序；先手标记在成员列表上。
func (m *Module) Start(ctx context.Context, room *domain.Room, members []domain.Member) error {
	order := make([]string, 0, len(members))
	for i := range members {
		order = append(order, members[i].Username)
	}

	state, err := json.Marshal(initialState{
		RoomID:    room.ID,
		TurnOrder: order,
		Turn:      0,
		StartedAt: time.Now(),
	})
	if err != nil {
		return fmt.Errorf("game: marshal initial state: %w", err)
	}
	if err := m.cache.SetGameState(ctx, room.ID, state); err != nil {
		return fmt.Errorf("game: seed state for room %q: %w", room.ID, err)
	}
	return nil
}
