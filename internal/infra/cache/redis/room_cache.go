package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/brandon0824/DavinciCode/internal/domain"
	"github.com/brandon0824/DavinciCode/internal/repository"
)

// 各类条目的 TTL。TTL 只用来限制未正常 leave 的废弃房间在缓存里
// 的存留时间，不承担任何正确性职责；游戏状态放两小时，比一局
// 正常的时长更久。
const (
	roomTTL      = time.Hour
	membersTTL   = time.Hour
	gameStateTTL = 2 * time.Hour
	userRoomTTL  = time.Hour
)

// RedisRoomCache 是 RoomCache 接口的 Redis 实现。
// 值统一用 JSON 序列化；所有条目都可以从数据库重建。
type RedisRoomCache struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisRoomCache 创建 RedisRoomCache 实例。
func NewRedisRoomCache(client *redis.Client, keyPrefix string) *RedisRoomCache {
	if client == nil {
		panic("redis client cannot be nil for RedisRoomCache")
	}
	if keyPrefix == "" {
		keyPrefix = "dv:"
	}
	return &RedisRoomCache{client: client, keyPrefix: keyPrefix}
}

// --- Key 生成 ---

func (c *RedisRoomCache) roomKey(roomID string) string {
	return fmt.Sprintf("%sroom:%s", c.keyPrefix, roomID)
}

func (c *RedisRoomCache) membersKey(roomID string) string {
	return fmt.Sprintf("%sroom_players:%s", c.keyPrefix, roomID)
}

func (c *RedisRoomCache) gameStateKey(roomID string) string {
	return fmt.Sprintf("%sgame_state:%s", c.keyPrefix, roomID)
}

func (c *RedisRoomCache) userRoomKey(username string) string {
	return fmt.Sprintf("%suser_room:%s", c.keyPrefix, username)
}

// --- 房间记录 ---

// GetRoom 获取缓存的房间记录，miss 时返回 repository.ErrNotFound。
func (c *RedisRoomCache) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	data, err := c.client.Get(ctx, c.roomKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get room %q: %w", roomID, err)
	}
	var room domain.Room
	if err := json.Unmarshal(data, &room); err != nil {
		// 损坏的条目当作 miss，回源后会被覆盖。
		return nil, repository.ErrNotFound
	}
	return &room, nil
}

func (c *RedisRoomCache) SetRoom(ctx context.Context, room *domain.Room) error {
	data, err := json.Marshal(room)
	if err != nil {
		return fmt.Errorf("redis: marshal room %q: %w", room.ID, err)
	}
	if err := c.client.Set(ctx, c.roomKey(room.ID), data, roomTTL).Err(); err != nil {
		return fmt.Errorf("redis: set room %q: %w", room.ID, err)
	}
	return nil
}

func (c *RedisRoomCache) DeleteRoom(ctx context.Context, roomID string) error {
	if err := c.client.Del(ctx, c.roomKey(roomID)).Err(); err != nil {
		return fmt.Errorf("redis: delete room %q: %w", roomID, err)
	}
	return nil
}

// --- 活跃成员列表 ---

// GetMembers 获取缓存的活跃成员列表。空列表同样按 miss 处理：
// 空房间本就不该存在于数据库中，让调用方回源确认。
func (c *RedisRoomCache) GetMembers(ctx context.Context, roomID string) ([]domain.Member, error) {
	data, err := c.client.Get(ctx, c.membersKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get members of room %q: %w", roomID, err)
	}
	var members []domain.Member
	if err := json.Unmarshal(data, &members); err != nil {
		return nil, repository.ErrNotFound
	}
	if len(members) == 0 {
		return nil, repository.ErrNotFound
	}
	return members, nil
}

func (c *RedisRoomCache) SetMembers(ctx context.Context, roomID string, members []domain.Member) error {
	data, err := json.Marshal(members)
	if err != nil {
		return fmt.Errorf("redis: marshal members of room %q: %w", roomID, err)
	}
	if err := c.client.Set(ctx, c.membersKey(roomID), data, membersTTL).Err(); err != nil {
		return fmt.Errorf("redis: set members of room %q: %w", roomID, err)
	}
	return nil
}

func (c *RedisRoomCache) DeleteMembers(ctx context.Context, roomID string) error {
	if err := c.client.Del(ctx, c.membersKey(roomID)).Err(); err != nil {
		return fmt.Errorf("redis: delete members of room %q: %w", roomID, err)
	}
	return nil
}

// --- 玩法模块状态 ---

func (c *RedisRoomCache) GetGameState(ctx context.Context, roomID string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.gameStateKey(roomID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get game state of room %q: %w", roomID, err)
	}
	return data, nil
}

func (c *RedisRoomCache) SetGameState(ctx context.Context, roomID string, state []byte) error {
	if err := c.client.Set(ctx, c.gameStateKey(roomID), state, gameStateTTL).Err(); err != nil {
		return fmt.Errorf("redis: set game state of room %q: %w", roomID, err)
	}
	return nil
}

func (c *RedisRoomCache) DeleteGameState(ctx context.Context, roomID string) error {
	if err := c.client.Del(ctx, c.gameStateKey(roomID)).Err(); err != nil {
		return fmt.Errorf("redis: delete game state of room %q: %w", roomID, err)
	}
	return nil
}

// --- 用户所在房间反查 ---

func (c *RedisRoomCache) GetUserRoom(ctx context.Context, username string) (string, error) {
	roomID, err := c.client.Get(ctx, c.userRoomKey(username)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", repository.ErrNotFound
		}
		return "", fmt.Errorf("redis: get user room for %q: %w", username, err)
	}
	return roomID, nil
}

func (c *RedisRoomCache) SetUserRoom(ctx context.Context, username, roomID string) error {
	if err := c.client.Set(ctx, c.userRoomKey(username), roomID, userRoomTTL).Err(); err != nil {
		return fmt.Errorf("redis: set user room for %q: %w", username, err)
	}
	return nil
}

func (c *RedisRoomCache) DeleteUserRoom(ctx context.Context, username string) error {
	if err := c.client.Del(ctx, c.userRoomKey(username)).Err(); err != nil {
		return fmt.Errorf("redis: delete user room for %q: %w", username, err)
	}
	return nil
}
