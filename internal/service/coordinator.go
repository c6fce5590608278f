package service

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/brandon0824/DavinciCode/internal/domain"
	"github.com/brandon0824/DavinciCode/internal/repository"
	"github.com/brandon0824/DavinciCode/internal/tasks"
)

// Broadcaster 是协调器向实时订阅者推送事件的出口，由 Hub 实现。
// 推送是"尽力而为、绝不拖垮调用方"的：实现不允许阻塞或返回错误。
type Broadcaster interface {
	Broadcast(roomID, event string, payload interface{})
}

// GameModule 是回合制玩法模块的交接边界。房间进入 playing 后
// 协调器调用一次 Start，把最终成员列表交出去；玩法内部的执行
// 不在协调器的职责范围内。
type GameModule interface {
	Start(ctx context.Context, room *domain.Room, members []domain.Member) error
}

// TaskEnqueuer 抽象 asynq.Client 的入队能力，便于测试注入。
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// RoomService 是房间生命周期协调器：唯一允许修改房间/成员
// 持久化记录的组件。每次持久化变更提交后，它按固定顺序做两件
// 尽力而为的善后——刷新 Redis 缓存、通过 Hub 广播——两者的失败
// 都只记日志，不影响操作结果。协调器自身不持有房间级互斥锁，
// 并发一致性全部由存储层的事务和唯一约束仲裁。
type RoomService struct {
	roomRepo    repository.RoomRepository
	memberRepo  repository.MemberRepository
	cache       repository.RoomCache
	taskClient  TaskEnqueuer
	game        GameModule
	broadcaster Broadcaster
}

// NewRoomService 创建 RoomService 实例。
// taskClient 和 game 可以为 nil（历史归档/玩法交接退化为空操作），
// broadcaster 因为和 Hub 相互引用，由 SetBroadcaster 后置注入。
func NewRoomService(roomRepo repository.RoomRepository, memberRepo repository.MemberRepository, cache repository.RoomCache, taskClient TaskEnqueuer, game GameModule) *RoomService {
	if roomRepo == nil {
		panic("RoomRepository cannot be nil for RoomService")
	}
	if memberRepo == nil {
		panic("MemberRepository cannot be nil for RoomService")
	}
	if cache == nil {
		panic("RoomCache cannot be nil for RoomService")
	}
	return &RoomService{
		roomRepo:   roomRepo,
		memberRepo: memberRepo,
		cache:      cache,
		taskClient: taskClient,
		game:       game,
	}
}

// SetBroadcaster 注入实时推送出口。必须在服务开始处理请求前调用。
func (s *RoomService) SetBroadcaster(b Broadcaster) {
	s.broadcaster = b
}

// CreateRoom 创建一个新房间。customID 非空时使用用户自定义房间号，
// 已被占用则返回 ErrDuplicateRoom（读穿透检查，不只看缓存）；
// 否则随机生成 6 位房间号，碰撞时最多重试 10 次。
func (s *RoomService) CreateRoom(ctx context.Context, name string, maxPlayers int, customID string) (*domain.Room, error) {
	logCtx := logrus.WithField("room_name", name)

	if !domain.ValidRoomName(name) {
		return nil, fmt.Errorf("%w: room name must be 2-50 characters", ErrInvalidInput)
	}
	if maxPlayers == 0 {
		maxPlayers = domain.DefaultMaxPlayers
	}
	if !domain.ValidMaxPlayers(maxPlayers) {
		return nil, fmt.Errorf("%w: max players must be between 2 and 8", ErrInvalidInput)
	}

	var roomID string
	if customID = strings.TrimSpace(customID); customID != "" {
		if !domain.ValidCustomRoomID(customID) {
			return nil, fmt.Errorf("%w: custom room id must be 4-10 alphanumeric characters", ErrInvalidInput)
		}
		// 读穿透检查占用情况；真正的防线是下面 Create 的主键约束。
		if _, err := s.GetRoom(ctx, customID); err == nil {
			return nil, ErrDuplicateRoom
		} else if !errors.Is(err, ErrRoomNotFound) {
			return nil, err
		}
		roomID = customID
	} else {
		generated, err := s.generateUniqueRoomID(ctx)
		if err != nil {
			logCtx.WithError(err).Error("Failed to generate unique room id")
			return nil, err
		}
		roomID = generated
	}
	logCtx = logCtx.WithField("room_id", roomID)

	room := &domain.Room{
		ID:         roomID,
		Name:       name,
		Status:     domain.RoomStatusWaiting,
		MaxPlayers: maxPlayers,
	}
	if err := s.roomRepo.Create(ctx, room); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			// 并发创建同一个房间号，输家在这里收场。
			logCtx.Warn("Room id taken by a concurrent create")
			return nil, ErrDuplicateRoom
		}
		logCtx.WithError(err).Error("Failed to persist new room")
		return nil, ErrInternalServer
	}

	s.cacheDo(logCtx, "set room", func() error { return s.cache.SetRoom(ctx, room) })

	logCtx.Info("Room created")
	return room, nil
}

// GetRoom 读穿透获取房间：先查缓存，miss 或缓存故障时回源数据库
// 并顺手回填缓存。缓存错误只记日志，等同于 miss。
func (s *RoomService) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	logCtx := logrus.WithField("room_id", roomID)

	room, err := s.cache.GetRoom(ctx, roomID)
	if err == nil {
		return room, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logCtx.WithError(err).Warn("Room cache read failed, falling back to store")
	}

	room, err = s.roomRepo.FindByID(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to load room from store")
		return nil, ErrInternalServer
	}

	s.cacheDo(logCtx, "repopulate room", func() error { return s.cache.SetRoom(ctx, room) })
	return room, nil
}

// ListWaitingRooms 列出所有等待中的房间（大厅列表）。
// 无界列表不进缓存，直接查库。
func (s *RoomService) ListWaitingRooms(ctx context.Context) ([]domain.Room, error) {
	rooms, err := s.roomRepo.ListByStatus(ctx, domain.RoomStatusWaiting)
	if err != nil {
		logrus.WithError(err).Error("Failed to list waiting rooms")
		return nil, ErrInternalServer
	}
	return rooms, nil
}

// ListActiveMembers 读穿透获取房间的活跃成员列表。
func (s *RoomService) ListActiveMembers(ctx context.Context, roomID string) ([]domain.Member, error) {
	logCtx := logrus.WithField("room_id", roomID)

	members, err := s.cache.GetMembers(ctx, roomID)
	if err == nil {
		return members, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logCtx.WithError(err).Warn("Members cache read failed, falling back to store")
	}

	members, err = s.memberRepo.ListActive(ctx, roomID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to load members from store")
		return nil, ErrInternalServer
	}

	if len(members) > 0 {
		s.cacheDo(logCtx, "repopulate members", func() error { return s.cache.SetMembers(ctx, roomID, members) })
	}
	return members, nil
}

// JoinRoom 把用户加入房间。容量、重名、状态检查全部在存储层的
// 事务内完成；并发加入的输家由 (room_id, username) 唯一约束拦下，
// 表现为 ErrDuplicateUsername。提交后刷新缓存并广播成员变更。
func (s *RoomService) JoinRoom(ctx context.Context, roomID, username string) (*domain.Member, []domain.Member, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "username": username})

	if !domain.ValidUsername(username) {
		return nil, nil, fmt.Errorf("%w: username must be 2-20 characters", ErrInvalidInput)
	}

	// 同一用户名同一时刻只在一个房间：user_room 反查发现该用户
	// 还挂在别的房间时，先替他离开。反查只是缓存级的尽力而为，
	// miss 或缓存故障时照常加入。
	if prev, err := s.cache.GetUserRoom(ctx, username); err == nil && prev != "" && prev != roomID {
		if err := s.LeaveRoom(ctx, prev, username); err != nil {
			logCtx.WithField("previous_room", prev).WithError(err).Warn("Failed to leave previous room before join")
		}
	}

	member, members, err := s.memberRepo.Join(ctx, roomID, username)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRoomNotFound):
			return nil, nil, ErrRoomNotFound
		case errors.Is(err, repository.ErrRoomClosed):
			return nil, nil, ErrRoomNotJoinable
		case errors.Is(err, repository.ErrRoomFull):
			return nil, nil, ErrRoomFull
		case errors.Is(err, repository.ErrDuplicateEntry):
			return nil, nil, ErrDuplicateUsername
		}
		logCtx.WithError(err).Error("Failed to join room")
		return nil, nil, ErrInternalServer
	}

	s.cacheDo(logCtx, "set members", func() error { return s.cache.SetMembers(ctx, roomID, members) })
	s.cacheDo(logCtx, "set user room", func() error { return s.cache.SetUserRoom(ctx, username, roomID) })

	s.recordHistory(logCtx, roomID, username, domain.ActionJoin, nil)
	s.broadcast(roomID, "player_joined", map[string]interface{}{
		"member":  member,
		"members": members,
	})
	s.broadcastRoomUpdate(roomID, members)

	logCtx.Info("User joined room")
	return member, members, nil
}

// LeaveRoom 把用户移出房间。对不在房间内的用户是幂等空操作——
// 重复的断线信号、leave 与 join 的竞争都落在这条安全路径上。
// 离开者是房主时在同一个事务内移交房主；房间清空时删除房间。
func (s *RoomService) LeaveRoom(ctx context.Context, roomID, username string) error {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "username": username})

	result, err := s.memberRepo.Leave(ctx, roomID, username)
	if err != nil {
		logCtx.WithError(err).Error("Failed to leave room")
		return ErrInternalServer
	}
	if !result.Left {
		logCtx.Debug("Leave was a no-op, member not in room")
		return nil
	}

	s.cacheDo(logCtx, "delete user room", func() error { return s.cache.DeleteUserRoom(ctx, username) })
	if result.RoomDeleted {
		s.cacheDo(logCtx, "delete room", func() error { return s.cache.DeleteRoom(ctx, roomID) })
		s.cacheDo(logCtx, "delete members", func() error { return s.cache.DeleteMembers(ctx, roomID) })
		s.cacheDo(logCtx, "delete game state", func() error { return s.cache.DeleteGameState(ctx, roomID) })
		logCtx.Info("Last member left, room deleted")
	} else {
		s.cacheDo(logCtx, "set members", func() error { return s.cache.SetMembers(ctx, roomID, result.Members) })
		if result.NewHost != "" {
			logCtx.WithField("new_host", result.NewHost).Info("Host transferred")
		}
	}

	s.recordHistory(logCtx, roomID, username, domain.ActionLeave, nil)
	s.broadcast(roomID, "player_left", map[string]interface{}{
		"username": username,
		"members":  result.Members,
	})
	s.broadcastRoomUpdate(roomID, result.Members)

	logCtx.Info("User left room")
	return nil
}

// StartGame 由房主发起开局。校验（房主身份、人数、状态）在存储层
// 事务内完成；成功后把房间置为 playing，向玩法模块做一次性的
// fire-and-forget 交接，并广播 game_started。
func (s *RoomService) StartGame(ctx context.Context, roomID, username string) (*domain.Room, []domain.Member, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "username": username})

	room, members, err := s.roomRepo.MarkPlaying(ctx, roomID, username)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrRoomNotFound):
			return nil, nil, ErrRoomNotFound
		case errors.Is(err, repository.ErrRoomClosed):
			return nil, nil, ErrRoomNotJoinable
		case errors.Is(err, repository.ErrNotHost):
			return nil, nil, ErrNotHost
		case errors.Is(err, repository.ErrTooFewMembers):
			return nil, nil, ErrInsufficientPlayers
		}
		logCtx.WithError(err).Error("Failed to start game")
		return nil, nil, ErrInternalServer
	}

	s.cacheDo(logCtx, "set room", func() error { return s.cache.SetRoom(ctx, room) })
	s.cacheDo(logCtx, "set members", func() error { return s.cache.SetMembers(ctx, roomID, members) })

	if s.game != nil {
		// 交接是 fire-and-forget 的：玩法模块的初始化不拖慢开局，
		// 失败只记日志。用后台 context，不随请求取消。
		go func(room domain.Room, members []domain.Member) {
			if err := s.game.Start(context.Background(), &room, members); err != nil {
				logCtx.WithError(err).Error("Game module handoff failed")
			}
		}(*room, members)
	}

	s.recordHistory(logCtx, roomID, username, domain.ActionStart, nil)
	s.broadcast(roomID, "game_started", map[string]interface{}{
		"roomId":  roomID,
		"members": members,
	})

	logCtx.Info("Game started")
	return room, members, nil
}

// EndGame 结束对局：无条件把房间置为 finished（只要求房间存在），
// 由玩法模块在胜负已定时调用。winner 为空表示没有赢家（比如流局）。
func (s *RoomService) EndGame(ctx context.Context, roomID, winner string) (*domain.Room, error) {
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "winner": winner})

	room, err := s.roomRepo.MarkFinished(ctx, roomID)
	if err != nil {
		if errors.Is(err, repository.ErrRoomNotFound) {
			return nil, ErrRoomNotFound
		}
		logCtx.WithError(err).Error("Failed to end game")
		return nil, ErrInternalServer
	}

	s.cacheDo(logCtx, "set room", func() error { return s.cache.SetRoom(ctx, room) })

	var data json.RawMessage
	if winner != "" {
		data, _ = json.Marshal(map[string]string{"winner": winner})
	}
	s.recordHistory(logCtx, roomID, winner, domain.ActionEnd, data)
	s.broadcast(roomID, "game_end", map[string]interface{}{
		"roomId": roomID,
		"winner": winner,
	})

	logCtx.Info("Game ended")
	return room, nil
}

// GameState 返回玩法模块写入的不透明对局状态。状态只活在缓存里，
// 不落库；房间存在但尚未开局（或状态已过期）时返回 nil。
func (s *RoomService) GameState(ctx context.Context, roomID string) (json.RawMessage, error) {
	logCtx := logrus.WithField("room_id", roomID)

	state, err := s.cache.GetGameState(ctx, roomID)
	if err == nil {
		return state, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		logCtx.WithError(err).Warn("Game state cache read failed")
	}

	// miss 时区分"房间不存在"和"尚无状态"。
	if _, err := s.GetRoom(ctx, roomID); err != nil {
		return nil, err
	}
	return nil, nil
}

// RecordGameAction 归档一条玩法动作。协调器不解释动作内容，
// 只在 payload 里带了可识别的动作类型时写入审计历史。
func (s *RoomService) RecordGameAction(ctx context.Context, roomID, username string, raw json.RawMessage) {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(raw, &head); err != nil || !domain.IsGameAction(head.Type) {
		return
	}
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "username": username})
	s.recordHistory(logCtx, roomID, username, head.Type, raw)
}

// --- 私有辅助函数 ---

// generateUniqueRoomID 生成唯一的 6 位房间号，碰撞时有限重试。
func (s *RoomService) generateUniqueRoomID(ctx context.Context) (string, error) {
	const letters = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	const codeLength = 6
	const maxAttempts = 10

	b := make([]byte, codeLength)
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if _, err := rand.Read(b); err != nil {
			return "", fmt.Errorf("generate random bytes: %w", err)
		}
		for i := range b {
			b[i] = letters[int(b[i])%len(letters)]
		}
		id := string(b)

		exists, err := s.roomRepo.Exists(ctx, id)
		if err != nil {
			logrus.WithError(err).WithField("room_id", id).Error("Database error checking room id uniqueness")
			return "", ErrInternalServer
		}
		if !exists {
			return id, nil
		}
		logrus.WithField("room_id", id).Warnf("Generated room id already exists, retrying (attempt %d)", attempt+1)
	}
	return "", ErrIDGenerationExhausted
}

// cacheDo 执行一次缓存操作。缓存是纯优化层：失败只记日志，
// 绝不向协调器的调用方传播，下一次读穿透会修复不一致。
func (s *RoomService) cacheDo(logCtx *logrus.Entry, op string, fn func() error) {
	if err := fn(); err != nil {
		logCtx.WithError(err).Warnf("Cache %s failed, continuing", op)
	}
}

// recordHistory 把一条审计记录交给任务队列异步入库。
// 入队失败只记日志——历史归档不在任何操作的关键路径上。
func (s *RoomService) recordHistory(logCtx *logrus.Entry, roomID, username, actionType string, data json.RawMessage) {
	if s.taskClient == nil {
		return
	}
	task, err := tasks.NewHistoryRecordTask(roomID, username, actionType, data)
	if err != nil {
		logCtx.WithError(err).Warn("Failed to build history task")
		return
	}
	if _, err := s.taskClient.Enqueue(task, asynq.Queue("low")); err != nil {
		logCtx.WithError(err).Warn("Failed to enqueue history task")
	}
}

// broadcast 尽力而为地向房间的订阅者推送一个事件。
func (s *RoomService) broadcast(roomID, event string, payload interface{}) {
	if s.broadcaster == nil {
		return
	}
	s.broadcaster.Broadcast(roomID, event, payload)
}

func (s *RoomService) broadcastRoomUpdate(roomID string, members []domain.Member) {
	s.broadcast(roomID, "room_update", map[string]interface{}{
		"roomId":  roomID,
		"members": members,
		"count":   len(members),
	})
}
