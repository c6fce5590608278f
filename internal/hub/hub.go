package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/brandon0824/DavinciCode/internal/domain"
	"github.com/brandon0824/DavinciCode/internal/service"
)

// WebSocket 读写参数。
const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4096
)

// Coordinator 是 Hub 对房间生命周期协调器的依赖面。
// *service.RoomService 实现它；测试里用假实现替换。
type Coordinator interface {
	JoinRoom(ctx context.Context, roomID, username string) (*domain.Member, []domain.Member, error)
	LeaveRoom(ctx context.Context, roomID, username string) error
	StartGame(ctx context.Context, roomID, username string) (*domain.Room, []domain.Member, error)
	RecordGameAction(ctx context.Context, roomID, username string, raw json.RawMessage)
}

type messageKind int

const (
	msgRegister messageKind = iota
	msgUnregister
	msgFrame
)

type message struct {
	kind   messageKind
	client *Client
	raw    []byte
}

// envelope 是 WebSocket 上的统一事件信封，入站出站共用。
type envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Hub 维护每个房间的在线订阅者集合并负责事件扇出。
// 订阅状态只存在于进程内存：进程重启后从零重建，"谁真的在
// 房间里"的恢复来源永远是数据库里的成员行。
// 一个订阅者同一时刻至多属于一个房间。
type Hub struct {
	messageChan chan message

	// rooms: 房间号 -> 订阅者集合; clientRooms: 反向索引。
	rooms       map[string]map[*Client]bool
	clientRooms map[*Client]string
	mu          sync.RWMutex

	coordinator Coordinator
}

// NewHub 创建并返回一个新的 Hub 实例。
func NewHub(coordinator Coordinator) *Hub {
	if coordinator == nil {
		panic("Coordinator cannot be nil for Hub")
	}
	return &Hub{
		messageChan: make(chan message, 512),
		rooms:       make(map[string]map[*Client]bool),
		clientRooms: make(map[*Client]string),
		coordinator: coordinator,
	}
}

// Run 启动 Hub 的主事件循环，应在单独的 goroutine 中运行。
// 入站帧在循环内同步处理：同一房间的事件因此保持到达顺序，
// 这是"每房间内按序投递"目标的实现基础。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running")

	for msg := range h.messageChan {
		switch msg.kind {
		case msgRegister:
			// 连接升级即注册；订阅在 join_room 成功后才建立。
			log.Debug("Client connected")
		case msgUnregister:
			h.unregisterClient(msg.client)
		case msgFrame:
			h.handleFrame(msg.client, msg.raw)
		}
	}
	log.Info("Hub stopped")
}

// Stop 关闭事件通道，随后 Run 退出。
func (h *Hub) Stop() {
	close(h.messageChan)
}

// Register 把一个新升级的连接交给 Hub 托管。
// 返回 false 表示 Hub 过载，调用方应关闭连接。
func (h *Hub) Register(c *Client) bool {
	select {
	case h.messageChan <- message{kind: msgRegister, client: c}:
		return true
	default:
		logrus.Warn("Hub message channel full, rejecting new client")
		return false
	}
}

// --- service.Broadcaster 实现 ---

// Broadcast 把事件扇出给房间的所有当前订阅者。
// 单个订阅者的发送队列满时丢弃该订阅者的这条消息，绝不阻塞
// 其他订阅者；死连接由它自己的 pump 退出触发清理。
func (h *Hub) Broadcast(roomID, event string, payload interface{}) {
	data, err := h.encode(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode broadcast event")
		return
	}
	h.fanOut(roomID, data, nil)
}

// SendTo 向单个订阅者发送事件（join 确认、错误提示等）。
func (h *Hub) SendTo(c *Client, event string, payload interface{}) {
	data, err := h.encode(event, payload)
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Failed to encode event")
		return
	}
	h.deliver(c, data)
}

// --- 订阅管理 ---

func (h *Hub) subscribe(c *Client, roomID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if prev, ok := h.clientRooms[c]; ok {
		delete(h.rooms[prev], c)
		if len(h.rooms[prev]) == 0 {
			delete(h.rooms, prev)
		}
	}
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*Client]bool)
	}
	h.rooms[roomID][c] = true
	h.clientRooms[c] = roomID
}

func (h *Hub) subscribed(c *Client, roomID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.clientRooms[c] == roomID
}

func (h *Hub) unsubscribe(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if roomID, ok := h.clientRooms[c]; ok {
		delete(h.rooms[roomID], c)
		if len(h.rooms[roomID]) == 0 {
			delete(h.rooms, roomID)
		}
		delete(h.clientRooms, c)
	}
}

// unregisterClient 处理连接断开：先做隐式 leave（保证成员状态
// 最终和实际连接状态一致，哪怕客户端从未显式发 leave_room），
// 再销毁订阅并关闭发送通道。
func (h *Hub) unregisterClient(c *Client) {
	roomID, username := c.Room(), c.Username()
	logCtx := logrus.WithFields(logrus.Fields{"room_id": roomID, "username": username})

	if roomID != "" && username != "" {
		if err := h.coordinator.LeaveRoom(context.Background(), roomID, username); err != nil {
			logCtx.WithError(err).Warn("Implicit leave on disconnect failed")
		}
	}

	h.unsubscribe(c)
	c.unbind()
	c.closeSend()
	logCtx.Info("Client unregistered")
}

// --- 入站事件处理 ---

// 入站事件名。
const (
	evtJoinRoom    = "join_room"
	evtLeaveRoom   = "leave_room"
	evtStartGame   = "start_game"
	evtGameAction  = "game_action"
	evtChatMessage = "chat_message"
)

func (h *Hub) handleFrame(c *Client, raw []byte) {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		h.sendError(c, "malformed message")
		return
	}

	switch env.Event {
	case evtJoinRoom:
		h.handleJoinRoom(c, env.Data)
	case evtLeaveRoom:
		h.handleLeaveRoom(c)
	case evtStartGame:
		h.handleStartGame(c)
	case evtGameAction:
		h.handleGameAction(c, env.Data)
	case evtChatMessage:
		h.handleChatMessage(c, env.Data)
	default:
		h.sendError(c, "unknown event: "+env.Event)
	}
}

func (h *Hub) handleJoinRoom(c *Client, data json.RawMessage) {
	var req struct {
		RoomID   string `json:"roomId"`
		Username string `json:"username"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.RoomID == "" || req.Username == "" {
		h.sendError(c, "join_room requires roomId and username")
		return
	}

	// 同一身份对同一房间的重复 join 是幂等重发（客户端重试、
	// 网络抖动），补发确认即可，不再走协调器——那会撞上重名
	// 检查并误伤一个合法成员。
	if c.Room() == req.RoomID && c.Username() == req.Username {
		h.SendTo(c, "room_joined", map[string]interface{}{"roomId": req.RoomID})
		return
	}

	// 已在别的房间时先隐式离开，保证"一个订阅者至多一个房间"。
	if prev := c.Room(); prev != "" && prev != req.RoomID {
		if err := h.coordinator.LeaveRoom(context.Background(), prev, c.Username()); err != nil {
			logrus.WithError(err).WithField("room_id", prev).Warn("Implicit leave before rejoin failed")
		}
		h.unsubscribe(c)
		c.unbind()
	}

	// 先订阅再入库：这样 JoinRoom 提交后的 player_joined 广播
	// 也能送达加入者本人。失败只回滚本帧新建的订阅，不动
	// 已有的。
	wasSubscribed := h.subscribed(c, req.RoomID)
	h.subscribe(c, req.RoomID)
	member, members, err := h.coordinator.JoinRoom(context.Background(), req.RoomID, req.Username)
	if err != nil {
		if !wasSubscribed {
			h.unsubscribe(c)
		}
		h.sendError(c, userFacingMessage(err))
		return
	}
	c.bind(req.RoomID, req.Username)

	h.SendTo(c, "room_joined", map[string]interface{}{
		"roomId":  req.RoomID,
		"member":  member,
		"members": members,
	})
}

func (h *Hub) handleLeaveRoom(c *Client) {
	roomID, username := c.Room(), c.Username()
	if roomID == "" || username == "" {
		return
	}
	if err := h.coordinator.LeaveRoom(context.Background(), roomID, username); err != nil {
		h.sendError(c, userFacingMessage(err))
		return
	}
	h.unsubscribe(c)
	c.unbind()
	h.SendTo(c, "room_left", map[string]interface{}{"roomId": roomID})
}

func (h *Hub) handleStartGame(c *Client) {
	roomID, username := c.Room(), c.Username()
	if roomID == "" || username == "" {
		h.sendError(c, "not in a room")
		return
	}
	// game_started 的广播由协调器在提交后发出。
	if _, _, err := h.coordinator.StartGame(context.Background(), roomID, username); err != nil {
		h.sendError(c, userFacingMessage(err))
	}
}

// handleGameAction 把对局动作原样转发给房间内的其他订阅者，
// 内容对 Hub 和协调器都是不透明的；可识别的动作类型会被归档。
func (h *Hub) handleGameAction(c *Client, data json.RawMessage) {
	roomID, username := c.Room(), c.Username()
	if roomID == "" || username == "" {
		h.sendError(c, "not in a room")
		return
	}

	h.coordinator.RecordGameAction(context.Background(), roomID, username, data)

	out, err := json.Marshal(envelope{Event: evtGameAction, Data: data})
	if err != nil {
		return
	}
	h.fanOut(roomID, out, c)
}

func (h *Hub) handleChatMessage(c *Client, data json.RawMessage) {
	roomID, username := c.Room(), c.Username()
	if roomID == "" || username == "" {
		h.sendError(c, "not in a room")
		return
	}
	var req struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &req); err != nil || req.Message == "" {
		h.sendError(c, "chat_message requires message")
		return
	}
	// 聊天记录只活在会话内，不落库。
	h.Broadcast(roomID, "chat_update", map[string]interface{}{
		"username":  username,
		"message":   req.Message,
		"timestamp": time.Now(),
	})
}

// --- 发送底层 ---

func (h *Hub) encode(event string, payload interface{}) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Event: event, Data: data})
}

// fanOut 把编码好的消息投递给房间的所有订阅者，except 除外。
// 先在读锁下拷贝接收者列表，再解锁投递，避免慢客户端拖住锁。
func (h *Hub) fanOut(roomID string, data []byte, except *Client) {
	h.mu.RLock()
	subscribers := h.rooms[roomID]
	targets := make([]*Client, 0, len(subscribers))
	for c := range subscribers {
		if c != except {
			targets = append(targets, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range targets {
		h.deliver(c, data)
	}
}

func (h *Hub) deliver(c *Client, data []byte) {
	if !c.enqueue(data) {
		logrus.WithFields(logrus.Fields{"username": c.Username(), "room_id": c.Room()}).
			Warn("Client send queue unavailable, dropping message")
	}
}

func (h *Hub) sendError(c *Client, msg string) {
	h.SendTo(c, "error", map[string]string{"message": msg})
}

// userFacingMessage 把协调器的业务错误转成发给订阅者的提示文本；
// 内部错误不外泄细节。
func userFacingMessage(err error) string {
	switch {
	case errors.Is(err, service.ErrRoomNotFound),
		errors.Is(err, service.ErrRoomNotJoinable),
		errors.Is(err, service.ErrRoomFull),
		errors.Is(err, service.ErrDuplicateUsername),
		errors.Is(err, service.ErrNotHost),
		errors.Is(err, service.ErrInsufficientPlayers),
		errors.Is(err, service.ErrInvalidInput):
		return err.Error()
	}
	return "operation failed"
}
