package hub

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon0824/DavinciCode/internal/domain"
	"github.com/brandon0824/DavinciCode/internal/service"
)

// fakeCoordinator 用函数字段替换协调器，记录调用。
type fakeCoordinator struct {
	joinFunc  func(roomID, username string) (*domain.Member, []domain.Member, error)
	leftRooms []string
	actions   []json.RawMessage
}

func (f *fakeCoordinator) JoinRoom(ctx context.Context, roomID, username string) (*domain.Member, []domain.Member, error) {
	if f.joinFunc != nil {
		return f.joinFunc(roomID, username)
	}
	member := &domain.Member{RoomID: roomID, Username: username}
	return member, []domain.Member{*member}, nil
}

func (f *fakeCoordinator) LeaveRoom(ctx context.Context, roomID, username string) error {
	f.leftRooms = append(f.leftRooms, roomID)
	return nil
}

func (f *fakeCoordinator) StartGame(ctx context.Context, roomID, username string) (*domain.Room, []domain.Member, error) {
	return &domain.Room{ID: roomID, Status: domain.RoomStatusPlaying}, nil, nil
}

func (f *fakeCoordinator) RecordGameAction(ctx context.Context, roomID, username string, raw json.RawMessage) {
	f.actions = append(f.actions, raw)
}

// receiveEvent 从客户端的发送队列里取一条消息并解包。
func receiveEvent(t *testing.T, c *Client) envelope {
	t.Helper()
	select {
	case data := <-c.send:
		var env envelope
		require.NoError(t, json.Unmarshal(data, &env))
		return env
	case <-time.After(time.Second):
		t.Fatal("期限内未收到消息")
		return envelope{}
	}
}

func assertNoEvent(t *testing.T, c *Client) {
	t.Helper()
	select {
	case data := <-c.send:
		t.Fatalf("不应收到消息，但收到了: %s", data)
	default:
	}
}

func joinFrame(roomID, username string) []byte {
	frame, _ := json.Marshal(map[string]interface{}{
		"event": "join_room",
		"data":  map[string]string{"roomId": roomID, "username": username},
	})
	return frame
}

func TestHub_JoinRoom_SubscribesAndAcks(t *testing.T) {
	coord := &fakeCoordinator{}
	h := NewHub(coord)
	c := NewClient(h, nil)

	h.handleFrame(c, joinFrame("ABC123", "alice"))

	assert.Equal(t, "ABC123", c.Room())
	assert.Equal(t, "alice", c.Username())

	env := receiveEvent(t, c)
	assert.Equal(t, "room_joined", env.Event)

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Contains(t, h.rooms["ABC123"], c)
}

func TestHub_JoinRoom_FailureRollsBackSubscription(t *testing.T) {
	coord := &fakeCoordinator{
		joinFunc: func(roomID, username string) (*domain.Member, []domain.Member, error) {
			return nil, nil, service.ErrRoomFull
		},
	}
	h := NewHub(coord)
	c := NewClient(h, nil)

	h.handleFrame(c, joinFrame("ABC123", "alice"))

	assert.Empty(t, c.Room(), "加入失败后不应绑定房间")
	env := receiveEvent(t, c)
	assert.Equal(t, "error", env.Event)

	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, service.ErrRoomFull.Error(), payload["message"], "业务错误信息应原样透出")

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.NotContains(t, h.rooms["ABC123"], c)
}

func TestHub_JoinRoom_InternalErrorIsMasked(t *testing.T) {
	coord := &fakeCoordinator{
		joinFunc: func(roomID, username string) (*domain.Member, []domain.Member, error) {
			return nil, nil, service.ErrInternalServer
		},
	}
	h := NewHub(coord)
	c := NewClient(h, nil)

	h.handleFrame(c, joinFrame("ABC123", "alice"))

	env := receiveEvent(t, c)
	assert.Equal(t, "error", env.Event)
	var payload map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "operation failed", payload["message"], "内部错误不应外泄细节")
}

func TestHub_SingleRoomInvariant(t *testing.T) {
	coord := &fakeCoordinator{}
	h := NewHub(coord)
	c := NewClient(h, nil)

	h.handleFrame(c, joinFrame("AAAAAA", "alice"))
	<-c.send // room_joined
	h.handleFrame(c, joinFrame("BBBBBB", "alice"))
	<-c.send

	// 换房时先隐式离开旧房间
	assert.Equal(t, []string{"AAAAAA"}, coord.leftRooms)
	assert.Equal(t, "BBBBBB", c.Room())

	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.NotContains(t, h.rooms, "AAAAAA")
	assert.Contains(t, h.rooms["BBBBBB"], c)
}

func TestHub_Broadcast_FanOut(t *testing.T) {
	h := NewHub(&fakeCoordinator{})
	c1 := NewClient(h, nil)
	c2 := NewClient(h, nil)
	h.subscribe(c1, "ABC123")
	h.subscribe(c2, "ABC123")
	outsider := NewClient(h, nil)
	h.subscribe(outsider, "ZZZZZZ")

	h.Broadcast("ABC123", "room_update", map[string]int{"count": 2})

	for _, c := range []*Client{c1, c2} {
		env := receiveEvent(t, c)
		assert.Equal(t, "room_update", env.Event)
	}
	assertNoEvent(t, outsider)
}

func TestHub_GameAction_ExcludesSenderAndRecords(t *testing.T) {
	coord := &fakeCoordinator{}
	h := NewHub(coord)
	sender := NewClient(h, nil)
	peer := NewClient(h, nil)

	h.handleFrame(sender, joinFrame("ABC123", "alice"))
	<-sender.send
	h.handleFrame(peer, joinFrame("ABC123", "bob"))
	<-peer.send

	action := `{"type":"guess","target":"bob","position":1,"value":3}`
	frame, _ := json.Marshal(map[string]interface{}{
		"event": "game_action",
		"data":  json.RawMessage(action),
	})
	h.handleFrame(sender, frame)

	env := receiveEvent(t, peer)
	assert.Equal(t, "game_action", env.Event)
	assert.JSONEq(t, action, string(env.Data), "动作内容应原样转发")
	assertNoEvent(t, sender)

	require.Len(t, coord.actions, 1)
	assert.JSONEq(t, action, string(coord.actions[0]))
}

func TestHub_ChatMessage_BroadcastNotPersisted(t *testing.T) {
	coord := &fakeCoordinator{}
	h := NewHub(coord)
	c := NewClient(h, nil)
	h.handleFrame(c, joinFrame("ABC123", "alice"))
	<-c.send

	frame, _ := json.Marshal(map[string]interface{}{
		"event": "chat_message",
		"data":  map[string]string{"message": "大家好"},
	})
	h.handleFrame(c, frame)

	env := receiveEvent(t, c)
	assert.Equal(t, "chat_update", env.Event)
	var payload map[string]interface{}
	require.NoError(t, json.Unmarshal(env.Data, &payload))
	assert.Equal(t, "alice", payload["username"])
	assert.Equal(t, "大家好", payload["message"])
	assert.Empty(t, coord.actions, "聊天消息不进入审计归档")
}

func TestHub_Disconnect_ImplicitLeave(t *testing.T) {
	coord := &fakeCoordinator{}
	h := NewHub(coord)
	c := NewClient(h, nil)
	h.handleFrame(c, joinFrame("ABC123", "alice"))
	<-c.send

	h.unregisterClient(c)

	assert.Equal(t, []string{"ABC123"}, coord.leftRooms, "断线应触发隐式离开")
	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.NotContains(t, h.rooms, "ABC123")
}

func TestHub_UnknownEvent(t *testing.T) {
	h := NewHub(&fakeCoordinator{})
	c := NewClient(h, nil)

	h.handleFrame(c, []byte(`{"event":"teleport"}`))

	env := receiveEvent(t, c)
	assert.Equal(t, "error", env.Event)
}

func TestHub_MalformedFrame(t *testing.T) {
	h := NewHub(&fakeCoordinator{})
	c := NewClient(h, nil)

	h.handleFrame(c, []byte(`not json at all`))

	env := receiveEvent(t, c)
	assert.Equal(t, "error", env.Event)
}

func TestHub_SlowSubscriberDoesNotBlock(t *testing.T) {
	h := NewHub(&fakeCoordinator{})
	slow := NewClient(h, nil)
	h.subscribe(slow, "ABC123")

	// 填满发送队列，后续广播必须丢弃而不是阻塞
	for i := 0; i < cap(slow.send); i++ {
		slow.send <- []byte("x")
	}

	done := make(chan struct{})
	go func() {
		h.Broadcast("ABC123", "room_update", map[string]int{"count": 1})
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("慢订阅者不应阻塞广播")
	}
}

func TestHub_JoinRoom_DuplicateIsIdempotent(t *testing.T) {
	joinCalls := 0
	coord := &fakeCoordinator{
		joinFunc: func(roomID, username string) (*domain.Member, []domain.Member, error) {
			joinCalls++
			if joinCalls > 1 {
				return nil, nil, service.ErrDuplicateUsername
			}
			member := &domain.Member{RoomID: roomID, Username: username}
			return member, []domain.Member{*member}, nil
		},
	}
	h := NewHub(coord)
	c := NewClient(h, nil)

	h.handleFrame(c, joinFrame("ABC123", "alice"))
	env := receiveEvent(t, c)
	require.Equal(t, "room_joined", env.Event)

	// 重复的 join 是幂等重发：补发确认而不是走协调器
	h.handleFrame(c, joinFrame("ABC123", "alice"))
	env = receiveEvent(t, c)
	assert.Equal(t, "room_joined", env.Event)
	assert.Equal(t, 1, joinCalls, "重复 join 不应再次调用协调器")

	// 成员仍然绑定且在扇出集合里，后续广播照常送达
	assert.Equal(t, "ABC123", c.Room())
	h.Broadcast("ABC123", "room_update", map[string]int{"count": 1})
	env = receiveEvent(t, c)
	assert.Equal(t, "room_update", env.Event)
}

func TestHub_JoinRoom_SameRoomFailureKeepsExistingSubscription(t *testing.T) {
	coord := &fakeCoordinator{
		joinFunc: func(roomID, username string) (*domain.Member, []domain.Member, error) {
			if username == "bob" {
				return nil, nil, service.ErrDuplicateUsername
			}
			member := &domain.Member{RoomID: roomID, Username: username}
			return member, []domain.Member{*member}, nil
		},
	}
	h := NewHub(coord)
	c := NewClient(h, nil)

	h.handleFrame(c, joinFrame("ABC123", "alice"))
	<-c.send // room_joined

	// 同一连接换个用户名重试同一房间，失败不能拆掉已有订阅
	h.handleFrame(c, joinFrame("ABC123", "bob"))
	env := receiveEvent(t, c)
	assert.Equal(t, "error", env.Event)

	assert.Equal(t, "alice", c.Username())
	h.mu.RLock()
	defer h.mu.RUnlock()
	assert.Contains(t, h.rooms["ABC123"], c, "失败的重试不应移除原有订阅")
}

func TestHub_UnregisterClosesSendExactlyOnce(t *testing.T) {
	coord := &fakeCoordinator{}
	h := NewHub(coord)
	c := NewClient(h, nil)
	h.handleFrame(c, joinFrame("ABC123", "alice"))
	<-c.send // room_joined

	// 队列里还躺着一条未消费的消息
	pending := []byte(`{"event":"room_update"}`)
	require.True(t, c.enqueue(pending))

	h.unregisterClient(c)
	// 重复注销不应触发二次 close
	assert.NotPanics(t, func() { h.unregisterClient(c) })

	// 已入队的消息仍可取出，随后通道关闭，writePump 会看到 !ok
	assert.Equal(t, pending, <-c.send)
	_, ok := <-c.send
	assert.False(t, ok, "注销后发送通道必须已关闭")

	// 关闭后的投递被丢弃，不 panic
	assert.NotPanics(t, func() { h.deliver(c, []byte("late")) })
}

func TestHub_ConcurrentDeliverAndClose(t *testing.T) {
	h := NewHub(&fakeCoordinator{})

	for i := 0; i < 200; i++ {
		c := NewClient(h, nil)
		h.subscribe(c, "ABC123")

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				h.deliver(c, []byte("payload"))
			}
		}()
		go func() {
			defer wg.Done()
			h.unregisterClient(c)
		}()
		wg.Wait()
	}
}

func TestHub_GameAction_NotInRoom(t *testing.T) {
	coord := &fakeCoordinator{}
	h := NewHub(coord)
	c := NewClient(h, nil)

	frame, _ := json.Marshal(map[string]interface{}{
		"event": "game_action",
		"data":  json.RawMessage(`{"type":"guess"}`),
	})
	h.handleFrame(c, frame)

	env := receiveEvent(t, c)
	assert.Equal(t, "error", env.Event)
	assert.Empty(t, coord.actions)
}
