package hub

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 订阅者。
// 房间归属（roomID/username）在 join_room 成功后由 Hub 的事件循环
// 写入；读写都经过 mu，因为 pump goroutine 也会读它们打日志。
type Client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu       sync.RWMutex
	roomID   string
	username string
	closed   bool
}

// NewClient 创建一个新的 Client 实例。
func NewClient(hub *Hub, conn *websocket.Conn) *Client {
	return &Client{
		hub:  hub,
		conn: conn,
		send: make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine。
func (c *Client) Run() {
	go c.writePump()
	go c.readPump()
}

// Room 返回客户端当前订阅的房间号，未加入任何房间时为空。
func (c *Client) Room() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.roomID
}

// Username 返回客户端绑定的用户名。
func (c *Client) Username() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.username
}

func (c *Client) bind(roomID, username string) {
	c.mu.Lock()
	c.roomID = roomID
	c.username = username
	c.mu.Unlock()
}

func (c *Client) unbind() {
	c.bind("", "")
}

// CloseConn 直接关闭底层连接，用于注册失败等异常路径。
func (c *Client) CloseConn() {
	c.conn.Close()
}

// enqueue 尝试把消息放进发送队列。通道已关闭或队列已满时返回
// false。发送发生在读锁下、关闭发生在写锁下，两者互斥，
// 广播 goroutine 永远不会往已关闭的通道里写。
func (c *Client) enqueue(data []byte) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// closeSend 关闭发送队列，幂等。已入队的消息仍会被 writePump
// 取完，之后它看到通道关闭并退出。
func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

// readPump 把 WebSocket 帧泵进 Hub 的事件通道。
// 连接断开（无论正常与否）触发注销，Hub 会据此做隐式 leave。
func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.messageChan <- message{kind: msgUnregister, client: c}:
		case <-time.After(time.Second):
			logrus.WithField("username", c.Username()).Warn("Timeout sending unregister message to hub")
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, data, err := c.conn.ReadMessage()
		if err != nil {
			logCtx := logrus.WithFields(logrus.Fields{"username": c.Username(), "room_id": c.Room()})
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logCtx.WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				logCtx.Debug("WebSocket connection closed")
			}
			break
		}
		if messageType != websocket.TextMessage {
			continue
		}

		select {
		case c.hub.messageChan <- message{kind: msgFrame, client: c, raw: data}:
		default:
			// Hub 处理不过来时丢弃，客户端侧按至少一次语义重试。
			logrus.WithFields(logrus.Fields{"username": c.Username(), "room_id": c.Room()}).
				Warn("Hub message channel full, dropping client frame")
		}
	}
}

// writePump 把 send 通道里的消息写到 WebSocket 连接，并定期 ping。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case data, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub 已注销此客户端并关闭了 send 通道。
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				logrus.WithFields(logrus.Fields{"username": c.Username(), "room_id": c.Room()}).
					WithError(err).Warn("Failed to write message to websocket")
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
