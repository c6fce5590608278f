package websocket

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/brandon0824/DavinciCode/internal/hub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// 客户端来自独立部署的前端，握手阶段不做来源校验。
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Handler 将 HTTP 请求升级为 WebSocket 并托管给 Hub。
type Handler struct {
	hub *hub.Hub
}

func NewHandler(h *hub.Hub) *Handler {
	return &Handler{hub: h}
}

// Serve GET /ws
func (h *Handler) Serve(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket upgrade failed")
		return
	}

	client := hub.NewClient(h.hub, conn)
	if !h.hub.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}
