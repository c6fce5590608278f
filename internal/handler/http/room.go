package http

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/brandon0824/DavinciCode/internal/domain"
)

// RoomCoordinator 是房间协调器在 HTTP 层需要的最小接口。
type RoomCoordinator interface {
	CreateRoom(ctx context.Context, name string, maxPlayers int, customID string) (*domain.Room, error)
	GetRoom(ctx context.Context, roomID string) (*domain.Room, error)
	ListWaitingRooms(ctx context.Context) ([]domain.Room, error)
	ListActiveMembers(ctx context.Context, roomID string) ([]domain.Member, error)
	JoinRoom(ctx context.Context, roomID, username string) (*domain.Member, []domain.Member, error)
	LeaveRoom(ctx context.Context, roomID, username string) error
	StartGame(ctx context.Context, roomID, username string) (*domain.Room, []domain.Member, error)
	GameState(ctx context.Context, roomID string) (json.RawMessage, error)
}

// RoomHandler 处理房间生命周期的 REST 接口。
type RoomHandler struct {
	coordinator RoomCoordinator
}

func NewRoomHandler(coordinator RoomCoordinator) *RoomHandler {
	return &RoomHandler{coordinator: coordinator}
}

// RegisterRoutes 挂载 /api/rooms 路由组。
func (h *RoomHandler) RegisterRoutes(r gin.IRouter) {
	rooms := r.Group("/api/rooms")
	{
		rooms.POST("", h.CreateRoom)
		rooms.GET("", h.ListWaitingRooms)
		rooms.GET("/:id", h.GetRoom)
		rooms.GET("/:id/players", h.ListActiveMembers)
		rooms.GET("/:id/state", h.GameState)
		rooms.POST("/:id/join", h.JoinRoom)
		rooms.POST("/:id/leave", h.LeaveRoom)
		rooms.POST("/:id/start", h.StartGame)
	}
}

type createRoomRequest struct {
	Name       string `json:"name" binding:"required"`
	MaxPlayers int    `json:"max_players"`
	RoomID     string `json:"room_id"`
}

// CreateRoom POST /api/rooms
func (h *RoomHandler) CreateRoom(c *gin.Context) {
	var req createRoomRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	room, err := h.coordinator.CreateRoom(c.Request.Context(), req.Name, req.MaxPlayers, req.RoomID)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusCreated, gin.H{"room": room})
}

// GetRoom GET /api/rooms/:id
func (h *RoomHandler) GetRoom(c *gin.Context) {
	room, err := h.coordinator.GetRoom(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"room": room})
}

// ListWaitingRooms GET /api/rooms
func (h *RoomHandler) ListWaitingRooms(c *gin.Context) {
	rooms, err := h.coordinator.ListWaitingRooms(c.Request.Context())
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"rooms": rooms})
}

// ListActiveMembers GET /api/rooms/:id/players
func (h *RoomHandler) ListActiveMembers(c *gin.Context) {
	members, err := h.coordinator.ListActiveMembers(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"players": members})
}

// GameState GET /api/rooms/:id/state
func (h *RoomHandler) GameState(c *gin.Context) {
	state, err := h.coordinator.GameState(c.Request.Context(), c.Param("id"))
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	if len(state) == 0 {
		ErrorResponse(c, http.StatusNotFound, "game not started")
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"state": state})
}

type memberRequest struct {
	Username string `json:"username" binding:"required"`
}

// JoinRoom POST /api/rooms/:id/join
func (h *RoomHandler) JoinRoom(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	member, members, err := h.coordinator.JoinRoom(c.Request.Context(), c.Param("id"), req.Username)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"player": member, "players": members})
}

// LeaveRoom POST /api/rooms/:id/leave
func (h *RoomHandler) LeaveRoom(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.coordinator.LeaveRoom(c.Request.Context(), c.Param("id"), req.Username); err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"message": "left room"})
}

// StartGame POST /api/rooms/:id/start
func (h *RoomHandler) StartGame(c *gin.Context) {
	var req memberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, "invalid request body")
		return
	}

	room, members, err := h.coordinator.StartGame(c.Request.Context(), c.Param("id"), req.Username)
	if err != nil {
		HandleServiceError(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, gin.H{"room": room, "players": members})
}
