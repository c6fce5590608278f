package http_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brandon0824/DavinciCode/internal/domain"
	httpHandler "github.com/brandon0824/DavinciCode/internal/handler/http"
	"github.com/brandon0824/DavinciCode/internal/service"
)

// fakeCoordinator 按需用函数字段覆盖各个操作。
type fakeCoordinator struct {
	createFunc func(name string, maxPlayers int, customID string) (*domain.Room, error)
	getFunc    func(roomID string) (*domain.Room, error)
	joinFunc   func(roomID, username string) (*domain.Member, []domain.Member, error)
	leaveFunc  func(roomID, username string) error
	startFunc  func(roomID, username string) (*domain.Room, []domain.Member, error)
	stateFunc  func(roomID string) (json.RawMessage, error)
}

func (f *fakeCoordinator) CreateRoom(ctx context.Context, name string, maxPlayers int, customID string) (*domain.Room, error) {
	return f.createFunc(name, maxPlayers, customID)
}

func (f *fakeCoordinator) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	return f.getFunc(roomID)
}

func (f *fakeCoordinator) ListWaitingRooms(ctx context.Context) ([]domain.Room, error) {
	return []domain.Room{{ID: "AAA111", Status: domain.RoomStatusWaiting}}, nil
}

func (f *fakeCoordinator) ListActiveMembers(ctx context.Context, roomID string) ([]domain.Member, error) {
	return []domain.Member{{RoomID: roomID, Username: "alice", IsHost: true}}, nil
}

func (f *fakeCoordinator) JoinRoom(ctx context.Context, roomID, username string) (*domain.Member, []domain.Member, error) {
	return f.joinFunc(roomID, username)
}

func (f *fakeCoordinator) LeaveRoom(ctx context.Context, roomID, username string) error {
	return f.leaveFunc(roomID, username)
}

func (f *fakeCoordinator) StartGame(ctx context.Context, roomID, username string) (*domain.Room, []domain.Member, error) {
	return f.startFunc(roomID, username)
}

func (f *fakeCoordinator) GameState(ctx context.Context, roomID string) (json.RawMessage, error) {
	return f.stateFunc(roomID)
}

func setupRouter(coord *fakeCoordinator) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	httpHandler.NewRoomHandler(coord).RegisterRoutes(router)
	return router
}

func doJSON(t *testing.T, router *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRoomHandler_CreateRoom(t *testing.T) {
	coord := &fakeCoordinator{
		createFunc: func(name string, maxPlayers int, customID string) (*domain.Room, error) {
			assert.Equal(t, "周五晚场", name)
			assert.Equal(t, 4, maxPlayers)
			return &domain.Room{ID: "ABC123", Name: name, Status: domain.RoomStatusWaiting, MaxPlayers: maxPlayers}, nil
		},
	}
	router := setupRouter(coord)

	w := doJSON(t, router, http.MethodPost, "/api/rooms", `{"name":"周五晚场","max_players":4}`)

	require.Equal(t, http.StatusCreated, w.Code)
	var resp struct {
		Room domain.Room `json:"room"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ABC123", resp.Room.ID)
}

func TestRoomHandler_CreateRoom_BadBody(t *testing.T) {
	router := setupRouter(&fakeCoordinator{})

	w := doJSON(t, router, http.MethodPost, "/api/rooms", `{"max_players":4}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRoomHandler_GetRoom_NotFound(t *testing.T) {
	coord := &fakeCoordinator{
		getFunc: func(roomID string) (*domain.Room, error) {
			return nil, service.ErrRoomNotFound
		},
	}
	router := setupRouter(coord)

	w := doJSON(t, router, http.MethodGet, "/api/rooms/NOPE42", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomHandler_JoinRoom_Conflicts(t *testing.T) {
	cases := []struct {
		name    string
		svcErr  error
		want    int
	}{
		{"房间已满", service.ErrRoomFull, http.StatusConflict},
		{"用户名被占用", service.ErrDuplicateUsername, http.StatusConflict},
		{"房间已开局", service.ErrRoomNotJoinable, http.StatusConflict},
		{"房间不存在", service.ErrRoomNotFound, http.StatusNotFound},
		{"非法输入", service.ErrInvalidInput, http.StatusBadRequest},
		{"内部错误", service.ErrInternalServer, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coord := &fakeCoordinator{
				joinFunc: func(roomID, username string) (*domain.Member, []domain.Member, error) {
					return nil, nil, tc.svcErr
				},
			}
			router := setupRouter(coord)

			w := doJSON(t, router, http.MethodPost, "/api/rooms/ABC123/join", `{"username":"bob"}`)

			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRoomHandler_JoinRoom_Success(t *testing.T) {
	coord := &fakeCoordinator{
		joinFunc: func(roomID, username string) (*domain.Member, []domain.Member, error) {
			member := &domain.Member{RoomID: roomID, Username: username}
			return member, []domain.Member{{RoomID: roomID, Username: "alice", IsHost: true}, *member}, nil
		},
	}
	router := setupRouter(coord)

	w := doJSON(t, router, http.MethodPost, "/api/rooms/ABC123/join", `{"username":"bob"}`)

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Player  domain.Member   `json:"player"`
		Players []domain.Member `json:"players"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "bob", resp.Player.Username)
	assert.Len(t, resp.Players, 2)
}

func TestRoomHandler_LeaveRoom_Idempotent(t *testing.T) {
	coord := &fakeCoordinator{
		leaveFunc: func(roomID, username string) error { return nil },
	}
	router := setupRouter(coord)

	w := doJSON(t, router, http.MethodPost, "/api/rooms/ABC123/leave", `{"username":"ghost"}`)

	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRoomHandler_StartGame_NotHost(t *testing.T) {
	coord := &fakeCoordinator{
		startFunc: func(roomID, username string) (*domain.Room, []domain.Member, error) {
			return nil, nil, service.ErrNotHost
		},
	}
	router := setupRouter(coord)

	w := doJSON(t, router, http.MethodPost, "/api/rooms/ABC123/start", `{"username":"bob"}`)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestRoomHandler_ListWaitingRooms(t *testing.T) {
	router := setupRouter(&fakeCoordinator{})

	w := doJSON(t, router, http.MethodGet, "/api/rooms", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Rooms []domain.Room `json:"rooms"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Rooms, 1)
}

func TestRoomHandler_GameState(t *testing.T) {
	state := `{"roomId":"ABC123","turnOrder":["alice","bob"],"turn":0}`
	coord := &fakeCoordinator{
		stateFunc: func(roomID string) (json.RawMessage, error) {
			return json.RawMessage(state), nil
		},
	}
	router := setupRouter(coord)

	w := doJSON(t, router, http.MethodGet, "/api/rooms/ABC123/state", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		State json.RawMessage `json:"state"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.JSONEq(t, state, string(resp.State))
}

func TestRoomHandler_GameState_NotStarted(t *testing.T) {
	coord := &fakeCoordinator{
		stateFunc: func(roomID string) (json.RawMessage, error) {
			return nil, nil
		},
	}
	router := setupRouter(coord)

	w := doJSON(t, router, http.MethodGet, "/api/rooms/ABC123/state", "")

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestRoomHandler_ListActiveMembers(t *testing.T) {
	router := setupRouter(&fakeCoordinator{})

	w := doJSON(t, router, http.MethodGet, "/api/rooms/ABC123/players", "")

	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Players []domain.Member `json:"players"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Players, 1)
	assert.True(t, resp.Players[0].IsHost)
}
