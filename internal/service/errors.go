package service

import "errors"

// 业务错误。HTTP/WebSocket 层按这些哨兵值做确定性的状态映射：
// ErrRoomNotFound -> 404；各类冲突 -> 409（调用方换个输入可重试）；
// ErrInvalidInput -> 400；其余 -> 500。
var (
	ErrRoomNotFound          = errors.New("room not found")
	ErrDuplicateRoom         = errors.New("room id already in use")
	ErrIDGenerationExhausted = errors.New("failed to generate a unique room id")
	ErrRoomNotJoinable       = errors.New("room is not accepting new players")
	ErrRoomFull              = errors.New("room is full")
	ErrDuplicateUsername     = errors.New("username already taken in this room")
	ErrNotHost               = errors.New("only the host can start the game")
	ErrInsufficientPlayers   = errors.New("at least 2 players are required to start")
	ErrInvalidInput          = errors.New("invalid input")
	ErrInternalServer        = errors.New("internal server error")
)
