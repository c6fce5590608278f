package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/brandon0824/DavinciCode/internal/domain"
)

// RoomCache 是 repository.RoomCache 的 mock 实现。
type RoomCache struct {
	mock.Mock
}

func (m *RoomCache) GetRoom(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	var room *domain.Room
	if args.Get(0) != nil {
		room = args.Get(0).(*domain.Room)
	}
	return room, args.Error(1)
}

func (m *RoomCache) SetRoom(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomCache) DeleteRoom(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *RoomCache) GetMembers(ctx context.Context, roomID string) ([]domain.Member, error) {
	args := m.Called(ctx, roomID)
	var members []domain.Member
	if args.Get(0) != nil {
		members = args.Get(0).([]domain.Member)
	}
	return members, args.Error(1)
}

func (m *RoomCache) SetMembers(ctx context.Context, roomID string, members []domain.Member) error {
	args := m.Called(ctx, roomID, members)
	return args.Error(0)
}

func (m *RoomCache) DeleteMembers(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *RoomCache) GetGameState(ctx context.Context, roomID string) ([]byte, error) {
	args := m.Called(ctx, roomID)
	var state []byte
	if args.Get(0) != nil {
		state = args.Get(0).([]byte)
	}
	return state, args.Error(1)
}

func (m *RoomCache) SetGameState(ctx context.Context, roomID string, state []byte) error {
	args := m.Called(ctx, roomID, state)
	return args.Error(0)
}

func (m *RoomCache) DeleteGameState(ctx context.Context, roomID string) error {
	args := m.Called(ctx, roomID)
	return args.Error(0)
}

func (m *RoomCache) GetUserRoom(ctx context.Context, username string) (string, error) {
	args := m.Called(ctx, username)
	return args.String(0), args.Error(1)
}

func (m *RoomCache) SetUserRoom(ctx context.Context, username, roomID string) error {
	args := m.Called(ctx, username, roomID)
	return args.Error(0)
}

func (m *RoomCache) DeleteUserRoom(ctx context.Context, username string) error {
	args := m.Called(ctx, username)
	return args.Error(0)
}
