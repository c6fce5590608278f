package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/brandon0824/DavinciCode/internal/domain"
)

// RoomRepository 是 repository.RoomRepository 的 mock 实现。
type RoomRepository struct {
	mock.Mock
}

func (m *RoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	args := m.Called(ctx, id)
	var room *domain.Room
	if args.Get(0) != nil {
		room = args.Get(0).(*domain.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepository) Exists(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func (m *RoomRepository) ListByStatus(ctx context.Context, status string) ([]domain.Room, error) {
	args := m.Called(ctx, status)
	var rooms []domain.Room
	if args.Get(0) != nil {
		rooms = args.Get(0).([]domain.Room)
	}
	return rooms, args.Error(1)
}

func (m *RoomRepository) Create(ctx context.Context, room *domain.Room) error {
	args := m.Called(ctx, room)
	return args.Error(0)
}

func (m *RoomRepository) MarkPlaying(ctx context.Context, roomID, requester string) (*domain.Room, []domain.Member, error) {
	args := m.Called(ctx, roomID, requester)
	var room *domain.Room
	if args.Get(0) != nil {
		room = args.Get(0).(*domain.Room)
	}
	var members []domain.Member
	if args.Get(1) != nil {
		members = args.Get(1).([]domain.Member)
	}
	return room, members, args.Error(2)
}

func (m *RoomRepository) MarkFinished(ctx context.Context, roomID string) (*domain.Room, error) {
	args := m.Called(ctx, roomID)
	var room *domain.Room
	if args.Get(0) != nil {
		room = args.Get(0).(*domain.Room)
	}
	return room, args.Error(1)
}

func (m *RoomRepository) DeleteExpiredWaiting(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	var ids []string
	if args.Get(0) != nil {
		ids = args.Get(0).([]string)
	}
	return ids, args.Error(1)
}
