package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/brandon0824/DavinciCode/internal/domain"
	"github.com/brandon0824/DavinciCode/internal/repository"
)

// MemberRepository 是 repository.MemberRepository 的 mock 实现。
type MemberRepository struct {
	mock.Mock
}

func (m *MemberRepository) ListActive(ctx context.Context, roomID string) ([]domain.Member, error) {
	args := m.Called(ctx, roomID)
	var members []domain.Member
	if args.Get(0) != nil {
		members = args.Get(0).([]domain.Member)
	}
	return members, args.Error(1)
}

func (m *MemberRepository) Join(ctx context.Context, roomID, username string) (*domain.Member, []domain.Member, error) {
	args := m.Called(ctx, roomID, username)
	var member *domain.Member
	if args.Get(0) != nil {
		member = args.Get(0).(*domain.Member)
	}
	var members []domain.Member
	if args.Get(1) != nil {
		members = args.Get(1).([]domain.Member)
	}
	return member, members, args.Error(2)
}

func (m *MemberRepository) Leave(ctx context.Context, roomID, username string) (*repository.LeaveResult, error) {
	args := m.Called(ctx, roomID, username)
	var result *repository.LeaveResult
	if args.Get(0) != nil {
		result = args.Get(0).(*repository.LeaveResult)
	}
	return result, args.Error(1)
}
