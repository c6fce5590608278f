package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/brandon0824/DavinciCode/internal/domain"
)

// HistoryRepository 是 repository.HistoryRepository 的 mock 实现。
type HistoryRepository struct {
	mock.Mock
}

func (m *HistoryRepository) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	args := m.Called(ctx, entry)
	return args.Error(0)
}
