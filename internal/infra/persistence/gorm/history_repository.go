package gormpersistence

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/brandon0824/DavinciCode/internal/domain"
)

// GormHistoryRepository 是 HistoryRepository 接口的 GORM 实现。
type GormHistoryRepository struct {
	db *gorm.DB
}

// NewGormHistoryRepository 创建 GormHistoryRepository 实例。
func NewGormHistoryRepository(db *gorm.DB) *GormHistoryRepository {
	if db == nil {
		panic("database connection cannot be nil for GormHistoryRepository")
	}
	return &GormHistoryRepository{db: db}
}

// Append 追加一条审计记录。
func (r *GormHistoryRepository) Append(ctx context.Context, entry *domain.HistoryEntry) error {
	err := r.db.WithContext(ctx).Create(entry).Error
	if err != nil {
		return fmt.Errorf("gorm: append history for room %q: %w", entry.RoomID, err)
	}
	return nil
}
