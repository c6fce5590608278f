package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brandon0824/DavinciCode/internal/domain"
	"github.com/brandon0824/DavinciCode/internal/repository"
)

// GormRoomRepository 是 RoomRepository 接口的 GORM 实现。
type GormRoomRepository struct {
	db *gorm.DB
}

// NewGormRoomRepository 创建 GormRoomRepository 实例。
func NewGormRoomRepository(db *gorm.DB) *GormRoomRepository {
	if db == nil {
		panic("database connection cannot be nil for GormRoomRepository")
	}
	return &GormRoomRepository{db: db}
}

// FindByID 实现根据房间号查找房间。
func (r *GormRoomRepository) FindByID(ctx context.Context, id string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, repository.ErrRoomNotFound
		}
		return nil, fmt.Errorf("gorm: find room by id %q: %w", id, err)
	}
	return &room, nil
}

// Exists 实现检查房间号是否已被占用。
func (r *GormRoomRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Room{}).Where("id = ?", id).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("gorm: count rooms by id %q: %w", id, err)
	}
	return count > 0, nil
}

// ListByStatus 实现按状态列出房间。
func (r *GormRoomRepository) ListByStatus(ctx context.Context, status string) ([]domain.Room, error) {
	var rooms []domain.Room
	err := r.db.WithContext(ctx).
		Where("status = ?", status).
		Order("created_at DESC").
		Find(&rooms).Error
	if err != nil {
		return nil, fmt.Errorf("gorm: list rooms by status %q: %w", status, err)
	}
	return rooms, nil
}

// Create 实现插入新房间。
func (r *GormRoomRepository) Create(ctx context.Context, room *domain.Room) error {
	err := r.db.WithContext(ctx).Create(room).Error
	if err != nil {
		if isDuplicateEntryError(err) {
			return repository.ErrDuplicateEntry
		}
		return fmt.Errorf("gorm: create room %q: %w", room.ID, err)
	}
	return nil
}

// MarkPlaying 实现开局校验与状态变更。整个校验-写入序列在一个
// 事务内完成，房间行上的 FOR UPDATE 锁把同一房间的并发开局/加入
// 串行化在数据库侧，进程内不需要任何互斥锁。
func (r *GormRoomRepository) MarkPlaying(ctx context.Context, roomID, requester string) (*domain.Room, []domain.Member, error) {
	var (
		room    domain.Room
		members []domain.Member
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrRoomNotFound
			}
			return fmt.Errorf("lock room row: %w", err)
		}
		if room.Status != domain.RoomStatusWaiting {
			return repository.ErrRoomClosed
		}

		if err := activeMembers(tx, roomID, &members); err != nil {
			return err
		}
		host := findHost(members)
		if host == nil || host.Username != requester {
			return repository.ErrNotHost
		}
		if len(members) < 2 {
			return repository.ErrTooFewMembers
		}

		now := time.Now()
		room.Status = domain.RoomStatusPlaying
		room.StartedAt = &now
		if err := tx.Model(&domain.Room{}).Where("id = ?", roomID).
			Updates(map[string]interface{}{"status": domain.RoomStatusPlaying, "started_at": now}).Error; err != nil {
			return fmt.Errorf("update room status: %w", err)
		}

		// 房主先手。
		if err := tx.Model(&domain.Member{}).Where("id = ?", host.ID).
			Update("is_current_turn", true).Error; err != nil {
			return fmt.Errorf("mark current turn: %w", err)
		}
		for i := range members {
			if members[i].ID == host.ID {
				members[i].IsCurrentTurn = true
			}
		}
		return nil
	})
	if err != nil {
		if isRepositoryError(err) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("gorm: mark room %q playing: %w", roomID, err)
	}
	return &room, members, nil
}

// MarkFinished 实现无条件结束房间。
func (r *GormRoomRepository) MarkFinished(ctx context.Context, roomID string) (*domain.Room, error) {
	var room domain.Room
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&room, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return repository.ErrRoomNotFound
			}
			return fmt.Errorf("load room: %w", err)
		}
		now := time.Now()
		room.Status = domain.RoomStatusFinished
		room.EndedAt = &now
		if err := tx.Model(&domain.Room{}).Where("id = ?", roomID).
			Updates(map[string]interface{}{"status": domain.RoomStatusFinished, "ended_at": now}).Error; err != nil {
			return fmt.Errorf("update room status: %w", err)
		}
		return nil
	})
	if err != nil {
		if isRepositoryError(err) {
			return nil, err
		}
		return nil, fmt.Errorf("gorm: mark room %q finished: %w", roomID, err)
	}
	return &room, nil
}

// DeleteExpiredWaiting 实现过期房间清理。
func (r *GormRoomRepository) DeleteExpiredWaiting(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.Room{}).
			Where("status = ? AND created_at < ?", domain.RoomStatusWaiting, cutoff).
			Pluck("id", &ids).Error; err != nil {
			return fmt.Errorf("list expired rooms: %w", err)
		}
		if len(ids) == 0 {
			return nil
		}
		// 成员行由外键级联删除。
		if err := tx.Where("id IN ?", ids).Delete(&domain.Room{}).Error; err != nil {
			return fmt.Errorf("delete expired rooms: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gorm: delete expired waiting rooms: %w", err)
	}
	return ids, nil
}

// --- 包内共享的辅助函数 ---

// activeMembers 在事务内加载房间的活跃成员，加入时间相同时
// 以行 ID 作为次序键，保证房主移交等决策是确定性的。
func activeMembers(tx *gorm.DB, roomID string, out *[]domain.Member) error {
	err := tx.Where("room_id = ? AND left_at IS NULL", roomID).
		Order("joined_at ASC, id ASC").
		Find(out).Error
	if err != nil {
		return fmt.Errorf("list active members: %w", err)
	}
	return nil
}

func findHost(members []domain.Member) *domain.Member {
	for i := range members {
		if members[i].IsHost {
			return &members[i]
		}
	}
	return nil
}

// isDuplicateEntryError 报告 err 是否是 MySQL 唯一约束冲突 (1062)。
func isDuplicateEntryError(err error) bool {
	var mysqlErr *mysql.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == 1062
}

// isRepositoryError 报告 err 是否已经是存储层哨兵错误，
// 避免被外层的 fmt.Errorf 再包一层导致调用方匹配失败。
func isRepositoryError(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrDuplicateEntry) ||
		errors.Is(err, repository.ErrRoomClosed) ||
		errors.Is(err, repository.ErrRoomFull) ||
		errors.Is(err, repository.ErrNotHost) ||
		errors.Is(err, repository.ErrTooFewMembers)
}
