package gormpersistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/brandon0824/DavinciCode/internal/domain"
	"github.com/brandon0824/DavinciCode/internal/repository"
)

// GormMemberRepository 是 MemberRepository 接口的 GORM 实现。
type GormMemberRepository struct {
	db *gorm.DB
}

// NewGormMemberRepository 创建 GormMemberRepository 实例。
func NewGormMemberRepository(db *gorm.DB) *GormMemberRepository {
	if db == nil {
		panic("database connection cannot be nil for GormMemberRepository")
	}
	return &GormMemberRepository{db: db}
}

// ListActive 实现列出房间的活跃成员。
func (r *GormMemberRepository) ListActive(ctx context.Context, roomID string) ([]domain.Member, error) {
	var members []domain.Member
	if err := activeMembers(r.db.WithContext(ctx), roomID, &members); err != nil {
		return nil, fmt.Errorf("gorm: %w", err)
	}
	return members, nil
}

// Join 实现原子的加入操作。房间行上的 FOR UPDATE 锁串行化同一
// 房间的并发加入，容量和重名检查因此在锁内是准确的；万一有写入
// 者绕过了这条路径，(room_id, username) 唯一约束仍然兜底，冲突
// 同样翻译成 ErrDuplicateEntry。
func (r *GormMemberRepository) Join(ctx context.Context, roomID, username string) (*domain.Member, []domain.Member, error) {
	var (
		member  domain.Member
		members []domain.Member
	)

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room domain.Room
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

		var current []domain.Member
		if err := activeMembers(tx, roomID, &current); err != nil {
			return err
		}
		for i := range current {
			if current[i].Username == username {
				return repository.ErrDuplicateEntry
			}
		}
		if len(current) >= room.MaxPlayers {
			return repository.ErrRoomFull
		}

		now := time.Now()
		isHost := len(current) == 0

		// 曾经离开过的成员留有软删除行，复活它而不是再插入：
		// (room_id, username) 唯一键覆盖的是所有行，不只活跃行。
		res := tx.Model(&domain.Member{}).
			Where("room_id = ? AND username = ? AND left_at IS NOT NULL", roomID, username).
			Updates(map[string]interface{}{
				"left_at":         nil,
				"joined_at":       now,
				"is_host":         isHost,
				"is_current_turn": false,
			})
		if res.Error != nil {
			return fmt.Errorf("revive member row: %w", res.Error)
		}
		if res.RowsAffected > 0 {
			if err := tx.First(&member, "room_id = ? AND username = ?", roomID, username).Error; err != nil {
				return fmt.Errorf("reload revived member: %w", err)
			}
		} else {
			member = domain.Member{
				RoomID:   roomID,
				Username: username,
				JoinedAt: now,
				IsHost:   isHost,
			}
			if err := tx.Create(&member).Error; err != nil {
				if isDuplicateEntryError(err) {
					return repository.ErrDuplicateEntry
				}
				return fmt.Errorf("insert member row: %w", err)
			}
		}

		return activeMembers(tx, roomID, &members)
	})
	if err != nil {
		if isRepositoryError(err) {
			return nil, nil, err
		}
		return nil, nil, fmt.Errorf("gorm: join room %q as %q: %w", roomID, username, err)
	}
	return &member, members, nil
}

// Leave 实现原子的离开操作，包括房主移交和空房删除。
func (r *GormMemberRepository) Leave(ctx context.Context, roomID, username string) (*repository.LeaveResult, error) {
	result := &repository.LeaveResult{}

	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room domain.Room
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			First(&room, "id = ?", roomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 房间已不存在（比如另一条断线信号已经清空了它），
				// 按幂等空操作处理。
				return nil
			}
			return fmt.Errorf("lock room row: %w", err)
		}

		var leaver domain.Member
		err := tx.First(&leaver, "room_id = ? AND username = ? AND left_at IS NULL", roomID, username).Error
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				// 成员不存在或已离开，同样幂等。
				return nil
			}
			return fmt.Errorf("load leaving member: %w", err)
		}

		now := time.Now()
		if err := tx.Model(&domain.Member{}).Where("id = ?", leaver.ID).
			Updates(map[string]interface{}{
				"left_at":         now,
				"is_host":         false,
				"is_current_turn": false,
			}).Error; err != nil {
			return fmt.Errorf("mark member left: %w", err)
		}
		result.Left = true

		var remaining []domain.Member
		if err := activeMembers(tx, roomID, &remaining); err != nil {
			return err
		}

		if len(remaining) == 0 {
			// 最后一名成员离开，房间删除，成员行级联清除。
			if err := tx.Delete(&domain.Room{}, "id = ?", roomID).Error; err != nil {
				return fmt.Errorf("delete empty room: %w", err)
			}
			result.RoomDeleted = true
			return nil
		}

		if leaver.IsHost {
			// remaining 已按加入时间、行 ID 升序，移交给第一个。
			next := remaining[0]
			if err := tx.Model(&domain.Member{}).Where("id = ?", next.ID).
				Update("is_host", true).Error; err != nil {
				return fmt.Errorf("transfer host: %w", err)
			}
			remaining[0].IsHost = true
			result.NewHost = next.Username
		}
		result.Members = remaining
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("gorm: leave room %q as %q: %w", roomID, username, err)
	}
	return result, nil
}
