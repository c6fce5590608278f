package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/brandon0824/DavinciCode/internal/domain"
)

// MigrateDB 负责建表。rooms 和 room_players 用自定义 SQL 创建：
// 字符串主键、枚举默认值和复合唯一索引交给 AutoMigrate 时
// 在不同 MySQL 版本上的行为不一致，固定 DDL 更可控。
// game_history 结构简单，交给 AutoMigrate。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	if err := migrateRoomsTable(db); err != nil {
		return fmt.Errorf("failed to migrate rooms table: %w", err)
	}
	if err := migrateRoomPlayersTable(db); err != nil {
		return fmt.Errorf("failed to migrate room_players table: %w", err)
	}

	if err := db.AutoMigrate(&domain.HistoryEntry{}); err != nil {
		return fmt.Errorf("failed to auto-migrate game_history: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}

func tableExists(db *gorm.DB, name string) bool {
	var count int64
	db.Raw("SELECT COUNT(*) FROM information_schema.tables WHERE table_schema = DATABASE() AND table_name = ?", name).Count(&count)
	return count > 0
}

func migrateRoomsTable(db *gorm.DB) error {
	if tableExists(db, "rooms") {
		return nil
	}
	sql := `
	CREATE TABLE rooms (
		id VARCHAR(10) PRIMARY KEY,
		name VARCHAR(100) NOT NULL,
		status ENUM('waiting', 'playing', 'finished') DEFAULT 'waiting',
		max_players INT NOT NULL DEFAULT 4,
		created_at DATETIME(3),
		started_at DATETIME(3) NULL,
		ended_at DATETIME(3) NULL,
		INDEX idx_status (status),
		INDEX idx_created_at (created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
	`
	if err := db.Exec(sql).Error; err != nil {
		return fmt.Errorf("create rooms table: %w", err)
	}
	logrus.Info("Rooms table created")
	return nil
}

func migrateRoomPlayersTable(db *gorm.DB) error {
	if tableExists(db, "room_players") {
		return nil
	}
	// (room_id, username) 唯一键是并发加入的围栏，
	// 外键级联保证删房间时成员行一并清除。
	sql := `
	CREATE TABLE room_players (
		id BIGINT UNSIGNED AUTO_INCREMENT PRIMARY KEY,
		room_id VARCHAR(10) NOT NULL,
		username VARCHAR(50) NOT NULL,
		joined_at DATETIME(3),
		left_at DATETIME(3) NULL,
		is_host BOOLEAN DEFAULT FALSE,
		is_current_turn BOOLEAN DEFAULT FALSE,
		FOREIGN KEY (room_id) REFERENCES rooms(id) ON DELETE CASCADE,
		UNIQUE KEY uniq_room_username (room_id, username),
		INDEX idx_room_id (room_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4 COLLATE=utf8mb4_general_ci;
	`
	if err := db.Exec(sql).Error; err != nil {
		return fmt.Errorf("create room_players table: %w", err)
	}
	logrus.Info("Room players table created")
	return nil
}
