package repository

import (
	"context"

	"github.com/brandon0824/DavinciCode/internal/domain"
)

// HistoryRepository 定义了对局历史（审计记录）的追加操作。
// 历史表只追加，协调器的任何读路径都不依赖它；
// 写入在后台任务中完成，失败重试由任务队列负责。
type HistoryRepository interface {
	Append(ctx context.Context, entry *domain.HistoryEntry) error
}
