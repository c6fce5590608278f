package repository

import "errors"

// 通用的存储层错误。GORM / Redis 实现负责把驱动错误
// （gorm.ErrRecordNotFound、MySQL 1062、redis.Nil 等）翻译成这些哨兵值，
// 上层通过 errors.Is 判断，不接触具体驱动。
var (
	// ErrNotFound 表示请求的记录未找到（对缓存实现来说等价于 miss）。
	ErrNotFound = errors.New("repository: record not found")
	// ErrDuplicateEntry 表示写入违反了唯一约束。
	ErrDuplicateEntry = errors.New("repository: duplicate entry")
)

// 约束性写入的失败原因。加入/开局是在数据库事务内完成校验的
// 复合操作，这些错误描述的是由存储层仲裁出的结果。
var (
	// ErrRoomClosed 表示房间状态不是 waiting，不再接受加入或开局。
	ErrRoomClosed = errors.New("repository: room not accepting members")
	// ErrRoomFull 表示活跃成员数已达到房间上限。
	ErrRoomFull = errors.New("repository: room capacity reached")
	// ErrNotHost 表示请求者不是当前房主。
	ErrNotHost = errors.New("repository: requester is not the host")
	// ErrTooFewMembers 表示活跃成员不足，无法开局。
	ErrTooFewMembers = errors.New("repository: not enough members")
)

// 特定资源的别名，便于调用点表达意图。
var (
	ErrRoomNotFound   = ErrNotFound
	ErrMemberNotFound = ErrNotFound
)
