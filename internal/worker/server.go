package worker

import (
	"context"
	"time"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"github.com/brandon0824/DavinciCode/internal/repository"
	"github.com/brandon0824/DavinciCode/internal/tasks"
)

// Server 封装 asynq worker 的启动与关闭。
type Server struct {
	server      *asynq.Server
	log         *logrus.Entry
	historyRepo repository.HistoryRepository
	roomRepo    repository.RoomRepository
	cache       repository.RoomCache
	retention   time.Duration
}

func NewServer(redisOpt asynq.RedisClientOpt, historyRepo repository.HistoryRepository, roomRepo repository.RoomRepository, cache repository.RoomCache, retention time.Duration, logger *logrus.Logger) *Server {
	logEntry := logger.WithField("component", "worker")

	server := asynq.NewServer(
		redisOpt,
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"critical": 6,
				"default":  3,
				"low":      1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				retryCount, _ := asynq.GetRetryCount(ctx)
				maxRetry, _ := asynq.GetMaxRetry(ctx)
				logEntry.WithFields(logrus.Fields{
					"task_type": task.Type(),
					"retries":   retryCount,
					"max_retry": maxRetry,
				}).Errorf("Task failed: %v", err)
			}),
		},
	)

	return &Server{
		server:      server,
		log:         logEntry,
		historyRepo: historyRepo,
		roomRepo:    roomRepo,
		cache:       cache,
		retention:   retention,
	}
}

// Start 运行 worker，应在单独的 goroutine 中调用。
func (s *Server) Start() {
	mux := asynq.NewServeMux()
	mux.HandleFunc(tasks.TypeHistoryRecord, NewHistoryRecordHandler(s.historyRepo).ProcessTask)
	mux.HandleFunc(tasks.TypeRoomCleanup, NewRoomCleanupHandler(s.roomRepo, s.cache, s.retention).ProcessTask)

	s.log.Info("Worker server starting...")
	if err := s.server.Run(mux); err != nil {
		s.log.Fatalf("Could not run worker server: %v", err)
	}
}

// Shutdown 优雅关闭 worker。
func (s *Server) Shutdown() {
	s.log.Info("Shutting down worker server...")
	s.server.Shutdown()
	s.log.Info("Worker server shut down complete.")
}
