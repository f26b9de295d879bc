package services

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/sudo-adi/bs-server-sub001/internal/config"
	"github.com/sudo-adi/bs-server-sub001/pkg/logger"
)

const (
	TaskTypeProfileReindex = "profile:reindex"
)

// ReindexTask asks for a batch of profiles to be pushed to the search index.
type ReindexTask struct {
	ProfileIDs []string `json:"profile_ids"`
	Cause      string   `json:"cause"`
}

// TaskProcessor handles one reindex task.
type TaskProcessor func(context.Context, *ReindexTask) error

// TaskQueue defines the interface for background profile reindexing
type TaskQueue interface {
	// Enqueue adds a task to the queue
	Enqueue(task *ReindexTask) error
	// IsAsync returns true if queue processes tasks asynchronously
	IsAsync() bool
	// Close gracefully shuts down the queue
	Close() error
}

// NewTaskQueue picks the async queue when Redis is enabled and reachable,
// otherwise the in-process queue.
func NewTaskQueue(cfg *config.Config) TaskQueue {
	if !cfg.Redis.Enabled {
		logger.Infof("[TaskQueue] Sync queue initialized (Redis disabled)")
		return NewSyncQueue()
	}
	queue, err := NewAsyncQueue(&cfg.Redis)
	if err != nil {
		logger.Warnf("[TaskQueue] Redis unavailable, falling back to sync mode: %v", err)
		return NewSyncQueue()
	}
	logger.Infof("[TaskQueue] Async queue initialized with Redis at %s", cfg.Redis.Addr)
	return queue
}

// AsyncQueue implements TaskQueue using asynq (Redis-based)
type AsyncQueue struct {
	client *asynq.Client
}

// NewAsyncQueue creates a new Redis-based async queue
func NewAsyncQueue(cfg *config.RedisConfig) (*AsyncQueue, error) {
	redisOpt := asynq.RedisClientOpt{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}

	client := asynq.NewClient(redisOpt)

	inspector := asynq.NewInspector(redisOpt)
	defer inspector.Close()

	if _, err := inspector.Queues(); err != nil {
		client.Close()
		return nil, err
	}

	return &AsyncQueue{client: client}, nil
}

func (q *AsyncQueue) Enqueue(task *ReindexTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	info, err := q.client.Enqueue(asynq.NewTask(TaskTypeProfileReindex, payload),
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	logger.Debug().Str("task_id", info.ID).Int("profiles", len(task.ProfileIDs)).Msg("Reindex task enqueued")
	return nil
}

func (q *AsyncQueue) IsAsync() bool {
	return true
}

func (q *AsyncQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs tasks in-process on a goroutine (no Redis)
type SyncQueue struct {
	processor TaskProcessor
}

func NewSyncQueue() *SyncQueue {
	return &SyncQueue{}
}

// SetProcessor sets the function to process tasks
func (q *SyncQueue) SetProcessor(processor TaskProcessor) {
	q.processor = processor
}

// Enqueue processes the task on its own goroutine so the caller never waits
// on the search index.
func (q *SyncQueue) Enqueue(task *ReindexTask) error {
	if q.processor == nil {
		logger.Debug().Msg("[SyncQueue] no processor set, reindex task dropped")
		return nil
	}

	go func() {
		if err := q.processor(context.Background(), task); err != nil {
			logger.Warnf("[SyncQueue] Reindex task failed: %v", err)
		}
	}()

	return nil
}

func (q *SyncQueue) IsAsync() bool {
	return false
}

func (q *SyncQueue) Close() error {
	return nil
}
