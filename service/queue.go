package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"make-comics-server/config"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

const TypeArchivePage = "page:archive"

type ArchivePayload struct {
	PageID string `json:"page_id"`
}

// Queue enqueues background jobs on asynq.
type Queue struct {
	client *asynq.Client
	logger *zap.Logger
}

// RedisClientOpt is the asynq connection built from config.AppConfig.
func RedisClientOpt() asynq.RedisClientOpt {
	return asynq.RedisClientOpt{
		Addr:     config.AppConfig.Redis.Addr,
		Password: config.AppConfig.Redis.Password,
		DB:       config.AppConfig.Redis.DB,
	}
}

func NewQueue(opt asynq.RedisConnOpt, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Queue{client: asynq.NewClient(opt), logger: logger.Named("Queue")}
}

func NewArchiveTask(pageID string) (*asynq.Task, error) {
	payload, err := json.Marshal(ArchivePayload{PageID: pageID})
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return asynq.NewTask(TypeArchivePage, payload,
		asynq.MaxRetry(3),
		asynq.Timeout(5*time.Minute),
		asynq.Retention(24*time.Hour),
	), nil
}

// EnqueueArchivePage schedules copying the page's generated image into object storage.
func (q *Queue) EnqueueArchivePage(ctx context.Context, pageID string) error {
	task, err := NewArchiveTask(pageID)
	if err != nil {
		return err
	}
	info, err := q.client.EnqueueContext(ctx, task)
	if err != nil {
		return fmt.Errorf("enqueue archive: %w", err)
	}
	q.logger.Debug("archive enqueued", zap.String("page_id", pageID), zap.String("task_id", info.ID))
	return nil
}

func (q *Queue) Close() error {
	return q.client.Close()
}
