package services

import (
	"context"
	"encoding/json"

	"chatserver/internal/config"
	"chatserver/pkg/logger"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
)

const TaskTypeAutoMessage = "automessage:deliver"

// AutoMessageTask is the queue payload for one scheduled delivery. It only
// carries the job id; the consumer reloads the job row so that delivery
// decisions are always made against current state, not the state at enqueue
// time.
type AutoMessageTask struct {
	AutoMessageID uint `json:"auto_message_id"`
}

// AutoMessageQueue hands scheduled messages to the delivery worker. The
// dispatcher and the consumer share nothing but the job record and this
// queue.
type AutoMessageQueue interface {
	Enqueue(ctx context.Context, task *AutoMessageTask) error
	Close() error
}

// AsynqQueue implements AutoMessageQueue on a Redis-backed durable queue.
// Tasks survive process restarts and are redelivered on handler error.
type AsynqQueue struct {
	client *asynq.Client
	log    zerolog.Logger
}

func NewAsynqQueue(cfg *config.RedisConfig) (*AsynqQueue, error) {
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

	return &AsynqQueue{
		client: client,
		log:    logger.Module("queue"),
	}, nil
}

func (q *AsynqQueue) Enqueue(ctx context.Context, task *AutoMessageTask) error {
	payload, err := json.Marshal(task)
	if err != nil {
		return err
	}

	t := asynq.NewTask(TaskTypeAutoMessage, payload)
	info, err := q.client.EnqueueContext(ctx, t,
		asynq.Queue("default"),
		asynq.MaxRetry(3),
	)
	if err != nil {
		return err
	}

	q.log.Info().Str("task_id", info.ID).Uint("auto_message_id", task.AutoMessageID).Msg("task enqueued")
	return nil
}

func (q *AsynqQueue) Close() error {
	return q.client.Close()
}

// SyncQueue runs deliveries inline against an injected processor. It keeps
// the dispatcher usable without Redis and gives tests a deterministic queue.
type SyncQueue struct {
	processor func(context.Context, *AutoMessageTask) error
}

func NewSyncQueue(processor func(context.Context, *AutoMessageTask) error) *SyncQueue {
	return &SyncQueue{processor: processor}
}

func (q *SyncQueue) Enqueue(ctx context.Context, task *AutoMessageTask) error {
	if q.processor == nil {
		return nil
	}
	return q.processor(ctx, task)
}

func (q *SyncQueue) Close() error {
	return nil
}
