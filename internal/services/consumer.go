package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"chatserver/internal/config"
	"chatserver/internal/models"
	"chatserver/pkg/logger"
	"github.com/hibiken/asynq"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// DeliveryProcessor turns one queued auto-message into a real conversation
// message. It reloads the job row before doing anything, so a redelivered
// task whose job already completed is discarded instead of producing a
// duplicate message. IsSent is flipped last: a crash mid-delivery leaves the
// job redeliverable, never silently lost.
type DeliveryProcessor struct {
	db            *gorm.DB
	users         *UserService
	conversations *ConversationService
	messages      *MessageService
	relay         *Relay
	log           zerolog.Logger
}

func NewDeliveryProcessor(
	db *gorm.DB,
	users *UserService,
	conversations *ConversationService,
	messages *MessageService,
	relay *Relay,
) *DeliveryProcessor {
	return &DeliveryProcessor{
		db:            db,
		users:         users,
		conversations: conversations,
		messages:      messages,
		relay:         relay,
		log:           logger.Module("consumer"),
	}
}

// Process handles one delivery task. A returned error means the queue should
// redeliver; a nil return consumes the task.
func (p *DeliveryProcessor) Process(ctx context.Context, task *AutoMessageTask) error {
	var job models.AutoMessage
	err := p.db.WithContext(ctx).First(&job, task.AutoMessageID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			p.log.Warn().Uint("auto_message_id", task.AutoMessageID).Msg("job vanished, discarding task")
			return nil
		}
		return err
	}

	if job.IsSent {
		p.log.Info().Uint("auto_message_id", job.ID).Msg("job already sent, skipping")
		return nil
	}

	var conversationID uint
	if job.ConversationID != nil && *job.ConversationID != 0 {
		conversationID = *job.ConversationID
	} else {
		conv, err := p.conversations.FindOrCreateByParticipants(ctx, []uint{job.SenderID, job.ReceiverID}, job.SenderID)
		if err != nil {
			return fmt.Errorf("resolve conversation for job %d: %w", job.ID, err)
		}
		conversationID = conv.ID
	}

	msg, err := p.messages.Create(ctx, conversationID, job.SenderID, job.Content)
	if err != nil {
		return fmt.Errorf("create message for job %d: %w", job.ID, err)
	}

	// Returned so the queue redelivers with the job still unsent; the
	// duplicate message on retry is preferable to a conversation whose
	// preview silently falls behind.
	if err := p.conversations.UpdateLastMessage(ctx, conversationID, msg.ID); err != nil {
		return fmt.Errorf("update last message for job %d: %w", job.ID, err)
	}

	senderUsername := "System"
	if sender, err := p.users.FindByID(ctx, job.SenderID, false); err == nil {
		senderUsername = sender.Username
	}

	err = p.relay.PublishRoom(ctx, conversationID, RelayEvent{
		Event: EventMessageReceived,
		Payload: map[string]interface{}{
			"id":             msg.ID,
			"conversationId": msg.ConversationID,
			"senderId":       msg.SenderID,
			"content":        msg.Content,
			"createdAt":      msg.CreatedAt,
			"username":       senderUsername,
		},
	})
	if err != nil {
		p.log.Error().Err(err).Uint("auto_message_id", job.ID).Msg("relay publish failed")
	}

	err = p.db.WithContext(ctx).Model(&models.AutoMessage{}).
		Where("id = ?", job.ID).
		Update("is_sent", true).Error
	if err != nil {
		return fmt.Errorf("mark job %d sent: %w", job.ID, err)
	}

	p.log.Info().Uint("auto_message_id", job.ID).Uint("message_id", msg.ID).Msg("auto message delivered")
	return nil
}

// Worker consumes delivery tasks from the Redis queue.
type Worker struct {
	server    *asynq.Server
	mux       *asynq.ServeMux
	processor func(context.Context, *AutoMessageTask) error
	log       zerolog.Logger

	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

func NewWorker(cfg *config.RedisConfig, processor func(context.Context, *AutoMessageTask) error) *Worker {
	log := logger.Module("worker")

	server := asynq.NewServer(
		asynq.RedisClientOpt{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		},
		asynq.Config{
			Concurrency: 10,
			Queues: map[string]int{
				"default": 1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Error().Err(err).Str("type", task.Type()).Msg("task processing error")
			}),
		},
	)

	return &Worker{
		server:    server,
		mux:       asynq.NewServeMux(),
		processor: processor,
		log:       log,
	}
}

func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	w.mux.HandleFunc(TaskTypeAutoMessage, w.handleTask)

	w.running = true
	w.wg.Add(1)

	go func() {
		defer w.wg.Done()
		w.log.Info().Msg("delivery worker starting")
		if err := w.server.Run(w.mux); err != nil {
			w.log.Error().Err(err).Msg("worker server stopped")
		}
	}()

	return nil
}

func (w *Worker) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return
	}

	w.server.Shutdown()
	w.running = false
	w.wg.Wait()
	w.log.Info().Msg("delivery worker stopped")
}

func (w *Worker) handleTask(ctx context.Context, t *asynq.Task) error {
	var task AutoMessageTask
	if err := json.Unmarshal(t.Payload(), &task); err != nil {
		w.log.Error().Err(err).Msg("malformed task payload")
		return err
	}
	return w.processor(ctx, &task)
}
