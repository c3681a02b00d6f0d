package services

import (
	"context"
	"math/rand"
	"time"

	"chatserver/internal/config"
	"chatserver/internal/models"
	"chatserver/pkg/logger"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

var starterMessages = []string{
	"Hello! How are you?",
	"What did you do today?",
	"Hope you had a great day.",
	"Tell me a little about yourself.",
	"What's your favorite hobby?",
	"What kind of music do you like to listen to?",
	"What motivates you most in life?",
	"Did you learn anything interesting today?",
	"What are your plans for the future?",
	"How can I help you?",
}

// Scheduler runs the two auto-message cron jobs: nightly planning, which
// pairs up active users and writes pending jobs, and the per-minute
// dispatcher, which moves due jobs onto the delivery queue. It never touches
// the delivery side beyond enqueueing; the consumer owns everything after
// that.
type Scheduler struct {
	db    *gorm.DB
	users *UserService
	queue AutoMessageQueue
	cfg   *config.SchedulerConfig
	cron  *cron.Cron
	log   zerolog.Logger

	sendDelay time.Duration
}

func NewScheduler(db *gorm.DB, users *UserService, queue AutoMessageQueue, cfg *config.SchedulerConfig) (*Scheduler, error) {
	delay, err := time.ParseDuration(cfg.SendDelay)
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		db:        db,
		users:     users,
		queue:     queue,
		cfg:       cfg,
		cron:      cron.New(),
		log:       logger.Module("scheduler"),
		sendDelay: delay,
	}, nil
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc(s.cfg.PlanningCron, func() {
		if err := s.PlanDailyMatches(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("planning run failed")
		}
	}); err != nil {
		return err
	}

	if _, err := s.cron.AddFunc(s.cfg.DispatchCron, func() {
		if err := s.DispatchDue(context.Background()); err != nil {
			s.log.Error().Err(err).Msg("dispatch run failed")
		}
	}); err != nil {
		return err
	}

	s.cron.Start()
	s.log.Info().
		Str("planning", s.cfg.PlanningCron).
		Str("dispatch", s.cfg.DispatchCron).
		Msg("scheduler started")
	return nil
}

// Stop halts the cron loop and waits for any running job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.log.Info().Msg("scheduler stopped")
}

// PlanDailyMatches shuffles all active users into disjoint pairs and writes
// one pending job per pair. With an odd count the leftover user is skipped
// this round. Each job's send date is the configured delay from now.
func (s *Scheduler) PlanDailyMatches(ctx context.Context) error {
	users, err := s.users.ListActive(ctx)
	if err != nil {
		return err
	}
	if len(users) < 2 {
		s.log.Warn().Int("active_users", len(users)).Msg("not enough active users to form pairs")
		return nil
	}

	rand.Shuffle(len(users), func(i, j int) {
		users[i], users[j] = users[j], users[i]
	})

	sendDate := time.Now().Add(s.sendDelay)
	planned := 0

	for i := 0; i+1 < len(users); i += 2 {
		sender, receiver := users[i], users[i+1]

		job := models.AutoMessage{
			Trigger:    models.TriggerDailyMatch,
			Content:    starterMessages[rand.Intn(len(starterMessages))],
			SendDate:   sendDate,
			IsQueued:   false,
			IsSent:     false,
			SenderID:   sender.ID,
			ReceiverID: receiver.ID,
			CreatedBy:  sender.ID,
		}
		if err := s.db.WithContext(ctx).Create(&job).Error; err != nil {
			s.log.Error().Err(err).
				Uint("sender_id", sender.ID).
				Uint("receiver_id", receiver.ID).
				Msg("failed to plan auto message")
			continue
		}
		planned++
	}

	s.log.Info().Int("planned", planned).Time("send_date", sendDate).Msg("planning run finished")
	return nil
}

// DispatchDue enqueues every job that is due and neither queued nor sent,
// then flips its queued flag. A job whose enqueue fails keeps is_queued
// false and is retried on the next tick; a crash between enqueue and flag
// flip can enqueue the same job twice, which the consumer's sent check
// absorbs.
func (s *Scheduler) DispatchDue(ctx context.Context) error {
	var due []models.AutoMessage
	err := s.db.WithContext(ctx).
		Where("send_date <= ? AND is_queued = ? AND is_sent = ? AND deleted_at IS NULL",
			time.Now(), false, false).
		Find(&due).Error
	if err != nil {
		return err
	}
	if len(due) == 0 {
		return nil
	}

	dispatched := 0
	for _, job := range due {
		if err := s.queue.Enqueue(ctx, &AutoMessageTask{AutoMessageID: job.ID}); err != nil {
			s.log.Error().Err(err).Uint("auto_message_id", job.ID).Msg("enqueue failed")
			continue
		}

		err := s.db.WithContext(ctx).Model(&models.AutoMessage{}).
			Where("id = ?", job.ID).
			Update("is_queued", true).Error
		if err != nil {
			s.log.Error().Err(err).Uint("auto_message_id", job.ID).Msg("failed to mark job queued")
			continue
		}
		dispatched++
	}

	s.log.Info().Int("dispatched", dispatched).Int("due", len(due)).Msg("dispatch run finished")
	return nil
}
