package main

import (
	"context"

	"chatserver/internal/config"
	"chatserver/internal/handlers"
	"chatserver/internal/models"
	"chatserver/internal/services"
	"chatserver/internal/utils"
	"chatserver/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// appServices holds all initialized services and handlers needed by the application.
type appServices struct {
	rdb       *redis.Client
	relay     *services.Relay
	hub       *services.Hub
	queue     services.AutoMessageQueue
	worker    *services.Worker
	scheduler *services.Scheduler

	authHandler         *handlers.AuthHandler
	userHandler         *handlers.UserHandler
	conversationHandler *handlers.ConversationHandler
	socket              *services.ChatSocket

	revocations *services.RevocationStore
	users       *services.UserService
}

// bootstrap initializes all application dependencies: database, Redis,
// the relay, schedulers and the delivery worker.
func bootstrap(cfg *config.Config) *appServices {
	utils.SetTokenSecrets(cfg.JWT.AccessSecret, cfg.JWT.RefreshSecret)

	if err := models.InitDB(&cfg.Database); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	if err := models.AutoMigrate(); err != nil {
		logger.Fatalf("Failed to migrate database: %v", err)
	}
	db := models.GetDB()

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		logger.Fatalf("Failed to connect to Redis: %v", err)
	}

	revocations := services.NewRevocationStore(rdb)
	presence := services.NewPresenceStore(rdb)
	userService := services.NewUserService(db)
	conversationService := services.NewConversationService(db)
	messageService := services.NewMessageService(db)
	tokenService := services.NewTokenService(db, revocations, &cfg.JWT)
	authService := services.NewAuthService(userService, tokenService)

	hub := services.NewHub()
	relay := services.NewRelay(rdb, hub.Dispatch)
	if err := relay.Start(context.Background()); err != nil {
		logger.Fatalf("Failed to start relay: %v", err)
	}

	socket := services.NewChatSocket(hub, relay, presence, revocations, userService, conversationService, messageService)

	queue, err := services.NewAsynqQueue(&cfg.Redis)
	if err != nil {
		logger.Fatalf("Failed to initialize task queue: %v", err)
	}

	processor := services.NewDeliveryProcessor(db, userService, conversationService, messageService, relay)
	worker := services.NewWorker(&cfg.Redis, processor.Process)
	if err := worker.Start(); err != nil {
		logger.Fatalf("Failed to start delivery worker: %v", err)
	}

	scheduler, err := services.NewScheduler(db, userService, queue, &cfg.Scheduler)
	if err != nil {
		logger.Fatalf("Failed to initialize scheduler: %v", err)
	}
	if err := scheduler.Start(); err != nil {
		logger.Fatalf("Failed to start scheduler: %v", err)
	}

	return &appServices{
		rdb:                 rdb,
		relay:               relay,
		hub:                 hub,
		queue:               queue,
		worker:              worker,
		scheduler:           scheduler,
		authHandler:         handlers.NewAuthHandler(authService),
		userHandler:         handlers.NewUserHandler(userService, presence),
		conversationHandler: handlers.NewConversationHandler(conversationService, messageService, userService, relay),
		socket:              socket,
		revocations:         revocations,
		users:               userService,
	}
}

// shutdown gracefully stops all services.
func (s *appServices) shutdown() {
	s.scheduler.Stop()
	s.worker.Stop()
	if err := s.queue.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close task queue")
	}
	if err := s.relay.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close relay")
	}
	if err := s.rdb.Close(); err != nil {
		logger.Warn().Err(err).Msg("Failed to close Redis client")
	}
	logger.Info().Msg("All services stopped")
}
