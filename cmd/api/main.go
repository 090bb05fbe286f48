package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/wms-platform/task-service/internal/api/handlers"
	"github.com/wms-platform/task-service/internal/application"
	"github.com/wms-platform/task-service/internal/config"
	"github.com/wms-platform/task-service/internal/domain"
	infrakafka "github.com/wms-platform/task-service/internal/infrastructure/kafka"
	pgrepo "github.com/wms-platform/task-service/internal/infrastructure/postgres"
	"github.com/wms-platform/task-service/internal/pkg/auth"
	pkgkafka "github.com/wms-platform/task-service/internal/pkg/kafka"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
	"github.com/wms-platform/task-service/internal/pkg/middleware"
	"github.com/wms-platform/task-service/internal/pkg/postgres"
	"github.com/wms-platform/task-service/internal/realtime"
)

const serviceName = "task-service-api"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	cfg := config.Load()
	logConfig.Level = logging.LogLevel(cfg.LogLevel)
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting task-service API")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// The API server exercises realtime auth; refusing to start without a
	// secret beats silently accepting any token.
	tokens, err := auth.NewTokens(cfg.JWTSecret, cfg.JWTLifetime)
	if err != nil {
		logger.WithError(err).Error("JWT secret is required")
		os.Exit(1)
	}

	pgClient, err := postgres.NewClient(ctx, cfg.Postgres)
	if err != nil {
		logger.WithError(err).Error("Failed to connect to PostgreSQL")
		os.Exit(1)
	}
	defer pgClient.Close()
	logger.Info("Connected to PostgreSQL", "database", cfg.Postgres.Database)

	m := metrics.New(metrics.DefaultConfig(serviceName))

	kafkaConfig := pkgkafka.DefaultConfig()
	kafkaConfig.Brokers = cfg.KafkaBrokers
	kafkaConfig.ClientID = cfg.KafkaClientID

	producer := pkgkafka.NewProducer(kafkaConfig)
	defer producer.Close()
	publisher := infrakafka.NewEventPublisher(producer, m, logger)
	logger.Info("Kafka producer initialized", "brokers", cfg.KafkaBrokers)

	// Repositories
	taskRepo := pgrepo.NewTaskRepository(pgClient)
	operatorRepo := pgrepo.NewOperatorRepository(pgClient)
	laborRepo := pgrepo.NewLaborRepository(pgClient)
	userRepo := pgrepo.NewUserRepository(pgClient)

	// Application services
	taskService := application.NewTaskService(pgClient, taskRepo, operatorRepo, publisher, m, logger)
	operatorService := application.NewOperatorService(operatorRepo, publisher, m, logger)
	laborService := application.NewLaborQueryService(laborRepo, taskRepo)
	authService := application.NewAuthService(userRepo, tokens, logger)
	queue := infrakafka.NewTaskGenQueue(producer)

	// Realtime gateway: every API process consumes the full shared channel
	// through its own group, so each one can fan out to its own sockets.
	realtimeConfig := *kafkaConfig
	realtimeConfig.ConsumerGroup = cfg.KafkaConsumerGroup + "-realtime-" + uuid.NewString()[:8]
	subscriberConsumer := pkgkafka.NewConsumer(&realtimeConfig, logger.Logger)
	subscriber := infrakafka.NewEventSubscriber(subscriberConsumer, logger)

	hub := realtime.NewHub(tokens, publisher, logger)
	subscriber.RegisterHandler(hub.HandleBusEvent)
	go func() {
		if err := subscriber.Start(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("Event subscriber stopped")
		}
	}()

	// Router
	router := gin.New()
	middleware.Setup(router, middleware.DefaultConfig(serviceName, logger.Logger))
	router.Use(m.Middleware())
	router.NoRoute(middleware.NoRoute())
	router.NoMethod(middleware.NoMethod())

	router.GET("/api/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return pgClient.HealthCheck(ctx)
	}))
	router.GET("/metrics", gin.WrapH(m.Handler()))
	router.GET("/ws", hub.HandleWS)

	router.POST("/api/auth/login", handlers.LoginHandler(authService, logger))

	apiGroup := router.Group("/api", middleware.RequireAuth(tokens))
	{
		apiGroup.POST("/order-events", handlers.IngestOrderEventHandler(queue, logger))

		tasks := apiGroup.Group("/tasks")
		{
			tasks.GET("", handlers.ListTasksHandler(taskService, logger))
			tasks.GET("/:taskId", handlers.GetTaskHandler(taskService, logger))
			tasks.POST("/:taskId/start", handlers.TaskActionHandler(taskService, logger, domain.TaskStatusInProgress))
			tasks.POST("/:taskId/complete", handlers.TaskActionHandler(taskService, logger, domain.TaskStatusCompleted))
			tasks.POST("/:taskId/pause", handlers.TaskActionHandler(taskService, logger, domain.TaskStatusPaused))
			tasks.POST("/:taskId/cancel", handlers.TaskActionHandler(taskService, logger, domain.TaskStatusCancelled))
			tasks.PATCH("/:taskId/status", handlers.UpdateTaskStatusHandler(taskService, logger))
		}

		operators := apiGroup.Group("/operators")
		{
			operators.GET("", handlers.ListOperatorsHandler(operatorService, logger))
			operators.GET("/:id", handlers.GetOperatorHandler(operatorService, logger))
			operators.PATCH("/:id/status", handlers.UpdateOperatorStatusHandler(operatorService, logger))
		}

		labor := apiGroup.Group("/labor")
		{
			labor.GET("/overview", handlers.LaborOverviewHandler(laborService, logger))
			labor.GET("/operator-performance", handlers.OperatorPerformanceHandler(laborService, logger))
			labor.GET("/zone-workload", handlers.ZoneWorkloadHandler(laborService, logger))
		}
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Server error")
		}
	}()
	logger.Info("Server started", "addr", cfg.ServerAddr)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Server forced to shutdown")
	}

	cancel()
	hub.Close()
	if err := subscriber.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close event subscriber")
	}

	logger.Info("Server stopped")
}
