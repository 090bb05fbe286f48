package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/wms-platform/task-service/internal/application"
	"github.com/wms-platform/task-service/internal/config"
	"github.com/wms-platform/task-service/internal/domain/taskgen"
	infrakafka "github.com/wms-platform/task-service/internal/infrastructure/kafka"
	pgrepo "github.com/wms-platform/task-service/internal/infrastructure/postgres"
	pkgkafka "github.com/wms-platform/task-service/internal/pkg/kafka"
	"github.com/wms-platform/task-service/internal/pkg/logging"
	"github.com/wms-platform/task-service/internal/pkg/metrics"
	"github.com/wms-platform/task-service/internal/pkg/middleware"
	"github.com/wms-platform/task-service/internal/pkg/postgres"
	"github.com/wms-platform/task-service/internal/workers/assignment"
	"github.com/wms-platform/task-service/internal/workers/generation"
	"github.com/wms-platform/task-service/internal/workers/laborstats"
)

const serviceName = "task-service-worker"

func main() {
	logConfig := logging.DefaultConfig(serviceName)
	cfg := config.Load()
	logConfig.Level = logging.LogLevel(cfg.LogLevel)
	logger := logging.New(logConfig)
	logger.SetDefault()

	logger.Info("Starting task-service workers")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

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
	kafkaConfig.ConsumerGroup = cfg.KafkaConsumerGroup
	kafkaConfig.ClientID = cfg.KafkaClientID

	producer := pkgkafka.NewProducer(kafkaConfig)
	defer producer.Close()
	publisher := infrakafka.NewEventPublisher(producer, m, logger)
	logger.Info("Kafka producer initialized", "brokers", cfg.KafkaBrokers)

	// Repositories
	taskRepo := pgrepo.NewTaskRepository(pgClient)
	operatorRepo := pgrepo.NewOperatorRepository(pgClient)
	eventRepo := pgrepo.NewEventRepository(pgClient)
	laborRepo := pgrepo.NewLaborRepository(pgClient)

	// Task-generation queue consumer
	generationOpts := taskgen.Options{
		PickBaseSeconds:       cfg.TaskGen.PickBaseSeconds,
		PickPerUnitSeconds:    cfg.TaskGen.PickPerUnitSeconds,
		PutawayBaseSeconds:    cfg.TaskGen.PutawayBaseSeconds,
		PutawayPerUnitSeconds: cfg.TaskGen.PutawayPerUnitSeconds,
		PutawayPriority:       cfg.TaskGen.PutawayPriority,
	}
	generationService := application.NewGenerationService(pgClient, eventRepo, taskRepo, generationOpts, logger)
	generationConsumer := generation.NewConsumer(generationService, m, logger)

	queueConsumer := pkgkafka.NewConsumer(kafkaConfig, logger.Logger)
	queueConsumer.Subscribe(pkgkafka.Topics.TaskGenJobs, generationConsumer.Handle)
	go func() {
		if err := queueConsumer.Start(ctx); err != nil && ctx.Err() == nil {
			logger.WithError(err).Error("Queue consumer stopped")
		}
	}()

	// Assignment loop
	assignmentWorker := assignment.NewWorker(pgClient, taskRepo, operatorRepo, publisher, m, logger, assignment.Config{
		Interval:  cfg.Assignment.Interval,
		BatchSize: cfg.Assignment.BatchSize,
	})
	assignmentWorker.Start(ctx)

	// Nightly labor metrics aggregation
	aggregator := laborstats.NewAggregator(laborRepo, operatorRepo, m, logger, laborstats.Config{
		RunHour:      cfg.Metrics.RunHour,
		RunMinute:    cfg.Metrics.RunMinute,
		RunOnStartup: cfg.Metrics.RunOnStartup,
	})
	aggregator.Start(ctx)

	// Operational endpoints only; the API server owns the public surface.
	router := gin.New()
	router.Use(middleware.Recovery(logger.Logger))
	router.GET("/health", middleware.HealthCheck(serviceName))
	router.GET("/ready", middleware.ReadinessCheck(serviceName, func() error {
		return pgClient.HealthCheck(ctx)
	}))
	router.GET("/metrics", gin.WrapH(m.Handler()))

	srv := &http.Server{
		Addr:        getEnv("WORKER_ADDR", ":8081"),
		Handler:     router,
		ReadTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Error("Worker HTTP server error")
		}
	}()
	logger.Info("Workers started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down workers...")

	cancel()
	assignmentWorker.Stop()
	aggregator.Stop()
	if err := queueConsumer.Close(); err != nil {
		logger.WithError(err).Warn("Failed to close queue consumer")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("Worker HTTP server forced to shutdown")
	}

	logger.Info("Workers stopped")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
