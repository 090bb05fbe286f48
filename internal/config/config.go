package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/wms-platform/task-service/internal/pkg/postgres"
)

// Config holds the full process configuration, loaded from environment
// variables with defaults suitable for local development.
type Config struct {
	ServerAddr string
	LogLevel   string

	Postgres *postgres.Config

	KafkaBrokers       []string
	KafkaConsumerGroup string
	KafkaClientID      string

	JWTSecret   string
	JWTLifetime time.Duration
	BcryptCost  int

	TaskGen    TaskGenConfig
	Assignment AssignmentConfig
	Metrics    MetricsConfig
}

// TaskGenConfig holds task generation tunables
type TaskGenConfig struct {
	PickBaseSeconds       int
	PickPerUnitSeconds    int
	PutawayBaseSeconds    int
	PutawayPerUnitSeconds int
	PutawayPriority       int
}

// AssignmentConfig holds assignment worker tunables
type AssignmentConfig struct {
	Interval  time.Duration
	BatchSize int
}

// MetricsConfig holds labor metrics scheduler tunables
type MetricsConfig struct {
	RunHour      int
	RunMinute    int
	RunOnStartup bool
}

// Load reads configuration from the environment
func Load() *Config {
	pg := postgres.DefaultConfig()
	pg.Host = getEnv("DB_HOST", pg.Host)
	pg.Port = getEnvInt("DB_PORT", pg.Port)
	pg.Database = getEnv("DB_NAME", pg.Database)
	pg.User = getEnv("DB_USER", pg.User)
	pg.Password = getEnv("DB_PASSWORD", "")
	pg.SSLMode = getEnv("DB_SSLMODE", pg.SSLMode)
	pg.MaxConns = int32(getEnvInt("DB_MAX_CONNS", int(pg.MaxConns)))

	return &Config{
		ServerAddr: getEnv("SERVER_ADDR", ":8080"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),

		Postgres: pg,

		KafkaBrokers:       strings.Split(getEnv("KAFKA_BROKERS", "localhost:9092"), ","),
		KafkaConsumerGroup: getEnv("KAFKA_CONSUMER_GROUP", "task-service"),
		KafkaClientID:      getEnv("KAFKA_CLIENT_ID", "task-service"),

		JWTSecret:   getEnv("JWT_SECRET", ""),
		JWTLifetime: getEnvDuration("JWT_LIFETIME", 8*time.Hour),
		BcryptCost:  getEnvInt("BCRYPT_COST", 12),

		TaskGen: TaskGenConfig{
			PickBaseSeconds:       getEnvInt("TASKGEN_PICK_BASE_SECONDS", 90),
			PickPerUnitSeconds:    getEnvInt("TASKGEN_PICK_PER_UNIT_SECONDS", 12),
			PutawayBaseSeconds:    getEnvInt("TASKGEN_PUTAWAY_BASE_SECONDS", 75),
			PutawayPerUnitSeconds: getEnvInt("TASKGEN_PUTAWAY_PER_UNIT_SECONDS", 10),
			PutawayPriority:       getEnvInt("TASKGEN_PUTAWAY_PRIORITY", 60),
		},
		Assignment: AssignmentConfig{
			Interval:  getEnvDuration("ASSIGNMENT_INTERVAL", 10*time.Second),
			BatchSize: getEnvInt("ASSIGNMENT_BATCH_SIZE", 200),
		},
		Metrics: MetricsConfig{
			RunHour:      getEnvInt("METRICS_RUN_HOUR", 23),
			RunMinute:    getEnvInt("METRICS_RUN_MINUTE", 59),
			RunOnStartup: getEnvBool("METRICS_RUN_ON_STARTUP", false),
		},
	}
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
