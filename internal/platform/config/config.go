package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends for survey aggregates.
const (
	StoreMemory   = "memory"
	StorePostgres = "postgres"
	StoreMongo    = "mongo"
)

// Config is the process configuration assembled from the environment.
type Config struct {
	Server   Server
	LogLevel string
	Postgres PostgresConfig
	Redis    RedisConfig
	Mongo    MongoConfig
	Kafka    KafkaConfig
	Outbox   OutboxConfig
	Survey   SurveyConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string
	ShutdownTimeout time.Duration
}

type PostgresConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig configures the survey read-through cache. An empty URL
// disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// KafkaConfig configures outbox relaying. No brokers means events stay in
// the outbox table.
type KafkaConfig struct {
	Brokers     []string
	EventsTopic string
	Partitions  int32
	Replicas    int16
}

type OutboxConfig struct {
	PollInterval time.Duration
	BatchSize    int
}

type SurveyConfig struct {
	Store          string
	ResponseTTL    time.Duration
	SweepInterval  time.Duration
	MaxSaveRetries int
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() (Config, error) {
	var errs []string
	durationEnv := func(key string, def time.Duration) time.Duration {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid duration %q", key, raw))
			return def
		}
		return d
	}
	intEnv := func(key string, def int) int {
		raw := os.Getenv(key)
		if raw == "" {
			return def
		}
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			errs = append(errs, fmt.Sprintf("%s: invalid integer %q", key, raw))
			return def
		}
		return n
	}

	cfg := Config{
		Server: Server{
			Addr:            envOr("WELFARE_ADDR", ":8080"),
			ShutdownTimeout: durationEnv("SHUTDOWN_TIMEOUT", 10*time.Second),
		},
		LogLevel: envOr("LOG_LEVEL", "info"),
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    intEnv("DATABASE_MAX_OPEN_CONNS", 20),
			MaxIdleConns:    intEnv("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: durationEnv("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     intEnv("REDIS_POOL_SIZE", 10),
			MinIdleConns: intEnv("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  durationEnv("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  durationEnv("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: durationEnv("REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     durationEnv("SURVEY_CACHE_TTL", 5*time.Minute),
		},
		Mongo: MongoConfig{
			URI:      os.Getenv("MONGO_URI"),
			Database: envOr("MONGO_DATABASE", "welfare"),
			Timeout:  durationEnv("MONGO_TIMEOUT", 10*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:     splitList(os.Getenv("KAFKA_BROKERS")),
			EventsTopic: envOr("SURVEY_EVENTS_TOPIC", "survey.events"),
			Partitions:  int32(intEnv("SURVEY_EVENTS_PARTITIONS", 3)),
			Replicas:    int16(intEnv("SURVEY_EVENTS_REPLICAS", 1)),
		},
		Outbox: OutboxConfig{
			PollInterval: durationEnv("OUTBOX_POLL_INTERVAL", time.Second),
			BatchSize:    intEnv("OUTBOX_BATCH_SIZE", 100),
		},
		Survey: SurveyConfig{
			Store:          strings.ToLower(envOr("SURVEY_STORE", StoreMemory)),
			ResponseTTL:    durationEnv("SURVEY_RESPONSE_TTL", 72*time.Hour),
			SweepInterval:  durationEnv("SURVEY_SWEEP_INTERVAL", 5*time.Minute),
			MaxSaveRetries: intEnv("SURVEY_MAX_SAVE_RETRIES", 3),
		},
	}

	switch cfg.Survey.Store {
	case StoreMemory:
	case StorePostgres:
		if cfg.Postgres.URL == "" {
			errs = append(errs, "DATABASE_URL is required when SURVEY_STORE=postgres")
		}
	case StoreMongo:
		if cfg.Mongo.URI == "" {
			errs = append(errs, "MONGO_URI is required when SURVEY_STORE=mongo")
		}
	default:
		errs = append(errs, fmt.Sprintf("SURVEY_STORE: unknown backend %q", cfg.Survey.Store))
	}
	if len(cfg.Kafka.Brokers) > 0 && cfg.Postgres.URL == "" {
		errs = append(errs, "KAFKA_BROKERS requires DATABASE_URL for the outbox")
	}
	if cfg.Outbox.BatchSize == 0 {
		errs = append(errs, "OUTBOX_BATCH_SIZE must be positive")
	}

	if len(errs) > 0 {
		return Config{}, fmt.Errorf("invalid configuration: %s", strings.Join(errs, "; "))
	}
	return cfg, nil
}

func envOr(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
