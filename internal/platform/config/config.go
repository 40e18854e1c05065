package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config is the full runtime configuration of the intake server.
type Config struct {
	Server   Server
	Catalog  Catalog
	Postgres PostgresConfig
	Redis    RedisConfig
	Kafka    KafkaConfig
	Drafts   DraftConfig
}

// Server captures HTTP server level configuration.
type Server struct {
	Addr            string        `validate:"required"`
	Environment     string        `validate:"oneof=development production test"`
	LogFormat       string        `validate:"oneof=text json"`
	LogLevel        string        `validate:"oneof=debug info warn error"`
	ShutdownTimeout time.Duration `validate:"gt=0"`
	// PDFBaseURL makes PDF export links absolute. Empty keeps them relative.
	PDFBaseURL string `validate:"omitempty,url"`
}

// Catalog points at the service catalog file.
type Catalog struct {
	Path string `validate:"required"`
}

// PostgresConfig is optional; an empty URL selects in-memory stores.
type PostgresConfig struct {
	URL             string
	MaxOpenConns    int `validate:"gte=0"`
	MaxIdleConns    int `validate:"gte=0"`
	ConnMaxLifetime time.Duration
	Migrate         bool
}

// RedisConfig is optional; an empty URL keeps drafts in process.
type RedisConfig struct {
	URL          string
	PoolSize     int `validate:"gte=0"`
	MinIdleConns int `validate:"gte=0"`
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// KafkaConfig enables publishing audit events when Brokers is set.
type KafkaConfig struct {
	Brokers    []string
	AuditTopic string `validate:"required_with=Brokers"`
	Partitions int32  `validate:"gte=1"`
}

// DraftConfig controls how long untouched drafts live.
type DraftConfig struct {
	TTL time.Duration `validate:"gte=0"`
}

// Enabled reports whether audit events go to Kafka.
func (k KafkaConfig) Enabled() bool {
	return len(k.Brokers) > 0
}

var validate = validator.New()

// FromEnv builds a Config from environment variables so main stays lean. A .env
// file in the working directory is loaded first when present; variables already
// set in the environment win.
func FromEnv() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Config{
		Server: Server{
			Addr:            getEnv("INTAKE_ADDR", ":8080"),
			Environment:     getEnv("INTAKE_ENV", "development"),
			LogFormat:       getEnv("LOG_FORMAT", ""),
			LogLevel:        strings.ToLower(getEnv("LOG_LEVEL", "info")),
			ShutdownTimeout: getDuration("SHUTDOWN_TIMEOUT", 10*time.Second),
			PDFBaseURL:      os.Getenv("PDF_BASE_URL"),
		},
		Catalog: Catalog{
			Path: getEnv("CATALOG_PATH", "configs/catalog.yaml"),
		},
		Postgres: PostgresConfig{
			URL:             os.Getenv("DATABASE_URL"),
			MaxOpenConns:    getInt("DATABASE_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getDuration("DATABASE_CONN_MAX_LIFETIME", 30*time.Minute),
			Migrate:         getEnv("DATABASE_MIGRATE", "true") == "true",
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     getInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  getDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  getDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: getDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
		Kafka: KafkaConfig{
			Brokers:    splitList(os.Getenv("KAFKA_BROKERS")),
			AuditTopic: getEnv("KAFKA_AUDIT_TOPIC", "intake.audit"),
			Partitions: int32(getInt("KAFKA_AUDIT_PARTITIONS", 1)),
		},
		Drafts: DraftConfig{
			TTL: getDuration("DRAFT_TTL", 24*time.Hour),
		},
	}
	if cfg.Server.LogFormat == "" {
		cfg.Server.LogFormat = "text"
		if cfg.Server.Environment == "production" {
			cfg.Server.LogFormat = "json"
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks field constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func getInt(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
