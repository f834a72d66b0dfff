package app

import (
	"time"

	"github.com/vladislavdragonenkov/order-enricher/internal/messaging/kafka"
)

const (
	StorageDriverMemory   = "memory"
	StorageDriverPostgres = "postgres"
	StorageDriverPebble   = "pebble"

	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

// Config описывает настройки запуска order-enricher.
type Config struct {
	HTTPAddr    string
	MetricsAddr string
	// GRPCAddr — адрес gRPC health/reflection сервера; пустая строка отключает его.
	GRPCAddr string

	CustomerServiceURL string
	ProductServiceURL  string
	UpstreamTimeout    time.Duration

	StorageDriver       string
	PostgresDSN         string
	PostgresAutoMigrate bool
	PebbleDir           string

	CacheDriver string
	RedisAddr   string
	RedisDB     int
	RedisPrefix string

	// KafkaBrokers пустой — события остаются в outbox и не публикуются.
	KafkaBrokers       []string
	KafkaTopic         string
	KafkaDLQTopic      string
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
	OutboxMaxAttempts  int
	OutboxRetryDelay   time.Duration

	ShutdownTimeout time.Duration
}

// DefaultConfig возвращает конфигурацию для локального запуска без внешней инфраструктуры.
func DefaultConfig() Config {
	return Config{
		HTTPAddr:            ":8080",
		MetricsAddr:         ":9090",
		GRPCAddr:            ":50051",
		CustomerServiceURL:  "http://localhost:8081",
		ProductServiceURL:   "http://localhost:8082",
		UpstreamTimeout:     5 * time.Second,
		StorageDriver:       StorageDriverMemory,
		PostgresAutoMigrate: true,
		PebbleDir:           "data/orders",
		CacheDriver:         CacheDriverMemory,
		RedisAddr:           "localhost:6379",
		RedisPrefix:         "oe",
		KafkaTopic:          kafka.TopicOrderEvents,
		KafkaDLQTopic:       kafka.TopicDeadLetterQueue,
		OutboxPollInterval:  time.Second,
		OutboxBatchSize:     100,
		OutboxMaxAttempts:   3,
		OutboxRetryDelay:    50 * time.Millisecond,
		ShutdownTimeout:     5 * time.Second,
	}
}
