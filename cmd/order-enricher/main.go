package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-enricher/internal/app"
	"github.com/vladislavdragonenkov/order-enricher/internal/version"
)

const (
	envHTTPAddr           = "OE_HTTP_ADDR"
	envMetricsAddr        = "OE_METRICS_ADDR"
	envGRPCAddr           = "OE_GRPC_ADDR"
	envCustomerServiceURL = "OE_CUSTOMER_SERVICE_URL"
	envProductServiceURL  = "OE_PRODUCT_SERVICE_URL"
	envUpstreamTimeout    = "OE_UPSTREAM_TIMEOUT"

	envStorageDriver       = "OE_STORAGE_DRIVER"
	envPostgresDSN         = "OE_POSTGRES_DSN"
	envPostgresAutoMigrate = "OE_POSTGRES_AUTO_MIGRATE"
	envPebbleDir           = "OE_PEBBLE_DIR"

	envCacheDriver = "OE_CACHE_DRIVER"
	envRedisAddr   = "OE_REDIS_ADDR"
	envRedisDB     = "OE_REDIS_DB"
	envRedisPrefix = "OE_REDIS_PREFIX"

	envKafkaBrokers       = "OE_KAFKA_BROKERS"
	envKafkaTopic         = "OE_KAFKA_TOPIC"
	envKafkaDLQTopic      = "OE_KAFKA_DLQ_TOPIC"
	envOutboxPollInterval = "OE_OUTBOX_POLL_INTERVAL"
	envOutboxBatchSize    = "OE_OUTBOX_BATCH_SIZE"
	envOutboxMaxAttempts  = "OE_OUTBOX_MAX_ATTEMPTS"
	envOutboxRetryDelay   = "OE_OUTBOX_RETRY_DELAY"

	envShutdownTimeout = "OE_SHUTDOWN_TIMEOUT"
	envLogLevel        = "OE_LOG_LEVEL"
)

type envLookup func(key string) (string, bool)

// setupLogger настраивает формат и уровень логирования для сервиса.
func setupLogger(lookup envLookup) {
	log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	level := log.InfoLevel
	if raw, ok := lookup(envLogLevel); ok {
		if parsed, err := log.ParseLevel(strings.TrimSpace(raw)); err == nil {
			level = parsed
		}
	}
	log.SetLevel(level)
}

// readConfigFromEnv накладывает переменные окружения на DefaultConfig.
// Некорректные значения не роняют старт: остаётся значение по умолчанию, а в warnings попадает причина.
func readConfigFromEnv(lookup envLookup) (app.Config, []string) {
	cfg := app.DefaultConfig()
	var warnings []string

	warn := func(key, raw string, err error) {
		warnings = append(warnings, fmt.Sprintf("%s=%q ignored: %v", key, raw, err))
	}

	setString := func(key string, target *string) {
		if v, ok := lookup(key); ok && strings.TrimSpace(v) != "" {
			*target = strings.TrimSpace(v)
		}
	}
	setDuration := func(key string, target *time.Duration, valid func(time.Duration) bool, rule string) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseDuration(raw, valid, rule)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*target = value
	}
	setInt := func(key string, target *int, valid func(int) bool, rule string) {
		raw, ok := lookup(key)
		if !ok || strings.TrimSpace(raw) == "" {
			return
		}
		value, err := parseInt(raw, valid, rule)
		if err != nil {
			warn(key, raw, err)
			return
		}
		*target = value
	}

	positive := func(v int) bool { return v > 0 }
	nonNegative := func(v int) bool { return v >= 0 }
	positiveDuration := func(v time.Duration) bool { return v > 0 }
	nonNegativeDuration := func(v time.Duration) bool { return v >= 0 }

	setString(envHTTPAddr, &cfg.HTTPAddr)
	setString(envMetricsAddr, &cfg.MetricsAddr)
	if v, ok := lookup(envGRPCAddr); ok {
		// Пустое значение явно отключает gRPC health.
		cfg.GRPCAddr = strings.TrimSpace(v)
	}
	setString(envCustomerServiceURL, &cfg.CustomerServiceURL)
	setString(envProductServiceURL, &cfg.ProductServiceURL)
	setDuration(envUpstreamTimeout, &cfg.UpstreamTimeout, positiveDuration, "must be > 0")

	if v, ok := lookup(envStorageDriver); ok && strings.TrimSpace(v) != "" {
		cfg.StorageDriver = strings.ToLower(strings.TrimSpace(v))
	}
	setString(envPostgresDSN, &cfg.PostgresDSN)
	if raw, ok := lookup(envPostgresAutoMigrate); ok && strings.TrimSpace(raw) != "" {
		value, err := parseBool(raw)
		if err != nil {
			warn(envPostgresAutoMigrate, raw, err)
		} else {
			cfg.PostgresAutoMigrate = value
		}
	}
	setString(envPebbleDir, &cfg.PebbleDir)

	if v, ok := lookup(envCacheDriver); ok && strings.TrimSpace(v) != "" {
		cfg.CacheDriver = strings.ToLower(strings.TrimSpace(v))
	}
	setString(envRedisAddr, &cfg.RedisAddr)
	setInt(envRedisDB, &cfg.RedisDB, nonNegative, "must be >= 0")
	setString(envRedisPrefix, &cfg.RedisPrefix)

	if v, ok := lookup(envKafkaBrokers); ok {
		cfg.KafkaBrokers = splitList(v)
	}
	setString(envKafkaTopic, &cfg.KafkaTopic)
	if v, ok := lookup(envKafkaDLQTopic); ok {
		cfg.KafkaDLQTopic = strings.TrimSpace(v)
	}
	setDuration(envOutboxPollInterval, &cfg.OutboxPollInterval, positiveDuration, "must be > 0")
	setInt(envOutboxBatchSize, &cfg.OutboxBatchSize, positive, "must be > 0")
	setInt(envOutboxMaxAttempts, &cfg.OutboxMaxAttempts, positive, "must be > 0")
	setDuration(envOutboxRetryDelay, &cfg.OutboxRetryDelay, nonNegativeDuration, "must be >= 0")

	setDuration(envShutdownTimeout, &cfg.ShutdownTimeout, positiveDuration, "must be > 0")

	return cfg, warnings
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "y", "on":
		return true, nil
	case "0", "false", "no", "n", "off":
		return false, nil
	default:
		return false, fmt.Errorf("invalid bool value %q", raw)
	}
}

func parseInt(raw string, valid func(int) bool, rule string) (int, error) {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func parseDuration(raw string, valid func(time.Duration) bool, rule string) (time.Duration, error) {
	value, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return 0, err
	}
	if valid != nil && !valid(value) {
		return 0, errors.New(rule)
	}
	return value, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func main() {
	setupLogger(os.LookupEnv)
	cfg, warnings := readConfigFromEnv(os.LookupEnv)
	for _, w := range warnings {
		log.Warn(w)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.WithFields(log.Fields{
		"http_addr":      cfg.HTTPAddr,
		"metrics_addr":   cfg.MetricsAddr,
		"grpc_addr":      cfg.GRPCAddr,
		"storage_driver": cfg.StorageDriver,
		"cache_driver":   cfg.CacheDriver,
		"kafka_enabled":  len(cfg.KafkaBrokers) > 0,
		"version":        version.String(),
	}).Info("запускаем order-enricher")

	if err := app.Run(ctx, cfg); err != nil && !errors.Is(err, context.Canceled) {
		log.WithError(err).Fatal("приложение завершилось с ошибкой")
	}

	log.Info("order-enricher остановлен")
}
