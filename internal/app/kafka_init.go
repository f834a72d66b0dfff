package app

import (
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
	"github.com/vladislavdragonenkov/order-enricher/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/order-enricher/internal/metrics"
	"github.com/vladislavdragonenkov/order-enricher/internal/service/outbox"
)

// initKafkaProducer создаёт producer, если заданы брокеры.
// Возвращает nil, nil при пустом списке брокеров.
func initKafkaProducer(brokers []string, logger *log.Entry) (*kafka.Producer, error) {
	brokers = compactStrings(brokers)
	if len(brokers) == 0 {
		return nil, nil
	}

	producer, err := kafka.NewProducer(brokers, kafka.WithProducerLogger(logger.WithField("layer", "kafka")))
	if err != nil {
		logger.WithError(err).Warn("failed to create kafka producer, order events will not be published")
		return nil, err
	}

	logger.WithField("brokers", brokers).Info("kafka producer initialized")
	return producer, nil
}

// newOutboxWorker собирает воркер публикации order.enriched в Kafka.
func newOutboxWorker(cfg Config, repo domain.OutboxRepository, producer *kafka.Producer, m *metrics.OutboxMetrics, logger *log.Entry) *outbox.Worker {
	options := []outbox.Option{
		outbox.WithLogger(logger.WithField("component", "outbox-worker")),
		outbox.WithMetrics(m),
		outbox.WithPollInterval(cfg.OutboxPollInterval),
		outbox.WithBatchSize(cfg.OutboxBatchSize),
		outbox.WithMaxAttempts(cfg.OutboxMaxAttempts),
		outbox.WithRetryBaseDelay(cfg.OutboxRetryDelay),
	}
	if cfg.KafkaDLQTopic != "" {
		options = append(options, outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, cfg.KafkaDLQTopic)))
	}

	topic := cfg.KafkaTopic
	if topic == "" {
		topic = kafka.TopicOrderEvents
	}
	return outbox.NewWorker(repo, kafka.NewOutboxPublisher(producer, topic), options...)
}

// closeKafka закрывает producer, если он был создан.
func closeKafka(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}

	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}

func compactStrings(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v != "" {
			out = append(out, v)
		}
	}
	return out
}
