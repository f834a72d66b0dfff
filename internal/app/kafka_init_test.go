package app

import (
	"context"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"github.com/IBM/sarama/mocks"
	"github.com/prometheus/client_golang/prometheus"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/order-enricher/internal/domain"
	"github.com/vladislavdragonenkov/order-enricher/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/order-enricher/internal/metrics"
	"github.com/vladislavdragonenkov/order-enricher/internal/storage/memory"
)

func TestInitKafkaProducer_EmptyBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer(nil, logger)
	if err != nil {
		t.Errorf("expected no error for empty brokers, got %v", err)
	}
	if producer != nil {
		t.Error("expected nil producer for empty brokers")
	}

	producer, err = initKafkaProducer([]string{"", ""}, logger)
	if err != nil || producer != nil {
		t.Errorf("blank brokers must disable kafka, got %v / %v", producer, err)
	}
}

func TestInitKafkaProducer_InvalidBrokers(t *testing.T) {
	logger := log.WithField("test", "kafka")

	producer, err := initKafkaProducer([]string{"127.0.0.1:1"}, logger)
	if err == nil {
		t.Error("expected error for unreachable brokers")
	}
	if producer != nil {
		t.Error("expected nil producer on error")
	}
}

func TestCloseKafka_NilProducer(_ *testing.T) {
	closeKafka(nil, log.WithField("test", "kafka"))
}

func TestNewOutboxWorker_PublishesToConfiguredTopic(t *testing.T) {
	cfg := DefaultConfig()
	cfg.KafkaTopic = "custom.topic"
	cfg.OutboxRetryDelay = 0

	syncProducer := mocks.NewSyncProducer(t, nil)
	syncProducer.ExpectSendMessageWithMessageCheckerFunctionAndSucceed(func(msg *sarama.ProducerMessage) error {
		if msg.Topic != "custom.topic" {
			t.Errorf("unexpected topic %s", msg.Topic)
		}
		return nil
	})
	producer := kafka.NewProducerFromSync(syncProducer, log.WithField("test", "kafka"))
	defer closeKafka(producer, log.WithField("test", "kafka"))

	repo := memory.NewOutboxRepository()
	if _, err := repo.Enqueue(context.Background(), domain.OutboxMessage{
		AggregateType: domain.AggregateTypeOrder,
		AggregateID:   "ORD-1",
		EventType:     domain.EventTypeOrderEnriched,
		Payload:       []byte(`{"order_id":"ORD-1"}`),
	}); err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	m := metrics.NewOutboxMetricsWithRegisterer(prometheus.NewRegistry())
	worker := newOutboxWorker(cfg, repo, producer, m, log.WithField("test", "worker"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	worker.ProcessOnce(ctx)

	if pending := repo.AllPending(); len(pending) != 0 {
		t.Fatalf("expected outbox to be drained, got %d pending", len(pending))
	}
}
