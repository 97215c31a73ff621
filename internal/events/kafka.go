package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/IBM/sarama"

	"github.com/fraudsight/graph-engine/internal/config"
)

// KafkaSink publishes resolution events to Kafka.
type KafkaSink struct {
	producer sarama.SyncProducer
	cfg      config.KafkaConfig
	logger   *slog.Logger
}

// NewKafkaSink creates a synchronous Kafka producer sink.
func NewKafkaSink(cfg config.KafkaConfig, logger *slog.Logger) (*KafkaSink, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Producer.Return.Successes = true
	saramaConfig.Producer.Retry.Max = 3
	saramaConfig.Producer.RequiredAcks = sarama.WaitForAll
	saramaConfig.Producer.Compression = sarama.CompressionSnappy

	brokers := strings.Split(cfg.Brokers, ",")
	producer, err := sarama.NewSyncProducer(brokers, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Kafka producer: %w", err)
	}

	return &KafkaSink{
		producer: producer,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// Publish sends the event to the entity-resolved topic, keyed by aggregate
// id so events for the same pair land on one partition.
func (s *KafkaSink) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: s.cfg.EntityResolvedTopic,
		Key:   sarama.StringEncoder(event.AggregateID.String()),
		Value: sarama.ByteEncoder(data),
		Headers: []sarama.RecordHeader{
			{
				Key:   []byte("content-type"),
				Value: []byte("application/json"),
			},
			{
				Key:   []byte("event-time"),
				Value: []byte(event.OccurredAt.Format(time.RFC3339)),
			},
		},
	}

	partition, offset, err := s.producer.SendMessage(message)
	if err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	s.logger.Debug("Resolution event published",
		"topic", s.cfg.EntityResolvedTopic,
		"aggregate_id", event.AggregateID,
		"partition", partition,
		"offset", offset)

	return nil
}

// Close closes the underlying producer.
func (s *KafkaSink) Close() error {
	return s.producer.Close()
}
