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

// ResolutionRequest is the wire form of an asynchronous resolution request.
// Entities stays raw here; the handler decodes it against its own record
// type.
type ResolutionRequest struct {
	RequestID string            `json:"request_id"`
	Entities  json.RawMessage   `json:"entities"`
	Context   map[string]string `json:"context,omitempty"`
}

// RequestHandler processes decoded resolution requests.
type RequestHandler interface {
	HandleResolutionRequest(ctx context.Context, request ResolutionRequest) error
}

// Consumer consumes resolution requests from Kafka and hands them to the
// engine.
type Consumer struct {
	consumer sarama.ConsumerGroup
	handler  RequestHandler
	cfg      config.KafkaConfig
	logger   *slog.Logger
	ctx      context.Context
	cancel   context.CancelFunc
}

// NewConsumer creates a consumer group for the resolution request topic.
func NewConsumer(cfg config.KafkaConfig, handler RequestHandler, logger *slog.Logger) (*Consumer, error) {
	saramaConfig := sarama.NewConfig()
	saramaConfig.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	saramaConfig.Consumer.Offsets.Initial = sarama.OffsetNewest
	saramaConfig.Consumer.Group.Session.Timeout = 10 * time.Second
	saramaConfig.Consumer.Group.Heartbeat.Interval = 3 * time.Second
	saramaConfig.Consumer.Return.Errors = true

	brokers := strings.Split(cfg.Brokers, ",")
	consumer, err := sarama.NewConsumerGroup(brokers, cfg.ConsumerGroup, saramaConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create consumer group: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	return &Consumer{
		consumer: consumer,
		handler:  handler,
		cfg:      cfg,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}, nil
}

// Start begins consuming in the background.
func (c *Consumer) Start() error {
	topics := []string{c.cfg.ResolutionRequestTopic}
	c.logger.Info("Starting Kafka consumer",
		"topics", topics,
		"consumer_group", c.cfg.ConsumerGroup)

	go func() {
		for {
			select {
			case <-c.ctx.Done():
				return
			default:
				if err := c.consumer.Consume(c.ctx, topics, c); err != nil {
					c.logger.Error("Error consuming from Kafka", "error", err)
					time.Sleep(5 * time.Second)
				}
			}
		}
	}()

	go func() {
		for {
			select {
			case err := <-c.consumer.Errors():
				c.logger.Error("Kafka consumer error", "error", err)
			case <-c.ctx.Done():
				return
			}
		}
	}()

	return nil
}

// Stop stops the consumer.
func (c *Consumer) Stop() error {
	c.logger.Info("Stopping Kafka consumer")
	c.cancel()
	return c.consumer.Close()
}

// Setup implements sarama.ConsumerGroupHandler
func (c *Consumer) Setup(sarama.ConsumerGroupSession) error {
	c.logger.Info("Kafka consumer group session setup")
	return nil
}

// Cleanup implements sarama.ConsumerGroupHandler
func (c *Consumer) Cleanup(sarama.ConsumerGroupSession) error {
	c.logger.Info("Kafka consumer group session cleanup")
	return nil
}

// ConsumeClaim implements sarama.ConsumerGroupHandler
func (c *Consumer) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case message := <-claim.Messages():
			if message == nil {
				return nil
			}

			if err := c.handleMessage(session.Context(), message); err != nil {
				c.logger.Error("Failed to handle message",
					"topic", message.Topic,
					"partition", message.Partition,
					"offset", message.Offset,
					"error", err)
			} else {
				session.MarkMessage(message, "")
			}

		case <-session.Context().Done():
			return nil
		}
	}
}

func (c *Consumer) handleMessage(ctx context.Context, message *sarama.ConsumerMessage) error {
	var request ResolutionRequest
	if err := json.Unmarshal(message.Value, &request); err != nil {
		return fmt.Errorf("failed to unmarshal resolution request: %w", err)
	}

	c.logger.Info("Processing resolution request",
		"request_id", request.RequestID,
		"partition", message.Partition,
		"offset", message.Offset)

	if err := c.handler.HandleResolutionRequest(ctx, request); err != nil {
		return fmt.Errorf("failed to process resolution request %s: %w", request.RequestID, err)
	}

	return nil
}
