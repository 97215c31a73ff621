package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/fraudsight/graph-engine/internal/config"
)

// PostgresStore persists resolution events to an append-only table. It is
// the default sink when Kafka is disabled.
type PostgresStore struct {
	db     *sql.DB
	cfg    config.DatabaseConfig
	logger *slog.Logger
}

// NewPostgresStore creates an event store over an existing connection.
func NewPostgresStore(db *sql.DB, cfg config.DatabaseConfig, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// Publish appends the event. Events are never updated or deleted.
func (s *PostgresStore) Publish(ctx context.Context, event Event) error {
	payload, err := json.Marshal(event.Payload)
	if err != nil {
		return fmt.Errorf("failed to marshal event payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	query := `
		INSERT INTO resolution_events (id, aggregate_id, aggregate_type, event_type, version, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`

	if _, err := s.db.ExecContext(ctx, query,
		event.ID,
		event.AggregateID,
		event.AggregateType,
		event.EventType,
		event.Version,
		payload,
		event.OccurredAt,
	); err != nil {
		return fmt.Errorf("failed to insert resolution event: %w", err)
	}

	s.logger.Debug("Resolution event stored",
		"aggregate_id", event.AggregateID,
		"event_type", event.EventType)

	return nil
}

// ListByAggregate returns the stored events for one aggregate in emission
// order, mainly for investigation tooling and tests.
func (s *PostgresStore) ListByAggregate(ctx context.Context, aggregateID string) ([]Event, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	query := `
		SELECT id, aggregate_id, aggregate_type, event_type, version, payload, created_at
		FROM resolution_events
		WHERE aggregate_id = $1
		ORDER BY created_at, id`

	rows, err := s.db.QueryContext(ctx, query, aggregateID)
	if err != nil {
		return nil, fmt.Errorf("failed to query resolution events: %w", err)
	}
	defer rows.Close()

	var results []Event
	for rows.Next() {
		var event Event
		var payload []byte
		if err := rows.Scan(
			&event.ID,
			&event.AggregateID,
			&event.AggregateType,
			&event.EventType,
			&event.Version,
			&payload,
			&event.OccurredAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan resolution event: %w", err)
		}
		if err := json.Unmarshal(payload, &event.Payload); err != nil {
			return nil, fmt.Errorf("failed to unmarshal event payload: %w", err)
		}
		results = append(results, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate resolution events: %w", err)
	}

	return results, nil
}
