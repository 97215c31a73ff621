package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"

	"github.com/fraudsight/graph-engine/internal/config"
)

// PostgresStore implements Store against the relational record database.
type PostgresStore struct {
	db     *sql.DB
	cfg    config.DatabaseConfig
	logger *slog.Logger
}

// NewConnection opens a pooled database connection and verifies it.
func NewConnection(cfg config.DatabaseConfig, logger *slog.Logger) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MaxConnections / 2)
	db.SetConnMaxLifetime(cfg.MaxLifetime)
	db.SetConnMaxIdleTime(cfg.MaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), cfg.ConnectTimeout)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to database successfully")

	return db, nil
}

// RunMigrations applies pending schema migrations.
func RunMigrations(cfg config.DatabaseConfig) error {
	m, err := migrate.New(cfg.MigrationsPath, cfg.URL)
	if err != nil {
		return fmt.Errorf("failed to create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// NewPostgresStore creates a record store over an open connection.
func NewPostgresStore(db *sql.DB, cfg config.DatabaseConfig, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{
		db:     db,
		cfg:    cfg,
		logger: logger,
	}
}

// GetSubject returns the subject row, or nil if the id is unknown.
func (s *PostgresStore) GetSubject(ctx context.Context, id string) (*Subject, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	var subject Subject
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, COALESCE(risk_score, 0)
		FROM subjects
		WHERE id = $1
	`, id).Scan(&subject.ID, &subject.Name, &subject.RiskScore)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query subject %s: %w", id, err)
	}

	return &subject, nil
}

// ListTransactions returns one stable page of the subject's transactions.
// Ordering by transaction id keeps pages non-overlapping across calls.
func (s *PostgresStore) ListTransactions(ctx context.Context, subjectID string, offset, limit int) ([]Transaction, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.QueryTimeout)
	defer cancel()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, subject_id, amount,
		       COALESCE(counterparty_bank, ''),
		       COALESCE(counterparty_subject_id, '')
		FROM transactions
		WHERE subject_id = $1
		ORDER BY id
		LIMIT $2 OFFSET $3
	`, subjectID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions for subject %s: %w", subjectID, err)
	}
	defer rows.Close()

	var transactions []Transaction
	for rows.Next() {
		var tx Transaction
		if err := rows.Scan(&tx.ID, &tx.SubjectID, &tx.Amount, &tx.CounterpartyBank, &tx.CounterpartySubjectID); err != nil {
			return nil, fmt.Errorf("failed to scan transaction row: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read transaction rows: %w", err)
	}

	return transactions, nil
}
