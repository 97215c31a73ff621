// Package records provides access to the relational records the graph is
// built from: investigation subjects and their transactions. The store is an
// external collaborator; the engine never owns this data.
package records

import "context"

// Subject is an investigation subject row.
type Subject struct {
	ID        string  `json:"id"`
	Name      string  `json:"name"`
	RiskScore float64 `json:"risk_score"`
}

// Transaction is one money movement associated with a subject. Exactly one
// of CounterpartyBank or CounterpartySubjectID identifies the counterpart.
type Transaction struct {
	ID                    string  `json:"id"`
	SubjectID             string  `json:"subject_id"`
	Amount                float64 `json:"amount"`
	CounterpartyBank      string  `json:"counterparty_bank,omitempty"`
	CounterpartySubjectID string  `json:"counterparty_subject_id,omitempty"`
}

// Store fetches subjects and transactions. ListTransactions must page with
// a stable sort key so that repeated calls with incrementing offsets yield
// the full, non-overlapping transaction set.
type Store interface {
	// GetSubject returns the subject with the given id, or nil if it does
	// not exist.
	GetSubject(ctx context.Context, id string) (*Subject, error)

	// ListTransactions returns the subject's transactions ordered by
	// transaction id, skipping offset rows and returning at most limit.
	ListTransactions(ctx context.Context, subjectID string, offset, limit int) ([]Transaction, error)
}
