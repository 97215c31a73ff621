package builder

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fraudsight/graph-engine/internal/config"
	"github.com/fraudsight/graph-engine/internal/graph"
	"github.com/fraudsight/graph-engine/internal/records"
)

// fakeStore serves canned subjects and transactions and records the paging
// arguments it was called with.
type fakeStore struct {
	subjects     map[string]records.Subject
	transactions map[string][]records.Transaction
	listErr      error
	getErr       error
	listCalls    []listCall
}

type listCall struct {
	subjectID string
	offset    int
	limit     int
}

func (s *fakeStore) GetSubject(ctx context.Context, id string) (*records.Subject, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	subject, ok := s.subjects[id]
	if !ok {
		return nil, nil
	}
	return &subject, nil
}

func (s *fakeStore) ListTransactions(ctx context.Context, subjectID string, offset, limit int) ([]records.Transaction, error) {
	s.listCalls = append(s.listCalls, listCall{subjectID: subjectID, offset: offset, limit: limit})
	if s.listErr != nil {
		return nil, s.listErr
	}
	all := s.transactions[subjectID]
	if offset >= len(all) {
		return nil, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func testConfig() config.GraphEngineConfig {
	return config.GraphEngineConfig{
		MaxTraversalDepth:     5,
		DefaultTraversalDepth: 2,
		MaxPageLimit:          10000,
		DefaultPageLimit:      100,
		MaxGraphNodes:         1000,
	}
}

func newTestBuilder(store records.Store) *Builder {
	return NewBuilder(store, testConfig(), slog.Default())
}

func subjectTx(id, from, to string, amount float64) records.Transaction {
	return records.Transaction{ID: id, SubjectID: from, Amount: amount, CounterpartySubjectID: to}
}

func bankTx(id, from, bank string, amount float64) records.Transaction {
	return records.Transaction{ID: id, SubjectID: from, Amount: amount, CounterpartyBank: bank}
}

func TestBuildSeedScenarios(t *testing.T) {
	t.Run("missing seed yields empty graph", func(t *testing.T) {
		store := &fakeStore{subjects: map[string]records.Subject{}}

		gctx, err := newTestBuilder(store).Build(context.Background(), "nope", Options{})

		require.NoError(t, err)
		assert.Equal(t, 0, gctx.NodeCount())
		assert.Equal(t, 0, gctx.EdgeCount())
	})

	t.Run("seed fetch error aborts build", func(t *testing.T) {
		store := &fakeStore{getErr: fmt.Errorf("connection refused")}

		gctx, err := newTestBuilder(store).Build(context.Background(), "s1", Options{})

		require.Error(t, err)
		assert.Nil(t, gctx)
	})

	t.Run("transaction fetch error aborts build", func(t *testing.T) {
		store := &fakeStore{
			subjects: map[string]records.Subject{"s1": {ID: "s1", Name: "Seed"}},
			listErr:  fmt.Errorf("query timeout"),
		}

		_, err := newTestBuilder(store).Build(context.Background(), "s1", Options{})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "query timeout")
	})

	t.Run("seed with no transactions is a single node", func(t *testing.T) {
		store := &fakeStore{
			subjects: map[string]records.Subject{"s1": {ID: "s1", Name: "Seed", RiskScore: 0.4}},
		}

		gctx, err := newTestBuilder(store).Build(context.Background(), "s1", Options{})

		require.NoError(t, err)
		assert.Equal(t, 1, gctx.NodeCount())

		node, ok := gctx.Node("s1")
		require.True(t, ok)
		assert.Equal(t, graph.NodeSubject, node.Kind)
		assert.Equal(t, "Seed", node.Attributes["label"])
		assert.Equal(t, "0.4", node.Attributes["risk_score"])
	})
}

func TestBuildNeighborhood(t *testing.T) {
	// s1 pays s2 twice and the same bank twice; the subject edges stay
	// parallel while the bank node is deduplicated.
	store := &fakeStore{
		subjects: map[string]records.Subject{
			"s1": {ID: "s1", Name: "Alpha"},
			"s2": {ID: "s2", Name: "Beta"},
		},
		transactions: map[string][]records.Transaction{
			"s1": {
				subjectTx("tx-1", "s1", "s2", 100),
				subjectTx("tx-2", "s1", "s2", 300),
				bankTx("tx-3", "s1", "Offshore Ltd", 500),
				bankTx("tx-4", "s1", "Offshore Ltd", 700),
			},
		},
	}

	gctx, err := newTestBuilder(store).Build(context.Background(), "s1", Options{MaxDepth: 1})

	require.NoError(t, err)
	require.NoError(t, gctx.Validate())
	assert.Equal(t, 3, gctx.NodeCount())
	assert.Equal(t, 4, gctx.EdgeCount())

	bank, ok := gctx.Node("Offshore Ltd")
	require.True(t, ok)
	assert.Equal(t, graph.NodeBank, bank.Kind)
}

func TestBuildSeedBankScenario(t *testing.T) {
	// Three transactions to banks X, Y, X at depth 1: the repeated bank
	// deduplicates to one node while every transaction keeps its edge.
	store := &fakeStore{
		subjects: map[string]records.Subject{"S": {ID: "S", Name: "Seed"}},
		transactions: map[string][]records.Transaction{
			"S": {
				bankTx("tx-1", "S", "X", 10),
				bankTx("tx-2", "S", "Y", 20),
				bankTx("tx-3", "S", "X", 30),
			},
		},
	}

	gctx, err := newTestBuilder(store).Build(context.Background(), "S", Options{MaxDepth: 1})

	require.NoError(t, err)
	require.NoError(t, gctx.Validate())
	assert.ElementsMatch(t, []string{"S", "X", "Y"}, gctx.NodeIDs())
	assert.Equal(t, 3, gctx.EdgeCount())

	toX := 0
	for _, edge := range gctx.Edges() {
		assert.Equal(t, "S", edge.SourceID)
		if edge.TargetID == "X" {
			toX++
		}
	}
	assert.Equal(t, 2, toX)
}

func TestBuildDepthBound(t *testing.T) {
	// Chain s1 -> s2 -> s3 -> s4. With depth 2 the graph stops at s3, and
	// s3 is a leaf whose transactions are never fetched.
	store := &fakeStore{
		subjects: map[string]records.Subject{
			"s1": {ID: "s1", Name: "One"},
			"s2": {ID: "s2", Name: "Two"},
			"s3": {ID: "s3", Name: "Three"},
			"s4": {ID: "s4", Name: "Four"},
		},
		transactions: map[string][]records.Transaction{
			"s1": {subjectTx("tx-1", "s1", "s2", 10)},
			"s2": {subjectTx("tx-2", "s2", "s3", 20)},
			"s3": {subjectTx("tx-3", "s3", "s4", 30)},
		},
	}

	gctx, err := newTestBuilder(store).Build(context.Background(), "s1", Options{MaxDepth: 2})

	require.NoError(t, err)
	assert.True(t, gctx.HasNode("s3"))
	assert.False(t, gctx.HasNode("s4"))

	for _, call := range store.listCalls {
		assert.NotEqual(t, "s3", call.subjectID, "leaf subjects must not be expanded")
	}
}

func TestBuildCycle(t *testing.T) {
	// s1 and s2 pay each other; traversal must terminate and keep both
	// directions as edges.
	store := &fakeStore{
		subjects: map[string]records.Subject{
			"s1": {ID: "s1", Name: "One"},
			"s2": {ID: "s2", Name: "Two"},
		},
		transactions: map[string][]records.Transaction{
			"s1": {subjectTx("tx-1", "s1", "s2", 10)},
			"s2": {subjectTx("tx-2", "s2", "s1", 20)},
		},
	}

	gctx, err := newTestBuilder(store).Build(context.Background(), "s1", Options{MaxDepth: 3})

	require.NoError(t, err)
	assert.Equal(t, 2, gctx.NodeCount())
	assert.Equal(t, 2, gctx.EdgeCount())

	// Each subject expanded exactly once.
	expanded := map[string]int{}
	for _, call := range store.listCalls {
		expanded[call.subjectID]++
	}
	assert.Equal(t, map[string]int{"s1": 1, "s2": 1}, expanded)
}

func TestBuildNodeBudget(t *testing.T) {
	store := &fakeStore{
		subjects: map[string]records.Subject{
			"s1": {ID: "s1", Name: "Hub"},
			"s2": {ID: "s2", Name: "Two"},
			"s3": {ID: "s3", Name: "Three"},
			"s4": {ID: "s4", Name: "Four"},
		},
		transactions: map[string][]records.Transaction{
			"s1": {
				subjectTx("tx-1", "s1", "s2", 10),
				subjectTx("tx-2", "s1", "s3", 20),
				subjectTx("tx-3", "s1", "s4", 30),
			},
		},
	}

	cfg := testConfig()
	b := NewBuilder(store, cfg, slog.Default())

	gctx, err := b.Build(context.Background(), "s1", Options{MaxDepth: 1, NodeBudget: 2})

	require.NoError(t, err)
	require.NoError(t, gctx.Validate())
	assert.Equal(t, 2, gctx.NodeCount())
	// The edge to the budget-skipped counterpart is dropped with its node.
	assert.Equal(t, 1, gctx.EdgeCount())
}

func TestBuildPagination(t *testing.T) {
	all := []records.Transaction{
		bankTx("tx-1", "s1", "Bank A", 1),
		bankTx("tx-2", "s1", "Bank B", 2),
		bankTx("tx-3", "s1", "Bank C", 3),
		bankTx("tx-4", "s1", "Bank D", 4),
	}
	store := &fakeStore{
		subjects:     map[string]records.Subject{"s1": {ID: "s1", Name: "Seed"}},
		transactions: map[string][]records.Transaction{"s1": all},
	}

	b := newTestBuilder(store)

	// Walking the pages with a fixed limit covers every transaction exactly
	// once.
	seen := map[string]bool{}
	for offset := 0; offset < len(all); offset += 2 {
		gctx, err := b.Build(context.Background(), "s1", Options{MaxDepth: 1, PageOffset: offset, PageLimit: 2})
		require.NoError(t, err)
		for _, edge := range gctx.Edges() {
			assert.False(t, seen[edge.ReferenceID], "transaction %s returned twice", edge.ReferenceID)
			seen[edge.ReferenceID] = true
		}
	}
	assert.Len(t, seen, len(all))
}

func TestNormalizeOptions(t *testing.T) {
	b := newTestBuilder(&fakeStore{})

	t.Run("defaults applied", func(t *testing.T) {
		opts := b.normalize(Options{})
		assert.Equal(t, 2, opts.MaxDepth)
		assert.Equal(t, 100, opts.PageLimit)
		assert.Equal(t, 1000, opts.NodeBudget)
		assert.Equal(t, 0, opts.PageOffset)
	})

	t.Run("caps enforced", func(t *testing.T) {
		opts := b.normalize(Options{MaxDepth: 50, PageLimit: 99999, PageOffset: -3})
		assert.Equal(t, 5, opts.MaxDepth)
		assert.Equal(t, 10000, opts.PageLimit)
		assert.Equal(t, 0, opts.PageOffset)
	})
}
